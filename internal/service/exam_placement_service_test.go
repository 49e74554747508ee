package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campuskit/exam-scheduler-api/internal/dto"
	"github.com/campuskit/exam-scheduler-api/internal/models"
	appErrors "github.com/campuskit/exam-scheduler-api/pkg/errors"
)

func TestExamPlacementServiceGenerateSuccess(t *testing.T) {
	service, _ := newPlacementServiceFixture(t, placementFixtureConfig{})

	resp, err := service.Generate(context.Background(), dto.GenerateExamScheduleRequest{TermID: "term-1"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.ProposalID)
	assert.Equal(t, "term-1", resp.TermID)
	assert.Len(t, resp.Placements, 2)
	assert.Empty(t, resp.Unplaced)
	assert.Equal(t, dto.PlacementRunStats{Requested: 2, Placed: 2, Unplaced: 0}, resp.Stats)
}

func TestExamPlacementServiceGenerateRequiresTerm(t *testing.T) {
	service, _ := newPlacementServiceFixture(t, placementFixtureConfig{})

	_, err := service.Generate(context.Background(), dto.GenerateExamScheduleRequest{})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestExamPlacementServiceGenerateNoSessions(t *testing.T) {
	service, _ := newPlacementServiceFixture(t, placementFixtureConfig{
		sessions: []models.ExamRequest{},
	})

	_, err := service.Generate(context.Background(), dto.GenerateExamScheduleRequest{TermID: "term-1"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErr.Code)
}

func TestExamPlacementServiceSaveDraft(t *testing.T) {
	txProvider, mock := newTxProviderMock(t)
	service, stubs := newPlacementServiceFixture(t, placementFixtureConfig{tx: txProvider})

	resp, err := service.Generate(context.Background(), dto.GenerateExamScheduleRequest{TermID: "term-1"})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectCommit()

	id, err := service.Save(context.Background(), dto.SaveExamScheduleRequest{ProposalID: resp.ProposalID})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())

	record := stubs.schedules.items[0]
	assert.Equal(t, models.ExamScheduleStatusDraft, record.Status)
	assert.Len(t, stubs.placements.placements[id], 2)

	// Proposals are one-shot.
	_, err = service.Save(context.Background(), dto.SaveExamScheduleRequest{ProposalID: resp.ProposalID})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestExamPlacementServiceSavePublish(t *testing.T) {
	txProvider, mock := newTxProviderMock(t)
	service, stubs := newPlacementServiceFixture(t, placementFixtureConfig{tx: txProvider})

	resp, err := service.Generate(context.Background(), dto.GenerateExamScheduleRequest{TermID: "term-1"})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectCommit()

	id, err := service.Save(context.Background(), dto.SaveExamScheduleRequest{ProposalID: resp.ProposalID, Publish: true})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	found, err := stubs.schedules.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.ExamScheduleStatusPublished, found.Status)
}

func TestExamPlacementServiceSaveUnknownProposal(t *testing.T) {
	service, _ := newPlacementServiceFixture(t, placementFixtureConfig{})

	_, err := service.Save(context.Background(), dto.SaveExamScheduleRequest{ProposalID: "missing"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestExamPlacementServiceGetDetail(t *testing.T) {
	txProvider, mock := newTxProviderMock(t)
	service, _ := newPlacementServiceFixture(t, placementFixtureConfig{tx: txProvider})

	resp, err := service.Generate(context.Background(), dto.GenerateExamScheduleRequest{TermID: "term-1"})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectCommit()
	id, err := service.Save(context.Background(), dto.SaveExamScheduleRequest{ProposalID: resp.ProposalID})
	require.NoError(t, err)

	detail, err := service.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, detail.Record.ID)
	assert.Len(t, detail.Placements, 2)
	assert.Empty(t, detail.Unplaced)
}

func TestExamPlacementServiceGetMissing(t *testing.T) {
	service, _ := newPlacementServiceFixture(t, placementFixtureConfig{})

	_, err := service.Get(context.Background(), "nope")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestExamPlacementServiceDeleteOnlyDrafts(t *testing.T) {
	txProvider, mock := newTxProviderMock(t)
	service, stubs := newPlacementServiceFixture(t, placementFixtureConfig{tx: txProvider})

	resp, err := service.Generate(context.Background(), dto.GenerateExamScheduleRequest{TermID: "term-1"})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectCommit()
	id, err := service.Save(context.Background(), dto.SaveExamScheduleRequest{ProposalID: resp.ProposalID, Publish: true})
	require.NoError(t, err)

	err = service.Delete(context.Background(), id)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	stubs.schedules.items[0].Status = models.ExamScheduleStatusDraft
	require.NoError(t, service.Delete(context.Background(), id))
	assert.Empty(t, stubs.schedules.items)
}

func TestProposalStoreExpiry(t *testing.T) {
	store := newProposalStore(30 * time.Minute)
	store.Save(placementProposal{
		ProposalID:  "p-1",
		RequestedAt: time.Now().Add(-time.Hour),
	})

	_, ok := store.Get("p-1")
	assert.False(t, ok, "expired proposals must not be retrievable")
}

// --- Fixtures ---

type placementFixtureConfig struct {
	sessions []models.ExamRequest
	tx       txProvider
}

type placementServiceStubs struct {
	schedules  *examScheduleStoreStub
	placements *examPlacementStoreStub
}

func newPlacementServiceFixture(t *testing.T, cfg placementFixtureConfig) (*ExamPlacementService, *placementServiceStubs) {
	t.Helper()

	sessions := cfg.sessions
	if sessions == nil {
		sessions = []models.ExamRequest{
			{SectionID: "calc-101", CourseID: "MATH101", Department: "MATH", Headcount: 60, DurationMinutes: 90, PreferredDayPart: models.DayPartMorning},
			{SectionID: "phys-201", CourseID: "PHYS201", Department: "PHYS", Headcount: 30, DurationMinutes: 60, PreferredDayPart: models.DayPartAfternoon},
		}
	}
	stubs := &placementServiceStubs{
		schedules:  &examScheduleStoreStub{},
		placements: &examPlacementStoreStub{},
	}
	tx := cfg.tx
	if tx == nil {
		tx = noopTxProvider{}
	}

	service := NewExamPlacementService(
		examSessionReaderStub{items: sessions},
		examRoomReaderStub{items: []models.ExamRoom{
			{ID: "room-a", Building: "North", Category: models.RoomCategoryAuditorium, Capacity: 120},
			{ID: "room-b", Building: "South", Category: models.RoomCategoryStandard, Capacity: 45},
		}},
		examWindowReaderStub{items: []models.ExamWindow{
			{Day: "2026-06-01", DayPart: models.DayPartMorning, StartMinute: 540, EndMinute: 660},
			{Day: "2026-06-01", DayPart: models.DayPartAfternoon, StartMinute: 780, EndMinute: 900},
		}},
		stubs.schedules,
		stubs.placements,
		&calendarGatewayStub{},
		&campusGatewayStub{},
		&policyGatewayStub{},
		tx,
		nil,
		validator.New(),
		zap.NewNop(),
		ExamPlacementServiceConfig{ProposalTTL: time.Hour},
	)
	return service, stubs
}

type examSessionReaderStub struct {
	items []models.ExamRequest
}

func (s examSessionReaderStub) ListByTerm(ctx context.Context, termID string) ([]models.ExamRequest, error) {
	return s.items, nil
}

type examRoomReaderStub struct {
	items []models.ExamRoom
}

func (s examRoomReaderStub) ListActive(ctx context.Context) ([]models.ExamRoom, error) {
	return s.items, nil
}

type examWindowReaderStub struct {
	items []models.ExamWindow
}

func (s examWindowReaderStub) ListByTerm(ctx context.Context, termID string) ([]models.ExamWindow, error) {
	return s.items, nil
}

type examScheduleStoreStub struct {
	items []models.ExamScheduleRecord
}

func (s *examScheduleStoreStub) CreateVersioned(ctx context.Context, exec sqlx.ExtContext, record *models.ExamScheduleRecord) error {
	record.ID = fmt.Sprintf("sched-%d", len(s.items)+1)
	record.Version = len(s.items) + 1
	s.items = append(s.items, *record)
	return nil
}

func (s *examScheduleStoreStub) ListByTerm(ctx context.Context, termID string) ([]models.ExamScheduleRecord, error) {
	return s.items, nil
}

func (s *examScheduleStoreStub) FindByID(ctx context.Context, id string) (*models.ExamScheduleRecord, error) {
	for _, item := range s.items {
		if item.ID == id {
			return &item, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *examScheduleStoreStub) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.ExamScheduleStatus) error {
	for idx := range s.items {
		if s.items[idx].ID == id {
			s.items[idx].Status = status
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *examScheduleStoreStub) Delete(ctx context.Context, id string) error {
	for idx, item := range s.items {
		if item.ID == id {
			s.items = append(s.items[:idx], s.items[idx+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

type examPlacementStoreStub struct {
	placements map[string][]models.ExamPlacement
	unplaced   map[string][]string
}

func (s *examPlacementStoreStub) BulkCreateWithTx(ctx context.Context, tx *sqlx.Tx, scheduleID string, placements []models.ExamPlacement) error {
	if s.placements == nil {
		s.placements = make(map[string][]models.ExamPlacement)
	}
	s.placements[scheduleID] = append(s.placements[scheduleID], placements...)
	return nil
}

func (s *examPlacementStoreStub) BulkCreateUnplacedWithTx(ctx context.Context, tx *sqlx.Tx, scheduleID string, sectionIDs []string) error {
	if s.unplaced == nil {
		s.unplaced = make(map[string][]string)
	}
	s.unplaced[scheduleID] = append(s.unplaced[scheduleID], sectionIDs...)
	return nil
}

func (s *examPlacementStoreStub) ListBySchedule(ctx context.Context, scheduleID string) ([]models.ExamPlacementRow, error) {
	rows := make([]models.ExamPlacementRow, 0, len(s.placements[scheduleID]))
	for idx, placement := range s.placements[scheduleID] {
		rows = append(rows, models.ExamPlacementRow{
			ID:          fmt.Sprintf("row-%d", idx+1),
			ScheduleID:  scheduleID,
			SectionID:   placement.SectionID,
			CourseID:    placement.CourseID,
			Department:  placement.Department,
			RoomID:      placement.RoomID,
			Building:    placement.Building,
			Day:         placement.Day,
			StartMinute: placement.StartMinute,
			EndMinute:   placement.EndMinute,
			DayPart:     placement.DayPart,
		})
	}
	return rows, nil
}

func (s *examPlacementStoreStub) ListUnplacedBySchedule(ctx context.Context, scheduleID string) ([]string, error) {
	return s.unplaced[scheduleID], nil
}

type noopTxProvider struct{}

func (noopTxProvider) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider unavailable")
}

type txProviderMock struct {
	db *sqlx.DB
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}
