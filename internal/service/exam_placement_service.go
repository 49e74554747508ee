package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/campuskit/exam-scheduler-api/internal/dto"
	"github.com/campuskit/exam-scheduler-api/internal/models"
	appErrors "github.com/campuskit/exam-scheduler-api/pkg/errors"
)

type examSessionReader interface {
	ListByTerm(ctx context.Context, termID string) ([]models.ExamRequest, error)
}

type examRoomReader interface {
	ListActive(ctx context.Context) ([]models.ExamRoom, error)
}

type examWindowReader interface {
	ListByTerm(ctx context.Context, termID string) ([]models.ExamWindow, error)
}

type examScheduleStore interface {
	CreateVersioned(ctx context.Context, exec sqlx.ExtContext, record *models.ExamScheduleRecord) error
	ListByTerm(ctx context.Context, termID string) ([]models.ExamScheduleRecord, error)
	FindByID(ctx context.Context, id string) (*models.ExamScheduleRecord, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.ExamScheduleStatus) error
	Delete(ctx context.Context, id string) error
}

type examPlacementStore interface {
	BulkCreateWithTx(ctx context.Context, tx *sqlx.Tx, scheduleID string, placements []models.ExamPlacement) error
	BulkCreateUnplacedWithTx(ctx context.Context, tx *sqlx.Tx, scheduleID string, sectionIDs []string) error
	ListBySchedule(ctx context.Context, scheduleID string) ([]models.ExamPlacementRow, error)
	ListUnplacedBySchedule(ctx context.Context, scheduleID string) ([]string, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type placementRunObserver interface {
	ObservePlacementRun(placed, unplaced int, duration time.Duration)
}

// ExamPlacementService runs placement over a term's inputs and persists the
// accepted schedules.
type ExamPlacementService struct {
	sessions   examSessionReader
	rooms      examRoomReader
	windows    examWindowReader
	schedules  examScheduleStore
	placements examPlacementStore
	tx         txProvider
	engine     *placementEngine
	metrics    placementRunObserver
	validator  *validator.Validate
	logger     *zap.Logger
	store      *proposalStore
}

// ExamPlacementServiceConfig governs service behaviour.
type ExamPlacementServiceConfig struct {
	ProposalTTL time.Duration
	Placement   PlacementConfig
}

// NewExamPlacementService wires scheduler dependencies.
func NewExamPlacementService(
	sessions examSessionReader,
	rooms examRoomReader,
	windows examWindowReader,
	schedules examScheduleStore,
	placements examPlacementStore,
	calendar calendarGateway,
	campus campusMapGateway,
	policy examPolicyGateway,
	tx txProvider,
	metrics placementRunObserver,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg ExamPlacementServiceConfig,
) *ExamPlacementService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ProposalTTL <= 0 {
		cfg.ProposalTTL = 30 * time.Minute
	}
	return &ExamPlacementService{
		sessions:   sessions,
		rooms:      rooms,
		windows:    windows,
		schedules:  schedules,
		placements: placements,
		tx:         tx,
		engine:     newPlacementEngine(cfg.Placement, calendar, campus, policy, logger),
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
		store:      newProposalStore(cfg.ProposalTTL),
	}
}

// Generate runs one placement batch over the term's exam sessions and keeps
// the result as a proposal until it is saved or expires.
func (s *ExamPlacementService) Generate(ctx context.Context, req dto.GenerateExamScheduleRequest) (*dto.GenerateExamScheduleResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule generation payload")
	}

	requests, err := s.sessions.ListByTerm(ctx, req.TermID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam sessions")
	}
	if len(requests) == 0 {
		return nil, appErrors.ErrNoExamSessions
	}
	rooms, err := s.rooms.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam rooms")
	}
	windows, err := s.windows.ListByTerm(ctx, req.TermID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam windows")
	}

	started := time.Now()
	schedule, err := s.engine.Run(ctx, requests, rooms, windows)
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	if s.metrics != nil {
		s.metrics.ObservePlacementRun(len(schedule.Placements), len(schedule.Unplaced), time.Since(started))
	}

	proposal := placementProposal{
		ProposalID:  uuid.NewString(),
		TermID:      req.TermID,
		Schedule:    schedule,
		Requested:   len(requests),
		RequestedAt: time.Now().UTC(),
		Meta:        req.Meta,
	}
	s.store.Save(proposal)

	return &dto.GenerateExamScheduleResponse{
		ProposalID: proposal.ProposalID,
		TermID:     req.TermID,
		Placements: schedule.Placements,
		Unplaced:   schedule.Unplaced,
		Stats: dto.PlacementRunStats{
			Requested: len(requests),
			Placed:    len(schedule.Placements),
			Unplaced:  len(schedule.Unplaced),
		},
	}, nil
}

// Save persists a generated proposal as a versioned schedule record.
func (s *ExamPlacementService) Save(ctx context.Context, req dto.SaveExamScheduleRequest) (string, error) {
	if err := s.validator.Struct(req); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid save schedule payload")
	}
	proposal, ok := s.store.Get(req.ProposalID)
	if !ok {
		return "", appErrors.ErrProposalExpired
	}
	if s.tx == nil {
		return "", appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	metaPayload := map[string]any{
		"requested": proposal.Requested,
		"placed":    len(proposal.Schedule.Placements),
		"unplaced":  len(proposal.Schedule.Unplaced),
		"generated": proposal.RequestedAt,
		"algorithm": "greedy_first_fit_v1",
	}
	for key, value := range proposal.Meta {
		metaPayload[key] = value
	}
	metaBytes, marshalErr := json.Marshal(metaPayload)
	if marshalErr != nil {
		err = appErrors.Wrap(marshalErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode schedule metadata")
		return "", err
	}

	record := &models.ExamScheduleRecord{
		TermID: proposal.TermID,
		Status: models.ExamScheduleStatusDraft,
		Meta:   types.JSONText(metaBytes),
	}
	if err = s.schedules.CreateVersioned(ctx, tx, record); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create schedule record")
		return "", err
	}

	if err = s.placements.BulkCreateWithTx(ctx, tx, record.ID, proposal.Schedule.Placements); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist placements")
		return "", err
	}
	if err = s.placements.BulkCreateUnplacedWithTx(ctx, tx, record.ID, proposal.Schedule.Unplaced); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist unplaced sections")
		return "", err
	}

	if req.Publish {
		if err = s.schedules.UpdateStatus(ctx, tx, record.ID, models.ExamScheduleStatusPublished); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish schedule")
			return "", err
		}
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit schedule transaction")
		return "", err
	}

	s.store.Delete(req.ProposalID)
	return record.ID, nil
}

// List returns stored schedule records for a term.
func (s *ExamPlacementService) List(ctx context.Context, query dto.ExamScheduleQuery) ([]models.ExamScheduleRecord, error) {
	if query.TermID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "termId is required")
	}
	list, err := s.schedules.ListByTerm(ctx, query.TermID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedules")
	}
	return list, nil
}

// Get returns a stored schedule with its placements and unplaced sections.
func (s *ExamPlacementService) Get(ctx context.Context, scheduleID string) (*dto.ExamScheduleDetail, error) {
	if scheduleID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "schedule id is required")
	}
	record, err := s.schedules.FindByID(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrScheduleNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	placements, err := s.placements.ListBySchedule(ctx, scheduleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list placements")
	}
	unplaced, err := s.placements.ListUnplacedBySchedule(ctx, scheduleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list unplaced sections")
	}
	return &dto.ExamScheduleDetail{Record: *record, Placements: placements, Unplaced: unplaced}, nil
}

// Delete removes a draft schedule version.
func (s *ExamPlacementService) Delete(ctx context.Context, scheduleID string) error {
	record, err := s.schedules.FindByID(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrScheduleNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	if record.Status != models.ExamScheduleStatusDraft {
		return appErrors.ErrScheduleNotDraft
	}
	if err := s.schedules.Delete(ctx, scheduleID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrScheduleNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete schedule")
	}
	return nil
}

// --- Proposal cache ---

type placementProposal struct {
	ProposalID  string
	TermID      string
	Schedule    *models.ExamSchedule
	Requested   int
	RequestedAt time.Time
	Meta        map[string]any
}

type proposalStore struct {
	ttl   time.Duration
	mu    sync.RWMutex
	items map[string]placementProposal
}

func newProposalStore(ttl time.Duration) *proposalStore {
	return &proposalStore{
		ttl:   ttl,
		items: make(map[string]placementProposal),
	}
}

func (s *proposalStore) Save(proposal placementProposal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[proposal.ProposalID] = proposal
}

func (s *proposalStore) Get(id string) (placementProposal, bool) {
	s.mu.RLock()
	proposal, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return placementProposal{}, false
	}
	if time.Since(proposal.RequestedAt) > s.ttl {
		s.Delete(id)
		return placementProposal{}, false
	}
	return proposal, true
}

func (s *proposalStore) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}
