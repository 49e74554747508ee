package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campuskit/exam-scheduler-api/internal/models"
)

// ExamPlacementRepository persists placement rows for stored schedules.
type ExamPlacementRepository struct {
	db *sqlx.DB
}

// NewExamPlacementRepository constructs the repository.
func NewExamPlacementRepository(db *sqlx.DB) *ExamPlacementRepository {
	return &ExamPlacementRepository{db: db}
}

// BulkCreateWithTx inserts every placement of a run inside the caller's
// transaction.
func (r *ExamPlacementRepository) BulkCreateWithTx(ctx context.Context, tx *sqlx.Tx, scheduleID string, placements []models.ExamPlacement) error {
	if len(placements) == 0 {
		return nil
	}
	const query = `
INSERT INTO exam_placements (id, schedule_id, section_id, course_id, department, room_id, building, day, start_minute, end_minute, day_part, created_at)
VALUES (:id, :schedule_id, :section_id, :course_id, :department, :room_id, :building, :day, :start_minute, :end_minute, :day_part, :created_at)`

	now := time.Now().UTC()
	rows := make([]models.ExamPlacementRow, 0, len(placements))
	for _, p := range placements {
		rows = append(rows, models.ExamPlacementRow{
			ID:          uuid.NewString(),
			ScheduleID:  scheduleID,
			SectionID:   p.SectionID,
			CourseID:    p.CourseID,
			Department:  p.Department,
			RoomID:      p.RoomID,
			Building:    p.Building,
			Day:         p.Day,
			StartMinute: p.StartMinute,
			EndMinute:   p.EndMinute,
			DayPart:     p.DayPart,
			CreatedAt:   now,
		})
	}
	if _, err := tx.NamedExecContext(ctx, query, rows); err != nil {
		return fmt.Errorf("bulk insert exam placements: %w", err)
	}
	return nil
}

// BulkCreateUnplacedWithTx records the sections a run could not place.
func (r *ExamPlacementRepository) BulkCreateUnplacedWithTx(ctx context.Context, tx *sqlx.Tx, scheduleID string, sectionIDs []string) error {
	if len(sectionIDs) == 0 {
		return nil
	}
	const query = `
INSERT INTO exam_unplaced (id, schedule_id, section_id, created_at)
VALUES (:id, :schedule_id, :section_id, :created_at)`

	now := time.Now().UTC()
	rows := make([]models.UnplacedExamRow, 0, len(sectionIDs))
	for _, sectionID := range sectionIDs {
		rows = append(rows, models.UnplacedExamRow{
			ID:         uuid.NewString(),
			ScheduleID: scheduleID,
			SectionID:  sectionID,
			CreatedAt:  now,
		})
	}
	if _, err := tx.NamedExecContext(ctx, query, rows); err != nil {
		return fmt.Errorf("bulk insert unplaced sections: %w", err)
	}
	return nil
}

// ListBySchedule returns stored placements ordered by day and start time.
func (r *ExamPlacementRepository) ListBySchedule(ctx context.Context, scheduleID string) ([]models.ExamPlacementRow, error) {
	const query = `SELECT id, schedule_id, section_id, course_id, department, room_id, building, day, start_minute, end_minute, day_part, created_at
FROM exam_placements WHERE schedule_id = $1 ORDER BY day ASC, start_minute ASC, section_id ASC`
	var rows []models.ExamPlacementRow
	if err := r.db.SelectContext(ctx, &rows, query, scheduleID); err != nil {
		return nil, fmt.Errorf("list exam placements: %w", err)
	}
	return rows, nil
}

// ListUnplacedBySchedule returns the unplaced section ids for a schedule.
func (r *ExamPlacementRepository) ListUnplacedBySchedule(ctx context.Context, scheduleID string) ([]string, error) {
	const query = `SELECT section_id FROM exam_unplaced WHERE schedule_id = $1 ORDER BY section_id ASC`
	var sections []string
	if err := r.db.SelectContext(ctx, &sections, query, scheduleID); err != nil {
		return nil, fmt.Errorf("list unplaced sections: %w", err)
	}
	return sections, nil
}
