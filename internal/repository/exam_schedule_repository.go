package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/campuskit/exam-scheduler-api/internal/models"
)

// ExamScheduleRepository persists versioned exam schedules.
type ExamScheduleRepository struct {
	db *sqlx.DB
}

// NewExamScheduleRepository constructs the repository.
func NewExamScheduleRepository(db *sqlx.DB) *ExamScheduleRepository {
	return &ExamScheduleRepository{db: db}
}

func (r *ExamScheduleRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// CreateVersioned inserts a schedule assigning the next version for the term.
func (r *ExamScheduleRepository) CreateVersioned(ctx context.Context, exec sqlx.ExtContext, record *models.ExamScheduleRecord) error {
	if record == nil {
		return fmt.Errorf("schedule payload is nil")
	}
	if record.TermID == "" {
		return fmt.Errorf("term_id is required")
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Status == "" {
		record.Status = models.ExamScheduleStatusDraft
	}
	if len(record.Meta) == 0 {
		record.Meta = types.JSONText(`{}`)
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	target := r.exec(exec)

	const nextVersionQuery = `SELECT COALESCE(MAX(version), 0) + 1 FROM exam_schedules WHERE term_id = $1`
	if err := sqlx.GetContext(ctx, target, &record.Version, nextVersionQuery, record.TermID); err != nil {
		return fmt.Errorf("compute next exam schedule version: %w", err)
	}

	const insertQuery = `
INSERT INTO exam_schedules (id, term_id, version, status, meta, created_at, updated_at)
VALUES (:id, :term_id, :version, :status, :meta, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, target, insertQuery, record); err != nil {
		return fmt.Errorf("insert exam schedule: %w", err)
	}
	return nil
}

// ListByTerm returns all schedule versions for a term, newest first.
func (r *ExamScheduleRepository) ListByTerm(ctx context.Context, termID string) ([]models.ExamScheduleRecord, error) {
	const query = `SELECT id, term_id, version, status, meta, created_at, updated_at
FROM exam_schedules WHERE term_id = $1 ORDER BY version DESC`
	var records []models.ExamScheduleRecord
	if err := r.db.SelectContext(ctx, &records, query, termID); err != nil {
		return nil, fmt.Errorf("list exam schedules: %w", err)
	}
	return records, nil
}

// FindByID loads a schedule by its identifier.
func (r *ExamScheduleRepository) FindByID(ctx context.Context, id string) (*models.ExamScheduleRecord, error) {
	const query = `SELECT id, term_id, version, status, meta, created_at, updated_at FROM exam_schedules WHERE id = $1`
	var record models.ExamScheduleRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}
	return &record, nil
}

// UpdateStatus transitions a stored schedule's lifecycle state.
func (r *ExamScheduleRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.ExamScheduleStatus) error {
	const query = `UPDATE exam_schedules SET status = $2, updated_at = $3 WHERE id = $1`
	result, err := r.exec(exec).ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update exam schedule status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update exam schedule status: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a stored schedule version and its rows.
func (r *ExamScheduleRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM exam_schedules WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete exam schedule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete exam schedule: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
