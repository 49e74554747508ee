package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/campuskit/exam-scheduler-api/internal/models"
)

// ExamWindowRepository reads the candidate day/time windows for a term.
type ExamWindowRepository struct {
	db *sqlx.DB
}

// NewExamWindowRepository constructs the repository.
func NewExamWindowRepository(db *sqlx.DB) *ExamWindowRepository {
	return &ExamWindowRepository{db: db}
}

// ListByTerm returns the term's exam windows in calendar order.
func (r *ExamWindowRepository) ListByTerm(ctx context.Context, termID string) ([]models.ExamWindow, error) {
	const query = `SELECT day, day_part, start_minute, end_minute
FROM exam_windows WHERE term_id = $1 ORDER BY day ASC, start_minute ASC`
	windows := make([]models.ExamWindow, 0)
	if err := r.db.SelectContext(ctx, &windows, query, termID); err != nil {
		return nil, fmt.Errorf("list exam windows: %w", err)
	}
	return windows, nil
}
