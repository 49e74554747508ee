package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/campuskit/exam-scheduler-api/internal/models"
)

// ExamSessionRepository reads the exam sittings registered for a term.
type ExamSessionRepository struct {
	db *sqlx.DB
}

// NewExamSessionRepository constructs the repository.
func NewExamSessionRepository(db *sqlx.DB) *ExamSessionRepository {
	return &ExamSessionRepository{db: db}
}

// ListByTerm returns every exam request registered for the term in input
// order. The placement run relies on this order for tie-breaking, so the sort
// key is part of the contract.
func (r *ExamSessionRepository) ListByTerm(ctx context.Context, termID string) ([]models.ExamRequest, error) {
	const query = `SELECT section_id, course_id, department, headcount, needs_accessible, needs_computers, preferred_day_part, duration_minutes, prior_section_id
FROM exam_sessions WHERE term_id = $1 ORDER BY created_at ASC, section_id ASC`
	requests := make([]models.ExamRequest, 0)
	if err := r.db.SelectContext(ctx, &requests, query, termID); err != nil {
		return nil, fmt.Errorf("list exam sessions: %w", err)
	}
	return requests, nil
}
