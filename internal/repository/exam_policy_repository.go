package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/campuskit/exam-scheduler-api/internal/models"
)

// ExamPolicyRepository reads blackout windows, proctor shifts and department
// scheduling policies.
type ExamPolicyRepository struct {
	db *sqlx.DB
}

// NewExamPolicyRepository constructs the repository.
func NewExamPolicyRepository(db *sqlx.DB) *ExamPolicyRepository {
	return &ExamPolicyRepository{db: db}
}

// HasBlackout reports whether any blackout window intersects the span.
func (r *ExamPolicyRepository) HasBlackout(ctx context.Context, day string, startMinute, endMinute int) (bool, error) {
	const query = `SELECT EXISTS (
SELECT 1 FROM exam_blackouts
WHERE day = $1 AND start_minute < $3 AND end_minute > $2)`
	var blocked bool
	if err := r.db.GetContext(ctx, &blocked, query, day, startMinute, endMinute); err != nil {
		return false, fmt.Errorf("blackout lookup: %w", err)
	}
	return blocked, nil
}

// HasProctorCoverage reports whether a proctor shift for the department fully
// covers the span.
func (r *ExamPolicyRepository) HasProctorCoverage(ctx context.Context, department, day string, startMinute, endMinute int) (bool, error) {
	const query = `SELECT EXISTS (
SELECT 1 FROM proctor_shifts
WHERE department = $1 AND day = $2 AND start_minute <= $3 AND end_minute >= $4)`
	var covered bool
	if err := r.db.GetContext(ctx, &covered, query, department, day, startMinute, endMinute); err != nil {
		return false, fmt.Errorf("proctor coverage lookup: %w", err)
	}
	return covered, nil
}

// AllowedDayParts returns the day parts the department may examine in. A
// department with no policy rows may use every day part.
func (r *ExamPolicyRepository) AllowedDayParts(ctx context.Context, department string) ([]models.DayPart, error) {
	const query = `SELECT day_part FROM department_day_parts WHERE department = $1 ORDER BY day_part ASC`
	var parts []models.DayPart
	if err := r.db.SelectContext(ctx, &parts, query, department); err != nil {
		return nil, fmt.Errorf("allowed day parts lookup: %w", err)
	}
	if len(parts) == 0 {
		return []models.DayPart{models.DayPartMorning, models.DayPartAfternoon, models.DayPartEvening}, nil
	}
	return parts, nil
}
