package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/campuskit/exam-scheduler-api/internal/models"
)

// ExamRoomRepository reads the bookable exam rooms.
type ExamRoomRepository struct {
	db *sqlx.DB
}

// NewExamRoomRepository constructs the repository.
func NewExamRoomRepository(db *sqlx.DB) *ExamRoomRepository {
	return &ExamRoomRepository{db: db}
}

// ListActive returns all rooms currently open for exam use.
func (r *ExamRoomRepository) ListActive(ctx context.Context) ([]models.ExamRoom, error) {
	const query = `SELECT id, building, category, capacity, has_computers, accessible
FROM exam_rooms WHERE active = TRUE ORDER BY id ASC`
	rooms := make([]models.ExamRoom, 0)
	if err := r.db.SelectContext(ctx, &rooms, query); err != nil {
		return nil, fmt.Errorf("list exam rooms: %w", err)
	}
	return rooms, nil
}
