package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/campuskit/exam-scheduler-api/internal/models"
)

// BookingRepository queries the shared campus calendar.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository constructs the repository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// HasOverlap reports whether any booking of the given kind occupies the
// resource during the span. Half-open interval semantics: a booking ending
// exactly at start does not overlap.
func (r *BookingRepository) HasOverlap(ctx context.Context, kind models.BookingKind, refID, day string, startMinute, endMinute int) (bool, error) {
	const query = `SELECT EXISTS (
SELECT 1 FROM bookings
WHERE kind = $1 AND resource_id = $2 AND day = $3 AND start_minute < $5 AND end_minute > $4)`
	var taken bool
	if err := r.db.GetContext(ctx, &taken, query, kind, refID, day, startMinute, endMinute); err != nil {
		return false, fmt.Errorf("booking overlap lookup: %w", err)
	}
	return taken, nil
}

// Create inserts a booking row.
func (r *BookingRepository) Create(ctx context.Context, booking *models.Booking) error {
	const query = `INSERT INTO bookings (id, kind, resource_id, day, start_minute, end_minute)
VALUES (:id, :kind, :resource_id, :day, :start_minute, :end_minute)`
	if _, err := r.db.NamedExecContext(ctx, query, booking); err != nil {
		return fmt.Errorf("create booking: %w", err)
	}
	return nil
}
