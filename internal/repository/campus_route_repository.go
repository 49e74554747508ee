package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// CampusRouteRepository reads building-to-building travel times.
type CampusRouteRepository struct {
	db *sqlx.DB
}

// NewCampusRouteRepository constructs the repository.
func NewCampusRouteRepository(db *sqlx.DB) *CampusRouteRepository {
	return &CampusRouteRepository{db: db}
}

// TravelMinutes returns the walking time between two buildings. Routes are
// stored once per pair; the lookup matches either direction. An unknown pair
// reads as zero so the engine falls back to its configured minimum.
func (r *CampusRouteRepository) TravelMinutes(ctx context.Context, buildingA, buildingB string) (int, error) {
	const query = `SELECT minutes FROM campus_routes
WHERE (building_a = $1 AND building_b = $2) OR (building_a = $2 AND building_b = $1)
LIMIT 1`
	var minutes int
	if err := r.db.GetContext(ctx, &minutes, query, buildingA, buildingB); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("campus route lookup: %w", err)
	}
	return minutes, nil
}
