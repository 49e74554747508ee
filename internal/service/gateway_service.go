package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/campuskit/exam-scheduler-api/internal/models"
)

type bookingReader interface {
	HasOverlap(ctx context.Context, kind models.BookingKind, refID, day string, startMinute, endMinute int) (bool, error)
}

type campusRouteReader interface {
	TravelMinutes(ctx context.Context, buildingA, buildingB string) (int, error)
}

type examPolicyReader interface {
	HasBlackout(ctx context.Context, day string, startMinute, endMinute int) (bool, error)
	HasProctorCoverage(ctx context.Context, department, day string, startMinute, endMinute int) (bool, error)
	AllowedDayParts(ctx context.Context, department string) ([]models.DayPart, error)
}

// dbCalendarGateway answers availability questions from the bookings table.
// Availability is the absence of an overlapping booking.
type dbCalendarGateway struct {
	bookings bookingReader
}

// NewCalendarGateway builds the booking-backed calendar gateway.
func NewCalendarGateway(bookings bookingReader) *dbCalendarGateway {
	return &dbCalendarGateway{bookings: bookings}
}

func (g *dbCalendarGateway) RoomAvailable(ctx context.Context, roomID, day string, startMinute, endMinute int) (bool, error) {
	taken, err := g.bookings.HasOverlap(ctx, models.BookingKindRoom, roomID, day, startMinute, endMinute)
	if err != nil {
		return false, fmt.Errorf("room availability lookup: %w", err)
	}
	return !taken, nil
}

func (g *dbCalendarGateway) InstructorAvailable(ctx context.Context, sectionID, day string, startMinute, endMinute int) (bool, error) {
	taken, err := g.bookings.HasOverlap(ctx, models.BookingKindInstructor, sectionID, day, startMinute, endMinute)
	if err != nil {
		return false, fmt.Errorf("instructor availability lookup: %w", err)
	}
	return !taken, nil
}

// cachedCampusGateway serves building-to-building travel times, caching the
// symmetric lookups in Redis. Cache misses fall through to the routes table;
// cache failures fall through too, they never fail a placement run.
type cachedCampusGateway struct {
	routes campusRouteReader
	redis  *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCampusGateway builds the route gateway. The Redis client is optional.
func NewCampusGateway(routes campusRouteReader, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *cachedCampusGateway {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &cachedCampusGateway{routes: routes, redis: rdb, ttl: ttl, logger: logger}
}

func (g *cachedCampusGateway) TravelMinutes(ctx context.Context, buildingA, buildingB string) (int, error) {
	if buildingA == buildingB {
		return 0, nil
	}

	key := travelCacheKey(buildingA, buildingB)
	if g.redis != nil {
		cached, err := g.redis.Get(ctx, key).Result()
		if err == nil {
			if minutes, convErr := strconv.Atoi(cached); convErr == nil {
				return minutes, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			g.logger.Warn("travel cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	minutes, err := g.routes.TravelMinutes(ctx, buildingA, buildingB)
	if err != nil {
		return 0, fmt.Errorf("campus route lookup: %w", err)
	}

	if g.redis != nil {
		if err := g.redis.Set(ctx, key, strconv.Itoa(minutes), g.ttl).Err(); err != nil {
			g.logger.Warn("travel cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return minutes, nil
}

// travelCacheKey orders the pair so A->B and B->A share one entry.
func travelCacheKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("campus:travel:%s:%s", a, b)
}

// dbPolicyGateway answers exam policy questions, caching each department's
// allowed day parts in Redis since they change rarely and are read per request.
type dbPolicyGateway struct {
	policies examPolicyReader
	redis    *redis.Client
	ttl      time.Duration
	logger   *zap.Logger
}

// NewPolicyGateway builds the policy gateway. The Redis client is optional.
func NewPolicyGateway(policies examPolicyReader, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *dbPolicyGateway {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &dbPolicyGateway{policies: policies, redis: rdb, ttl: ttl, logger: logger}
}

func (g *dbPolicyGateway) IsBlackout(ctx context.Context, day string, startMinute, endMinute int) (bool, error) {
	blackout, err := g.policies.HasBlackout(ctx, day, startMinute, endMinute)
	if err != nil {
		return false, fmt.Errorf("blackout lookup: %w", err)
	}
	return blackout, nil
}

func (g *dbPolicyGateway) ProctorAvailable(ctx context.Context, department, day string, startMinute, endMinute int) (bool, error) {
	covered, err := g.policies.HasProctorCoverage(ctx, department, day, startMinute, endMinute)
	if err != nil {
		return false, fmt.Errorf("proctor coverage lookup: %w", err)
	}
	return covered, nil
}

func (g *dbPolicyGateway) AllowedDayParts(ctx context.Context, department string) ([]models.DayPart, error) {
	key := "policy:dayparts:" + department
	if g.redis != nil {
		cached, err := g.redis.Get(ctx, key).Result()
		if err == nil && cached != "" {
			return parseDayParts(cached), nil
		}
		if err != nil && !errors.Is(err, redis.Nil) {
			g.logger.Warn("day part cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	parts, err := g.policies.AllowedDayParts(ctx, department)
	if err != nil {
		return nil, fmt.Errorf("allowed day parts lookup: %w", err)
	}

	if g.redis != nil && len(parts) > 0 {
		if err := g.redis.Set(ctx, key, joinDayParts(parts), g.ttl).Err(); err != nil {
			g.logger.Warn("day part cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return parts, nil
}

func parseDayParts(raw string) []models.DayPart {
	fields := strings.Split(raw, ",")
	parts := make([]models.DayPart, 0, len(fields))
	for _, field := range fields {
		if field = strings.TrimSpace(field); field != "" {
			parts = append(parts, models.DayPart(field))
		}
	}
	return parts
}

func joinDayParts(parts []models.DayPart) string {
	fields := make([]string, 0, len(parts))
	for _, part := range parts {
		fields = append(fields, string(part))
	}
	return strings.Join(fields, ",")
}
