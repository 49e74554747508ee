package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campuskit/exam-scheduler-api/internal/models"
	appErrors "github.com/campuskit/exam-scheduler-api/pkg/errors"
)

func TestPlacementEngineRunPlacesExactFit(t *testing.T) {
	engine, _ := newEngineFixture(engineFixtureConfig{})

	requests := []models.ExamRequest{
		{SectionID: "calc-101", CourseID: "MATH101", Department: "MATH", Headcount: 30, DurationMinutes: 90, PreferredDayPart: models.DayPartMorning},
	}
	rooms := []models.ExamRoom{
		{ID: "room-a", Building: "North", Category: models.RoomCategoryStandard, Capacity: 30},
	}
	windows := []models.ExamWindow{
		{Day: "2026-06-01", DayPart: models.DayPartMorning, StartMinute: 540, EndMinute: 660},
	}

	schedule, err := engine.Run(context.Background(), requests, rooms, windows)
	require.NoError(t, err)
	require.Len(t, schedule.Placements, 1)
	assert.Empty(t, schedule.Unplaced)

	placed := schedule.Placements[0]
	assert.Equal(t, "calc-101", placed.SectionID)
	assert.Equal(t, "room-a", placed.RoomID)
	assert.Equal(t, 540, placed.StartMinute)
	assert.Equal(t, 630, placed.EndMinute)
	assert.Equal(t, models.DayPartMorning, placed.DayPart)
}

func TestPlacementEngineRunRejectsNilCollections(t *testing.T) {
	engine, _ := newEngineFixture(engineFixtureConfig{})

	_, err := engine.Run(context.Background(), []models.ExamRequest{}, nil, []models.ExamWindow{})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestPlacementEngineSameDepartmentOverlap(t *testing.T) {
	engine, _ := newEngineFixture(engineFixtureConfig{})

	requests := []models.ExamRequest{
		{SectionID: "phys-201", CourseID: "PHYS201", Department: "PHYS", Headcount: 40, DurationMinutes: 120},
		{SectionID: "phys-202", CourseID: "PHYS202", Department: "PHYS", Headcount: 40, DurationMinutes: 120},
	}
	rooms := []models.ExamRoom{
		{ID: "room-a", Building: "North", Category: models.RoomCategoryStandard, Capacity: 60},
		{ID: "room-b", Building: "North", Category: models.RoomCategoryStandard, Capacity: 60},
	}
	windows := []models.ExamWindow{
		{Day: "2026-06-01", DayPart: models.DayPartMorning, StartMinute: 540, EndMinute: 720},
	}

	schedule, err := engine.Run(context.Background(), requests, rooms, windows)
	require.NoError(t, err)
	assert.Len(t, schedule.Placements, 1)
	require.Len(t, schedule.Unplaced, 1)
	assert.Equal(t, "phys-202", schedule.Unplaced[0])
}

func TestPlacementEngineStaticFitFailureSkipsGateways(t *testing.T) {
	engine, stubs := newEngineFixture(engineFixtureConfig{})

	requests := []models.ExamRequest{
		{SectionID: "bio-300", CourseID: "BIO300", Department: "BIO", Headcount: 200, DurationMinutes: 90},
	}
	rooms := []models.ExamRoom{
		{ID: "room-a", Building: "North", Category: models.RoomCategoryStandard, Capacity: 50},
		{ID: "room-b", Building: "South", Category: models.RoomCategoryStandard, Capacity: 80},
	}
	windows := []models.ExamWindow{
		{Day: "2026-06-01", DayPart: models.DayPartMorning, StartMinute: 540, EndMinute: 660},
		{Day: "2026-06-02", DayPart: models.DayPartAfternoon, StartMinute: 780, EndMinute: 900},
	}

	schedule, err := engine.Run(context.Background(), requests, rooms, windows)
	require.NoError(t, err)
	assert.Empty(t, schedule.Placements)
	require.Len(t, schedule.Unplaced, 1)
	assert.Equal(t, "bio-300", schedule.Unplaced[0])
	assert.Zero(t, stubs.calendar.roomCalls, "capacity failures must not reach the calendar")
	assert.Zero(t, stubs.calendar.instructorCalls)
}

func TestPlacementEngineTravelGapRejectsTightBackToBack(t *testing.T) {
	engine, stubs := newEngineFixture(engineFixtureConfig{
		travel: func(a, b string) int {
			if a == b {
				return 0
			}
			return 60
		},
	})

	prior := "calc-101"
	requests := []models.ExamRequest{
		{SectionID: "calc-101", CourseID: "MATH101", Department: "MATH", Headcount: 100, DurationMinutes: 90, PreferredDayPart: models.DayPartMorning},
		{SectionID: "stat-210", CourseID: "STAT210", Department: "STAT", Headcount: 20, DurationMinutes: 60, PreferredDayPart: models.DayPartAfternoon, NeedsComputers: true, PriorSectionID: &prior},
	}
	rooms := []models.ExamRoom{
		{ID: "room-a", Building: "North", Category: models.RoomCategoryStandard, Capacity: 100},
		{ID: "room-b", Building: "South", Category: models.RoomCategoryStandard, Capacity: 40, HasComputers: true},
	}
	windows := []models.ExamWindow{
		{Day: "2026-06-01", DayPart: models.DayPartMorning, StartMinute: 540, EndMinute: 720},
		{Day: "2026-06-01", DayPart: models.DayPartAfternoon, StartMinute: 700, EndMinute: 820},
		{Day: "2026-06-01", DayPart: models.DayPartAfternoon, StartMinute: 840, EndMinute: 960},
	}

	schedule, err := engine.Run(context.Background(), requests, rooms, windows)
	require.NoError(t, err)
	require.Len(t, schedule.Placements, 2)
	assert.Empty(t, schedule.Unplaced)

	// Prior exam ends 10:30 in North. The 11:40 window leaves a 45-minute gap
	// after buffers, short of the 60-minute crossing, so the later window wins.
	follow := schedule.Placements[1]
	assert.Equal(t, "stat-210", follow.SectionID)
	assert.Equal(t, "room-b", follow.RoomID)
	assert.Equal(t, 840, follow.StartMinute)
	assert.Equal(t, 900, follow.EndMinute)
	assert.Equal(t, 2, stubs.campus.calls)
}

func TestPlacementEngineTryBudgetBoundsSearch(t *testing.T) {
	engine, stubs := newEngineFixture(engineFixtureConfig{
		roomAvailable: func(roomID, day string, start, end int) bool { return false },
	})

	requests := []models.ExamRequest{
		{SectionID: "chem-110", CourseID: "CHEM110", Department: "CHEM", Headcount: 25, DurationMinutes: 60},
	}
	rooms := make([]models.ExamRoom, 0, 5)
	for _, id := range []string{"r1", "r2", "r3", "r4", "r5"} {
		rooms = append(rooms, models.ExamRoom{ID: id, Building: "North", Category: models.RoomCategoryStandard, Capacity: 50})
	}
	windows := make([]models.ExamWindow, 0, 5)
	for day := 1; day <= 5; day++ {
		windows = append(windows, models.ExamWindow{
			Day:         fmt.Sprintf("2026-06-%02d", day),
			DayPart:     models.DayPartMorning,
			StartMinute: 540,
			EndMinute:   660,
		})
	}

	schedule, err := engine.Run(context.Background(), requests, rooms, windows)
	require.NoError(t, err)
	assert.Empty(t, schedule.Placements)
	assert.Equal(t, []string{"chem-110"}, schedule.Unplaced)
	assert.Equal(t, 12, stubs.calendar.roomCalls, "search must stop at the try budget, not exhaust all 25 pairs")
}

func TestPlacementEngineDeterministicAcrossRuns(t *testing.T) {
	requests := []models.ExamRequest{
		{SectionID: "hist-101", CourseID: "HIST101", Department: "HIST", Headcount: 40, DurationMinutes: 90},
		{SectionID: "hist-102", CourseID: "HIST102", Department: "HIST", Headcount: 40, DurationMinutes: 90},
		{SectionID: "econ-201", CourseID: "ECON201", Department: "ECON", Headcount: 40, DurationMinutes: 90},
		{SectionID: "art-110", CourseID: "ART110", Department: "ART", Headcount: 15, DurationMinutes: 60},
	}
	rooms := []models.ExamRoom{
		{ID: "room-a", Building: "North", Category: models.RoomCategoryStandard, Capacity: 60},
		{ID: "room-b", Building: "South", Category: models.RoomCategoryAuditorium, Capacity: 150},
	}
	windows := []models.ExamWindow{
		{Day: "2026-06-01", DayPart: models.DayPartMorning, StartMinute: 540, EndMinute: 660},
		{Day: "2026-06-01", DayPart: models.DayPartAfternoon, StartMinute: 780, EndMinute: 900},
		{Day: "2026-06-02", DayPart: models.DayPartMorning, StartMinute: 540, EndMinute: 660},
		{Day: "2026-06-02", DayPart: models.DayPartEvening, StartMinute: 1020, EndMinute: 1140},
	}

	engine, _ := newEngineFixture(engineFixtureConfig{})
	first, err := engine.Run(context.Background(), requests, rooms, windows)
	require.NoError(t, err)
	second, err := engine.Run(context.Background(), requests, rooms, windows)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Equal headcount and department keep input order: hist-101 before hist-102.
	idx := map[string]int{}
	for i, p := range first.Placements {
		idx[p.SectionID] = i
	}
	assert.Less(t, idx["hist-101"], idx["hist-102"])
}

func TestPlacementEngineNeverDoubleBooksRoom(t *testing.T) {
	engine, _ := newEngineFixture(engineFixtureConfig{})

	requests := []models.ExamRequest{
		{SectionID: "eng-101", CourseID: "ENG101", Department: "ENG", Headcount: 30, DurationMinutes: 90},
		{SectionID: "lit-101", CourseID: "LIT101", Department: "LIT", Headcount: 30, DurationMinutes: 90},
	}
	rooms := []models.ExamRoom{
		{ID: "room-a", Building: "North", Category: models.RoomCategoryStandard, Capacity: 40},
	}
	windows := []models.ExamWindow{
		{Day: "2026-06-01", DayPart: models.DayPartMorning, StartMinute: 540, EndMinute: 720},
		{Day: "2026-06-02", DayPart: models.DayPartMorning, StartMinute: 540, EndMinute: 720},
	}

	schedule, err := engine.Run(context.Background(), requests, rooms, windows)
	require.NoError(t, err)
	require.Len(t, schedule.Placements, 2)
	assert.Empty(t, schedule.Unplaced)
	assert.NotEqual(t, schedule.Placements[0].Day, schedule.Placements[1].Day)
}

func TestPlacementEngineFiltersBlackoutWindows(t *testing.T) {
	engine, _ := newEngineFixture(engineFixtureConfig{
		blackout: func(day string, start, end int) bool { return day == "2026-06-01" },
	})

	requests := []models.ExamRequest{
		{SectionID: "geo-101", CourseID: "GEO101", Department: "GEO", Headcount: 20, DurationMinutes: 60},
	}
	rooms := []models.ExamRoom{
		{ID: "room-a", Building: "North", Category: models.RoomCategoryStandard, Capacity: 40},
	}
	windows := []models.ExamWindow{
		{Day: "2026-06-01", DayPart: models.DayPartMorning, StartMinute: 540, EndMinute: 660},
		{Day: "2026-06-02", DayPart: models.DayPartMorning, StartMinute: 540, EndMinute: 660},
	}

	schedule, err := engine.Run(context.Background(), requests, rooms, windows)
	require.NoError(t, err)
	require.Len(t, schedule.Placements, 1)
	assert.Equal(t, "2026-06-02", schedule.Placements[0].Day)
}

func TestPlacementEngineHonoursAllowedDayParts(t *testing.T) {
	engine, _ := newEngineFixture(engineFixtureConfig{
		allowedParts: []models.DayPart{models.DayPartEvening},
	})

	requests := []models.ExamRequest{
		{SectionID: "night-101", CourseID: "NT101", Department: "CONT-ED", Headcount: 20, DurationMinutes: 60, PreferredDayPart: models.DayPartMorning},
	}
	rooms := []models.ExamRoom{
		{ID: "room-a", Building: "North", Category: models.RoomCategoryStandard, Capacity: 40},
	}
	windows := []models.ExamWindow{
		{Day: "2026-06-01", DayPart: models.DayPartMorning, StartMinute: 540, EndMinute: 660},
		{Day: "2026-06-01", DayPart: models.DayPartEvening, StartMinute: 1020, EndMinute: 1140},
	}

	schedule, err := engine.Run(context.Background(), requests, rooms, windows)
	require.NoError(t, err)
	require.Len(t, schedule.Placements, 1)
	assert.Equal(t, models.DayPartEvening, schedule.Placements[0].DayPart)
}

func TestOrderRequestsLargestFirstThenDepartment(t *testing.T) {
	requests := []models.ExamRequest{
		{SectionID: "s1", Department: "PHYS", Headcount: 30},
		{SectionID: "s2", Department: "MATH", Headcount: 80},
		{SectionID: "s3", Department: "ART", Headcount: 30},
		{SectionID: "s4", Department: "PHYS", Headcount: 30},
	}

	ordered := orderRequests(requests)
	got := make([]string, 0, len(ordered))
	for _, r := range ordered {
		got = append(got, r.SectionID)
	}
	assert.Equal(t, []string{"s2", "s3", "s1", "s4"}, got)
	// Input slice is untouched.
	assert.Equal(t, "s1", requests[0].SectionID)
}

func TestScoreWindowFairnessRotation(t *testing.T) {
	engine, _ := newEngineFixture(engineFixtureConfig{})
	morning := models.ExamWindow{DayPart: models.DayPartMorning, StartMinute: 540, EndMinute: 660}
	req := models.ExamRequest{Department: "MATH", PreferredDayPart: models.DayPartMorning}

	ledger := make(fairnessLedger)
	// Count 0: rotation penalty applies. 20 preferred - 10 rotation.
	assert.Equal(t, 10, engine.scoreWindow(req, morning, false, ledger))

	ledger.Record("MATH", models.DayPartMorning)
	// Count 1: prime bonus instead. 20 + 5.
	assert.Equal(t, 25, engine.scoreWindow(req, morning, false, ledger))

	ledger.Record("MATH", models.DayPartAfternoon)
	assert.Equal(t, 25, engine.scoreWindow(req, morning, false, ledger))

	ledger.Record("MATH", models.DayPartMorning)
	// Count 3: the penalty comes back around.
	assert.Equal(t, 10, engine.scoreWindow(req, morning, false, ledger))

	// Evening placements never advance the rotation.
	ledger.Record("MATH", models.DayPartEvening)
	assert.Equal(t, 3, ledger.Count("MATH"))
}

// One department, seven exams, a morning and an evening window per day.
// Mornings are prime; the rotation penalty lands whenever the department's
// prime count is a multiple of the span, so flexible exams get steered to
// evening at counts 0 and 3 while preferring exams push the counter forward.
func TestPlacementEngineRotationSteersEveryThirdPrimePlacement(t *testing.T) {
	engine, _ := newEngineFixture(engineFixtureConfig{})

	requests := []models.ExamRequest{
		{SectionID: "hist-101", CourseID: "HIST101", Department: "HIST", Headcount: 30, DurationMinutes: 60},
		{SectionID: "hist-102", CourseID: "HIST102", Department: "HIST", Headcount: 30, DurationMinutes: 60, PreferredDayPart: models.DayPartMorning},
		{SectionID: "hist-103", CourseID: "HIST103", Department: "HIST", Headcount: 30, DurationMinutes: 60},
		{SectionID: "hist-104", CourseID: "HIST104", Department: "HIST", Headcount: 30, DurationMinutes: 60},
		{SectionID: "hist-105", CourseID: "HIST105", Department: "HIST", Headcount: 30, DurationMinutes: 60},
		{SectionID: "hist-106", CourseID: "HIST106", Department: "HIST", Headcount: 30, DurationMinutes: 60, PreferredDayPart: models.DayPartMorning},
		{SectionID: "hist-107", CourseID: "HIST107", Department: "HIST", Headcount: 30, DurationMinutes: 60},
	}
	rooms := []models.ExamRoom{
		{ID: "room-a", Building: "North", Category: models.RoomCategoryStandard, Capacity: 40},
	}
	windows := make([]models.ExamWindow, 0, 14)
	for day := 1; day <= 7; day++ {
		date := fmt.Sprintf("2026-06-%02d", day)
		windows = append(windows,
			models.ExamWindow{Day: date, DayPart: models.DayPartMorning, StartMinute: 540, EndMinute: 660},
			models.ExamWindow{Day: date, DayPart: models.DayPartEvening, StartMinute: 1020, EndMinute: 1140},
		)
	}

	schedule, err := engine.Run(context.Background(), requests, rooms, windows)
	require.NoError(t, err)
	require.Len(t, schedule.Placements, 7)
	assert.Empty(t, schedule.Unplaced)

	parts := make([]models.DayPart, 0, len(schedule.Placements))
	for _, p := range schedule.Placements {
		parts = append(parts, p.DayPart)
	}
	want := []models.DayPart{
		models.DayPartEvening, // hist-101: prime count 0, penalty steers it off
		models.DayPartMorning, // hist-102: preference outweighs the penalty
		models.DayPartMorning, // hist-103: count 1, prime bonus
		models.DayPartMorning, // hist-104: count 2, prime bonus
		models.DayPartEvening, // hist-105: count 3, penalty comes back around
		models.DayPartMorning, // hist-106: preference again
		models.DayPartMorning, // hist-107: count 4, prime bonus
	}
	assert.Equal(t, want, parts)

	evenings := 0
	for _, part := range parts {
		if part == models.DayPartEvening {
			evenings++
		}
	}
	assert.Equal(t, 2, evenings, "one exam in each rotation span should yield its prime slot")
}

func TestScoreWindowAccessibilityBonus(t *testing.T) {
	engine, _ := newEngineFixture(engineFixtureConfig{})
	ledger := fairnessLedger{"NURS": 1}
	req := models.ExamRequest{Department: "NURS", NeedsAccessible: true}

	morning := models.ExamWindow{DayPart: models.DayPartMorning}
	evening := models.ExamWindow{DayPart: models.DayPartEvening}
	assert.Equal(t, 13, engine.scoreWindow(req, morning, false, ledger))
	assert.Equal(t, 0, engine.scoreWindow(req, evening, false, ledger))
}

func TestScoreRoomHeadroomAndEquipment(t *testing.T) {
	req := models.ExamRequest{Headcount: 20, NeedsAccessible: true, NeedsComputers: true}

	snug := models.ExamRoom{Capacity: 25, Accessible: true, HasComputers: true}
	assert.Equal(t, 26, scoreRoom(req, snug))

	// Headroom is capped so cavernous rooms do not dominate.
	vast := models.ExamRoom{Capacity: 500}
	assert.Equal(t, 30, scoreRoom(req, vast))

	plain := models.ExamRoom{Capacity: 30}
	assert.Equal(t, 2, scoreRoom(req, plain))
}

func TestRankRoomsFiltersCategories(t *testing.T) {
	engine, _ := newEngineFixture(engineFixtureConfig{})
	req := models.ExamRequest{Headcount: 10}
	rooms := []models.ExamRoom{
		{ID: "lab", Category: models.RoomCategoryLab, Capacity: 40},
		{ID: "std", Category: models.RoomCategoryStandard, Capacity: 40},
		{ID: "sem", Category: models.RoomCategorySeminar, Capacity: 40},
	}

	ranked := engine.rankRooms(req, rooms)
	require.Len(t, ranked, 1)
	assert.Equal(t, "std", ranked[0].ID)
}

// --- Fixtures ---

type engineFixtureConfig struct {
	cfg           PlacementConfig
	roomAvailable func(roomID, day string, start, end int) bool
	instructor    func(sectionID, day string, start, end int) bool
	travel        func(a, b string) int
	blackout      func(day string, start, end int) bool
	proctor       func(department, day string, start, end int) bool
	allowedParts  []models.DayPart
}

type engineStubs struct {
	calendar *calendarGatewayStub
	campus   *campusGatewayStub
	policy   *policyGatewayStub
}

func newEngineFixture(cfg engineFixtureConfig) (*placementEngine, *engineStubs) {
	stubs := &engineStubs{
		calendar: &calendarGatewayStub{room: cfg.roomAvailable, instructor: cfg.instructor},
		campus:   &campusGatewayStub{travel: cfg.travel},
		policy:   &policyGatewayStub{blackout: cfg.blackout, proctor: cfg.proctor, allowed: cfg.allowedParts},
	}
	engine := newPlacementEngine(cfg.cfg, stubs.calendar, stubs.campus, stubs.policy, zap.NewNop())
	return engine, stubs
}

type calendarGatewayStub struct {
	roomCalls       int
	instructorCalls int
	room            func(roomID, day string, start, end int) bool
	instructor      func(sectionID, day string, start, end int) bool
}

func (s *calendarGatewayStub) RoomAvailable(ctx context.Context, roomID, day string, start, end int) (bool, error) {
	s.roomCalls++
	if s.room == nil {
		return true, nil
	}
	return s.room(roomID, day, start, end), nil
}

func (s *calendarGatewayStub) InstructorAvailable(ctx context.Context, sectionID, day string, start, end int) (bool, error) {
	s.instructorCalls++
	if s.instructor == nil {
		return true, nil
	}
	return s.instructor(sectionID, day, start, end), nil
}

type campusGatewayStub struct {
	calls  int
	travel func(a, b string) int
}

func (s *campusGatewayStub) TravelMinutes(ctx context.Context, buildingA, buildingB string) (int, error) {
	s.calls++
	if s.travel == nil {
		return 0, nil
	}
	return s.travel(buildingA, buildingB), nil
}

type policyGatewayStub struct {
	blackoutCalls int
	proctorCalls  int
	blackout      func(day string, start, end int) bool
	proctor       func(department, day string, start, end int) bool
	allowed       []models.DayPart
}

func (s *policyGatewayStub) IsBlackout(ctx context.Context, day string, start, end int) (bool, error) {
	s.blackoutCalls++
	if s.blackout == nil {
		return false, nil
	}
	return s.blackout(day, start, end), nil
}

func (s *policyGatewayStub) ProctorAvailable(ctx context.Context, department, day string, start, end int) (bool, error) {
	s.proctorCalls++
	if s.proctor == nil {
		return true, nil
	}
	return s.proctor(department, day, start, end), nil
}

func (s *policyGatewayStub) AllowedDayParts(ctx context.Context, department string) ([]models.DayPart, error) {
	if len(s.allowed) == 0 {
		return []models.DayPart{models.DayPartMorning, models.DayPartAfternoon, models.DayPartEvening}, nil
	}
	return s.allowed, nil
}
