package service

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/campuskit/exam-scheduler-api/internal/models"
	appErrors "github.com/campuskit/exam-scheduler-api/pkg/errors"
)

type calendarGateway interface {
	RoomAvailable(ctx context.Context, roomID, day string, startMinute, endMinute int) (bool, error)
	InstructorAvailable(ctx context.Context, sectionID, day string, startMinute, endMinute int) (bool, error)
}

type campusMapGateway interface {
	TravelMinutes(ctx context.Context, buildingA, buildingB string) (int, error)
}

type examPolicyGateway interface {
	IsBlackout(ctx context.Context, day string, startMinute, endMinute int) (bool, error)
	ProctorAvailable(ctx context.Context, department, day string, startMinute, endMinute int) (bool, error)
	AllowedDayParts(ctx context.Context, department string) ([]models.DayPart, error)
}

// PlacementConfig carries the engine's policy constants. All values are
// explicit so runs are reproducible in tests; zero values fall back to the
// campus defaults in newPlacementEngine.
type PlacementConfig struct {
	TryBudget             int
	RotationSpan          int
	MinTravelMinutes      int
	PreExamBufferMinutes  int
	PostExamBufferMinutes int
	AllowedRoomCategories []models.RoomCategory
}

// placementEngine assigns exam requests to (room, window) pairs with a
// greedy, score-ranked, bounded first-fit search. It holds no per-run state;
// the fairness ledger and in-progress schedule live inside a single Run call,
// so one engine value is safe to reuse across sequential runs.
type placementEngine struct {
	cfg      PlacementConfig
	calendar calendarGateway
	campus   campusMapGateway
	policy   examPolicyGateway
	logger   *zap.Logger
}

func newPlacementEngine(cfg PlacementConfig, calendar calendarGateway, campus campusMapGateway, policy examPolicyGateway, logger *zap.Logger) *placementEngine {
	if cfg.TryBudget <= 0 {
		cfg.TryBudget = 12
	}
	if cfg.RotationSpan <= 0 {
		cfg.RotationSpan = 3
	}
	if cfg.MinTravelMinutes <= 0 {
		cfg.MinTravelMinutes = 20
	}
	if cfg.PreExamBufferMinutes <= 0 {
		cfg.PreExamBufferMinutes = 15
	}
	if cfg.PostExamBufferMinutes <= 0 {
		cfg.PostExamBufferMinutes = 10
	}
	if len(cfg.AllowedRoomCategories) == 0 {
		cfg.AllowedRoomCategories = []models.RoomCategory{
			models.RoomCategoryAuditorium,
			models.RoomCategoryStandard,
			models.RoomCategoryOnline,
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &placementEngine{
		cfg:      cfg,
		calendar: calendar,
		campus:   campus,
		policy:   policy,
		logger:   logger,
	}
}

// Run places every request against the given rooms and windows and returns
// the resulting schedule. All three collections are required; a nil
// collection aborts before any processing so no partial schedule escapes.
// Requests with equal headcount and department keep their input order, so
// callers wanting reproducible output must pass a meaningfully ordered slice.
func (e *placementEngine) Run(ctx context.Context, requests []models.ExamRequest, rooms []models.ExamRoom, windows []models.ExamWindow) (*models.ExamSchedule, error) {
	if requests == nil || rooms == nil || windows == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "requests, rooms and windows collections are all required")
	}

	ordered := orderRequests(requests)
	ledger := make(fairnessLedger)
	schedule := &models.ExamSchedule{
		Placements: make([]models.ExamPlacement, 0, len(ordered)),
		Unplaced:   make([]string, 0),
	}

	for _, req := range ordered {
		placed, err := e.placeOne(ctx, req, rooms, windows, schedule, ledger)
		if err != nil {
			return nil, err
		}
		if !placed {
			schedule.Unplaced = append(schedule.Unplaced, req.SectionID)
			e.logger.Warn("exam left unplaced",
				zap.String("section", req.SectionID),
				zap.String("department", req.Department),
				zap.Int("headcount", req.Headcount),
			)
		}
	}

	e.logger.Info("placement run finished",
		zap.Int("placed", len(schedule.Placements)),
		zap.Int("unplaced", len(schedule.Unplaced)),
	)
	return schedule, nil
}

// orderRequests sorts largest cohorts first, while flexibility is highest.
// Ties break ascending by department and then keep input order.
func orderRequests(requests []models.ExamRequest) []models.ExamRequest {
	ordered := make([]models.ExamRequest, len(requests))
	copy(ordered, requests)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Headcount != ordered[j].Headcount {
			return ordered[i].Headcount > ordered[j].Headcount
		}
		return ordered[i].Department < ordered[j].Department
	})
	return ordered
}

// placeOne walks ranked windows (outer) and rooms (inner) under a shared try
// budget and commits the first candidate pair passing the full conflict
// chain. First fit, not best fit: candidates are already in score order.
func (e *placementEngine) placeOne(
	ctx context.Context,
	req models.ExamRequest,
	rooms []models.ExamRoom,
	windows []models.ExamWindow,
	schedule *models.ExamSchedule,
	ledger fairnessLedger,
) (bool, error) {
	rankedWindows, err := e.rankWindows(ctx, req, windows, ledger)
	if err != nil {
		return false, err
	}
	rankedRooms := e.rankRooms(req, rooms)

	budget := e.cfg.TryBudget
	for _, win := range rankedWindows {
		for _, room := range rankedRooms {
			if budget <= 0 {
				return false, nil
			}
			budget--

			start := win.StartMinute
			end := start + req.DurationMinutes
			ok, err := e.checkCandidate(ctx, req, room, win, start, end, schedule)
			if err != nil {
				return false, err
			}
			if !ok {
				continue
			}

			schedule.Placements = append(schedule.Placements, models.ExamPlacement{
				SectionID:   req.SectionID,
				CourseID:    req.CourseID,
				Department:  req.Department,
				RoomID:      room.ID,
				Building:    room.Building,
				Day:         win.Day,
				StartMinute: start,
				EndMinute:   end,
				DayPart:     win.DayPart,
			})
			ledger.Record(req.Department, win.DayPart)
			return true, nil
		}
	}
	return false, nil
}

type scoredWindow struct {
	models.ExamWindow
	score int
}

// rankWindows filters out windows the request cannot use and orders the rest
// by descending score, ties keeping input order.
func (e *placementEngine) rankWindows(ctx context.Context, req models.ExamRequest, windows []models.ExamWindow, ledger fairnessLedger) ([]scoredWindow, error) {
	allowed, err := e.policy.AllowedDayParts(ctx, req.Department)
	if err != nil {
		return nil, err
	}
	allowedSet := make(map[models.DayPart]struct{}, len(allowed))
	for _, part := range allowed {
		allowedSet[part] = struct{}{}
	}

	scored := make([]scoredWindow, 0, len(windows))
	for _, win := range windows {
		if win.EndMinute-win.StartMinute < req.DurationMinutes {
			continue
		}
		if _, ok := allowedSet[win.DayPart]; !ok {
			continue
		}
		blackout, err := e.policy.IsBlackout(ctx, win.Day, win.StartMinute, win.EndMinute)
		if err != nil {
			return nil, err
		}
		if blackout {
			continue
		}
		scored = append(scored, scoredWindow{
			ExamWindow: win,
			score:      e.scoreWindow(req, win, blackout, ledger),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
	return scored, nil
}

func (e *placementEngine) scoreWindow(req models.ExamRequest, win models.ExamWindow, blackout bool, ledger fairnessLedger) int {
	score := 0
	if win.DayPart == req.PreferredDayPart {
		score += 20
	}
	// Unreachable in practice: blackout windows never survive the filter
	// above. Kept to match the documented scoring table.
	if blackout {
		score -= 40
	}
	if win.DayPart.IsPrime() {
		if ledger.Count(req.Department)%e.cfg.RotationSpan == 0 {
			// Give other departments a turn at the contested slots.
			score -= 10
		} else {
			score += 5
		}
	}
	if req.NeedsAccessible && win.DayPart == models.DayPartMorning {
		score += 8
	}
	return score
}

type scoredRoom struct {
	models.ExamRoom
	score int
}

// rankRooms filters to the allow-listed categories and orders by descending
// score, ties keeping input order.
func (e *placementEngine) rankRooms(req models.ExamRequest, rooms []models.ExamRoom) []scoredRoom {
	allowedSet := make(map[models.RoomCategory]struct{}, len(e.cfg.AllowedRoomCategories))
	for _, category := range e.cfg.AllowedRoomCategories {
		allowedSet[category] = struct{}{}
	}

	scored := make([]scoredRoom, 0, len(rooms))
	for _, room := range rooms {
		if _, ok := allowedSet[room.Category]; !ok {
			continue
		}
		scored = append(scored, scoredRoom{
			ExamRoom: room,
			score:    scoreRoom(req, room),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
	return scored
}

func scoreRoom(req models.ExamRequest, room models.ExamRoom) int {
	headroom := (room.Capacity - req.Headcount) / 5
	if headroom > 30 {
		headroom = 30
	}
	score := headroom
	if req.NeedsAccessible && room.Accessible {
		score += 15
	}
	if req.NeedsComputers && room.HasComputers {
		score += 10
	}
	return score
}

// checkCandidate runs the conflict chain in fixed order, short-circuiting on
// the first failed check: static fit, room availability, instructor and
// proctor availability, same-department overlap, back-to-back travel.
func (e *placementEngine) checkCandidate(
	ctx context.Context,
	req models.ExamRequest,
	room scoredRoom,
	win scoredWindow,
	start, end int,
	schedule *models.ExamSchedule,
) (bool, error) {
	if !staticFit(req, room.ExamRoom) {
		return false, nil
	}

	// Rooms taken earlier in this run are not yet visible to the calendar.
	if hasRoomOverlap(schedule.Placements, room.ID, win.Day, start, end) {
		return false, nil
	}
	free, err := e.calendar.RoomAvailable(ctx, room.ID, win.Day, start, end)
	if err != nil {
		return false, err
	}
	if !free {
		return false, nil
	}

	instructorFree, err := e.calendar.InstructorAvailable(ctx, req.SectionID, win.Day, start, end)
	if err != nil {
		return false, err
	}
	if !instructorFree {
		return false, nil
	}
	proctorFree, err := e.policy.ProctorAvailable(ctx, req.Department, win.Day, start, end)
	if err != nil {
		return false, err
	}
	if !proctorFree {
		return false, nil
	}

	if hasDepartmentOverlap(schedule.Placements, req.Department, win.Day, start, end) {
		return false, nil
	}

	return e.travelGapOK(ctx, req, room.ExamRoom, win.Day, start, schedule)
}

func staticFit(req models.ExamRequest, room models.ExamRoom) bool {
	if room.Capacity < req.Headcount {
		return false
	}
	if req.NeedsComputers && !room.HasComputers {
		return false
	}
	if req.NeedsAccessible && !room.Accessible {
		return false
	}
	return true
}

// hasDepartmentOverlap treats two same-department exams at overlapping times
// as a conflict proxy for shared students.
func hasDepartmentOverlap(placements []models.ExamPlacement, department, day string, start, end int) bool {
	for _, p := range placements {
		if p.Department != department || p.Day != day {
			continue
		}
		if overlaps(p.StartMinute, p.EndMinute, start, end) {
			return true
		}
	}
	return false
}

func hasRoomOverlap(placements []models.ExamPlacement, roomID, day string, start, end int) bool {
	for _, p := range placements {
		if p.RoomID != roomID || p.Day != day {
			continue
		}
		if overlaps(p.StartMinute, p.EndMinute, start, end) {
			return true
		}
	}
	return false
}

func overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && bStart < aEnd
}

// travelGapOK enforces the back-to-back travel buffer when this request
// follows the same instructor's prior section, already placed on the same
// day: the free gap between the prior exam (plus post-exam buffer) and this
// candidate (minus pre-exam buffer) must cover the campus travel time, never
// less than the configured minimum.
func (e *placementEngine) travelGapOK(
	ctx context.Context,
	req models.ExamRequest,
	room models.ExamRoom,
	day string,
	start int,
	schedule *models.ExamSchedule,
) (bool, error) {
	if req.PriorSectionID == nil {
		return true, nil
	}

	var prior *models.ExamPlacement
	for i := range schedule.Placements {
		if schedule.Placements[i].SectionID == *req.PriorSectionID && schedule.Placements[i].Day == day {
			prior = &schedule.Placements[i]
			break
		}
	}
	if prior == nil {
		return true, nil
	}

	travel, err := e.campus.TravelMinutes(ctx, prior.Building, room.Building)
	if err != nil {
		return false, err
	}
	required := e.cfg.MinTravelMinutes
	if travel > required {
		required = travel
	}

	gap := (start - e.cfg.PreExamBufferMinutes) - (prior.EndMinute + e.cfg.PostExamBufferMinutes)
	return gap >= required, nil
}

// fairnessLedger counts prime-slot placements per department within one run.
// It is created per Run call and discarded with it; a missing department
// reads as zero.
type fairnessLedger map[string]int

func (l fairnessLedger) Count(department string) int {
	return l[department]
}

// Record bumps the department's count when the placed window is prime.
// Exactly one call per successful placement.
func (l fairnessLedger) Record(department string, part models.DayPart) {
	if part.IsPrime() {
		l[department]++
	}
}
