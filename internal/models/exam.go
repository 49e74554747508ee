package models

// DayPart is the coarse time-of-day category of an exam window.
type DayPart string

const (
	DayPartMorning   DayPart = "MORNING"
	DayPartAfternoon DayPart = "AFTERNOON"
	DayPartEvening   DayPart = "EVENING"
)

// IsPrime reports whether the day part is a high-demand slot.
// Morning and afternoon windows are contested; evenings are not.
func (d DayPart) IsPrime() bool {
	return d == DayPartMorning || d == DayPartAfternoon
}

// RoomCategory classifies exam rooms.
type RoomCategory string

const (
	RoomCategoryAuditorium RoomCategory = "AUDITORIUM"
	RoomCategoryStandard   RoomCategory = "STANDARD"
	RoomCategoryOnline     RoomCategory = "ONLINE"
	RoomCategoryLab        RoomCategory = "LAB"
	RoomCategorySeminar    RoomCategory = "SEMINAR"
)

// ExamRequest is one exam sitting to be placed. Read-only to the engine.
type ExamRequest struct {
	SectionID        string  `db:"section_id" json:"section_id"`
	CourseID         string  `db:"course_id" json:"course_id"`
	Department       string  `db:"department" json:"department"`
	Headcount        int     `db:"headcount" json:"headcount"`
	NeedsAccessible  bool    `db:"needs_accessible" json:"needs_accessible"`
	NeedsComputers   bool    `db:"needs_computers" json:"needs_computers"`
	PreferredDayPart DayPart `db:"preferred_day_part" json:"preferred_day_part"`
	DurationMinutes  int     `db:"duration_minutes" json:"duration_minutes"`
	// PriorSectionID references a different section taught immediately
	// before this one by the same instructor; used by the travel check.
	PriorSectionID *string `db:"prior_section_id" json:"prior_section_id,omitempty"`
}

// ExamRoom is a candidate room. Read-only to the engine.
type ExamRoom struct {
	ID           string       `db:"id" json:"id"`
	Building     string       `db:"building" json:"building"`
	Category     RoomCategory `db:"category" json:"category"`
	Capacity     int          `db:"capacity" json:"capacity"`
	HasComputers bool         `db:"has_computers" json:"has_computers"`
	Accessible   bool         `db:"accessible" json:"accessible"`
}

// ExamWindow is a candidate day/time span. Start and end are minutes
// since midnight. Read-only to the engine.
type ExamWindow struct {
	Day         string  `db:"day" json:"day"`
	DayPart     DayPart `db:"day_part" json:"day_part"`
	StartMinute int     `db:"start_minute" json:"start_minute"`
	EndMinute   int     `db:"end_minute" json:"end_minute"`
}

// ExamPlacement records one successfully placed exam. Immutable once created.
type ExamPlacement struct {
	SectionID   string  `db:"section_id" json:"section_id"`
	CourseID    string  `db:"course_id" json:"course_id"`
	Department  string  `db:"department" json:"department"`
	RoomID      string  `db:"room_id" json:"room_id"`
	Building    string  `db:"building" json:"building"`
	Day         string  `db:"day" json:"day"`
	StartMinute int     `db:"start_minute" json:"start_minute"`
	EndMinute   int     `db:"end_minute" json:"end_minute"`
	DayPart     DayPart `db:"day_part" json:"day_part"`
}

// ExamSchedule is the output of one placement run: placements in the order
// they were committed (not time order) plus the sections that could not be
// placed.
type ExamSchedule struct {
	Placements []ExamPlacement `json:"placements"`
	Unplaced   []string        `json:"unplaced"`
}
