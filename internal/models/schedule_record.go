package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// ExamScheduleStatus represents lifecycle phases for stored schedules.
type ExamScheduleStatus string

const (
	ExamScheduleStatusDraft     ExamScheduleStatus = "DRAFT"
	ExamScheduleStatusPublished ExamScheduleStatus = "PUBLISHED"
	ExamScheduleStatusArchived  ExamScheduleStatus = "ARCHIVED"
)

// ExamScheduleRecord captures a versioned, persisted placement run for a term.
type ExamScheduleRecord struct {
	ID        string             `db:"id" json:"id"`
	TermID    string             `db:"term_id" json:"term_id"`
	Version   int                `db:"version" json:"version"`
	Status    ExamScheduleStatus `db:"status" json:"status"`
	Meta      types.JSONText     `db:"meta" json:"meta"`
	CreatedAt time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt time.Time          `db:"updated_at" json:"updated_at"`
}

// ExamPlacementRow is the persisted form of a placement.
type ExamPlacementRow struct {
	ID          string    `db:"id" json:"id"`
	ScheduleID  string    `db:"schedule_id" json:"schedule_id"`
	SectionID   string    `db:"section_id" json:"section_id"`
	CourseID    string    `db:"course_id" json:"course_id"`
	Department  string    `db:"department" json:"department"`
	RoomID      string    `db:"room_id" json:"room_id"`
	Building    string    `db:"building" json:"building"`
	Day         string    `db:"day" json:"day"`
	StartMinute int       `db:"start_minute" json:"start_minute"`
	EndMinute   int       `db:"end_minute" json:"end_minute"`
	DayPart     DayPart   `db:"day_part" json:"day_part"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// UnplacedExamRow records a section left unplaced by a stored run.
type UnplacedExamRow struct {
	ID         string    `db:"id" json:"id"`
	ScheduleID string    `db:"schedule_id" json:"schedule_id"`
	SectionID  string    `db:"section_id" json:"section_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// BookingKind distinguishes calendar occupancy rows.
type BookingKind string

const (
	BookingKindRoom       BookingKind = "ROOM"
	BookingKindInstructor BookingKind = "INSTRUCTOR"
)

// Booking is an occupancy entry in the shared campus calendar.
type Booking struct {
	ID          string      `db:"id" json:"id"`
	Kind        BookingKind `db:"kind" json:"kind"`
	ResourceID  string      `db:"resource_id" json:"resource_id"`
	Day         string      `db:"day" json:"day"`
	StartMinute int         `db:"start_minute" json:"start_minute"`
	EndMinute   int         `db:"end_minute" json:"end_minute"`
}

// CampusRoute holds the walking time between two buildings.
type CampusRoute struct {
	BuildingA string `db:"building_a" json:"building_a"`
	BuildingB string `db:"building_b" json:"building_b"`
	Minutes   int    `db:"minutes" json:"minutes"`
}

// BlackoutWindow marks a policy-blocked span on a given day.
type BlackoutWindow struct {
	ID          string `db:"id" json:"id"`
	Day         string `db:"day" json:"day"`
	StartMinute int    `db:"start_minute" json:"start_minute"`
	EndMinute   int    `db:"end_minute" json:"end_minute"`
	Reason      string `db:"reason" json:"reason"`
}

// ProctorShift records department proctor coverage for a span.
type ProctorShift struct {
	ID          string `db:"id" json:"id"`
	Department  string `db:"department" json:"department"`
	Day         string `db:"day" json:"day"`
	StartMinute int    `db:"start_minute" json:"start_minute"`
	EndMinute   int    `db:"end_minute" json:"end_minute"`
}
