package dto

import "github.com/campuskit/exam-scheduler-api/internal/models"

// GenerateExamScheduleRequest asks for a placement run over a term's inputs.
type GenerateExamScheduleRequest struct {
	TermID string         `json:"termId" validate:"required"`
	Meta   map[string]any `json:"meta"`
}

// GenerateExamScheduleResponse returns the produced schedule proposal.
type GenerateExamScheduleResponse struct {
	ProposalID string                 `json:"proposalId"`
	TermID     string                 `json:"termId"`
	Placements []models.ExamPlacement `json:"placements"`
	Unplaced   []string               `json:"unplaced"`
	Stats      PlacementRunStats      `json:"stats"`
}

// PlacementRunStats summarises a placement run.
type PlacementRunStats struct {
	Requested int `json:"requested"`
	Placed    int `json:"placed"`
	Unplaced  int `json:"unplaced"`
}

// SaveExamScheduleRequest persists a generated proposal.
type SaveExamScheduleRequest struct {
	ProposalID string `json:"proposalId" validate:"required"`
	Publish    bool   `json:"publish"`
}

// ExamScheduleQuery filters stored schedules by term.
type ExamScheduleQuery struct {
	TermID string `form:"termId" json:"termId"`
}

// ExamScheduleDetail is a stored schedule with its rows expanded.
type ExamScheduleDetail struct {
	Record     models.ExamScheduleRecord `json:"record"`
	Placements []models.ExamPlacementRow `json:"placements"`
	Unplaced   []string                  `json:"unplaced"`
}
