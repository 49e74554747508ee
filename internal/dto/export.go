package dto

import "github.com/campuskit/exam-scheduler-api/internal/models"

// ExportRequest queues a schedule export.
type ExportRequest struct {
	ScheduleID string              `json:"scheduleId" validate:"required"`
	Format     models.ExportFormat `json:"format" validate:"required"`
}

// ExportJobResponse acknowledges a queued export.
type ExportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ExportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ExportStatusResponse reports job progress and, once finished, the download URL.
type ExportStatusResponse struct {
	ID        string              `json:"id"`
	Status    models.ExportStatus `json:"status"`
	Progress  int                 `json:"progress"`
	ResultURL *string             `json:"result_url,omitempty"`
	Error     *string             `json:"error,omitempty"`
}
