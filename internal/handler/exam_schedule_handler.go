package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campuskit/exam-scheduler-api/internal/dto"
	"github.com/campuskit/exam-scheduler-api/internal/models"
	"github.com/campuskit/exam-scheduler-api/internal/service"
	appErrors "github.com/campuskit/exam-scheduler-api/pkg/errors"
	"github.com/campuskit/exam-scheduler-api/pkg/response"
)

type examScheduler interface {
	Generate(ctx context.Context, req dto.GenerateExamScheduleRequest) (*dto.GenerateExamScheduleResponse, error)
	Save(ctx context.Context, req dto.SaveExamScheduleRequest) (string, error)
	List(ctx context.Context, query dto.ExamScheduleQuery) ([]models.ExamScheduleRecord, error)
	Get(ctx context.Context, scheduleID string) (*dto.ExamScheduleDetail, error)
	Delete(ctx context.Context, scheduleID string) error
}

// ExamScheduleHandler exposes placement endpoints.
type ExamScheduleHandler struct {
	service examScheduler
}

// NewExamScheduleHandler constructs the handler.
func NewExamScheduleHandler(svc *service.ExamPlacementService) *ExamScheduleHandler {
	return &ExamScheduleHandler{service: svc}
}

// Generate godoc
// @Summary Generate an exam schedule proposal
// @Description Runs the placement engine over the term's exam sessions and returns a preview proposal. Nothing is persisted until the proposal is saved.
// @Tags Exam Scheduler
// @Accept json
// @Produce json
// @Param payload body dto.GenerateExamScheduleRequest true "Generate schedule payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /exam-schedules/generate [post]
func (h *ExamScheduleHandler) Generate(c *gin.Context) {
	var req dto.GenerateExamScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generate payload"))
		return
	}
	result, err := h.service.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Save godoc
// @Summary Save a generated proposal as a schedule version
// @Tags Exam Scheduler
// @Accept json
// @Produce json
// @Param payload body dto.SaveExamScheduleRequest true "Save schedule payload"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /exam-schedules [post]
func (h *ExamScheduleHandler) Save(c *gin.Context) {
	var req dto.SaveExamScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid save payload"))
		return
	}
	id, err := h.service.Save(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"scheduleId": id})
}

// List godoc
// @Summary List schedule versions for a term
// @Tags Exam Scheduler
// @Produce json
// @Param termId query string true "Term ID"
// @Success 200 {object} response.Envelope
// @Router /exam-schedules [get]
func (h *ExamScheduleHandler) List(c *gin.Context) {
	query := dto.ExamScheduleQuery{TermID: c.Query("termId")}
	result, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Get godoc
// @Summary Get a stored schedule with its placements
// @Tags Exam Scheduler
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /exam-schedules/{id} [get]
func (h *ExamScheduleHandler) Get(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail)
}

// Delete godoc
// @Summary Delete a draft schedule version
// @Tags Exam Scheduler
// @Param id path string true "Schedule ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /exam-schedules/{id} [delete]
func (h *ExamScheduleHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
