package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/campuskit/exam-scheduler-api/internal/dto"
	"github.com/campuskit/exam-scheduler-api/internal/models"
	"github.com/campuskit/exam-scheduler-api/internal/service"
	appErrors "github.com/campuskit/exam-scheduler-api/pkg/errors"
	"github.com/campuskit/exam-scheduler-api/pkg/response"
)

type exportRunner interface {
	CreateJob(ctx context.Context, req dto.ExportRequest, actorID string) (*dto.ExportJobResponse, error)
	GetStatus(ctx context.Context, id string) (*dto.ExportStatusResponse, error)
	ResolveDownload(ctx context.Context, token string) (*service.ExportDownload, error)
}

// ExportHandler exposes schedule export job endpoints.
type ExportHandler struct {
	service exportRunner
	logger  *zap.Logger
}

// NewExportHandler constructs the handler.
func NewExportHandler(svc exportRunner, logger *zap.Logger) *ExportHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportHandler{service: svc, logger: logger}
}

// CreateExport godoc
// @Summary Queue an export of a stored schedule
// @Description Creates an asynchronous export job. Poll the status endpoint for the signed download URL.
// @Tags Exam Scheduler
// @Accept json
// @Produce json
// @Param payload body dto.ExportRequest true "Export payload"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /exam-exports [post]
func (h *ExportHandler) CreateExport(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export payload"))
		return
	}

	job, err := h.service.CreateJob(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, job)
}

// ExportStatus godoc
// @Summary Get export job status
// @Tags Exam Scheduler
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /exam-exports/status/{id} [get]
func (h *ExportHandler) ExportStatus(c *gin.Context) {
	status, err := h.service.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status)
}

// DownloadExport godoc
// @Summary Download a finished export
// @Description Streams the export file referenced by a signed token. Tokens expire with the job's result TTL.
// @Tags Exam Scheduler
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /exam-exports/download/{token} [get]
func (h *ExportHandler) DownloadExport(c *gin.Context) {
	token := c.Param("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}

	result, err := h.service.ResolveDownload(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck

	info, err := result.File.Stat()
	if err != nil {
		h.logger.Sugar().Warnw("failed to stat export file", "error", err)
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "failed to read export file"))
		return
	}

	contentType := "text/csv"
	if result.Format == models.ExportFormatPDF {
		contentType = "application/pdf"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", result.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, info.Size(), contentType, result.File, nil)
}
