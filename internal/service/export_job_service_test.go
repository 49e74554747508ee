package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campuskit/exam-scheduler-api/internal/dto"
	"github.com/campuskit/exam-scheduler-api/internal/models"
	"github.com/campuskit/exam-scheduler-api/internal/repository"
	"github.com/campuskit/exam-scheduler-api/pkg/jobs"
)

type exportJobRepoStub struct {
	jobs map[string]*models.ExportJob
}

func newExportJobRepoStub() *exportJobRepoStub {
	return &exportJobRepoStub{jobs: map[string]*models.ExportJob{}}
}

func (r *exportJobRepoStub) Create(ctx context.Context, job *models.ExportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	r.jobs[job.ID] = job
	return nil
}

func (r *exportJobRepoStub) GetByID(ctx context.Context, id string) (*models.ExportJob, error) {
	job, ok := r.jobs[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return job, nil
}

func (r *exportJobRepoStub) Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error {
	job, ok := r.jobs[id]
	if !ok {
		return errors.New("not found")
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (r *exportJobRepoStub) ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error) {
	var queued []models.ExportJob
	for _, job := range r.jobs {
		if job.Status == models.ExportStatusQueued {
			queued = append(queued, *job)
		}
	}
	return queued, nil
}

func (r *exportJobRepoStub) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error) {
	return nil, nil
}

type queueStub struct {
	jobs []jobs.Job
	err  error
}

func (q *queueStub) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func newExportJobServiceForTest(t *testing.T) (*ExportJobService, *exportJobRepoStub, *queueStub, *ExportService) {
	t.Helper()
	repo := newExportJobRepoStub()
	queue := &queueStub{}
	exportSvc, _ := newExportServiceForTest(t)
	svc := NewExportJobService(repo, queue, exportSvc, zap.NewNop(), ExportJobServiceConfig{
		ResultTTL:       time.Hour,
		CleanupInterval: time.Hour,
		MaxRetries:      3,
	})
	return svc, repo, queue, exportSvc
}

func TestExportJobServiceCreateJob(t *testing.T) {
	svc, repo, queue, _ := newExportJobServiceForTest(t)
	resp, err := svc.CreateJob(context.Background(), dto.ExportRequest{
		ScheduleID: "sched-1",
		Format:     models.ExportFormatCSV,
	}, "admin")
	require.NoError(t, err)
	require.NotEmpty(t, resp.ID)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, models.ExportStatusQueued, resp.Status)
	assert.Contains(t, repo.jobs, resp.ID)
}

func TestExportJobServiceCreateJobRejectsBadFormat(t *testing.T) {
	svc, _, queue, _ := newExportJobServiceForTest(t)
	_, err := svc.CreateJob(context.Background(), dto.ExportRequest{
		ScheduleID: "sched-1",
		Format:     models.ExportFormat("xlsx"),
	}, "admin")
	require.Error(t, err)
	require.Empty(t, queue.jobs)
}

func TestExportJobServiceCreateJobEnqueueFailureMarksFailed(t *testing.T) {
	svc, repo, queue, _ := newExportJobServiceForTest(t)
	queue.err = errors.New("queue full")
	_, err := svc.CreateJob(context.Background(), dto.ExportRequest{
		ScheduleID: "sched-1",
		Format:     models.ExportFormatPDF,
	}, "admin")
	require.Error(t, err)
	require.Len(t, repo.jobs, 1)
	for _, job := range repo.jobs {
		assert.Equal(t, models.ExportStatusFailed, job.Status)
	}
}

func TestExportJobServiceGetStatus(t *testing.T) {
	svc, repo, _, _ := newExportJobServiceForTest(t)
	url := "/api/v1/exam-exports/download/token"
	repo.jobs["job-1"] = &models.ExportJob{
		ID:         "job-1",
		ScheduleID: "sched-1",
		Format:     models.ExportFormatCSV,
		Status:     models.ExportStatusFinished,
		Progress:   100,
		ResultURL:  &url,
		CreatedBy:  "admin",
	}
	resp, err := svc.GetStatus(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusFinished, resp.Status)
	assert.Equal(t, 100, resp.Progress)
	require.NotNil(t, resp.ResultURL)
	assert.Equal(t, url, *resp.ResultURL)
}

func TestExportJobServiceResolveDownload(t *testing.T) {
	svc, repo, _, exportSvc := newExportJobServiceForTest(t)
	job := &models.ExportJob{
		ID:         "job-download",
		ScheduleID: "sched-1",
		Format:     models.ExportFormatCSV,
		Status:     models.ExportStatusFinished,
		Progress:   100,
		CreatedBy:  "admin",
	}
	repo.jobs[job.ID] = job
	result, err := exportSvc.Generate(context.Background(), job)
	require.NoError(t, err)
	job.ResultURL = &result.URL
	now := time.Now()
	job.FinishedAt = &now

	download, err := svc.ResolveDownload(context.Background(), result.Token)
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(result.RelativePath), download.Filename)
	download.File.Close()
}

func TestExportJobServiceResolveDownloadRejectsUnfinished(t *testing.T) {
	svc, repo, _, exportSvc := newExportJobServiceForTest(t)
	job := &models.ExportJob{
		ID:         "job-pending",
		ScheduleID: "sched-1",
		Format:     models.ExportFormatCSV,
		Status:     models.ExportStatusProcessing,
		CreatedBy:  "admin",
	}
	repo.jobs[job.ID] = job
	result, err := exportSvc.Generate(context.Background(), job)
	require.NoError(t, err)
	job.ResultURL = &result.URL

	_, err = svc.ResolveDownload(context.Background(), result.Token)
	require.Error(t, err)
}

type exportGeneratorStub struct {
	result *ExportResult
	err    error
}

func (e exportGeneratorStub) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.result, nil
}

func TestExportWorkerHandleSuccess(t *testing.T) {
	priorFailure := "renderer glitch"
	repo := &exportJobRepoStub{
		jobs: map[string]*models.ExportJob{
			"job-1": {
				ID:           "job-1",
				ScheduleID:   "sched-1",
				Format:       models.ExportFormatCSV,
				Status:       models.ExportStatusQueued,
				ErrorMessage: &priorFailure,
				CreatedBy:    "admin",
			},
		},
	}
	exporter := exportGeneratorStub{result: &ExportResult{URL: "/api/v1/exam-exports/download/token"}}
	worker := NewExportWorker(repo, exporter, 3, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 1})
	require.NoError(t, err)

	job := repo.jobs["job-1"]
	require.Equal(t, models.ExportStatusFinished, job.Status)
	require.Equal(t, 100, job.Progress)
	require.NotNil(t, job.ResultURL)
	assert.Equal(t, "/api/v1/exam-exports/download/token", *job.ResultURL)
	// A retry that succeeds must wipe the message left by the failed attempt.
	require.NotNil(t, job.ErrorMessage)
	assert.Empty(t, *job.ErrorMessage)
}

func TestExportWorkerHandleFailureExhaustsRetries(t *testing.T) {
	repo := &exportJobRepoStub{
		jobs: map[string]*models.ExportJob{
			"job-1": {
				ID:         "job-1",
				ScheduleID: "sched-1",
				Format:     models.ExportFormatCSV,
				Status:     models.ExportStatusQueued,
				CreatedBy:  "admin",
			},
		},
	}
	exporter := exportGeneratorStub{err: errors.New("boom")}
	worker := NewExportWorker(repo, exporter, 2, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 2})
	require.Error(t, err)
	require.Equal(t, models.ExportStatusFailed, repo.jobs["job-1"].Status)
}

func TestExportWorkerHandleFailureRequeues(t *testing.T) {
	repo := &exportJobRepoStub{
		jobs: map[string]*models.ExportJob{
			"job-1": {
				ID:         "job-1",
				ScheduleID: "sched-1",
				Format:     models.ExportFormatCSV,
				Status:     models.ExportStatusQueued,
				CreatedBy:  "admin",
			},
		},
	}
	exporter := exportGeneratorStub{err: errors.New("boom")}
	worker := NewExportWorker(repo, exporter, 3, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 1})
	require.Error(t, err)
	require.Equal(t, models.ExportStatusQueued, repo.jobs["job-1"].Status)
	require.Equal(t, 0, repo.jobs["job-1"].Progress)
}
