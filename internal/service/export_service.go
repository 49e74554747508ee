package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/campuskit/exam-scheduler-api/internal/models"
	"github.com/campuskit/exam-scheduler-api/pkg/export"
	"github.com/campuskit/exam-scheduler-api/pkg/storage"
)

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ExportFormat
	ExpiresAt    time.Time
}

// ExportService renders stored exam schedules and persists the files.
type ExportService struct {
	schedules  examScheduleStore
	placements examPlacementStore
	storage    fileStorage
	csv        csvRenderer
	pdf        pdfRenderer
	signer     *storage.SignedURLSigner
	logger     *zap.Logger
	cfg        ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(schedules examScheduleStore, placements examPlacementStore, files fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		schedules:  schedules,
		placements: placements,
		storage:    files,
		csv:        csv,
		pdf:        pdf,
		signer:     signer,
		logger:     logger,
		cfg:        cfg,
	}
}

// Generate renders the job's schedule and stores the file, returning a signed
// download location.
func (s *ExportService) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	record, err := s.schedules.FindByID(ctx, job.ScheduleID)
	if err != nil {
		return nil, err
	}
	dataset, title, err := s.buildDataset(ctx, record)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(record, job.Format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/exam-exports/download/%s", prefix, token),
		Format:       job.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to the configured ResultTTL).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildDataset(ctx context.Context, record *models.ExamScheduleRecord) (export.Dataset, string, error) {
	placements, err := s.placements.ListBySchedule(ctx, record.ID)
	if err != nil {
		return export.Dataset{}, "", err
	}
	unplaced, err := s.placements.ListUnplacedBySchedule(ctx, record.ID)
	if err != nil {
		return export.Dataset{}, "", err
	}

	rows := make([]map[string]string, 0, len(placements)+len(unplaced))
	for _, p := range placements {
		rows = append(rows, map[string]string{
			"Section":    p.SectionID,
			"Course":     p.CourseID,
			"Department": p.Department,
			"Day":        p.Day,
			"Start":      minuteClock(p.StartMinute),
			"End":        minuteClock(p.EndMinute),
			"Day Part":   string(p.DayPart),
			"Room":       p.RoomID,
			"Building":   p.Building,
		})
	}
	for _, sectionID := range unplaced {
		rows = append(rows, map[string]string{
			"Section": sectionID,
			"Room":    export.UnplacedRoomMarker,
		})
	}

	dataset := export.Dataset{Rows: rows}
	title := fmt.Sprintf("Exam Schedule %s v%d", record.TermID, record.Version)
	return dataset, title, nil
}

func (s *ExportService) buildFilename(record *models.ExamScheduleRecord, format models.ExportFormat) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	termPart := sanitizeFilename(record.TermID)
	return fmt.Sprintf("exam_schedule_%s_v%d_%s.%s", termPart, record.Version, timestamp, format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

// minuteClock renders minutes since midnight as HH:MM.
func minuteClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}
