package service

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/credassure/credassure-api/internal/dto"
	"github.com/credassure/credassure-api/internal/enforcement"
	"github.com/credassure/credassure-api/internal/models"
	"github.com/credassure/credassure-api/internal/repository"
	appErrors "github.com/credassure/credassure-api/pkg/errors"
	"github.com/credassure/credassure-api/pkg/export"
	"github.com/credassure/credassure-api/pkg/jobs"
	"github.com/credassure/credassure-api/pkg/storage"
)

type reportStore interface {
	Create(ctx context.Context, job *models.ReportJob) error
	GetByID(ctx context.Context, id string) (*models.ReportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error
	ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error)
	ListByCreator(ctx context.Context, userID string, limit int) ([]models.ReportJob, error)
}

type exportDisputeLister interface {
	List(ctx context.Context, filter models.DisputeItemFilter) ([]models.DisputeItem, error)
}

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

// ExportService generates violation and enforcement reports as background
// jobs: the request enqueues, a worker renders CSV or PDF, and the result is
// fetched through a signed download URL.
type ExportService struct {
	reports  reportStore
	disputes exportDisputeLister
	audit    auditLogger
	storage  fileStorage
	csv      csvRenderer
	pdf      pdfRenderer
	signer   *storage.SignedURLSigner
	queue    *jobs.Queue
	logger   *zap.Logger
	cfg      ExportConfig
}

// NewExportService constructs an ExportService. Call SetQueue before
// enqueueing; the queue needs the service's handler and is built after it.
func NewExportService(
	reports reportStore,
	disputes exportDisputeLister,
	audit auditLogger,
	fileStore fileStorage,
	signer *storage.SignedURLSigner,
	cfg ExportConfig,
	logger *zap.Logger,
) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		reports:  reports,
		disputes: disputes,
		audit:    audit,
		storage:  fileStore,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		signer:   signer,
		logger:   logger,
		cfg:      cfg,
	}
}

// SetQueue wires the background queue driving HandleJob.
func (s *ExportService) SetQueue(q *jobs.Queue) {
	s.queue = q
}

// Enqueue validates the request, persists the job row and schedules it.
func (s *ExportService) Enqueue(ctx context.Context, actorID string, reportType models.ReportType, req dto.ExportRequest) (*dto.ExportJobResponse, error) {
	switch req.Format {
	case models.ReportFormatCSV, models.ReportFormatPDF:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
	if req.Bureau != nil && !models.ValidBureau(*req.Bureau) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown bureau")
	}

	job := &models.ReportJob{
		Type: reportType,
		Params: models.ReportJobParams{
			MemberID: req.MemberID,
			Bureau:   req.Bureau,
			Format:   req.Format,
		},
		Status:    models.ReportStatusQueued,
		CreatedBy: actorID,
	}
	if err := s.reports.Create(ctx, job); err != nil {
		return nil, appErrors.FromError(err)
	}

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(reportType)}); err != nil {
		failed := models.ReportStatusFailed
		msg := "queue is full"
		_ = s.reports.Update(ctx, job.ID, repository.UpdateReportJobParams{Status: &failed, ErrorMessage: &msg})
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to schedule export")
	}

	s.audit.CreateAuditLog(ctx, &models.AuditLog{ //nolint:errcheck
		UserID:     optionalID(actorID),
		Action:     models.AuditActionExportCreate,
		Resource:   "report_job",
		ResourceID: &job.ID,
	})

	return &dto.ExportJobResponse{ID: job.ID, Status: job.Status, Progress: job.Progress}, nil
}

// Status returns progress metadata for a job. A non-empty actorID scopes
// the lookup to the job creator; a mismatch reads as not found so job ids
// reveal nothing across accounts.
func (s *ExportService) Status(ctx context.Context, jobID, actorID string) (*dto.ExportStatusResponse, error) {
	job, err := s.reports.GetByID(ctx, jobID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}
	if actorID != "" && job.CreatedBy != actorID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}
	return &dto.ExportStatusResponse{
		ID:        job.ID,
		Status:    job.Status,
		Progress:  job.Progress,
		ResultURL: job.ResultURL,
		Error:     job.ErrorMessage,
	}, nil
}

// HandleJob is the queue worker entry point.
func (s *ExportService) HandleJob(ctx context.Context, job jobs.Job) error {
	stored, err := s.reports.GetByID(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("load report job %s: %w", job.ID, err)
	}

	processing := models.ReportStatusProcessing
	progress := 10
	if err := s.reports.Update(ctx, stored.ID, repository.UpdateReportJobParams{Status: &processing, Progress: &progress}); err != nil {
		s.logger.Warn("mark report processing", zap.String("jobId", stored.ID), zap.Error(err))
	}

	url, genErr := s.generate(ctx, stored)
	finishedAt := time.Now().UTC()
	if genErr != nil {
		failed := models.ReportStatusFailed
		msg := genErr.Error()
		if err := s.reports.Update(ctx, stored.ID, repository.UpdateReportJobParams{
			Status: &failed, ErrorMessage: &msg, FinishedAt: &finishedAt,
		}); err != nil {
			s.logger.Error("mark report failed", zap.String("jobId", stored.ID), zap.Error(err))
		}
		return genErr
	}

	finished := models.ReportStatusFinished
	done := 100
	if err := s.reports.Update(ctx, stored.ID, repository.UpdateReportJobParams{
		Status: &finished, Progress: &done, ResultURL: &url, FinishedAt: &finishedAt,
	}); err != nil {
		return fmt.Errorf("mark report finished: %w", err)
	}
	s.logger.Info("export generated", zap.String("jobId", stored.ID), zap.String("format", string(stored.Params.Format)))
	return nil
}

// RequeueCold reschedules jobs left QUEUED by a previous process.
func (s *ExportService) RequeueCold(ctx context.Context) {
	cold, err := s.reports.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Warn("list cold export jobs", zap.Error(err))
		return
	}
	for _, job := range cold {
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type)}); err != nil {
			s.logger.Warn("requeue cold export job", zap.String("jobId", job.ID), zap.Error(err))
		}
	}
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) generate(ctx context.Context, job *models.ReportJob) (string, error) {
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return "", err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return "", err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return "", err
	}

	token, _, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return "", err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return fmt.Sprintf("%s/exports/download/%s", prefix, token), nil
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, error) {
	filter := models.DisputeItemFilter{MemberID: job.Params.MemberID, Limit: 200}
	if job.Params.Bureau != nil {
		filter.Bureau = *job.Params.Bureau
	}
	items, err := s.disputes.List(ctx, filter)
	if err != nil {
		return export.Dataset{}, "", err
	}

	switch job.Type {
	case models.ReportTypeViolations:
		return buildViolationsDataset(items), "Procedural Violations Report", nil
	case models.ReportTypeEnforcement:
		return buildEnforcementDataset(items, time.Now().UTC()), "Enforcement Posture Report", nil
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported report type %s", job.Type)
	}
}

func buildViolationsDataset(items []models.DisputeItem) export.Dataset {
	headers := []string{"Dispute ID", "Bureau", "Creditor", "Round", "Violation Type", "Severity", "Details", "Remedy Action"}
	violations := make([]models.DisputeItem, 0, len(items))
	for _, item := range items {
		if !item.ProceduralViolation || item.ViolationType == nil {
			continue
		}
		violations = append(violations, item)
	}
	// Worst findings first; ties keep the store's deadline ordering.
	sort.SliceStable(violations, func(i, j int) bool {
		ri := models.SeverityRank(enforcement.Severity(*violations[i].ViolationType))
		rj := models.SeverityRank(enforcement.Severity(*violations[j].ViolationType))
		return ri > rj
	})
	rows := make([]map[string]string, 0, len(violations))
	for _, item := range violations {
		rows = append(rows, map[string]string{
			"Dispute ID":     item.ID,
			"Bureau":         string(item.Bureau),
			"Creditor":       item.Creditor,
			"Round":          fmt.Sprintf("%d", item.RoundNumber),
			"Violation Type": string(*item.ViolationType),
			"Severity":       string(enforcement.Severity(*item.ViolationType)),
			"Details":        item.ViolationDetails,
			"Remedy Action":  enforcement.Remedy(*item.ViolationType),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func buildEnforcementDataset(items []models.DisputeItem, now time.Time) export.Dataset {
	headers := []string{"Dispute ID", "Bureau", "Creditor", "Round", "Status", "Days Elapsed", "Days To Deadline", "Overdue", "Next Action"}
	rows := make([]map[string]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, map[string]string{
			"Dispute ID":       item.ID,
			"Bureau":           string(item.Bureau),
			"Creditor":         item.Creditor,
			"Round":            fmt.Sprintf("%d", item.RoundNumber),
			"Status":           string(item.RoundStatus),
			"Days Elapsed":     fmt.Sprintf("%d", item.DaysElapsed(now)),
			"Days To Deadline": fmt.Sprintf("%d", item.DaysUntilDeadline(now)),
			"Overdue":          fmt.Sprintf("%t", item.Overdue(now)),
			"Next Action":      item.NextAction,
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	memberPart := sanitizeFilename(job.Params.MemberID)
	return fmt.Sprintf("%s_%s_%s.%s", strings.ToLower(string(job.Type)), memberPart, timestamp, job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "all"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
