package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/credassure/credassure-api/internal/dto"
	"github.com/credassure/credassure-api/internal/models"
	"github.com/credassure/credassure-api/internal/repository"
	appErrors "github.com/credassure/credassure-api/pkg/errors"
	"github.com/credassure/credassure-api/pkg/jobs"
	"github.com/credassure/credassure-api/pkg/storage"
)

type reportStoreStub struct {
	jobs    map[string]*models.ReportJob
	created int
}

func (r *reportStoreStub) Create(ctx context.Context, job *models.ReportJob) error {
	if r.jobs == nil {
		r.jobs = make(map[string]*models.ReportJob)
	}
	r.created++
	if job.ID == "" {
		job.ID = "job-1"
	}
	job.CreatedAt = time.Now().UTC()
	r.jobs[job.ID] = job
	return nil
}

func (r *reportStoreStub) GetByID(ctx context.Context, id string) (*models.ReportJob, error) {
	job, ok := r.jobs[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
	}
	copied := *job
	return &copied, nil
}

func (r *reportStoreStub) Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error {
	job := r.jobs[id]
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

func (r *reportStoreStub) ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error) {
	var queued []models.ReportJob
	for _, job := range r.jobs {
		if job.Status == models.ReportStatusQueued {
			queued = append(queued, *job)
		}
	}
	return queued, nil
}

func (r *reportStoreStub) ListByCreator(ctx context.Context, userID string, limit int) ([]models.ReportJob, error) {
	var owned []models.ReportJob
	for _, job := range r.jobs {
		if job.CreatedBy == userID {
			owned = append(owned, *job)
		}
	}
	return owned, nil
}

func exportFixture(t *testing.T, disputes *disputeStoreStub) (*ExportService, *reportStoreStub) {
	t.Helper()
	reports := &reportStoreStub{}
	fileStore, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("export-secret", time.Hour)

	svc := NewExportService(reports, disputes, &auditStub{}, fileStore, signer, ExportConfig{APIPrefix: "/api/v1"}, zap.NewNop())
	queue := jobs.NewQueue("exports", svc.HandleJob, jobs.QueueConfig{Workers: 1, BufferSize: 4})
	svc.SetQueue(queue)
	return svc, reports
}

func TestExportServiceGeneratesViolationsCSV(t *testing.T) {
	item := pendingItem("item-1", "member-1", 40)
	item.ProceduralViolation = true
	vt := models.ViolationDay31Timeout
	item.ViolationType = &vt
	item.ViolationDetails = "no response by day 31"
	disputes := &disputeStoreStub{items: map[string]*models.DisputeItem{"item-1": item}}

	svc, reports := exportFixture(t, disputes)

	job, err := svc.Enqueue(context.Background(), "admin-1", models.ReportTypeViolations, dto.ExportRequest{
		MemberID: "member-1",
		Format:   models.ReportFormatCSV,
	})
	require.NoError(t, err)
	require.Equal(t, models.ReportStatusQueued, job.Status)

	// Drive the worker synchronously instead of starting the queue.
	require.NoError(t, svc.HandleJob(context.Background(), jobs.Job{ID: job.ID}))

	stored, err := reports.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, models.ReportStatusFinished, stored.Status)
	require.Equal(t, 100, stored.Progress)
	require.NotNil(t, stored.ResultURL)
	require.NotNil(t, stored.FinishedAt)

	token := strings.TrimPrefix(*stored.ResultURL, "/api/v1/exports/download/")
	_, relPath, _, err := svc.ParseToken(token, false)
	require.NoError(t, err)

	file, err := svc.Open(relPath)
	require.NoError(t, err)
	defer file.Close()

	content, err := io.ReadAll(file)
	require.NoError(t, err)
	require.Contains(t, string(content), "Violation Type")
	require.Contains(t, string(content), string(models.ViolationDay31Timeout))
}

func TestViolationsDatasetOrdersWorstFirst(t *testing.T) {
	minor := pendingItem("item-a", "member-1", 10)
	minor.ProceduralViolation = true
	minorType := models.ViolationGenericStall
	minor.ViolationType = &minorType

	critical := pendingItem("item-b", "member-1", 40)
	critical.ProceduralViolation = true
	criticalType := models.ViolationDay31Timeout
	critical.ViolationType = &criticalType

	// Store order is id-ascending, so the minor violation comes in first.
	dataset := buildViolationsDataset([]models.DisputeItem{*minor, *critical})
	require.Len(t, dataset.Rows, 2)
	require.Equal(t, "item-b", dataset.Rows[0]["Dispute ID"])
	require.Equal(t, string(models.SeverityCritical), dataset.Rows[0]["Severity"])
	require.Equal(t, "item-a", dataset.Rows[1]["Dispute ID"])
}

func TestExportServiceRejectsUnknownFormat(t *testing.T) {
	svc, reports := exportFixture(t, &disputeStoreStub{items: map[string]*models.DisputeItem{}})

	_, err := svc.Enqueue(context.Background(), "admin-1", models.ReportTypeViolations, dto.ExportRequest{Format: "xlsx"})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	require.Zero(t, reports.created)
}

func TestExportServiceFailedGenerationMarksJob(t *testing.T) {
	svc, reports := exportFixture(t, &disputeStoreStub{items: map[string]*models.DisputeItem{}})

	job, err := svc.Enqueue(context.Background(), "admin-1", models.ReportTypeViolations, dto.ExportRequest{Format: models.ReportFormatCSV})
	require.NoError(t, err)

	// Corrupt the job type so dataset building fails.
	reports.jobs[job.ID].Type = "unknown"

	require.Error(t, svc.HandleJob(context.Background(), jobs.Job{ID: job.ID}))

	stored, err := reports.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, models.ReportStatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
}

func TestExportServiceStatusUnknownJob(t *testing.T) {
	svc, _ := exportFixture(t, &disputeStoreStub{})

	_, err := svc.Status(context.Background(), "missing", "")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestExportServiceStatusScopedToCreator(t *testing.T) {
	svc, _ := exportFixture(t, &disputeStoreStub{items: map[string]*models.DisputeItem{}})

	job, err := svc.Enqueue(context.Background(), "admin-1", models.ReportTypeViolations, dto.ExportRequest{Format: models.ReportFormatCSV})
	require.NoError(t, err)

	// Creator and unscoped lookups see the job.
	status, err := svc.Status(context.Background(), job.ID, "admin-1")
	require.NoError(t, err)
	require.Equal(t, job.ID, status.ID)
	_, err = svc.Status(context.Background(), job.ID, "")
	require.NoError(t, err)

	// A different account reads as not found.
	_, err = svc.Status(context.Background(), job.ID, "someone-else")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
