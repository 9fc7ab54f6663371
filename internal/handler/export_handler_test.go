package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/credassure/credassure-api/internal/dto"
	"github.com/credassure/credassure-api/internal/middleware"
	"github.com/credassure/credassure-api/internal/models"
)

type exportServiceMock struct {
	job       *dto.ExportJobResponse
	jobErr    error
	status    *dto.ExportStatusResponse
	statusErr error
	relPath   string
	parseErr  error
	file      *os.File
	lastReq   dto.ExportRequest
	lastActor string
}

func (m *exportServiceMock) Enqueue(ctx context.Context, actorID string, reportType models.ReportType, req dto.ExportRequest) (*dto.ExportJobResponse, error) {
	m.lastReq = req
	return m.job, m.jobErr
}

func (m *exportServiceMock) Status(ctx context.Context, jobID, actorID string) (*dto.ExportStatusResponse, error) {
	m.lastActor = actorID
	return m.status, m.statusErr
}

func (m *exportServiceMock) ParseToken(token string, allowExpired bool) (string, string, time.Time, error) {
	return "job-1", m.relPath, time.Now().Add(time.Hour), m.parseErr
}

func (m *exportServiceMock) Open(relPath string) (*os.File, error) {
	return m.file, nil
}

func TestExportHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &exportServiceMock{job: &dto.ExportJobResponse{ID: "job-1", Status: models.ReportStatusQueued}}
	handler := NewExportHandler(mockSvc)

	payload, _ := json.Marshal(dto.ExportRequest{MemberID: "member-1", Format: models.ReportFormatCSV})
	c, w := newGinContext(http.MethodPost, "/exports/violations", payload)
	c.Params = gin.Params{{Key: "type", Value: "violations"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})

	handler.Create(c)
	require.Equal(t, http.StatusAccepted, w.Code)
}

func TestExportHandlerCreateUnknownType(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewExportHandler(&exportServiceMock{})

	payload, _ := json.Marshal(dto.ExportRequest{Format: models.ReportFormatCSV})
	c, w := newGinContext(http.MethodPost, "/exports/grades", payload)
	c.Params = gin.Params{{Key: "type", Value: "grades"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})

	handler.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportHandlerCreateMemberScoped(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &exportServiceMock{job: &dto.ExportJobResponse{ID: "job-1", Status: models.ReportStatusQueued}}
	handler := NewExportHandler(mockSvc)

	payload, _ := json.Marshal(dto.ExportRequest{MemberID: "someone-else", Format: models.ReportFormatPDF})
	c, w := newGinContext(http.MethodPost, "/exports/enforcement", payload)
	c.Params = gin.Params{{Key: "type", Value: "enforcement"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", MemberID: "member-7", Role: models.RoleMember})

	handler.Create(c)
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Equal(t, "member-7", mockSvc.lastReq.MemberID)
}

func TestExportHandlerStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &exportServiceMock{status: &dto.ExportStatusResponse{ID: "job-1", Status: models.ReportStatusFinished, Progress: 100}}
	handler := NewExportHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/exports/job-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "job-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})

	handler.Status(c)
	require.Equal(t, http.StatusOK, w.Code)
	// Admins see any job.
	require.Empty(t, mockSvc.lastActor)
}

func TestExportHandlerStatusScopesNonAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &exportServiceMock{status: &dto.ExportStatusResponse{ID: "job-1", Status: models.ReportStatusQueued}}
	handler := NewExportHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/exports/job-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "job-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "agent-7", Role: models.RoleAgent})

	handler.Status(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "agent-7", mockSvc.lastActor)
}

func TestExportHandlerStatusRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewExportHandler(&exportServiceMock{})

	c, w := newGinContext(http.MethodGet, "/exports/job-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "job-1"}}

	handler.Status(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestExportHandlerDownload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	file, err := os.CreateTemp("", "export*.csv")
	require.NoError(t, err)
	defer os.Remove(file.Name())
	_, _ = file.WriteString("member,bureau,type\n")
	_, _ = file.Seek(0, 0)

	mockSvc := &exportServiceMock{relPath: "job-1/violations.csv", file: file}
	handler := NewExportHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/exports/download/token", nil)
	c.Params = gin.Params{{Key: "token", Value: "token"}}

	handler.Download(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "text/csv", w.Header().Get("Content-Type"))
}
