package dto

import "github.com/credassure/credassure-api/internal/models"

// ExportRequest captures POST /exports/violations payload.
type ExportRequest struct {
	MemberID string              `json:"memberId"`
	Bureau   *models.Bureau      `json:"bureau,omitempty"`
	Format   models.ReportFormat `json:"format" binding:"required,reportformat"`
}

// ExportJobResponse is returned after enqueueing an export.
type ExportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ReportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ExportStatusResponse exposes job progress metadata.
type ExportStatusResponse struct {
	ID        string              `json:"id"`
	Status    models.ReportStatus `json:"status"`
	Progress  int                 `json:"progress"`
	ResultURL *string             `json:"resultUrl,omitempty"`
	Error     *string             `json:"error,omitempty"`
}
