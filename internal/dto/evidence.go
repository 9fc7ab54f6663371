package dto

import "time"

// IngestEvidenceRequest captures POST /disputes/:id/evidence payload. The
// raw letter text is required; classification is always derived server-side.
type IngestEvidenceRequest struct {
	RawContent string     `json:"rawContent" binding:"required"`
	ReceivedAt *time.Time `json:"receivedAt,omitempty"`
}
