package dto

import (
	"time"

	"github.com/credassure/credassure-api/internal/models"
)

// CreateDisputeRequest captures POST /disputes payload.
type CreateDisputeRequest struct {
	MemberID   string        `json:"memberId"`
	Bureau     models.Bureau `json:"bureau" binding:"required,bureau"`
	Creditor   string        `json:"creditor" binding:"required"`
	AccountRef string        `json:"accountRef" binding:"required"`
	FiledAt    *time.Time    `json:"filedAt,omitempty"`
}

// DisputeQuery mirrors supported listing filters.
type DisputeQuery struct {
	MemberID    string               `form:"memberId"`
	Bureau      models.Bureau        `form:"bureau"`
	Status      []models.RoundStatus `form:"status"`
	OnlyOverdue bool                 `form:"overdue"`
	Limit       int                  `form:"limit"`
	Offset      int                  `form:"offset"`
}

// AdvanceRoundRequest starts the next escalation round for an item.
type AdvanceRoundRequest struct {
	ExpectedVersion int64 `json:"expectedVersion" binding:"required"`
}

// IngestResult reports the outcome of one evidence ingestion.
type IngestResult struct {
	EvidenceID     string                    `json:"evidenceId"`
	Classification models.MailClassification `json:"classification"`
	Violation      *models.ViolationResult   `json:"violation,omitempty"`
	PreviousStatus models.RoundStatus        `json:"previousStatus"`
	NewStatus      models.RoundStatus        `json:"newStatus"`
	NextAction     string                    `json:"nextAction"`
}
