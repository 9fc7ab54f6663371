package dto

import (
	"time"

	"github.com/credassure/credassure-api/internal/models"
)

// ScanViolation is one violation flagged during a scanner run.
type ScanViolation struct {
	DisputeItemID string                   `json:"disputeItemId"`
	MemberID      string                   `json:"memberId"`
	Bureau        models.Bureau            `json:"bureau"`
	Type          models.ViolationType     `json:"type"`
	Severity      models.ViolationSeverity `json:"severity"`
	DaysElapsed   int                      `json:"daysElapsed"`
}

// ScanFailure records an item the scanner could not process. Failures never
// abort the run; they surface here for operators.
type ScanFailure struct {
	DisputeItemID string `json:"disputeItemId"`
	Reason        string `json:"reason"`
}

// ScanReport summarizes one deadline-scanner run.
type ScanReport struct {
	RuleSetVersion     string          `json:"ruleSetVersion"`
	StartedAt          time.Time       `json:"startedAt"`
	FinishedAt         time.Time       `json:"finishedAt"`
	ItemsScanned       int             `json:"itemsScanned"`
	ViolationsDetected int             `json:"violationsDetected"`
	Violations         []ScanViolation `json:"violations,omitempty"`
	Failures           []ScanFailure   `json:"failures,omitempty"`
	Cancelled          bool            `json:"cancelled"`
}
