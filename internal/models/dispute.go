package models

import "time"

// Bureau identifies a credit reporting agency.
type Bureau string

const (
	BureauEquifax    Bureau = "EQUIFAX"
	BureauExperian   Bureau = "EXPERIAN"
	BureauTransUnion Bureau = "TRANSUNION"
)

// ValidBureau reports whether the value is one of the known agencies.
func ValidBureau(b Bureau) bool {
	switch b {
	case BureauEquifax, BureauExperian, BureauTransUnion:
		return true
	}
	return false
}

// RoundStatus is the per-round lifecycle state of a dispute item.
type RoundStatus string

const (
	RoundStatusIdentityVerification RoundStatus = "IDENTITY_VERIFICATION"
	RoundStatusInvestigationPending RoundStatus = "INVESTIGATION_PENDING"
	RoundStatusResponseReceived     RoundStatus = "RESPONSE_RECEIVED"
	RoundStatusNoResponse           RoundStatus = "NO_RESPONSE"
	RoundStatusStalled              RoundStatus = "STALLED"
	RoundStatusViolationDetected    RoundStatus = "VIOLATION_DETECTED"
	RoundStatusEscalationRequired   RoundStatus = "ESCALATION_REQUIRED"
	RoundStatusResolvedDeleted      RoundStatus = "RESOLVED_DELETED"
	RoundStatusResolvedVerified     RoundStatus = "RESOLVED_VERIFIED"
	RoundStatusResolvedUpdated      RoundStatus = "RESOLVED_UPDATED"
)

// Terminal reports whether the status accepts no further evidence-driven
// transitions. Reinsertion is the single explicit exit from RESOLVED_DELETED
// and is handled outside normal evidence flow.
func (s RoundStatus) Terminal() bool {
	switch s {
	case RoundStatusResolvedDeleted, RoundStatusResolvedVerified, RoundStatusResolvedUpdated:
		return true
	}
	return false
}

// DisputeItem is one contested entry on one bureau report.
//
// DisputeFiledAt and ResponseDeadline are fixed at creation and never reset;
// a bureau restarting the clock is itself a violation the detector flags.
// Version backs the optimistic lock guarding the ingest read-modify-write.
type DisputeItem struct {
	ID          string      `db:"id" json:"id"`
	MemberID    string      `db:"member_id" json:"member_id"`
	Bureau      Bureau      `db:"bureau" json:"bureau"`
	Creditor    string      `db:"creditor" json:"creditor"`
	AccountRef  string      `db:"account_ref" json:"account_ref"`
	RoundNumber int         `db:"round_number" json:"round_number"`
	RoundStatus RoundStatus `db:"round_status" json:"round_status"`

	DisputeFiledAt   time.Time  `db:"dispute_filed_at" json:"dispute_filed_at"`
	ResponseDeadline time.Time  `db:"response_deadline" json:"response_deadline"`
	LastResponseAt   *time.Time `db:"last_response_at" json:"last_response_at,omitempty"`

	ProceduralViolation bool           `db:"procedural_violation" json:"procedural_violation"`
	ViolationType       *ViolationType `db:"violation_type" json:"violation_type,omitempty"`
	ViolationDetails    string         `db:"violation_details" json:"violation_details"`
	NextAction          string         `db:"next_action" json:"next_action"`

	Version   int64     `db:"version" json:"version"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// DaysElapsed returns whole days since the dispute was filed.
func (d *DisputeItem) DaysElapsed(now time.Time) int {
	if d.DisputeFiledAt.IsZero() {
		return 0
	}
	return int(now.Sub(d.DisputeFiledAt).Hours() / 24)
}

// DaysUntilDeadline is negative once the statutory deadline has passed.
func (d *DisputeItem) DaysUntilDeadline(now time.Time) int {
	return int(d.ResponseDeadline.Sub(now).Hours() / 24)
}

// Overdue reports whether the response deadline has passed with no evidence
// received since filing.
func (d *DisputeItem) Overdue(now time.Time) bool {
	return now.After(d.ResponseDeadline) && d.LastResponseAt == nil
}

// DisputeItemFilter constrains listing queries. Sorting is violations-first,
// deadline-soonest unless overridden.
type DisputeItemFilter struct {
	MemberID    string
	Bureau      Bureau
	Statuses    []RoundStatus
	OnlyOverdue bool
	Limit       int
	Offset      int
}

// EnforcementView is the derived read model for a dispute item; every field
// is computed from the stored row plus "now".
type EnforcementView struct {
	DisputeItemID       string         `json:"dispute_item_id"`
	RoundNumber         int            `json:"round_number"`
	RoundStatus         RoundStatus    `json:"round_status"`
	ProceduralViolation bool           `json:"procedural_violation"`
	ViolationType       *ViolationType `json:"violation_type,omitempty"`
	ViolationDetails    string         `json:"violation_details,omitempty"`
	DaysFromDispute     int            `json:"days_from_dispute"`
	DaysUntilDeadline   int            `json:"days_until_deadline"`
	IsOverdue           bool           `json:"is_overdue"`
	NextAction          string         `json:"next_action"`
}

// EnforcementSummary aggregates a member's dispute posture for triage.
type EnforcementSummary struct {
	MemberID        string         `json:"member_id"`
	OpenItems       int            `json:"open_items"`
	OverdueItems    int            `json:"overdue_items"`
	ViolationsBySev map[string]int `json:"violations_by_severity"`
}
