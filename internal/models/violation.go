package models

// ViolationType enumerates procedural/statutory violation categories.
type ViolationType string

const (
	ViolationDay31Timeout            ViolationType = "DAY_31_TIMEOUT"
	ViolationReinsertionNoNotice     ViolationType = "REINSERTION_NO_NOTICE"
	ViolationIdentityStall           ViolationType = "IDENTITY_STALL"
	ViolationGenericStall            ViolationType = "GENERIC_STALL"
	ViolationClockManipulation       ViolationType = "CLOCK_MANIPULATION"
	ViolationIncompleteInvestigation ViolationType = "INCOMPLETE_INVESTIGATION"
)

// ViolationSeverity ranks violations for triage ordering. It is informational
// only; the state machine never branches on it beyond the escalation rule.
type ViolationSeverity string

const (
	SeverityMinor    ViolationSeverity = "minor"
	SeverityMajor    ViolationSeverity = "major"
	SeverityCritical ViolationSeverity = "critical"
)

// SeverityRank orders severities for sorting (higher is worse).
func SeverityRank(s ViolationSeverity) int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityMajor:
		return 2
	case SeverityMinor:
		return 1
	}
	return 0
}

// ViolationResult is the detector's verdict for one piece of evidence.
type ViolationResult struct {
	HasViolation bool              `json:"has_violation"`
	Type         ViolationType     `json:"type,omitempty"`
	Severity     ViolationSeverity `json:"severity,omitempty"`
	Details      string            `json:"details,omitempty"`
	RemedyAction string            `json:"remedy_action,omitempty"`
}
