// Package enforcement implements the violation engine: evidence
// classification, procedural violation detection, the dispute round state
// machine, and next-action advice. Everything here is pure computation over
// explicit, ordered rule tables; persistence and transport live elsewhere.
package enforcement

import "github.com/credassure/credassure-api/internal/models"

// DefaultRuleSetVersion identifies the rule tables compiled into this build.
// A scan run pins the version it started with and records it in its report.
const DefaultRuleSetVersion = "2026.02"

// violationSpec fixes the static attributes of a violation type. Severity is
// informational and never varies by context; the remedy template is used
// verbatim by the advisor so detection and guidance cannot drift apart.
type violationSpec struct {
	Severity models.ViolationSeverity
	Details  string
	Remedy   string
}

var violationCatalog = map[models.ViolationType]violationSpec{
	models.ViolationDay31Timeout: {
		Severity: models.SeverityCritical,
		Details:  "no bureau response received within the statutory window",
		Remedy:   "Bureau failed to respond within the statutory 30-day window. Demand deletion of the disputed item and file a CFPB complaint citing FCRA 611(a)(1).",
	},
	models.ViolationReinsertionNoNotice: {
		Severity: models.SeverityCritical,
		Details:  "previously deleted item reinserted without 5-day advance notice",
		Remedy:   "Item was reinserted without the required 5-day advance notice. Demand immediate re-deletion citing FCRA 611(a)(5)(B).",
	},
	models.ViolationIdentityStall: {
		Severity: models.SeverityMajor,
		Details:  "identity re-demanded after round-1 verification was completed",
		Remedy:   "Identity was verified in Round 1 and may not be re-demanded. Respond citing the prior verification and demand the investigation proceed.",
	},
	models.ViolationGenericStall: {
		Severity: models.SeverityMinor,
		Details:  "stall letter received with no investigation result",
		Remedy:   "Stall letter on file with no substantive result. Send a follow-up demanding a complete response before the statutory deadline.",
	},
	models.ViolationClockManipulation: {
		Severity: models.SeverityCritical,
		Details:  "bureau restarted its response clock without new grounds",
		Remedy:   "Bureau reset its own response clock without cause. Dispute the reset in writing and hold the bureau to the original deadline.",
	},
	models.ViolationIncompleteInvestigation: {
		Severity: models.SeverityMajor,
		Details:  "multi-item dispute handled partially with items silently dropped",
		Remedy:   "Bureau addressed only part of the dispute. Re-dispute the dropped items and cite the incomplete investigation.",
	},
}

// Severity returns the fixed severity for a violation type.
func Severity(t models.ViolationType) models.ViolationSeverity {
	return violationCatalog[t].Severity
}

// Remedy returns the fixed remedy-action template for a violation type.
func Remedy(t models.ViolationType) string {
	return violationCatalog[t].Remedy
}

func verdict(t models.ViolationType) models.ViolationResult {
	spec := violationCatalog[t]
	return models.ViolationResult{
		HasViolation: true,
		Type:         t,
		Severity:     spec.Severity,
		Details:      spec.Details,
		RemedyAction: spec.Remedy,
	}
}
