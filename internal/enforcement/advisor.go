package enforcement

import (
	"fmt"

	"github.com/credassure/credassure-api/internal/models"
)

// AdviceInput bundles everything the advisor may consult. All fields are
// plain values; Advise is deterministic given its input.
type AdviceInput struct {
	RoundStatus          models.RoundStatus
	DaysElapsed          int
	Violation            *models.ViolationResult
	LastClassification   models.MailClassification
	VerificationComplete bool
}

var stateGuidance = map[models.RoundStatus]string{
	models.RoundStatusIdentityVerification: "Complete identity verification with the bureau so the investigation clock can start.",
	models.RoundStatusInvestigationPending: "Awaiting bureau response. No action needed yet.",
	models.RoundStatusResponseReceived:     "Bureau response on file. Review the outcome and decide whether to escalate to the next round.",
	models.RoundStatusStalled:              "Bureau is stalling. Send a follow-up letter demanding a substantive investigation result.",
	models.RoundStatusNoResponse:           "No bureau response on record past the deadline. Treat as a statutory timeout.",
	models.RoundStatusEscalationRequired:   "Escalate: prepare a CFPB complaint and consider referral for FCRA litigation.",
	models.RoundStatusResolvedDeleted:      "Item deleted. Monitor the next two reports for unlawful reinsertion.",
	models.RoundStatusResolvedVerified:     "Bureau verified the item. Consider a method-of-verification request or a new round with additional documentation.",
	models.RoundStatusResolvedUpdated:      "Item updated. Confirm the correction on the next report before closing out.",
}

// Advise derives the recommended next action. Priority order: violation
// remedies first (critical before the rest), then state-specific guidance,
// then day-count warnings. Remedy text comes straight from the violation
// catalog so detection and operator guidance can never diverge.
func (rs RuleSet) Advise(in AdviceInput) string {
	if in.Violation != nil && in.Violation.HasViolation {
		return Remedy(in.Violation.Type)
	}

	if awaitingResponse(in.RoundStatus) {
		if in.DaysElapsed >= rs.DeadlineDay {
			return Remedy(models.ViolationDay31Timeout)
		}
		if in.DaysElapsed >= rs.EarlyWarningDay {
			return fmt.Sprintf("Deadline approaching: day %d of %d with no response. Prepare a timeout follow-up in case the bureau stays silent.", in.DaysElapsed, rs.DeadlineDay)
		}
	}

	if in.RoundStatus == models.RoundStatusIdentityVerification && in.VerificationComplete {
		return "Identity verification is complete. File the dispute to start the investigation."
	}

	if guidance, ok := stateGuidance[in.RoundStatus]; ok {
		return guidance
	}
	return "Review the dispute history and determine the next step manually."
}

// awaitingResponse reports whether the statutory clock is running against
// the bureau in this state.
func awaitingResponse(s models.RoundStatus) bool {
	return s == models.RoundStatusInvestigationPending || s == models.RoundStatusStalled
}
