package enforcement

import (
	"github.com/credassure/credassure-api/internal/models"

	appErrors "github.com/credassure/credassure-api/pkg/errors"
)

// Event describes one evidence-driven stimulus for the state machine.
type Event struct {
	Classification models.MailClassification
	Violation      models.ViolationResult

	// RepeatCritical is true when a critical violation is already on file
	// for this round; a second critical forces escalation.
	RepeatCritical bool
}

// allowedTransitions is the authoritative legality table. Transition consults
// it on every call; a target not listed for the current state is rejected,
// never applied. Terminal states map to nil: no evidence-driven exit.
var allowedTransitions = map[models.RoundStatus][]models.RoundStatus{
	models.RoundStatusIdentityVerification: {
		models.RoundStatusIdentityVerification,
		models.RoundStatusInvestigationPending,
		models.RoundStatusViolationDetected,
	},
	models.RoundStatusInvestigationPending: {
		models.RoundStatusInvestigationPending,
		models.RoundStatusResponseReceived,
		models.RoundStatusNoResponse,
		models.RoundStatusStalled,
		models.RoundStatusViolationDetected,
		models.RoundStatusEscalationRequired,
		models.RoundStatusResolvedDeleted,
		models.RoundStatusResolvedVerified,
		models.RoundStatusResolvedUpdated,
	},
	models.RoundStatusResponseReceived: {
		models.RoundStatusResponseReceived,
		models.RoundStatusStalled,
		models.RoundStatusViolationDetected,
		models.RoundStatusEscalationRequired,
		models.RoundStatusResolvedDeleted,
		models.RoundStatusResolvedVerified,
		models.RoundStatusResolvedUpdated,
	},
	models.RoundStatusNoResponse: {
		models.RoundStatusViolationDetected,
	},
	models.RoundStatusStalled: {
		models.RoundStatusResponseReceived,
		models.RoundStatusStalled,
		models.RoundStatusViolationDetected,
		models.RoundStatusEscalationRequired,
		models.RoundStatusResolvedDeleted,
		models.RoundStatusResolvedVerified,
		models.RoundStatusResolvedUpdated,
	},
	models.RoundStatusViolationDetected: {
		models.RoundStatusViolationDetected,
		models.RoundStatusEscalationRequired,
		models.RoundStatusResponseReceived,
		models.RoundStatusResolvedDeleted,
		models.RoundStatusResolvedVerified,
		models.RoundStatusResolvedUpdated,
	},
	models.RoundStatusEscalationRequired: {
		models.RoundStatusEscalationRequired,
		models.RoundStatusResolvedDeleted,
		models.RoundStatusResolvedVerified,
	},
	models.RoundStatusResolvedDeleted:  nil,
	models.RoundStatusResolvedVerified: nil,
	models.RoundStatusResolvedUpdated:  nil,
}

// AllowedTargets exposes the legality row for a state (copy).
func AllowedTargets(s models.RoundStatus) []models.RoundStatus {
	row := allowedTransitions[s]
	out := make([]models.RoundStatus, len(row))
	copy(out, row)
	return out
}

// Transition is the single entry point for evidence-driven state changes.
// It derives the target state from the event, then enforces the legality
// table: an unlisted transition returns ErrInvalidTransition (or
// ErrTerminalState from a resolved status) with the state unchanged.
//
// A detected violation overrides whatever the classification alone would
// suggest; repeated criticals force escalation.
func Transition(current models.RoundStatus, ev Event) (models.RoundStatus, error) {
	if current.Terminal() {
		return current, appErrors.ErrTerminalState
	}

	target := targetFor(current, ev)
	if !transitionAllowed(current, target) {
		return current, appErrors.ErrInvalidTransition
	}
	return target, nil
}

// VerifyIdentity applies the one non-evidence entry condition: identity
// verification completing for the (member, bureau) pair.
func VerifyIdentity(current models.RoundStatus) (models.RoundStatus, error) {
	if current != models.RoundStatusIdentityVerification {
		return current, appErrors.ErrInvalidTransition
	}
	return models.RoundStatusInvestigationPending, nil
}

// Reinsert reopens a deleted item after a reinsertion event. This is the
// single legal exit from RESOLVED_DELETED.
func Reinsert(current models.RoundStatus) (models.RoundStatus, error) {
	if current != models.RoundStatusResolvedDeleted {
		return current, appErrors.ErrInvalidTransition
	}
	return models.RoundStatusInvestigationPending, nil
}

func targetFor(current models.RoundStatus, ev Event) models.RoundStatus {
	if ev.Violation.HasViolation {
		if ev.Violation.Severity == models.SeverityCritical &&
			(current == models.RoundStatusViolationDetected || ev.RepeatCritical) {
			return models.RoundStatusEscalationRequired
		}
		return models.RoundStatusViolationDetected
	}

	switch ev.Classification {
	case models.ClassificationDeletionConfirmation:
		return models.RoundStatusResolvedDeleted
	case models.ClassificationItemVerified:
		return models.RoundStatusResolvedVerified
	case models.ClassificationItemUpdated, models.ClassificationPartialUpdate:
		return models.RoundStatusResolvedUpdated
	case models.ClassificationNoResponse:
		return models.RoundStatusNoResponse
	case models.ClassificationReinsertionNotice:
		// Notice was properly given (otherwise the detector fired); the
		// bureau reopens its investigation.
		return models.RoundStatusInvestigationPending
	case models.ClassificationVerificationRequest, models.ClassificationStallLetter:
		if current == models.RoundStatusIdentityVerification {
			return models.RoundStatusIdentityVerification
		}
		return models.RoundStatusStalled
	default:
		return models.RoundStatusResponseReceived
	}
}

func transitionAllowed(current, target models.RoundStatus) bool {
	for _, allowed := range allowedTransitions[current] {
		if allowed == target {
			return true
		}
	}
	return false
}
