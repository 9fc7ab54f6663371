package enforcement

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/credassure/credassure-api/internal/models"
	appErrors "github.com/credassure/credassure-api/pkg/errors"
)

var allStatuses = []models.RoundStatus{
	models.RoundStatusIdentityVerification,
	models.RoundStatusInvestigationPending,
	models.RoundStatusResponseReceived,
	models.RoundStatusNoResponse,
	models.RoundStatusStalled,
	models.RoundStatusViolationDetected,
	models.RoundStatusEscalationRequired,
	models.RoundStatusResolvedDeleted,
	models.RoundStatusResolvedVerified,
	models.RoundStatusResolvedUpdated,
}

var allClassifications = []models.MailClassification{
	models.ClassificationDeletionConfirmation,
	models.ClassificationReinsertionNotice,
	models.ClassificationVerificationRequest,
	models.ClassificationStallLetter,
	models.ClassificationClockReset,
	models.ClassificationPartialUpdate,
	models.ClassificationItemUpdated,
	models.ClassificationItemVerified,
	models.ClassificationAcknowledgment,
	models.ClassificationFurnisherResponse,
	models.ClassificationGenericResponse,
	models.ClassificationNoResponse,
}

// Every (state, classification) pair must either land inside the current
// state's allowed-transition row or be rejected with the state unchanged.
func TestTransitionNeverEscapesAllowedSet(t *testing.T) {
	rs := DefaultRuleSet()

	for _, status := range allStatuses {
		for _, classification := range allClassifications {
			for _, verified := range []bool{true, false} {
				ctx := DisputeContext{
					RoundNumber:      2,
					IdentityVerified: verified,
					DaysElapsed:      35,
					Synthetic:        classification == models.ClassificationNoResponse,
				}
				ev := Event{
					Classification: classification,
					Violation:      rs.Detect(classification, ctx),
				}

				next, err := Transition(status, ev)
				if err != nil {
					require.Equal(t, status, next, "state must be unchanged on rejection")
					continue
				}
				require.Contains(t, AllowedTargets(status), next,
					"state %s classification %s verified %v", status, classification, verified)
			}
		}
	}
}

func TestTransitionTerminalStatesRejectEvidence(t *testing.T) {
	for _, status := range []models.RoundStatus{
		models.RoundStatusResolvedDeleted,
		models.RoundStatusResolvedVerified,
		models.RoundStatusResolvedUpdated,
	} {
		next, err := Transition(status, Event{Classification: models.ClassificationGenericResponse})
		require.Error(t, err)
		require.True(t, errors.Is(err, appErrors.ErrTerminalState) || errors.As(err, new(*appErrors.Error)))
		require.Equal(t, status, next)
	}
}

func TestTransitionViolationOverridesClassification(t *testing.T) {
	rs := DefaultRuleSet()

	// A stall letter at round 2 with identity already verified is an
	// identity stall; the violation wins over the stall classification.
	violation := rs.Detect(models.ClassificationStallLetter, DisputeContext{
		RoundNumber:      2,
		IdentityVerified: true,
	})
	require.True(t, violation.HasViolation)

	next, err := Transition(models.RoundStatusInvestigationPending, Event{
		Classification: models.ClassificationStallLetter,
		Violation:      violation,
	})
	require.NoError(t, err)
	require.Equal(t, models.RoundStatusViolationDetected, next)
}

func TestTransitionRepeatedCriticalEscalates(t *testing.T) {
	critical := verdict(models.ViolationClockManipulation)

	// First critical lands in VIOLATION_DETECTED...
	next, err := Transition(models.RoundStatusInvestigationPending, Event{
		Classification: models.ClassificationClockReset,
		Violation:      critical,
	})
	require.NoError(t, err)
	require.Equal(t, models.RoundStatusViolationDetected, next)

	// ...a second critical from there forces escalation.
	next, err = Transition(next, Event{
		Classification: models.ClassificationClockReset,
		Violation:      critical,
	})
	require.NoError(t, err)
	require.Equal(t, models.RoundStatusEscalationRequired, next)

	// RepeatCritical escalates even from a non-violation state.
	next, err = Transition(models.RoundStatusResponseReceived, Event{
		Classification: models.ClassificationClockReset,
		Violation:      critical,
		RepeatCritical: true,
	})
	require.NoError(t, err)
	require.Equal(t, models.RoundStatusEscalationRequired, next)
}

func TestTransitionNoResponsePath(t *testing.T) {
	rs := DefaultRuleSet()

	violation := rs.Detect(models.ClassificationNoResponse, DisputeContext{
		RoundNumber: 1,
		DaysElapsed: 35,
		Synthetic:   true,
	})
	require.True(t, violation.HasViolation)

	next, err := Transition(models.RoundStatusInvestigationPending, Event{
		Classification: models.ClassificationNoResponse,
		Violation:      violation,
	})
	require.NoError(t, err)
	require.Equal(t, models.RoundStatusViolationDetected, next)

	// NO_RESPONSE as a bare state only ever moves to VIOLATION_DETECTED.
	require.Equal(t, []models.RoundStatus{models.RoundStatusViolationDetected},
		AllowedTargets(models.RoundStatusNoResponse))
}

func TestTransitionDeletionResolves(t *testing.T) {
	next, err := Transition(models.RoundStatusInvestigationPending, Event{
		Classification: models.ClassificationDeletionConfirmation,
	})
	require.NoError(t, err)
	require.Equal(t, models.RoundStatusResolvedDeleted, next)
}

func TestVerifyIdentity(t *testing.T) {
	next, err := VerifyIdentity(models.RoundStatusIdentityVerification)
	require.NoError(t, err)
	require.Equal(t, models.RoundStatusInvestigationPending, next)

	_, err = VerifyIdentity(models.RoundStatusInvestigationPending)
	require.Error(t, err)
}

func TestReinsertReopensDeletedOnly(t *testing.T) {
	next, err := Reinsert(models.RoundStatusResolvedDeleted)
	require.NoError(t, err)
	require.Equal(t, models.RoundStatusInvestigationPending, next)

	for _, status := range allStatuses {
		if status == models.RoundStatusResolvedDeleted {
			continue
		}
		got, err := Reinsert(status)
		require.Error(t, err)
		require.Equal(t, status, got)
	}
}
