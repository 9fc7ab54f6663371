package enforcement

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/credassure/credassure-api/internal/models"
)

func TestClassifyKnownPhrases(t *testing.T) {
	cases := []struct {
		name string
		text string
		want models.MailClassification
	}{
		{
			name: "deletion confirmation",
			text: "We have deleted the item as requested.",
			want: models.ClassificationDeletionConfirmation,
		},
		{
			name: "deletion case insensitive",
			text: "THE ITEM HAS BEEN DELETED FROM YOUR FILE.",
			want: models.ClassificationDeletionConfirmation,
		},
		{
			name: "reinsertion notice",
			text: "The previously removed account was reinserted on your report following new information from the furnisher.",
			want: models.ClassificationReinsertionNotice,
		},
		{
			name: "identity verification request",
			text: "We need additional information to verify your identity before we can proceed.",
			want: models.ClassificationVerificationRequest,
		},
		{
			name: "stall letter",
			text: "We are still investigating your dispute and need more time.",
			want: models.ClassificationStallLetter,
		},
		{
			name: "clock reset",
			text: "Your letter has been considered a new dispute and a new 30-day investigation period applies.",
			want: models.ClassificationClockReset,
		},
		{
			name: "partial update",
			text: "Some of the items you disputed have been corrected; the remaining items were verified.",
			want: models.ClassificationPartialUpdate,
		},
		{
			name: "item updated",
			text: "The account has been updated to reflect the correct balance.",
			want: models.ClassificationItemUpdated,
		},
		{
			name: "item verified",
			text: "The disputed information was verified as accurate.",
			want: models.ClassificationItemVerified,
		},
		{
			name: "furnisher response",
			text: "The data furnisher has confirmed the account details.",
			want: models.ClassificationFurnisherResponse,
		},
		{
			name: "acknowledgment only",
			text: "We have received your dispute and will respond in due course.",
			want: models.ClassificationAcknowledgment,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Classify(tc.text))
		})
	}
}

func TestClassifyFallsBackToGeneric(t *testing.T) {
	require.Equal(t, models.ClassificationGenericResponse, Classify("Thank you for contacting us."))
	require.Equal(t, models.ClassificationGenericResponse, Classify(""))
}

func TestClassifyNeverProducesNoResponse(t *testing.T) {
	// NO_RESPONSE is reserved for scanner-synthesized evidence.
	for _, rule := range classificationTable {
		require.NotEqual(t, models.ClassificationNoResponse, rule.Classification)
	}
	require.NotEqual(t, models.ClassificationNoResponse, Classify("no response"))
}

func TestClassifyFirstMatchWins(t *testing.T) {
	// Contains both deletion and acknowledgment wording; the deletion rule
	// sits higher in the table.
	text := "We have received your dispute. We have deleted the item as requested."
	require.Equal(t, models.ClassificationDeletionConfirmation, Classify(text))
}
