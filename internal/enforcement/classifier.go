package enforcement

import (
	"strings"

	"github.com/credassure/credassure-api/internal/models"
)

// classificationRule maps a phrase set to a classification. The table is
// scanned top to bottom and the first rule with any matching phrase wins, so
// more specific wording must sit above catch-all wording.
type classificationRule struct {
	Classification models.MailClassification
	Phrases        []string
}

var classificationTable = []classificationRule{
	{
		Classification: models.ClassificationDeletionConfirmation,
		Phrases: []string{
			"we have deleted",
			"has been deleted",
			"item deleted",
			"deleted the item",
			"removed from your credit report",
			"removed from your credit file",
		},
	},
	{
		Classification: models.ClassificationReinsertionNotice,
		Phrases: []string{
			"reinserted",
			"re-inserted",
			"placed back on your report",
			"added back to your credit file",
		},
	},
	{
		Classification: models.ClassificationVerificationRequest,
		Phrases: []string{
			"verify your identity",
			"proof of identity",
			"information to verify your identity",
			"copy of your driver",
			"copy of your social security",
		},
	},
	{
		Classification: models.ClassificationClockReset,
		Phrases: []string{
			"new 30-day",
			"new thirty-day",
			"new investigation period",
			"restarted our investigation",
			"considered a new dispute",
		},
	},
	{
		Classification: models.ClassificationStallLetter,
		Phrases: []string{
			"need more time",
			"additional time",
			"still investigating",
			"currently investigating",
			"currently reviewing your dispute",
			"we need additional information",
		},
	},
	{
		Classification: models.ClassificationPartialUpdate,
		Phrases: []string{
			"some of the items",
			"partially updated",
			"the remaining items",
		},
	},
	{
		Classification: models.ClassificationItemUpdated,
		Phrases: []string{
			"has been updated",
			"information has been corrected",
			"account has been updated",
		},
	},
	{
		Classification: models.ClassificationItemVerified,
		Phrases: []string{
			"verified as accurate",
			"has been verified",
			"belongs to you",
			"information is accurate",
		},
	},
	{
		Classification: models.ClassificationFurnisherResponse,
		Phrases: []string{
			"the furnisher",
			"data furnisher",
			"information provider has responded",
		},
	},
	{
		Classification: models.ClassificationAcknowledgment,
		Phrases: []string{
			"we have received your dispute",
			"we received your dispute",
			"your dispute has been received",
			"acknowledgment of your dispute",
		},
	},
}

// Classify maps raw correspondence text to a mail classification. Matching is
// case-insensitive substring search against the ordered table; unmatched text
// falls back to GENERIC_RESPONSE. NO_RESPONSE is never produced here.
//
// This is the deterministic ground truth. A higher-fidelity external
// classification may override it upstream, but this table must stay complete
// enough to run without that dependency.
func Classify(rawText string) models.MailClassification {
	text := strings.ToLower(rawText)
	for _, rule := range classificationTable {
		for _, phrase := range rule.Phrases {
			if strings.Contains(text, phrase) {
				return rule.Classification
			}
		}
	}
	return models.ClassificationGenericResponse
}
