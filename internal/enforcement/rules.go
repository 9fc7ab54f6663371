package enforcement

import "github.com/credassure/credassure-api/internal/models"

// DisputeContext carries the dispute-side facts the detector needs. It is
// assembled by the caller; the detector itself never touches storage.
type DisputeContext struct {
	RoundNumber      int
	IdentityVerified bool
	DaysElapsed      int

	// PriorAdvanceNotice is true when a 5-day advance reinsertion notice is
	// already on file for this item.
	PriorAdvanceNotice bool
	// Synthetic marks scanner-generated evidence.
	Synthetic bool
}

// RuleSet is the explicit configuration for violation detection. It replaces
// any ad-hoc mid-computation rule lookup: callers build one (usually
// DefaultRuleSet), pin it for the duration of a run, and pass it in.
type RuleSet struct {
	Version         string
	DeadlineDay     int
	EarlyWarningDay int
	Disabled        map[models.ViolationType]bool
}

// DefaultRuleSet returns the statutory defaults: a 30-day window plus one day
// of grace, early warning at day 25.
func DefaultRuleSet() RuleSet {
	return RuleSet{
		Version:         DefaultRuleSetVersion,
		DeadlineDay:     31,
		EarlyWarningDay: 25,
	}
}

// violationRule pairs a predicate with its resulting violation type. A nil
// violation type means "matched, and there is explicitly no violation",
// which short-circuits later rules (the round-1 verification flow).
type violationRule struct {
	Name    string
	Applies func(models.MailClassification, DisputeContext, RuleSet) bool
	Type    *models.ViolationType
}

func vt(t models.ViolationType) *models.ViolationType { return &t }

func isIdentityDemand(c models.MailClassification) bool {
	return c == models.ClassificationVerificationRequest || c == models.ClassificationStallLetter
}

// violationTable is evaluated top to bottom; the first applicable rule wins.
// The round-1 verification rule sits above the identity-stall and generic
// stall rules on purpose: a verification demand (or stall) in round 1 before
// verification is the expected flow, never a violation.
var violationTable = []violationRule{
	{
		Name: "day-31 timeout",
		Applies: func(c models.MailClassification, ctx DisputeContext, rs RuleSet) bool {
			return c == models.ClassificationNoResponse && ctx.Synthetic && ctx.DaysElapsed >= rs.DeadlineDay
		},
		Type: vt(models.ViolationDay31Timeout),
	},
	{
		Name: "reinsertion without notice",
		Applies: func(c models.MailClassification, ctx DisputeContext, rs RuleSet) bool {
			return c == models.ClassificationReinsertionNotice && !ctx.PriorAdvanceNotice
		},
		Type: vt(models.ViolationReinsertionNoNotice),
	},
	{
		Name: "round-1 verification flow",
		Applies: func(c models.MailClassification, ctx DisputeContext, rs RuleSet) bool {
			return isIdentityDemand(c) && ctx.RoundNumber == 1 && !ctx.IdentityVerified
		},
		Type: nil,
	},
	{
		Name: "identity stall",
		Applies: func(c models.MailClassification, ctx DisputeContext, rs RuleSet) bool {
			return isIdentityDemand(c) && ctx.RoundNumber >= 2 && ctx.IdentityVerified
		},
		Type: vt(models.ViolationIdentityStall),
	},
	{
		Name: "generic stall",
		Applies: func(c models.MailClassification, ctx DisputeContext, rs RuleSet) bool {
			return c == models.ClassificationStallLetter || c == models.ClassificationAcknowledgment
		},
		Type: vt(models.ViolationGenericStall),
	},
	{
		Name: "clock manipulation",
		Applies: func(c models.MailClassification, ctx DisputeContext, rs RuleSet) bool {
			return c == models.ClassificationClockReset
		},
		Type: vt(models.ViolationClockManipulation),
	},
	{
		Name: "incomplete investigation",
		Applies: func(c models.MailClassification, ctx DisputeContext, rs RuleSet) bool {
			return c == models.ClassificationPartialUpdate
		},
		Type: vt(models.ViolationIncompleteInvestigation),
	},
}

// Detect runs the ordered decision table and returns the verdict for one
// piece of evidence. Deterministic and side-effect free.
func (rs RuleSet) Detect(classification models.MailClassification, ctx DisputeContext) models.ViolationResult {
	for _, rule := range violationTable {
		if !rule.Applies(classification, ctx, rs) {
			continue
		}
		if rule.Type == nil {
			return models.ViolationResult{}
		}
		if rs.Disabled[*rule.Type] {
			continue
		}
		return verdict(*rule.Type)
	}
	return models.ViolationResult{}
}
