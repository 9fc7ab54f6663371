package models

import "time"

// MailClassification is the closed set of bureau-correspondence categories.
// Ordering in the classifier rule table, not declaration order here, decides
// detection priority.
type MailClassification string

const (
	ClassificationDeletionConfirmation MailClassification = "DELETION_CONFIRMATION"
	ClassificationReinsertionNotice    MailClassification = "REINSERTION_NOTICE"
	ClassificationVerificationRequest  MailClassification = "VERIFICATION_REQUEST"
	ClassificationStallLetter          MailClassification = "STALL_LETTER"
	ClassificationClockReset           MailClassification = "CLOCK_RESET"
	ClassificationPartialUpdate        MailClassification = "PARTIAL_UPDATE"
	ClassificationItemUpdated          MailClassification = "ITEM_UPDATED"
	ClassificationItemVerified         MailClassification = "ITEM_VERIFIED"
	ClassificationAcknowledgment       MailClassification = "ACKNOWLEDGMENT_ONLY"
	ClassificationFurnisherResponse    MailClassification = "FURNISHER_RESPONSE"
	ClassificationGenericResponse      MailClassification = "GENERIC_RESPONSE"

	// ClassificationNoResponse is never produced by text matching; the
	// deadline scanner synthesizes it when the statutory window lapses in
	// silence.
	ClassificationNoResponse MailClassification = "NO_RESPONSE"
)

// MailEvidence is one immutable record per piece of correspondence.
// Rows are append-only: created on ingestion, never mutated.
type MailEvidence struct {
	ID             string             `db:"id" json:"id"`
	DisputeItemID  string             `db:"dispute_item_id" json:"dispute_item_id"`
	Bureau         Bureau             `db:"bureau" json:"bureau"`
	RoundNumber    int                `db:"round_number" json:"round_number"`
	ReceivedAt     time.Time          `db:"received_at" json:"received_at"`
	RawContent     string             `db:"raw_content" json:"raw_content"`
	Classification MailClassification `db:"classification" json:"classification"`

	TriggersViolation bool           `db:"triggers_violation" json:"triggers_violation"`
	ViolationType     *ViolationType `db:"violation_type" json:"violation_type,omitempty"`

	// Synthetic marks scanner-generated no-response records.
	Synthetic bool      `db:"synthetic" json:"synthetic"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// EvidenceAttachment is an opaque file reference hanging off an evidence row.
type EvidenceAttachment struct {
	ID         string    `db:"id" json:"id"`
	EvidenceID string    `db:"evidence_id" json:"evidence_id"`
	FileName   string    `db:"file_name" json:"file_name"`
	MIMEType   string    `db:"mime_type" json:"mime_type"`
	SizeBytes  int64     `db:"size_bytes" json:"size_bytes"`
	StoredPath string    `db:"stored_path" json:"-"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// EvidenceFilter constrains evidence listing (always ordered by received_at).
type EvidenceFilter struct {
	DisputeItemID string
	RoundNumber   int
	SyntheticOnly bool
	Limit         int
	Offset        int
}
