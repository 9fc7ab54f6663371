package models

import "time"

// VerificationStatus is the per-(member, bureau) identity verification state.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
)

// IdentityVerification tracks whether Round-1 identity verification has been
// completed for a member at a bureau. Created lazily on first consult; the
// verification pipeline updates it, the violation detector only reads it.
type IdentityVerification struct {
	ID         string             `db:"id" json:"id"`
	MemberID   string             `db:"member_id" json:"member_id"`
	Bureau     Bureau             `db:"bureau" json:"bureau"`
	Status     VerificationStatus `db:"status" json:"status"`
	VerifiedAt *time.Time         `db:"verified_at" json:"verified_at,omitempty"`
	CreatedAt  time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time          `db:"updated_at" json:"updated_at"`
}
