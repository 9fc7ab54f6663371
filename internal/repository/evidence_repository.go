package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/credassure/credassure-api/internal/models"
)

const evidenceColumns = `id, dispute_item_id, bureau, round_number, received_at, raw_content,
       classification, triggers_violation, violation_type, synthetic, created_at`

// EvidenceRepository persists mail evidence and its attachments.
// Evidence rows are append-only; there are no update methods on purpose.
type EvidenceRepository struct {
	db *sqlx.DB
}

// NewEvidenceRepository constructs the repository.
func NewEvidenceRepository(db *sqlx.DB) *EvidenceRepository {
	return &EvidenceRepository{db: db}
}

// Create inserts one evidence row outside the ingest transaction. The normal
// ingest path goes through DisputeRepository.CommitIngest instead.
func (r *EvidenceRepository) Create(ctx context.Context, evidence *models.MailEvidence) error {
	if evidence.ID == "" {
		evidence.ID = uuid.NewString()
	}
	if evidence.CreatedAt.IsZero() {
		evidence.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO mail_evidence
	(id, dispute_item_id, bureau, round_number, received_at, raw_content, classification,
	 triggers_violation, violation_type, synthetic, created_at)
	VALUES (:id, :dispute_item_id, :bureau, :round_number, :received_at, :raw_content, :classification,
	 :triggers_violation, :violation_type, :synthetic, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, evidence); err != nil {
		return fmt.Errorf("create mail evidence: %w", err)
	}
	return nil
}

// GetByID fetches a single evidence row.
func (r *EvidenceRepository) GetByID(ctx context.Context, id string) (*models.MailEvidence, error) {
	query := `SELECT ` + evidenceColumns + ` FROM mail_evidence WHERE id = $1`
	var evidence models.MailEvidence
	if err := r.db.GetContext(ctx, &evidence, query, id); err != nil {
		return nil, err
	}
	return &evidence, nil
}

// List returns evidence rows matching the filter, oldest first so the
// correspondence reads as a timeline.
func (r *EvidenceRepository) List(ctx context.Context, filter models.EvidenceFilter) ([]models.MailEvidence, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 3)
	builder.WriteString(`SELECT ` + evidenceColumns + ` FROM mail_evidence`)

	conditions := make([]string, 0, 3)
	if filter.DisputeItemID != "" {
		args = append(args, filter.DisputeItemID)
		conditions = append(conditions, fmt.Sprintf("dispute_item_id = $%d", len(args)))
	}
	if filter.RoundNumber > 0 {
		args = append(args, filter.RoundNumber)
		conditions = append(conditions, fmt.Sprintf("round_number = $%d", len(args)))
	}
	if filter.SyntheticOnly {
		conditions = append(conditions, "synthetic = TRUE")
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY received_at ASC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var evidence []models.MailEvidence
	if err := r.db.SelectContext(ctx, &evidence, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list mail evidence: %w", err)
	}
	return evidence, nil
}

// HasSyntheticNoResponse reports whether the scanner already recorded a
// no-response for this item and round. The scanner's idempotency check.
func (r *EvidenceRepository) HasSyntheticNoResponse(ctx context.Context, itemID string, round int) (bool, error) {
	const query = `SELECT COUNT(1) FROM mail_evidence
	WHERE dispute_item_id = $1 AND round_number = $2 AND classification = $3 AND synthetic = TRUE`
	var count int
	if err := r.db.GetContext(ctx, &count, query, itemID, round, models.ClassificationNoResponse); err != nil {
		return false, fmt.Errorf("check synthetic no-response: %w", err)
	}
	return count > 0, nil
}

// LatestClassification returns the most recent real (non-synthetic)
// classification for an item, or empty when none exists.
func (r *EvidenceRepository) LatestClassification(ctx context.Context, itemID string) (models.MailClassification, error) {
	const query = `SELECT classification FROM mail_evidence
	WHERE dispute_item_id = $1 AND synthetic = FALSE
	ORDER BY received_at DESC LIMIT 1`
	var classification models.MailClassification
	err := r.db.GetContext(ctx, &classification, query, itemID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("latest classification: %w", err)
	}
	return classification, nil
}

// HasPriorReinsertionNotice reports whether a reinsertion notice for this item
// arrived at least the advance-notice window before the given moment. Bureaus
// owe five days of written warning before putting a deleted item back.
func (r *EvidenceRepository) HasPriorReinsertionNotice(ctx context.Context, itemID string, before time.Time, noticeDays int) (bool, error) {
	const query = `SELECT COUNT(1) FROM mail_evidence
	WHERE dispute_item_id = $1 AND classification = $2 AND received_at <= $3`
	cutoff := before.AddDate(0, 0, -noticeDays)
	var count int
	if err := r.db.GetContext(ctx, &count, query, itemID, models.ClassificationReinsertionNotice, cutoff); err != nil {
		return false, fmt.Errorf("check reinsertion notice: %w", err)
	}
	return count > 0, nil
}

// CreateAttachment stores an attachment reference for an evidence row.
func (r *EvidenceRepository) CreateAttachment(ctx context.Context, attachment *models.EvidenceAttachment) error {
	if attachment.ID == "" {
		attachment.ID = uuid.NewString()
	}
	if attachment.CreatedAt.IsZero() {
		attachment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO evidence_attachments
	(id, evidence_id, file_name, mime_type, size_bytes, stored_path, created_at)
	VALUES (:id, :evidence_id, :file_name, :mime_type, :size_bytes, :stored_path, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, attachment); err != nil {
		return fmt.Errorf("create attachment: %w", err)
	}
	return nil
}

// GetAttachment fetches one attachment row.
func (r *EvidenceRepository) GetAttachment(ctx context.Context, id string) (*models.EvidenceAttachment, error) {
	const query = `SELECT id, evidence_id, file_name, mime_type, size_bytes, stored_path, created_at
	FROM evidence_attachments WHERE id = $1`
	var attachment models.EvidenceAttachment
	if err := r.db.GetContext(ctx, &attachment, query, id); err != nil {
		return nil, err
	}
	return &attachment, nil
}

// ListAttachments returns all attachments for an evidence row.
func (r *EvidenceRepository) ListAttachments(ctx context.Context, evidenceID string) ([]models.EvidenceAttachment, error) {
	const query = `SELECT id, evidence_id, file_name, mime_type, size_bytes, stored_path, created_at
	FROM evidence_attachments WHERE evidence_id = $1 ORDER BY created_at ASC`
	var attachments []models.EvidenceAttachment
	if err := r.db.SelectContext(ctx, &attachments, query, evidenceID); err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	return attachments, nil
}
