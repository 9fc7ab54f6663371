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

	"github.com/credassure/credassure-api/internal/enforcement"
	"github.com/credassure/credassure-api/internal/models"
)

// ErrVersionConflict marks a lost optimistic-lock race on a dispute row.
var ErrVersionConflict = errors.New("dispute item version conflict")

const disputeColumns = `id, member_id, bureau, creditor, account_ref, round_number, round_status,
       dispute_filed_at, response_deadline, last_response_at,
       procedural_violation, violation_type, violation_details, next_action,
       version, created_at, updated_at`

// DisputeRepository persists dispute items.
type DisputeRepository struct {
	db *sqlx.DB
}

// NewDisputeRepository constructs the repository.
func NewDisputeRepository(db *sqlx.DB) *DisputeRepository {
	return &DisputeRepository{db: db}
}

// Create inserts a new dispute item row.
func (r *DisputeRepository) Create(ctx context.Context, item *models.DisputeItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	if item.Version == 0 {
		item.Version = 1
	}
	const query = `INSERT INTO dispute_items
	(id, member_id, bureau, creditor, account_ref, round_number, round_status,
	 dispute_filed_at, response_deadline, last_response_at,
	 procedural_violation, violation_type, violation_details, next_action,
	 version, created_at, updated_at)
	VALUES (:id, :member_id, :bureau, :creditor, :account_ref, :round_number, :round_status,
	 :dispute_filed_at, :response_deadline, :last_response_at,
	 :procedural_violation, :violation_type, :violation_details, :next_action,
	 :version, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, item); err != nil {
		return fmt.Errorf("create dispute item: %w", err)
	}
	return nil
}

// GetByID fetches a dispute item by identifier.
func (r *DisputeRepository) GetByID(ctx context.Context, id string) (*models.DisputeItem, error) {
	query := `SELECT ` + disputeColumns + ` FROM dispute_items WHERE id = $1`
	var item models.DisputeItem
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		return nil, err
	}
	return &item, nil
}

// GetForMember fetches a dispute item enforcing member ownership.
func (r *DisputeRepository) GetForMember(ctx context.Context, id, memberID string) (*models.DisputeItem, error) {
	query := `SELECT ` + disputeColumns + ` FROM dispute_items WHERE id = $1 AND member_id = $2`
	var item models.DisputeItem
	if err := r.db.GetContext(ctx, &item, query, id, memberID); err != nil {
		return nil, err
	}
	return &item, nil
}

// List returns dispute items matching the filter. Default ordering is
// violations first, then soonest deadline.
func (r *DisputeRepository) List(ctx context.Context, filter models.DisputeItemFilter) ([]models.DisputeItem, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 4)
	builder.WriteString(`SELECT ` + disputeColumns + ` FROM dispute_items`)

	conditions := make([]string, 0, 4)
	if filter.MemberID != "" {
		args = append(args, filter.MemberID)
		conditions = append(conditions, fmt.Sprintf("member_id = $%d", len(args)))
	}
	if filter.Bureau != "" {
		args = append(args, filter.Bureau)
		conditions = append(conditions, fmt.Sprintf("bureau = $%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("round_status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.OnlyOverdue {
		conditions = append(conditions, "response_deadline < NOW() AND last_response_at IS NULL")
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY procedural_violation DESC, response_deadline ASC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var items []models.DisputeItem
	if err := r.db.SelectContext(ctx, &items, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list dispute items: %w", err)
	}
	return items, nil
}

// ListOverdueAwaiting returns items still awaiting a bureau response whose
// statutory deadline has passed. Feed for the deadline scanner.
func (r *DisputeRepository) ListOverdueAwaiting(ctx context.Context, now time.Time, limit int) ([]models.DisputeItem, error) {
	if limit <= 0 {
		limit = 500
	}
	query := `SELECT ` + disputeColumns + ` FROM dispute_items
	WHERE round_status = $1 AND response_deadline < $2 AND last_response_at IS NULL
	ORDER BY response_deadline ASC LIMIT $3`
	var items []models.DisputeItem
	if err := r.db.SelectContext(ctx, &items, query, models.RoundStatusInvestigationPending, now, limit); err != nil {
		return nil, fmt.Errorf("list overdue dispute items: %w", err)
	}
	return items, nil
}

// EnforcementUpdate groups the dispute-side writes of one evidence commit.
type EnforcementUpdate struct {
	ItemID              string
	ExpectedVersion     int64
	RoundStatus         models.RoundStatus
	LastResponseAt      *time.Time
	ProceduralViolation bool
	ViolationType       *models.ViolationType
	ViolationDetails    string
	NextAction          string
}

// CommitIngest atomically inserts the evidence row and applies the dispute
// update. Either both writes persist or neither does; a version mismatch
// rolls back and reports ErrVersionConflict.
func (r *DisputeRepository) CommitIngest(ctx context.Context, evidence *models.MailEvidence, update EnforcementUpdate) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ingest tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := insertEvidenceTx(ctx, tx, evidence); err != nil {
		return err
	}
	if err := applyEnforcementUpdateTx(ctx, tx, update); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ingest tx: %w", err)
	}
	return nil
}

// RecordEvidenceOnly persists an evidence row without touching the dispute.
// Used for the audit trail when a transition is rejected.
func (r *DisputeRepository) RecordEvidenceOnly(ctx context.Context, evidence *models.MailEvidence) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin evidence tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck
	if err := insertEvidenceTx(ctx, tx, evidence); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit evidence tx: %w", err)
	}
	return nil
}

// UpdateStatus moves an item to a new round status outside the evidence path
// (identity verification completion, reinsertion, round advance).
func (r *DisputeRepository) UpdateStatus(ctx context.Context, update EnforcementUpdate) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin status tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck
	if err := applyEnforcementUpdateTx(ctx, tx, update); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit status tx: %w", err)
	}
	return nil
}

// AdvanceRound bumps the round counter and resets round-scoped state for the
// next escalation cycle. Deadline fields are not reset: each round files its
// own dispute item linkage upstream.
func (r *DisputeRepository) AdvanceRound(ctx context.Context, itemID string, expectedVersion int64, status models.RoundStatus, nextAction string) error {
	const query = `UPDATE dispute_items SET
		round_number = round_number + 1,
		round_status = $1,
		procedural_violation = FALSE,
		violation_type = NULL,
		violation_details = '',
		next_action = $2,
		version = version + 1,
		updated_at = $3
	WHERE id = $4 AND version = $5`
	result, err := r.db.ExecContext(ctx, query, status, nextAction, time.Now().UTC(), itemID, expectedVersion)
	if err != nil {
		return fmt.Errorf("advance round: %w", err)
	}
	return checkVersionedUpdate(result)
}

// MemberSummary aggregates a member's enforcement posture.
func (r *DisputeRepository) MemberSummary(ctx context.Context, memberID string) (*models.EnforcementSummary, error) {
	const query = `SELECT round_status, procedural_violation, violation_type, response_deadline, last_response_at
	FROM dispute_items WHERE member_id = $1`

	rows := []struct {
		RoundStatus         models.RoundStatus    `db:"round_status"`
		ProceduralViolation bool                  `db:"procedural_violation"`
		ViolationType       *models.ViolationType `db:"violation_type"`
		ResponseDeadline    time.Time             `db:"response_deadline"`
		LastResponseAt      *time.Time            `db:"last_response_at"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, memberID); err != nil {
		return nil, fmt.Errorf("member summary: %w", err)
	}

	summary := &models.EnforcementSummary{
		MemberID:        memberID,
		ViolationsBySev: map[string]int{},
	}
	now := time.Now().UTC()
	for _, row := range rows {
		if !row.RoundStatus.Terminal() {
			summary.OpenItems++
			if now.After(row.ResponseDeadline) && row.LastResponseAt == nil {
				summary.OverdueItems++
			}
		}
		if row.ProceduralViolation && row.ViolationType != nil {
			summary.ViolationsBySev[string(enforcement.Severity(*row.ViolationType))]++
		}
	}
	return summary, nil
}

func insertEvidenceTx(ctx context.Context, tx *sqlx.Tx, evidence *models.MailEvidence) error {
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
	if _, err := tx.NamedExecContext(ctx, query, evidence); err != nil {
		return fmt.Errorf("insert mail evidence: %w", err)
	}
	return nil
}

func applyEnforcementUpdateTx(ctx context.Context, tx *sqlx.Tx, update EnforcementUpdate) error {
	const query = `UPDATE dispute_items SET
		round_status = :round_status,
		last_response_at = COALESCE(:last_response_at, last_response_at),
		procedural_violation = :procedural_violation,
		violation_type = :violation_type,
		violation_details = :violation_details,
		next_action = :next_action,
		version = version + 1,
		updated_at = :updated_at
	WHERE id = :id AND version = :version`
	result, err := tx.NamedExecContext(ctx, query, map[string]interface{}{
		"id":                   update.ItemID,
		"version":              update.ExpectedVersion,
		"round_status":         update.RoundStatus,
		"last_response_at":     update.LastResponseAt,
		"procedural_violation": update.ProceduralViolation,
		"violation_type":       update.ViolationType,
		"violation_details":    update.ViolationDetails,
		"next_action":          update.NextAction,
		"updated_at":           time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("update dispute item: %w", err)
	}
	return checkVersionedUpdate(result)
}

func checkVersionedUpdate(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check update rows: %w", err)
	}
	if rows == 0 {
		return ErrVersionConflict
	}
	return nil
}
