package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/credassure/credassure-api/internal/dto"
	"github.com/credassure/credassure-api/internal/enforcement"
	"github.com/credassure/credassure-api/internal/models"
	"github.com/credassure/credassure-api/internal/repository"
	"github.com/credassure/credassure-api/pkg/config"
	appErrors "github.com/credassure/credassure-api/pkg/errors"
)

type disputeWriter interface {
	Create(ctx context.Context, item *models.DisputeItem) error
	GetByID(ctx context.Context, id string) (*models.DisputeItem, error)
	GetForMember(ctx context.Context, id, memberID string) (*models.DisputeItem, error)
	List(ctx context.Context, filter models.DisputeItemFilter) ([]models.DisputeItem, error)
	AdvanceRound(ctx context.Context, itemID string, expectedVersion int64, status models.RoundStatus, nextAction string) error
}

// DisputeService manages the dispute item lifecycle outside the evidence
// pipeline: creation, listing, round advancement.
type DisputeService struct {
	disputes      disputeWriter
	verifications verificationReader
	audit         auditLogger
	rules         enforcement.RuleSet
	cfg           config.EnforcementConfig
	logger        *zap.Logger
}

// NewDisputeService constructs the service.
func NewDisputeService(
	disputes disputeWriter,
	verifications verificationReader,
	audit auditLogger,
	rules enforcement.RuleSet,
	cfg config.EnforcementConfig,
	logger *zap.Logger,
) *DisputeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DisputeService{
		disputes:      disputes,
		verifications: verifications,
		audit:         audit,
		rules:         rules,
		cfg:           cfg,
		logger:        logger,
	}
}

// Create files a new round-1 dispute item. The statutory clock starts at the
// filing timestamp and is never reset afterwards. If the member has not
// completed identity verification at the bureau, the item starts in
// IDENTITY_VERIFICATION instead of INVESTIGATION_PENDING.
func (s *DisputeService) Create(ctx context.Context, actorID string, req dto.CreateDisputeRequest) (*models.DisputeItem, error) {
	if !models.ValidBureau(req.Bureau) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown bureau")
	}
	if req.MemberID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "memberId is required")
	}

	filedAt := time.Now().UTC()
	if req.FiledAt != nil {
		filedAt = req.FiledAt.UTC()
	}

	status := models.RoundStatusInvestigationPending
	verification, err := s.verifications.GetOrCreate(ctx, req.MemberID, req.Bureau)
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	verified := verification.Status == models.VerificationVerified
	if !verified {
		status = models.RoundStatusIdentityVerification
	}

	item := &models.DisputeItem{
		MemberID:         req.MemberID,
		Bureau:           req.Bureau,
		Creditor:         req.Creditor,
		AccountRef:       req.AccountRef,
		RoundNumber:      1,
		RoundStatus:      status,
		DisputeFiledAt:   filedAt,
		ResponseDeadline: filedAt.AddDate(0, 0, s.cfg.DeadlineDay()),
	}
	item.NextAction = s.rules.Advise(enforcement.AdviceInput{
		RoundStatus:          status,
		DaysElapsed:          0,
		VerificationComplete: verified,
	})

	if err := s.disputes.Create(ctx, item); err != nil {
		return nil, appErrors.FromError(err)
	}

	s.audit.CreateAuditLog(ctx, &models.AuditLog{ //nolint:errcheck
		UserID:     optionalID(actorID),
		Action:     models.AuditActionDisputeCreate,
		Resource:   "dispute_item",
		ResourceID: &item.ID,
	})
	s.logger.Info("dispute filed",
		zap.String("disputeItemId", item.ID),
		zap.String("memberId", item.MemberID),
		zap.String("bureau", string(item.Bureau)),
		zap.String("roundStatus", string(status)))
	return item, nil
}

// Get fetches one dispute item, member-scoped when memberID is non-empty.
func (s *DisputeService) Get(ctx context.Context, itemID, memberID string) (*models.DisputeItem, error) {
	var item *models.DisputeItem
	var err error
	if memberID != "" {
		item, err = s.disputes.GetForMember(ctx, itemID, memberID)
	} else {
		item, err = s.disputes.GetByID(ctx, itemID)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.FromError(err)
	}
	return item, nil
}

// List returns dispute items for the query, violations first and soonest
// deadline next.
func (s *DisputeService) List(ctx context.Context, query dto.DisputeQuery) ([]models.DisputeItem, error) {
	items, err := s.disputes.List(ctx, models.DisputeItemFilter{
		MemberID:    query.MemberID,
		Bureau:      query.Bureau,
		Statuses:    query.Status,
		OnlyOverdue: query.OnlyOverdue,
		Limit:       query.Limit,
		Offset:      query.Offset,
	})
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	return items, nil
}

// AdvanceRound starts the next escalation round for an item whose current
// round has run its course. Only non-terminal post-response states advance;
// resolved items stay resolved.
func (s *DisputeService) AdvanceRound(ctx context.Context, itemID, actorID string, req dto.AdvanceRoundRequest) (*models.DisputeItem, error) {
	item, err := s.Get(ctx, itemID, "")
	if err != nil {
		return nil, err
	}
	if item.RoundStatus.Terminal() {
		return nil, appErrors.ErrTerminalState
	}
	switch item.RoundStatus {
	case models.RoundStatusResponseReceived, models.RoundStatusViolationDetected,
		models.RoundStatusEscalationRequired, models.RoundStatusNoResponse, models.RoundStatusStalled:
	default:
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "round cannot be advanced from its current status")
	}

	nextStatus := models.RoundStatusInvestigationPending
	nextAction := s.rules.Advise(enforcement.AdviceInput{
		RoundStatus: nextStatus,
		DaysElapsed: item.DaysElapsed(time.Now().UTC()),
	})
	if err := s.disputes.AdvanceRound(ctx, itemID, req.ExpectedVersion, nextStatus, nextAction); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, appErrors.ErrVersionConflict
		}
		return nil, appErrors.FromError(err)
	}

	s.audit.CreateAuditLog(ctx, &models.AuditLog{ //nolint:errcheck
		UserID:     optionalID(actorID),
		Action:     models.AuditActionDisputeEscalate,
		Resource:   "dispute_item",
		ResourceID: &itemID,
	})

	item.RoundNumber++
	item.RoundStatus = nextStatus
	item.ProceduralViolation = false
	item.ViolationType = nil
	item.ViolationDetails = ""
	item.NextAction = nextAction
	item.Version++
	return item, nil
}

func optionalID(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}
