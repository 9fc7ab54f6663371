package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/credassure/credassure-api/internal/enforcement"
	"github.com/credassure/credassure-api/internal/models"
	"github.com/credassure/credassure-api/internal/repository"
	appErrors "github.com/credassure/credassure-api/pkg/errors"
)

type verificationStore interface {
	GetOrCreate(ctx context.Context, memberID string, bureau models.Bureau) (*models.IdentityVerification, error)
	MarkVerified(ctx context.Context, memberID string, bureau models.Bureau) error
}

// VerificationService tracks round-1 identity verification per
// (member, bureau) pair and unblocks held disputes once it completes.
type VerificationService struct {
	verifications verificationStore
	disputes      disputeStore
	audit         auditLogger
	rules         enforcement.RuleSet
	logger        *zap.Logger
}

// NewVerificationService constructs the service.
func NewVerificationService(
	verifications verificationStore,
	disputes disputeStore,
	audit auditLogger,
	rules enforcement.RuleSet,
	logger *zap.Logger,
) *VerificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VerificationService{
		verifications: verifications,
		disputes:      disputes,
		audit:         audit,
		rules:         rules,
		logger:        logger,
	}
}

// Status returns the verification record, creating a pending one on first
// consult.
func (s *VerificationService) Status(ctx context.Context, memberID string, bureau models.Bureau) (*models.IdentityVerification, error) {
	if !models.ValidBureau(bureau) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown bureau")
	}
	verification, err := s.verifications.GetOrCreate(ctx, memberID, bureau)
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	return verification, nil
}

// MarkVerified records a completed verification and moves every dispute item
// held in IDENTITY_VERIFICATION for the pair into INVESTIGATION_PENDING.
// The statutory clock is not touched; it started at filing.
func (s *VerificationService) MarkVerified(ctx context.Context, actorID, memberID string, bureau models.Bureau) error {
	if !models.ValidBureau(bureau) {
		return appErrors.Clone(appErrors.ErrValidation, "unknown bureau")
	}
	if _, err := s.verifications.GetOrCreate(ctx, memberID, bureau); err != nil {
		return appErrors.FromError(err)
	}
	if err := s.verifications.MarkVerified(ctx, memberID, bureau); err != nil {
		return appErrors.FromError(err)
	}

	unblocked, err := s.unblockHeld(ctx, memberID, bureau)
	if err != nil {
		return err
	}

	s.audit.CreateAuditLog(ctx, &models.AuditLog{ //nolint:errcheck
		UserID:   optionalID(actorID),
		Action:   models.AuditActionVerificationUpdate,
		Resource: "identity_verification",
	})
	s.logger.Info("identity verified",
		zap.String("memberId", memberID),
		zap.String("bureau", string(bureau)),
		zap.Int("disputesUnblocked", unblocked))
	return nil
}

// unblockPageSize bounds one fetch of held disputes; the store caps
// unbounded list queries, so the drain loops pages until the filter is
// empty.
const unblockPageSize = 100

func (s *VerificationService) unblockHeld(ctx context.Context, memberID string, bureau models.Bureau) (int, error) {
	now := time.Now().UTC()
	unblocked := 0
	// Updated items leave the IDENTITY_VERIFICATION filter, so each pass
	// re-reads from the front. The offset only advances past items whose
	// update failed, which guarantees the loop terminates.
	skipped := 0
	for {
		held, err := s.disputes.List(ctx, models.DisputeItemFilter{
			MemberID: memberID,
			Bureau:   bureau,
			Statuses: []models.RoundStatus{models.RoundStatusIdentityVerification},
			Limit:    unblockPageSize,
			Offset:   skipped,
		})
		if err != nil {
			return unblocked, appErrors.FromError(err)
		}
		if len(held) == 0 {
			return unblocked, nil
		}
		for i := range held {
			item := &held[i]
			newStatus, err := enforcement.VerifyIdentity(item.RoundStatus)
			if err != nil {
				skipped++
				continue
			}
			nextAction := s.rules.Advise(enforcement.AdviceInput{
				RoundStatus:          newStatus,
				DaysElapsed:          item.DaysElapsed(now),
				VerificationComplete: true,
			})
			err = s.disputes.UpdateStatus(ctx, repository.EnforcementUpdate{
				ItemID:              item.ID,
				ExpectedVersion:     item.Version,
				RoundStatus:         newStatus,
				ProceduralViolation: item.ProceduralViolation,
				ViolationType:       item.ViolationType,
				ViolationDetails:    item.ViolationDetails,
				NextAction:          nextAction,
			})
			if err != nil {
				// A raced item is left behind; the next verification call
				// or evidence ingest will pick it up.
				s.logger.Warn("unblock verified dispute", zap.String("disputeItemId", item.ID), zap.Error(err))
				skipped++
				continue
			}
			unblocked++
		}
	}
}
