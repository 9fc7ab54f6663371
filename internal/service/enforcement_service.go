package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/credassure/credassure-api/internal/dto"
	"github.com/credassure/credassure-api/internal/enforcement"
	"github.com/credassure/credassure-api/internal/models"
	"github.com/credassure/credassure-api/internal/repository"
	appErrors "github.com/credassure/credassure-api/pkg/errors"
)

type disputeStore interface {
	GetByID(ctx context.Context, id string) (*models.DisputeItem, error)
	GetForMember(ctx context.Context, id, memberID string) (*models.DisputeItem, error)
	List(ctx context.Context, filter models.DisputeItemFilter) ([]models.DisputeItem, error)
	CommitIngest(ctx context.Context, evidence *models.MailEvidence, update repository.EnforcementUpdate) error
	RecordEvidenceOnly(ctx context.Context, evidence *models.MailEvidence) error
	UpdateStatus(ctx context.Context, update repository.EnforcementUpdate) error
	MemberSummary(ctx context.Context, memberID string) (*models.EnforcementSummary, error)
}

type evidenceStore interface {
	List(ctx context.Context, filter models.EvidenceFilter) ([]models.MailEvidence, error)
	LatestClassification(ctx context.Context, itemID string) (models.MailClassification, error)
	HasPriorReinsertionNotice(ctx context.Context, itemID string, before time.Time, noticeDays int) (bool, error)
}

type verificationReader interface {
	GetOrCreate(ctx context.Context, memberID string, bureau models.Bureau) (*models.IdentityVerification, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type viewCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// violationNotifier receives detected violations for out-of-band dispatch.
type violationNotifier interface {
	NotifyViolation(ctx context.Context, item *models.DisputeItem, violation models.ViolationResult)
}

// reinsertionNoticeDays is the statutory advance-warning window for putting
// a deleted item back on a report.
const reinsertionNoticeDays = 5

const lockShards = 64

// EnforcementService runs the evidence pipeline: classify, detect, transition,
// advise, commit. One entry point for real mail and scanner-synthesized
// records so the two paths can never drift.
type EnforcementService struct {
	disputes      disputeStore
	evidence      evidenceStore
	verifications verificationReader
	cache         viewCache
	audit         auditLogger
	metrics       *MetricsService
	notifier      violationNotifier
	rules         enforcement.RuleSet
	viewTTL       time.Duration
	logger        *zap.Logger

	// Per-item sharded locks serialize concurrent ingests for the same
	// dispute inside this process; the DB version column guards across
	// processes.
	locks [lockShards]sync.Mutex
}

// NewEnforcementService constructs the service.
func NewEnforcementService(
	disputes disputeStore,
	evidence evidenceStore,
	verifications verificationReader,
	cache viewCache,
	audit auditLogger,
	metrics *MetricsService,
	rules enforcement.RuleSet,
	viewTTL time.Duration,
	logger *zap.Logger,
) *EnforcementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnforcementService{
		disputes:      disputes,
		evidence:      evidence,
		verifications: verifications,
		cache:         cache,
		audit:         audit,
		metrics:       metrics,
		rules:         rules,
		viewTTL:       viewTTL,
		logger:        logger,
	}
}

// SetNotifier wires the violation notifier after construction. The dispatcher
// depends on the job queue, which starts later in the bootstrap.
func (s *EnforcementService) SetNotifier(n violationNotifier) {
	s.notifier = n
}

func (s *EnforcementService) lockFor(itemID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(itemID))
	return &s.locks[h.Sum32()%lockShards]
}

// Ingest processes one piece of real bureau correspondence for a dispute
// item. memberID scopes the lookup for member callers; pass empty for staff.
func (s *EnforcementService) Ingest(ctx context.Context, itemID, memberID, actorID string, req dto.IngestEvidenceRequest) (*dto.IngestResult, error) {
	receivedAt := time.Now().UTC()
	if req.ReceivedAt != nil {
		receivedAt = req.ReceivedAt.UTC()
	}
	classification := enforcement.Classify(req.RawContent)

	mu := s.lockFor(itemID)
	mu.Lock()
	defer mu.Unlock()

	var result *dto.IngestResult
	// One retry on a lost version race: reload and re-run the pipeline
	// against the fresh row.
	for attempt := 0; attempt < 2; attempt++ {
		item, err := s.loadItem(ctx, itemID, memberID)
		if err != nil {
			return nil, err
		}

		result, err = s.process(ctx, item, s.rules, evidenceInput{
			Classification: classification,
			RawContent:     req.RawContent,
			ReceivedAt:     receivedAt,
			Synthetic:      false,
		})
		if errors.Is(err, repository.ErrVersionConflict) {
			if attempt == 0 {
				s.logger.Debug("ingest lost version race, retrying", zap.String("disputeItemId", itemID))
				continue
			}
			return nil, appErrors.ErrVersionConflict
		}
		if err != nil {
			return nil, err
		}
		break
	}

	s.auditEvent(ctx, actorID, models.AuditActionEvidenceIngest, itemID)
	return result, nil
}

// ProcessNoResponse records a scanner-synthesized no-response for an overdue
// item under a pinned rule set. Idempotency is the scanner's responsibility.
func (s *EnforcementService) ProcessNoResponse(ctx context.Context, item *models.DisputeItem, rules enforcement.RuleSet, now time.Time) (*dto.IngestResult, error) {
	mu := s.lockFor(item.ID)
	mu.Lock()
	defer mu.Unlock()

	return s.process(ctx, item, rules, evidenceInput{
		Classification: models.ClassificationNoResponse,
		RawContent:     fmt.Sprintf("No bureau response received by day %d.", item.DaysElapsed(now)),
		ReceivedAt:     now,
		Synthetic:      true,
	})
}

type evidenceInput struct {
	Classification models.MailClassification
	RawContent     string
	ReceivedAt     time.Time
	Synthetic      bool
}

func (s *EnforcementService) process(ctx context.Context, item *models.DisputeItem, rules enforcement.RuleSet, in evidenceInput) (*dto.IngestResult, error) {
	evidence := &models.MailEvidence{
		DisputeItemID:  item.ID,
		Bureau:         item.Bureau,
		RoundNumber:    item.RoundNumber,
		ReceivedAt:     in.ReceivedAt,
		RawContent:     in.RawContent,
		Classification: in.Classification,
		Synthetic:      in.Synthetic,
	}

	// Resolved rounds accept no evidence-driven transitions. The letter is
	// still stored: it is part of the audit trail either way.
	if item.RoundStatus.Terminal() {
		if err := s.disputes.RecordEvidenceOnly(ctx, evidence); err != nil {
			return nil, appErrors.FromError(err)
		}
		s.metrics.RecordRejectedTransition()
		return nil, appErrors.ErrTerminalState
	}

	dctx, err := s.buildContext(ctx, item, in)
	if err != nil {
		return nil, err
	}

	violation := rules.Detect(in.Classification, dctx)
	if violation.HasViolation {
		evidence.TriggersViolation = true
		evidence.ViolationType = &violation.Type
	}

	repeatCritical := item.ProceduralViolation && item.ViolationType != nil &&
		enforcement.Severity(*item.ViolationType) == models.SeverityCritical

	newStatus, err := enforcement.Transition(item.RoundStatus, enforcement.Event{
		Classification: in.Classification,
		Violation:      violation,
		RepeatCritical: repeatCritical,
	})
	if err != nil {
		// Rejected transitions keep the dispute untouched but the
		// evidence row is recorded for the audit trail.
		if storeErr := s.disputes.RecordEvidenceOnly(ctx, evidence); storeErr != nil {
			s.logger.Error("store rejected evidence", zap.String("disputeItemId", item.ID), zap.Error(storeErr))
		}
		s.metrics.RecordRejectedTransition()
		return nil, err
	}

	nextAction := rules.Advise(enforcement.AdviceInput{
		RoundStatus:          newStatus,
		DaysElapsed:          dctx.DaysElapsed,
		Violation:            violationPtr(violation),
		LastClassification:   in.Classification,
		VerificationComplete: dctx.IdentityVerified,
	})

	update := repository.EnforcementUpdate{
		ItemID:           item.ID,
		ExpectedVersion:  item.Version,
		RoundStatus:      newStatus,
		ViolationDetails: item.ViolationDetails,
		ViolationType:    item.ViolationType,
		NextAction:       nextAction,
	}
	// Synthetic no-response records never count as a bureau response.
	if !in.Synthetic {
		update.LastResponseAt = &in.ReceivedAt
	}
	if violation.HasViolation {
		update.ProceduralViolation = true
		update.ViolationType = &violation.Type
		update.ViolationDetails = violation.Details
	} else {
		update.ProceduralViolation = item.ProceduralViolation
	}

	if err := s.disputes.CommitIngest(ctx, evidence, update); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, err
		}
		return nil, appErrors.FromError(err)
	}

	s.metrics.RecordIngest(in.Classification)
	if violation.HasViolation {
		s.metrics.RecordViolation(violation.Type, violation.Severity)
		if s.notifier != nil {
			s.notifier.NotifyViolation(ctx, item, violation)
		}
	}
	s.invalidateViews(ctx, item)

	s.logger.Info("evidence processed",
		zap.String("disputeItemId", item.ID),
		zap.String("classification", string(in.Classification)),
		zap.String("from", string(item.RoundStatus)),
		zap.String("to", string(newStatus)),
		zap.Bool("violation", violation.HasViolation))

	return &dto.IngestResult{
		EvidenceID:     evidence.ID,
		Classification: in.Classification,
		Violation:      violationPtr(violation),
		PreviousStatus: item.RoundStatus,
		NewStatus:      newStatus,
		NextAction:     nextAction,
	}, nil
}

func (s *EnforcementService) buildContext(ctx context.Context, item *models.DisputeItem, in evidenceInput) (enforcement.DisputeContext, error) {
	dctx := enforcement.DisputeContext{
		RoundNumber: item.RoundNumber,
		DaysElapsed: item.DaysElapsed(in.ReceivedAt),
		Synthetic:   in.Synthetic,
	}

	verification, err := s.verifications.GetOrCreate(ctx, item.MemberID, item.Bureau)
	if err != nil {
		return dctx, appErrors.FromError(err)
	}
	dctx.IdentityVerified = verification.Status == models.VerificationVerified

	if in.Classification == models.ClassificationReinsertionNotice {
		notified, err := s.evidence.HasPriorReinsertionNotice(ctx, item.ID, in.ReceivedAt, reinsertionNoticeDays)
		if err != nil {
			return dctx, appErrors.FromError(err)
		}
		dctx.PriorAdvanceNotice = notified
	}
	return dctx, nil
}

// View assembles the derived enforcement read model for one dispute item.
// The boolean reports whether the view came from cache. Cache keys carry the
// member scope so a cached staff read never leaks past member scoping.
func (s *EnforcementService) View(ctx context.Context, itemID, memberID string) (*models.EnforcementView, bool, error) {
	cacheKey := fmt.Sprintf("enforcement:view:%s:%s", itemID, memberID)
	var cached models.EnforcementView
	if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
		s.metrics.RecordCacheOperation(true)
		return &cached, true, nil
	}
	s.metrics.RecordCacheOperation(false)

	item, err := s.loadItem(ctx, itemID, memberID)
	if err != nil {
		return nil, false, err
	}

	now := time.Now().UTC()
	view := &models.EnforcementView{
		DisputeItemID:       item.ID,
		RoundNumber:         item.RoundNumber,
		RoundStatus:         item.RoundStatus,
		ProceduralViolation: item.ProceduralViolation,
		ViolationType:       item.ViolationType,
		ViolationDetails:    item.ViolationDetails,
		DaysFromDispute:     item.DaysElapsed(now),
		DaysUntilDeadline:   item.DaysUntilDeadline(now),
		IsOverdue:           item.Overdue(now),
		NextAction:          item.NextAction,
	}
	if view.NextAction == "" {
		view.NextAction = s.adviseFor(ctx, item, now)
	}

	if err := s.cache.Set(ctx, cacheKey, view, s.viewTTL); err != nil {
		s.logger.Warn("cache enforcement view", zap.String("disputeItemId", itemID), zap.Error(err))
	}
	return view, false, nil
}

// Summary aggregates a member's enforcement posture.
func (s *EnforcementService) Summary(ctx context.Context, memberID string) (*models.EnforcementSummary, error) {
	summary, err := s.disputes.MemberSummary(ctx, memberID)
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	return summary, nil
}

// Timeline lists the evidence trail for a dispute item, oldest first.
// Members only see their own items.
func (s *EnforcementService) Timeline(ctx context.Context, itemID, memberID string) ([]models.MailEvidence, error) {
	if _, err := s.loadItem(ctx, itemID, memberID); err != nil {
		return nil, err
	}
	records, err := s.evidence.List(ctx, models.EvidenceFilter{DisputeItemID: itemID})
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	return records, nil
}

// Reinsert records a bureau putting a deleted item back on the report. The
// only legal source state is RESOLVED_DELETED.
func (s *EnforcementService) Reinsert(ctx context.Context, itemID, actorID string) (*models.DisputeItem, error) {
	mu := s.lockFor(itemID)
	mu.Lock()
	defer mu.Unlock()

	item, err := s.loadItem(ctx, itemID, "")
	if err != nil {
		return nil, err
	}

	newStatus, err := enforcement.Reinsert(item.RoundStatus)
	if err != nil {
		return nil, err
	}

	nextAction := s.rules.Advise(enforcement.AdviceInput{
		RoundStatus: newStatus,
		DaysElapsed: item.DaysElapsed(time.Now().UTC()),
	})
	err = s.disputes.UpdateStatus(ctx, repository.EnforcementUpdate{
		ItemID:              itemID,
		ExpectedVersion:     item.Version,
		RoundStatus:         newStatus,
		ProceduralViolation: item.ProceduralViolation,
		ViolationType:       item.ViolationType,
		ViolationDetails:    item.ViolationDetails,
		NextAction:          nextAction,
	})
	if err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, appErrors.ErrVersionConflict
		}
		return nil, appErrors.FromError(err)
	}

	s.invalidateViews(ctx, item)
	s.auditEvent(ctx, actorID, models.AuditActionDisputeReinsertion, itemID)

	item.RoundStatus = newStatus
	item.NextAction = nextAction
	item.Version++
	return item, nil
}

// Rules exposes the active rule set (handlers report its version).
func (s *EnforcementService) Rules() enforcement.RuleSet {
	return s.rules
}

func (s *EnforcementService) adviseFor(ctx context.Context, item *models.DisputeItem, now time.Time) string {
	last, err := s.evidence.LatestClassification(ctx, item.ID)
	if err != nil {
		s.logger.Warn("latest classification lookup", zap.String("disputeItemId", item.ID), zap.Error(err))
	}
	var violation *models.ViolationResult
	if item.ProceduralViolation && item.ViolationType != nil {
		v := models.ViolationResult{
			HasViolation: true,
			Type:         *item.ViolationType,
			Severity:     enforcement.Severity(*item.ViolationType),
			Details:      item.ViolationDetails,
			RemedyAction: enforcement.Remedy(*item.ViolationType),
		}
		violation = &v
	}
	verified := false
	if verification, err := s.verifications.GetOrCreate(ctx, item.MemberID, item.Bureau); err == nil {
		verified = verification.Status == models.VerificationVerified
	}
	return s.rules.Advise(enforcement.AdviceInput{
		RoundStatus:          item.RoundStatus,
		DaysElapsed:          item.DaysElapsed(now),
		Violation:            violation,
		LastClassification:   last,
		VerificationComplete: verified,
	})
}

func (s *EnforcementService) loadItem(ctx context.Context, itemID, memberID string) (*models.DisputeItem, error) {
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

func (s *EnforcementService) invalidateViews(ctx context.Context, item *models.DisputeItem) {
	if err := s.cache.DeleteByPattern(ctx, fmt.Sprintf("enforcement:view:%s:*", item.ID)); err != nil {
		s.logger.Warn("invalidate view cache", zap.String("disputeItemId", item.ID), zap.Error(err))
	}
}

func (s *EnforcementService) auditEvent(ctx context.Context, actorID, action, resourceID string) {
	if s.audit == nil {
		return
	}
	var userID *string
	if actorID != "" {
		userID = &actorID
	}
	entry := &models.AuditLog{
		UserID:     userID,
		Action:     action,
		Resource:   "dispute_item",
		ResourceID: &resourceID,
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("write audit log", zap.String("action", action), zap.Error(err))
	}
}

func violationPtr(v models.ViolationResult) *models.ViolationResult {
	if !v.HasViolation {
		return nil
	}
	return &v
}
