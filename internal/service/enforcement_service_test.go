package service

import (
	"context"
	"database/sql"
	"net/http"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/credassure/credassure-api/internal/dto"
	"github.com/credassure/credassure-api/internal/enforcement"
	"github.com/credassure/credassure-api/internal/models"
	"github.com/credassure/credassure-api/internal/repository"
	appErrors "github.com/credassure/credassure-api/pkg/errors"
)

type disputeStoreStub struct {
	items map[string]*models.DisputeItem

	committedEvidence []*models.MailEvidence
	committedUpdates  []repository.EnforcementUpdate
	recordedOnly      []*models.MailEvidence
	statusUpdates     []repository.EnforcementUpdate

	// conflicts fails that many CommitIngest calls with a version conflict
	// before letting one through.
	conflicts int
}

func newDisputeStoreStub(items ...*models.DisputeItem) *disputeStoreStub {
	stub := &disputeStoreStub{items: make(map[string]*models.DisputeItem)}
	for _, item := range items {
		stub.items[item.ID] = item
	}
	return stub
}

func (s *disputeStoreStub) GetByID(ctx context.Context, id string) (*models.DisputeItem, error) {
	if item, ok := s.items[id]; ok {
		copy := *item
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *disputeStoreStub) GetForMember(ctx context.Context, id, memberID string) (*models.DisputeItem, error) {
	item, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.MemberID != memberID {
		return nil, sql.ErrNoRows
	}
	return item, nil
}

func (s *disputeStoreStub) List(ctx context.Context, filter models.DisputeItemFilter) ([]models.DisputeItem, error) {
	result := make([]models.DisputeItem, 0, len(s.items))
	for _, item := range s.items {
		if filter.MemberID != "" && item.MemberID != filter.MemberID {
			continue
		}
		if filter.Bureau != "" && item.Bureau != filter.Bureau {
			continue
		}
		if len(filter.Statuses) > 0 {
			matched := false
			for _, status := range filter.Statuses {
				if item.RoundStatus == status {
					matched = true
				}
			}
			if !matched {
				continue
			}
		}
		result = append(result, *item)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return nil, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (s *disputeStoreStub) CommitIngest(ctx context.Context, evidence *models.MailEvidence, update repository.EnforcementUpdate) error {
	if s.conflicts > 0 {
		s.conflicts--
		return repository.ErrVersionConflict
	}
	s.committedEvidence = append(s.committedEvidence, evidence)
	s.committedUpdates = append(s.committedUpdates, update)
	if item, ok := s.items[update.ItemID]; ok {
		item.RoundStatus = update.RoundStatus
		item.ProceduralViolation = update.ProceduralViolation
		item.ViolationType = update.ViolationType
		item.ViolationDetails = update.ViolationDetails
		item.NextAction = update.NextAction
		if update.LastResponseAt != nil {
			item.LastResponseAt = update.LastResponseAt
		}
		item.Version++
	}
	evidence.ID = "ev-generated"
	return nil
}

func (s *disputeStoreStub) RecordEvidenceOnly(ctx context.Context, evidence *models.MailEvidence) error {
	s.recordedOnly = append(s.recordedOnly, evidence)
	return nil
}

func (s *disputeStoreStub) UpdateStatus(ctx context.Context, update repository.EnforcementUpdate) error {
	s.statusUpdates = append(s.statusUpdates, update)
	if item, ok := s.items[update.ItemID]; ok {
		item.RoundStatus = update.RoundStatus
		item.NextAction = update.NextAction
		item.Version++
	}
	return nil
}

func (s *disputeStoreStub) MemberSummary(ctx context.Context, memberID string) (*models.EnforcementSummary, error) {
	return &models.EnforcementSummary{MemberID: memberID, ViolationsBySev: map[string]int{}}, nil
}

type evidenceStoreStub struct {
	latest       models.MailClassification
	priorNotice  bool
	hasSynthetic map[string]bool
}

func (s *evidenceStoreStub) List(ctx context.Context, filter models.EvidenceFilter) ([]models.MailEvidence, error) {
	return nil, nil
}

func (s *evidenceStoreStub) LatestClassification(ctx context.Context, itemID string) (models.MailClassification, error) {
	return s.latest, nil
}

func (s *evidenceStoreStub) HasPriorReinsertionNotice(ctx context.Context, itemID string, before time.Time, noticeDays int) (bool, error) {
	return s.priorNotice, nil
}

func (s *evidenceStoreStub) HasSyntheticNoResponse(ctx context.Context, itemID string, round int) (bool, error) {
	if s.hasSynthetic == nil {
		return false, nil
	}
	return s.hasSynthetic[itemID], nil
}

type verificationStub struct {
	verified map[string]bool
	marked   []string
}

func (s *verificationStub) GetOrCreate(ctx context.Context, memberID string, bureau models.Bureau) (*models.IdentityVerification, error) {
	status := models.VerificationPending
	if s.verified[memberID+":"+string(bureau)] {
		status = models.VerificationVerified
	}
	return &models.IdentityVerification{MemberID: memberID, Bureau: bureau, Status: status}, nil
}

func (s *verificationStub) MarkVerified(ctx context.Context, memberID string, bureau models.Bureau) error {
	if s.verified == nil {
		s.verified = make(map[string]bool)
	}
	s.verified[memberID+":"+string(bureau)] = true
	s.marked = append(s.marked, memberID+":"+string(bureau))
	return nil
}

type cacheStub struct {
	values map[string]interface{}
}

func newCacheStub() *cacheStub {
	return &cacheStub{values: make(map[string]interface{})}
}

func (s *cacheStub) Get(ctx context.Context, key string, dest interface{}) error {
	if value, ok := s.values[key]; ok {
		if view, ok := value.(*models.EnforcementView); ok {
			if target, ok := dest.(*models.EnforcementView); ok {
				*target = *view
				return nil
			}
		}
	}
	return appErrors.ErrCacheMiss
}

func (s *cacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	s.values[key] = value
	return nil
}

func (s *cacheStub) DeleteByPattern(ctx context.Context, pattern string) error {
	for key := range s.values {
		delete(s.values, key)
	}
	return nil
}

type auditStub struct {
	logs []*models.AuditLog
}

func (a *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func pendingItem(id, memberID string, filedDaysAgo int) *models.DisputeItem {
	filed := time.Now().UTC().AddDate(0, 0, -filedDaysAgo)
	return &models.DisputeItem{
		ID:               id,
		MemberID:         memberID,
		Bureau:           models.BureauEquifax,
		Creditor:         "Acme Bank",
		AccountRef:       "acct-42",
		RoundNumber:      1,
		RoundStatus:      models.RoundStatusInvestigationPending,
		DisputeFiledAt:   filed,
		ResponseDeadline: filed.AddDate(0, 0, 30),
		Version:          1,
	}
}

func newEnforcementService(disputes *disputeStoreStub, evidence *evidenceStoreStub, verifications *verificationStub, cache *cacheStub) *EnforcementService {
	return NewEnforcementService(
		disputes, evidence, verifications, cache, &auditStub{},
		NewMetricsService(), enforcement.DefaultRuleSet(), time.Minute, nil,
	)
}

func TestEnforcementServiceIngestDeletionResolves(t *testing.T) {
	item := pendingItem("item-1", "member-1", 12)
	disputes := newDisputeStoreStub(item)
	svc := newEnforcementService(disputes, &evidenceStoreStub{}, &verificationStub{}, newCacheStub())

	result, err := svc.Ingest(context.Background(), "item-1", "", "agent-1", dto.IngestEvidenceRequest{
		RawContent: "We have deleted the item as requested.",
	})
	require.NoError(t, err)
	require.Equal(t, models.ClassificationDeletionConfirmation, result.Classification)
	require.Equal(t, models.RoundStatusInvestigationPending, result.PreviousStatus)
	require.Equal(t, models.RoundStatusResolvedDeleted, result.NewStatus)
	require.Nil(t, result.Violation)
	require.Len(t, disputes.committedEvidence, 1)
	require.NotNil(t, disputes.committedUpdates[0].LastResponseAt)
	require.Equal(t, models.RoundStatusResolvedDeleted, disputes.items["item-1"].RoundStatus)
}

func TestEnforcementServiceIngestTerminalStoresEvidenceOnly(t *testing.T) {
	item := pendingItem("item-1", "member-1", 12)
	item.RoundStatus = models.RoundStatusResolvedVerified
	disputes := newDisputeStoreStub(item)
	svc := newEnforcementService(disputes, &evidenceStoreStub{}, &verificationStub{}, newCacheStub())

	_, err := svc.Ingest(context.Background(), "item-1", "", "agent-1", dto.IngestEvidenceRequest{
		RawContent: "We are still investigating and need more time.",
	})
	require.ErrorIs(t, err, appErrors.ErrTerminalState)
	require.Len(t, disputes.recordedOnly, 1)
	require.Empty(t, disputes.committedEvidence)
	require.Equal(t, models.RoundStatusResolvedVerified, disputes.items["item-1"].RoundStatus)
}

func TestEnforcementServiceIngestDetectsStallViolation(t *testing.T) {
	item := pendingItem("item-1", "member-1", 12)
	item.RoundNumber = 2
	disputes := newDisputeStoreStub(item)
	verifications := &verificationStub{verified: map[string]bool{"member-1:EQUIFAX": true}}
	svc := newEnforcementService(disputes, &evidenceStoreStub{}, verifications, newCacheStub())

	result, err := svc.Ingest(context.Background(), "item-1", "", "agent-1", dto.IngestEvidenceRequest{
		RawContent: "Please verify your identity before we can continue.",
	})
	require.NoError(t, err)
	require.NotNil(t, result.Violation)
	require.Equal(t, models.ViolationIdentityStall, result.Violation.Type)
	require.Equal(t, models.RoundStatusViolationDetected, result.NewStatus)
	require.True(t, disputes.committedUpdates[0].ProceduralViolation)
	require.Equal(t, result.Violation.RemedyAction, result.NextAction)
}

func TestEnforcementServiceIngestRetriesVersionConflict(t *testing.T) {
	item := pendingItem("item-1", "member-1", 5)
	disputes := newDisputeStoreStub(item)
	disputes.conflicts = 1
	svc := newEnforcementService(disputes, &evidenceStoreStub{}, &verificationStub{}, newCacheStub())

	result, err := svc.Ingest(context.Background(), "item-1", "", "agent-1", dto.IngestEvidenceRequest{
		RawContent: "We have deleted the item as requested.",
	})
	require.NoError(t, err)
	require.Equal(t, models.RoundStatusResolvedDeleted, result.NewStatus)
	require.Len(t, disputes.committedEvidence, 1)
}

func TestEnforcementServiceIngestExhaustedRetryIsConflict(t *testing.T) {
	item := pendingItem("item-1", "member-1", 5)
	disputes := newDisputeStoreStub(item)
	disputes.conflicts = 2
	svc := newEnforcementService(disputes, &evidenceStoreStub{}, &verificationStub{}, newCacheStub())

	_, err := svc.Ingest(context.Background(), "item-1", "", "agent-1", dto.IngestEvidenceRequest{
		RawContent: "We have deleted the item as requested.",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrVersionConflict.Code, appErr.Code)
	require.Equal(t, http.StatusConflict, appErr.Status)
	require.Empty(t, disputes.committedEvidence)
}

func TestEnforcementServiceIngestMemberScoped(t *testing.T) {
	item := pendingItem("item-1", "member-1", 5)
	disputes := newDisputeStoreStub(item)
	svc := newEnforcementService(disputes, &evidenceStoreStub{}, &verificationStub{}, newCacheStub())

	_, err := svc.Ingest(context.Background(), "item-1", "member-2", "member-2", dto.IngestEvidenceRequest{
		RawContent: "ack",
	})
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestEnforcementServiceProcessNoResponseSynthetic(t *testing.T) {
	item := pendingItem("item-1", "member-1", 35)
	disputes := newDisputeStoreStub(item)
	svc := newEnforcementService(disputes, &evidenceStoreStub{}, &verificationStub{}, newCacheStub())

	result, err := svc.ProcessNoResponse(context.Background(), item, enforcement.DefaultRuleSet(), time.Now().UTC())
	require.NoError(t, err)
	require.NotNil(t, result.Violation)
	require.Equal(t, models.ViolationDay31Timeout, result.Violation.Type)
	require.Equal(t, models.RoundStatusViolationDetected, result.NewStatus)
	require.True(t, disputes.committedEvidence[0].Synthetic)
	// Synthetic records never count as a bureau response.
	require.Nil(t, disputes.committedUpdates[0].LastResponseAt)
}

func TestEnforcementServiceViewCached(t *testing.T) {
	item := pendingItem("item-1", "member-1", 10)
	item.NextAction = "Awaiting bureau response. No action needed yet."
	disputes := newDisputeStoreStub(item)
	cache := newCacheStub()
	svc := newEnforcementService(disputes, &evidenceStoreStub{}, &verificationStub{}, cache)

	first, cached, err := svc.View(context.Background(), "item-1", "")
	require.NoError(t, err)
	require.False(t, cached)
	require.Equal(t, 10, first.DaysFromDispute)
	require.False(t, first.IsOverdue)

	// Second read is served from cache even if the row disappears.
	delete(disputes.items, "item-1")
	second, cached, err := svc.View(context.Background(), "item-1", "")
	require.NoError(t, err)
	require.True(t, cached)
	require.Equal(t, first.DisputeItemID, second.DisputeItemID)

	// A member-scoped read keys separately and misses the staff entry.
	_, _, err = svc.View(context.Background(), "item-1", "member-1")
	require.Error(t, err)
}

func TestEnforcementServiceReinsertOnlyFromResolvedDeleted(t *testing.T) {
	item := pendingItem("item-1", "member-1", 40)
	item.RoundStatus = models.RoundStatusResolvedDeleted
	disputes := newDisputeStoreStub(item)
	svc := newEnforcementService(disputes, &evidenceStoreStub{}, &verificationStub{}, newCacheStub())

	updated, err := svc.Reinsert(context.Background(), "item-1", "agent-1")
	require.NoError(t, err)
	require.Equal(t, models.RoundStatusInvestigationPending, updated.RoundStatus)

	_, err = svc.Reinsert(context.Background(), "item-1", "agent-1")
	require.ErrorIs(t, err, appErrors.ErrInvalidTransition)
}
