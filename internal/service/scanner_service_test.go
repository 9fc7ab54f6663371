package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/credassure/credassure-api/internal/enforcement"
	"github.com/credassure/credassure-api/internal/models"
	"github.com/credassure/credassure-api/pkg/config"
	appErrors "github.com/credassure/credassure-api/pkg/errors"
)

type overdueListerStub struct {
	items []models.DisputeItem
}

func (s *overdueListerStub) ListOverdueAwaiting(ctx context.Context, now time.Time, limit int) ([]models.DisputeItem, error) {
	return s.items, nil
}

type scanLockStub struct {
	denied   bool
	acquired int
	released int
}

func (s *scanLockStub) AcquireLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	if s.denied {
		return false, nil
	}
	s.acquired++
	return true, nil
}

func (s *scanLockStub) ReleaseLock(ctx context.Context, key, owner string) error {
	s.released++
	return nil
}

func scannerFixture(overdue *overdueListerStub, evidence *evidenceStoreStub, disputes *disputeStoreStub, lock *scanLockStub) *ScannerService {
	enforcementSvc := newEnforcementService(disputes, evidence, &verificationStub{}, newCacheStub())
	return NewScannerService(overdue, evidence, enforcementSvc, lock, NewMetricsService(), config.ScannerConfig{
		Concurrency: 2,
		BatchSize:   100,
	}, nil)
}

func TestScannerFlagsOverdueItems(t *testing.T) {
	overdueItem := pendingItem("item-1", "member-1", 40)
	freshItem := pendingItem("item-2", "member-2", 20)
	disputes := newDisputeStoreStub(overdueItem, freshItem)
	overdue := &overdueListerStub{items: []models.DisputeItem{*overdueItem, *freshItem}}
	lock := &scanLockStub{}

	scanner := scannerFixture(overdue, &evidenceStoreStub{}, disputes, lock)
	report, err := scanner.Scan(context.Background(), time.Now().UTC())
	require.NoError(t, err)

	require.Equal(t, enforcement.DefaultRuleSetVersion, report.RuleSetVersion)
	require.Equal(t, 2, report.ItemsScanned)
	require.Equal(t, 1, report.ViolationsDetected)
	require.Len(t, report.Violations, 1)
	require.Equal(t, "item-1", report.Violations[0].DisputeItemID)
	require.Equal(t, models.ViolationDay31Timeout, report.Violations[0].Type)
	require.Empty(t, report.Failures)
	require.False(t, report.Cancelled)
	require.Equal(t, 1, lock.released)
	require.Equal(t, models.RoundStatusViolationDetected, disputes.items["item-1"].RoundStatus)
	require.Equal(t, models.RoundStatusInvestigationPending, disputes.items["item-2"].RoundStatus)
}

func TestScannerIdempotentPerRound(t *testing.T) {
	overdueItem := pendingItem("item-1", "member-1", 40)
	disputes := newDisputeStoreStub(overdueItem)
	overdue := &overdueListerStub{items: []models.DisputeItem{*overdueItem}}
	evidence := &evidenceStoreStub{hasSynthetic: map[string]bool{"item-1": true}}

	scanner := scannerFixture(overdue, evidence, disputes, &scanLockStub{})
	report, err := scanner.Scan(context.Background(), time.Now().UTC())
	require.NoError(t, err)

	require.Equal(t, 1, report.ItemsScanned)
	require.Zero(t, report.ViolationsDetected)
	require.Empty(t, disputes.committedEvidence)
}

func TestScannerLockDenied(t *testing.T) {
	scanner := scannerFixture(&overdueListerStub{}, &evidenceStoreStub{}, newDisputeStoreStub(), &scanLockStub{denied: true})
	_, err := scanner.Scan(context.Background(), time.Now().UTC())
	require.ErrorIs(t, err, appErrors.ErrScanInProgress)
}

func TestScannerCancelledContext(t *testing.T) {
	const total = 32
	items := make([]models.DisputeItem, 0, total)
	disputes := newDisputeStoreStub()
	for i := 0; i < total; i++ {
		item := pendingItem(fmt.Sprintf("item-%d", i), "member-1", 40)
		disputes.items[item.ID] = item
		items = append(items, *item)
	}
	overdue := &overdueListerStub{items: items}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	scanner := scannerFixture(overdue, &evidenceStoreStub{}, disputes, &scanLockStub{})
	report, err := scanner.Scan(ctx, time.Now().UTC())
	require.NoError(t, err)
	require.True(t, report.Cancelled)
	require.Less(t, report.ItemsScanned, total)
}
