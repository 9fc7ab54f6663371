package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/credassure/credassure-api/internal/dto"
	"github.com/credassure/credassure-api/internal/enforcement"
	"github.com/credassure/credassure-api/internal/models"
	"github.com/credassure/credassure-api/pkg/config"
	appErrors "github.com/credassure/credassure-api/pkg/errors"
)

const scanLockKey = "enforcement:scan:lock"

type overdueLister interface {
	ListOverdueAwaiting(ctx context.Context, now time.Time, limit int) ([]models.DisputeItem, error)
}

type syntheticChecker interface {
	HasSyntheticNoResponse(ctx context.Context, itemID string, round int) (bool, error)
}

type scanLock interface {
	AcquireLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, owner string) error
}

// ScannerService sweeps dispute items whose statutory response window has
// lapsed in silence and feeds them through the enforcement pipeline as
// synthesized no-response evidence. Runs are serialized by a Redis lease and
// an in-process guard; each run pins the rule set it started with.
type ScannerService struct {
	disputes    overdueLister
	evidence    syntheticChecker
	enforcement *EnforcementService
	lock        scanLock
	metrics     *MetricsService
	cfg         config.ScannerConfig
	logger      *zap.Logger

	mu      sync.Mutex
	running bool
}

// NewScannerService constructs the scanner.
func NewScannerService(
	disputes overdueLister,
	evidence syntheticChecker,
	enforcementSvc *EnforcementService,
	lock scanLock,
	metrics *MetricsService,
	cfg config.ScannerConfig,
	logger *zap.Logger,
) *ScannerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	return &ScannerService{
		disputes:    disputes,
		evidence:    evidence,
		enforcement: enforcementSvc,
		lock:        lock,
		metrics:     metrics,
		cfg:         cfg,
		logger:      logger,
	}
}

// Scan runs one full sweep. It is safe to call from both the interval ticker
// and the admin endpoint; overlapping calls are rejected with
// ErrScanInProgress rather than queued.
func (s *ScannerService) Scan(ctx context.Context, now time.Time) (*dto.ScanReport, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, appErrors.ErrScanInProgress
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	owner := uuid.NewString()
	acquired, err := s.lock.AcquireLock(ctx, scanLockKey, owner, s.cfg.LockTTL)
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	if !acquired {
		return nil, appErrors.ErrScanInProgress
	}
	defer func() {
		if err := s.lock.ReleaseLock(context.WithoutCancel(ctx), scanLockKey, owner); err != nil {
			s.logger.Warn("release scan lock", zap.Error(err))
		}
	}()

	// The rule set is pinned here; items processed late in the run are
	// judged by the same rules as the first.
	rules := s.enforcement.Rules()

	report := &dto.ScanReport{
		RuleSetVersion: rules.Version,
		StartedAt:      now,
	}

	items, err := s.disputes.ListOverdueAwaiting(ctx, now, s.cfg.BatchSize)
	if err != nil {
		return nil, appErrors.FromError(err)
	}

	s.logger.Info("deadline scan started",
		zap.String("ruleSetVersion", rules.Version),
		zap.Int("candidates", len(items)))

	jobs := make(chan models.DisputeItem)
	outcomes := make(chan scanOutcome, len(items))

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range jobs {
				outcomes <- s.scanItem(ctx, item, rules, now)
			}
		}()
	}

feed:
	for _, item := range items {
		select {
		case <-ctx.Done():
			// Stop launching new items; in-flight ones finish.
			report.Cancelled = true
			break feed
		case jobs <- item:
		}
	}
	close(jobs)
	wg.Wait()
	close(outcomes)

	for o := range outcomes {
		if o.scanned {
			report.ItemsScanned++
		}
		if o.violation != nil {
			report.ViolationsDetected++
			report.Violations = append(report.Violations, *o.violation)
		}
		if o.failure != nil {
			report.Failures = append(report.Failures, *o.failure)
		}
	}

	report.FinishedAt = time.Now().UTC()
	s.metrics.RecordScanRun(report.ItemsScanned, report.FinishedAt.Sub(report.StartedAt))

	s.logger.Info("deadline scan finished",
		zap.Int("itemsScanned", report.ItemsScanned),
		zap.Int("violationsDetected", report.ViolationsDetected),
		zap.Int("failures", len(report.Failures)),
		zap.Bool("cancelled", report.Cancelled))

	return report, nil
}

type scanOutcome struct {
	violation *dto.ScanViolation
	failure   *dto.ScanFailure
	scanned   bool
}

func (s *ScannerService) scanItem(ctx context.Context, item models.DisputeItem, rules enforcement.RuleSet, now time.Time) (o scanOutcome) {
	itemCtx := ctx
	if s.cfg.ItemTimeout > 0 {
		var cancel context.CancelFunc
		itemCtx, cancel = context.WithTimeout(ctx, s.cfg.ItemTimeout)
		defer cancel()
	}

	o.scanned = true

	// Only flag past the pinned deadline day; the SQL predicate uses the raw
	// response_deadline, the rule set adds the grace day on top.
	if item.DaysElapsed(now) < rules.DeadlineDay {
		return o
	}

	done, err := s.evidence.HasSyntheticNoResponse(itemCtx, item.ID, item.RoundNumber)
	if err != nil {
		o.failure = &dto.ScanFailure{DisputeItemID: item.ID, Reason: err.Error()}
		return o
	}
	if done {
		// Already flagged this round; rescanning is a no-op.
		return o
	}

	result, err := s.enforcement.ProcessNoResponse(itemCtx, &item, rules, now)
	if err != nil {
		// A single bad item never aborts the sweep.
		if errors.Is(err, appErrors.ErrTerminalState) {
			return o
		}
		s.logger.Error("scan item failed", zap.String("disputeItemId", item.ID), zap.Error(err))
		o.failure = &dto.ScanFailure{DisputeItemID: item.ID, Reason: err.Error()}
		return o
	}

	if result.Violation != nil {
		o.violation = &dto.ScanViolation{
			DisputeItemID: item.ID,
			MemberID:      item.MemberID,
			Bureau:        item.Bureau,
			Type:          result.Violation.Type,
			Severity:      result.Violation.Severity,
			DaysElapsed:   item.DaysElapsed(now),
		}
	}
	return o
}

// Run drives periodic scans until the context is cancelled. Started as a
// goroutine from main when the scanner is enabled.
func (s *ScannerService) Run(ctx context.Context) {
	if s.cfg.Interval <= 0 {
		s.cfg.Interval = time.Hour
	}
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("deadline scanner stopped")
			return
		case <-ticker.C:
			if _, err := s.Scan(ctx, time.Now().UTC()); err != nil && !errors.Is(err, appErrors.ErrScanInProgress) {
				s.logger.Error("scheduled scan failed", zap.Error(err))
			}
		}
	}
}
