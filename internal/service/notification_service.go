package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/credassure/credassure-api/internal/enforcement"
	"github.com/credassure/credassure-api/internal/models"
	"github.com/credassure/credassure-api/pkg/jobs"
)

// ViolationAlert is the queued payload for one detected violation.
type ViolationAlert struct {
	DisputeItemID string                   `json:"disputeItemId"`
	MemberID      string                   `json:"memberId"`
	Bureau        models.Bureau            `json:"bureau"`
	Type          models.ViolationType     `json:"type"`
	Severity      models.ViolationSeverity `json:"severity"`
	RemedyAction  string                   `json:"remedyAction"`
}

// NotificationService dispatches violation alerts off the request path.
// Delivery is log-based for now; the queue boundary is where a mail or
// webhook sender would plug in.
type NotificationService struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewNotificationService constructs the dispatcher.
func NewNotificationService(logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{logger: logger}
}

// SetQueue wires the queue driving HandleJob.
func (s *NotificationService) SetQueue(q *jobs.Queue) {
	s.queue = q
}

// NotifyViolation enqueues an alert. Only critical violations page; the rest
// surface through the API views and reports.
func (s *NotificationService) NotifyViolation(ctx context.Context, item *models.DisputeItem, violation models.ViolationResult) {
	if violation.Severity != models.SeverityCritical {
		return
	}
	if s.queue == nil {
		return
	}
	alert := ViolationAlert{
		DisputeItemID: item.ID,
		MemberID:      item.MemberID,
		Bureau:        item.Bureau,
		Type:          violation.Type,
		Severity:      violation.Severity,
		RemedyAction:  enforcement.Remedy(violation.Type),
	}
	if err := s.queue.Enqueue(jobs.Job{Type: "violation_alert", Payload: alert}); err != nil {
		s.logger.Warn("enqueue violation alert", zap.String("disputeItemId", item.ID), zap.Error(err))
	}
}

// HandleJob is the queue worker entry point.
func (s *NotificationService) HandleJob(ctx context.Context, job jobs.Job) error {
	alert, ok := job.Payload.(ViolationAlert)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}
	s.logger.Info("violation alert",
		zap.String("disputeItemId", alert.DisputeItemID),
		zap.String("memberId", alert.MemberID),
		zap.String("bureau", string(alert.Bureau)),
		zap.String("type", string(alert.Type)),
		zap.String("severity", string(alert.Severity)),
		zap.String("remedy", alert.RemedyAction))
	return nil
}
