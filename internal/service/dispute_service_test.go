package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/credassure/credassure-api/internal/dto"
	"github.com/credassure/credassure-api/internal/enforcement"
	"github.com/credassure/credassure-api/internal/models"
	"github.com/credassure/credassure-api/pkg/config"
	appErrors "github.com/credassure/credassure-api/pkg/errors"
)

type disputeWriterStub struct {
	*disputeStoreStub
	created  []*models.DisputeItem
	advanced []string
}

func (s *disputeWriterStub) Create(ctx context.Context, item *models.DisputeItem) error {
	item.ID = "item-created"
	s.created = append(s.created, item)
	s.items[item.ID] = item
	return nil
}

func (s *disputeWriterStub) AdvanceRound(ctx context.Context, itemID string, expectedVersion int64, status models.RoundStatus, nextAction string) error {
	item, ok := s.items[itemID]
	if !ok {
		return sql.ErrNoRows
	}
	item.RoundNumber++
	item.RoundStatus = status
	item.NextAction = nextAction
	item.Version++
	s.advanced = append(s.advanced, itemID)
	return nil
}

func disputeFixture(verifications *verificationStub, items ...*models.DisputeItem) (*DisputeService, *disputeWriterStub) {
	store := &disputeWriterStub{disputeStoreStub: newDisputeStoreStub(items...)}
	svc := NewDisputeService(store, verifications, &auditStub{}, enforcement.DefaultRuleSet(), config.EnforcementConfig{
		ResponseWindowDays: 30,
		GraceDays:          1,
	}, nil)
	return svc, store
}

func TestDisputeServiceCreateUnverifiedStartsInVerification(t *testing.T) {
	svc, store := disputeFixture(&verificationStub{})

	item, err := svc.Create(context.Background(), "agent-1", dto.CreateDisputeRequest{
		MemberID:   "member-1",
		Bureau:     models.BureauEquifax,
		Creditor:   "Acme Bank",
		AccountRef: "acct-42",
	})
	require.NoError(t, err)
	require.Equal(t, models.RoundStatusIdentityVerification, item.RoundStatus)
	require.Equal(t, 1, item.RoundNumber)
	require.Len(t, store.created, 1)
	require.Contains(t, item.NextAction, "identity verification")
}

func TestDisputeServiceCreateVerifiedStartsPending(t *testing.T) {
	verifications := &verificationStub{verified: map[string]bool{"member-1:EQUIFAX": true}}
	svc, _ := disputeFixture(verifications)

	filed := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	item, err := svc.Create(context.Background(), "agent-1", dto.CreateDisputeRequest{
		MemberID:   "member-1",
		Bureau:     models.BureauEquifax,
		Creditor:   "Acme Bank",
		AccountRef: "acct-42",
		FiledAt:    &filed,
	})
	require.NoError(t, err)
	require.Equal(t, models.RoundStatusInvestigationPending, item.RoundStatus)
	require.Equal(t, filed.AddDate(0, 0, 31), item.ResponseDeadline)
}

func TestDisputeServiceCreateRejectsUnknownBureau(t *testing.T) {
	svc, _ := disputeFixture(&verificationStub{})
	_, err := svc.Create(context.Background(), "agent-1", dto.CreateDisputeRequest{
		MemberID:   "member-1",
		Bureau:     models.Bureau("INNOVIS"),
		Creditor:   "Acme Bank",
		AccountRef: "acct-42",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestDisputeServiceAdvanceRound(t *testing.T) {
	item := pendingItem("item-1", "member-1", 40)
	item.RoundStatus = models.RoundStatusViolationDetected
	item.ProceduralViolation = true
	svc, store := disputeFixture(&verificationStub{}, item)

	advanced, err := svc.AdvanceRound(context.Background(), "item-1", "agent-1", dto.AdvanceRoundRequest{ExpectedVersion: 1})
	require.NoError(t, err)
	require.Equal(t, 2, advanced.RoundNumber)
	require.Equal(t, models.RoundStatusInvestigationPending, advanced.RoundStatus)
	require.False(t, advanced.ProceduralViolation)
	require.Nil(t, advanced.ViolationType)
	require.Len(t, store.advanced, 1)
}

func TestDisputeServiceAdvanceRoundGuards(t *testing.T) {
	resolved := pendingItem("item-1", "member-1", 40)
	resolved.RoundStatus = models.RoundStatusResolvedDeleted
	waiting := pendingItem("item-2", "member-1", 10)
	svc, _ := disputeFixture(&verificationStub{}, resolved, waiting)

	_, err := svc.AdvanceRound(context.Background(), "item-1", "agent-1", dto.AdvanceRoundRequest{ExpectedVersion: 1})
	require.ErrorIs(t, err, appErrors.ErrTerminalState)

	_, err = svc.AdvanceRound(context.Background(), "item-2", "agent-1", dto.AdvanceRoundRequest{ExpectedVersion: 1})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestDisputeServiceGetMemberScoped(t *testing.T) {
	item := pendingItem("item-1", "member-1", 10)
	svc, _ := disputeFixture(&verificationStub{}, item)

	found, err := svc.Get(context.Background(), "item-1", "member-1")
	require.NoError(t, err)
	require.Equal(t, "item-1", found.ID)

	_, err = svc.Get(context.Background(), "item-1", "member-2")
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}
