package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/giftpool/internal/clock"
	"github.com/smallbiznis/giftpool/internal/credit/domain"
	"github.com/smallbiznis/giftpool/internal/credit/repository"
	"github.com/smallbiznis/giftpool/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) domain.Service {
	t.Helper()
	conn := dbtest.Open(t, &domain.Account{}, &domain.Transaction{})
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	return NewService(Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
		Clock: clock.NewFakeClock(clock.SystemClock{}.Now()),
	})
}

func TestIssueCreditsBalanceOnce(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	req := domain.IssueRequest{
		UserID:     "user-9",
		Amount:     decimal.RequireFromString("37.52"),
		Type:       domain.TransactionTypeRefund,
		SourceType: "settlement",
		SourceID:   "1:2",
		Metadata:   map[string]any{"gift_title": "Farewell"},
	}

	first, err := svc.Issue(ctx, nil, req)
	require.NoError(t, err)
	assert.False(t, first.Duplicate)
	assert.Equal(t, "37.52", first.Account.Balance.StringFixed(2))

	second, err := svc.Issue(ctx, nil, req)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)

	balance, err := svc.Balance(ctx, "user-9")
	require.NoError(t, err)
	assert.Equal(t, "37.52", balance.StringFixed(2))
}

func TestIssueValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Issue(ctx, nil, domain.IssueRequest{Amount: decimal.NewFromInt(1), Type: domain.TransactionTypeRefund, SourceType: "s", SourceID: "1"})
	assert.ErrorIs(t, err, domain.ErrInvalidUser)

	_, err = svc.Issue(ctx, nil, domain.IssueRequest{UserID: "u", Amount: decimal.Zero, Type: domain.TransactionTypeRefund, SourceType: "s", SourceID: "1"})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = svc.Issue(ctx, nil, domain.IssueRequest{UserID: "u", Amount: decimal.NewFromInt(1), Type: domain.TransactionTypeSpend, SourceType: "s", SourceID: "1"})
	assert.ErrorIs(t, err, domain.ErrInvalidType)

	_, err = svc.Issue(ctx, nil, domain.IssueRequest{UserID: "u", Amount: decimal.NewFromInt(1), Type: domain.TransactionTypeBonus})
	assert.ErrorIs(t, err, domain.ErrInvalidSource)
}

func TestSpendRequiresBalance(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Spend(ctx, "user-5", decimal.NewFromInt(5), "contribution", "c-1")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	_, err = svc.Issue(ctx, nil, domain.IssueRequest{
		UserID: "user-5", Amount: decimal.NewFromInt(10), Type: domain.TransactionTypeBonus,
		SourceType: "settlement", SourceID: "g:1",
	})
	require.NoError(t, err)

	_, err = svc.Spend(ctx, "user-5", decimal.NewFromInt(11), "contribution", "c-1")
	assert.ErrorIs(t, err, domain.ErrInsufficientCredit)

	res, err := svc.Spend(ctx, "user-5", decimal.RequireFromString("4.25"), "contribution", "c-1")
	require.NoError(t, err)
	assert.Equal(t, "5.75", res.Account.Balance.StringFixed(2))
}
