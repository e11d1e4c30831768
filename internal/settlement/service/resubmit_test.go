package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	giftdomain "github.com/smallbiznis/giftpool/internal/gift/domain"
	"github.com/smallbiznis/giftpool/internal/providers/gateway"
	"github.com/smallbiznis/giftpool/internal/settlement/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func refundRequest(f *fixture) domain.SettleRequest {
	return domain.SettleRequest{GiftID: f.gift.ID, Disposition: domain.DispositionRefund}
}

func TestRefundResubmitRetriesTransientFailures(t *testing.T) {
	f := setup(t, "100", "125",
		contributor{userID: "user-a", amount: "75", provider: "stripe", reference: "pi_a"},
		contributor{userID: "user-b", amount: "50", provider: "stripe", reference: "pi_b"},
	)
	f.refunds.EXPECT().
		RefundToSource(gomock.Any(), "pi_a", gomock.Any(), gomock.Any()).
		Return(gateway.RefundResult{RefundID: "re_a", Status: "succeeded"}, nil).
		Times(1)

	var keys []string
	gomock.InOrder(
		f.refunds.EXPECT().
			RefundToSource(gomock.Any(), "pi_b", gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, amount decimal.Decimal, key string) (gateway.RefundResult, error) {
				keys = append(keys, key)
				return gateway.RefundResult{}, gateway.NewError("stripe", gateway.KindUnavailable, "connection reset")
			}),
		f.refunds.EXPECT().
			RefundToSource(gomock.Any(), "pi_b", gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, amount decimal.Decimal, key string) (gateway.RefundResult, error) {
				assert.Equal(t, "10.00", amount.StringFixed(2))
				keys = append(keys, key)
				return gateway.RefundResult{RefundID: "re_b", Status: "succeeded", Amount: amount}, nil
			}),
	)

	first, err := f.svc.Settle(f.ctx, refundRequest(f))
	require.NoError(t, err)
	assert.Equal(t, domain.BatchCounts{Refunded: 1, Failed: 1}, *first.Counts)
	assert.ErrorIs(t, first.Err, domain.ErrPartialBatch)

	second, err := f.svc.Settle(f.ctx, refundRequest(f))
	require.NoError(t, err)
	require.NoError(t, second.Err)
	assert.False(t, second.Idempotent)
	assert.Equal(t, domain.BatchCounts{Refunded: 2}, *second.Counts)

	require.Len(t, keys, 2)
	assert.Equal(t, keys[0], keys[1])
	assert.Contains(t, keys[0], "giftpool-"+f.gift.ID.String()+"-refund-")

	third, err := f.svc.Settle(f.ctx, refundRequest(f))
	require.NoError(t, err)
	require.NoError(t, third.Err)
	assert.True(t, third.Idempotent)
	assert.Equal(t, domain.BatchCounts{Refunded: 2}, *third.Counts)
	assert.Equal(t, giftdomain.StatusSettled, f.giftStatus(t))
}

func TestRefundResubmitReportsTerminalFailures(t *testing.T) {
	f := setup(t, "100", "125",
		contributor{userID: "user-a", amount: "75", provider: "stripe", reference: "pi_a"},
		contributor{userID: "user-b", amount: "50", provider: "stripe", reference: "pi_b"},
	)
	f.refunds.EXPECT().
		RefundToSource(gomock.Any(), "pi_a", gomock.Any(), gomock.Any()).
		Return(gateway.RefundResult{RefundID: "re_a", Status: "succeeded"}, nil).
		Times(1)
	f.refunds.EXPECT().
		RefundToSource(gomock.Any(), "pi_b", gomock.Any(), gomock.Any()).
		Return(gateway.RefundResult{}, gateway.NewError("stripe", gateway.KindAuthFailure, "invalid api key")).
		Times(1)

	first, err := f.svc.Settle(f.ctx, refundRequest(f))
	require.NoError(t, err)
	assert.Equal(t, domain.BatchCounts{Refunded: 1, Failed: 1}, *first.Counts)

	again, err := f.svc.Settle(f.ctx, refundRequest(f))
	require.NoError(t, err)
	assert.True(t, again.Idempotent)
	assert.Equal(t, domain.BatchCounts{Refunded: 1, Failed: 1}, *again.Counts)
	assert.ErrorIs(t, again.Err, domain.ErrPartialBatch)
	require.Len(t, again.Settlements, 2)

	// the stuck share can still go to store credit, and only that share
	credit, err := f.svc.Settle(f.ctx, domain.SettleRequest{GiftID: f.gift.ID, Disposition: domain.DispositionCredit})
	require.NoError(t, err)
	require.NoError(t, credit.Err)
	assert.Equal(t, domain.BatchCounts{Credited: 1}, *credit.Counts)
	assert.Equal(t, "10.00", f.balance(t, "user-b"))
	assert.Equal(t, "0.00", f.balance(t, "user-a"))

	after, err := f.svc.Settle(f.ctx, refundRequest(f))
	require.NoError(t, err)
	assert.True(t, after.Idempotent)
	assert.Equal(t, domain.BatchCounts{Refunded: 1}, *after.Counts)
	require.NoError(t, after.Err)
}

func TestLatestByContributionKeepsNewest(t *testing.T) {
	a, b := snowflake.ID(1), snowflake.ID(2)
	rows := []domain.Settlement{
		{ID: 10, ContributionID: &a, Status: domain.StatusCompleted},
		{ID: 11, ContributionID: &b, Status: domain.StatusFailed},
		{ID: 12},
		{ID: 13, ContributionID: &b, Status: domain.StatusCompleted},
	}

	latest := latestByContribution(rows)
	require.Len(t, latest, 2)
	assert.Equal(t, snowflake.ID(10), latest[0].ID)
	assert.Equal(t, snowflake.ID(13), latest[1].ID)
}

func TestRetryableFailure(t *testing.T) {
	cases := map[string]bool{
		string(gateway.KindUnavailable):    true,
		string(gateway.KindUnknown):        true,
		reasonCreditIssueFailed:            true,
		string(gateway.KindAuthFailure):    false,
		string(gateway.KindInvalidRequest): false,
		reasonNoAccount:                    false,
	}
	for reason, want := range cases {
		row := domain.Settlement{Status: domain.StatusFailed, FailureReason: reason}
		assert.Equal(t, want, retryableFailure(row), reason)
	}
	assert.False(t, retryableFailure(domain.Settlement{Status: domain.StatusCompleted, FailureReason: string(gateway.KindUnavailable)}))
}
