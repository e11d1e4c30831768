package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/giftpool/internal/gift/domain"
	"github.com/smallbiznis/giftpool/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setup(t *testing.T) (*gorm.DB, *snowflake.Node, domain.Repository) {
	t.Helper()
	conn := dbtest.Open(t, &domain.Gift{}, &domain.Contribution{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return conn, node, Provide()
}

func seedGift(t *testing.T, conn *gorm.DB, node *snowflake.Node, repo domain.Repository) *domain.Gift {
	t.Helper()
	now := time.Now().UTC()
	gift := &domain.Gift{
		ID:             node.Generate(),
		Title:          "Farewell for Sam",
		RecipientName:  "Sam",
		OrganizerEmail: "org@example.com",
		TargetAmount:   decimal.RequireFromString("100.00"),
		CurrentAmount:  decimal.RequireFromString("130.00"),
		Status:         domain.StatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, repo.Insert(context.Background(), conn, gift))
	return gift
}

func TestFindByIDMissingReturnsNil(t *testing.T) {
	conn, node, repo := setup(t)
	got, err := repo.FindByID(context.Background(), conn, node.Generate())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFindByIDReadsAmounts(t *testing.T) {
	conn, node, repo := setup(t)
	gift := seedGift(t, conn, node, repo)

	got, err := repo.FindByID(context.Background(), conn, gift.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "30.00", got.Surplus().StringFixed(2))
	assert.Equal(t, domain.StatusActive, got.Status)
}

func TestTransitionStatusOnlyOnce(t *testing.T) {
	conn, node, repo := setup(t)
	gift := seedGift(t, conn, node, repo)
	ctx := context.Background()

	ok, err := repo.TransitionStatus(ctx, conn, gift.ID, domain.StatusSettled)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.TransitionStatus(ctx, conn, gift.ID, domain.StatusSettledCredits)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.FindByID(ctx, conn, gift.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSettled, got.Status)

	_, err = repo.TransitionStatus(ctx, conn, gift.ID, domain.StatusActive)
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestClaimNotificationFlagConcurrent(t *testing.T) {
	conn, node, repo := setup(t)
	gift := seedGift(t, conn, node, repo)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.ClaimNotificationFlag(context.Background(), conn, gift.ID, domain.FlagRecipientNotificationSent)
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())

	_, err := repo.ClaimNotificationFlag(context.Background(), conn, gift.ID, domain.NotificationFlag("status"))
	assert.ErrorIs(t, err, domain.ErrInvalidFlag)
}

func TestEnsureImpactTokenNeverRotates(t *testing.T) {
	conn, node, repo := setup(t)
	gift := seedGift(t, conn, node, repo)
	ctx := context.Background()

	first, err := repo.EnsureImpactToken(ctx, conn, gift.ID, "token-a")
	require.NoError(t, err)
	second, err := repo.EnsureImpactToken(ctx, conn, gift.ID, "token-b")
	require.NoError(t, err)
	assert.Equal(t, "token-a", first)
	assert.Equal(t, "token-a", second)

	found, err := repo.FindByImpactToken(ctx, conn, "token-a")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, gift.ID, found.ID)
}

func TestListContributionsOrdered(t *testing.T) {
	conn, node, repo := setup(t)
	gift := seedGift(t, conn, node, repo)
	ctx := context.Background()
	base := time.Now().UTC()

	for i, amount := range []string{"60.00", "40.00"} {
		require.NoError(t, repo.InsertContribution(ctx, conn, &domain.Contribution{
			ID:               node.Generate(),
			GiftID:           gift.ID,
			DisplayName:      []string{"A", "B"}[i],
			Email:            []string{"a@example.com", "b@example.com"}[i],
			Amount:           decimal.RequireFromString(amount),
			PaymentProvider:  "stripe",
			PaymentReference: "pi_" + amount,
			CreatedAt:        base.Add(time.Duration(i) * time.Minute),
		}))
	}

	list, err := repo.ListContributions(ctx, conn, gift.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "A", list[0].DisplayName)
	assert.True(t, list[0].Amount.Equal(decimal.NewFromInt(60)))
	assert.Equal(t, "pi_60.00", list[0].PaymentReference)
}
