package service

import (
	"context"
	"sync"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/smallbiznis/giftpool/internal/config"
	giftdomain "github.com/smallbiznis/giftpool/internal/gift/domain"
	notificationservice "github.com/smallbiznis/giftpool/internal/notification/service"
	"github.com/smallbiznis/giftpool/internal/providers/email"
	"github.com/smallbiznis/giftpool/internal/providers/gateway"
	"github.com/smallbiznis/giftpool/internal/settlement/domain"
	"github.com/smallbiznis/giftpool/internal/settlement/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sentEmail struct {
	to       string
	template string
}

type capturingSender struct {
	mu   sync.Mutex
	sent []sentEmail
}

func (c *capturingSender) Send(ctx context.Context, to []string, subject, body string) error {
	return nil
}

func (c *capturingSender) SendTemplate(ctx context.Context, to []string, templateName string, data map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, addr := range to {
		c.sent = append(c.sent, sentEmail{to: addr, template: templateName})
	}
	return nil
}

func (c *capturingSender) to(templateName string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, s := range c.sent {
		if s.template == templateName {
			out = append(out, s.to)
		}
	}
	return out
}

// notifyWith chains the real completion trigger behind the recorder.
func (f *fixture) notifyWith(sender email.Provider) {
	f.trigger.next = notificationservice.New(notificationservice.Params{
		DB:          f.conn,
		Log:         zap.NewNop(),
		Cfg:         config.Config{PublicBaseURL: "https://giftpool.example.com"},
		GiftRepo:    f.giftRepo,
		Settlements: repository.Provide(),
		Email:       sender,
	})
}

func (f *fixture) expectGiftCard(orderID string) {
	f.giftCards.EXPECT().CheckCapacity(gomock.Any(), gomock.Any()).Return(true, nil)
	f.giftCards.EXPECT().
		PlaceOrder(gomock.Any(), gomock.Any()).
		Return(gateway.OrderResult{
			OrderID:        orderID,
			Status:         gateway.OrderStatusCompleted,
			ProviderStatus: "SUCCESSFUL",
			ClaimURL:       "https://claim.example.com/" + orderID,
		}, nil)
}

func (f *fixture) tip(t *testing.T, amount string) {
	t.Helper()
	res, err := f.svc.Settle(f.ctx, domain.SettleRequest{
		GiftID:      f.gift.ID,
		Disposition: domain.DispositionTip,
		Amount:      dec(amount),
	})
	require.NoError(t, err)
	require.NotNil(t, res.Settlement)
}

func (f *fixture) flagSet(t *testing.T, flag giftdomain.NotificationFlag) bool {
	t.Helper()
	gift, err := f.giftRepo.FindByID(f.ctx, f.conn, f.gift.ID)
	require.NoError(t, err)
	require.NotNil(t, gift)
	return gift.FlagSet(flag)
}

func dispositions(rows []domain.Settlement) []domain.Disposition {
	out := make([]domain.Disposition, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Disposition)
	}
	return out
}

func TestCompletionTriggerSeesCommittedRows(t *testing.T) {
	f := setup(t, "100", "130", contributor{userID: "user-a", amount: "130"})
	f.expectGiftCard("ord-1")

	_, err := f.svc.Settle(f.ctx, bonusRequest(f, "20"))
	require.NoError(t, err)
	require.Len(t, f.trigger.calls, 1)
	assert.Equal(t, []domain.Disposition{domain.DispositionBonus}, dispositions(f.trigger.calls[0]))

	f.tip(t, "5")
	require.Len(t, f.trigger.calls, 2)
	assert.ElementsMatch(t,
		[]domain.Disposition{domain.DispositionBonus, domain.DispositionTip},
		dispositions(f.trigger.calls[1]),
	)
}

func TestCompletionTriggerSkipsRejectedRequests(t *testing.T) {
	f := setup(t, "100", "110", contributor{userID: "user-a", amount: "110"})

	_, err := f.svc.Settle(f.ctx, bonusRequest(f, "25"))
	require.ErrorIs(t, err, domain.ErrExceedsSurplus)
	assert.Empty(t, f.trigger.calls)
}

func TestRecipientNotifiedOnlyForDeliveredGiftCard(t *testing.T) {
	t.Run("delivered", func(t *testing.T) {
		f := setup(t, "100", "130", contributor{userID: "user-a", amount: "130"})
		sender := &capturingSender{}
		f.notifyWith(sender)
		f.expectGiftCard("ord-1")

		_, err := f.svc.Settle(f.ctx, bonusRequest(f, "20"))
		require.NoError(t, err)
		assert.Empty(t, sender.to(email.TemplateRecipientNotification))

		f.tip(t, "5")
		assert.Equal(t, []string{"sam@example.com"}, sender.to(email.TemplateRecipientNotification))
		assert.True(t, f.flagSet(t, giftdomain.FlagRecipientNotificationSent))
	})

	t.Run("fell back to credits", func(t *testing.T) {
		f := setup(t, "100", "130", contributor{userID: "user-a", amount: "130"})
		sender := &capturingSender{}
		f.notifyWith(sender)
		f.giftCards.EXPECT().
			CheckCapacity(gomock.Any(), gomock.Any()).
			Return(false, gateway.NewError("reloadly", gateway.KindInsufficientBalance, "balance too low"))

		res, err := f.svc.Settle(f.ctx, bonusRequest(f, "20"))
		require.NoError(t, err)
		require.True(t, res.FallbackToCredits)

		f.tip(t, "5")
		require.Len(t, f.trigger.calls, 2)
		assert.Empty(t, sender.to(email.TemplateRecipientNotification))
		assert.False(t, f.flagSet(t, giftdomain.FlagRecipientNotificationSent))
		assert.False(t, f.flagSet(t, giftdomain.FlagContributorImpactEmailsSent))
	})
}
