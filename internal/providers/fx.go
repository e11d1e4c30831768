package providers

import (
	"github.com/smallbiznis/giftpool/internal/clock"
	"github.com/smallbiznis/giftpool/internal/config"
	"github.com/smallbiznis/giftpool/internal/providers/donation"
	"github.com/smallbiznis/giftpool/internal/providers/email"
	"github.com/smallbiznis/giftpool/internal/providers/gateway"
	"github.com/smallbiznis/giftpool/internal/providers/giftcard/reloadly"
	"github.com/smallbiznis/giftpool/internal/providers/refund"
	"github.com/smallbiznis/giftpool/internal/providers/refund/stripe"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers",
	email.Module,
	fx.Provide(
		NewGiftCardProvider,
		donation.New,
		refund.ProvideRegistry,
		fx.Annotate(
			NewStripeRefunds,
			fx.As(new(gateway.RefundProcessor)),
			fx.ResultTags(`group:"refund_processors"`),
		),
	),
)

func NewGiftCardProvider(cfg config.Config, policy *config.SettlementPolicyHolder, log *zap.Logger, clk clock.Clock) gateway.GiftCardProvider {
	current := policy.Get()
	return reloadly.New(reloadly.Config{
		ClientID:           cfg.GiftCard.ClientID,
		ClientSecret:       cfg.GiftCard.ClientSecret,
		Audience:           cfg.GiftCard.Audience,
		AuthURL:            cfg.GiftCard.AuthURL,
		BaseURL:            cfg.GiftCard.BaseURL,
		Timeout:            current.ProviderTimeout,
		TokenRefreshBuffer: current.TokenRefreshBuffer,
	}, log, clk)
}

func NewStripeRefunds(cfg config.Config, policy *config.SettlementPolicyHolder) *stripe.Processor {
	return stripe.New(cfg.Stripe.SecretKey, cfg.Stripe.BaseURL, policy.Get().ProviderTimeout)
}
