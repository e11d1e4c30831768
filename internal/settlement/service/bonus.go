package service

import (
	"context"
	"errors"
	"fmt"

	giftdomain "github.com/smallbiznis/giftpool/internal/gift/domain"
	"github.com/smallbiznis/giftpool/internal/providers/gateway"
	"github.com/smallbiznis/giftpool/internal/settlement/domain"
	"go.uber.org/zap"
)

const giftCardProvider = "reloadly"

func fallbackEligible(err error) bool {
	return gateway.KindOf(err).FallbackEligible()
}

// settleBonus buys a gift card for the recipient. Capacity shortfalls and
// provider outages degrade to store credit for the same amount.
func (s *Service) settleBonus(ctx context.Context, a *attempt) (domain.Result, error) {
	ok, err := s.giftCards.CheckCapacity(ctx, a.amount)
	if err != nil {
		if fallbackEligible(err) {
			return s.fallbackToCredit(ctx, a, string(gateway.KindOf(err)))
		}
		return domain.Result{}, s.providerFailure(ctx, a, giftCardProvider, err)
	}
	if !ok {
		return s.fallbackToCredit(ctx, a, string(gateway.KindInsufficientBalance))
	}

	idemKey, err := s.orderKey(ctx, a)
	if err != nil {
		return domain.Result{}, err
	}

	order, err := s.giftCards.PlaceOrder(ctx, gateway.OrderRequest{
		ProductID:      s.cfg.GiftCard.ProductID,
		CountryCode:    s.cfg.GiftCard.CountryCode,
		Amount:         a.amount,
		RecipientEmail: a.req.RecipientEmail,
		RecipientName:  a.req.RecipientName,
		SenderName:     senderName(s.cfg.GiftCard.SenderName, a.gift),
		IdempotencyKey: idemKey,
	})
	if err != nil {
		if order.OrderID != "" {
			s.recordFailedOrder(ctx, a, order, err)
		}
		if fallbackEligible(err) {
			return s.fallbackToCredit(ctx, a, string(gateway.KindOf(err)))
		}
		return domain.Result{}, s.providerFailure(ctx, a, giftCardProvider, err)
	}

	status := domain.StatusCompleted
	if order.Status == gateway.OrderStatusPending {
		status = domain.StatusPendingPool
	}
	row := s.newRow(a, domain.DispositionBonus, status, a.amount)
	row.RecipientEmail = a.req.RecipientEmail
	row.RecipientName = a.req.RecipientName
	row.Provider = giftCardProvider
	row.ProviderOrderID = order.OrderID
	row.ProviderStatus = order.ProviderStatus
	row.ClaimURL = order.ClaimURL
	row.RedeemCode = order.RedeemCode
	row.Metadata = []byte(order.Raw)

	if err := s.repo.Insert(ctx, s.db, row); err != nil {
		return domain.Result{}, s.reconciliation(ctx, a, giftCardProvider, order.OrderID, a.amount, err)
	}
	s.recordOutcome(ctx, row)
	a.log.Info("gift card issued",
		zap.String("provider_order_id", order.OrderID),
		zap.String("status", string(status)),
		zap.String("amount", a.amount.StringFixed(2)),
	)

	s.finish(ctx, a, giftdomain.StatusSettled)
	return domain.Result{Settlement: row}, nil
}

// orderKey is unique per order attempt so a retry after a failed order is
// not rejected by the provider as a duplicate.
func (s *Service) orderKey(ctx context.Context, a *attempt) (string, error) {
	rows, err := s.repo.ListByGift(ctx, s.db, a.gift.ID)
	if err != nil {
		return "", err
	}
	attempts := 0
	for _, row := range rows {
		if row.Origin == domain.DispositionBonus && row.Disposition == domain.DispositionBonus {
			attempts++
		}
	}
	return fmt.Sprintf("giftpool-%s-bonus-%d", a.gift.ID, attempts+1), nil
}

// recordFailedOrder keeps an audit row when the provider accepted an order
// that then did not complete.
func (s *Service) recordFailedOrder(ctx context.Context, a *attempt, order gateway.OrderResult, cause error) {
	row := s.newRow(a, domain.DispositionBonus, domain.StatusFailed, a.amount)
	row.RecipientEmail = a.req.RecipientEmail
	row.RecipientName = a.req.RecipientName
	row.Provider = giftCardProvider
	row.ProviderOrderID = order.OrderID
	row.ProviderStatus = order.ProviderStatus
	row.FailureReason = string(gateway.KindOf(cause))
	if err := s.repo.Insert(ctx, s.db, row); err != nil {
		a.log.Error("failed order not recorded",
			zap.String("provider_order_id", order.OrderID),
			zap.Error(errors.Join(cause, err)),
		)
		return
	}
	s.recordOutcome(ctx, row)
}

func senderName(configured string, gift *giftdomain.Gift) string {
	if gift.OrganizerName != "" {
		return gift.OrganizerName
	}
	if configured != "" {
		return configured
	}
	return "GiftPool"
}
