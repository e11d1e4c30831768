package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	giftdomain "github.com/smallbiznis/giftpool/internal/gift/domain"
	"github.com/smallbiznis/giftpool/internal/providers/gateway"
	"github.com/smallbiznis/giftpool/internal/settlement/domain"
	"github.com/smallbiznis/giftpool/pkg/money"
	"go.uber.org/zap"
)

const donationProvider = "donation"

type donationEconomics struct {
	charged decimal.Decimal
	net     decimal.Decimal
	fee     decimal.Decimal
}

// economics splits amount into what leaves the pool and what the charity
// receives. With cover fees the pool also pays the processing fee.
func economics(amount decimal.Decimal, coverFees bool, rate, fixed decimal.Decimal) donationEconomics {
	if coverFees {
		charged := money.GrossUp(amount, rate, fixed)
		return donationEconomics{charged: charged, net: amount, fee: charged.Sub(amount)}
	}
	fee := money.ComputeFee(amount, rate, fixed)
	net := amount.Sub(fee)
	if net.IsNegative() {
		net = decimal.Zero
	}
	return donationEconomics{charged: amount, net: net, fee: amount.Sub(net)}
}

// settleDonation records a charity donation or a platform tip. Neither falls
// back to credit; a failed charge is surfaced with no row written.
func (s *Service) settleDonation(ctx context.Context, a *attempt) (domain.Result, error) {
	if a.req.Amount == nil && a.req.CoverFees {
		// the whole surplus including the fee on top
		a.amount = money.NetOf(a.amount, a.policy.CharityFeeRate, a.policy.CharityFixedFee)
	}
	econ := economics(a.amount, a.req.CoverFees, a.policy.CharityFeeRate, a.policy.CharityFixedFee)
	if !econ.net.IsPositive() {
		return domain.Result{}, domain.NewValidationError("amount", fmt.Errorf("%w: amount does not cover processing fees", domain.ErrInvalidAmount))
	}
	if econ.charged.GreaterThan(a.remaining) {
		return domain.Result{}, domain.NewValidationError("amount", domain.ErrExceedsSurplus)
	}

	row := s.newRow(a, a.req.Disposition, domain.StatusCompleted, econ.charged)
	row.NetAmount = econ.net
	row.FeeAmount = econ.fee
	row.CoverFees = a.req.CoverFees
	row.Provider = "ledger"
	if a.req.Disposition == domain.DispositionCharity {
		row.CharityID = a.req.CharityID
		row.CharityName = a.req.CharityName
	}

	if a.req.Disposition == domain.DispositionCharity && s.donations != nil && s.donations.ChargeRequired() {
		res, err := s.donations.Donate(ctx, gateway.DonationRequest{
			GiftID:         a.gift.ID.String(),
			CharityID:      a.req.CharityID,
			CharityName:    a.req.CharityName,
			Amount:         econ.charged,
			NetAmount:      econ.net,
			FeeAmount:      econ.fee,
			CoverFees:      a.req.CoverFees,
			Dedication:     a.req.Dedication,
			IdempotencyKey: fmt.Sprintf("giftpool-%s-donation", a.gift.ID),
		})
		if err != nil {
			return domain.Result{}, s.providerFailure(ctx, a, donationProvider, err)
		}
		row.Provider = donationProvider
		row.ProviderOrderID = res.DonationID
		row.ProviderStatus = res.Status
	}

	if err := s.repo.Insert(ctx, s.db, row); err != nil {
		if row.ProviderOrderID != "" {
			return domain.Result{}, s.reconciliation(ctx, a, donationProvider, row.ProviderOrderID, econ.charged, err)
		}
		return domain.Result{}, err
	}
	s.recordOutcome(ctx, row)
	a.log.Info("donation recorded",
		zap.String("charged", econ.charged.StringFixed(2)),
		zap.String("net", econ.net.StringFixed(2)),
		zap.Bool("cover_fees", a.req.CoverFees),
	)

	s.finish(ctx, a, giftdomain.StatusSettled)
	return domain.Result{Settlement: row}, nil
}
