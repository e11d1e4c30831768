package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	creditdomain "github.com/smallbiznis/giftpool/internal/credit/domain"
	giftdomain "github.com/smallbiznis/giftpool/internal/gift/domain"
	"github.com/smallbiznis/giftpool/internal/providers/gateway"
	"github.com/smallbiznis/giftpool/internal/settlement/allocation"
	"github.com/smallbiznis/giftpool/internal/settlement/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	reasonNoAccount         = "contributor_has_no_account"
	reasonNoRefundPath      = "no_refund_path"
	reasonCreditIssueFailed = "credit_issue_failed"
	creditSourceType        = "settlement"
)

// batch accumulates per-contributor outcomes of a refund or credit run.
type batch struct {
	rows   []domain.Settlement
	counts domain.BatchCounts
	errs   []error
}

func (b *batch) add(row *domain.Settlement) {
	b.rows = append(b.rows, *row)
	switch {
	case row.Status == domain.StatusFailed:
		b.counts.Failed++
	case row.Disposition == domain.DispositionRefund:
		b.counts.Refunded++
	case row.Disposition == domain.DispositionCredit:
		b.counts.Credited++
	}
}

func (b *batch) result(fallback bool) domain.Result {
	counts := b.counts
	res := domain.Result{
		Settlements:       b.rows,
		FallbackToCredits: fallback,
		Counts:            &counts,
	}
	if counts.Failed > 0 {
		b.errs = append([]error{domain.ErrPartialBatch}, b.errs...)
	}
	res.Err = errors.Join(b.errs...)
	return res
}

func (b *batch) succeeded() bool {
	return b.counts.Refunded+b.counts.Credited > 0
}

// plan allocates the pool across contributions, skipping the excluded ones,
// and checks it against what is left of the surplus.
func (s *Service) plan(ctx context.Context, a *attempt, amount, fees *decimal.Decimal, exclude map[snowflake.ID]bool) (allocation.Allocation, map[snowflake.ID]giftdomain.Contribution, error) {
	all, err := s.giftRepo.ListContributions(ctx, s.db, a.gift.ID)
	if err != nil {
		return allocation.Allocation{}, nil, err
	}
	contributions := make([]giftdomain.Contribution, 0, len(all))
	for _, c := range all {
		if !exclude[c.ID] {
			contributions = append(contributions, c)
		}
	}
	alloc := allocate(contributions, amount, fees, a.remaining)
	if alloc.Empty() {
		return alloc, nil, domain.NewValidationError("amount", domain.ErrNothingToDistribute)
	}
	if alloc.SumShares().GreaterThan(a.remaining) {
		return alloc, nil, domain.NewValidationError("total_fees", domain.ErrExceedsSurplus)
	}
	byID := make(map[snowflake.ID]giftdomain.Contribution, len(contributions))
	for _, c := range contributions {
		byID[c.ID] = c
	}
	return alloc, byID, nil
}

func (s *Service) settleRefund(ctx context.Context, a *attempt) (domain.Result, error) {
	settled, err := s.settledContributions(ctx, a.gift.ID)
	if err != nil {
		return domain.Result{}, err
	}
	alloc, byID, err := s.plan(ctx, a, a.req.Amount, a.req.TotalFees, settled)
	if err != nil {
		return domain.Result{}, err
	}

	b := &batch{}
	for _, share := range alloc.Rows {
		if !share.Share.IsPositive() {
			continue
		}
		c := byID[share.ContributionID]
		s.refundShare(ctx, a, b, c, share.Share)
	}

	if b.succeeded() {
		s.finish(ctx, a, giftdomain.StatusSettled)
	}
	a.log.Info("refund batch processed",
		zap.Int("refunded", b.counts.Refunded),
		zap.Int("credited", b.counts.Credited),
		zap.Int("failed", b.counts.Failed),
	)
	return b.result(false), nil
}

// refundShare returns one contributor's share to their payment method, or to
// store credit when the payment cannot be refunded at its source.
func (s *Service) refundShare(ctx context.Context, a *attempt, b *batch, c giftdomain.Contribution, share decimal.Decimal) {
	log := a.log.With(zap.String("contribution_id", c.ID.String()))

	var processor gateway.RefundProcessor
	if c.PaymentReference != "" && s.refunds != nil {
		p, err := s.refunds.Processor(c.PaymentProvider)
		if err == nil {
			processor = p
		}
	}
	if processor == nil {
		log.Info("no refund path for contribution, issuing credit", zap.String("payment_provider", c.PaymentProvider))
		s.creditShare(ctx, a, b, c, share, creditdomain.TransactionTypeRefund, reasonNoRefundPath)
		return
	}

	key := fmt.Sprintf("giftpool-%s-refund-%s", a.gift.ID, c.ID)
	res, err := processor.RefundToSource(ctx, c.PaymentReference, share, key)
	if err != nil {
		kind := gateway.KindOf(err)
		s.metrics.RecordProviderError(ctx, processor.Provider(), string(kind))
		if kind == gateway.KindInvalidRequest {
			log.Warn("refund rejected by processor, issuing credit", zap.Error(err))
			s.creditShare(ctx, a, b, c, share, creditdomain.TransactionTypeRefund, string(kind))
			return
		}
		log.Warn("refund failed", zap.String("kind", string(kind)), zap.Error(err))
		row := s.newRow(a, domain.DispositionRefund, domain.StatusFailed, share)
		row.ContributionID = &c.ID
		row.UserID = c.UserID
		row.Provider = processor.Provider()
		row.FailureReason = string(kind)
		s.insertBatchRow(ctx, a, b, row)
		return
	}

	row := s.newRow(a, domain.DispositionRefund, domain.StatusCompleted, share)
	row.ContributionID = &c.ID
	row.UserID = c.UserID
	row.Provider = processor.Provider()
	row.ProviderOrderID = res.RefundID
	row.ProviderStatus = res.Status
	if err := s.repo.Insert(ctx, s.db, row); err != nil {
		b.errs = append(b.errs, s.reconciliation(ctx, a, processor.Provider(), res.RefundID, share, err))
		b.counts.Refunded++
		return
	}
	s.recordOutcome(ctx, row)
	b.add(row)
}

func (s *Service) settleCredit(ctx context.Context, a *attempt) (domain.Result, error) {
	settled, err := s.settledContributions(ctx, a.gift.ID)
	if err != nil {
		return domain.Result{}, err
	}
	alloc, byID, err := s.plan(ctx, a, a.req.Amount, a.req.TotalFees, settled)
	if err != nil {
		return domain.Result{}, err
	}

	b := &batch{}
	for _, share := range alloc.Rows {
		if !share.Share.IsPositive() {
			continue
		}
		s.creditShare(ctx, a, b, byID[share.ContributionID], share.Share, creditdomain.TransactionTypeRefund, "")
	}

	if b.succeeded() {
		s.finish(ctx, a, giftdomain.StatusSettled)
	}
	a.log.Info("credit batch processed",
		zap.Int("credited", b.counts.Credited),
		zap.Int("failed", b.counts.Failed),
	)
	return b.result(false), nil
}

// fallbackToCredit converts an undeliverable gift card into store credit,
// split across contributors in proportion to what they paid in.
func (s *Service) fallbackToCredit(ctx context.Context, a *attempt, reason string) (domain.Result, error) {
	a.log.Warn("gift card unavailable, falling back to store credit",
		zap.String("reason", reason),
		zap.String("amount", a.amount.StringFixed(2)),
	)
	s.metrics.RecordFallback(ctx, string(a.req.Disposition), reason)

	amount := a.amount
	alloc, byID, err := s.plan(ctx, a, &amount, nil, nil)
	if err != nil {
		return domain.Result{}, err
	}

	b := &batch{}
	for _, share := range alloc.Rows {
		if !share.Share.IsPositive() {
			continue
		}
		s.creditShare(ctx, a, b, byID[share.ContributionID], share.Share, creditdomain.TransactionTypeBonus, reason)
	}

	if !b.succeeded() {
		a.log.Warn("store credit fallback issued nothing", zap.Int("failed", b.counts.Failed))
		return domain.Result{}, &domain.FallbackError{Reason: reason, Failed: b.counts.Failed}
	}
	s.finish(ctx, a, giftdomain.StatusSettledCredits)
	return b.result(true), nil
}

// creditShare issues one wallet credit and its settlement row atomically.
func (s *Service) creditShare(ctx context.Context, a *attempt, b *batch, c giftdomain.Contribution, share decimal.Decimal, txType creditdomain.TransactionType, reason string) {
	row := s.newRow(a, domain.DispositionCredit, domain.StatusCompleted, share)
	row.ContributionID = &c.ID
	row.UserID = c.UserID
	row.Provider = "store_credit"
	if reason != "" {
		row.Metadata = []byte(fmt.Sprintf(`{"reason":%q}`, reason))
	}

	if c.UserID == "" {
		row.Status = domain.StatusFailed
		row.FailureReason = reasonNoAccount
		s.insertBatchRow(ctx, a, b, row)
		return
	}

	giftID := a.gift.ID
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.credits.Issue(ctx, tx, creditdomain.IssueRequest{
			UserID:     c.UserID,
			Amount:     share,
			Type:       txType,
			GiftID:     &giftID,
			SourceType: creditSourceType,
			SourceID:   fmt.Sprintf("%s:%s:%s", a.gift.ID, a.req.Disposition, c.ID),
			Metadata: map[string]any{
				"gift_id":         a.gift.ID.String(),
				"contribution_id": c.ID.String(),
				"origin":          string(a.req.Disposition),
			},
		}); err != nil {
			return err
		}
		return s.repo.Insert(ctx, tx, row)
	})
	if err != nil {
		a.log.Warn("credit issue failed",
			zap.String("contribution_id", c.ID.String()),
			zap.Error(err),
		)
		failed := s.newRow(a, domain.DispositionCredit, domain.StatusFailed, share)
		failed.ContributionID = &c.ID
		failed.UserID = c.UserID
		failed.Provider = row.Provider
		failed.FailureReason = creditFailureReason(err)
		s.insertBatchRow(ctx, a, b, failed)
		return
	}
	s.recordOutcome(ctx, row)
	b.add(row)
}

func (s *Service) insertBatchRow(ctx context.Context, a *attempt, b *batch, row *domain.Settlement) {
	if err := s.repo.Insert(ctx, s.db, row); err != nil {
		a.log.Error("settlement row not recorded", zap.String("status", string(row.Status)), zap.Error(err))
		b.errs = append(b.errs, err)
	}
	s.recordOutcome(ctx, row)
	b.add(row)
}

func creditFailureReason(err error) string {
	switch {
	case errors.Is(err, creditdomain.ErrInvalidUser):
		return reasonNoAccount
	case errors.Is(err, creditdomain.ErrInvalidAmount):
		return "invalid_amount"
	default:
		return reasonCreditIssueFailed
	}
}
