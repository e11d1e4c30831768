package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	creditdomain "github.com/smallbiznis/giftpool/internal/credit/domain"
	giftdomain "github.com/smallbiznis/giftpool/internal/gift/domain"
	"github.com/smallbiznis/giftpool/internal/providers/gateway"
	"github.com/smallbiznis/giftpool/internal/settlement/domain"
	"go.uber.org/zap"
)

// resumeBatch continues a refund or credit batch that already ran for this
// gift. Contributions whose latest row failed for a transient reason are
// attempted again; everything else is reported as it stands.
func (s *Service) resumeBatch(ctx context.Context, a *attempt, prior []domain.Settlement) (domain.Result, error) {
	settled, err := s.settledContributions(ctx, a.gift.ID)
	if err != nil {
		return domain.Result{}, err
	}
	contributions, err := s.giftRepo.ListContributions(ctx, s.db, a.gift.ID)
	if err != nil {
		return domain.Result{}, err
	}
	byID := make(map[snowflake.ID]giftdomain.Contribution, len(contributions))
	for _, c := range contributions {
		byID[c.ID] = c
	}

	b := &batch{}
	var retries []domain.Settlement
	for _, row := range latestByContribution(prior) {
		if row.Status == domain.StatusFailed {
			if settled[*row.ContributionID] {
				// settled since by another batch
				continue
			}
			if _, ok := byID[*row.ContributionID]; ok && retryableFailure(row) {
				retries = append(retries, row)
				continue
			}
		}
		b.add(&row)
	}

	if len(retries) == 0 {
		a.log.Info("batch already applied, returning existing result")
		result := b.result(false)
		result.Idempotent = true
		return result, nil
	}

	total := decimal.Zero
	for _, row := range retries {
		total = total.Add(row.Amount)
	}
	if total.GreaterThan(a.remaining) {
		return domain.Result{}, domain.NewValidationError("amount", domain.ErrExceedsSurplus)
	}
	a.amount = total

	a.log.Info("resuming batch", zap.Int("retries", len(retries)), zap.String("amount", total.StringFixed(2)))
	for _, row := range retries {
		c := byID[*row.ContributionID]
		if a.req.Disposition == domain.DispositionRefund {
			s.refundShare(ctx, a, b, c, row.Amount)
			continue
		}
		s.creditShare(ctx, a, b, c, row.Amount, creditdomain.TransactionTypeRefund, "")
	}

	if b.succeeded() {
		s.finish(ctx, a, giftdomain.StatusSettled)
	}
	a.log.Info("batch resumed",
		zap.Int("refunded", b.counts.Refunded),
		zap.Int("credited", b.counts.Credited),
		zap.Int("failed", b.counts.Failed),
	)
	return b.result(false), nil
}

// settledContributions are the contributions already returned by an active
// refund or credit row.
func (s *Service) settledContributions(ctx context.Context, giftID snowflake.ID) (map[snowflake.ID]bool, error) {
	settled := map[snowflake.ID]bool{}
	for _, origin := range []domain.Disposition{domain.DispositionRefund, domain.DispositionCredit} {
		rows, err := s.repo.ListActiveByOrigin(ctx, s.db, giftID, origin)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			if row.ContributionID != nil {
				settled[*row.ContributionID] = true
			}
		}
	}
	return settled, nil
}

// latestByContribution keeps the newest row per contribution, in the order
// contributions first appear. rows must be oldest first.
func latestByContribution(rows []domain.Settlement) []domain.Settlement {
	index := map[snowflake.ID]int{}
	var out []domain.Settlement
	for _, row := range rows {
		if row.ContributionID == nil {
			continue
		}
		if i, ok := index[*row.ContributionID]; ok {
			out[i] = row
			continue
		}
		index[*row.ContributionID] = len(out)
		out = append(out, row)
	}
	return out
}

func retryableFailure(row domain.Settlement) bool {
	if row.Status != domain.StatusFailed {
		return false
	}
	switch row.FailureReason {
	case string(gateway.KindUnavailable), string(gateway.KindUnknown), reasonCreditIssueFailed:
		return true
	default:
		return false
	}
}
