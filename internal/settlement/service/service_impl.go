package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/giftpool/internal/clock"
	"github.com/smallbiznis/giftpool/internal/config"
	creditdomain "github.com/smallbiznis/giftpool/internal/credit/domain"
	giftdomain "github.com/smallbiznis/giftpool/internal/gift/domain"
	obscontext "github.com/smallbiznis/giftpool/internal/observability/context"
	obsmetrics "github.com/smallbiznis/giftpool/internal/observability/metrics"
	"github.com/smallbiznis/giftpool/internal/providers/gateway"
	"github.com/smallbiznis/giftpool/internal/providers/refund"
	"github.com/smallbiznis/giftpool/internal/ratelimit"
	"github.com/smallbiznis/giftpool/internal/settlement/allocation"
	"github.com/smallbiznis/giftpool/internal/settlement/domain"
	"github.com/smallbiznis/giftpool/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Cfg       config.Config
	Policy    *config.SettlementPolicyHolder
	Repo      domain.Repository
	GiftRepo  giftdomain.Repository
	Credits   creditdomain.Service
	GiftCards gateway.GiftCardProvider
	Refunds   *refund.Registry
	Donations gateway.DonationProcessor
	Locker    ratelimit.GiftLocker
	Trigger   domain.CompletionTrigger `optional:"true"`
	Clock     clock.Clock              `optional:"true"`
	Metrics   *obsmetrics.Metrics      `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	cfg       config.Config
	policy    *config.SettlementPolicyHolder
	repo      domain.Repository
	giftRepo  giftdomain.Repository
	credits   creditdomain.Service
	giftCards gateway.GiftCardProvider
	refunds   *refund.Registry
	donations gateway.DonationProcessor
	locker    ratelimit.GiftLocker
	trigger   domain.CompletionTrigger
	clock     clock.Clock
	metrics   *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	c := p.Clock
	if c == nil {
		c = clock.SystemClock{}
	}
	locker := p.Locker
	if locker == nil {
		locker = ratelimit.NewLocalGiftLocker()
	}
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("settlement.service"),
		genID:     p.GenID,
		cfg:       p.Cfg,
		policy:    p.Policy,
		repo:      p.Repo,
		giftRepo:  p.GiftRepo,
		credits:   p.Credits,
		giftCards: p.GiftCards,
		refunds:   p.Refunds,
		donations: p.Donations,
		locker:    locker,
		trigger:   p.Trigger,
		clock:     c,
		metrics:   p.Metrics,
	}
}

// attempt carries the state shared by one settlement attempt.
type attempt struct {
	req       domain.SettleRequest
	gift      *giftdomain.Gift
	amount    decimal.Decimal
	remaining decimal.Decimal
	policy    config.SettlementPolicy
	log       *zap.Logger
}

func (s *Service) Settle(ctx context.Context, req domain.SettleRequest) (domain.Result, error) {
	if req.GiftID == 0 {
		return domain.Result{}, domain.ErrGiftNotFound
	}
	if _, err := domain.ParseDisposition(string(req.Disposition)); err != nil {
		return domain.Result{}, domain.NewValidationError("disposition", err)
	}
	policy := s.policy.Get()
	if err := validateRequest(req, policy); err != nil {
		return domain.Result{}, err
	}

	ctx = obscontext.WithGiftID(ctx, req.GiftID.String())
	log := s.log.With(
		zap.String("gift_id", req.GiftID.String()),
		zap.String("disposition", string(req.Disposition)),
	)

	release, ok, err := s.locker.Acquire(ctx, req.GiftID.String(), policy.SettlementLockTTL)
	if err != nil {
		return domain.Result{}, err
	}
	if !ok {
		return domain.Result{}, domain.ErrSettlementInProgress
	}
	defer release()

	gift, err := s.giftRepo.FindByID(ctx, s.db, req.GiftID)
	if err != nil {
		return domain.Result{}, err
	}
	if gift == nil {
		return domain.Result{}, domain.ErrGiftNotFound
	}

	var prior []domain.Settlement
	if req.Disposition.Batched() {
		if prior, err = s.repo.ListByOrigin(ctx, s.db, gift.ID, req.Disposition); err != nil {
			return domain.Result{}, err
		}
	} else if result, done, err := s.existing(ctx, req); err != nil || done {
		if done {
			log.Info("settlement already applied, returning existing result")
		}
		return result, err
	}

	remaining, err := s.remaining(ctx, gift)
	if err != nil {
		return domain.Result{}, err
	}
	if len(prior) > 0 {
		a := &attempt{req: req, gift: gift, remaining: remaining, policy: policy, log: log}
		return s.resumeBatch(ctx, a, prior)
	}
	if remaining.LessThan(money.Cent) {
		return domain.Result{}, domain.NewValidationError("amount", domain.ErrNoSurplus)
	}

	a := &attempt{req: req, gift: gift, remaining: remaining, policy: policy, log: log}
	a.amount = remaining
	if req.Amount != nil {
		a.amount = money.RoundCents(*req.Amount)
	}
	if a.amount.GreaterThan(remaining) {
		return domain.Result{}, domain.NewValidationError("amount", domain.ErrExceedsSurplus)
	}

	switch req.Disposition {
	case domain.DispositionBonus:
		if err := money.Validate(a.amount, policy.MinGiftCardAmount); err != nil {
			return domain.Result{}, domain.NewValidationError("amount", fmt.Errorf("%w: %w", domain.ErrInvalidAmount, err))
		}
		return s.settleBonus(ctx, a)
	case domain.DispositionCharity, domain.DispositionTip:
		return s.settleDonation(ctx, a)
	case domain.DispositionRefund:
		return s.settleRefund(ctx, a)
	default:
		return s.settleCredit(ctx, a)
	}
}

func validateRequest(req domain.SettleRequest, policy config.SettlementPolicy) error {
	if req.Amount != nil {
		min := money.Cent
		if req.Disposition == domain.DispositionBonus {
			min = policy.MinGiftCardAmount
		}
		if err := money.Validate(money.RoundCents(*req.Amount), min); err != nil {
			return domain.NewValidationError("amount", fmt.Errorf("%w: %w", domain.ErrInvalidAmount, err))
		}
	}
	if req.TotalFees != nil && req.TotalFees.IsNegative() {
		return domain.NewValidationError("total_fees", domain.ErrInvalidAmount)
	}
	switch req.Disposition {
	case domain.DispositionBonus:
		if req.RecipientEmail == "" {
			return domain.NewValidationError("recipient_email", domain.ErrMissingRecipientEmail)
		}
	case domain.DispositionCharity:
		if req.CharityID == "" && req.CharityName == "" {
			return domain.NewValidationError("charity_id", domain.ErrMissingCharity)
		}
	}
	return nil
}

// existing returns the prior outcome of a bonus, charity or tip, so a
// retried request never repeats a financial side effect. Refund and credit
// batches are resumed by resumeBatch instead.
func (s *Service) existing(ctx context.Context, req domain.SettleRequest) (domain.Result, bool, error) {
	rows, err := s.repo.ListActiveByOrigin(ctx, s.db, req.GiftID, req.Disposition)
	if err != nil {
		return domain.Result{}, false, err
	}
	if len(rows) > 0 {
		return existingResult(req.Disposition, rows), true, nil
	}

	if slot, ok := req.Disposition.Slot(); ok {
		occupant, err := s.repo.FindActiveInSlot(ctx, s.db, req.GiftID, slot)
		if err != nil {
			return domain.Result{}, false, err
		}
		if occupant != nil {
			return domain.Result{}, false, domain.ErrSlotTaken
		}
	}
	return domain.Result{}, false, nil
}

func existingResult(d domain.Disposition, rows []domain.Settlement) domain.Result {
	if len(rows) == 1 && rows[0].Disposition == d {
		row := rows[0]
		return domain.Result{Settlement: &row, Idempotent: true}
	}
	// a bonus that fell back to credits
	b := &batch{}
	for i := range rows {
		b.add(&rows[i])
	}
	result := b.result(true)
	result.Idempotent = true
	return result
}

func (s *Service) remaining(ctx context.Context, gift *giftdomain.Gift) (decimal.Decimal, error) {
	consumed, err := s.repo.SumActive(ctx, s.db, gift.ID)
	if err != nil {
		return decimal.Zero, err
	}
	left := money.RoundCents(gift.Surplus().Sub(consumed))
	if left.IsNegative() {
		return decimal.Zero, nil
	}
	return left, nil
}

func (s *Service) newRow(a *attempt, d domain.Disposition, status domain.Status, amount decimal.Decimal) *domain.Settlement {
	row := &domain.Settlement{
		ID:             s.genID.Generate(),
		GiftID:         a.gift.ID,
		Disposition:    d,
		Origin:         a.req.Disposition,
		Status:         status,
		Amount:         money.RoundCents(amount),
		Dedication:     a.req.Dedication,
		TotalCollected: a.gift.CurrentAmount,
		FinalGiftPrice: a.gift.TargetAmount,
		CreatedAt:      s.clock.Now().UTC(),
	}
	if slot, ok := d.Slot(); ok && status.Active() && d == a.req.Disposition {
		row.Slot = &slot
	}
	return row
}

// finish runs the post-commit steps: the guarded gift status transition and
// the completion trigger.
func (s *Service) finish(ctx context.Context, a *attempt, to giftdomain.Status) {
	moved, err := s.giftRepo.TransitionStatus(ctx, s.db, a.gift.ID, to)
	switch {
	case err != nil:
		a.log.Error("gift status transition failed", zap.String("to", string(to)), zap.Error(err))
	case moved:
		a.log.Info("gift settled", zap.String("status", string(to)))
	}
	s.checkCompletion(ctx, a.gift.ID, a.log)
}

func (s *Service) checkCompletion(ctx context.Context, giftID snowflake.ID, log *zap.Logger) {
	if s.trigger == nil {
		return
	}
	if err := s.trigger.CheckAndTrigger(ctx, giftID); err != nil {
		log.Warn("completion notification check failed", zap.Error(err))
	}
}

// providerFailure normalizes a gateway error for the caller.
func (s *Service) providerFailure(ctx context.Context, a *attempt, provider string, err error) *domain.ProviderError {
	kind := gateway.KindOf(err)
	var gwErr *gateway.Error
	message := err.Error()
	if errors.As(err, &gwErr) && gwErr.Message != "" {
		message = gwErr.Message
	}

	fields := []zap.Field{
		zap.String("provider", provider),
		zap.String("kind", string(kind)),
		zap.Error(err),
	}
	if gwErr != nil && gwErr.Code != "" {
		fields = append(fields, zap.String("provider_code", gwErr.Code))
	}
	if kind == gateway.KindAuthFailure {
		a.log.Error("provider credentials rejected", fields...)
	} else {
		a.log.Warn("provider call failed", fields...)
	}
	s.metrics.RecordProviderError(ctx, provider, string(kind))
	s.metrics.RecordSettlement(ctx, string(a.req.Disposition), string(domain.StatusFailed), 0)

	return &domain.ProviderError{
		Disposition: a.req.Disposition,
		Provider:    provider,
		Kind:        string(kind),
		Message:     message,
		Err:         err,
	}
}

// reconciliation logs a bookkeeping failure after money already moved.
func (s *Service) reconciliation(ctx context.Context, a *attempt, provider, orderID string, amount decimal.Decimal, err error) *domain.ReconciliationError {
	recErr := &domain.ReconciliationError{
		GiftID:          a.gift.ID,
		Disposition:     a.req.Disposition,
		Provider:        provider,
		ProviderOrderID: orderID,
		Amount:          amount,
		Err:             err,
	}
	a.log.Error("settlement not recorded after provider side effect",
		zap.String("provider", provider),
		zap.String("provider_order_id", orderID),
		zap.String("amount", amount.StringFixed(2)),
		zap.Error(err),
	)
	s.metrics.RecordReconciliationRequired(ctx, string(a.req.Disposition))
	return recErr
}

func (s *Service) recordOutcome(ctx context.Context, row *domain.Settlement) {
	amount, _ := row.Amount.Float64()
	s.metrics.RecordSettlement(ctx, string(row.Disposition), string(row.Status), amount)
}

func (s *Service) Preview(ctx context.Context, req domain.PreviewRequest) (domain.Preview, error) {
	gift, err := s.giftRepo.FindByID(ctx, s.db, req.GiftID)
	if err != nil {
		return domain.Preview{}, err
	}
	if gift == nil {
		return domain.Preview{}, domain.ErrGiftNotFound
	}
	if req.Amount != nil {
		if err := money.Validate(*req.Amount, decimal.Zero); err != nil {
			return domain.Preview{}, domain.NewValidationError("amount", domain.ErrInvalidAmount)
		}
	}
	if req.TotalFees != nil && req.TotalFees.IsNegative() {
		return domain.Preview{}, domain.NewValidationError("total_fees", domain.ErrInvalidAmount)
	}

	remaining, err := s.remaining(ctx, gift)
	if err != nil {
		return domain.Preview{}, err
	}
	contributions, err := s.giftRepo.ListContributions(ctx, s.db, gift.ID)
	if err != nil {
		return domain.Preview{}, err
	}

	return domain.Preview{
		GiftID:     gift.ID,
		Surplus:    gift.Surplus(),
		Remaining:  remaining,
		Allocation: allocate(contributions, req.Amount, req.TotalFees, remaining),
	}, nil
}

func (s *Service) List(ctx context.Context, giftID snowflake.ID) ([]domain.Settlement, error) {
	gift, err := s.giftRepo.FindByID(ctx, s.db, giftID)
	if err != nil {
		return nil, err
	}
	if gift == nil {
		return nil, domain.ErrGiftNotFound
	}
	return s.repo.ListByGift(ctx, s.db, giftID)
}

// allocate splits fees-adjusted contributions when fees are given, otherwise
// the requested amount (default: remaining surplus).
func allocate(contributions []giftdomain.Contribution, amount, fees *decimal.Decimal, remaining decimal.Decimal) allocation.Allocation {
	inputs := make([]allocation.Contribution, 0, len(contributions))
	for _, c := range contributions {
		inputs = append(inputs, allocation.Contribution{ID: c.ID, Amount: c.Amount})
	}
	if fees != nil {
		return allocation.Allocate(inputs, *fees)
	}
	pool := remaining
	if amount != nil {
		pool = *amount
	}
	return allocation.Distribute(inputs, pool)
}
