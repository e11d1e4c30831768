package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/giftpool/internal/clock"
	creditdomain "github.com/smallbiznis/giftpool/internal/credit/domain"
	"github.com/smallbiznis/giftpool/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  creditdomain.Repository
	Clock clock.Clock `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  creditdomain.Repository
	clock clock.Clock
}

func NewService(p Params) creditdomain.Service {
	c := p.Clock
	if c == nil {
		c = clock.SystemClock{}
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("credit.service"),
		genID: p.GenID,
		repo:  p.Repo,
		clock: c,
	}
}

func (s *Service) Issue(ctx context.Context, db *gorm.DB, req creditdomain.IssueRequest) (creditdomain.IssueResult, error) {
	if db == nil {
		db = s.db
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		return creditdomain.IssueResult{}, creditdomain.ErrInvalidUser
	}
	switch req.Type {
	case creditdomain.TransactionTypeRefund, creditdomain.TransactionTypeBonus:
	default:
		return creditdomain.IssueResult{}, creditdomain.ErrInvalidType
	}
	return s.append(ctx, db, req)
}

func (s *Service) Spend(ctx context.Context, userID string, amount decimal.Decimal, sourceType, sourceID string) (creditdomain.IssueResult, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return creditdomain.IssueResult{}, creditdomain.ErrInvalidUser
	}

	var result creditdomain.IssueResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, err := s.repo.FindAccountByUserID(ctx, tx, userID)
		if err != nil {
			return err
		}
		if account == nil {
			return creditdomain.ErrAccountNotFound
		}
		if account.Balance.LessThan(money.RoundCents(amount)) {
			return creditdomain.ErrInsufficientCredit
		}
		result, err = s.append(ctx, tx, creditdomain.IssueRequest{
			UserID:     userID,
			Amount:     amount,
			Type:       creditdomain.TransactionTypeSpend,
			SourceType: sourceType,
			SourceID:   sourceID,
		})
		return err
	})
	return result, err
}

func (s *Service) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	account, err := s.repo.FindAccountByUserID(ctx, s.db, userID)
	if err != nil {
		return decimal.Zero, err
	}
	if account == nil {
		return decimal.Zero, nil
	}
	return account.Balance, nil
}

func (s *Service) append(ctx context.Context, db *gorm.DB, req creditdomain.IssueRequest) (creditdomain.IssueResult, error) {
	amount := money.RoundCents(req.Amount)
	if !amount.IsPositive() {
		return creditdomain.IssueResult{}, creditdomain.ErrInvalidAmount
	}
	req.SourceType = strings.TrimSpace(req.SourceType)
	req.SourceID = strings.TrimSpace(req.SourceID)
	if req.SourceType == "" || req.SourceID == "" {
		return creditdomain.IssueResult{}, creditdomain.ErrInvalidSource
	}

	var metadata datatypes.JSON
	if len(req.Metadata) > 0 {
		raw, err := json.Marshal(req.Metadata)
		if err != nil {
			return creditdomain.IssueResult{}, err
		}
		metadata = datatypes.JSON(raw)
	}

	account, err := s.repo.GetOrCreateAccount(ctx, db, s.genID.Generate(), req.UserID)
	if err != nil {
		return creditdomain.IssueResult{}, err
	}

	tx := creditdomain.Transaction{
		ID:         s.genID.Generate(),
		AccountID:  account.ID,
		Type:       req.Type,
		Amount:     amount,
		GiftID:     req.GiftID,
		SourceType: req.SourceType,
		SourceID:   req.SourceID,
		Metadata:   metadata,
		CreatedAt:  s.clock.Now().UTC(),
	}
	inserted, err := s.repo.AppendTransaction(ctx, db, &tx)
	if err != nil {
		return creditdomain.IssueResult{}, err
	}
	if !inserted {
		s.log.Info("credit transaction already recorded",
			zap.String("user_id", req.UserID),
			zap.String("source_type", req.SourceType),
			zap.String("source_id", req.SourceID),
		)
	}

	refreshed, err := s.repo.FindAccountByUserID(ctx, db, req.UserID)
	if err != nil {
		return creditdomain.IssueResult{}, err
	}
	if refreshed != nil {
		account = refreshed
	}
	return creditdomain.IssueResult{
		Account:     *account,
		Transaction: tx,
		Duplicate:   !inserted,
	}, nil
}
