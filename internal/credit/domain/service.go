package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrInvalidUser        = errors.New("invalid_credit_user")
	ErrInvalidAmount      = errors.New("invalid_credit_amount")
	ErrInvalidType        = errors.New("invalid_credit_type")
	ErrInvalidSource      = errors.New("invalid_credit_source")
	ErrInsufficientCredit = errors.New("insufficient_credit")
	ErrAccountNotFound    = errors.New("credit_account_not_found")
)

type Repository interface {
	FindAccountByUserID(ctx context.Context, db *gorm.DB, userID string) (*Account, error)
	// GetOrCreateAccount returns the single account for userID. Concurrent
	// first-time callers converge on one row through the unique user_id index.
	GetOrCreateAccount(ctx context.Context, db *gorm.DB, id snowflake.ID, userID string) (*Account, error)
	// AppendTransaction inserts tx and applies it to the account balance. It
	// reports false when the same source was already recorded.
	AppendTransaction(ctx context.Context, db *gorm.DB, tx *Transaction) (bool, error)
	ListTransactions(ctx context.Context, db *gorm.DB, accountID snowflake.ID) ([]Transaction, error)
}

type IssueRequest struct {
	UserID     string
	Amount     decimal.Decimal
	Type       TransactionType
	GiftID     *snowflake.ID
	SourceType string
	SourceID   string
	Metadata   map[string]any
}

type IssueResult struct {
	Account     Account
	Transaction Transaction
	Duplicate   bool
}

type Service interface {
	// Issue credits a wallet. db may be a transaction owned by the caller.
	Issue(ctx context.Context, db *gorm.DB, req IssueRequest) (IssueResult, error)
	Spend(ctx context.Context, userID string, amount decimal.Decimal, sourceType, sourceID string) (IssueResult, error)
	Balance(ctx context.Context, userID string) (decimal.Decimal, error)
}
