package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/giftpool/internal/credit/domain"
	"github.com/smallbiznis/giftpool/pkg/db"
	"github.com/smallbiznis/giftpool/pkg/money"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindAccountByUserID(ctx context.Context, conn *gorm.DB, userID string) (*domain.Account, error) {
	var account domain.Account
	err := conn.WithContext(ctx).Raw(
		`SELECT id, user_id, balance, created_at, updated_at
		 FROM credit_accounts WHERE user_id = ?`,
		strings.TrimSpace(userID),
	).Scan(&account).Error
	if err != nil {
		return nil, err
	}
	if account.ID == 0 {
		return nil, nil
	}
	account.Balance = money.RoundCents(account.Balance)
	return &account, nil
}

func (r *repo) GetOrCreateAccount(ctx context.Context, conn *gorm.DB, id snowflake.ID, userID string) (*domain.Account, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.ErrInvalidUser
	}

	existing, err := r.FindAccountByUserID(ctx, conn, userID)
	if err != nil || existing != nil {
		return existing, err
	}

	now := time.Now().UTC()
	err = conn.WithContext(ctx).Exec(
		`INSERT INTO credit_accounts (id, user_id, balance, created_at, updated_at)
		 VALUES (?, ?, 0, ?, ?)
		 ON CONFLICT (user_id) DO NOTHING`,
		id,
		userID,
		now,
		now,
	).Error
	if err != nil && !db.IsDuplicateKeyErr(err) {
		return nil, err
	}

	// Either we inserted or a concurrent writer won; both leave exactly one row.
	account, err := r.FindAccountByUserID(ctx, conn, userID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, domain.ErrAccountNotFound
	}
	return account, nil
}

func (r *repo) AppendTransaction(ctx context.Context, conn *gorm.DB, tx *domain.Transaction) (bool, error) {
	amount := money.RoundCents(tx.Amount)
	result := conn.WithContext(ctx).Exec(
		`INSERT INTO credit_transactions (
			id, account_id, type, amount, gift_id, source_type, source_id, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (account_id, source_type, source_id) DO NOTHING`,
		tx.ID,
		tx.AccountID,
		tx.Type,
		amount,
		tx.GiftID,
		tx.SourceType,
		tx.SourceID,
		tx.Metadata,
		tx.CreatedAt,
	)
	if result.Error != nil {
		if db.IsDuplicateKeyErr(result.Error) {
			return false, nil
		}
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	delta := amount
	if tx.Type == domain.TransactionTypeSpend {
		delta = amount.Neg()
	}
	if err := conn.WithContext(ctx).Exec(
		`UPDATE credit_accounts SET balance = balance + ?, updated_at = ? WHERE id = ?`,
		delta,
		tx.CreatedAt,
		tx.AccountID,
	).Error; err != nil {
		return false, err
	}
	return true, nil
}

func (r *repo) ListTransactions(ctx context.Context, conn *gorm.DB, accountID snowflake.ID) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	err := conn.WithContext(ctx).Raw(
		`SELECT id, account_id, type, amount, gift_id, source_type, source_id, metadata, created_at
		 FROM credit_transactions WHERE account_id = ?
		 ORDER BY created_at ASC, id ASC`,
		accountID,
	).Scan(&txs).Error
	if err != nil {
		return nil, err
	}
	return txs, nil
}
