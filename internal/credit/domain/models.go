package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type TransactionType string

const (
	TransactionTypeRefund TransactionType = "REFUND"
	TransactionTypeSpend  TransactionType = "SPEND"
	TransactionTypeBonus  TransactionType = "BONUS"
)

// Account is a per-user store-credit wallet. Balance is maintained alongside
// every appended transaction.
type Account struct {
	ID        snowflake.ID    `gorm:"primaryKey" json:"id"`
	UserID    string          `gorm:"type:text;not null;uniqueIndex:ux_credit_accounts_user" json:"user_id"`
	Balance   decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"balance"`
	CreatedAt time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time       `gorm:"not null" json:"updated_at"`
}

func (Account) TableName() string { return "credit_accounts" }

// Transaction is an append-only wallet movement. (AccountID, SourceType,
// SourceID) identifies the business event so a retried write is ignored.
type Transaction struct {
	ID         snowflake.ID    `gorm:"primaryKey" json:"id"`
	AccountID  snowflake.ID    `gorm:"not null;uniqueIndex:ux_credit_tx_source,priority:1" json:"account_id"`
	Type       TransactionType `gorm:"type:text;not null" json:"type"`
	Amount     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	GiftID     *snowflake.ID   `gorm:"index" json:"gift_id,omitempty"`
	SourceType string          `gorm:"type:text;not null;uniqueIndex:ux_credit_tx_source,priority:2" json:"source_type"`
	SourceID   string          `gorm:"type:text;not null;uniqueIndex:ux_credit_tx_source,priority:3" json:"source_id"`
	Metadata   datatypes.JSON  `gorm:"type:text" json:"metadata,omitempty"`
	CreatedAt  time.Time       `gorm:"not null" json:"created_at"`
}

func (Transaction) TableName() string { return "credit_transactions" }
