package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/giftpool/internal/settlement/allocation"
	"gorm.io/gorm"
)

type Repository interface {
	// Insert maps a (gift_id, slot) conflict to ErrSlotTaken.
	Insert(ctx context.Context, db *gorm.DB, row *Settlement) error
	ListByGift(ctx context.Context, db *gorm.DB, giftID snowflake.ID) ([]Settlement, error)
	FindActiveInSlot(ctx context.Context, db *gorm.DB, giftID snowflake.ID, slot Slot) (*Settlement, error)
	ListActiveByOrigin(ctx context.Context, db *gorm.DB, giftID snowflake.ID, origin Disposition) ([]Settlement, error)
	// ListByOrigin includes failed rows, oldest first.
	ListByOrigin(ctx context.Context, db *gorm.DB, giftID snowflake.ID, origin Disposition) ([]Settlement, error)
	// SumActive totals the pool consumed by non-failed rows.
	SumActive(ctx context.Context, db *gorm.DB, giftID snowflake.ID) (decimal.Decimal, error)
}

type SettleRequest struct {
	GiftID         snowflake.ID
	Disposition    Disposition
	Amount         *decimal.Decimal
	RecipientEmail string
	RecipientName  string
	CharityID      string
	CharityName    string
	CoverFees      bool
	Dedication     string
	// TotalFees is deducted from the contributed total before a refund or
	// credit allocation. Nil means the whole requested amount is distributed.
	TotalFees *decimal.Decimal
}

type BatchCounts struct {
	Refunded int `json:"refunded"`
	Credited int `json:"credited"`
	Failed   int `json:"failed"`
}

type Result struct {
	Settlement        *Settlement  `json:"settlement,omitempty"`
	Settlements       []Settlement `json:"settlements,omitempty"`
	FallbackToCredits bool         `json:"fallback_to_credits"`
	Idempotent        bool         `json:"idempotent"`
	Counts            *BatchCounts `json:"counts,omitempty"`
	// Err is ErrPartialBatch when some rows of a batch failed.
	Err error `json:"-"`
}

type PreviewRequest struct {
	GiftID    snowflake.ID
	Amount    *decimal.Decimal
	TotalFees *decimal.Decimal
}

type Service interface {
	Settle(ctx context.Context, req SettleRequest) (Result, error)
	Preview(ctx context.Context, req PreviewRequest) (Preview, error)
	List(ctx context.Context, giftID snowflake.ID) ([]Settlement, error)
}

type Preview struct {
	GiftID     snowflake.ID          `json:"gift_id"`
	Surplus    decimal.Decimal       `json:"surplus"`
	Remaining  decimal.Decimal       `json:"remaining"`
	Allocation allocation.Allocation `json:"allocation"`
}

// CompletionTrigger is evaluated after every settlement write.
type CompletionTrigger interface {
	CheckAndTrigger(ctx context.Context, giftID snowflake.ID) error
}
