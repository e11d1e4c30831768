package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Disposition string

const (
	DispositionBonus   Disposition = "bonus"
	DispositionCharity Disposition = "charity"
	DispositionTip     Disposition = "tip"
	DispositionRefund  Disposition = "refund"
	DispositionCredit  Disposition = "credit"
)

func ParseDisposition(raw string) (Disposition, error) {
	d := Disposition(raw)
	switch d {
	case DispositionBonus, DispositionCharity, DispositionTip, DispositionRefund, DispositionCredit:
		return d, nil
	}
	return "", ErrInvalidDisposition
}

// Slot returns the exclusivity slot for single-row dispositions.
func (d Disposition) Slot() (Slot, bool) {
	switch d {
	case DispositionBonus:
		return SlotBonus, true
	case DispositionCharity, DispositionTip:
		return SlotDonation, true
	}
	return "", false
}

// Batched dispositions write one row per contribution.
func (d Disposition) Batched() bool {
	return d == DispositionRefund || d == DispositionCredit
}

type Status string

const (
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusPendingPool Status = "pending_pool"
)

func (s Status) Active() bool {
	return s == StatusCompleted || s == StatusPendingPool
}

type Slot string

const (
	SlotBonus    Slot = "bonus"
	SlotDonation Slot = "donation"
)

// Settlement is an append-only ledger row. Slot is set only on active
// bonus/charity/tip rows; the unique (gift_id, slot) index keeps at most one
// of each per gift.
type Settlement struct {
	ID              snowflake.ID    `gorm:"primaryKey" json:"id"`
	GiftID          snowflake.ID    `gorm:"not null;index;uniqueIndex:ux_settlements_gift_slot,priority:1" json:"gift_id"`
	Disposition     Disposition     `gorm:"type:text;not null" json:"disposition"`
	Origin          Disposition     `gorm:"type:text;not null" json:"origin"`
	Status          Status          `gorm:"type:text;not null" json:"status"`
	Slot            *Slot           `gorm:"type:text;uniqueIndex:ux_settlements_gift_slot,priority:2" json:"-"`
	Amount          decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	NetAmount       decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"net_amount"`
	FeeAmount       decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"fee_amount"`
	CoverFees       bool            `gorm:"not null;default:false" json:"cover_fees"`
	CharityID       string          `gorm:"type:text;not null;default:''" json:"charity_id,omitempty"`
	CharityName     string          `gorm:"type:text;not null;default:''" json:"charity_name,omitempty"`
	RecipientEmail  string          `gorm:"type:text;not null;default:''" json:"recipient_email,omitempty"`
	RecipientName   string          `gorm:"type:text;not null;default:''" json:"recipient_name,omitempty"`
	ClaimURL        string          `gorm:"type:text;not null;default:''" json:"claim_url,omitempty"`
	RedeemCode      string          `gorm:"type:text;not null;default:''" json:"-"`
	Provider        string          `gorm:"type:text;not null;default:''" json:"provider,omitempty"`
	ProviderOrderID string          `gorm:"type:text;not null;default:''" json:"provider_order_id,omitempty"`
	ProviderStatus  string          `gorm:"type:text;not null;default:''" json:"provider_status,omitempty"`
	ContributionID  *snowflake.ID   `gorm:"index" json:"contribution_id,omitempty"`
	UserID          string          `gorm:"type:text;not null;default:''" json:"user_id,omitempty"`
	FailureReason   string          `gorm:"type:text;not null;default:''" json:"failure_reason,omitempty"`
	Dedication      string          `gorm:"type:text;not null;default:''" json:"dedication,omitempty"`
	TotalCollected  decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_collected"`
	FinalGiftPrice  decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"final_gift_price"`
	Metadata        datatypes.JSON  `gorm:"type:text" json:"metadata,omitempty"`
	CreatedAt       time.Time       `gorm:"not null" json:"created_at"`
}

func (Settlement) TableName() string { return "settlements" }

// Fallback reports whether the row was written in place of the requested
// disposition.
func (s Settlement) Fallback() bool {
	return s.Origin != "" && s.Origin != s.Disposition
}
