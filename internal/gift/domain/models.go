package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/giftpool/pkg/money"
)

type Status string

const (
	StatusActive         Status = "active"
	StatusSettled        Status = "settled"
	StatusSettledCredits Status = "settled_credits"
)

// NotificationFlag names a one-shot boolean column on gifts.
type NotificationFlag string

const (
	FlagRecipientNotificationSent   NotificationFlag = "recipient_notification_sent"
	FlagContributorImpactEmailsSent NotificationFlag = "contributor_impact_emails_sent"
	FlagTipReceiptSent              NotificationFlag = "tip_receipt_sent"
)

func (f NotificationFlag) Valid() bool {
	switch f {
	case FlagRecipientNotificationSent, FlagContributorImpactEmailsSent, FlagTipReceiptSent:
		return true
	}
	return false
}

// Gift is a group-funded pool. CurrentAmount is owned by the contribution flow.
type Gift struct {
	ID                          snowflake.ID    `gorm:"primaryKey" json:"id"`
	Title                       string          `gorm:"type:text;not null;default:''" json:"title"`
	RecipientName               string          `gorm:"type:text;not null;default:''" json:"recipient_name"`
	OrganizerUserID             string          `gorm:"type:text;not null;default:''" json:"organizer_user_id"`
	OrganizerName               string          `gorm:"type:text;not null;default:''" json:"organizer_name"`
	OrganizerEmail              string          `gorm:"type:text;not null;default:''" json:"organizer_email"`
	TargetAmount                decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"target_amount"`
	CurrentAmount               decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"current_amount"`
	Status                      Status          `gorm:"type:text;not null;default:'active'" json:"status"`
	RecipientNotificationSent   bool            `gorm:"not null;default:false" json:"recipient_notification_sent"`
	ContributorImpactEmailsSent bool            `gorm:"not null;default:false" json:"contributor_impact_emails_sent"`
	TipReceiptSent              bool            `gorm:"not null;default:false" json:"tip_receipt_sent"`
	ImpactToken                 *string         `gorm:"type:text;uniqueIndex" json:"-"`
	CreatedAt                   time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt                   time.Time       `gorm:"not null" json:"updated_at"`
}

func (Gift) TableName() string { return "gifts" }

// Surplus is the only money settlement may consume.
func (g Gift) Surplus() decimal.Decimal {
	return money.Surplus(g.CurrentAmount, g.TargetAmount)
}

func (g Gift) Settled() bool {
	return g.Status == StatusSettled || g.Status == StatusSettledCredits
}

func (g Gift) FlagSet(flag NotificationFlag) bool {
	switch flag {
	case FlagRecipientNotificationSent:
		return g.RecipientNotificationSent
	case FlagContributorImpactEmailsSent:
		return g.ContributorImpactEmailsSent
	case FlagTipReceiptSent:
		return g.TipReceiptSent
	}
	return false
}

// Contribution is read-only input to settlement.
type Contribution struct {
	ID               snowflake.ID    `gorm:"primaryKey" json:"id"`
	GiftID           snowflake.ID    `gorm:"not null;index" json:"gift_id"`
	UserID           string          `gorm:"type:text;not null;default:''" json:"user_id,omitempty"`
	DisplayName      string          `gorm:"type:text;not null;default:''" json:"display_name"`
	Email            string          `gorm:"type:text;not null;default:''" json:"email,omitempty"`
	Amount           decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	PaymentProvider  string          `gorm:"type:text;not null;default:''" json:"payment_provider,omitempty"`
	PaymentReference string          `gorm:"type:text;not null;default:''" json:"-"`
	CreatedAt        time.Time       `gorm:"not null" json:"created_at"`
}

func (Contribution) TableName() string { return "contributions" }
