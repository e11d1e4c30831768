// Package gateway defines the contracts the settlement engine uses to move
// money out of a pool: gift-card issuance, refunds to the original payment
// source, and charity donations.
package gateway

//go:generate mockgen -destination=mocks/mock_gateway.go -package=mocks . GiftCardProvider,RefundProcessor,DonationProcessor

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"
)

type GiftCardProvider interface {
	AccessToken(ctx context.Context) (string, error)
	Catalog(ctx context.Context, countryCode string) ([]Product, error)
	Balance(ctx context.Context) (Balance, error)
	// CheckCapacity reports whether the provider account can fund amount.
	CheckCapacity(ctx context.Context, amount decimal.Decimal) (bool, error)
	// PlaceOrder may return a non-empty OrderID together with an error when
	// the provider accepted the order but it did not complete.
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
}

type RefundProcessor interface {
	Provider() string
	RefundToSource(ctx context.Context, paymentReference string, amount decimal.Decimal, idempotencyKey string) (RefundResult, error)
}

type DonationProcessor interface {
	// ChargeRequired is false when pooled funds are already custodied and a
	// donation is pure bookkeeping.
	ChargeRequired() bool
	Donate(ctx context.Context, req DonationRequest) (DonationResult, error)
}

type DenominationType string

const (
	DenominationFixed DenominationType = "FIXED"
	DenominationRange DenominationType = "RANGE"
)

type Product struct {
	ID               int64             `json:"id"`
	Name             string            `json:"name"`
	Brand            string            `json:"brand,omitempty"`
	CountryCode      string            `json:"country_code,omitempty"`
	CurrencyCode     string            `json:"currency_code,omitempty"`
	DenominationType DenominationType  `json:"denomination_type,omitempty"`
	MinAmount        *decimal.Decimal  `json:"min_amount,omitempty"`
	MaxAmount        *decimal.Decimal  `json:"max_amount,omitempty"`
	FixedAmounts     []decimal.Decimal `json:"fixed_amounts,omitempty"`
	LogoURL          string            `json:"logo_url,omitempty"`
}

// Accepts reports whether amount is purchasable for this product.
func (p Product) Accepts(amount decimal.Decimal) bool {
	switch p.DenominationType {
	case DenominationFixed:
		for _, v := range p.FixedAmounts {
			if v.Equal(amount) {
				return true
			}
		}
		return false
	default:
		if p.MinAmount != nil && amount.LessThan(*p.MinAmount) {
			return false
		}
		if p.MaxAmount != nil && amount.GreaterThan(*p.MaxAmount) {
			return false
		}
		return true
	}
}

type Balance struct {
	Amount       decimal.Decimal `json:"amount"`
	CurrencyCode string          `json:"currency_code"`
}

type OrderRequest struct {
	ProductID      int64
	CountryCode    string
	Amount         decimal.Decimal
	RecipientEmail string
	RecipientName  string
	SenderName     string
	// IdempotencyKey is forwarded as the provider's custom identifier.
	IdempotencyKey string
}

type OrderStatus string

const (
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusFailed    OrderStatus = "failed"
)

type OrderResult struct {
	OrderID        string
	Status         OrderStatus
	ProviderStatus string
	Amount         decimal.Decimal
	ClaimURL       string
	RedeemCode     string
	Raw            json.RawMessage
}

type RefundResult struct {
	RefundID string
	Status   string
	Amount   decimal.Decimal
}

type DonationRequest struct {
	GiftID         string
	CharityID      string
	CharityName    string
	Amount         decimal.Decimal
	NetAmount      decimal.Decimal
	FeeAmount      decimal.Decimal
	CoverFees      bool
	Dedication     string
	IdempotencyKey string
}

type DonationResult struct {
	DonationID string
	Status     string
}
