package domain

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidDisposition    = errors.New("invalid_disposition")
	ErrInvalidAmount         = errors.New("invalid_amount")
	ErrMissingRecipientEmail = errors.New("missing_recipient_email")
	ErrMissingCharity        = errors.New("missing_charity")
	ErrNoSurplus             = errors.New("no_surplus")
	ErrExceedsSurplus        = errors.New("amount_exceeds_surplus")
	ErrNothingToDistribute   = errors.New("nothing_to_distribute")
	ErrGiftNotFound          = errors.New("gift_not_found")
	ErrSlotTaken             = errors.New("settlement_slot_taken")
	ErrSettlementInProgress  = errors.New("settlement_in_progress")
	ErrRateLimited           = errors.New("settlement_rate_limited")
	ErrProviderAuth          = errors.New("provider_auth_failure")
	ErrProviderTransient     = errors.New("provider_unavailable")
	ErrProviderRejected      = errors.New("provider_rejected")
	ErrPartialBatch          = errors.New("partial_batch_failure")
	ErrPersistence           = errors.New("persistence_failure")
	ErrCreditFallbackFailed  = errors.New("credit_fallback_failed")
)

// ValidationError rejects a request before any provider call.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func NewValidationError(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Err: err}
}

// ProviderError is a normalized provider failure surfaced to the caller.
type ProviderError struct {
	Disposition Disposition
	Provider    string
	Kind        string
	Message     string
	Err         error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s via %s: %s: %s", e.Disposition, e.Provider, e.Kind, e.Message)
}

func (e *ProviderError) Unwrap() []error {
	class := ErrProviderRejected
	switch e.Kind {
	case "auth_failure":
		class = ErrProviderAuth
	case "provider_unavailable":
		class = ErrProviderTransient
	}
	return []error{class, e.Err}
}

// Retryable is true for transient failures the caller may resubmit.
func (e *ProviderError) Retryable() bool {
	return e.Kind == "provider_unavailable"
}

// ReconciliationError means money moved at a provider but local bookkeeping
// failed. It must be reconciled by an operator, never retried automatically.
type ReconciliationError struct {
	GiftID          snowflake.ID
	Disposition     Disposition
	Provider        string
	ProviderOrderID string
	Amount          decimal.Decimal
	Err             error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("reconciliation required: gift %s %s order %s (%s) amount %s: %v",
		e.GiftID, e.Disposition, e.ProviderOrderID, e.Provider, e.Amount.StringFixed(2), e.Err)
}

func (e *ReconciliationError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}

// FallbackError means a gift card could not be delivered and no contributor
// could take store credit instead. Nothing was settled; the caller may
// choose a refund or donation.
type FallbackError struct {
	Reason string
	Failed int
}

func (e *FallbackError) Error() string {
	return fmt.Sprintf("credit fallback after %s issued nothing (%d failed)", e.Reason, e.Failed)
}

func (e *FallbackError) Unwrap() error { return ErrCreditFallbackFailed }
