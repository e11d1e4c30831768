package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

type Kind string

const (
	KindAuthFailure         Kind = "auth_failure"
	KindInsufficientBalance Kind = "insufficient_provider_balance"
	KindInvalidRequest      Kind = "invalid_request"
	KindUnavailable         Kind = "provider_unavailable"
	KindUnknown             Kind = "unknown"
)

const CodeInsufficientBalance = "INSUFFICIENT_BALANCE"

// FallbackEligible reports whether a gift card failure of this kind may be
// converted into store credit.
func (k Kind) FallbackEligible() bool {
	return k == KindInsufficientBalance || k == KindUnavailable
}

// Error is the normalized failure returned by every provider adapter.
type Error struct {
	Provider   string
	Kind       Kind
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (%s): %s", e.Provider, e.Kind, e.Code, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Retryable() bool {
	return e != nil && e.Kind == KindUnavailable
}

func NewError(provider string, kind Kind, message string) *Error {
	return &Error{Provider: provider, Kind: kind, Message: message}
}

// Classify maps an HTTP status and provider error code onto a Kind.
func Classify(statusCode int, code string) Kind {
	if strings.EqualFold(strings.TrimSpace(code), CodeInsufficientBalance) {
		return KindInsufficientBalance
	}
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return KindAuthFailure
	case statusCode == http.StatusTooManyRequests || statusCode == http.StatusRequestTimeout:
		return KindUnavailable
	case statusCode >= 500:
		return KindUnavailable
	case statusCode >= 400:
		return KindInvalidRequest
	default:
		return KindUnknown
	}
}

// FromTransport wraps a failed round trip. Timeouts and network errors are
// treated as transient.
func FromTransport(provider string, err error) *Error {
	if err == nil {
		return nil
	}
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr
	}
	kind := KindUnknown
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindUnavailable
	case errors.As(err, &netErr):
		kind = KindUnavailable
	case errors.Is(err, context.Canceled):
		kind = KindUnavailable
	}
	return &Error{Provider: provider, Kind: kind, Err: err}
}

// KindOf returns KindUnknown for errors that did not come from a provider.
func KindOf(err error) Kind {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Kind
	}
	return KindUnknown
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
