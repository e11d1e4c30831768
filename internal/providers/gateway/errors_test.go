package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		status int
		code   string
		want   Kind
	}{
		{http.StatusUnauthorized, "", KindAuthFailure},
		{http.StatusForbidden, "", KindAuthFailure},
		{http.StatusBadRequest, "INSUFFICIENT_BALANCE", KindInsufficientBalance},
		{http.StatusBadRequest, "PRODUCT_NOT_FOUND", KindInvalidRequest},
		{http.StatusNotFound, "", KindInvalidRequest},
		{http.StatusTooManyRequests, "", KindUnavailable},
		{http.StatusBadGateway, "", KindUnavailable},
		{http.StatusOK, "", KindUnknown},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_%s", tt.status, tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.status, tt.code))
		})
	}
}

func TestFromTransport(t *testing.T) {
	assert.Nil(t, FromTransport("reloadly", nil))

	err := FromTransport("reloadly", fmt.Errorf("do: %w", context.DeadlineExceeded))
	assert.Equal(t, KindUnavailable, err.Kind)
	assert.True(t, err.Retryable())
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	opErr := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	assert.Equal(t, KindUnavailable, FromTransport("stripe", opErr).Kind)

	assert.Equal(t, KindUnknown, FromTransport("stripe", errors.New("boom")).Kind)

	original := NewError("stripe", KindAuthFailure, "bad key")
	assert.Same(t, original, FromTransport("stripe", fmt.Errorf("wrapped: %w", original)))
}

func TestKindOf(t *testing.T) {
	err := fmt.Errorf("place order: %w", NewError("reloadly", KindInsufficientBalance, "low"))
	assert.Equal(t, KindInsufficientBalance, KindOf(err))
	assert.True(t, IsKind(err, KindInsufficientBalance))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.False(t, IsKind(nil, KindUnknown))
}

func TestProductAccepts(t *testing.T) {
	min := decimal.NewFromInt(5)
	max := decimal.NewFromInt(500)
	ranged := Product{DenominationType: DenominationRange, MinAmount: &min, MaxAmount: &max}
	assert.True(t, ranged.Accepts(decimal.NewFromInt(25)))
	assert.False(t, ranged.Accepts(decimal.NewFromInt(1)))
	assert.False(t, ranged.Accepts(decimal.NewFromInt(501)))

	fixed := Product{DenominationType: DenominationFixed, FixedAmounts: []decimal.Decimal{decimal.NewFromInt(10), decimal.NewFromInt(25)}}
	assert.True(t, fixed.Accepts(decimal.RequireFromString("25.00")))
	assert.False(t, fixed.Accepts(decimal.NewFromInt(20)))
}

func TestFallbackEligibleKinds(t *testing.T) {
	assert.True(t, KindInsufficientBalance.FallbackEligible())
	assert.True(t, KindUnavailable.FallbackEligible())
	assert.False(t, KindAuthFailure.FallbackEligible())
	assert.False(t, KindInvalidRequest.FallbackEligible())
	assert.False(t, KindUnknown.FallbackEligible())
}
