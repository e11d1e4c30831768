package stripe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/giftpool/internal/providers/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefundToSourceSendsMinorUnits(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/refunds", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		assert.Equal(t, "refund-1-2", r.Header.Get("Idempotency-Key"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "pi_123", r.PostForm.Get("payment_intent"))
		assert.Equal(t, "5628", r.PostForm.Get("amount"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"re_1","status":"succeeded","amount":5628}`))
	}))
	defer server.Close()

	p := New("sk_test", server.URL, time.Second)
	res, err := p.RefundToSource(context.Background(), "pi_123", decimal.RequireFromString("56.28"), "refund-1-2")
	require.NoError(t, err)
	assert.Equal(t, "re_1", res.RefundID)
	assert.Equal(t, "56.28", res.Amount.StringFixed(2))
}

func TestRefundToSourceErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   gateway.Kind
	}{
		{"missing", http.StatusBadRequest, `{"error":{"type":"invalid_request_error","code":"resource_missing","message":"No such payment_intent"}}`, gateway.KindInvalidRequest},
		{"already_refunded", http.StatusBadRequest, `{"error":{"type":"invalid_request_error","code":"charge_already_refunded"}}`, gateway.KindInvalidRequest},
		{"auth", http.StatusUnauthorized, `{"error":{"type":"authentication_error","message":"Invalid API Key"}}`, gateway.KindAuthFailure},
		{"rate_limited", http.StatusTooManyRequests, `{"error":{"type":"rate_limit_error"}}`, gateway.KindUnavailable},
		{"server", http.StatusInternalServerError, `not json`, gateway.KindUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := New("sk_test", server.URL, time.Second).RefundToSource(context.Background(), "pi_1", decimal.NewFromInt(1), "k")
			require.Error(t, err)
			assert.Equal(t, tt.want, gateway.KindOf(err))
		})
	}
}

func TestRefundToSourceWithoutReference(t *testing.T) {
	_, err := New("sk_test", "", time.Second).RefundToSource(context.Background(), " ", decimal.NewFromInt(1), "k")
	assert.Equal(t, gateway.KindInvalidRequest, gateway.KindOf(err))

	_, err = New("", "", time.Second).RefundToSource(context.Background(), "pi_1", decimal.NewFromInt(1), "k")
	assert.Equal(t, gateway.KindAuthFailure, gateway.KindOf(err))
}
