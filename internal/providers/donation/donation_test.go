package donation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/giftpool/internal/config"
	"github.com/smallbiznis/giftpool/internal/providers/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewSelectsByMode(t *testing.T) {
	policy := config.NewStaticPolicyHolder(config.DefaultSettlementPolicy())

	ledger := New(config.Config{Donation: config.DonationConfig{Mode: config.DonationModeLedger}}, policy, zap.NewNop())
	assert.False(t, ledger.ChargeRequired())

	remote := New(config.Config{Donation: config.DonationConfig{Mode: "HTTP", BaseURL: "http://x", APIKey: "k"}}, policy, zap.NewNop())
	assert.True(t, remote.ChargeRequired())
}

func TestHTTPProcessorDonate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/donations", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "charity-7", body["charity_id"])
		assert.Equal(t, 20.0, body["net_amount"])
		_, _ = w.Write([]byte(`{"id":"don_1","status":"accepted"}`))
	}))
	defer server.Close()

	p := NewHTTPProcessor(server.URL, "key", time.Second)
	res, err := p.Donate(context.Background(), gateway.DonationRequest{
		CharityID: "charity-7",
		Amount:    decimal.RequireFromString("20.92"),
		NetAmount: decimal.NewFromInt(20),
		FeeAmount: decimal.RequireFromString("0.92"),
		CoverFees: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "don_1", res.DonationID)
}

func TestHTTPProcessorErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewHTTPProcessor(server.URL, "key", time.Second).Donate(context.Background(), gateway.DonationRequest{CharityID: "c"})
	assert.Equal(t, gateway.KindUnavailable, gateway.KindOf(err))

	_, err = NewHTTPProcessor("", "", time.Second).Donate(context.Background(), gateway.DonationRequest{CharityID: "c"})
	assert.Equal(t, gateway.KindAuthFailure, gateway.KindOf(err))

	_, err = NewHTTPProcessor(server.URL, "key", time.Second).Donate(context.Background(), gateway.DonationRequest{})
	assert.Equal(t, gateway.KindInvalidRequest, gateway.KindOf(err))
}

func TestLedgerProcessorNeverCallsOut(t *testing.T) {
	res, err := NewLedgerProcessor(zap.NewNop()).Donate(context.Background(), gateway.DonationRequest{IdempotencyKey: "gift-1-donation"})
	require.NoError(t, err)
	assert.Equal(t, "gift-1-donation", res.DonationID)
}
