package reloadly

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/giftpool/internal/clock"
	"github.com/smallbiznis/giftpool/internal/providers/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeAPI struct {
	tokenCalls int32
	tokenCode  int
	mux        *http.ServeMux
	server     *httptest.Server
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	api := &fakeAPI{tokenCode: http.StatusOK, mux: http.NewServeMux()}
	api.mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&api.tokenCalls, 1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "https://giftcards-sandbox.reloadly.com", r.PostForm.Get("audience"))
		w.Header().Set("Content-Type", "application/json")
		if api.tokenCode != http.StatusOK {
			w.WriteHeader(api.tokenCode)
			_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"tok-1","token_type":"Bearer","expires_in":3600}`))
	})
	api.server = httptest.NewServer(api.mux)
	t.Cleanup(api.server.Close)
	return api
}

func (a *fakeAPI) client(clk clock.Clock) *Client {
	return New(Config{
		ClientID:     "id",
		ClientSecret: "secret",
		Audience:     "https://giftcards-sandbox.reloadly.com",
		AuthURL:      a.server.URL + "/oauth/token",
		BaseURL:      a.server.URL,
		Timeout:      2 * time.Second,
	}, zap.NewNop(), clk)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestAccessTokenIsCachedUntilBuffer(t *testing.T) {
	api := newFakeAPI(t)
	clk := clock.NewFakeClock(time.Now())
	c := api.client(clk)

	tok, err := c.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)

	_, err = c.AccessToken(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&api.tokenCalls))

	clk.Advance(time.Hour)
	_, err = c.AccessToken(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&api.tokenCalls))
}

func TestAccessTokenRejectedIsAuthFailure(t *testing.T) {
	api := newFakeAPI(t)
	api.tokenCode = http.StatusUnauthorized
	_, err := api.client(nil).AccessToken(context.Background())
	require.Error(t, err)
	assert.Equal(t, gateway.KindAuthFailure, gateway.KindOf(err))
}

func TestCatalogMergesEnvelopePages(t *testing.T) {
	api := newFakeAPI(t)
	api.mux.HandleFunc("/products", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.Equal(t, "US", r.URL.Query().Get("countryCode"))
		switch r.URL.Query().Get("page") {
		case "1":
			writeJSON(w, http.StatusOK, map[string]any{
				"content":    []map[string]any{{"productId": 1, "productName": "Amazon US", "denominationType": "RANGE", "minRecipientDenomination": 1, "maxRecipientDenomination": 500}},
				"totalPages": 2,
			})
		case "2":
			writeJSON(w, http.StatusOK, map[string]any{
				"content":    []map[string]any{{"productId": 2, "productName": "Target", "denominationType": "FIXED", "fixedRecipientDenominations": []float64{10, 25}}},
				"totalPages": 2,
			})
		default:
			t.Errorf("unexpected page %s", r.URL.Query().Get("page"))
		}
	})

	products, err := api.client(nil).Catalog(context.Background(), "us")
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, int64(1), products[0].ID)
	assert.Equal(t, gateway.DenominationRange, products[0].DenominationType)
	assert.True(t, products[0].Accepts(decimal.NewFromInt(25)))
	assert.Equal(t, gateway.DenominationFixed, products[1].DenominationType)
}

func TestCatalogBareArrayStops(t *testing.T) {
	api := newFakeAPI(t)
	var calls int32
	api.mux.HandleFunc("/products", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, http.StatusOK, []map[string]any{{"productId": 5, "productName": "Amazon"}})
	})

	products, err := api.client(nil).Catalog(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, products, 1)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestDecodeProductPage(t *testing.T) {
	page, err := decodeProductPage([]byte(`{"content":[],"totalPages":0}`))
	require.NoError(t, err)
	assert.Equal(t, pageKindEnvelope, page.kind)
	assert.True(t, page.done(1))

	_, err = decodeProductPage([]byte(`"nope"`))
	assert.Equal(t, gateway.KindUnknown, gateway.KindOf(err))
}

func TestCheckCapacity(t *testing.T) {
	api := newFakeAPI(t)
	api.mux.HandleFunc("/accounts/balance", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"balance": 20.5, "currencyCode": "USD"})
	})
	c := api.client(nil)

	ok, err := c.CheckCapacity(context.Background(), decimal.NewFromInt(20))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.CheckCapacity(context.Background(), decimal.NewFromInt(25))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPlaceOrderCompleted(t *testing.T) {
	api := newFakeAPI(t)
	api.mux.HandleFunc("/orders", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gift-1-bonus", body["customIdentifier"])
		assert.Equal(t, 25.0, body["unitPrice"])
		writeJSON(w, http.StatusOK, map[string]any{"transactionId": 991, "amount": 25, "status": "SUCCESSFUL"})
	})
	api.mux.HandleFunc("/orders/transactions/991/cards", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{{"cardNumber": "ABCD", "pinCode": "1234", "redemptionUrl": "https://claim.example/991"}})
	})

	res, err := api.client(nil).PlaceOrder(context.Background(), gateway.OrderRequest{
		ProductID:      1,
		Amount:         decimal.NewFromInt(25),
		RecipientEmail: "sam@example.com",
		IdempotencyKey: "gift-1-bonus",
	})
	require.NoError(t, err)
	assert.Equal(t, "991", res.OrderID)
	assert.Equal(t, gateway.OrderStatusCompleted, res.Status)
	assert.Equal(t, "https://claim.example/991", res.ClaimURL)
	assert.Equal(t, "ABCD 1234", res.RedeemCode)
}

func TestPlaceOrderPendingSkipsCards(t *testing.T) {
	api := newFakeAPI(t)
	api.mux.HandleFunc("/orders", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"transactionId": 7, "amount": 10, "status": "PROCESSING"})
	})

	res, err := api.client(nil).PlaceOrder(context.Background(), gateway.OrderRequest{ProductID: 1, Amount: decimal.NewFromInt(10), RecipientEmail: "a@b.c"})
	require.NoError(t, err)
	assert.Equal(t, gateway.OrderStatusPending, res.Status)
	assert.Empty(t, res.ClaimURL)
}

func TestPlaceOrderErrorTranslation(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   map[string]any
		want   gateway.Kind
	}{
		{"insufficient", http.StatusBadRequest, map[string]any{"errorCode": "INSUFFICIENT_BALANCE", "message": "low"}, gateway.KindInsufficientBalance},
		{"invalid", http.StatusBadRequest, map[string]any{"errorCode": "INVALID_AMOUNT"}, gateway.KindInvalidRequest},
		{"unavailable", http.StatusServiceUnavailable, map[string]any{}, gateway.KindUnavailable},
		{"throttled", http.StatusTooManyRequests, map[string]any{}, gateway.KindUnavailable},
		{"forbidden", http.StatusForbidden, map[string]any{}, gateway.KindAuthFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI(t)
			api.mux.HandleFunc("/orders", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})
			_, err := api.client(nil).PlaceOrder(context.Background(), gateway.OrderRequest{ProductID: 1, Amount: decimal.NewFromInt(10), RecipientEmail: "a@b.c"})
			require.Error(t, err)
			assert.Equal(t, tt.want, gateway.KindOf(err))
		})
	}
}

func TestPlaceOrderFailedStatusKeepsOrderID(t *testing.T) {
	api := newFakeAPI(t)
	api.mux.HandleFunc("/orders", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"transactionId": 55, "status": "FAILED"})
	})
	res, err := api.client(nil).PlaceOrder(context.Background(), gateway.OrderRequest{ProductID: 1, Amount: decimal.NewFromInt(10), RecipientEmail: "a@b.c"})
	require.Error(t, err)
	assert.Equal(t, "55", res.OrderID)
	assert.Equal(t, gateway.OrderStatusFailed, res.Status)
}

func TestTimeoutIsUnavailable(t *testing.T) {
	api := newFakeAPI(t)
	api.mux.HandleFunc("/accounts/balance", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		writeJSON(w, http.StatusOK, map[string]any{"balance": 1})
	})
	c := api.client(nil)
	c.cfg.Timeout = 50 * time.Millisecond
	c.http.Timeout = 50 * time.Millisecond

	_, err := c.Balance(context.Background())
	require.Error(t, err)
	assert.Equal(t, gateway.KindUnavailable, gateway.KindOf(err))
}
