// Package reloadly issues digital gift cards through the Reloadly API.
package reloadly

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/giftpool/internal/clock"
	"github.com/smallbiznis/giftpool/internal/observability/tracing"
	"github.com/smallbiznis/giftpool/internal/providers/gateway"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	providerName   = "reloadly"
	acceptHeader   = "application/com.reloadly.giftcards-v1+json"
	pageSize       = 200
	maxCatalogPage = 50
	defaultTimeout = 15 * time.Second
	defaultBuffer  = 60 * time.Second
	defaultExpiry  = time.Hour
)

type Config struct {
	ClientID           string
	ClientSecret       string
	Audience           string
	AuthURL            string
	BaseURL            string
	Timeout            time.Duration
	TokenRefreshBuffer time.Duration
}

type cachedToken struct {
	value  string
	expiry time.Time
}

type Client struct {
	cfg   Config
	http  *http.Client
	oauth clientcredentials.Config
	token atomic.Pointer[cachedToken]
	clock clock.Clock
	log   *zap.Logger
}

var _ gateway.GiftCardProvider = (*Client)(nil)

func New(cfg Config, log *zap.Logger, clk clock.Clock) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.TokenRefreshBuffer <= 0 {
		cfg.TokenRefreshBuffer = defaultBuffer
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if clk == nil {
		clk = clock.SystemClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}

	params := url.Values{}
	if audience := strings.TrimSpace(cfg.Audience); audience != "" {
		params.Set("audience", audience)
	}

	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		oauth: clientcredentials.Config{
			ClientID:       strings.TrimSpace(cfg.ClientID),
			ClientSecret:   strings.TrimSpace(cfg.ClientSecret),
			TokenURL:       strings.TrimSpace(cfg.AuthURL),
			EndpointParams: params,
			AuthStyle:      oauth2.AuthStyleInParams,
		},
		clock: clk,
		log:   log.Named("reloadly"),
	}
}

// AccessToken returns the cached bearer token, refreshing it once it is
// within the refresh buffer of expiry. Concurrent refreshes are harmless;
// the last writer wins.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	now := c.clock.Now()
	if cached := c.token.Load(); cached != nil && now.Add(c.cfg.TokenRefreshBuffer).Before(cached.expiry) {
		return cached.value, nil
	}
	if c.oauth.ClientID == "" || c.oauth.ClientSecret == "" || c.oauth.TokenURL == "" {
		return "", gateway.NewError(providerName, gateway.KindAuthFailure, "credentials not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	ctx, end := tracing.StartProviderSpan(ctx, providerName, "token")

	tok, err := c.oauth.Token(context.WithValue(ctx, oauth2.HTTPClient, c.http))
	if err != nil {
		gwErr := translateTokenError(err)
		end(gwErr)
		return "", gwErr
	}
	end(nil)

	expiry := tok.Expiry
	if expiry.IsZero() {
		expiry = now.Add(defaultExpiry)
	}
	c.token.Store(&cachedToken{value: tok.AccessToken, expiry: expiry})
	return tok.AccessToken, nil
}

func translateTokenError(err error) *gateway.Error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		status := retrieveErr.Response.StatusCode
		kind := gateway.Classify(status, retrieveErr.ErrorCode)
		if kind == gateway.KindInvalidRequest {
			kind = gateway.KindAuthFailure
		}
		return &gateway.Error{
			Provider:   providerName,
			Kind:       kind,
			StatusCode: status,
			Code:       retrieveErr.ErrorCode,
			Message:    "token request rejected",
			Err:        err,
		}
	}
	return gateway.FromTransport(providerName, err)
}

type apiError struct {
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
	Details   []any  `json:"details"`
}

// do performs an authenticated call and returns the raw response body.
func (c *Client) do(ctx context.Context, operation, method, path string, query url.Values, body any) ([]byte, error) {
	if c.cfg.BaseURL == "" {
		return nil, gateway.NewError(providerName, gateway.KindInvalidRequest, "base url not configured")
	}
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	ctx, end := tracing.StartProviderSpan(ctx, providerName, operation)

	raw, err := c.roundTrip(ctx, token, method, path, query, body)
	end(err)
	return raw, err
}

func (c *Client) roundTrip(ctx context.Context, token, method, path string, query url.Values, body any) ([]byte, error) {
	endpoint := c.cfg.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", acceptHeader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, gateway.FromTransport(providerName, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, gateway.FromTransport(providerName, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr apiError
		_ = json.Unmarshal(raw, &apiErr)
		if resp.StatusCode == http.StatusUnauthorized {
			c.token.Store(nil)
		}
		message := strings.TrimSpace(apiErr.Message)
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return nil, &gateway.Error{
			Provider:   providerName,
			Kind:       gateway.Classify(resp.StatusCode, apiErr.ErrorCode),
			StatusCode: resp.StatusCode,
			Code:       apiErr.ErrorCode,
			Message:    message,
		}
	}
	return raw, nil
}

func decodeInto(raw []byte, out any) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return &gateway.Error{Provider: providerName, Kind: gateway.KindUnknown, Message: "undecodable response", Err: err}
	}
	return nil
}

type balanceResponse struct {
	Balance      decimal.Decimal `json:"balance"`
	CurrencyCode string          `json:"currencyCode"`
}

func (c *Client) Balance(ctx context.Context) (gateway.Balance, error) {
	raw, err := c.do(ctx, "balance", http.MethodGet, "/accounts/balance", nil, nil)
	if err != nil {
		return gateway.Balance{}, err
	}
	var resp balanceResponse
	if err := decodeInto(raw, &resp); err != nil {
		return gateway.Balance{}, err
	}
	return gateway.Balance{Amount: resp.Balance, CurrencyCode: resp.CurrencyCode}, nil
}

func (c *Client) CheckCapacity(ctx context.Context, amount decimal.Decimal) (bool, error) {
	balance, err := c.Balance(ctx)
	if err != nil {
		return false, err
	}
	ok := balance.Amount.GreaterThanOrEqual(amount)
	if !ok {
		c.log.Warn("provider balance below order amount",
			zap.String("balance", balance.Amount.StringFixed(2)),
			zap.String("amount", amount.StringFixed(2)),
		)
	}
	return ok, nil
}

func (c *Client) Catalog(ctx context.Context, countryCode string) ([]gateway.Product, error) {
	countryCode = strings.ToUpper(strings.TrimSpace(countryCode))
	var products []gateway.Product
	for page := 1; page <= maxCatalogPage; page++ {
		query := url.Values{}
		query.Set("page", fmt.Sprint(page))
		query.Set("size", fmt.Sprint(pageSize))
		if countryCode != "" {
			query.Set("countryCode", countryCode)
		}

		raw, err := c.do(ctx, "catalog", http.MethodGet, "/products", query, nil)
		if err != nil {
			return nil, err
		}
		decoded, err := decodeProductPage(raw)
		if err != nil {
			return nil, err
		}
		for _, p := range decoded.products {
			products = append(products, p.toProduct())
		}
		if decoded.done(page) {
			break
		}
	}
	return products, nil
}
