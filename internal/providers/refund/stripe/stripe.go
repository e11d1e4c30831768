// Package stripe refunds card contributions through the Stripe Refunds API.
package stripe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/giftpool/internal/observability/tracing"
	"github.com/smallbiznis/giftpool/internal/providers/gateway"
	"github.com/smallbiznis/giftpool/pkg/money"
)

const (
	providerName   = "stripe"
	defaultBaseURL = "https://api.stripe.com"
)

type stripeRefund struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount int64  `json:"amount"`
}

type stripeErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type Processor struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

var _ gateway.RefundProcessor = (*Processor)(nil)

func New(apiKey, baseURL string, timeout time.Duration) *Processor {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	return &Processor{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *Processor) Provider() string {
	return providerName
}

// RefundToSource refunds amount against the payment intent that funded the
// contribution.
func (p *Processor) RefundToSource(ctx context.Context, paymentReference string, amount decimal.Decimal, idempotencyKey string) (gateway.RefundResult, error) {
	if p.apiKey == "" {
		return gateway.RefundResult{}, gateway.NewError(providerName, gateway.KindAuthFailure, "secret key not configured")
	}
	paymentReference = strings.TrimSpace(paymentReference)
	if paymentReference == "" {
		return gateway.RefundResult{}, &gateway.Error{Provider: providerName, Kind: gateway.KindInvalidRequest, Code: "resource_missing", Message: "payment reference is empty"}
	}

	values := url.Values{}
	if strings.HasPrefix(paymentReference, "ch_") {
		values.Set("charge", paymentReference)
	} else {
		values.Set("payment_intent", paymentReference)
	}
	values.Set("amount", strconv.FormatInt(money.ToMinorUnits(amount), 10))
	values.Set("reason", "requested_by_customer")

	ctx, end := tracing.StartProviderSpan(ctx, providerName, "refund")
	refund, err := p.doRequest(ctx, http.MethodPost, "/v1/refunds", values, idempotencyKey)
	end(err)
	if err != nil {
		return gateway.RefundResult{}, err
	}
	return gateway.RefundResult{
		RefundID: refund.ID,
		Status:   refund.Status,
		Amount:   money.FromMinorUnits(refund.Amount),
	}, nil
}

func (p *Processor) doRequest(
	ctx context.Context,
	method string,
	path string,
	values url.Values,
	idempotencyKey string,
) (stripeRefund, error) {
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, strings.NewReader(values.Encode()))
	if err != nil {
		return stripeRefund{}, err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return stripeRefund{}, gateway.FromTransport(providerName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var stripeErr stripeErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&stripeErr); err != nil {
			return stripeRefund{}, &gateway.Error{Provider: providerName, Kind: gateway.Classify(resp.StatusCode, ""), StatusCode: resp.StatusCode, Message: "stripe_request_failed"}
		}
		message := strings.TrimSpace(stripeErr.Error.Message)
		if message == "" {
			message = "stripe_request_failed"
		}
		return stripeRefund{}, &gateway.Error{
			Provider:   providerName,
			Kind:       classifyStripeError(resp.StatusCode, stripeErr.Error.Type, stripeErr.Error.Code),
			StatusCode: resp.StatusCode,
			Code:       firstNonEmpty(stripeErr.Error.Code, stripeErr.Error.Type),
			Message:    message,
		}
	}

	var refund stripeRefund
	if err := json.NewDecoder(resp.Body).Decode(&refund); err != nil {
		return stripeRefund{}, &gateway.Error{Provider: providerName, Kind: gateway.KindUnknown, Message: "stripe_response_invalid", Err: err}
	}
	if refund.ID == "" {
		return stripeRefund{}, gateway.NewError(providerName, gateway.KindUnknown, "stripe_response_invalid")
	}
	return refund, nil
}

func classifyStripeError(status int, errType, code string) gateway.Kind {
	switch errType {
	case "authentication_error":
		return gateway.KindAuthFailure
	case "rate_limit_error", "api_error", "api_connection_error":
		return gateway.KindUnavailable
	}
	switch code {
	case "resource_missing", "charge_already_refunded", "charge_disputed", "charge_expired_for_refund", "amount_too_large":
		return gateway.KindInvalidRequest
	}
	return gateway.Classify(status, code)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
