// Package donation records charity donations funded from a gift pool.
package donation

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/smallbiznis/giftpool/internal/config"
	"github.com/smallbiznis/giftpool/internal/observability/tracing"
	"github.com/smallbiznis/giftpool/internal/providers/gateway"
	"github.com/smallbiznis/giftpool/pkg/money"
	"go.uber.org/zap"
)

const providerName = "donation"

// LedgerProcessor is used when the platform already custodies pooled funds
// and disburses to charities in batches outside this service.
type LedgerProcessor struct {
	log *zap.Logger
}

func NewLedgerProcessor(log *zap.Logger) *LedgerProcessor {
	return &LedgerProcessor{log: log.Named("donation.ledger")}
}

func (p *LedgerProcessor) ChargeRequired() bool { return false }

func (p *LedgerProcessor) Donate(ctx context.Context, req gateway.DonationRequest) (gateway.DonationResult, error) {
	p.log.Info("donation recorded for batch disbursement",
		zap.String("gift_id", req.GiftID),
		zap.String("charity_id", req.CharityID),
		zap.String("net_amount", req.NetAmount.StringFixed(2)),
	)
	return gateway.DonationResult{DonationID: req.IdempotencyKey, Status: "recorded"}, nil
}

// HTTPProcessor posts donations to an external donation API.
type HTTPProcessor struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPProcessor(baseURL, apiKey string, timeout time.Duration) *HTTPProcessor {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPProcessor{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *HTTPProcessor) ChargeRequired() bool { return true }

type donationPayload struct {
	CharityID   string      `json:"charity_id"`
	CharityName string      `json:"charity_name,omitempty"`
	Amount      json.Number `json:"amount"`
	NetAmount   json.Number `json:"net_amount"`
	FeeAmount   json.Number `json:"fee_amount"`
	CoverFees   bool        `json:"cover_fees"`
	Dedication  string      `json:"dedication,omitempty"`
	Reference   string      `json:"reference"`
}

type donationResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type donationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (p *HTTPProcessor) Donate(ctx context.Context, req gateway.DonationRequest) (gateway.DonationResult, error) {
	if p.baseURL == "" || p.apiKey == "" {
		return gateway.DonationResult{}, gateway.NewError(providerName, gateway.KindAuthFailure, "donation api not configured")
	}
	if strings.TrimSpace(req.CharityID) == "" {
		return gateway.DonationResult{}, gateway.NewError(providerName, gateway.KindInvalidRequest, "charity id is required")
	}

	payload, err := json.Marshal(donationPayload{
		CharityID:   req.CharityID,
		CharityName: req.CharityName,
		Amount:      money.JSON(req.Amount),
		NetAmount:   money.JSON(req.NetAmount),
		FeeAmount:   money.JSON(req.FeeAmount),
		CoverFees:   req.CoverFees,
		Dedication:  req.Dedication,
		Reference:   req.IdempotencyKey,
	})
	if err != nil {
		return gateway.DonationResult{}, err
	}

	ctx, end := tracing.StartProviderSpan(ctx, providerName, "donate")
	result, err := p.post(ctx, payload, req.IdempotencyKey)
	end(err)
	return result, err
}

func (p *HTTPProcessor) post(ctx context.Context, payload []byte, idempotencyKey string) (gateway.DonationResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/donations", bytes.NewReader(payload))
	if err != nil {
		return gateway.DonationResult{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return gateway.DonationResult{}, gateway.FromTransport(providerName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr donationError
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return gateway.DonationResult{}, &gateway.Error{
			Provider:   providerName,
			Kind:       gateway.Classify(resp.StatusCode, apiErr.Code),
			StatusCode: resp.StatusCode,
			Code:       apiErr.Code,
			Message:    apiErr.Message,
		}
	}

	var out donationResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return gateway.DonationResult{}, &gateway.Error{Provider: providerName, Kind: gateway.KindUnknown, Message: "undecodable response", Err: err}
	}
	return gateway.DonationResult{DonationID: out.ID, Status: out.Status}, nil
}

// New selects the processor configured by DONATION_MODE.
func New(cfg config.Config, policy *config.SettlementPolicyHolder, log *zap.Logger) gateway.DonationProcessor {
	if strings.EqualFold(cfg.Donation.Mode, config.DonationModeHTTP) {
		return NewHTTPProcessor(cfg.Donation.BaseURL, cfg.Donation.APIKey, policy.Get().ProviderTimeout)
	}
	return NewLedgerProcessor(log)
}
