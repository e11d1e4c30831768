package reloadly

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/giftpool/internal/providers/gateway"
	"github.com/smallbiznis/giftpool/pkg/money"
	"go.uber.org/zap"
)

type orderRequest struct {
	ProductID        int64       `json:"productId"`
	CountryCode      string      `json:"countryCode,omitempty"`
	Quantity         int         `json:"quantity"`
	UnitPrice        json.Number `json:"unitPrice"`
	CustomIdentifier string      `json:"customIdentifier"`
	SenderName       string      `json:"senderName"`
	RecipientEmail   string      `json:"recipientEmail"`
}

type orderResponse struct {
	TransactionID int64           `json:"transactionId"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
}

type cardDTO struct {
	CardNumber    string `json:"cardNumber"`
	PinCode       string `json:"pinCode"`
	RedemptionURL string `json:"redemptionUrl"`
}

func mapOrderStatus(status string) gateway.OrderStatus {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "SUCCESSFUL":
		return gateway.OrderStatusCompleted
	case "PENDING", "PROCESSING":
		return gateway.OrderStatusPending
	default:
		return gateway.OrderStatusFailed
	}
}

func (c *Client) PlaceOrder(ctx context.Context, req gateway.OrderRequest) (gateway.OrderResult, error) {
	if req.ProductID == 0 {
		return gateway.OrderResult{}, gateway.NewError(providerName, gateway.KindInvalidRequest, "product id is required")
	}
	if strings.TrimSpace(req.RecipientEmail) == "" {
		return gateway.OrderResult{}, gateway.NewError(providerName, gateway.KindInvalidRequest, "recipient email is required")
	}

	body := orderRequest{
		ProductID:        req.ProductID,
		CountryCode:      strings.ToUpper(strings.TrimSpace(req.CountryCode)),
		Quantity:         1,
		UnitPrice:        money.JSON(req.Amount),
		CustomIdentifier: req.IdempotencyKey,
		SenderName:       strings.TrimSpace(req.SenderName),
		RecipientEmail:   strings.TrimSpace(req.RecipientEmail),
	}

	raw, err := c.do(ctx, "order", http.MethodPost, "/orders", nil, body)
	if err != nil {
		return gateway.OrderResult{}, err
	}
	var resp orderResponse
	if err := decodeInto(raw, &resp); err != nil {
		return gateway.OrderResult{}, err
	}

	result := gateway.OrderResult{
		OrderID:        fmt.Sprint(resp.TransactionID),
		Status:         mapOrderStatus(resp.Status),
		ProviderStatus: resp.Status,
		Amount:         resp.Amount,
		Raw:            json.RawMessage(raw),
	}
	if resp.TransactionID == 0 {
		return gateway.OrderResult{}, gateway.NewError(providerName, gateway.KindUnknown, "order response missing transaction id")
	}

	switch result.Status {
	case gateway.OrderStatusFailed:
		return result, &gateway.Error{
			Provider: providerName,
			Kind:     gateway.KindUnknown,
			Code:     resp.Status,
			Message:  "order not fulfilled",
		}
	case gateway.OrderStatusCompleted:
		c.attachCard(ctx, &result)
	}
	return result, nil
}

// attachCard fetches the redemption details. The order is already placed, so
// failures here are logged and do not fail the order.
func (c *Client) attachCard(ctx context.Context, result *gateway.OrderResult) {
	raw, err := c.do(ctx, "order.cards", http.MethodGet, "/orders/transactions/"+result.OrderID+"/cards", nil, nil)
	if err != nil {
		c.log.Warn("fetch redeem code failed", zap.String("order_id", result.OrderID), zap.Error(err))
		return
	}
	var cards []cardDTO
	if err := json.Unmarshal(raw, &cards); err != nil || len(cards) == 0 {
		c.log.Warn("redeem code response empty", zap.String("order_id", result.OrderID))
		return
	}
	result.ClaimURL = cards[0].RedemptionURL
	code := cards[0].CardNumber
	if cards[0].PinCode != "" {
		code = strings.TrimSpace(code + " " + cards[0].PinCode)
	}
	result.RedeemCode = code
}
