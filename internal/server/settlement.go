package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/giftpool/internal/settlement/allocation"
	settlementdomain "github.com/smallbiznis/giftpool/internal/settlement/domain"
	"github.com/smallbiznis/giftpool/pkg/money"
)

type createSettlementRequest struct {
	Amount         json.Number `json:"amount"`
	Disposition    string      `json:"disposition"`
	RecipientEmail string      `json:"recipient_email"`
	RecipientName  string      `json:"recipient_name"`
	CharityID      string      `json:"charity_id"`
	CharityName    string      `json:"charity_name"`
	CoverFees      bool        `json:"cover_fees"`
	Dedication     string      `json:"dedication"`
	TotalFees      json.Number `json:"total_fees"`
}

type settlementView struct {
	ID              string      `json:"id"`
	GiftID          string      `json:"gift_id"`
	Disposition     string      `json:"disposition"`
	Origin          string      `json:"origin"`
	Status          string      `json:"status"`
	Amount          json.Number `json:"amount"`
	NetAmount       json.Number `json:"net_amount,omitempty"`
	FeeAmount       json.Number `json:"fee_amount,omitempty"`
	CoverFees       bool        `json:"cover_fees,omitempty"`
	CharityID       string      `json:"charity_id,omitempty"`
	CharityName     string      `json:"charity_name,omitempty"`
	RecipientEmail  string      `json:"recipient_email,omitempty"`
	RecipientName   string      `json:"recipient_name,omitempty"`
	ClaimURL        string      `json:"claim_url,omitempty"`
	Provider        string      `json:"provider,omitempty"`
	ProviderOrderID string      `json:"provider_order_id,omitempty"`
	ContributionID  string      `json:"contribution_id,omitempty"`
	UserID          string      `json:"user_id,omitempty"`
	FailureReason   string      `json:"failure_reason,omitempty"`
	Dedication      string      `json:"dedication,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
}

func newSettlementView(row settlementdomain.Settlement) settlementView {
	view := settlementView{
		ID:              row.ID.String(),
		GiftID:          row.GiftID.String(),
		Disposition:     string(row.Disposition),
		Origin:          string(row.Origin),
		Status:          string(row.Status),
		Amount:          money.JSON(row.Amount),
		CoverFees:       row.CoverFees,
		CharityID:       row.CharityID,
		CharityName:     row.CharityName,
		RecipientEmail:  row.RecipientEmail,
		RecipientName:   row.RecipientName,
		ClaimURL:        row.ClaimURL,
		Provider:        row.Provider,
		ProviderOrderID: row.ProviderOrderID,
		UserID:          row.UserID,
		FailureReason:   row.FailureReason,
		Dedication:      row.Dedication,
		CreatedAt:       row.CreatedAt,
	}
	if !row.NetAmount.IsZero() {
		view.NetAmount = money.JSON(row.NetAmount)
	}
	if !row.FeeAmount.IsZero() {
		view.FeeAmount = money.JSON(row.FeeAmount)
	}
	if row.ContributionID != nil {
		view.ContributionID = row.ContributionID.String()
	}
	return view
}

func newSettlementViews(rows []settlementdomain.Settlement) []settlementView {
	views := make([]settlementView, 0, len(rows))
	for _, row := range rows {
		views = append(views, newSettlementView(row))
	}
	return views
}

type settleResponse struct {
	Success           bool                          `json:"success"`
	Settlement        *settlementView               `json:"settlement,omitempty"`
	Settlements       []settlementView              `json:"settlements,omitempty"`
	FallbackToCredits bool                          `json:"fallback_to_credits"`
	Idempotent        bool                          `json:"idempotent,omitempty"`
	Counts            *settlementdomain.BatchCounts `json:"counts,omitempty"`
	Error             *errorPayload                 `json:"error,omitempty"`
}

func (s *Server) CreateSettlement(c *gin.Context) {
	id, ok := giftID(c)
	if !ok {
		return
	}

	var req createSettlementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	disposition, err := settlementdomain.ParseDisposition(strings.ToLower(strings.TrimSpace(req.Disposition)))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	amount, err := parseOptionalDecimal(req.Amount.String())
	if err != nil {
		AbortWithError(c, newValidationError("amount", "invalid_amount", "amount must be a decimal number"))
		return
	}
	totalFees, err := parseOptionalDecimal(req.TotalFees.String())
	if err != nil {
		AbortWithError(c, newValidationError("total_fees", "invalid_amount", "total_fees must be a decimal number"))
		return
	}

	result, err := s.settlements.Settle(c.Request.Context(), settlementdomain.SettleRequest{
		GiftID:         id,
		Disposition:    disposition,
		Amount:         amount,
		RecipientEmail: strings.TrimSpace(req.RecipientEmail),
		RecipientName:  strings.TrimSpace(req.RecipientName),
		CharityID:      strings.TrimSpace(req.CharityID),
		CharityName:    strings.TrimSpace(req.CharityName),
		CoverFees:      req.CoverFees,
		Dedication:     strings.TrimSpace(req.Dedication),
		TotalFees:      totalFees,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := settleResponse{
		Success:           result.Err == nil,
		FallbackToCredits: result.FallbackToCredits,
		Idempotent:        result.Idempotent,
		Counts:            result.Counts,
	}
	if result.Settlement != nil {
		view := newSettlementView(*result.Settlement)
		resp.Settlement = &view
	}
	if len(result.Settlements) > 0 {
		resp.Settlements = newSettlementViews(result.Settlements)
	}
	if result.Err != nil {
		payload := batchErrorPayload(result.Err)
		resp.Error = &payload
	}

	status := http.StatusCreated
	if result.Idempotent {
		status = http.StatusOK
	}
	c.JSON(status, resp)
}

func batchErrorPayload(err error) errorPayload {
	if errors.Is(err, settlementdomain.ErrPersistence) {
		_, payload := mapError(err)
		return payload
	}
	return errorPayload{
		Type:    "partial_batch_failure",
		Message: "some contributor shares could not be settled",
	}
}

func (s *Server) ListSettlements(c *gin.Context) {
	id, ok := giftID(c)
	if !ok {
		return
	}

	rows, err := s.settlements.List(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": newSettlementViews(rows)})
}

type allocationRowView struct {
	ContributionID string      `json:"contribution_id"`
	OriginalAmount json.Number `json:"original_amount"`
	Share          json.Number `json:"share"`
}

type previewResponse struct {
	GiftID            string              `json:"gift_id"`
	Surplus           json.Number         `json:"surplus"`
	Remaining         json.Number         `json:"remaining"`
	TotalContributed  json.Number         `json:"total_contributed"`
	TotalFees         json.Number         `json:"total_fees"`
	NetRefundablePool json.Number         `json:"net_refundable_pool"`
	Rows              []allocationRowView `json:"rows"`
}

func newPreviewResponse(p settlementdomain.Preview) previewResponse {
	return previewResponse{
		GiftID:            p.GiftID.String(),
		Surplus:           money.JSON(p.Surplus),
		Remaining:         money.JSON(p.Remaining),
		TotalContributed:  money.JSON(p.Allocation.TotalContributed),
		TotalFees:         money.JSON(p.Allocation.TotalFees),
		NetRefundablePool: money.JSON(p.Allocation.NetRefundablePool),
		Rows:              newAllocationRows(p.Allocation.Rows),
	}
}

func newAllocationRows(rows []allocation.Row) []allocationRowView {
	views := make([]allocationRowView, 0, len(rows))
	for _, row := range rows {
		views = append(views, allocationRowView{
			ContributionID: row.ContributionID.String(),
			OriginalAmount: money.JSON(row.OriginalAmount),
			Share:          money.JSON(row.Share),
		})
	}
	return views
}

func (s *Server) RefundPreview(c *gin.Context) {
	id, ok := giftID(c)
	if !ok {
		return
	}

	amount, err := parseOptionalDecimal(c.Query("amount"))
	if err != nil {
		AbortWithError(c, newValidationError("amount", "invalid_amount", "amount must be a decimal number"))
		return
	}
	totalFees, err := parseOptionalDecimal(c.Query("total_fees"))
	if err != nil {
		AbortWithError(c, newValidationError("total_fees", "invalid_amount", "total_fees must be a decimal number"))
		return
	}
	if totalFees != nil && totalFees.LessThan(decimal.Zero) {
		AbortWithError(c, newValidationError("total_fees", "invalid_amount", "total_fees must not be negative"))
		return
	}

	preview, err := s.settlements.Preview(c.Request.Context(), settlementdomain.PreviewRequest{
		GiftID:    id,
		Amount:    amount,
		TotalFees: totalFees,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPreviewResponse(preview))
}
