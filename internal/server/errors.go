package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	giftdomain "github.com/smallbiznis/giftpool/internal/gift/domain"
	"github.com/smallbiznis/giftpool/internal/providers/gateway"
	settlementdomain "github.com/smallbiznis/giftpool/internal/settlement/domain"
	"github.com/smallbiznis/giftpool/pkg/money"
	"gorm.io/gorm"
)

const (
	alternateActionStoreCredit = "try_store_credit"
	alternateActionRefund      = "try_refund"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type            string            `json:"type"`
	Message         string            `json:"message"`
	Retryable       bool              `json:"retryable,omitempty"`
	AlternateAction string            `json:"alternate_action,omitempty"`
	Errors          []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Success bool         `json:"success"`
	Error   errorPayload `json:"error"`
}

var (
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	var settleErr *settlementdomain.ValidationError
	if errors.As(err, &settleErr) {
		code := validationCode(settleErr)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{{
				Field:   settleErr.Field,
				Code:    code,
				Message: validationErrorMessage(code),
			}},
		}
	}

	var providerErr *settlementdomain.ProviderError
	if errors.As(err, &providerErr) {
		return mapProviderError(providerErr)
	}

	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, settlementdomain.ErrInvalidDisposition),
		errors.Is(err, money.ErrInvalidAmount):
		code := validationCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{{
				Field:   validationErrorField(code),
				Code:    code,
				Message: validationErrorMessage(code),
			}},
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, settlementdomain.ErrSlotTaken):
		return http.StatusConflict, errorPayload{
			Type:    "settlement_slot_taken",
			Message: "a settlement of this kind already exists for this gift",
		}
	case errors.Is(err, settlementdomain.ErrSettlementInProgress):
		return http.StatusConflict, errorPayload{
			Type:      "settlement_in_progress",
			Message:   "another settlement for this gift is in progress",
			Retryable: true,
		}
	case errors.Is(err, settlementdomain.ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:      "rate_limited",
			Message:   "too many settlement attempts",
			Retryable: true,
		}
	case errors.Is(err, settlementdomain.ErrCreditFallbackFailed):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:            "credit_fallback_failed",
			Message:         "the gift card could not be delivered and no contributor could receive store credit",
			Retryable:       true,
			AlternateAction: alternateActionRefund,
		}
	case errors.Is(err, settlementdomain.ErrPersistence):
		return http.StatusInternalServerError, errorPayload{
			Type:    "reconciliation_required",
			Message: "the provider accepted the request but it could not be recorded; support has been notified",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:      "service_unavailable",
			Message:   "service unavailable",
			Retryable: true,
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func mapProviderError(err *settlementdomain.ProviderError) (int, errorPayload) {
	payload := errorPayload{Message: err.Message}
	if err.Disposition == settlementdomain.DispositionBonus {
		payload.AlternateAction = alternateActionStoreCredit
	}
	switch gateway.Kind(err.Kind) {
	case gateway.KindAuthFailure:
		payload.Type = "provider_auth_failure"
		payload.Message = "the provider is temporarily unavailable"
		return http.StatusBadGateway, payload
	case gateway.KindUnavailable:
		payload.Type = "provider_unavailable"
		payload.Retryable = true
		return http.StatusServiceUnavailable, payload
	default:
		payload.Type = "provider_rejected"
		return http.StatusUnprocessableEntity, payload
	}
}

// classifyErrorForLog mirrors mapError's type without building the payload.
func classifyErrorForLog(err error) string {
	_, payload := mapError(err)
	return payload.Type
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, settlementdomain.ErrGiftNotFound),
		errors.Is(err, giftdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

var validationCodes = []struct {
	err  error
	code string
}{
	{money.ErrBelowMinimum, "below_minimum"},
	{settlementdomain.ErrNoSurplus, "no_surplus"},
	{settlementdomain.ErrExceedsSurplus, "amount_exceeds_surplus"},
	{settlementdomain.ErrNothingToDistribute, "nothing_to_distribute"},
	{settlementdomain.ErrMissingRecipientEmail, "missing_recipient_email"},
	{settlementdomain.ErrMissingCharity, "missing_charity"},
	{settlementdomain.ErrInvalidDisposition, "invalid_disposition"},
	{settlementdomain.ErrInvalidAmount, "invalid_amount"},
	{money.ErrInvalidAmount, "invalid_amount"},
}

func validationCode(err error) string {
	for _, vc := range validationCodes {
		if errors.Is(err, vc.err) {
			return vc.code
		}
	}
	return "invalid_request"
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_disposition":
		return "disposition"
	case "invalid_amount", "below_minimum":
		return "amount"
	default:
		return "request"
	}
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "invalid_disposition":
		return "disposition must be one of bonus, charity, tip, refund, credit"
	case "missing_recipient_email":
		return "recipient email is required for a gift card"
	case "missing_charity":
		return "a charity is required"
	case "no_surplus":
		return "this gift has no surplus left to settle"
	case "amount_exceeds_surplus":
		return "amount exceeds the remaining surplus"
	case "nothing_to_distribute":
		return "nothing to distribute after fees"
	case "below_minimum":
		return "amount is below the minimum"
	default:
		return "invalid value"
	}
}
