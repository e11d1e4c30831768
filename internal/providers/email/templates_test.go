package email

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRenderEscapesAndUsesDefaultSubject(t *testing.T) {
	subject, body, err := Render(TemplateRecipientNotification, map[string]any{
		"recipient_name":  "<Sam>",
		"gift_title":      "Farewell",
		"bonus_amount":    "25.00",
		"claim_url":       "https://claim.example/1",
		"donation_amount": "10.00",
		"charity_name":    "Food Bank",
		"impact_url":      "https://giftpool.example/impact/abc",
	})
	require.NoError(t, err)
	assert.Equal(t, "Your group gift has arrived", subject)
	assert.Contains(t, body, "&lt;Sam&gt;")
	assert.Contains(t, body, "$25.00")
	assert.Contains(t, body, "Food Bank")
}

func TestRenderSubjectOverride(t *testing.T) {
	subject, _, err := Render(TemplateTipReceipt, map[string]any{"subject": "Receipt", "tip_amount": "5.00"})
	require.NoError(t, err)
	assert.Equal(t, "Receipt", subject)
}

func TestRenderUnknownTemplate(t *testing.T) {
	_, _, err := Render("missing", nil)
	assert.Error(t, err)
}

func TestBuildMessageHeaders(t *testing.T) {
	msg := string(buildMessage("noreply@giftpool.example", []string{"a@example.com"}, "Hi", "<p>x</p>"))
	assert.Contains(t, msg, "From: noreply@giftpool.example\r\n")
	assert.Contains(t, msg, "To: a@example.com\r\n")
	assert.Contains(t, msg, "Content-Type: text/html")
}

func TestLogProviderSendTemplate(t *testing.T) {
	p := NewLogProvider(zap.NewNop())
	require.NoError(t, p.SendTemplate(context.Background(), []string{"a@example.com"}, TemplateContributorImpact, map[string]any{"gift_title": "x"}))
}
