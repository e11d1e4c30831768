package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"sync"
)

const (
	TemplateRecipientNotification = "recipient_notification"
	TemplateContributorImpact     = "contributor_impact"
	TemplateTipReceipt            = "tip_receipt"
)

//go:embed templates/*.html
var templateFS embed.FS

var (
	parseOnce sync.Once
	parsed    *template.Template
	parseErr  error
)

var defaultSubjects = map[string]string{
	TemplateRecipientNotification: "Your group gift has arrived",
	TemplateContributorImpact:     "See the impact of your gift",
	TemplateTipReceipt:            "Thank you for supporting GiftPool",
}

func templates() (*template.Template, error) {
	parseOnce.Do(func() {
		parsed, parseErr = template.ParseFS(templateFS, "templates/*.html")
	})
	return parsed, parseErr
}

// Render executes the named template. The subject comes from data["subject"]
// when present.
func Render(templateName string, data map[string]any) (string, string, error) {
	t, err := templates()
	if err != nil {
		return "", "", fmt.Errorf("failed to parse templates: %w", err)
	}
	tmpl := t.Lookup(templateName + ".html")
	if tmpl == nil {
		return "", "", fmt.Errorf("unknown email template %q", templateName)
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return "", "", fmt.Errorf("failed to execute template: %w", err)
	}

	subject := defaultSubjects[templateName]
	if subj, ok := data["subject"].(string); ok && subj != "" {
		subject = subj
	}
	if subject == "" {
		subject = "Notification from GiftPool"
	}
	return subject, body.String(), nil
}
