package email

import (
	"context"

	"go.uber.org/zap"
)

type Provider interface {
	Send(ctx context.Context, to []string, subject string, htmlBody string) error
	SendTemplate(ctx context.Context, to []string, templateName string, data map[string]any) error
}

// LogProvider stands in for SMTP in environments without a mail relay.
type LogProvider struct {
	log *zap.Logger
}

func NewLogProvider(log *zap.Logger) *LogProvider {
	return &LogProvider{log: log.Named("email.log")}
}

func (p *LogProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	p.log.Info("email suppressed, smtp not configured",
		zap.Strings("to", to),
		zap.String("subject", subject),
		zap.Int("body_bytes", len(htmlBody)),
	)
	return nil
}

func (p *LogProvider) SendTemplate(ctx context.Context, to []string, templateName string, data map[string]any) error {
	subject, body, err := Render(templateName, data)
	if err != nil {
		return err
	}
	return p.Send(ctx, to, subject, body)
}
