package metrics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes settlement-level instruments.
type Metrics struct {
	settlements    metric.Int64Counter
	settledAmount  metric.Float64Counter
	providerErrors metric.Int64Counter
	fallbacks      metric.Int64Counter
	notifications  metric.Int64Counter
	reconciliation metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				log.Info("shutting down meter provider")
				return provider.Shutdown(ctx)
			},
		})
	}

	log.Info("metrics initialized",
		zap.String("endpoint", cfg.ExporterEndpoint),
		zap.String("protocol", cfg.ExporterProtocol),
	)
	return provider, nil
}

// New registers the settlement instruments on the given provider.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "giftpool"
	}
	meter := provider.Meter(name)

	var errs []error
	count := func(name string, opts ...metric.Int64CounterOption) metric.Int64Counter {
		c, err := meter.Int64Counter(name, opts...)
		errs = append(errs, err)
		return c
	}

	m := &Metrics{
		settlements:    count("giftpool_settlements_total"),
		providerErrors: count("giftpool_provider_errors_total"),
		fallbacks:      count("giftpool_fallbacks_total"),
		notifications:  count("giftpool_notifications_total"),
		reconciliation: count("giftpool_reconciliation_required_total",
			metric.WithDescription("Provider side effects whose local row could not be written.")),
	}
	amount, err := meter.Float64Counter("giftpool_settled_amount_total",
		metric.WithDescription("Settled amount in currency units; reporting only, never used for bookkeeping."))
	m.settledAmount = amount
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) RecordSettlement(ctx context.Context, disposition, status string, amount float64) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("disposition", strings.TrimSpace(disposition)),
		attribute.String("status", strings.TrimSpace(status)),
	)
	m.settlements.Add(ctx, 1, metric.WithAttributes(attrs...))
	if amount > 0 {
		m.settledAmount.Add(ctx, amount, metric.WithAttributes(attrs...))
	}
}

func (m *Metrics) RecordProviderError(ctx context.Context, provider, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("provider", strings.TrimSpace(provider)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.providerErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordFallback(ctx context.Context, disposition, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("disposition", strings.TrimSpace(disposition)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.fallbacks.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordNotification(ctx context.Context, eventType, status string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("event_type", strings.TrimSpace(eventType)),
		attribute.String("status", strings.TrimSpace(status)),
	)
	m.notifications.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordReconciliationRequired counts money movements whose local bookkeeping failed.
func (m *Metrics) RecordReconciliationRequired(ctx context.Context, disposition string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("disposition", strings.TrimSpace(disposition)))
	m.reconciliation.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"disposition": {},
	"status":      {},
	"provider":    {},
	"reason":      {},
	"event_type":  {},
	"endpoint":    {},
	"status_code": {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
