package observability

import (
	"os"
	"strconv"
	"strings"

	"github.com/smallbiznis/giftpool/internal/config"
)

// Config holds observability settings derived from the environment.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

func LoadConfig(cfg config.Config) Config {
	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = "giftpool"
	}
	protocol := env("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	if traces := env("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", ""); traces != "" {
		protocol = traces
	}

	ratio, err := strconv.ParseFloat(env("OTEL_SAMPLING_RATIO", "0.1"), 64)
	if err != nil {
		ratio = 0.1
	}
	enabled, err := strconv.ParseBool(env("OTEL_ENABLED", "false"))
	if err != nil {
		enabled = false
	}

	return Config{
		ServiceName:          serviceName,
		Environment:          env("DEPLOYMENT_ENV", cfg.Environment),
		Version:              env("SERVICE_VERSION", cfg.AppVersion),
		LogLevel:             strings.ToLower(env("LOG_LEVEL", "info")),
		LogFormat:            strings.ToLower(env("LOG_FORMAT", "json")),
		OtelEnabled:          enabled,
		OtelExporterEndpoint: env("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint),
		OtelExporterProtocol: strings.ToLower(protocol),
		OtelSamplingRatio:    ratio,
	}
}

// Debug reports whether verbose diagnostics (stacks, SQL) should be emitted.
func (c Config) Debug() bool {
	if c.LogLevel == "debug" {
		return true
	}
	switch strings.ToLower(c.Environment) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}

func env(key, def string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return def
}
