package observability

import (
	"testing"

	"github.com/smallbiznis/perkhub/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigFromAppConfig(t *testing.T) {
	cfg := LoadConfig(config.Config{
		AppName:     "perkhub-api",
		AppVersion:  "1.2.0",
		Environment: "production",
		Observability: config.ObservabilityConfig{
			Environment:      "staging",
			LogLevel:         "warn",
			LogFormat:        "console",
			OtelEnabled:      true,
			ExporterEndpoint: "collector:4318",
			ExporterProtocol: "http",
			SamplingRatio:    0.5,
		},
	})

	assert.Equal(t, "perkhub-api", cfg.ServiceName)
	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, "1.2.0", cfg.Version)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.True(t, cfg.OtelEnabled)
	assert.Equal(t, "collector:4318", cfg.OtelExporterEndpoint)
	assert.Equal(t, "http", cfg.OtelExporterProtocol)
	assert.Equal(t, 0.5, cfg.OtelSamplingRatio)
	assert.False(t, cfg.Debug())
}

func TestLoadConfigFallbacks(t *testing.T) {
	cfg := LoadConfig(config.Config{
		Environment:  "development",
		OTLPEndpoint: "localhost:4317",
		Observability: config.ObservabilityConfig{
			SamplingRatio: 3,
		},
	})

	assert.Equal(t, defaultServiceName, cfg.ServiceName)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "localhost:4317", cfg.OtelExporterEndpoint)
	assert.Equal(t, "grpc", cfg.OtelExporterProtocol)
	assert.Equal(t, defaultSamplingRatio, cfg.OtelSamplingRatio)
	assert.True(t, cfg.Debug())
}

func TestDebugOnLogLevel(t *testing.T) {
	assert.True(t, Config{LogLevel: "DEBUG", Environment: "production"}.Debug())
	assert.False(t, Config{LogLevel: "info", Environment: "production"}.Debug())
}
