package observability

import (
	"strings"

	"github.com/smallbiznis/perkhub/internal/config"
)

const (
	defaultServiceName   = "perkhub"
	defaultSamplingRatio = 0.1
)

// Config is the resolved view of config.ObservabilityConfig shared by the
// logger, tracer and meter providers.
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
	obs := cfg.Observability

	out := Config{
		ServiceName:          strings.TrimSpace(cfg.AppName),
		Environment:          obs.Environment,
		Version:              obs.Version,
		LogLevel:             obs.LogLevel,
		LogFormat:            obs.LogFormat,
		OtelEnabled:          obs.OtelEnabled,
		OtelExporterEndpoint: obs.ExporterEndpoint,
		OtelExporterProtocol: obs.ExporterProtocol,
		OtelSamplingRatio:    obs.SamplingRatio,
	}
	if out.ServiceName == "" {
		out.ServiceName = defaultServiceName
	}
	if out.Environment == "" {
		out.Environment = strings.TrimSpace(cfg.Environment)
	}
	if out.Version == "" {
		out.Version = strings.TrimSpace(cfg.AppVersion)
	}
	if out.LogLevel == "" {
		out.LogLevel = "info"
	}
	if out.LogFormat == "" {
		out.LogFormat = "json"
	}
	if out.OtelExporterEndpoint == "" {
		out.OtelExporterEndpoint = strings.TrimSpace(cfg.OTLPEndpoint)
	}
	if out.OtelExporterProtocol == "" {
		out.OtelExporterProtocol = "grpc"
	}
	if out.OtelSamplingRatio < 0 || out.OtelSamplingRatio > 1 {
		out.OtelSamplingRatio = defaultSamplingRatio
	}
	return out
}

// Debug reports whether verbose logging applies.
func (c Config) Debug() bool {
	if strings.EqualFold(c.LogLevel, "debug") {
		return true
	}
	switch strings.ToLower(c.Environment) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}
