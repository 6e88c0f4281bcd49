package metrics

import (
	"context"
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

// Metrics exposes the redemption lifecycle instruments.
type Metrics struct {
	claims               metric.Int64Counter
	tokensIssued         metric.Int64Counter
	confirmations        metric.Int64Counter
	notificationFailures metric.Int64Counter
	rateLimitDenied      metric.Int64Counter
	jobRuns              metric.Int64Counter
	jobDuration          metric.Float64Histogram
	benefitsExpired      metric.Int64Counter
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
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "perkhub"
	}
	meter := provider.Meter(name)

	claims, err := meter.Int64Counter("perkhub_benefit_claims_total")
	if err != nil {
		return nil, err
	}
	tokensIssued, err := meter.Int64Counter("perkhub_redemption_tokens_issued_total")
	if err != nil {
		return nil, err
	}
	confirmations, err := meter.Int64Counter("perkhub_redemption_confirmations_total")
	if err != nil {
		return nil, err
	}
	notificationFailures, err := meter.Int64Counter("perkhub_realtime_notification_failures_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("perkhub_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}

	jobRuns, err := meter.Int64Counter("perkhub_scheduler_job_runs_total")
	if err != nil {
		return nil, err
	}
	jobDuration, err := meter.Float64Histogram("perkhub_scheduler_job_duration_seconds", metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	benefitsExpired, err := meter.Int64Counter("perkhub_benefits_expired_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		claims:               claims,
		tokensIssued:         tokensIssued,
		confirmations:        confirmations,
		notificationFailures: notificationFailures,
		rateLimitDenied:      rateLimitDenied,
		jobRuns:              jobRuns,
		jobDuration:          jobDuration,
		benefitsExpired:      benefitsExpired,
	}, nil
}

// RecordClaim counts claim attempts by outcome ("ok" or an error type).
func (m *Metrics) RecordClaim(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("outcome", strings.TrimSpace(outcome)))
	m.claims.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordTokenIssued counts token issuance attempts by outcome and limit period.
func (m *Metrics) RecordTokenIssued(ctx context.Context, outcome, period string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("outcome", strings.TrimSpace(outcome)),
		attribute.String("limit_period", strings.TrimSpace(period)),
	)
	m.tokensIssued.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordConfirmation counts confirm attempts by outcome.
func (m *Metrics) RecordConfirmation(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("outcome", strings.TrimSpace(outcome)))
	m.confirmations.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordNotificationFailure counts real-time deliveries that could not be published.
func (m *Metrics) RecordNotificationFailure(ctx context.Context, event string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("event_type", strings.TrimSpace(event)))
	m.notificationFailures.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitDenied counts requests rejected by the limiter.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("endpoint", strings.TrimSpace(endpoint)))
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordJobRun counts a scheduler job run and observes how long it took.
func (m *Metrics) RecordJobRun(ctx context.Context, job, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("job", strings.TrimSpace(job)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.jobRuns.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.jobDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordBenefitsExpired(ctx context.Context, count int64) {
	if m == nil || count <= 0 {
		return
	}
	m.benefitsExpired.Add(ctx, count)
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
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
	"outcome":      {},
	"limit_period": {},
	"endpoint":     {},
	"status_code":  {},
	"event_type":   {},
	"job":          {},
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
