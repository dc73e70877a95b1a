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

// Metrics exposes application-level instruments.
type Metrics struct {
	webhookEvents    metric.Int64Counter
	resolverMatches  metric.Int64Counter
	sideEffects      metric.Int64Counter
	reconcileLatency metric.Int64Histogram
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

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "vocaldesk"
	}
	meter := provider.Meter(name)

	webhookEvents, err := meter.Int64Counter("vocaldesk_webhook_events_total")
	if err != nil {
		return nil, err
	}
	resolverMatches, err := meter.Int64Counter("vocaldesk_resolver_matches_total")
	if err != nil {
		return nil, err
	}
	sideEffects, err := meter.Int64Counter("vocaldesk_side_effects_total")
	if err != nil {
		return nil, err
	}
	reconcileLatency, err := meter.Int64Histogram("vocaldesk_reconcile_duration_ms")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		webhookEvents:    webhookEvents,
		resolverMatches:  resolverMatches,
		sideEffects:      sideEffects,
		reconcileLatency: reconcileLatency,
	}, nil
}

// RecordWebhookEvent increments per event type and outcome.
func (m *Metrics) RecordWebhookEvent(ctx context.Context, eventType, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("event_type", strings.TrimSpace(eventType)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.webhookEvents.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordResolverMatch increments per resolution strategy.
func (m *Metrics) RecordResolverMatch(ctx context.Context, strategy string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("strategy", strings.TrimSpace(strategy)))
	m.resolverMatches.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordSideEffect increments per dispatched side effect and result.
func (m *Metrics) RecordSideEffect(ctx context.Context, action, result string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("action", strings.TrimSpace(action)),
		attribute.String("result", strings.TrimSpace(result)),
	)
	m.sideEffects.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordReconcileDuration records reconciliation latency.
func (m *Metrics) RecordReconcileDuration(ctx context.Context, eventType string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("event_type", strings.TrimSpace(eventType)))
	m.reconcileLatency.Record(ctx, elapsed.Milliseconds(), metric.WithAttributes(attrs...))
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
	"event_type": {},
	"outcome":    {},
	"strategy":   {},
	"action":     {},
	"result":     {},
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
