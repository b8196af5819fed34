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
	entitlementChecks metric.Int64Counter
	paymentEvents     metric.Int64Counter
	ledgerEntries     metric.Int64Counter
	payouts           metric.Int64Counter
	streamURLs        metric.Int64Counter
	rateLimitDenied   metric.Int64Counter
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
		name = "cadenza"
	}
	meter := provider.Meter(name)

	entitlementChecks, err := meter.Int64Counter("cadenza_entitlement_checks_total")
	if err != nil {
		return nil, err
	}
	paymentEvents, err := meter.Int64Counter("cadenza_payment_events_total")
	if err != nil {
		return nil, err
	}
	ledgerEntries, err := meter.Int64Counter("cadenza_artist_ledger_entries_total")
	if err != nil {
		return nil, err
	}
	payouts, err := meter.Int64Counter("cadenza_artist_payouts_total")
	if err != nil {
		return nil, err
	}
	streamURLs, err := meter.Int64Counter("cadenza_stream_urls_issued_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("cadenza_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		entitlementChecks: entitlementChecks,
		paymentEvents:     paymentEvents,
		ledgerEntries:     ledgerEntries,
		payouts:           payouts,
		streamURLs:        streamURLs,
		rateLimitDenied:   rateLimitDenied,
	}, nil
}

// RecordEntitlementCheck counts allow/deny decisions per item kind.
func (m *Metrics) RecordEntitlementCheck(ctx context.Context, itemKind string, allowed bool) {
	if m == nil {
		return
	}
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	attrs := FilterAttributes(
		attribute.String("item_kind", strings.TrimSpace(itemKind)),
		attribute.String("decision", decision),
	)
	m.entitlementChecks.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordPaymentEvent increments payment event counts.
func (m *Metrics) RecordPaymentEvent(ctx context.Context, gateway, eventType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("gateway", strings.TrimSpace(gateway)),
		attribute.String("event_type", strings.TrimSpace(eventType)),
	)
	m.paymentEvents.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordLedgerEntry increments artist ledger entry counts.
func (m *Metrics) RecordLedgerEntry(ctx context.Context, entryType, source string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("entry_type", strings.TrimSpace(entryType)),
		attribute.String("source", strings.TrimSpace(source)),
	)
	m.ledgerEntries.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordPayout increments payout state transition counts.
func (m *Metrics) RecordPayout(ctx context.Context, status string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("status", strings.TrimSpace(status)))
	m.payouts.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordStreamURL increments signed stream URL issuance counts.
func (m *Metrics) RecordStreamURL(ctx context.Context, itemKind string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("item_kind", strings.TrimSpace(itemKind)))
	m.streamURLs.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitDenied increments rate limit deny counts.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("endpoint", strings.TrimSpace(endpoint)))
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
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
	"item_kind":   {},
	"decision":    {},
	"gateway":     {},
	"event_type":  {},
	"entry_type":  {},
	"source":      {},
	"status":      {},
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
