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
	panelsRegistered     metric.Int64Counter
	sharesMinted         metric.Int64Counter
	sharesTransferred    metric.Int64Counter
	dividendsDistributed metric.Int64Counter
	dividendsClaimed     metric.Int64Counter
	authorizationsDenied metric.Int64Counter
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
		name = "solshare"
	}
	meter := provider.Meter(name)

	panelsRegistered, err := meter.Int64Counter("solshare_panels_registered_total")
	if err != nil {
		return nil, err
	}
	sharesMinted, err := meter.Int64Counter("solshare_shares_minted_total")
	if err != nil {
		return nil, err
	}
	sharesTransferred, err := meter.Int64Counter("solshare_shares_transferred_total")
	if err != nil {
		return nil, err
	}
	dividendsDistributed, err := meter.Int64Counter("solshare_dividends_distributed_total")
	if err != nil {
		return nil, err
	}
	dividendsClaimed, err := meter.Int64Counter("solshare_dividends_claimed_total")
	if err != nil {
		return nil, err
	}
	authorizationsDenied, err := meter.Int64Counter("solshare_authorizations_denied_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		panelsRegistered:     panelsRegistered,
		sharesMinted:         sharesMinted,
		sharesTransferred:    sharesTransferred,
		dividendsDistributed: dividendsDistributed,
		dividendsClaimed:     dividendsClaimed,
		authorizationsDenied: authorizationsDenied,
	}, nil
}

// RecordPanelRegistered increments panel registration counts.
func (m *Metrics) RecordPanelRegistered(ctx context.Context) {
	if m == nil {
		return
	}
	m.panelsRegistered.Add(ctx, 1)
}

// RecordSharesMinted increments share mint counts.
func (m *Metrics) RecordSharesMinted(ctx context.Context) {
	if m == nil {
		return
	}
	m.sharesMinted.Add(ctx, 1)
}

// RecordSharesTransferred increments share transfer counts.
func (m *Metrics) RecordSharesTransferred(ctx context.Context) {
	if m == nil {
		return
	}
	m.sharesTransferred.Add(ctx, 1)
}

// RecordDividendDistributed increments distribution counts.
func (m *Metrics) RecordDividendDistributed(ctx context.Context) {
	if m == nil {
		return
	}
	m.dividendsDistributed.Add(ctx, 1)
}

// RecordDividendClaimed increments claim counts.
func (m *Metrics) RecordDividendClaimed(ctx context.Context) {
	if m == nil {
		return
	}
	m.dividendsClaimed.Add(ctx, 1)
}

// RecordAuthorizationDenied increments denial counts for a role.
func (m *Metrics) RecordAuthorizationDenied(ctx context.Context, role string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("role", strings.TrimSpace(role)))
	m.authorizationsDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
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
	"role":        {},
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
