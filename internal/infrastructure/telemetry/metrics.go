package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/invoicing/internal/infrastructure/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
)

const defaultExportInterval = time.Minute

// MeterProvider owns the OTLP metric pipeline. When telemetry is off it hands
// out meters from the global no-op provider so instruments stay callable.
type MeterProvider struct {
	sdk *sdkmetric.MeterProvider
	log *zap.Logger
}

// NewMeterProvider starts a periodic OTLP/gRPC exporter when cfg.Enabled
func NewMeterProvider(ctx context.Context, cfg config.TelemetryConfig, log *zap.Logger) (*MeterProvider, error) {
	mp := &MeterProvider{log: log}
	if !cfg.Enabled {
		log.Info("Metrics export disabled")
		return mp, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.CollectorEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create OTLP metric exporter: %w", err)
	}

	res, err := newResource(cfg.ServiceName)
	if err != nil {
		return nil, err
	}

	interval := cfg.MetricsInterval
	if interval <= 0 {
		interval = defaultExportInterval
	}
	mp.sdk = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)
	otel.SetMeterProvider(mp.sdk)

	log.Info("Metrics export enabled",
		zap.String("collector_endpoint", cfg.CollectorEndpoint),
		zap.Duration("interval", interval),
	)
	return mp, nil
}

// Shutdown pushes the last collection and closes the exporter
func (mp *MeterProvider) Shutdown(ctx context.Context) error {
	if mp.sdk == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := mp.sdk.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown meter provider: %w", err)
	}
	mp.log.Info("Metrics exporter stopped")
	return nil
}

func (mp *MeterProvider) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if mp.sdk == nil {
		return otel.GetMeterProvider().Meter(name, opts...)
	}
	return mp.sdk.Meter(name, opts...)
}

func (mp *MeterProvider) IsEnabled() bool {
	return mp.sdk != nil
}

// Counter is a monotonic int64 instrument
type Counter struct {
	inst metric.Int64Counter
}

func NewCounter(meter metric.Meter, name, description, unit string) (*Counter, error) {
	inst, err := meter.Int64Counter(name, metric.WithDescription(description), metric.WithUnit(unit))
	if err != nil {
		return nil, fmt.Errorf("counter %s: %w", name, err)
	}
	return &Counter{inst: inst}, nil
}

func (c *Counter) Add(ctx context.Context, n int64, attrs ...attribute.KeyValue) {
	c.inst.Add(ctx, n, metric.WithAttributes(attrs...))
}

func (c *Counter) Inc(ctx context.Context, attrs ...attribute.KeyValue) {
	c.Add(ctx, 1, attrs...)
}

// Histogram is a float64 distribution instrument
type Histogram struct {
	inst metric.Float64Histogram
}

// HistogramOpts describes a histogram; nil Boundaries keeps the SDK defaults
type HistogramOpts struct {
	Name        string
	Description string
	Unit        string
	Boundaries  []float64
}

func NewHistogram(meter metric.Meter, o HistogramOpts) (*Histogram, error) {
	opts := []metric.Float64HistogramOption{
		metric.WithDescription(o.Description),
		metric.WithUnit(o.Unit),
	}
	if len(o.Boundaries) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(o.Boundaries...))
	}
	inst, err := meter.Float64Histogram(o.Name, opts...)
	if err != nil {
		return nil, fmt.Errorf("histogram %s: %w", o.Name, err)
	}
	return &Histogram{inst: inst}, nil
}

func (h *Histogram) Record(ctx context.Context, v float64, attrs ...attribute.KeyValue) {
	h.inst.Record(ctx, v, metric.WithAttributes(attrs...))
}

// RecordDuration records d in seconds
func (h *Histogram) RecordDuration(ctx context.Context, d time.Duration, attrs ...attribute.KeyValue) {
	h.Record(ctx, d.Seconds(), attrs...)
}

// Attribute keys shared by reminder and HTTP instruments
var (
	AttrTenantID      = attribute.Key("tenant_id")
	AttrReminderLevel = attribute.Key("reminder_level")
	AttrDuplicate     = attribute.Key("duplicate")
	AttrFailure       = attribute.Key("failure")
	AttrRepaired      = attribute.Key("repaired")
	AttrFromStatus    = attribute.Key("from_status")
	AttrToStatus      = attribute.Key("to_status")
	AttrOutcome       = attribute.Key("outcome")

	AttrHTTPMethod     = attribute.Key("http.method")
	AttrHTTPStatusCode = attribute.Key("http.status_code")
	AttrHTTPRoute      = attribute.Key("http.route")
)

// Bucket boundaries in seconds
var (
	HTTPDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	// Sweeps touch every tenant, so the tail runs long
	JobDurationBuckets = []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900}
)
