package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MetricsCollector records build and slide metrics. A nil or disabled
// collector is valid and records nothing.
type MetricsCollector struct {
	registry *prometheus.Registry
	provider *sdkmetric.MeterProvider

	builds        metric.Int64Counter
	slides        metric.Int64Counter
	buildDuration metric.Float64Histogram
	rasterLatency metric.Float64Histogram
}

// MetricsConfig configures the metrics collector
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// NewMetricsCollector creates a collector backed by its own prometheus
// registry so several collectors can coexist in one process.
func NewMetricsCollector(config MetricsConfig) (*MetricsCollector, error) {
	if !config.Enabled {
		return &MetricsCollector{}, nil
	}

	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)
	meter := provider.Meter("svgdeck")

	builds, err := meter.Int64Counter(
		"svgdeck.builds",
		metric.WithDescription("Number of deck builds by outcome"),
		metric.WithUnit("{build}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create builds counter: %w", err)
	}

	slides, err := meter.Int64Counter(
		"svgdeck.slides",
		metric.WithDescription("Number of slides processed by embedding mode"),
		metric.WithUnit("{slide}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create slides counter: %w", err)
	}

	buildDuration, err := meter.Float64Histogram(
		"svgdeck.build.duration",
		metric.WithDescription("Deck build duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create build duration histogram: %w", err)
	}

	rasterLatency, err := meter.Float64Histogram(
		"svgdeck.raster.duration",
		metric.WithDescription("Rasterization latency per slide in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create raster duration histogram: %w", err)
	}

	return &MetricsCollector{
		registry:      registry,
		provider:      provider,
		builds:        builds,
		slides:        slides,
		buildDuration: buildDuration,
		rasterLatency: rasterLatency,
	}, nil
}

// RecordBuild records one finished build.
func (m *MetricsCollector) RecordBuild(ctx context.Context, status string, duration time.Duration) {
	if m == nil || m.builds == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.builds.Add(ctx, 1, attrs)
	m.buildDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordSlide records one slide with its embedding mode (dual, vector,
// downgraded, failed).
func (m *MetricsCollector) RecordSlide(ctx context.Context, mode string) {
	if m == nil || m.slides == nil {
		return
	}
	m.slides.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode)))
}

// RecordRaster records one rasterizer call.
func (m *MetricsCollector) RecordRaster(ctx context.Context, backend string, ok bool, duration time.Duration) {
	if m == nil || m.rasterLatency == nil {
		return
	}
	m.rasterLatency.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("backend", backend),
		attribute.Bool("ok", ok),
	))
}

// Gatherer exposes collected metrics, or nil when disabled.
func (m *MetricsCollector) Gatherer() prometheus.Gatherer {
	if m == nil || m.registry == nil {
		return nil
	}
	return m.registry
}

// Handler serves the collected metrics in the prometheus text format.
func (m *MetricsCollector) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes the current metrics to path in the node_exporter
// textfile collector format.
func (m *MetricsCollector) WriteTextfile(path string) error {
	if m == nil || m.registry == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Shutdown flushes and stops the meter provider
func (m *MetricsCollector) Shutdown(ctx context.Context) error {
	if m == nil || m.provider == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}
