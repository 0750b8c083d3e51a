// Package observe provides application-wide observability primitives for
// toolrack: OpenTelemetry metrics, tracing helpers, and the provider setup
// that bridges them to Prometheus.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all toolrack metrics.
const meterName = "github.com/toolrack/toolrack"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// DispatchDuration tracks tool dispatch latency, handler execution
	// included. Use with attributes:
	//   attribute.String("tool", ...), attribute.String("status", ...)
	DispatchDuration metric.Float64Histogram

	// Dispatches counts tool dispatches. Use with the same attributes as
	// DispatchDuration; status is one of "ok", "unknown_tool",
	// "handler_failed".
	Dispatches metric.Int64Counter

	// Registrations counts runtime tool registration attempts. Use with
	// attribute.String("status", ...) — "ok" or the rejection kind.
	Registrations metric.Int64Counter

	// Unregistrations counts runtime tool unregistration attempts. Use with
	// attribute.String("status", ...) — "ok" or "not_found".
	Unregistrations metric.Int64Counter

	// RegistrySize tracks the current number of registered tools. Use with
	// attribute.String("origin", ...).
	RegistrySize metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// in-process handlers on the low end and I/O-bound handlers on the high end.
var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.DispatchDuration, err = m.Float64Histogram("toolrack.dispatch.duration",
		metric.WithDescription("Latency of tool dispatch including handler execution."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Dispatches, err = m.Int64Counter("toolrack.dispatch.calls",
		metric.WithDescription("Total tool dispatches by tool name and status."),
	); err != nil {
		return nil, err
	}
	if met.Registrations, err = m.Int64Counter("toolrack.registry.registrations",
		metric.WithDescription("Total runtime tool registration attempts by status."),
	); err != nil {
		return nil, err
	}
	if met.Unregistrations, err = m.Int64Counter("toolrack.registry.unregistrations",
		metric.WithDescription("Total runtime tool unregistration attempts by status."),
	); err != nil {
		return nil, err
	}
	if met.RegistrySize, err = m.Int64UpDownCounter("toolrack.registry.size",
		metric.WithDescription("Current number of registered tools by origin."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: creating default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordDispatch records one dispatch outcome on both the duration histogram
// and the call counter.
func (m *Metrics) RecordDispatch(ctx context.Context, tool, status string, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("status", status),
	)
	m.DispatchDuration.Record(ctx, elapsed.Seconds(), attrs)
	m.Dispatches.Add(ctx, 1, attrs)
}
