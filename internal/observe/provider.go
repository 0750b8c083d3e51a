package observe

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ProviderConfig configures the OpenTelemetry SDK providers.
type ProviderConfig struct {
	// ServiceName is the service name reported in telemetry. Default: "toolrack".
	ServiceName string

	// ServiceVersion is the service version reported in telemetry.
	ServiceVersion string
}

// dispatchDurationView pins the dispatch-latency histogram to the toolrack
// bucket layout at the provider level, so the Prometheus scrape output keeps
// the same buckets even if the instrument's own hint is ever dropped.
var dispatchDurationView = sdkmetric.NewView(
	sdkmetric.Instrument{Name: "toolrack.dispatch.duration"},
	sdkmetric.Stream{
		Aggregation: sdkmetric.AggregationExplicitBucketHistogram{
			Boundaries: latencyBuckets,
		},
	},
)

// InitProvider initialises the OTel SDK for toolrack. It sets up:
//
//   - A [sdkmetric.MeterProvider] with a Prometheus exporter so the dispatch
//     and registry metrics can be scraped from the admin /metrics endpoint.
//   - A [sdktrace.TracerProvider] without an exporter: dispatch spans exist
//     for the trace_id/span_id correlation [Logger] folds into log records,
//     not for a tracing backend.
//
// Both providers are registered as the global OTel providers.
//
// Returns a shutdown function that flushes and closes the providers. Call it
// in a defer from main().
func InitProvider(ctx context.Context, cfg ProviderConfig) (shutdown func(context.Context) error, err error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "toolrack"
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	promExp, err := promexporter.New()
	if err != nil {
		return nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExp),
		sdkmetric.WithView(dispatchDurationView),
	)
	otel.SetMeterProvider(mp)

	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)

	shutdown = func(ctx context.Context) error {
		return errors.Join(mp.Shutdown(ctx), tp.Shutdown(ctx))
	}
	return shutdown, nil
}
