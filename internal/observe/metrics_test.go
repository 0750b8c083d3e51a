package observe

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m.DispatchDuration == nil || m.Dispatches == nil || m.Registrations == nil ||
		m.Unregistrations == nil || m.RegistrySize == nil {
		t.Error("NewMetrics left an instrument nil")
	}
}

func TestRecordDispatch_RecordsHistogramAndCounter(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordDispatch(ctx, "echo", "ok", 25*time.Millisecond)
	m.RecordDispatch(ctx, "echo", "ok", 15*time.Millisecond)
	m.RecordDispatch(ctx, "missing", "unknown_tool", time.Millisecond)

	rm := collect(t, reader)

	calls := findMetric(rm, "toolrack.dispatch.calls")
	if calls == nil {
		t.Fatal("toolrack.dispatch.calls not found")
	}
	sum, ok := calls.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("dispatch.calls data type = %T, want Sum[int64]", calls.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	if total != 3 {
		t.Errorf("total dispatch calls = %d, want 3", total)
	}

	dur := findMetric(rm, "toolrack.dispatch.duration")
	if dur == nil {
		t.Fatal("toolrack.dispatch.duration not found")
	}
	hist, ok := dur.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("dispatch.duration data type = %T, want Histogram[float64]", dur.Data)
	}
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	if count != 3 {
		t.Errorf("histogram count = %d, want 3", count)
	}
}

func TestRegistrySize_UpAndDown(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String("origin", "runtime"))

	m.RegistrySize.Add(ctx, 1, attrs)
	m.RegistrySize.Add(ctx, 1, attrs)
	m.RegistrySize.Add(ctx, -1, attrs)

	rm := collect(t, reader)
	size := findMetric(rm, "toolrack.registry.size")
	if size == nil {
		t.Fatal("toolrack.registry.size not found")
	}
	sum, ok := size.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("registry.size data type = %T, want Sum[int64]", size.Data)
	}
	if len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 1 {
		t.Errorf("registry size = %+v, want single data point of 1", sum.DataPoints)
	}
}
