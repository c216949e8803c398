package observe

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	return rm
}

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

func sumValue(t *testing.T, m *metricdata.Metrics) int64 {
	t.Helper()
	if m == nil {
		return 0
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %s is %T, want Sum[int64]", m.Name, m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetrics_LookupOutcomes(t *testing.T) {
	m, reader := newTestMetrics(t)
	meta := CacheMeta{Name: "lookup", Strategy: "memo"}
	ctx := context.Background()

	m.RecordLookup(ctx, meta, OutcomeHit)
	m.RecordLookup(ctx, meta, OutcomeHit)
	m.RecordLookup(ctx, meta, OutcomeMiss)

	lookups := findMetric(collect(t, reader), "cache.lookups")
	if lookups == nil {
		t.Fatal("cache.lookups metric not found")
	}
	sum := lookups.Data.(metricdata.Sum[int64])
	byOutcome := map[string]int64{}
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value(attribute.Key("cache.outcome"))
		byOutcome[v.AsString()] += dp.Value
	}
	if byOutcome["hit"] != 2 || byOutcome["miss"] != 1 {
		t.Errorf("unexpected outcomes: %v", byOutcome)
	}
}

func TestMetrics_ComputeCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	meta := CacheMeta{Name: "compute"}
	ctx := context.Background()

	m.RecordCompute(ctx, meta, 5*time.Millisecond, nil)
	m.RecordCompute(ctx, meta, 7*time.Millisecond, errors.New("boom"))

	rm := collect(t, reader)
	if got := sumValue(t, findMetric(rm, "cache.compute.total")); got != 2 {
		t.Errorf("cache.compute.total = %d, want 2", got)
	}
	if got := sumValue(t, findMetric(rm, "cache.compute.errors")); got != 1 {
		t.Errorf("cache.compute.errors = %d, want 1", got)
	}

	hist := findMetric(rm, "cache.compute.duration_ms")
	if hist == nil {
		t.Fatal("duration histogram not found")
	}
	h := hist.Data.(metricdata.Histogram[float64])
	var count uint64
	for _, dp := range h.DataPoints {
		count += dp.Count
	}
	if count != 2 {
		t.Errorf("histogram count = %d, want 2", count)
	}
}

func TestMetrics_ConcurrentRecording(t *testing.T) {
	m, reader := newTestMetrics(t)
	meta := CacheMeta{Name: "concurrent"}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordLookup(context.Background(), meta, OutcomeMiss)
		}()
	}
	wg.Wait()

	if got := sumValue(t, findMetric(collect(t, reader), "cache.lookups")); got != 50 {
		t.Errorf("cache.lookups = %d, want 50", got)
	}
}
