package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/jonwraymond/memokit/observe"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// square returns n*n for its first positional argument and counts calls.
func square(calls *atomic.Int64) Func[int] {
	return func(_ context.Context, args Args) (int, error) {
		calls.Add(1)
		n := args.Positional[0].(int)
		return n * n, nil
	}
}

// digits returns the decimal digits of n as a fresh slice and counts calls.
func digits(calls *atomic.Int64) Func[[]int] {
	return func(_ context.Context, args Args) ([]int, error) {
		calls.Add(1)
		n := args.Positional[0].(int)
		var out []int
		for ; n > 0; n /= 10 {
			out = append([]int{n % 10}, out...)
		}
		return out, nil
	}
}

type testTelemetry struct {
	mw     *observe.Middleware
	spans  *tracetest.SpanRecorder
	reader *sdkmetric.ManualReader
	logs   *bytes.Buffer
}

func newTestTelemetry(t *testing.T) *testTelemetry {
	t.Helper()
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := observe.NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	var logs bytes.Buffer
	return &testTelemetry{
		mw:     observe.NewMiddleware(observe.NewTracer(tp.Tracer("test")), metrics, observe.NewLoggerWithWriter("debug", &logs)),
		spans:  spans,
		reader: reader,
		logs:   &logs,
	}
}

// lookups sums cache.lookups per outcome.
func (tt *testTelemetry) lookups(t *testing.T) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := tt.reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	out := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "cache.lookups" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("cache.lookups has data %T", m.Data)
			}
			for _, dp := range sum.DataPoints {
				outcome, _ := dp.Attributes.Value(attribute.Key("cache.outcome"))
				out[outcome.AsString()] += dp.Value
			}
		}
	}
	return out
}

// messages returns the msg field of every log line with the given level.
func (tt *testTelemetry) messages(t *testing.T, level string) []string {
	t.Helper()
	var out []string
	dec := json.NewDecoder(bytes.NewReader(tt.logs.Bytes()))
	for dec.More() {
		var entry map[string]any
		if err := dec.Decode(&entry); err != nil {
			t.Fatalf("decode log line: %v", err)
		}
		if entry["level"] == level {
			out = append(out, entry["msg"].(string))
		}
	}
	return out
}
