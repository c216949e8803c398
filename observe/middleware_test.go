package observe

import (
	"bytes"
	"context"
	"errors"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

type testTelemetry struct {
	mw       *Middleware
	spans    *tracetest.SpanRecorder
	reader   *sdkmetric.ManualReader
	logs     *bytes.Buffer
	provider *sdktrace.TracerProvider
}

func newTestTelemetry(t *testing.T) *testTelemetry {
	t.Helper()
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	metrics, reader := newTestMetrics(t)
	var logs bytes.Buffer
	return &testTelemetry{
		mw:       NewMiddleware(NewTracer(tp.Tracer("test")), metrics, NewLoggerWithWriter("debug", &logs)),
		spans:    spans,
		reader:   reader,
		logs:     &logs,
		provider: tp,
	}
}

func TestCompute_SuccessPath(t *testing.T) {
	tel := newTestTelemetry(t)
	meta := CacheMeta{Name: "ok"}

	got, err := Compute(context.Background(), tel.mw, meta, func(context.Context) (string, error) {
		return "result", nil
	})
	if err != nil || got != "result" {
		t.Fatalf("Compute() = %q, %v", got, err)
	}

	if spans := tel.spans.Ended(); len(spans) != 1 || spans[0].Name() != "cache.compute.ok" {
		t.Fatalf("unexpected spans: %v", spans)
	}
	if got := sumValue(t, findMetric(collect(t, tel.reader), "cache.compute.total")); got != 1 {
		t.Errorf("cache.compute.total = %d, want 1", got)
	}
	if e := decodeLines(t, tel.logs)[0]; e["msg"] != "computation completed" {
		t.Errorf("unexpected log: %v", e)
	}
}

func TestCompute_ErrorPropagatesUnchanged(t *testing.T) {
	tel := newTestTelemetry(t)
	sentinel := errors.New("compute failed")

	_, err := Compute(context.Background(), tel.mw, CacheMeta{Name: "bad"}, func(context.Context) (int, error) {
		return 0, sentinel
	})
	if err != sentinel {
		t.Fatalf("err = %v, want sentinel", err)
	}
	if got := sumValue(t, findMetric(collect(t, tel.reader), "cache.compute.errors")); got != 1 {
		t.Errorf("cache.compute.errors = %d, want 1", got)
	}
	e := decodeLines(t, tel.logs)[0]
	if e["level"] != "error" || e["error"] != "compute failed" {
		t.Errorf("unexpected log: %v", e)
	}
}

func TestCompute_PropagatesSpanContext(t *testing.T) {
	tel := newTestTelemetry(t)

	var inner trace.SpanContext
	_, _ = Compute(context.Background(), tel.mw, CacheMeta{Name: "ctx"}, func(ctx context.Context) (int, error) {
		inner = trace.SpanContextFromContext(ctx)
		return 1, nil
	})
	if !inner.IsValid() {
		t.Fatal("expected a valid span context inside the computation")
	}
	if inner.SpanID() != tel.spans.Ended()[0].SpanContext().SpanID() {
		t.Error("computation did not run inside the recorded span")
	}
}

func TestMiddleware_NilIsNoop(t *testing.T) {
	var mw *Middleware
	ctx := context.Background()

	mw.Lookup(ctx, CacheMeta{Name: "nil"}, OutcomeHit)
	mw.Logger(CacheMeta{Name: "nil"}).Info(ctx, "dropped")

	got, err := Compute(ctx, mw, CacheMeta{Name: "nil"}, func(context.Context) (int, error) { return 7, nil })
	if err != nil || got != 7 {
		t.Fatalf("Compute() = %d, %v", got, err)
	}
}

func TestMiddleware_LookupUncacheableLogs(t *testing.T) {
	tel := newTestTelemetry(t)
	tel.mw.Lookup(context.Background(), CacheMeta{Name: "u"}, OutcomeUncacheable)

	if e := decodeLines(t, tel.logs)[0]; e["msg"] != "uncacheable arguments" {
		t.Errorf("unexpected log: %v", e)
	}
}

func TestMiddlewareFromObserver(t *testing.T) {
	obs, err := NewObserver(context.Background(), Config{ServiceName: "svc"})
	if err != nil {
		t.Fatalf("NewObserver failed: %v", err)
	}
	mw, err := MiddlewareFromObserver(obs)
	if err != nil {
		t.Fatalf("MiddlewareFromObserver failed: %v", err)
	}
	if mw == nil {
		t.Fatal("expected non-nil middleware")
	}
}
