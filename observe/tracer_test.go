package observe

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestCacheMeta_Names(t *testing.T) {
	tests := []struct {
		meta     CacheMeta
		wantSpan string
		wantID   string
	}{
		{CacheMeta{Name: "fib", Strategy: "ttl"}, "cache.compute.fib", "ttl.fib"},
		{CacheMeta{Name: "fib"}, "cache.compute.fib", "fib"},
	}
	for _, tt := range tests {
		if got := tt.meta.SpanName(); got != tt.wantSpan {
			t.Errorf("SpanName() = %q, want %q", got, tt.wantSpan)
		}
		if got := tt.meta.ID(); got != tt.wantID {
			t.Errorf("ID() = %q, want %q", got, tt.wantID)
		}
	}
}

func TestCacheMeta_Validate(t *testing.T) {
	if err := (CacheMeta{}).Validate(); !errors.Is(err, ErrMissingCacheName) {
		t.Errorf("Validate() = %v, want ErrMissingCacheName", err)
	}
	if err := (CacheMeta{Name: "x"}).Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func attrMap(kvs []attribute.KeyValue) map[attribute.Key]attribute.Value {
	m := make(map[attribute.Key]attribute.Value, len(kvs))
	for _, kv := range kvs {
		m[kv.Key] = kv.Value
	}
	return m
}

func TestTracer_SpanAttributes(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := NewTracer(tp.Tracer("test"))

	_, span := tracer.StartSpan(context.Background(), CacheMeta{Name: "fib", Strategy: "lazy"})
	tracer.EndSpan(span, nil)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	attrs := attrMap(spans[0].Attributes())
	if attrs["cache.id"].AsString() != "lazy.fib" {
		t.Errorf("cache.id = %v", attrs["cache.id"])
	}
	if attrs["cache.strategy"].AsString() != "lazy" {
		t.Errorf("cache.strategy = %v", attrs["cache.strategy"])
	}
	if attrs["cache.error"].AsBool() {
		t.Error("cache.error should be false")
	}
	if spans[0].Status().Code != codes.Ok {
		t.Errorf("status = %v, want Ok", spans[0].Status().Code)
	}
}

func TestTracer_ErrorRecording(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := NewTracer(tp.Tracer("test"))

	_, span := tracer.StartSpan(context.Background(), CacheMeta{Name: "broken"})
	tracer.EndSpan(span, errors.New("compute failed"))

	s := recorder.Ended()[0]
	if s.Status().Code != codes.Error {
		t.Errorf("status = %v, want Error", s.Status().Code)
	}
	if !attrMap(s.Attributes())["cache.error"].AsBool() {
		t.Error("cache.error should be true")
	}
	if len(s.Events()) == 0 {
		t.Error("expected error event")
	}
}

func TestTracer_NilFallsBackToNoop(t *testing.T) {
	tracer := NewTracer(nil)
	_, span := tracer.StartSpan(context.Background(), CacheMeta{Name: "noop"})
	tracer.EndSpan(span, nil)
}
