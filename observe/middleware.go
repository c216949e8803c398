package observe

import (
	"context"
	"time"
)

// Middleware bundles the tracer, metrics and logger a cache reports through.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Nil: every method accepts a nil receiver and does nothing.
//   - Errors: errors from computations are recorded and propagated unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a Middleware from its parts. Nil parts become no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = newNoopTracer()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}

// Logger returns a logger scoped to meta.
func (m *Middleware) Logger(meta CacheMeta) Logger {
	if m == nil {
		return noopLogger{}
	}
	return m.logger.WithCache(meta)
}

// Lookup records the outcome of one cache lookup.
func (m *Middleware) Lookup(ctx context.Context, meta CacheMeta, outcome Outcome) {
	if m == nil {
		return
	}
	m.metrics.RecordLookup(ctx, meta, outcome)
	if outcome == OutcomeUncacheable {
		m.logger.WithCache(meta).Debug(ctx, "uncacheable arguments")
	}
}

// Compute runs fn inside a span and records its duration and error.
// It is a function rather than a method because methods cannot be generic.
func Compute[V any](ctx context.Context, m *Middleware, meta CacheMeta, fn func(context.Context) (V, error)) (V, error) {
	if m == nil {
		return fn(ctx)
	}

	ctx, span := m.tracer.StartSpan(ctx, meta)
	start := time.Now()

	result, err := fn(ctx)

	duration := time.Since(start)
	m.tracer.EndSpan(span, err)
	m.metrics.RecordCompute(ctx, meta, duration, err)

	fields := []Field{{Key: "duration_ms", Value: float64(duration.Milliseconds())}}
	if err != nil {
		fields = append(fields, Field{Key: "error", Value: err.Error()})
		m.logger.WithCache(meta).Error(ctx, "computation failed", fields...)
	} else {
		m.logger.WithCache(meta).Debug(ctx, "computation completed", fields...)
	}

	return result, err
}
