package cache

import (
	"context"
	"sync"

	"github.com/jonwraymond/memokit/observe"
)

// MemoizerConfig configures a Memoizer.
type MemoizerConfig struct {
	Name      string
	Telemetry *observe.Middleware
}

// Memoizer keeps every successful result for the life of the process.
// Stored values are returned as-is, without cloning, so callers must not
// mutate them.
//
// Contract:
// - Concurrency: safe for concurrent use. Concurrent misses on one key may
//   each compute; the last result stored wins.
// - Errors: failed computations are returned and nothing is recorded.
type Memoizer[V any] struct {
	fn Func[V]
	in instrument

	mu      sync.RWMutex
	entries map[CallKey]V
}

// NewMemoizer wraps fn.
func NewMemoizer[V any](fn Func[V], cfg MemoizerConfig) (*Memoizer[V], error) {
	if fn == nil {
		return nil, ErrNilFunc
	}
	return &Memoizer[V]{
		fn:      fn,
		in:      newInstrument(cfg.Name, StrategyMemo, cfg.Telemetry),
		entries: make(map[CallKey]V),
	}, nil
}

// Invoke returns the stored result for args, computing it on first use.
func (m *Memoizer[V]) Invoke(ctx context.Context, args Args) (V, error) {
	var zero V
	key, err := callKey(args)
	if err != nil {
		return zero, m.in.rejectArgs(ctx, args, err)
	}

	m.mu.RLock()
	v, ok := m.entries[key]
	m.mu.RUnlock()
	if ok {
		m.in.hit(ctx)
		return v, nil
	}

	m.in.miss(ctx)
	v, err = compute(ctx, m.in, m.fn, args)
	if err != nil {
		return zero, err
	}
	m.mu.Lock()
	m.entries[key] = v
	m.mu.Unlock()
	return v, nil
}

// Call is Invoke with positional arguments only.
func (m *Memoizer[V]) Call(ctx context.Context, positional ...any) (V, error) {
	return m.Invoke(ctx, Positional(positional...))
}

// Func returns the memoized computation with the wrapped function's signature.
func (m *Memoizer[V]) Func() Func[V] {
	return m.Invoke
}

// Len returns the number of stored results.
func (m *Memoizer[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
