package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/memokit/observe"
)

// TTLConfig configures a TTLCache.
type TTLConfig[V any] struct {
	// Name identifies the cache in errors and telemetry.
	Name string

	// Window is how long a result stays fresh. With the zero Window a result
	// expires as soon as the clock advances.
	Window Window

	// Clone isolates stored results from callers. When nil, V must implement
	// Cloner[V] or be a plain value type.
	Clone CloneFunc[V]

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time

	// PerKey replaces the cache-wide serialization with one in-flight
	// computation per key, so unrelated calls run concurrently.
	PerKey bool

	// Telemetry is optional.
	Telemetry *observe.Middleware
}

// TTLCache memoizes results for a time window. Every stored and every
// returned result is a clone, so callers may mutate what they receive.
//
// By default one lock is held from the freshness decision through the
// computation, so at most one computation runs at a time per cache. The
// context handed to the wrapped function carries that lock: nested calls to
// the same cache made with it do not block.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: failed computations are returned and nothing is recorded.
type TTLCache[V any] struct {
	fn     Func[V]
	window time.Duration
	clone  CloneFunc[V]
	now    func() time.Time
	perKey bool
	in     instrument

	serial  sync.Mutex
	mu      sync.Mutex
	entries map[CallKey]ttlEntry[V]
	flights singleflight.Group
}

type ttlEntry[V any] struct {
	value      V
	computedAt time.Time
}

// holding marks a context whose goroutine chain holds a cache's serial lock.
type holding struct{ owner any }

// NewTTLCache wraps fn.
func NewTTLCache[V any](fn Func[V], cfg TTLConfig[V]) (*TTLCache[V], error) {
	if fn == nil {
		return nil, ErrNilFunc
	}
	if err := cfg.Window.Validate(); err != nil {
		return nil, err
	}
	clone, err := ResolveClone(cfg.Clone)
	if err != nil {
		return nil, fmt.Errorf("ttl cache %q: %w", cfg.Name, err)
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &TTLCache[V]{
		fn:      fn,
		window:  cfg.Window.Duration(),
		clone:   clone,
		now:     now,
		perKey:  cfg.PerKey,
		in:      newInstrument(cfg.Name, StrategyTTL, cfg.Telemetry),
		entries: make(map[CallKey]ttlEntry[V]),
	}, nil
}

// Invoke returns a clone of the stored result for args while it is fresh,
// otherwise computes, stores a clone and returns the computed value.
func (c *TTLCache[V]) Invoke(ctx context.Context, args Args) (V, error) {
	var zero V
	key, err := callKey(args)
	if err != nil {
		return zero, c.in.rejectArgs(ctx, args, err)
	}
	if c.perKey {
		return c.invokeShared(ctx, key, args)
	}

	marker := holding{owner: c}
	if ctx.Value(marker) == nil {
		c.serial.Lock()
		defer c.serial.Unlock()
		ctx = context.WithValue(ctx, marker, struct{}{})
	}

	now := c.now()
	if v, ok := c.fresh(key, now); ok {
		c.in.hit(ctx)
		return c.clone(v), nil
	}
	c.in.miss(ctx)
	v, err := compute(ctx, c.in, c.fn, args)
	if err != nil {
		return zero, err
	}
	c.record(key, c.clone(v), now)
	return v, nil
}

// invokeShared deduplicates concurrent computations of one key. Freshness is
// checked again inside the flight so a key recomputes at most once per window.
//
// The flight runs under the context of the caller that started it, with its
// values but without its cancellation: callers that joined the flight still
// get the result when the first one gives up.
func (c *TTLCache[V]) invokeShared(ctx context.Context, key CallKey, args Args) (V, error) {
	var zero V
	if v, ok := c.fresh(key, c.now()); ok {
		c.in.hit(ctx)
		return c.clone(v), nil
	}
	res, err, shared := c.flights.Do(string(key), func() (any, error) {
		fctx := context.WithoutCancel(ctx)
		now := c.now()
		if v, ok := c.fresh(key, now); ok {
			c.in.hit(fctx)
			return c.clone(v), nil
		}
		c.in.miss(fctx)
		v, err := compute(fctx, c.in, c.fn, args)
		if err != nil {
			return nil, err
		}
		c.record(key, c.clone(v), now)
		return v, nil
	})
	if err != nil {
		return zero, err
	}
	v, _ := res.(V)
	if shared {
		v = c.clone(v)
	}
	return v, nil
}

// Call is Invoke with positional arguments only.
func (c *TTLCache[V]) Call(ctx context.Context, positional ...any) (V, error) {
	return c.Invoke(ctx, Positional(positional...))
}

// Func returns the cached computation with the wrapped function's signature.
func (c *TTLCache[V]) Func() Func[V] {
	return c.Invoke
}

// Len returns the number of recorded keys, fresh or stale.
func (c *TTLCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Purge drops every recorded result.
func (c *TTLCache[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

func (c *TTLCache[V]) fresh(key CallKey, now time.Time) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || now.Sub(e.computedAt) > c.window {
		var zero V
		return zero, false
	}
	return e.value, true
}

func (c *TTLCache[V]) record(key CallKey, v V, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = ttlEntry[V]{value: v, computedAt: at}
}
