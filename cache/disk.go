package cache

import (
	"context"
	"fmt"

	"github.com/jonwraymond/memokit/observe"
	"github.com/jonwraymond/memokit/store"
)

// KeyFunc maps call arguments to the key a result is persisted under.
// Two calls share a stored result exactly when their keys are equal.
type KeyFunc func(args Args) (string, error)

// DefaultKeyFunc persists results under the canonical CallKey. Pointer and
// channel arguments are rejected: their addresses are not stable across runs.
func DefaultKeyFunc(args Args) (string, error) {
	key, err := persistentKey(args)
	return string(key), err
}

// DiskConfig configures a DiskBackedCache.
type DiskConfig[V any] struct {
	// Name identifies the cache in errors and telemetry, and names the store
	// file for OpenDiskBackedCache.
	Name string

	// KeyFunc defaults to DefaultKeyFunc.
	KeyFunc KeyFunc

	// NoneIsMiss treats a stored "none" result as absent and recomputes it.
	NoneIsMiss bool

	// IsNone decides what counts as "none". Defaults to a nil check.
	IsNone func(V) bool

	// Codec defaults to store.Gob.
	Codec store.Codec

	Telemetry *observe.Middleware
}

// DiskBackedCache writes every computed result through to a store.Store
// before returning it. Results survive process restarts.
//
// Contract:
// - Concurrency: safe for concurrent use. Concurrent misses on one key may
//   each compute.
// - Errors: failed computations write nothing. A result that was computed
//   but could not be stored is returned together with an error wrapping
//   ErrStorageUnavailable or ErrNotPersistable.
type DiskBackedCache[V any] struct {
	fn         Func[V]
	st         store.Store
	keyFn      KeyFunc
	noneIsMiss bool
	isNone     func(V) bool
	codec      store.Codec
	in         instrument
}

// NewDiskBackedCache wraps fn, persisting results in st. The cache takes
// ownership of st and closes it in Close.
func NewDiskBackedCache[V any](fn Func[V], st store.Store, cfg DiskConfig[V]) (*DiskBackedCache[V], error) {
	if fn == nil {
		return nil, ErrNilFunc
	}
	if st == nil {
		return nil, fmt.Errorf("%w: nil store", ErrStorageUnavailable)
	}
	codec := cfg.Codec
	if codec == nil {
		codec = store.Gob
	}
	if err := store.CheckPersistable[V](codec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotPersistable, err)
	}
	keyFn := cfg.KeyFunc
	if keyFn == nil {
		keyFn = DefaultKeyFunc
	}
	isNone := cfg.IsNone
	if isNone == nil {
		isNone = isNil[V]
	}
	return &DiskBackedCache[V]{
		fn:         fn,
		st:         st,
		keyFn:      keyFn,
		noneIsMiss: cfg.NoneIsMiss,
		isNone:     isNone,
		codec:      codec,
		in:         newInstrument(cfg.Name, StrategyDisk, cfg.Telemetry),
	}, nil
}

// OpenDiskBackedCache opens (creating if needed) a bbolt store at path and
// wraps fn with it. An empty path defaults to "<name>.shelf~".
func OpenDiskBackedCache[V any](fn Func[V], path string, cfg DiskConfig[V]) (*DiskBackedCache[V], error) {
	if path == "" {
		if cfg.Name == "" {
			return nil, fmt.Errorf("disk cache: %w to derive a store path", ErrMissingName)
		}
		path = cfg.Name + ".shelf~"
	}
	st, err := store.OpenBolt(path, store.BoltOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	c, err := NewDiskBackedCache(fn, st, cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return c, nil
}

// Invoke returns the persisted result for args, or computes, persists and
// returns it.
func (c *DiskBackedCache[V]) Invoke(ctx context.Context, args Args) (V, error) {
	var zero V
	key, err := c.keyFn(args)
	if err != nil {
		return zero, c.in.rejectArgs(ctx, args, err)
	}

	data, ok, err := c.st.Get(ctx, key)
	if err != nil {
		return zero, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	if ok {
		v, err := store.Decode[V](c.codec, data)
		switch {
		case err != nil:
			c.in.log.Warn(ctx, "discarding undecodable stored result",
				observe.Field{Key: "key", Value: key},
				observe.Field{Key: "error", Value: err.Error()})
		case c.noneIsMiss && c.isNone(v):
		default:
			c.in.hit(ctx)
			return v, nil
		}
	}

	c.in.miss(ctx)
	v, err := compute(ctx, c.in, c.fn, args)
	if err != nil {
		return zero, err
	}
	if err := c.persist(ctx, key, v); err != nil {
		return v, err
	}
	return v, nil
}

func (c *DiskBackedCache[V]) persist(ctx context.Context, key string, v V) error {
	data, err := store.Encode(c.codec, v)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotPersistable, err)
	}
	if err := c.st.Put(ctx, key, data); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	if err := c.st.Flush(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return nil
}

// Call is Invoke with positional arguments only.
func (c *DiskBackedCache[V]) Call(ctx context.Context, positional ...any) (V, error) {
	return c.Invoke(ctx, Positional(positional...))
}

// Func returns the cached computation with the wrapped function's signature.
func (c *DiskBackedCache[V]) Func() Func[V] {
	return c.Invoke
}

// Store returns the underlying store.
func (c *DiskBackedCache[V]) Store() store.Store {
	return c.st
}

// Close closes the underlying store. Every result is already on disk, so
// there is nothing to flush.
func (c *DiskBackedCache[V]) Close(context.Context) error {
	if err := c.st.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return nil
}
