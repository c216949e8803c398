package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jonwraymond/memokit/observe"
	"github.com/jonwraymond/memokit/store"
)

// LazyConfig configures a LazyPersistentCache.
type LazyConfig struct {
	// Name identifies the cache in errors and telemetry.
	Name string

	// SnapshotPath defaults to "<name>.cache~".
	SnapshotPath string

	// Version tags the snapshot. A snapshot written under another version is
	// discarded on load.
	Version string

	Telemetry *observe.Middleware
}

// LazyPersistentCache memoizes in memory and persists to a snapshot file.
// The snapshot is read on the first Invoke, Call or Peek and written back by
// Flush or Close, only when new results were recorded since the last write.
//
// Contract:
// - Concurrency: safe for concurrent use. Concurrent misses on one key may
//   each compute.
// - Errors: failed computations are returned and nothing is recorded. An
//   unreadable or mismatched snapshot is logged and ignored.
type LazyPersistentCache[V any] struct {
	fn      Func[V]
	path    string
	version string
	in      instrument

	mu      sync.Mutex
	loaded  bool
	dirty   bool
	entries map[CallKey]V

	closeOnce sync.Once
	closeErr  error
}

// NewLazyPersistentCache wraps fn. Nothing is read from disk until first use.
func NewLazyPersistentCache[V any](fn Func[V], cfg LazyConfig) (*LazyPersistentCache[V], error) {
	if fn == nil {
		return nil, ErrNilFunc
	}
	path := cfg.SnapshotPath
	if path == "" {
		if cfg.Name == "" {
			return nil, fmt.Errorf("lazy cache: %w to derive a snapshot path", ErrMissingName)
		}
		path = cfg.Name + ".cache~"
	}
	if err := store.CheckPersistable[V](store.Gob); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotPersistable, err)
	}
	return &LazyPersistentCache[V]{
		fn:      fn,
		path:    path,
		version: cfg.Version,
		in:      newInstrument(cfg.Name, StrategyLazy, cfg.Telemetry),
		entries: make(map[CallKey]V),
	}, nil
}

// Invoke returns the remembered result for args, computing it on first use.
func (c *LazyPersistentCache[V]) Invoke(ctx context.Context, args Args) (V, error) {
	var zero V
	c.mu.Lock()
	c.load(ctx)
	c.mu.Unlock()

	key, err := persistentKey(args)
	if err != nil {
		return zero, c.in.rejectArgs(ctx, args, err)
	}

	c.mu.Lock()
	v, ok := c.entries[key]
	c.mu.Unlock()
	if ok {
		c.in.hit(ctx)
		return v, nil
	}

	c.in.miss(ctx)
	v, err = compute(ctx, c.in, c.fn, args)
	if err != nil {
		return zero, err
	}
	c.mu.Lock()
	c.entries[key] = v
	c.dirty = true
	c.mu.Unlock()
	return v, nil
}

// Call is Invoke with positional arguments only.
func (c *LazyPersistentCache[V]) Call(ctx context.Context, positional ...any) (V, error) {
	return c.Invoke(ctx, Positional(positional...))
}

// Func returns the cached computation with the wrapped function's signature.
func (c *LazyPersistentCache[V]) Func() Func[V] {
	return c.Invoke
}

// Peek returns the remembered result for args without computing.
func (c *LazyPersistentCache[V]) Peek(ctx context.Context, args Args) (V, bool, error) {
	var zero V
	c.mu.Lock()
	defer c.mu.Unlock()
	c.load(ctx)

	key, err := persistentKey(args)
	if err != nil {
		return zero, false, uncacheable(c.in.name(), args, err)
	}
	v, ok := c.entries[key]
	return v, ok, nil
}

// load reads the snapshot once. The caller holds c.mu.
func (c *LazyPersistentCache[V]) load(ctx context.Context) {
	if c.loaded {
		return
	}
	c.loaded = true

	pathField := observe.Field{Key: "path", Value: c.path}
	snap, err := store.ReadSnapshot[V](c.path)
	switch {
	case errors.Is(err, store.ErrSnapshotNotFound):
		c.in.log.Debug(ctx, "no snapshot, starting empty", pathField)
	case err != nil:
		c.in.log.Warn(ctx, "snapshot unreadable, starting empty", pathField,
			observe.Field{Key: "error", Value: err.Error()})
	case snap.Version != c.version:
		c.in.log.Warn(ctx, "snapshot version mismatch, discarding", pathField,
			observe.Field{Key: "snapshot_version", Value: snap.Version},
			observe.Field{Key: "version", Value: c.version})
	default:
		for k, v := range snap.Entries {
			c.entries[CallKey(k)] = v
		}
		c.in.log.Debug(ctx, "snapshot loaded", pathField,
			observe.Field{Key: "entries", Value: len(snap.Entries)})
	}
}

// Flush writes the snapshot if results were recorded since the last write.
// A failed write leaves the cache dirty so a later Flush can retry.
func (c *LazyPersistentCache[V]) Flush(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dirty || len(c.entries) == 0 {
		c.in.log.Debug(ctx, "nothing to save", observe.Field{Key: "path", Value: c.path})
		return nil
	}

	snap := store.Snapshot[V]{Version: c.version, Entries: make(map[string]V, len(c.entries))}
	for k, v := range c.entries {
		snap.Entries[string(k)] = v
	}
	if err := store.WriteSnapshot(c.path, snap); err != nil {
		c.in.log.Warn(ctx, "snapshot save failed",
			observe.Field{Key: "path", Value: c.path},
			observe.Field{Key: "error", Value: err.Error()})
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	c.dirty = false
	c.in.log.Info(ctx, "snapshot saved",
		observe.Field{Key: "path", Value: c.path},
		observe.Field{Key: "entries", Value: len(snap.Entries)})
	return nil
}

// Close flushes once. Later calls return the first result.
func (c *LazyPersistentCache[V]) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		c.closeErr = c.Flush(ctx)
	})
	return c.closeErr
}

// Len returns the number of remembered results, including loaded ones.
func (c *LazyPersistentCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Loaded reports whether the snapshot has been read.
func (c *LazyPersistentCache[V]) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// Dirty reports whether there are results not yet written to the snapshot.
func (c *LazyPersistentCache[V]) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

// Path returns the snapshot file location.
func (c *LazyPersistentCache[V]) Path() string {
	return c.path
}
