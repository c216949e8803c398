package cache

import (
	"context"

	"github.com/jonwraymond/memokit/observe"
)

// Strategy names reported in telemetry.
const (
	StrategyTTL  = "ttl"
	StrategyDisk = "disk"
	StrategyMemo = "memo"
	StrategyLazy = "lazy"
)

// defaultName labels caches configured without a name.
const defaultName = "anonymous"

// instrument binds a cache's identity to its telemetry middleware.
// A nil middleware makes every method a no-op.
type instrument struct {
	meta observe.CacheMeta
	mw   *observe.Middleware
	log  observe.Logger
}

func newInstrument(name, strategy string, mw *observe.Middleware) instrument {
	if name == "" {
		name = defaultName
	}
	meta := observe.CacheMeta{Name: name, Strategy: strategy}
	return instrument{meta: meta, mw: mw, log: mw.Logger(meta)}
}

func (in instrument) name() string { return in.meta.Name }

func (in instrument) hit(ctx context.Context)  { in.mw.Lookup(ctx, in.meta, observe.OutcomeHit) }
func (in instrument) miss(ctx context.Context) { in.mw.Lookup(ctx, in.meta, observe.OutcomeMiss) }

// rejectArgs records an uncacheable lookup and returns the error for it.
func (in instrument) rejectArgs(ctx context.Context, args Args, reason error) error {
	in.mw.Lookup(ctx, in.meta, observe.OutcomeUncacheable)
	return uncacheable(in.meta.Name, args, reason)
}

// compute runs fn under the middleware's span and metrics.
func compute[V any](ctx context.Context, in instrument, fn Func[V], args Args) (V, error) {
	return observe.Compute(ctx, in.mw, in.meta, func(ctx context.Context) (V, error) {
		return fn(ctx, args)
	})
}
