// Package cache memoizes function results.
//
// Four independent strategies wrap a Func and expose the same call
// signature:
//
//   - TTLCache recomputes a call once its time window has elapsed. Stored and
//     returned results are isolated clones, and computation is serialized.
//   - DiskBackedCache writes every result through to a store.Store keyed by a
//     caller-supplied KeyFunc.
//   - Memoizer keeps every result for the life of the process.
//   - LazyPersistentCache memoizes in memory, loads a versioned snapshot on
//     first use and writes it back once, on Close.
//
// Calls are identified by a CallKey built from positional arguments in order
// and keyword arguments sorted by name. Arguments that are not comparable
// (slices, maps, funcs, or values containing them) cannot form a key, and
// every such call fails with ErrUncacheableArguments.
//
// # Usage
//
//	fib, err := cache.NewTTLCache(fetchRates, cache.TTLConfig[[]Rate]{
//	    Name:   "rates",
//	    Window: cache.Window{Minutes: 5},
//	    Clone:  cache.CloneSlice[[]Rate],
//	})
//	rates, err := fib.Call(ctx, "EUR")
package cache
