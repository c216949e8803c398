// Package health reports whether the persistence behind the caches is usable.
//
// A Checker reports a Status: Healthy, Degraded, or Unhealthy.
// NewStoreChecker pings a store.Store such as the bbolt file behind a
// DiskBackedCache. NewSnapshotChecker inspects the snapshot location of a
// LazyPersistentCache: a missing or unreadable snapshot is Degraded, since
// the cache simply starts empty, while an unwritable directory is Unhealthy,
// since results will be lost at exit.
//
// # Basic Usage
//
//	agg := health.NewAggregator()
//	agg.Register(health.NewStoreChecker("users", usersStore))
//	agg.Register(health.NewSnapshotChecker("rates", "rates.cache~"))
//
//	results := agg.CheckAll(ctx)
//	if health.OverallStatus(results) == health.StatusUnhealthy {
//	    log.Printf("cache storage failing: %v", results)
//	}
package health
