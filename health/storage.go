package health

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/jonwraymond/memokit/store"
)

// NewStoreChecker reports Unhealthy when p cannot be pinged.
func NewStoreChecker(name string, p store.Pinger) Checker {
	return NewCheckerFunc(name, func(ctx context.Context) Result {
		if err := p.Ping(ctx); err != nil {
			return Unhealthy("store unreachable", err)
		}
		return Healthy("store reachable")
	})
}

// NewSnapshotChecker inspects the snapshot file at path.
//
//   - Unhealthy: the directory cannot be written, so a flush would fail.
//   - Degraded: the snapshot is missing or unreadable; the cache starts empty.
//   - Healthy: the snapshot decodes. Details carry its version.
func NewSnapshotChecker(name, path string) Checker {
	return NewCheckerFunc(name, func(ctx context.Context) Result {
		if err := ctx.Err(); err != nil {
			return Unhealthy("check canceled", err)
		}
		details := map[string]any{"path": path}
		if err := checkWritable(filepath.Dir(path)); err != nil {
			return Unhealthy("snapshot directory not writable", err).WithDetails(details)
		}
		version, err := store.SnapshotVersion(path)
		switch {
		case errors.Is(err, store.ErrSnapshotNotFound):
			return Degraded("no snapshot yet").WithDetails(details)
		case err != nil:
			r := Degraded("snapshot unreadable").WithDetails(details)
			r.Error = err
			return r
		}
		details["version"] = version
		return Healthy("snapshot readable").WithDetails(details)
	})
}

// checkWritable creates and removes a temporary file in dir. A missing dir
// counts as writable when its nearest existing parent is.
func checkWritable(dir string) error {
	for {
		if _, err := os.Stat(dir); err == nil {
			break
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	f, err := os.CreateTemp(dir, ".memokit-health-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}
