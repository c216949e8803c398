package store

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"slices"

	"github.com/klauspost/compress/zstd"
)

// Snapshot errors.
var (
	ErrSnapshotNotFound   = errors.New("store: snapshot not found")
	ErrSnapshotUnreadable = errors.New("store: snapshot unreadable")
)

// Snapshot is a point-in-time copy of an in-memory cache and the version tag
// it was written under.
type Snapshot[V any] struct {
	Version string
	Entries map[string]V
}

// On disk: a zstd frame around one gob value of snapshotFile.
type snapshotFile[V any] struct {
	Version string
	Entries []snapshotEntry[V]
}

// NonNil has the same role as in envelope.
type snapshotEntry[V any] struct {
	Key    string
	NonNil bool
	Value  V
}

// WriteSnapshot replaces the file at path with snap. The data is written to a
// temporary file in the same directory and renamed into place, so readers see
// either the old snapshot or the new one.
func WriteSnapshot[V any](path string, snap Snapshot[V]) (err error) {
	keys := make([]string, 0, len(snap.Entries))
	for k := range snap.Entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	file := snapshotFile[V]{
		Version: snap.Version,
		Entries: make([]snapshotEntry[V], 0, len(keys)),
	}
	for _, k := range keys {
		v := snap.Entries[k]
		file.Entries = append(file.Entries, snapshotEntry[V]{
			Key:    k,
			NonNil: !isNil(reflect.ValueOf(&v).Elem()),
			Value:  v,
		})
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	zw, err := zstd.NewWriter(tmp)
	if err != nil {
		return fmt.Errorf("store: zstd writer: %w", err)
	}
	if err := gob.NewEncoder(zw).Encode(file); err != nil {
		_ = zw.Close()
		return fmt.Errorf("store: encode snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// ReadSnapshot loads the snapshot at path. A missing file is
// ErrSnapshotNotFound; anything else that prevents a full decode is
// ErrSnapshotUnreadable.
func ReadSnapshot[V any](path string) (Snapshot[V], error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Snapshot[V]{}, fmt.Errorf("%w: %s", ErrSnapshotNotFound, path)
		}
		return Snapshot[V]{}, fmt.Errorf("%w: %v", ErrSnapshotUnreadable, err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return Snapshot[V]{}, fmt.Errorf("%w: %v", ErrSnapshotUnreadable, err)
	}
	defer zr.Close()

	var file snapshotFile[V]
	if err := gob.NewDecoder(zr).Decode(&file); err != nil {
		return Snapshot[V]{}, fmt.Errorf("%w: %v", ErrSnapshotUnreadable, err)
	}

	snap := Snapshot[V]{
		Version: file.Version,
		Entries: make(map[string]V, len(file.Entries)),
	}
	for _, e := range file.Entries {
		snap.Entries[e.Key] = restore(e.Value, e.NonNil)
	}
	return snap, nil
}

// SnapshotVersion reads only the version tag of the snapshot at path, without
// knowing the type of its entries.
func SnapshotVersion(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrSnapshotNotFound, path)
		}
		return "", fmt.Errorf("%w: %v", ErrSnapshotUnreadable, err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSnapshotUnreadable, err)
	}
	defer zr.Close()

	// gob skips the Entries field this type does not declare.
	var header struct{ Version string }
	if err := gob.NewDecoder(zr).Decode(&header); err != nil {
		return "", fmt.Errorf("%w: %v", ErrSnapshotUnreadable, err)
	}
	return header.Version, nil
}
