package store

import (
	"bytes"
	"context"
	"fmt"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"
)

// DefaultBucket is the bucket used when BoltOptions.Bucket is empty.
const DefaultBucket = "results"

// BoltOptions configures OpenBolt.
type BoltOptions struct {
	// Bucket names the bbolt bucket holding the entries.
	Bucket string

	// Timeout bounds how long Open waits for the file lock held by another
	// process. Zero waits forever, which is bbolt's default.
	Timeout time.Duration
}

// Bolt is a Store backed by a single bbolt file. Every Put commits its own
// transaction, so each write is on disk before Put returns.
type Bolt struct {
	db     *bolt.DB
	bucket []byte
	closed atomic.Bool
}

// OpenBolt opens (creating if needed) the bbolt file at path.
func OpenBolt(path string, opts BoltOptions) (*Bolt, error) {
	if opts.Bucket == "" {
		opts.Bucket = DefaultBucket
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: opts.Timeout})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrUnavailable, path, err)
	}

	bucket := []byte(opts.Bucket)
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: create bucket %q: %v", ErrUnavailable, opts.Bucket, err)
	}

	return &Bolt{db: db, bucket: bucket}, nil
}

// Path returns the file backing the store.
func (b *Bolt) Path() string {
	return b.db.Path()
}

func (b *Bolt) Get(_ context.Context, key string) ([]byte, bool, error) {
	if b.closed.Load() {
		return nil, false, ErrClosed
	}

	var out []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		// Values are only valid inside the transaction.
		if v := tx.Bucket(b.bucket).Get([]byte(key)); v != nil {
			out = bytes.Clone(v)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("%w: get %q: %v", ErrUnavailable, key, err)
	}
	return out, out != nil, nil
}

func (b *Bolt) Put(_ context.Context, key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if b.closed.Load() {
		return ErrClosed
	}

	// bbolt treats a nil value as absent; store an empty slice instead.
	if value == nil {
		value = []byte{}
	}

	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(b.bucket).Put([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("%w: put %q: %v", ErrUnavailable, key, err)
	}
	return nil
}

// Flush forces an fsync of the database file. Commits already sync, so this
// only matters when the DB was opened with NoSync by another handle.
func (b *Bolt) Flush(context.Context) error {
	if b.closed.Load() {
		return ErrClosed
	}
	if err := b.db.Sync(); err != nil {
		return fmt.Errorf("%w: sync: %v", ErrUnavailable, err)
	}
	return nil
}

// Ping runs an empty read transaction.
func (b *Bolt) Ping(context.Context) error {
	if b.closed.Load() {
		return ErrClosed
	}
	err := b.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(b.bucket) == nil {
			return fmt.Errorf("bucket %q missing", b.bucket)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Len returns the number of stored keys.
func (b *Bolt) Len() (int, error) {
	var n int
	err := b.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(b.bucket).Stats().KeyN
		return nil
	})
	return n, err
}

// Close is idempotent.
func (b *Bolt) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	return b.db.Close()
}

var (
	_ Store  = (*Bolt)(nil)
	_ Pinger = (*Bolt)(nil)
)
