package store

import (
	"context"
	"errors"
)

// Sentinel errors for store operations.
var (
	ErrUnavailable    = errors.New("store: storage unavailable")
	ErrClosed         = errors.New("store: store is closed")
	ErrInvalidKey     = errors.New("store: key is invalid")
	ErrNotPersistable = errors.New("store: type cannot be persisted")
)

// Store is a durable key-value mapping from persist keys to encoded results.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Durability: a nil error from Put means the value survives a process crash.
// - Ownership: returned slices belong to the caller.
// - Errors: Get returns (nil, false, nil) on a miss.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Flush(ctx context.Context) error
	Close() error
}

// Pinger is implemented by stores that can report their own liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

func validateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	return nil
}
