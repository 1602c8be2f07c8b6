// ABOUTME: Durable key-value interface backing the seen-marker store
// ABOUTME: Defines KV and the errors shared by the SQLite, Redis and mock backends

package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key has never been written
var ErrNotFound = errors.New("not found")

// ErrClosed is returned by operations on a closed store
var ErrClosed = errors.New("store closed")

// KV is a small durable key-value store. Values are opaque bytes; callers own
// the encoding. Put overwrites unconditionally.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}
