// Package store holds the key-value persistence adapter used by the
// progress tracking engine. The contract is deliberately small: get, set,
// delete and prefix scan, no multi-key transactions. Callers compose keys
// as "<family>:<userID>:<objectID>".
package store

import (
	"context"
	"errors"
)

var ErrKeyNotFound = errors.New("key not found")

type KV interface {
	// Get returns the value stored under key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// ScanKeys returns all keys starting with prefix, in no particular order.
	ScanKeys(ctx context.Context, prefix string) ([]string, error)
	// ScanPrefix returns the values of all keys starting with prefix,
	// in no particular order.
	ScanPrefix(ctx context.Context, prefix string) ([][]byte, error)
}
