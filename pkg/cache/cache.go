// Package cache stores derived per-file data between runs.
//
// The asset graph loader caches the parse result of every text asset, keyed by
// the asset's path, size and modification time, so an unchanged project is
// re-validated without re-reading its files. [FileCache] is the on-disk
// implementation used by the CLI; [NullCache] disables caching.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store.
type Cache interface {
	// Get returns the value for key. A miss is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data under key. A zero ttl never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Close() error
}
