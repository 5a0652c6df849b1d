// Package store provides the local key-value persistence used by simctl:
// a minimal get/set/remove/clear/keys contract with a JSON-file backend for
// normal use and an in-memory backend for tests and ephemeral runs. The job
// repository and the settings record are built on top of it.
package store

import "context"

// Store is the uniform async key-value contract. Values are raw JSON.
// Read failures are degraded by callers (logged, treated as absent); write
// failures propagate.
type Store interface {
	// Get returns the value for key. The bool reports presence.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key, overwriting any existing value.
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	// Clear deletes every key.
	Clear(ctx context.Context) error

	// Keys returns all stored keys.
	Keys(ctx context.Context) ([]string, error)
}
