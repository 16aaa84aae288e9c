package store

import "context"

// KV defines the generic key-value collaborator behind the checkpoint store
// and the result cache. TTL and expiry are enforced by the consuming
// component by comparing stored timestamps against the current time; the
// collaborator itself only stores and returns opaque bytes.
// Version: 1.0
type KV interface {
	// Get retrieves the value stored under key.
	// Returns ErrKeyNotFound if the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, overwriting any existing value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes the value stored under key.
	// Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
