package ports

import "context"

// KeyValueStore defines the contract for the durable key-value storage
// the alert forwarder persists its queue in.
//
// Get returns (nil, nil) for an absent key; callers are expected to treat
// an absent or undecodable value as an empty collection rather than an
// error. Set overwrites unconditionally.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error

	// Lifecycle
	Close() error
}
