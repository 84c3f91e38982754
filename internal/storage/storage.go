package storage

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned when a session has no value for the requested key
var ErrKeyNotFound = errors.New("key not found")

// Store persists per-session key/value state. Implementations must be safe
// for concurrent use.
type Store interface {
	// Get returns the value for key in the given session, or ErrKeyNotFound
	Get(ctx context.Context, sessionID, key string) (string, error)

	// Set stores a value for key in the given session
	Set(ctx context.Context, sessionID, key, value string) error

	// Delete removes the given keys from a session. Missing keys are not an error.
	Delete(ctx context.Context, sessionID string, keys ...string) error

	// Clear removes all state for a session
	Clear(ctx context.Context, sessionID string) error

	// Close releases any underlying resources
	Close() error
}
