package storage

import (
	"context"
	"errors"
)

// ErrUnavailable is returned by a backend that cannot serve requests in this
// browsing context (e.g., the host platform's session store before the host
// has initialized the widget). The token store treats it as a signal to fall
// back to the durable local backend, not as a fatal error.
var ErrUnavailable = errors.New("storage backend unavailable")

// SessionStore is the host platform's session-scoped key-value store.
// It is shared across every widget instance in the same host session and its
// lifetime is controlled by the embedding application, not the widget.
// Writes are last-write-wins with no locking; token writes tolerate that
// because any successfully written token set is usable.
//
// A missing key is not an error: Get returns ("", nil).
type SessionStore interface {
	// Get retrieves a session variable, or "" if absent.
	Get(ctx context.Context, key string) (string, error)

	// Set writes a session variable.
	Set(ctx context.Context, key, value string) error

	// Delete removes a session variable. Deleting an absent key is a no-op.
	Delete(ctx context.Context, key string) error
}

// LocalStore is durable per-browser storage surviving restarts, private to
// one browser profile. It holds the refresh token, the widget's local
// fallback configuration, and (in degraded mode) the access token.
//
// A missing key is not an error: Get returns ("", nil).
type LocalStore interface {
	// Get retrieves a value, or "" if absent.
	Get(ctx context.Context, key string) (string, error)

	// Set writes a value.
	Set(ctx context.Context, key, value string) error

	// Delete removes a value. Deleting an absent key is a no-op.
	Delete(ctx context.Context, key string) error
}

// Backend identifies which physical store currently holds the access token,
// so the UI can distinguish "session shared" from "local only" degraded mode.
type Backend string

const (
	// BackendSession means the access token lives in the host session store,
	// shared with co-located widget instances.
	BackendSession Backend = "session"

	// BackendLocal means the host session store was unavailable and the
	// access token was written to durable local storage under a distinct
	// key namespace. Private to this browser; not shared.
	BackendLocal Backend = "local"
)
