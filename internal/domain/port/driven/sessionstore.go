package driven

import (
	"context"

	"github.com/ericfisherdev/chargepanel/internal/domain/model"
)

// SessionStore defines the driven port for the durable session key-value store.
// Missing keys read as the empty string; absence is never an error.
type SessionStore interface {
	// Get returns the value stored under key, or "" if none exists.
	Get(ctx context.Context, key string) (string, error)

	// GetAll returns every stored entry keyed by name.
	GetAll(ctx context.Context) (map[string]string, error)

	// SetMany stores all pairs atomically. An empty value deletes the key.
	SetMany(ctx context.Context, values map[string]string) error

	// List returns all stored entries ordered by key.
	List(ctx context.Context) ([]model.SessionEntry, error)

	// Delete removes the given keys atomically. Unknown keys are ignored.
	Delete(ctx context.Context, keys ...string) error
}
