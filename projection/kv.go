package projection

import (
	"context"

	apperrors "github.com/chroniclehq/chronicle/internal/platform/errors"
)

// ErrNotFound indicates a requested projection entry is missing.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "projection entry not found")

// Entry is one stored projection record in its encoded form.
type Entry struct {
	Key   string
	Value []byte
}

// KV is the storage contract projection backends implement. Keys are strings
// of the form "<entity_type>:<entity_id>"; values are opaque encoded blobs.
// Every write replaces the full value.
type KV interface {
	// Get returns the encoded value for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// GetMany returns the encoded values for the given keys. Missing keys
	// are absent from the result, not an error.
	GetMany(ctx context.Context, keys []string) (map[string][]byte, error)
	// PutMany stores the entries in order as one batch.
	PutMany(ctx context.Context, entries []Entry) error
	// Scan returns up to limit entries whose keys start with prefix, in
	// ascending key order. Zero limit means no cap.
	Scan(ctx context.Context, prefix string, limit int) ([]Entry, error)
	// Close releases held resources. No-op for ephemeral backends.
	Close() error
}

// WriteBack receives migrated values for asynchronous persistence. The
// background migration writer implements it; a nil sink disables write-back.
type WriteBack interface {
	Enqueue(key string, value map[string]any)
}
