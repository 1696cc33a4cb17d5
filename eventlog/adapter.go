package eventlog

import (
	"context"

	"github.com/chroniclehq/chronicle/event"
	apperrors "github.com/chroniclehq/chronicle/internal/platform/errors"
)

// ErrNotFound indicates a requested event or space is missing.
// Callers use this to differentiate legitimate "no such record" states from
// transport or data corruption failures.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// ErrBusy indicates the backend rejected an operation due to lock contention.
// The operation may succeed when retried; retry policy belongs to the caller.
var ErrBusy = apperrors.New(apperrors.CodeAdapterBusy, "storage is busy")

// RangeOptions bounds an entity-scoped event read.
type RangeOptions struct {
	// FromEventID excludes events with id <= FromEventID. Zero reads from
	// the beginning.
	FromEventID int64
	// Limit caps the number of returned events. Zero means no cap.
	Limit int
}

// AppendInput describes one event of a batch append.
type AppendInput struct {
	EntityID string
	Type     event.Type
	Payload  map[string]any
	Options  event.AppendOptions
}

// Adapter is the storage contract every event-log backend implements.
//
// Append must assign the global event id and the per-space sequence in one
// atomic unit of work together with persisting the event row and its indexes:
// a space sequence must never be observed to have advanced without a
// corresponding stored event, and vice versa.
type Adapter interface {
	// Append atomically appends an event and returns it with both sequence
	// values assigned.
	Append(ctx context.Context, spaceID int64, entityID string, typ event.Type, payload map[string]any, opts event.AppendOptions) (event.Event, error)
	// AppendBatch appends several events of one space with contiguous
	// sequence values in a single unit of work.
	AppendBatch(ctx context.Context, spaceID int64, batch []AppendInput) ([]event.Event, error)
	// Event retrieves a single event by its global id.
	Event(ctx context.Context, eventID int64) (event.Event, error)
	// EntityEvents returns the events for one entity ordered by event id
	// ascending.
	EntityEvents(ctx context.Context, entityID string, opts RangeOptions) ([]event.Event, error)
	// ListEvents returns up to limit events with id > afterEventID, ordered
	// by event id ascending. It is the batch primitive behind global streams.
	ListEvents(ctx context.Context, afterEventID int64, limit int) ([]event.Event, error)
	// ListSpaceEvents returns up to limit events of one space with
	// space sequence > afterSequence, ordered by space sequence ascending.
	ListSpaceEvents(ctx context.Context, spaceID, afterSequence int64, limit int) ([]event.Event, error)
	// LatestEventID returns the highest assigned event id, 0 when empty.
	LatestEventID(ctx context.Context) (int64, error)
	// SpaceLatestSequence returns the highest sequence assigned in a space,
	// 0 when the space has no events.
	SpaceLatestSequence(ctx context.Context, spaceID int64) (int64, error)

	// EnsureSpace registers a space on first use of a name and returns the
	// existing record on subsequent calls.
	EnsureSpace(ctx context.Context, name string, metadata map[string]string) (event.Space, error)
	// SpaceByName looks a space up by its unique name.
	SpaceByName(ctx context.Context, name string) (event.Space, error)
	// SpaceByID looks a space up by id.
	SpaceByID(ctx context.Context, spaceID int64) (event.Space, error)
	// DeleteSpace removes a space and cascades to its events, sequence
	// counter, projection entries, and checkpoints.
	DeleteSpace(ctx context.Context, spaceID int64) error

	// SaveCheckpoint upserts the projection checkpoint for a space.
	SaveCheckpoint(ctx context.Context, cp event.Checkpoint) error
	// Checkpoint loads the projection checkpoint for a space.
	Checkpoint(ctx context.Context, spaceID int64) (event.Checkpoint, error)

	// Close releases held resources. It is a no-op for ephemeral backends.
	Close() error
}
