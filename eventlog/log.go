// Package eventlog exposes the append/stream API of the event log on top of a
// pluggable storage adapter.
package eventlog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chroniclehq/chronicle/event"
	apperrors "github.com/chroniclehq/chronicle/internal/platform/errors"
)

// Log is a thin façade over one Adapter instance. It holds no state beyond
// the adapter handle; callers sharing one Log across goroutines rely on the
// adapter's own concurrency guarantees.
type Log struct {
	adapter Adapter
}

// New creates a Log over the given adapter.
func New(adapter Adapter) *Log {
	return &Log{adapter: adapter}
}

// Adapter returns the underlying adapter handle.
func (l *Log) Adapter() Adapter {
	return l.adapter
}

// Close releases the underlying adapter's resources.
func (l *Log) Close() error {
	if l == nil || l.adapter == nil {
		return nil
	}
	return l.adapter.Close()
}

// Append validates inputs, defaults the timestamp and correlation id, and
// appends one event to the given space.
func (l *Log) Append(ctx context.Context, spaceID int64, entityID string, typ event.Type, payload map[string]any, opts event.AppendOptions) (event.Event, error) {
	if err := validateAppend(spaceID, entityID, typ); err != nil {
		return event.Event{}, err
	}
	normalizeOptions(&opts)
	return l.adapter.Append(ctx, spaceID, entityID, typ, payload, opts)
}

// AppendBatch validates and appends several events of one space with
// contiguous sequence values in a single unit of work.
func (l *Log) AppendBatch(ctx context.Context, spaceID int64, batch []AppendInput) ([]event.Event, error) {
	if len(batch) == 0 {
		return nil, nil
	}
	if spaceID <= 0 {
		return nil, apperrors.New(apperrors.CodeSpaceIDInvalid, "space id must be positive")
	}
	normalized := make([]AppendInput, len(batch))
	for i, in := range batch {
		if err := validateAppend(spaceID, in.EntityID, in.Type); err != nil {
			return nil, fmt.Errorf("batch item %d: %w", i, err)
		}
		normalizeOptions(&in.Options)
		normalized[i] = in
	}
	return l.adapter.AppendBatch(ctx, spaceID, normalized)
}

// Event retrieves a single event by its global id.
func (l *Log) Event(ctx context.Context, eventID int64) (event.Event, error) {
	return l.adapter.Event(ctx, eventID)
}

// EntityEvents returns the events for one entity ordered by event id ascending.
func (l *Log) EntityEvents(ctx context.Context, entityID string, opts RangeOptions) ([]event.Event, error) {
	return l.adapter.EntityEvents(ctx, entityID, opts)
}

// LatestEventID returns the highest assigned event id, 0 when the log is empty.
func (l *Log) LatestEventID(ctx context.Context) (int64, error) {
	return l.adapter.LatestEventID(ctx)
}

// SpaceLatestSequence returns the highest sequence assigned in a space.
func (l *Log) SpaceLatestSequence(ctx context.Context, spaceID int64) (int64, error) {
	return l.adapter.SpaceLatestSequence(ctx, spaceID)
}

// EnsureSpace registers a space on first use of a name.
func (l *Log) EnsureSpace(ctx context.Context, name string, metadata map[string]string) (event.Space, error) {
	return l.adapter.EnsureSpace(ctx, name, metadata)
}

// SpaceByName looks a space up by its unique name.
func (l *Log) SpaceByName(ctx context.Context, name string) (event.Space, error) {
	return l.adapter.SpaceByName(ctx, name)
}

// SpaceByID looks a space up by id.
func (l *Log) SpaceByID(ctx context.Context, spaceID int64) (event.Space, error) {
	return l.adapter.SpaceByID(ctx, spaceID)
}

// DeleteSpace removes a space, cascading to its events, sequence counter,
// projection entries, and checkpoints.
func (l *Log) DeleteSpace(ctx context.Context, spaceID int64) error {
	return l.adapter.DeleteSpace(ctx, spaceID)
}

// SaveCheckpoint upserts the projection checkpoint for a space.
func (l *Log) SaveCheckpoint(ctx context.Context, cp event.Checkpoint) error {
	return l.adapter.SaveCheckpoint(ctx, cp)
}

// Checkpoint loads the projection checkpoint for a space.
func (l *Log) Checkpoint(ctx context.Context, spaceID int64) (event.Checkpoint, error) {
	return l.adapter.Checkpoint(ctx, spaceID)
}

func validateAppend(spaceID int64, entityID string, typ event.Type) error {
	if spaceID <= 0 {
		return apperrors.New(apperrors.CodeSpaceIDInvalid, "space id must be positive")
	}
	if entityID == "" {
		return apperrors.New(apperrors.CodeEntityIDEmpty, "entity id is required")
	}
	if !typ.IsValid() {
		return apperrors.New(apperrors.CodeEventTypeEmpty, "event type is required")
	}
	return nil
}

func normalizeOptions(opts *event.AppendOptions) {
	if opts.CorrelationID == "" {
		opts.CorrelationID = uuid.NewString()
	}
	if opts.Timestamp.IsZero() {
		opts.Timestamp = time.Now()
	}
	opts.Timestamp = opts.Timestamp.UTC().Truncate(time.Millisecond)
}
