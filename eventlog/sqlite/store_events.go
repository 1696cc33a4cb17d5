package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/chroniclehq/chronicle/event"
	"github.com/chroniclehq/chronicle/eventlog"
	apperrors "github.com/chroniclehq/chronicle/internal/platform/errors"
)

// Append atomically appends an event: the per-space sequence advances and the
// event row lands in the same transaction, so neither is ever observed
// without the other.
func (s *Store) Append(ctx context.Context, spaceID int64, entityID string, typ event.Type, payload map[string]any, opts event.AppendOptions) (event.Event, error) {
	if err := ctx.Err(); err != nil {
		return event.Event{}, err
	}
	if s == nil || s.sqlDB == nil {
		return event.Event{}, fmt.Errorf("storage is not configured")
	}

	ctx, span := tracer.Start(ctx, "eventlog.append")
	defer span.End()
	span.SetAttributes(attribute.Int64("space.id", spaceID))

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return event.Event{}, mapStorageError("begin tx", err)
	}
	defer tx.Rollback()

	evt, err := appendInTx(ctx, tx, spaceID, entityID, typ, payload, opts)
	if err != nil {
		return event.Event{}, err
	}

	if err := tx.Commit(); err != nil {
		return event.Event{}, mapStorageError("commit", err)
	}
	return evt, nil
}

// AppendBatch appends several events of one space with contiguous sequence
// values in a single transaction.
func (s *Store) AppendBatch(ctx context.Context, spaceID int64, batch []eventlog.AppendInput) ([]event.Event, error) {
	if len(batch) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	ctx, span := tracer.Start(ctx, "eventlog.append_batch")
	defer span.End()
	span.SetAttributes(attribute.Int64("space.id", spaceID), attribute.Int("batch.size", len(batch)))

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapStorageError("begin tx", err)
	}
	defer tx.Rollback()

	stored := make([]event.Event, len(batch))
	for i, input := range batch {
		evt, err := appendInTx(ctx, tx, spaceID, input.EntityID, input.Type, input.Payload, input.Options)
		if err != nil {
			return nil, fmt.Errorf("batch item %d: %w", i, err)
		}
		stored[i] = evt
	}

	if err := tx.Commit(); err != nil {
		return nil, mapStorageError("commit", err)
	}
	return stored, nil
}

// appendInTx allocates the next space sequence and inserts the event row.
func appendInTx(ctx context.Context, tx *sql.Tx, spaceID int64, entityID string, typ event.Type, payload map[string]any, opts event.AppendOptions) (event.Event, error) {
	timestamp := opts.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}
	timestamp = timestamp.UTC().Truncate(time.Millisecond)

	seq, err := nextSequence(ctx, tx, spaceID)
	if err != nil {
		return event.Event{}, err
	}

	blob, err := encodePayload(payload)
	if err != nil {
		return event.Event{}, err
	}

	res, err := tx.ExecContext(ctx, `INSERT INTO events
    (space_id, space_sequence, entity_id, event_type, payload, timestamp, causation_id, correlation_id, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		spaceID, seq, entityID, string(typ), blob, toMillis(timestamp), opts.CausationID, opts.CorrelationID,
		toMillis(time.Now()))
	if err != nil {
		return event.Event{}, mapStorageError("append event", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return event.Event{}, fmt.Errorf("event id: %w", err)
	}

	return event.Event{
		ID:            id,
		SpaceID:       spaceID,
		SpaceSequence: seq,
		EntityID:      entityID,
		Type:          typ,
		Payload:       payload,
		Timestamp:     timestamp,
		CausationID:   opts.CausationID,
		CorrelationID: opts.CorrelationID,
	}, nil
}

// nextSequence advances and returns the space's sequence counter inside the
// append transaction.
func nextSequence(ctx context.Context, tx *sql.Tx, spaceID int64) (int64, error) {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO space_sequences (space_id, last_sequence) VALUES (?, 0) ON CONFLICT(space_id) DO NOTHING`,
		spaceID); err != nil {
		return 0, mapStorageError("init space sequence", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE space_sequences SET last_sequence = last_sequence + 1 WHERE space_id = ?`,
		spaceID); err != nil {
		return 0, mapStorageError("increment space sequence", err)
	}

	var seq int64
	row := tx.QueryRowContext(ctx, `SELECT last_sequence FROM space_sequences WHERE space_id = ?`, spaceID)
	if err := row.Scan(&seq); err != nil {
		return 0, mapStorageError("read space sequence", err)
	}
	return seq, nil
}

const eventColumns = `event_id, space_id, space_sequence, entity_id, event_type, payload, timestamp, causation_id, correlation_id`

func scanEvent(row interface{ Scan(...any) error }) (event.Event, error) {
	var (
		evt       event.Event
		eventType string
		blob      []byte
		millis    int64
	)
	if err := row.Scan(&evt.ID, &evt.SpaceID, &evt.SpaceSequence, &evt.EntityID,
		&eventType, &blob, &millis, &evt.CausationID, &evt.CorrelationID); err != nil {
		return event.Event{}, err
	}
	payload, err := decodePayload(blob)
	if err != nil {
		return event.Event{}, err
	}
	evt.Type = event.Type(eventType)
	evt.Payload = payload
	evt.Timestamp = fromMillis(millis)
	return evt, nil
}

// Event retrieves a single event by its global id.
func (s *Store) Event(ctx context.Context, eventID int64) (event.Event, error) {
	if err := ctx.Err(); err != nil {
		return event.Event{}, err
	}

	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE event_id = ?`, eventID)
	evt, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return event.Event{}, eventlog.ErrNotFound
		}
		return event.Event{}, mapStorageError("load event", err)
	}
	return evt, nil
}

// EntityEvents returns the events for one entity ordered by event id
// ascending.
func (s *Store) EntityEvents(ctx context.Context, entityID string, opts eventlog.RangeOptions) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE entity_id = ? AND event_id > ? ORDER BY event_id ASC LIMIT ?`,
		entityID, opts.FromEventID, limit)
	if err != nil {
		return nil, mapStorageError("list entity events", err)
	}
	return collectEvents(rows)
}

// ListEvents returns up to limit events with id > afterEventID, ordered by
// event id ascending.
func (s *Store) ListEvents(ctx context.Context, afterEventID int64, limit int) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "eventlog.list_events")
	defer span.End()

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE event_id > ? ORDER BY event_id ASC LIMIT ?`,
		afterEventID, limit)
	if err != nil {
		return nil, mapStorageError("list events", err)
	}
	return collectEvents(rows)
}

// ListSpaceEvents returns up to limit events of one space with space sequence
// > afterSequence, ordered by space sequence ascending.
func (s *Store) ListSpaceEvents(ctx context.Context, spaceID, afterSequence int64, limit int) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "eventlog.list_space_events")
	defer span.End()
	span.SetAttributes(attribute.Int64("space.id", spaceID))

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE space_id = ? AND space_sequence > ? ORDER BY space_sequence ASC LIMIT ?`,
		spaceID, afterSequence, limit)
	if err != nil {
		return nil, mapStorageError("list space events", err)
	}
	return collectEvents(rows)
}

func collectEvents(rows *sql.Rows) ([]event.Event, error) {
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return nil, mapStorageError("scan event", err)
		}
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, mapStorageError("read events", err)
	}
	return events, nil
}

// LatestEventID returns the highest assigned event id, 0 when empty.
func (s *Store) LatestEventID(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var id int64
	row := s.sqlDB.QueryRowContext(ctx, `SELECT COALESCE(MAX(event_id), 0) FROM events`)
	if err := row.Scan(&id); err != nil {
		return 0, mapStorageError("latest event id", err)
	}
	return id, nil
}

// SpaceLatestSequence returns the highest sequence assigned in a space, 0
// when the space has no events.
func (s *Store) SpaceLatestSequence(ctx context.Context, spaceID int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var seq int64
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT last_sequence FROM space_sequences WHERE space_id = ?`, spaceID)
	if err := row.Scan(&seq); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, mapStorageError("space latest sequence", err)
	}
	return seq, nil
}

// mapStorageError wraps adapter failures, surfacing lock contention as a
// retryable busy error.
func mapStorageError(op string, err error) error {
	if isBusyError(err) {
		return apperrors.Wrap(apperrors.CodeAdapterBusy, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

func isBusyError(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
}
