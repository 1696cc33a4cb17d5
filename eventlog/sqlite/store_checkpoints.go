package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/chroniclehq/chronicle/event"
	"github.com/chroniclehq/chronicle/eventlog"
)

// SaveCheckpoint upserts the projection checkpoint for a space.
func (s *Store) SaveCheckpoint(ctx context.Context, cp event.Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	updatedAt := cp.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	if _, err := s.sqlDB.ExecContext(ctx, `INSERT INTO checkpoints
    (space_id, last_event_id, last_space_sequence, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(space_id) DO UPDATE SET
    last_event_id = excluded.last_event_id,
    last_space_sequence = excluded.last_space_sequence,
    updated_at = excluded.updated_at`,
		cp.SpaceID, cp.LastEventID, cp.LastSpaceSequence, toMillis(updatedAt)); err != nil {
		return mapStorageError("save checkpoint", err)
	}
	return nil
}

// Checkpoint loads the projection checkpoint for a space.
func (s *Store) Checkpoint(ctx context.Context, spaceID int64) (event.Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return event.Checkpoint{}, err
	}

	var (
		cp     event.Checkpoint
		millis int64
	)
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT space_id, last_event_id, last_space_sequence, updated_at FROM checkpoints WHERE space_id = ?`,
		spaceID)
	if err := row.Scan(&cp.SpaceID, &cp.LastEventID, &cp.LastSpaceSequence, &millis); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return event.Checkpoint{}, eventlog.ErrNotFound
		}
		return event.Checkpoint{}, mapStorageError("load checkpoint", err)
	}
	cp.UpdatedAt = fromMillis(millis)
	return cp, nil
}
