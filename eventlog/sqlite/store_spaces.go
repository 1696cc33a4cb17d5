package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chroniclehq/chronicle/event"
	"github.com/chroniclehq/chronicle/eventlog"
	apperrors "github.com/chroniclehq/chronicle/internal/platform/errors"
)

// EnsureSpace registers a space on first use of a name and returns the
// existing record on subsequent calls. Metadata from later calls does not
// overwrite the registered record.
func (s *Store) EnsureSpace(ctx context.Context, name string, metadata map[string]string) (event.Space, error) {
	if err := ctx.Err(); err != nil {
		return event.Space{}, err
	}
	if strings.TrimSpace(name) == "" {
		return event.Space{}, apperrors.New(apperrors.CodeSpaceNameEmpty, "space name is required")
	}

	metadataJSON, err := encodeMetadata(metadata)
	if err != nil {
		return event.Space{}, err
	}

	if _, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO spaces (space_name, metadata, created_at) VALUES (?, ?, ?) ON CONFLICT(space_name) DO NOTHING`,
		name, metadataJSON, toMillis(time.Now())); err != nil {
		return event.Space{}, mapStorageError("ensure space", err)
	}

	return s.SpaceByName(ctx, name)
}

// SpaceByName looks a space up by its unique name.
func (s *Store) SpaceByName(ctx context.Context, name string) (event.Space, error) {
	if err := ctx.Err(); err != nil {
		return event.Space{}, err
	}

	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT space_id, space_name, metadata, created_at FROM spaces WHERE space_name = ?`, name)
	return scanSpace(row)
}

// SpaceByID looks a space up by id.
func (s *Store) SpaceByID(ctx context.Context, spaceID int64) (event.Space, error) {
	if err := ctx.Err(); err != nil {
		return event.Space{}, err
	}

	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT space_id, space_name, metadata, created_at FROM spaces WHERE space_id = ?`, spaceID)
	return scanSpace(row)
}

// DeleteSpace removes a space and cascades to its events, sequence counter,
// projection entries, and checkpoint in one transaction.
func (s *Store) DeleteSpace(ctx context.Context, spaceID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return mapStorageError("begin tx", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM events WHERE space_id = ?`,
		`DELETE FROM space_sequences WHERE space_id = ?`,
		`DELETE FROM projection_entries WHERE space_id = ?`,
		`DELETE FROM checkpoints WHERE space_id = ?`,
		`DELETE FROM spaces WHERE space_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, spaceID); err != nil {
			return mapStorageError("delete space", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return mapStorageError("commit", err)
	}
	return nil
}

func scanSpace(row *sql.Row) (event.Space, error) {
	var (
		sp           event.Space
		metadataJSON string
		millis       int64
	)
	if err := row.Scan(&sp.ID, &sp.Name, &metadataJSON, &millis); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return event.Space{}, eventlog.ErrNotFound
		}
		return event.Space{}, mapStorageError("load space", err)
	}

	metadata, err := decodeMetadata(metadataJSON)
	if err != nil {
		return event.Space{}, err
	}
	sp.Metadata = metadata
	sp.CreatedAt = fromMillis(millis)
	return sp, nil
}

func encodeMetadata(metadata map[string]string) (string, error) {
	if len(metadata) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("marshal space metadata: %w", err)
	}
	return string(data), nil
}

func decodeMetadata(value string) (map[string]string, error) {
	if value == "" || value == "{}" {
		return nil, nil
	}
	var metadata map[string]string
	if err := json.Unmarshal([]byte(value), &metadata); err != nil {
		return nil, fmt.Errorf("unmarshal space metadata: %w", err)
	}
	return metadata, nil
}
