package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/chroniclehq/chronicle/projection"
)

// ForSpace returns a projection KV view scoped to one space, backed by the
// same database as the event log. Closing the view is a no-op; the view's
// lifetime is the store's.
func (s *Store) ForSpace(spaceID int64) projection.KV {
	return &spaceKV{store: s, spaceID: spaceID}
}

type spaceKV struct {
	store   *Store
	spaceID int64
}

var _ projection.KV = (*spaceKV)(nil)

func (kv *spaceKV) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var value []byte
	row := kv.store.sqlDB.QueryRowContext(ctx,
		`SELECT value FROM projection_entries WHERE space_id = ? AND key = ?`,
		kv.spaceID, key)
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, projection.ErrNotFound
		}
		return nil, mapStorageError("load projection entry", err)
	}
	return value, nil
}

func (kv *spaceKV) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := kv.store.sqlDB.ExecContext(ctx, upsertEntrySQL,
		kv.spaceID, key, value, toMillis(time.Now())); err != nil {
		return mapStorageError("store projection entry", err)
	}
	return nil
}

func (kv *spaceKV) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := kv.store.sqlDB.ExecContext(ctx,
		`DELETE FROM projection_entries WHERE space_id = ? AND key = ?`,
		kv.spaceID, key); err != nil {
		return mapStorageError("delete projection entry", err)
	}
	return nil
}

func (kv *spaceKV) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return map[string][]byte{}, nil
	}

	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	placeholders := strings.Repeat("?,", len(sorted))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(sorted)+1)
	args = append(args, kv.spaceID)
	for _, key := range sorted {
		args = append(args, key)
	}

	rows, err := kv.store.sqlDB.QueryContext(ctx,
		`SELECT key, value FROM projection_entries WHERE space_id = ? AND key IN (`+placeholders+`)`,
		args...)
	if err != nil {
		return nil, mapStorageError("load projection entries", err)
	}
	defer rows.Close()

	out := make(map[string][]byte, len(sorted))
	for rows.Next() {
		var (
			key   string
			value []byte
		)
		if err := rows.Scan(&key, &value); err != nil {
			return nil, mapStorageError("scan projection entry", err)
		}
		out[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, mapStorageError("read projection entries", err)
	}
	return out, nil
}

func (kv *spaceKV) PutMany(ctx context.Context, entries []projection.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	tx, err := kv.store.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return mapStorageError("begin tx", err)
	}
	defer tx.Rollback()

	now := toMillis(time.Now())
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, upsertEntrySQL, kv.spaceID, e.Key, e.Value, now); err != nil {
			return mapStorageError("store projection entry", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return mapStorageError("commit", err)
	}
	return nil
}

func (kv *spaceKV) Scan(ctx context.Context, prefix string, limit int) ([]projection.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = -1
	}
	rows, err := kv.store.sqlDB.QueryContext(ctx,
		`SELECT key, value FROM projection_entries
WHERE space_id = ? AND key >= ? AND key GLOB ?
ORDER BY key ASC LIMIT ?`,
		kv.spaceID, prefix, globPattern(prefix), limit)
	if err != nil {
		return nil, mapStorageError("scan projection entries", err)
	}
	defer rows.Close()

	var entries []projection.Entry
	for rows.Next() {
		var e projection.Entry
		if err := rows.Scan(&e.Key, &e.Value); err != nil {
			return nil, mapStorageError("scan projection entry", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, mapStorageError("read projection entries", err)
	}
	return entries, nil
}

func (kv *spaceKV) Close() error { return nil }

const upsertEntrySQL = `INSERT INTO projection_entries (space_id, key, value, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(space_id, key) DO UPDATE SET
    value = excluded.value,
    updated_at = excluded.updated_at`

// globPattern escapes GLOB metacharacters in prefix so keys match literally.
func globPattern(prefix string) string {
	var b strings.Builder
	for _, r := range prefix {
		switch r {
		case '*', '?', '[':
			b.WriteRune('[')
			b.WriteRune(r)
			b.WriteRune(']')
		default:
			b.WriteRune(r)
		}
	}
	b.WriteString("*")
	return b.String()
}
