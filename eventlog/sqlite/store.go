// Package sqlite provides the durable SQLite backend for the event log and
// per-space projection entries.
package sqlite

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/chroniclehq/chronicle/eventlog"
	"github.com/chroniclehq/chronicle/eventlog/sqlite/migrations"
	"github.com/chroniclehq/chronicle/internal/platform/config"
	apperrors "github.com/chroniclehq/chronicle/internal/platform/errors"
	"github.com/chroniclehq/chronicle/internal/platform/storage/sqlitemigrate"
)

// tracer spans storage operations; with no provider configured they are
// no-ops.
var tracer trace.Tracer = otel.Tracer("chronicle/eventlog/sqlite")

// Config carries env-driven store settings.
type Config struct {
	// Path is the SQLite database file path.
	Path string `env:"CHRONICLE_SQLITE_PATH" envDefault:"chronicle.db"`
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis reverses toMillis for persisted millisecond timestamps.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Store provides a SQLite-backed event log. It also hands out per-space
// projection KV views over the same database, so events and projections share
// one durability story.
type Store struct {
	sqlDB *sql.DB
}

var _ eventlog.Adapter = (*Store)(nil)

// OpenFromEnv opens a store at the path configured through the environment.
func OpenFromEnv() (*Store, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return nil, err
	}
	return Open(cfg.Path)
}

// Open opens a SQLite event log store at the provided path and applies
// embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeAdapterInitFailed, "open sqlite db", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, apperrors.Wrap(apperrors.CodeAdapterInitFailed, "ping sqlite db", err)
	}

	if err := sqlitemigrate.Apply(sqlDB, migrations.EventsFS, "events"); err != nil {
		_ = sqlDB.Close()
		return nil, apperrors.Wrap(apperrors.CodeAdapterInitFailed, "run migrations", err)
	}

	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the underlying SQLite database.
//
// Close is intentionally nil-safe so callers can defer it in all startup
// paths.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}
