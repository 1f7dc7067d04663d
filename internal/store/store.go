// Package store persists clusters, node groups, cluster templates, quotas and
// the command outbox in SQLite.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/yaroslav/clusterplane/internal/metrics"
)

//go:embed schema.sql
var schema string

// Scope restricts reads to one project unless AllProjects is set.
type Scope struct {
	ProjectID   string
	AllProjects bool
}

// ProjectScope returns a scope limited to projectID.
func ProjectScope(projectID string) Scope {
	return Scope{ProjectID: projectID}
}

// Store is the SQLite backed repository.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// New wraps an open database. The schema is not touched.
func New(db *sql.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Open opens the database file at path, configures the pool and applies the schema.
func Open(ctx context.Context, path string, logger *zap.Logger) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := New(db, logger)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("database connection established", zap.String("path", path))
	return s, nil
}

// OpenMemory opens a private in-memory database with the schema applied.
// The pool is limited to one connection so every query sees the same database.
func OpenMemory(ctx context.Context, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", "file::memory:?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := New(db, logger)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate applies the embedded schema. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// DB returns the underlying connection pool.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Compact runs VACUUM and, when analyze is set, ANALYZE.
func (s *Store) Compact(ctx context.Context, analyze bool) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("failed to vacuum database: %w", err)
	}
	if analyze {
		if _, err := s.db.ExecContext(ctx, "ANALYZE"); err != nil {
			return fmt.Errorf("failed to analyze database: %w", err)
		}
	}
	return nil
}

func observe(op string, start time.Time, err error) {
	if err == sql.ErrNoRows {
		err = nil
	}
	metrics.ObserveQuery(op, start, err)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueConstraint(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func encodeJSON(v interface{}) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
