// Package sqlite is the SQLite implementation of store.Store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/MrSnakeDoc/stash/internal/domain"
	"github.com/MrSnakeDoc/stash/internal/store"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// connPragmas are per-connection settings. The driver runs them on every
// connection it opens, so the whole pool enforces foreign keys.
var connPragmas = []string{
	"foreign_keys(1)",
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
}

// dsn builds a modernc connection string carrying connPragmas.
func dsn(path string) string {
	q := url.Values{}
	for _, p := range connPragmas {
		q.Add("_pragma", p)
	}
	return "file:" + path + "?" + q.Encode()
}

var _ store.Store = (*Store)(nil)

// Store persists everything in a single SQLite database.
type Store struct {
	db    *sql.DB
	path  string
	clock domain.Clock
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open opens (or creates) the database at path, configures pragmas and
// runs migrations.
func Open(path string) (*Store, error) {
	if path == MemoryPath {
		return OpenMemory()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return setup(db, path)
}

// OpenMemory opens an in-memory database. The pool is pinned to a single
// connection because every new connection would see an empty database.
func OpenMemory() (*Store, error) {
	db, err := sql.Open("sqlite", dsn(MemoryPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	db.SetMaxOpenConns(1)
	return setup(db, MemoryPath)
}

// New wraps an already configured and migrated handle.
func New(db *sql.DB) *Store {
	return &Store{db: db, clock: domain.SystemClock{}}
}

// WithClock sets the clock used to stamp tag links.
func (s *Store) WithClock(c domain.Clock) *Store {
	s.clock = c
	return s
}

func (s *Store) now() string {
	return domain.FormatTime(s.clock.Now())
}

func setup(db *sql.DB, path string) (*Store, error) {
	s := &Store{db: db, path: path, clock: domain.SystemClock{}}
	if err := s.checkPragmas(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) checkPragmas() error {
	var fk int
	if err := s.db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		return fmt.Errorf("read foreign_keys: %w", err)
	}
	if fk != 1 {
		return errors.New("foreign keys are off")
	}
	return nil
}

// Path is the database file, or MemoryPath.
func (s *Store) Path() string { return s.path }

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return storageErr("ping", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// inTx runs fn in a transaction, rolling back on error.
func (s *Store) inTx(ctx context.Context, op string, fn func(q querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr(op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return storageErr(op, err)
	}
	if err := tx.Commit(); err != nil {
		return storageErr(op, err)
	}
	return nil
}
