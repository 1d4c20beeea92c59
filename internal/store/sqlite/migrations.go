package sqlite

import (
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/stash/internal/domain"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "bookmarks and tags",
		SQL: `
CREATE TABLE bookmarks (
    id          TEXT PRIMARY KEY,
    username    TEXT NOT NULL,
    url         TEXT NOT NULL,
    title       TEXT NOT NULL,
    created_at  TEXT NOT NULL,
    UNIQUE (username, url)
);

CREATE TABLE tags (
    id          TEXT PRIMARY KEY,
    username    TEXT NOT NULL,
    name        TEXT NOT NULL,
    visibility  TEXT NOT NULL CHECK (visibility IN ('PRIMARY', 'SECONDARY')),
    created_at  TEXT NOT NULL,
    UNIQUE (username, name)
);

CREATE TABLE bookmark_tags (
    bookmark_id TEXT NOT NULL,
    tag_id      TEXT NOT NULL,
    created_at  TEXT NOT NULL,
    PRIMARY KEY (bookmark_id, tag_id),
    FOREIGN KEY (bookmark_id) REFERENCES bookmarks(id) ON DELETE CASCADE,
    FOREIGN KEY (tag_id) REFERENCES tags(id) ON DELETE CASCADE
);

CREATE INDEX idx_bookmarks_created ON bookmarks(username, created_at DESC);
CREATE INDEX idx_bookmark_tags_tag ON bookmark_tags(tag_id);
`,
	},
	{
		Version:     2,
		Description: "visit_logs: append-only visit history",
		SQL: `
CREATE TABLE visit_logs (
    id          INTEGER PRIMARY KEY,
    username    TEXT NOT NULL,
    bookmark_id TEXT NOT NULL,
    visited_at  TEXT NOT NULL,
    FOREIGN KEY (bookmark_id) REFERENCES bookmarks(id) ON DELETE CASCADE
);

CREATE INDEX idx_visit_logs_user    ON visit_logs(username);
CREATE INDEX idx_visit_logs_visited ON visit_logs(visited_at);
`,
	},
	{
		Version:     3,
		Description: "scores: latest visit rate per bookmark",
		SQL: `
CREATE TABLE scores (
    bookmark_id TEXT PRIMARY KEY,
    score       REAL NOT NULL,
    updated_at  TEXT NOT NULL,
    FOREIGN KEY (bookmark_id) REFERENCES bookmarks(id) ON DELETE CASCADE
);
`,
	},
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the highest applied migration.
func (s *Store) SchemaVersion() (int, error) {
	var v int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&v)
	return v, err
}

func storageErr(op string, err error) error {
	var se *domain.StorageError
	if errors.As(err, &se) {
		return err
	}
	return domain.NewStorageError(op, err)
}
