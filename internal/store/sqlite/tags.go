package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/stash/internal/domain"
)

func (s *Store) AddTag(ctx context.Context, user string, t domain.Tag) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tags (id, username, name, visibility, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		t.ID, user, t.Name, string(t.Visibility), domain.FormatTime(t.CreatedAt))
	return storageErr("add tag", err)
}

func (s *Store) Tag(ctx context.Context, user, id string) (*domain.Tag, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, visibility, created_at
		FROM tags WHERE username = ? AND id = ?`, user, id)

	t, err := scanTag(row, nil)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get tag", err)
	}
	return &t, nil
}

// Tags lists the user's tags, PRIMARY by name then SECONDARY by name.
func (s *Store) Tags(ctx context.Context, user string) ([]domain.Tag, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, visibility, created_at
		FROM tags WHERE username = ?
		ORDER BY CASE visibility WHEN 'PRIMARY' THEN 0 ELSE 1 END, name`, user)
	if err != nil {
		return nil, storageErr("list tags", err)
	}
	defer rows.Close()

	tags := []domain.Tag{}
	for rows.Next() {
		t, err := scanTag(rows, nil)
		if err != nil {
			return nil, storageErr("list tags", err)
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list tags", err)
	}
	return tags, nil
}

func (s *Store) UpdateTag(ctx context.Context, user string, t domain.Tag) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE OR IGNORE tags SET name = ?, visibility = ?
		WHERE username = ? AND id = ?`,
		t.Name, string(t.Visibility), user, t.ID)
	return storageErr("update tag", err)
}

func (s *Store) DeleteTag(ctx context.Context, user, id string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM tags WHERE username = ? AND id = ?`, user, id)
	return storageErr("delete tag", err)
}

// scanTag reads (id, name, visibility, created_at), preceded by the owning
// bookmark id when bookmarkID is not nil.
func scanTag(sc scanner, bookmarkID *string) (domain.Tag, error) {
	var (
		t          domain.Tag
		visibility string
		created    string
	)
	dest := []any{&t.ID, &t.Name, &visibility, &created}
	if bookmarkID != nil {
		dest = append([]any{bookmarkID}, dest...)
	}
	if err := sc.Scan(dest...); err != nil {
		return domain.Tag{}, err
	}

	v, err := domain.ParseVisibility(visibility)
	if err != nil {
		return domain.Tag{}, fmt.Errorf("tag %s: %w", t.ID, err)
	}
	at, err := domain.ParseTime(created)
	if err != nil {
		return domain.Tag{}, fmt.Errorf("tag %s created_at: %w", t.ID, err)
	}
	t.Visibility = v
	t.CreatedAt = at
	return t, nil
}
