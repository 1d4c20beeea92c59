package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/MrSnakeDoc/stash/internal/domain"
)

const rankOrder = `ORDER BY s.score IS NULL, s.score DESC, b.created_at DESC, b.id`

func (s *Store) AddBookmark(ctx context.Context, user string, b domain.Bookmark) error {
	return s.inTx(ctx, "add bookmark", func(q querier) error {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO bookmarks (id, username, url, title, created_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT DO NOTHING`,
			b.ID, user, b.URL, b.Title, domain.FormatTime(b.CreatedAt),
		); err != nil {
			return err
		}

		// Tags go to whichever bookmark owns the URL, new or pre-existing.
		for _, t := range b.Tags {
			if _, err := q.ExecContext(ctx, `
				INSERT OR IGNORE INTO bookmark_tags (bookmark_id, tag_id, created_at)
				SELECT b.id, t.id, ?
				FROM bookmarks b JOIN tags t ON t.username = b.username
				WHERE b.username = ? AND b.url = ? AND t.id = ?`,
				domain.FormatTime(b.CreatedAt), user, b.URL, t.ID,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) Bookmark(ctx context.Context, user, id string) (*domain.Bookmark, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT b.id, b.title, b.url, b.created_at
		FROM bookmarks b
		WHERE b.username = ? AND b.id = ?`, user, id)

	b, err := scanBookmark(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get bookmark", err)
	}

	tags, err := s.tagsOf(ctx, s.db, user, []string{b.ID})
	if err != nil {
		return nil, storageErr("get bookmark", err)
	}
	b.Tags = nonNil(tags[b.ID])
	return &b, nil
}

func (s *Store) ListBookmarks(ctx context.Context, user string, tagIDs []string) ([]domain.Bookmark, error) {
	tagIDs = dedupe(tagIDs)

	var (
		query string
		args  []any
	)
	if len(tagIDs) == 0 {
		query = `
			SELECT b.id, b.title, b.url, b.created_at
			FROM bookmarks b LEFT JOIN scores s ON s.bookmark_id = b.id
			WHERE b.username = ?
			  AND NOT EXISTS (SELECT 1 FROM bookmark_tags bt WHERE bt.bookmark_id = b.id)
			` + rankOrder
		args = []any{user}
	} else {
		query = fmt.Sprintf(`
			SELECT b.id, b.title, b.url, b.created_at
			FROM bookmarks b LEFT JOIN scores s ON s.bookmark_id = b.id
			WHERE b.username = ?
			  AND b.id IN (
				SELECT bt.bookmark_id
				FROM bookmark_tags bt JOIN tags t ON t.id = bt.tag_id
				WHERE t.username = ? AND bt.tag_id IN (%s)
				GROUP BY bt.bookmark_id
				HAVING COUNT(DISTINCT bt.tag_id) = ?)
			`+rankOrder, placeholders(len(tagIDs)))
		args = append(args, user, user)
		for _, id := range tagIDs {
			args = append(args, id)
		}
		args = append(args, len(tagIDs))
	}

	return s.queryBookmarks(ctx, "list bookmarks", user, query, args...)
}

func (s *Store) AllBookmarks(ctx context.Context, user string) ([]domain.Bookmark, error) {
	return s.queryBookmarks(ctx, "all bookmarks", user, `
		SELECT b.id, b.title, b.url, b.created_at
		FROM bookmarks b LEFT JOIN scores s ON s.bookmark_id = b.id
		WHERE b.username = ?
		`+rankOrder, user)
}

func (s *Store) queryBookmarks(ctx context.Context, op, user, query string, args ...any) ([]domain.Bookmark, error) {
	bookmarks, err := s.scanBookmarks(ctx, query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	if len(bookmarks) == 0 {
		return bookmarks, nil
	}

	ids := make([]string, 0, len(bookmarks))
	for _, b := range bookmarks {
		ids = append(ids, b.ID)
	}

	// Rows are closed by now; an in-memory database has a single connection.
	tags, err := s.tagsOf(ctx, s.db, user, ids)
	if err != nil {
		return nil, storageErr(op, err)
	}
	for i := range bookmarks {
		bookmarks[i].Tags = nonNil(tags[bookmarks[i].ID])
	}
	return bookmarks, nil
}

func (s *Store) scanBookmarks(ctx context.Context, query string, args ...any) ([]domain.Bookmark, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookmarks := []domain.Bookmark{}
	for rows.Next() {
		b, err := scanBookmark(rows)
		if err != nil {
			return nil, err
		}
		bookmarks = append(bookmarks, b)
	}
	return bookmarks, rows.Err()
}

// tagsOf loads the full tag set of each bookmark, PRIMARY by name then
// SECONDARY by name.
func (s *Store) tagsOf(ctx context.Context, q querier, user string, bookmarkIDs []string) (map[string][]domain.Tag, error) {
	args := []any{user}
	for _, id := range bookmarkIDs {
		args = append(args, id)
	}

	rows, err := q.QueryContext(ctx, fmt.Sprintf(`
		SELECT bt.bookmark_id, t.id, t.name, t.visibility, t.created_at
		FROM bookmark_tags bt JOIN tags t ON t.id = bt.tag_id
		WHERE t.username = ? AND bt.bookmark_id IN (%s)
		ORDER BY bt.bookmark_id,
		         CASE t.visibility WHEN 'PRIMARY' THEN 0 ELSE 1 END,
		         t.name`, placeholders(len(bookmarkIDs))), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]domain.Tag, len(bookmarkIDs))
	for rows.Next() {
		var bookmarkID string
		t, err := scanTag(rows, &bookmarkID)
		if err != nil {
			return nil, err
		}
		out[bookmarkID] = append(out[bookmarkID], t)
	}
	return out, rows.Err()
}

func (s *Store) ReplaceBookmark(ctx context.Context, user string, b domain.Bookmark) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE OR IGNORE bookmarks SET title = ?, url = ?
		WHERE username = ? AND id = ?`,
		b.Title, b.URL, user, b.ID)
	return storageErr("replace bookmark", err)
}

func (s *Store) DeleteBookmark(ctx context.Context, user, id string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM bookmarks WHERE username = ? AND id = ?`, user, id)
	return storageErr("delete bookmark", err)
}

func (s *Store) AddTagsToBookmark(ctx context.Context, user, bookmarkID string, tagIDs []string) error {
	return s.inTx(ctx, "add tags to bookmark", func(q querier) error {
		for _, tagID := range dedupe(tagIDs) {
			if _, err := q.ExecContext(ctx, `
				INSERT OR IGNORE INTO bookmark_tags (bookmark_id, tag_id, created_at)
				SELECT b.id, t.id, ?
				FROM bookmarks b JOIN tags t ON t.username = b.username
				WHERE b.username = ? AND b.id = ? AND t.id = ?`,
				s.now(), user, bookmarkID, tagID,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) DropTagsFromBookmark(ctx context.Context, user, bookmarkID string, tagIDs []string) error {
	return s.inTx(ctx, "drop tags from bookmark", func(q querier) error {
		for _, tagID := range dedupe(tagIDs) {
			if _, err := q.ExecContext(ctx, `
				DELETE FROM bookmark_tags
				WHERE bookmark_id = ? AND tag_id = ?
				  AND EXISTS (SELECT 1 FROM bookmarks WHERE id = ? AND username = ?)`,
				bookmarkID, tagID, bookmarkID, user,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBookmark(sc scanner) (domain.Bookmark, error) {
	var (
		b       domain.Bookmark
		created string
	)
	if err := sc.Scan(&b.ID, &b.Title, &b.URL, &created); err != nil {
		return domain.Bookmark{}, err
	}
	at, err := domain.ParseTime(created)
	if err != nil {
		return domain.Bookmark{}, fmt.Errorf("bookmark %s created_at: %w", b.ID, err)
	}
	b.CreatedAt = at
	return b, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func nonNil(tags []domain.Tag) []domain.Tag {
	if tags == nil {
		return []domain.Tag{}
	}
	return tags
}
