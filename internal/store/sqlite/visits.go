package sqlite

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/stash/internal/domain"
)

// AddVisitLog appends a visit. Visits of bookmarks the user does not own
// are dropped.
func (s *Store) AddVisitLog(ctx context.Context, user string, v domain.VisitLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO visit_logs (username, bookmark_id, visited_at)
		SELECT ?, b.id, ?
		FROM bookmarks b WHERE b.username = ? AND b.id = ?`,
		user, domain.FormatTime(v.VisitedAt), user, v.BookmarkID)
	return storageErr("add visit log", err)
}

// VisitLogs returns the user's full visit history, timestamps verbatim.
func (s *Store) VisitLogs(ctx context.Context, user string) ([]domain.VisitRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT bookmark_id, visited_at
		FROM visit_logs WHERE username = ?
		ORDER BY id`, user)
	if err != nil {
		return nil, storageErr("visit logs", err)
	}
	defer rows.Close()

	records := []domain.VisitRecord{}
	for rows.Next() {
		var r domain.VisitRecord
		if err := rows.Scan(&r.BookmarkID, &r.VisitedAt); err != nil {
			return nil, storageErr("visit logs", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("visit logs", err)
	}
	return records, nil
}

func (s *Store) PruneVisitLogs(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM visit_logs WHERE visited_at < ?`, domain.FormatTime(before))
	if err != nil {
		return 0, storageErr("prune visit logs", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageErr("prune visit logs", err)
	}
	return n, nil
}

func (s *Store) Users(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username FROM bookmarks
		UNION
		SELECT username FROM tags
		ORDER BY username`)
	if err != nil {
		return nil, storageErr("list users", err)
	}
	defer rows.Close()

	users := []string{}
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, storageErr("list users", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list users", err)
	}
	return users, nil
}
