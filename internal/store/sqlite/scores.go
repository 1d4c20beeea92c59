package sqlite

import (
	"context"

	"github.com/MrSnakeDoc/stash/internal/domain"
)

// UpsertScores writes each row on its own. Rows for bookmarks deleted since
// the scores were computed are skipped.
func (s *Store) UpsertScores(ctx context.Context, scores []domain.BookmarkScore) error {
	for _, sc := range scores {
		if _, err := s.db.ExecContext(ctx, `
			INSERT INTO scores (bookmark_id, score, updated_at)
			SELECT ?, ?, ? WHERE EXISTS (SELECT 1 FROM bookmarks WHERE id = ?)
			ON CONFLICT (bookmark_id) DO UPDATE SET
				score = excluded.score,
				updated_at = excluded.updated_at`,
			sc.BookmarkID, sc.Score, domain.FormatTime(sc.UpdatedAt), sc.BookmarkID,
		); err != nil {
			return storageErr("upsert score", err)
		}
	}
	return nil
}

// Scores maps bookmark id to its last computed rate for one user.
func (s *Store) Scores(ctx context.Context, user string) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.bookmark_id, s.score
		FROM scores s JOIN bookmarks b ON b.id = s.bookmark_id
		WHERE b.username = ?`, user)
	if err != nil {
		return nil, storageErr("scores", err)
	}
	defer rows.Close()

	out := map[string]float64{}
	for rows.Next() {
		var (
			id    string
			score float64
		)
		if err := rows.Scan(&id, &score); err != nil {
			return nil, storageErr("scores", err)
		}
		out[id] = score
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("scores", err)
	}
	return out, nil
}
