package service

import (
	"context"
	"strings"

	"github.com/MrSnakeDoc/stash/internal/domain"
	"github.com/MrSnakeDoc/stash/internal/logger"
)

// DefaultSearchLimit caps search results when the caller gives no limit.
const DefaultSearchLimit = 20

// SearchBookmarks matches query against the title and host of every bookmark
// of the user, whatever its tags, and boosts frequently visited ones.
func (s *BookmarkService) SearchBookmarks(ctx context.Context, user, query string, limit int) ([]domain.BookmarkCandidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.BookmarkCandidate{}, nil
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	bookmarks, err := s.store.AllBookmarks(ctx, user)
	if err != nil {
		return nil, err
	}
	scores, err := s.store.Scores(ctx, user)
	if err != nil {
		return nil, err
	}

	candidates := domain.RankBookmarkCandidates(query, bookmarks, scores)
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	s.logger.Debug("bookmark search",
		logger.String("user", user),
		logger.String("query", query),
		logger.Int("matches", len(candidates)))
	return candidates, nil
}
