package service

import (
	"context"
	"strings"

	"github.com/MrSnakeDoc/stash/internal/domain"
	"github.com/MrSnakeDoc/stash/internal/logger"
)

// ImportedBookmark is a bookmark read from an external file. Its title is
// trusted, so nothing is scraped. Tags are names, created as PRIMARY if absent.
type ImportedBookmark struct {
	Title string
	URL   string
	Tags  []string
}

// ImportResult counts what an import did.
type ImportResult struct {
	Read        int
	Created     int
	TagsCreated int
	Invalid     int
}

// ImportBookmarks saves every item for user. Re-importing the same file is a
// no-op apart from attaching tags that were added to it since.
func (s *BookmarkService) ImportBookmarks(ctx context.Context, user string, items []ImportedBookmark) (ImportResult, error) {
	res := ImportResult{Read: len(items)}

	existing, err := s.store.Tags(ctx, user)
	if err != nil {
		return res, err
	}
	tagsByName := make(map[string]domain.Tag, len(existing))
	for _, t := range existing {
		tagsByName[t.Name] = t
	}

	before, err := s.store.AllBookmarks(ctx, user)
	if err != nil {
		return res, err
	}
	known := make(map[string]struct{}, len(before))
	for _, b := range before {
		known[b.URL] = struct{}{}
	}

	for _, item := range items {
		url := strings.TrimSpace(item.URL)
		if url == "" {
			res.Invalid++
			continue
		}

		tags := make([]domain.Tag, 0, len(item.Tags))
		for _, name := range item.Tags {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			t, ok := tagsByName[name]
			if !ok {
				t = domain.NewTag(s.factory, name, domain.Primary)
				if err := s.store.AddTag(ctx, user, t); err != nil {
					return res, err
				}
				tagsByName[name] = t
				res.TagsCreated++
			}
			tags = append(tags, t)
		}

		title := strings.TrimSpace(item.Title)
		if title == "" {
			title = url
		}
		b := domain.NewBookmark(s.factory, domain.WebpageInfo{Title: title, URL: url}, tags)
		if err := s.store.AddBookmark(ctx, user, b); err != nil {
			return res, err
		}
		if _, ok := known[url]; !ok {
			known[url] = struct{}{}
			res.Created++
		}
	}

	s.metrics.Imported(res.Read)
	s.logger.Info("bookmarks imported",
		logger.String("user", user),
		logger.Int("read", res.Read),
		logger.Int("created", res.Created),
		logger.Int("tags_created", res.TagsCreated),
		logger.Int("invalid", res.Invalid))
	return res, nil
}
