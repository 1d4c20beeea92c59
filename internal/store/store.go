// Package store defines the persistence capability shared by every backing store.
package store

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/stash/internal/domain"
)

// Store persists bookmarks, tags, their links, visit logs and scores.
//
// Creations are idempotent: a duplicate unique key is silently ignored.
// Deletions of missing rows are no-ops. Lookups of missing rows return nil
// (or an empty slice) and no error. I/O failures are *domain.StorageError.
type Store interface {
	// AddBookmark inserts the bookmark unless the user already owns its URL,
	// then links its tags to whichever bookmark owns that URL.
	AddBookmark(ctx context.Context, user string, b domain.Bookmark) error
	Bookmark(ctx context.Context, user, id string) (*domain.Bookmark, error)
	// ListBookmarks with no tag ids returns untagged bookmarks; otherwise the
	// bookmarks carrying every given tag. Order: scored first, score
	// descending, then newest first.
	ListBookmarks(ctx context.Context, user string, tagIDs []string) ([]domain.Bookmark, error)
	// AllBookmarks ignores tags and returns every bookmark of the user.
	AllBookmarks(ctx context.Context, user string) ([]domain.Bookmark, error)
	// ReplaceBookmark updates title and URL, keeping id, creation time and tags.
	ReplaceBookmark(ctx context.Context, user string, b domain.Bookmark) error
	DeleteBookmark(ctx context.Context, user, id string) error

	AddTag(ctx context.Context, user string, t domain.Tag) error
	Tag(ctx context.Context, user, id string) (*domain.Tag, error)
	Tags(ctx context.Context, user string) ([]domain.Tag, error)
	// UpdateTag renames and re-tiers a tag. A rename onto an existing name is ignored.
	UpdateTag(ctx context.Context, user string, t domain.Tag) error
	DeleteTag(ctx context.Context, user, id string) error

	AddTagsToBookmark(ctx context.Context, user, bookmarkID string, tagIDs []string) error
	DropTagsFromBookmark(ctx context.Context, user, bookmarkID string, tagIDs []string) error

	AddVisitLog(ctx context.Context, user string, v domain.VisitLog) error
	VisitLogs(ctx context.Context, user string) ([]domain.VisitRecord, error)
	// PruneVisitLogs deletes visits strictly older than before.
	PruneVisitLogs(ctx context.Context, before time.Time) (int64, error)

	// UpsertScores replaces or inserts each row; each row is atomic on its own.
	UpsertScores(ctx context.Context, scores []domain.BookmarkScore) error
	Scores(ctx context.Context, user string) (map[string]float64, error)

	// Users lists every user owning at least one bookmark or tag.
	Users(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}
