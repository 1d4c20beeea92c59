package domain

import "time"

// Bookmark is a URL saved by one user.
// (user, URL) is unique: saving the same URL twice keeps a single row.
type Bookmark struct {
	// ─────────────────────────────
	// Identity (immutable)
	// ─────────────────────────────

	// ID is the opaque unique identifier, minted by the IDGenerator.
	ID string `json:"id"`

	// URL is the final URL reported by the scraper (after redirects).
	URL string `json:"url"`

	// ─────────────────────────────
	// Content
	// ─────────────────────────────

	// Title is the page title at creation (or last refresh) time.
	Title string `json:"title"`

	// Tags is the full tag set: PRIMARY by name, then SECONDARY by name.
	Tags []Tag `json:"tags"`

	// ─────────────────────────────
	// Metadata
	// ─────────────────────────────

	// CreatedAt is the creation instant. Ties in score are broken on it.
	CreatedAt time.Time `json:"createdAt"`
}

// VisitLog is one visit of a bookmark. Rows are append-only.
type VisitLog struct {
	BookmarkID string    `json:"bookmarkId"`
	VisitedAt  time.Time `json:"visitedAt"`
}

// VisitRecord is a visit as persisted: the timestamp is kept verbatim so a
// malformed row can be reported instead of silently coerced.
type VisitRecord struct {
	BookmarkID string
	VisitedAt  string
}

// BookmarkScore is the last computed visit rate of a bookmark.
type BookmarkScore struct {
	BookmarkID string    `json:"bookmarkId"`
	Score      float64   `json:"score"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// WebpageInfo is what the scraper learns about a URL.
type WebpageInfo struct {
	Title string
	URL   string
}

// NewBookmark builds a bookmark for a freshly scraped page.
func NewBookmark(f Factory, info WebpageInfo, tags []Tag) Bookmark {
	return Bookmark{
		ID:        f.IDs.NewID(),
		Title:     info.Title,
		URL:       info.URL,
		Tags:      SortTags(tags),
		CreatedAt: f.Clock.Now(),
	}
}

// NewVisitLog stamps a visit with the factory clock.
func NewVisitLog(f Factory, bookmarkID string) VisitLog {
	return VisitLog{BookmarkID: bookmarkID, VisitedAt: f.Clock.Now()}
}

// RecomputeRun summarizes one score recomputation for a user.
type RecomputeRun struct {
	User      string        `json:"user"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
	Visits    int           `json:"visits"`
	Scored    int           `json:"scored"`
	Skipped   int           `json:"skipped"`
	Error     string        `json:"error,omitempty"`
}
