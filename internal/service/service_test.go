package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/stash/internal/domain"
	"github.com/MrSnakeDoc/stash/internal/logger"
	"github.com/MrSnakeDoc/stash/internal/store"
	"github.com/MrSnakeDoc/stash/internal/store/memory"
)

var t0 = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

// seqIDs mints id-1, id-2, ...
type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (s *seqIDs) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("id-%d", s.n)
}

// fakeScraper answers from a fixed table. Unknown URLs fail.
type fakeScraper struct {
	mu        sync.Mutex
	pages     map[string]domain.WebpageInfo
	calls     int
	redirects map[string]string
}

func newFakeScraper() *fakeScraper {
	return &fakeScraper{pages: map[string]domain.WebpageInfo{}, redirects: map[string]string{}}
}

func (f *fakeScraper) page(url, title string) *fakeScraper {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[url] = domain.WebpageInfo{Title: title, URL: url}
	return f
}

func (f *fakeScraper) WebpageInfo(_ context.Context, url string) (domain.WebpageInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if to, ok := f.redirects[url]; ok {
		url = to
	}
	info, ok := f.pages[url]
	if !ok {
		return domain.WebpageInfo{}, &domain.RetrievalError{URL: url, Err: errors.New("connection refused")}
	}
	return info, nil
}

type env struct {
	clock   *domain.ManualClock
	store   store.Store
	scraper *fakeScraper
	svc     *BookmarkService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	return newEnvWithStore(t, memory.NewIndex())
}

func newEnvWithStore(t *testing.T, st store.Store) *env {
	t.Helper()
	clock := domain.NewManualClock(t0)
	sc := newFakeScraper()
	f := domain.Factory{Clock: clock, IDs: &seqIDs{}}
	return &env{
		clock:   clock,
		store:   st,
		scraper: sc,
		svc:     NewBookmarkService(f, st, sc, logger.NewNop(), nil),
	}
}

func TestCreateBookmark(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.scraper.page("https://go.dev", "The Go Programming Language")

	tag, err := e.svc.CreateTag(ctx, "alice", "lang", domain.Primary)
	require.NoError(t, err)

	b, err := e.svc.CreateBookmark(ctx, "alice", "https://go.dev", []domain.Tag{{ID: tag.ID}})
	require.NoError(t, err)
	require.NotNil(t, b)

	assert.Equal(t, "The Go Programming Language", b.Title)
	assert.Equal(t, "https://go.dev", b.URL)
	assert.Equal(t, t0, b.CreatedAt)
	require.Len(t, b.Tags, 1)
	assert.Equal(t, "lang", b.Tags[0].Name, "tags are returned in full")
}

func TestCreateBookmark_StoresFinalURL(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.scraper.page("https://go.dev/", "Go")
	e.scraper.redirects["http://golang.org"] = "https://go.dev/"

	b, err := e.svc.CreateBookmark(ctx, "alice", "http://golang.org", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://go.dev/", b.URL)
}

func TestCreateBookmark_RetrievalErrorPersistsNothing(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	b, err := e.svc.CreateBookmark(ctx, "alice", "https://unreachable.test", nil)
	assert.Nil(t, b)

	var re *domain.RetrievalError
	require.ErrorAs(t, err, &re)

	all, err := e.store.AllBookmarks(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreateBookmark_DuplicateURLAttachesTags(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.scraper.page("https://go.dev", "Go")

	first, err := e.svc.CreateBookmark(ctx, "alice", "https://go.dev", nil)
	require.NoError(t, err)

	tag, err := e.svc.CreateTag(ctx, "alice", "lang", domain.Secondary)
	require.NoError(t, err)

	second, err := e.svc.CreateBookmark(ctx, "alice", "https://go.dev", []domain.Tag{{ID: tag.ID}})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "the existing bookmark is returned")
	require.Len(t, second.Tags, 1)
	assert.Equal(t, tag.ID, second.Tags[0].ID)

	all, err := e.store.AllBookmarks(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRefreshBookmark(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.scraper.page("https://go.dev", "Old title")

	tag, err := e.svc.CreateTag(ctx, "alice", "lang", domain.Primary)
	require.NoError(t, err)
	b, err := e.svc.CreateBookmark(ctx, "alice", "https://go.dev", []domain.Tag{{ID: tag.ID}})
	require.NoError(t, err)

	e.scraper.page("https://go.dev", "New title")
	e.clock.Advance(time.Hour)

	refreshed, err := e.svc.RefreshBookmark(ctx, "alice", b.ID)
	require.NoError(t, err)
	require.NotNil(t, refreshed)
	assert.Equal(t, "New title", refreshed.Title)
	assert.Equal(t, b.ID, refreshed.ID)
	assert.Equal(t, b.CreatedAt, refreshed.CreatedAt)
	assert.Equal(t, b.Tags, refreshed.Tags)

	missing, err := e.svc.RefreshBookmark(ctx, "alice", "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	other, err := e.svc.RefreshBookmark(ctx, "bob", b.ID)
	require.NoError(t, err)
	assert.Nil(t, other, "another user's bookmark behaves as missing")
}

func TestCreateTag(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	tag, err := e.svc.CreateTag(ctx, "alice", "  work ", domain.Primary)
	require.NoError(t, err)
	assert.Equal(t, "work", tag.Name)

	again, err := e.svc.CreateTag(ctx, "alice", "work", domain.Secondary)
	require.NoError(t, err)
	assert.Equal(t, tag.ID, again.ID, "creating an existing name returns the existing tag")
	assert.Equal(t, domain.Primary, again.Visibility)

	_, err = e.svc.CreateTag(ctx, "alice", " ", domain.Primary)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = e.svc.CreateTag(ctx, "alice", "x", domain.Visibility("HIDDEN"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestUpdateTag(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	work, err := e.svc.CreateTag(ctx, "alice", "work", domain.Primary)
	require.NoError(t, err)
	_, err = e.svc.CreateTag(ctx, "alice", "home", domain.Primary)
	require.NoError(t, err)

	updated, err := e.svc.UpdateTag(ctx, "alice", work.ID, "office", domain.Secondary)
	require.NoError(t, err)
	assert.Equal(t, "office", updated.Name)
	assert.Equal(t, domain.Secondary, updated.Visibility)

	conflict, err := e.svc.UpdateTag(ctx, "alice", work.ID, "home", domain.Primary)
	require.NoError(t, err)
	assert.Equal(t, "office", conflict.Name, "rename onto an existing name is ignored")

	missing, err := e.svc.UpdateTag(ctx, "alice", "nope", "x", domain.Primary)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestLogVisit(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.scraper.page("https://go.dev", "Go")

	b, err := e.svc.CreateBookmark(ctx, "alice", "https://go.dev", nil)
	require.NoError(t, err)

	require.NoError(t, e.svc.LogVisit(ctx, "alice", b.ID))
	require.NoError(t, e.svc.LogVisit(ctx, "alice", b.ID), "same-instant visits are both kept")
	require.NoError(t, e.svc.LogVisit(ctx, "bob", b.ID), "foreign visits are dropped silently")

	visits, err := e.store.VisitLogs(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, visits, 2)
	assert.Equal(t, domain.FormatTime(t0), visits[0].VisitedAt)

	assert.ErrorIs(t, e.svc.LogVisit(ctx, "alice", ""), domain.ErrInvalidInput)
}

func TestDropTagsFromBookmark_WorkUrgent(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.scraper.page("https://tracker.test", "Tracker")

	work, err := e.svc.CreateTag(ctx, "alice", "work", domain.Primary)
	require.NoError(t, err)
	urgent, err := e.svc.CreateTag(ctx, "alice", "urgent", domain.Primary)
	require.NoError(t, err)

	b, err := e.svc.CreateBookmark(ctx, "alice", "https://tracker.test", []domain.Tag{{ID: work.ID}, {ID: urgent.ID}})
	require.NoError(t, err)

	require.NoError(t, e.svc.DropTagsFromBookmark(ctx, "alice", b.ID, []string{work.ID}))

	underUrgent, err := e.svc.Bookmarks(ctx, "alice", []string{urgent.ID})
	require.NoError(t, err)
	require.Len(t, underUrgent, 1)
	assert.Equal(t, b.ID, underUrgent[0].ID)

	underWork, err := e.svc.Bookmarks(ctx, "alice", []string{work.ID})
	require.NoError(t, err)
	assert.Empty(t, underWork)
}

func TestSearchBookmarks(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.scraper.page("https://kubernetes.io", "Kubernetes")
	e.scraper.page("https://grafana.com", "Grafana dashboards")
	e.scraper.page("https://lambda.io", "Lambda Calculus")

	tag, err := e.svc.CreateTag(ctx, "alice", "ops", domain.Primary)
	require.NoError(t, err)
	_, err = e.svc.CreateBookmark(ctx, "alice", "https://kubernetes.io", []domain.Tag{{ID: tag.ID}})
	require.NoError(t, err)
	_, err = e.svc.CreateBookmark(ctx, "alice", "https://grafana.com", nil)
	require.NoError(t, err)
	_, err = e.svc.CreateBookmark(ctx, "alice", "https://lambda.io", nil)
	require.NoError(t, err)

	got, err := e.svc.SearchBookmarks(ctx, "alice", "kube", 0)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "https://kubernetes.io", got[0].Bookmark.URL, "tagged bookmarks are searched too")

	empty, err := e.svc.SearchBookmarks(ctx, "alice", "   ", 0)
	require.NoError(t, err)
	assert.Empty(t, empty)

	limited, err := e.svc.SearchBookmarks(ctx, "alice", "a", 1)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(limited), 1)
}

func TestImportBookmarks(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	items := []ImportedBookmark{
		{Title: "Go", URL: "https://go.dev", Tags: []string{"Dev"}},
		{Title: "GitHub", URL: "https://github.com", Tags: []string{"Dev", "Social"}},
		{Title: "", URL: "https://untitled.test"},
		{Title: "Broken", URL: "  "},
	}

	res, err := e.svc.ImportBookmarks(ctx, "alice", items)
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Read: 4, Created: 3, TagsCreated: 2, Invalid: 1}, res)
	assert.Zero(t, e.scraper.calls, "imports never scrape")

	tags, err := e.svc.Tags(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, tags, 2)
	for _, tag := range tags {
		assert.Equal(t, domain.Primary, tag.Visibility)
	}

	dev := tags[0]
	require.Equal(t, "Dev", dev.Name)
	underDev, err := e.svc.Bookmarks(ctx, "alice", []string{dev.ID})
	require.NoError(t, err)
	assert.Len(t, underDev, 2)

	untagged, err := e.svc.Bookmarks(ctx, "alice", nil)
	require.NoError(t, err)
	require.Len(t, untagged, 1)
	assert.Equal(t, "https://untitled.test", untagged[0].Title, "missing titles fall back to the URL")

	again, err := e.svc.ImportBookmarks(ctx, "alice", items)
	require.NoError(t, err)
	assert.Zero(t, again.Created)
	assert.Zero(t, again.TagsCreated)
}
