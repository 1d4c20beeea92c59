// Package storetest holds behaviour checks every store.Store must pass.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/stash/internal/domain"
	"github.com/MrSnakeDoc/stash/internal/store"
)

// Factory returns a fresh, empty store.
type Factory func(t *testing.T) store.Store

var base = time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)

// Run executes the full suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"UntaggedListing", untaggedListing},
		{"AllTagsRequired", allTagsRequired},
		{"FullTagSetSorted", fullTagSetSorted},
		{"RankOrder", rankOrder},
		{"DuplicateURLAttachesTags", duplicateURLAttachesTags},
		{"MissingLookups", missingLookups},
		{"UserIsolation", userIsolation},
		{"TagLifecycle", tagLifecycle},
		{"DeleteCascades", deleteCascades},
		{"VisitsAndPrune", visitsAndPrune},
		{"ScoresOverwrite", scoresOverwrite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

func mkTag(id, name string, v domain.Visibility) domain.Tag {
	return domain.Tag{ID: id, Name: name, Visibility: v, CreatedAt: base}
}

func mkBookmark(id string, created time.Time, tags ...domain.Tag) domain.Bookmark {
	return domain.Bookmark{ID: id, Title: id, URL: "https://" + id + ".test", CreatedAt: created, Tags: tags}
}

func idsOf(bookmarks []domain.Bookmark) []string {
	out := make([]string, 0, len(bookmarks))
	for _, b := range bookmarks {
		out = append(out, b.ID)
	}
	return out
}

func untaggedListing(t *testing.T, s store.Store) {
	ctx := context.Background()
	x := mkTag("x", "x", domain.Primary)
	require.NoError(t, s.AddTag(ctx, "u", x))
	require.NoError(t, s.AddBookmark(ctx, "u", mkBookmark("bare", base)))
	require.NoError(t, s.AddBookmark(ctx, "u", mkBookmark("tagged", base, x)))

	got, err := s.ListBookmarks(ctx, "u", []string{})
	require.NoError(t, err)
	assert.Equal(t, []string{"bare"}, idsOf(got))
}

func allTagsRequired(t *testing.T, s store.Store) {
	ctx := context.Background()
	t1, t2 := mkTag("t1", "one", domain.Primary), mkTag("t2", "two", domain.Secondary)
	require.NoError(t, s.AddTag(ctx, "u", t1))
	require.NoError(t, s.AddTag(ctx, "u", t2))
	require.NoError(t, s.AddBookmark(ctx, "u", mkBookmark("only-t1", base, t1)))
	require.NoError(t, s.AddBookmark(ctx, "u", mkBookmark("both", base, t1, t2)))

	got, err := s.ListBookmarks(ctx, "u", []string{"t1", "t2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"both"}, idsOf(got))

	got, err = s.ListBookmarks(ctx, "u", []string{"t1"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"only-t1", "both"}, idsOf(got))
}

func fullTagSetSorted(t *testing.T, s store.Store) {
	ctx := context.Background()
	tags := []domain.Tag{
		mkTag("a", "b-secondary", domain.Secondary),
		mkTag("b", "z-primary", domain.Primary),
		mkTag("c", "a-secondary", domain.Secondary),
		mkTag("d", "a-primary", domain.Primary),
	}
	for _, tg := range tags {
		require.NoError(t, s.AddTag(ctx, "u", tg))
	}
	require.NoError(t, s.AddBookmark(ctx, "u", mkBookmark("bm", base, tags...)))

	got, err := s.ListBookmarks(ctx, "u", []string{"a"})
	require.NoError(t, err)
	require.Len(t, got, 1)

	names := make([]string, 0, 4)
	for _, tg := range got[0].Tags {
		names = append(names, tg.Name)
	}
	assert.Equal(t, []string{"a-primary", "z-primary", "a-secondary", "b-secondary"}, names)
}

func rankOrder(t *testing.T, s store.Store) {
	ctx := context.Background()
	for i, id := range []string{"n1", "n2", "s-low", "s-tie-old", "s-tie-new"} {
		require.NoError(t, s.AddBookmark(ctx, "u", mkBookmark(id, base.Add(time.Duration(i)*time.Minute))))
	}
	require.NoError(t, s.UpsertScores(ctx, []domain.BookmarkScore{
		{BookmarkID: "s-low", Score: 0.5, UpdatedAt: base},
		{BookmarkID: "s-tie-old", Score: 2, UpdatedAt: base},
		{BookmarkID: "s-tie-new", Score: 2, UpdatedAt: base},
	}))

	got, err := s.ListBookmarks(ctx, "u", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"s-tie-new", "s-tie-old", "s-low", "n2", "n1"}, idsOf(got))
}

func duplicateURLAttachesTags(t *testing.T, s store.Store) {
	ctx := context.Background()
	tg := mkTag("t", "t", domain.Primary)
	require.NoError(t, s.AddTag(ctx, "u", tg))

	first := mkBookmark("first", base)
	again := first
	again.ID = "second"
	again.Tags = []domain.Tag{tg}

	require.NoError(t, s.AddBookmark(ctx, "u", first))
	require.NoError(t, s.AddBookmark(ctx, "u", again))
	require.NoError(t, s.AddBookmark(ctx, "u", again))

	all, err := s.AllBookmarks(ctx, "u")
	require.NoError(t, err)
	require.Equal(t, []string{"first"}, idsOf(all))
	require.Len(t, all[0].Tags, 1)
	assert.Equal(t, "t", all[0].Tags[0].ID)
}

func missingLookups(t *testing.T, s store.Store) {
	ctx := context.Background()

	b, err := s.Bookmark(ctx, "u", "nope")
	require.NoError(t, err)
	assert.Nil(t, b)

	tg, err := s.Tag(ctx, "u", "nope")
	require.NoError(t, err)
	assert.Nil(t, tg)

	list, err := s.ListBookmarks(ctx, "u", []string{"nope"})
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, s.DeleteBookmark(ctx, "u", "nope"))
	require.NoError(t, s.DeleteTag(ctx, "u", "nope"))
	require.NoError(t, s.DropTagsFromBookmark(ctx, "u", "nope", []string{"nope"}))
	require.NoError(t, s.AddTagsToBookmark(ctx, "u", "nope", []string{"nope"}))
}

func userIsolation(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.AddTag(ctx, "alice", mkTag("ta", "shared", domain.Primary)))
	require.NoError(t, s.AddTag(ctx, "bob", mkTag("tb", "shared", domain.Primary)))
	require.NoError(t, s.AddBookmark(ctx, "alice", mkBookmark("ba", base)))

	require.NoError(t, s.AddTagsToBookmark(ctx, "alice", "ba", []string{"tb"}))
	require.NoError(t, s.AddTagsToBookmark(ctx, "bob", "ba", []string{"tb"}))

	b, err := s.Bookmark(ctx, "alice", "ba")
	require.NoError(t, err)
	assert.Empty(t, b.Tags)

	other, err := s.Bookmark(ctx, "bob", "ba")
	require.NoError(t, err)
	assert.Nil(t, other)

	bobTags, err := s.Tags(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"tb"}, domain.TagIDs(bobTags))

	users, err := s.Users(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, users)
}

func tagLifecycle(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.AddTag(ctx, "u", mkTag("t1", "work", domain.Secondary)))
	require.NoError(t, s.AddTag(ctx, "u", mkTag("t2", "work", domain.Primary)))
	require.NoError(t, s.AddTag(ctx, "u", mkTag("t3", "home", domain.Secondary)))

	tags, err := s.Tags(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, []string{"t3", "t1"}, domain.TagIDs(tags))

	require.NoError(t, s.UpdateTag(ctx, "u", domain.Tag{ID: "t3", Name: "work", Visibility: domain.Primary}))
	got, err := s.Tag(ctx, "u", "t3")
	require.NoError(t, err)
	assert.Equal(t, "home", got.Name)

	require.NoError(t, s.UpdateTag(ctx, "u", domain.Tag{ID: "t3", Name: "house", Visibility: domain.Primary}))
	got, err = s.Tag(ctx, "u", "t3")
	require.NoError(t, err)
	assert.Equal(t, "house", got.Name)
	assert.Equal(t, domain.Primary, got.Visibility)
}

func deleteCascades(t *testing.T, s store.Store) {
	ctx := context.Background()
	work, urgent := mkTag("work", "work", domain.Primary), mkTag("urgent", "urgent", domain.Primary)
	require.NoError(t, s.AddTag(ctx, "u", work))
	require.NoError(t, s.AddTag(ctx, "u", urgent))
	require.NoError(t, s.AddBookmark(ctx, "u", mkBookmark("keep", base, work, urgent)))
	require.NoError(t, s.AddBookmark(ctx, "u", mkBookmark("drop", base, work)))
	require.NoError(t, s.AddVisitLog(ctx, "u", domain.VisitLog{BookmarkID: "drop", VisitedAt: base}))
	require.NoError(t, s.UpsertScores(ctx, []domain.BookmarkScore{{BookmarkID: "drop", Score: 1, UpdatedAt: base}}))

	require.NoError(t, s.DeleteTag(ctx, "u", "work"))
	got, err := s.ListBookmarks(ctx, "u", []string{"urgent"})
	require.NoError(t, err)
	assert.Equal(t, []string{"keep"}, idsOf(got))

	// "drop" lost its only tag and is now untagged.
	got, err = s.ListBookmarks(ctx, "u", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"drop"}, idsOf(got))

	require.NoError(t, s.DeleteBookmark(ctx, "u", "drop"))
	visits, err := s.VisitLogs(ctx, "u")
	require.NoError(t, err)
	assert.Empty(t, visits)
	scores, err := s.Scores(ctx, "u")
	require.NoError(t, err)
	assert.Empty(t, scores)
}

func visitsAndPrune(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.AddBookmark(ctx, "u", mkBookmark("b", base)))
	for _, d := range []time.Duration{0, 0, 24 * time.Hour, 72 * time.Hour} {
		require.NoError(t, s.AddVisitLog(ctx, "u", domain.VisitLog{BookmarkID: "b", VisitedAt: base.Add(d)}))
	}
	require.NoError(t, s.AddVisitLog(ctx, "u", domain.VisitLog{BookmarkID: "ghost", VisitedAt: base}))

	visits, err := s.VisitLogs(ctx, "u")
	require.NoError(t, err)
	assert.Len(t, visits, 4)

	n, err := s.PruneVisitLogs(ctx, base.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	visits, err = s.VisitLogs(ctx, "u")
	require.NoError(t, err)
	require.Len(t, visits, 1)
	assert.Equal(t, domain.FormatTime(base.Add(72*time.Hour)), visits[0].VisitedAt)
}

func scoresOverwrite(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.AddBookmark(ctx, "u", mkBookmark("b", base)))

	require.NoError(t, s.UpsertScores(ctx, []domain.BookmarkScore{{BookmarkID: "b", Score: 3, UpdatedAt: base}}))
	require.NoError(t, s.UpsertScores(ctx, []domain.BookmarkScore{{BookmarkID: "b", Score: 1, UpdatedAt: base.Add(time.Hour)}}))
	require.NoError(t, s.UpsertScores(ctx, []domain.BookmarkScore{{BookmarkID: "deleted", Score: 1, UpdatedAt: base}}))

	scores, err := s.Scores(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"b": 1}, scores)
}
