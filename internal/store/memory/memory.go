// Package memory is an in-process store.Store, used for tests and the
// ephemeral dev mode. It mirrors the SQLite semantics exactly.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/MrSnakeDoc/stash/internal/domain"
	"github.com/MrSnakeDoc/stash/internal/store"
)

var _ store.Store = (*Index)(nil)

type bookmarkRow struct {
	user string
	b    domain.Bookmark // Tags unused, links live in Index.links
}

type tagRow struct {
	user string
	t    domain.Tag
}

type visitRow struct {
	user       string
	bookmarkID string
	visitedAt  string
}

// Index keeps all rows in maps behind a single RWMutex.
type Index struct {
	mu        sync.RWMutex
	bookmarks map[string]*bookmarkRow         // id -> row
	tags      map[string]*tagRow              // id -> row
	links     map[string]map[string]struct{}  // bookmark id -> tag ids
	visits    []visitRow                      // append-only
	scores    map[string]domain.BookmarkScore // bookmark id -> score
}

// NewIndex creates an empty store.
func NewIndex() *Index {
	return &Index{
		bookmarks: make(map[string]*bookmarkRow),
		tags:      make(map[string]*tagRow),
		links:     make(map[string]map[string]struct{}),
		scores:    make(map[string]domain.BookmarkScore),
	}
}

// ─────────────────────────────────────────────────────────────────
// Bookmarks
// ─────────────────────────────────────────────────────────────────

func (idx *Index) AddBookmark(_ context.Context, user string, b domain.Bookmark) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	owner := idx.bookmarkByURLLocked(user, b.URL)
	if owner == nil {
		if _, taken := idx.bookmarks[b.ID]; !taken {
			stored := b
			stored.Tags = nil
			owner = &bookmarkRow{user: user, b: stored}
			idx.bookmarks[b.ID] = owner
		}
	}
	if owner == nil {
		return nil
	}

	for _, t := range b.Tags {
		idx.linkLocked(user, owner.b.ID, t.ID)
	}
	return nil
}

func (idx *Index) bookmarkByURLLocked(user, url string) *bookmarkRow {
	for _, row := range idx.bookmarks {
		if row.user == user && row.b.URL == url {
			return row
		}
	}
	return nil
}

func (idx *Index) Bookmark(_ context.Context, user, id string) (*domain.Bookmark, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	row, ok := idx.bookmarks[id]
	if !ok || row.user != user {
		return nil, nil
	}
	b := idx.materializeLocked(row)
	return &b, nil
}

func (idx *Index) ListBookmarks(_ context.Context, user string, tagIDs []string) ([]domain.Bookmark, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	want := make(map[string]struct{}, len(tagIDs))
	for _, id := range tagIDs {
		want[id] = struct{}{}
	}

	out := []domain.Bookmark{}
	for id, row := range idx.bookmarks {
		if row.user != user {
			continue
		}
		links := idx.links[id]
		if len(want) == 0 {
			if len(links) > 0 {
				continue
			}
		} else if !hasAll(links, want) {
			continue
		}
		out = append(out, idx.materializeLocked(row))
	}

	idx.rankLocked(out)
	return out, nil
}

func (idx *Index) AllBookmarks(_ context.Context, user string) ([]domain.Bookmark, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := []domain.Bookmark{}
	for _, row := range idx.bookmarks {
		if row.user == user {
			out = append(out, idx.materializeLocked(row))
		}
	}
	idx.rankLocked(out)
	return out, nil
}

func hasAll(links, want map[string]struct{}) bool {
	for id := range want {
		if _, ok := links[id]; !ok {
			return false
		}
	}
	return true
}

// rankLocked orders scored first, score descending, then newest first.
func (idx *Index) rankLocked(bookmarks []domain.Bookmark) {
	sort.SliceStable(bookmarks, func(i, j int) bool {
		si, iok := idx.scores[bookmarks[i].ID]
		sj, jok := idx.scores[bookmarks[j].ID]
		if iok != jok {
			return iok
		}
		if iok && si.Score != sj.Score {
			return si.Score > sj.Score
		}
		if !bookmarks[i].CreatedAt.Equal(bookmarks[j].CreatedAt) {
			return bookmarks[i].CreatedAt.After(bookmarks[j].CreatedAt)
		}
		return bookmarks[i].ID < bookmarks[j].ID
	})
}

func (idx *Index) materializeLocked(row *bookmarkRow) domain.Bookmark {
	b := row.b
	tags := make([]domain.Tag, 0, len(idx.links[b.ID]))
	for tagID := range idx.links[b.ID] {
		if t, ok := idx.tags[tagID]; ok {
			tags = append(tags, t.t)
		}
	}
	b.Tags = domain.SortTags(tags)
	return b
}

func (idx *Index) ReplaceBookmark(_ context.Context, user string, b domain.Bookmark) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	row, ok := idx.bookmarks[b.ID]
	if !ok || row.user != user {
		return nil
	}
	if other := idx.bookmarkByURLLocked(user, b.URL); other != nil && other != row {
		return nil
	}
	row.b.Title = b.Title
	row.b.URL = b.URL
	return nil
}

func (idx *Index) DeleteBookmark(_ context.Context, user, id string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	row, ok := idx.bookmarks[id]
	if !ok || row.user != user {
		return nil
	}
	delete(idx.bookmarks, id)
	delete(idx.links, id)
	delete(idx.scores, id)

	kept := idx.visits[:0]
	for _, v := range idx.visits {
		if v.bookmarkID != id {
			kept = append(kept, v)
		}
	}
	idx.visits = kept
	return nil
}

func (idx *Index) AddTagsToBookmark(_ context.Context, user, bookmarkID string, tagIDs []string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, tagID := range tagIDs {
		idx.linkLocked(user, bookmarkID, tagID)
	}
	return nil
}

func (idx *Index) DropTagsFromBookmark(_ context.Context, user, bookmarkID string, tagIDs []string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	row, ok := idx.bookmarks[bookmarkID]
	if !ok || row.user != user {
		return nil
	}
	for _, tagID := range tagIDs {
		delete(idx.links[bookmarkID], tagID)
	}
	return nil
}

// linkLocked attaches a tag when both rows exist and belong to user.
func (idx *Index) linkLocked(user, bookmarkID, tagID string) {
	b, ok := idx.bookmarks[bookmarkID]
	if !ok || b.user != user {
		return
	}
	t, ok := idx.tags[tagID]
	if !ok || t.user != user {
		return
	}
	if idx.links[bookmarkID] == nil {
		idx.links[bookmarkID] = make(map[string]struct{})
	}
	idx.links[bookmarkID][tagID] = struct{}{}
}

// ─────────────────────────────────────────────────────────────────
// Tags
// ─────────────────────────────────────────────────────────────────

func (idx *Index) AddTag(_ context.Context, user string, t domain.Tag) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, taken := idx.tags[t.ID]; taken || idx.tagNameTakenLocked(user, t.Name, "") {
		return nil
	}
	idx.tags[t.ID] = &tagRow{user: user, t: t}
	return nil
}

func (idx *Index) tagNameTakenLocked(user, name, exceptID string) bool {
	for id, row := range idx.tags {
		if id != exceptID && row.user == user && row.t.Name == name {
			return true
		}
	}
	return false
}

func (idx *Index) Tag(_ context.Context, user, id string) (*domain.Tag, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	row, ok := idx.tags[id]
	if !ok || row.user != user {
		return nil, nil
	}
	t := row.t
	return &t, nil
}

func (idx *Index) Tags(_ context.Context, user string) ([]domain.Tag, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	tags := []domain.Tag{}
	for _, row := range idx.tags {
		if row.user == user {
			tags = append(tags, row.t)
		}
	}
	return domain.SortTags(tags), nil
}

func (idx *Index) UpdateTag(_ context.Context, user string, t domain.Tag) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	row, ok := idx.tags[t.ID]
	if !ok || row.user != user || idx.tagNameTakenLocked(user, t.Name, t.ID) {
		return nil
	}
	row.t.Name = t.Name
	row.t.Visibility = t.Visibility
	return nil
}

func (idx *Index) DeleteTag(_ context.Context, user, id string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	row, ok := idx.tags[id]
	if !ok || row.user != user {
		return nil
	}
	delete(idx.tags, id)
	for _, links := range idx.links {
		delete(links, id)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────
// Visits and scores
// ─────────────────────────────────────────────────────────────────

func (idx *Index) AddVisitLog(_ context.Context, user string, v domain.VisitLog) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	row, ok := idx.bookmarks[v.BookmarkID]
	if !ok || row.user != user {
		return nil
	}
	idx.visits = append(idx.visits, visitRow{
		user:       user,
		bookmarkID: v.BookmarkID,
		visitedAt:  domain.FormatTime(v.VisitedAt),
	})
	return nil
}

// AppendRawVisit stores a visit timestamp verbatim, bypassing validation.
// It exists to replay histories containing malformed rows.
func (idx *Index) AppendRawVisit(user, bookmarkID, visitedAt string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.visits = append(idx.visits, visitRow{user: user, bookmarkID: bookmarkID, visitedAt: visitedAt})
}

func (idx *Index) VisitLogs(_ context.Context, user string) ([]domain.VisitRecord, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := []domain.VisitRecord{}
	for _, v := range idx.visits {
		if v.user == user {
			out = append(out, domain.VisitRecord{BookmarkID: v.bookmarkID, VisitedAt: v.visitedAt})
		}
	}
	return out, nil
}

func (idx *Index) PruneVisitLogs(_ context.Context, before time.Time) (int64, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	cutoff := domain.FormatTime(before)
	kept := idx.visits[:0]
	var pruned int64
	for _, v := range idx.visits {
		if v.visitedAt < cutoff {
			pruned++
			continue
		}
		kept = append(kept, v)
	}
	idx.visits = kept
	return pruned, nil
}

func (idx *Index) UpsertScores(_ context.Context, scores []domain.BookmarkScore) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, s := range scores {
		if _, ok := idx.bookmarks[s.BookmarkID]; !ok {
			continue
		}
		idx.scores[s.BookmarkID] = s
	}
	return nil
}

func (idx *Index) Scores(_ context.Context, user string) (map[string]float64, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := map[string]float64{}
	for id, s := range idx.scores {
		if row, ok := idx.bookmarks[id]; ok && row.user == user {
			out[id] = s.Score
		}
	}
	return out, nil
}

func (idx *Index) Users(_ context.Context) ([]string, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	seen := map[string]struct{}{}
	for _, row := range idx.bookmarks {
		seen[row.user] = struct{}{}
	}
	for _, row := range idx.tags {
		seen[row.user] = struct{}{}
	}
	users := make([]string, 0, len(seen))
	for u := range seen {
		users = append(users, u)
	}
	sort.Strings(users)
	return users, nil
}

func (idx *Index) Ping(context.Context) error { return nil }

func (idx *Index) Close() error { return nil }
