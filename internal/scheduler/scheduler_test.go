package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MrSnakeDoc/stash/internal/domain"
	"github.com/MrSnakeDoc/stash/internal/logger"
	"github.com/MrSnakeDoc/stash/internal/scoring"
	"github.com/MrSnakeDoc/stash/internal/service"
	"github.com/MrSnakeDoc/stash/internal/store"
	"github.com/MrSnakeDoc/stash/internal/store/memory"
)

var now = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	clock *domain.ManualClock
	store *memory.Index
	svc   *service.BookmarkService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := domain.NewManualClock(now)
	idx := memory.NewIndex()
	f := domain.Factory{Clock: clock, IDs: domain.UUIDGenerator{}}
	return &fixture{
		clock: clock,
		store: idx,
		svc:   service.NewBookmarkService(f, idx, nil, logger.NewNop(), nil),
	}
}

// seed imports one bookmark per URL for user and returns their ids.
func (fx *fixture) seed(t *testing.T, user string, urls ...string) []string {
	t.Helper()
	ctx := context.Background()
	items := make([]service.ImportedBookmark, 0, len(urls))
	for _, u := range urls {
		items = append(items, service.ImportedBookmark{Title: u, URL: u})
	}
	if _, err := fx.svc.ImportBookmarks(ctx, user, items); err != nil {
		t.Fatalf("ImportBookmarks() error = %v", err)
	}
	all, err := fx.store.AllBookmarks(ctx, user)
	if err != nil {
		t.Fatalf("AllBookmarks() error = %v", err)
	}
	byURL := make(map[string]string, len(all))
	for _, b := range all {
		byURL[b.URL] = b.ID
	}
	ids := make([]string, 0, len(urls))
	for _, u := range urls {
		ids = append(ids, byURL[u])
	}
	return ids
}

func (fx *fixture) recomputer() *service.Recomputer {
	sc := service.NewScoringService(fx.store, scoring.New(scoring.SkipMalformed), fx.clock, logger.NewNop())
	return service.NewRecomputer(sc, logger.NewNop(), service.RecomputerOptions{})
}

func TestScoreRefresher_RefreshAll(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	users := []string{"alice", "bob", "carol"}
	ids := map[string]string{}
	for _, u := range users {
		id := fx.seed(t, u, "https://"+u+".test")[0]
		ids[u] = id
		if err := fx.svc.LogVisit(ctx, u, id); err != nil {
			t.Fatalf("LogVisit() error = %v", err)
		}
	}

	sr := NewScoreRefresher(fx.store, fx.recomputer(), logger.NewNop(), nil, time.Hour, 2, nil)
	n, err := sr.RefreshAll(ctx)
	if err != nil {
		t.Fatalf("RefreshAll() error = %v", err)
	}
	if n != len(users) {
		t.Errorf("RefreshAll() rescored %d users, want %d", n, len(users))
	}

	for _, u := range users {
		scores, err := fx.store.Scores(ctx, u)
		if err != nil {
			t.Fatalf("Scores() error = %v", err)
		}
		if _, ok := scores[ids[u]]; !ok {
			t.Errorf("user %s has no score for %s", u, ids[u])
		}
	}
}

// brokenVisits fails visit log reads for a single user.
type brokenVisits struct {
	store.Store
	user string
}

func (b brokenVisits) VisitLogs(ctx context.Context, user string) ([]domain.VisitRecord, error) {
	if user == b.user {
		return nil, &domain.StorageError{Op: "visit logs", Err: errors.New("database is locked")}
	}
	return b.Store.VisitLogs(ctx, user)
}

func TestScoreRefresher_OneFailureDoesNotStopOthers(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	fx.seed(t, "alice", "https://a.test")
	fx.seed(t, "bob", "https://b.test")

	st := brokenVisits{Store: fx.store, user: "alice"}
	sc := service.NewScoringService(st, scoring.New(scoring.SkipMalformed), fx.clock, logger.NewNop())
	r := service.NewRecomputer(sc, logger.NewNop(), service.RecomputerOptions{})

	sr := NewScoreRefresher(st, r, logger.NewNop(), nil, time.Hour, 0, nil)
	n, err := sr.RefreshAll(ctx)
	if err == nil {
		t.Fatal("RefreshAll() should report the failed user")
	}
	if n != 1 {
		t.Errorf("RefreshAll() rescored %d users, want 1", n)
	}
}

func TestScoreRefresher_ManualTrigger(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fx := newFixture(t)
	id := fx.seed(t, "alice", "https://a.test")[0]
	if err := fx.svc.LogVisit(ctx, "alice", id); err != nil {
		t.Fatalf("LogVisit() error = %v", err)
	}

	trigger := make(chan struct{}, 1)
	sr := NewScoreRefresher(fx.store, fx.recomputer(), logger.NewNop(), nil, time.Hour, 1, trigger)
	if err := sr.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer sr.Stop()

	if !Notify(trigger) {
		t.Fatal("Notify() on an empty trigger should succeed")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		scores, _ := fx.store.Scores(ctx, "alice")
		if _, ok := scores[id]; ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("manual trigger did not rescore")
}

func TestScoreRefresher_StartRejectsZeroInterval(t *testing.T) {
	fx := newFixture(t)
	sr := NewScoreRefresher(fx.store, fx.recomputer(), logger.NewNop(), nil, 0, 1, nil)
	if err := sr.Start(context.Background()); err == nil {
		t.Error("Start() with a zero interval should fail")
	}
}

func TestVisitLogPruner_Prune(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	ids := fx.seed(t, "alice", "https://a.test", "https://b.test")

	visits := []struct {
		id  string
		age time.Duration
	}{
		{ids[0], 40 * 24 * time.Hour}, // outside the window
		{ids[0], 31 * 24 * time.Hour}, // outside the window
		{ids[1], 10 * 24 * time.Hour},
		{ids[1], time.Hour},
	}
	for _, v := range visits {
		err := fx.store.AddVisitLog(ctx, "alice", domain.VisitLog{BookmarkID: v.id, VisitedAt: now.Add(-v.age)})
		if err != nil {
			t.Fatalf("AddVisitLog() error = %v", err)
		}
	}

	p := NewVisitLogPruner(fx.store, fx.clock, logger.NewNop(), nil, time.Hour, 30*24*time.Hour)
	n, err := p.Prune(ctx)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Prune() deleted %d visits, want 2", n)
	}

	left, err := fx.store.VisitLogs(ctx, "alice")
	if err != nil {
		t.Fatalf("VisitLogs() error = %v", err)
	}
	if len(left) != 2 {
		t.Fatalf("VisitLogs() returned %d visits, want 2", len(left))
	}
	for _, v := range left {
		if v.BookmarkID != ids[1] {
			t.Errorf("visit of %s survived pruning", v.BookmarkID)
		}
	}

	// Nothing more to do on a second pass.
	n, err = p.Prune(ctx)
	if err != nil || n != 0 {
		t.Errorf("second Prune() = (%d, %v), want (0, nil)", n, err)
	}
}

func TestVisitLogPruner_StartRequiresRetention(t *testing.T) {
	fx := newFixture(t)
	p := NewVisitLogPruner(fx.store, fx.clock, logger.NewNop(), nil, time.Hour, 0)
	if err := p.Start(context.Background()); err == nil {
		t.Error("Start() without retention should fail")
	}
}

const bookmarksYAML = `---
- Developer:
    - Github:
        - abbr: GH
          href: https://github.com/
- Reading:
    - Github:
        - abbr: GH
          href: https://github.com/
    - Lobsters:
        - abbr: LO
          href: https://lobste.rs/
`

func TestBookmarkImporter_Import(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	path := filepath.Join(t.TempDir(), "bookmarks.yaml")
	if err := os.WriteFile(path, []byte(bookmarksYAML), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	bi := NewBookmarkImporter(path, "alice", fx.svc, logger.NewNop(), nil, time.Hour, nil)
	res, err := bi.Import(ctx)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if res.Read != 2 || res.Created != 2 || res.TagsCreated != 2 {
		t.Errorf("Import() = %+v, want 2 read, 2 created, 2 tags", res)
	}

	tags, err := fx.svc.Tags(ctx, "alice")
	if err != nil {
		t.Fatalf("Tags() error = %v", err)
	}
	if len(tags) != 2 {
		t.Fatalf("Tags() returned %d tags, want 2", len(tags))
	}

	var developer string
	for _, tg := range tags {
		if tg.Name == "Developer" {
			developer = tg.ID
		}
	}
	got, err := fx.svc.Bookmarks(ctx, "alice", []string{developer})
	if err != nil {
		t.Fatalf("Bookmarks() error = %v", err)
	}
	if len(got) != 1 || got[0].URL != "https://github.com/" {
		t.Errorf("Developer bookmarks = %+v, want only github", got)
	}

	// Importing the same file again creates nothing.
	res, err = bi.Import(ctx)
	if err != nil {
		t.Fatalf("second Import() error = %v", err)
	}
	if res.Created != 0 || res.TagsCreated != 0 {
		t.Errorf("second Import() = %+v, want nothing created", res)
	}
}

func TestBookmarkImporter_StartFailsOnMissingFile(t *testing.T) {
	fx := newFixture(t)
	bi := NewBookmarkImporter("/nonexistent/bookmarks.yaml", "alice", fx.svc, logger.NewNop(), nil, time.Hour, nil)
	if err := bi.Start(context.Background()); err == nil {
		t.Error("Start() with a missing file should fail")
	}
}

func TestNotify(t *testing.T) {
	if Notify(nil) {
		t.Error("Notify(nil) should report false")
	}

	ch := make(chan struct{}, 1)
	if !Notify(ch) {
		t.Error("first Notify() should succeed")
	}
	if Notify(ch) {
		t.Error("Notify() with a pending trigger should report false")
	}
}
