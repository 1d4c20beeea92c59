package httpserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/MrSnakeDoc/stash/internal/auth"
	"github.com/MrSnakeDoc/stash/internal/domain"
	"github.com/MrSnakeDoc/stash/internal/httpserver/deps"
	"github.com/MrSnakeDoc/stash/internal/httpserver/routes"
	"github.com/MrSnakeDoc/stash/internal/logger"
	"github.com/MrSnakeDoc/stash/internal/metrics"
	"github.com/MrSnakeDoc/stash/internal/scoring"
	"github.com/MrSnakeDoc/stash/internal/scraper"
	"github.com/MrSnakeDoc/stash/internal/service"
	"github.com/MrSnakeDoc/stash/internal/store/memory"
)

type harness struct {
	t          *testing.T
	api        *httptest.Server
	site       *httptest.Server
	store      *memory.Index
	recomputer *service.Recomputer
	rescore    chan struct{}
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/go":
			fmt.Fprint(w, "<html><head><title>The Go Programming Language</title></head></html>")
		case "/rust":
			fmt.Fprint(w, "<html><head><title>Rust Programming Language</title></head></html>")
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(site.Close)

	hash, err := bcrypt.GenerateFromPassword([]byte("wonderland"), bcrypt.MinCost)
	require.NoError(t, err)
	users, err := auth.ParseUsers([]byte(fmt.Sprintf("users:\n  - username: alice\n    password_hash: %q\n  - username: bob\n    password_hash: %q\n", hash, hash)))
	require.NoError(t, err)

	log := logger.NewNop()
	idx := memory.NewIndex()
	m := metrics.New(prometheus.NewRegistry())
	factory := domain.DefaultFactory()
	bookmarks := service.NewBookmarkService(factory, idx, scraper.New(2*time.Second, log), log, m)
	sc := service.NewScoringService(idx, scoring.New(scoring.SkipMalformed), factory.Clock, log)
	rec := service.NewRecomputer(sc, log, service.RecomputerOptions{Metrics: m})

	rescore := make(chan struct{}, 1)
	d := deps.Deps{
		Logger:         log,
		StartTime:      time.Now(),
		Version:        "test",
		RateLimitBurst: 1000,
		RateLimitRate:  1000,
		Users:          users,
		Bookmarks:      bookmarks,
		Recomputer:     rec,
		Store:          idx,
		StoreKind:      "memory",
		Metrics:        m,
		RescoreTrigger: rescore,
	}

	api := httptest.NewServer(NewRouter(5*time.Second, d))
	t.Cleanup(api.Close)

	return &harness{t: t, api: api, site: site, store: idx, recomputer: rec, rescore: rescore}
}

// do sends a request as alice and decodes a JSON response into out when given.
func (h *harness) do(method, path string, body any, out any) int {
	return h.doAs("alice", method, path, body, out)
}

func (h *harness) doAs(user, method, path string, body any, out any) int {
	h.t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		buf, err := json.Marshal(b)
		require.NoError(h.t, err)
		r = bytes.NewReader(buf)
	}

	req, err := http.NewRequest(method, h.api.URL+path, r)
	require.NoError(h.t, err)
	if user != "" {
		req.SetBasicAuth(user, "wonderland")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(h.t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(h.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestAPIRequiresAuth(t *testing.T) {
	h := newHarness(t)

	for _, path := range []string{"/", "/api/user", "/api/tag", "/api/bookmark"} {
		assert.Equal(t, http.StatusUnauthorized, h.doAs("", http.MethodGet, path, nil, nil), path)
	}

	var user string
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/user", nil, &user))
	assert.Equal(t, "alice", user)
}

func TestTagLifecycle(t *testing.T) {
	h := newHarness(t)

	var work, dup domain.Tag
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/api/tag", map[string]string{"tagName": "work", "visibility": "PRIMARY"}, &work))
	assert.Equal(t, "work", work.Name)
	assert.Equal(t, domain.Primary, work.Visibility)

	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/api/tag", map[string]string{"tagName": "work", "visibility": "PRIMARY"}, &dup))
	assert.Equal(t, work.ID, dup.ID, "creating an existing name returns the existing tag")

	var updated domain.Tag
	require.Equal(t, http.StatusOK, h.do(http.MethodPut, "/api/tag", map[string]string{
		"tagId": work.ID, "updatedTagName": "office", "updatedVisibility": "SECONDARY",
	}, &updated))
	assert.Equal(t, "office", updated.Name)
	assert.Equal(t, domain.Secondary, updated.Visibility)

	assert.Equal(t, http.StatusNotFound, h.do(http.MethodPut, "/api/tag", map[string]string{
		"tagId": "missing", "updatedTagName": "x", "updatedVisibility": "PRIMARY",
	}, nil))

	require.Equal(t, http.StatusNoContent, h.do(http.MethodDelete, "/api/tag", map[string]string{"tagId": work.ID}, nil))

	var tags []domain.Tag
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/tag", nil, &tags))
	assert.Empty(t, tags)
}

func TestBadRequests(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{"malformed json", http.MethodPost, "/api/tag", "{not json"},
		{"empty body", http.MethodPost, "/api/bookmark", ""},
		{"invalid visibility", http.MethodPost, "/api/tag", map[string]string{"tagName": "x", "visibility": "TERTIARY"}},
		{"empty tag name", http.MethodPost, "/api/tag", map[string]string{"tagName": " ", "visibility": "PRIMARY"}},
		{"missing url", http.MethodPost, "/api/bookmark", map[string]any{"tags": []any{}}},
		{"missing bookmark id", http.MethodPost, "/api/bookmark/visit", map[string]string{}},
		{"bad limit", http.MethodGet, "/api/bookmark/search?q=go&limit=x", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp struct {
				Error string `json:"error"`
			}
			assert.Equal(t, http.StatusBadRequest, h.do(tt.method, tt.path, tt.body, &resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestCreateBookmarkScrapeFailureIsBadGateway(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, http.StatusBadGateway, h.do(http.MethodPost, "/api/bookmark", map[string]any{"url": h.site.URL + "/gone", "tags": []any{}}, nil))

	var list []domain.Bookmark
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/bookmark", nil, &list))
	assert.Empty(t, list, "nothing is persisted when scraping fails")
}

func TestBookmarkFlow(t *testing.T) {
	h := newHarness(t)

	var lang domain.Tag
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/api/tag", map[string]string{"tagName": "lang", "visibility": "PRIMARY"}, &lang))

	var goBM, rustBM domain.Bookmark
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/api/bookmark", map[string]any{
		"url": h.site.URL + "/go", "tags": []domain.Tag{lang},
	}, &goBM))
	assert.Equal(t, "The Go Programming Language", goBM.Title)
	require.Len(t, goBM.Tags, 1)

	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/api/bookmark", map[string]any{
		"url": h.site.URL + "/rust", "tags": []any{},
	}, &rustBM))

	// Untagged listing only has rust; the lang filter only has go.
	var list []domain.Bookmark
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/bookmark", nil, &list))
	require.Len(t, list, 1)
	assert.Equal(t, rustBM.ID, list[0].ID)

	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/bookmark?tag="+lang.ID, nil, &list))
	require.Len(t, list, 1)
	assert.Equal(t, goBM.ID, list[0].ID)

	// Tag rust too, then drop the tag from go.
	require.Equal(t, http.StatusNoContent, h.do(http.MethodPost, "/api/bookmark/tag", map[string]any{"bookmarkId": rustBM.ID, "tags": []string{lang.ID}}, nil))
	require.Equal(t, http.StatusNoContent, h.do(http.MethodDelete, "/api/bookmark/tag", map[string]any{"bookmarkId": goBM.ID, "tags": []string{lang.ID}}, nil))
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/bookmark?tag="+lang.ID, nil, &list))
	require.Len(t, list, 1)
	assert.Equal(t, rustBM.ID, list[0].ID)

	var refreshed domain.Bookmark
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/api/bookmark/refresh", map[string]string{"bookmarkId": goBM.ID}, &refreshed))
	assert.Equal(t, goBM.ID, refreshed.ID)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodPost, "/api/bookmark/refresh", map[string]string{"bookmarkId": "missing"}, nil))

	var hits []domain.BookmarkCandidate
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/bookmark/search?q=rust", nil, &hits))
	require.NotEmpty(t, hits)
	assert.Equal(t, rustBM.ID, hits[0].Bookmark.ID)

	// Other users do not see alice's bookmarks.
	require.Equal(t, http.StatusOK, h.doAs("bob", http.MethodGet, "/api/bookmark?tag="+lang.ID, nil, &list))
	assert.Empty(t, list)

	require.Equal(t, http.StatusNoContent, h.do(http.MethodDelete, "/api/bookmark", map[string]string{"bookmarkId": goBM.ID}, nil))
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/bookmark", nil, &list))
	for _, b := range list {
		assert.NotEqual(t, goBM.ID, b.ID)
	}
}

func TestPageLoadRecomputesScores(t *testing.T) {
	h := newHarness(t)

	var b domain.Bookmark
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/api/bookmark", map[string]any{"url": h.site.URL + "/go", "tags": []any{}}, &b))
	require.Equal(t, http.StatusNoContent, h.do(http.MethodPost, "/api/bookmark/visit", map[string]string{"bookmarkId": b.ID}, nil))

	req, err := http.NewRequest(http.MethodGet, h.api.URL+"/", nil)
	require.NoError(t, err)
	req.SetBasicAuth("alice", "wonderland")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, string(body), "The Go Programming Language")

	h.recomputer.Wait()
	scores, err := h.store.Scores(req.Context(), "alice")
	require.NoError(t, err)
	assert.Contains(t, scores, b.ID)
}

func TestOpsEndpoints(t *testing.T) {
	h := newHarness(t)

	var health struct {
		Status string `json:"status"`
		Store  struct {
			OK   bool   `json:"ok"`
			Mode string `json:"mode"`
		} `json:"store"`
		Build struct {
			Version string `json:"version"`
		} `json:"build"`
	}
	require.Equal(t, http.StatusOK, h.doAs("", http.MethodGet, "/healthz", nil, &health))
	assert.Equal(t, "ok", health.Status)
	assert.True(t, health.Store.OK)
	assert.Equal(t, "memory", health.Store.Mode)
	assert.Equal(t, "test", health.Build.Version)

	var ready struct {
		Ready bool `json:"ready"`
	}
	require.Equal(t, http.StatusOK, h.doAs("", http.MethodGet, "/readyz", nil, &ready))
	assert.True(t, ready.Ready)

	var infra struct {
		Mode       string `json:"mode"`
		Components map[string]struct {
			OK   bool   `json:"ok"`
			Mode string `json:"mode"`
		} `json:"components"`
	}
	require.Equal(t, http.StatusOK, h.doAs("", http.MethodGet, "/infra", nil, &infra))
	assert.Equal(t, "ok", infra.Mode)
	assert.Equal(t, "memory", infra.Components["store"].Mode)
	assert.Equal(t, "disabled", infra.Components["redis"].Mode)

	resp, err := http.Get(h.api.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "stash_http_requests_total")
}

func TestReloadTriggers(t *testing.T) {
	h := newHarness(t)

	var first struct {
		Rescore bool `json:"rescore"`
		Import  bool `json:"import"`
	}
	require.Equal(t, http.StatusAccepted, h.doAs("", http.MethodPost, "/api/reload", nil, &first))
	assert.True(t, first.Rescore)
	assert.False(t, first.Import, "import is not configured")

	// Nothing drains the channel, so the second request finds it pending.
	assert.Equal(t, http.StatusTooManyRequests, h.doAs("", http.MethodPost, "/api/reload", nil, nil))
	assert.Len(t, h.rescore, 1)
}

func TestRouteTable(t *testing.T) {
	r := NewRouter(time.Second, deps.Deps{Logger: logger.NewNop(), Metrics: metrics.New(prometheus.NewRegistry())})

	got, err := routes.Walk(r)
	require.NoError(t, err)

	for _, want := range []string{
		"GET /",
		"GET /api/user",
		"GET /api/tag/",
		"POST /api/tag/",
		"PUT /api/tag/",
		"DELETE /api/tag/",
		"GET /api/bookmark/",
		"POST /api/bookmark/",
		"DELETE /api/bookmark/",
		"POST /api/bookmark/tag",
		"DELETE /api/bookmark/tag",
		"POST /api/bookmark/visit",
		"POST /api/bookmark/refresh",
		"GET /api/bookmark/search",
		"GET /healthz",
		"GET /readyz",
		"GET /infra",
		"GET /metrics",
		"POST /api/reload",
	} {
		assert.Contains(t, got, want)
	}
}
