package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/MrSnakeDoc/stash/internal/domain"
	"github.com/MrSnakeDoc/stash/internal/httpserver/deps"
	"github.com/MrSnakeDoc/stash/internal/httpserver/mw"
)

type bookmarkCreateRequest struct {
	URL  string       `json:"url"`
	Tags []domain.Tag `json:"tags"`
}

type bookmarkTagsRequest struct {
	BookmarkID string   `json:"bookmarkId"`
	Tags       []string `json:"tags"`
}

// bookmarkRequest is the body of delete, visit and refresh.
type bookmarkRequest struct {
	BookmarkID string `json:"bookmarkId"`
}

func (req bookmarkRequest) validate() error {
	if req.BookmarkID == "" {
		return fmt.Errorf("%w: bookmarkId is required", domain.ErrInvalidInput)
	}
	return nil
}

// ListBookmarks returns the ranked list. Without ?tag= it lists untagged
// bookmarks; repeated ?tag= narrows to bookmarks carrying all of them.
func ListBookmarks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tagIDs := r.URL.Query()["tag"]
		bookmarks, err := d.Bookmarks.Bookmarks(r.Context(), mw.UserFrom(r.Context()), tagIDs)
		if err != nil {
			fail(d, w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, bookmarks)
	}
}

func CreateBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req bookmarkCreateRequest
		if err := decodeJSON(w, r, &req); err != nil {
			fail(d, w, r, err)
			return
		}
		if req.URL == "" {
			fail(d, w, r, fmt.Errorf("%w: url is required", domain.ErrInvalidInput))
			return
		}

		b, err := d.Bookmarks.CreateBookmark(r.Context(), mw.UserFrom(r.Context()), req.URL, req.Tags)
		if err != nil {
			fail(d, w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, b)
	}
}

func DeleteBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req bookmarkRequest
		if err := decodeJSON(w, r, &req); err != nil {
			fail(d, w, r, err)
			return
		}
		if err := req.validate(); err != nil {
			fail(d, w, r, err)
			return
		}
		if err := d.Bookmarks.DeleteBookmark(r.Context(), mw.UserFrom(r.Context()), req.BookmarkID); err != nil {
			fail(d, w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func AddBookmarkTags(d deps.Deps) http.HandlerFunc {
	return bookmarkTags(d, true)
}

func DropBookmarkTags(d deps.Deps) http.HandlerFunc {
	return bookmarkTags(d, false)
}

func bookmarkTags(d deps.Deps, add bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req bookmarkTagsRequest
		if err := decodeJSON(w, r, &req); err != nil {
			fail(d, w, r, err)
			return
		}
		if err := (bookmarkRequest{BookmarkID: req.BookmarkID}).validate(); err != nil {
			fail(d, w, r, err)
			return
		}

		user := mw.UserFrom(r.Context())
		var err error
		if add {
			err = d.Bookmarks.AddTagsToBookmark(r.Context(), user, req.BookmarkID, req.Tags)
		} else {
			err = d.Bookmarks.DropTagsFromBookmark(r.Context(), user, req.BookmarkID, req.Tags)
		}
		if err != nil {
			fail(d, w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// LogVisit records a click. It responds once the visit is durable.
func LogVisit(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req bookmarkRequest
		if err := decodeJSON(w, r, &req); err != nil {
			fail(d, w, r, err)
			return
		}
		user := mw.UserFrom(r.Context())
		if err := d.Bookmarks.LogVisit(r.Context(), user, req.BookmarkID); err != nil {
			fail(d, w, r, err)
			return
		}
		if d.Recomputer != nil {
			d.Recomputer.Touch(user)
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func RefreshBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req bookmarkRequest
		if err := decodeJSON(w, r, &req); err != nil {
			fail(d, w, r, err)
			return
		}
		if err := req.validate(); err != nil {
			fail(d, w, r, err)
			return
		}

		b, err := d.Bookmarks.RefreshBookmark(r.Context(), mw.UserFrom(r.Context()), req.BookmarkID)
		if err != nil {
			fail(d, w, r, err)
			return
		}
		if b == nil {
			notFound(w, "bookmark")
			return
		}
		writeJSON(w, http.StatusOK, b)
	}
}

// SearchBookmarks answers ?q=<query>&limit=<n> across all of the user's bookmarks.
func SearchBookmarks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit := 0
		if raw := q.Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				fail(d, w, r, fmt.Errorf("%w: limit must be a non-negative integer", domain.ErrInvalidInput))
				return
			}
			limit = n
		}

		candidates, err := d.Bookmarks.SearchBookmarks(r.Context(), mw.UserFrom(r.Context()), q.Get("q"), limit)
		if err != nil {
			fail(d, w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, candidates)
	}
}
