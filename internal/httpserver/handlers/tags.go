package handlers

import (
	"fmt"
	"net/http"

	"github.com/MrSnakeDoc/stash/internal/domain"
	"github.com/MrSnakeDoc/stash/internal/httpserver/deps"
	"github.com/MrSnakeDoc/stash/internal/httpserver/mw"
)

type tagCreateRequest struct {
	TagName    string `json:"tagName"`
	Visibility string `json:"visibility"`
}

type tagUpdateRequest struct {
	TagID             string `json:"tagId"`
	UpdatedTagName    string `json:"updatedTagName"`
	UpdatedVisibility string `json:"updatedVisibility"`
}

type tagDeleteRequest struct {
	TagID string `json:"tagId"`
}

func ListTags(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tags, err := d.Bookmarks.Tags(r.Context(), mw.UserFrom(r.Context()))
		if err != nil {
			fail(d, w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, tags)
	}
}

// CreateTag returns the new tag, or the existing one with that name.
func CreateTag(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req tagCreateRequest
		if err := decodeJSON(w, r, &req); err != nil {
			fail(d, w, r, err)
			return
		}
		visibility, err := parseVisibility(req.Visibility)
		if err != nil {
			fail(d, w, r, err)
			return
		}

		tag, err := d.Bookmarks.CreateTag(r.Context(), mw.UserFrom(r.Context()), req.TagName, visibility)
		if err != nil {
			fail(d, w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, tag)
	}
}

func UpdateTag(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req tagUpdateRequest
		if err := decodeJSON(w, r, &req); err != nil {
			fail(d, w, r, err)
			return
		}
		if req.TagID == "" {
			fail(d, w, r, fmt.Errorf("%w: tagId is required", domain.ErrInvalidInput))
			return
		}
		visibility, err := parseVisibility(req.UpdatedVisibility)
		if err != nil {
			fail(d, w, r, err)
			return
		}

		tag, err := d.Bookmarks.UpdateTag(r.Context(), mw.UserFrom(r.Context()), req.TagID, req.UpdatedTagName, visibility)
		if err != nil {
			fail(d, w, r, err)
			return
		}
		if tag == nil {
			notFound(w, "tag")
			return
		}
		writeJSON(w, http.StatusOK, tag)
	}
}

func DeleteTag(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req tagDeleteRequest
		if err := decodeJSON(w, r, &req); err != nil {
			fail(d, w, r, err)
			return
		}
		if err := d.Bookmarks.DeleteTag(r.Context(), mw.UserFrom(r.Context()), req.TagID); err != nil {
			fail(d, w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func parseVisibility(s string) (domain.Visibility, error) {
	v, err := domain.ParseVisibility(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return v, nil
}
