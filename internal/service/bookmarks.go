// Package service orchestrates the store, the scraper and the scoring engine
// on behalf of an authenticated user.
package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrSnakeDoc/stash/internal/domain"
	"github.com/MrSnakeDoc/stash/internal/logger"
	"github.com/MrSnakeDoc/stash/internal/metrics"
	"github.com/MrSnakeDoc/stash/internal/scraper"
	"github.com/MrSnakeDoc/stash/internal/store"
)

// BookmarkService implements the user-facing bookmark and tag operations.
// Every method is scoped to one user; ids of other users behave as missing.
type BookmarkService struct {
	factory domain.Factory
	store   store.Store
	scraper scraper.Scraper
	logger  logger.Logger
	metrics *metrics.Metrics
}

func NewBookmarkService(f domain.Factory, st store.Store, sc scraper.Scraper, log logger.Logger, m *metrics.Metrics) *BookmarkService {
	return &BookmarkService{
		factory: f,
		store:   st,
		scraper: sc,
		logger:  log,
		metrics: m,
	}
}

// ─────────────────────────────
// Bookmarks
// ─────────────────────────────

// CreateBookmark scrapes rawURL and saves it with the given tags (only ids are
// read). Saving a URL the user already has attaches the tags to the existing
// bookmark and returns it. A scraper failure is a *domain.RetrievalError and
// nothing is written.
func (s *BookmarkService) CreateBookmark(ctx context.Context, user, rawURL string, tags []domain.Tag) (*domain.Bookmark, error) {
	info, err := s.scraper.WebpageInfo(ctx, rawURL)
	if err != nil {
		s.logger.Warn("failed to scrape bookmark",
			logger.String("user", user),
			logger.String("url", rawURL),
			logger.Error(err))
		return nil, err
	}

	b := domain.NewBookmark(s.factory, info, tags)
	if err := s.store.AddBookmark(ctx, user, b); err != nil {
		return nil, err
	}

	saved, err := s.bookmarkByURL(ctx, user, b.ID, b.URL)
	if err != nil {
		return nil, err
	}

	s.logger.Info("bookmark saved",
		logger.String("user", user),
		logger.String("url", b.URL),
		logger.Bool("created", saved != nil && saved.ID == b.ID))
	return saved, nil
}

// bookmarkByURL reads back a bookmark after an insert that may have hit an
// existing (user, url) row.
func (s *BookmarkService) bookmarkByURL(ctx context.Context, user, id, url string) (*domain.Bookmark, error) {
	if b, err := s.store.Bookmark(ctx, user, id); err != nil || b != nil {
		return b, err
	}
	all, err := s.store.AllBookmarks(ctx, user)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].URL == url {
			return &all[i], nil
		}
	}
	return nil, nil
}

// RefreshBookmark scrapes the bookmark again and stores the new title and URL.
// Id, creation time and tags are kept. A missing bookmark returns nil.
func (s *BookmarkService) RefreshBookmark(ctx context.Context, user, id string) (*domain.Bookmark, error) {
	b, err := s.store.Bookmark(ctx, user, id)
	if err != nil || b == nil {
		return nil, err
	}

	info, err := s.scraper.WebpageInfo(ctx, b.URL)
	if err != nil {
		return nil, err
	}

	b.Title = info.Title
	b.URL = info.URL
	if err := s.store.ReplaceBookmark(ctx, user, *b); err != nil {
		return nil, err
	}
	return s.store.Bookmark(ctx, user, id)
}

// Bookmarks lists bookmarks in rank order: untagged ones when tagIDs is
// empty, otherwise those carrying every given tag.
func (s *BookmarkService) Bookmarks(ctx context.Context, user string, tagIDs []string) ([]domain.Bookmark, error) {
	return s.store.ListBookmarks(ctx, user, tagIDs)
}

func (s *BookmarkService) Bookmark(ctx context.Context, user, id string) (*domain.Bookmark, error) {
	return s.store.Bookmark(ctx, user, id)
}

func (s *BookmarkService) AddTagsToBookmark(ctx context.Context, user, bookmarkID string, tagIDs []string) error {
	return s.store.AddTagsToBookmark(ctx, user, bookmarkID, tagIDs)
}

func (s *BookmarkService) DropTagsFromBookmark(ctx context.Context, user, bookmarkID string, tagIDs []string) error {
	return s.store.DropTagsFromBookmark(ctx, user, bookmarkID, tagIDs)
}

func (s *BookmarkService) DeleteBookmark(ctx context.Context, user, id string) error {
	return s.store.DeleteBookmark(ctx, user, id)
}

// LogVisit appends a visit stamped with the injected clock. It returns once
// the row is durable. Visits to bookmarks the user does not own are dropped.
func (s *BookmarkService) LogVisit(ctx context.Context, user, bookmarkID string) error {
	if strings.TrimSpace(bookmarkID) == "" {
		return fmt.Errorf("%w: bookmark id is empty", domain.ErrInvalidInput)
	}
	if err := s.store.AddVisitLog(ctx, user, domain.NewVisitLog(s.factory, bookmarkID)); err != nil {
		return err
	}
	s.metrics.VisitLogged()
	return nil
}

// ─────────────────────────────
// Tags
// ─────────────────────────────

// CreateTag returns the user's tag with that name, creating it if needed.
func (s *BookmarkService) CreateTag(ctx context.Context, user, name string, visibility domain.Visibility) (*domain.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: tag name is empty", domain.ErrInvalidInput)
	}
	if _, err := domain.ParseVisibility(string(visibility)); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	t := domain.NewTag(s.factory, name, visibility)
	if err := s.store.AddTag(ctx, user, t); err != nil {
		return nil, err
	}
	return s.tagByName(ctx, user, name)
}

func (s *BookmarkService) tagByName(ctx context.Context, user, name string) (*domain.Tag, error) {
	tags, err := s.store.Tags(ctx, user)
	if err != nil {
		return nil, err
	}
	for i := range tags {
		if tags[i].Name == name {
			return &tags[i], nil
		}
	}
	return nil, nil
}

// Tags lists the user's tags, PRIMARY by name then SECONDARY by name.
func (s *BookmarkService) Tags(ctx context.Context, user string) ([]domain.Tag, error) {
	return s.store.Tags(ctx, user)
}

// UpdateTag renames and re-tiers a tag. Renaming onto a name already in use
// leaves the tag unchanged. A missing tag returns nil.
func (s *BookmarkService) UpdateTag(ctx context.Context, user, id, name string, visibility domain.Visibility) (*domain.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: tag name is empty", domain.ErrInvalidInput)
	}
	if _, err := domain.ParseVisibility(string(visibility)); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	t, err := s.store.Tag(ctx, user, id)
	if err != nil || t == nil {
		return nil, err
	}
	t.Name = name
	t.Visibility = visibility
	if err := s.store.UpdateTag(ctx, user, *t); err != nil {
		return nil, err
	}
	return s.store.Tag(ctx, user, id)
}

func (s *BookmarkService) DeleteTag(ctx context.Context, user, id string) error {
	return s.store.DeleteTag(ctx, user, id)
}
