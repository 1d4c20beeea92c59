package service

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/stash/internal/domain"
	"github.com/MrSnakeDoc/stash/internal/logger"
	"github.com/MrSnakeDoc/stash/internal/scoring"
	"github.com/MrSnakeDoc/stash/internal/store"
)

// ScoringService recomputes a user's scores from the full visit log.
type ScoringService struct {
	store  store.Store
	engine scoring.Engine
	clock  domain.Clock
	logger logger.Logger
}

func NewScoringService(st store.Store, engine scoring.Engine, clock domain.Clock, log logger.Logger) *ScoringService {
	return &ScoringService{
		store:  st,
		engine: engine,
		clock:  clock,
		logger: log,
	}
}

// UpdateScores reads the user's visits, scores them at the clock's now and
// upserts one row per visited bookmark. Scores are written only when the
// engine succeeds. Store failures are *domain.StorageError; with
// AbortOnMalformed a bad timestamp is a *domain.ParseError.
func (s *ScoringService) UpdateScores(ctx context.Context, user string) (domain.RecomputeRun, error) {
	now := s.clock.Now()
	started := time.Now()
	run := domain.RecomputeRun{User: user, StartedAt: now}

	fail := func(err error) (domain.RecomputeRun, error) {
		run.Duration = time.Since(started)
		run.Error = err.Error()
		return run, err
	}

	records, err := s.store.VisitLogs(ctx, user)
	if err != nil {
		return fail(err)
	}
	run.Visits = len(records)

	res, err := s.engine.Score(records, now)
	if err != nil {
		return fail(err)
	}
	run.Skipped = len(res.Skipped)
	for _, perr := range res.Skipped {
		s.logger.Warn("skipping malformed visit",
			logger.String("user", user),
			logger.String("bookmark_id", perr.BookmarkID),
			logger.String("visited_at", perr.Value))
	}

	rows := make([]domain.BookmarkScore, 0, len(res.Scores))
	for _, sc := range res.Scores {
		rows = append(rows, domain.BookmarkScore{
			BookmarkID: sc.BookmarkID,
			Score:      sc.Score,
			UpdatedAt:  now,
		})
	}
	if err := s.store.UpsertScores(ctx, rows); err != nil {
		return fail(err)
	}

	run.Scored = len(rows)
	run.Duration = time.Since(started)
	s.logger.Debug("scores updated",
		logger.String("user", user),
		logger.Int("visits", run.Visits),
		logger.Int("scored", run.Scored),
		logger.Int("skipped", run.Skipped),
		logger.Duration("duration", run.Duration))
	return run, nil
}
