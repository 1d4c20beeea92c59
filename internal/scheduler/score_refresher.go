package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/stash/internal/logger"
	"github.com/MrSnakeDoc/stash/internal/metrics"
	"github.com/MrSnakeDoc/stash/internal/service"
	"github.com/MrSnakeDoc/stash/internal/store"
)

const (
	JobRescore = "rescore"

	// DefaultRescoreWorkers bounds how many users are rescored at once.
	DefaultRescoreWorkers = 4
)

// ScoreRefresher periodically recomputes the scores of every user, so that
// rankings stay fresh for users who rarely load the page.
type ScoreRefresher struct {
	store         store.Store
	recomputer    *service.Recomputer
	logger        logger.Logger
	metrics       *metrics.Metrics
	interval      time.Duration
	workers       int
	stopCh        chan struct{}
	stopOnce      sync.Once
	manualTrigger chan struct{}
}

func NewScoreRefresher(
	st store.Store,
	recomputer *service.Recomputer,
	log logger.Logger,
	m *metrics.Metrics,
	interval time.Duration,
	workers int,
	manualTrigger chan struct{},
) *ScoreRefresher {
	if workers <= 0 {
		workers = DefaultRescoreWorkers
	}
	return &ScoreRefresher{
		store:         st,
		recomputer:    recomputer,
		logger:        log,
		metrics:       m,
		interval:      interval,
		workers:       workers,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start launches the periodic loop. The first pass runs after one interval;
// page loads already rescore active users.
func (sr *ScoreRefresher) Start(ctx context.Context) error {
	if sr.interval <= 0 {
		return fmt.Errorf("rescore interval must be positive, got %s", sr.interval)
	}
	go loop(ctx, sr.interval, sr.manualTrigger, sr.stopCh, sr.logger, JobRescore, func(ctx context.Context) error {
		_, err := sr.RefreshAll(ctx)
		return err
	})
	return nil
}

func (sr *ScoreRefresher) Stop() {
	sr.stopOnce.Do(func() { close(sr.stopCh) })
}

// RefreshAll rescores every user and returns how many were rescored
// successfully. One user's failure does not stop the others.
func (sr *ScoreRefresher) RefreshAll(ctx context.Context) (int, error) {
	started := time.Now()
	users, err := sr.store.Users(ctx)
	if err != nil {
		sr.metrics.JobRun(JobRescore, err)
		return 0, fmt.Errorf("failed to list users: %w", err)
	}

	var ok, failed atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sr.workers)
	for _, user := range users {
		g.Go(func() error {
			if _, err := sr.recomputer.Run(gctx, user); err != nil {
				failed.Add(1)
				return nil
			}
			ok.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	sr.logger.Info("rescore completed",
		logger.Int("users", len(users)),
		logger.Int("ok", int(ok.Load())),
		logger.Int("failed", int(failed.Load())),
		logger.Duration("took", time.Since(started)))

	if n := failed.Load(); n > 0 {
		err = fmt.Errorf("rescore failed for %d of %d users", n, len(users))
	}
	sr.metrics.JobRun(JobRescore, err)
	return int(ok.Load()), err
}
