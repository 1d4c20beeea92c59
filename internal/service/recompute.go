package service

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/MrSnakeDoc/stash/internal/domain"
	"github.com/MrSnakeDoc/stash/internal/logger"
	"github.com/MrSnakeDoc/stash/internal/metrics"
)

const (
	// DefaultRecomputeTimeout bounds a background recompute.
	DefaultRecomputeTimeout = 30 * time.Second

	throttleTimeout = time.Second
)

// Throttle decides whether a page-load recompute may start for user now.
// Release gives the slot back after a failed run.
type Throttle interface {
	Acquire(ctx context.Context, user string) (bool, error)
	Release(ctx context.Context, user string) error
}

// RunRecorder keeps the last run summary of each user.
type RunRecorder interface {
	SaveRun(ctx context.Context, run domain.RecomputeRun) error
}

// RecomputerOptions configures a Recomputer. Every field is optional.
type RecomputerOptions struct {
	Throttle Throttle
	Runs     RunRecorder
	Timeout  time.Duration
	Metrics  *metrics.Metrics
}

// Recomputer runs ScoringService.UpdateScores off the request path.
// Concurrent runs for one user share a single execution.
type Recomputer struct {
	scoring  *ScoringService
	throttle Throttle
	runs     RunRecorder
	timeout  time.Duration
	logger   logger.Logger
	metrics  *metrics.Metrics

	group singleflight.Group
	wg    sync.WaitGroup

	mu    sync.Mutex
	dirty map[string]bool // users with a visit newer than their last run start
}

func NewRecomputer(sc *ScoringService, log logger.Logger, opts RecomputerOptions) *Recomputer {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultRecomputeTimeout
	}
	return &Recomputer{
		scoring:  sc,
		throttle: opts.Throttle,
		runs:     opts.Runs,
		timeout:  opts.Timeout,
		logger:   log,
		metrics:  opts.Metrics,
		dirty:    make(map[string]bool),
	}
}

// Touch records that user logged a visit. Their next Trigger skips the
// throttle so the new visit is scored on the following page load.
func (r *Recomputer) Touch(user string) {
	r.mu.Lock()
	r.dirty[user] = true
	r.mu.Unlock()
}

func (r *Recomputer) isDirty(user string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dirty[user]
}

// Trigger starts a recompute for user in the background and returns at once.
// It never fails: throttled triggers are dropped, errors are logged.
// A throttle that cannot be reached lets the trigger through, and so does a
// visit logged since the user's last run started.
func (r *Recomputer) Trigger(user string) {
	if !r.isDirty(user) && !r.allow(user) {
		r.metrics.ObserveRecompute(metrics.OutcomeThrottled, 0, 0, 0)
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		if _, err := r.Run(ctx, user); err != nil {
			r.release(user)
		}
	}()
}

func (r *Recomputer) release(user string) {
	if r.throttle == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), throttleTimeout)
	defer cancel()
	if err := r.throttle.Release(ctx, user); err != nil {
		r.logger.Warn("failed to release recompute throttle",
			logger.String("user", user),
			logger.Error(err))
	}
}

func (r *Recomputer) allow(user string) bool {
	if r.throttle == nil {
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), throttleTimeout)
	defer cancel()

	ok, err := r.throttle.Acquire(ctx, user)
	if err != nil {
		r.logger.Warn("recompute throttle unavailable, running anyway",
			logger.String("user", user),
			logger.Error(err))
		return true
	}
	if !ok {
		r.logger.Debug("recompute throttled", logger.String("user", user))
	}
	return ok
}

// Run recomputes synchronously, bypassing the throttle. A caller arriving
// while a run for the same user is in flight waits for it and gets its result.
func (r *Recomputer) Run(ctx context.Context, user string) (domain.RecomputeRun, error) {
	v, err, shared := r.group.Do(user, func() (interface{}, error) {
		r.mu.Lock()
		delete(r.dirty, user)
		r.mu.Unlock()
		run, err := r.scoring.UpdateScores(ctx, user)
		r.record(run, err)
		return run, err
	})
	run, _ := v.(domain.RecomputeRun)
	if shared {
		r.metrics.ObserveRecompute(metrics.OutcomeShared, 0, 0, 0)
	}
	return run, err
}

func (r *Recomputer) record(run domain.RecomputeRun, err error) {
	if err != nil {
		r.metrics.ObserveRecompute(metrics.OutcomeFailed, run.Duration, 0, run.Skipped)
		r.logger.Error("score recompute failed",
			logger.String("user", run.User),
			logger.Duration("duration", run.Duration),
			logger.Error(err))
	} else {
		r.metrics.ObserveRecompute(metrics.OutcomeOK, run.Duration, run.Scored, run.Skipped)
	}

	if r.runs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), throttleTimeout)
	defer cancel()
	if err := r.runs.SaveRun(ctx, run); err != nil {
		r.logger.Warn("failed to record recompute run",
			logger.String("user", run.User),
			logger.Error(err))
	}
}

// Wait blocks until every triggered recompute has finished.
func (r *Recomputer) Wait() {
	r.wg.Wait()
}

// LocalThrottle admits one recompute per user per window, in process.
// It is used when no Redis server is configured.
type LocalThrottle struct {
	window time.Duration
	clock  domain.Clock

	mu   sync.Mutex
	last map[string]time.Time
}

func NewLocalThrottle(window time.Duration, clock domain.Clock) *LocalThrottle {
	return &LocalThrottle{
		window: window,
		clock:  clock,
		last:   make(map[string]time.Time),
	}
}

func (t *LocalThrottle) Acquire(_ context.Context, user string) (bool, error) {
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	if last, ok := t.last[user]; ok && now.Sub(last) < t.window {
		return false, nil
	}
	t.last[user] = now
	return true, nil
}

func (t *LocalThrottle) Release(_ context.Context, user string) error {
	t.mu.Lock()
	delete(t.last, user)
	t.mu.Unlock()
	return nil
}
