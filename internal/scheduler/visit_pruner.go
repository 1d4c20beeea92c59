package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/stash/internal/domain"
	"github.com/MrSnakeDoc/stash/internal/logger"
	"github.com/MrSnakeDoc/stash/internal/metrics"
	"github.com/MrSnakeDoc/stash/internal/store"
)

const JobPrune = "prune"

// VisitLogPruner deletes visit logs older than the retention window.
// Scores computed afterwards only see the retained visits.
type VisitLogPruner struct {
	store     store.Store
	clock     domain.Clock
	logger    logger.Logger
	metrics   *metrics.Metrics
	interval  time.Duration
	retention time.Duration
	stopCh    chan struct{}
	stopOnce  sync.Once
}

func NewVisitLogPruner(
	st store.Store,
	clock domain.Clock,
	log logger.Logger,
	m *metrics.Metrics,
	interval time.Duration,
	retention time.Duration,
) *VisitLogPruner {
	return &VisitLogPruner{
		store:     st,
		clock:     clock,
		logger:    log,
		metrics:   m,
		interval:  interval,
		retention: retention,
		stopCh:    make(chan struct{}),
	}
}

// Start prunes once, then on every interval.
func (p *VisitLogPruner) Start(ctx context.Context) error {
	if p.retention <= 0 || p.interval <= 0 {
		return fmt.Errorf("visit log pruning needs a positive retention and interval")
	}

	if _, err := p.Prune(ctx); err != nil {
		p.logger.Warn("initial visit log pruning failed",
			logger.Error(err))
	}

	go loop(ctx, p.interval, nil, p.stopCh, p.logger, JobPrune, func(ctx context.Context) error {
		_, err := p.Prune(ctx)
		return err
	})
	return nil
}

func (p *VisitLogPruner) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
}

// Prune removes every visit older than now minus the retention.
func (p *VisitLogPruner) Prune(ctx context.Context) (int64, error) {
	before := p.clock.Now().Add(-p.retention)

	n, err := p.store.PruneVisitLogs(ctx, before)
	p.metrics.JobRun(JobPrune, err)
	if err != nil {
		return 0, fmt.Errorf("failed to prune visit logs: %w", err)
	}
	p.metrics.Pruned(n)

	if n > 0 {
		p.logger.Info("pruned visit logs",
			logger.Int64("deleted", n),
			logger.Time("before", before))
	} else {
		p.logger.Debug("no visit logs to prune")
	}
	return n, nil
}
