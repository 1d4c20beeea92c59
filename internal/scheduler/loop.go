// Package scheduler runs the periodic background jobs: rescoring, visit log
// retention and bookmarks.yaml import.
package scheduler

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/stash/internal/logger"
)

// loop calls run on every tick and every manual trigger until ctx is done or
// stop is closed. A nil trigger channel is never selected.
func loop(ctx context.Context, interval time.Duration, trigger <-chan struct{}, stop <-chan struct{}, log logger.Logger, job string, run func(context.Context) error) {
	log = logger.With(log, logger.String("job", job))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := run(ctx); err != nil {
				log.Error(job+" failed", logger.Error(err))
			}
		case <-trigger:
			log.Info("manual " + job + " triggered")
			if err := run(ctx); err != nil {
				log.Error(job+" failed", logger.Error(err))
			}
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Notify sends a non-blocking signal on a trigger channel. It reports false
// when a trigger is already pending or the channel is nil.
func Notify(trigger chan<- struct{}) bool {
	if trigger == nil {
		return false
	}
	select {
	case trigger <- struct{}{}:
		return true
	default:
		return false
	}
}
