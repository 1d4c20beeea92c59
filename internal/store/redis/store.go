package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/stash/internal/domain"
)

const (
	// DefaultRecomputeWindow is the minimum gap between two recomputations of a user
	DefaultRecomputeWindow = 30 * time.Second
	// DefaultRunTTL is how long a run summary is kept (7 days)
	DefaultRunTTL = 7 * 24 * time.Hour
)

// Store throttles score recomputation and records run summaries in Redis
type Store struct {
	client *redis.Client
	window time.Duration
}

// NewStore creates a new Redis store. A non-positive window uses DefaultRecomputeWindow.
func NewStore(client *redis.Client, window time.Duration) *Store {
	if window <= 0 {
		window = DefaultRecomputeWindow
	}
	return &Store{
		client: client,
		window: window,
	}
}

// Acquire reports whether the caller may recompute the user's scores now.
// The first caller in each window wins.
func (s *Store) Acquire(ctx context.Context, user string) (bool, error) {
	ok, err := s.client.SetNX(ctx, RecomputeLockKey(user), time.Now().UTC().Format(time.RFC3339), s.window).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire recompute lock: %w", err)
	}
	return ok, nil
}

// Release lets the next trigger for the user through immediately.
func (s *Store) Release(ctx context.Context, user string) error {
	if err := s.client.Del(ctx, RecomputeLockKey(user)).Err(); err != nil {
		return fmt.Errorf("failed to release recompute lock: %w", err)
	}
	return nil
}

// SaveRun stores a run summary and indexes its user
func (s *Store) SaveRun(ctx context.Context, run domain.RecomputeRun) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal recompute run: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, RecomputeRunKey(run.User), data, DefaultRunTTL)
	pipe.SAdd(ctx, RecomputedUsersKey(), run.User)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save recompute run: %w", err)
	}
	return nil
}

// LastRun returns the user's last run, or nil if none is recorded
func (s *Store) LastRun(ctx context.Context, user string) (*domain.RecomputeRun, error) {
	data, err := s.client.Get(ctx, RecomputeRunKey(user)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get recompute run: %w", err)
	}

	var run domain.RecomputeRun
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recompute run: %w", err)
	}
	return &run, nil
}

// Runs returns the last run of every indexed user. Expired runs are skipped.
func (s *Store) Runs(ctx context.Context) ([]domain.RecomputeRun, error) {
	users, err := s.client.SMembers(ctx, RecomputedUsersKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get recomputed users: %w", err)
	}

	runs := make([]domain.RecomputeRun, 0, len(users))
	for _, user := range users {
		run, err := s.LastRun(ctx, user)
		if err != nil || run == nil {
			continue
		}
		runs = append(runs, *run)
	}
	return runs, nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
