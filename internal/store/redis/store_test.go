package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/stash/internal/domain"
)

func newTestStore(t *testing.T, window time.Duration) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client, window), mr
}

func TestAcquire_OncePerWindow(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t, time.Minute)

	ok, err := s.Acquire(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Acquire(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, ok, "second trigger in the window must be throttled")

	ok, err = s.Acquire(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, ok, "users are throttled independently")

	mr.FastForward(time.Minute + time.Second)

	ok, err = s.Acquire(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, ok, "lock must expire after the window")
}

func TestRelease(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, time.Hour)

	_, err := s.Acquire(ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, s.Release(ctx, "alice"))

	ok, err := s.Acquire(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAcquire_ServerDown(t *testing.T) {
	s, mr := newTestStore(t, time.Minute)
	mr.Close()

	ok, err := s.Acquire(context.Background(), "alice")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestRuns_SaveAndRead(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t, 0)

	none, err := s.LastRun(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, none)

	run := domain.RecomputeRun{
		User:      "alice",
		StartedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Duration:  150 * time.Millisecond,
		Visits:    12,
		Scored:    3,
		Skipped:   1,
	}
	require.NoError(t, s.SaveRun(ctx, run))
	require.NoError(t, s.SaveRun(ctx, domain.RecomputeRun{User: "bob", Error: "storage: upsert score: locked"}))

	got, err := s.LastRun(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, run, *got)

	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	assert.True(t, mr.Exists(RecomputeRunKey("alice")))
	assert.Equal(t, DefaultRunTTL, mr.TTL(RecomputeRunKey("alice")))
	assert.NoError(t, s.Ping(ctx))
}
