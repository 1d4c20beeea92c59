package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/stash/internal/domain"
	"github.com/MrSnakeDoc/stash/internal/logger"
	"github.com/MrSnakeDoc/stash/internal/scoring"
	"github.com/MrSnakeDoc/stash/internal/store"
	"github.com/MrSnakeDoc/stash/internal/store/memory"
	redisstore "github.com/MrSnakeDoc/stash/internal/store/redis"
)

// countingStore counts visit log reads and can hold them until released.
type countingStore struct {
	store.Store
	reads   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (s *countingStore) VisitLogs(ctx context.Context, user string) ([]domain.VisitRecord, error) {
	s.reads.Add(1)
	if s.entered != nil {
		s.entered <- struct{}{}
		<-s.release
	}
	return s.Store.VisitLogs(ctx, user)
}

type stubThrottle struct {
	ok  bool
	err error
}

func (s stubThrottle) Acquire(context.Context, string) (bool, error) { return s.ok, s.err }
func (s stubThrottle) Release(context.Context, string) error          { return nil }

type memoryRuns struct {
	mu   sync.Mutex
	runs []domain.RecomputeRun
}

func (m *memoryRuns) SaveRun(_ context.Context, run domain.RecomputeRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

func seededEnv(t *testing.T, st store.Store) (*env, string) {
	t.Helper()
	e := newEnvWithStore(t, st)
	e.scraper.page("https://a.test", "a")
	b, err := e.svc.CreateBookmark(context.Background(), "alice", "https://a.test", nil)
	require.NoError(t, err)
	require.NoError(t, e.svc.LogVisit(context.Background(), "alice", b.ID))
	return e, b.ID
}

func TestTriggerRecomputesInBackground(t *testing.T) {
	e, id := seededEnv(t, memory.NewIndex())
	runs := &memoryRuns{}
	r := NewRecomputer(e.scoring(scoring.SkipMalformed), logger.NewNop(), RecomputerOptions{Runs: runs})

	r.Trigger("alice")
	r.Wait()

	scores, err := e.store.Scores(context.Background(), "alice")
	require.NoError(t, err)
	assert.Contains(t, scores, id)

	require.Len(t, runs.runs, 1)
	assert.Equal(t, "alice", runs.runs[0].User)
	assert.Equal(t, 1, runs.runs[0].Scored)
}

func TestTriggerThrottled(t *testing.T) {
	st := &countingStore{Store: memory.NewIndex()}
	e, _ := seededEnv(t, st)
	r := NewRecomputer(e.scoring(scoring.SkipMalformed), logger.NewNop(), RecomputerOptions{
		Throttle: stubThrottle{ok: false},
	})

	r.Trigger("alice")
	r.Wait()

	assert.Zero(t, st.reads.Load(), "a throttled trigger must not read visits")
}

func TestTouchBypassesThrottleOnce(t *testing.T) {
	st := &countingStore{Store: memory.NewIndex()}
	e, _ := seededEnv(t, st)
	r := NewRecomputer(e.scoring(scoring.SkipMalformed), logger.NewNop(), RecomputerOptions{
		Throttle: stubThrottle{ok: false},
	})

	r.Touch("alice")
	r.Trigger("alice")
	r.Wait()
	assert.Equal(t, int32(1), st.reads.Load(), "a fresh visit lets the trigger through")

	r.Trigger("alice")
	r.Wait()
	assert.Equal(t, int32(1), st.reads.Load(), "the run consumed the visit marker")

	r.Touch("bob")
	r.Trigger("alice")
	r.Wait()
	assert.Equal(t, int32(1), st.reads.Load(), "markers are per user")
}

func TestTriggerThrottleDownFailsOpen(t *testing.T) {
	st := &countingStore{Store: memory.NewIndex()}
	e, _ := seededEnv(t, st)
	r := NewRecomputer(e.scoring(scoring.SkipMalformed), logger.NewNop(), RecomputerOptions{
		Throttle: stubThrottle{err: errors.New("connection refused")},
	})

	r.Trigger("alice")
	r.Wait()

	assert.Equal(t, int32(1), st.reads.Load())
}

func TestTriggerSwallowsFailures(t *testing.T) {
	e := newEnvWithStore(t, failingStore{Store: memory.NewIndex()})
	runs := &memoryRuns{}
	r := NewRecomputer(e.scoring(scoring.SkipMalformed), logger.NewNop(), RecomputerOptions{Runs: runs})

	assert.NotPanics(t, func() {
		r.Trigger("alice")
		r.Wait()
	})
	require.Len(t, runs.runs, 1)
	assert.NotEmpty(t, runs.runs[0].Error)
}

func TestFailedTriggerReleasesThrottle(t *testing.T) {
	e := newEnvWithStore(t, failingStore{Store: memory.NewIndex()})
	th := NewLocalThrottle(time.Hour, e.clock)
	r := NewRecomputer(e.scoring(scoring.SkipMalformed), logger.NewNop(), RecomputerOptions{Throttle: th})

	r.Trigger("alice")
	r.Wait()

	ok, err := th.Acquire(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, ok, "a failed run must not hold the window")
}

func TestRunCoalescesConcurrentCalls(t *testing.T) {
	st := &countingStore{
		Store:   memory.NewIndex(),
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	e := newEnvWithStore(t, st)
	r := NewRecomputer(e.scoring(scoring.SkipMalformed), logger.NewNop(), RecomputerOptions{})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = r.Run(context.Background(), "alice")
	}()
	<-st.entered

	go func() {
		defer wg.Done()
		_, _ = r.Run(context.Background(), "alice")
	}()
	// Give the second caller time to join the in-flight run.
	time.Sleep(50 * time.Millisecond)
	close(st.release)
	wg.Wait()

	assert.Equal(t, int32(1), st.reads.Load())
}

func TestRedisThrottleDebouncesTriggers(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	throttle := redisstore.NewStore(client, time.Minute)

	st := &countingStore{Store: memory.NewIndex()}
	e, _ := seededEnv(t, st)
	r := NewRecomputer(e.scoring(scoring.SkipMalformed), logger.NewNop(), RecomputerOptions{
		Throttle: throttle,
		Runs:     throttle,
	})

	r.Trigger("alice")
	r.Wait()
	r.Trigger("alice")
	r.Wait()
	assert.Equal(t, int32(1), st.reads.Load(), "second trigger within the window is dropped")

	last, err := throttle.LastRun(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, 1, last.Scored)

	mr.FastForward(2 * time.Minute)
	r.Trigger("alice")
	r.Wait()
	assert.Equal(t, int32(2), st.reads.Load())
}

func TestLocalThrottle(t *testing.T) {
	ctx := context.Background()
	clock := domain.NewManualClock(t0)
	th := NewLocalThrottle(30*time.Second, clock)

	ok, _ := th.Acquire(ctx, "alice")
	assert.True(t, ok)
	ok, _ = th.Acquire(ctx, "alice")
	assert.False(t, ok)
	ok, _ = th.Acquire(ctx, "bob")
	assert.True(t, ok)

	clock.Advance(31 * time.Second)
	ok, _ = th.Acquire(ctx, "alice")
	assert.True(t, ok)
}
