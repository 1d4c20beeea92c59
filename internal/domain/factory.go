package domain

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// TimeLayout is the persisted timestamp format. It is fixed width so that
// stored values sort lexically in time order.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

// IDGenerator mints opaque unique identifiers.
type IDGenerator interface {
	NewID() string
}

// Factory carries the injected clock and id generator.
type Factory struct {
	Clock Clock
	IDs   IDGenerator
}

// DefaultFactory uses the wall clock and random UUIDs.
func DefaultFactory() Factory {
	return Factory{Clock: SystemClock{}, IDs: UUIDGenerator{}}
}

// SystemClock reads time.Now in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// UUIDGenerator mints random (v4) UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string { return uuid.NewString() }

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// ManualClock is a settable clock for tests and replays.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewManualClock(t time.Time) *ManualClock {
	return &ManualClock{now: t.UTC()}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t.UTC()
	c.mu.Unlock()
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// FormatTime renders t in the persisted layout (UTC).
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a persisted timestamp. RFC 3339 with or without
// fractional seconds is accepted.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
