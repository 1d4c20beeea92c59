// Package scoring turns a user's visit history into per-bookmark visit rates.
//
// A bookmark visited n times whose first visit lies d days before now scores
// n / max(d, MinSpanDays). The score grows with n for a fixed span, shrinks as
// the span grows, and bookmarks without visits get no score at all.
package scoring

import (
	"sort"
	"time"

	"github.com/MrSnakeDoc/stash/internal/domain"
)

// MinSpanDays floors the observation window so a burst of same-day visits
// does not divide by zero or explode.
const MinSpanDays = 1.0

const day = 24 * time.Hour

// MalformedPolicy decides what happens to records with unparseable timestamps.
type MalformedPolicy int

const (
	// SkipMalformed drops the offending record and reports it in Result.Skipped.
	SkipMalformed MalformedPolicy = iota
	// AbortOnMalformed fails the whole run with the first ParseError.
	AbortOnMalformed
)

func (p MalformedPolicy) String() string {
	if p == AbortOnMalformed {
		return "abort"
	}
	return "skip"
}

// ScoreValue is the rate computed for one bookmark.
type ScoreValue struct {
	BookmarkID string
	Score      float64
	Visits     int
}

// Result holds the scores sorted by bookmark id plus any skipped records.
type Result struct {
	Scores  []ScoreValue
	Skipped []*domain.ParseError
}

// Engine is stateless; the zero value skips malformed records.
type Engine struct {
	Policy MalformedPolicy
}

func New(policy MalformedPolicy) Engine {
	return Engine{Policy: policy}
}

// Score computes a rate for every bookmark with at least one valid visit.
// Input order does not matter. With AbortOnMalformed, the first malformed
// record returns a *domain.ParseError and no scores.
func (e Engine) Score(records []domain.VisitRecord, now time.Time) (Result, error) {
	visits := make(map[string][]time.Time)
	var skipped []*domain.ParseError

	for _, rec := range records {
		at, err := domain.ParseTime(rec.VisitedAt)
		if err != nil {
			perr := &domain.ParseError{BookmarkID: rec.BookmarkID, Value: rec.VisitedAt, Err: err}
			if e.Policy == AbortOnMalformed {
				return Result{}, perr
			}
			skipped = append(skipped, perr)
			continue
		}
		visits[rec.BookmarkID] = append(visits[rec.BookmarkID], at)
	}

	ids := make([]string, 0, len(visits))
	for id := range visits {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	scores := make([]ScoreValue, 0, len(ids))
	for _, id := range ids {
		times := visits[id]
		scores = append(scores, ScoreValue{
			BookmarkID: id,
			Score:      Rate(times, now),
			Visits:     len(times),
		})
	}

	return Result{Scores: scores, Skipped: skipped}, nil
}

// Rate is the visit rate of a single history. It returns 0 for no visits.
// Visits recorded after now (clock skew) count as happening now.
func Rate(times []time.Time, now time.Time) float64 {
	if len(times) == 0 {
		return 0
	}

	first := times[0]
	for _, t := range times[1:] {
		if t.Before(first) {
			first = t
		}
	}

	span := now.Sub(first).Hours() / day.Hours()
	if span < MinSpanDays {
		span = MinSpanDays
	}
	return float64(len(times)) / span
}
