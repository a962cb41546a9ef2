package heat

import (
	"sync"
	"time"

	"github.com/Rajchodisetti/heat-engine/internal/signals"
)

// DefaultRepeatWindow is the look-back for repeat-activity counting.
const DefaultRepeatWindow = 60 * time.Minute

// Tracker remembers recent signal times per ticker.
type Tracker struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[string][]time.Time
}

// NewTracker creates a tracker with the given look-back window.
func NewTracker(window time.Duration) *Tracker {
	if window <= 0 {
		window = DefaultRepeatWindow
	}
	return &Tracker{window: window, seen: make(map[string][]time.Time)}
}

// Record stores a signal at the given time and returns how many signals for
// the ticker fall inside the window ending at that time, itself included.
func (t *Tracker) Record(ticker string, at time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	kept := append(t.pruneLocked(ticker, at), at)
	t.seen[ticker] = kept
	return countUpTo(kept, at)
}

// Count returns the number of signals inside the window ending at now.
func (t *Tracker) Count(ticker string, now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	kept := t.pruneLocked(ticker, now)
	if len(kept) == 0 {
		delete(t.seen, ticker)
	} else {
		t.seen[ticker] = kept
	}
	return countUpTo(kept, now)
}

// Reset forgets everything, used at the start of a trading day.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.seen = make(map[string][]time.Time)
	t.mu.Unlock()
}

func (t *Tracker) pruneLocked(ticker string, now time.Time) []time.Time {
	cutoff := now.Add(-t.window)
	prev := t.seen[ticker]
	kept := prev[:0]
	for _, ts := range prev {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	return kept
}

func countUpTo(ts []time.Time, now time.Time) int {
	n := 0
	for _, t := range ts {
		if !t.After(now) {
			n++
		}
	}
	return n
}

// Scorer couples an Aggregator with a Tracker so repeat activity is counted
// automatically.
type Scorer struct {
	agg     *Aggregator
	tracker *Tracker
	now     func() time.Time
}

// NewScorer creates a scorer.
func NewScorer(agg *Aggregator, tracker *Tracker) *Scorer {
	return &Scorer{agg: agg, tracker: tracker, now: time.Now}
}

// Evaluate records the signal and scores it. A caller-supplied repeat count
// wins when it is higher than the tracker's own.
func (s *Scorer) Evaluate(sig signals.Signal, ctx Context) Result {
	at := sig.DetectedAt()
	if at.IsZero() {
		at = s.now()
	}
	if n := s.tracker.Record(sig.Ticker(), at); n > ctx.RepeatSignalCount {
		ctx.RepeatSignalCount = n
	}
	return s.agg.Score(sig, ctx)
}

// Tracker exposes the underlying memory.
func (s *Scorer) Tracker() *Tracker {
	return s.tracker
}
