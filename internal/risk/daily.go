// Package risk holds the day-scoped realised P&L state and the two circuit
// breakers that gate new paper positions.
package risk

import (
	"math"
	"sync"
	"time"

	"github.com/Rajchodisetti/heat-engine/internal/observ"
)

// Limits configures the breakers.
type Limits struct {
	MaxDailyLoss         float64 `json:"max_daily_loss"`         // dollars, positive
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"` // >= 1
}

// Rejection reasons returned by CanOpenNewPosition.
const (
	ReasonDailyLossLimit = "daily_loss_limit"
	ReasonLossStreak     = "consecutive_losses"
)

// Snapshot is a point-in-time copy of the state.
type Snapshot struct {
	TradeDate              string  `json:"trade_date"`
	CumulativeRealizedPnL  float64 `json:"cumulative_realized_pnl"`
	ConsecutiveLossCount   int     `json:"consecutive_loss_count"`
	DailyLossLimitBreached bool    `json:"daily_loss_limit_breached"`
	Closes                 int     `json:"closes"`
}

// DailyState is shared by every ticker, so all access goes through mu.
type DailyState struct {
	mu sync.Mutex

	limits    Limits
	tradeDate string
	pnl       float64
	streak    int
	breached  bool
	closes    int

	events      []DailyEvent
	lastEventID int64
	now         func() time.Time
}

// NewDailyState creates a state with the given limits.
func NewDailyState(limits Limits) *DailyState {
	if limits.MaxConsecutiveLosses < 1 {
		limits.MaxConsecutiveLosses = 1
	}
	return &DailyState{limits: limits, now: time.Now}
}

// Limits returns the configured limits.
func (s *DailyState) Limits() Limits {
	return s.limits
}

// Reset starts a new trading day. This is the only way to clear a tripped
// breaker.
func (s *DailyState) Reset(tradeDate string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.snapshotLocked()
	s.tradeDate = tradeDate
	s.pnl = 0
	s.streak = 0
	s.breached = false
	s.closes = 0
	s.events = s.events[:0]
	s.addEvent(EventReset, map[string]any{
		"previous_trade_date": prev.TradeDate,
		"previous_pnl":        prev.CumulativeRealizedPnL,
		"previous_closes":     prev.Closes,
	}, "")
	s.updateMetrics()
}

// RecordClose folds one realised P&L into the day. A loss extends the streak,
// a win resets it and a flat close leaves it alone. The loss limit trips on
// the close that takes cumulative P&L to -MaxDailyLoss or below and stays
// tripped until Reset.
func (s *DailyState) RecordClose(pnl float64) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pnl = roundCents(s.pnl + pnl)
	s.closes++
	switch {
	case pnl < 0:
		s.streak++
	case pnl > 0:
		s.streak = 0
	}
	s.addEvent(EventCloseRecorded, map[string]any{
		"pnl":        pnl,
		"cumulative": s.pnl,
		"streak":     s.streak,
	}, "")

	if !s.breached && s.limits.MaxDailyLoss > 0 && s.pnl <= -roundCents(s.limits.MaxDailyLoss) {
		s.breached = true
		s.addEvent(EventLossLimitHit, map[string]any{
			"cumulative": s.pnl,
			"limit":      s.limits.MaxDailyLoss,
		}, ReasonDailyLossLimit)
		observ.Warn("risk_daily_loss_limit_breached", map[string]any{"cumulative_pnl": s.pnl, "limit": s.limits.MaxDailyLoss})
		observ.IncCounter("risk_breaker_trips_total", map[string]string{"breaker": ReasonDailyLossLimit})
	}
	if pnl < 0 && s.streak == s.limits.MaxConsecutiveLosses {
		s.addEvent(EventLossStreakHit, map[string]any{"streak": s.streak}, ReasonLossStreak)
		observ.Warn("risk_loss_streak_limit_reached", map[string]any{"streak": s.streak})
		observ.IncCounter("risk_breaker_trips_total", map[string]string{"breaker": ReasonLossStreak})
	}

	s.updateMetrics()
	return s.snapshotLocked()
}

// CanOpenNewPosition reports whether either breaker blocks new positions and
// names the one that does.
func (s *DailyState) CanOpenNewPosition() (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reason := ""
	switch {
	case s.breached:
		reason = ReasonDailyLossLimit
	case s.streak >= s.limits.MaxConsecutiveLosses:
		reason = ReasonLossStreak
	default:
		return true, ""
	}
	s.addEvent(EventOpenRejected, map[string]any{
		"cumulative": s.pnl,
		"streak":     s.streak,
	}, reason)
	return false, reason
}

// Snapshot returns a copy of the current state.
func (s *DailyState) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Replay rebuilds the day from realised P&L figures in close order, used
// when re-seeding after a restart.
func (s *DailyState) Replay(tradeDate string, pnls []float64) Snapshot {
	s.Reset(tradeDate)
	for _, p := range pnls {
		s.RecordClose(p)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addEvent(EventReplayFinished, map[string]any{"closes": len(pnls)}, "")
	return s.snapshotLocked()
}

func (s *DailyState) snapshotLocked() Snapshot {
	return Snapshot{
		TradeDate:              s.tradeDate,
		CumulativeRealizedPnL:  s.pnl,
		ConsecutiveLossCount:   s.streak,
		DailyLossLimitBreached: s.breached,
		Closes:                 s.closes,
	}
}

func (s *DailyState) updateMetrics() {
	observ.SetGauge("daily_realized_pnl_dollars", s.pnl, nil)
	observ.SetGauge("consecutive_losses", float64(s.streak), nil)
	tripped := 0.0
	if s.breached || s.streak >= s.limits.MaxConsecutiveLosses {
		tripped = 1
	}
	observ.SetGauge("risk_breaker_tripped", tripped, nil)
}

// roundCents keeps the running total on whole cents so a sum of cent-rounded
// closes compares exactly against the limit.
func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
