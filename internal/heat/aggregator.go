// Package heat folds a detected signal and its context into a bounded
// 0-100 heat score with an ordered breakdown and a channel routing decision.
package heat

import (
	"github.com/Rajchodisetti/heat-engine/internal/observ"
	"github.com/Rajchodisetti/heat-engine/internal/signals"
)

// ChannelTier is where a scored signal is routed.
type ChannelTier string

const (
	TierHighConviction ChannelTier = "high_conviction"
	TierStandard       ChannelTier = "standard"
	TierWatchlist      ChannelTier = "watchlist"
	TierNone           ChannelTier = "none"
)

const (
	minScore = 0
	maxScore = 100
)

// Result is the outcome of scoring one signal.
type Result struct {
	Ticker         string            `json:"ticker"`
	Kind           signals.Kind      `json:"kind"`
	Direction      signals.Direction `json:"direction"`
	HeatScore      int               `json:"heat_score"`
	RawScore       int               `json:"raw_score"`
	Breakdown      []Entry           `json:"breakdown"`
	MeetsThreshold bool              `json:"meets_threshold"`
	Tier           ChannelTier       `json:"channel_tier"`
}

// Aggregator applies an ordered rule list to a signal.
type Aggregator struct {
	cfg   Config
	rules []Rule
}

// NewAggregator builds an aggregator with the default rule order.
func NewAggregator(cfg Config) *Aggregator {
	return &Aggregator{cfg: cfg, rules: DefaultRules(cfg)}
}

// Score runs every rule in order. The running total is not clamped while
// accumulating; only the final heat score is bounded to [0, 100].
func (a *Aggregator) Score(sig signals.Signal, ctx Context) Result {
	res := Result{
		Ticker:    sig.Ticker(),
		Kind:      sig.Kind(),
		Direction: sig.Direction(),
		Breakdown: make([]Entry, 0, len(a.rules)),
	}
	for _, r := range a.rules {
		for _, e := range r.Apply(sig, ctx) {
			res.Breakdown = append(res.Breakdown, e)
			res.RawScore += e.Points
		}
	}
	res.HeatScore = clamp(res.RawScore)
	res.Tier = a.Route(res.HeatScore, ctx.OnWatchlist)
	res.MeetsThreshold = res.Tier != TierNone

	observ.IncCounter("signals_scored_total", map[string]string{"kind": string(res.Kind), "tier": string(res.Tier)})
	return res
}

// Route maps a clamped score to a channel.
func (a *Aggregator) Route(score int, onWatchlist bool) ChannelTier {
	t := a.cfg.Thresholds
	switch {
	case score >= t.HighConviction:
		return TierHighConviction
	case score >= t.Alert:
		return TierStandard
	case onWatchlist && score >= t.Watchlist:
		return TierWatchlist
	}
	return TierNone
}

func clamp(v int) int {
	if v < minScore {
		return minScore
	}
	if v > maxScore {
		return maxScore
	}
	return v
}
