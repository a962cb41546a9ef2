// Package signals defines the typed market events produced by the detection
// layer and the classification step that builds them from raw records.
package signals

import "time"

// Kind names a detected market event.
type Kind string

const (
	KindVolumeSpike      Kind = "volume_spike"
	KindBlockTrade       Kind = "block_trade"
	KindMomentumSurge    Kind = "momentum_surge"
	KindBreakout         Kind = "breakout"
	KindGap              Kind = "gap"
	KindVWAPCross        Kind = "vwap_cross"
	KindNewHigh          Kind = "new_high"
	KindNewLow           Kind = "new_low"
	KindRelativeStrength Kind = "relative_strength"
	KindUnknown          Kind = "unknown"
)

// Kinds lists every recognised kind.
var Kinds = []Kind{
	KindVolumeSpike, KindBlockTrade, KindMomentumSurge, KindBreakout, KindGap,
	KindVWAPCross, KindNewHigh, KindNewLow, KindRelativeStrength,
}

// Direction is the trade bias implied by a signal.
type Direction string

const (
	Bullish Direction = "bullish"
	Bearish Direction = "bearish"
)

// Sign returns +1 for bullish and -1 for bearish.
func (d Direction) Sign() float64 {
	if d == Bearish {
		return -1
	}
	return 1
}

// Signal is one detected event. The concrete variant carries the fields that
// only make sense for its kind; switch on the type to reach them.
type Signal interface {
	Ticker() string
	Kind() Kind
	Price() float64
	DetectedAt() time.Time
	Direction() Direction
}

// Base holds the fields every variant shares.
type Base struct {
	Symbol string    `json:"ticker"`
	Last   float64   `json:"price"`
	At     time.Time `json:"detected_at"`
}

func (b Base) Ticker() string        { return b.Symbol }
func (b Base) Price() float64        { return b.Last }
func (b Base) DetectedAt() time.Time { return b.At }

func directionOf(changePercent float64) Direction {
	if changePercent < 0 {
		return Bearish
	}
	return Bullish
}

// VolumeSpike fires when relative volume exceeds its baseline.
type VolumeSpike struct {
	Base
	RVOL               float64 `json:"rvol"`
	PriceChangePercent float64 `json:"price_change_percent"`
}

func (VolumeSpike) Kind() Kind             { return KindVolumeSpike }
func (s VolumeSpike) Direction() Direction { return directionOf(s.PriceChangePercent) }

// BlockTrade is a single large print.
type BlockTrade struct {
	Base
	TradeValue         float64 `json:"trade_value"`
	Shares             float64 `json:"shares"`
	PriceChangePercent float64 `json:"price_change_percent"`
}

func (BlockTrade) Kind() Kind             { return KindBlockTrade }
func (s BlockTrade) Direction() Direction { return directionOf(s.PriceChangePercent) }

// MomentumSurge is a fast move over a short window.
type MomentumSurge struct {
	Base
	PriceChangePercent float64 `json:"price_change_percent"`
	WindowMinutes      float64 `json:"window_minutes"`
}

func (MomentumSurge) Kind() Kind             { return KindMomentumSurge }
func (s MomentumSurge) Direction() Direction { return directionOf(s.PriceChangePercent) }

// Breakout is a move through a prior resistance (or, when Breakdown is set,
// support) level.
type Breakout struct {
	Base
	Level     float64 `json:"level"`
	Breakdown bool    `json:"breakdown"`
}

func (Breakout) Kind() Kind { return KindBreakout }
func (s Breakout) Direction() Direction {
	if s.Breakdown {
		return Bearish
	}
	return Bullish
}

// Gap is an open away from the prior close.
type Gap struct {
	Base
	GapPercent float64 `json:"gap_percent"`
}

func (Gap) Kind() Kind             { return KindGap }
func (s Gap) Direction() Direction { return directionOf(s.GapPercent) }

// VWAPCross is price crossing the session VWAP.
type VWAPCross struct {
	Base
	VWAP  float64 `json:"vwap"`
	Above bool    `json:"above"`
}

func (VWAPCross) Kind() Kind { return KindVWAPCross }
func (s VWAPCross) Direction() Direction {
	if s.Above {
		return Bullish
	}
	return Bearish
}

// NewHigh is a fresh session or multi-day high.
type NewHigh struct {
	Base
	PriorHigh float64 `json:"prior_high"`
}

func (NewHigh) Kind() Kind           { return KindNewHigh }
func (NewHigh) Direction() Direction { return Bullish }

// NewLow is a fresh session or multi-day low.
type NewLow struct {
	Base
	PriorLow float64 `json:"prior_low"`
}

func (NewLow) Kind() Kind           { return KindNewLow }
func (NewLow) Direction() Direction { return Bearish }

// RelativeStrength is out- or under-performance versus the index.
type RelativeStrength struct {
	Base
	VsIndexPercent float64 `json:"vs_index_percent"`
}

func (RelativeStrength) Kind() Kind             { return KindRelativeStrength }
func (s RelativeStrength) Direction() Direction { return directionOf(s.VsIndexPercent) }

// Unknown keeps events of a type this build does not recognise so that
// contextual adjustments can still be scored.
type Unknown struct {
	Base
	RawType string `json:"raw_type"`
}

func (Unknown) Kind() Kind           { return KindUnknown }
func (Unknown) Direction() Direction { return Bullish }

// VolumeConfirmation is the relative volume observed alongside a
// non-volume signal.
type VolumeConfirmation struct {
	RVOL float64 `json:"rvol"`
}

// EarningsProximity reports how many calendar days remain until the next
// earnings release.
type EarningsProximity struct {
	DaysUntil int `json:"days_until"`
}
