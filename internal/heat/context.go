package heat

import "github.com/Rajchodisetti/heat-engine/internal/signals"

// FlowBias is how order flow relates to the signal's direction.
type FlowBias string

const (
	FlowNeutral       FlowBias = "neutral"
	FlowConfirming    FlowBias = "confirming"
	FlowContradicting FlowBias = "contradicting"
)

// BlockPattern is the pattern detected across recent block prints.
type BlockPattern string

const (
	PatternNone         BlockPattern = ""
	PatternAccumulation BlockPattern = "accumulation"
	PatternDistribution BlockPattern = "distribution"
)

// SectorAdjustment is the sector-leadership input; Adjustment is in points
// and is capped by the configured sector limit.
type SectorAdjustment struct {
	Adjustment float64 `json:"adjustment"`
	Reason     string  `json:"reason"`
}

// OrderFlowAdjustment describes order-flow confirmation.
type OrderFlowAdjustment struct {
	Bias       FlowBias `json:"bias"`
	Absorption bool     `json:"absorption"`
	Reason     string   `json:"reason"`
}

// BlockTradeAdjustment summarises the ticker's recent block prints.
type BlockTradeAdjustment struct {
	RecentNotional float64      `json:"recent_notional"`
	Pattern        BlockPattern `json:"pattern"`
}

// VolatilityRegimeAdjustment carries the regime's position-size multiplier;
// anything under 1.0 turns into a penalty.
type VolatilityRegimeAdjustment struct {
	Regime                 string  `json:"regime"`
	PositionSizeMultiplier float64 `json:"position_size_multiplier"`
}

// Adjustment is a precomputed signed bonus from an external module.
type Adjustment struct {
	Points int    `json:"points"`
	Reason string `json:"reason"`
}

// Context is the optional contextual input for one signal. A nil pointer
// means the module had nothing to say and contributes nothing.
type Context struct {
	VolumeConfirmation *signals.VolumeConfirmation `json:"volume_confirmation,omitempty"`
	RepeatSignalCount  int                         `json:"repeat_signal_count"`
	Sector             *SectorAdjustment           `json:"sector,omitempty"`
	OrderFlow          *OrderFlowAdjustment        `json:"order_flow,omitempty"`
	BlockTrades        *BlockTradeAdjustment       `json:"block_trades,omitempty"`
	VolatilityRegime   *VolatilityRegimeAdjustment `json:"volatility_regime,omitempty"`
	Earnings           *signals.EarningsProximity  `json:"earnings,omitempty"`
	TradingPhase       *Adjustment                 `json:"trading_phase,omitempty"`
	MarketAlignment    *Adjustment                 `json:"market_alignment,omitempty"`
	OnWatchlist        bool                        `json:"on_watchlist"`
}
