package paper

import (
	"math"
	"time"

	"github.com/Rajchodisetti/heat-engine/internal/decision"
	"github.com/Rajchodisetti/heat-engine/internal/signals"
)

// Status of a paper position. OPEN -> CLOSED is the only transition.
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// ExitReason is set exactly once, at close.
type ExitReason string

const (
	ExitTargetHit    ExitReason = "TARGET_HIT"
	ExitStopLoss     ExitReason = "STOP_LOSS"
	ExitTrailingStop ExitReason = "TRAILING_STOP"
	ExitMarketClose  ExitReason = "MARKET_CLOSE"
)

// Position is a simulated trade.
type Position struct {
	ID                 string                    `json:"id"`
	Ticker             string                    `json:"ticker"`
	Direction          signals.Direction         `json:"direction"`
	EntryPrice         float64                   `json:"entry_price"`
	PartialTargetPrice float64                   `json:"partial_target_price"`
	TargetPrice        float64                   `json:"target_price"`
	StopPrice          float64                   `json:"stop_price"`
	TrailingStopPrice  *float64                  `json:"trailing_stop_price"`
	Option             decision.OptionSuggestion `json:"option_details"`
	ConfidenceScore    int                       `json:"confidence_score"`
	ActionTier         decision.ActionTier       `json:"action_tier"`
	Leverage           float64                   `json:"leverage"`
	Status             Status                    `json:"status"`
	PartialAlertFired  bool                      `json:"partial_alert_fired"`
	HighPriceSeen      float64                   `json:"high_price_seen"`
	LowPriceSeen       float64                   `json:"low_price_seen"`
	LastPrice          float64                   `json:"last_price"`
	ExitPrice          float64                   `json:"exit_price,omitempty"`
	ExitReason         ExitReason                `json:"exit_reason,omitempty"`
	StockPnLPercent    float64                   `json:"stock_pnl_percent"`
	OptionPnLPercent   float64                   `json:"option_pnl_percent"`
	PnLDollars         float64                   `json:"pnl_dollars"`
	Anomaly            bool                      `json:"anomaly,omitempty"` // force-closed stale carry-over
	CreatedAt          time.Time                 `json:"created_at"`
	ClosedAt           time.Time                 `json:"closed_at"`
	TradeDate          string                    `json:"trade_date"`
}

// IsOpen reports whether the position is still live.
func (p *Position) IsOpen() bool {
	return p.Status == StatusOpen
}

// EffectiveStop is the trailing stop when set, otherwise the original stop.
func (p *Position) EffectiveStop() (float64, bool) {
	if p.TrailingStopPrice != nil {
		return *p.TrailingStopPrice, true
	}
	return p.StopPrice, false
}

// StockPnLPercentAt is the directional stock move from entry to price.
func (p *Position) StockPnLPercentAt(price float64) float64 {
	if p.EntryPrice <= 0 {
		return 0
	}
	return p.Direction.Sign() * (price - p.EntryPrice) / p.EntryPrice * 100
}

// Clone returns a deep copy that is safe to hand out.
func (p *Position) Clone() Position {
	c := *p
	if p.TrailingStopPrice != nil {
		v := *p.TrailingStopPrice
		c.TrailingStopPrice = &v
	}
	return c
}

func roundTo(v float64, places int) float64 {
	f := math.Pow(10, float64(places))
	return math.Round(v*f) / f
}
