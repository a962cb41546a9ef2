package paper

// Bucket aggregates closed trades for one slice of the day.
type Bucket struct {
	Trades  int     `json:"trades"`
	Wins    int     `json:"wins"`
	Losses  int     `json:"losses"`
	WinRate float64 `json:"win_rate"` // percent
	PnL     float64 `json:"pnl_dollars"`
}

func (b *Bucket) add(p Position) {
	b.Trades++
	switch {
	case p.PnLDollars > 0:
		b.Wins++
	case p.PnLDollars < 0:
		b.Losses++
	}
	b.PnL = roundTo(b.PnL+p.PnLDollars, 2)
	b.WinRate = roundTo(float64(b.Wins)/float64(b.Trades)*100, 2)
}

// TradeRef identifies a single trade in the summary.
type TradeRef struct {
	ID               string     `json:"id"`
	Ticker           string     `json:"ticker"`
	Direction        string     `json:"direction"`
	ExitReason       ExitReason `json:"exit_reason"`
	StockPnLPercent  float64    `json:"stock_pnl_percent"`
	OptionPnLPercent float64    `json:"option_pnl_percent"`
	PnLDollars       float64    `json:"pnl_dollars"`
}

func refOf(p Position) *TradeRef {
	return &TradeRef{
		ID:               p.ID,
		Ticker:           p.Ticker,
		Direction:        string(p.Direction),
		ExitReason:       p.ExitReason,
		StockPnLPercent:  p.StockPnLPercent,
		OptionPnLPercent: p.OptionPnLPercent,
		PnLDollars:       p.PnLDollars,
	}
}

// Summary is the end-of-day recap.
type Summary struct {
	TradeDate           string             `json:"trade_date"`
	Totals              Bucket             `json:"totals"`
	OpenPositions       int                `json:"open_positions"`
	AvgStockPnLPercent  float64            `json:"avg_stock_pnl_percent"`
	AvgOptionPnLPercent float64            `json:"avg_option_pnl_percent"`
	ByTier              map[string]*Bucket `json:"by_tier"`
	ByDirection         map[string]*Bucket `json:"by_direction"`
	ByExitReason        map[ExitReason]int `json:"by_exit_reason"`
	Best                *TradeRef          `json:"best,omitempty"`
	Worst               *TradeRef          `json:"worst,omitempty"`
}

// DailySummary aggregates the positions of the trading day the risk state
// was last reset for. Stale carry-overs were dropped by StartDay.
func (e *Engine) DailySummary() Summary {
	return Summarize(e.risk.Snapshot().TradeDate, e.Positions())
}

// Summarize builds a summary from any set of positions.
func Summarize(tradeDate string, positions []Position) Summary {
	s := Summary{
		TradeDate:    tradeDate,
		ByTier:       map[string]*Bucket{},
		ByDirection:  map[string]*Bucket{},
		ByExitReason: map[ExitReason]int{},
	}
	var stockSum, optionSum float64
	for _, p := range positions {
		if p.IsOpen() {
			s.OpenPositions++
			continue
		}
		if p.Anomaly {
			continue
		}
		s.Totals.add(p)
		stockSum += p.StockPnLPercent
		optionSum += p.OptionPnLPercent
		s.ByExitReason[p.ExitReason]++

		tier := string(p.ActionTier)
		if tier == "" {
			tier = "unknown"
		}
		if s.ByTier[tier] == nil {
			s.ByTier[tier] = &Bucket{}
		}
		s.ByTier[tier].add(p)
		dir := string(p.Direction)
		if s.ByDirection[dir] == nil {
			s.ByDirection[dir] = &Bucket{}
		}
		s.ByDirection[dir].add(p)

		if s.Best == nil || p.PnLDollars > s.Best.PnLDollars {
			s.Best = refOf(p)
		}
		if s.Worst == nil || p.PnLDollars < s.Worst.PnLDollars {
			s.Worst = refOf(p)
		}
	}
	if n := s.Totals.Trades; n > 0 {
		s.AvgStockPnLPercent = roundTo(stockSum/float64(n), 4)
		s.AvgOptionPnLPercent = roundTo(optionSum/float64(n), 4)
	}
	return s
}
