package heat

import (
	"fmt"
	"math"

	"github.com/Rajchodisetti/heat-engine/internal/signals"
)

// Entry is one line of a score breakdown.
type Entry struct {
	Label  string `json:"label"`
	Points int    `json:"points"`
}

// Tier is one row of a tiered rule table.
type Tier struct {
	Label  string
	Points int
	When   func(sig signals.Signal, ctx Context) bool
}

// Rule contributes breakdown entries for one signal. Table rules walk their
// tiers and emit the first match; Eval rules compute entries directly.
type Rule struct {
	Name  string
	Tiers []Tier
	Eval  func(sig signals.Signal, ctx Context) []Entry
}

// Apply runs the rule.
func (r Rule) Apply(sig signals.Signal, ctx Context) []Entry {
	if r.Eval != nil {
		return r.Eval(sig, ctx)
	}
	for _, t := range r.Tiers {
		if t.When(sig, ctx) {
			return []Entry{{Label: t.Label, Points: t.Points}}
		}
	}
	return nil
}

func always(signals.Signal, Context) bool { return true }

func rvolOf(sig signals.Signal) float64 {
	if v, ok := sig.(signals.VolumeSpike); ok {
		return v.RVOL
	}
	return 0
}

func absMoveOf(sig signals.Signal) float64 {
	return math.Abs(signals.PriceChangePercent(sig))
}

func tradeValueOf(sig signals.Signal) float64 {
	if v, ok := sig.(signals.BlockTrade); ok {
		return v.TradeValue
	}
	return 0
}

// BaseTables builds the per-kind base point tables. Every table ends with an
// unconditional row so exactly one base rule fires for a known kind.
func BaseTables(p PointTable) map[signals.Kind][]Tier {
	fixed := func(label string, pts int) []Tier {
		return []Tier{{Label: label, Points: pts, When: always}}
	}
	return map[signals.Kind][]Tier{
		signals.KindVolumeSpike: {
			{Label: fmt.Sprintf("extreme volume (>= %.0fx RVOL)", p.VolumeExtremeRVOL), Points: p.VolumeExtremePoints,
				When: func(s signals.Signal, _ Context) bool { return rvolOf(s) >= p.VolumeExtremeRVOL }},
			{Label: fmt.Sprintf("high volume (>= %.0fx RVOL)", p.VolumeHighRVOL), Points: p.VolumeHighPoints,
				When: func(s signals.Signal, _ Context) bool { return rvolOf(s) >= p.VolumeHighRVOL }},
			{Label: "elevated volume", Points: p.VolumeBasePoints, When: always},
		},
		signals.KindMomentumSurge: {
			{Label: fmt.Sprintf("strong momentum (>= %.0f%%)", p.MomentumStrongPct), Points: p.MomentumStrongPoints,
				When: func(s signals.Signal, _ Context) bool { return absMoveOf(s) >= p.MomentumStrongPct }},
			{Label: fmt.Sprintf("momentum (>= %.0f%%)", p.MomentumModeratePct), Points: p.MomentumModeratePoints,
				When: func(s signals.Signal, _ Context) bool { return absMoveOf(s) >= p.MomentumModeratePct }},
			{Label: "mild momentum", Points: p.MomentumBasePoints, When: always},
		},
		signals.KindBlockTrade: {
			{Label: "huge block trade", Points: p.BlockHugePoints,
				When: func(s signals.Signal, _ Context) bool { return tradeValueOf(s) >= p.BlockHugeValue }},
			{Label: "large block trade", Points: p.BlockLargePoints,
				When: func(s signals.Signal, _ Context) bool { return tradeValueOf(s) >= p.BlockLargeValue }},
			{Label: "block trade", Points: p.BlockBasePoints, When: always},
		},
		signals.KindBreakout:         fixed("level breakout", p.Breakout),
		signals.KindGap:              fixed("opening gap", p.Gap),
		signals.KindVWAPCross:        fixed("VWAP cross", p.VWAPCross),
		signals.KindNewHigh:          fixed("new high", p.NewHigh),
		signals.KindNewLow:           fixed("new low", p.NewLow),
		signals.KindRelativeStrength: fixed("relative strength vs index", p.RelativeStrength),
	}
}

func baseRule(tables map[signals.Kind][]Tier) Rule {
	return Rule{
		Name: "base",
		Eval: func(sig signals.Signal, ctx Context) []Entry {
			tiers, ok := tables[sig.Kind()]
			if !ok {
				return []Entry{{Label: "unrecognised signal type", Points: 0}}
			}
			for _, t := range tiers {
				if t.When(sig, ctx) {
					return []Entry{{Label: t.Label, Points: t.Points}}
				}
			}
			return []Entry{{Label: string(sig.Kind()), Points: 0}}
		},
	}
}

func confirmationRule(p PointTable) Rule {
	return Rule{
		Name: "volume_confirmation",
		Eval: func(sig signals.Signal, ctx Context) []Entry {
			if sig.Kind() == signals.KindVolumeSpike || ctx.VolumeConfirmation == nil {
				return nil
			}
			rvol := ctx.VolumeConfirmation.RVOL
			switch {
			case rvol >= p.ConfirmExtremeRVOL:
				return []Entry{{Label: fmt.Sprintf("confirmed by %.1fx volume", rvol), Points: p.ConfirmExtremePoints}}
			case rvol >= p.ConfirmHighRVOL:
				return []Entry{{Label: fmt.Sprintf("confirmed by %.1fx volume", rvol), Points: p.ConfirmHighPoints}}
			}
			return []Entry{{Label: fmt.Sprintf("volume %.1fx below confirmation", rvol), Points: 0}}
		},
	}
}

func repeatRule(p PointTable) Rule {
	return Rule{
		Name: "repeat_activity",
		Tiers: []Tier{
			{Label: fmt.Sprintf("%d+ signals in 60 min", p.RepeatHighCount), Points: p.RepeatHighPoints,
				When: func(_ signals.Signal, ctx Context) bool { return ctx.RepeatSignalCount >= p.RepeatHighCount }},
			{Label: fmt.Sprintf("%d signals in 60 min", p.RepeatLowCount), Points: p.RepeatLowPoints,
				When: func(_ signals.Signal, ctx Context) bool { return ctx.RepeatSignalCount >= p.RepeatLowCount }},
			// zero means no repeat memory was supplied
			{Label: "no repeat activity", Points: 0,
				When: func(_ signals.Signal, ctx Context) bool { return ctx.RepeatSignalCount > 0 }},
		},
	}
}

func earningsRule(a Adjustments) Rule {
	return Rule{
		Name: "earnings",
		Eval: func(_ signals.Signal, ctx Context) []Entry {
			if ctx.Earnings == nil {
				return nil
			}
			d := ctx.Earnings.DaysUntil
			switch {
			case d >= 0 && d <= a.EarningsImminentDays:
				return []Entry{{Label: fmt.Sprintf("earnings in %d day(s)", d), Points: a.EarningsImminentPenalty}}
			case d >= 0 && d <= a.EarningsAwareDays:
				return []Entry{{Label: fmt.Sprintf("earnings in %d days", d), Points: a.EarningsAwareBonus}}
			}
			return []Entry{{Label: "no earnings nearby", Points: 0}}
		},
	}
}

func sectorRule(a Adjustments) Rule {
	return Rule{
		Name: "sector",
		Eval: func(_ signals.Signal, ctx Context) []Entry {
			if ctx.Sector == nil {
				return nil
			}
			limit := float64(a.SectorCap)
			pts := int(math.Round(math.Max(-limit, math.Min(limit, ctx.Sector.Adjustment))))
			label := ctx.Sector.Reason
			if label == "" {
				label = "sector strength"
			}
			return []Entry{{Label: label, Points: pts}}
		},
	}
}

func orderFlowRule(a Adjustments) Rule {
	return Rule{
		Name: "order_flow",
		Eval: func(_ signals.Signal, ctx Context) []Entry {
			f := ctx.OrderFlow
			if f == nil {
				return nil
			}
			var out []Entry
			switch f.Bias {
			case FlowConfirming:
				out = append(out, Entry{Label: "order flow confirms", Points: a.FlowConfirmBonus})
			case FlowContradicting:
				out = append(out, Entry{Label: "order flow contradicts", Points: a.FlowContradictPenalty})
			default:
				out = append(out, Entry{Label: "order flow neutral", Points: 0})
			}
			if f.Absorption {
				out = append(out, Entry{Label: "absorption detected", Points: a.FlowAbsorptionBonus})
			}
			return out
		},
	}
}

func blockMemoryRule(a Adjustments) Rule {
	return Rule{
		Name: "block_memory",
		Eval: func(_ signals.Signal, ctx Context) []Entry {
			b := ctx.BlockTrades
			if b == nil {
				return nil
			}
			var out []Entry
			switch {
			case b.RecentNotional >= a.BlockMemoryTier1Value:
				out = append(out, Entry{Label: "heavy recent block activity", Points: a.BlockMemoryTier1Points})
			case b.RecentNotional >= a.BlockMemoryTier2Value:
				out = append(out, Entry{Label: "notable recent block activity", Points: a.BlockMemoryTier2Points})
			case b.RecentNotional >= a.BlockMemoryTier3Value:
				out = append(out, Entry{Label: "recent block activity", Points: a.BlockMemoryTier3Points})
			default:
				out = append(out, Entry{Label: "light block activity", Points: 0})
			}
			switch b.Pattern {
			case PatternAccumulation:
				out = append(out, Entry{Label: "block accumulation pattern", Points: a.AccumulationBonus})
			case PatternDistribution:
				out = append(out, Entry{Label: "block distribution pattern", Points: a.DistributionPenalty})
			default:
				out = append(out, Entry{Label: "no block pattern", Points: 0})
			}
			return out
		},
	}
}

func volatilityRule(a Adjustments) Rule {
	return Rule{
		Name: "volatility_regime",
		Eval: func(_ signals.Signal, ctx Context) []Entry {
			v := ctx.VolatilityRegime
			if v == nil {
				return nil
			}
			pts := 0
			if v.PositionSizeMultiplier < 1 {
				pts = -int(math.Round((1 - v.PositionSizeMultiplier) * float64(a.VolatilityScale)))
			}
			label := "volatility regime"
			if v.Regime != "" {
				label = v.Regime + " volatility regime"
			}
			return []Entry{{Label: label, Points: pts}}
		},
	}
}

func passThroughRule(name, fallback string, pick func(Context) *Adjustment) Rule {
	return Rule{
		Name: name,
		Eval: func(_ signals.Signal, ctx Context) []Entry {
			adj := pick(ctx)
			if adj == nil {
				return nil
			}
			label := adj.Reason
			if label == "" {
				label = fallback
			}
			return []Entry{{Label: label, Points: adj.Points}}
		},
	}
}

// DefaultRules returns the evaluation order used by the aggregator.
func DefaultRules(cfg Config) []Rule {
	return []Rule{
		baseRule(BaseTables(cfg.Points)),
		confirmationRule(cfg.Points),
		repeatRule(cfg.Points),
		earningsRule(cfg.Adjustments),
		sectorRule(cfg.Adjustments),
		orderFlowRule(cfg.Adjustments),
		blockMemoryRule(cfg.Adjustments),
		volatilityRule(cfg.Adjustments),
		passThroughRule("trading_phase", "trading phase", func(c Context) *Adjustment { return c.TradingPhase }),
		passThroughRule("market_alignment", "market alignment", func(c Context) *Adjustment { return c.MarketAlignment }),
	}
}
