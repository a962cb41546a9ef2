package config

import (
	"sort"
	"time"

	"github.com/Rajchodisetti/heat-engine/internal/decision"
	"github.com/Rajchodisetti/heat-engine/internal/heat"
	"github.com/Rajchodisetti/heat-engine/internal/notify"
	"github.com/Rajchodisetti/heat-engine/internal/observ"
	"github.com/Rajchodisetti/heat-engine/internal/paper"
	"github.com/Rajchodisetti/heat-engine/internal/risk"
	"github.com/Rajchodisetti/heat-engine/internal/signals"
	"github.com/Rajchodisetti/heat-engine/internal/store"
)

func knownPhase(name string) bool {
	_, ok := decision.DefaultConfig().PhasePoints[decision.Phase(name)]
	return ok
}

func knownKind(name string) bool {
	for _, k := range signals.Kinds {
		if string(k) == name {
			return true
		}
	}
	return false
}

func knownTier(name string) bool {
	for _, t := range decision.Tiers {
		if string(t) == name {
			return true
		}
	}
	return false
}

func (c Root) LogConfig() observ.LogConfig {
	return observ.LogConfig{Level: c.Log.Level, Format: c.Log.Format, Output: c.Log.Output}
}

// HeatConfig builds the rule set from the heat section.
func (c Root) HeatConfig() heat.Config {
	p, a := c.Heat.Points, c.Heat.Adjustments
	return heat.Config{
		Thresholds: heat.Thresholds{
			HighConviction: c.Heat.Thresholds.HighConviction,
			Alert:          c.Heat.Thresholds.Alert,
			Watchlist:      c.Heat.Thresholds.Watchlist,
		},
		Points: heat.PointTable{
			VolumeExtremeRVOL:      p.VolumeExtremeRVOL,
			VolumeExtremePoints:    p.VolumeExtremePoints,
			VolumeHighRVOL:         p.VolumeHighRVOL,
			VolumeHighPoints:       p.VolumeHighPoints,
			VolumeBasePoints:       p.VolumeBasePoints,
			MomentumStrongPct:      p.MomentumStrongPct,
			MomentumStrongPoints:   p.MomentumStrongPoints,
			MomentumModeratePct:    p.MomentumModeratePct,
			MomentumModeratePoints: p.MomentumModeratePoints,
			MomentumBasePoints:     p.MomentumBasePoints,
			BlockHugeValue:         p.BlockHugeValue,
			BlockHugePoints:        p.BlockHugePoints,
			BlockLargeValue:        p.BlockLargeValue,
			BlockLargePoints:       p.BlockLargePoints,
			BlockBasePoints:        p.BlockBasePoints,
			Breakout:               p.Breakout,
			Gap:                    p.Gap,
			VWAPCross:              p.VWAPCross,
			NewHigh:                p.NewHigh,
			NewLow:                 p.NewLow,
			RelativeStrength:       p.RelativeStrength,
			ConfirmExtremeRVOL:     p.ConfirmExtremeRVOL,
			ConfirmExtremePoints:   p.ConfirmExtremePoints,
			ConfirmHighRVOL:        p.ConfirmHighRVOL,
			ConfirmHighPoints:      p.ConfirmHighPoints,
			RepeatHighCount:        p.RepeatHighCount,
			RepeatHighPoints:       p.RepeatHighPoints,
			RepeatLowCount:         p.RepeatLowCount,
			RepeatLowPoints:        p.RepeatLowPoints,
		},
		Adjustments: heat.Adjustments{
			EarningsImminentDays:    a.EarningsImminentDays,
			EarningsImminentPenalty: a.EarningsImminentPenalty,
			EarningsAwareDays:       a.EarningsAwareDays,
			EarningsAwareBonus:      a.EarningsAwareBonus,
			SectorCap:               a.SectorCap,
			FlowConfirmBonus:        a.FlowConfirmBonus,
			FlowContradictPenalty:   a.FlowContradictPenalty,
			FlowAbsorptionBonus:     a.FlowAbsorptionBonus,
			BlockMemoryTier1Value:   a.BlockMemoryTier1Value,
			BlockMemoryTier1Points:  a.BlockMemoryTier1Points,
			BlockMemoryTier2Value:   a.BlockMemoryTier2Value,
			BlockMemoryTier2Points:  a.BlockMemoryTier2Points,
			BlockMemoryTier3Value:   a.BlockMemoryTier3Value,
			BlockMemoryTier3Points:  a.BlockMemoryTier3Points,
			AccumulationBonus:       a.AccumulationBonus,
			DistributionPenalty:     a.DistributionPenalty,
			VolatilityScale:         a.VolatilityScale,
		},
	}
}

func (c Root) RepeatWindow() time.Duration {
	return time.Duration(c.Heat.RepeatWindowMinutes) * time.Minute
}

// DecisionConfig builds the recommendation rule set. Tier messages and
// strike bands are not configurable; notional and the risk-free rate come
// from the paper and options sections.
func (c Root) DecisionConfig() decision.Config {
	d := decision.DefaultConfig()
	r := c.Recommend
	for name, pts := range r.PhasePoints {
		d.PhasePoints[decision.Phase(name)] = pts
	}
	d.MarketAlignMinPct = r.MarketAlignMinPct
	d.MarketAlignPoints = r.MarketAlignPoints
	d.MarketOpposeMinPct = r.MarketOpposeMinPct
	d.MarketOpposePenalty = r.MarketOpposePenalty
	d.RelativeStrengthMinPct = r.RelativeStrengthMinPct
	d.RelativeStrengthPoints = r.RelativeStrengthPoints
	d.SectorMinPct = r.SectorMinPct
	d.SectorPoints = r.SectorPoints
	d.LevelBreak = r.LevelBreak
	d.LevelBounce = r.LevelBounce

	d.VolumeTiers = make([]decision.VolumeTier, len(r.VolumeTiers))
	for i, t := range r.VolumeTiers {
		d.VolumeTiers[i] = decision.VolumeTier{MinMultiplier: t.MinMultiplier, Points: t.Points}
	}
	sort.SliceStable(d.VolumeTiers, func(i, j int) bool {
		return d.VolumeTiers[i].MinMultiplier > d.VolumeTiers[j].MinMultiplier
	})
	d.SignalBonuses = make(map[signals.Kind]int, len(r.SignalBonuses))
	for kind, pts := range r.SignalBonuses {
		d.SignalBonuses[signals.Kind(kind)] = pts
	}

	d.EarningsSameDayPenalty = r.EarningsSameDayPenalty
	d.EarningsNextDayPenalty = r.EarningsNextDayPenalty
	d.EarningsWeekDays = r.EarningsWeekDays
	d.EarningsWeekPenalty = r.EarningsWeekPenalty
	d.EarningsWarnDays = r.EarningsWarnDays
	d.ConfluenceMinFactors = r.ConfluenceMinFactors
	d.ConfluenceBonus = r.ConfluenceBonus
	d.WarningWeight = r.WarningWeight
	d.LowPriceWarning = r.LowPriceWarning
	d.LowVolumeWarning = r.LowVolumeWarning
	d.ExtendedMoveWarn = r.ExtendedMoveWarning
	d.MiddayWarning = r.MiddayWarning
	d.DefaultIV = r.DefaultIV
	d.MinPricingDays = r.MinPricingDays

	for name, t := range r.Tiers {
		tier := decision.ActionTier(name)
		prof := d.Profiles[tier]
		setIfPresent(&prof.MinScore, t.MinScore)
		setIfPresent(&prof.OTMPercent, t.OTMPercent)
		setIfPresent(&prof.DTE, t.DTE)
		setIfPresent(&prof.TargetPct, t.TargetPct)
		setIfPresent(&prof.PartialPct, t.PartialPct)
		setIfPresent(&prof.StopPct, t.StopPct)
		setIfPresent(&prof.Leverage, t.Leverage)
		d.Profiles[tier] = prof
	}
	d.PositionNotional = c.Paper.PositionNotional
	d.RiskFreeRate = c.Options.RiskFreeRate
	return d
}

func (c Root) PaperConfig() paper.Config {
	p := paper.DefaultConfig()
	p.PositionNotional = c.Paper.PositionNotional
	p.DefaultLeverage = c.Paper.DefaultLeverage
	p.TrailActivationPct = c.Paper.TrailActivationPct
	p.TrailDistancePct = c.Paper.TrailDistancePct
	p.TargetProximity = c.Paper.TargetProximity
	p.StopProximity = c.Paper.StopProximity
	if loc, err := time.LoadLocation(c.Paper.Timezone); err == nil {
		p.Location = loc
	}
	return p
}

func (c Root) RiskLimits() risk.Limits {
	return risk.Limits{
		MaxDailyLoss:         c.Paper.MaxDailyLoss,
		MaxConsecutiveLosses: c.Paper.MaxConsecutiveLosses,
	}
}

func (c Root) StoreConfig() store.Config {
	return store.Config{
		Backend: c.Store.Backend,
		Path:    c.Store.Path,
		Redis: store.RedisConfig{
			Addr:     c.Store.Redis.Addr,
			Password: c.Store.Redis.Password,
			DB:       c.Store.Redis.DB,
			PoolSize: c.Store.Redis.PoolSize,
			Prefix:   c.Store.Redis.Prefix,
		},
	}
}

func (c Root) NotifyConfig() notify.Config {
	n := notify.DefaultConfig()
	n.Enabled = c.Notify.Enabled
	n.RatePerMinute = c.Notify.RatePerMinute
	n.Burst = c.Notify.Burst
	return n
}

func (c Root) OutboxBucket() time.Duration {
	return time.Duration(c.Notify.OutboxBucketSeconds) * time.Second
}

// setIfPresent applies an override that was set in the file, zero included.
func setIfPresent[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
