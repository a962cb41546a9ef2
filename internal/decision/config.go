package decision

import "github.com/Rajchodisetti/heat-engine/internal/signals"

// ActionTier is the recommendation's conviction bucket, strongest first.
type ActionTier string

const (
	TierFire   ActionTier = "fire"
	TierStrong ActionTier = "strong"
	TierGood   ActionTier = "good"
	TierLean   ActionTier = "lean"
	TierWatch  ActionTier = "watch"
	TierAvoid  ActionTier = "avoid"
)

// Tiers lists the action tiers in descending order.
var Tiers = []ActionTier{TierFire, TierStrong, TierGood, TierLean, TierWatch, TierAvoid}

// Phase labels the part of the session a signal fired in. The label is
// supplied by the market-hours collaborator.
type Phase string

const (
	PhasePreMarket  Phase = "pre_market"
	PhaseOpening    Phase = "opening"
	PhaseMorning    Phase = "morning"
	PhaseMidday     Phase = "midday"
	PhaseAfternoon  Phase = "afternoon"
	PhasePowerHour  Phase = "power_hour"
	PhaseClosing    Phase = "closing"
	PhaseAfterHours Phase = "after_hours"
)

// TierProfile is everything that depends on the action tier.
type TierProfile struct {
	MinScore      int     // effective score needed to reach the tier
	Message       string  // display line for the notification layer
	Urgency       string  // "immediate", "high", ...
	OTMPercent    float64 // strike offset as a fraction of spot
	DTE           int     // target days to expiration
	SameDayAtOpen bool    // use 0DTE when the signal fires in the opening window
	TargetPct     float64
	PartialPct    float64
	StopPct       float64
	Leverage      float64 // fallback option/stock move multiplier
}

// StrikeBand sets the strike interval for spots below MaxPrice. The last
// band applies to everything above the previous bands.
type StrikeBand struct {
	MaxPrice float64
	Interval float64
}

// Config is the recommendation rule set.
type Config struct {
	PhasePoints map[Phase]int

	MarketAlignMinPct      float64 // |SPY %| needed for the alignment bonus
	MarketAlignPoints      int
	MarketOpposeMinPct     float64 // |SPY %| at which opposition is penalised
	MarketOpposePenalty    int
	RelativeStrengthMinPct float64 // smaller opposed moves count as relative strength
	RelativeStrengthPoints int

	SectorMinPct  float64
	SectorPoints  int
	LevelBreak    int
	LevelBounce   int
	VolumeTiers   []VolumeTier
	SignalBonuses map[signals.Kind]int

	EarningsSameDayPenalty int
	EarningsNextDayPenalty int
	EarningsWeekDays       int
	EarningsWeekPenalty    int
	EarningsWarnDays       int

	ConfluenceMinFactors int
	ConfluenceBonus      int

	WarningWeight    int
	LowPriceWarning  float64
	LowVolumeWarning float64
	ExtendedMoveWarn float64
	MiddayWarning    bool
	Profiles         map[ActionTier]TierProfile
	StrikeBands      []StrikeBand
	PositionNotional float64
	DefaultIV        float64
	RiskFreeRate     float64
	MinPricingDays   float64 // floor on days to expiry when pricing, so 0DTE keeps time value
}

// VolumeTier awards points at or above a relative-volume multiple.
type VolumeTier struct {
	MinMultiplier float64
	Points        int
}

// DefaultConfig is the canonical default set.
func DefaultConfig() Config {
	return Config{
		PhasePoints: map[Phase]int{
			PhasePreMarket:  -15,
			PhaseOpening:    15,
			PhaseMorning:    5,
			PhaseMidday:     -25,
			PhaseAfternoon:  0,
			PhasePowerHour:  10,
			PhaseClosing:    -10,
			PhaseAfterHours: -15,
		},
		MarketAlignMinPct:      0.2,
		MarketAlignPoints:      15,
		MarketOpposeMinPct:     0.5,
		MarketOpposePenalty:    -15,
		RelativeStrengthMinPct: 0.2,
		RelativeStrengthPoints: 5,
		SectorMinPct:           0.5,
		SectorPoints:           12,
		LevelBreak:             15,
		LevelBounce:            10,
		VolumeTiers: []VolumeTier{
			{MinMultiplier: 5, Points: 15},
			{MinMultiplier: 3, Points: 10},
			{MinMultiplier: 2, Points: 5},
		},
		SignalBonuses: map[signals.Kind]int{
			signals.KindBreakout:      5,
			signals.KindBlockTrade:    5,
			signals.KindMomentumSurge: 5,
			signals.KindVolumeSpike:   3,
		},
		EarningsSameDayPenalty: -25,
		EarningsNextDayPenalty: -15,
		EarningsWeekDays:       5,
		EarningsWeekPenalty:    -5,
		EarningsWarnDays:       1,
		ConfluenceMinFactors:   4,
		ConfluenceBonus:        10,
		WarningWeight:          3,
		LowPriceWarning:        5,
		LowVolumeWarning:       1.5,
		ExtendedMoveWarn:       8,
		MiddayWarning:          true,
		Profiles: map[ActionTier]TierProfile{
			TierFire:   {MinScore: 75, Message: "High conviction setup, act now", Urgency: "immediate", OTMPercent: 0.005, DTE: 2, SameDayAtOpen: true, TargetPct: 0.015, PartialPct: 0.0075, StopPct: 0.010, Leverage: 4.0},
			TierStrong: {MinScore: 65, Message: "Strong setup with multiple confirmations", Urgency: "high", OTMPercent: 0.01, DTE: 3, TargetPct: 0.018, PartialPct: 0.009, StopPct: 0.012, Leverage: 4.0},
			TierGood:   {MinScore: 50, Message: "Good setup, standard size", Urgency: "medium", OTMPercent: 0.015, DTE: 7, TargetPct: 0.020, PartialPct: 0.010, StopPct: 0.013, Leverage: 3.5},
			TierLean:   {MinScore: 35, Message: "Leaning, wait for confirmation", Urgency: "low", OTMPercent: 0.02, DTE: 14, TargetPct: 0.025, PartialPct: 0.0125, StopPct: 0.015, Leverage: 3.5},
			TierWatch:  {MinScore: 20, Message: "Watch only", Urgency: "none", OTMPercent: 0.02, DTE: 14, TargetPct: 0.030, PartialPct: 0.015, StopPct: 0.020, Leverage: 3.5},
			TierAvoid:  {MinScore: 0, Message: "Avoid, conditions unfavourable", Urgency: "none", OTMPercent: 0.02, DTE: 14, TargetPct: 0.030, PartialPct: 0.015, StopPct: 0.020, Leverage: 3.5},
		},
		StrikeBands: []StrikeBand{
			{MaxPrice: 20, Interval: 1},
			{MaxPrice: 200, Interval: 2.5},
			{MaxPrice: 0, Interval: 5},
		},
		PositionNotional: 2000,
		DefaultIV:        0.35,
		RiskFreeRate:     0.05,
		MinPricingDays:   0.25,
	}
}
