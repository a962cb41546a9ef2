package heat

// Thresholds route a score to an alert channel.
type Thresholds struct {
	HighConviction int
	Alert          int
	Watchlist      int
}

// PointTable holds the base points per signal kind and the cross-signal
// bonuses. Tiers are checked from the strongest down; the first match wins.
type PointTable struct {
	VolumeExtremeRVOL   float64
	VolumeExtremePoints int
	VolumeHighRVOL      float64
	VolumeHighPoints    int
	VolumeBasePoints    int

	MomentumStrongPct      float64
	MomentumStrongPoints   int
	MomentumModeratePct    float64
	MomentumModeratePoints int
	MomentumBasePoints     int

	BlockHugeValue   float64
	BlockHugePoints  int
	BlockLargeValue  float64
	BlockLargePoints int
	BlockBasePoints  int

	Breakout         int
	Gap              int
	VWAPCross        int
	NewHigh          int
	NewLow           int
	RelativeStrength int

	ConfirmExtremeRVOL   float64
	ConfirmExtremePoints int
	ConfirmHighRVOL      float64
	ConfirmHighPoints    int

	RepeatHighCount  int
	RepeatHighPoints int
	RepeatLowCount   int
	RepeatLowPoints  int
}

// Adjustments are the contextual point values applied after base scoring.
type Adjustments struct {
	EarningsImminentDays    int // days_until <= this is "same/next day"
	EarningsImminentPenalty int
	EarningsAwareDays       int
	EarningsAwareBonus      int

	SectorCap int

	FlowConfirmBonus      int
	FlowContradictPenalty int
	FlowAbsorptionBonus   int

	BlockMemoryTier1Value  float64
	BlockMemoryTier1Points int
	BlockMemoryTier2Value  float64
	BlockMemoryTier2Points int
	BlockMemoryTier3Value  float64
	BlockMemoryTier3Points int
	AccumulationBonus      int
	DistributionPenalty    int

	VolatilityScale int
}

// Config bundles everything the aggregator needs.
type Config struct {
	Thresholds  Thresholds
	Points      PointTable
	Adjustments Adjustments
}

// DefaultConfig is the canonical default rule set.
func DefaultConfig() Config {
	return Config{
		Thresholds: Thresholds{HighConviction: 70, Alert: 50, Watchlist: 35},
		Points: PointTable{
			VolumeExtremeRVOL:      5,
			VolumeExtremePoints:    30,
			VolumeHighRVOL:         3,
			VolumeHighPoints:       20,
			VolumeBasePoints:       10,
			MomentumStrongPct:      5,
			MomentumStrongPoints:   25,
			MomentumModeratePct:    2,
			MomentumModeratePoints: 15,
			MomentumBasePoints:     5,
			BlockHugeValue:         5_000_000,
			BlockHugePoints:        25,
			BlockLargeValue:        1_000_000,
			BlockLargePoints:       15,
			BlockBasePoints:        5,
			Breakout:               20,
			Gap:                    15,
			VWAPCross:              10,
			NewHigh:                15,
			NewLow:                 15,
			RelativeStrength:       10,
			ConfirmExtremeRVOL:     5,
			ConfirmExtremePoints:   20,
			ConfirmHighRVOL:        3,
			ConfirmHighPoints:      15,
			RepeatHighCount:        3,
			RepeatHighPoints:       25,
			RepeatLowCount:         2,
			RepeatLowPoints:        15,
		},
		Adjustments: Adjustments{
			EarningsImminentDays:    1,
			EarningsImminentPenalty: -10,
			EarningsAwareDays:       5,
			EarningsAwareBonus:      5,
			SectorCap:               10,
			FlowConfirmBonus:        10,
			FlowContradictPenalty:   -5,
			FlowAbsorptionBonus:     5,
			BlockMemoryTier1Value:   10_000_000,
			BlockMemoryTier1Points:  15,
			BlockMemoryTier2Value:   5_000_000,
			BlockMemoryTier2Points:  10,
			BlockMemoryTier3Value:   1_000_000,
			BlockMemoryTier3Points:  5,
			AccumulationBonus:       10,
			DistributionPenalty:     -5,
			VolatilityScale:         10,
		},
	}
}
