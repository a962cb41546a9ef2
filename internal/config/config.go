// Package config loads the engine configuration: a YAML file layered over
// struct-tag defaults, then HEAT_* environment overrides, then validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Log struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" default:"json" validate:"oneof=json console"`
	Output string `yaml:"output" default:"stdout"`
}

type Metrics struct {
	Addr string `yaml:"addr"` // empty disables the /metrics listener
}

type Thresholds struct {
	HighConviction int `yaml:"high_conviction" default:"70" validate:"min=0,max=100"`
	Alert          int `yaml:"alert" default:"50" validate:"min=0,max=100,ltefield=HighConviction"`
	Watchlist      int `yaml:"watchlist" default:"35" validate:"min=0,max=100,ltefield=Alert"`
}

// Points mirrors the base point table and the cross-signal bonuses.
type Points struct {
	VolumeExtremeRVOL   float64 `yaml:"volume_extreme_rvol" default:"5" validate:"gte=0"`
	VolumeExtremePoints int     `yaml:"volume_extreme_points" default:"30"`
	VolumeHighRVOL      float64 `yaml:"volume_high_rvol" default:"3" validate:"gte=0"`
	VolumeHighPoints    int     `yaml:"volume_high_points" default:"20"`
	VolumeBasePoints    int     `yaml:"volume_base_points" default:"10"`

	MomentumStrongPct      float64 `yaml:"momentum_strong_pct" default:"5" validate:"gte=0"`
	MomentumStrongPoints   int     `yaml:"momentum_strong_points" default:"25"`
	MomentumModeratePct    float64 `yaml:"momentum_moderate_pct" default:"2" validate:"gte=0"`
	MomentumModeratePoints int     `yaml:"momentum_moderate_points" default:"15"`
	MomentumBasePoints     int     `yaml:"momentum_base_points" default:"5"`

	BlockHugeValue   float64 `yaml:"block_huge_value" default:"5000000" validate:"gte=0"`
	BlockHugePoints  int     `yaml:"block_huge_points" default:"25"`
	BlockLargeValue  float64 `yaml:"block_large_value" default:"1000000" validate:"gte=0"`
	BlockLargePoints int     `yaml:"block_large_points" default:"15"`
	BlockBasePoints  int     `yaml:"block_base_points" default:"5"`

	Breakout         int `yaml:"breakout" default:"20"`
	Gap              int `yaml:"gap" default:"15"`
	VWAPCross        int `yaml:"vwap_cross" default:"10"`
	NewHigh          int `yaml:"new_high" default:"15"`
	NewLow           int `yaml:"new_low" default:"15"`
	RelativeStrength int `yaml:"relative_strength" default:"10"`

	ConfirmExtremeRVOL   float64 `yaml:"confirm_extreme_rvol" default:"5" validate:"gte=0"`
	ConfirmExtremePoints int     `yaml:"confirm_extreme_points" default:"20"`
	ConfirmHighRVOL      float64 `yaml:"confirm_high_rvol" default:"3" validate:"gte=0"`
	ConfirmHighPoints    int     `yaml:"confirm_high_points" default:"15"`

	RepeatHighCount  int `yaml:"repeat_high_count" default:"3" validate:"min=1"`
	RepeatHighPoints int `yaml:"repeat_high_points" default:"25"`
	RepeatLowCount   int `yaml:"repeat_low_count" default:"2" validate:"min=1,ltefield=RepeatHighCount"`
	RepeatLowPoints  int `yaml:"repeat_low_points" default:"15"`
}

// Adjustments are the contextual points applied after base scoring.
type Adjustments struct {
	EarningsImminentDays    int `yaml:"earnings_imminent_days" default:"1" validate:"gte=0"`
	EarningsImminentPenalty int `yaml:"earnings_imminent_penalty" default:"-10"`
	EarningsAwareDays       int `yaml:"earnings_aware_days" default:"5" validate:"gte=0"`
	EarningsAwareBonus      int `yaml:"earnings_aware_bonus" default:"5"`

	SectorCap int `yaml:"sector_cap" default:"10" validate:"gte=0"`

	FlowConfirmBonus      int `yaml:"flow_confirm_bonus" default:"10"`
	FlowContradictPenalty int `yaml:"flow_contradict_penalty" default:"-5"`
	FlowAbsorptionBonus   int `yaml:"flow_absorption_bonus" default:"5"`

	BlockMemoryTier1Value  float64 `yaml:"block_memory_tier1_value" default:"10000000" validate:"gte=0"`
	BlockMemoryTier1Points int     `yaml:"block_memory_tier1_points" default:"15"`
	BlockMemoryTier2Value  float64 `yaml:"block_memory_tier2_value" default:"5000000" validate:"gte=0"`
	BlockMemoryTier2Points int     `yaml:"block_memory_tier2_points" default:"10"`
	BlockMemoryTier3Value  float64 `yaml:"block_memory_tier3_value" default:"1000000" validate:"gte=0"`
	BlockMemoryTier3Points int     `yaml:"block_memory_tier3_points" default:"5"`
	AccumulationBonus      int     `yaml:"accumulation_bonus" default:"10"`
	DistributionPenalty    int     `yaml:"distribution_penalty" default:"-5"`

	VolatilityScale int `yaml:"volatility_scale" default:"10" validate:"gte=0"`
}

type Heat struct {
	Thresholds          Thresholds  `yaml:"thresholds"`
	Points              Points      `yaml:"points"`
	Adjustments         Adjustments `yaml:"adjustments"`
	RepeatWindowMinutes int         `yaml:"repeat_window_minutes" default:"60" validate:"min=1"`
}

// Tier overrides one action-tier profile. Unset fields keep the default;
// an explicit zero is applied.
type Tier struct {
	MinScore   *int     `yaml:"min_score" validate:"omitempty,min=0,max=100"`
	OTMPercent *float64 `yaml:"otm_percent" validate:"omitempty,gte=0"`
	DTE        *int     `yaml:"dte" validate:"omitempty,gte=0"`
	TargetPct  *float64 `yaml:"target_pct" validate:"omitempty,gte=0"`
	PartialPct *float64 `yaml:"partial_pct" validate:"omitempty,gte=0"`
	StopPct    *float64 `yaml:"stop_pct" validate:"omitempty,gte=0"`
	Leverage   *float64 `yaml:"leverage" validate:"omitempty,gte=0"`
}

type VolumeTier struct {
	MinMultiplier float64 `yaml:"min_multiplier" json:"min_multiplier" validate:"gte=0"`
	Points        int     `yaml:"points" json:"points"`
}

// Recommend configures the recommendation builder. PhasePoints and Tiers
// overlay the built-in tables key by key; VolumeTiers replaces the list.
type Recommend struct {
	PhasePoints            map[string]int `yaml:"phase_points"`
	MarketAlignMinPct      float64        `yaml:"market_align_min_pct" default:"0.2" validate:"gte=0"`
	MarketAlignPoints      int            `yaml:"market_align_points" default:"15"`
	MarketOpposeMinPct     float64        `yaml:"market_oppose_min_pct" default:"0.5" validate:"gte=0"`
	MarketOpposePenalty    int            `yaml:"market_oppose_penalty" default:"-15"`
	RelativeStrengthMinPct float64        `yaml:"relative_strength_min_pct" default:"0.2" validate:"gte=0"`
	RelativeStrengthPoints int            `yaml:"relative_strength_points" default:"5"`
	SectorMinPct           float64        `yaml:"sector_min_pct" default:"0.5" validate:"gte=0"`
	SectorPoints           int            `yaml:"sector_points" default:"12"`
	LevelBreak             int            `yaml:"level_break" default:"15"`
	LevelBounce            int            `yaml:"level_bounce" default:"10"`
	VolumeTiers            []VolumeTier   `yaml:"volume_tiers" default:"[{\"min_multiplier\":5,\"points\":15},{\"min_multiplier\":3,\"points\":10},{\"min_multiplier\":2,\"points\":5}]" validate:"dive"`
	SignalBonuses          map[string]int `yaml:"signal_bonuses" default:"{\"breakout\":5,\"block_trade\":5,\"momentum_surge\":5,\"volume_spike\":3}"`

	EarningsSameDayPenalty int `yaml:"earnings_same_day_penalty" default:"-25"`
	EarningsNextDayPenalty int `yaml:"earnings_next_day_penalty" default:"-15"`
	EarningsWeekDays       int `yaml:"earnings_week_days" default:"5" validate:"gte=0"`
	EarningsWeekPenalty    int `yaml:"earnings_week_penalty" default:"-5"`
	EarningsWarnDays       int `yaml:"earnings_warn_days" default:"1" validate:"gte=0"`

	ConfluenceMinFactors int     `yaml:"confluence_min_factors" default:"4" validate:"min=1"`
	ConfluenceBonus      int     `yaml:"confluence_bonus" default:"10"`
	WarningWeight        int     `yaml:"warning_weight" default:"3" validate:"gte=0"`
	LowPriceWarning      float64 `yaml:"low_price_warning" default:"5" validate:"gte=0"`
	LowVolumeWarning     float64 `yaml:"low_volume_warning" default:"1.5" validate:"gte=0"`
	ExtendedMoveWarning  float64 `yaml:"extended_move_warning" default:"8" validate:"gte=0"`
	MiddayWarning        bool    `yaml:"midday_warning" default:"true"`

	DefaultIV      float64         `yaml:"default_iv" default:"0.35" validate:"gt=0,lte=5"`
	MinPricingDays float64         `yaml:"min_pricing_days" default:"0.25" validate:"gt=0"`
	Tiers          map[string]Tier `yaml:"tiers" validate:"dive"`
}

type Paper struct {
	PositionNotional     float64 `yaml:"position_notional" default:"2000" validate:"gt=0"`
	DefaultLeverage      float64 `yaml:"default_leverage" default:"3.5" validate:"gt=0"`
	MaxDailyLoss         float64 `yaml:"max_daily_loss" default:"500" validate:"gt=0"`
	MaxConsecutiveLosses int     `yaml:"max_consecutive_losses" default:"3" validate:"min=1"`
	TrailActivationPct   float64 `yaml:"trail_activation_pct" default:"1.5" validate:"gt=0"`
	TrailDistancePct     float64 `yaml:"trail_distance_pct" default:"1.0" validate:"gt=0"`
	TargetProximity      float64 `yaml:"target_proximity" default:"0.2" validate:"gte=0,lte=1"`
	StopProximity        float64 `yaml:"stop_proximity" default:"0.3" validate:"gte=0,lte=1"`
	Timezone             string  `yaml:"timezone" default:"America/New_York"`
	RiskLogDir           string  `yaml:"risk_log_dir"` // empty skips the breaker audit log
}

type Options struct {
	RiskFreeRate float64 `yaml:"risk_free_rate" default:"0.05" validate:"gte=0,lte=1"`
}

type Redis struct {
	Addr     string `yaml:"addr" default:"localhost:6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
	PoolSize int    `yaml:"pool_size" default:"10" validate:"gte=0"`
	Prefix   string `yaml:"prefix" default:"heat"`
}

type Store struct {
	Backend string `yaml:"backend" default:"memory" validate:"oneof=memory file redis"`
	Path    string `yaml:"path" default:"data/positions.json"`
	Redis   Redis  `yaml:"redis"`
}

type Outbox struct {
	Enabled          bool   `yaml:"enabled" default:"true"`
	Path             string `yaml:"path" default:"data/outbox.jsonl"`
	DedupeWindowSecs int    `yaml:"dedupe_window_seconds" default:"90" validate:"gte=0"`
}

type Notify struct {
	Enabled             bool    `yaml:"enabled" default:"true"`
	RatePerMinute       float64 `yaml:"rate_per_minute" default:"1" validate:"gte=0"`
	Burst               int     `yaml:"burst" default:"1" validate:"min=1"`
	OutboxBucketSeconds int     `yaml:"outbox_bucket_seconds" default:"60" validate:"gte=0"`
}

type Root struct {
	Log       Log       `yaml:"log"`
	Metrics   Metrics   `yaml:"metrics"`
	Heat      Heat      `yaml:"heat"`
	Recommend Recommend `yaml:"recommend"`
	Paper     Paper     `yaml:"paper"`
	Options   Options   `yaml:"options"`
	Store     Store     `yaml:"store"`
	Outbox    Outbox    `yaml:"outbox"`
	Notify    Notify    `yaml:"notify"`
}

// Default returns the canonical configuration.
func Default() (Root, error) {
	var c Root
	if err := defaults.Set(&c); err != nil {
		return c, fmt.Errorf("config defaults: %w", err)
	}
	return c, nil
}

// Load reads path (optional), loads .env files when present, applies HEAT_*
// overrides and validates. Any error here should abort startup.
func Load(path string, envFiles ...string) (Root, error) {
	c, err := Default()
	if err != nil {
		return c, err
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return c, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return c, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := loadEnvFiles(envFiles); err != nil {
		return c, err
	}
	if err := applyEnvOverrides(&c); err != nil {
		return c, err
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

func loadEnvFiles(files []string) error {
	if len(files) == 0 {
		// a missing .env is fine
		_ = godotenv.Load()
		return nil
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load env file %s: %w", f, err)
		}
	}
	return nil
}

var validate = validator.New()

// Validate checks field rules plus the cross-section constraints.
func (c Root) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	var errs []error
	for name := range c.Recommend.PhasePoints {
		if !knownPhase(name) {
			errs = append(errs, fmt.Errorf("recommend.phase_points: unknown phase %q", name))
		}
	}
	for name := range c.Recommend.Tiers {
		if !knownTier(name) {
			errs = append(errs, fmt.Errorf("recommend.tiers: unknown tier %q", name))
		}
	}
	for name := range c.Recommend.SignalBonuses {
		if !knownKind(name) {
			errs = append(errs, fmt.Errorf("recommend.signal_bonuses: unknown signal type %q", name))
		}
	}
	if c.Store.Backend == "file" && c.Store.Path == "" {
		errs = append(errs, errors.New("store.path is required for the file backend"))
	}
	if c.Store.Backend == "redis" && c.Store.Redis.Addr == "" {
		errs = append(errs, errors.New("store.redis.addr is required for the redis backend"))
	}
	if c.Outbox.Enabled && c.Outbox.Path == "" {
		errs = append(errs, errors.New("outbox.path is required when the outbox is enabled"))
	}
	if _, err := time.LoadLocation(c.Paper.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("paper.timezone: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
