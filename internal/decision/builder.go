// Package decision turns a scored signal into a directional trade
// recommendation: action tier, option contract, price levels and an
// expected P&L estimate.
package decision

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Rajchodisetti/heat-engine/internal/observ"
	"github.com/Rajchodisetti/heat-engine/internal/options"
	"github.com/Rajchodisetti/heat-engine/internal/signals"
)

// ErrInvalidInput is returned for a non-positive price or an empty ticker.
var ErrInvalidInput = errors.New("decision: invalid input")

// MarketContext is the index (SPY) move the signal is judged against.
type MarketContext struct {
	ChangePercent float64 `json:"change_percent"` // signed session move
}

// SectorContext is the sector's signed session move.
type SectorContext struct {
	Name          string  `json:"name"`
	ChangePercent float64 `json:"change_percent"`
}

// LevelKind is how price interacts with a key level.
type LevelKind string

const (
	LevelBreak  LevelKind = "break"
	LevelBounce LevelKind = "bounce"
)

// KeyLevel describes a nearby support/resistance interaction.
type KeyLevel struct {
	Kind  LevelKind `json:"kind"`
	Price float64   `json:"price"`
}

// Input is everything the builder looks at.
type Input struct {
	Ticker             string
	Price              float64
	HeatScore          int
	SignalType         signals.Kind
	Direction          signals.Direction
	VolumeMultiplier   float64 // 0 when unknown
	PriceChangePercent float64
	Phase              Phase
	Market             *MarketContext
	Sector             *SectorContext
	KeyLevel           *KeyLevel
	Earnings           *signals.EarningsProximity
	Quote              *OptionQuote
	ImpliedVol         float64 // 0 when unknown
	Now                time.Time
}

// Factor is one signed confidence adjustment.
type Factor struct {
	Label  string `json:"label"`
	Points int    `json:"points"`
}

// ExpectedPnL is the option-level outcome at target and at stop. Loss
// figures are negative.
type ExpectedPnL struct {
	GainPercent float64 `json:"gain_percent"`
	LossPercent float64 `json:"loss_percent"`
	GainDollars float64 `json:"gain_dollars"`
	LossDollars float64 `json:"loss_dollars"`
}

// Recommendation is immutable once built.
type Recommendation struct {
	Ticker             string            `json:"ticker"`
	Direction          signals.Direction `json:"direction"`
	SignalType         signals.Kind      `json:"signal_type"`
	HeatScore          int               `json:"heat_score"`
	ConfidenceScore    int               `json:"confidence_score"`
	ActionTier         ActionTier        `json:"action_tier"`
	Message            string            `json:"message"`
	Urgency            string            `json:"urgency"`
	EntryPrice         float64           `json:"entry_price"`
	PartialTargetPrice float64           `json:"partial_target_price"`
	TargetPrice        float64           `json:"target_price"`
	StopPrice          float64           `json:"stop_price"`
	RiskRewardRatio    float64           `json:"risk_reward_ratio"`
	Option             OptionSuggestion  `json:"option_suggestion"`
	Greeks             *options.Greeks   `json:"greeks,omitempty"`
	Leverage           float64           `json:"leverage"`
	ExpectedPnL        ExpectedPnL       `json:"expected_pnl"`
	Factors            []Factor          `json:"factors"`
	Warnings           []string          `json:"warnings"`
	CreatedAt          time.Time         `json:"created_at"`
}

// ReasonJSON renders the factors and warnings for audit logs.
func (r Recommendation) ReasonJSON() string {
	rj, _ := json.Marshal(struct {
		Factors  []Factor `json:"factors"`
		Warnings []string `json:"warnings"`
		Tier     string   `json:"tier"`
	}{r.Factors, r.Warnings, string(r.ActionTier)})
	return string(rj)
}

// Builder builds recommendations from a fixed config.
type Builder struct {
	cfg Config
	now func() time.Time
}

// NewBuilder creates a builder.
func NewBuilder(cfg Config) *Builder {
	return &Builder{cfg: cfg, now: time.Now}
}

// Config returns the builder's rule set.
func (b *Builder) Config() Config {
	return b.cfg
}

// Build produces a recommendation. Confidence starts at the heat score,
// picks up every adjustment in a fixed order and is clamped to [0, 100].
func (b *Builder) Build(in Input) (Recommendation, error) {
	if in.Ticker == "" || in.Price <= 0 || math.IsNaN(in.Price) {
		return Recommendation{}, fmt.Errorf("%w: ticker=%q price=%v", ErrInvalidInput, in.Ticker, in.Price)
	}
	now := in.Now
	if now.IsZero() {
		now = b.now()
	}
	dir := in.Direction
	if dir != signals.Bearish {
		dir = signals.Bullish
	}

	factors, warnings := b.adjust(in, dir)
	confidence := in.HeatScore
	positives := 0
	for _, f := range factors {
		confidence += f.Points
		if f.Points > 0 {
			positives++
		}
	}
	if positives >= b.cfg.ConfluenceMinFactors && b.cfg.ConfluenceMinFactors > 0 {
		f := Factor{Label: fmt.Sprintf("confluence of %d factors", positives), Points: b.cfg.ConfluenceBonus}
		factors = append(factors, f)
		confidence += f.Points
	}
	confidence = clampScore(confidence)

	tier := b.tierFor(confidence - b.cfg.WarningWeight*len(warnings))
	prof := b.cfg.Profiles[tier]

	rec := Recommendation{
		Ticker:          in.Ticker,
		Direction:       dir,
		SignalType:      in.SignalType,
		HeatScore:       in.HeatScore,
		ConfidenceScore: confidence,
		ActionTier:      tier,
		Message:         prof.Message,
		Urgency:         prof.Urgency,
		EntryPrice:      roundCents(in.Price),
		Factors:         factors,
		Warnings:        warnings,
		CreatedAt:       now,
	}
	b.setLevels(&rec, prof)
	b.suggestContract(&rec, in, prof, now)
	b.estimatePnL(&rec, prof)

	observ.IncCounter("recommendations_built_total", map[string]string{"tier": string(tier)})
	return rec, nil
}

// adjust walks the confidence adjustments in order and collects warnings.
func (b *Builder) adjust(in Input, dir signals.Direction) ([]Factor, []string) {
	var factors []Factor
	var warnings []string
	add := func(label string, pts int) {
		factors = append(factors, Factor{Label: label, Points: pts})
	}

	// Trading phase
	if pts, ok := b.cfg.PhasePoints[in.Phase]; ok && pts != 0 {
		add(fmt.Sprintf("%s session", in.Phase), pts)
	}
	if in.Phase == PhaseMidday && b.cfg.MiddayWarning {
		warnings = append(warnings, "midday chop: low follow-through")
	}

	// Index alignment
	if m := in.Market; m != nil {
		move := m.ChangePercent * dir.Sign()
		mag := math.Abs(m.ChangePercent)
		switch {
		case move > 0 && mag >= b.cfg.MarketAlignMinPct:
			add("aligned with market", b.cfg.MarketAlignPoints)
		case move < 0 && mag >= b.cfg.MarketOpposeMinPct:
			add("fighting the market", b.cfg.MarketOpposePenalty)
			warnings = append(warnings, fmt.Sprintf("market moving against trade (%.2f%%)", m.ChangePercent))
		case move < 0 && mag >= b.cfg.RelativeStrengthMinPct:
			add("relative strength vs market", b.cfg.RelativeStrengthPoints)
		}
	}

	// Sector
	if s := in.Sector; s != nil {
		move := s.ChangePercent * dir.Sign()
		switch {
		case move >= b.cfg.SectorMinPct:
			add("sector aligned", b.cfg.SectorPoints)
		case move <= -b.cfg.SectorMinPct:
			add("sector against", -b.cfg.SectorPoints)
		}
	}

	// Key level
	if l := in.KeyLevel; l != nil {
		switch l.Kind {
		case LevelBreak:
			add(fmt.Sprintf("key level break at %.2f", l.Price), b.cfg.LevelBreak)
		case LevelBounce:
			add(fmt.Sprintf("key level bounce at %.2f", l.Price), b.cfg.LevelBounce)
		}
	}

	// Volume
	for _, vt := range b.cfg.VolumeTiers {
		if in.VolumeMultiplier >= vt.MinMultiplier {
			add(fmt.Sprintf("volume %.1fx", in.VolumeMultiplier), vt.Points)
			break
		}
	}
	if in.VolumeMultiplier > 0 && in.VolumeMultiplier < b.cfg.LowVolumeWarning {
		warnings = append(warnings, fmt.Sprintf("light volume (%.1fx)", in.VolumeMultiplier))
	}

	// Signal type
	if pts, ok := b.cfg.SignalBonuses[in.SignalType]; ok && pts != 0 {
		add(string(in.SignalType)+" signal", pts)
	}

	// Earnings
	if e := in.Earnings; e != nil && e.DaysUntil >= 0 {
		switch {
		case e.DaysUntil == 0:
			add("earnings today", b.cfg.EarningsSameDayPenalty)
		case e.DaysUntil == 1:
			add("earnings tomorrow", b.cfg.EarningsNextDayPenalty)
		case e.DaysUntil <= b.cfg.EarningsWeekDays:
			add(fmt.Sprintf("earnings in %d days", e.DaysUntil), b.cfg.EarningsWeekPenalty)
		}
		if e.DaysUntil <= b.cfg.EarningsWarnDays {
			warnings = append(warnings, "earnings imminent: IV crush risk")
		}
	}

	if in.Price < b.cfg.LowPriceWarning {
		warnings = append(warnings, fmt.Sprintf("low priced stock ($%.2f)", in.Price))
	}
	if math.Abs(in.PriceChangePercent) > b.cfg.ExtendedMoveWarn {
		warnings = append(warnings, fmt.Sprintf("extended move (%.1f%%)", in.PriceChangePercent))
	}
	return factors, warnings
}

// tierFor maps an effective score to the first tier whose floor it reaches.
func (b *Builder) tierFor(effective int) ActionTier {
	for _, t := range Tiers {
		p, ok := b.cfg.Profiles[t]
		if ok && effective >= p.MinScore {
			return t
		}
	}
	return TierAvoid
}

func (b *Builder) setLevels(rec *Recommendation, prof TierProfile) {
	e, sign := rec.EntryPrice, rec.Direction.Sign()
	rec.TargetPrice = roundCents(e * (1 + sign*prof.TargetPct))
	rec.PartialTargetPrice = roundCents(e * (1 + sign*prof.PartialPct))
	rec.StopPrice = roundCents(e * (1 - sign*prof.StopPct))
	if prof.StopPct > 0 && rec.StopPrice != rec.EntryPrice {
		rec.RiskRewardRatio = math.Round(prof.TargetPct/prof.StopPct*100) / 100
	}
}

func (b *Builder) suggestContract(rec *Recommendation, in Input, prof TierProfile, now time.Time) {
	dte := prof.DTE
	if prof.SameDayAtOpen && in.Phase == PhaseOpening {
		dte = 0
	}
	sug := OptionSuggestion{Type: "call"}
	if rec.Direction == signals.Bearish {
		sug.Type = "put"
	}
	sug.Strike = selectStrike(in.Price, prof.OTMPercent, rec.Direction, b.cfg.StrikeBands)
	sug.ExpirationDate, sug.DaysToExpiration = selectExpiration(now, dte)

	vol, observed := in.ImpliedVol, in.ImpliedVol > 0
	if !observed {
		if iv, ok := b.solveQuoteIV(in.Price, in.Quote, now); ok {
			vol, observed = iv, true
		}
	}
	if !observed {
		vol = b.cfg.DefaultIV
	}
	b.priceContract(in.Price, &sug, vol)
	rec.Option = sug

	rec.Leverage = prof.Leverage
	if !observed {
		return
	}
	days := math.Max(float64(sug.DaysToExpiration), b.cfg.MinPricingDays)
	g, ok := options.ComputeGreeks(in.Price, sug.Strike, days/365, b.cfg.RiskFreeRate, vol, sug.IsCall())
	if !ok {
		return
	}
	rec.Greeks = &g
	if lev, ok := greeksLeverage(g, in.Price, sug.EstimatedPremium, prof.TargetPct, rec.Direction); ok {
		rec.Leverage = lev
	}
}

// greeksLeverage is the option % move per stock % move for a move to target.
func greeksLeverage(g options.Greeks, spot, premium, targetPct float64, dir signals.Direction) (float64, bool) {
	if premium <= 0 || targetPct <= 0 {
		return 0, false
	}
	stockPct := targetPct * 100 * dir.Sign()
	optionPct := options.EstimateOptionPriceMove(g, spot, stockPct) / premium * 100
	lev := optionPct / math.Abs(stockPct)
	if math.IsNaN(lev) || math.IsInf(lev, 0) || lev <= 0 {
		return 0, false
	}
	return math.Round(lev*100) / 100, true
}

func (b *Builder) estimatePnL(rec *Recommendation, prof TierProfile) {
	gain := prof.TargetPct * 100 * rec.Leverage
	loss := math.Min(prof.StopPct*100*rec.Leverage, 100)
	n := b.cfg.PositionNotional
	rec.ExpectedPnL = ExpectedPnL{
		GainPercent: roundCents(gain),
		LossPercent: -roundCents(loss),
		GainDollars: roundCents(gain / 100 * n),
		LossDollars: -roundCents(loss / 100 * n),
	}
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
