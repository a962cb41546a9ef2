// Package lifecycle drives the trading day: market open re-seeds the paper
// engine, signals flow through scoring and recommendation into positions,
// ticks mark positions to market and market close settles everything.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/Rajchodisetti/heat-engine/internal/decision"
	"github.com/Rajchodisetti/heat-engine/internal/heat"
	"github.com/Rajchodisetti/heat-engine/internal/notify"
	"github.com/Rajchodisetti/heat-engine/internal/observ"
	"github.com/Rajchodisetti/heat-engine/internal/outbox"
	"github.com/Rajchodisetti/heat-engine/internal/paper"
	"github.com/Rajchodisetti/heat-engine/internal/signals"
	"github.com/Rajchodisetti/heat-engine/internal/store"
)

// State of the trading day.
type State string

const (
	StateIdle   State = "IDLE"
	StateActive State = "ACTIVE"
)

var (
	ErrNotActive     = errors.New("lifecycle: market is not open")
	ErrAlreadyActive = errors.New("lifecycle: market already open")
)

// Skip reasons reported in Outcome.Skipped.
const (
	SkipBelowThreshold = "below_alert_threshold"
	SkipActionTier     = "action_tier_not_tradeable"
)

// SignalContext is everything that arrives alongside a signal.
type SignalContext struct {
	Heat       heat.Context
	Phase      decision.Phase
	Market     *decision.MarketContext
	Sector     *decision.SectorContext
	KeyLevel   *decision.KeyLevel
	Quote      *decision.OptionQuote
	ImpliedVol float64
}

// Outcome describes what one signal led to.
type Outcome struct {
	Score          heat.Result              `json:"score"`
	Recommendation *decision.Recommendation `json:"recommendation,omitempty"`
	PositionID     string                   `json:"position_id,omitempty"`
	Skipped        string                   `json:"skipped,omitempty"`
}

// Deps wires the coordinator. Repo, Dispatcher, Outbox and RiskLogDir are
// optional.
type Deps struct {
	Scorer     *heat.Scorer
	Builder    *decision.Builder
	Engine     *paper.Engine
	Repo       *store.PositionRepository
	Dispatcher *notify.Dispatcher
	Outbox     *outbox.Outbox
	RiskLogDir string // market close writes the breaker audit log here
	Clock      func() time.Time
}

// Coordinator serialises the day's lifecycle, signal and tick handling.
type Coordinator struct {
	mu        sync.Mutex
	state     State
	tradeDate string
	d         Deps
}

func New(d Deps) *Coordinator {
	if d.Clock == nil {
		d.Clock = time.Now
	}
	return &Coordinator{state: StateIdle, d: d}
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) TradeDate() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tradeDate
}

// MarketOpen moves IDLE -> ACTIVE for tradeDate: the risk state and the
// repeat-signal memory are reset, positions left open on earlier days are
// settled as anomalies, and today's persisted positions are reloaded.
func (c *Coordinator) MarketOpen(ctx context.Context, tradeDate string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateActive {
		return ErrAlreadyActive
	}

	eng := c.d.Engine
	eng.Risk().Reset(tradeDate)
	c.d.Scorer.Tracker().Reset()
	stale := eng.StartDay(tradeDate)

	today := eng.Positions()
	if c.d.Repo != nil {
		settled, err := c.settlePersisted(ctx, tradeDate)
		if err != nil {
			return fmt.Errorf("market open %s: %w", tradeDate, err)
		}
		stale = append(stale, settled...)

		persisted, err := c.d.Repo.LoadDay(ctx, tradeDate)
		if err != nil {
			return fmt.Errorf("market open %s: load positions: %w", tradeDate, err)
		}
		today = merge(persisted, today)
	}
	restored := eng.Restore(tradeDate, today)

	c.state = StateActive
	c.tradeDate = tradeDate
	observ.Log("market_open", map[string]any{
		"trade_date": tradeDate,
		"restored":   restored,
		"stale":      len(stale),
	})
	observ.SetGauge("market_active", 1, nil)
	return nil
}

// settlePersisted closes positions stored under earlier trade dates that
// are still marked open.
func (c *Coordinator) settlePersisted(ctx context.Context, tradeDate string) ([]paper.Position, error) {
	dates, err := c.d.Repo.TradeDates(ctx)
	if err != nil {
		return nil, err
	}
	var settled []paper.Position
	for _, d := range dates {
		if d >= tradeDate {
			continue
		}
		open, err := c.d.Repo.LoadActivePositions(ctx, d)
		if err != nil {
			return settled, err
		}
		settled = append(settled, c.d.Engine.SettleStale(open)...)
	}
	return settled, nil
}

// merge combines persisted positions with in-memory ones; in-memory wins.
func merge(persisted, live []paper.Position) []paper.Position {
	byID := make(map[string]paper.Position, len(persisted)+len(live))
	for _, p := range persisted {
		byID[p.ID] = p
	}
	for _, p := range live {
		byID[p.ID] = p
	}
	out := make([]paper.Position, 0, len(byID))
	for _, p := range byID {
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// HandleSignal runs one inbound event through scoring and recommendation
// and opens a paper position when it qualifies. Engine rejections are not
// errors; they come back in Outcome.Skipped.
func (c *Coordinator) HandleSignal(ctx context.Context, ev signals.Event, sc SignalContext) (Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateActive {
		return Outcome{}, ErrNotActive
	}

	sig, err := signals.Classify(ev)
	if err != nil {
		observ.Log("signal_rejected", map[string]any{"ticker": ev.Ticker, "type": ev.Type, "reason": err.Error()})
		return Outcome{}, err
	}
	res := c.d.Scorer.Evaluate(sig, sc.Heat)
	out := Outcome{Score: res}
	observ.Log("signal_scored", map[string]any{
		"ticker":     res.Ticker,
		"signal":     signals.Describe(sig),
		"heat_score": res.HeatScore,
		"tier":       res.Tier,
	})
	if !tradeable(res.Tier) {
		out.Skipped = SkipBelowThreshold
		return out, nil
	}

	rec, err := c.d.Builder.Build(c.input(sig, res, sc))
	if err != nil {
		return out, fmt.Errorf("build recommendation for %s: %w", sig.Ticker(), err)
	}
	out.Recommendation = &rec
	if rec.ActionTier == decision.TierWatch || rec.ActionTier == decision.TierAvoid {
		out.Skipped = SkipActionTier
		return out, nil
	}

	id, err := c.d.Engine.Open(rec)
	if err != nil {
		out.Skipped = err.Error()
		return out, nil
	}
	out.PositionID = id
	return out, nil
}

func tradeable(t heat.ChannelTier) bool {
	return t == heat.TierHighConviction || t == heat.TierStandard
}

func (c *Coordinator) input(sig signals.Signal, res heat.Result, sc SignalContext) decision.Input {
	in := decision.Input{
		Ticker:     sig.Ticker(),
		Price:      sig.Price(),
		HeatScore:  res.HeatScore,
		SignalType: sig.Kind(),
		Direction:  sig.Direction(),
		Phase:      sc.Phase,
		Market:     sc.Market,
		Sector:     sc.Sector,
		KeyLevel:   sc.KeyLevel,
		Earnings:   sc.Heat.Earnings,
		Quote:      sc.Quote,
		ImpliedVol: sc.ImpliedVol,
		Now:        sig.DetectedAt(),
	}
	if in.Now.IsZero() {
		in.Now = c.d.Clock()
	}
	in.PriceChangePercent = signals.PriceChangePercent(sig)
	if sc.Heat.VolumeConfirmation != nil {
		in.VolumeMultiplier = sc.Heat.VolumeConfirmation.RVOL
	}
	if vs, ok := sig.(signals.VolumeSpike); ok {
		in.VolumeMultiplier = vs.RVOL
	}
	return in
}

// Tick marks every open position to market.
func (c *Coordinator) Tick(prices map[string]float64) (paper.TickResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateActive {
		return paper.TickResult{}, ErrNotActive
	}
	return c.d.Engine.EvaluateTick(prices), nil
}

// MarketClose moves ACTIVE -> IDLE: every open position is closed with
// MARKET_CLOSE, the daily summary is built and emitted, and the per-day
// memory is cleared.
func (c *Coordinator) MarketClose(ctx context.Context, prices map[string]float64) (paper.Summary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateActive {
		return paper.Summary{}, ErrNotActive
	}

	closed := c.d.Engine.CloseAll(prices, paper.ExitMarketClose)
	summary := c.d.Engine.DailySummary()
	riskSummary := c.d.Engine.Risk().EventSummary()

	if c.d.Dispatcher != nil {
		c.d.Dispatcher.Dispatch(ctx, notify.Recap(summary, c.d.Clock()))
		c.d.Dispatcher.Reset()
	}
	if c.d.Outbox != nil {
		if _, err := c.d.Outbox.Write(outbox.TypeSummary, "daily_summary", "", summary); err != nil {
			observ.Warn("summary_write_failed", map[string]any{"trade_date": c.tradeDate, "error": err.Error()})
		}
		if _, err := c.d.Outbox.Write(outbox.TypeSummary, "risk_summary", "", riskSummary); err != nil {
			observ.Warn("summary_write_failed", map[string]any{"trade_date": c.tradeDate, "error": err.Error()})
		}
	}
	if c.d.RiskLogDir != "" {
		if err := c.writeRiskLog(); err != nil {
			observ.Warn("risk_log_write_failed", map[string]any{"trade_date": c.tradeDate, "error": err.Error()})
		}
	}
	c.d.Scorer.Tracker().Reset()

	observ.Log("market_close", map[string]any{
		"trade_date":    c.tradeDate,
		"force_closed":  len(closed),
		"trades":        summary.Totals.Trades,
		"win_rate":      summary.Totals.WinRate,
		"pnl_dollars":   summary.Totals.PnL,
		"open_at_close": summary.OpenPositions,
		"breaker_trips": len(riskSummary.BreakerTrips),
	})
	observ.SetGauge("market_active", 0, nil)
	c.state = StateIdle
	return summary, nil
}

// RiskLogPath is where the audit log for tradeDate is written under dir.
func RiskLogPath(dir, tradeDate string) string {
	return filepath.Join(dir, "risk-"+tradeDate+".jsonl")
}

func (c *Coordinator) writeRiskLog() error {
	if err := os.MkdirAll(c.d.RiskLogDir, 0755); err != nil {
		return err
	}
	f, err := os.Create(RiskLogPath(c.d.RiskLogDir, c.tradeDate))
	if err != nil {
		return err
	}
	if err := c.d.Engine.Risk().WriteEventLog(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
