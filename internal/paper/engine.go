// Package paper simulates option trades opened from recommendations: it
// tracks every open position against live prices, trails stops, closes on
// target/stop/market close and feeds realised P&L into the risk breakers.
package paper

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Rajchodisetti/heat-engine/internal/decision"
	"github.com/Rajchodisetti/heat-engine/internal/observ"
	"github.com/Rajchodisetti/heat-engine/internal/risk"
	"github.com/Rajchodisetti/heat-engine/internal/signals"
)

var (
	ErrDuplicatePosition        = errors.New("paper: open position already exists for ticker and direction")
	ErrRiskLimit                = errors.New("paper: risk limit reached")
	ErrDegenerateRecommendation = errors.New("paper: degenerate recommendation")
	ErrPositionNotFound         = errors.New("paper: position not found")
	ErrPositionClosed           = errors.New("paper: position already closed")
)

// Config drives position sizing, trailing stops and proximity alerts.
type Config struct {
	PositionNotional   float64 // dollars per simulated trade
	DefaultLeverage    float64 // used when a recommendation carries none
	TrailActivationPct float64 // unrealised stock % that arms the trailing stop
	TrailDistancePct   float64 // trailing stop distance behind price, in %
	TargetProximity    float64 // fraction of the entry->target distance
	StopProximity      float64 // fraction of the entry->stop distance
	Location           *time.Location
}

// DefaultConfig returns the canonical defaults.
func DefaultConfig() Config {
	return Config{
		PositionNotional:   2000,
		DefaultLeverage:    3.5,
		TrailActivationPct: 1.5,
		TrailDistancePct:   1.0,
		TargetProximity:    0.2,
		StopProximity:      0.3,
		Location:           marketLocation(),
	}
}

func marketLocation() *time.Location {
	if loc, err := time.LoadLocation("America/New_York"); err == nil {
		return loc
	}
	return time.UTC
}

// Engine owns every paper position. One mutex serialises all mutations, so a
// position is never evaluated by two ticks at once. Events reach the
// Recorder in mutation order; a Recorder must not call back into the
// engine's mutating methods.
type Engine struct {
	mu        sync.Mutex
	emitMu    sync.Mutex // held from the end of a mutation until its events are recorded
	cfg       Config
	risk      *risk.DailyState
	positions map[string]*Position
	order     []string
	recorder  Recorder
	now       func() time.Time
	newID     func() string
}

// Option customises an Engine.
type Option func(*Engine)

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRecorder sets where lifecycle events go.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithIDGenerator replaces uuid-based position identity.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) { e.newID = gen }
}

// NewEngine creates an engine that reports closes to the given risk state.
func NewEngine(cfg Config, rs *risk.DailyState, opts ...Option) *Engine {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	e := &Engine{
		cfg:       cfg,
		risk:      rs,
		positions: make(map[string]*Position),
		recorder:  nopRecorder{},
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Risk exposes the shared daily risk state.
func (e *Engine) Risk() *risk.DailyState {
	return e.risk
}

// TradeDate formats t as a trading-day key in the market's time zone.
func (e *Engine) TradeDate(t time.Time) string {
	return t.In(e.cfg.Location).Format("2006-01-02")
}

// Open creates a position from a recommendation and returns its id. The
// rejections (degenerate levels, duplicate ticker+direction, tripped
// breaker) are expected outcomes and come back as sentinel errors.
func (e *Engine) Open(rec decision.Recommendation) (string, error) {
	e.mu.Lock()
	pos, err := e.openLocked(rec)
	if err != nil {
		e.mu.Unlock()
		observ.Log("paper_open_rejected", map[string]any{"ticker": rec.Ticker, "direction": string(rec.Direction), "reason": err.Error()})
		observ.IncCounter("positions_rejected_total", map[string]string{"reason": rejectLabel(err)})
		return "", err
	}
	opened := pos.Clone()
	observ.SetGauge("open_positions", float64(e.openCountLocked()), nil)
	observ.Log("paper_position_opened", map[string]any{
		"id": opened.ID, "ticker": opened.Ticker, "direction": string(opened.Direction),
		"entry": opened.EntryPrice, "target": opened.TargetPrice, "stop": opened.StopPrice, "tier": string(opened.ActionTier),
		"reasons": rec.ReasonJSON(),
	})
	observ.IncCounter("positions_opened_total", map[string]string{"tier": string(opened.ActionTier)})
	e.unlockAndEmit([]Event{{Type: EventOpened, Position: opened, At: opened.CreatedAt}})
	return opened.ID, nil
}

func (e *Engine) openLocked(rec decision.Recommendation) (*Position, error) {
	entry := rec.EntryPrice
	dir := rec.Direction
	if dir != signals.Bearish {
		dir = signals.Bullish
	}
	sign := dir.Sign()
	switch {
	case entry <= 0 || math.IsNaN(entry):
		return nil, fmt.Errorf("%w: entry price %v", ErrDegenerateRecommendation, entry)
	case entry == rec.StopPrice:
		return nil, fmt.Errorf("%w: entry equals stop (%v)", ErrDegenerateRecommendation, entry)
	case entry == rec.TargetPrice:
		return nil, fmt.Errorf("%w: entry equals target (%v)", ErrDegenerateRecommendation, entry)
	case !(sign*(rec.TargetPrice-entry) > 0) || rec.TargetPrice <= 0:
		return nil, fmt.Errorf("%w: target %v on the wrong side of entry %v for %s", ErrDegenerateRecommendation, rec.TargetPrice, entry, dir)
	case !(sign*(entry-rec.StopPrice) > 0) || rec.StopPrice <= 0:
		return nil, fmt.Errorf("%w: stop %v on the wrong side of entry %v for %s", ErrDegenerateRecommendation, rec.StopPrice, entry, dir)
	}
	for _, id := range e.order {
		p := e.positions[id]
		if p.IsOpen() && p.Ticker == rec.Ticker && p.Direction == dir {
			return nil, fmt.Errorf("%w: %s %s (%s)", ErrDuplicatePosition, rec.Ticker, dir, p.ID)
		}
	}
	if ok, reason := e.risk.CanOpenNewPosition(); !ok {
		return nil, fmt.Errorf("%w: %s", ErrRiskLimit, reason)
	}

	leverage := rec.Leverage
	if leverage <= 0 {
		leverage = e.cfg.DefaultLeverage
	}
	now := e.now()
	pos := &Position{
		ID:                 e.newID(),
		Ticker:             rec.Ticker,
		Direction:          dir,
		EntryPrice:         entry,
		PartialTargetPrice: rec.PartialTargetPrice,
		TargetPrice:        rec.TargetPrice,
		StopPrice:          rec.StopPrice,
		Option:             rec.Option,
		ConfidenceScore:    rec.ConfidenceScore,
		ActionTier:         rec.ActionTier,
		Leverage:           leverage,
		Status:             StatusOpen,
		HighPriceSeen:      entry,
		LowPriceSeen:       entry,
		LastPrice:          entry,
		CreatedAt:          now,
		TradeDate:          e.TradeDate(now),
	}
	e.positions[pos.ID] = pos
	e.order = append(e.order, pos.ID)
	return pos, nil
}

func rejectLabel(err error) string {
	switch {
	case errors.Is(err, ErrDuplicatePosition):
		return "duplicate"
	case errors.Is(err, ErrRiskLimit):
		return "risk_limit"
	case errors.Is(err, ErrDegenerateRecommendation):
		return "degenerate"
	}
	return "other"
}

// Close closes one position at exitPrice.
func (e *Engine) Close(id string, exitPrice float64, reason ExitReason) (Position, error) {
	e.mu.Lock()
	p, ok := e.positions[id]
	if !ok {
		e.mu.Unlock()
		return Position{}, fmt.Errorf("%w: %s", ErrPositionNotFound, id)
	}
	if !p.IsOpen() {
		e.mu.Unlock()
		return p.Clone(), fmt.Errorf("%w: %s", ErrPositionClosed, id)
	}
	ev := e.closeLocked(p, exitPrice, reason, true)
	e.unlockAndEmit([]Event{ev})
	return ev.Position, nil
}

// closeLocked settles a position. Only same-day closes feed the risk state.
func (e *Engine) closeLocked(p *Position, exitPrice float64, reason ExitReason, countRisk bool) Event {
	if exitPrice <= 0 {
		exitPrice = p.LastPrice
	}
	now := e.now()
	stockPct := p.StockPnLPercentAt(exitPrice)
	optionPct := math.Max(stockPct*p.Leverage, -100)

	p.Status = StatusClosed
	p.ExitPrice = exitPrice
	p.ExitReason = reason
	p.LastPrice = exitPrice
	p.StockPnLPercent = roundTo(stockPct, 4)
	p.OptionPnLPercent = roundTo(optionPct, 4)
	p.PnLDollars = roundTo(optionPct/100*e.cfg.PositionNotional, 2)
	p.ClosedAt = now

	if countRisk {
		e.risk.RecordClose(p.PnLDollars)
	}
	observ.Log("paper_position_closed", map[string]any{
		"id": p.ID, "ticker": p.Ticker, "reason": string(reason), "exit": exitPrice,
		"stock_pnl_pct": p.StockPnLPercent, "pnl_dollars": p.PnLDollars,
	})
	observ.IncCounter("positions_closed_total", map[string]string{"reason": string(reason)})
	observ.SetGauge("open_positions", float64(e.openCountLocked()), nil)
	return Event{Type: EventClosed, Position: p.Clone(), At: now, Reason: string(reason)}
}

// EvaluateTick marks every open, priced position to market. Within one
// position the order is fixed: extremes, target, stop, partial target,
// trailing stop, proximity. A target or stop close ends that position's
// evaluation for the tick.
func (e *Engine) EvaluateTick(prices map[string]float64) TickResult {
	start := time.Now()
	var res TickResult
	var events []Event

	e.mu.Lock()
	now := e.now()
	for _, id := range e.order {
		p := e.positions[id]
		if !p.IsOpen() {
			continue
		}
		price, ok := prices[p.Ticker]
		if !ok || price <= 0 || math.IsNaN(price) {
			res.Unpriced = append(res.Unpriced, p.ID)
			continue
		}
		events = append(events, e.evaluateLocked(p, price, now, &res)...)
	}
	e.unlockAndEmit(events)

	if len(res.Unpriced) > 0 {
		observ.Log("paper_positions_unpriced", map[string]any{"count": len(res.Unpriced), "ids": res.Unpriced})
	}
	observ.RecordDuration("tick_evaluation_duration", time.Since(start), nil)
	return res
}

func (e *Engine) evaluateLocked(p *Position, price float64, now time.Time, res *TickResult) []Event {
	sign := p.Direction.Sign()

	// 1. extremes
	p.LastPrice = price
	if price > p.HighPriceSeen {
		p.HighPriceSeen = price
	}
	if price < p.LowPriceSeen {
		p.LowPriceSeen = price
	}

	// 2. target
	if sign*(price-p.TargetPrice) >= 0 {
		ev := e.closeLocked(p, price, ExitTargetHit, true)
		res.Closed = append(res.Closed, ev.Position)
		return []Event{ev}
	}

	// 3. effective stop
	stop, trailing := p.EffectiveStop()
	if sign*(price-stop) <= 0 {
		reason := ExitStopLoss
		if trailing {
			reason = ExitTrailingStop
		}
		ev := e.closeLocked(p, price, reason, true)
		res.Closed = append(res.Closed, ev.Position)
		return []Event{ev}
	}

	var events []Event

	// 4. partial target, once
	if !p.PartialAlertFired && p.PartialTargetPrice > 0 && sign*(price-p.PartialTargetPrice) >= 0 {
		p.PartialAlertFired = true
		a := ProximityAlert{PositionID: p.ID, Ticker: p.Ticker, Kind: AlertPartialTarget, Price: price, Level: p.PartialTargetPrice}
		res.ProximityAlerts = append(res.ProximityAlerts, a)
		events = append(events, Event{Type: EventAlert, Position: p.Clone(), Alert: &a, At: now})
	}

	// 5. trailing stop
	if p.StockPnLPercentAt(price) > e.cfg.TrailActivationPct {
		candidate := roundTo(price*(1-sign*e.cfg.TrailDistancePct/100), 4)
		if sign*(candidate-p.EntryPrice) < 0 {
			candidate = p.EntryPrice
		}
		if p.TrailingStopPrice == nil || sign*(candidate-*p.TrailingStopPrice) > 0 {
			u := TrailingStopUpdate{PositionID: p.ID, Ticker: p.Ticker, Price: price, NewStop: candidate}
			if p.TrailingStopPrice != nil {
				prev := *p.TrailingStopPrice
				u.PreviousStop = &prev
			}
			p.TrailingStopPrice = &candidate
			res.TrailingStopUpdates = append(res.TrailingStopUpdates, u)
			events = append(events, Event{Type: EventTrailingStop, Position: p.Clone(), TrailingStop: &u, At: now})
		}
	}

	// 6. proximity, every tick while true
	if dist := math.Abs(p.TargetPrice - p.EntryPrice); dist > 0 {
		remaining := sign * (p.TargetPrice - price)
		if remaining <= e.cfg.TargetProximity*dist {
			a := ProximityAlert{PositionID: p.ID, Ticker: p.Ticker, Kind: AlertNearTarget, Price: price, Level: p.TargetPrice, RemainingFraction: remaining / dist}
			res.ProximityAlerts = append(res.ProximityAlerts, a)
			events = append(events, Event{Type: EventAlert, Position: p.Clone(), Alert: &a, At: now})
		}
	}
	if dist := math.Abs(p.EntryPrice - p.StopPrice); dist > 0 {
		remaining := sign * (price - p.StopPrice)
		if remaining <= e.cfg.StopProximity*dist {
			a := ProximityAlert{PositionID: p.ID, Ticker: p.Ticker, Kind: AlertNearStop, Price: price, Level: p.StopPrice, RemainingFraction: remaining / dist}
			res.ProximityAlerts = append(res.ProximityAlerts, a)
			events = append(events, Event{Type: EventAlert, Position: p.Clone(), Alert: &a, At: now})
		}
	}
	return events
}

// CloseAll force-closes every open position. Positions without a current
// price settle at their last known price.
func (e *Engine) CloseAll(prices map[string]float64, reason ExitReason) []Position {
	var closed []Position
	var events []Event

	e.mu.Lock()
	for _, id := range e.order {
		p := e.positions[id]
		if !p.IsOpen() {
			continue
		}
		price := prices[p.Ticker]
		if price <= 0 || math.IsNaN(price) {
			price = p.LastPrice
		}
		ev := e.closeLocked(p, price, reason, true)
		closed = append(closed, ev.Position)
		events = append(events, ev)
	}
	e.unlockAndEmit(events)
	return closed
}

// StartDay drops positions from earlier days. Any that are still open were
// never closed and are settled at their last price as anomalies without
// touching today's risk state.
func (e *Engine) StartDay(tradeDate string) []Position {
	var stale []Position
	var events []Event

	e.mu.Lock()
	kept := e.order[:0]
	for _, id := range e.order {
		p := e.positions[id]
		if p.TradeDate == tradeDate {
			kept = append(kept, id)
			continue
		}
		if p.IsOpen() {
			p.Anomaly = true
			ev := e.closeLocked(p, p.LastPrice, ExitMarketClose, false)
			stale = append(stale, ev.Position)
			events = append(events, ev)
		}
		delete(e.positions, id)
	}
	e.order = kept
	observ.SetGauge("open_positions", float64(e.openCountLocked()), nil)
	for _, p := range stale {
		observ.Warn("paper_stale_position", map[string]any{"id": p.ID, "ticker": p.Ticker, "trade_date": p.TradeDate})
	}
	e.unlockAndEmit(events)
	return stale
}

// SettleStale closes positions loaded from an earlier day that were left
// open, the same way StartDay treats in-memory carry-overs. They are not
// adopted by the engine; the close events let persistence record them.
func (e *Engine) SettleStale(positions []Position) []Position {
	var settled []Position
	var events []Event

	e.mu.Lock()
	for i := range positions {
		p := positions[i].Clone()
		if !p.IsOpen() {
			continue
		}
		p.Anomaly = true
		ev := e.closeLocked(&p, p.LastPrice, ExitMarketClose, false)
		settled = append(settled, ev.Position)
		events = append(events, ev)
		observ.Warn("paper_stale_position", map[string]any{"id": p.ID, "ticker": p.Ticker, "trade_date": p.TradeDate})
	}
	e.unlockAndEmit(events)
	return settled
}

// Restore re-seeds the engine with persisted positions for tradeDate after a
// restart. Closed positions replay their P&L into the risk state in close
// order so the breakers come back as they were.
func (e *Engine) Restore(tradeDate string, positions []Position) int {
	sorted := make([]Position, len(positions))
	copy(sorted, positions)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CreatedAt.Before(sorted[j].CreatedAt) })

	e.mu.Lock()
	defer e.mu.Unlock()

	e.positions = make(map[string]*Position, len(sorted))
	e.order = e.order[:0]
	var closed []*Position
	for i := range sorted {
		p := sorted[i].Clone()
		if p.TradeDate != tradeDate || p.ID == "" {
			continue
		}
		if _, dup := e.positions[p.ID]; !dup {
			e.order = append(e.order, p.ID)
		}
		e.positions[p.ID] = &p
	}
	for _, id := range e.order {
		if p := e.positions[id]; !p.IsOpen() && !p.Anomaly {
			closed = append(closed, p)
		}
	}
	sort.SliceStable(closed, func(i, j int) bool { return closed[i].ClosedAt.Before(closed[j].ClosedAt) })
	pnls := make([]float64, len(closed))
	for i, p := range closed {
		pnls[i] = p.PnLDollars
	}
	e.risk.Replay(tradeDate, pnls)

	observ.Log("paper_positions_restored", map[string]any{"trade_date": tradeDate, "count": len(e.order), "closed": len(closed)})
	observ.SetGauge("open_positions", float64(e.openCountLocked()), nil)
	return len(e.order)
}

// Get returns a copy of one position.
func (e *Engine) Get(id string) (Position, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.positions[id]
	if !ok {
		return Position{}, false
	}
	return p.Clone(), true
}

// Positions returns copies of every position in insertion order.
func (e *Engine) Positions() []Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Position, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.positions[id].Clone())
	}
	return out
}

// OpenPositions returns copies of the open positions in insertion order.
func (e *Engine) OpenPositions() []Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []Position
	for _, id := range e.order {
		if p := e.positions[id]; p.IsOpen() {
			out = append(out, p.Clone())
		}
	}
	return out
}

func (e *Engine) openCountLocked() int {
	n := 0
	for _, p := range e.positions {
		if p.IsOpen() {
			n++
		}
	}
	return n
}
