package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/Rajchodisetti/heat-engine/internal/adapters"
	"github.com/Rajchodisetti/heat-engine/internal/decision"
	"github.com/Rajchodisetti/heat-engine/internal/heat"
	"github.com/Rajchodisetti/heat-engine/internal/lifecycle"
	"github.com/Rajchodisetti/heat-engine/internal/observ"
	"github.com/Rajchodisetti/heat-engine/internal/paper"
	"github.com/Rajchodisetti/heat-engine/internal/signals"
)

// Step operations.
const (
	opOpen   = "open"
	opSignal = "signal"
	opTick   = "tick"
	opClose  = "close"
)

type sessionFile struct {
	TradeDate string `json:"trade_date"`
	Steps     []step `json:"steps"`
}

type step struct {
	Op     string             `json:"op"`
	At     time.Time          `json:"at"`
	Prices map[string]float64 `json:"prices,omitempty"`
	Ticks  []adapters.Tick    `json:"ticks,omitempty"`
	Signal *signalStep        `json:"signal,omitempty"`
}

// prices merges the step's raw ticks over its plain price map.
func (s *step) prices(now time.Time) map[string]float64 {
	out := make(map[string]float64, len(s.Prices)+len(s.Ticks))
	for k, v := range s.Prices {
		out[k] = v
	}
	fromTicks, rejected := adapters.PriceMap(s.Ticks, now, 0)
	for _, err := range rejected {
		observ.Log("tick_rejected", map[string]any{"error": err.Error()})
	}
	for k, v := range fromTicks {
		out[k] = v
	}
	return out
}

type signalStep struct {
	Event      signals.Event           `json:"event"`
	Heat       heat.Context            `json:"heat"`
	Phase      decision.Phase          `json:"phase"`
	Market     *decision.MarketContext `json:"market,omitempty"`
	Sector     *decision.SectorContext `json:"sector,omitempty"`
	KeyLevel   *decision.KeyLevel      `json:"key_level,omitempty"`
	Quote      *decision.OptionQuote   `json:"quote,omitempty"`
	ImpliedVol float64                 `json:"implied_vol,omitempty"`
}

func (s *signalStep) context() lifecycle.SignalContext {
	return lifecycle.SignalContext{
		Heat:       s.Heat,
		Phase:      s.Phase,
		Market:     s.Market,
		Sector:     s.Sector,
		KeyLevel:   s.KeyLevel,
		Quote:      s.Quote,
		ImpliedVol: s.ImpliedVol,
	}
}

func readSession(path string) (sessionFile, error) {
	var s sessionFile
	b, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("read session %s: %w", path, err)
	}
	if err := json.Unmarshal(b, &s); err != nil {
		return s, fmt.Errorf("json %s: %w", path, err)
	}
	if s.TradeDate == "" {
		return s, fmt.Errorf("session %s: trade_date is required", path)
	}
	return s, nil
}

// replayClock is advanced by each step's timestamp so a replay is
// deterministic regardless of wall time.
type replayClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *replayClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.t.IsZero() {
		return time.Now()
	}
	return c.t
}

func (c *replayClock) advance(t time.Time) {
	if t.IsZero() {
		return
	}
	c.mu.Lock()
	if t.After(c.t) {
		c.t = t
	}
	c.mu.Unlock()
}

// output is one JSON line written per step that produced something.
type output struct {
	Step    int                `json:"step"`
	Op      string             `json:"op"`
	At      time.Time          `json:"at"`
	Outcome *lifecycle.Outcome `json:"outcome,omitempty"`
	Tick    *paper.TickResult  `json:"tick,omitempty"`
	Summary *paper.Summary     `json:"summary,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// runSession feeds every step to the coordinator. Signal errors are
// reported inline; lifecycle errors stop the replay.
func runSession(ctx context.Context, a *app, s sessionFile, w io.Writer) error {
	enc := json.NewEncoder(w)
	for i, st := range s.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		a.clock.advance(st.At)
		out := output{Step: i, Op: st.Op, At: a.clock.Now()}

		switch st.Op {
		case opOpen:
			if err := a.coord.MarketOpen(ctx, s.TradeDate); err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
		case opSignal:
			if st.Signal == nil {
				return fmt.Errorf("step %d: signal step without signal", i)
			}
			o, err := a.coord.HandleSignal(ctx, st.Signal.Event, st.Signal.context())
			if err != nil {
				out.Error = err.Error()
			} else {
				out.Outcome = &o
			}
		case opTick:
			res, err := a.coord.Tick(st.prices(a.clock.Now()))
			if err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
			if len(res.Closed) == 0 && len(res.ProximityAlerts) == 0 && len(res.TrailingStopUpdates) == 0 {
				continue
			}
			out.Tick = &res
		case opClose:
			sum, err := a.coord.MarketClose(ctx, st.prices(a.clock.Now()))
			if err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
			out.Summary = &sum
		default:
			return fmt.Errorf("step %d: unknown op %q", i, st.Op)
		}
		if st.Op == opOpen {
			continue
		}
		if err := enc.Encode(out); err != nil {
			return err
		}
	}
	return nil
}
