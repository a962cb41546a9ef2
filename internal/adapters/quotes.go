// Package adapters normalizes inbound market ticks from the external
// market-data collaborator into the price map the paper engine consumes.
package adapters

import (
	"fmt"
	"strings"
	"time"

	"github.com/Rajchodisetti/heat-engine/internal/observ"
)

// Tick is one price observation.
type Tick struct {
	Ticker      string  `json:"ticker"`
	Price       float64 `json:"price"`
	TimestampMs int64   `json:"timestamp_ms"`
}

// Time returns the tick timestamp, zero when unset.
func (t Tick) Time() time.Time {
	if t.TimestampMs <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(t.TimestampMs)
}

// TickError explains why a tick was dropped.
type TickError struct {
	Type    string // "bad_symbol", "bad_price", "future", "stale"
	Ticker  string
	Message string
}

func (e *TickError) Error() string {
	return fmt.Sprintf("%s error for %s: %s", e.Type, e.Ticker, e.Message)
}

const maxClockSkew = 5 * time.Minute

// ValidateTick normalizes the ticker in place and rejects unusable ticks.
// A zero timestamp is accepted and never counts as stale.
func ValidateTick(t *Tick, now time.Time, maxAge time.Duration) error {
	t.Ticker = strings.ToUpper(strings.TrimSpace(t.Ticker))
	if t.Ticker == "" {
		return &TickError{Type: "bad_symbol", Message: "empty ticker"}
	}
	if t.Price <= 0 {
		return &TickError{Type: "bad_price", Ticker: t.Ticker, Message: fmt.Sprintf("price %.4f", t.Price)}
	}
	ts := t.Time()
	if ts.IsZero() {
		return nil
	}
	if ts.After(now.Add(maxClockSkew)) {
		return &TickError{Type: "future", Ticker: t.Ticker, Message: fmt.Sprintf("timestamp %v", ts)}
	}
	if maxAge > 0 && now.Sub(ts) > maxAge {
		return &TickError{Type: "stale", Ticker: t.Ticker, Message: fmt.Sprintf("quote too stale: %v", now.Sub(ts))}
	}
	return nil
}

// PriceMap collapses ticks into the latest valid price per ticker. Rejected
// ticks are returned alongside so the caller can log them; the affected
// positions simply stay unpriced for this cycle.
func PriceMap(ticks []Tick, now time.Time, maxAge time.Duration) (map[string]float64, []error) {
	prices := make(map[string]float64, len(ticks))
	latest := make(map[string]int64, len(ticks))
	var errs []error
	for _, t := range ticks {
		if err := ValidateTick(&t, now, maxAge); err != nil {
			errs = append(errs, err)
			observ.IncCounter("ticks_rejected_total", map[string]string{"reason": err.(*TickError).Type})
			continue
		}
		if prev, ok := latest[t.Ticker]; ok && t.TimestampMs < prev {
			continue
		}
		latest[t.Ticker] = t.TimestampMs
		prices[t.Ticker] = t.Price
	}
	return prices, errs
}
