// Package notify turns engine events into outbound alert payloads and
// delivers them to sinks. Payloads carry raw numbers only; rendering is
// left to whatever sits behind a sink.
package notify

import (
	"time"

	"github.com/Rajchodisetti/heat-engine/internal/paper"
)

// Kind names an alert.
type Kind string

const (
	KindOpened       Kind = "position_opened"
	KindClosed       Kind = "position_closed"
	KindProximity    Kind = "proximity"
	KindTrailingStop Kind = "trailing_stop"
	KindDailyRecap   Kind = "daily_recap"
)

// Alert is one outbound notification.
type Alert struct {
	Kind         Kind                      `json:"kind"`
	Ticker       string                    `json:"ticker,omitempty"`
	PositionID   string                    `json:"position_id,omitempty"`
	Position     *paper.Position           `json:"position,omitempty"`
	Proximity    *paper.ProximityAlert     `json:"proximity,omitempty"`
	TrailingStop *paper.TrailingStopUpdate `json:"trailing_stop,omitempty"`
	Summary      *paper.Summary            `json:"summary,omitempty"`
	At           time.Time                 `json:"at"`
}

// throttleKey groups alerts that may repeat every tick. Empty means the
// alert is never throttled.
func (a Alert) throttleKey() string {
	switch a.Kind {
	case KindProximity:
		if a.Proximity != nil {
			return a.Ticker + "|" + string(a.Proximity.Kind)
		}
		return a.Ticker + "|proximity"
	case KindTrailingStop:
		return a.Ticker + "|trailing"
	}
	return ""
}

// subKind is the finer-grained label used for metrics and dedupe keys.
func (a Alert) subKind() string {
	if a.Kind == KindProximity && a.Proximity != nil {
		return string(a.Proximity.Kind)
	}
	return string(a.Kind)
}

// FromEvent maps a paper engine event to an alert.
func FromEvent(ev paper.Event) (Alert, bool) {
	p := ev.Position
	a := Alert{Ticker: p.Ticker, PositionID: p.ID, At: ev.At}
	switch ev.Type {
	case paper.EventOpened:
		a.Kind = KindOpened
		a.Position = &p
	case paper.EventClosed:
		a.Kind = KindClosed
		a.Position = &p
	case paper.EventAlert:
		if ev.Alert == nil {
			return Alert{}, false
		}
		al := *ev.Alert
		a.Kind = KindProximity
		a.Proximity = &al
		if a.Ticker == "" {
			a.Ticker, a.PositionID = al.Ticker, al.PositionID
		}
	case paper.EventTrailingStop:
		if ev.TrailingStop == nil {
			return Alert{}, false
		}
		ts := *ev.TrailingStop
		a.Kind = KindTrailingStop
		a.TrailingStop = &ts
		if a.Ticker == "" {
			a.Ticker, a.PositionID = ts.Ticker, ts.PositionID
		}
	default:
		return Alert{}, false
	}
	return a, true
}

// Recap wraps the end-of-day summary.
func Recap(s paper.Summary, at time.Time) Alert {
	return Alert{Kind: KindDailyRecap, Summary: &s, At: at}
}
