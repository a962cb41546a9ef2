package paper

import (
	"time"

	"github.com/Rajchodisetti/heat-engine/internal/observ"
)

// EventType names a position lifecycle event.
type EventType string

const (
	EventOpened       EventType = "position_opened"
	EventClosed       EventType = "position_closed"
	EventTrailingStop EventType = "trailing_stop_updated"
	EventAlert        EventType = "proximity_alert"
)

// AlertKind distinguishes proximity alerts.
type AlertKind string

const (
	AlertPartialTarget AlertKind = "partial_target" // one-shot
	AlertNearTarget    AlertKind = "near_target"
	AlertNearStop      AlertKind = "near_stop"
)

// ProximityAlert is emitted while price sits close to a level.
type ProximityAlert struct {
	PositionID        string    `json:"position_id"`
	Ticker            string    `json:"ticker"`
	Kind              AlertKind `json:"kind"`
	Price             float64   `json:"price"`
	Level             float64   `json:"level"`
	RemainingFraction float64   `json:"remaining_fraction"` // of the entry->level distance
}

// TrailingStopUpdate records one tightening of a trailing stop.
type TrailingStopUpdate struct {
	PositionID   string   `json:"position_id"`
	Ticker       string   `json:"ticker"`
	Price        float64  `json:"price"`
	PreviousStop *float64 `json:"previous_stop"`
	NewStop      float64  `json:"new_stop"`
}

// TickResult is what one EvaluateTick call produced. Slices follow position
// insertion order.
type TickResult struct {
	Closed              []Position           `json:"closed"`
	ProximityAlerts     []ProximityAlert     `json:"proximity_alerts"`
	TrailingStopUpdates []TrailingStopUpdate `json:"trailing_stop_updates"`
	Unpriced            []string             `json:"unpriced,omitempty"`
}

// Event is handed to the Recorder after the engine lock is released, in the
// order the mutations happened.
type Event struct {
	Type         EventType           `json:"type"`
	Position     Position            `json:"position"`
	Alert        *ProximityAlert     `json:"alert,omitempty"`
	TrailingStop *TrailingStopUpdate `json:"trailing_stop,omitempty"`
	Reason       string              `json:"reason,omitempty"`
	At           time.Time           `json:"at"`
}

// Recorder receives lifecycle events for persistence and notification. It
// is called without the engine lock held.
type Recorder interface {
	Record(Event)
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(Event)

// Record calls f.
func (f RecorderFunc) Record(ev Event) { f(ev) }

// MultiRecorder fans events out in order.
type MultiRecorder []Recorder

// Record forwards to every recorder.
func (m MultiRecorder) Record(ev Event) {
	for _, r := range m {
		r.Record(ev)
	}
}

type nopRecorder struct{}

func (nopRecorder) Record(Event) {}

// unlockAndEmit releases mu and records events. The emission lock is taken
// first, so events from a later mutation cannot overtake these.
func (e *Engine) unlockAndEmit(events []Event) {
	if len(events) == 0 {
		e.mu.Unlock()
		return
	}
	e.emitMu.Lock()
	e.mu.Unlock()
	defer e.emitMu.Unlock()
	e.emit(events)
}

func (e *Engine) emit(events []Event) {
	for _, ev := range events {
		e.recorder.Record(ev)
		if ev.Type == EventAlert && ev.Alert != nil {
			observ.IncCounter("alerts_emitted_total", map[string]string{"kind": string(ev.Alert.Kind)})
		}
	}
}
