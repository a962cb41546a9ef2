package risk

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/Rajchodisetti/heat-engine/internal/observ"
)

// DailyEvent types
const (
	EventReset          = "reset"
	EventCloseRecorded  = "close_recorded"
	EventLossLimitHit   = "daily_loss_limit_breached"
	EventLossStreakHit  = "loss_streak_limit_reached"
	EventOpenRejected   = "open_rejected"
	EventReplayFinished = "replay_finished"
)

// DailyEvent is one entry in the state's audit log.
type DailyEvent struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Type      string         `json:"type"`
	Data      map[string]any `json:"data,omitempty"`
	Reason    string         `json:"reason,omitempty"`
}

// EventSummary condenses one day of the audit log.
type EventSummary struct {
	TradeDate     string         `json:"trade_date"`
	TotalEvents   int            `json:"total_events"`
	ByType        map[string]int `json:"by_type"`
	BreakerTrips  []DailyEvent   `json:"breaker_trips"`
	RejectedOpens map[string]int `json:"rejected_opens"` // by reason
}

// SetClock overrides the event timestamp source.
func (s *DailyState) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// EventHistory returns the most recent events, newest last. Zero means all.
// When eventTypes is non-empty only those types are returned.
func (s *DailyState) EventHistory(maxEvents int, eventTypes ...string) []DailyEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	filtered := s.events
	if len(eventTypes) > 0 {
		want := make(map[string]bool, len(eventTypes))
		for _, t := range eventTypes {
			want[t] = true
		}
		filtered = nil
		for _, e := range s.events {
			if want[e.Type] {
				filtered = append(filtered, e)
			}
		}
	}

	start := 0
	if maxEvents > 0 && len(filtered) > maxEvents {
		start = len(filtered) - maxEvents
	}
	out := make([]DailyEvent, len(filtered)-start)
	copy(out, filtered[start:])
	return out
}

// EventSummary aggregates the events recorded since the last Reset.
func (s *DailyState) EventSummary() EventSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := EventSummary{
		TradeDate:     s.tradeDate,
		ByType:        map[string]int{},
		BreakerTrips:  []DailyEvent{},
		RejectedOpens: map[string]int{},
	}
	for _, e := range s.events {
		sum.TotalEvents++
		sum.ByType[e.Type]++
		switch e.Type {
		case EventLossLimitHit, EventLossStreakHit:
			sum.BreakerTrips = append(sum.BreakerTrips, e)
		case EventOpenRejected:
			sum.RejectedOpens[e.Reason]++
		}
	}
	return sum
}

// WriteEventLog writes the day's events as JSON lines.
func (s *DailyState) WriteEventLog(w io.Writer) error {
	enc := json.NewEncoder(w)
	for _, e := range s.EventHistory(0) {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("failed to write event %s: %w", e.ID, err)
		}
	}
	return nil
}

// ReadEventLog parses a JSON-lines event log. Malformed lines are skipped
// and counted.
func ReadEventLog(r io.Reader) ([]DailyEvent, error) {
	scanner := bufio.NewScanner(r)
	var events []DailyEvent
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var e DailyEvent
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			observ.IncCounter("risk_event_parse_errors_total", nil)
			observ.Warn("risk_event_parse_failed", map[string]any{"line": lineNum, "error": err.Error()})
			continue
		}
		events = append(events, e)
	}
	if err := scanner.Err(); err != nil {
		return events, fmt.Errorf("error reading event log: %w", err)
	}
	return events, nil
}

// ValidateEvents checks the log for missing fields and out-of-order
// timestamps.
func ValidateEvents(events []DailyEvent) error {
	for i, e := range events {
		if e.ID == "" {
			return fmt.Errorf("event %d missing ID", i)
		}
		if e.Type == "" {
			return fmt.Errorf("event %s missing type", e.ID)
		}
		if e.Timestamp.IsZero() {
			return fmt.Errorf("event %s missing timestamp", e.ID)
		}
		if i > 0 && e.Timestamp.Before(events[i-1].Timestamp) {
			return fmt.Errorf("event %s has timestamp before previous event", e.ID)
		}
	}
	return nil
}

func (s *DailyState) addEvent(eventType string, data map[string]any, reason string) {
	s.lastEventID++
	s.events = append(s.events, DailyEvent{
		ID:        "risk_" + strconv.FormatInt(s.lastEventID, 10),
		Timestamp: s.now(),
		Type:      eventType,
		Data:      data,
		Reason:    reason,
	})
	observ.IncCounter("risk_events_total", map[string]string{"event_type": eventType})
}
