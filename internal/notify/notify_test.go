package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rajchodisetti/heat-engine/internal/outbox"
	"github.com/Rajchodisetti/heat-engine/internal/paper"
	"github.com/Rajchodisetti/heat-engine/internal/signals"
)

type captureSink struct {
	alerts []Alert
}

func (c *captureSink) Send(_ context.Context, a Alert) error {
	c.alerts = append(c.alerts, a)
	return nil
}

func proximityEvent(ticker string, kind paper.AlertKind, at time.Time) paper.Event {
	return paper.Event{
		Type:     paper.EventAlert,
		Position: paper.Position{ID: "p-" + ticker, Ticker: ticker},
		Alert:    &paper.ProximityAlert{PositionID: "p-" + ticker, Ticker: ticker, Kind: kind, Price: 101.5, Level: 101.8, RemainingFraction: 0.17},
		At:       at,
	}
}

func TestFromEvent(t *testing.T) {
	at := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		ev   paper.Event
		kind Kind
		id   string
		ok   bool
	}{
		{"opened", paper.Event{Type: paper.EventOpened, Position: paper.Position{ID: "p1", Ticker: "NVDA"}}, KindOpened, "p1", true},
		{"closed", paper.Event{Type: paper.EventClosed, Position: paper.Position{ID: "p1", Ticker: "NVDA"}}, KindClosed, "p1", true},
		{"proximity", proximityEvent("NVDA", paper.AlertNearTarget, at), KindProximity, "p-NVDA", true},
		{"trailing", paper.Event{Type: paper.EventTrailingStop, TrailingStop: &paper.TrailingStopUpdate{PositionID: "p1", Ticker: "NVDA", NewStop: 100.98}}, KindTrailingStop, "p1", true},
		{"alert without payload", paper.Event{Type: paper.EventAlert}, "", "", false},
		{"unknown", paper.Event{Type: "other"}, "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, ok := FromEvent(tt.ev)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.kind, a.Kind)
				assert.Equal(t, "NVDA", a.Ticker)
				assert.Equal(t, tt.id, a.PositionID)
			}
		})
	}
}

func TestDispatcher_ThrottlesRepeatingAlerts(t *testing.T) {
	now := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	sink := &captureSink{}
	d := NewDispatcher(Config{Enabled: true, RatePerMinute: 1, Burst: 1}, []Sink{sink}, WithClock(func() time.Time { return now }))

	assert.True(t, d.Dispatch(context.Background(), mustAlert(t, proximityEvent("NVDA", paper.AlertNearStop, now))))
	assert.False(t, d.Dispatch(context.Background(), mustAlert(t, proximityEvent("NVDA", paper.AlertNearStop, now))))

	// other kinds and tickers have their own limiter
	assert.True(t, d.Dispatch(context.Background(), mustAlert(t, proximityEvent("NVDA", paper.AlertNearTarget, now))))
	assert.True(t, d.Dispatch(context.Background(), mustAlert(t, proximityEvent("AMD", paper.AlertNearStop, now))))

	// opens and closes are never throttled
	open := Alert{Kind: KindOpened, Ticker: "NVDA", PositionID: "p1", At: now}
	assert.True(t, d.Dispatch(context.Background(), open))
	assert.True(t, d.Dispatch(context.Background(), open))

	now = now.Add(61 * time.Second)
	assert.True(t, d.Dispatch(context.Background(), mustAlert(t, proximityEvent("NVDA", paper.AlertNearStop, now))))
	assert.Len(t, sink.alerts, 6)

	d.Reset()
	assert.True(t, d.Dispatch(context.Background(), mustAlert(t, proximityEvent("NVDA", paper.AlertNearStop, now))))
}

func TestDispatcher_DisabledAndUnthrottled(t *testing.T) {
	sink := &captureSink{}
	off := NewDispatcher(Config{Enabled: false}, []Sink{sink})
	assert.False(t, off.Dispatch(context.Background(), Alert{Kind: KindOpened}))

	open := NewDispatcher(Config{Enabled: true, RatePerMinute: 0}, []Sink{sink})
	ev := proximityEvent("NVDA", paper.AlertNearStop, time.Now())
	for i := 0; i < 5; i++ {
		open.Record(ev)
	}
	assert.Len(t, sink.alerts, 5)
}

func TestDispatcher_SinkErrorDoesNotStopOthers(t *testing.T) {
	sink := &captureSink{}
	failing := SinkFunc(func(context.Context, Alert) error { return errors.New("boom") })
	d := NewDispatcher(DefaultConfig(), []Sink{failing, sink})

	assert.True(t, d.Dispatch(context.Background(), Alert{Kind: KindClosed, Ticker: "NVDA"}))
	assert.Len(t, sink.alerts, 1)
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewLogSink(zerolog.New(&buf))

	pos := paper.Position{
		ID: "p1", Ticker: "NVDA", Direction: signals.Bullish, Status: paper.StatusClosed,
		EntryPrice: 100, TargetPrice: 101.8, StopPrice: 98.8, ExitPrice: 101.8,
		ExitReason: paper.ExitTargetHit, PnLDollars: 144,
	}
	require.NoError(t, s.Send(context.Background(), Alert{Kind: KindClosed, Ticker: "NVDA", PositionID: "p1", Position: &pos}))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "alert", line["event"])
	assert.Equal(t, "position_closed", line["kind"])
	assert.Equal(t, "TARGET_HIT", line["exit_reason"])
	assert.Equal(t, 144.0, line["pnl_dollars"])
}

func TestOutboxSink(t *testing.T) {
	ob, err := outbox.New(filepath.Join(t.TempDir(), "outbox.jsonl"), 300)
	require.NoError(t, err)
	s := NewOutboxSink(ob, time.Minute)

	at := time.Now().UTC()
	a := mustAlert(t, proximityEvent("NVDA", paper.AlertNearTarget, at))
	require.NoError(t, s.Send(context.Background(), a))
	require.NoError(t, s.Send(context.Background(), a))
	require.NoError(t, s.Send(context.Background(), Recap(paper.Summary{TradeDate: "2026-03-02"}, at)))

	entries, err := outbox.ReadEntries(ob.Path())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "near_target", entries[0].Kind)
	assert.Equal(t, "daily_recap", entries[1].Kind)

	var back Alert
	require.NoError(t, json.Unmarshal(entries[0].Data, &back))
	require.NotNil(t, back.Proximity)
	assert.Equal(t, 101.8, back.Proximity.Level)
}

func mustAlert(t *testing.T, ev paper.Event) Alert {
	t.Helper()
	a, ok := FromEvent(ev)
	require.True(t, ok)
	return a
}
