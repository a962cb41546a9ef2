package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Rajchodisetti/heat-engine/internal/outbox"
)

// LogSink writes each alert as one structured log line.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Send(_ context.Context, a Alert) error {
	e := s.logger.Info().Str("event", "alert").Str("kind", a.subKind())
	if a.Ticker != "" {
		e = e.Str("ticker", a.Ticker)
	}
	if a.PositionID != "" {
		e = e.Str("position_id", a.PositionID)
	}
	switch {
	case a.Proximity != nil:
		e = e.Float64("price", a.Proximity.Price).
			Float64("level", a.Proximity.Level).
			Float64("remaining_fraction", a.Proximity.RemainingFraction)
	case a.TrailingStop != nil:
		e = e.Float64("price", a.TrailingStop.Price).Float64("new_stop", a.TrailingStop.NewStop)
	case a.Position != nil:
		e = e.Str("direction", string(a.Position.Direction)).
			Float64("entry", a.Position.EntryPrice).
			Float64("target", a.Position.TargetPrice).
			Float64("stop", a.Position.StopPrice)
		if !a.Position.IsOpen() {
			e = e.Str("exit_reason", string(a.Position.ExitReason)).
				Float64("exit", a.Position.ExitPrice).
				Float64("pnl_dollars", a.Position.PnLDollars)
		}
	case a.Summary != nil:
		e = e.Str("trade_date", a.Summary.TradeDate).
			Int("trades", a.Summary.Totals.Trades).
			Float64("win_rate", a.Summary.Totals.WinRate).
			Float64("pnl_dollars", a.Summary.Totals.PnL)
	}
	e.Time("at", a.At).Send()
	return nil
}

// OutboxSink appends alerts to the outbox. Alerts for the same position and
// kind inside one bucket are written once.
type OutboxSink struct {
	ob     *outbox.Outbox
	bucket time.Duration
}

func NewOutboxSink(ob *outbox.Outbox, bucket time.Duration) *OutboxSink {
	return &OutboxSink{ob: ob, bucket: bucket}
}

func (s *OutboxSink) Send(_ context.Context, a Alert) error {
	key := ""
	if a.PositionID != "" {
		key = outbox.GenerateIdempotencyKey(a.PositionID, a.subKind(), a.At, s.bucket)
	}
	_, err := s.ob.Write(outbox.TypeAlert, a.subKind(), key, a)
	return err
}
