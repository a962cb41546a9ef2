package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Rajchodisetti/heat-engine/internal/observ"
	"github.com/Rajchodisetti/heat-engine/internal/paper"
)

const positionPrefix = "paper:positions:"

// PositionKey is paper:positions:{trade_date}:{id}.
func PositionKey(tradeDate, id string) string {
	return positionPrefix + tradeDate + ":" + id
}

// PositionRepository stores one JSON document per position.
type PositionRepository struct {
	kv KV
}

// NewPositionRepository wraps a KV backend.
func NewPositionRepository(kv KV) *PositionRepository {
	return &PositionRepository{kv: kv}
}

// Save upserts a position. A CLOSED document is terminal: an OPEN snapshot
// arriving after it is dropped.
func (r *PositionRepository) Save(ctx context.Context, p paper.Position) error {
	if p.IsOpen() {
		prev, err := r.Get(ctx, p.TradeDate, p.ID)
		switch {
		case err == nil && !prev.IsOpen():
			observ.Log("store_stale_open_skipped", map[string]any{"id": p.ID, "ticker": p.Ticker})
			observ.IncCounter("store_stale_writes_total", nil)
			return nil
		case err != nil && !errors.Is(err, ErrNotFound):
			return err
		}
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal position %s: %w", p.ID, err)
	}
	return r.kv.Set(ctx, PositionKey(p.TradeDate, p.ID), data)
}

// Get loads a single position.
func (r *PositionRepository) Get(ctx context.Context, tradeDate, id string) (paper.Position, error) {
	var p paper.Position
	data, err := r.kv.Get(ctx, PositionKey(tradeDate, id))
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("unmarshal position %s: %w", id, err)
	}
	return p, nil
}

// LoadDay returns every position stored for tradeDate, oldest first.
// Unreadable documents are skipped and reported in the joined error.
func (r *PositionRepository) LoadDay(ctx context.Context, tradeDate string) ([]paper.Position, error) {
	keys, err := r.kv.Keys(ctx, positionPrefix+tradeDate+":")
	if err != nil {
		return nil, err
	}
	var out []paper.Position
	var errs []error
	for _, k := range keys {
		data, err := r.kv.Get(ctx, k)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		var p paper.Position
		if err := json.Unmarshal(data, &p); err != nil {
			errs = append(errs, fmt.Errorf("unmarshal %s: %w", k, err))
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, errors.Join(errs...)
}

// LoadActivePositions returns the still-open positions for tradeDate.
func (r *PositionRepository) LoadActivePositions(ctx context.Context, tradeDate string) ([]paper.Position, error) {
	all, err := r.LoadDay(ctx, tradeDate)
	var open []paper.Position
	for _, p := range all {
		if p.IsOpen() {
			open = append(open, p)
		}
	}
	return open, err
}

// TradeDates lists the days that have stored positions.
func (r *PositionRepository) TradeDates(ctx context.Context) ([]string, error) {
	keys, err := r.kv.Keys(ctx, positionPrefix)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var dates []string
	for _, k := range keys {
		rest := k[len(positionPrefix):]
		for i := 0; i < len(rest); i++ {
			if rest[i] == ':' {
				if d := rest[:i]; !seen[d] {
					seen[d] = true
					dates = append(dates, d)
				}
				break
			}
		}
	}
	sort.Strings(dates)
	return dates, nil
}

// Recorder persists the position carried by every engine event.
type Recorder struct {
	repo    *PositionRepository
	timeout time.Duration
}

// NewRecorder returns a paper.Recorder backed by repo.
func NewRecorder(repo *PositionRepository, timeout time.Duration) *Recorder {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Recorder{repo: repo, timeout: timeout}
}

// Record saves ev.Position. Failures are logged, never returned.
func (r *Recorder) Record(ev paper.Event) {
	if ev.Position.ID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.repo.Save(ctx, ev.Position); err != nil {
		observ.Warn("store_save_failed", map[string]any{
			"id":    ev.Position.ID,
			"event": string(ev.Type),
			"error": err.Error(),
		})
		observ.IncCounter("store_errors_total", map[string]string{"op": "save"})
	}
}
