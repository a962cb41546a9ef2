package notify

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Rajchodisetti/heat-engine/internal/observ"
	"github.com/Rajchodisetti/heat-engine/internal/paper"
)

// Sink delivers an alert somewhere.
type Sink interface {
	Send(ctx context.Context, a Alert) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, a Alert) error

func (f SinkFunc) Send(ctx context.Context, a Alert) error { return f(ctx, a) }

// Config throttles repeating alerts per (ticker, kind).
type Config struct {
	Enabled       bool
	RatePerMinute float64
	Burst         int
	Timeout       time.Duration
}

// DefaultConfig allows one repeating alert per key per minute.
func DefaultConfig() Config {
	return Config{Enabled: true, RatePerMinute: 1, Burst: 1, Timeout: 2 * time.Second}
}

// Dispatcher fans alerts out to sinks. Opened, closed and recap alerts
// always go through; proximity and trailing-stop alerts are rate limited.
type Dispatcher struct {
	cfg   Config
	sinks []Sink
	now   func() time.Time

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithClock overrides the limiter clock.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func NewDispatcher(cfg Config, sinks []Sink, opts ...Option) *Dispatcher {
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	d := &Dispatcher{
		cfg:      cfg,
		sinks:    sinks,
		now:      time.Now,
		limiters: make(map[string]*rate.Limiter),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Dispatch sends a to every sink. It reports false when the alert was
// throttled or notifications are disabled. Sink errors are logged and the
// remaining sinks still run.
func (d *Dispatcher) Dispatch(ctx context.Context, a Alert) bool {
	if !d.cfg.Enabled {
		return false
	}
	labels := map[string]string{"kind": a.subKind()}
	if !d.allow(a) {
		observ.IncCounter("notify_throttled_total", labels)
		return false
	}
	for _, s := range d.sinks {
		if err := s.Send(ctx, a); err != nil {
			observ.Warn("notify_sink_failed", map[string]any{
				"kind":   a.subKind(),
				"ticker": a.Ticker,
				"error":  err.Error(),
			})
			observ.IncCounter("notify_errors_total", labels)
		}
	}
	observ.IncCounter("notify_sent_total", labels)
	return true
}

func (d *Dispatcher) allow(a Alert) bool {
	key := a.throttleKey()
	if key == "" || d.cfg.RatePerMinute <= 0 {
		return true
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	lim, ok := d.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(d.cfg.RatePerMinute/60), d.cfg.Burst)
		d.limiters[key] = lim
	}
	return lim.AllowN(d.now(), 1)
}

// Reset forgets all limiter state, typically at market close.
func (d *Dispatcher) Reset() {
	d.mu.Lock()
	d.limiters = make(map[string]*rate.Limiter)
	d.mu.Unlock()
}

// Record makes the dispatcher a paper.Recorder.
func (d *Dispatcher) Record(ev paper.Event) {
	a, ok := FromEvent(ev)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeout)
	defer cancel()
	d.Dispatch(ctx, a)
}
