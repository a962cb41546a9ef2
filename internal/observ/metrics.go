package observ

import (
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "heat"

type registry struct {
	mu       sync.Mutex
	reg      *prometheus.Registry
	counters map[string]*prometheus.CounterVec
	gauges   map[string]*prometheus.GaugeVec
	hist     map[string]*prometheus.HistogramVec
}

var reg = newRegistry()

func newRegistry() *registry {
	return &registry{
		reg:      prometheus.NewRegistry(),
		counters: map[string]*prometheus.CounterVec{},
		gauges:   map[string]*prometheus.GaugeVec{},
		hist:     map[string]*prometheus.HistogramVec{},
	}
}

// labelKeys returns the label names in a stable order together with the
// matching values, so the same label map always resolves to the same series.
func labelKeys(lbl map[string]string) ([]string, []string) {
	if len(lbl) == 0 {
		return nil, nil
	}
	keys := make([]string, 0, len(lbl))
	for k := range lbl {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	vals := make([]string, len(keys))
	for i, k := range keys {
		vals[i] = lbl[k]
	}
	return keys, vals
}

// vecKey identifies a vector by metric name and label set.
func vecKey(name string, keys []string) string {
	return name + "{" + strings.Join(keys, ",") + "}"
}

func (r *registry) counter(name string, keys []string) *prometheus.CounterVec {
	k := vecKey(name, keys)
	if v, ok := r.counters[k]; ok {
		return v
	}
	v := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: name}, keys)
	if err := r.reg.Register(v); err != nil {
		Log("metric_register_failed", map[string]any{"metric": name, "error": err.Error()})
		return nil
	}
	r.counters[k] = v
	return v
}

func (r *registry) gauge(name string, keys []string) *prometheus.GaugeVec {
	k := vecKey(name, keys)
	if v, ok := r.gauges[k]; ok {
		return v
	}
	v := prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: name}, keys)
	if err := r.reg.Register(v); err != nil {
		Log("metric_register_failed", map[string]any{"metric": name, "error": err.Error()})
		return nil
	}
	r.gauges[k] = v
	return v
}

func (r *registry) histogram(name string, keys []string) *prometheus.HistogramVec {
	k := vecKey(name, keys)
	if v, ok := r.hist[k]; ok {
		return v
	}
	v := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      name,
		Help:      name,
		Buckets:   prometheus.DefBuckets,
	}, keys)
	if err := r.reg.Register(v); err != nil {
		Log("metric_register_failed", map[string]any{"metric": name, "error": err.Error()})
		return nil
	}
	r.hist[k] = v
	return v
}

func IncCounter(name string, labels map[string]string) {
	IncCounterBy(name, labels, 1.0)
}

func IncCounterBy(name string, labels map[string]string, value float64) {
	if value < 0 {
		return
	}
	keys, vals := labelKeys(labels)
	reg.mu.Lock()
	v := reg.counter(name, keys)
	reg.mu.Unlock()
	if v != nil {
		v.WithLabelValues(vals...).Add(value)
	}
}

func SetGauge(name string, value float64, labels map[string]string) {
	keys, vals := labelKeys(labels)
	reg.mu.Lock()
	v := reg.gauge(name, keys)
	reg.mu.Unlock()
	if v != nil {
		v.WithLabelValues(vals...).Set(value)
	}
}

func Observe(name string, value float64, labels map[string]string) {
	keys, vals := labelKeys(labels)
	reg.mu.Lock()
	v := reg.histogram(name, keys)
	reg.mu.Unlock()
	if v != nil {
		v.WithLabelValues(vals...).Observe(value)
	}
}

// RecordDuration records a duration metric in seconds
func RecordDuration(name string, duration time.Duration, labels map[string]string) {
	Observe(name+"_seconds", duration.Seconds(), labels)
}

// Gatherer exposes the registry for tests and custom exporters.
func Gatherer() prometheus.Gatherer {
	return reg.reg
}

// Handler serves the registry in Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(reg.reg, promhttp.HandlerOpts{})
}
