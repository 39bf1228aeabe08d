// Package prom exposes the statsd-style metric calls as Prometheus collectors.
package prom

import (
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quantsignal/forecast-api/internal/observability/statsd"
)

// Sink lazily registers one vector per metric name. The label set is fixed by
// the first call for a name; later calls fill missing labels with "" and drop
// unknown ones.
type Sink struct {
	reg       prometheus.Registerer
	namespace string
	logger    *slog.Logger

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
	labels     map[string][]string
}

var _ statsd.Sink = (*Sink)(nil)

// NewRegistry returns a registry preloaded with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// NewSink builds a sink registering into reg under namespace.
func NewSink(reg prometheus.Registerer, namespace string, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{
		reg:        reg,
		namespace:  metricName(namespace),
		logger:     logger.With("component", "prometheus_sink"),
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		labels:     make(map[string][]string),
	}
}

// Count adds value to the <name>_total counter.
func (s *Sink) Count(name string, value int64, tags map[string]string) {
	if s == nil || value < 0 {
		return
	}
	key := metricName(name) + "_total"
	s.mu.Lock()
	vec, ok := s.counters[key]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: s.namespace,
			Name:      key,
			Help:      "Count of " + name + " events.",
		}, s.bindLabels(key, tags))
		if !s.register(key, vec) {
			s.mu.Unlock()
			return
		}
		s.counters[key] = vec
	}
	labels := s.labelValues(key, tags)
	s.mu.Unlock()
	vec.With(labels).Add(float64(value))
}

// Gauge sets the current value of name.
func (s *Sink) Gauge(name string, value float64, tags map[string]string) {
	if s == nil {
		return
	}
	key := metricName(name)
	s.mu.Lock()
	vec, ok := s.gauges[key]
	if !ok {
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: s.namespace,
			Name:      key,
			Help:      "Current value of " + name + ".",
		}, s.bindLabels(key, tags))
		if !s.register(key, vec) {
			s.mu.Unlock()
			return
		}
		s.gauges[key] = vec
	}
	labels := s.labelValues(key, tags)
	s.mu.Unlock()
	vec.With(labels).Set(value)
}

// Timing observes value in the <name>_seconds histogram.
func (s *Sink) Timing(name string, value time.Duration, tags map[string]string) {
	if s == nil {
		return
	}
	key := metricName(name) + "_seconds"
	s.mu.Lock()
	vec, ok := s.histograms[key]
	if !ok {
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: s.namespace,
			Name:      key,
			Help:      "Duration of " + name + ".",
			// Jobs run from milliseconds (cleanup) to an hour (retraining).
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300, 900, 1800, 3600},
		}, s.bindLabels(key, tags))
		if !s.register(key, vec) {
			s.mu.Unlock()
			return
		}
		s.histograms[key] = vec
	}
	labels := s.labelValues(key, tags)
	s.mu.Unlock()
	vec.With(labels).Observe(value.Seconds())
}

// register must be called with mu held.
func (s *Sink) register(key string, c prometheus.Collector) bool {
	if err := s.reg.Register(c); err != nil {
		s.logger.Warn("prometheus register failed", "metric", key, "error", err)
		delete(s.labels, key)
		return false
	}
	return true
}

// bindLabels must be called with mu held.
func (s *Sink) bindLabels(key string, tags map[string]string) []string {
	names := make([]string, 0, len(tags))
	for k := range tags {
		if n := metricName(k); n != "" {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	s.labels[key] = names
	return names
}

// labelValues must be called with mu held.
func (s *Sink) labelValues(key string, tags map[string]string) prometheus.Labels {
	names := s.labels[key]
	out := make(prometheus.Labels, len(names))
	for _, n := range names {
		out[n] = ""
	}
	for k, v := range tags {
		n := metricName(k)
		if _, ok := out[n]; ok {
			out[n] = v
		}
	}
	return out
}

// metricName maps statsd-style dotted names to Prometheus identifiers.
func metricName(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return strings.Trim(b.String(), "_")
}
