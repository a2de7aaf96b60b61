package prommetrics

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-folio/core"
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder implements core.MetricsRecorder on Prometheus vectors. Dotted
// metric names become underscored; the tag keys seen on the first
// observation of a name fix its label set.
type Recorder struct {
	registerer prometheus.Registerer
	buckets    []float64

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
	labels     map[string][]string
}

func NewRecorder(registerer prometheus.Registerer) *Recorder {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &Recorder{
		registerer: registerer,
		buckets:    []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		counters:   map[string]*prometheus.CounterVec{},
		histograms: map[string]*prometheus.HistogramVec{},
		labels:     map[string][]string{},
	}
}

func (r *Recorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	if r == nil || value < 0 {
		return
	}
	metric := MetricName(name)
	if metric == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	vec, ok := r.counters[metric]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metric,
			Help: "Count of " + strings.TrimSpace(name) + " observations.",
		}, r.labelNames(metric, tags))
		vec = registerCounter(r.registerer, vec)
		r.counters[metric] = vec
	}
	vec.With(r.labelValues(metric, tags)).Add(float64(value))
}

func (r *Recorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	if r == nil {
		return
	}
	metric := MetricName(name)
	if metric == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	vec, ok := r.histograms[metric]
	if !ok {
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metric,
			Help:    "Distribution of " + strings.TrimSpace(name) + ".",
			Buckets: r.buckets,
		}, r.labelNames(metric, tags))
		vec = registerHistogram(r.registerer, vec)
		r.histograms[metric] = vec
	}
	vec.With(r.labelValues(metric, tags)).Observe(value)
}

func (r *Recorder) labelNames(metric string, tags map[string]string) []string {
	if names, ok := r.labels[metric]; ok {
		return names
	}
	names := make([]string, 0, len(tags))
	for key := range tags {
		if label := MetricName(key); label != "" {
			names = append(names, label)
		}
	}
	sort.Strings(names)
	r.labels[metric] = names
	return names
}

// labelValues fills every known label so a tag set that differs from the
// first one never panics.
func (r *Recorder) labelValues(metric string, tags map[string]string) prometheus.Labels {
	normalized := make(map[string]string, len(tags))
	for key, value := range tags {
		normalized[MetricName(key)] = value
	}
	labels := prometheus.Labels{}
	for _, name := range r.labels[metric] {
		labels[name] = normalized[name]
	}
	return labels
}

func registerCounter(registerer prometheus.Registerer, vec *prometheus.CounterVec) *prometheus.CounterVec {
	if err := registerer.Register(vec); err != nil {
		if existing, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if prior, ok := existing.ExistingCollector.(*prometheus.CounterVec); ok {
				return prior
			}
		}
	}
	return vec
}

func registerHistogram(registerer prometheus.Registerer, vec *prometheus.HistogramVec) *prometheus.HistogramVec {
	if err := registerer.Register(vec); err != nil {
		if existing, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if prior, ok := existing.ExistingCollector.(*prometheus.HistogramVec); ok {
				return prior
			}
		}
	}
	return vec
}

// MetricName maps a dotted name to a valid Prometheus identifier.
func MetricName(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return ""
	}
	var b strings.Builder
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r == '_':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteRune('_')
			}
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

var _ core.MetricsRecorder = (*Recorder)(nil)
