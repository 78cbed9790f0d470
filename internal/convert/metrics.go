package convert

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	statusStored = "stored"
	statusEmpty  = "empty"
	statusFailed = "failed"
)

// Metrics counts the articles of one run. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry
	articles *prometheus.CounterVec
	bytes    prometheus.Counter
	duration prometheus.Histogram
}

// NewMetrics registers the run metrics on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		articles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mw2dict_articles_total",
			Help: "Articles processed, by outcome.",
		}, []string{"status"}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mw2dict_article_bytes_total",
			Help: "Bytes of converted HTML stored.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mw2dict_conversion_seconds",
			Help:    "Time spent converting a single article.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}
	m.registry.MustRegister(m.articles, m.bytes, m.duration)
	for _, status := range []string{statusStored, statusEmpty, statusFailed} {
		m.articles.WithLabelValues(status)
	}
	return m
}

// Registry exposes the registry holding the run metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) observeResult(status string, size int) {
	if m == nil {
		return
	}
	m.articles.WithLabelValues(status).Inc()
	if size > 0 {
		m.bytes.Add(float64(size))
	}
}

func (m *Metrics) observeDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.duration.Observe(d.Seconds())
}

// WriteTextfile writes the metrics in the node exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
