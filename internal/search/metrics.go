package search

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var _ prometheus.Collector = &Metrics{}

// Metrics records search and enrichment outcomes. A nil *Metrics records nothing.
type Metrics struct {
	searches    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	enrichments *prometheus.CounterVec
}

func NewMetrics(namespace, subsystem string) *Metrics {
	return &Metrics{
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "searches_total",
			Help:      "Number of searches by sort option and outcome",
		}, []string{"sort", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "search_duration_seconds",
			Help:      "Duration of a search, including enrichment",
			Buckets:   []float64{.25, .5, 1, 2, 5, 10, 20, 30},
		}, []string{"sort"}),
		enrichments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "enrichments_total",
			Help:      "Number of enriched search hits by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.searches.Describe(ch)
	m.duration.Describe(ch)
	m.enrichments.Describe(ch)
}

func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.searches.Collect(ch)
	m.duration.Collect(ch)
	m.enrichments.Collect(ch)
}

func (m *Metrics) observeSearch(sort SortOption, err error, duration time.Duration) {
	if m == nil {
		return
	}
	label := sort.String()
	if !sort.valid() {
		label = "unknown"
	}
	m.searches.WithLabelValues(label, outcome(err)).Inc()
	if err == nil {
		m.duration.WithLabelValues(label).Observe(duration.Seconds())
	}
}

func (m *Metrics) observeEnrichment(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "partial"
	}
	m.enrichments.WithLabelValues(result).Inc()
}

func outcome(err error) string {
	var upstreamErr *UpstreamError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrValidation):
		return "invalid"
	case errors.Is(err, ErrAuthRequired):
		return "unauthenticated"
	case errors.As(err, &upstreamErr):
		return "upstream_error"
	case errors.Is(err, ErrSuperseded), errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "error"
	}
}
