package github

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// NewHTTPClient returns an http.Client for GitHub API calls.
// If limiter is not nil, requests wait for the limiter before being sent.
// If metrics is not nil, request latency is recorded by status code and method.
func NewHTTPClient(limiter *rate.Limiter, metrics *Metrics) *http.Client {
	var transport http.RoundTripper = http.DefaultTransport
	if metrics != nil {
		transport = promhttp.InstrumentRoundTripperDuration(metrics.requestDuration, transport)
	}
	if limiter != nil {
		transport = &rateLimitedTransport{limiter: limiter, next: transport}
	}
	return &http.Client{Transport: transport}
}

type rateLimitedTransport struct {
	limiter *rate.Limiter
	next    http.RoundTripper
}

func (t *rateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.next.RoundTrip(req)
}

var _ prometheus.Collector = &Metrics{}

// Metrics records GitHub API request latency.
type Metrics struct {
	requestDuration *prometheus.HistogramVec
}

func NewMetrics(namespace, subsystem string) *Metrics {
	return &Metrics{
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "github_request_duration_seconds",
			Help:      "Duration of GitHub API requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"code", "method"}),
	}
}

func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.requestDuration.Describe(ch)
}

func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.requestDuration.Collect(ch)
}
