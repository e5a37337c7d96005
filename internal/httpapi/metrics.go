package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/John-Robertt/plugincfg-merge/internal/merge"
)

// Metrics holds the serve mode collectors. Create one per registry.
type Metrics struct {
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	AppErrors       *prometheus.CounterVec

	Merges       prometheus.Counter
	MergeInputs  prometheus.Histogram
	SharedKeys   prometheus.Counter
	UnsharedKeys prometheus.Counter
}

func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pluginmerge_http_requests_total",
			Help: "HTTP requests by ServeMux pattern and status.",
		}, []string{"pattern", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pluginmerge_http_request_duration_seconds",
			Help:    "HTTP request latency by ServeMux pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"pattern"}),
		AppErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pluginmerge_app_errors_total",
			Help: "Application errors returned to clients.",
		}, []string{"stage", "code"}),
		Merges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pluginmerge_merges_total",
			Help: "Successful merges.",
		}),
		MergeInputs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pluginmerge_merge_inputs",
			Help:    "Input documents per successful merge.",
			Buckets: []float64{2, 3, 4, 6, 8, 12, 16, 32},
		}),
		SharedKeys: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pluginmerge_shared_keys_total",
			Help: "Routing keys placed in shared groups.",
		}),
		UnsharedKeys: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pluginmerge_unshared_keys_total",
			Help: "Routing keys left with their origin input.",
		}),
	}
	registry.MustRegister(
		m.Requests, m.RequestDuration, m.AppErrors,
		m.Merges, m.MergeInputs, m.SharedKeys, m.UnsharedKeys,
	)
	return m
}

func (m *Metrics) observeRequest(pattern string, status int, seconds float64) {
	if pattern == "" {
		pattern = "(unknown)"
	}
	m.Requests.WithLabelValues(pattern, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(pattern).Observe(seconds)
}

func (m *Metrics) observeAppError(stage, code string) {
	stage = strings.TrimSpace(stage)
	code = strings.TrimSpace(code)
	if stage == "" {
		stage = "(unknown)"
	}
	if code == "" {
		code = "(unknown)"
	}
	m.AppErrors.WithLabelValues(stage, code).Inc()
}

func (m *Metrics) observeMerge(st merge.Stats) {
	m.Merges.Inc()
	m.MergeInputs.Observe(float64(st.Inputs))
	m.SharedKeys.Add(float64(st.SharedKeys))
	m.UnsharedKeys.Add(float64(st.UnsharedKeys))
}

func metricsHandler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
