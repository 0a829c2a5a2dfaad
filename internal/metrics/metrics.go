package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler owns the analysis metrics and the registry they live in.
type Handler struct {
	registry *prometheus.Registry

	RunsTotal   *prometheus.CounterVec
	LinesTotal  *prometheus.CounterVec
	BytesTotal  *prometheus.CounterVec
	RunDuration *prometheus.HistogramVec
}

// New creates a Handler with a private registry, so several handlers can
// coexist in one process (tests, embedded use).
func New() *Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Handler{
		registry: reg,
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "loupe_runs_total",
			Help: "The total number of analysis runs by outcome",
		}, []string{"format", "outcome"}),
		LinesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "loupe_lines_total",
			Help: "The total number of lines read, by parse result",
		}, []string{"format", "result"}),
		BytesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "loupe_bytes_read_total",
			Help: "The total number of input bytes consumed",
		}, []string{"format"}),
		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "loupe_run_duration_seconds",
			Help:    "Wall-clock duration of analysis runs",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"format"}),
	}
}

// ObserveRun records the outcome of one analysis run.
func (h *Handler) ObserveRun(format, outcome string, duration time.Duration, parsed, dropped, bytes int64) {
	if h == nil {
		return
	}
	h.RunsTotal.WithLabelValues(format, outcome).Inc()
	h.LinesTotal.WithLabelValues(format, "parsed").Add(float64(parsed))
	h.LinesTotal.WithLabelValues(format, "dropped").Add(float64(dropped))
	h.BytesTotal.WithLabelValues(format).Add(float64(bytes))
	h.RunDuration.WithLabelValues(format).Observe(duration.Seconds())
}

// Registry exposes the underlying registry, mainly for tests.
func (h *Handler) Registry() *prometheus.Registry { return h.registry }

// HTTPHandler serves the registry in the Prometheus exposition format.
func (h *Handler) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{})
}
