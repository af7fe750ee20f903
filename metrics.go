package sanitypress

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eringen/sanitypress/sanity"
)

const metricsSubsystem = "sanitypress"

// Metrics owns the registry served on /metrics. Each App gets its own so that
// several Apps (tests) never collide on global registration.
type Metrics struct {
	Registry *prometheus.Registry

	fetches       *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	comments      *prometheus.CounterVec
}

// NewMetrics registers the site collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: metricsSubsystem,
			Name:      "content_fetches_total",
			Help:      "Content API queries by outcome and HTTP status.",
		}, []string{"outcome", "code"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Subsystem: metricsSubsystem,
			Name:      "content_fetch_duration_seconds",
			Help:      "Content API query latency.",
			Buckets:   []float64{.025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"outcome"}),
		comments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: metricsSubsystem,
			Name:      "comments_submitted_total",
			Help:      "Comment submissions by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		m.fetches,
		m.fetchDuration,
		m.comments,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveFetch records one content API call. It is installed as the content
// client's Observe hook.
func (m *Metrics) ObserveFetch(s sanity.Stats) {
	outcome := "ok"
	if s.Err != nil {
		outcome = sanity.KindOf(s.Err).String()
	}
	code := "none"
	if s.StatusCode > 0 {
		code = strconv.Itoa(s.StatusCode)
	}
	m.fetches.WithLabelValues(outcome, code).Inc()
	m.fetchDuration.WithLabelValues(outcome).Observe(s.Duration.Seconds())
}

// CommentSubmitted counts a comment submission; result is one of accepted,
// invalid, closed or limited.
func (m *Metrics) CommentSubmitted(result string) {
	m.comments.WithLabelValues(result).Inc()
}

// Middleware returns the echo request metrics middleware bound to the
// registry.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  metricsSubsystem,
		Registerer: m.Registry,
		Skipper: func(c echo.Context) bool {
			p := c.Request().URL.Path
			return p == "/metrics" || p == "/healthz"
		},
	})
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
