package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cms"

// Metrics holds the Prometheus collectors for the admin API. A nil *Metrics records nothing.
type Metrics struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	permissionDenied *prometheus.CounterVec
	permissionCache  *prometheus.CounterVec
	menuSaves        *prometheus.CounterVec
	scopeResolutions *prometheus.CounterVec
	expansions       *prometheus.CounterVec
	sessionsPurged   prometheus.Counter
	loginRateLimited prometheus.Counter
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		permissionDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "permission_denied_total",
			Help:      "Requests rejected by the permission middleware.",
		}, []string{"permission"}),
		permissionCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "permission_cache_lookups_total",
			Help:      "Role permission cache lookups by result (hit, miss, error).",
		}, []string{"result"}),
		menuSaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "menu_saves_total",
			Help:      "Menu tree saves by outcome.",
		}, []string{"outcome"}),
		scopeResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "affiliate_scope_resolutions_total",
			Help:      "Affiliate scopes resolved by mode (single, global) or failure.",
		}, []string{"mode"}),
		expansions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "team_expansions_total",
			Help:      "Team subtree expansions by outcome.",
		}, []string{"outcome"}),
		sessionsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_purged_total",
			Help:      "Expired auth sessions removed by the purge task.",
		}),
		loginRateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_rate_limited_total",
			Help:      "Login attempts rejected by the per-IP limiter.",
		}),
	}
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestsTotal,
		m.requestDuration,
		m.permissionDenied,
		m.permissionCache,
		m.menuSaves,
		m.scopeResolutions,
		m.expansions,
		m.sessionsPurged,
		m.loginRateLimited,
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request count and latency keyed by the matched echo route.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else if status < http.StatusBadRequest {
					status = http.StatusInternalServerError
				}
			}
			route := c.Path()
			if route == "" {
				route = "unknown"
			}
			m.requestsTotal.WithLabelValues(route, c.Request().Method, strconv.Itoa(status)).Inc()
			m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func (m *Metrics) PermissionDenied(permission string) {
	if m == nil {
		return
	}
	m.permissionDenied.WithLabelValues(permission).Inc()
}

func (m *Metrics) PermissionCacheLookup(result string) {
	if m == nil {
		return
	}
	m.permissionCache.WithLabelValues(result).Inc()
}

func (m *Metrics) MenuSaved(err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.menuSaves.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SessionsPurged(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.sessionsPurged.Add(float64(n))
}

func (m *Metrics) LoginRateLimited() {
	if m == nil {
		return
	}
	m.loginRateLimited.Inc()
}

func (m *Metrics) ScopeResolved(mode string) {
	if m == nil {
		return
	}
	m.scopeResolutions.WithLabelValues(mode).Inc()
}

func (m *Metrics) SubtreeExpanded(outcome string) {
	if m == nil {
		return
	}
	m.expansions.WithLabelValues(outcome).Inc()
}
