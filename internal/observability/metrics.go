package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used by API and delivery flows.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal      *prometheus.CounterVec
	httpRequestDuration    *prometheus.HistogramVec
	deliveriesTotal        *prometheus.CounterVec
	deliveryFallbacksTotal *prometheus.CounterVec
	deliverySendDuration   *prometheus.HistogramVec
	broadcastInflight      prometheus.Gauge
	broadcastRetriesTotal  *prometheus.CounterVec
	verificationsTotal     *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "delivery_router",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "delivery_router",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		deliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "delivery_router",
				Name:      "deliveries_total",
				Help:      "Total number of delivery results by method (confirmed sends, direct links, fallbacks).",
			},
			[]string{"method"},
		),
		deliveryFallbacksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "delivery_router",
				Name:      "delivery_fallbacks_total",
				Help:      "Total number of deliveries degraded to a fallback link, by classified code.",
			},
			[]string{"code"},
		),
		deliverySendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "delivery_router",
				Name:      "delivery_send_duration_seconds",
				Help:      "Provider send duration in seconds grouped by provider.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"provider"},
		),
		broadcastInflight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "delivery_router",
				Name:      "broadcast_inflight",
				Help:      "Current number of in-flight broadcast deliveries.",
			},
		),
		broadcastRetriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "delivery_router",
				Name:      "broadcast_retries_total",
				Help:      "Total number of broadcast delivery retries on transient provider errors.",
			},
			[]string{"provider"},
		),
		verificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "delivery_router",
				Name:      "verifications_total",
				Help:      "Total number of connectivity verifications by resulting state.",
			},
			[]string{"state"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.deliveriesTotal,
		m.deliveryFallbacksTotal,
		m.deliverySendDuration,
		m.broadcastInflight,
		m.broadcastRetriesTotal,
		m.verificationsTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncDelivery(method string) {
	if m == nil {
		return
	}
	m.deliveriesTotal.WithLabelValues(normalizeLabel(method)).Inc()
}

func (m *Metrics) IncDeliveryFallback(code string) {
	if m == nil {
		return
	}
	codeLabel := strings.TrimSpace(strings.ToLower(code))
	if codeLabel == "" {
		codeLabel = "generic"
	}
	m.deliveryFallbacksTotal.WithLabelValues(codeLabel).Inc()
}

func (m *Metrics) ObserveSendDuration(providerName string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.deliverySendDuration.WithLabelValues(normalizeLabel(providerName)).Observe(seconds)
}

func (m *Metrics) IncBroadcastInFlight() {
	if m == nil {
		return
	}
	m.broadcastInflight.Inc()
}

func (m *Metrics) DecBroadcastInFlight() {
	if m == nil {
		return
	}
	m.broadcastInflight.Dec()
}

func (m *Metrics) IncBroadcastRetry(providerName string) {
	if m == nil {
		return
	}
	m.broadcastRetriesTotal.WithLabelValues(normalizeLabel(providerName)).Inc()
}

func (m *Metrics) IncVerification(state string) {
	if m == nil {
		return
	}
	m.verificationsTotal.WithLabelValues(normalizeLabel(state)).Inc()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeLabel(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
