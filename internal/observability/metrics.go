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

// Metrics stores Prometheus collectors for the HTTP surface and the
// batch/product flows.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal        *prometheus.CounterVec
	httpRequestDuration      *prometheus.HistogramVec
	batchesReplacedTotal     prometheus.Counter
	productsCreatedTotal     prometheus.Counter
	productsSkippedTotal     prometheus.Counter
	productsAggregatedTotal  prometheus.Counter
	aggregationRejectedTotal *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "aggregation_engine",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "aggregation_engine",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		batchesReplacedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "aggregation_engine",
				Name:      "batches_replaced_total",
				Help:      "Total number of batches written through shift plan loads.",
			},
		),
		productsCreatedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "aggregation_engine",
				Name:      "products_created_total",
				Help:      "Total number of products persisted from product list uploads.",
			},
		),
		productsSkippedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "aggregation_engine",
				Name:      "products_skipped_total",
				Help:      "Total number of uploaded products dropped because no batch matched.",
			},
		),
		productsAggregatedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "aggregation_engine",
				Name:      "products_aggregated_total",
				Help:      "Total number of successful one-time aggregation scans.",
			},
		),
		aggregationRejectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "aggregation_engine",
				Name:      "aggregation_rejected_total",
				Help:      "Total number of rejected aggregation scans by reason.",
			},
			[]string{"reason"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.batchesReplacedTotal,
		m.productsCreatedTotal,
		m.productsSkippedTotal,
		m.productsAggregatedTotal,
		m.aggregationRejectedTotal,
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

func (m *Metrics) AddBatchesReplaced(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.batchesReplacedTotal.Add(float64(count))
}

func (m *Metrics) AddProductsCreated(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.productsCreatedTotal.Add(float64(count))
}

func (m *Metrics) AddProductsSkipped(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.productsSkippedTotal.Add(float64(count))
}

func (m *Metrics) IncProductAggregated() {
	if m == nil {
		return
	}
	m.productsAggregatedTotal.Inc()
}

func (m *Metrics) IncAggregationRejected(reason string) {
	if m == nil {
		return
	}
	reasonLabel := strings.TrimSpace(strings.ToLower(reason))
	if reasonLabel == "" {
		reasonLabel = "unknown"
	}
	m.aggregationRejectedTotal.WithLabelValues(reasonLabel).Inc()
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
