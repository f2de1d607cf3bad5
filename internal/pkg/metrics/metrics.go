package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vehiclenav",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vehiclenav",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	// Tile metrics
	TileFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vehiclenav",
		Subsystem: "tiles",
		Name:      "fetches_total",
		Help:      "Tile fetches by outcome",
	}, []string{"outcome"})

	TileFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "vehiclenav",
		Subsystem: "tiles",
		Name:      "fetch_duration_seconds",
		Help:      "Duration of a single tile fetch",
		Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	CompositeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "vehiclenav",
		Subsystem: "tiles",
		Name:      "composite_duration_seconds",
		Help:      "Duration of a full fetch and composite cycle",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	// Worker metrics
	WorkerBatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vehiclenav",
		Subsystem: "worker",
		Name:      "batches_total",
		Help:      "Request batches handled per worker",
	}, []string{"worker"})

	WorkerBatchSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vehiclenav",
		Subsystem: "worker",
		Name:      "batch_size",
		Help:      "Number of requests drained into one batch",
		Buckets:   []float64{1, 2, 3, 4, 8, 16, 32},
	}, []string{"worker"})

	WorkerShutdowns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vehiclenav",
		Subsystem: "worker",
		Name:      "shutdowns_total",
		Help:      "Worker shutdowns by reason",
	}, []string{"worker", "reason"})

	// Route metrics
	RoutePoints = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "vehiclenav",
		Subsystem: "route",
		Name:      "points",
		Help:      "Coordinates currently stored on the route",
	})

	PositionsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vehiclenav",
		Subsystem: "route",
		Name:      "positions_received_total",
		Help:      "GPS fixes received from the position feed",
	})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "vehiclenav",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}
