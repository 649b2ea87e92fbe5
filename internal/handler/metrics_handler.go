package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/routine-builder/internal/service"
	"github.com/noah-isme/routine-builder/pkg/response"
)

const readinessTimeout = 2 * time.Second

type readinessCheck struct {
	name string
	ping func(ctx context.Context) error
}

type queueGauge struct {
	name  string
	depth func() int
}

// MetricsHandler exposes observability endpoints.
type MetricsHandler struct {
	metrics *service.MetricsService
	checks  []readinessCheck
	queues  []queueGauge
}

// NewMetricsHandler constructs a metrics handler.
func NewMetricsHandler(metrics *service.MetricsService) *MetricsHandler {
	return &MetricsHandler{metrics: metrics}
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Summary godoc
// @Summary Request, cache and scheduling counters
// @Tags Metrics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /metrics/summary [get]
func (h *MetricsHandler) Summary(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.metrics.Snapshot(), nil)
}

// AddReadinessCheck registers a dependency that Ready pings.
func (h *MetricsHandler) AddReadinessCheck(name string, ping func(ctx context.Context) error) {
	h.checks = append(h.checks, readinessCheck{name: name, ping: ping})
}

// AddQueue reports the depth of a background queue on Ready.
func (h *MetricsHandler) AddQueue(name string, depth func() int) {
	h.queues = append(h.queues, queueGauge{name: name, depth: depth})
}

// Ready pings every registered dependency and answers 503 "degraded" when one fails.
func (h *MetricsHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	status := http.StatusOK
	checks := gin.H{}
	for _, check := range h.checks {
		checks[check.name] = "ok"
		if err := check.ping(ctx); err != nil {
			checks[check.name] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}
	queues := gin.H{}
	for _, queue := range h.queues {
		queues[queue.name] = queue.depth()
	}

	state := "ready"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{"status": state, "checks": checks, "queues": queues})
}

// Health responds with a generic OK payload for liveness checks.
func (h *MetricsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
