package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smart-student/edu-import-api/internal/service"
	"github.com/smart-student/edu-import-api/pkg/jobs"
)

// MetricsHandler exposes observability endpoints.
type MetricsHandler struct {
	metrics *service.MetricsService
	queue   *jobs.Queue
}

// NewMetricsHandler constructs a metrics handler. The queue may be nil when
// async runs are disabled.
func NewMetricsHandler(metrics *service.MetricsService, queue *jobs.Queue) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, queue: queue}
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Health responds with a generic OK payload for liveness usage.
func (h *MetricsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready reports readiness, including background queue depth when one runs.
func (h *MetricsHandler) Ready(c *gin.Context) {
	payload := gin.H{"status": "ready"}
	if h.queue != nil {
		payload["queue_depth"] = h.queue.Depth()
	}
	c.JSON(http.StatusOK, payload)
}
