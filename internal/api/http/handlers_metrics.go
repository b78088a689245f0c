package http

import (
	"time"

	"github.com/GriffinCanCode/scriptbridge/internal/infrastructure/monitoring"
)

// HandlerMetrics records host API operations as service calls of the
// pseudo-service "host_api"
type HandlerMetrics struct {
	metrics *monitoring.Metrics
}

// NewHandlerMetrics creates a metrics wrapper
func NewHandlerMetrics(metrics *monitoring.Metrics) *HandlerMetrics {
	return &HandlerMetrics{metrics: metrics}
}

// Track starts timing operation. Call the returned func with the outcome.
func (hm *HandlerMetrics) Track(operation string) func(status string) {
	start := time.Now()
	return func(status string) {
		hm.metrics.RecordServiceCall("host_api", operation, status, time.Since(start))
	}
}
