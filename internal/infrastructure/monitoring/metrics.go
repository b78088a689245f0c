package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
//
// Every Record/Set method is safe on a nil *Metrics so components can be
// built without instrumentation in tests.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Runtime lifecycle metrics
	LoadsTotal     *prometheus.CounterVec
	EvalDuration   prometheus.Histogram
	SandboxState   *prometheus.GaugeVec
	DestroysTotal  prometheus.Counter
	ActionsTotal   *prometheus.CounterVec
	ActionDuration prometheus.Histogram

	// Bridge metrics
	BridgeCalls      *prometheus.CounterVec
	BridgeRejections *prometheus.CounterVec
	FetchesInFlight  prometheus.Gauge

	// Event channel metrics
	EventsEmitted *prometheus.CounterVec
	EventsDropped *prometheus.CounterVec

	// Service metrics
	ServiceCalls    *prometheus.CounterVec
	ServiceDuration *prometheus.HistogramVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec
}

// NewMetrics creates a metrics collector registered with reg.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scriptbridge_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scriptbridge_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		LoadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scriptbridge_userapi_loads_total",
				Help: "Plugin loads by result",
			},
			[]string{"result"},
		),
		EvalDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scriptbridge_userapi_eval_duration_seconds",
				Help:    "Plugin source evaluation duration in seconds",
				Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
			},
		),
		SandboxState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "scriptbridge_userapi_sandbox_state",
				Help: "1 for the current sandbox state, 0 otherwise",
			},
			[]string{"state"},
		),
		DestroysTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "scriptbridge_userapi_destroys_total",
				Help: "Sandbox teardowns",
			},
		),
		ActionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scriptbridge_userapi_actions_total",
				Help: "Host actions dispatched into the sandbox by result",
			},
			[]string{"result"},
		),
		ActionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scriptbridge_userapi_action_duration_seconds",
				Help:    "Action handler duration in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
			},
		),

		BridgeCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scriptbridge_bridge_calls_total",
				Help: "Capability bridge calls by action and result",
			},
			[]string{"action", "result"},
		),
		BridgeRejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scriptbridge_bridge_rejections_total",
				Help: "Capability bridge calls refused before dispatch",
			},
			[]string{"reason"},
		),
		FetchesInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "scriptbridge_bridge_fetches_in_flight",
				Help: "HTTP requests issued for plugins and not yet completed",
			},
		),

		EventsEmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scriptbridge_events_emitted_total",
				Help: "Events accepted by the event channel",
			},
			[]string{"name"},
		),
		EventsDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scriptbridge_events_dropped_total",
				Help: "Events discarded before delivery, by reason",
			},
			[]string{"reason"},
		),

		ServiceCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scriptbridge_service_calls_total",
				Help: "Total number of host service calls",
			},
			[]string{"service", "tool", "status"},
		),
		ServiceDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scriptbridge_service_duration_seconds",
				Help:    "Host service call duration in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"service", "tool"},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "scriptbridge_ws_connections",
				Help: "Open event stream connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scriptbridge_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction"},
		),
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordLoad records a plugin load attempt
func (m *Metrics) RecordLoad(result string, eval time.Duration) {
	if m == nil {
		return
	}
	m.LoadsTotal.WithLabelValues(result).Inc()
	m.EvalDuration.Observe(eval.Seconds())
}

// SetSandboxState marks state as the current sandbox state
func (m *Metrics) SetSandboxState(state string, all []string) {
	if m == nil {
		return
	}
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		m.SandboxState.WithLabelValues(s).Set(v)
	}
}

// IncDestroys counts a sandbox teardown
func (m *Metrics) IncDestroys() {
	if m == nil {
		return
	}
	m.DestroysTotal.Inc()
}

// RecordAction records a host action dispatch
func (m *Metrics) RecordAction(result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ActionsTotal.WithLabelValues(result).Inc()
	m.ActionDuration.Observe(duration.Seconds())
}

// RecordBridgeCall records an authorized bridge call
func (m *Metrics) RecordBridgeCall(action, result string) {
	if m == nil {
		return
	}
	m.BridgeCalls.WithLabelValues(action, result).Inc()
}

// RecordBridgeRejection records a bridge call refused before dispatch
func (m *Metrics) RecordBridgeRejection(reason string) {
	if m == nil {
		return
	}
	m.BridgeRejections.WithLabelValues(reason).Inc()
}

// AddFetchesInFlight adjusts the in-flight fetch gauge
func (m *Metrics) AddFetchesInFlight(delta float64) {
	if m == nil {
		return
	}
	m.FetchesInFlight.Add(delta)
}

// RecordEvent counts an accepted event
func (m *Metrics) RecordEvent(name string) {
	if m == nil {
		return
	}
	m.EventsEmitted.WithLabelValues(name).Inc()
}

// RecordEventsDropped counts events discarded before delivery
func (m *Metrics) RecordEventsDropped(reason string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.EventsDropped.WithLabelValues(reason).Add(float64(n))
}

// RecordServiceCall records a host service call
func (m *Metrics) RecordServiceCall(service, tool, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ServiceCalls.WithLabelValues(service, tool, status).Inc()
	m.ServiceDuration.WithLabelValues(service, tool).Observe(duration.Seconds())
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
}
