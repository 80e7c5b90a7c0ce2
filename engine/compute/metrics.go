package compute

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultOK      = "ok"
	resultInvalid = "invalid"
	resultError   = "error"

	resourceFramebuffer   = "framebuffer"
	resourceShaderProgram = "shader_program"

	eventCreated   = "created"
	eventDestroyed = "destroyed"
	eventFailed    = "destroy_failed"
)

// Metrics holds the Prometheus collectors a ComputeEngine records into.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	executions *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	resources  *prometheus.CounterVec
	inFlight   prometheus.Gauge
}

// NewMetrics creates the compute collectors and registers them with reg.
// Registering twice on the same registerer panics, as promauto does.
//
// Parameters:
//   - reg: the registerer, e.g. prometheus.DefaultRegisterer or a test registry
//
// Returns:
//   - *Metrics: the registered collectors
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		executions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "compute_executions_total",
				Help: "Compute command executions by command kind and result",
			},
			[]string{"kind", "result"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "compute_execution_duration_seconds",
				Help:    "Compute command execution time in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		resources: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "compute_resources_total",
				Help: "GPU resources created and destroyed by the compute engine",
			},
			[]string{"resource", "event"},
		),
		inFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "compute_executions_in_flight",
				Help: "Compute command executions currently running",
			},
		),
	}
}

func (m *Metrics) executionStarted() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

func (m *Metrics) executionFinished(kind CommandKind, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.inFlight.Dec()
	m.executions.WithLabelValues(kind.String(), result).Inc()
	if result == resultOK {
		m.duration.WithLabelValues(kind.String()).Observe(elapsed.Seconds())
	}
}

func (m *Metrics) resource(resource, event string) {
	if m == nil {
		return
	}
	m.resources.WithLabelValues(resource, event).Inc()
}
