package compute

import (
	"github.com/Carmen-Shannon/oxy-compute/engine/profiler"
	"go.uber.org/zap"
)

// ComputeEngineBuilderOption is a functional option for configuring a ComputeEngine during construction.
type ComputeEngineBuilderOption func(*computeEngine)

// WithLogger sets the logger the engine writes to. The engine logs under the "compute" name.
// A nil logger is ignored.
//
// Parameters:
//   - logger: the zap logger
//
// Returns:
//   - ComputeEngineBuilderOption: a function that applies the logger option to an engine
func WithLogger(logger *zap.Logger) ComputeEngineBuilderOption {
	return func(e *computeEngine) {
		if logger != nil {
			e.logger = logger.Named("compute")
		}
	}
}

// WithMetrics sets the collectors executions are recorded into.
//
// Parameters:
//   - m: the collectors created by NewMetrics
//
// Returns:
//   - ComputeEngineBuilderOption: a function that applies the metrics option to an engine
func WithMetrics(m *Metrics) ComputeEngineBuilderOption {
	return func(e *computeEngine) {
		e.metrics = m
	}
}

// WithProfiler sets a profiler ticked once per successful execution.
//
// Parameters:
//   - p: the profiler
//
// Returns:
//   - ComputeEngineBuilderOption: a function that applies the profiler option to an engine
func WithProfiler(p *profiler.Profiler) ComputeEngineBuilderOption {
	return func(e *computeEngine) {
		e.profiler = p
	}
}
