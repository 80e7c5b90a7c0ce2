package compute

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// metricValue returns the counter or gauge value of the series of name whose labels match.
func metricValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			matched := 0
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] == lp.GetValue() {
					matched++
				}
			}
			if matched != len(labels) {
				continue
			}
			if m.GetCounter() != nil {
				return m.GetCounter().GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}
	return 0
}

func TestMetrics_RecordsExecutions(t *testing.T) {
	reg := prometheus.NewRegistry()
	ctx := newFakeContext()
	engine := NewComputeEngine(ctx, WithMetrics(NewMetrics(reg)))

	texture := &fakeTexture{width: 4, height: 4}
	require.NoError(t, engine.Execute(NewComputeCommand(
		WithFragmentShaderSource(invertFS),
		WithOutputTexture(texture),
	)))
	assert.ErrorIs(t, engine.Execute(NewComputeCommand()), ErrMissingShader)

	ctx.drawErr = errors.New("device lost")
	assert.Error(t, engine.Execute(NewTransformFeedbackCommand(WithShaderProgram(&fakeProgram{}))))

	assert.Equal(t, 1.0, metricValue(t, reg, "compute_executions_total", map[string]string{"kind": "texture", "result": "ok"}))
	assert.Equal(t, 1.0, metricValue(t, reg, "compute_executions_total", map[string]string{"kind": "texture", "result": "invalid"}))
	assert.Equal(t, 1.0, metricValue(t, reg, "compute_executions_total", map[string]string{"kind": "transform_feedback", "result": "error"}))

	assert.Equal(t, 1.0, metricValue(t, reg, "compute_resources_total", map[string]string{"resource": "framebuffer", "event": "created"}))
	assert.Equal(t, 1.0, metricValue(t, reg, "compute_resources_total", map[string]string{"resource": "framebuffer", "event": "destroyed"}))
	assert.Equal(t, 1.0, metricValue(t, reg, "compute_resources_total", map[string]string{"resource": "shader_program", "event": "destroyed"}))
	assert.Zero(t, metricValue(t, reg, "compute_executions_in_flight", nil))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.executionStarted()
		m.executionFinished(CommandKindTexture, resultOK, 0)
		m.resource(resourceFramebuffer, eventCreated)
	})
}
