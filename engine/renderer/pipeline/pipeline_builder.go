package pipeline

import (
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// PipelineBuilderOption is a functional option used to configure a Pipeline during construction.
type PipelineBuilderOption func(*pipeline)

// WithVertexModule sets the vertex module for this pipeline.
//
// Parameters:
//   - m: the reflected vertex module
//
// Returns:
//   - PipelineBuilderOption: a function that sets the vertex module for this pipeline
func WithVertexModule(m shader.Module) PipelineBuilderOption {
	return func(p *pipeline) {
		p.vertexModule = m
	}
}

// WithFragmentModule sets the fragment module for this pipeline.
//
// Parameters:
//   - m: the reflected fragment module
//
// Returns:
//   - PipelineBuilderOption: a function that sets the fragment module for this pipeline
func WithFragmentModule(m shader.Module) PipelineBuilderOption {
	return func(p *pipeline) {
		p.fragmentModule = m
	}
}

// WithComputeModule sets the compute module for this pipeline.
//
// Parameters:
//   - m: the reflected compute module
//
// Returns:
//   - PipelineBuilderOption: a function that sets the compute module for this pipeline
func WithComputeModule(m shader.Module) PipelineBuilderOption {
	return func(p *pipeline) {
		p.computeModule = m
	}
}

// WithTargetFormat sets the color target format of a render pipeline.
//
// Parameters:
//   - format: the texture format of the framebuffer the pipeline draws into
//
// Returns:
//   - PipelineBuilderOption: a function that sets the target format for this pipeline
func WithTargetFormat(format wgpu.TextureFormat) PipelineBuilderOption {
	return func(p *pipeline) {
		p.targetFormat = format
	}
}

// WithBlendEnabled sets whether blending is enabled for this pipeline.
//
// Parameters:
//   - enabled: a boolean indicating whether blending should be enabled
//
// Returns:
//   - PipelineBuilderOption: a function that sets the blend enabled state for this pipeline
func WithBlendEnabled(enabled bool) PipelineBuilderOption {
	return func(p *pipeline) {
		p.blendEnabled = enabled
	}
}

// WithCullMode sets the cull mode for this pipeline.
func WithCullMode(mode wgpu.CullMode) PipelineBuilderOption {
	return func(p *pipeline) {
		p.cullMode = mode
	}
}

// WithTopology sets the primitive topology for this pipeline.
//
// Parameters:
//   - topology: the primitive topology (e.g., wgpu.PrimitiveTopologyPointList, wgpu.PrimitiveTopologyTriangleList)
//
// Returns:
//   - PipelineBuilderOption: a function that sets the primitive topology for this pipeline
func WithTopology(topology wgpu.PrimitiveTopology) PipelineBuilderOption {
	return func(p *pipeline) {
		p.topology = topology
	}
}

// WithFrontFace sets the front face winding order for this pipeline.
func WithFrontFace(frontFace wgpu.FrontFace) PipelineBuilderOption {
	return func(p *pipeline) {
		p.frontFace = frontFace
	}
}

// WithWriteMask sets the color write mask for this pipeline.
func WithWriteMask(writeMask wgpu.ColorWriteMask) PipelineBuilderOption {
	return func(p *pipeline) {
		p.writeMask = writeMask
	}
}

// WithBlendState sets the blend state used when blending is enabled.
//
// Parameters:
//   - blendState: the blend state to use for this pipeline
//
// Returns:
//   - PipelineBuilderOption: a function that sets the blend state for this pipeline
func WithBlendState(blendState *wgpu.BlendState) PipelineBuilderOption {
	return func(p *pipeline) {
		p.blendState = blendState
	}
}
