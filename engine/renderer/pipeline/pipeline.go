package pipeline

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// PipelineType identifies whether a pipeline is a compute pipeline or a render pipeline.
type PipelineType int

const (
	// PipelineTypeCompute indicates a compute pipeline with a single compute entry point.
	PipelineTypeCompute PipelineType = iota

	// PipelineTypeRender indicates a render pipeline with vertex and fragment entry points.
	PipelineTypeRender
)

// pipeline is the implementation of the Pipeline interface.
// It holds the WebGPU pipeline object built for one variant of a shader program.
type pipeline struct {
	// pipelineType indicates the type of pipeline this is; compute or render
	pipelineType PipelineType
	// pipelineKey is the unique identifier for this pipeline, see Key
	pipelineKey string

	// the reflected modules the pipeline is built from; render pipelines need vertex and fragment, compute pipelines need compute.

	vertexModule, fragmentModule, computeModule shader.Module

	renderPipeline  *wgpu.RenderPipeline
	computePipeline *wgpu.ComputePipeline

	// bindGroupLayouts are indexed by group and released with the pipeline
	bindGroupLayouts []*wgpu.BindGroupLayout

	// The following properties only apply to render pipelines.

	targetFormat wgpu.TextureFormat
	blendEnabled bool
	cullMode     wgpu.CullMode
	topology     wgpu.PrimitiveTopology
	frontFace    wgpu.FrontFace
	writeMask    wgpu.ColorWriteMask
	blendState   *wgpu.BlendState
}

// Pipeline describes a GPU pipeline variant of a shader program. A program draws into targets of
// different formats with different topologies, and each combination needs its own WebGPU pipeline;
// Pipeline carries the configuration of one combination and, once created by the graphics context,
// the WebGPU objects backing it.
type Pipeline interface {
	// Type returns the type of the pipeline
	//
	// Returns:
	//   - PipelineType: the type of the pipeline (render or compute)
	Type() PipelineType

	// PipelineKey returns the unique key associated with this pipeline, used for caching and lookups.
	//
	// Returns:
	//   - string: the unique key for this pipeline
	PipelineKey() string

	// Module retrieves the reflected module for the given stage, nil if not set.
	//
	// Parameters:
	//   - stage: the stage of the module to retrieve
	//
	// Returns:
	//   - shader.Module: the module, or nil if not set
	Module(stage shader.Stage) shader.Module

	// Pipeline returns the underlying pipeline object, either *wgpu.RenderPipeline or *wgpu.ComputePipeline.
	// The caller is responsible for type asserting the returned value.
	Pipeline() any

	// Created reports whether the underlying WebGPU pipeline has been created.
	Created() bool

	// BindGroupLayout returns the layout of the given group, nil if the pipeline declares no such group.
	BindGroupLayout(group int) *wgpu.BindGroupLayout

	// BindGroupLayouts returns the layouts indexed by group.
	BindGroupLayouts() []*wgpu.BindGroupLayout

	// TargetFormat returns the color target format of a render pipeline.
	TargetFormat() wgpu.TextureFormat

	// BlendEnabled returns whether blending is enabled for this pipeline.
	BlendEnabled() bool

	// CullMode returns the cull mode configured for this pipeline.
	CullMode() wgpu.CullMode

	// Topology returns the primitive topology configured for this pipeline.
	Topology() wgpu.PrimitiveTopology

	// FrontFace returns the front face winding order configured for this pipeline.
	FrontFace() wgpu.FrontFace

	// WriteMask returns the color write mask configured for this pipeline.
	WriteMask() wgpu.ColorWriteMask

	// BlendState returns the blend state configured for this pipeline.
	BlendState() *wgpu.BlendState

	// ColorTargetState returns the color target of a render pipeline, with the blend state
	// attached only when blending is enabled.
	//
	// Returns:
	//   - wgpu.ColorTargetState: the single color target of the pipeline
	ColorTargetState() wgpu.ColorTargetState

	// SetRenderPipeline sets the render pipeline and the bind group layouts it was created with.
	//
	// Parameters:
	//   - p: the WebGPU render pipeline
	//   - layouts: the bind group layouts indexed by group
	SetRenderPipeline(p *wgpu.RenderPipeline, layouts []*wgpu.BindGroupLayout)

	// SetComputePipeline sets the compute pipeline and the bind group layouts it was created with.
	//
	// Parameters:
	//   - p: the WebGPU compute pipeline
	//   - layouts: the bind group layouts indexed by group
	SetComputePipeline(p *wgpu.ComputePipeline, layouts []*wgpu.BindGroupLayout)

	// Release releases the WebGPU pipeline and its bind group layouts. The pipeline can be created again afterwards.
	Release()
}

var _ Pipeline = &pipeline{}

// NewPipeline is the entry point to create a new Pipeline interface. A PipelineType must be specified and provided upon creation.
//
// Parameters:
//   - pipelineKey: the unique key for this pipeline
//   - pipelineType: the type of pipeline to create (render or compute)
//   - opts: a variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - Pipeline: a new Pipeline instance with the specified type and configuration
func NewPipeline(pipelineKey string, pipelineType PipelineType, opts ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		pipelineKey:  pipelineKey,
		pipelineType: pipelineType,
		targetFormat: wgpu.TextureFormatRGBA8Unorm,
		blendEnabled: false,
		cullMode:     wgpu.CullModeNone,
		topology:     wgpu.PrimitiveTopologyTriangleList,
		frontFace:    wgpu.FrontFaceCCW,
		writeMask:    wgpu.ColorWriteMaskAll,
		blendState: &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorSrcAlpha,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Key builds the cache key of a pipeline variant.
//
// Parameters:
//   - programKey: the key of the owning shader program
//   - pipelineType: render or compute
//   - format: the color target format, ignored for compute pipelines
//   - topology: the primitive topology, ignored for compute pipelines
//
// Returns:
//   - string: the variant key
func Key(programKey string, pipelineType PipelineType, format wgpu.TextureFormat, topology wgpu.PrimitiveTopology) string {
	if pipelineType == PipelineTypeCompute {
		return programKey + "/compute"
	}
	return fmt.Sprintf("%s/render/%d/%d", programKey, format, topology)
}

func (p *pipeline) Type() PipelineType {
	return p.pipelineType
}

func (p *pipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *pipeline) Pipeline() any {
	switch p.pipelineType {
	case PipelineTypeRender:
		return p.renderPipeline
	case PipelineTypeCompute:
		return p.computePipeline
	default:
		return nil
	}
}

func (p *pipeline) Created() bool {
	return p.renderPipeline != nil || p.computePipeline != nil
}

func (p *pipeline) BindGroupLayout(group int) *wgpu.BindGroupLayout {
	if group < 0 || group >= len(p.bindGroupLayouts) {
		return nil
	}
	return p.bindGroupLayouts[group]
}

func (p *pipeline) BindGroupLayouts() []*wgpu.BindGroupLayout {
	return p.bindGroupLayouts
}

func (p *pipeline) TargetFormat() wgpu.TextureFormat {
	return p.targetFormat
}

func (p *pipeline) BlendEnabled() bool {
	return p.blendEnabled
}

func (p *pipeline) CullMode() wgpu.CullMode {
	return p.cullMode
}

func (p *pipeline) Topology() wgpu.PrimitiveTopology {
	return p.topology
}

func (p *pipeline) FrontFace() wgpu.FrontFace {
	return p.frontFace
}

func (p *pipeline) WriteMask() wgpu.ColorWriteMask {
	return p.writeMask
}

func (p *pipeline) BlendState() *wgpu.BlendState {
	return p.blendState
}

func (p *pipeline) ColorTargetState() wgpu.ColorTargetState {
	state := wgpu.ColorTargetState{
		Format:    p.targetFormat,
		WriteMask: p.writeMask,
	}
	if p.blendEnabled {
		state.Blend = p.blendState
	}
	return state
}

func (p *pipeline) Module(stage shader.Stage) shader.Module {
	switch stage {
	case shader.StageVertex:
		return p.vertexModule
	case shader.StageFragment:
		return p.fragmentModule
	case shader.StageCompute:
		return p.computeModule
	default:
		return nil
	}
}

func (p *pipeline) SetRenderPipeline(rp *wgpu.RenderPipeline, layouts []*wgpu.BindGroupLayout) {
	p.renderPipeline = rp
	p.bindGroupLayouts = layouts
}

func (p *pipeline) SetComputePipeline(cp *wgpu.ComputePipeline, layouts []*wgpu.BindGroupLayout) {
	p.computePipeline = cp
	p.bindGroupLayouts = layouts
}

func (p *pipeline) Release() {
	if p.renderPipeline != nil {
		p.renderPipeline.Release()
		p.renderPipeline = nil
	}
	if p.computePipeline != nil {
		p.computePipeline.Release()
		p.computePipeline = nil
	}
	for i, l := range p.bindGroupLayouts {
		if l != nil {
			l.Release()
			p.bindGroupLayouts[i] = nil
		}
	}
	p.bindGroupLayouts = nil
}
