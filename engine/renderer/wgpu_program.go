package renderer

import (
	"errors"
	"fmt"
	"maps"

	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

// compileProgram is the shader cache factory of the context. The vertex source must declare a
// @vertex or a @compute entry point; the fragment source, when given, a @fragment entry point.
func (c *wgpuContext) compileProgram(key string, desc ShaderProgramDescriptor) (*wgpuShaderProgram, error) {
	p := &wgpuShaderProgram{
		ctx:                c,
		key:                key,
		vertexSource:       desc.VertexShaderSource,
		fragmentSource:     desc.FragmentShaderSource,
		attributeLocations: maps.Clone(desc.AttributeLocations),
		pipelines:          make(map[string]pipeline.Pipeline),
	}

	vertexModule, vertexErr := shader.NewModule(key+" vertex", shader.StageVertex, desc.VertexShaderSource)
	computeModule, computeErr := shader.NewModule(key+" compute", shader.StageCompute, desc.VertexShaderSource)
	if vertexErr != nil && computeErr != nil {
		return nil, fmt.Errorf("vertex source: %w", errors.Join(vertexErr, computeErr))
	}
	p.vertexModule, p.computeModule = vertexModule, computeModule

	if desc.FragmentShaderSource != "" {
		fragmentModule, err := shader.NewModule(key+" fragment", shader.StageFragment, desc.FragmentShaderSource)
		if err != nil {
			return nil, fmt.Errorf("fragment source: %w", err)
		}
		p.fragmentModule = fragmentModule
	}

	var err error
	p.gpuVertex, err = c.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: key + " vertex",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: desc.VertexShaderSource,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("compile vertex source: %w", err)
	}
	if p.fragmentModule != nil {
		p.gpuFragment, err = c.device.CreateShaderModule(p.fragmentModule.Descriptor())
		if err != nil {
			p.gpuVertex.Release()
			return nil, fmt.Errorf("compile fragment source: %w", err)
		}
	}

	c.logger.Debug("shader program compiled",
		zap.String("key", key),
		zap.Bool("render", p.canRender()),
		zap.Bool("compute", p.computeModule != nil),
	)
	return p, nil
}

// renderPipeline returns the program's render pipeline for a target format and topology,
// creating it on first use.
func (c *wgpuContext) renderPipeline(program *wgpuShaderProgram, format wgpu.TextureFormat, topology wgpu.PrimitiveTopology, blend bool) (pipeline.Pipeline, error) {
	key := pipeline.Key(program.key, pipeline.PipelineTypeRender, format, topology)
	if blend {
		key += "/blend"
	}
	if p, ok := program.pipelines[key]; ok {
		return p, nil
	}

	p := pipeline.NewPipeline(key, pipeline.PipelineTypeRender,
		pipeline.WithVertexModule(program.vertexModule),
		pipeline.WithFragmentModule(program.fragmentModule),
		pipeline.WithTargetFormat(format),
		pipeline.WithTopology(topology),
		pipeline.WithBlendEnabled(blend),
	)

	layouts, pipelineLayout, err := c.createPipelineLayout(key, program.layoutDescriptors(pipeline.PipelineTypeRender))
	if err != nil {
		return nil, err
	}
	defer pipelineLayout.Release()

	// The draw binds a single interleaved vertex buffer.
	vertexLayouts := program.vertexModule.VertexLayouts()
	if len(vertexLayouts) > 1 {
		vertexLayouts = vertexLayouts[:1]
	}

	created, err := c.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  key + " Render Pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     program.gpuVertex,
			EntryPoint: program.vertexModule.EntryPoint(),
			Buffers:    vertexLayouts,
		},
		Fragment: &wgpu.FragmentState{
			Module:     program.gpuFragment,
			EntryPoint: program.fragmentModule.EntryPoint(),
			Targets:    []wgpu.ColorTargetState{p.ColorTargetState()},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  p.Topology(),
			FrontFace: p.FrontFace(),
			CullMode:  p.CullMode(),
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		releaseLayouts(layouts)
		return nil, fmt.Errorf("create render pipeline %s: %w", key, err)
	}
	p.SetRenderPipeline(created, layouts)
	program.pipelines[key] = p
	c.logger.Debug("render pipeline created", zap.String("key", key))
	return p, nil
}

// computePipeline returns the program's transform feedback pipeline, creating it on first use.
func (c *wgpuContext) computePipeline(program *wgpuShaderProgram) (pipeline.Pipeline, error) {
	key := pipeline.Key(program.key, pipeline.PipelineTypeCompute, wgpu.TextureFormatUndefined, wgpu.PrimitiveTopologyPointList)
	if p, ok := program.pipelines[key]; ok {
		return p, nil
	}

	p := pipeline.NewPipeline(key, pipeline.PipelineTypeCompute,
		pipeline.WithComputeModule(program.computeModule),
	)

	layouts, pipelineLayout, err := c.createPipelineLayout(key, program.layoutDescriptors(pipeline.PipelineTypeCompute))
	if err != nil {
		return nil, err
	}
	defer pipelineLayout.Release()

	created, err := c.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  key + " Compute Pipeline",
		Layout: pipelineLayout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     program.gpuVertex,
			EntryPoint: program.computeModule.EntryPoint(),
		},
	})
	if err != nil {
		releaseLayouts(layouts)
		return nil, fmt.Errorf("create compute pipeline %s: %w", key, err)
	}
	p.SetComputePipeline(created, layouts)
	program.pipelines[key] = p
	c.logger.Debug("compute pipeline created", zap.String("key", key))
	return p, nil
}

// createPipelineLayout creates one bind group layout per group index up to the highest group
// used. Groups the shader skips get an empty layout.
func (c *wgpuContext) createPipelineLayout(label string, descriptors map[int]wgpu.BindGroupLayoutDescriptor) ([]*wgpu.BindGroupLayout, *wgpu.PipelineLayout, error) {
	maxGroup := -1
	for g := range descriptors {
		maxGroup = max(maxGroup, g)
	}

	layouts := make([]*wgpu.BindGroupLayout, 0, maxGroup+1)
	for g := 0; g <= maxGroup; g++ {
		desc := descriptors[g]
		desc.Label = fmt.Sprintf("%s group %d", label, g)
		layout, err := c.device.CreateBindGroupLayout(&desc)
		if err != nil {
			releaseLayouts(layouts)
			return nil, nil, fmt.Errorf("create bind group layout for group %d: %w", g, err)
		}
		layouts = append(layouts, layout)
	}

	pipelineLayout, err := c.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            label,
		BindGroupLayouts: layouts,
	})
	if err != nil {
		releaseLayouts(layouts)
		return nil, nil, err
	}
	return layouts, pipelineLayout, nil
}

func releaseLayouts(layouts []*wgpu.BindGroupLayout) {
	for _, l := range layouts {
		l.Release()
	}
}
