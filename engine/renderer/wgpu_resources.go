package renderer

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

type wgpuTexture struct {
	ctx       *wgpuContext
	texture   *wgpu.Texture
	width     int
	height    int
	format    wgpu.TextureFormat
	destroyed bool
}

var _ Texture = &wgpuTexture{}

func (t *wgpuTexture) Width() int {
	return t.width
}

func (t *wgpuTexture) Height() int {
	return t.height
}

func (t *wgpuTexture) PixelFormat() wgpu.TextureFormat {
	return t.format
}

func (t *wgpuTexture) IsDestroyed() bool {
	return t.destroyed
}

func (t *wgpuTexture) Destroy() error {
	if t.destroyed {
		return ErrResourceDestroyed
	}
	t.destroyed = true
	t.texture.Release()
	t.ctx.resourceDestroyed("texture")
	return nil
}

type wgpuBuffer struct {
	ctx       *wgpuContext
	buffer    *wgpu.Buffer
	size      uint64
	destroyed bool
}

var _ Buffer = &wgpuBuffer{}

func (b *wgpuBuffer) SizeInBytes() uint64 {
	return b.size
}

func (b *wgpuBuffer) IsDestroyed() bool {
	return b.destroyed
}

func (b *wgpuBuffer) Destroy() error {
	if b.destroyed {
		return ErrResourceDestroyed
	}
	b.destroyed = true
	b.buffer.Release()
	b.ctx.resourceDestroyed("buffer")
	return nil
}

type wgpuVertexArray struct {
	ctx          *wgpuContext
	vertexBuffer *wgpu.Buffer
	indexBuffer  *wgpu.Buffer
	vertexCount  int
	indexCount   int

	// shared is set on the context's viewport quad, which only the context releases.
	shared    bool
	destroyed bool
}

var _ VertexArray = &wgpuVertexArray{}

func (v *wgpuVertexArray) VertexCount() int {
	return v.vertexCount
}

func (v *wgpuVertexArray) IndexCount() int {
	return v.indexCount
}

func (v *wgpuVertexArray) IsDestroyed() bool {
	return v.destroyed
}

// Destroy releases the vertex and index buffers. Destroying the shared viewport quad is a no-op.
func (v *wgpuVertexArray) Destroy() error {
	if v.shared {
		return nil
	}
	if v.destroyed {
		return ErrResourceDestroyed
	}
	v.release()
	v.ctx.resourceDestroyed("vertex_array")
	return nil
}

func (v *wgpuVertexArray) release() {
	v.destroyed = true
	if v.vertexBuffer != nil {
		v.vertexBuffer.Release()
		v.vertexBuffer = nil
	}
	if v.indexBuffer != nil {
		v.indexBuffer.Release()
		v.indexBuffer = nil
	}
}

type wgpuFramebuffer struct {
	ctx                *wgpuContext
	colorTextures      []Texture
	views              []*wgpu.TextureView
	destroyAttachments bool
	destroyed          bool
}

var _ Framebuffer = &wgpuFramebuffer{}

func (f *wgpuFramebuffer) ColorTextures() []Texture {
	return f.colorTextures
}

func (f *wgpuFramebuffer) DestroyAttachments() bool {
	return f.destroyAttachments
}

func (f *wgpuFramebuffer) IsDestroyed() bool {
	return f.destroyed
}

func (f *wgpuFramebuffer) Destroy() error {
	if f.destroyed {
		return ErrResourceDestroyed
	}
	f.destroyed = true
	for _, v := range f.views {
		v.Release()
	}
	f.views = nil

	var errs []error
	if f.destroyAttachments {
		for _, t := range f.colorTextures {
			if !t.IsDestroyed() {
				errs = append(errs, t.Destroy())
			}
		}
	}
	f.ctx.resourceDestroyed("framebuffer")
	return errors.Join(errs...)
}

// wgpuShaderProgram is a compiled program. The vertex source is reflected for a @vertex entry
// point and, for transform feedback, a @compute entry point; the fragment source for a @fragment
// entry point. Pipelines are created lazily per target format and topology.
type wgpuShaderProgram struct {
	ctx                *wgpuContext
	key                string
	vertexSource       string
	fragmentSource     string
	attributeLocations map[string]int
	varyings           []string

	vertexModule, fragmentModule, computeModule shader.Module

	// gpuVertex is compiled from the vertex source and serves both its @vertex and @compute entry points.
	gpuVertex, gpuFragment *wgpu.ShaderModule

	pipelines map[string]pipeline.Pipeline
	destroyed bool
}

var _ ShaderProgram = &wgpuShaderProgram{}

func (p *wgpuShaderProgram) Key() string {
	return p.key
}

func (p *wgpuShaderProgram) VertexShaderSource() string {
	return p.vertexSource
}

func (p *wgpuShaderProgram) FragmentShaderSource() string {
	return p.fragmentSource
}

func (p *wgpuShaderProgram) AttributeLocations() map[string]int {
	return maps.Clone(p.attributeLocations)
}

func (p *wgpuShaderProgram) TransformFeedbackVaryings() []string {
	return p.varyings
}

func (p *wgpuShaderProgram) SetTransformFeedbackVaryings(varyings []string) {
	p.varyings = slices.Clone(varyings)
}

func (p *wgpuShaderProgram) IsDestroyed() bool {
	return p.destroyed
}

func (p *wgpuShaderProgram) Destroy() error {
	if p.destroyed {
		return ErrResourceDestroyed
	}
	p.destroyed = true
	for key, pl := range p.pipelines {
		pl.Release()
		delete(p.pipelines, key)
	}
	for _, m := range []*wgpu.ShaderModule{p.gpuVertex, p.gpuFragment} {
		if m != nil {
			m.Release()
		}
	}
	p.gpuVertex, p.gpuFragment = nil, nil
	p.ctx.resourceDestroyed("shader_program")
	return nil
}

// canRender reports whether the program has both raster stages.
func (p *wgpuShaderProgram) canRender() bool {
	return p.vertexModule != nil && p.fragmentModule != nil
}

// stageBindings returns the bindings a pipeline of the given type uses, per stage. The vertex
// source of a transform feedback program also declares its @compute outputs, which WebGPU does
// not allow in the vertex stage, so those are left out of render pipelines.
func (p *wgpuShaderProgram) stageBindings(pipelineType pipeline.PipelineType) [][]shader.Binding {
	if pipelineType == pipeline.PipelineTypeCompute {
		if p.computeModule == nil {
			return nil
		}
		return [][]shader.Binding{p.computeModule.Bindings()}
	}

	var stages [][]shader.Binding
	if p.vertexModule != nil {
		var vertex []shader.Binding
		for _, b := range p.vertexModule.Bindings() {
			if vertexVisible(b) {
				vertex = append(vertex, b)
			}
		}
		stages = append(stages, vertex)
	}
	if p.fragmentModule != nil {
		stages = append(stages, p.fragmentModule.Bindings())
	}
	return stages
}

// bindingsByGroup returns the bindings of a pipeline grouped by @group. A binding declared by
// both raster stages is listed once.
func (p *wgpuShaderProgram) bindingsByGroup(pipelineType pipeline.PipelineType) map[int][]shader.Binding {
	groups := make(map[int][]shader.Binding)
	seen := make(map[[2]int]bool)
	for _, bindings := range p.stageBindings(pipelineType) {
		for _, b := range bindings {
			id := [2]int{b.Group, b.Binding}
			if seen[id] {
				continue
			}
			seen[id] = true
			groups[b.Group] = append(groups[b.Group], b)
		}
	}
	return groups
}

// layoutDescriptors returns the bind group layouts of a pipeline keyed by group, with the
// visibility of bindings shared by both raster stages merged.
func (p *wgpuShaderProgram) layoutDescriptors(pipelineType pipeline.PipelineType) map[int]wgpu.BindGroupLayoutDescriptor {
	merged := make(map[int]wgpu.BindGroupLayoutDescriptor)
	for _, bindings := range p.stageBindings(pipelineType) {
		stage := make(map[int]wgpu.BindGroupLayoutDescriptor)
		for _, b := range bindings {
			desc := stage[b.Group]
			desc.Entries = append(desc.Entries, b.Entry)
			stage[b.Group] = desc
		}
		merged = shader.MergeBindGroupLayouts(merged, stage)
	}
	return merged
}

// vertexInputBinding returns the read-only storage binding of group 1 that receives the vertex array in a
// transform feedback dispatch.
func (p *wgpuShaderProgram) vertexInputBinding() (shader.Binding, bool) {
	if p.computeModule == nil {
		return shader.Binding{}, false
	}
	for _, b := range p.computeModule.Bindings() {
		if storage, writable := b.IsStorageBuffer(); b.Group == 1 && storage && !writable {
			return b, true
		}
	}
	return shader.Binding{}, false
}

// unwrapProgram returns the compiled program behind a ShaderProgram handed out by ctx.
func unwrapProgram(ctx *wgpuContext, sp ShaderProgram) (*wgpuShaderProgram, error) {
	var program *wgpuShaderProgram
	switch v := sp.(type) {
	case *wgpuShaderProgram:
		program = v
	case interface{ Program() *wgpuShaderProgram }:
		program = v.Program()
	default:
		return nil, fmt.Errorf("shader program %T: %w", sp, ErrForeignResource)
	}
	if program.ctx != ctx {
		return nil, fmt.Errorf("shader program %s: %w", program.key, ErrForeignResource)
	}
	if sp.IsDestroyed() || program.destroyed {
		return nil, fmt.Errorf("shader program %s: %w", program.key, ErrResourceDestroyed)
	}
	return program, nil
}

func unwrapTexture(ctx *wgpuContext, t Texture) (*wgpuTexture, error) {
	tex, ok := t.(*wgpuTexture)
	if !ok || tex.ctx != ctx {
		return nil, fmt.Errorf("texture %T: %w", t, ErrForeignResource)
	}
	if tex.destroyed {
		return nil, fmt.Errorf("texture: %w", ErrResourceDestroyed)
	}
	return tex, nil
}

func unwrapBuffer(ctx *wgpuContext, b Buffer) (*wgpuBuffer, error) {
	buf, ok := b.(*wgpuBuffer)
	if !ok || buf.ctx != ctx {
		return nil, fmt.Errorf("buffer %T: %w", b, ErrForeignResource)
	}
	if buf.destroyed {
		return nil, fmt.Errorf("buffer: %w", ErrResourceDestroyed)
	}
	return buf, nil
}

func unwrapVertexArray(ctx *wgpuContext, v VertexArray) (*wgpuVertexArray, error) {
	va, ok := v.(*wgpuVertexArray)
	if !ok || va.ctx != ctx {
		return nil, fmt.Errorf("vertex array %T: %w", v, ErrForeignResource)
	}
	if va.destroyed {
		return nil, fmt.Errorf("vertex array: %w", ErrResourceDestroyed)
	}
	return va, nil
}

func unwrapFramebuffer(ctx *wgpuContext, f Framebuffer) (*wgpuFramebuffer, error) {
	fb, ok := f.(*wgpuFramebuffer)
	if !ok || fb.ctx != ctx {
		return nil, fmt.Errorf("framebuffer %T: %w", f, ErrForeignResource)
	}
	if fb.destroyed {
		return nil, fmt.Errorf("framebuffer: %w", ErrResourceDestroyed)
	}
	return fb, nil
}
