package compute

import (
	"maps"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-compute/engine/renderer"
	"github.com/cogentcore/webgpu/wgpu"
)

type fakeDestroyable struct {
	destroyed bool
	destroys  int
	err       error
}

func (d *fakeDestroyable) IsDestroyed() bool { return d.destroyed }
func (d *fakeDestroyable) Destroy() error {
	d.destroys++
	d.destroyed = true
	return d.err
}

type fakeTexture struct {
	fakeDestroyable
	width, height int
}

func (t *fakeTexture) Width() int                      { return t.width }
func (t *fakeTexture) Height() int                     { return t.height }
func (t *fakeTexture) PixelFormat() wgpu.TextureFormat { return wgpu.TextureFormatRGBA8Unorm }

type fakeBuffer struct {
	fakeDestroyable
	size uint64
}

func (b *fakeBuffer) SizeInBytes() uint64 { return b.size }

type fakeVertexArray struct {
	fakeDestroyable
	vertices int
}

func (v *fakeVertexArray) VertexCount() int { return v.vertices }
func (v *fakeVertexArray) IndexCount() int  { return 0 }

type fakeFramebuffer struct {
	fakeDestroyable
	desc renderer.FramebufferDescriptor
}

func (f *fakeFramebuffer) ColorTextures() []renderer.Texture { return f.desc.ColorTextures }
func (f *fakeFramebuffer) DestroyAttachments() bool          { return f.desc.DestroyAttachments }

type fakeProgram struct {
	fakeDestroyable
	desc     renderer.ShaderProgramDescriptor
	varyings []string
}

func (p *fakeProgram) Key() string                  { return renderer.ShaderCacheKey(p.desc) }
func (p *fakeProgram) VertexShaderSource() string   { return p.desc.VertexShaderSource }
func (p *fakeProgram) FragmentShaderSource() string { return p.desc.FragmentShaderSource }
func (p *fakeProgram) AttributeLocations() map[string]int {
	return maps.Clone(p.desc.AttributeLocations)
}
func (p *fakeProgram) TransformFeedbackVaryings() []string     { return p.varyings }
func (p *fakeProgram) SetTransformFeedbackVaryings(v []string) { p.varyings = slices.Clone(v) }

// countingRenderStates wraps a real cache and counts lookups.
type countingRenderStates struct {
	renderer.RenderStateCache
	lookups  int
	removals int
}

func (c *countingRenderStates) FromCache(desc renderer.RenderStateDescriptor) *renderer.RenderState {
	c.lookups++
	return c.RenderStateCache.FromCache(desc)
}

func (c *countingRenderStates) RemoveFromCache(desc renderer.RenderStateDescriptor) {
	c.removals++
	c.RenderStateCache.RemoveFromCache(desc)
}

// fakeContext is a renderer.Context that records what the engine asks of it, in order.
type fakeContext struct {
	renderer.Context

	mu *sync.Mutex

	quad         *fakeVertexArray
	renderStates *countingRenderStates
	width        int
	height       int

	programs     []*fakeProgram
	framebuffers []*fakeFramebuffer
	draws        []renderer.DrawCommand
	clears       []renderer.ClearCommand
	calls        []string

	compileErr            error
	framebufferErr        error
	framebufferDestroyErr error
	clearErr              error
	drawErr               error
}

func newFakeContext() *fakeContext {
	return &fakeContext{
		mu:           &sync.Mutex{},
		quad:         &fakeVertexArray{vertices: 4},
		renderStates: &countingRenderStates{RenderStateCache: renderer.NewRenderStateCache()},
		width:        300,
		height:       150,
	}
}

func (c *fakeContext) ViewportQuadVertexArray() renderer.VertexArray { return c.quad }
func (c *fakeContext) RenderStates() renderer.RenderStateCache       { return c.renderStates }
func (c *fakeContext) DrawingBufferSize() (int, int)                 { return c.width, c.height }

func (c *fakeContext) ShaderProgramFromCache(desc renderer.ShaderProgramDescriptor) (renderer.ShaderProgram, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "compile")
	if c.compileErr != nil {
		return nil, c.compileErr
	}
	p := &fakeProgram{desc: desc}
	c.programs = append(c.programs, p)
	return p, nil
}

func (c *fakeContext) CreateFramebuffer(desc renderer.FramebufferDescriptor) (renderer.Framebuffer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "framebuffer")
	if c.framebufferErr != nil {
		return nil, c.framebufferErr
	}
	fb := &fakeFramebuffer{desc: desc}
	fb.err = c.framebufferDestroyErr
	c.framebuffers = append(c.framebuffers, fb)
	return fb, nil
}

func (c *fakeContext) Clear(cmd *renderer.ClearCommand) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "clear")
	c.clears = append(c.clears, *cmd)
	return c.clearErr
}

func (c *fakeContext) Draw(cmd *renderer.DrawCommand) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "draw")
	c.draws = append(c.draws, *cmd)
	return c.drawErr
}
