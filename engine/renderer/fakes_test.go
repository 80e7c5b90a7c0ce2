package renderer

import (
	"maps"
	"slices"

	"github.com/cogentcore/webgpu/wgpu"
)

type fakeProgram struct {
	key        string
	desc       ShaderProgramDescriptor
	varyings   []string
	destroyed  bool
	destroyErr error
	destroys   int
}

func (p *fakeProgram) Key() string {
	return p.key
}

func (p *fakeProgram) VertexShaderSource() string {
	return p.desc.VertexShaderSource
}

func (p *fakeProgram) FragmentShaderSource() string {
	return p.desc.FragmentShaderSource
}

func (p *fakeProgram) AttributeLocations() map[string]int {
	return maps.Clone(p.desc.AttributeLocations)
}

func (p *fakeProgram) TransformFeedbackVaryings() []string {
	return p.varyings
}

func (p *fakeProgram) SetTransformFeedbackVaryings(v []string) {
	p.varyings = slices.Clone(v)
}

func (p *fakeProgram) IsDestroyed() bool {
	return p.destroyed
}

func (p *fakeProgram) Destroy() error {
	p.destroys++
	p.destroyed = true
	return p.destroyErr
}

type fakeBuffer struct {
	size      uint64
	destroyed bool
}

func (b *fakeBuffer) SizeInBytes() uint64 {
	return b.size
}

func (b *fakeBuffer) IsDestroyed() bool {
	return b.destroyed
}

func (b *fakeBuffer) Destroy() error {
	b.destroyed = true
	return nil
}

type fakeTexture struct {
	width, height int
	destroyed     bool
}

func (t *fakeTexture) Width() int {
	return t.width
}

func (t *fakeTexture) Height() int {
	return t.height
}

func (t *fakeTexture) PixelFormat() wgpu.TextureFormat {
	return wgpu.TextureFormatRGBA8Unorm
}

func (t *fakeTexture) IsDestroyed() bool {
	return t.destroyed
}

func (t *fakeTexture) Destroy() error {
	t.destroyed = true
	return nil
}

// recordingContext records the draw and clear commands it receives.
type recordingContext struct {
	Context

	draws  []DrawCommand
	clears []ClearCommand
	err    error
}

func (c *recordingContext) Draw(cmd *DrawCommand) error {
	c.draws = append(c.draws, *cmd)
	return c.err
}

func (c *recordingContext) Clear(cmd *ClearCommand) error {
	c.clears = append(c.clears, *cmd)
	return c.err
}
