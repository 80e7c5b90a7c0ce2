package pipeline

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fillSource = `
@group(0) @binding(0) var<uniform> color: vec4f;

@fragment
fn main() -> @location(0) vec4f {
    return color;
}
`

func TestNewPipeline_Defaults(t *testing.T) {
	p := NewPipeline("fill", PipelineTypeRender)

	assert.Equal(t, "fill", p.PipelineKey())
	assert.Equal(t, PipelineTypeRender, p.Type())
	assert.Equal(t, wgpu.TextureFormatRGBA8Unorm, p.TargetFormat())
	assert.Equal(t, wgpu.PrimitiveTopologyTriangleList, p.Topology())
	assert.Equal(t, wgpu.CullModeNone, p.CullMode())
	assert.Equal(t, wgpu.FrontFaceCCW, p.FrontFace())
	assert.False(t, p.BlendEnabled())
	assert.False(t, p.Created())
	assert.Nil(t, p.BindGroupLayout(0))

	target := p.ColorTargetState()
	assert.Nil(t, target.Blend)
	assert.Equal(t, wgpu.ColorWriteMaskAll, target.WriteMask)
}

func TestNewPipeline_Options(t *testing.T) {
	fs, err := shader.NewModule("fill", shader.StageFragment, fillSource)
	require.NoError(t, err)

	p := NewPipeline("fill", PipelineTypeRender,
		WithFragmentModule(fs),
		WithTargetFormat(wgpu.TextureFormatRGBA16Float),
		WithTopology(wgpu.PrimitiveTopologyPointList),
		WithBlendEnabled(true),
		WithWriteMask(wgpu.ColorWriteMaskRed),
	)

	assert.Same(t, fs, p.Module(shader.StageFragment))
	assert.Nil(t, p.Module(shader.StageVertex))
	assert.Nil(t, p.Module(shader.StageCompute))
	assert.Equal(t, wgpu.PrimitiveTopologyPointList, p.Topology())

	target := p.ColorTargetState()
	assert.Equal(t, wgpu.TextureFormatRGBA16Float, target.Format)
	assert.Equal(t, wgpu.ColorWriteMaskRed, target.WriteMask)
	require.NotNil(t, target.Blend)
	assert.Equal(t, wgpu.BlendFactorSrcAlpha, target.Blend.Color.SrcFactor)
}

func TestKey(t *testing.T) {
	a := Key("prog", PipelineTypeRender, wgpu.TextureFormatRGBA8Unorm, wgpu.PrimitiveTopologyTriangleList)
	b := Key("prog", PipelineTypeRender, wgpu.TextureFormatRGBA8Unorm, wgpu.PrimitiveTopologyPointList)
	c := Key("prog", PipelineTypeRender, wgpu.TextureFormatBGRA8Unorm, wgpu.PrimitiveTopologyTriangleList)
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, a, Key("prog", PipelineTypeRender, wgpu.TextureFormatRGBA8Unorm, wgpu.PrimitiveTopologyTriangleList))

	assert.Equal(t,
		Key("prog", PipelineTypeCompute, wgpu.TextureFormatRGBA8Unorm, wgpu.PrimitiveTopologyPointList),
		Key("prog", PipelineTypeCompute, wgpu.TextureFormatBGRA8Unorm, wgpu.PrimitiveTopologyLineList))
}

func TestPipeline_ReleaseUncreated(t *testing.T) {
	p := NewPipeline("noop", PipelineTypeCompute)
	assert.NotPanics(t, p.Release)
	assert.Nil(t, p.Pipeline().(*wgpu.ComputePipeline))
}
