package renderer

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-compute/common"
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const particleVS = `
struct Particle {
    position: vec4f,
    velocity: vec4f,
}

struct Params {
    dt: f32,
}

@group(0) @binding(0) var<uniform> params: Params;
@group(1) @binding(0) var<storage, read> particles: array<Particle>;
@group(1) @binding(1) var<storage, read_write> position: array<vec4f>;

@compute @workgroup_size(64)
fn main(@builtin(global_invocation_id) id: vec3u) {
    let p = particles[id.x];
    position[id.x] = p.position + p.velocity * params.dt;
}
`

func TestPrimitiveType(t *testing.T) {
	assert.Equal(t, PrimitiveType(0), PrimitiveTypePoints)
	assert.Equal(t, PrimitiveType(4), PrimitiveTypeTriangles)
	assert.Equal(t, PrimitiveType(6), PrimitiveTypeTriangleFan)
	assert.Equal(t, "POINTS", PrimitiveTypePoints.String())
	assert.Equal(t, "TRIANGLE_STRIP", PrimitiveTypeTriangleStrip.String())
	assert.Equal(t, "PrimitiveType(42)", PrimitiveType(42).String())

	tests := []struct {
		pt       PrimitiveType
		topology wgpu.PrimitiveTopology
		ok       bool
	}{
		{PrimitiveTypePoints, wgpu.PrimitiveTopologyPointList, true},
		{PrimitiveTypeLines, wgpu.PrimitiveTopologyLineList, true},
		{PrimitiveTypeLineStrip, wgpu.PrimitiveTopologyLineStrip, true},
		{PrimitiveTypeTriangles, wgpu.PrimitiveTopologyTriangleList, true},
		{PrimitiveTypeTriangleStrip, wgpu.PrimitiveTopologyTriangleStrip, true},
		{PrimitiveTypeLineLoop, wgpu.PrimitiveTopologyTriangleList, false},
		{PrimitiveTypeTriangleFan, wgpu.PrimitiveTopologyTriangleList, false},
	}
	for _, tt := range tests {
		topology, ok := tt.pt.Topology()
		assert.Equal(t, tt.ok, ok, tt.pt.String())
		assert.Equal(t, tt.topology, topology, tt.pt.String())
	}
}

func TestViewportQuad(t *testing.T) {
	vertices := viewportQuadVertices()
	require.Len(t, vertices, 4*16)

	corner := func(i int) [4]float32 {
		var v [4]float32
		for j := range v {
			v[j] = math.Float32frombits(binary.LittleEndian.Uint32(vertices[i*16+j*4:]))
		}
		return v
	}
	assert.Equal(t, [4]float32{-1, -1, 0, 1}, corner(0), "bottom left samples the last row")
	assert.Equal(t, [4]float32{-1, 1, 0, 0}, corner(3), "top left samples the first row")
	assert.Equal(t, []uint16{0, 1, 2, 0, 2, 3}, viewportQuadIndices)

	m, err := shader.NewModule("quad", shader.StageVertex, ViewportQuadVS)
	require.NoError(t, err)
	require.Len(t, m.VertexLayouts(), 1)
	layout := m.VertexLayouts()[0]
	assert.Equal(t, uint64(16), layout.ArrayStride)
	require.Len(t, layout.Attributes, 2)
	for _, attr := range layout.Attributes {
		name := "position"
		if attr.Offset == 8 {
			name = "textureCoordinates"
		}
		assert.Equal(t, uint32(ViewportQuadAttributeLocations()[name]), attr.ShaderLocation)
	}
}

func TestWGPUShaderProgram_TransformFeedbackBindings(t *testing.T) {
	compute, err := shader.NewModule("particles", shader.StageCompute, particleVS)
	require.NoError(t, err)
	program := &wgpuShaderProgram{key: "particles", computeModule: compute}

	input, ok := program.vertexInputBinding()
	require.True(t, ok)
	assert.Equal(t, "particles", input.Name)

	groups := program.bindingsByGroup(pipeline.PipelineTypeCompute)
	require.Len(t, groups, 2)
	assert.Len(t, groups[0], 1)
	assert.Len(t, groups[1], 2)

	layouts := program.layoutDescriptors(pipeline.PipelineTypeCompute)
	require.Len(t, layouts, 2)
	assert.Len(t, layouts[1].Entries, 2)

	assert.False(t, program.canRender())
	assert.Empty(t, program.bindingsByGroup(pipeline.PipelineTypeRender))
}

func TestWGPUShaderProgram_RenderBindingsSkipComputeOutputs(t *testing.T) {
	source := particleVS + `
struct VertexOutput {
    @builtin(position) position: vec4f,
}

@vertex
fn vs(@location(0) position: vec2f) -> VertexOutput {
    var out: VertexOutput;
    out.position = vec4f(position, 0.0, params.dt);
    return out;
}
`
	vertex, err := shader.NewModule("mixed", shader.StageVertex, source)
	require.NoError(t, err)
	program := &wgpuShaderProgram{key: "mixed", vertexModule: vertex}

	groups := program.bindingsByGroup(pipeline.PipelineTypeRender)
	require.Contains(t, groups, 1)
	for _, b := range groups[1] {
		storage, writable := b.IsStorageBuffer()
		assert.False(t, storage && writable, "%s must not be bound to the vertex stage", b.Name)
	}
	assert.Len(t, groups[0], 1)
}

func TestUnwrapForeignResources(t *testing.T) {
	ctx := &wgpuContext{}
	other := &wgpuContext{}

	_, err := unwrapTexture(ctx, &fakeTexture{width: 1, height: 1})
	assert.ErrorIs(t, err, ErrForeignResource)

	_, err = unwrapTexture(ctx, &wgpuTexture{ctx: other})
	assert.ErrorIs(t, err, ErrForeignResource)

	_, err = unwrapTexture(ctx, &wgpuTexture{ctx: ctx, destroyed: true})
	assert.ErrorIs(t, err, ErrResourceDestroyed)

	_, err = unwrapBuffer(ctx, &fakeBuffer{})
	assert.ErrorIs(t, err, ErrForeignResource)

	_, err = unwrapProgram(ctx, &fakeProgram{})
	assert.ErrorIs(t, err, ErrForeignResource)

	program := &wgpuShaderProgram{ctx: ctx, key: "p"}
	got, err := unwrapProgram(ctx, program)
	require.NoError(t, err)
	assert.Same(t, program, got)

	va := &wgpuVertexArray{ctx: ctx, shared: true}
	assert.NoError(t, va.Destroy(), "destroying the shared quad is a no-op")
	assert.False(t, va.IsDestroyed())
}

func TestDrawHelpers(t *testing.T) {
	assert.Equal(t, 6, drawCount(0, 6))
	assert.Equal(t, 3, drawCount(3, 6))
	assert.Equal(t, 6, drawCount(10, 6))

	assert.Len(t, padTo4([]byte{1, 2, 3, 4}), 4)
	padded := padTo4([]byte{1, 2, 3, 4, 5})
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 0, 0, 0}, padded)

	vp := clampViewport(common.BoundingRectangle{X: -4, Y: 2, Width: 100, Height: 100}, 64, 32)
	assert.Equal(t, common.BoundingRectangle{X: 0, Y: 2, Width: 64, Height: 30}, vp)
}
