package shader

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const blurSource = `
// separable blur pass
struct BlurParams {
    direction: vec2f,
    radius: f32,
    tint: vec3f,
    /* nested /* block */ comment */
    strength: f32,
}

@group(0) @binding(0) var<uniform> params: BlurParams;
@group(0) @binding(2) var sourceTexture: texture_2d<f32>;
@group(0) @binding(1) var sourceSampler: sampler;

struct VertexInput {
    @location(0) position: vec2f,
    @location(1) textureCoordinates: vec2f,
}

struct VertexOutput {
    @builtin(position) position: vec4f,
    @location(0) uv: vec2f,
}

@vertex
fn vs_main(in: VertexInput) -> VertexOutput {
    var out: VertexOutput;
    out.position = vec4f(in.position, 0.0, 1.0);
    out.uv = in.textureCoordinates;
    return out;
}

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4f {
    return textureSample(sourceTexture, sourceSampler, in.uv) * params.strength;
}
`

const particleSource = `
struct Particle {
    position: vec3f,
    velocity: vec3f,
}

struct Settings {
    dt: f32,
    bounds: array<vec4f, 2>,
}

@group(0) @binding(0) var<uniform> settings: Settings;
@group(1) @binding(0) var<storage, read> particles: array<Particle>;
@group(1) @binding(1) var<storage, read_write> positions: array<vec4f>;
@group(1) @binding(2) var output: texture_storage_2d<rgba8unorm, write>;

@compute @workgroup_size(64)
fn step(@builtin(global_invocation_id) id: vec3u) {
}
`

func TestNewModule_Errors(t *testing.T) {
	_, err := NewModule("empty", StageCompute, "")
	assert.ErrorIs(t, err, ErrEmptySource)

	_, err = NewModule("blur", StageCompute, blurSource)
	assert.ErrorIs(t, err, ErrEntryPointNotFound)
}

func TestNewModule_VertexStage(t *testing.T) {
	m, err := NewModule("blur", StageVertex, blurSource)
	require.NoError(t, err)

	assert.Equal(t, "vs_main", m.EntryPoint())
	assert.Equal(t, [3]uint32{}, m.WorkgroupSize())
	assert.Equal(t, "blur", m.Descriptor().Label)
	assert.Equal(t, blurSource, m.Descriptor().WGSLDescriptor.Code)

	layouts := m.VertexLayouts()
	require.Len(t, layouts, 1)
	assert.Equal(t, uint64(16), layouts[0].ArrayStride)
	require.Len(t, layouts[0].Attributes, 2)
	assert.Equal(t, uint32(1), layouts[0].Attributes[1].ShaderLocation)
	assert.Equal(t, uint64(8), layouts[0].Attributes[1].Offset)
	assert.Equal(t, wgpu.VertexFormatFloat32x2, layouts[0].Attributes[1].Format)
}

func TestNewModule_FragmentBindings(t *testing.T) {
	m, err := NewModule("blur", StageFragment, blurSource)
	require.NoError(t, err)
	assert.Equal(t, "fs_main", m.EntryPoint())

	bindings := m.Bindings()
	require.Len(t, bindings, 3)
	assert.Equal(t, []string{"params", "sourceSampler", "sourceTexture"},
		[]string{bindings[0].Name, bindings[1].Name, bindings[2].Name})

	params, ok := m.BindingByName("params")
	require.True(t, ok)
	assert.True(t, params.IsUniformBuffer())
	assert.Equal(t, wgpu.ShaderStageFragment, params.Entry.Visibility)
	assert.Equal(t, uint64(32), params.Size)
	assert.Equal(t, uint64(32), params.Entry.Buffer.MinBindingSize)
	assert.Equal(t, []Member{
		{Name: "direction", TypeName: "vec2f", Offset: 0, Size: 8},
		{Name: "radius", TypeName: "f32", Offset: 8, Size: 4},
		{Name: "tint", TypeName: "vec3f", Offset: 16, Size: 12},
		{Name: "strength", TypeName: "f32", Offset: 28, Size: 4},
	}, params.Members)

	tex, ok := m.BindingByName("sourceTexture")
	require.True(t, ok)
	assert.True(t, tex.IsTexture())
	assert.Equal(t, wgpu.TextureSampleTypeFloat, tex.Entry.Texture.SampleType)
	assert.Equal(t, wgpu.TextureViewDimension2D, tex.Entry.Texture.ViewDimension)

	smp, ok := m.BindingByName("sourceSampler")
	require.True(t, ok)
	assert.True(t, smp.IsSampler())

	_, ok = m.BindingByName("missing")
	assert.False(t, ok)
}

func TestNewModule_ComputeBindings(t *testing.T) {
	m, err := NewModule("particles", StageCompute, particleSource)
	require.NoError(t, err)

	assert.Equal(t, "step", m.EntryPoint())
	assert.Equal(t, [3]uint32{64, 1, 1}, m.WorkgroupSize())
	assert.Empty(t, m.VertexLayouts())

	settings, ok := m.BindingByName("settings")
	require.True(t, ok)
	assert.Equal(t, uint64(48), settings.Size)
	require.Len(t, settings.Members, 2)
	assert.Equal(t, uint64(16), settings.Members[1].Offset)

	particles, ok := m.BindingByName("particles")
	require.True(t, ok)
	storage, writable := particles.IsStorageBuffer()
	assert.True(t, storage)
	assert.False(t, writable)
	assert.Equal(t, uint64(32), particles.Size)

	positions, ok := m.BindingByName("positions")
	require.True(t, ok)
	storage, writable = positions.IsStorageBuffer()
	assert.True(t, storage)
	assert.True(t, writable)

	out, ok := m.BindingByName("output")
	require.True(t, ok)
	assert.Equal(t, wgpu.TextureFormatRGBA8Unorm, out.Entry.StorageTexture.Format)
	assert.Equal(t, wgpu.StorageTextureAccessWriteOnly, out.Entry.StorageTexture.Access)

	layouts := m.BindGroupLayoutDescriptors()
	require.Len(t, layouts, 2)
	assert.Len(t, layouts[0].Entries, 1)
	assert.Len(t, layouts[1].Entries, 3)
}

func TestParseWorkgroupSize(t *testing.T) {
	assert.Equal(t, [3]uint32{1, 1, 1}, parseWorkgroupSize("fn main() {}"))
	assert.Equal(t, [3]uint32{8, 8, 1}, parseWorkgroupSize("@compute @workgroup_size(8, 8) fn main() {}"))
	assert.Equal(t, [3]uint32{4, 2, 3}, parseWorkgroupSize("@workgroup_size(4,2,3)"))
}

func TestLayoutStruct_RuntimeArray(t *testing.T) {
	structs := resolveStructs(parseStructs(`
struct Header { count: u32, data: array<vec4f>, }
struct Only { data: array<f32>, }
`))
	header := structs["Header"]
	assert.True(t, header.runtimeSized)
	assert.Equal(t, uint64(16), header.size)
	assert.Equal(t, uint64(16), header.members[1].Offset)

	only := structs["Only"]
	assert.True(t, only.runtimeSized)
	assert.Equal(t, uint64(4), only.size)
}

func TestResolveStructs_Nested(t *testing.T) {
	structs := resolveStructs(parseStructs(`
struct Outer { inner: Inner, scale: f32, }
struct Inner { a: vec3f, }
`))
	require.Contains(t, structs, "Outer")
	assert.Equal(t, uint64(32), structs["Outer"].size)
	assert.Equal(t, uint64(16), structs["Outer"].members[1].Offset)
}

func TestMergeBindGroupLayouts(t *testing.T) {
	vs, err := NewModule("blur", StageVertex, blurSource)
	require.NoError(t, err)
	fs, err := NewModule("blur", StageFragment, blurSource)
	require.NoError(t, err)

	merged := MergeBindGroupLayouts(vs.BindGroupLayoutDescriptors(), fs.BindGroupLayoutDescriptors())
	require.Len(t, merged[0].Entries, 3)
	for i, e := range merged[0].Entries {
		assert.Equal(t, uint32(i), e.Binding)
		assert.Equal(t, wgpu.ShaderStageVertex|wgpu.ShaderStageFragment, e.Visibility)
	}
}

func TestStripComments(t *testing.T) {
	got := stripComments("a // line\nb /* x /* y */ z */ c")
	assert.Equal(t, "a \nb  c", got)
}
