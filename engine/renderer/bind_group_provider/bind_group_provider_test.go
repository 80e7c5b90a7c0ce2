package bind_group_provider

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storageLayout(bindings ...uint32) wgpu.BindGroupLayoutDescriptor {
	desc := wgpu.BindGroupLayoutDescriptor{}
	for _, b := range bindings {
		entry := wgpu.BindGroupLayoutEntry{Binding: b, Visibility: wgpu.ShaderStageCompute}
		entry.Buffer.Type = wgpu.BufferBindingTypeStorage
		desc.Entries = append(desc.Entries, entry)
	}
	return desc
}

func TestNewBindGroupProvider(t *testing.T) {
	p := NewBindGroupProvider("tf outputs", WithGroup(1))
	assert.Equal(t, "tf outputs", p.Label())
	assert.Equal(t, 1, p.Group())
	assert.Nil(t, p.BindGroup())
	assert.Nil(t, p.Buffer(0))
	assert.Nil(t, p.TextureView(0))
	assert.Nil(t, p.Sampler(0))
}

func TestEntries_BorrowedBuffers(t *testing.T) {
	a, b := &wgpu.Buffer{}, &wgpu.Buffer{}
	p := NewBindGroupProvider("tf outputs", WithBorrowedBuffers(map[int]*wgpu.Buffer{0: a, 2: b}))
	assert.True(t, p.IsBorrowed(0))
	assert.True(t, p.IsBorrowed(2))

	entries, err := p.Entries(storageLayout(0, 2))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Same(t, a, entries[0].Buffer)
	assert.Same(t, b, entries[1].Buffer)
	assert.Equal(t, uint32(2), entries[1].Binding)
	assert.Equal(t, uint64(wgpu.WholeSize), entries[1].Size)
}

func TestEntries_MissingResource(t *testing.T) {
	p := NewBindGroupProvider("uniforms")
	_, err := p.Entries(storageLayout(0))
	assert.ErrorContains(t, err, "buffer binding 0")

	texLayout := wgpu.BindGroupLayoutDescriptor{Entries: []wgpu.BindGroupLayoutEntry{{Binding: 3}}}
	texLayout.Entries[0].Texture.SampleType = wgpu.TextureSampleTypeFloat
	_, err = p.Entries(texLayout)
	assert.ErrorContains(t, err, "texture binding 3")

	smpLayout := wgpu.BindGroupLayoutDescriptor{Entries: []wgpu.BindGroupLayoutEntry{{Binding: 4}}}
	smpLayout.Entries[0].Sampler.Type = wgpu.SamplerBindingTypeFiltering
	_, err = p.Entries(smpLayout)
	assert.ErrorContains(t, err, "sampler binding 4")
}

func TestRelease_ForgetsBorrowed(t *testing.T) {
	buf, smp := &wgpu.Buffer{}, &wgpu.Sampler{}
	p := NewBindGroupProvider("shared")
	p.BorrowBuffer(0, buf)
	p.BorrowSampler(1, smp)

	p.Release()

	assert.Nil(t, p.Buffer(0))
	assert.Nil(t, p.Sampler(1))
	assert.False(t, p.IsBorrowed(0))
	assert.False(t, p.IsBorrowed(1))
}
