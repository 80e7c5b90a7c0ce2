package bind_group_provider

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// bindGroupProvider is the unexported implementation of BindGroupProvider.
type bindGroupProvider struct {
	// label is a debug label added for convenience.
	label string

	// group is the bind group index the provider is bound at.
	group int

	bindGroup *wgpu.BindGroup

	// buffers, textureViews and samplers are keyed by binding index.
	buffers      map[int]*wgpu.Buffer
	textureViews map[int]*wgpu.TextureView
	samplers     map[int]*wgpu.Sampler

	// borrowed marks bindings whose resource is owned elsewhere and is not released by Release.
	borrowed map[int]bool
}

// BindGroupProvider collects the resources of one bind group for a single draw or dispatch.
// The graphics context fills it from a command's uniform map and output buffers, builds the
// bind group from the pipeline's layout, and releases it once the work has been submitted.
//
// Usage pattern:
//  1. Context creates a provider for the group it is about to bind
//  2. Context stores uniform buffers and texture views with Set*, and shared or caller-owned resources with Borrow*
//  3. Context calls Entries with the reflected layout and creates the bind group
//  4. Context sets the bind group on the pass and calls Release after submission
type BindGroupProvider interface {
	// Release releases the bind group and every resource the provider owns.
	// Borrowed resources are forgotten but not released.
	Release()

	// Label returns the debug label for this provider.
	Label() string

	// Group returns the bind group index.
	Group() int

	// BindGroup returns the created bind group, or nil if not created yet.
	BindGroup() *wgpu.BindGroup

	// Buffer returns the buffer at the given binding, or nil if not set.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - *wgpu.Buffer: the buffer or nil
	Buffer(binding int) *wgpu.Buffer

	// TextureView returns the texture view at the given binding, or nil if not set.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - *wgpu.TextureView: the texture view or nil
	TextureView(binding int) *wgpu.TextureView

	// Sampler returns the sampler at the given binding, or nil if not set.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - *wgpu.Sampler: the sampler or nil
	Sampler(binding int) *wgpu.Sampler

	// IsBorrowed reports whether the resource at binding is owned elsewhere.
	IsBorrowed(binding int) bool

	// SetBindGroup sets the bind group after GPU creation.
	//
	// Parameters:
	//   - bg: the created bind group
	SetBindGroup(bg *wgpu.BindGroup)

	// SetBuffer stores a buffer the provider owns.
	//
	// Parameters:
	//   - binding: the binding index
	//   - buf: the buffer, released by Release
	SetBuffer(binding int, buf *wgpu.Buffer)

	// BorrowBuffer stores a buffer owned by someone else, such as a caller's output buffer.
	//
	// Parameters:
	//   - binding: the binding index
	//   - buf: the buffer, not released by Release
	BorrowBuffer(binding int, buf *wgpu.Buffer)

	// SetTextureView stores a texture view the provider owns.
	//
	// Parameters:
	//   - binding: the binding index
	//   - tv: the texture view, released by Release
	SetTextureView(binding int, tv *wgpu.TextureView)

	// BorrowSampler stores a sampler owned by someone else, such as the context's shared sampler.
	//
	// Parameters:
	//   - binding: the binding index
	//   - s: the sampler, not released by Release
	BorrowSampler(binding int, s *wgpu.Sampler)

	// Entries builds the bind group entries for the given layout from the stored resources.
	//
	// Parameters:
	//   - descriptor: the reflected layout of the group
	//
	// Returns:
	//   - []wgpu.BindGroupEntry: one entry per layout entry, in layout order
	//   - error: if a binding of the layout has no stored resource of the matching kind
	Entries(descriptor wgpu.BindGroupLayoutDescriptor) ([]wgpu.BindGroupEntry, error)
}

// Compile-time check that bindGroupProvider implements BindGroupProvider
var _ BindGroupProvider = &bindGroupProvider{}

// NewBindGroupProvider creates a new BindGroupProvider with the provided options.
//
// Parameters:
//   - label: a debug label used for GPU object labels
//   - options: a variadic list of options to configure the provider
//
// Returns:
//   - BindGroupProvider: a new instance of BindGroupProvider configured with the provided options
func NewBindGroupProvider(label string, options ...BindGroupProviderOption) BindGroupProvider {
	p := &bindGroupProvider{
		label:        label,
		buffers:      make(map[int]*wgpu.Buffer),
		textureViews: make(map[int]*wgpu.TextureView),
		samplers:     make(map[int]*wgpu.Sampler),
		borrowed:     make(map[int]bool),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *bindGroupProvider) Label() string {
	return p.label
}

func (p *bindGroupProvider) Group() int {
	return p.group
}

func (p *bindGroupProvider) BindGroup() *wgpu.BindGroup {
	return p.bindGroup
}

func (p *bindGroupProvider) Buffer(binding int) *wgpu.Buffer {
	return p.buffers[binding]
}

func (p *bindGroupProvider) TextureView(binding int) *wgpu.TextureView {
	return p.textureViews[binding]
}

func (p *bindGroupProvider) Sampler(binding int) *wgpu.Sampler {
	return p.samplers[binding]
}

func (p *bindGroupProvider) IsBorrowed(binding int) bool {
	return p.borrowed[binding]
}

func (p *bindGroupProvider) SetBindGroup(bg *wgpu.BindGroup) {
	p.bindGroup = bg
}

func (p *bindGroupProvider) SetBuffer(binding int, buf *wgpu.Buffer) {
	p.buffers[binding] = buf
	delete(p.borrowed, binding)
}

func (p *bindGroupProvider) BorrowBuffer(binding int, buf *wgpu.Buffer) {
	p.buffers[binding] = buf
	p.borrowed[binding] = true
}

func (p *bindGroupProvider) SetTextureView(binding int, tv *wgpu.TextureView) {
	p.textureViews[binding] = tv
	delete(p.borrowed, binding)
}

func (p *bindGroupProvider) BorrowSampler(binding int, s *wgpu.Sampler) {
	p.samplers[binding] = s
	p.borrowed[binding] = true
}

func (p *bindGroupProvider) Entries(descriptor wgpu.BindGroupLayoutDescriptor) ([]wgpu.BindGroupEntry, error) {
	entries := make([]wgpu.BindGroupEntry, len(descriptor.Entries))
	for i, entry := range descriptor.Entries {
		binding := int(entry.Binding)

		switch {
		case entry.Texture.SampleType != wgpu.TextureSampleTypeUndefined:
			tv := p.textureViews[binding]
			if tv == nil {
				return nil, fmt.Errorf("%s: texture binding %d has no texture view", p.label, binding)
			}
			entries[i] = wgpu.BindGroupEntry{
				Binding:     entry.Binding,
				TextureView: tv,
			}
		case entry.Sampler.Type != wgpu.SamplerBindingTypeUndefined:
			s := p.samplers[binding]
			if s == nil {
				return nil, fmt.Errorf("%s: sampler binding %d has no sampler", p.label, binding)
			}
			entries[i] = wgpu.BindGroupEntry{
				Binding: entry.Binding,
				Sampler: s,
			}
		default:
			buf := p.buffers[binding]
			if buf == nil {
				return nil, fmt.Errorf("%s: buffer binding %d has no buffer", p.label, binding)
			}
			entries[i] = wgpu.BindGroupEntry{
				Binding: entry.Binding,
				Buffer:  buf,
				Offset:  0,
				Size:    wgpu.WholeSize,
			}
		}
	}
	return entries, nil
}

func (p *bindGroupProvider) Release() {
	if p.bindGroup != nil {
		p.bindGroup.Release()
		p.bindGroup = nil
	}
	for i, tv := range p.textureViews {
		if tv != nil && !p.borrowed[i] {
			tv.Release()
		}
		delete(p.textureViews, i)
	}
	for i, s := range p.samplers {
		if s != nil && !p.borrowed[i] {
			s.Release()
		}
		delete(p.samplers, i)
	}
	for i, buf := range p.buffers {
		if buf != nil && !p.borrowed[i] {
			buf.Release()
		}
		delete(p.buffers, i)
	}
	clear(p.borrowed)
}
