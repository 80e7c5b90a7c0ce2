package bind_group_provider

import "github.com/cogentcore/webgpu/wgpu"

// BindGroupProviderOption is a functional option used to configure a BindGroupProvider during construction.
type BindGroupProviderOption func(*bindGroupProvider)

// WithGroup sets the bind group index the provider is bound at.
//
// Parameters:
//   - group: the @group index
//
// Returns:
//   - BindGroupProviderOption: a function that sets the group for this provider
func WithGroup(group int) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.group = group
	}
}

// WithBorrowedBuffers stores buffers owned elsewhere, keyed by binding index.
//
// Parameters:
//   - buffers: a map of binding indices to buffers that Release must not release
//
// Returns:
//   - BindGroupProviderOption: a function that stores the borrowed buffers on this provider
func WithBorrowedBuffers(buffers map[int]*wgpu.Buffer) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		for binding, buf := range buffers {
			p.buffers[binding] = buf
			p.borrowed[binding] = true
		}
	}
}
