// package common contains plain value types shared by the compute engine and the graphics context.
// They are not interface-wrapped structs, just plain structs that express commonly used data-types.
package common

import "github.com/cogentcore/webgpu/wgpu"

// BoundingRectangle is an axis-aligned pixel rectangle, used for viewports.
type BoundingRectangle struct {
	X, Y          int
	Width, Height int
}

// NewViewport returns a rectangle anchored at the origin with the given size.
func NewViewport(width, height int) BoundingRectangle {
	return BoundingRectangle{Width: width, Height: height}
}

// Empty reports whether the rectangle covers no pixels.
func (r BoundingRectangle) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// TextureStagingData holds pixel data for a texture pending GPU upload.
// Pixels may be nil, in which case the texture is allocated uninitialized.
type TextureStagingData struct {
	// Pixels is the raw pixel data in the texture's pixel format, row-major.
	Pixels []byte
	// Width is the width of the texture in pixels.
	Width uint32
	// Height is the height of the texture in pixels.
	Height uint32
}

// SamplerStagingData holds the configuration for a sampler pending GPU creation.
// Zero-valued fields fall back to linear filtering and clamp-to-edge addressing.
type SamplerStagingData struct {
	// AddressModeU, AddressModeV, AddressModeW specify the addressing mode for texture coordinates outside the [0, 1] range.
	AddressModeU, AddressModeV, AddressModeW wgpu.AddressMode
	// MagFilter and MinFilter specify the filtering mode for magnification and minification.
	MagFilter, MinFilter wgpu.FilterMode
	// MipmapFilter specifies the filtering mode for mipmap level selection.
	MipmapFilter wgpu.MipmapFilterMode
	// LodMinClamp and LodMaxClamp specify the minimum and maximum level of detail.
	LodMinClamp, LodMaxClamp float32
	// MaxAnisotropy specifies the maximum anisotropy level for anisotropic filtering.
	MaxAnisotropy uint16
}
