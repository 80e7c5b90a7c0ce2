package renderer

import (
	"github.com/Carmen-Shannon/oxy-compute/common"
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

// WGPUContextBuilderOption is a functional option applied to a context during construction via NewWGPUContext.
type WGPUContextBuilderOption func(*wgpuContext)

// WithWindow makes the context draw into a window surface. The drawing buffer takes the window's size
// and the surface's preferred texture format.
//
// Parameters:
//   - s: the surface to present to, typically a window.Window
//
// Returns:
//   - WGPUContextBuilderOption: a function that applies the window option to a context
func WithWindow(s Surface) WGPUContextBuilderOption {
	return func(c *wgpuContext) {
		c.window = s
	}
}

// WithDrawingBufferSize sets the size of the offscreen drawing buffer of a headless context.
//
// Parameters:
//   - width: the width in pixels
//   - height: the height in pixels
//
// Returns:
//   - WGPUContextBuilderOption: a function that applies the size option to a context
func WithDrawingBufferSize(width, height int) WGPUContextBuilderOption {
	return func(c *wgpuContext) {
		c.width = width
		c.height = height
	}
}

// WithTextureFormat sets the format of the headless drawing buffer and the default format of created textures.
//
// Parameters:
//   - format: the texture format
//
// Returns:
//   - WGPUContextBuilderOption: a function that applies the format option to a context
func WithTextureFormat(format wgpu.TextureFormat) WGPUContextBuilderOption {
	return func(c *wgpuContext) {
		c.textureFormat = format
	}
}

// WithSampler configures the sampler bound to every sampler binding. Zero-valued fields keep the
// linear clamp-to-edge defaults.
//
// Parameters:
//   - data: the sampler configuration
//
// Returns:
//   - WGPUContextBuilderOption: a function that applies the sampler option to a context
func WithSampler(data common.SamplerStagingData) WGPUContextBuilderOption {
	return func(c *wgpuContext) {
		c.samplerData = data
	}
}

// WithForceSoftwareRenderer forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe).
//
// Parameters:
//   - force: true to force the software fallback adapter, false to use hardware (default)
//
// Returns:
//   - WGPUContextBuilderOption: a function that applies the force software renderer option to a context
func WithForceSoftwareRenderer(force bool) WGPUContextBuilderOption {
	return func(c *wgpuContext) {
		c.forceFallbackAdapter = force
	}
}

// WithLogger sets the logger the context reports lifecycle and resource events to.
//
// Parameters:
//   - logger: the zap logger, nil keeps the no-op default
//
// Returns:
//   - WGPUContextBuilderOption: a function that applies the logger option to a context
func WithLogger(logger *zap.Logger) WGPUContextBuilderOption {
	return func(c *wgpuContext) {
		if logger != nil {
			c.logger = logger.Named("renderer")
		}
	}
}
