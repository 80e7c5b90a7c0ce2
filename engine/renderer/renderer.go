package renderer

import (
	"errors"

	"github.com/Carmen-Shannon/oxy-compute/common"
	"github.com/cogentcore/webgpu/wgpu"
)

var (
	// ErrContextDestroyed is returned by every operation of a destroyed context.
	ErrContextDestroyed = errors.New("renderer: context is destroyed")

	// ErrResourceDestroyed is returned when a destroyed resource is used or destroyed again.
	ErrResourceDestroyed = errors.New("renderer: resource is destroyed")

	// ErrUnsupportedDrawTarget is returned when a draw names no target the context can render into,
	// or combines targets and primitives the backend cannot express.
	ErrUnsupportedDrawTarget = errors.New("renderer: unsupported draw target")

	// ErrForeignResource is returned when a resource created by another context is passed in.
	ErrForeignResource = errors.New("renderer: resource belongs to another context")

	// ErrInvalidDescriptor is returned when a resource descriptor is incomplete.
	ErrInvalidDescriptor = errors.New("renderer: invalid descriptor")
)

// Context is the graphics context a compute engine runs its commands on. It owns the GPU device,
// the shared viewport quad, the render state cache and the shader program cache, creates the
// resources commands refer to, and executes draw and clear commands.
type Context interface {
	// ViewportQuadVertexArray returns the shared full-viewport quad. The context owns it;
	// callers must not destroy it.
	ViewportQuadVertexArray() VertexArray

	// ShaderProgramFromCache returns a handle to the program built from the descriptor, compiling
	// it on first use. Destroying the handle releases one reference.
	//
	// Parameters:
	//   - desc: the vertex and fragment sources and the attribute locations
	//
	// Returns:
	//   - ShaderProgram: a new handle to the cached program
	//   - error: if the sources fail reflection or compilation
	ShaderProgramFromCache(desc ShaderProgramDescriptor) (ShaderProgram, error)

	// RenderStates returns the context's render state cache.
	RenderStates() RenderStateCache

	// DrawingBufferSize returns the size of the default drawing buffer in pixels.
	DrawingBufferSize() (width, height int)

	// CreateFramebuffer creates a framebuffer over existing color textures.
	CreateFramebuffer(desc FramebufferDescriptor) (Framebuffer, error)

	// CreateTexture creates a texture usable as a color attachment and as a sampled texture.
	CreateTexture(desc TextureDescriptor) (Texture, error)

	// CreateBuffer creates a GPU buffer, optionally initialized with data.
	CreateBuffer(desc BufferDescriptor) (Buffer, error)

	// CreateVertexArray creates a vertex array from interleaved vertex data and optional indices.
	CreateVertexArray(desc VertexArrayDescriptor) (VertexArray, error)

	// Draw executes a draw command. The command names either a framebuffer or transform feedback buffers.
	Draw(cmd *DrawCommand) error

	// Clear executes a clear command on its framebuffer, or on the default drawing buffer when it has none.
	Clear(cmd *ClearCommand) error

	// IsDestroyed reports whether Destroy has been called.
	IsDestroyed() bool

	// Destroy releases every GPU object the context owns.
	Destroy() error
}

// Destroyable is implemented by every GPU resource handed out by a Context.
type Destroyable interface {
	// IsDestroyed reports whether Destroy has been called.
	IsDestroyed() bool

	// Destroy releases the resource. Destroying twice returns ErrResourceDestroyed.
	Destroy() error
}

// Texture is a 2D GPU texture.
type Texture interface {
	Destroyable
	Width() int
	Height() int
	PixelFormat() wgpu.TextureFormat
}

// Buffer is a GPU buffer, usable as a transform feedback target.
type Buffer interface {
	Destroyable
	SizeInBytes() uint64
}

// VertexArray is a set of vertices with an optional index list.
type VertexArray interface {
	Destroyable

	// VertexCount returns the number of vertices.
	VertexCount() int

	// IndexCount returns the number of indices, 0 when the array is not indexed.
	IndexCount() int
}

// Framebuffer is a set of color attachments a draw renders into.
type Framebuffer interface {
	Destroyable

	// ColorTextures returns the color attachments in attachment order.
	ColorTextures() []Texture

	// DestroyAttachments reports whether Destroy also destroys the color attachments.
	DestroyAttachments() bool
}

// ShaderProgram is a linked vertex and fragment program.
type ShaderProgram interface {
	Destroyable

	// Key identifies the compiled program; handles to the same cached program share a key.
	Key() string

	VertexShaderSource() string
	FragmentShaderSource() string

	// AttributeLocations returns the vertex attribute locations the program was linked with.
	AttributeLocations() map[string]int

	// TransformFeedbackVaryings returns the names of the outputs captured by transform feedback, in buffer order.
	TransformFeedbackVaryings() []string

	// SetTransformFeedbackVaryings sets the captured outputs for the next transform feedback draw.
	SetTransformFeedbackVaryings(varyings []string)
}

// ShaderProgramDescriptor describes a program to fetch from the shader cache.
type ShaderProgramDescriptor struct {
	VertexShaderSource   string
	FragmentShaderSource string
	AttributeLocations   map[string]int
}

// FramebufferDescriptor describes a framebuffer over existing textures.
type FramebufferDescriptor struct {
	ColorTextures []Texture

	// DestroyAttachments makes the framebuffer destroy its textures when it is destroyed.
	DestroyAttachments bool
}

// TextureDescriptor describes a texture. Data.Pixels may be nil for an uninitialized texture.
type TextureDescriptor struct {
	Label  string
	Data   common.TextureStagingData
	Format wgpu.TextureFormat
}

// BufferDescriptor describes a buffer. Size defaults to len(Data).
type BufferDescriptor struct {
	Label string
	Size  uint64
	Data  []byte
}

// VertexArrayDescriptor describes interleaved vertex data.
type VertexArrayDescriptor struct {
	Label       string
	Vertices    []byte
	VertexCount int
	Indices     []uint16
}
