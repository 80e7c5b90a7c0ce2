package compute

import (
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer"
	"github.com/google/uuid"
)

// CommandBuilderOption is a functional option applied to a Command during construction.
// Each option replaces one field outright.
type CommandBuilderOption func(*Command)

// NewComputeCommand creates a texture-output command. Defaults: Pass COMPUTE, Persists false.
// PrimitiveType is left at POINTS so adding transform feedback buffers yields a POINTS draw.
//
// Parameters:
//   - options: a variadic list of CommandBuilderOption functions applied after the defaults
//
// Returns:
//   - *Command: the new command
func NewComputeCommand(options ...CommandBuilderOption) *Command {
	c := &Command{
		ID:       uuid.NewString(),
		Pass:     PassCompute,
		Persists: false,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// NewTransformFeedbackCommand creates a transform feedback command. Defaults: PrimitiveType POINTS,
// Pass COMPUTE, Persists true, and an empty buffer map so the command is in transform feedback mode.
//
// Parameters:
//   - options: a variadic list of CommandBuilderOption functions applied after the defaults
//
// Returns:
//   - *Command: the new command
func NewTransformFeedbackCommand(options ...CommandBuilderOption) *Command {
	c := &Command{
		ID:                       uuid.NewString(),
		PrimitiveType:            renderer.PrimitiveTypePoints,
		Pass:                     PassCompute,
		Persists:                 true,
		TransformFeedbackBuffers: renderer.NewTransformFeedbackBuffers(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// WithID replaces the generated command ID.
func WithID(id string) CommandBuilderOption {
	return func(c *Command) {
		c.ID = id
	}
}

// WithShaderProgram sets a caller-owned shader program.
//
// Parameters:
//   - p: the program to draw with; the engine never destroys it
//
// Returns:
//   - CommandBuilderOption: a function that applies the program option to a command
func WithShaderProgram(p renderer.ShaderProgram) CommandBuilderOption {
	return func(c *Command) {
		c.ShaderProgram = p
	}
}

// WithFragmentShaderSource sets the fragment source of the viewport-quad program the engine builds.
//
// Parameters:
//   - source: the fragment shader source
//
// Returns:
//   - CommandBuilderOption: a function that applies the source option to a command
func WithFragmentShaderSource(source string) CommandBuilderOption {
	return func(c *Command) {
		c.FragmentShaderSource = source
	}
}

// WithVertexArray sets a caller-owned vertex array.
//
// Parameters:
//   - va: the vertex array to draw; the engine never destroys it
//
// Returns:
//   - CommandBuilderOption: a function that applies the vertex array option to a command
func WithVertexArray(va renderer.VertexArray) CommandBuilderOption {
	return func(c *Command) {
		c.VertexArray = va
	}
}

// WithUniformMap sets the uniforms passed to the draw.
//
// Parameters:
//   - uniforms: the uniform name to value function map
//
// Returns:
//   - CommandBuilderOption: a function that applies the uniform map option to a command
func WithUniformMap(uniforms renderer.UniformMap) CommandBuilderOption {
	return func(c *Command) {
		c.UniformMap = uniforms
	}
}

// WithOutputTexture sets the texture a texture-output command writes.
//
// Parameters:
//   - t: the output texture
//
// Returns:
//   - CommandBuilderOption: a function that applies the output texture option to a command
func WithOutputTexture(t renderer.Texture) CommandBuilderOption {
	return func(c *Command) {
		c.OutputTexture = t
	}
}

// WithTransformFeedbackBuffers replaces the varying to buffer map. A nil map turns the command
// into a texture-output command.
//
// Parameters:
//   - buffers: the ordered varying name to buffer map
//
// Returns:
//   - CommandBuilderOption: a function that applies the buffers option to a command
func WithTransformFeedbackBuffers(buffers *renderer.TransformFeedbackBuffers) CommandBuilderOption {
	return func(c *Command) {
		c.TransformFeedbackBuffers = buffers
	}
}

// WithTransformFeedbackBuffer appends one captured varying, creating the map if needed.
// Varyings are captured in the order they are added.
//
// Parameters:
//   - varying: the output variable name
//   - buf: the buffer receiving it
//
// Returns:
//   - CommandBuilderOption: a function that applies the buffer option to a command
func WithTransformFeedbackBuffer(varying string, buf renderer.Buffer) CommandBuilderOption {
	return func(c *Command) {
		if c.TransformFeedbackBuffers == nil {
			c.TransformFeedbackBuffers = renderer.NewTransformFeedbackBuffers()
		}
		c.TransformFeedbackBuffers.Add(varying, buf)
	}
}

// WithPrimitiveType sets the primitive type of a transform feedback draw.
func WithPrimitiveType(pt renderer.PrimitiveType) CommandBuilderOption {
	return func(c *Command) {
		c.PrimitiveType = pt
	}
}

// WithPersists sets whether an engine-built program outlives the execution.
func WithPersists(persists bool) CommandBuilderOption {
	return func(c *Command) {
		c.Persists = persists
	}
}

// WithPass sets the pass category.
func WithPass(p Pass) CommandBuilderOption {
	return func(c *Command) {
		c.Pass = p
	}
}

// WithPreExecute sets the hook run before validation.
//
// Parameters:
//   - fn: the hook, receiving the command itself
//
// Returns:
//   - CommandBuilderOption: a function that applies the hook option to a command
func WithPreExecute(fn func(cmd *Command)) CommandBuilderOption {
	return func(c *Command) {
		c.PreExecute = fn
	}
}

// WithPostExecute sets the hook receiving the output after a successful execution.
//
// Parameters:
//   - fn: the hook
//
// Returns:
//   - CommandBuilderOption: a function that applies the hook option to a command
func WithPostExecute(fn func(out Output)) CommandBuilderOption {
	return func(c *Command) {
		c.PostExecute = fn
	}
}
