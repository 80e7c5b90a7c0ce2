package renderer

import "github.com/go-gl/mathgl/mgl32"

// DrawCommand is one draw call. It renders into Framebuffer, or, when TransformFeedbackBuffers
// is set, captures the program's varyings into those buffers instead of rasterizing.
type DrawCommand struct {
	PrimitiveType PrimitiveType
	VertexArray   VertexArray
	RenderState   *RenderState
	ShaderProgram ShaderProgram
	UniformMap    UniformMap
	Framebuffer   Framebuffer

	TransformFeedbackBuffers *TransformFeedbackBuffers

	// Count limits the number of vertices (or indices) drawn; 0 draws all of them.
	Count int
}

// NewDrawCommand returns a draw command for the given primitive type.
func NewDrawCommand(primitiveType PrimitiveType) *DrawCommand {
	return &DrawCommand{PrimitiveType: primitiveType}
}

// Execute issues the command on ctx.
func (c *DrawCommand) Execute(ctx Context) error {
	return ctx.Draw(c)
}

// Reset drops every resource reference and restores the triangle primitive type.
func (c *DrawCommand) Reset() {
	*c = DrawCommand{PrimitiveType: PrimitiveTypeTriangles}
}

// ClearCommand clears the color attachments of Framebuffer to Color.
type ClearCommand struct {
	Color       mgl32.Vec4
	Framebuffer Framebuffer
	RenderState *RenderState
}

// NewClearCommand returns a clear command for the given RGBA color.
func NewClearCommand(color mgl32.Vec4) *ClearCommand {
	return &ClearCommand{Color: color}
}

// Execute issues the command on ctx.
func (c *ClearCommand) Execute(ctx Context) error {
	return ctx.Clear(c)
}

// Reset drops the framebuffer and render state, keeping the color.
func (c *ClearCommand) Reset() {
	c.Framebuffer = nil
	c.RenderState = nil
}
