package compute

import (
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer"
)

// CommandKind is the execution mode of a Command.
type CommandKind int

const (
	// CommandKindTexture renders a viewport quad into an output texture.
	CommandKindTexture CommandKind = iota

	// CommandKindTransformFeedback captures per-vertex outputs into named buffers.
	CommandKindTransformFeedback
)

func (k CommandKind) String() string {
	if k == CommandKindTransformFeedback {
		return "transform_feedback"
	}
	return "texture"
}

// Output is what a command produced. Texture is set for texture commands and Buffers for
// transform feedback commands. Both are the command's own references, not copies.
type Output struct {
	Texture renderer.Texture
	Buffers *renderer.TransformFeedbackBuffers
}

// Command describes one unit of GPU work. A command carrying TransformFeedbackBuffers is a
// transform feedback command; any other command writes OutputTexture.
//
// The engine never modifies a command; PreExecute is the only place it is changed during Execute.
type Command struct {
	// ID identifies the command in logs.
	ID string

	// ShaderProgram is used as is when set and is never destroyed by the engine.
	ShaderProgram renderer.ShaderProgram

	// FragmentShaderSource builds a viewport-quad program when ShaderProgram is nil.
	FragmentShaderSource string

	// VertexArray defaults to the context's viewport quad.
	VertexArray renderer.VertexArray

	UniformMap renderer.UniformMap

	OutputTexture            renderer.Texture
	TransformFeedbackBuffers *renderer.TransformFeedbackBuffers

	// PrimitiveType applies to transform feedback commands; texture commands always draw triangles.
	PrimitiveType renderer.PrimitiveType

	// Persists keeps a program built from FragmentShaderSource alive for the next execution.
	Persists bool

	Pass Pass

	// PreExecute runs before the command is validated and may fill in its resources.
	PreExecute func(cmd *Command)

	// PostExecute receives the output after a successful execution.
	PostExecute func(out Output)
}

// Kind reports the execution mode selected by the presence of TransformFeedbackBuffers.
func (c *Command) Kind() CommandKind {
	if c.TransformFeedbackBuffers != nil {
		return CommandKindTransformFeedback
	}
	return CommandKindTexture
}

// Output returns the output the command writes in its current mode.
func (c *Command) Output() Output {
	if c.Kind() == CommandKindTransformFeedback {
		return Output{Buffers: c.TransformFeedbackBuffers}
	}
	return Output{Texture: c.OutputTexture}
}

func (c *Command) validate() error {
	if c.ShaderProgram == nil && c.FragmentShaderSource == "" {
		return ErrMissingShader
	}
	if c.Kind() == CommandKindTexture && c.OutputTexture == nil {
		return ErrMissingOutputTexture
	}
	return nil
}
