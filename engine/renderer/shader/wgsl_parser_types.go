package shader

import "github.com/cogentcore/webgpu/wgpu"

// vertexFormat pairs a wgpu vertex format with its byte size.
type vertexFormat struct {
	format wgpu.VertexFormat
	size   uint64
}

// textureShape holds the view dimension and multisampled flag of a sampled texture type.
type textureShape struct {
	dimension    wgpu.TextureViewDimension
	multisampled bool
}

// typeLayout is the byte size and alignment of a host-shareable WGSL type.
type typeLayout struct {
	size  uint64
	align uint64
}

// structLayout is the resolved layout of a struct along with the placement of each member.
type structLayout struct {
	typeLayout
	members []Member

	// runtimeSized is set when the last member is a runtime-sized array.
	// size then holds the fixed prefix, or one element stride when there is no prefix.
	runtimeSized bool
}

// wgslField is one member line of a struct declaration.
type wgslField struct {
	name     string
	typeName string

	// location is the @location index, -1 when absent.
	location int
	builtin  bool
}

// wgslStruct is a struct declaration found in the source.
type wgslStruct struct {
	name   string
	fields []wgslField
}
