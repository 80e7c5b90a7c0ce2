package renderer

import (
	"github.com/Carmen-Shannon/oxy-compute/common"
	"github.com/go-gl/mathgl/mgl32"
)

// ViewportQuadVS is the vertex stage of every viewport-quad program. It passes the quad's
// texture coordinates to the fragment stage at @location(0), so a fragment source only needs
//
//	@fragment
//	fn main(@location(0) v_textureCoordinates: vec2f) -> @location(0) vec4f
//
// to receive the coordinate of the texel it is computing.
const ViewportQuadVS = `
struct ViewportQuadInput {
    @location(0) position: vec2f,
    @location(1) textureCoordinates: vec2f,
}

struct ViewportQuadOutput {
    @builtin(position) position: vec4f,
    @location(0) v_textureCoordinates: vec2f,
}

@vertex
fn main(in: ViewportQuadInput) -> ViewportQuadOutput {
    var out: ViewportQuadOutput;
    out.position = vec4f(in.position, 0.0, 1.0);
    out.v_textureCoordinates = in.textureCoordinates;
    return out;
}
`

// ViewportQuadAttributeLocations returns the attribute locations viewport-quad programs are linked with.
func ViewportQuadAttributeLocations() map[string]int {
	return map[string]int{
		"position":           0,
		"textureCoordinates": 1,
	}
}

// viewportQuadIndices draws the quad as two counter-clockwise triangles.
var viewportQuadIndices = []uint16{0, 1, 2, 0, 2, 3}

// viewportQuadVertices returns the interleaved position and texture coordinate of each corner.
// Framebuffer row 0 is the top of clip space, so v runs from 0 at the top to 1 at the bottom
// and a fragment's coordinate addresses the texel it writes.
func viewportQuadVertices() []byte {
	corners := []struct {
		position, textureCoordinates mgl32.Vec2
	}{
		{mgl32.Vec2{-1, -1}, mgl32.Vec2{0, 1}},
		{mgl32.Vec2{1, -1}, mgl32.Vec2{1, 1}},
		{mgl32.Vec2{1, 1}, mgl32.Vec2{1, 0}},
		{mgl32.Vec2{-1, 1}, mgl32.Vec2{0, 0}},
	}
	data := make([]float32, 0, len(corners)*4)
	for _, c := range corners {
		data = append(data, c.position[:]...)
		data = append(data, c.textureCoordinates[:]...)
	}
	return common.SliceToBytes(data)
}
