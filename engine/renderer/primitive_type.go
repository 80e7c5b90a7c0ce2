package renderer

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// PrimitiveType is the primitive assembly mode of a draw. Values follow the GL enumeration.
type PrimitiveType int

const (
	PrimitiveTypePoints PrimitiveType = iota
	PrimitiveTypeLines
	PrimitiveTypeLineLoop
	PrimitiveTypeLineStrip
	PrimitiveTypeTriangles
	PrimitiveTypeTriangleStrip
	PrimitiveTypeTriangleFan
)

var primitiveTypeNames = [...]string{
	PrimitiveTypePoints:        "POINTS",
	PrimitiveTypeLines:         "LINES",
	PrimitiveTypeLineLoop:      "LINE_LOOP",
	PrimitiveTypeLineStrip:     "LINE_STRIP",
	PrimitiveTypeTriangles:     "TRIANGLES",
	PrimitiveTypeTriangleStrip: "TRIANGLE_STRIP",
	PrimitiveTypeTriangleFan:   "TRIANGLE_FAN",
}

func (p PrimitiveType) String() string {
	if p < 0 || int(p) >= len(primitiveTypeNames) {
		return fmt.Sprintf("PrimitiveType(%d)", int(p))
	}
	return primitiveTypeNames[p]
}

// Topology maps the primitive type to a WebGPU topology. Loops and fans have no WebGPU
// equivalent and report false.
//
// Returns:
//   - wgpu.PrimitiveTopology: the matching topology
//   - bool: false if WebGPU cannot draw this primitive type
func (p PrimitiveType) Topology() (wgpu.PrimitiveTopology, bool) {
	switch p {
	case PrimitiveTypePoints:
		return wgpu.PrimitiveTopologyPointList, true
	case PrimitiveTypeLines:
		return wgpu.PrimitiveTopologyLineList, true
	case PrimitiveTypeLineStrip:
		return wgpu.PrimitiveTopologyLineStrip, true
	case PrimitiveTypeTriangles:
		return wgpu.PrimitiveTopologyTriangleList, true
	case PrimitiveTypeTriangleStrip:
		return wgpu.PrimitiveTopologyTriangleStrip, true
	default:
		return wgpu.PrimitiveTopologyTriangleList, false
	}
}
