package renderer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-compute/common"
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/shader"
	"github.com/go-gl/mathgl/mgl32"
)

var (
	// ErrUnsupportedUniform is returned for uniform values that cannot be written to a buffer.
	ErrUnsupportedUniform = errors.New("renderer: unsupported uniform value")

	// ErrUniformSize is returned when an encoded uniform does not fit the member it is written to.
	ErrUniformSize = errors.New("renderer: uniform size mismatch")
)

// UniformFunc returns the current value of a uniform. It is called once per draw.
//
// Supported values are float32, float64, int, int32, uint32, bool, mgl32 vectors and square
// matrices, []float32, raw []byte, and Texture for texture bindings.
type UniformFunc func() any

// UniformMap maps uniform names to the functions producing their values.
type UniformMap map[string]UniformFunc

// Value evaluates the uniform called name.
//
// Parameters:
//   - name: the uniform name
//
// Returns:
//   - any: the value, nil if the function returned nil
//   - bool: false if the map has no such uniform
func (m UniformMap) Value(name string) (any, bool) {
	fn, ok := m[name]
	if !ok || fn == nil {
		return nil, false
	}
	return fn(), true
}

// PackUniformBuffer lays out the uniform values for a uniform buffer binding. Struct bindings
// take one uniform per member name; other bindings take the uniform named like the variable.
// A []byte uniform named like the variable is copied verbatim. Missing members stay zero.
//
// Parameters:
//   - b: the reflected binding
//   - uniforms: the uniform map of the draw
//
// Returns:
//   - []byte: the buffer contents, padded to 16 bytes
//   - error: ErrUnsupportedUniform or ErrUniformSize
func PackUniformBuffer(b shader.Binding, uniforms UniformMap) ([]byte, error) {
	data := make([]byte, common.AlignUp(16, max(b.Size, 16)))

	if v, ok := uniforms.Value(b.Name); ok {
		if raw, isRaw := v.([]byte); isRaw {
			if uint64(len(raw)) > uint64(len(data)) {
				return nil, fmt.Errorf("%s: %d bytes into %d: %w", b.Name, len(raw), len(data), ErrUniformSize)
			}
			copy(data, raw)
			return data, nil
		}
		if len(b.Members) == 0 {
			encoded, err := encodeUniform(v, b.TypeName)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", b.Name, err)
			}
			if uint64(len(encoded)) > uint64(len(data)) {
				return nil, fmt.Errorf("%s: %w", b.Name, ErrUniformSize)
			}
			copy(data, encoded)
			return data, nil
		}
	}

	for _, m := range b.Members {
		v, ok := uniforms.Value(m.Name)
		if !ok {
			continue
		}
		encoded, err := encodeUniform(v, m.TypeName)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", b.Name, m.Name, err)
		}
		if uint64(len(encoded)) > m.Size {
			return nil, fmt.Errorf("%s.%s: %d bytes into %d: %w", b.Name, m.Name, len(encoded), m.Size, ErrUniformSize)
		}
		copy(data[m.Offset:], encoded)
	}
	return data, nil
}

// encodeUniform converts a value to its host-shareable representation. Untyped Go numbers
// follow the WGSL scalar type of the destination.
func encodeUniform(value any, typeName string) ([]byte, error) {
	switch v := value.(type) {
	case float32:
		return common.SliceToBytes([]float32{v}), nil
	case float64:
		return common.SliceToBytes([]float32{float32(v)}), nil
	case int:
		switch {
		case strings.HasPrefix(typeName, "f"):
			return common.SliceToBytes([]float32{float32(v)}), nil
		case typeName == "u32":
			return common.SliceToBytes([]uint32{uint32(v)}), nil
		default:
			return common.SliceToBytes([]int32{int32(v)}), nil
		}
	case int32:
		return common.SliceToBytes([]int32{v}), nil
	case uint32:
		return common.SliceToBytes([]uint32{v}), nil
	case bool:
		var u uint32
		if v {
			u = 1
		}
		return common.SliceToBytes([]uint32{u}), nil
	case mgl32.Vec2:
		return common.SliceToBytes(v[:]), nil
	case mgl32.Vec3:
		return common.SliceToBytes(v[:]), nil
	case mgl32.Vec4:
		return common.SliceToBytes(v[:]), nil
	case mgl32.Mat2:
		return common.SliceToBytes(v[:]), nil
	case mgl32.Mat3:
		// mat3x3 columns are aligned like vec3, so each one is padded to 16 bytes.
		padded := make([]float32, 0, 12)
		for c := range 3 {
			padded = append(padded, v[c*3], v[c*3+1], v[c*3+2], 0)
		}
		return common.SliceToBytes(padded), nil
	case mgl32.Mat4:
		return common.SliceToBytes(v[:]), nil
	case []float32:
		return common.SliceToBytes(v), nil
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("%T: %w", value, ErrUnsupportedUniform)
	}
}
