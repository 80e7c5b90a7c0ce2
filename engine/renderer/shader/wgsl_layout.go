package shader

import (
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-compute/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// primitiveLayouts holds size and alignment of the host-shareable WGSL built-in types.
//
// Reference: https://www.w3.org/TR/WGSL/#alignment-and-size
var primitiveLayouts = map[string]typeLayout{
	"f32":  {4, 4},
	"i32":  {4, 4},
	"u32":  {4, 4},
	"f16":  {2, 2},
	"bool": {4, 4},

	"vec2<f32>": {8, 8},
	"vec2f":     {8, 8},
	"vec3<f32>": {12, 16},
	"vec3f":     {12, 16},
	"vec4<f32>": {16, 16},
	"vec4f":     {16, 16},
	"vec2<i32>": {8, 8},
	"vec2i":     {8, 8},
	"vec3<i32>": {12, 16},
	"vec3i":     {12, 16},
	"vec4<i32>": {16, 16},
	"vec4i":     {16, 16},
	"vec2<u32>": {8, 8},
	"vec2u":     {8, 8},
	"vec3<u32>": {12, 16},
	"vec3u":     {12, 16},
	"vec4<u32>": {16, 16},
	"vec4u":     {16, 16},

	// matCxR: C columns of vecR, each column aligned like vecR.
	"mat2x2<f32>": {16, 8},
	"mat2x2f":     {16, 8},
	"mat3x3<f32>": {48, 16},
	"mat3x3f":     {48, 16},
	"mat4x4<f32>": {64, 16},
	"mat4x4f":     {64, 16},
	"mat2x4<f32>": {32, 16},
	"mat4x2<f32>": {32, 8},
	"mat3x4<f32>": {48, 16},
	"mat4x3<f32>": {64, 16},

	"atomic<u32>": {4, 4},
	"atomic<i32>": {4, 4},
}

// layoutOf resolves a type name against the built-ins, the resolved structs, and array<T[, N]>.
// A runtime-sized array resolves to one element stride.
//
// Parameters:
//   - typeName: the WGSL type, e.g. "vec4f", "Particle" or "array<Particle, 8>"
//   - structs: struct layouts resolved so far
//
// Returns:
//   - typeLayout: the size and alignment
//   - bool: false if the type is unknown
func layoutOf(typeName string, structs map[string]structLayout) (typeLayout, bool) {
	if l, ok := primitiveLayouts[typeName]; ok {
		return l, true
	}
	if sl, ok := structs[typeName]; ok {
		return sl.typeLayout, true
	}
	if !strings.HasPrefix(typeName, "array<") || !strings.HasSuffix(typeName, ">") {
		return typeLayout{}, false
	}

	elemName, countStr, fixed := strings.Cut(typeName[len("array<"):len(typeName)-1], ",")
	elem, ok := layoutOf(strings.TrimSpace(elemName), structs)
	if !ok {
		return typeLayout{}, false
	}
	stride := common.AlignUp(elem.align, elem.size)
	if !fixed {
		return typeLayout{stride, elem.align}, true
	}
	count, err := strconv.ParseUint(strings.TrimSpace(countStr), 10, 64)
	if err != nil {
		return typeLayout{}, false
	}
	return typeLayout{count * stride, elem.align}, true
}

// layoutStruct places each member at the next offset aligned for its type and rounds the
// total up to the largest member alignment. Builtin members are not part of buffer layouts.
//
// Parameters:
//   - s: the struct declaration
//   - structs: struct layouts resolved so far
//
// Returns:
//   - structLayout: the layout with member offsets
//   - bool: false if a member type cannot be resolved yet
func layoutStruct(s wgslStruct, structs map[string]structLayout) (structLayout, bool) {
	var offset uint64
	align := uint64(1)
	members := make([]Member, 0, len(s.fields))

	for i, f := range s.fields {
		if f.builtin {
			continue
		}
		fl, ok := layoutOf(f.typeName, structs)
		if !ok {
			return structLayout{}, false
		}
		offset = common.AlignUp(fl.align, offset)
		align = max(align, fl.align)

		runtime := isRuntimeArray(f.typeName)
		if runtime && i == len(s.fields)-1 {
			members = append(members, Member{Name: f.name, TypeName: f.typeName, Offset: offset, Size: fl.size})
			size := common.AlignUp(align, offset)
			if size == 0 {
				size = fl.size
			}
			return structLayout{typeLayout: typeLayout{size, align}, members: members, runtimeSized: true}, true
		}

		members = append(members, Member{Name: f.name, TypeName: f.typeName, Offset: offset, Size: fl.size})
		offset += fl.size
	}

	return structLayout{
		typeLayout: typeLayout{common.AlignUp(align, offset), align},
		members:    members,
	}, true
}

// resolveStructs lays out every struct, repeating passes until nested struct members resolve.
func resolveStructs(structs []wgslStruct) map[string]structLayout {
	resolved := make(map[string]structLayout, len(structs))
	pending := append([]wgslStruct(nil), structs...)
	for len(pending) > 0 {
		next := pending[:0]
		for _, s := range pending {
			if sl, ok := layoutStruct(s, resolved); ok {
				resolved[s.name] = sl
			} else {
				next = append(next, s)
			}
		}
		if len(next) == len(pending) {
			break
		}
		pending = next
	}
	return resolved
}

func isRuntimeArray(typeName string) bool {
	return strings.HasPrefix(typeName, "array<") && !strings.Contains(typeName, ",")
}

// classifyResource builds the layout entry for a declaration. Declarations with an address space
// are buffers. Handle declarations are samplers, storage textures or sampled textures.
//
// Parameters:
//   - binding: the @binding index
//   - visibility: the declaring stage
//   - addressSpace: e.g. "uniform" or "storage, read_write", empty for handle types
//   - typeName: the declared type
//
// Returns:
//   - wgpu.BindGroupLayoutEntry: the populated entry
func classifyResource(binding uint32, visibility wgpu.ShaderStage, addressSpace, typeName string) wgpu.BindGroupLayoutEntry {
	entry := wgpu.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: visibility,
	}

	switch {
	case addressSpace == "uniform":
		entry.Buffer.Type = wgpu.BufferBindingTypeUniform
	case strings.HasPrefix(addressSpace, "storage"):
		entry.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
		if strings.Contains(addressSpace, "read_write") {
			entry.Buffer.Type = wgpu.BufferBindingTypeStorage
		}
	case addressSpace != "":
	case typeName == "sampler":
		entry.Sampler.Type = wgpu.SamplerBindingTypeFiltering
	case typeName == "sampler_comparison":
		entry.Sampler.Type = wgpu.SamplerBindingTypeComparison
	case strings.HasPrefix(typeName, "texture_storage_"):
		base, params := splitTypeParams(typeName)
		entry.StorageTexture.ViewDimension = storageTextureDimensions[base]
		format, access, _ := strings.Cut(params, ",")
		entry.StorageTexture.Format = texelFormats[strings.TrimSpace(format)]
		entry.StorageTexture.Access = storageAccess[strings.TrimSpace(access)]
	case strings.HasPrefix(typeName, "texture_depth_"):
		shape := textureShapes[typeName]
		entry.Texture.SampleType = wgpu.TextureSampleTypeDepth
		entry.Texture.ViewDimension = shape.dimension
		entry.Texture.Multisampled = shape.multisampled
	case strings.HasPrefix(typeName, "texture_"):
		base, param := splitTypeParams(typeName)
		shape := textureShapes[base]
		entry.Texture.ViewDimension = shape.dimension
		entry.Texture.Multisampled = shape.multisampled
		entry.Texture.SampleType = sampleTypes[param]
	}
	return entry
}

// splitTypeParams splits "texture_2d<f32>" into ("texture_2d", "f32").
func splitTypeParams(typeName string) (base, params string) {
	before, after, ok := strings.Cut(typeName, "<")
	if !ok {
		return typeName, ""
	}
	return before, strings.TrimSpace(strings.TrimSuffix(after, ">"))
}

// stripComments removes line comments and (possibly nested) block comments.
func stripComments(source string) string {
	var sb strings.Builder
	sb.Grow(len(source))
	depth := 0
	for i := 0; i < len(source); i++ {
		if i+1 < len(source) {
			switch {
			case source[i] == '/' && source[i+1] == '*':
				depth++
				i++
				continue
			case source[i] == '*' && source[i+1] == '/' && depth > 0:
				depth--
				i++
				continue
			case depth == 0 && source[i] == '/' && source[i+1] == '/':
				for i < len(source) && source[i] != '\n' {
					i++
				}
				if i < len(source) {
					sb.WriteByte('\n')
				}
				continue
			}
		}
		if depth == 0 {
			sb.WriteByte(source[i])
		}
	}
	return sb.String()
}

// splitTopLevel splits at commas outside angle brackets, so array<T, N> stays whole.
func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			depth++
		case '>':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}
