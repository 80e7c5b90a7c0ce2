package shader

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// vertexFormats maps WGSL vertex input types to wgpu vertex formats.
var vertexFormats = map[string]vertexFormat{
	"f32":       {wgpu.VertexFormatFloat32, 4},
	"vec2f":     {wgpu.VertexFormatFloat32x2, 8},
	"vec2<f32>": {wgpu.VertexFormatFloat32x2, 8},
	"vec3f":     {wgpu.VertexFormatFloat32x3, 12},
	"vec3<f32>": {wgpu.VertexFormatFloat32x3, 12},
	"vec4f":     {wgpu.VertexFormatFloat32x4, 16},
	"vec4<f32>": {wgpu.VertexFormatFloat32x4, 16},
	"i32":       {wgpu.VertexFormatSint32, 4},
	"vec2i":     {wgpu.VertexFormatSint32x2, 8},
	"vec2<i32>": {wgpu.VertexFormatSint32x2, 8},
	"vec3i":     {wgpu.VertexFormatSint32x3, 12},
	"vec3<i32>": {wgpu.VertexFormatSint32x3, 12},
	"vec4i":     {wgpu.VertexFormatSint32x4, 16},
	"vec4<i32>": {wgpu.VertexFormatSint32x4, 16},
	"u32":       {wgpu.VertexFormatUint32, 4},
	"vec2u":     {wgpu.VertexFormatUint32x2, 8},
	"vec2<u32>": {wgpu.VertexFormatUint32x2, 8},
	"vec3u":     {wgpu.VertexFormatUint32x3, 12},
	"vec3<u32>": {wgpu.VertexFormatUint32x3, 12},
	"vec4u":     {wgpu.VertexFormatUint32x4, 16},
	"vec4<u32>": {wgpu.VertexFormatUint32x4, 16},
}

var textureShapes = map[string]textureShape{
	"texture_1d":                    {wgpu.TextureViewDimension1D, false},
	"texture_2d":                    {wgpu.TextureViewDimension2D, false},
	"texture_2d_array":              {wgpu.TextureViewDimension2DArray, false},
	"texture_3d":                    {wgpu.TextureViewDimension3D, false},
	"texture_cube":                  {wgpu.TextureViewDimensionCube, false},
	"texture_cube_array":            {wgpu.TextureViewDimensionCubeArray, false},
	"texture_multisampled_2d":       {wgpu.TextureViewDimension2D, true},
	"texture_depth_2d":              {wgpu.TextureViewDimension2D, false},
	"texture_depth_2d_array":        {wgpu.TextureViewDimension2DArray, false},
	"texture_depth_cube":            {wgpu.TextureViewDimensionCube, false},
	"texture_depth_multisampled_2d": {wgpu.TextureViewDimension2D, true},
}

var storageTextureDimensions = map[string]wgpu.TextureViewDimension{
	"texture_storage_1d":       wgpu.TextureViewDimension1D,
	"texture_storage_2d":       wgpu.TextureViewDimension2D,
	"texture_storage_2d_array": wgpu.TextureViewDimension2DArray,
	"texture_storage_3d":       wgpu.TextureViewDimension3D,
}

var sampleTypes = map[string]wgpu.TextureSampleType{
	"f32": wgpu.TextureSampleTypeFloat,
	"i32": wgpu.TextureSampleTypeSint,
	"u32": wgpu.TextureSampleTypeUint,
}

var storageAccess = map[string]wgpu.StorageTextureAccess{
	"write":      wgpu.StorageTextureAccessWriteOnly,
	"read":       wgpu.StorageTextureAccessReadOnly,
	"read_write": wgpu.StorageTextureAccessReadWrite,
}

// texelFormats lists the formats WGSL accepts for storage textures.
var texelFormats = map[string]wgpu.TextureFormat{
	"rgba8unorm":  wgpu.TextureFormatRGBA8Unorm,
	"rgba8snorm":  wgpu.TextureFormatRGBA8Snorm,
	"rgba8uint":   wgpu.TextureFormatRGBA8Uint,
	"rgba8sint":   wgpu.TextureFormatRGBA8Sint,
	"rgba16uint":  wgpu.TextureFormatRGBA16Uint,
	"rgba16sint":  wgpu.TextureFormatRGBA16Sint,
	"rgba16float": wgpu.TextureFormatRGBA16Float,
	"r32uint":     wgpu.TextureFormatR32Uint,
	"r32sint":     wgpu.TextureFormatR32Sint,
	"r32float":    wgpu.TextureFormatR32Float,
	"rg32uint":    wgpu.TextureFormatRG32Uint,
	"rg32sint":    wgpu.TextureFormatRG32Sint,
	"rg32float":   wgpu.TextureFormatRG32Float,
	"rgba32uint":  wgpu.TextureFormatRGBA32Uint,
	"rgba32sint":  wgpu.TextureFormatRGBA32Sint,
	"rgba32float": wgpu.TextureFormatRGBA32Float,
	"bgra8unorm":  wgpu.TextureFormatBGRA8Unorm,
}

var (
	structRegex   = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)
	locationRegex = regexp.MustCompile(`@location\((\d+)\)`)
	builtinRegex  = regexp.MustCompile(`@builtin\(\w+\)`)

	// fieldRegex captures the member name and its (possibly parameterized) type.
	fieldRegex = regexp.MustCompile(`(?:@\w+\([^)]*\)\s*)*(\w+)\s*:\s*(.+)`)

	entryRegexes = map[Stage]*regexp.Regexp{
		StageVertex:   regexp.MustCompile(`(?s)@vertex\b.*?\bfn\s+(\w+)`),
		StageFragment: regexp.MustCompile(`(?s)@fragment\b.*?\bfn\s+(\w+)`),
		StageCompute:  regexp.MustCompile(`(?s)@compute\b.*?\bfn\s+(\w+)`),
	}

	workgroupSizeRegex = regexp.MustCompile(`@workgroup_size\(\s*(\d+)\s*(?:,\s*(\d+)\s*(?:,\s*(\d+)\s*)?)?\)`)

	// bindingRegex matches `@group(G) @binding(B) var<space> name: T;` and the handle form without <space>.
	bindingRegex = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+?)\s*;`)
)

// parseEntryPoint returns the name of the first function tagged with the stage attribute,
// or an empty string when there is none.
func parseEntryPoint(source string, stage Stage) string {
	re, ok := entryRegexes[stage]
	if !ok {
		return ""
	}
	if match := re.FindStringSubmatch(stripComments(source)); match != nil {
		return match[1]
	}
	return ""
}

// parseWorkgroupSize reads @workgroup_size(x[, y[, z]]). Missing dimensions are 1.
//
// Parameters:
//   - source: the WGSL source
//
// Returns:
//   - [3]uint32: the workgroup size, [1, 1, 1] when the attribute is absent
func parseWorkgroupSize(source string) [3]uint32 {
	size := [3]uint32{1, 1, 1}
	match := workgroupSizeRegex.FindStringSubmatch(stripComments(source))
	if match == nil {
		return size
	}
	for i := range 3 {
		if match[i+1] == "" {
			continue
		}
		if v, err := strconv.ParseUint(match[i+1], 10, 32); err == nil && v > 0 {
			size[i] = uint32(v)
		}
	}
	return size
}

// parseVertexLayouts builds one vertex buffer layout per vertex input struct, in declaration order.
// A vertex input struct has @location members and no @builtin member. Structs with a member
// type that is not a valid vertex format are skipped.
func parseVertexLayouts(source string) []wgpu.VertexBufferLayout {
	var layouts []wgpu.VertexBufferLayout
	for _, s := range parseStructs(stripComments(source)) {
		if !isVertexInput(s) {
			continue
		}
		if layout, ok := vertexBufferLayout(s); ok {
			layouts = append(layouts, layout)
		}
	}
	return layouts
}

// parseBindings reflects every resource declaration in the source. Buffer bindings typed by
// a struct carry the struct's member offsets, and MinBindingSize is set when the bound type
// resolves.
//
// Parameters:
//   - source: the WGSL source
//   - visibility: the stage flag applied to every layout entry
//
// Returns:
//   - []Binding: bindings sorted by group, then binding
func parseBindings(source string, visibility wgpu.ShaderStage) []Binding {
	cleaned := stripComments(source)
	layouts := resolveStructs(parseStructs(cleaned))

	var bindings []Binding
	for _, match := range bindingRegex.FindAllStringSubmatch(cleaned, -1) {
		group, _ := strconv.Atoi(match[1])
		index, _ := strconv.Atoi(match[2])
		b := Binding{
			Group:        group,
			Binding:      index,
			AddressSpace: strings.TrimSpace(match[3]),
			Name:         match[4],
			TypeName:     strings.TrimSpace(match[5]),
		}
		b.Entry = classifyResource(uint32(index), visibility, b.AddressSpace, b.TypeName)

		if b.Entry.Buffer.Type != wgpu.BufferBindingTypeUndefined {
			if sl, ok := layouts[b.TypeName]; ok {
				b.Size = sl.size
				b.Members = sl.members
			} else if tl, ok := layoutOf(b.TypeName, layouts); ok {
				b.Size = tl.size
			}
			b.Entry.Buffer.MinBindingSize = b.Size
		}
		bindings = append(bindings, b)
	}

	sort.SliceStable(bindings, func(i, j int) bool {
		if bindings[i].Group != bindings[j].Group {
			return bindings[i].Group < bindings[j].Group
		}
		return bindings[i].Binding < bindings[j].Binding
	})
	return bindings
}

// parseStructs finds every struct declaration in comment-free source.
func parseStructs(source string) []wgslStruct {
	matches := structRegex.FindAllStringSubmatch(source, -1)
	structs := make([]wgslStruct, 0, len(matches))
	for _, match := range matches {
		structs = append(structs, wgslStruct{
			name:   match[1],
			fields: parseFields(match[2]),
		})
	}
	return structs
}

// parseFields splits a struct body into members, keeping @location and @builtin attributes.
func parseFields(body string) []wgslField {
	lines := splitTopLevel(body)
	fields := make([]wgslField, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fm := fieldRegex.FindStringSubmatch(line)
		if fm == nil {
			continue
		}
		f := wgslField{
			name:     fm[1],
			typeName: strings.TrimSpace(fm[2]),
			location: -1,
			builtin:  builtinRegex.MatchString(line),
		}
		if loc := locationRegex.FindStringSubmatch(line); loc != nil {
			f.location, _ = strconv.Atoi(loc[1])
		}
		fields = append(fields, f)
	}
	return fields
}

func isVertexInput(s wgslStruct) bool {
	located := false
	for _, f := range s.fields {
		if f.builtin {
			return false
		}
		if f.location >= 0 {
			located = true
		}
	}
	return located
}

// vertexBufferLayout packs the struct's members tightly in declaration order.
func vertexBufferLayout(s wgslStruct) (wgpu.VertexBufferLayout, bool) {
	attrs := make([]wgpu.VertexAttribute, 0, len(s.fields))
	var offset uint64
	for _, f := range s.fields {
		vf, ok := vertexFormats[f.typeName]
		if !ok || f.location < 0 {
			return wgpu.VertexBufferLayout{}, false
		}
		attrs = append(attrs, wgpu.VertexAttribute{
			Format:         vf.format,
			Offset:         offset,
			ShaderLocation: uint32(f.location),
		})
		offset += vf.size
	}
	return wgpu.VertexBufferLayout{
		ArrayStride: offset,
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes:  attrs,
	}, true
}
