package shader

import (
	"errors"
	"fmt"
	"sort"

	"github.com/cogentcore/webgpu/wgpu"
)

// Stage identifies the pipeline stage a WGSL module is reflected for.
type Stage int

const (
	// StageCompute indicates a module containing a @compute entry point.
	StageCompute Stage = iota

	// StageVertex indicates a module containing a @vertex entry point.
	StageVertex

	// StageFragment indicates a module containing a @fragment entry point.
	StageFragment
)

// String returns the WGSL attribute name of the stage.
func (s Stage) String() string {
	switch s {
	case StageCompute:
		return "compute"
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// Visibility returns the wgpu shader stage flag for bindings declared by this stage.
func (s Stage) Visibility() wgpu.ShaderStage {
	switch s {
	case StageVertex:
		return wgpu.ShaderStageVertex
	case StageFragment:
		return wgpu.ShaderStageFragment
	case StageCompute:
		return wgpu.ShaderStageCompute
	default:
		return wgpu.ShaderStageNone
	}
}

var (
	// ErrEmptySource is returned when a module is created without WGSL source.
	ErrEmptySource = errors.New("shader: source is empty")

	// ErrEntryPointNotFound is returned when the source has no entry point for the requested stage.
	ErrEntryPointNotFound = errors.New("shader: entry point not found")
)

// Member is one field of a host-shareable struct with its resolved WGSL layout.
type Member struct {
	Name     string
	TypeName string
	Offset   uint64
	Size     uint64
}

// Binding is one `@group(G) @binding(B) var<...> name: T;` declaration.
type Binding struct {
	Group        int
	Binding      int
	Name         string
	AddressSpace string
	TypeName     string

	// Entry is the layout entry derived from the declaration, visible to the declaring stage.
	Entry wgpu.BindGroupLayoutEntry

	// Size is the resolved byte size of buffer bindings, 0 when unknown.
	Size uint64

	// Members holds the struct members of buffer bindings typed by a struct.
	Members []Member
}

// IsUniformBuffer reports whether the binding is a var<uniform>.
func (b Binding) IsUniformBuffer() bool {
	return b.Entry.Buffer.Type == wgpu.BufferBindingTypeUniform
}

// IsStorageBuffer reports whether the binding is a var<storage>, with writable reporting read_write access.
func (b Binding) IsStorageBuffer() (storage, writable bool) {
	switch b.Entry.Buffer.Type {
	case wgpu.BufferBindingTypeStorage:
		return true, true
	case wgpu.BufferBindingTypeReadOnlyStorage:
		return true, false
	}
	return false, false
}

// IsTexture reports whether the binding is a sampled texture.
func (b Binding) IsTexture() bool {
	return b.Entry.Texture.SampleType != wgpu.TextureSampleTypeUndefined
}

// IsSampler reports whether the binding is a sampler.
func (b Binding) IsSampler() bool {
	return b.Entry.Sampler.Type != wgpu.SamplerBindingTypeUndefined
}

// module is the implementation of the Module interface.
// It holds the reflected data needed to build pipelines and bind groups for one stage.
type module struct {
	key           string
	source        string
	stage         Stage
	entryPoint    string
	workGroupSize [3]uint32
	vertexLayouts []wgpu.VertexBufferLayout
	bindings      []Binding
	descriptor    *wgpu.ShaderModuleDescriptor
}

// Module is a WGSL source reflected for a single pipeline stage. It exposes the entry point,
// the vertex input layouts (vertex stage), the workgroup size (compute stage) and every resource
// binding with its layout entry, so pipelines and bind groups can be created without
// hand-written layout descriptors.
type Module interface {
	// Key returns the unique identifier of the module, used as its GPU debug label.
	Key() string

	// Source returns the WGSL source code.
	Source() string

	// Stage returns the stage the module was reflected for.
	Stage() Stage

	// EntryPoint returns the name of the stage's entry point function.
	EntryPoint() string

	// WorkgroupSize returns the @workgroup_size of a compute entry point.
	// Returns [0, 0, 0] for non-compute modules and [1, 1, 1] when unspecified.
	WorkgroupSize() [3]uint32

	// VertexLayouts returns the vertex buffer layouts of a vertex module's input structs.
	VertexLayouts() []wgpu.VertexBufferLayout

	// Bindings returns all resource bindings ordered by group, then binding.
	Bindings() []Binding

	// BindingByName returns the binding whose variable name matches name.
	//
	// Parameters:
	//   - name: the WGSL variable name
	//
	// Returns:
	//   - Binding: the matching binding
	//   - bool: false if no binding uses that name
	BindingByName(name string) (Binding, bool)

	// BindGroupLayoutDescriptors returns the layout descriptors keyed by group index.
	BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor

	// Descriptor returns the wgpu shader module descriptor for this source.
	Descriptor() *wgpu.ShaderModuleDescriptor
}

var _ Module = &module{}

// NewModule reflects WGSL source for the given stage.
//
// Parameters:
//   - key: a unique identifier for the module, used for labels and lookups
//   - stage: the stage whose entry point must be present
//   - source: the WGSL source code
//
// Returns:
//   - Module: the reflected module
//   - error: ErrEmptySource or ErrEntryPointNotFound
func NewModule(key string, stage Stage, source string) (Module, error) {
	if source == "" {
		return nil, fmt.Errorf("%s: %w", key, ErrEmptySource)
	}
	m := &module{
		key:    key,
		source: source,
		stage:  stage,
		descriptor: &wgpu.ShaderModuleDescriptor{
			Label: key,
			WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
				Code: source,
			},
		},
	}
	m.entryPoint = parseEntryPoint(source, stage)
	if m.entryPoint == "" {
		return nil, fmt.Errorf("%s: @%s: %w", key, stage, ErrEntryPointNotFound)
	}
	switch stage {
	case StageVertex:
		m.vertexLayouts = parseVertexLayouts(source)
	case StageCompute:
		m.workGroupSize = parseWorkgroupSize(source)
	}
	m.bindings = parseBindings(source, stage.Visibility())
	return m, nil
}

func (m *module) Key() string {
	return m.key
}

func (m *module) Source() string {
	return m.source
}

func (m *module) Stage() Stage {
	return m.stage
}

func (m *module) EntryPoint() string {
	return m.entryPoint
}

func (m *module) WorkgroupSize() [3]uint32 {
	return m.workGroupSize
}

func (m *module) VertexLayouts() []wgpu.VertexBufferLayout {
	return m.vertexLayouts
}

func (m *module) Bindings() []Binding {
	return m.bindings
}

func (m *module) BindingByName(name string) (Binding, bool) {
	for _, b := range m.bindings {
		if b.Name == name {
			return b, true
		}
	}
	return Binding{}, false
}

func (m *module) BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor {
	groups := make(map[int][]wgpu.BindGroupLayoutEntry)
	for _, b := range m.bindings {
		groups[b.Group] = append(groups[b.Group], b.Entry)
	}
	result := make(map[int]wgpu.BindGroupLayoutDescriptor, len(groups))
	for g, entries := range groups {
		result[g] = wgpu.BindGroupLayoutDescriptor{Entries: entries}
	}
	return result
}

func (m *module) Descriptor() *wgpu.ShaderModuleDescriptor {
	return m.descriptor
}

// MergeBindGroupLayouts merges the layout descriptors of two stages sharing a pipeline.
// Entries declared by both stages at the same binding have their visibility OR-ed together.
// Entries in each returned descriptor are sorted by binding index.
//
// Parameters:
//   - a, b: per-group layout descriptors of the two stages
//
// Returns:
//   - map[int]wgpu.BindGroupLayoutDescriptor: the merged descriptors keyed by group index
func MergeBindGroupLayouts(a, b map[int]wgpu.BindGroupLayoutDescriptor) map[int]wgpu.BindGroupLayoutDescriptor {
	byGroup := make(map[int]map[uint32]wgpu.BindGroupLayoutEntry)
	add := func(layouts map[int]wgpu.BindGroupLayoutDescriptor) {
		for g, desc := range layouts {
			if byGroup[g] == nil {
				byGroup[g] = make(map[uint32]wgpu.BindGroupLayoutEntry)
			}
			for _, e := range desc.Entries {
				if existing, ok := byGroup[g][e.Binding]; ok {
					existing.Visibility |= e.Visibility
					byGroup[g][e.Binding] = existing
				} else {
					byGroup[g][e.Binding] = e
				}
			}
		}
	}
	add(a)
	add(b)

	merged := make(map[int]wgpu.BindGroupLayoutDescriptor, len(byGroup))
	for g, entryMap := range byGroup {
		entries := make([]wgpu.BindGroupLayoutEntry, 0, len(entryMap))
		for _, e := range entryMap {
			entries = append(entries, e)
		}
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].Binding < entries[j].Binding
		})
		merged[g] = wgpu.BindGroupLayoutDescriptor{Entries: entries}
	}
	return merged
}
