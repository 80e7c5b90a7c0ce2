package renderer

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-compute/common"
	"github.com/cespare/xxhash/v2"
)

// ShaderFactory compiles the program for a descriptor. The key is the cache key of the descriptor.
type ShaderFactory[P ShaderProgram] func(key string, desc ShaderProgramDescriptor) (P, error)

type shaderCacheEntry[P ShaderProgram] struct {
	program    P
	references int
}

// ShaderCache compiles each distinct program once and hands out reference-counted handles to it.
// The underlying program is destroyed when the last handle is destroyed.
type ShaderCache[P ShaderProgram] struct {
	mu      *sync.Mutex
	factory ShaderFactory[P]
	entries map[string]*shaderCacheEntry[P]
}

// NewShaderCache creates a shader cache compiling programs with factory.
//
// Parameters:
//   - factory: the function compiling a program on a cache miss
//
// Returns:
//   - *ShaderCache[P]: an empty cache
func NewShaderCache[P ShaderProgram](factory ShaderFactory[P]) *ShaderCache[P] {
	return &ShaderCache[P]{
		mu:      &sync.Mutex{},
		factory: factory,
		entries: make(map[string]*shaderCacheEntry[P]),
	}
}

// ShaderCacheKey derives the cache key of a descriptor from both sources and the sorted attribute locations.
//
// Parameters:
//   - desc: the program descriptor
//
// Returns:
//   - string: a hex digest identifying the program
func ShaderCacheKey(desc ShaderProgramDescriptor) string {
	var sb strings.Builder
	sb.WriteString(desc.VertexShaderSource)
	sb.WriteByte(0)
	sb.WriteString(desc.FragmentShaderSource)
	for _, name := range common.SortedKeys(desc.AttributeLocations) {
		fmt.Fprintf(&sb, "\x00%s=%d", name, desc.AttributeLocations[name])
	}
	return fmt.Sprintf("%016x", xxhash.Sum64String(sb.String()))
}

// FromCache returns a new handle to the program for desc, compiling it on first use.
//
// Parameters:
//   - desc: the program descriptor
//
// Returns:
//   - ShaderProgram: a handle; destroying it releases one reference
//   - error: the factory's error on a failed compile, in which case nothing is cached
func (c *ShaderCache[P]) FromCache(desc ShaderProgramDescriptor) (ShaderProgram, error) {
	key := ShaderCacheKey(desc)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		program, err := c.factory(key, desc)
		if err != nil {
			return nil, err
		}
		entry = &shaderCacheEntry[P]{program: program}
		c.entries[key] = entry
	}
	entry.references++
	return &cachedShaderProgram[P]{cache: c, key: key, program: entry.program}, nil
}

// Len returns the number of compiled programs held by the cache.
func (c *ShaderCache[P]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// References returns the number of live handles to the program with the given key.
func (c *ShaderCache[P]) References(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.entries[key]; ok {
		return entry.references
	}
	return 0
}

// Destroy destroys every cached program regardless of outstanding handles.
func (c *ShaderCache[P]) Destroy() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for _, key := range common.SortedKeys(c.entries) {
		if err := c.entries[key].program.Destroy(); err != nil {
			errs = append(errs, err)
		}
		delete(c.entries, key)
	}
	return errors.Join(errs...)
}

func (c *ShaderCache[P]) release(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil
	}
	entry.references--
	if entry.references > 0 {
		return nil
	}
	delete(c.entries, key)
	return entry.program.Destroy()
}

// cachedShaderProgram is a handle to a cached program. Varyings are per handle so concurrent
// users of the same program do not see each other's transform feedback setup.
type cachedShaderProgram[P ShaderProgram] struct {
	cache     *ShaderCache[P]
	key       string
	program   P
	varyings  []string
	destroyed bool
}

var _ ShaderProgram = &cachedShaderProgram[ShaderProgram]{}

// Program returns the compiled program behind the handle.
func (h *cachedShaderProgram[P]) Program() P {
	return h.program
}

func (h *cachedShaderProgram[P]) Key() string {
	return h.key
}

func (h *cachedShaderProgram[P]) VertexShaderSource() string {
	return h.program.VertexShaderSource()
}

func (h *cachedShaderProgram[P]) FragmentShaderSource() string {
	return h.program.FragmentShaderSource()
}

func (h *cachedShaderProgram[P]) AttributeLocations() map[string]int {
	return h.program.AttributeLocations()
}

func (h *cachedShaderProgram[P]) TransformFeedbackVaryings() []string {
	return h.varyings
}

func (h *cachedShaderProgram[P]) SetTransformFeedbackVaryings(varyings []string) {
	h.varyings = slices.Clone(varyings)
}

func (h *cachedShaderProgram[P]) IsDestroyed() bool {
	return h.destroyed
}

func (h *cachedShaderProgram[P]) Destroy() error {
	if h.destroyed {
		return ErrResourceDestroyed
	}
	h.destroyed = true
	return h.cache.release(h.key)
}
