package renderer

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-compute/common"
)

// RenderStateDescriptor is the fixed-function state of a draw. Descriptors are compared by value.
type RenderStateDescriptor struct {
	// Viewport is the pixel rectangle draws are mapped to.
	Viewport common.BoundingRectangle

	// BlendingEnabled turns on source-over alpha blending.
	BlendingEnabled bool
}

// RenderState is an immutable, shared render state handed out by a RenderStateCache.
type RenderState struct {
	id         int
	descriptor RenderStateDescriptor
}

// ID returns the identifier the cache assigned to this state. Equal descriptors share an ID.
func (s *RenderState) ID() int {
	return s.id
}

// Viewport returns the viewport rectangle.
func (s *RenderState) Viewport() common.BoundingRectangle {
	return s.descriptor.Viewport
}

// BlendingEnabled reports whether alpha blending is on.
func (s *RenderState) BlendingEnabled() bool {
	return s.descriptor.BlendingEnabled
}

// Descriptor returns the descriptor the state was created from.
func (s *RenderState) Descriptor() RenderStateDescriptor {
	return s.descriptor
}

// RenderStateCache hands out one shared RenderState per distinct descriptor and counts references to it.
type RenderStateCache interface {
	// FromCache returns the state for desc, creating it on first use, and adds a reference.
	//
	// Parameters:
	//   - desc: the render state descriptor
	//
	// Returns:
	//   - *RenderState: the shared state
	FromCache(desc RenderStateDescriptor) *RenderState

	// RemoveFromCache releases one reference; the state is evicted when none remain.
	//
	// Parameters:
	//   - desc: the descriptor passed to FromCache
	RemoveFromCache(desc RenderStateDescriptor)

	// Len returns the number of cached states.
	Len() int
}

type renderStateCacheEntry struct {
	state      *RenderState
	references int
}

type renderStateCache struct {
	mu      *sync.Mutex
	nextID  int
	entries map[RenderStateDescriptor]*renderStateCacheEntry
}

var _ RenderStateCache = &renderStateCache{}

// NewRenderStateCache creates an empty render state cache safe for concurrent use.
func NewRenderStateCache() RenderStateCache {
	return &renderStateCache{
		mu:      &sync.Mutex{},
		entries: make(map[RenderStateDescriptor]*renderStateCacheEntry),
	}
}

func (c *renderStateCache) FromCache(desc RenderStateDescriptor) *RenderState {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[desc]
	if !ok {
		entry = &renderStateCacheEntry{
			state: &RenderState{id: c.nextID, descriptor: desc},
		}
		c.nextID++
		c.entries[desc] = entry
	}
	entry.references++
	return entry.state
}

func (c *renderStateCache) RemoveFromCache(desc RenderStateDescriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[desc]
	if !ok {
		return
	}
	entry.references--
	if entry.references <= 0 {
		delete(c.entries, desc)
	}
}

func (c *renderStateCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
