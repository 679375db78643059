package pipeline

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-prepass/common"
	"github.com/Carmen-Shannon/oxy-prepass/engine/model"
)

// ErrSpecializerPanicked is the memoized outcome of a (key, layout) whose specializer panicked.
var ErrSpecializerPanicked = errors.New("pipeline: specializer panicked")

// Specializer derives a pipeline description from a key and a mesh vertex layout.
// Implementations must be deterministic: equal inputs produce equal configs.
type Specializer[K comparable] interface {
	// Specialize builds the pipeline description for key and layout.
	//
	// Parameters:
	//   - key: the feature key selecting the pipeline variant
	//   - layout: the vertex layout of the mesh being drawn
	//
	// Returns:
	//   - *RenderPipelineConfig: the pipeline description
	//   - error: a *ConfigError if the layout cannot satisfy the key
	Specialize(key K, layout *model.VertexLayout) (*RenderPipelineConfig, error)
}

// SpecializerFunc adapts a plain function to the Specializer interface.
type SpecializerFunc[K comparable] func(key K, layout *model.VertexLayout) (*RenderPipelineConfig, error)

// Specialize calls f(key, layout).
func (f SpecializerFunc[K]) Specialize(key K, layout *model.VertexLayout) (*RenderPipelineConfig, error) {
	return f(key, layout)
}

// specializedKey is the identity of one specialized pipeline: the key plus the layout pointer.
type specializedKey[K comparable] struct {
	key    K
	layout *model.VertexLayout
}

// specializedEntry holds the memoized outcome for one specializedKey.
type specializedEntry struct {
	once sync.Once
	id   ID
	err  error
}

// SpecializedPipelines memoizes Specializer results per (key, vertex layout) and queues each
// successfully specialized config in a Cache exactly once. Failures are memoized as well, so a
// layout that cannot satisfy a key is diagnosed once per process. One instance exists per
// specializer; keys of different instances never collide. Entries are never evicted.
//
// The zero value is ready to use and safe for concurrent use.
type SpecializedPipelines[K comparable] struct {
	entries sync.Map // specializedKey[K] -> *specializedEntry
	size    atomic.Int64
}

// NewSpecializedPipelines creates an empty specialization table.
//
// Returns:
//   - *SpecializedPipelines[K]: the new table
func NewSpecializedPipelines[K comparable]() *SpecializedPipelines[K] {
	return &SpecializedPipelines[K]{}
}

// Specialize returns the cached pipeline ID for (key, layout), running specializer and queueing
// the result in cache on the first request. Concurrent first requests for the same tuple run
// the specializer once and all observe the same outcome.
//
// Parameters:
//   - cache: the pipeline cache new configs are queued in
//   - specializer: the specializer invoked on a miss
//   - key: the feature key
//   - layout: the interned vertex layout of the mesh
//
// Returns:
//   - ID: the pipeline ID, valid even while the pipeline is still compiling
//   - error: the memoized specialization error, or ErrSpecializerPanicked once the first
//     request panicked
func (s *SpecializedPipelines[K]) Specialize(cache Cache, specializer Specializer[K], key K, layout *model.VertexLayout) (ID, error) {
	k := specializedKey[K]{key: key, layout: layout}
	v, ok := s.entries.Load(k)
	if !ok {
		var loaded bool
		v, loaded = s.entries.LoadOrStore(k, &specializedEntry{})
		if !loaded {
			s.size.Add(1)
		}
	}
	entry := v.(*specializedEntry)
	entry.once.Do(func() {
		common.Logger().Debug("pipeline specialization cache miss", "key", fmt.Sprintf("%+v", key), "layout", layout.String())
		// Stays set if the specializer panics.
		entry.err = fmt.Errorf("%w: key %+v, layout %s", ErrSpecializerPanicked, key, layout)
		cfg, err := specializer.Specialize(key, layout)
		if err != nil {
			entry.err = err
			return
		}
		entry.id = cache.Queue(cfg)
		entry.err = nil
	})
	return entry.id, entry.err
}

// Len returns the number of (key, layout) tuples ever requested.
//
// Returns:
//   - int: the number of entries
func (s *SpecializedPipelines[K]) Len() int {
	return int(s.size.Load())
}
