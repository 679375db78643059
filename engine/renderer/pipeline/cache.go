package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-prepass/common"
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer/shader"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrPipelineNotReady is returned for pipelines that are still queued or compiling.
	ErrPipelineNotReady = errors.New("pipeline: not ready")

	// ErrPipelineFailed wraps the compile error of a pipeline that can never become ready.
	ErrPipelineFailed = errors.New("pipeline: compilation failed")
)

// ID identifies a pipeline queued in a Cache. It is valid as soon as Queue returns.
type ID uint64

// State is the compilation status of a cached pipeline.
type State int

const (
	// StateQueued means the pipeline waits for the next Process call.
	StateQueued State = iota

	// StateCompiling means a Process call is compiling the pipeline.
	StateCompiling

	// StateReady means the pipeline compiled and can be bound.
	StateReady

	// StateFailed means compilation failed; the pipeline is never retried.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateCompiling:
		return "compiling"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Compiler creates backend pipelines from a config and its resolved shader variants.
// renderer.Device implementations satisfy it.
type Compiler interface {
	// CreateRenderPipeline compiles a render pipeline.
	//
	// Parameters:
	//   - cfg: the pipeline description
	//   - vertex: the processed vertex shader variant
	//   - fragment: the processed fragment shader variant, nil when cfg has no fragment stage
	//
	// Returns:
	//   - resource.RenderPipeline: the compiled pipeline
	//   - error: an error if the backend rejected the pipeline
	CreateRenderPipeline(cfg *RenderPipelineConfig, vertex, fragment *shader.Variant) (resource.RenderPipeline, error)
}

// cachedPipeline is one entry of the cache.
type cachedPipeline struct {
	config   *RenderPipelineConfig
	state    State
	pipeline resource.RenderPipeline
	err      error
}

// cache is the implementation of the Cache interface.
type cache struct {
	mu        sync.RWMutex
	pipelines []*cachedPipeline
	queued    []ID

	registry    shader.Registry
	concurrency int
	validate    bool

	validated sync.Map // *shader.Variant -> error
}

// Cache compiles render pipelines asynchronously. Queue hands out an ID immediately; the
// pipeline becomes usable once a later Process call compiles it. Entries are never evicted.
// All methods are safe for concurrent use.
type Cache interface {
	// Queue registers cfg for compilation and returns its ID. The caller must not mutate cfg
	// afterwards.
	//
	// Parameters:
	//   - cfg: the pipeline description
	//
	// Returns:
	//   - ID: the identifier of the queued pipeline
	Queue(cfg *RenderPipelineConfig) ID

	// Process compiles every queued pipeline, up to the configured number concurrently.
	// A pipeline whose shaders fail to resolve, validate or compile is marked StateFailed;
	// that is not an error of Process.
	//
	// Parameters:
	//   - ctx: cancels compilation of pipelines not yet started; they stay queued
	//   - compiler: the backend that creates the pipelines
	//
	// Returns:
	//   - int: the number of pipelines that became ready
	//   - error: ctx.Err() if processing was cancelled
	Process(ctx context.Context, compiler Compiler) (int, error)

	// State returns the compilation status of id. Unknown IDs report StateFailed.
	//
	// Parameters:
	//   - id: the pipeline to inspect
	//
	// Returns:
	//   - State: the current status
	State(id ID) State

	// RenderPipeline returns the compiled pipeline for id.
	//
	// Parameters:
	//   - id: the pipeline to look up
	//
	// Returns:
	//   - resource.RenderPipeline: the compiled pipeline, nil unless ready
	//   - error: ErrPipelineNotReady while queued or compiling, ErrPipelineFailed (wrapping the cause) after a failure
	RenderPipeline(id ID) (resource.RenderPipeline, error)

	// Config returns the description id was queued with.
	//
	// Parameters:
	//   - id: the pipeline to look up
	//
	// Returns:
	//   - *RenderPipelineConfig: the queued config, or nil for unknown IDs
	Config(id ID) *RenderPipelineConfig

	// Len returns the number of pipelines ever queued.
	//
	// Returns:
	//   - int: the number of cache entries
	Len() int
}

var _ Cache = &cache{}

// NewCache creates an empty pipeline cache that resolves shader variants through registry.
//
// Parameters:
//   - registry: the shader registry used to specialize stage shaders
//   - opts: a variadic list of CacheBuilderOption functions to configure the cache
//
// Returns:
//   - Cache: the new cache
func NewCache(registry shader.Registry, opts ...CacheBuilderOption) Cache {
	if registry == nil {
		panic("pipeline: cache requires a shader registry")
	}
	c := &cache{
		registry:    registry,
		concurrency: 4,
		validate:    true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *cache) Queue(cfg *RenderPipelineConfig) ID {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := ID(len(c.pipelines))
	c.pipelines = append(c.pipelines, &cachedPipeline{config: cfg, state: StateQueued})
	c.queued = append(c.queued, id)
	common.Logger().Debug("pipeline queued", "id", id, "label", cfg.Label, "defs", cfg.Vertex.Defs)
	return id
}

func (c *cache) Process(ctx context.Context, compiler Compiler) (int, error) {
	c.mu.Lock()
	pending := c.queued
	c.queued = nil
	for _, id := range pending {
		c.pipelines[id].state = StateCompiling
	}
	c.mu.Unlock()

	if len(pending) == 0 {
		return 0, ctx.Err()
	}

	var (
		readyMu sync.Mutex
		ready   int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, id := range pending {
		if gctx.Err() != nil {
			c.requeue(pending[i:])
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				c.requeue([]ID{id})
				return err
			}
			if c.compile(id, compiler) {
				readyMu.Lock()
				ready++
				readyMu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ready, err
	}
	return ready, ctx.Err()
}

// requeue returns ids that were marked compiling but never started to the queue.
func (c *cache) requeue(ids []ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		if c.pipelines[id].state == StateCompiling {
			c.pipelines[id].state = StateQueued
			c.queued = append(c.queued, id)
		}
	}
}

// compile builds a single pipeline and records the outcome. Reports whether it became ready.
func (c *cache) compile(id ID, compiler Compiler) bool {
	c.mu.RLock()
	cfg := c.pipelines[id].config
	c.mu.RUnlock()

	created, err := c.build(cfg, compiler)

	c.mu.Lock()
	defer c.mu.Unlock()
	entry := c.pipelines[id]
	if err != nil {
		entry.state = StateFailed
		entry.err = err
		common.Logger().Error("pipeline compilation failed", "id", id, "label", cfg.Label, "err", err)
		return false
	}
	entry.state = StateReady
	entry.pipeline = created
	common.Logger().Info("pipeline created", "id", id, "label", cfg.Label)
	return true
}

func (c *cache) build(cfg *RenderPipelineConfig, compiler Compiler) (resource.RenderPipeline, error) {
	vertex, err := c.variant(cfg.Vertex.Shader, cfg.Vertex.Defs)
	if err != nil {
		return nil, fmt.Errorf("vertex stage: %w", err)
	}
	var fragment *shader.Variant
	if cfg.Fragment != nil {
		fragment, err = c.variant(cfg.Fragment.Shader, cfg.Fragment.Defs)
		if err != nil {
			return nil, fmt.Errorf("fragment stage: %w", err)
		}
	}
	return compiler.CreateRenderPipeline(cfg, vertex, fragment)
}

// variant specializes a stage shader and validates each distinct variant once.
func (c *cache) variant(h shader.Handle, defs []string) (*shader.Variant, error) {
	v, err := c.registry.Specialize(h, defs)
	if err != nil {
		return nil, err
	}
	if !c.validate {
		return v, nil
	}
	if res, ok := c.validated.Load(v); ok {
		if res != nil {
			return nil, res.(error)
		}
		return v, nil
	}
	common.Logger().Debug("validating shader variant", "shader", v.Label, "defs", v.Defs)
	verr := shader.Validate(v.Source)
	if verr != nil {
		c.validated.Store(v, verr)
		return nil, verr
	}
	c.validated.Store(v, nil)
	return v, nil
}

func (c *cache) State(id ID) State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if int(id) >= len(c.pipelines) {
		return StateFailed
	}
	return c.pipelines[id].state
}

func (c *cache) RenderPipeline(id ID) (resource.RenderPipeline, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if int(id) >= len(c.pipelines) {
		return nil, fmt.Errorf("%w: unknown pipeline %d", ErrPipelineFailed, id)
	}
	entry := c.pipelines[id]
	switch entry.state {
	case StateReady:
		return entry.pipeline, nil
	case StateFailed:
		return nil, fmt.Errorf("%w: %w", ErrPipelineFailed, entry.err)
	default:
		return nil, ErrPipelineNotReady
	}
}

func (c *cache) Config(id ID) *RenderPipelineConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if int(id) >= len(c.pipelines) {
		return nil
	}
	return c.pipelines[id].config
}

func (c *cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pipelines)
}
