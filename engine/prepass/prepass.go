// Package prepass renders depth and normals for every camera that asks for them, before the
// main pass. A frame runs the stages Extract, Prepare, Queue, Sort and Draw in that order;
// RunFrame drives all of them, or they can be called one by one.
package prepass

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-prepass/common"
	"github.com/Carmen-Shannon/oxy-prepass/engine/camera"
	"github.com/Carmen-Shannon/oxy-prepass/engine/profiler"
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer"
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-prepass/engine/scene"
)

// FrameResult is what one RunFrame produced.
type FrameResult struct {
	// Views are the extracted views with their textures and sorted phases.
	Views    []*View
	Stats    profiler.FrameStats
	Duration time.Duration
}

// prepass is the implementation of the Prepass interface.
type prepass struct {
	device        renderer.Device
	registry      shader.Registry
	pipeline      *Pipeline
	cache         pipeline.Cache
	textures      renderer.TextureCache
	uniforms      scene.ViewUniforms
	drawFunctions DrawFunctions
	pool          worker.DynamicWorkerPool
	profiler      *profiler.Profiler

	queueWorkers       int
	compileConcurrency int
	retainFrames       int
	validateShaders    bool
	profilingEnabled   bool
	profileInterval    time.Duration
	asyncCompile       bool

	mu            sync.Mutex
	viewBindGroup resource.BindGroup
	viewBuffer    resource.Buffer

	frameMu      sync.Mutex
	frameOpen    bool
	frameTargets map[camera.RenderTarget]*targetTextures

	ctx       context.Context
	cancel    context.CancelFunc
	compiling atomic.Bool
	compiled  atomic.Int64
	bg        sync.WaitGroup
	closeOnce sync.Once
}

// Prepass owns every resource the prepass keeps across frames: pipeline specializers, the
// pipeline cache, the attachment texture cache, the view uniform buffer and bind group, and the
// workers queueing views in parallel.
//
// The stage methods must be called in order within a frame and frames must not overlap. A frame
// ends with EndFrame; until then view uniform slots and render target attachments accumulate, so
// several scenes can be recorded into one frame between BeginFrame and EndFrame.
type Prepass interface {
	// BeginFrame opens a frame spanning several RunFrame calls. Until EndFrame, RunFrame leaves
	// the frame open and the scenes it runs share attachments per render target and get
	// distinct view uniform slots.
	BeginFrame()

	// RunFrame runs every stage for world and draws into passes. Outside BeginFrame it ends the
	// frame itself before returning.
	//
	// Parameters:
	//   - ctx: cancels queueing and synchronous pipeline compilation
	//   - world: the scene to render
	//   - passes: opens the render pass of each view
	//
	// Returns:
	//   - *FrameResult: the views, phases and statistics of the frame
	//   - error: an error if view uniforms could not be written or ctx was cancelled
	RunFrame(ctx context.Context, world scene.Scene, passes Passes) (*FrameResult, error)

	// ExtractViews snapshots every active 3D camera of world that requests prepass output and
	// uploads the view uniforms into the frame's next free slots. An inactive world extracts
	// nothing.
	//
	// Parameters:
	//   - world: the scene to extract from
	//
	// Returns:
	//   - []*View: the extracted views, ordered by camera entity
	//   - error: an error if the view uniforms could not be written
	ExtractViews(world scene.Scene) ([]*View, error)

	// PrepareTextures gets the attachments of every view from the texture cache. Views sharing a
	// render target within a frame share attachments. Views without a target size, or whose
	// attachments could not be created, are left unprepared.
	//
	// Parameters:
	//   - views: the extracted views
	//
	// Returns:
	//   - int: the number of textures newly allocated
	PrepareTextures(views []*View) int

	// QueueViewBindGroup rebuilds the view bind group when the view uniform buffer changed. The
	// previous bind group is kept when there is no binding yet or creation fails.
	QueueViewBindGroup()

	// QueueMaterialMeshes fills the phases of every prepared view with its visible drawables,
	// one worker per view. Drawables still loading, blended or failing to specialize are
	// skipped.
	//
	// Parameters:
	//   - ctx: stops submitting further views when cancelled
	//   - world: the scene the drawables live in
	//   - views: the prepared views
	//
	// Returns:
	//   - profiler.FrameStats: the queue counters
	//   - error: ctx.Err() if queueing was cancelled
	QueueMaterialMeshes(ctx context.Context, world scene.Scene, views []*View) (profiler.FrameStats, error)

	// DrawPhases draws the Opaque then AlphaMask phase of every prepared view into the pass
	// passes opens for it. Items whose pipeline is not ready are skipped.
	// Panics if an item is drawn while no view bind group exists.
	//
	// Parameters:
	//   - world: the scene the drawables live in
	//   - views: the sorted views
	//   - passes: opens and closes the render pass of each view
	//
	// Returns:
	//   - profiler.FrameStats: the draw counters
	DrawPhases(world scene.Scene, views []*View, passes Passes) profiler.FrameStats

	// EndFrame closes the frame: attachments return to the texture cache, view uniform slots
	// start over and buffers replaced during the frame are released. Call it after the frame's
	// commands were submitted.
	EndFrame()

	// Close stops the queue workers and waits for background compilation.
	Close()

	// Pipeline returns the prepass specializer.
	//
	// Returns:
	//   - *Pipeline: the specializer
	Pipeline() *Pipeline

	// Cache returns the pipeline cache.
	//
	// Returns:
	//   - pipeline.Cache: the cache
	Cache() pipeline.Cache

	// DrawFunctions returns the draw function registry phase items refer to.
	//
	// Returns:
	//   - DrawFunctions: the registry
	DrawFunctions() DrawFunctions

	// ViewBindGroup returns the current view bind group.
	//
	// Returns:
	//   - resource.BindGroup: the bind group, nil until QueueViewBindGroup succeeded once
	ViewBindGroup() resource.BindGroup
}

var _ Prepass = &prepass{}

// NewPrepass creates the prepass on device. Defaults: one queue worker per CPU but one, 4
// concurrent pipeline compilations, attachments kept 3 frames, shader validation on, profiling
// off and synchronous compilation.
//
// Parameters:
//   - device: the device every resource is created on
//   - registry: the shader registry, must hold the built-in prepass shaders
//   - options: functional options to configure the prepass
//
// Returns:
//   - Prepass: the prepass
//   - error: an error if the shared bind group layouts could not be created
func NewPrepass(device renderer.Device, registry shader.Registry, options ...PrepassBuilderOption) (Prepass, error) {
	if device == nil || registry == nil {
		panic("prepass: NewPrepass requires a device and a shader registry")
	}
	p := &prepass{
		device:             device,
		registry:           registry,
		queueWorkers:       max(runtime.NumCPU()-1, 1),
		compileConcurrency: 4,
		retainFrames:       3,
		validateShaders:    true,
		profileInterval:    time.Second,
	}
	for _, option := range options {
		option(p)
	}

	pl, err := NewPipeline(device, registry)
	if err != nil {
		return nil, err
	}
	p.pipeline = pl
	p.cache = pipeline.NewCache(registry,
		pipeline.WithCompileConcurrency(p.compileConcurrency),
		pipeline.WithShaderValidation(p.validateShaders),
	)
	p.textures = renderer.NewTextureCache(renderer.WithRetainFrames(p.retainFrames))
	p.uniforms = scene.NewViewUniforms()
	p.drawFunctions = NewDrawFunctions()
	p.pool = worker.NewDynamicWorkerPool(p.queueWorkers, 256, 1*time.Second)
	if p.profilingEnabled {
		p.profiler = profiler.NewProfiler(profiler.WithInterval(p.profileInterval))
	}
	p.ctx, p.cancel = context.WithCancel(context.Background())

	common.Logger().Info("prepass created",
		"queue_workers", p.queueWorkers,
		"compile_concurrency", p.compileConcurrency,
		"retain_frames", p.retainFrames,
		"async_compile", p.asyncCompile,
	)
	return p, nil
}

// SetLogger installs the logger shared by the prepass and the renderer packages. Passing nil
// silences logging again.
//
// Parameters:
//   - l: the logger to install
func SetLogger(l *slog.Logger) {
	common.SetLogger(l)
}

func (p *prepass) RunFrame(ctx context.Context, world scene.Scene, passes Passes) (*FrameResult, error) {
	if passes == nil {
		panic("prepass: RunFrame requires passes")
	}
	start := time.Now()
	result := &FrameResult{}
	defer func() {
		result.Duration = time.Since(start)
	}()

	p.frameMu.Lock()
	owned := !p.frameOpen
	p.frameMu.Unlock()
	if owned {
		defer p.EndFrame()
	}

	views, err := p.ExtractViews(world)
	if err != nil {
		return result, err
	}
	result.Views = views
	result.Stats.TexturesCreated = p.PrepareTextures(views)
	p.QueueViewBindGroup()

	queued, err := p.QueueMaterialMeshes(ctx, world, views)
	result.Stats.Add(queued)
	if err != nil {
		return result, err
	}

	compiled, err := p.compile(ctx)
	result.Stats.PipelinesCompiled = compiled
	if err != nil {
		return result, fmt.Errorf("prepass: compile pipelines: %w", err)
	}

	SortPhases(views)
	drawn := p.DrawPhases(world, views, passes)
	result.Stats.Add(drawn)

	if p.profiler != nil {
		p.profiler.Tick(result.Stats)
	}
	return result, nil
}

// compile builds the queued pipelines. In async mode at most one Process call runs in the
// background and the pipelines it finished since the last frame are reported.
func (p *prepass) compile(ctx context.Context) (int, error) {
	if !p.asyncCompile {
		return p.cache.Process(ctx, p.device)
	}
	if p.compiling.CompareAndSwap(false, true) {
		p.bg.Add(1)
		go func() {
			defer p.bg.Done()
			defer p.compiling.Store(false)
			n, err := p.cache.Process(p.ctx, p.device)
			p.compiled.Add(int64(n))
			if err != nil {
				common.Logger().Debug("background pipeline compilation stopped", "err", err)
			}
		}()
	}
	return int(p.compiled.Swap(0)), nil
}

func (p *prepass) BeginFrame() {
	p.frameMu.Lock()
	defer p.frameMu.Unlock()
	p.frameOpen = true
}

func (p *prepass) EndFrame() {
	p.frameMu.Lock()
	p.frameOpen = false
	p.frameTargets = nil
	p.frameMu.Unlock()

	p.textures.Update()
	p.uniforms.Reset()
}

func (p *prepass) Close() {
	p.closeOnce.Do(func() {
		p.cancel()
		p.bg.Wait()
		p.pool.Stop()
	})
}

func (p *prepass) Pipeline() *Pipeline {
	return p.pipeline
}

func (p *prepass) Cache() pipeline.Cache {
	return p.cache
}

func (p *prepass) DrawFunctions() DrawFunctions {
	return p.drawFunctions
}

func (p *prepass) ViewBindGroup() resource.BindGroup {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.viewBindGroup
}
