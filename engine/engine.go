package engine

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-prepass/common"
	"github.com/Carmen-Shannon/oxy-prepass/engine/prepass"
	"github.com/Carmen-Shannon/oxy-prepass/engine/profiler"
	"github.com/Carmen-Shannon/oxy-prepass/engine/scene"
)

// FrameTarget supplies the render passes of one frame and submits them once every scene ran.
type FrameTarget interface {
	// BeginFrame opens the frame.
	//
	// Returns:
	//   - prepass.Passes: opens the prepass render pass of each view this frame
	//   - error: an error if the frame cannot be recorded, in which case it is skipped
	BeginFrame() (prepass.Passes, error)

	// EndFrame submits everything recorded since BeginFrame.
	//
	// Returns:
	//   - error: an error if submission failed
	EndFrame() error
}

// engine implements the Engine interface.
// Drives the prepass of every active scene once per frame.
type engine struct {
	prepass prepass.Prepass
	target  FrameTarget

	mu     sync.RWMutex
	scenes map[int]scene.Scene

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	profiler         *profiler.Profiler
	profilingEnabled bool
	profileInterval  time.Duration

	frameCallback    func(deltaTime float32, results []*prepass.FrameResult)
	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
}

// Engine owns the prepass and the scenes it renders.
// It orchestrates the render loop; scenes are rendered in ascending z-index order.
type Engine interface {
	// Prepass returns the prepass the engine drives.
	//
	// Returns:
	//   - prepass.Prepass: the prepass
	Prepass() prepass.Prepass

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetFrameTarget sets where frames are recorded. Without a target RenderFrame renders nothing.
	//
	// Parameters:
	//   - t: the frame target
	SetFrameTarget(t FrameTarget)

	// SetFrameCallback registers the function called after each rendered frame.
	//
	// Parameters:
	//   - callback: receives the delta time in seconds and the result of every scene rendered
	SetFrameCallback(callback func(deltaTime float32, results []*prepass.FrameResult))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// AddScene registers a scene at the given z-index key.
	//
	// Parameters:
	//   - key: the z-index determining render order (lower renders first)
	//   - s: the Scene to register
	AddScene(key int, s scene.Scene)

	// RemoveScene removes the scene at the given z-index key.
	//
	// Parameters:
	//   - key: the z-index of the scene to remove
	RemoveScene(key int)

	// Scene retrieves the scene registered at the given z-index key.
	//
	// Parameters:
	//   - key: the z-index of the scene to retrieve
	//
	// Returns:
	//   - scene.Scene: the scene at the key, or nil if not found
	Scene(key int) scene.Scene

	// Scenes returns a copy of all registered scenes keyed by z-index.
	//
	// Returns:
	//   - map[int]scene.Scene: a copy of the scenes map
	Scenes() map[int]scene.Scene

	// RenderFrame runs the prepass of every active scene into one frame of the frame target.
	//
	// Parameters:
	//   - ctx: cancels the frame
	//
	// Returns:
	//   - []*prepass.FrameResult: one result per active scene, in render order
	//   - error: an error if the frame could not be opened or submitted, or a scene failed
	RenderFrame(ctx context.Context) ([]*prepass.FrameResult, error)

	// Run renders frames until ctx is done or Quit is called. A frame error is logged and the
	// loop continues; a panic inside a frame stops the loop.
	//
	// Parameters:
	//   - ctx: stops the loop when done
	//
	// Returns:
	//   - error: ctx.Err() if the loop stopped because ctx is done, nil after Quit
	Run(ctx context.Context) error

	// Quit signals the render loop to stop.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

var _ Engine = &engine{}

// NewEngine creates a new Engine driving p.
// Options are applied directly to the engine struct via the option-builder pattern.
//
// Parameters:
//   - p: the prepass to drive
//   - options: functional options for engine configuration (profiling, scenes, frame limit, etc.)
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(p prepass.Prepass, options ...EngineBuilderOption) Engine {
	if p == nil {
		panic("engine: NewEngine requires a prepass")
	}
	e := &engine{
		prepass:         p,
		quitChannel:     make(chan struct{}),
		scenes:          make(map[int]scene.Scene),
		profileInterval: time.Second,
	}

	for _, opt := range options {
		opt(e)
	}
	e.profiler = profiler.NewProfiler(profiler.WithInterval(e.profileInterval))
	return e
}

func (e *engine) Prepass() prepass.Prepass {
	return e.prepass
}

func (e *engine) RenderFrame(ctx context.Context) ([]*prepass.FrameResult, error) {
	e.mu.RLock()
	target := e.target
	keys := slices.Sorted(maps.Keys(e.scenes))
	var active []scene.Scene
	for _, k := range keys {
		if s := e.scenes[k]; s.Active() {
			active = append(active, s)
		}
	}
	e.mu.RUnlock()

	if target == nil || len(active) == 0 {
		return nil, nil
	}

	passes, err := target.BeginFrame()
	if err != nil {
		return nil, fmt.Errorf("engine: begin frame: %w", err)
	}
	e.prepass.BeginFrame()
	defer e.prepass.EndFrame()

	results := make([]*prepass.FrameResult, 0, len(active))
	for _, s := range active {
		res, err := e.prepass.RunFrame(ctx, s, passes)
		if err != nil {
			return results, fmt.Errorf("engine: scene %q: %w", s.Name(), err)
		}
		results = append(results, res)
	}
	if err := target.EndFrame(); err != nil {
		return results, fmt.Errorf("engine: end frame: %w", err)
	}
	return results, nil
}

func (e *engine) Run(ctx context.Context) (err error) {
	// Recover from panics inside a frame to avoid crashing the whole process.
	defer func() {
		if r := recover(); r != nil {
			common.Logger().Error("render loop recovered from panic", "panic", r)
			e.signalQuit()
			err = nil
		}
	}()

	lastRender := time.Now()
	for {
		select {
		case <-e.quitChannel:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		now := time.Now()
		dt := float32(now.Sub(lastRender).Seconds())
		lastRender = now

		results, frameErr := e.RenderFrame(ctx)
		if frameErr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			common.Logger().Error("frame failed", "err", frameErr)
		}

		e.mu.RLock()
		callback := e.frameCallback
		profiling := e.profilingEnabled
		limit := e.renderFrameLimit
		e.mu.RUnlock()

		if callback != nil {
			callback(dt, results)
		}
		if profiling {
			var stats profiler.FrameStats
			for _, r := range results {
				stats.Add(r.Stats)
			}
			e.profiler.Tick(stats)
		}

		// Frame rate limiting
		if limit > 0 {
			if remaining := limit - time.Since(lastRender); remaining > 0 {
				select {
				case <-time.After(remaining):
				case <-e.quitChannel:
				case <-ctx.Done():
				}
			}
		}
	}
}

// Quit signals the render loop to stop.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal the render loop to exit.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

func (e *engine) EnableProfiler() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profilingEnabled = true
}

func (e *engine) DisableProfiler() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profilingEnabled = false
}

func (e *engine) SetFrameTarget(t FrameTarget) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.target = t
}

func (e *engine) SetFrameCallback(callback func(deltaTime float32, results []*prepass.FrameResult)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.frameCallback = callback
}

func (e *engine) SetRenderFrameLimit(fps float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}

func (e *engine) AddScene(key int, s scene.Scene) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scenes[key] = s
}

func (e *engine) RemoveScene(key int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.scenes, key)
}

func (e *engine) Scene(key int) scene.Scene {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.scenes[key]
}

func (e *engine) Scenes() map[int]scene.Scene {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return maps.Clone(e.scenes)
}
