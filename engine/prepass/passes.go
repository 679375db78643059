package prepass

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-prepass/common"
	"github.com/Carmen-Shannon/oxy-prepass/engine/profiler"
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer"
	"github.com/Carmen-Shannon/oxy-prepass/engine/scene"
	"github.com/cogentcore/webgpu/wgpu"
)

// Passes opens and closes the render pass of each prepared view.
type Passes interface {
	// Begin opens the prepass render pass of view, clearing its attachments.
	//
	// Parameters:
	//   - view: the prepared view
	//
	// Returns:
	//   - renderer.TrackedRenderPass: the pass the view's phases are drawn into
	//   - error: an error if the pass could not be opened
	Begin(view *View) (renderer.TrackedRenderPass, error)

	// End closes the pass opened for view.
	//
	// Parameters:
	//   - view: the view whose pass is closed
	//
	// Returns:
	//   - error: an error if no pass is open for view
	End(view *View) error
}

// wgpuPasses records prepass render passes into a wgpu command encoder.
type wgpuPasses struct {
	encoder *wgpu.CommandEncoder

	mu   sync.Mutex
	ends map[*View]func()
}

var _ Passes = &wgpuPasses{}

// NewWGPUPasses creates Passes recording into encoder. Attachments must come from a device
// created by renderer.NewWGPUDevice.
//
// Parameters:
//   - encoder: the command encoder of the frame
//
// Returns:
//   - Passes: the pass factory
func NewWGPUPasses(encoder *wgpu.CommandEncoder) Passes {
	if encoder == nil {
		panic("prepass: NewWGPUPasses requires a command encoder")
	}
	return &wgpuPasses{encoder: encoder, ends: make(map[*View]func())}
}

func (w *wgpuPasses) Begin(view *View) (renderer.TrackedRenderPass, error) {
	pass, end, err := renderer.BeginWGPUPrepass(w.encoder, view.DepthAttachment(), view.NormalsAttachment())
	if err != nil {
		return nil, err
	}
	w.mu.Lock()
	w.ends[view] = end
	w.mu.Unlock()
	return pass, nil
}

func (w *wgpuPasses) End(view *View) error {
	w.mu.Lock()
	end, ok := w.ends[view]
	delete(w.ends, view)
	w.mu.Unlock()
	if !ok {
		return fmt.Errorf("prepass: no pass open for view %d", view.Entity)
	}
	end()
	return nil
}

func (p *prepass) DrawPhases(world scene.Scene, views []*View, passes Passes) profiler.FrameStats {
	var stats profiler.FrameStats

	p.mu.Lock()
	ctx := &DrawContext{Cache: p.cache, World: world, ViewBindGroup: p.viewBindGroup}
	p.mu.Unlock()

	for _, v := range views {
		if !v.Prepared() {
			continue
		}
		pass, err := passes.Begin(v)
		if err != nil {
			common.Logger().Error("prepass view not drawn", "view", v.Entity, "err", err)
			continue
		}
		stats.Views++
		for _, phase := range []*Phase{&v.Phases.Opaque, &v.Phases.AlphaMask} {
			for i := range phase.Items {
				item := &phase.Items[i]
				fn, ok := p.drawFunctions.Get(item.DrawFunction)
				if !ok {
					panic(fmt.Sprintf("prepass: unknown draw function %d for entity %d", item.DrawFunction, item.Entity))
				}
				if fn.Draw(ctx, v, item, pass) {
					stats.Drawn++
				} else {
					stats.Skipped++
				}
			}
		}
		if err := passes.End(v); err != nil {
			common.Logger().Error("prepass pass not ended", "view", v.Entity, "err", err)
		}
	}
	return stats
}
