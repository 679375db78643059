package prepass

import (
	"context"
	"sync"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-prepass/common"
	"github.com/Carmen-Shannon/oxy-prepass/engine/camera"
	"github.com/Carmen-Shannon/oxy-prepass/engine/profiler"
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-prepass/engine/scene"
)

// drawFunctionName is the DrawFunctions name of a material type's prepass draw.
func drawFunctionName(materialName string) string {
	return "prepass_" + materialName
}

func (p *prepass) QueueMaterialMeshes(ctx context.Context, world scene.Scene, views []*View) (profiler.FrameStats, error) {
	perView := make([]profiler.FrameStats, len(views))

	// Workers persist across frames; the WaitGroup is the per-frame barrier.
	var wg sync.WaitGroup
	for i, v := range views {
		if !v.Prepared() || len(v.Visible) == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return sumStats(perView), err
		}
		wg.Add(1)
		p.pool.SubmitTask(worker.Task{
			ID:      i,
			Payload: v.Entity,
			Do: func() (any, error) {
				defer wg.Done()
				perView[i] = p.queueView(world, v)
				return nil, nil
			},
		})
	}
	wg.Wait()
	return sumStats(perView), nil
}

// queueView fills the phases of v. Only the worker queueing v touches its phases.
func (p *prepass) queueView(world scene.Scene, v *View) profiler.FrameStats {
	var stats profiler.FrameStats
	rangefinder := camera.NewRangefinder(v.Extracted.View)

	for _, e := range v.Visible {
		d, ok := world.Get(e)
		if !ok {
			stats.Unresolved++
			continue
		}
		mesh, ok := world.Meshes().Get(d.Mesh)
		if !ok {
			stats.Unresolved++
			continue
		}
		prepared, ok := world.Materials().Get(d.Material)
		if !ok || prepared.Material == nil {
			stats.Unresolved++
			continue
		}

		key := v.Key | MeshKeyFromTopology(mesh.Topology())
		phase := &v.Phases.Opaque
		switch prepared.Properties.AlphaMode.Kind {
		case material.AlphaModeOpaque:
		case material.AlphaModeMask:
			key |= MeshKeyAlphaMask
			phase = &v.Phases.AlphaMask
		default:
			stats.BlendSkipped++
			continue
		}

		mp, err := p.pipeline.Material(p.device, prepared.Material)
		if err != nil {
			stats.ConfigErrors++
			common.Logger().Error("prepass drawable skipped", "entity", e, "view", v.Entity, "material", prepared.Material.Name(), "err", err)
			continue
		}
		fullKey := NewKey(key, prepared.Key)
		id, err := mp.Pipeline(p.cache, fullKey, mesh.Layout())
		if err != nil {
			stats.ConfigErrors++
			common.Logger().Error("prepass drawable skipped", "entity", e, "view", v.Entity, "key", fullKey.String(), "layout", mesh.Layout().String(), "err", err)
			continue
		}

		phase.Add(PhaseItem{
			Entity:       e,
			DrawFunction: p.drawFunctions.Add(drawFunctionName(mp.Name()), DrawPrepass),
			Pipeline:     id,
			Distance:     rangefinder.Distance(d.Transform) + prepared.Properties.DepthBias,
		})
	}

	stats.Opaque = v.Phases.Opaque.Len()
	stats.AlphaMask = v.Phases.AlphaMask.Len()
	return stats
}

func sumStats(stats []profiler.FrameStats) profiler.FrameStats {
	var total profiler.FrameStats
	for _, s := range stats {
		total.Add(s)
	}
	return total
}

// SortPhases sorts both phases of every view front to back.
//
// Parameters:
//   - views: the queued views
func SortPhases(views []*View) {
	for _, v := range views {
		v.Phases.Opaque.Sort()
		v.Phases.AlphaMask.Sort()
	}
}
