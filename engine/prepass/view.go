package prepass

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-prepass/common"
	"github.com/Carmen-Shannon/oxy-prepass/engine/camera"
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer"
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-prepass/engine/scene"
	"github.com/cogentcore/webgpu/wgpu"
)

const (
	depthTextureLabel   = "view_depth_texture_resource"
	normalsTextureLabel = "view_normals_texture"
	viewBindGroupLabel  = "prepass_view_bind_group"
)

// ViewPrepassTextures are the prepass outputs of a view that later passes sample from. Views
// sharing a render target share the same textures.
type ViewPrepassTextures struct {
	// Depth is set when the view requested depth output.
	Depth *renderer.CachedTexture
	// Normals is set when the view requested normal output.
	Normals *renderer.CachedTexture
	// Size is the size of both attachments.
	Size wgpu.Extent3D
}

// View is one camera taking part in the prepass this frame.
type View struct {
	Entity    scene.Entity
	Extracted camera.ExtractedView
	// Visible are the drawables the view queues, as supplied by the scene.
	Visible []scene.Entity
	// Key holds the view-wide bits of every pipeline key queued for the view.
	Key MeshKey
	// UniformOffset selects the view's slot in the view uniform buffer.
	UniformOffset uint32
	// Textures is nil when no attachments could be prepared; such views queue and draw nothing.
	Textures *ViewPrepassTextures
	Phases   ViewPhases

	depth renderer.CachedTexture
}

// DepthAttachment returns the depth texture the view renders into. Every prepared view has one,
// even when depth output was not requested, because all prepass pipelines depth test.
//
// Returns:
//   - resource.TextureView: the depth attachment, nil before PrepareTextures
func (v *View) DepthAttachment() resource.TextureView {
	return v.depth.View
}

// NormalsAttachment returns the normals texture the view renders into.
//
// Returns:
//   - resource.TextureView: the normals attachment, nil for views without normal output
func (v *View) NormalsAttachment() resource.TextureView {
	if v.Textures == nil || v.Textures.Normals == nil {
		return nil
	}
	return v.Textures.Normals.View
}

// Prepared reports whether the view got its attachments and takes part in queueing and drawing.
func (v *View) Prepared() bool {
	return v.Textures != nil
}

// targetTextures are the attachments of one render target in the current frame.
type targetTextures struct {
	msaa    renderer.MSAASampleCount
	size    wgpu.Extent3D
	depth   renderer.CachedTexture
	normals *renderer.CachedTexture
}

func (p *prepass) ExtractViews(world scene.Scene) ([]*View, error) {
	if world == nil || !world.Active() {
		return nil, nil
	}

	var (
		views    []*View
		uniforms []camera.GPUViewUniform
	)
	for _, cv := range world.Cameras() {
		extracted, ok := camera.Extract(cv.Camera)
		if !ok {
			continue
		}
		if !extracted.MSAA.Valid() {
			common.Logger().Warn("prepass view skipped", "view", cv.Entity, "reason", "unsupported msaa", "samples", uint32(extracted.MSAA))
			continue
		}
		key := MeshKeyPrepassDepth | MeshKeyFromMSAA(extracted.MSAA)
		if extracted.Prepass.OutputNormals {
			key |= MeshKeyPrepassNormals
		}
		views = append(views, &View{
			Entity:    cv.Entity,
			Extracted: extracted,
			Visible:   cv.Visible,
			Key:       key,
		})
		uniforms = append(uniforms, extracted.Uniform())
	}

	offsets, err := p.uniforms.Write(p.device, uniforms)
	if err != nil {
		return nil, fmt.Errorf("prepass: extract views: %w", err)
	}
	for i, v := range views {
		v.UniformOffset = offsets[i]
	}
	return views, nil
}

func (p *prepass) PrepareTextures(views []*View) int {
	before := p.textures.Created()

	p.frameMu.Lock()
	defer p.frameMu.Unlock()
	if p.frameTargets == nil {
		p.frameTargets = make(map[camera.RenderTarget]*targetTextures)
	}
	targets := p.frameTargets

	for _, v := range views {
		if !v.Extracted.HasSize {
			common.Logger().Debug("prepass view skipped", "view", v.Entity, "reason", "no target size")
			continue
		}
		size := wgpu.Extent3D{
			Width:              v.Extracted.Size[0],
			Height:             v.Extracted.Size[1],
			DepthOrArrayLayers: 1,
		}

		t, ok := targets[v.Extracted.Target]
		if !ok {
			depth, err := p.textures.Get(p.device, renderer.TextureDescriptor{
				Label:         depthTextureLabel,
				Size:          size,
				MipLevelCount: 1,
				SampleCount:   uint32(v.Extracted.MSAA),
				Dimension:     wgpu.TextureDimension2D,
				Format:        DepthFormat,
				Usage:         wgpu.TextureUsageCopyDst | wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding,
			})
			if err != nil {
				common.Logger().Error("prepass view skipped", "view", v.Entity, "target", v.Extracted.Target, "err", err)
				continue
			}
			t = &targetTextures{msaa: v.Extracted.MSAA, size: size, depth: depth}
			targets[v.Extracted.Target] = t
		} else if t.msaa != v.Extracted.MSAA {
			common.Logger().Warn("prepass view skipped", "view", v.Entity, "target", v.Extracted.Target,
				"reason", "msaa differs from the render target", "samples", uint32(v.Extracted.MSAA), "target_samples", uint32(t.msaa))
			continue
		}

		if v.Extracted.Prepass.OutputNormals && t.normals == nil {
			normals, err := p.textures.Get(p.device, renderer.TextureDescriptor{
				Label:         normalsTextureLabel,
				Size:          t.size,
				MipLevelCount: 1,
				SampleCount:   uint32(t.msaa),
				Dimension:     wgpu.TextureDimension2D,
				Format:        NormalsFormat,
				Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding,
			})
			if err != nil {
				common.Logger().Error("prepass view skipped", "view", v.Entity, "target", v.Extracted.Target, "err", err)
				continue
			}
			t.normals = &normals
		}

		v.depth = t.depth
		v.Textures = &ViewPrepassTextures{Size: t.size}
		if v.Extracted.Prepass.OutputDepth {
			depth := t.depth
			v.Textures.Depth = &depth
		}
		if v.Extracted.Prepass.OutputNormals {
			v.Textures.Normals = t.normals
		}
	}
	return p.textures.Created() - before
}

func (p *prepass) QueueViewBindGroup() {
	binding, ok := p.uniforms.Binding()
	if !ok {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.viewBindGroup != nil && p.viewBuffer == binding.Buffer {
		return
	}
	group, err := p.device.CreateBindGroup(&resource.BindGroupDescriptor{
		Label:   viewBindGroupLabel,
		Layout:  p.pipeline.ViewLayout(),
		Entries: []resource.BindGroupEntry{{Binding: 0, Buffer: &binding}},
	})
	if err != nil {
		common.Logger().Error("prepass view bind group not rebuilt", "err", err)
		return
	}
	p.viewBindGroup = group
	p.viewBuffer = binding.Buffer
}
