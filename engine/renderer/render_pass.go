package renderer

import (
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer/resource"
	"github.com/cogentcore/webgpu/wgpu"
)

// RenderPassEncoder is the raw command surface of a render pass. Every call is forwarded to
// the backend unconditionally.
type RenderPassEncoder interface {
	SetPipeline(p resource.RenderPipeline)
	SetBindGroup(index uint32, group resource.BindGroup, dynamicOffsets []uint32)
	SetVertexBuffer(slot uint32, buf resource.Buffer)
	SetIndexBuffer(buf resource.Buffer, format wgpu.IndexFormat)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32)
}

// TrackedRenderPass is a render pass that drops state changes which would not change anything:
// binding the pipeline, bind group (with the same dynamic offsets) or buffer that is already bound.
type TrackedRenderPass interface {
	RenderPassEncoder
}

type boundGroup struct {
	group   resource.BindGroup
	offsets []uint32
}

type boundIndex struct {
	buf    resource.Buffer
	format wgpu.IndexFormat
}

// trackedRenderPass is the implementation of the TrackedRenderPass interface.
type trackedRenderPass struct {
	encoder       RenderPassEncoder
	pipeline      resource.RenderPipeline
	bindGroups    map[uint32]boundGroup
	vertexBuffers map[uint32]resource.Buffer
	indexBuffer   boundIndex
}

var _ TrackedRenderPass = &trackedRenderPass{}

// NewTrackedRenderPass wraps encoder with redundant state filtering.
//
// Parameters:
//   - encoder: the raw pass commands are forwarded to
//
// Returns:
//   - TrackedRenderPass: the filtering pass
func NewTrackedRenderPass(encoder RenderPassEncoder) TrackedRenderPass {
	return &trackedRenderPass{
		encoder:       encoder,
		bindGroups:    make(map[uint32]boundGroup),
		vertexBuffers: make(map[uint32]resource.Buffer),
	}
}

func (p *trackedRenderPass) SetPipeline(pl resource.RenderPipeline) {
	if p.pipeline == pl {
		return
	}
	p.pipeline = pl
	p.encoder.SetPipeline(pl)
}

func (p *trackedRenderPass) SetBindGroup(index uint32, group resource.BindGroup, dynamicOffsets []uint32) {
	if b, ok := p.bindGroups[index]; ok && b.group == group && slices.Equal(b.offsets, dynamicOffsets) {
		return
	}
	p.bindGroups[index] = boundGroup{group: group, offsets: slices.Clone(dynamicOffsets)}
	p.encoder.SetBindGroup(index, group, dynamicOffsets)
}

func (p *trackedRenderPass) SetVertexBuffer(slot uint32, buf resource.Buffer) {
	if b, ok := p.vertexBuffers[slot]; ok && b == buf {
		return
	}
	p.vertexBuffers[slot] = buf
	p.encoder.SetVertexBuffer(slot, buf)
}

func (p *trackedRenderPass) SetIndexBuffer(buf resource.Buffer, format wgpu.IndexFormat) {
	next := boundIndex{buf: buf, format: format}
	if p.indexBuffer == next {
		return
	}
	p.indexBuffer = next
	p.encoder.SetIndexBuffer(buf, format)
}

func (p *trackedRenderPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.encoder.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

func (p *trackedRenderPass) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	p.encoder.DrawIndexed(indexCount, instanceCount, firstIndex, baseVertex, firstInstance)
}

// wgpuPassEncoder forwards RenderPassEncoder calls to a wgpu render pass. Handles created by a
// different device are ignored.
type wgpuPassEncoder struct {
	pass *wgpu.RenderPassEncoder
}

var _ RenderPassEncoder = &wgpuPassEncoder{}

// NewWGPURenderPass wraps a wgpu render pass encoder with redundant state filtering. Resources
// bound through it must come from a device created by NewWGPUDevice.
//
// Parameters:
//   - pass: the wgpu render pass encoder
//
// Returns:
//   - TrackedRenderPass: the filtering pass
func NewWGPURenderPass(pass *wgpu.RenderPassEncoder) TrackedRenderPass {
	return NewTrackedRenderPass(&wgpuPassEncoder{pass: pass})
}

func (e *wgpuPassEncoder) SetPipeline(p resource.RenderPipeline) {
	if wp, ok := p.(*wgpuRenderPipeline); ok {
		e.pass.SetPipeline(wp.pipeline)
	}
}

func (e *wgpuPassEncoder) SetBindGroup(index uint32, group resource.BindGroup, dynamicOffsets []uint32) {
	if wg, ok := group.(*wgpuBindGroup); ok {
		e.pass.SetBindGroup(index, wg.group, dynamicOffsets)
	}
}

func (e *wgpuPassEncoder) SetVertexBuffer(slot uint32, buf resource.Buffer) {
	if wb, ok := buf.(*wgpuBuffer); ok {
		e.pass.SetVertexBuffer(slot, wb.buffer, 0, wgpu.WholeSize)
	}
}

func (e *wgpuPassEncoder) SetIndexBuffer(buf resource.Buffer, format wgpu.IndexFormat) {
	if wb, ok := buf.(*wgpuBuffer); ok {
		e.pass.SetIndexBuffer(wb.buffer, format, 0, wgpu.WholeSize)
	}
}

func (e *wgpuPassEncoder) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	e.pass.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

func (e *wgpuPassEncoder) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	e.pass.DrawIndexed(indexCount, instanceCount, firstIndex, baseVertex, firstInstance)
}

// BeginWGPUPrepass begins a prepass render pass on encoder. The depth attachment is cleared to
// 0, the far plane of a reverse-Z projection, and the normals attachment, when given, to zero.
// Both are stored so later passes can sample them.
//
// Parameters:
//   - encoder: the command encoder the pass is recorded into
//   - depth: the depth attachment, must come from a device created by NewWGPUDevice
//   - normals: the optional normals color attachment, nil for depth-only passes
//
// Returns:
//   - TrackedRenderPass: the filtering pass
//   - func(): ends the pass
//   - error: ErrForeignResource if an attachment was not created by a wgpu device
func BeginWGPUPrepass(encoder *wgpu.CommandEncoder, depth, normals resource.TextureView) (TrackedRenderPass, func(), error) {
	depthView, ok := depth.(*wgpuTextureView)
	if !ok {
		return nil, nil, fmt.Errorf("%w: depth attachment", ErrForeignResource)
	}
	desc := &wgpu.RenderPassDescriptor{
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            depthView.view,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 0,
		},
	}
	if normals != nil {
		normalsView, ok := normals.(*wgpuTextureView)
		if !ok {
			return nil, nil, fmt.Errorf("%w: normals attachment", ErrForeignResource)
		}
		desc.ColorAttachments = []wgpu.RenderPassColorAttachment{
			{
				View:       normalsView.view,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: wgpu.Color{},
			},
		}
	}
	pass := encoder.BeginRenderPass(desc)
	return NewWGPURenderPass(pass), func() { pass.End() }, nil
}
