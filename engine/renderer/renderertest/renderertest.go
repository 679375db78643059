// Package renderertest provides in-memory implementations of the renderer device and render
// pass for tests. Created resources record the descriptors they were created from.
package renderertest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer"
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// ErrInjected is returned by Device methods whose failure was requested by the test.
var ErrInjected = errors.New("renderertest: injected failure")

type BindGroupLayout struct {
	Desc wgpu.BindGroupLayoutDescriptor
}

func (l *BindGroupLayout) Label() string { return l.Desc.Label }

type BindGroup struct {
	Desc resource.BindGroupDescriptor
}

func (g *BindGroup) Label() string { return g.Desc.Label }

type Buffer struct {
	Name  string
	Usage wgpu.BufferUsage

	mu       sync.Mutex
	data     []byte
	released bool
}

func (b *Buffer) Label() string { return b.Name }

func (b *Buffer) Size() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return uint64(len(b.data))
}

func (b *Buffer) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.released = true
}

// Released reports whether Release was called.
func (b *Buffer) Released() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.released
}

// Data returns a copy of the buffer contents.
func (b *Buffer) Data() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.data...)
}

type Texture struct {
	Desc renderer.TextureDescriptor

	mu       sync.Mutex
	released bool
}

func (t *Texture) Label() string { return t.Desc.Label }

func (t *Texture) CreateView() (resource.TextureView, error) {
	return &TextureView{Texture: t}, nil
}

func (t *Texture) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.released = true
}

// Released reports whether Release was called.
func (t *Texture) Released() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.released
}

type TextureView struct {
	Texture *Texture

	mu       sync.Mutex
	released bool
}

func (v *TextureView) Label() string { return v.Texture.Desc.Label }

func (v *TextureView) Release() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.released = true
}

// Released reports whether Release was called.
func (v *TextureView) Released() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.released
}

type Sampler struct {
	Name string
}

func (s *Sampler) Label() string { return s.Name }

type RenderPipeline struct {
	Config   *pipeline.RenderPipelineConfig
	Vertex   *shader.Variant
	Fragment *shader.Variant
}

func (p *RenderPipeline) Label() string { return p.Config.Label }

// Device is a renderer.Device that keeps everything in memory.
type Device struct {
	// FailTextures makes CreateTexture fail.
	FailTextures bool
	// FailPipelines makes CreateRenderPipeline fail.
	FailPipelines bool

	mu        sync.Mutex
	textures  []*Texture
	groups    []*BindGroup
	pipelines []*RenderPipeline
}

var _ renderer.Device = &Device{}

// NewDevice creates an empty fake device.
func NewDevice() *Device {
	return &Device{}
}

func (d *Device) CreateBindGroupLayout(desc *wgpu.BindGroupLayoutDescriptor) (resource.BindGroupLayout, error) {
	return &BindGroupLayout{Desc: *desc}, nil
}

func (d *Device) CreateBindGroup(desc *resource.BindGroupDescriptor) (resource.BindGroup, error) {
	if desc.Layout == nil {
		return nil, fmt.Errorf("renderertest: bind group %q has no layout", desc.Label)
	}
	g := &BindGroup{Desc: *desc}
	d.mu.Lock()
	d.groups = append(d.groups, g)
	d.mu.Unlock()
	return g, nil
}

func (d *Device) CreateBuffer(label string, usage wgpu.BufferUsage, size uint64) (resource.Buffer, error) {
	return &Buffer{Name: label, Usage: usage | wgpu.BufferUsageCopyDst, data: make([]byte, size)}, nil
}

func (d *Device) CreateBufferInit(label string, usage wgpu.BufferUsage, contents []byte) (resource.Buffer, error) {
	return &Buffer{Name: label, Usage: usage | wgpu.BufferUsageCopyDst, data: append([]byte(nil), contents...)}, nil
}

func (d *Device) WriteBuffer(buf resource.Buffer, offset uint64, data []byte) error {
	b, ok := buf.(*Buffer)
	if !ok {
		return fmt.Errorf("renderertest: foreign buffer %q", buf.Label())
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if end := offset + uint64(len(data)); end > uint64(len(b.data)) {
		return fmt.Errorf("renderertest: write of %d bytes at %d overflows %q", len(data), offset, b.Name)
	}
	copy(b.data[offset:], data)
	return nil
}

func (d *Device) CreateTexture(desc *renderer.TextureDescriptor) (resource.Texture, error) {
	if d.FailTextures {
		return nil, ErrInjected
	}
	t := &Texture{Desc: *desc}
	d.mu.Lock()
	d.textures = append(d.textures, t)
	d.mu.Unlock()
	return t, nil
}

func (d *Device) CreateSampler(label string) (resource.Sampler, error) {
	return &Sampler{Name: label}, nil
}

func (d *Device) CreateRenderPipeline(cfg *pipeline.RenderPipelineConfig, vertex, fragment *shader.Variant) (resource.RenderPipeline, error) {
	if d.FailPipelines {
		return nil, ErrInjected
	}
	p := &RenderPipeline{Config: cfg, Vertex: vertex, Fragment: fragment}
	d.mu.Lock()
	d.pipelines = append(d.pipelines, p)
	d.mu.Unlock()
	return p, nil
}

// Textures returns every texture created so far.
func (d *Device) Textures() []*Texture {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Texture(nil), d.textures...)
}

// BindGroups returns every bind group created so far.
func (d *Device) BindGroups() []*BindGroup {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*BindGroup(nil), d.groups...)
}

// Pipelines returns every render pipeline created so far.
func (d *Device) Pipelines() []*RenderPipeline {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*RenderPipeline(nil), d.pipelines...)
}

// Command is one call recorded by a Pass.
type Command struct {
	Op       string
	Index    uint32
	Pipeline resource.RenderPipeline
	Group    resource.BindGroup
	Offsets  []uint32
	Buffer   resource.Buffer
	Count    uint32
}

// Pass is a renderer.RenderPassEncoder that records every call.
type Pass struct {
	Commands []Command
}

var _ renderer.RenderPassEncoder = &Pass{}

func (p *Pass) SetPipeline(pl resource.RenderPipeline) {
	p.Commands = append(p.Commands, Command{Op: "SetPipeline", Pipeline: pl})
}

func (p *Pass) SetBindGroup(index uint32, group resource.BindGroup, dynamicOffsets []uint32) {
	p.Commands = append(p.Commands, Command{Op: "SetBindGroup", Index: index, Group: group, Offsets: append([]uint32(nil), dynamicOffsets...)})
}

func (p *Pass) SetVertexBuffer(slot uint32, buf resource.Buffer) {
	p.Commands = append(p.Commands, Command{Op: "SetVertexBuffer", Index: slot, Buffer: buf})
}

func (p *Pass) SetIndexBuffer(buf resource.Buffer, format wgpu.IndexFormat) {
	p.Commands = append(p.Commands, Command{Op: "SetIndexBuffer", Buffer: buf})
}

func (p *Pass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.Commands = append(p.Commands, Command{Op: "Draw", Count: vertexCount})
}

func (p *Pass) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	p.Commands = append(p.Commands, Command{Op: "DrawIndexed", Count: indexCount})
}

// Ops returns the recorded operation names in call order.
func (p *Pass) Ops() []string {
	ops := make([]string, len(p.Commands))
	for i, c := range p.Commands {
		ops[i] = c.Op
	}
	return ops
}
