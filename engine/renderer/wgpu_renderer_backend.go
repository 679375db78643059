package renderer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// ErrForeignResource is returned when a resource handle passed to a wgpu device was not created by one.
var ErrForeignResource = errors.New("renderer: resource was not created by a wgpu device")

type wgpuBindGroupLayout struct {
	label  string
	layout *wgpu.BindGroupLayout
}

func (l *wgpuBindGroupLayout) Label() string { return l.label }

type wgpuBindGroup struct {
	label string
	group *wgpu.BindGroup
}

func (g *wgpuBindGroup) Label() string { return g.label }

type wgpuBuffer struct {
	label  string
	size   uint64
	buffer *wgpu.Buffer
}

func (b *wgpuBuffer) Label() string { return b.label }
func (b *wgpuBuffer) Size() uint64  { return b.size }
func (b *wgpuBuffer) Release()      { b.buffer.Release() }

type wgpuTextureView struct {
	label string
	view  *wgpu.TextureView
}

func (v *wgpuTextureView) Label() string { return v.label }
func (v *wgpuTextureView) Release()      { v.view.Release() }

type wgpuTexture struct {
	label   string
	texture *wgpu.Texture
}

func (t *wgpuTexture) Label() string { return t.label }

func (t *wgpuTexture) CreateView() (resource.TextureView, error) {
	view, err := t.texture.CreateView(nil)
	if err != nil {
		return nil, fmt.Errorf("renderer: failed to create view of %q: %w", t.label, err)
	}
	return &wgpuTextureView{label: t.label, view: view}, nil
}

func (t *wgpuTexture) Release() {
	t.texture.Release()
}

type wgpuSampler struct {
	label   string
	sampler *wgpu.Sampler
}

func (s *wgpuSampler) Label() string { return s.label }

type wgpuRenderPipeline struct {
	label    string
	pipeline *wgpu.RenderPipeline
}

func (p *wgpuRenderPipeline) Label() string { return p.label }

// wgpuDevice is the wgpu implementation of the Device interface.
type wgpuDevice struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue
}

var _ Device = &wgpuDevice{}

// NewWGPUDevice wraps an initialized wgpu device and its queue.
//
// Parameters:
//   - device: the wgpu device resources are created on
//   - queue: the queue of device used for buffer writes
//
// Returns:
//   - Device: the device capability
func NewWGPUDevice(device *wgpu.Device, queue *wgpu.Queue) Device {
	if device == nil || queue == nil {
		panic("renderer: wgpu device requires a device and a queue")
	}
	return &wgpuDevice{
		mu:     &sync.Mutex{},
		device: device,
		queue:  queue,
	}
}

func (d *wgpuDevice) CreateBindGroupLayout(desc *wgpu.BindGroupLayoutDescriptor) (resource.BindGroupLayout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	layout, err := d.device.CreateBindGroupLayout(desc)
	if err != nil {
		return nil, err
	}
	return &wgpuBindGroupLayout{label: desc.Label, layout: layout}, nil
}

func (d *wgpuDevice) CreateBindGroup(desc *resource.BindGroupDescriptor) (resource.BindGroup, error) {
	layout, ok := desc.Layout.(*wgpuBindGroupLayout)
	if !ok {
		return nil, fmt.Errorf("bind group %q layout: %w", desc.Label, ErrForeignResource)
	}

	entries := make([]wgpu.BindGroupEntry, len(desc.Entries))
	for i, e := range desc.Entries {
		entry := wgpu.BindGroupEntry{Binding: e.Binding}
		switch {
		case e.Buffer != nil:
			buf, ok := e.Buffer.Buffer.(*wgpuBuffer)
			if !ok {
				return nil, fmt.Errorf("bind group %q binding %d: %w", desc.Label, e.Binding, ErrForeignResource)
			}
			entry.Buffer = buf.buffer
			entry.Offset = e.Buffer.Offset
			entry.Size = e.Buffer.Size
			if entry.Size == 0 {
				entry.Size = wgpu.WholeSize
			}
		case e.TextureView != nil:
			view, ok := e.TextureView.(*wgpuTextureView)
			if !ok {
				return nil, fmt.Errorf("bind group %q binding %d: %w", desc.Label, e.Binding, ErrForeignResource)
			}
			entry.TextureView = view.view
		case e.Sampler != nil:
			samp, ok := e.Sampler.(*wgpuSampler)
			if !ok {
				return nil, fmt.Errorf("bind group %q binding %d: %w", desc.Label, e.Binding, ErrForeignResource)
			}
			entry.Sampler = samp.sampler
		default:
			return nil, fmt.Errorf("renderer: bind group %q binding %d has no resource", desc.Label, e.Binding)
		}
		entries[i] = entry
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	group, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   desc.Label,
		Layout:  layout.layout,
		Entries: entries,
	})
	if err != nil {
		return nil, err
	}
	return &wgpuBindGroup{label: desc.Label, group: group}, nil
}

func (d *wgpuDevice) CreateBuffer(label string, usage wgpu.BufferUsage, size uint64) (resource.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            label,
		Size:             size,
		Usage:            usage | wgpu.BufferUsageCopyDst,
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, err
	}
	return &wgpuBuffer{label: label, size: size, buffer: buf}, nil
}

func (d *wgpuDevice) CreateBufferInit(label string, usage wgpu.BufferUsage, contents []byte) (resource.Buffer, error) {
	buf, err := d.CreateBuffer(label, usage, uint64(len(contents)))
	if err != nil {
		return nil, err
	}
	if err := d.WriteBuffer(buf, 0, contents); err != nil {
		return nil, err
	}
	return buf, nil
}

func (d *wgpuDevice) WriteBuffer(buf resource.Buffer, offset uint64, data []byte) error {
	b, ok := buf.(*wgpuBuffer)
	if !ok {
		return fmt.Errorf("write to %q: %w", buf.Label(), ErrForeignResource)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue.WriteBuffer(b.buffer, offset, data)
	return nil
}

func (d *wgpuDevice) CreateTexture(desc *TextureDescriptor) (resource.Texture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         desc.Label,
		Size:          desc.Size,
		MipLevelCount: desc.MipLevelCount,
		SampleCount:   desc.SampleCount,
		Dimension:     desc.Dimension,
		Format:        desc.Format,
		Usage:         desc.Usage,
	})
	if err != nil {
		return nil, err
	}
	return &wgpuTexture{label: desc.Label, texture: tex}, nil
}

func (d *wgpuDevice) CreateSampler(label string) (resource.Sampler, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	samp, err := d.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         label,
		AddressModeU:  wgpu.AddressModeRepeat,
		AddressModeV:  wgpu.AddressModeRepeat,
		AddressModeW:  wgpu.AddressModeRepeat,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeLinear,
		LodMinClamp:   0.0,
		LodMaxClamp:   32.0,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return nil, err
	}
	return &wgpuSampler{label: label, sampler: samp}, nil
}

func (d *wgpuDevice) CreateRenderPipeline(cfg *pipeline.RenderPipelineConfig, vertex, fragment *shader.Variant) (resource.RenderPipeline, error) {
	if cfg.PolygonMode != pipeline.PolygonModeFill {
		return nil, fmt.Errorf("renderer: pipeline %q: polygon mode %d is not supported", cfg.Label, cfg.PolygonMode)
	}

	layouts := make([]*wgpu.BindGroupLayout, len(cfg.Layout))
	for i, l := range cfg.Layout {
		wl, ok := l.(*wgpuBindGroupLayout)
		if !ok {
			return nil, fmt.Errorf("pipeline %q group %d: %w", cfg.Label, i, ErrForeignResource)
		}
		layouts[i] = wl.layout
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	vs, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: vertex.Label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: vertex.Source,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("renderer: vertex module of %q: %w", cfg.Label, err)
	}

	var fragmentState *wgpu.FragmentState
	if cfg.Fragment != nil {
		fs := vs
		if fragment != vertex {
			fs, err = d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
				Label: fragment.Label,
				WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
					Code: fragment.Source,
				},
			})
			if err != nil {
				return nil, fmt.Errorf("renderer: fragment module of %q: %w", cfg.Label, err)
			}
		}
		fragmentState = &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: cfg.Fragment.EntryPoint,
			Targets:    cfg.Fragment.Targets,
		}
	}

	pipelineLayout, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            cfg.Label,
		BindGroupLayouts: layouts,
	})
	if err != nil {
		return nil, err
	}

	created, err := d.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  cfg.Label,
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: cfg.Vertex.EntryPoint,
			Buffers:    cfg.Vertex.Buffers,
		},
		Fragment:     fragmentState,
		Primitive:    cfg.Primitive,
		DepthStencil: cfg.DepthStencil,
		Multisample:  cfg.Multisample,
	})
	if err != nil {
		return nil, err
	}
	return &wgpuRenderPipeline{label: cfg.Label, pipeline: created}, nil
}
