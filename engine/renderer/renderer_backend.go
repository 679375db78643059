package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer/resource"
	"github.com/cogentcore/webgpu/wgpu"
)

// MSAASampleCount controls the number of samples used for multisample anti-aliasing (MSAA).
// Only specific power-of-two values are valid for GPU hardware. WebGPU guarantees support for
// 1 (off) and 4; 2 and 8 are adapter-dependent.
type MSAASampleCount uint32

const (
	// MSAAOff disables multisample anti-aliasing (sample count 1).
	MSAAOff MSAASampleCount = 1

	// MSAA2x enables 2× multisample anti-aliasing. Adapter-dependent.
	MSAA2x MSAASampleCount = 2

	// MSAA4x enables 4× multisample anti-aliasing. This is the default.
	MSAA4x MSAASampleCount = 4

	// MSAA8x enables 8× multisample anti-aliasing. Adapter-dependent; not all hardware supports this.
	MSAA8x MSAASampleCount = 8
)

// Valid reports whether c is one of the supported sample counts.
func (c MSAASampleCount) Valid() bool {
	switch c {
	case MSAAOff, MSAA2x, MSAA4x, MSAA8x:
		return true
	default:
		return false
	}
}

// Log2 returns log2 of the sample count, in the range 0 to 3.
//
// Returns:
//   - uint32: the exponent of the sample count
//   - error: an error if c is not a supported sample count
func (c MSAASampleCount) Log2() (uint32, error) {
	switch c {
	case MSAAOff:
		return 0, nil
	case MSAA2x:
		return 1, nil
	case MSAA4x:
		return 2, nil
	case MSAA8x:
		return 3, nil
	default:
		return 0, fmt.Errorf("renderer: unsupported MSAA sample count %d", uint32(c))
	}
}

// TextureDescriptor describes a texture to create. It is comparable so the texture cache can
// match requests against previously created textures.
type TextureDescriptor struct {
	Label         string
	Size          wgpu.Extent3D
	MipLevelCount uint32
	SampleCount   uint32
	Dimension     wgpu.TextureDimension
	Format        wgpu.TextureFormat
	Usage         wgpu.TextureUsage
}

// Device is the GPU capability the prepass renders with. NewWGPUDevice implements it on a wgpu
// device; renderertest provides an in-memory fake. Implementations must be safe for concurrent use.
type Device interface {
	pipeline.Compiler

	// CreateBindGroupLayout creates a bind group layout from desc.
	//
	// Parameters:
	//   - desc: the layout descriptor
	//
	// Returns:
	//   - resource.BindGroupLayout: the created layout
	//   - error: an error if the backend rejected the layout
	CreateBindGroupLayout(desc *wgpu.BindGroupLayoutDescriptor) (resource.BindGroupLayout, error)

	// CreateBindGroup creates a bind group from desc. Every entry must reference resources
	// created by the same device.
	//
	// Parameters:
	//   - desc: the bind group descriptor
	//
	// Returns:
	//   - resource.BindGroup: the created bind group
	//   - error: an error if the backend rejected the bind group
	CreateBindGroup(desc *resource.BindGroupDescriptor) (resource.BindGroup, error)

	// CreateBuffer creates an uninitialized buffer.
	//
	// Parameters:
	//   - label: the debug label of the buffer
	//   - usage: the buffer usage flags; CopyDst is always added
	//   - size: the buffer size in bytes
	//
	// Returns:
	//   - resource.Buffer: the created buffer
	//   - error: an error if the backend rejected the buffer
	CreateBuffer(label string, usage wgpu.BufferUsage, size uint64) (resource.Buffer, error)

	// CreateBufferInit creates a buffer holding contents.
	//
	// Parameters:
	//   - label: the debug label of the buffer
	//   - usage: the buffer usage flags; CopyDst is always added
	//   - contents: the initial buffer contents
	//
	// Returns:
	//   - resource.Buffer: the created buffer
	//   - error: an error if the backend rejected the buffer
	CreateBufferInit(label string, usage wgpu.BufferUsage, contents []byte) (resource.Buffer, error)

	// WriteBuffer queues a write of data into buf at offset.
	//
	// Parameters:
	//   - buf: the destination buffer
	//   - offset: the byte offset into buf
	//   - data: the bytes to write
	//
	// Returns:
	//   - error: an error if buf does not belong to the device
	WriteBuffer(buf resource.Buffer, offset uint64, data []byte) error

	// CreateTexture creates a texture from desc.
	//
	// Parameters:
	//   - desc: the texture descriptor
	//
	// Returns:
	//   - resource.Texture: the created texture
	//   - error: an error if the backend rejected the texture
	CreateTexture(desc *TextureDescriptor) (resource.Texture, error)

	// CreateSampler creates a linear-filtering, repeating sampler.
	//
	// Parameters:
	//   - label: the debug label of the sampler
	//
	// Returns:
	//   - resource.Sampler: the created sampler
	//   - error: an error if the backend rejected the sampler
	CreateSampler(label string) (resource.Sampler, error)
}
