package scene

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-prepass/common"
	"github.com/Carmen-Shannon/oxy-prepass/engine/camera"
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer"
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer/resource"
	"github.com/cogentcore/webgpu/wgpu"
)

// ViewUniformStride is the distance in bytes between two views' uniforms in the shared buffer.
// It matches the minimum uniform buffer offset alignment WebGPU guarantees.
const ViewUniformStride = 256

// viewUniforms is the implementation of the ViewUniforms interface.
type viewUniforms struct {
	mu      sync.Mutex
	buffer  resource.Buffer
	staging []byte
	slots   int
	retired []resource.Buffer
}

// ViewUniforms owns the uniform buffer holding every view's GPUViewUniform. All views share one
// binding; each view selects its slot with the dynamic offset returned by Write. Slots are
// handed out for the whole frame, so views of several scenes recorded into one frame never
// share a slot.
// Thread-safe for concurrent access.
type ViewUniforms interface {
	// Write uploads one uniform per view into the slots after those already written this
	// frame, growing the buffer when needed. A grown buffer receives every slot of the frame;
	// the buffer it replaces stays alive until Reset. Writing no uniforms keeps the previous
	// buffer and binding.
	//
	// Parameters:
	//   - device: the device the buffer lives on
	//   - uniforms: the uniforms, in view order
	//
	// Returns:
	//   - []uint32: the dynamic offset of each view's uniform
	//   - error: an error if the buffer could not be created or written
	Write(device renderer.Device, uniforms []camera.GPUViewUniform) ([]uint32, error)

	// Reset starts a new frame at the first slot and releases the buffers replaced during the
	// frame that ended. Call it once the frame's commands were submitted.
	Reset()

	// Binding returns the buffer range bound at the view uniform slot.
	//
	// Returns:
	//   - resource.BufferBinding: one uniform-sized window into the buffer
	//   - bool: false until the first successful Write
	Binding() (resource.BufferBinding, bool)
}

var _ ViewUniforms = &viewUniforms{}

// NewViewUniforms creates a ViewUniforms without a buffer; the first Write creates it.
//
// Returns:
//   - ViewUniforms: the new view uniform store
func NewViewUniforms() ViewUniforms {
	return &viewUniforms{}
}

func (u *viewUniforms) Write(device renderer.Device, uniforms []camera.GPUViewUniform) ([]uint32, error) {
	if len(uniforms) == 0 {
		return nil, nil
	}
	u.mu.Lock()
	defer u.mu.Unlock()

	base := uint64(u.slots) * ViewUniformStride
	size := uint64(u.slots+len(uniforms)) * ViewUniformStride
	from := base
	if u.buffer == nil || u.buffer.Size() < size {
		capacity := uint64(ViewUniformStride)
		for capacity < size {
			capacity *= 2
		}
		buf, err := device.CreateBuffer("view_uniform_buffer", wgpu.BufferUsageUniform, capacity)
		if err != nil {
			return nil, fmt.Errorf("scene: view uniform buffer: %w", err)
		}
		if u.buffer != nil {
			u.retired = append(u.retired, u.buffer)
		}
		u.buffer = buf
		from = 0
		common.Logger().Debug("view uniform buffer resized", "bytes", capacity, "views", u.slots+len(uniforms))
	}

	if uint64(cap(u.staging)) < size {
		grown := make([]byte, base, size)
		copy(grown, u.staging)
		u.staging = grown
	}
	u.staging = u.staging[:size]
	clear(u.staging[base:])
	offsets := make([]uint32, len(uniforms))
	for i := range uniforms {
		offsets[i] = uint32(base) + uint32(i*ViewUniformStride)
		copy(u.staging[offsets[i]:], uniforms[i].Marshal())
	}
	if err := device.WriteBuffer(u.buffer, from, u.staging[from:]); err != nil {
		u.staging = u.staging[:base]
		return nil, fmt.Errorf("scene: view uniform write: %w", err)
	}
	u.slots += len(uniforms)
	return offsets, nil
}

func (u *viewUniforms) Reset() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.slots = 0
	u.staging = u.staging[:0]
	for _, buf := range u.retired {
		buf.Release()
	}
	u.retired = nil
}

func (u *viewUniforms) Binding() (resource.BufferBinding, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.buffer == nil {
		return resource.BufferBinding{}, false
	}
	var g camera.GPUViewUniform
	return resource.BufferBinding{Buffer: u.buffer, Size: uint64(g.Size())}, true
}
