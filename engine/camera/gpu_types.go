package camera

import (
	"encoding/binary"
	"math"
	"unsafe"
)

// GPUViewUniform is the GPU-aligned representation of the prepass view uniform.
// Matches the WGSL View struct in prepass_bindings.wgsl exactly.
// Size: 224 bytes (std140 / WGSL aligned).
type GPUViewUniform struct {
	ViewProj      [16]float32 // offset   0: combined view-projection matrix (mat4x4<f32>)
	InverseView   [16]float32 // offset  64: view-to-world matrix (mat4x4<f32>)
	Projection    [16]float32 // offset 128: projection matrix (mat4x4<f32>)
	WorldPosition [4]float32  // offset 192: world-space camera position, w = 1 (vec4<f32>)
	Viewport      [4]float32  // offset 208: x, y, width, height in pixels (vec4<f32>)
}

// Size returns the size of the GPUViewUniform struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (224)
func (g *GPUViewUniform) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUViewUniform struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g *GPUViewUniform) Marshal() []byte {
	buf := make([]byte, g.Size())
	for i := range 16 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(g.ViewProj[i]))
		binary.LittleEndian.PutUint32(buf[64+i*4:], math.Float32bits(g.InverseView[i]))
		binary.LittleEndian.PutUint32(buf[128+i*4:], math.Float32bits(g.Projection[i]))
	}
	for i := range 4 {
		binary.LittleEndian.PutUint32(buf[192+i*4:], math.Float32bits(g.WorldPosition[i]))
		binary.LittleEndian.PutUint32(buf[208+i*4:], math.Float32bits(g.Viewport[i]))
	}
	return buf
}
