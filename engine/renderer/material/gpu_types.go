package material

import (
	"encoding/binary"
	"math"
	"unsafe"
)

// GPUStandardMaterial is the GPU-aligned uniform bound at group 1, binding 0 of the prepass
// shader. Matches the WGSL StandardMaterial struct in prepass_bindings.wgsl.
// Size: 32 bytes (vec4 + f32, padded to 16-byte struct alignment).
type GPUStandardMaterial struct {
	BaseColor   [4]float32 // offset 0: RGBA base color (16 bytes)
	AlphaCutoff float32    // offset 16: alpha mask threshold (4 bytes)
	_           [3]float32 // offset 20: padding to 32 bytes (12 bytes)
}

// Size returns the size of the GPUStandardMaterial struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (g *GPUStandardMaterial) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUStandardMaterial struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 32-byte buffer ready for GPU upload.
func (g *GPUStandardMaterial) Marshal() []byte {
	buf := make([]byte, 32)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(g.BaseColor[0]))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(g.BaseColor[1]))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(g.BaseColor[2]))
	binary.LittleEndian.PutUint32(buf[12:16], math.Float32bits(g.BaseColor[3]))
	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(g.AlphaCutoff))
	return buf
}
