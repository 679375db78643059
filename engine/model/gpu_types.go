package model

import (
	"encoding/binary"
	"math"
	"unsafe"
)

// putFloats writes vals as little-endian float32 values starting at buf[off] and returns the
// offset after the last value.
func putFloats(buf []byte, off int, vals ...float32) int {
	for _, v := range vals {
		binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
		off += 4
	}
	return off
}

// GPUVertex is the GPU-aligned representation of a single mesh vertex for static (non-skinned) meshes.
// Its field offsets are the offsets StaticVertexLayout reports.
// Size: 64 bytes.
type GPUVertex struct {
	Position [3]float32 // offset  0: vertex position in model space (12 bytes)
	Normal   [3]float32 // offset 12: vertex normal (12 bytes)
	TexCoord [2]float32 // offset 24: first UV set (8 bytes)
	Color    [4]float32 // offset 32: per-vertex RGBA color (16 bytes)
	Tangent  [4]float32 // offset 48: tangent (xyz) + handedness (w) (16 bytes)
}

// Size returns the size of the GPUVertex struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (g *GPUVertex) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUVertex struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 64-byte buffer ready for GPU upload.
func (g *GPUVertex) Marshal() []byte {
	buf := make([]byte, 64)
	g.marshalInto(buf)
	return buf
}

func (g *GPUVertex) marshalInto(buf []byte) {
	off := putFloats(buf, 0, g.Position[:]...)
	off = putFloats(buf, off, g.Normal[:]...)
	off = putFloats(buf, off, g.TexCoord[:]...)
	off = putFloats(buf, off, g.Color[:]...)
	putFloats(buf, off, g.Tangent[:]...)
}

// GPUSkinnedVertex extends GPUVertex with the joint indices and weights consumed by skinned
// prepass variants. Its field offsets are the offsets SkinnedVertexLayout reports.
// Size: 96 bytes.
type GPUSkinnedVertex struct {
	GPUVertex                // offset  0: base vertex data (64 bytes)
	JointIndices [4]uint32  // offset 64: indices of up to 4 influencing joints (16 bytes)
	JointWeights [4]float32 // offset 80: blend weight per joint, summing to 1.0 (16 bytes)
}

// Size returns the size of the GPUSkinnedVertex struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (g *GPUSkinnedVertex) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUSkinnedVertex struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 96-byte buffer ready for GPU upload.
func (g *GPUSkinnedVertex) Marshal() []byte {
	buf := make([]byte, 96)
	g.GPUVertex.marshalInto(buf)
	for i, idx := range g.JointIndices {
		binary.LittleEndian.PutUint32(buf[64+i*4:68+i*4], idx)
	}
	putFloats(buf, 80, g.JointWeights[:]...)
	return buf
}

// MarshalVertices packs a vertex slice into one contiguous upload buffer.
//
// Parameters:
//   - vertices: the vertices to pack
//
// Returns:
//   - []byte: len(vertices)*64 bytes
func MarshalVertices(vertices []GPUVertex) []byte {
	buf := make([]byte, 64*len(vertices))
	for i := range vertices {
		vertices[i].marshalInto(buf[i*64 : (i+1)*64])
	}
	return buf
}

// GPUMeshUniform is the per-drawable mesh uniform bound at group 2 binding 0 of the prepass shader.
// Size: 128 bytes.
type GPUMeshUniform struct {
	Model                 [16]float32 // offset  0: model-to-world transform (64 bytes)
	InverseTransposeModel [16]float32 // offset 64: inverse transpose of Model for normals (64 bytes)
}

// Size returns the size of the GPUMeshUniform struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (g *GPUMeshUniform) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUMeshUniform struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 128-byte buffer ready for GPU upload.
func (g *GPUMeshUniform) Marshal() []byte {
	buf := make([]byte, 128)
	off := putFloats(buf, 0, g.Model[:]...)
	putFloats(buf, off, g.InverseTransposeModel[:]...)
	return buf
}
