package model

import (
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer/resource"
	"github.com/cogentcore/webgpu/wgpu"
)

// MeshBuilderOption is a functional option for configuring a Mesh via NewMesh.
type MeshBuilderOption func(*mesh)

// WithTopology is an option builder that sets the primitive topology of the Mesh.
//
// Parameters:
//   - topology: the primitive topology to draw with
//
// Returns:
//   - MeshBuilderOption: a function that applies the topology option to a mesh
func WithTopology(topology PrimitiveTopology) MeshBuilderOption {
	return func(m *mesh) {
		m.topology = topology
	}
}

// WithVertexBuffer is an option builder that sets the vertex buffer of the Mesh.
//
// Parameters:
//   - buf: the interleaved vertex buffer
//   - count: the number of vertices in buf
//
// Returns:
//   - MeshBuilderOption: a function that applies the vertex buffer option to a mesh
func WithVertexBuffer(buf resource.Buffer, count uint32) MeshBuilderOption {
	return func(m *mesh) {
		m.vertexBuffer = buf
		m.vertexCount = count
	}
}

// WithIndexBuffer is an option builder that makes the Mesh indexed.
//
// Parameters:
//   - buf: the index buffer
//   - count: the number of indices to draw
//   - format: the index format of buf
//
// Returns:
//   - MeshBuilderOption: a function that applies the index buffer option to a mesh
func WithIndexBuffer(buf resource.Buffer, count uint32, format wgpu.IndexFormat) MeshBuilderOption {
	return func(m *mesh) {
		m.indexBuffer = buf
		m.indexCount = count
		m.indexFormat = format
	}
}
