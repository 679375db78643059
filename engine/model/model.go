package model

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer/resource"
	"github.com/cogentcore/webgpu/wgpu"
)

// PrimitiveTopology is the primitive assembly mode of a mesh. Values fit in three bits so they
// can be packed into pipeline keys.
type PrimitiveTopology uint8

const (
	TopologyPointList PrimitiveTopology = iota
	TopologyLineList
	TopologyLineStrip
	TopologyTriangleList
	TopologyTriangleStrip
)

// WGPU maps the topology onto the wgpu enum.
//
// Returns:
//   - wgpu.PrimitiveTopology: the matching wgpu topology
func (t PrimitiveTopology) WGPU() wgpu.PrimitiveTopology {
	switch t {
	case TopologyPointList:
		return wgpu.PrimitiveTopologyPointList
	case TopologyLineList:
		return wgpu.PrimitiveTopologyLineList
	case TopologyLineStrip:
		return wgpu.PrimitiveTopologyLineStrip
	case TopologyTriangleStrip:
		return wgpu.PrimitiveTopologyTriangleStrip
	default:
		return wgpu.PrimitiveTopologyTriangleList
	}
}

func (t PrimitiveTopology) String() string {
	switch t {
	case TopologyPointList:
		return "PointList"
	case TopologyLineList:
		return "LineList"
	case TopologyLineStrip:
		return "LineStrip"
	case TopologyTriangleList:
		return "TriangleList"
	case TopologyTriangleStrip:
		return "TriangleStrip"
	default:
		return fmt.Sprintf("PrimitiveTopology(%d)", uint8(t))
	}
}

// mesh is the implementation of the Mesh interface.
type mesh struct {
	label        string
	layout       *VertexLayout
	topology     PrimitiveTopology
	vertexBuffer resource.Buffer
	vertexCount  uint32
	indexBuffer  resource.Buffer
	indexCount   uint32
	indexFormat  wgpu.IndexFormat
}

// Mesh is a GPU-resident mesh render asset: its vertex layout, primitive topology and the
// buffers a draw call binds.
type Mesh interface {
	// Label retrieves the mesh identifier used in logs.
	//
	// Returns:
	//   - string: the mesh label
	Label() string

	// Layout retrieves the interned vertex layout of the mesh's vertex buffer.
	//
	// Returns:
	//   - *VertexLayout: the vertex layout
	Layout() *VertexLayout

	// Topology retrieves the primitive topology the mesh is drawn with.
	//
	// Returns:
	//   - PrimitiveTopology: the topology
	Topology() PrimitiveTopology

	// VertexBuffer retrieves the interleaved vertex buffer.
	//
	// Returns:
	//   - resource.Buffer: the vertex buffer, or nil if not uploaded
	VertexBuffer() resource.Buffer

	// VertexCount returns the number of vertices in the vertex buffer.
	//
	// Returns:
	//   - uint32: the vertex count
	VertexCount() uint32

	// IndexBuffer retrieves the index buffer. Nil for non-indexed meshes.
	//
	// Returns:
	//   - resource.Buffer: the index buffer or nil
	IndexBuffer() resource.Buffer

	// IndexCount returns the number of indices drawn for indexed meshes.
	//
	// Returns:
	//   - uint32: the index count
	IndexCount() uint32

	// IndexFormat returns the format of the index buffer.
	//
	// Returns:
	//   - wgpu.IndexFormat: the index format (Uint32 by default)
	IndexFormat() wgpu.IndexFormat
}

var _ Mesh = &mesh{}

// NewMesh creates a Mesh with the given vertex layout. Topology defaults to TopologyTriangleList
// and the index format to Uint32.
//
// Parameters:
//   - label: the mesh identifier
//   - layout: the vertex layout of the mesh, must not be nil
//   - opts: a variadic list of MeshBuilderOption functions to configure the mesh
//
// Returns:
//   - Mesh: the new mesh
func NewMesh(label string, layout *VertexLayout, opts ...MeshBuilderOption) Mesh {
	if layout == nil {
		panic(fmt.Sprintf("model: mesh %q requires a vertex layout", label))
	}
	m := &mesh{
		label:       label,
		layout:      layout,
		topology:    TopologyTriangleList,
		indexFormat: wgpu.IndexFormatUint32,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *mesh) Label() string {
	return m.label
}

func (m *mesh) Layout() *VertexLayout {
	return m.layout
}

func (m *mesh) Topology() PrimitiveTopology {
	return m.topology
}

func (m *mesh) VertexBuffer() resource.Buffer {
	return m.vertexBuffer
}

func (m *mesh) VertexCount() uint32 {
	return m.vertexCount
}

func (m *mesh) IndexBuffer() resource.Buffer {
	return m.indexBuffer
}

func (m *mesh) IndexCount() uint32 {
	return m.indexCount
}

func (m *mesh) IndexFormat() wgpu.IndexFormat {
	return m.indexFormat
}
