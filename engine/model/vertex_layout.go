package model

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
)

// ErrMissingVertexAttribute is returned when a pipeline requests an attribute the mesh does not provide.
var ErrMissingVertexAttribute = errors.New("model: missing vertex attribute")

// VertexAttributeID names one attribute slot a mesh may provide.
type VertexAttributeID int

const (
	AttributePosition VertexAttributeID = iota
	AttributeUV0
	AttributeNormal
	AttributeTangent
	AttributeColor
	AttributeJointIndex
	AttributeJointWeight
)

func (id VertexAttributeID) String() string {
	switch id {
	case AttributePosition:
		return "Vertex_Position"
	case AttributeUV0:
		return "Vertex_Uv"
	case AttributeNormal:
		return "Vertex_Normal"
	case AttributeTangent:
		return "Vertex_Tangent"
	case AttributeColor:
		return "Vertex_Color"
	case AttributeJointIndex:
		return "Vertex_JointIndex"
	case AttributeJointWeight:
		return "Vertex_JointWeight"
	default:
		return fmt.Sprintf("Vertex_Attribute(%d)", int(id))
	}
}

// VertexAttribute is one attribute stored in a mesh's interleaved vertex buffer.
type VertexAttribute struct {
	ID     VertexAttributeID
	Format wgpu.VertexFormat
	Offset uint64
}

// AttributeLocation requests that attribute ID is bound at ShaderLocation.
type AttributeLocation struct {
	ID             VertexAttributeID
	ShaderLocation uint32
}

// At returns an AttributeLocation binding id at location.
func (id VertexAttributeID) At(location uint32) AttributeLocation {
	return AttributeLocation{ID: id, ShaderLocation: location}
}

// VertexLayout describes the attributes present in a mesh's single interleaved vertex buffer.
// Layouts are interned: every distinct (stride, attributes) signature maps to exactly one
// *VertexLayout, so pointer equality is layout equality.
type VertexLayout struct {
	stride     uint64
	attributes []VertexAttribute
	signature  string
}

var layouts sync.Map // signature -> *VertexLayout

// InternLayout returns the shared layout for the given stride and attributes.
//
// Parameters:
//   - stride: the byte distance between consecutive vertices
//   - attrs: the attributes present in each vertex, in buffer order
//
// Returns:
//   - *VertexLayout: the interned layout
func InternLayout(stride uint64, attrs ...VertexAttribute) *VertexLayout {
	var b strings.Builder
	fmt.Fprintf(&b, "%d", stride)
	for _, a := range attrs {
		fmt.Fprintf(&b, "|%s:%d@%d", a.ID, a.Format, a.Offset)
	}
	sig := b.String()
	if l, ok := layouts.Load(sig); ok {
		return l.(*VertexLayout)
	}
	l, _ := layouts.LoadOrStore(sig, &VertexLayout{
		stride:     stride,
		attributes: append([]VertexAttribute(nil), attrs...),
		signature:  sig,
	})
	return l.(*VertexLayout)
}

// Stride returns the byte size of one vertex.
func (l *VertexLayout) Stride() uint64 { return l.stride }

// Attributes returns a copy of the attributes in buffer order.
func (l *VertexLayout) Attributes() []VertexAttribute {
	return append([]VertexAttribute(nil), l.attributes...)
}

// String returns the layout signature.
func (l *VertexLayout) String() string { return l.signature }

// Contains reports whether the layout provides attribute id.
//
// Parameters:
//   - id: the attribute to look for
//
// Returns:
//   - bool: true if the attribute is present
func (l *VertexLayout) Contains(id VertexAttributeID) bool {
	_, ok := l.attribute(id)
	return ok
}

func (l *VertexLayout) attribute(id VertexAttributeID) (VertexAttribute, bool) {
	for _, a := range l.attributes {
		if a.ID == id {
			return a, true
		}
	}
	return VertexAttribute{}, false
}

// Layout builds the vertex buffer layout that binds exactly the requested attributes at their
// shader locations, in request order.
//
// Parameters:
//   - locations: the attributes to bind and where
//
// Returns:
//   - wgpu.VertexBufferLayout: the buffer layout for the pipeline's single vertex buffer
//   - error: ErrMissingVertexAttribute (wrapped with the attribute name) if any requested attribute is absent
func (l *VertexLayout) Layout(locations []AttributeLocation) (wgpu.VertexBufferLayout, error) {
	attrs := make([]wgpu.VertexAttribute, 0, len(locations))
	for _, loc := range locations {
		a, ok := l.attribute(loc.ID)
		if !ok {
			return wgpu.VertexBufferLayout{}, fmt.Errorf("%w: %s", ErrMissingVertexAttribute, loc.ID)
		}
		attrs = append(attrs, wgpu.VertexAttribute{
			Format:         a.Format,
			Offset:         a.Offset,
			ShaderLocation: loc.ShaderLocation,
		})
	}
	return wgpu.VertexBufferLayout{
		ArrayStride: l.stride,
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes:  attrs,
	}, nil
}

var staticAttributes = []VertexAttribute{
	{ID: AttributePosition, Format: wgpu.VertexFormatFloat32x3, Offset: 0},
	{ID: AttributeNormal, Format: wgpu.VertexFormatFloat32x3, Offset: 12},
	{ID: AttributeUV0, Format: wgpu.VertexFormatFloat32x2, Offset: 24},
	{ID: AttributeColor, Format: wgpu.VertexFormatFloat32x4, Offset: 32},
	{ID: AttributeTangent, Format: wgpu.VertexFormatFloat32x4, Offset: 48},
}

// StaticVertexLayout returns the layout of a GPUVertex buffer.
func StaticVertexLayout() *VertexLayout {
	return InternLayout(64, staticAttributes...)
}

// SkinnedVertexLayout returns the layout of a GPUSkinnedVertex buffer.
func SkinnedVertexLayout() *VertexLayout {
	attrs := append(append([]VertexAttribute(nil), staticAttributes...),
		VertexAttribute{ID: AttributeJointIndex, Format: wgpu.VertexFormatUint32x4, Offset: 64},
		VertexAttribute{ID: AttributeJointWeight, Format: wgpu.VertexFormatFloat32x4, Offset: 80},
	)
	return InternLayout(96, attrs...)
}
