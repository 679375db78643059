package model

import (
	"errors"
	"sync"
	"testing"
	"unsafe"

	"github.com/cogentcore/webgpu/wgpu"
)

func TestInternLayout_Identity(t *testing.T) {
	if StaticVertexLayout() != StaticVertexLayout() {
		t.Error("StaticVertexLayout() returned distinct pointers")
	}
	if StaticVertexLayout() == SkinnedVertexLayout() {
		t.Error("static and skinned layouts share an identity")
	}

	a := InternLayout(20, VertexAttribute{ID: AttributePosition, Format: wgpu.VertexFormatFloat32x3})
	b := InternLayout(20, VertexAttribute{ID: AttributePosition, Format: wgpu.VertexFormatFloat32x3})
	c := InternLayout(24, VertexAttribute{ID: AttributePosition, Format: wgpu.VertexFormatFloat32x3})
	if a != b {
		t.Error("equal signatures interned to different layouts")
	}
	if a == c {
		t.Error("different strides interned to the same layout")
	}
}

func TestInternLayout_Concurrent(t *testing.T) {
	attr := VertexAttribute{ID: AttributeUV0, Format: wgpu.VertexFormatFloat32x2}
	results := make([]*VertexLayout, 32)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = InternLayout(8, attr)
		}(i)
	}
	wg.Wait()
	for i, l := range results {
		if l != results[0] {
			t.Fatalf("result %d interned to a different layout", i)
		}
	}
}

func TestVertexLayout_Layout(t *testing.T) {
	layout := StaticVertexLayout()

	got, err := layout.Layout([]AttributeLocation{AttributePosition.At(0), AttributeUV0.At(1)})
	if err != nil {
		t.Fatalf("Layout() error = %v", err)
	}
	if got.ArrayStride != 64 {
		t.Errorf("ArrayStride = %d, want 64", got.ArrayStride)
	}
	if len(got.Attributes) != 2 {
		t.Fatalf("len(Attributes) = %d, want 2", len(got.Attributes))
	}
	if a := got.Attributes[1]; a.ShaderLocation != 1 || a.Offset != 24 || a.Format != wgpu.VertexFormatFloat32x2 {
		t.Errorf("uv attribute = %+v", a)
	}

	_, err = layout.Layout([]AttributeLocation{AttributeJointIndex.At(4)})
	if !errors.Is(err, ErrMissingVertexAttribute) {
		t.Errorf("Layout() with missing joints error = %v, want ErrMissingVertexAttribute", err)
	}
}

func TestVertexLayout_MatchesGPUTypes(t *testing.T) {
	var v GPUSkinnedVertex
	want := map[VertexAttributeID]uintptr{
		AttributePosition:    unsafe.Offsetof(v.Position),
		AttributeNormal:      unsafe.Offsetof(v.Normal),
		AttributeUV0:         unsafe.Offsetof(v.TexCoord),
		AttributeColor:       unsafe.Offsetof(v.Color),
		AttributeTangent:     unsafe.Offsetof(v.Tangent),
		AttributeJointIndex:  unsafe.Offsetof(v.JointIndices),
		AttributeJointWeight: unsafe.Offsetof(v.JointWeights),
	}
	layout := SkinnedVertexLayout()
	if layout.Stride() != uint64(v.Size()) {
		t.Errorf("skinned stride = %d, want %d", layout.Stride(), v.Size())
	}
	for _, a := range layout.Attributes() {
		if uint64(want[a.ID]) != a.Offset {
			t.Errorf("%s offset = %d, want %d", a.ID, a.Offset, want[a.ID])
		}
	}
	var sv GPUVertex
	if StaticVertexLayout().Stride() != uint64(sv.Size()) {
		t.Errorf("static stride = %d, want %d", StaticVertexLayout().Stride(), sv.Size())
	}
}

func TestVertexLayout_Contains(t *testing.T) {
	static := StaticVertexLayout()
	if !static.Contains(AttributeTangent) {
		t.Error("static layout should contain tangents")
	}
	if static.Contains(AttributeJointWeight) {
		t.Error("static layout should not contain joint weights")
	}
	if !SkinnedVertexLayout().Contains(AttributeJointWeight) {
		t.Error("skinned layout should contain joint weights")
	}
}
