package camera

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-prepass/common"
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer"
	"github.com/go-gl/mathgl/mgl32"
)

func approx(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-4
}

func TestRangefinder_Distance(t *testing.T) {
	c := NewCamera(WithPosition(0, 0, 5), WithTarget(0, 0, 0))
	rf := NewRangefinder(c.ViewMatrix())

	tests := []struct {
		name string
		pos  [3]float32
		want float32
	}{
		{name: "at target", pos: [3]float32{0, 0, 0}, want: 5},
		{name: "farther", pos: [3]float32{0, 0, -5}, want: 10},
		{name: "off axis", pos: [3]float32{3, -2, 0}, want: 5},
		{name: "behind", pos: [3]float32{0, 0, 10}, want: -5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rf.Distance(mgl32.Translate3D(tt.pos[0], tt.pos[1], tt.pos[2]))
			if !approx(got, tt.want) {
				t.Errorf("Distance() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtract(t *testing.T) {
	depth := PrepassSettings{OutputDepth: true}
	tests := []struct {
		name     string
		opts     []CameraBuilderOption
		wantOK   bool
		wantSize bool
	}{
		{name: "active with size", opts: []CameraBuilderOption{WithPrepass(depth), WithPhysicalTargetSize(800, 600)}, wantOK: true, wantSize: true},
		{name: "no size yet", opts: []CameraBuilderOption{WithPrepass(depth)}, wantOK: true},
		{name: "inactive", opts: []CameraBuilderOption{WithPrepass(depth), WithActive(false)}},
		{name: "2d", opts: []CameraBuilderOption{WithPrepass(depth), With2D()}},
		{name: "no prepass", opts: []CameraBuilderOption{WithPhysicalTargetSize(800, 600)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := Extract(NewCamera(tt.opts...))
			if ok != tt.wantOK {
				t.Fatalf("Extract() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && v.HasSize != tt.wantSize {
				t.Errorf("HasSize = %v, want %v", v.HasSize, tt.wantSize)
			}
		})
	}
}

func TestExtract_Snapshot(t *testing.T) {
	c := NewCamera(
		WithPrepass(PrepassSettings{OutputDepth: true, OutputNormals: true}),
		WithPhysicalTargetSize(1920, 1080),
		WithRenderTarget(ImageTarget(7)),
		WithMSAA(renderer.MSAAOff),
		WithPosition(1, 2, 3),
	)
	v, ok := Extract(c)
	if !ok {
		t.Fatal("Extract() ok = false")
	}
	if v.Target != ImageTarget(7) || v.MSAA != renderer.MSAAOff || v.Size != [2]uint32{1920, 1080} {
		t.Errorf("snapshot = %+v", v)
	}
	if v.Position != [3]float32{1, 2, 3} {
		t.Errorf("Position = %v", v.Position)
	}
	// InverseView maps the view-space origin back to the camera position.
	if got := mgl32.Mat4(v.InverseView).Col(3); !approx(got[0], 1) || !approx(got[1], 2) || !approx(got[2], 3) {
		t.Errorf("InverseView translation = %v, want (1, 2, 3)", got)
	}

	c.SetPosition(9, 9, 9)
	if v.Position != [3]float32{1, 2, 3} {
		t.Error("snapshot changed with the camera")
	}
}

func TestCamera_AspectFollowsTargetSize(t *testing.T) {
	c := NewCamera()
	square := c.ProjectionMatrix()
	c.SetPhysicalTargetSize(200, 100)
	wide := c.ProjectionMatrix()
	if !approx(wide[0], square[0]/2) {
		t.Errorf("projection[0] = %v, want %v", wide[0], square[0]/2)
	}
	if wide[14] != c.Near() || wide[11] != -1 {
		t.Errorf("projection is not reverse-Z infinite: %v", wide)
	}
}

func TestPerspectiveReverseZ(t *testing.T) {
	near := float32(0.1)
	proj := perspectiveReverseZ(math.Pi/4, 16.0/9.0, near)
	ndcDepth := func(z float32) float32 {
		clip := proj.Mul4x1(mgl32.Vec4{0, 0, z, 1})
		return clip.Z() / clip.W()
	}
	if d := ndcDepth(-near); !approx(d, 1) {
		t.Errorf("ndc depth at the near plane = %v, want 1", d)
	}
	if d := ndcDepth(-1000); d <= 0 || d >= 1 {
		t.Errorf("ndc depth far away = %v, want in (0, 1)", d)
	}
	if ndcDepth(-10) <= ndcDepth(-20) {
		t.Error("nearer points do not get greater depth")
	}
}

func TestGPUViewUniform_Marshal(t *testing.T) {
	u := GPUViewUniform{
		ViewProj:      common.IdentityMatrix(),
		WorldPosition: [4]float32{1, 2, 3, 1},
		Viewport:      [4]float32{0, 0, 640, 480},
	}
	u.Projection[5] = 2.5
	if u.Size() != 224 {
		t.Fatalf("Size() = %d, want 224", u.Size())
	}
	buf := u.Marshal()
	read := func(off int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
	}
	if read(0) != 1 || read(20) != 1 {
		t.Error("view_proj diagonal not serialized")
	}
	if read(128+5*4) != 2.5 {
		t.Errorf("projection[5] = %v, want 2.5", read(128+5*4))
	}
	if read(200) != 3 {
		t.Errorf("world_position.z = %v, want 3", read(200))
	}
	if read(220) != 480 {
		t.Errorf("viewport.w = %v, want 480", read(220))
	}
}
