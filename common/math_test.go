package common

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func approxEqual(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-5
}

func TestMul4_Identity(t *testing.T) {
	id := IdentityMatrix()
	m := [16]float32(mgl32.Translate3D(1, 2, 3))
	var out [16]float32
	Mul4(out[:], id[:], m[:])
	if out != m {
		t.Errorf("I * T = %v, want %v", out, m)
	}
}

func TestInvert4_Translation(t *testing.T) {
	m := mgl32.Translate3D(4, -2, 7)
	var inv [16]float32
	if !Invert4(inv[:], m[:]) {
		t.Fatal("Invert4 reported a singular translation matrix")
	}
	got := mgl32.Mat4(inv).Col(3)
	want := mgl32.Vec4{-4, 2, -7, 1}
	for i := range want {
		if !approxEqual(got[i], want[i]) {
			t.Errorf("inverse translation[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestInvert4_Singular(t *testing.T) {
	var zero, out [16]float32
	if Invert4(out[:], zero[:]) {
		t.Error("Invert4 of the zero matrix should report singular")
	}
}

func TestLookAt_ForwardIsNegativeZ(t *testing.T) {
	var view [16]float32
	LookAt(view[:], 0, 0, 0, 0, 0, -1, 0, 1, 0)
	z := mgl32.Mat4(view).Row(2).Dot(mgl32.Vec4{0, 0, -5, 1})
	if !approxEqual(z, -5) {
		t.Errorf("view-space z = %v, want -5", z)
	}
}

func TestBuildModelMatrix(t *testing.T) {
	tests := []struct {
		name          string
		pos, rot, scl [3]float32
		point, want   mgl32.Vec3
	}{
		{name: "identity", scl: [3]float32{1, 1, 1}, point: mgl32.Vec3{1, 2, 3}, want: mgl32.Vec3{1, 2, 3}},
		{name: "translate", pos: [3]float32{4, -2, 7}, scl: [3]float32{1, 1, 1}, point: mgl32.Vec3{0, 0, 0}, want: mgl32.Vec3{4, -2, 7}},
		{name: "scale", scl: [3]float32{2, 3, 4}, point: mgl32.Vec3{1, 1, 1}, want: mgl32.Vec3{2, 3, 4}},
		{name: "yaw quarter turn", rot: [3]float32{0, math.Pi / 2, 0}, scl: [3]float32{1, 1, 1}, point: mgl32.Vec3{1, 0, 0}, want: mgl32.Vec3{0, 0, -1}},
		{name: "pitch quarter turn", rot: [3]float32{math.Pi / 2, 0, 0}, scl: [3]float32{1, 1, 1}, point: mgl32.Vec3{0, 1, 0}, want: mgl32.Vec3{0, 0, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m [16]float32
			BuildModelMatrix(m[:], tt.pos[0], tt.pos[1], tt.pos[2], tt.rot[0], tt.rot[1], tt.rot[2], tt.scl[0], tt.scl[1], tt.scl[2])
			got := mgl32.TransformCoordinate(tt.point, mgl32.Mat4(m))
			for i := range got {
				if !approxEqual(got[i], tt.want[i]) {
					t.Fatalf("transformed point = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestCoalesce(t *testing.T) {
	if got := Coalesce(0, 0, 3, 4); got != 3 {
		t.Errorf("Coalesce = %d, want 3", got)
	}
	if got := Coalesce("", ""); got != "" {
		t.Errorf("Coalesce of zero values = %q, want empty", got)
	}
}
