package camera

import (
	"github.com/Carmen-Shannon/oxy-prepass/common"
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer"
	"github.com/go-gl/mathgl/mgl32"
)

// ExtractedView is the per-frame snapshot of a camera the prepass renders from. Extraction
// copies everything so the camera can keep changing while the frame is processed.
type ExtractedView struct {
	Target RenderTarget
	// Size is the physical target size; meaningful only when HasSize is set.
	Size    [2]uint32
	HasSize bool
	MSAA    renderer.MSAASampleCount
	Prepass PrepassSettings

	View        [16]float32
	InverseView [16]float32
	Projection  [16]float32
	ViewProj    [16]float32
	Position    [3]float32
}

// Extract snapshots c for this frame.
//
// Parameters:
//   - c: the camera to extract
//
// Returns:
//   - ExtractedView: the snapshot
//   - bool: false if the camera is inactive, not 3D or requests no prepass output
func Extract(c Camera) (ExtractedView, bool) {
	if !c.Active() || !c.Is3D() || !c.PrepassSettings().Enabled() {
		return ExtractedView{}, false
	}
	v := ExtractedView{
		Target:     c.Target(),
		MSAA:       c.MSAA(),
		Prepass:    c.PrepassSettings(),
		View:       c.ViewMatrix(),
		Projection: c.ProjectionMatrix(),
	}
	v.Size, v.HasSize = c.PhysicalTargetSize()
	v.Position[0], v.Position[1], v.Position[2] = c.Position()
	if !common.Invert4(v.InverseView[:], v.View[:]) {
		v.InverseView = common.IdentityMatrix()
	}
	common.Mul4(v.ViewProj[:], v.Projection[:], v.View[:])
	return v, true
}

// Uniform builds the GPU view uniform of v.
//
// Returns:
//   - GPUViewUniform: the uniform data
func (v *ExtractedView) Uniform() GPUViewUniform {
	return GPUViewUniform{
		ViewProj:      v.ViewProj,
		InverseView:   v.InverseView,
		Projection:    v.Projection,
		WorldPosition: [4]float32{v.Position[0], v.Position[1], v.Position[2], 1},
		Viewport:      [4]float32{0, 0, float32(v.Size[0]), float32(v.Size[1])},
	}
}

// Rangefinder measures how far in front of a view a transform is.
type Rangefinder struct {
	row mgl32.Vec4
}

// NewRangefinder creates a rangefinder for the world-to-view matrix view.
//
// Parameters:
//   - view: the world-to-view matrix (column-major)
//
// Returns:
//   - Rangefinder: the rangefinder
func NewRangefinder(view [16]float32) Rangefinder {
	return Rangefinder{row: mgl32.Mat4(view).Row(2)}
}

// Distance returns the view-space depth of the translation of model. Points in front of the
// camera have positive distances that grow with depth.
//
// Parameters:
//   - model: the model-to-world matrix of a drawable
//
// Returns:
//   - float32: the distance along the view direction
func (r Rangefinder) Distance(model [16]float32) float32 {
	return -r.row.Dot(mgl32.Mat4(model).Col(3))
}
