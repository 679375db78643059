package camera

import (
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-prepass/common"
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer"
	"github.com/go-gl/mathgl/mgl32"
)

// RenderTargetKind distinguishes the surfaces a camera can render into.
type RenderTargetKind int

const (
	// TargetWindow renders into a window surface.
	TargetWindow RenderTargetKind = iota

	// TargetImage renders into an offscreen image.
	TargetImage
)

// RenderTarget identifies the surface a camera renders into. Cameras with equal targets share
// their prepass attachments.
type RenderTarget struct {
	Kind RenderTargetKind
	ID   uint64
}

// WindowTarget returns the render target of window id.
func WindowTarget(id uint64) RenderTarget {
	return RenderTarget{Kind: TargetWindow, ID: id}
}

// ImageTarget returns the render target of offscreen image id.
func ImageTarget(id uint64) RenderTarget {
	return RenderTarget{Kind: TargetImage, ID: id}
}

// PrepassSettings select the prepass outputs a camera requests. A camera requesting neither
// takes no part in the prepass.
type PrepassSettings struct {
	OutputDepth   bool
	OutputNormals bool
}

// Enabled reports whether any prepass output is requested.
func (s PrepassSettings) Enabled() bool {
	return s.OutputDepth || s.OutputNormals
}

type cameraImpl struct {
	mu *sync.Mutex

	active bool
	is3D   bool
	target RenderTarget
	// physicalSize is zero until the target size is known.
	physicalSize [2]uint32
	msaa         renderer.MSAASampleCount
	prepass      PrepassSettings

	position [3]float32
	lookAt   [3]float32
	up       [3]float32

	fov  float32
	near float32

	viewMatrix       [16]float32
	projectionMatrix [16]float32
}

// Camera defines the interface for a view into the scene.
// The camera holds its placement, a reverse-Z perspective projection and the render settings
// the prepass reads when it extracts the camera each frame.
type Camera interface {
	// Active reports whether the camera renders this frame.
	//
	// Returns:
	//   - bool: true if the camera is active
	Active() bool

	// Is3D reports whether the camera renders 3D content. Only 3D cameras run the prepass.
	//
	// Returns:
	//   - bool: true for 3D cameras
	Is3D() bool

	// Target returns the render target the camera draws into.
	//
	// Returns:
	//   - RenderTarget: the render target identity
	Target() RenderTarget

	// PhysicalTargetSize returns the size of the render target in pixels.
	//
	// Returns:
	//   - [2]uint32: width and height in pixels
	//   - bool: false while the target size is unknown
	PhysicalTargetSize() ([2]uint32, bool)

	// MSAA returns the sample count of the camera's attachments.
	//
	// Returns:
	//   - renderer.MSAASampleCount: the MSAA sample count
	MSAA() renderer.MSAASampleCount

	// PrepassSettings returns the prepass outputs the camera requests.
	//
	// Returns:
	//   - PrepassSettings: the requested outputs
	PrepassSettings() PrepassSettings

	// Position returns the camera's world-space position.
	//
	// Returns:
	//   - x, y, z: world-space camera position
	Position() (x, y, z float32)

	// Fov returns the vertical field of view in radians.
	//
	// Returns:
	//   - float32: field of view in radians
	Fov() float32

	// Near returns the near clipping plane distance.
	//
	// Returns:
	//   - float32: near plane distance
	Near() float32

	// ViewMatrix returns the current world-to-view matrix as 16 floats (column-major).
	//
	// Returns:
	//   - [16]float32: the view matrix
	ViewMatrix() [16]float32

	// ProjectionMatrix returns the current reverse-Z projection matrix as 16 floats (column-major).
	//
	// Returns:
	//   - [16]float32: the projection matrix
	ProjectionMatrix() [16]float32

	// SetActive enables or disables the camera.
	//
	// Parameters:
	//   - active: true to render with the camera
	SetActive(active bool)

	// SetPhysicalTargetSize sets the render target size in pixels and recomputes the projection.
	// A zero width or height marks the size as unknown.
	//
	// Parameters:
	//   - width, height: target size in pixels
	SetPhysicalTargetSize(width, height uint32)

	// SetPrepassSettings sets the prepass outputs the camera requests.
	//
	// Parameters:
	//   - settings: the requested outputs
	SetPrepassSettings(settings PrepassSettings)

	// SetPosition sets the camera's world-space position and recomputes the view matrix.
	//
	// Parameters:
	//   - x, y, z: world-space coordinates
	SetPosition(x, y, z float32)

	// SetTarget sets the look-at point and recomputes the view matrix.
	//
	// Parameters:
	//   - x, y, z: world-space coordinates
	SetTarget(x, y, z float32)

	// SetFov sets the field of view in radians and recomputes matrices.
	//
	// Parameters:
	//   - fov: field of view in radians
	SetFov(fov float32)
}

var _ Camera = &cameraImpl{}

// NewCamera creates a new active 3D Camera at (0, 0, 5) looking at the origin, rendering into
// window 0 with MSAA4x and no prepass outputs.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:       &sync.Mutex{},
		active:   true,
		is3D:     true,
		target:   WindowTarget(0),
		msaa:     renderer.MSAA4x,
		position: [3]float32{0, 0, 5},
		up:       [3]float32{0, 1, 0},
		fov:      45.0 * (math.Pi / 180.0), // radians
		near:     0.1,
	}
	for _, option := range options {
		option(c)
	}
	c.updateMatrices()
	return c
}

func (c *cameraImpl) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *cameraImpl) Is3D() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.is3D
}

func (c *cameraImpl) Target() RenderTarget {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

func (c *cameraImpl) PhysicalTargetSize() ([2]uint32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.physicalSize, c.physicalSize[0] > 0 && c.physicalSize[1] > 0
}

func (c *cameraImpl) MSAA() renderer.MSAASampleCount {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.msaa
}

func (c *cameraImpl) PrepassSettings() PrepassSettings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prepass
}

func (c *cameraImpl) Position() (x, y, z float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position[0], c.position[1], c.position[2]
}

func (c *cameraImpl) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

func (c *cameraImpl) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near
}

func (c *cameraImpl) ViewMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewMatrix
}

func (c *cameraImpl) ProjectionMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectionMatrix
}

func (c *cameraImpl) SetActive(active bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = active
}

func (c *cameraImpl) SetPhysicalTargetSize(width, height uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.physicalSize = [2]uint32{width, height}
	c.updateMatrices()
}

func (c *cameraImpl) SetPrepassSettings(settings PrepassSettings) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prepass = settings
}

func (c *cameraImpl) SetPosition(x, y, z float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.position = [3]float32{x, y, z}
	c.updateMatrices()
}

func (c *cameraImpl) SetTarget(x, y, z float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lookAt = [3]float32{x, y, z}
	c.updateMatrices()
}

func (c *cameraImpl) SetFov(fov float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fov = fov
	c.updateMatrices()
}

// updateMatrices recalculates the view and projection matrices. The aspect ratio follows the
// physical target size and falls back to 1 while the size is unknown.
// Caller must hold the mutex.
func (c *cameraImpl) updateMatrices() {
	common.LookAt(c.viewMatrix[:],
		c.position[0], c.position[1], c.position[2],
		c.lookAt[0], c.lookAt[1], c.lookAt[2],
		c.up[0], c.up[1], c.up[2],
	)

	aspect := float32(1)
	if c.physicalSize[0] > 0 && c.physicalSize[1] > 0 {
		aspect = float32(c.physicalSize[0]) / float32(c.physicalSize[1])
	}
	c.projectionMatrix = perspectiveReverseZ(c.fov, aspect, c.near)
}

// perspectiveReverseZ builds an infinite reverse-Z projection: depth is 1 at the near plane and
// approaches 0 at infinity, matching the GreaterEqual depth test cleared to 0.
func perspectiveReverseZ(fovY, aspect, near float32) mgl32.Mat4 {
	f := 1 / float32(math.Tan(float64(fovY)/2))
	return mgl32.Mat4{
		f / aspect, 0, 0, 0,
		0, f, 0, 0,
		0, 0, 0, -1,
		0, 0, near, 0,
	}
}
