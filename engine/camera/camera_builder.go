package camera

import (
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer"
)

type CameraBuilderOption func(*cameraImpl)

// WithActive sets whether the camera renders.
//
// Parameters:
//   - active: true to render with the camera
//
// Returns:
//   - CameraBuilderOption: a function that sets the active flag
func WithActive(active bool) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.active = active
	}
}

// With2D marks the camera as a 2D camera, which never runs the prepass.
//
// Returns:
//   - CameraBuilderOption: a function that marks the camera as 2D
func With2D() CameraBuilderOption {
	return func(c *cameraImpl) {
		c.is3D = false
	}
}

// WithRenderTarget sets the surface the camera draws into.
//
// Parameters:
//   - target: the render target
//
// Returns:
//   - CameraBuilderOption: a function that sets the render target
func WithRenderTarget(target RenderTarget) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.target = target
	}
}

// WithPhysicalTargetSize sets the size of the render target in pixels.
//
// Parameters:
//   - width, height: target size in pixels
//
// Returns:
//   - CameraBuilderOption: a function that sets the target size
func WithPhysicalTargetSize(width, height uint32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.physicalSize = [2]uint32{width, height}
	}
}

// WithMSAA sets the sample count of the camera's attachments.
//
// Parameters:
//   - count: the MSAA sample count
//
// Returns:
//   - CameraBuilderOption: a function that sets the sample count
func WithMSAA(count renderer.MSAASampleCount) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.msaa = count
	}
}

// WithPrepass sets the prepass outputs the camera requests.
//
// Parameters:
//   - settings: the requested outputs
//
// Returns:
//   - CameraBuilderOption: a function that sets the prepass settings
func WithPrepass(settings PrepassSettings) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.prepass = settings
	}
}

// WithPosition sets the camera's world-space position.
//
// Parameters:
//   - x, y, z: world-space coordinates
//
// Returns:
//   - CameraBuilderOption: a function that sets the position
func WithPosition(x, y, z float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.position = [3]float32{x, y, z}
	}
}

// WithTarget sets the look-at point.
//
// Parameters:
//   - x, y, z: world-space coordinates
//
// Returns:
//   - CameraBuilderOption: a function that sets the look-at point
func WithTarget(x, y, z float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.lookAt = [3]float32{x, y, z}
	}
}

// WithUp sets the camera's up vector.
//
// Parameters:
//   - x, y, z: up vector components
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's up vector
func WithUp(x, y, z float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.up = [3]float32{x, y, z}
	}
}

// WithFov sets the camera's field of view in radians.
//
// Parameters:
//   - fov: field of view in radians
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's field of view
func WithFov(fov float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.fov = fov
	}
}

// WithNear sets the near clipping plane distance.
//
// Parameters:
//   - near: near plane distance
//
// Returns:
//   - CameraBuilderOption: a function that sets the near plane
func WithNear(near float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.near = near
	}
}
