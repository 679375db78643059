package scene

import (
	"github.com/Carmen-Shannon/oxy-prepass/engine/camera"
	"github.com/Carmen-Shannon/oxy-prepass/engine/model"
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer/material"
)

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithActive sets whether the scene is active for rendering.
//
// Parameters:
//   - active: whether the scene is active
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithActive(active bool) SceneBuilderOption {
	return func(s *scene) {
		s.active = active
	}
}

// WithMeshes makes the scene resolve mesh handles against an existing store, typically one
// shared by several scenes.
//
// Parameters:
//   - meshes: the mesh store
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithMeshes(meshes model.Meshes) SceneBuilderOption {
	return func(s *scene) {
		s.meshes = meshes
	}
}

// WithMaterials makes the scene resolve material handles against an existing store.
//
// Parameters:
//   - materials: the prepared material store
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithMaterials(materials material.RenderMaterials) SceneBuilderOption {
	return func(s *scene) {
		s.materials = materials
	}
}

// WithDrawables adds initial drawables to the scene. Entities are assigned in argument order.
//
// Parameters:
//   - drawables: the drawables to add
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithDrawables(drawables ...Drawable) SceneBuilderOption {
	return func(s *scene) {
		for _, d := range drawables {
			s.drawables[s.nextID] = d
			s.nextID++
		}
	}
}

// WithCameras adds initial cameras to the scene, each with an empty visible list.
//
// Parameters:
//   - cameras: the cameras to add
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithCameras(cameras ...camera.Camera) SceneBuilderOption {
	return func(s *scene) {
		for _, c := range cameras {
			if c == nil {
				panic("scene: WithCameras requires non-nil cameras")
			}
			s.cameras[s.nextID] = &cameraEntry{cam: c}
			s.nextID++
		}
	}
}
