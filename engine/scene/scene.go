package scene

import (
	"cmp"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-prepass/engine/camera"
	"github.com/Carmen-Shannon/oxy-prepass/engine/model"
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer/resource"
)

// Entity identifies a drawable or a camera registered in a Scene. Zero is never assigned.
type Entity uint64

// Drawable is a renderable instance: a mesh drawn with a material at a world transform.
type Drawable struct {
	// Mesh selects the mesh asset in the scene's mesh store.
	Mesh model.Handle
	// Material selects the prepared material in the scene's material store.
	Material material.Handle
	// Transform is the model-to-world matrix (column-major).
	Transform [16]float32
	// MeshBindGroup holds the per-mesh uniforms bound at group 2.
	MeshBindGroup resource.BindGroup
}

// CameraView pairs a camera with the entities visible to it this frame.
type CameraView struct {
	Entity  Entity
	Camera  camera.Camera
	Visible []Entity
}

type cameraEntry struct {
	cam     camera.Camera
	visible []Entity
}

// Scene is the render world the prepass draws from: drawables, cameras with their visible
// entity lists and the stores the drawables' mesh and material handles resolve against.
// Visibility is decided by the caller; the scene only records it.
// Thread-safe for concurrent access.
type Scene interface {
	// Name returns the scene's identifier.
	Name() string

	// SetName sets the scene's identifier.
	SetName(name string)

	// Active returns whether this scene is currently active for rendering.
	Active() bool

	// SetActive sets whether this scene is active for rendering.
	SetActive(active bool)

	// Meshes returns the mesh store drawables resolve their Mesh handle against.
	Meshes() model.Meshes

	// Materials returns the material store drawables resolve their Material handle against.
	Materials() material.RenderMaterials

	// Add registers a drawable and returns its entity.
	//
	// Parameters:
	//   - d: the drawable
	//
	// Returns:
	//   - Entity: the new entity
	Add(d Drawable) Entity

	// Get returns a copy of the drawable registered as e.
	//
	// Parameters:
	//   - e: the entity to look up
	//
	// Returns:
	//   - Drawable: the drawable
	//   - bool: false if e is not a drawable of the scene
	Get(e Entity) (Drawable, bool)

	// SetTransform replaces the world transform of drawable e. Unknown entities are ignored.
	//
	// Parameters:
	//   - e: the drawable to move
	//   - transform: the new model-to-world matrix
	SetTransform(e Entity, transform [16]float32)

	// Remove unregisters drawable e and drops it from every visible list.
	//
	// Parameters:
	//   - e: the drawable to remove
	Remove(e Entity)

	// Count returns the number of registered drawables.
	Count() int

	// AddCamera registers a camera with an empty visible list and returns its entity.
	//
	// Parameters:
	//   - cam: the camera, must not be nil
	//
	// Returns:
	//   - Entity: the camera entity
	AddCamera(cam camera.Camera) Entity

	// RemoveCamera unregisters camera e.
	//
	// Parameters:
	//   - e: the camera entity
	RemoveCamera(e Entity)

	// SetVisible replaces the visible entity list of camera e. The slice is copied.
	//
	// Parameters:
	//   - e: the camera entity
	//   - visible: the drawables visible to the camera this frame
	SetVisible(e Entity, visible []Entity)

	// Cameras snapshots every camera with its visible list, in registration order.
	//
	// Returns:
	//   - []CameraView: the cameras
	Cameras() []CameraView

	// Clear removes every drawable and camera.
	Clear()
}

// scene is the implementation of the Scene interface.
type scene struct {
	mu     *sync.RWMutex
	name   string
	active bool

	meshes    model.Meshes
	materials material.RenderMaterials

	drawables map[Entity]Drawable
	cameras   map[Entity]*cameraEntry
	nextID    Entity
}

// Ensure scene implements Scene interface.
var _ Scene = &scene{}

// NewScene creates a new active Scene with empty mesh and material stores unless options supply
// shared ones.
//
// Parameters:
//   - name: the name of the scene
//   - options: functional options to further configure the scene
//
// Returns:
//   - Scene: the newly created scene
func NewScene(name string, options ...SceneBuilderOption) Scene {
	s := &scene{
		mu:        &sync.RWMutex{},
		name:      name,
		active:    true,
		drawables: make(map[Entity]Drawable),
		cameras:   make(map[Entity]*cameraEntry),
		nextID:    1,
	}
	for _, option := range options {
		option(s)
	}
	if s.meshes == nil {
		s.meshes = model.NewMeshes()
	}
	if s.materials == nil {
		s.materials = material.NewRenderMaterials()
	}
	return s
}

func (s *scene) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

func (s *scene) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
}

func (s *scene) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *scene) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
}

func (s *scene) Meshes() model.Meshes {
	return s.meshes
}

func (s *scene) Materials() material.RenderMaterials {
	return s.materials
}

func (s *scene) Add(d Drawable) Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.nextID
	s.nextID++
	s.drawables[e] = d
	return e
}

func (s *scene) Get(e Entity) (Drawable, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.drawables[e]
	return d, ok
}

func (s *scene) SetTransform(e Entity, transform [16]float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.drawables[e]; ok {
		d.Transform = transform
		s.drawables[e] = d
	}
}

func (s *scene) Remove(e Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.drawables[e]; !ok {
		return
	}
	delete(s.drawables, e)
	for _, c := range s.cameras {
		c.visible = slices.DeleteFunc(c.visible, func(v Entity) bool { return v == e })
	}
}

func (s *scene) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.drawables)
}

func (s *scene) AddCamera(cam camera.Camera) Entity {
	if cam == nil {
		panic("scene: AddCamera requires a non-nil Camera")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.nextID
	s.nextID++
	s.cameras[e] = &cameraEntry{cam: cam}
	return e
}

func (s *scene) RemoveCamera(e Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cameras, e)
}

func (s *scene) SetVisible(e Entity, visible []Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.cameras[e]; ok {
		c.visible = slices.Clone(visible)
	}
}

func (s *scene) Cameras() []CameraView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	views := make([]CameraView, 0, len(s.cameras))
	for e, c := range s.cameras {
		views = append(views, CameraView{Entity: e, Camera: c.cam, Visible: slices.Clone(c.visible)})
	}
	// entities are assigned in increasing order
	slices.SortFunc(views, func(a, b CameraView) int {
		return cmp.Compare(a.Entity, b.Entity)
	})
	return views
}

func (s *scene) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.drawables)
	clear(s.cameras)
}
