package model

import "sync"

// Handle identifies a mesh asset.
type Handle uint64

// meshes is the implementation of the Meshes interface.
type meshes struct {
	mu     sync.RWMutex
	assets map[Handle]Mesh
}

// Meshes is the render-world store of prepared meshes. A handle without an entry belongs to a
// mesh that is still loading.
type Meshes interface {
	// Insert stores or replaces the mesh prepared for handle.
	//
	// Parameters:
	//   - h: the mesh asset handle
	//   - m: the prepared mesh
	Insert(h Handle, m Mesh)

	// Get retrieves the mesh prepared for handle.
	//
	// Parameters:
	//   - h: the mesh asset handle
	//
	// Returns:
	//   - Mesh: the prepared mesh
	//   - bool: false if the mesh is not prepared yet
	Get(h Handle) (Mesh, bool)

	// Remove drops the mesh prepared for handle.
	//
	// Parameters:
	//   - h: the mesh asset handle
	Remove(h Handle)
}

var _ Meshes = &meshes{}

// NewMeshes creates an empty mesh store.
//
// Returns:
//   - Meshes: the new store
func NewMeshes() Meshes {
	return &meshes{assets: make(map[Handle]Mesh)}
}

func (s *meshes) Insert(h Handle, m Mesh) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets[h] = m
}

func (s *meshes) Get(h Handle) (Mesh, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.assets[h]
	return m, ok
}

func (s *meshes) Remove(h Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.assets, h)
}
