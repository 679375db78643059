package material

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-prepass/engine/model"
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// AlphaModeKind selects how a material's alpha channel is treated.
type AlphaModeKind int

const (
	// AlphaModeOpaque ignores alpha entirely.
	AlphaModeOpaque AlphaModeKind = iota

	// AlphaModeMask discards fragments whose alpha is below a cutoff.
	AlphaModeMask

	// AlphaModeBlend blends the fragment with the framebuffer. Blended materials never take part
	// in the prepass.
	AlphaModeBlend
)

// AlphaMode is a material's alpha handling. Cutoff is only meaningful for AlphaModeMask.
type AlphaMode struct {
	Kind   AlphaModeKind
	Cutoff float32
}

// Opaque returns the opaque alpha mode.
func Opaque() AlphaMode { return AlphaMode{Kind: AlphaModeOpaque} }

// Mask returns an alpha-masked mode discarding fragments with alpha below cutoff.
func Mask(cutoff float32) AlphaMode { return AlphaMode{Kind: AlphaModeMask, Cutoff: cutoff} }

// Blend returns the alpha-blended mode.
func Blend() AlphaMode { return AlphaMode{Kind: AlphaModeBlend} }

func (a AlphaMode) String() string {
	switch a.Kind {
	case AlphaModeOpaque:
		return "Opaque"
	case AlphaModeMask:
		return fmt.Sprintf("Mask(%g)", a.Cutoff)
	case AlphaModeBlend:
		return "Blend"
	default:
		return fmt.Sprintf("AlphaMode(%d)", int(a.Kind))
	}
}

// Properties are the per-instance values the prepass queue reads from a prepared material.
type Properties struct {
	// AlphaMode decides which prepass phase the instance lands in, if any.
	AlphaMode AlphaMode
	// DepthBias is added to the view-space sort distance of every draw using the material.
	DepthBias float32
}

// LayoutCreator creates bind group layouts. renderer.Device satisfies it.
type LayoutCreator interface {
	// CreateBindGroupLayout creates a bind group layout from desc.
	//
	// Parameters:
	//   - desc: the layout descriptor
	//
	// Returns:
	//   - resource.BindGroupLayout: the created layout
	//   - error: an error if the backend rejected the layout
	CreateBindGroupLayout(desc *wgpu.BindGroupLayoutDescriptor) (resource.BindGroupLayout, error)
}

// ResourceCreator creates everything a material instance needs on the GPU. renderer.Device
// satisfies it.
type ResourceCreator interface {
	LayoutCreator

	// CreateBufferInit creates a buffer holding contents.
	//
	// Parameters:
	//   - label: the debug label of the buffer
	//   - usage: the buffer usage flags; CopyDst is always added
	//   - contents: the initial buffer contents
	//
	// Returns:
	//   - resource.Buffer: the created buffer
	//   - error: an error if the backend rejected the buffer
	CreateBufferInit(label string, usage wgpu.BufferUsage, contents []byte) (resource.Buffer, error)

	// CreateBindGroup creates a bind group from desc.
	//
	// Parameters:
	//   - desc: the bind group descriptor
	//
	// Returns:
	//   - resource.BindGroup: the created bind group
	//   - error: an error if the backend rejected the bind group
	CreateBindGroup(desc *resource.BindGroupDescriptor) (resource.BindGroup, error)
}

// Material is the prepass capability of one material type. The prepass pipeline holds one per
// type and asks it for shaders, its bind group layout (group 1) and a final say over every
// specialized pipeline config. Implementations must be safe for concurrent use.
type Material interface {
	// Name retrieves the material type identifier. Distinct types must use distinct names;
	// pipeline caches are kept per name.
	//
	// Returns:
	//   - string: the material type name
	Name() string

	// PrepassVertexShader retrieves the shader used for the prepass vertex stage.
	//
	// Returns:
	//   - shader.Ref: the shader reference, shader.DefaultRef() for the built-in prepass shader
	PrepassVertexShader() shader.Ref

	// PrepassFragmentShader retrieves the shader used for the prepass fragment stage.
	//
	// Returns:
	//   - shader.Ref: the shader reference, shader.DefaultRef() for the built-in prepass shader
	PrepassFragmentShader() shader.Ref

	// BindGroupLayout retrieves the layout of the material's bind group, creating it on first use.
	//
	// Parameters:
	//   - creator: the device the layout is created on
	//
	// Returns:
	//   - resource.BindGroupLayout: the material layout
	//   - error: an error if the layout could not be created
	BindGroupLayout(creator LayoutCreator) (resource.BindGroupLayout, error)

	// Specialize lets the material adjust a specialized prepass pipeline config. It runs after
	// every built-in rule has been applied.
	//
	// Parameters:
	//   - cfg: the config to mutate
	//   - layout: the vertex layout of the mesh being drawn
	//   - key: the material sub-key of the prepared instance
	//
	// Returns:
	//   - error: an error if the material cannot be drawn with this config
	Specialize(cfg *pipeline.RenderPipelineConfig, layout *model.VertexLayout, key any) error
}

// Prepared is a material instance whose GPU resources exist and that the prepass can draw.
type Prepared struct {
	// Material is the type capability of the instance.
	Material Material
	// BindGroup is bound at group 1 for every draw using the instance.
	BindGroup resource.BindGroup
	// Key is the material sub-key fed to pipeline specialization. It must be comparable.
	Key any
	// Properties hold the alpha mode and depth bias of the instance.
	Properties Properties
}

// Handle identifies a prepared material in a RenderMaterials store.
type Handle uint64

// renderMaterials is the implementation of the RenderMaterials interface.
type renderMaterials struct {
	mu        sync.RWMutex
	materials map[Handle]*Prepared
}

// RenderMaterials maps material handles to prepared instances. A handle without an entry
// belongs to a material that is still loading. It is safe for concurrent use.
type RenderMaterials interface {
	// Insert stores or replaces the prepared material for handle.
	//
	// Parameters:
	//   - handle: the material handle
	//   - prepared: the prepared instance
	Insert(handle Handle, prepared *Prepared)

	// Get retrieves the prepared material for handle.
	//
	// Parameters:
	//   - handle: the material handle
	//
	// Returns:
	//   - *Prepared: the prepared instance
	//   - bool: false if the material is not prepared yet
	Get(handle Handle) (*Prepared, bool)

	// Remove deletes the prepared material for handle.
	//
	// Parameters:
	//   - handle: the material handle
	Remove(handle Handle)
}

var _ RenderMaterials = &renderMaterials{}

// NewRenderMaterials creates an empty prepared material store.
//
// Returns:
//   - RenderMaterials: the new store
func NewRenderMaterials() RenderMaterials {
	return &renderMaterials{materials: make(map[Handle]*Prepared)}
}

func (r *renderMaterials) Insert(handle Handle, prepared *Prepared) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.materials[handle] = prepared
}

func (r *renderMaterials) Get(handle Handle) (*Prepared, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.materials[handle]
	return p, ok
}

func (r *renderMaterials) Remove(handle Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.materials, handle)
}
