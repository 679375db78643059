// Package resource defines the opaque GPU object handles shared by the renderer packages.
// Handles are produced by a renderer.Device and are only ever compared by identity, so any
// implementation must be a pointer or another comparable reference type.
package resource

// BindGroupLayout is an opaque handle to a created bind group layout.
type BindGroupLayout interface {
	// Label returns the debug label the layout was created with.
	//
	// Returns:
	//   - string: the debug label
	Label() string
}

// BindGroup is an opaque handle to a created bind group.
type BindGroup interface {
	// Label returns the debug label the bind group was created with.
	//
	// Returns:
	//   - string: the debug label
	Label() string
}

// Buffer is an opaque handle to a GPU buffer.
type Buffer interface {
	// Label returns the debug label the buffer was created with.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// Size returns the size of the buffer in bytes.
	//
	// Returns:
	//   - uint64: the buffer size in bytes
	Size() uint64

	// Release frees the GPU memory backing the buffer.
	Release()
}

// TextureView is an opaque handle to a view over a GPU texture.
type TextureView interface {
	// Label returns the debug label of the texture the view was created from.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// Release frees the view. The texture it was created from stays alive.
	Release()
}

// Texture is an opaque handle to a GPU texture.
type Texture interface {
	// Label returns the debug label the texture was created with.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// CreateView creates the default view over the whole texture.
	//
	// Returns:
	//   - TextureView: the created view
	//   - error: an error if the backend rejected the view
	CreateView() (TextureView, error)

	// Release frees the GPU memory backing the texture.
	Release()
}

// RenderPipeline is an opaque handle to a compiled render pipeline.
type RenderPipeline interface {
	// Label returns the debug label the pipeline was created with.
	//
	// Returns:
	//   - string: the debug label
	Label() string
}

// BufferBinding describes a range of a buffer bound to a single bind group slot.
// A zero Size binds from Offset to the end of the buffer.
type BufferBinding struct {
	Buffer Buffer
	Offset uint64
	Size   uint64
}

// Sampler is an opaque handle to a texture sampler.
type Sampler interface {
	// Label returns the debug label the sampler was created with.
	//
	// Returns:
	//   - string: the debug label
	Label() string
}

// BindGroupEntry binds exactly one resource to a binding slot. Set one of Buffer, TextureView
// or Sampler.
type BindGroupEntry struct {
	Binding     uint32
	Buffer      *BufferBinding
	TextureView TextureView
	Sampler     Sampler
}

// BindGroupDescriptor describes a bind group to create against Layout.
type BindGroupDescriptor struct {
	Label   string
	Layout  BindGroupLayout
	Entries []BindGroupEntry
}
