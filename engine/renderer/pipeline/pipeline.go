package pipeline

import (
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// PolygonMode controls how triangles are rasterized.
type PolygonMode int

const (
	// PolygonModeFill rasterizes filled triangles.
	PolygonModeFill PolygonMode = iota

	// PolygonModeLine rasterizes triangle edges only.
	PolygonModeLine

	// PolygonModePoint rasterizes triangle vertices only.
	PolygonModePoint
)

// VertexConfig describes the vertex stage of a render pipeline.
type VertexConfig struct {
	// Shader is the module the stage's variant is built from.
	Shader shader.Handle
	// EntryPoint is the WGSL function name of the stage.
	EntryPoint string
	// Defs are the shader defines the variant is processed with.
	Defs []string
	// Buffers are the vertex buffer layouts bound to the stage.
	Buffers []wgpu.VertexBufferLayout
}

// FragmentConfig describes the fragment stage of a render pipeline.
type FragmentConfig struct {
	Shader     shader.Handle
	EntryPoint string
	Defs       []string
	// Targets is never nil on a fragment stage; an empty list means the stage writes no color.
	Targets []wgpu.ColorTargetState
}

// RenderPipelineConfig is the backend-independent description of a render pipeline: everything
// needed to compile it once the shader variants are resolved. Configs produced for the same
// specialization key are equal field by field.
type RenderPipelineConfig struct {
	// Label is the debug label of the compiled pipeline.
	Label string
	// Layout lists the bind group layouts by group index.
	Layout []resource.BindGroupLayout
	// Vertex is the vertex stage.
	Vertex VertexConfig
	// Fragment is the optional fragment stage; nil for depth-only pipelines.
	Fragment *FragmentConfig
	// Primitive is the primitive assembly and culling state.
	Primitive wgpu.PrimitiveState
	// PolygonMode is the rasterization mode.
	PolygonMode PolygonMode
	// DepthStencil is the depth/stencil state, nil when the pipeline has no depth attachment.
	DepthStencil *wgpu.DepthStencilState
	// Multisample is the MSAA state.
	Multisample wgpu.MultisampleState
}

// NewRenderPipelineConfig creates a RenderPipelineConfig with the given options applied.
// Defaults: triangle lists, CCW front faces, no culling, fill mode, a single sample with every
// sample mask bit set.
//
// Parameters:
//   - label: the debug label of the pipeline
//   - opts: a variadic list of RenderPipelineConfigOption functions to configure the pipeline
//
// Returns:
//   - *RenderPipelineConfig: the new config
func NewRenderPipelineConfig(label string, opts ...RenderPipelineConfigOption) *RenderPipelineConfig {
	c := &RenderPipelineConfig{
		Label: label,
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		PolygonMode: PolygonModeFill,
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HasDefine reports whether the vertex stage, or the fragment stage when present, is
// processed with the shader define name.
//
// Parameters:
//   - name: the shader define to look for
//
// Returns:
//   - bool: true if the define is set on either stage
func (c *RenderPipelineConfig) HasDefine(name string) bool {
	if slices.Contains(c.Vertex.Defs, name) {
		return true
	}
	return c.Fragment != nil && slices.Contains(c.Fragment.Defs, name)
}

// AddDefine sets the shader define name on every stage of the pipeline, ignoring duplicates.
//
// Parameters:
//   - name: the shader define to add
func (c *RenderPipelineConfig) AddDefine(name string) {
	if !slices.Contains(c.Vertex.Defs, name) {
		c.Vertex.Defs = append(c.Vertex.Defs, name)
	}
	if c.Fragment != nil && !slices.Contains(c.Fragment.Defs, name) {
		c.Fragment.Defs = append(c.Fragment.Defs, name)
	}
}

// ColorTargets returns the color targets of the fragment stage, or nil when there is no
// fragment stage.
//
// Returns:
//   - []wgpu.ColorTargetState: the color targets
func (c *RenderPipelineConfig) ColorTargets() []wgpu.ColorTargetState {
	if c.Fragment == nil {
		return nil
	}
	return c.Fragment.Targets
}

// ConfigError reports that a pipeline could not be specialized for a key, typically because
// the mesh's vertex layout lacks an attribute the key requires.
type ConfigError struct {
	// Key is a printable form of the specialization key.
	Key string
	// Err is the underlying cause.
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("pipeline: cannot specialize %s: %v", e.Key, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
