package pipeline

import (
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// RenderPipelineConfigOption is a functional option used to configure a RenderPipelineConfig during construction.
type RenderPipelineConfigOption func(*RenderPipelineConfig)

// WithLayout sets the bind group layouts of the pipeline, indexed by group.
//
// Parameters:
//   - layouts: the bind group layouts in group order
//
// Returns:
//   - RenderPipelineConfigOption: a function that sets the pipeline layout
func WithLayout(layouts ...resource.BindGroupLayout) RenderPipelineConfigOption {
	return func(c *RenderPipelineConfig) {
		c.Layout = layouts
	}
}

// WithVertex sets the vertex stage of the pipeline.
//
// Parameters:
//   - h: the shader module of the stage
//   - entryPoint: the WGSL entry point
//   - defs: the shader defines of the stage
//   - buffers: the vertex buffer layouts
//
// Returns:
//   - RenderPipelineConfigOption: a function that sets the vertex stage
func WithVertex(h shader.Handle, entryPoint string, defs []string, buffers ...wgpu.VertexBufferLayout) RenderPipelineConfigOption {
	return func(c *RenderPipelineConfig) {
		c.Vertex = VertexConfig{
			Shader:     h,
			EntryPoint: entryPoint,
			Defs:       defs,
			Buffers:    buffers,
		}
	}
}

// WithFragment sets the fragment stage of the pipeline. A nil targets slice is replaced by an
// empty one so the stage exists even when it writes no color.
//
// Parameters:
//   - h: the shader module of the stage
//   - entryPoint: the WGSL entry point
//   - defs: the shader defines of the stage
//   - targets: the color targets written by the stage
//
// Returns:
//   - RenderPipelineConfigOption: a function that sets the fragment stage
func WithFragment(h shader.Handle, entryPoint string, defs []string, targets ...wgpu.ColorTargetState) RenderPipelineConfigOption {
	return func(c *RenderPipelineConfig) {
		if targets == nil {
			targets = []wgpu.ColorTargetState{}
		}
		c.Fragment = &FragmentConfig{
			Shader:     h,
			EntryPoint: entryPoint,
			Defs:       defs,
			Targets:    targets,
		}
	}
}

// WithPrimitive sets the topology, winding and cull mode of the pipeline.
//
// Parameters:
//   - topology: the primitive topology
//   - frontFace: the front face winding order
//   - cullMode: the face culling mode
//
// Returns:
//   - RenderPipelineConfigOption: a function that sets the primitive state
func WithPrimitive(topology wgpu.PrimitiveTopology, frontFace wgpu.FrontFace, cullMode wgpu.CullMode) RenderPipelineConfigOption {
	return func(c *RenderPipelineConfig) {
		c.Primitive = wgpu.PrimitiveState{
			Topology:  topology,
			FrontFace: frontFace,
			CullMode:  cullMode,
		}
	}
}

// WithPolygonMode sets the rasterization mode of the pipeline.
//
// Parameters:
//   - mode: the polygon mode
//
// Returns:
//   - RenderPipelineConfigOption: a function that sets the polygon mode
func WithPolygonMode(mode PolygonMode) RenderPipelineConfigOption {
	return func(c *RenderPipelineConfig) {
		c.PolygonMode = mode
	}
}

// WithDepthStencil sets the depth/stencil state of the pipeline. Both stencil faces always pass
// and keep their values, matching a pipeline without stencil testing.
//
// Parameters:
//   - format: the depth attachment format
//   - depthWrite: whether depth writes are enabled
//   - compare: the depth comparison function
//   - bias: the constant depth bias
//   - slopeScale: the slope-scaled depth bias
//
// Returns:
//   - RenderPipelineConfigOption: a function that sets the depth/stencil state
func WithDepthStencil(format wgpu.TextureFormat, depthWrite bool, compare wgpu.CompareFunction, bias int32, slopeScale float32) RenderPipelineConfigOption {
	return func(c *RenderPipelineConfig) {
		c.DepthStencil = &wgpu.DepthStencilState{
			Format:              format,
			DepthWriteEnabled:   depthWrite,
			DepthCompare:        compare,
			DepthBias:           bias,
			DepthBiasSlopeScale: slopeScale,
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		}
	}
}

// WithMultisample sets the sample count of the pipeline. The sample mask stays all ones and
// alpha-to-coverage stays disabled.
//
// Parameters:
//   - count: the MSAA sample count
//
// Returns:
//   - RenderPipelineConfigOption: a function that sets the multisample state
func WithMultisample(count uint32) RenderPipelineConfigOption {
	return func(c *RenderPipelineConfig) {
		c.Multisample = wgpu.MultisampleState{
			Count: count,
			Mask:  0xFFFFFFFF,
		}
	}
}
