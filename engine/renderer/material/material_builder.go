package material

import (
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// MaterialBuilderOption is a function that configures a standard material instance during construction.
type MaterialBuilderOption func(*standardMaterial)

// WithName is an option builder that sets the name of the material.
//
// Parameters:
//   - name: the identifier for the material
//
// Returns:
//   - MaterialBuilderOption: a function that applies the name option to a material
func WithName(name string) MaterialBuilderOption {
	return func(m *standardMaterial) {
		m.name = name
	}
}

// WithBaseColor is an option builder that sets the RGBA base color of the material.
//
// Parameters:
//   - color: the base color as RGBA float32 values
//
// Returns:
//   - MaterialBuilderOption: a function that applies the base color option to a material
func WithBaseColor(color [4]float32) MaterialBuilderOption {
	return func(m *standardMaterial) {
		m.baseColor = color
	}
}

// WithAlphaMode is an option builder that sets the alpha handling of the material.
//
// Parameters:
//   - mode: the alpha mode, see Opaque, Mask and Blend
//
// Returns:
//   - MaterialBuilderOption: a function that applies the alpha mode option to a material
func WithAlphaMode(mode AlphaMode) MaterialBuilderOption {
	return func(m *standardMaterial) {
		m.alphaMode = mode
	}
}

// WithDepthBias is an option builder that sets the sort distance bias of the material.
//
// Parameters:
//   - bias: the value added to the view-space sort distance
//
// Returns:
//   - MaterialBuilderOption: a function that applies the depth bias option to a material
func WithDepthBias(bias float32) MaterialBuilderOption {
	return func(m *standardMaterial) {
		m.depthBias = bias
	}
}

// WithCullMode is an option builder that sets the face culling mode of the material.
//
// Parameters:
//   - mode: the cull mode
//
// Returns:
//   - MaterialBuilderOption: a function that applies the cull mode option to a material
func WithCullMode(mode wgpu.CullMode) MaterialBuilderOption {
	return func(m *standardMaterial) {
		m.cullMode = mode
	}
}

// WithBaseColorTexture is an option builder that sets the base color texture and its sampler.
//
// Parameters:
//   - view: the base color texture view
//   - sampler: the sampler shared by the material textures
//
// Returns:
//   - MaterialBuilderOption: a function that applies the texture option to a material
func WithBaseColorTexture(view resource.TextureView, sampler resource.Sampler) MaterialBuilderOption {
	return func(m *standardMaterial) {
		m.baseColorTexture = view
		m.sampler = sampler
	}
}

// WithNormalMap is an option builder that sets the tangent-space normal map.
//
// Parameters:
//   - view: the normal map texture view
//
// Returns:
//   - MaterialBuilderOption: a function that applies the normal map option to a material
func WithNormalMap(view resource.TextureView) MaterialBuilderOption {
	return func(m *standardMaterial) {
		m.normalMap = view
	}
}

// StandardBuilderOption is a function that configures the standard material capability.
type StandardBuilderOption func(*standard)

// WithPrepassVertexShader overrides the shader of the prepass vertex stage.
//
// Parameters:
//   - ref: the shader reference
//
// Returns:
//   - StandardBuilderOption: a function that applies the shader override
func WithPrepassVertexShader(ref shader.Ref) StandardBuilderOption {
	return func(s *standard) {
		s.vertexShader = ref
	}
}

// WithPrepassFragmentShader overrides the shader of the prepass fragment stage.
//
// Parameters:
//   - ref: the shader reference
//
// Returns:
//   - StandardBuilderOption: a function that applies the shader override
func WithPrepassFragmentShader(ref shader.Ref) StandardBuilderOption {
	return func(s *standard) {
		s.fragmentShader = ref
	}
}
