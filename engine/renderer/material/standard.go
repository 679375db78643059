package material

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-prepass/common"
	"github.com/Carmen-Shannon/oxy-prepass/engine/model"
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// StandardName is the type name of the standard material.
const StandardName = "standard"

// ErrMissingTexture is returned when a standard material is prepared without a base color
// texture or sampler.
var ErrMissingTexture = errors.New("material: base color texture and sampler are required")

// StandardMaterialKey is the material sub-key of standard material instances.
type StandardMaterialKey struct {
	CullMode     wgpu.CullMode
	NormalMapped bool
}

// standard is the Material capability of the standard material type.
type standard struct {
	vertexShader   shader.Ref
	fragmentShader shader.Ref

	mu      sync.Mutex
	layouts map[LayoutCreator]resource.BindGroupLayout
}

var _ Material = &standard{}

// NewStandard creates the capability of the standard material type. By default both prepass
// stages use the built-in prepass shader.
//
// Parameters:
//   - opts: a variadic list of StandardBuilderOption functions to configure the type
//
// Returns:
//   - Material: the standard material capability
func NewStandard(opts ...StandardBuilderOption) Material {
	s := &standard{
		vertexShader:   shader.DefaultRef(),
		fragmentShader: shader.DefaultRef(),
		layouts:        make(map[LayoutCreator]resource.BindGroupLayout),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *standard) Name() string {
	return StandardName
}

func (s *standard) PrepassVertexShader() shader.Ref {
	return s.vertexShader
}

func (s *standard) PrepassFragmentShader() shader.Ref {
	return s.fragmentShader
}

func (s *standard) BindGroupLayout(creator LayoutCreator) (resource.BindGroupLayout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l, ok := s.layouts[creator]; ok {
		return l, nil
	}
	stages := wgpu.ShaderStageVertex | wgpu.ShaderStageFragment
	l, err := creator.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "standard_material_layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: stages,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeUniform,
					MinBindingSize: uint64((&GPUStandardMaterial{}).Size()),
				},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageFragment,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeFloat,
					ViewDimension: wgpu.TextureViewDimension2D,
				},
			},
			{
				Binding:    2,
				Visibility: wgpu.ShaderStageFragment,
				Sampler: wgpu.SamplerBindingLayout{
					Type: wgpu.SamplerBindingTypeFiltering,
				},
			},
			{
				Binding:    3,
				Visibility: wgpu.ShaderStageFragment,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeFloat,
					ViewDimension: wgpu.TextureViewDimension2D,
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("material: standard layout: %w", err)
	}
	s.layouts[creator] = l
	return l, nil
}

func (s *standard) Specialize(cfg *pipeline.RenderPipelineConfig, layout *model.VertexLayout, key any) error {
	k, ok := key.(StandardMaterialKey)
	if !ok {
		return fmt.Errorf("material: standard: unexpected key type %T", key)
	}
	cfg.Primitive.CullMode = k.CullMode
	// The normal map is sampled with the mesh UVs in tangent space.
	if k.NormalMapped && cfg.HasDefine("PREPASS_NORMALS") &&
		layout.Contains(model.AttributeTangent) && layout.Contains(model.AttributeUV0) {
		cfg.AddDefine("NORMAL_MAP")
	}
	return nil
}

// standardMaterial is the implementation of the StandardMaterial interface.
type standardMaterial struct {
	name             string
	baseColor        [4]float32
	alphaMode        AlphaMode
	depthBias        float32
	cullMode         wgpu.CullMode
	baseColorTexture resource.TextureView
	sampler          resource.Sampler
	normalMap        resource.TextureView
}

// StandardMaterial is one instance of the standard material: surface values and the texture
// resources its bind group references.
type StandardMaterial interface {
	// Name retrieves the instance identifier used in labels.
	//
	// Returns:
	//   - string: the material name
	Name() string

	// BaseColor retrieves the RGBA base color.
	//
	// Returns:
	//   - [4]float32: the base color
	BaseColor() [4]float32

	// AlphaMode retrieves the alpha handling of the instance.
	//
	// Returns:
	//   - AlphaMode: the alpha mode
	AlphaMode() AlphaMode

	// DepthBias retrieves the bias added to the sort distance of draws using the instance.
	//
	// Returns:
	//   - float32: the depth bias
	DepthBias() float32

	// CullMode retrieves the face culling mode.
	//
	// Returns:
	//   - wgpu.CullMode: the cull mode
	CullMode() wgpu.CullMode

	// BaseColorTexture retrieves the base color texture view.
	//
	// Returns:
	//   - resource.TextureView: the texture view, or nil if unset
	BaseColorTexture() resource.TextureView

	// Sampler retrieves the sampler shared by the material textures.
	//
	// Returns:
	//   - resource.Sampler: the sampler, or nil if unset
	Sampler() resource.Sampler

	// NormalMap retrieves the tangent-space normal map view.
	//
	// Returns:
	//   - resource.TextureView: the normal map, or nil if the instance is not normal mapped
	NormalMap() resource.TextureView

	// Key retrieves the pipeline sub-key of the instance.
	//
	// Returns:
	//   - StandardMaterialKey: the sub-key
	Key() StandardMaterialKey

	// Properties retrieves the prepass properties of the instance.
	//
	// Returns:
	//   - Properties: the alpha mode and depth bias
	Properties() Properties
}

var _ StandardMaterial = &standardMaterial{}

// NewStandardMaterial creates a standard material instance. Defaults: white, opaque, back-face
// culling, no depth bias.
//
// Parameters:
//   - options: variadic list of MaterialBuilderOption functions to configure the material
//
// Returns:
//   - StandardMaterial: the new instance
func NewStandardMaterial(options ...MaterialBuilderOption) StandardMaterial {
	m := &standardMaterial{
		baseColor: [4]float32{1, 1, 1, 1},
		alphaMode: Opaque(),
		cullMode:  wgpu.CullModeBack,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

func (m *standardMaterial) Name() string {
	return m.name
}

func (m *standardMaterial) BaseColor() [4]float32 {
	return m.baseColor
}

func (m *standardMaterial) AlphaMode() AlphaMode {
	return m.alphaMode
}

func (m *standardMaterial) DepthBias() float32 {
	return m.depthBias
}

func (m *standardMaterial) CullMode() wgpu.CullMode {
	return m.cullMode
}

func (m *standardMaterial) BaseColorTexture() resource.TextureView {
	return m.baseColorTexture
}

func (m *standardMaterial) Sampler() resource.Sampler {
	return m.sampler
}

func (m *standardMaterial) NormalMap() resource.TextureView {
	return m.normalMap
}

func (m *standardMaterial) Key() StandardMaterialKey {
	return StandardMaterialKey{CullMode: m.cullMode, NormalMapped: m.normalMap != nil}
}

func (m *standardMaterial) Properties() Properties {
	return Properties{AlphaMode: m.alphaMode, DepthBias: m.depthBias}
}

// PrepareStandardMaterial uploads the uniform of m and creates its group 1 bind group against
// the layout of std. Without a normal map the base color texture fills the normal map slot.
//
// Parameters:
//   - creator: the device the resources are created on
//   - std: the standard material capability returned by NewStandard
//   - m: the instance to prepare
//
// Returns:
//   - *Prepared: the drawable instance
//   - error: ErrMissingTexture or a wrapped device error
func PrepareStandardMaterial(creator ResourceCreator, std Material, m StandardMaterial) (*Prepared, error) {
	name := common.Coalesce(m.Name(), "unnamed")
	if m.BaseColorTexture() == nil || m.Sampler() == nil {
		return nil, fmt.Errorf("%w: %q", ErrMissingTexture, name)
	}
	layout, err := std.BindGroupLayout(creator)
	if err != nil {
		return nil, err
	}

	cutoff := float32(0)
	if m.AlphaMode().Kind == AlphaModeMask {
		cutoff = m.AlphaMode().Cutoff
	}
	uniform := GPUStandardMaterial{BaseColor: m.BaseColor(), AlphaCutoff: cutoff}
	buf, err := creator.CreateBufferInit(name+" Material Buffer", wgpu.BufferUsageUniform, uniform.Marshal())
	if err != nil {
		return nil, fmt.Errorf("material: failed to create uniform buffer for %q: %w", name, err)
	}

	normalMap := m.NormalMap()
	if normalMap == nil {
		normalMap = m.BaseColorTexture()
	}
	group, err := creator.CreateBindGroup(&resource.BindGroupDescriptor{
		Label:  name + " Material Bind Group",
		Layout: layout,
		Entries: []resource.BindGroupEntry{
			{Binding: 0, Buffer: &resource.BufferBinding{Buffer: buf}},
			{Binding: 1, TextureView: m.BaseColorTexture()},
			{Binding: 2, Sampler: m.Sampler()},
			{Binding: 3, TextureView: normalMap},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("material: failed to create bind group for %q: %w", name, err)
	}

	return &Prepared{
		Material:   std,
		BindGroup:  group,
		Key:        m.Key(),
		Properties: m.Properties(),
	}, nil
}
