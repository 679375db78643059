package prepass

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-prepass/common"
	"github.com/Carmen-Shannon/oxy-prepass/engine/camera"
	"github.com/Carmen-Shannon/oxy-prepass/engine/model"
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer"
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

const (
	// DepthFormat is the format of the prepass depth attachment and depth-stencil state.
	DepthFormat = wgpu.TextureFormatDepth32Float

	// NormalsFormat is the format of the prepass normals attachment.
	NormalsFormat = wgpu.TextureFormatRGB10A2Unorm

	// PipelineLabel is the debug label of every prepass pipeline.
	PipelineLabel = "prepass_pipeline"

	// MaxJoints is the number of joint matrices in a skinned mesh uniform.
	MaxJoints = 256
)

// ErrMaterialNameConflict is returned when two distinct material types share a name.
var ErrMaterialNameConflict = errors.New("prepass: material name registered by another type")

// Shader defines set by the prepass specializer.
const (
	DefPrepassDepth    = "PREPASS_DEPTH"
	DefPrepassNormals  = "PREPASS_NORMALS"
	DefAlphaMask       = "ALPHA_MASK"
	DefVertexPositions = "VERTEX_POSITIONS"
	DefVertexUVs       = "VERTEX_UVS"
	DefVertexTangents  = "VERTEX_TANGENTS"
	DefSkinned         = "SKINNED"
)

// Pipeline owns the bind group layouts shared by every prepass pipeline and one specializer per
// material type. It is safe for concurrent use.
type Pipeline struct {
	registry shader.Registry

	viewLayout        resource.BindGroupLayout
	meshLayout        resource.BindGroupLayout
	skinnedMeshLayout resource.BindGroupLayout

	mu        sync.Mutex
	materials map[string]*MaterialPipeline
}

// MaterialPipeline specializes prepass pipelines for one material type. Specialized pipelines
// are memoized per (Key, vertex layout) for the lifetime of the process.
type MaterialPipeline struct {
	parent         *Pipeline
	material       material.Material
	materialLayout resource.BindGroupLayout
	vertexShader   shader.Handle
	fragmentShader shader.Handle
	pipelines      *pipeline.SpecializedPipelines[Key]
}

var _ pipeline.Specializer[Key] = &MaterialPipeline{}

// NewPipeline creates the view, mesh and skinned mesh bind group layouts on device.
//
// Parameters:
//   - device: the device the layouts are created on
//   - registry: the registry material shader references resolve against
//
// Returns:
//   - *Pipeline: the prepass pipeline
//   - error: an error if a layout could not be created
func NewPipeline(device renderer.Device, registry shader.Registry) (*Pipeline, error) {
	if device == nil || registry == nil {
		panic("prepass: NewPipeline requires a device and a shader registry")
	}
	stages := wgpu.ShaderStageVertex | wgpu.ShaderStageFragment
	var viewUniform camera.GPUViewUniform
	var meshData model.GPUMeshUniform

	viewLayout, err := device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "prepass_view_layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: stages,
				Buffer: wgpu.BufferBindingLayout{
					Type:             wgpu.BufferBindingTypeUniform,
					HasDynamicOffset: true,
					MinBindingSize:   uint64(viewUniform.Size()),
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("prepass: view layout: %w", err)
	}

	meshEntry := wgpu.BindGroupLayoutEntry{
		Binding:    0,
		Visibility: stages,
		Buffer: wgpu.BufferBindingLayout{
			Type:           wgpu.BufferBindingTypeUniform,
			MinBindingSize: uint64(meshData.Size()),
		},
	}
	meshLayout, err := device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   "mesh_layout",
		Entries: []wgpu.BindGroupLayoutEntry{meshEntry},
	})
	if err != nil {
		return nil, fmt.Errorf("prepass: mesh layout: %w", err)
	}

	skinnedMeshLayout, err := device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "skinned_mesh_layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			meshEntry,
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageVertex,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeUniform,
					MinBindingSize: MaxJoints * 64,
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("prepass: skinned mesh layout: %w", err)
	}

	return &Pipeline{
		registry:          registry,
		viewLayout:        viewLayout,
		meshLayout:        meshLayout,
		skinnedMeshLayout: skinnedMeshLayout,
		materials:         make(map[string]*MaterialPipeline),
	}, nil
}

// ViewLayout returns the layout of the view bind group (group 0).
func (p *Pipeline) ViewLayout() resource.BindGroupLayout { return p.viewLayout }

// MeshLayout returns the layout of the static mesh bind group (group 2).
func (p *Pipeline) MeshLayout() resource.BindGroupLayout { return p.meshLayout }

// SkinnedMeshLayout returns the layout of the skinned mesh bind group (group 2).
func (p *Pipeline) SkinnedMeshLayout() resource.BindGroupLayout { return p.skinnedMeshLayout }

// Material returns the specializer of m's material type, creating it and the material's bind
// group layout on first use. Material types are told apart by name; a name already taken by a
// different Go type is rejected.
//
// Parameters:
//   - device: the device the material layout is created on
//   - m: the material type
//
// Returns:
//   - *MaterialPipeline: the specializer for m's type
//   - error: ErrMaterialNameConflict, or an error if the material layout could not be created
func (p *Pipeline) Material(device material.LayoutCreator, m material.Material) (*MaterialPipeline, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if mp, ok := p.materials[m.Name()]; ok {
		if have, got := reflect.TypeOf(mp.material), reflect.TypeOf(m); have != got {
			return nil, fmt.Errorf("%w: %q is %v, not %v", ErrMaterialNameConflict, m.Name(), have, got)
		}
		return mp, nil
	}
	layout, err := m.BindGroupLayout(device)
	if err != nil {
		return nil, fmt.Errorf("prepass: material %q layout: %w", m.Name(), err)
	}
	mp := &MaterialPipeline{
		parent:         p,
		material:       m,
		materialLayout: layout,
		vertexShader:   p.registry.Resolve(m.PrepassVertexShader(), shader.PrepassShaderHandle),
		fragmentShader: p.registry.Resolve(m.PrepassFragmentShader(), shader.PrepassShaderHandle),
		pipelines:      pipeline.NewSpecializedPipelines[Key](),
	}
	p.materials[m.Name()] = mp
	common.Logger().Debug("prepass material registered", "material", m.Name())
	return mp, nil
}

// MeshBindGroup creates the group 2 bind group of a static drawable, uploading its mesh uniform.
//
// Parameters:
//   - device: the device the uniform buffer and bind group are created on
//   - label: the debug label prefix
//   - transform: the model-to-world matrix of the drawable
//
// Returns:
//   - resource.BindGroup: the mesh bind group
//   - error: an error if a resource could not be created
func (p *Pipeline) MeshBindGroup(device renderer.Device, label string, transform [16]float32) (resource.BindGroup, error) {
	uniform := meshUniform(transform)
	buf, err := device.CreateBufferInit(label+" Mesh Buffer", wgpu.BufferUsageUniform, uniform.Marshal())
	if err != nil {
		return nil, fmt.Errorf("prepass: mesh uniform %q: %w", label, err)
	}
	return device.CreateBindGroup(&resource.BindGroupDescriptor{
		Label:   label + " Mesh Bind Group",
		Layout:  p.meshLayout,
		Entries: []resource.BindGroupEntry{{Binding: 0, Buffer: &resource.BufferBinding{Buffer: buf}}},
	})
}

// SkinnedMeshBindGroup creates the group 2 bind group of a skinned drawable, uploading its
// mesh uniform and up to MaxJoints joint matrices.
//
// Parameters:
//   - device: the device the buffers and bind group are created on
//   - label: the debug label prefix
//   - transform: the model-to-world matrix of the drawable
//   - joints: the joint matrices (column-major)
//
// Returns:
//   - resource.BindGroup: the skinned mesh bind group
//   - error: an error if there are too many joints or a resource could not be created
func (p *Pipeline) SkinnedMeshBindGroup(device renderer.Device, label string, transform [16]float32, joints [][16]float32) (resource.BindGroup, error) {
	if len(joints) > MaxJoints {
		return nil, fmt.Errorf("prepass: %q has %d joints, at most %d are supported", label, len(joints), MaxJoints)
	}
	uniform := meshUniform(transform)
	meshBuf, err := device.CreateBufferInit(label+" Mesh Buffer", wgpu.BufferUsageUniform, uniform.Marshal())
	if err != nil {
		return nil, fmt.Errorf("prepass: mesh uniform %q: %w", label, err)
	}
	jointData := make([]byte, MaxJoints*64)
	copy(jointData, common.SliceToBytes(joints))
	jointBuf, err := device.CreateBufferInit(label+" Joint Buffer", wgpu.BufferUsageUniform, jointData)
	if err != nil {
		return nil, fmt.Errorf("prepass: joint uniform %q: %w", label, err)
	}
	return device.CreateBindGroup(&resource.BindGroupDescriptor{
		Label:  label + " Skinned Mesh Bind Group",
		Layout: p.skinnedMeshLayout,
		Entries: []resource.BindGroupEntry{
			{Binding: 0, Buffer: &resource.BufferBinding{Buffer: meshBuf}},
			{Binding: 1, Buffer: &resource.BufferBinding{Buffer: jointBuf}},
		},
	})
}

// replaceBlend returns a blend state that writes the fragment output unchanged.
func replaceBlend() *wgpu.BlendState {
	replace := wgpu.BlendComponent{
		SrcFactor: wgpu.BlendFactorOne,
		DstFactor: wgpu.BlendFactorZero,
		Operation: wgpu.BlendOperationAdd,
	}
	return &wgpu.BlendState{Color: replace, Alpha: replace}
}

// meshUniform builds the mesh uniform of transform. Singular transforms get an identity
// normal matrix.
func meshUniform(transform [16]float32) model.GPUMeshUniform {
	u := model.GPUMeshUniform{Model: transform}
	var inv [16]float32
	if !common.Invert4(inv[:], transform[:]) {
		inv = common.IdentityMatrix()
	}
	for c := range 4 {
		for r := range 4 {
			u.InverseTransposeModel[c*4+r] = inv[r*4+c]
		}
	}
	return u
}

// Name returns the material type the specializer serves.
func (mp *MaterialPipeline) Name() string { return mp.material.Name() }

// MaterialLayout returns the material bind group layout (group 1).
func (mp *MaterialPipeline) MaterialLayout() resource.BindGroupLayout { return mp.materialLayout }

// Specialized returns the number of (key, layout) tuples specialized so far.
func (mp *MaterialPipeline) Specialized() int { return mp.pipelines.Len() }

// Pipeline returns the cached pipeline for key and layout, specializing and queueing it in
// cache on the first request.
//
// Parameters:
//   - cache: the pipeline cache
//   - key: the pipeline key
//   - layout: the interned vertex layout of the mesh
//
// Returns:
//   - pipeline.ID: the pipeline, valid even while it compiles
//   - error: a *pipeline.ConfigError if the key cannot be specialized for layout
func (mp *MaterialPipeline) Pipeline(cache pipeline.Cache, key Key, layout *model.VertexLayout) (pipeline.ID, error) {
	return mp.pipelines.Specialize(cache, mp, key, layout)
}

// Specialize derives the prepass pipeline config of key for a mesh with layout. Group 0 is the
// view, group 1 the material and group 2 the static or skinned mesh; shaders depend on that
// order.
func (mp *MaterialPipeline) Specialize(key Key, layout *model.VertexLayout) (*pipeline.RenderPipelineConfig, error) {
	var (
		defs      []string
		locations []model.AttributeLocation
	)
	normals := key.Mesh.Contains(MeshKeyPrepassNormals)
	masked := key.Mesh.Contains(MeshKeyAlphaMask)

	if key.Mesh.Contains(MeshKeyPrepassDepth) {
		defs = append(defs, DefPrepassDepth)
	}
	if masked {
		defs = append(defs, DefAlphaMask)
	}
	if layout.Contains(model.AttributePosition) {
		defs = append(defs, DefVertexPositions)
		locations = append(locations, model.AttributePosition.At(0))
	}
	if layout.Contains(model.AttributeUV0) {
		defs = append(defs, DefVertexUVs)
		locations = append(locations, model.AttributeUV0.At(1))
	}
	if normals {
		defs = append(defs, DefPrepassNormals)
		locations = append(locations, model.AttributeNormal.At(2))
		if layout.Contains(model.AttributeTangent) {
			defs = append(defs, DefVertexTangents)
			locations = append(locations, model.AttributeTangent.At(3))
		}
	}

	meshLayout := mp.parent.meshLayout
	if layout.Contains(model.AttributeJointIndex) && layout.Contains(model.AttributeJointWeight) {
		defs = append(defs, DefSkinned)
		locations = append(locations, model.AttributeJointIndex.At(4), model.AttributeJointWeight.At(5))
		meshLayout = mp.parent.skinnedMeshLayout
	}

	buffer, err := layout.Layout(locations)
	if err != nil {
		return nil, &pipeline.ConfigError{Key: key.String(), Err: err}
	}

	opts := []pipeline.RenderPipelineConfigOption{
		pipeline.WithLayout(mp.parent.viewLayout, mp.materialLayout, meshLayout),
		pipeline.WithVertex(mp.vertexShader, "vertex", defs, buffer),
		pipeline.WithPrimitive(key.Mesh.Topology().WGPU(), wgpu.FrontFaceCCW, wgpu.CullModeNone),
		pipeline.WithPolygonMode(pipeline.PolygonModeFill),
		pipeline.WithDepthStencil(DepthFormat, true, wgpu.CompareFunctionGreaterEqual, 0, 0),
		pipeline.WithMultisample(key.Mesh.MSAASamples()),
	}
	if normals || masked {
		var targets []wgpu.ColorTargetState
		if normals {
			targets = append(targets, wgpu.ColorTargetState{
				Format:    NormalsFormat,
				Blend:     replaceBlend(),
				WriteMask: wgpu.ColorWriteMaskAll,
			})
		}
		opts = append(opts, pipeline.WithFragment(mp.fragmentShader, "fragment", slices.Clone(defs), targets...))
	}
	cfg := pipeline.NewRenderPipelineConfig(PipelineLabel, opts...)

	if err := mp.material.Specialize(cfg, layout, key.Material); err != nil {
		return nil, &pipeline.ConfigError{Key: key.String(), Err: err}
	}
	return cfg, nil
}
