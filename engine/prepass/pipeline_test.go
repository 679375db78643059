package prepass

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"testing"

	"github.com/Carmen-Shannon/oxy-prepass/engine/model"
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer/renderertest"
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

var (
	posUVLayout = model.InternLayout(20,
		model.VertexAttribute{ID: model.AttributePosition, Format: wgpu.VertexFormatFloat32x3, Offset: 0},
		model.VertexAttribute{ID: model.AttributeUV0, Format: wgpu.VertexFormatFloat32x2, Offset: 12},
	)
	posUVNormalLayout = model.InternLayout(32,
		model.VertexAttribute{ID: model.AttributePosition, Format: wgpu.VertexFormatFloat32x3, Offset: 0},
		model.VertexAttribute{ID: model.AttributeUV0, Format: wgpu.VertexFormatFloat32x2, Offset: 12},
		model.VertexAttribute{ID: model.AttributeNormal, Format: wgpu.VertexFormatFloat32x3, Offset: 20},
	)
	jointIndexOnlyLayout = model.InternLayout(28,
		model.VertexAttribute{ID: model.AttributePosition, Format: wgpu.VertexFormatFloat32x3, Offset: 0},
		model.VertexAttribute{ID: model.AttributeJointIndex, Format: wgpu.VertexFormatUint32x4, Offset: 12},
	)
)

// opaqueStandardKey is the material key of an opaque standard material without culling.
var opaqueStandardKey = material.StandardMaterialKey{CullMode: wgpu.CullModeNone}

func newTestMaterialPipeline(t *testing.T) (*Pipeline, *MaterialPipeline) {
	t.Helper()
	device := renderertest.NewDevice()
	p, err := NewPipeline(device, shader.NewRegistry())
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	mp, err := p.Material(device, material.NewStandard())
	if err != nil {
		t.Fatalf("Material() error = %v", err)
	}
	return p, mp
}

func depthKey(extra MeshKey) Key {
	return NewKey(MeshKeyPrepassDepth|MeshKeyFromMSAA(1)|MeshKeyFromTopology(model.TopologyTriangleList)|extra, opaqueStandardKey)
}

func TestSpecialize_DepthOnly(t *testing.T) {
	p, mp := newTestMaterialPipeline(t)

	cfg, err := mp.Specialize(depthKey(0), posUVLayout)
	if err != nil {
		t.Fatalf("Specialize() error = %v", err)
	}
	if cfg.Label != PipelineLabel {
		t.Errorf("Label = %q, want %q", cfg.Label, PipelineLabel)
	}
	if cfg.Fragment != nil {
		t.Errorf("Fragment = %+v, want no fragment stage", cfg.Fragment)
	}
	if n := len(cfg.ColorTargets()); n != 0 {
		t.Errorf("len(ColorTargets()) = %d, want 0", n)
	}
	if len(cfg.Vertex.Buffers) != 1 {
		t.Fatalf("len(Vertex.Buffers) = %d, want 1", len(cfg.Vertex.Buffers))
	}
	attrs := cfg.Vertex.Buffers[0].Attributes
	if len(attrs) != 2 || attrs[0].ShaderLocation != 0 || attrs[1].ShaderLocation != 1 {
		t.Errorf("Attributes = %+v, want position@0 and uv@1", attrs)
	}
	wantDefs := []string{DefPrepassDepth, DefVertexPositions, DefVertexUVs}
	if !slices.Equal(cfg.Vertex.Defs, wantDefs) {
		t.Errorf("Vertex.Defs = %v, want %v", cfg.Vertex.Defs, wantDefs)
	}
	if cfg.DepthStencil == nil {
		t.Fatal("DepthStencil is nil")
	}
	ds := cfg.DepthStencil
	if ds.Format != DepthFormat || !ds.DepthWriteEnabled || ds.DepthCompare != wgpu.CompareFunctionGreaterEqual {
		t.Errorf("DepthStencil = %+v, want Depth32Float, writes on, GreaterEqual", ds)
	}
	wantLayout := []resource.BindGroupLayout{p.ViewLayout(), mp.MaterialLayout(), p.MeshLayout()}
	if !slices.Equal(cfg.Layout, wantLayout) {
		t.Errorf("Layout = %v, want view, material and mesh layouts", cfg.Layout)
	}
	if cfg.Primitive.FrontFace != wgpu.FrontFaceCCW || cfg.Primitive.CullMode != wgpu.CullModeNone {
		t.Errorf("Primitive = %+v, want CCW without culling", cfg.Primitive)
	}
	if cfg.Multisample.Count != 1 {
		t.Errorf("Multisample.Count = %d, want 1", cfg.Multisample.Count)
	}
}

func TestSpecialize_NormalsWithTangents(t *testing.T) {
	_, mp := newTestMaterialPipeline(t)

	cfg, err := mp.Specialize(depthKey(MeshKeyPrepassNormals), model.StaticVertexLayout())
	if err != nil {
		t.Fatalf("Specialize() error = %v", err)
	}
	if cfg.Fragment == nil {
		t.Fatal("Fragment is nil, want a fragment stage")
	}
	targets := cfg.ColorTargets()
	if len(targets) != 1 || targets[0].Format != NormalsFormat {
		t.Fatalf("ColorTargets() = %+v, want one RGB10A2Unorm target", targets)
	}
	if targets[0].Blend == nil || targets[0].Blend.Color.SrcFactor != wgpu.BlendFactorOne || targets[0].Blend.Color.DstFactor != wgpu.BlendFactorZero {
		t.Errorf("Blend = %+v, want replace", targets[0].Blend)
	}
	for _, def := range []string{DefPrepassNormals, DefVertexTangents} {
		if !cfg.HasDefine(def) {
			t.Errorf("missing define %s in %v", def, cfg.Vertex.Defs)
		}
	}
	if !slices.Equal(cfg.Vertex.Defs, cfg.Fragment.Defs) {
		t.Errorf("Fragment.Defs = %v, want the vertex defs %v", cfg.Fragment.Defs, cfg.Vertex.Defs)
	}
	var locations []uint32
	for _, a := range cfg.Vertex.Buffers[0].Attributes {
		locations = append(locations, a.ShaderLocation)
	}
	if !slices.Equal(locations, []uint32{0, 1, 2, 3}) {
		t.Errorf("shader locations = %v, want [0 1 2 3]", locations)
	}
}

func TestSpecialize_AlphaMask(t *testing.T) {
	_, mp := newTestMaterialPipeline(t)

	masked, err := mp.Specialize(depthKey(MeshKeyAlphaMask), posUVLayout)
	if err != nil {
		t.Fatalf("Specialize() error = %v", err)
	}
	if !masked.HasDefine(DefAlphaMask) {
		t.Errorf("masked config lacks %s: %v", DefAlphaMask, masked.Vertex.Defs)
	}
	if masked.Fragment == nil || masked.Fragment.Targets == nil || len(masked.Fragment.Targets) != 0 {
		t.Errorf("Fragment = %+v, want a fragment stage with an empty target list", masked.Fragment)
	}

	opaque, err := mp.Specialize(depthKey(0), posUVLayout)
	if err != nil {
		t.Fatalf("Specialize() error = %v", err)
	}
	if opaque.HasDefine(DefAlphaMask) {
		t.Errorf("opaque config carries %s", DefAlphaMask)
	}
}

func TestSpecialize_Skinning(t *testing.T) {
	p, mp := newTestMaterialPipeline(t)

	tests := []struct {
		name        string
		layout      *model.VertexLayout
		wantSkinned bool
	}{
		{"joint index and weight", model.SkinnedVertexLayout(), true},
		{"joint index only", jointIndexOnlyLayout, false},
		{"static", model.StaticVertexLayout(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := mp.Specialize(depthKey(0), tt.layout)
			if err != nil {
				t.Fatalf("Specialize() error = %v", err)
			}
			if got := cfg.HasDefine(DefSkinned); got != tt.wantSkinned {
				t.Errorf("HasDefine(%s) = %v, want %v", DefSkinned, got, tt.wantSkinned)
			}
			wantMesh := p.MeshLayout()
			if tt.wantSkinned {
				wantMesh = p.SkinnedMeshLayout()
			}
			if cfg.Layout[2] != wantMesh {
				t.Errorf("Layout[2] = %q, want %q", cfg.Layout[2].Label(), wantMesh.Label())
			}
		})
	}
}

func TestSpecialize_MissingNormalIsConfigError(t *testing.T) {
	_, mp := newTestMaterialPipeline(t)

	_, err := mp.Specialize(depthKey(MeshKeyPrepassNormals), posUVLayout)
	var cfgErr *pipeline.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Specialize() error = %v, want *pipeline.ConfigError", err)
	}
	if !errors.Is(err, model.ErrMissingVertexAttribute) {
		t.Errorf("Specialize() error = %v, want ErrMissingVertexAttribute", err)
	}
}

func TestSpecialize_MaterialHook(t *testing.T) {
	_, mp := newTestMaterialPipeline(t)

	culled := NewKey(depthKey(MeshKeyPrepassNormals).Mesh, material.StandardMaterialKey{CullMode: wgpu.CullModeBack, NormalMapped: true})
	cfg, err := mp.Specialize(culled, model.StaticVertexLayout())
	if err != nil {
		t.Fatalf("Specialize() error = %v", err)
	}
	if cfg.Primitive.CullMode != wgpu.CullModeBack {
		t.Errorf("CullMode = %v, want back", cfg.Primitive.CullMode)
	}
	if !cfg.HasDefine("NORMAL_MAP") {
		t.Errorf("missing NORMAL_MAP define: %v", cfg.Vertex.Defs)
	}

	_, err = mp.Specialize(NewKey(depthKey(0).Mesh, "not a standard key"), posUVLayout)
	var cfgErr *pipeline.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Errorf("Specialize() with a foreign key error = %v, want *pipeline.ConfigError", err)
	}
}

// Every bit of the key must be observable in the resolved config.
func TestSpecialize_DistinctKeysDistinctConfigs(t *testing.T) {
	_, mp := newTestMaterialPipeline(t)
	layout := model.StaticVertexLayout()

	var keys []Key
	for _, flags := range []MeshKey{0, MeshKeyPrepassNormals, MeshKeyAlphaMask, MeshKeyPrepassNormals | MeshKeyAlphaMask} {
		for _, samples := range []uint32{1, 2, 4, 8} {
			for _, topo := range []model.PrimitiveTopology{model.TopologyTriangleList, model.TopologyLineList} {
				mesh := MeshKeyPrepassDepth | flags | MeshKeyFromTopology(topo)
				mesh |= MeshKeyFromMSAA(msaa(samples))
				keys = append(keys, NewKey(mesh, opaqueStandardKey))
			}
		}
	}
	keys = append(keys, NewKey(keys[0].Mesh&^MeshKeyPrepassDepth, opaqueStandardKey))
	keys = append(keys, NewKey(keys[0].Mesh, material.StandardMaterialKey{CullMode: wgpu.CullModeFront}))

	configs := make([]*pipeline.RenderPipelineConfig, len(keys))
	for i, k := range keys {
		cfg, err := mp.Specialize(k, layout)
		if err != nil {
			t.Fatalf("Specialize(%s) error = %v", k, err)
		}
		configs[i] = cfg
	}
	for i := range configs {
		for j := i + 1; j < len(configs); j++ {
			if reflect.DeepEqual(configs[i], configs[j]) {
				t.Errorf("keys %s and %s produce identical configs", keys[i], keys[j])
			}
		}
	}
}

func TestMaterialPipeline_PipelineIdempotent(t *testing.T) {
	_, mp := newTestMaterialPipeline(t)
	cache := pipeline.NewCache(shader.NewRegistry(), pipeline.WithShaderValidation(false))

	first, err := mp.Pipeline(cache, depthKey(0), posUVLayout)
	if err != nil {
		t.Fatalf("Pipeline() error = %v", err)
	}
	second, err := mp.Pipeline(cache, depthKey(0), posUVLayout)
	if err != nil {
		t.Fatalf("Pipeline() error = %v", err)
	}
	if first != second {
		t.Errorf("Pipeline() = %d then %d, want the same ID", first, second)
	}
	if cache.Len() != 1 || mp.Specialized() != 1 {
		t.Errorf("cache.Len() = %d, Specialized() = %d, want 1 and 1", cache.Len(), mp.Specialized())
	}
}

func TestPipeline_MaterialPerName(t *testing.T) {
	device := renderertest.NewDevice()
	p, err := NewPipeline(device, shader.NewRegistry())
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	std := material.NewStandard()
	a, err := p.Material(device, std)
	if err != nil {
		t.Fatalf("Material() error = %v", err)
	}
	b, err := p.Material(device, material.NewStandard())
	if err != nil {
		t.Fatalf("Material() error = %v", err)
	}
	if a != b {
		t.Error("Material() returned distinct specializers for the same material name")
	}
	if a.Name() != material.StandardName {
		t.Errorf("Name() = %q, want %q", a.Name(), material.StandardName)
	}
}

// wrappedStandard is a distinct material type that reports the standard material's name.
type wrappedStandard struct {
	material.Material
}

func TestPipeline_MaterialNameConflict(t *testing.T) {
	device := renderertest.NewDevice()
	p, err := NewPipeline(device, shader.NewRegistry())
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	std, err := p.Material(device, material.NewStandard())
	if err != nil {
		t.Fatalf("Material() error = %v", err)
	}

	_, err = p.Material(device, wrappedStandard{material.NewStandard()})
	if !errors.Is(err, ErrMaterialNameConflict) {
		t.Fatalf("Material() error = %v, want ErrMaterialNameConflict", err)
	}
	again, err := p.Material(device, material.NewStandard())
	if err != nil || again != std {
		t.Errorf("Material() after a conflict = %p, %v, want the original specializer", again, err)
	}
}

func TestPipeline_MeshBindGroups(t *testing.T) {
	device := renderertest.NewDevice()
	p, err := NewPipeline(device, shader.NewRegistry())
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}

	g, err := p.MeshBindGroup(device, "cube", translation(0, 0, 2))
	if err != nil {
		t.Fatalf("MeshBindGroup() error = %v", err)
	}
	desc := g.(*renderertest.BindGroup).Desc
	if desc.Layout != p.MeshLayout() || len(desc.Entries) != 1 {
		t.Fatalf("mesh bind group = %+v, want one entry on the mesh layout", desc)
	}
	if size := desc.Entries[0].Buffer.Buffer.Size(); size != 128 {
		t.Errorf("mesh uniform size = %d, want 128", size)
	}

	sg, err := p.SkinnedMeshBindGroup(device, "rig", translation(0, 0, 0), make([][16]float32, 3))
	if err != nil {
		t.Fatalf("SkinnedMeshBindGroup() error = %v", err)
	}
	sdesc := sg.(*renderertest.BindGroup).Desc
	if sdesc.Layout != p.SkinnedMeshLayout() || len(sdesc.Entries) != 2 {
		t.Fatalf("skinned bind group = %+v, want two entries on the skinned layout", sdesc)
	}
	if size := sdesc.Entries[1].Buffer.Buffer.Size(); size != MaxJoints*64 {
		t.Errorf("joint buffer size = %d, want %d", size, MaxJoints*64)
	}

	if _, err := p.SkinnedMeshBindGroup(device, "big", translation(0, 0, 0), make([][16]float32, MaxJoints+1)); err == nil {
		t.Error("SkinnedMeshBindGroup() with too many joints returned no error")
	}
}

func TestSpecialize_BuiltinShaderVariantsValidate(t *testing.T) {
	registry := shader.NewRegistry()
	device := renderertest.NewDevice()
	p, err := NewPipeline(device, registry)
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	mp, err := p.Material(device, material.NewStandard())
	if err != nil {
		t.Fatalf("Material() error = %v", err)
	}

	layouts := []struct {
		name   string
		layout *model.VertexLayout
	}{
		{"position uv", posUVLayout},
		{"position uv normal", posUVNormalLayout},
		{"static", model.StaticVertexLayout()},
		{"skinned", model.SkinnedVertexLayout()},
		{"joint index only", jointIndexOnlyLayout},
	}
	validated := make(map[*shader.Variant]bool)
	defines := make(map[string]bool)
	check := func(t *testing.T, h shader.Handle, defs []string) {
		t.Helper()
		v, err := registry.Specialize(h, defs)
		if err != nil {
			t.Fatalf("Specialize(%v) error = %v", defs, err)
		}
		if validated[v] {
			return
		}
		validated[v] = true
		for _, d := range defs {
			defines[d] = true
		}
		if err := shader.Validate(v.Source); err != nil {
			t.Errorf("variant %v does not validate: %v", defs, err)
		}
	}

	for _, normals := range []bool{false, true} {
		for _, mask := range []bool{false, true} {
			for _, normalMapped := range []bool{false, true} {
				for _, l := range layouts {
					var extra MeshKey
					if normals {
						extra |= MeshKeyPrepassNormals
					}
					if mask {
						extra |= MeshKeyAlphaMask
					}
					key := NewKey(depthKey(extra).Mesh, material.StandardMaterialKey{CullMode: wgpu.CullModeNone, NormalMapped: normalMapped})
					t.Run(fmt.Sprintf("normals=%v mask=%v normal_map=%v %s", normals, mask, normalMapped, l.name), func(t *testing.T) {
						cfg, err := mp.Specialize(key, l.layout)
						var cerr *pipeline.ConfigError
						if errors.As(err, &cerr) {
							t.Skipf("layout cannot serve the key: %v", err)
						}
						if err != nil {
							t.Fatalf("Specialize() error = %v", err)
						}
						check(t, cfg.Vertex.Shader, cfg.Vertex.Defs)
						if cfg.Fragment != nil {
							check(t, cfg.Fragment.Shader, cfg.Fragment.Defs)
						}
					})
				}
			}
		}
	}

	for _, d := range []string{DefPrepassNormals, DefAlphaMask, DefVertexTangents, DefSkinned, "NORMAL_MAP"} {
		if !defines[d] {
			t.Errorf("no validated variant was built with %s", d)
		}
	}
}
