package shader

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestRegistry_BuiltinModules(t *testing.T) {
	r := NewRegistry()
	for _, h := range []Handle{PrepassShaderHandle, PrepassBindingsShaderHandle} {
		if src, ok := r.Source(h); !ok || src == "" {
			t.Errorf("Source(%d) missing built-in module", h)
		}
	}
}

func TestRegistry_SpecializeInlinesBindings(t *testing.T) {
	r := NewRegistry()
	v, err := r.Specialize(PrepassShaderHandle, []string{"PREPASS_DEPTH", "VERTEX_POSITIONS"})
	if err != nil {
		t.Fatalf("Specialize() error = %v", err)
	}
	if !strings.Contains(v.Source, "var<uniform> view: View") {
		t.Error("variant does not contain the imported view binding")
	}
	if strings.Contains(v.Source, "#ifdef") || strings.Contains(v.Source, "#import") {
		t.Error("variant still contains directives")
	}
	if strings.Contains(v.Source, "joint_indices") {
		t.Error("variant without SKINNED contains joint attributes")
	}
	if v.Label != "prepass" || v.Handle != PrepassShaderHandle {
		t.Errorf("variant label/handle = %q/%d", v.Label, v.Handle)
	}
}

func TestRegistry_SpecializeMemoized(t *testing.T) {
	r := NewRegistry()
	defs := []string{"PREPASS_DEPTH", "ALPHA_MASK"}

	var wg sync.WaitGroup
	results := make([]*Variant, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := r.Specialize(PrepassShaderHandle, defs)
			if err != nil {
				t.Errorf("Specialize() error = %v", err)
				return
			}
			results[i] = v
		}(i)
	}
	wg.Wait()

	first, err := r.Specialize(PrepassShaderHandle, defs)
	if err != nil {
		t.Fatalf("Specialize() error = %v", err)
	}
	for i, v := range results {
		if v != first {
			t.Errorf("result %d is a different *Variant", i)
		}
	}
}

func TestRegistry_SpecializeUnknown(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Specialize(Handle(42), nil); !errors.Is(err, ErrUnknownShader) {
		t.Errorf("Specialize(unknown) error = %v, want ErrUnknownShader", err)
	}
}

func TestRegistry_Resolve(t *testing.T) {
	r := NewRegistry()
	tests := []struct {
		name string
		ref  Ref
		want Handle
	}{
		{"default", DefaultRef(), PrepassShaderHandle},
		{"zero value", Ref{}, PrepassShaderHandle},
		{"handle", HandleRef(7), 7},
		{"path", PathRef("shaders/custom.wgsl"), PathHandle("shaders/custom.wgsl")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Resolve(tt.ref, PrepassShaderHandle); got != tt.want {
				t.Errorf("Resolve() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRegistry_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.wgsl")
	if err := os.WriteFile(path, []byte("#import prepass_bindings\n// custom"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewRegistry()
	h, err := r.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if h != r.Resolve(PathRef(path), 0) {
		t.Errorf("Load() handle %d does not match the path reference", h)
	}
	v, err := r.Specialize(h, nil)
	if err != nil {
		t.Fatalf("Specialize() error = %v", err)
	}
	if !strings.Contains(v.Source, "// custom") || !strings.Contains(v.Source, "struct View") {
		t.Errorf("loaded variant missing its own or imported source: %q", v.Source)
	}

	if _, err := r.Load(filepath.Join(t.TempDir(), "missing.wgsl")); err == nil {
		t.Error("Load() of a missing file should fail")
	}
}

func TestRegistry_RegisterInvalidatesVariants(t *testing.T) {
	r := NewRegistry()
	r.Register(Handle(1), "lib", "old")
	r.Register(Handle(2), "main", "#import lib")

	v1, err := r.Specialize(Handle(2), nil)
	if err != nil {
		t.Fatalf("Specialize() error = %v", err)
	}
	r.Register(Handle(1), "lib", "new")
	v2, err := r.Specialize(Handle(2), nil)
	if err != nil {
		t.Fatalf("Specialize() error = %v", err)
	}
	if v1 == v2 || !strings.Contains(v2.Source, "new") {
		t.Errorf("variant was not rebuilt after its import changed: %q", v2.Source)
	}
}
