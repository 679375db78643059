package shader

import (
	_ "embed"
	"fmt"
	"os"
	"sync"
)

//go:embed assets/prepass.wgsl
var prepassSource string

//go:embed assets/prepass_bindings.wgsl
var prepassBindingsSource string

// module is one registered WGSL source.
type module struct {
	name   string
	source string
}

// registry is the implementation of the Registry interface.
type registry struct {
	mu       sync.RWMutex
	modules  map[Handle]module
	byName   map[string]Handle
	variants map[variantKey]*Variant
	pp       PreProcessor
}

// Registry owns every WGSL module known to the renderer and builds define-specialized
// variants from them. It is safe for concurrent use.
type Registry interface {
	// Register adds or replaces the module stored under handle. The name is used both as the
	// debug label and as the #import name of the module.
	//
	// Parameters:
	//   - handle: the stable handle of the module
	//   - name: the import name and label of the module
	//   - source: the raw WGSL source, directives included
	Register(handle Handle, name, source string)

	// Load reads a WGSL file and registers it under PathHandle(path), using the path as its name.
	//
	// Parameters:
	//   - path: the file to read
	//
	// Returns:
	//   - Handle: the handle the file was registered under
	//   - error: an error if the file could not be read
	Load(path string) (Handle, error)

	// Resolve maps a material shader reference to a module handle. Default references resolve
	// to fallback, path references resolve to PathHandle(path) whether or not the file has been
	// loaded yet.
	//
	// Parameters:
	//   - ref: the reference to resolve
	//   - fallback: the handle used for default references
	//
	// Returns:
	//   - Handle: the resolved handle
	Resolve(ref Ref, fallback Handle) Handle

	// Source returns the raw source registered under handle.
	//
	// Parameters:
	//   - handle: the module to look up
	//
	// Returns:
	//   - string: the raw WGSL source
	//   - bool: false if no module is registered under handle
	Source(handle Handle) (string, bool)

	// Specialize runs the pre-processor over the module with defs and memoizes the result.
	// Repeated calls with the same handle and defs return the same *Variant.
	//
	// Parameters:
	//   - handle: the module to specialize
	//   - defs: the shader defines set for the variant
	//
	// Returns:
	//   - *Variant: the processed variant
	//   - error: ErrUnknownShader if the module is not registered, or a pre-processor error
	Specialize(handle Handle, defs []string) (*Variant, error)
}

var _ Registry = &registry{}

// NewRegistry creates a Registry pre-populated with the built-in prepass shader and its
// bindings module.
//
// Returns:
//   - Registry: the new registry
func NewRegistry() Registry {
	r := &registry{
		modules:  make(map[Handle]module),
		byName:   make(map[string]Handle),
		variants: make(map[variantKey]*Variant),
	}
	r.pp = NewPreProcessor(r.importSource)
	r.Register(PrepassBindingsShaderHandle, "prepass_bindings", prepassBindingsSource)
	r.Register(PrepassShaderHandle, "prepass", prepassSource)
	return r
}

func (r *registry) Register(handle Handle, name, source string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.modules[handle]; ok {
		delete(r.byName, old.name)
	}
	r.modules[handle] = module{name: name, source: source}
	r.byName[name] = handle
	// Every cached variant may have inlined the replaced module.
	clear(r.variants)
}

func (r *registry) Load(path string) (Handle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("shader: failed to read source file %q: %w", path, err)
	}
	h := PathHandle(path)
	r.Register(h, path, string(data))
	return h, nil
}

func (r *registry) Resolve(ref Ref, fallback Handle) Handle {
	switch ref.Kind {
	case RefHandle:
		return ref.Handle
	case RefPath:
		return PathHandle(ref.Path)
	default:
		return fallback
	}
}

func (r *registry) Source(handle Handle) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[handle]
	return m.source, ok
}

func (r *registry) Specialize(handle Handle, defs []string) (*Variant, error) {
	key := newVariantKey(handle, defs)

	r.mu.RLock()
	v, ok := r.variants[key]
	m, registered := r.modules[handle]
	r.mu.RUnlock()
	if ok {
		return v, nil
	}
	if !registered {
		return nil, fmt.Errorf("handle %d: %w", handle, ErrUnknownShader)
	}

	src, err := r.pp.Process(m.source, defs)
	if err != nil {
		return nil, fmt.Errorf("shader: failed to pre-process %q: %w", m.name, err)
	}
	v = &Variant{
		Handle: handle,
		Label:  m.name,
		Defs:   append([]string(nil), defs...),
		Source: src,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.variants[key]; ok {
		return existing, nil
	}
	r.variants[key] = v
	return v, nil
}

// importSource resolves #import names for the pre-processor. Called without r.mu held.
func (r *registry) importSource(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byName[name]
	if !ok {
		return "", false
	}
	return r.modules[h].source, true
}
