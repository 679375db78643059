package shader

import (
	"errors"
	"hash/fnv"
	"strings"
)

var (
	// ErrUnknownShader is returned when a handle or import name does not resolve to a registered module.
	ErrUnknownShader = errors.New("shader: unknown shader module")

	// ErrUnterminatedIf is returned when a conditional block is not closed by #endif.
	ErrUnterminatedIf = errors.New("shader: unterminated #ifdef block")

	// ErrUnbalancedDirective is returned for an #else or #endif without a matching #ifdef.
	ErrUnbalancedDirective = errors.New("shader: #else or #endif without #ifdef")
)

// Handle is a stable identifier for a registered shader module.
type Handle uint64

const (
	// PrepassShaderHandle identifies the built-in prepass vertex and fragment shader.
	PrepassShaderHandle Handle = 921124473254008983

	// PrepassBindingsShaderHandle identifies the shared prepass bindings module imported by
	// the prepass shader.
	PrepassBindingsShaderHandle Handle = 5533152893177403494
)

// PathHandle derives the handle a shader loaded from path is registered under.
//
// Parameters:
//   - path: the file path the shader source is loaded from
//
// Returns:
//   - Handle: the FNV-1a hash of the path
func PathHandle(path string) Handle {
	h := fnv.New64a()
	h.Write([]byte(path))
	return Handle(h.Sum64())
}

// RefKind identifies how a Ref selects a shader module.
type RefKind int

const (
	// RefDefault selects the caller's fallback shader.
	RefDefault RefKind = iota

	// RefHandle selects an already registered shader by handle.
	RefHandle

	// RefPath selects a shader loaded from a file path.
	RefPath
)

// Ref is a material's reference to the shader it wants for a pipeline stage.
// The zero value is a default reference.
type Ref struct {
	Kind   RefKind
	Handle Handle
	Path   string
}

// DefaultRef returns a reference that resolves to the caller's fallback shader.
func DefaultRef() Ref { return Ref{Kind: RefDefault} }

// HandleRef returns a reference to a registered shader handle.
func HandleRef(h Handle) Ref { return Ref{Kind: RefHandle, Handle: h} }

// PathRef returns a reference to a shader loaded from path.
func PathRef(path string) Ref { return Ref{Kind: RefPath, Path: path} }

// Variant is a shader module specialized for one set of shader defines.
type Variant struct {
	// Handle is the module the variant was built from.
	Handle Handle
	// Label is the registered name of the module, used as the GPU module label.
	Label string
	// Defs are the shader defines the variant was processed with.
	Defs []string
	// Source is the fully processed WGSL source with imports inlined.
	Source string
}

// variantKey memoizes specialized variants per module and define set.
type variantKey struct {
	handle Handle
	defs   string
}

func newVariantKey(h Handle, defs []string) variantKey {
	return variantKey{handle: h, defs: strings.Join(defs, "|")}
}
