package prepass

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/Carmen-Shannon/oxy-prepass/engine/model"
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer"
)

// MeshKey packs the mesh and view features a prepass pipeline variant depends on.
//
// Bit layout:
//
//	bit 0     PREPASS_DEPTH
//	bit 1     PREPASS_NORMALS
//	bit 2     ALPHA_MASK
//	bits 3-4  log2 of the MSAA sample count
//	bits 5-7  primitive topology
type MeshKey uint32

const (
	// MeshKeyNone requests nothing beyond a single-sampled point list.
	MeshKeyNone MeshKey = 0

	// MeshKeyPrepassDepth requests depth output.
	MeshKeyPrepassDepth MeshKey = 1 << 0

	// MeshKeyPrepassNormals requests view normals output.
	MeshKeyPrepassNormals MeshKey = 1 << 1

	// MeshKeyAlphaMask requests alpha-tested geometry.
	MeshKeyAlphaMask MeshKey = 1 << 2
)

const (
	meshKeyMSAAShift     = 3
	meshKeyMSAAMask      = 0b11
	meshKeyTopologyShift = 5
	meshKeyTopologyMask  = 0b111
)

// MeshKeyFromMSAA encodes a sample count. Panics for counts other than 1, 2, 4 or 8; views
// are validated during extraction.
//
// Parameters:
//   - count: the MSAA sample count
//
// Returns:
//   - MeshKey: the encoded sample count bits
func MeshKeyFromMSAA(count renderer.MSAASampleCount) MeshKey {
	log2, err := count.Log2()
	if err != nil {
		panic(fmt.Sprintf("prepass: %v", err))
	}
	return MeshKey(log2&meshKeyMSAAMask) << meshKeyMSAAShift
}

// MeshKeyFromTopology encodes a primitive topology.
//
// Parameters:
//   - t: the mesh topology
//
// Returns:
//   - MeshKey: the encoded topology bits
func MeshKeyFromTopology(t model.PrimitiveTopology) MeshKey {
	return MeshKey(uint32(t)&meshKeyTopologyMask) << meshKeyTopologyShift
}

// Contains reports whether every bit of flag is set.
func (k MeshKey) Contains(flag MeshKey) bool {
	return k&flag == flag
}

// MSAASamples returns the sample count encoded in k.
func (k MeshKey) MSAASamples() uint32 {
	return 1 << ((uint32(k) >> meshKeyMSAAShift) & meshKeyMSAAMask)
}

// Topology returns the primitive topology encoded in k.
func (k MeshKey) Topology() model.PrimitiveTopology {
	return model.PrimitiveTopology((uint32(k) >> meshKeyTopologyShift) & meshKeyTopologyMask)
}

func (k MeshKey) String() string {
	var parts []string
	if k.Contains(MeshKeyPrepassDepth) {
		parts = append(parts, "PREPASS_DEPTH")
	}
	if k.Contains(MeshKeyPrepassNormals) {
		parts = append(parts, "PREPASS_NORMALS")
	}
	if k.Contains(MeshKeyAlphaMask) {
		parts = append(parts, "ALPHA_MASK")
	}
	parts = append(parts, fmt.Sprintf("msaa=%d", k.MSAASamples()), k.Topology().String())
	return strings.Join(parts, "|")
}

// Key selects one prepass pipeline variant of a material type: the mesh key plus the
// material's own sub-key.
type Key struct {
	Mesh MeshKey
	// Material is the prepared material's key. Its dynamic type must be comparable.
	Material any
}

// NewKey builds a Key, panicking if the material key cannot be used as a map key.
//
// Parameters:
//   - mesh: the mesh key
//   - material: the material sub-key
//
// Returns:
//   - Key: the combined key
func NewKey(mesh MeshKey, material any) Key {
	if material != nil && !reflect.TypeOf(material).Comparable() {
		panic(fmt.Sprintf("prepass: material key of type %T is not comparable", material))
	}
	return Key{Mesh: mesh, Material: material}
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%+v", k.Mesh, k.Material)
}
