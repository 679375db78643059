package prepass

import (
	"cmp"
	"slices"

	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-prepass/engine/scene"
)

// PhaseItem is one queued prepass draw.
type PhaseItem struct {
	Entity       scene.Entity
	DrawFunction DrawFunctionID
	Pipeline     pipeline.ID
	// Distance is the view-space depth of the drawable plus its material's depth bias.
	Distance float32
}

// Phase is an ordered list of draws. Each view owns its phases exclusively for one frame.
type Phase struct {
	Items []PhaseItem
}

// Add appends item to the phase.
func (p *Phase) Add(item PhaseItem) {
	p.Items = append(p.Items, item)
}

// Len returns the number of queued items.
func (p *Phase) Len() int {
	return len(p.Items)
}

// Sort orders the items front to back. Items at equal distances keep their queue order.
func (p *Phase) Sort() {
	slices.SortStableFunc(p.Items, func(a, b PhaseItem) int {
		return cmp.Compare(a.Distance, b.Distance)
	})
}

// ViewPhases are the two prepass phases of a view.
type ViewPhases struct {
	// Opaque holds drawables with an opaque material.
	Opaque Phase
	// AlphaMask holds alpha-tested drawables; they are drawn after every opaque one.
	AlphaMask Phase
}
