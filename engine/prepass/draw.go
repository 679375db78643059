package prepass

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer"
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-prepass/engine/scene"
)

// DrawFunctionID identifies a draw function registered in DrawFunctions.
type DrawFunctionID uint32

// RenderCommandResult reports whether a render command could run.
type RenderCommandResult int

const (
	// RenderCommandSuccess means the command recorded its state and the draw can continue.
	RenderCommandSuccess RenderCommandResult = iota

	// RenderCommandFailure means the item cannot be drawn this frame.
	RenderCommandFailure
)

// DrawContext is the frame state render commands read.
type DrawContext struct {
	Cache pipeline.Cache
	World scene.Scene
	// ViewBindGroup is the bind group of the view uniforms, built by QueueViewBindGroup.
	ViewBindGroup resource.BindGroup
}

// RenderCommand records one step of drawing a phase item.
type RenderCommand interface {
	// Render records the command into pass.
	//
	// Parameters:
	//   - ctx: the frame state
	//   - view: the view being drawn
	//   - item: the item being drawn
	//   - pass: the render pass of the view
	//
	// Returns:
	//   - RenderCommandResult: RenderCommandFailure to abandon the item
	Render(ctx *DrawContext, view *View, item *PhaseItem, pass renderer.TrackedRenderPass) RenderCommandResult
}

// RenderCommandFunc adapts a function to the RenderCommand interface.
type RenderCommandFunc func(ctx *DrawContext, view *View, item *PhaseItem, pass renderer.TrackedRenderPass) RenderCommandResult

// Render calls f.
func (f RenderCommandFunc) Render(ctx *DrawContext, view *View, item *PhaseItem, pass renderer.TrackedRenderPass) RenderCommandResult {
	return f(ctx, view, item, pass)
}

// DrawFunction draws one phase item.
type DrawFunction interface {
	// Draw records every command needed to draw item.
	//
	// Parameters:
	//   - ctx: the frame state
	//   - view: the view being drawn
	//   - item: the item to draw
	//   - pass: the render pass of the view
	//
	// Returns:
	//   - bool: false if the item was skipped
	Draw(ctx *DrawContext, view *View, item *PhaseItem, pass renderer.TrackedRenderPass) bool
}

// commandSequence runs render commands in order, stopping at the first failure.
type commandSequence []RenderCommand

// Sequence builds a DrawFunction that runs cmds in order and skips the item at the first
// failing command.
//
// Parameters:
//   - cmds: the render commands
//
// Returns:
//   - DrawFunction: the draw function
func Sequence(cmds ...RenderCommand) DrawFunction {
	return commandSequence(cmds)
}

func (s commandSequence) Draw(ctx *DrawContext, view *View, item *PhaseItem, pass renderer.TrackedRenderPass) bool {
	for _, cmd := range s {
		if cmd.Render(ctx, view, item, pass) == RenderCommandFailure {
			return false
		}
	}
	return true
}

// SetItemPipeline binds the item's pipeline. Pipelines still compiling, or failed, skip the item.
var SetItemPipeline RenderCommand = RenderCommandFunc(func(ctx *DrawContext, view *View, item *PhaseItem, pass renderer.TrackedRenderPass) RenderCommandResult {
	p, err := ctx.Cache.RenderPipeline(item.Pipeline)
	if err != nil {
		return RenderCommandFailure
	}
	pass.SetPipeline(p)
	return RenderCommandSuccess
})

// SetPrepassViewBindGroup binds the view bind group at index with the view's uniform offset.
// A missing view bind group means the queue stages did not run and panics.
//
// Parameters:
//   - index: the bind group index
//
// Returns:
//   - RenderCommand: the command
func SetPrepassViewBindGroup(index uint32) RenderCommand {
	return RenderCommandFunc(func(ctx *DrawContext, view *View, item *PhaseItem, pass renderer.TrackedRenderPass) RenderCommandResult {
		if ctx.ViewBindGroup == nil {
			panic("prepass: view bind group missing; QueueViewBindGroup must run before drawing")
		}
		pass.SetBindGroup(index, ctx.ViewBindGroup, []uint32{view.UniformOffset})
		return RenderCommandSuccess
	})
}

// SetMaterialBindGroup binds the bind group of the item's prepared material at index.
//
// Parameters:
//   - index: the bind group index
//
// Returns:
//   - RenderCommand: the command
func SetMaterialBindGroup(index uint32) RenderCommand {
	return RenderCommandFunc(func(ctx *DrawContext, view *View, item *PhaseItem, pass renderer.TrackedRenderPass) RenderCommandResult {
		d, ok := ctx.World.Get(item.Entity)
		if !ok {
			return RenderCommandFailure
		}
		prepared, ok := ctx.World.Materials().Get(d.Material)
		if !ok || prepared.BindGroup == nil {
			return RenderCommandFailure
		}
		pass.SetBindGroup(index, prepared.BindGroup, nil)
		return RenderCommandSuccess
	})
}

// SetMeshBindGroup binds the item's mesh bind group at index.
//
// Parameters:
//   - index: the bind group index
//
// Returns:
//   - RenderCommand: the command
func SetMeshBindGroup(index uint32) RenderCommand {
	return RenderCommandFunc(func(ctx *DrawContext, view *View, item *PhaseItem, pass renderer.TrackedRenderPass) RenderCommandResult {
		d, ok := ctx.World.Get(item.Entity)
		if !ok || d.MeshBindGroup == nil {
			return RenderCommandFailure
		}
		pass.SetBindGroup(index, d.MeshBindGroup, nil)
		return RenderCommandSuccess
	})
}

// DrawMesh binds the item's vertex and index buffers and issues the draw.
var DrawMesh RenderCommand = RenderCommandFunc(func(ctx *DrawContext, view *View, item *PhaseItem, pass renderer.TrackedRenderPass) RenderCommandResult {
	d, ok := ctx.World.Get(item.Entity)
	if !ok {
		return RenderCommandFailure
	}
	mesh, ok := ctx.World.Meshes().Get(d.Mesh)
	if !ok || mesh.VertexBuffer() == nil {
		return RenderCommandFailure
	}
	pass.SetVertexBuffer(0, mesh.VertexBuffer())
	if ib := mesh.IndexBuffer(); ib != nil {
		pass.SetIndexBuffer(ib, mesh.IndexFormat())
		pass.DrawIndexed(mesh.IndexCount(), 1, 0, 0, 0)
	} else {
		pass.Draw(mesh.VertexCount(), 1, 0, 0)
	}
	return RenderCommandSuccess
})

// DrawPrepass draws a prepass item: pipeline, view (group 0), material (group 1), mesh
// (group 2), then the mesh itself.
var DrawPrepass = Sequence(
	SetItemPipeline,
	SetPrepassViewBindGroup(0),
	SetMaterialBindGroup(1),
	SetMeshBindGroup(2),
	DrawMesh,
)

// drawFunctions is the implementation of the DrawFunctions interface.
type drawFunctions struct {
	mu     sync.RWMutex
	fns    []DrawFunction
	byName map[string]DrawFunctionID
}

// DrawFunctions registers the draw functions phase items refer to by ID.
// Thread-safe for concurrent access.
type DrawFunctions interface {
	// Add registers fn under name. Registering a name twice keeps the first function and
	// returns its ID.
	//
	// Parameters:
	//   - name: the unique name of the draw function
	//   - fn: the draw function
	//
	// Returns:
	//   - DrawFunctionID: the ID of the function registered under name
	Add(name string, fn DrawFunction) DrawFunctionID

	// ID looks up the draw function registered under name.
	//
	// Parameters:
	//   - name: the draw function name
	//
	// Returns:
	//   - DrawFunctionID: the ID
	//   - bool: false if nothing is registered under name
	ID(name string) (DrawFunctionID, bool)

	// Get returns the draw function registered as id.
	//
	// Parameters:
	//   - id: the draw function ID
	//
	// Returns:
	//   - DrawFunction: the draw function
	//   - bool: false for unknown IDs
	Get(id DrawFunctionID) (DrawFunction, bool)
}

var _ DrawFunctions = &drawFunctions{}

// NewDrawFunctions creates an empty draw function registry.
//
// Returns:
//   - DrawFunctions: the new registry
func NewDrawFunctions() DrawFunctions {
	return &drawFunctions{byName: make(map[string]DrawFunctionID)}
}

func (d *drawFunctions) Add(name string, fn DrawFunction) DrawFunctionID {
	if fn == nil {
		panic(fmt.Sprintf("prepass: draw function %q is nil", name))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if id, ok := d.byName[name]; ok {
		return id
	}
	id := DrawFunctionID(len(d.fns))
	d.fns = append(d.fns, fn)
	d.byName[name] = id
	return id
}

func (d *drawFunctions) ID(name string) (DrawFunctionID, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.byName[name]
	return id, ok
}

func (d *drawFunctions) Get(id DrawFunctionID) (DrawFunction, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if int(id) >= len(d.fns) {
		return nil, false
	}
	return d.fns[id], true
}
