package engine

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-prepass/engine/camera"
	"github.com/Carmen-Shannon/oxy-prepass/engine/prepass"
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer"
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer/renderertest"
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-prepass/engine/scene"
)

// fakeTarget records frame boundaries and the views each frame opened.
type fakeTarget struct {
	mu       sync.Mutex
	begun    int
	ended    int
	views    []scene.Entity
	beginErr error
}

func (f *fakeTarget) BeginFrame() (prepass.Passes, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	f.begun++
	return f, nil
}

func (f *fakeTarget) EndFrame() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ended++
	return nil
}

func (f *fakeTarget) Begin(view *prepass.View) (renderer.TrackedRenderPass, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.views = append(f.views, view.Entity)
	return renderer.NewTrackedRenderPass(&renderertest.Pass{}), nil
}

func (f *fakeTarget) End(*prepass.View) error {
	return nil
}

func newTestPrepass(t *testing.T) prepass.Prepass {
	t.Helper()
	return newTestPrepassOn(t, renderertest.NewDevice())
}

func newTestPrepassOn(t *testing.T, device *renderertest.Device) prepass.Prepass {
	t.Helper()
	p, err := prepass.NewPrepass(device, shader.NewRegistry(),
		prepass.WithQueueWorkers(1), prepass.WithShaderValidation(false))
	if err != nil {
		t.Fatalf("NewPrepass() error = %v", err)
	}
	t.Cleanup(p.Close)
	return p
}

func sceneWithCamera(name string) (scene.Scene, scene.Entity) {
	s := scene.NewScene(name)
	e := s.AddCamera(camera.NewCamera(
		camera.WithPhysicalTargetSize(64, 64),
		camera.WithMSAA(renderer.MSAAOff),
		camera.WithPrepass(camera.PrepassSettings{OutputDepth: true}),
	))
	return s, e
}

func TestNewEngine_PanicsWithoutPrepass(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("NewEngine(nil) did not panic")
		}
	}()
	NewEngine(nil)
}

func TestEngine_Scenes(t *testing.T) {
	a, _ := sceneWithCamera("a")
	b, _ := sceneWithCamera("b")
	e := NewEngine(newTestPrepass(t), WithScene(1, a))
	e.AddScene(0, b)

	if e.Scene(1) != a || e.Scene(0) != b || e.Scene(2) != nil {
		t.Error("Scene() did not return the registered scenes")
	}
	scenes := e.Scenes()
	delete(scenes, 0)
	if e.Scene(0) == nil {
		t.Error("Scenes() returned the engine's own map")
	}
	e.RemoveScene(0)
	if len(e.Scenes()) != 1 {
		t.Errorf("len(Scenes()) = %d after RemoveScene, want 1", len(e.Scenes()))
	}
}

func TestEngine_RenderFrameOrdersScenes(t *testing.T) {
	back, backCam := sceneWithCamera("back")
	front, frontCam := sceneWithCamera("front")
	hidden, _ := sceneWithCamera("hidden")
	hidden.SetActive(false)
	target := &fakeTarget{}
	e := NewEngine(newTestPrepass(t),
		WithFrameTarget(target),
		WithScene(10, front),
		WithScene(-1, back),
		WithScene(5, hidden),
	)

	results, err := e.RenderFrame(context.Background())
	if err != nil {
		t.Fatalf("RenderFrame() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results[0].Views[0].Entity != backCam || results[1].Views[0].Entity != frontCam {
		t.Error("scenes not rendered in ascending z-index order")
	}
	if target.begun != 1 || target.ended != 1 {
		t.Errorf("frames begun %d and ended %d, want one each", target.begun, target.ended)
	}
	if !slices.Equal(target.views, []scene.Entity{backCam, frontCam}) {
		t.Errorf("passes opened for %v, want [%d %d]", target.views, backCam, frontCam)
	}
}

func TestEngine_RenderFrameScenesShareFrame(t *testing.T) {
	sceneOn := func(name string, target camera.RenderTarget, x float32) scene.Scene {
		s := scene.NewScene(name)
		s.AddCamera(camera.NewCamera(
			camera.WithRenderTarget(target),
			camera.WithPhysicalTargetSize(64, 64),
			camera.WithMSAA(renderer.MSAAOff),
			camera.WithPrepass(camera.PrepassSettings{OutputDepth: true}),
			camera.WithPosition(x, 0, 5),
		))
		return s
	}
	device := renderertest.NewDevice()
	p := newTestPrepassOn(t, device)
	e := NewEngine(p,
		WithFrameTarget(&fakeTarget{}),
		WithScene(0, sceneOn("a", camera.ImageTarget(1), 1)),
		WithScene(1, sceneOn("b", camera.ImageTarget(2), 2)),
		WithScene(2, sceneOn("c", camera.ImageTarget(1), 3)),
	)

	results, err := e.RenderFrame(context.Background())
	if err != nil {
		t.Fatalf("RenderFrame() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}
	va, vb, vc := results[0].Views[0], results[1].Views[0], results[2].Views[0]

	if va.DepthAttachment() == vb.DepthAttachment() {
		t.Error("scenes on distinct render targets share a depth attachment")
	}
	if va.DepthAttachment() != vc.DepthAttachment() {
		t.Error("scenes on the same render target got distinct depth attachments in one frame")
	}
	for _, tex := range device.Textures() {
		if tex.Released() {
			t.Errorf("texture %q released during the frame", tex.Desc.Label)
		}
	}

	offsets := []uint32{va.UniformOffset, vb.UniformOffset, vc.UniformOffset}
	if !slices.Equal(offsets, []uint32{0, 256, 512}) {
		t.Fatalf("uniform offsets = %v, want [0 256 512]", offsets)
	}
	group := p.ViewBindGroup().(*renderertest.BindGroup)
	data := group.Desc.Entries[0].Buffer.Buffer.(*renderertest.Buffer).Data()
	for i, off := range offsets {
		if x := math.Float32frombits(binary.LittleEndian.Uint32(data[off+192:])); x != float32(i+1) {
			t.Errorf("scene %d camera x in its uniform slot = %v, want %d", i, x, i+1)
		}
	}

	results, err = e.RenderFrame(context.Background())
	if err != nil {
		t.Fatalf("second RenderFrame() error = %v", err)
	}
	if n := len(device.Textures()); n != 2 {
		t.Errorf("%d textures created over two frames, want 2", n)
	}
	if results[0].Views[0].UniformOffset != 0 {
		t.Errorf("second frame started at offset %d, want 0", results[0].Views[0].UniformOffset)
	}
}

func TestEngine_RenderFrameWithoutTarget(t *testing.T) {
	s, _ := sceneWithCamera("s")
	e := NewEngine(newTestPrepass(t), WithScene(0, s))

	results, err := e.RenderFrame(context.Background())
	if err != nil || results != nil {
		t.Errorf("RenderFrame() = %v, %v, want nothing rendered", results, err)
	}
}

func TestEngine_RenderFrameBeginError(t *testing.T) {
	s, _ := sceneWithCamera("s")
	injected := errors.New("surface lost")
	e := NewEngine(newTestPrepass(t), WithScene(0, s), WithFrameTarget(&fakeTarget{beginErr: injected}))

	if _, err := e.RenderFrame(context.Background()); !errors.Is(err, injected) {
		t.Errorf("RenderFrame() error = %v, want %v", err, injected)
	}
}

func TestEngine_RunUntilQuit(t *testing.T) {
	s, _ := sceneWithCamera("s")
	target := &fakeTarget{}
	e := NewEngine(newTestPrepass(t), WithScene(0, s), WithFrameTarget(target), WithProfiling(true, time.Hour))

	frames := 0
	e.SetFrameCallback(func(dt float32, results []*prepass.FrameResult) {
		frames++
		if len(results) != 1 {
			t.Errorf("frame %d rendered %d scenes, want 1", frames, len(results))
		}
		if frames == 3 {
			e.Quit()
		}
	})

	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if frames != 3 || target.ended != 3 {
		t.Errorf("frames = %d, ended = %d, want 3", frames, target.ended)
	}
	e.Quit()
}

func TestEngine_RunStopsOnContext(t *testing.T) {
	e := NewEngine(newTestPrepass(t), WithRenderFrameLimit(1000))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := e.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestEngine_RunRecoversPanics(t *testing.T) {
	s, _ := sceneWithCamera("s")
	e := NewEngine(newTestPrepass(t), WithScene(0, s), WithFrameTarget(&fakeTarget{}))
	e.SetFrameCallback(func(float32, []*prepass.FrameResult) {
		panic("boom")
	})

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil after a recovered panic", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not stop after a panic")
	}
}
