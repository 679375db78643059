package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer/shader"
)

const (
	validShader  shader.Handle = 1
	brokenShader shader.Handle = 2
)

type fakePipeline struct {
	label string
}

func (p *fakePipeline) Label() string { return p.label }

type fakeCompiler struct {
	calls atomic.Int32
	fail  error
}

func (f *fakeCompiler) CreateRenderPipeline(cfg *RenderPipelineConfig, vertex, fragment *shader.Variant) (resource.RenderPipeline, error) {
	f.calls.Add(1)
	if f.fail != nil {
		return nil, f.fail
	}
	if vertex == nil {
		return nil, errors.New("missing vertex variant")
	}
	if (cfg.Fragment == nil) != (fragment == nil) {
		return nil, errors.New("fragment variant mismatch")
	}
	return &fakePipeline{label: cfg.Label}, nil
}

func newTestRegistry() shader.Registry {
	r := shader.NewRegistry()
	r.Register(validShader, "valid", "@vertex fn main(@location(0) pos: vec3<f32>) -> @builtin(position) vec4<f32> { return vec4<f32>(pos.x, pos.y, pos.z, 1.0); }")
	r.Register(brokenShader, "broken", "@vertex fn main( -> {")
	return r
}

func TestCache_QueueAndProcess(t *testing.T) {
	c := NewCache(newTestRegistry(), WithShaderValidation(false))
	id := c.Queue(NewRenderPipelineConfig("a", WithVertex(validShader, "main", nil)))

	if got := c.State(id); got != StateQueued {
		t.Fatalf("State() = %v, want queued", got)
	}
	if _, err := c.RenderPipeline(id); !errors.Is(err, ErrPipelineNotReady) {
		t.Fatalf("RenderPipeline() before Process error = %v, want ErrPipelineNotReady", err)
	}

	compiler := &fakeCompiler{}
	ready, err := c.Process(context.Background(), compiler)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if ready != 1 {
		t.Errorf("Process() ready = %d, want 1", ready)
	}
	p, err := c.RenderPipeline(id)
	if err != nil || p.Label() != "a" {
		t.Fatalf("RenderPipeline() = %v, %v", p, err)
	}
	if c.Config(id).Label != "a" {
		t.Error("Config() does not return the queued config")
	}

	// A second Process has nothing to do.
	if ready, _ := c.Process(context.Background(), compiler); ready != 0 {
		t.Errorf("second Process() ready = %d, want 0", ready)
	}
	if compiler.calls.Load() != 1 {
		t.Errorf("compiler called %d times, want 1", compiler.calls.Load())
	}
}

func TestCache_FailedStates(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *RenderPipelineConfig
		compiler *fakeCompiler
	}{
		{
			name:     "unknown shader",
			cfg:      NewRenderPipelineConfig("unknown", WithVertex(shader.Handle(99), "main", nil)),
			compiler: &fakeCompiler{},
		},
		{
			name:     "invalid wgsl",
			cfg:      NewRenderPipelineConfig("broken", WithVertex(brokenShader, "main", nil)),
			compiler: &fakeCompiler{},
		},
		{
			name:     "backend rejects",
			cfg:      NewRenderPipelineConfig("rejected", WithVertex(validShader, "main", nil)),
			compiler: &fakeCompiler{fail: errors.New("device lost")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCache(newTestRegistry())
			id := c.Queue(tt.cfg)
			ready, err := c.Process(context.Background(), tt.compiler)
			if err != nil {
				t.Fatalf("Process() error = %v", err)
			}
			if ready != 0 {
				t.Errorf("Process() ready = %d, want 0", ready)
			}
			if got := c.State(id); got != StateFailed {
				t.Errorf("State() = %v, want failed", got)
			}
			if _, err := c.RenderPipeline(id); !errors.Is(err, ErrPipelineFailed) {
				t.Errorf("RenderPipeline() error = %v, want ErrPipelineFailed", err)
			}
		})
	}
}

func TestCache_UnknownID(t *testing.T) {
	c := NewCache(newTestRegistry())
	if c.State(ID(7)) != StateFailed {
		t.Error("unknown ID should report failed")
	}
	if c.Config(ID(7)) != nil {
		t.Error("unknown ID should have no config")
	}
	if _, err := c.RenderPipeline(ID(7)); !errors.Is(err, ErrPipelineFailed) {
		t.Errorf("RenderPipeline(unknown) error = %v", err)
	}
}

func TestCache_CancelledProcessKeepsQueue(t *testing.T) {
	c := NewCache(newTestRegistry(), WithShaderValidation(false))
	ids := []ID{
		c.Queue(NewRenderPipelineConfig("a", WithVertex(validShader, "main", nil))),
		c.Queue(NewRenderPipelineConfig("b", WithVertex(validShader, "main", nil))),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	compiler := &fakeCompiler{}
	if _, err := c.Process(ctx, compiler); !errors.Is(err, context.Canceled) {
		t.Fatalf("Process(cancelled) error = %v, want context.Canceled", err)
	}
	for _, id := range ids {
		if got := c.State(id); got != StateQueued {
			t.Errorf("State(%d) = %v, want queued", id, got)
		}
	}

	ready, err := c.Process(context.Background(), compiler)
	if err != nil || ready != 2 {
		t.Errorf("Process() = %d, %v, want 2, nil", ready, err)
	}
}

func TestCache_ConcurrentQueue(t *testing.T) {
	c := NewCache(newTestRegistry(), WithShaderValidation(false), WithCompileConcurrency(2))

	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Queue(NewRenderPipelineConfig("p", WithVertex(validShader, "main", nil)))
		}()
	}
	wg.Wait()

	if c.Len() != 32 {
		t.Fatalf("Len() = %d, want 32", c.Len())
	}
	ready, err := c.Process(context.Background(), &fakeCompiler{})
	if err != nil || ready != 32 {
		t.Errorf("Process() = %d, %v, want 32, nil", ready, err)
	}
}
