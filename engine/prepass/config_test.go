package prepass

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer/renderertest"
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer/shader"
)

func TestParseConfig(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
		check   func(t *testing.T, p *prepass)
	}{
		{
			name: "empty keeps defaults",
			yaml: "",
			check: func(t *testing.T, p *prepass) {
				if p.compileConcurrency != 4 || p.retainFrames != 3 || !p.validateShaders || p.asyncCompile || p.profiler != nil {
					t.Errorf("defaults changed: %+v", p)
				}
			},
		},
		{
			name: "every field",
			yaml: `
queue_workers: 3
compile_concurrency: 2
retain_frames: 0
shader_validation: false
async_compile: true
profiling: true
profile_interval: 250ms
`,
			check: func(t *testing.T, p *prepass) {
				if p.queueWorkers != 3 || p.compileConcurrency != 2 || p.retainFrames != 0 {
					t.Errorf("workers/concurrency/retain = %d/%d/%d, want 3/2/0", p.queueWorkers, p.compileConcurrency, p.retainFrames)
				}
				if p.validateShaders || !p.asyncCompile {
					t.Errorf("validate = %v, async = %v, want false, true", p.validateShaders, p.asyncCompile)
				}
				if p.profiler == nil || p.profileInterval != 250*time.Millisecond {
					t.Errorf("profiling interval = %v, want 250ms with a profiler", p.profileInterval)
				}
			},
		},
		{name: "unknown field", yaml: "queue_worker: 3\n", wantErr: true},
		{name: "bad duration", yaml: "profile_interval: soon\n", wantErr: true},
		{name: "wrong type", yaml: "queue_workers: many\n", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseConfig([]byte(tt.yaml))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			p, err := NewPrepass(renderertest.NewDevice(), shader.NewRegistry(), cfg.Options()...)
			if err != nil {
				t.Fatalf("NewPrepass() error = %v", err)
			}
			defer p.Close()
			tt.check(t, p.(*prepass))
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prepass.yaml")
	if err := os.WriteFile(path, []byte("compile_concurrency: 6\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.CompileConcurrency != 6 || len(cfg.Options()) != 1 {
		t.Errorf("config = %+v, want only compile_concurrency set", cfg)
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadConfig() of a missing file succeeded")
	}
}
