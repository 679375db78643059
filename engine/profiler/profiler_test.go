package profiler

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-prepass/common"
)

func TestFrameStats_Add(t *testing.T) {
	var s FrameStats
	s.Add(FrameStats{Views: 1, Opaque: 3, ConfigErrors: 1})
	s.Add(FrameStats{Views: 2, AlphaMask: 4, Drawn: 7})
	want := FrameStats{Views: 3, Opaque: 3, AlphaMask: 4, ConfigErrors: 1, Drawn: 7}
	if s != want {
		t.Errorf("Add() = %+v, want %+v", s, want)
	}
}

func TestProfiler_Tick(t *testing.T) {
	orig := common.Logger()
	t.Cleanup(func() { common.SetLogger(orig) })
	var buf bytes.Buffer
	common.SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))

	now := time.Unix(0, 0)
	p := NewProfiler(WithInterval(time.Second), WithClock(func() time.Time { return now }))

	now = now.Add(400 * time.Millisecond)
	if p.Tick(FrameStats{Opaque: 2}) {
		t.Fatal("Tick() logged before the interval elapsed")
	}
	if buf.Len() != 0 {
		t.Fatalf("unexpected log output %q", buf.String())
	}

	now = now.Add(600 * time.Millisecond)
	if !p.Tick(FrameStats{Opaque: 4, ConfigErrors: 1}) {
		t.Fatal("Tick() did not log after the interval elapsed")
	}
	out := buf.String()
	for _, want := range []string{"prepass profile", "fps=2", "opaque=3", "config_errors=1"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q does not contain %q", out, want)
		}
	}

	buf.Reset()
	now = now.Add(time.Second)
	p.Tick(FrameStats{})
	if !strings.Contains(buf.String(), "config_errors=0") {
		t.Errorf("totals were not reset after logging: %q", buf.String())
	}
}
