package profiler

import (
	"runtime"
	"time"

	"github.com/Carmen-Shannon/oxy-prepass/common"
)

// FrameStats counts what one prepass frame did. Stats of several frames are summed with Add.
type FrameStats struct {
	// Views is the number of views that ran the prepass.
	Views int
	// Opaque and AlphaMask are the number of items queued per phase.
	Opaque    int
	AlphaMask int
	// Unresolved counts drawables skipped because their mesh or material is still loading.
	Unresolved int
	// BlendSkipped counts alpha-blended drawables, which never take part in the prepass.
	BlendSkipped int
	// ConfigErrors counts drawables skipped because no pipeline could be specialized.
	ConfigErrors int
	// Drawn counts items whose draw commands were issued.
	Drawn int
	// Skipped counts queued items not drawn, mostly pipelines still compiling.
	Skipped int
	// PipelinesCompiled counts pipelines that became ready.
	PipelinesCompiled int
	// TexturesCreated counts attachment textures allocated rather than reused.
	TexturesCreated int
}

// Add accumulates o into s.
//
// Parameters:
//   - o: the stats to add
func (s *FrameStats) Add(o FrameStats) {
	s.Views += o.Views
	s.Opaque += o.Opaque
	s.AlphaMask += o.AlphaMask
	s.Unresolved += o.Unresolved
	s.BlendSkipped += o.BlendSkipped
	s.ConfigErrors += o.ConfigErrors
	s.Drawn += o.Drawn
	s.Skipped += o.Skipped
	s.PipelinesCompiled += o.PipelinesCompiled
	s.TexturesCreated += o.TexturesCreated
}

// Profiler tracks frame rate, prepass statistics and memory use.
// Outputs stats to the logger at a configurable interval.
type Profiler struct {
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	totals         FrameStats
	now            func() time.Time
}

// NewProfiler creates a new Profiler.
// Update interval defaults to 1 second.
//
// Parameters:
//   - options: functional options to configure the profiler
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		updateInterval: time.Second,
		now:            time.Now,
	}
	for _, option := range options {
		option(p)
	}
	p.lastTime = p.now()
	return p
}

// Tick should be called once per frame with that frame's stats.
// Logs performance statistics at Info when the update interval has elapsed: frame rate, the
// per-frame average of the queue counters, interval totals of failures and allocations, heap
// usage, allocation rate and GC pauses.
//
// Parameters:
//   - stats: the stats of the frame that just finished
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick(stats FrameStats) bool {
	p.frameCount++
	p.totals.Add(stats)
	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)

	if elapsed < p.updateInterval {
		return false
	}

	seconds := max(elapsed.Seconds(), 1e-9)
	fps := float64(p.frameCount) / seconds
	perFrame := func(n int) float64 { return float64(n) / float64(p.frameCount) }

	runtime.ReadMemStats(&p.memStats)
	allocMB := float64(p.memStats.Alloc) / 1024 / 1024
	sysMB := float64(p.memStats.Sys) / 1024 / 1024
	allocRateMB := float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / seconds

	// PauseNs is a circular buffer of the last 256 GC pauses.
	gcCount := p.memStats.NumGC
	var lastPauseUs, maxPauseUs uint64
	if gcCount > 0 {
		lastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000
		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			maxPauseUs = max(maxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}

	common.Logger().Info("prepass profile",
		"fps", fps,
		"views", perFrame(p.totals.Views),
		"opaque", perFrame(p.totals.Opaque),
		"alpha_mask", perFrame(p.totals.AlphaMask),
		"drawn", perFrame(p.totals.Drawn),
		"skipped", p.totals.Skipped,
		"unresolved", p.totals.Unresolved,
		"blend_skipped", p.totals.BlendSkipped,
		"config_errors", p.totals.ConfigErrors,
		"pipelines_compiled", p.totals.PipelinesCompiled,
		"textures_created", p.totals.TexturesCreated,
		"heap_mb", allocMB,
		"alloc_rate_mb", allocRateMB,
		"gc", gcCount,
		"gc_last_us", lastPauseUs,
		"gc_max_us", maxPauseUs,
		"sys_mb", sysMB,
	)

	p.frameCount = 0
	p.totals = FrameStats{}
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}
