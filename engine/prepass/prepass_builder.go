package prepass

import "time"

// PrepassBuilderOption is a functional option for configuring a Prepass.
// Use the With* functions to create options that are applied directly to the prepass instance.
type PrepassBuilderOption func(*prepass)

// WithQueueWorkers sets how many views are queued in parallel.
// Values below 1 are treated as 1.
//
// Parameters:
//   - n: the number of queue workers
//
// Returns:
//   - PrepassBuilderOption: option function to apply
func WithQueueWorkers(n int) PrepassBuilderOption {
	return func(p *prepass) {
		p.queueWorkers = max(n, 1)
	}
}

// WithCompileConcurrency sets how many pipelines compile at once.
//
// Parameters:
//   - n: the maximum number of concurrent compilations
//
// Returns:
//   - PrepassBuilderOption: option function to apply
func WithCompileConcurrency(n int) PrepassBuilderOption {
	return func(p *prepass) {
		p.compileConcurrency = max(n, 1)
	}
}

// WithRetainFrames sets how many frames an unused attachment stays in the texture cache.
//
// Parameters:
//   - frames: the retention window in frames
//
// Returns:
//   - PrepassBuilderOption: option function to apply
func WithRetainFrames(frames int) PrepassBuilderOption {
	return func(p *prepass) {
		p.retainFrames = frames
	}
}

// WithShaderValidation toggles validation of every shader variant before its pipeline is created.
//
// Parameters:
//   - enabled: whether variants are validated
//
// Returns:
//   - PrepassBuilderOption: option function to apply
func WithShaderValidation(enabled bool) PrepassBuilderOption {
	return func(p *prepass) {
		p.validateShaders = enabled
	}
}

// WithProfiling enables periodic frame statistics in the log.
//
// Parameters:
//   - enabled: if true, RunFrame feeds a profiler
//   - interval: how often statistics are logged; values <= 0 mean every second
//
// Returns:
//   - PrepassBuilderOption: option function to apply
func WithProfiling(enabled bool, interval time.Duration) PrepassBuilderOption {
	return func(p *prepass) {
		p.profilingEnabled = enabled
		if interval > 0 {
			p.profileInterval = interval
		}
	}
}

// WithAsyncCompile compiles pipelines in the background instead of inside RunFrame. Items whose
// pipeline is still compiling are skipped until a later frame.
//
// Parameters:
//   - enabled: whether compilation runs in the background
//
// Returns:
//   - PrepassBuilderOption: option function to apply
func WithAsyncCompile(enabled bool) PrepassBuilderOption {
	return func(p *prepass) {
		p.asyncCompile = enabled
	}
}
