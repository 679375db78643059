package pipeline

// CacheBuilderOption is a functional option used to configure a Cache during construction.
type CacheBuilderOption func(*cache)

// WithCompileConcurrency sets how many pipelines a single Process call compiles at once.
// Values below 1 are treated as 1.
//
// Parameters:
//   - n: the maximum number of concurrent compilations
//
// Returns:
//   - CacheBuilderOption: a function that sets the compile concurrency
func WithCompileConcurrency(n int) CacheBuilderOption {
	return func(c *cache) {
		c.concurrency = max(n, 1)
	}
}

// WithShaderValidation toggles naga validation of shader variants before compilation.
// Enabled by default.
//
// Parameters:
//   - enabled: whether variants are validated
//
// Returns:
//   - CacheBuilderOption: a function that sets shader validation
func WithShaderValidation(enabled bool) CacheBuilderOption {
	return func(c *cache) {
		c.validate = enabled
	}
}
