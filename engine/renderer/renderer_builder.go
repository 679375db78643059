package renderer

// TextureCacheBuilderOption is a functional option applied to a texture cache during construction via NewTextureCache.
type TextureCacheBuilderOption func(*textureCache)

// WithRetainFrames sets how many frames a free texture is kept before it is released.
// Negative values are treated as 0, releasing free textures at the end of the first frame they go unused.
//
// Parameters:
//   - frames: the number of frames to keep an unused texture
//
// Returns:
//   - TextureCacheBuilderOption: a function that applies the retention option to a cache
func WithRetainFrames(frames int) TextureCacheBuilderOption {
	return func(c *textureCache) {
		c.retainFrames = max(frames, 0)
	}
}
