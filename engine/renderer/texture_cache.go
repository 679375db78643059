package renderer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-prepass/common"
	"github.com/Carmen-Shannon/oxy-prepass/engine/renderer/resource"
)

// ErrTextureCreate is returned when the device fails to create a texture or its view.
var ErrTextureCreate = errors.New("renderer: failed to create texture")

// CachedTexture is a texture handed out by a TextureCache together with its default view.
type CachedTexture struct {
	Texture resource.Texture
	View    resource.TextureView
}

type textureCacheEntry struct {
	texture      CachedTexture
	taken        bool
	framesUnused int
}

// textureCache is the implementation of the TextureCache interface.
type textureCache struct {
	mu           sync.Mutex
	entries      map[TextureDescriptor][]*textureCacheEntry
	retainFrames int
	created      int
}

// TextureCache recycles frame attachments. Within a frame every Get returns a distinct texture;
// across frames a texture with an equal descriptor is reused instead of allocating a new one.
// It is safe for concurrent use.
type TextureCache interface {
	// Get returns a texture matching desc that has not been handed out this frame, creating
	// one when none is free.
	//
	// Parameters:
	//   - device: the device new textures are created on
	//   - desc: the texture descriptor
	//
	// Returns:
	//   - CachedTexture: the texture and its default view
	//   - error: ErrTextureCreate wrapping the device error
	Get(device Device, desc TextureDescriptor) (CachedTexture, error)

	// Update ends the frame: every texture becomes free again and textures unused for more
	// than the retention window are released.
	Update()

	// Len returns the number of textures currently held by the cache.
	//
	// Returns:
	//   - int: the number of cached textures
	Len() int

	// Created returns the number of textures the cache has ever created.
	//
	// Returns:
	//   - int: the number of textures created
	Created() int
}

var _ TextureCache = &textureCache{}

// NewTextureCache creates an empty texture cache. Free textures are kept for 3 frames by default.
//
// Parameters:
//   - opts: a variadic list of TextureCacheBuilderOption functions to configure the cache
//
// Returns:
//   - TextureCache: the new cache
func NewTextureCache(opts ...TextureCacheBuilderOption) TextureCache {
	c := &textureCache{
		entries:      make(map[TextureDescriptor][]*textureCacheEntry),
		retainFrames: 3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *textureCache) Get(device Device, desc TextureDescriptor) (CachedTexture, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range c.entries[desc] {
		if !e.taken {
			e.taken = true
			e.framesUnused = 0
			return e.texture, nil
		}
	}

	tex, err := device.CreateTexture(&desc)
	if err != nil {
		return CachedTexture{}, fmt.Errorf("%w %q: %w", ErrTextureCreate, desc.Label, err)
	}
	view, err := tex.CreateView()
	if err != nil {
		tex.Release()
		return CachedTexture{}, fmt.Errorf("%w %q: %w", ErrTextureCreate, desc.Label, err)
	}
	cached := CachedTexture{Texture: tex, View: view}
	c.entries[desc] = append(c.entries[desc], &textureCacheEntry{texture: cached, taken: true})
	c.created++
	common.Logger().Debug("texture created", "label", desc.Label,
		"width", desc.Size.Width, "height", desc.Size.Height, "samples", desc.SampleCount)
	return cached, nil
}

func (c *textureCache) Update() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for desc, entries := range c.entries {
		kept := entries[:0]
		for _, e := range entries {
			if e.taken {
				e.taken = false
				e.framesUnused = 0
				kept = append(kept, e)
				continue
			}
			e.framesUnused++
			if e.framesUnused > c.retainFrames {
				e.texture.View.Release()
				e.texture.Texture.Release()
				common.Logger().Debug("texture released", "label", desc.Label)
				continue
			}
			kept = append(kept, e)
		}
		if len(kept) == 0 {
			delete(c.entries, desc)
			continue
		}
		c.entries[desc] = kept
	}
}

func (c *textureCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, entries := range c.entries {
		n += len(entries)
	}
	return n
}

func (c *textureCache) Created() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.created
}
