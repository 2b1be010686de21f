package resource

import (
	"context"
	"fmt"
	"sync"
)

type frameKey struct {
	id    ID
	frame int
}

// CacheStats summarizes cache occupancy.
type CacheStats struct {
	Entries   int
	Bytes     int64
	Hits      uint64
	Misses    uint64
	Resources int
}

// Cache maps (resource, frame) to decoded thumbnails at the working size.
type Cache struct {
	reg    *Registry
	width  int
	height int
	pool   *bufferPool

	mu      sync.Mutex
	entries map[frameKey]*PixelBuffer
	bytes   int64
	hits    uint64
	misses  uint64
}

// NewCache creates a cache over reg. A zero width or height keeps each
// source's native size.
func NewCache(reg *Registry, width, height int) *Cache {
	return &Cache{
		reg:     reg,
		width:   width,
		height:  height,
		pool:    newBufferPool(),
		entries: make(map[frameKey]*PixelBuffer),
	}
}

// Registry returns the registry the cache decodes through.
func (c *Cache) Registry() *Registry { return c.reg }

// WorkingSize returns the configured thumbnail size.
func (c *Cache) WorkingSize() (int, int) { return c.width, c.height }

// Fetch returns the thumbnail for (id, frame), decoding and storing it on a
// miss. The returned buffer is owned by the cache and must not be modified.
func (c *Cache) Fetch(ctx context.Context, id ID, frame int) (*PixelBuffer, error) {
	k := frameKey{id, frame}
	c.mu.Lock()
	if buf, ok := c.entries[k]; ok {
		c.hits++
		c.mu.Unlock()
		return buf, nil
	}
	c.misses++
	c.mu.Unlock()

	img, err := c.reg.Frame(ctx, id, frame)
	if err != nil {
		return nil, err
	}
	w, h := targetSize(img, c.width, c.height)
	buf := NewPixelBuffer(w, h)
	normalizeInto(buf, img)

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[k]; ok {
		return existing, nil
	}
	c.entries[k] = buf
	c.bytes += int64(buf.Size())
	return buf, nil
}

// FetchNoStore returns the thumbnail for (id, frame) without adding it to the
// cache. fresh is true when the buffer was decoded for this call; the caller
// must hand fresh buffers back through Add or Release. A stored entry is
// returned as is with fresh false.
func (c *Cache) FetchNoStore(ctx context.Context, id ID, frame int) (buf *PixelBuffer, fresh bool, err error) {
	k := frameKey{id, frame}
	c.mu.Lock()
	if stored, ok := c.entries[k]; ok {
		c.hits++
		c.mu.Unlock()
		return stored, false, nil
	}
	c.misses++
	c.mu.Unlock()

	img, err := c.reg.Frame(ctx, id, frame)
	if err != nil {
		return nil, false, err
	}
	w, h := targetSize(img, c.width, c.height)
	buf = c.pool.get(w, h)
	normalizeInto(buf, img)
	return buf, true, nil
}

// Add stores a buffer obtained from FetchNoStore. The cache takes ownership;
// an entry already present for the key wins and buf is released.
func (c *Cache) Add(id ID, frame int, buf *PixelBuffer) error {
	if buf == nil {
		return fmt.Errorf("add frame %d of resource %d: nil buffer", frame, id)
	}
	if _, ok := c.reg.Resource(id); !ok {
		c.Release(buf)
		return fmt.Errorf("add frame %d of resource %d: %w", frame, id, ErrUnknownResource)
	}
	k := frameKey{id, frame}
	c.mu.Lock()
	if _, ok := c.entries[k]; ok {
		c.mu.Unlock()
		c.Release(buf)
		return nil
	}
	// Stored buffers never return to the pool.
	buf.pooled = false
	c.entries[k] = buf
	c.bytes += int64(buf.Size())
	c.mu.Unlock()
	return nil
}

// Release returns a no-store buffer to the pool. Buffers owned by the cache
// are left untouched.
func (c *Cache) Release(buf *PixelBuffer) {
	c.pool.put(buf)
}

// Contains reports whether (id, frame) is cached.
func (c *Cache) Contains(id ID, frame int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[frameKey{id, frame}]
	return ok
}

// Invalidate drops every cached frame of id but keeps the resource registered.
func (c *Cache) Invalidate(id ID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	dropped := 0
	for k, buf := range c.entries {
		if k.id == id {
			c.bytes -= int64(buf.Size())
			delete(c.entries, k)
			dropped++
		}
	}
	return dropped
}

// CloseResource drops every cached frame of id and closes its decoder handle.
func (c *Cache) CloseResource(id ID) error {
	c.Invalidate(id)
	return c.reg.Close(id)
}

// Clear drops every cached frame and closes every resource.
func (c *Cache) Clear() error {
	c.mu.Lock()
	c.entries = make(map[frameKey]*PixelBuffer)
	c.bytes = 0
	c.mu.Unlock()
	return c.reg.CloseAll()
}

// Stats reports current occupancy and hit counters.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{
		Entries:   len(c.entries),
		Bytes:     c.bytes,
		Hits:      c.hits,
		Misses:    c.misses,
		Resources: len(c.reg.Resources()),
	}
}
