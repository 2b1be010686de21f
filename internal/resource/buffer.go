package resource

import (
	"image"
	"sync"

	"golang.org/x/image/draw"
)

// BytesPerPixel of every cached buffer (RGBA).
const BytesPerPixel = 4

// PixelBuffer is a decoded frame in 8-bit RGBA.
type PixelBuffer struct {
	Width  int
	Height int
	BPP    int
	Pix    []byte

	// pooled marks buffers handed out by FetchNoStore that Release may recycle.
	pooled bool
}

// NewPixelBuffer allocates a zeroed buffer.
func NewPixelBuffer(width, height int) *PixelBuffer {
	return &PixelBuffer{
		Width:  width,
		Height: height,
		BPP:    BytesPerPixel,
		Pix:    make([]byte, width*height*BytesPerPixel),
	}
}

// Image views the buffer as an *image.RGBA without copying.
func (b *PixelBuffer) Image() *image.RGBA {
	return &image.RGBA{
		Pix:    b.Pix,
		Stride: b.Width * b.BPP,
		Rect:   image.Rect(0, 0, b.Width, b.Height),
	}
}

// Size returns the number of pixel bytes.
func (b *PixelBuffer) Size() int {
	if b == nil {
		return 0
	}
	return len(b.Pix)
}

// SameSize reports whether two buffers have identical dimensions.
func (b *PixelBuffer) SameSize(other *PixelBuffer) bool {
	return b != nil && other != nil && b.Width == other.Width && b.Height == other.Height
}

// Clone returns a copy that owns its own pixels.
func (b *PixelBuffer) Clone() *PixelBuffer {
	if b == nil {
		return nil
	}
	cp := &PixelBuffer{Width: b.Width, Height: b.Height, BPP: b.BPP, Pix: make([]byte, len(b.Pix))}
	copy(cp.Pix, b.Pix)
	return cp
}

// bufferPool recycles the pixel slices of released no-store buffers. Slices
// are bucketed by length so a working-size change never hands out a short
// buffer.
type bufferPool struct {
	mu    sync.Mutex
	pools map[int]*sync.Pool
}

func newBufferPool() *bufferPool {
	return &bufferPool{pools: make(map[int]*sync.Pool)}
}

func (p *bufferPool) get(width, height int) *PixelBuffer {
	size := width * height * BytesPerPixel
	pool := p.pool(size)
	if pix, ok := pool.Get().(*[]byte); ok && len(*pix) == size {
		return &PixelBuffer{Width: width, Height: height, BPP: BytesPerPixel, Pix: *pix, pooled: true}
	}
	buf := NewPixelBuffer(width, height)
	buf.pooled = true
	return buf
}

func (p *bufferPool) put(buf *PixelBuffer) {
	if buf == nil || !buf.pooled || len(buf.Pix) == 0 {
		return
	}
	pix := buf.Pix
	buf.Pix = nil
	buf.pooled = false
	p.pool(len(pix)).Put(&pix)
}

func (p *bufferPool) pool(size int) *sync.Pool {
	p.mu.Lock()
	defer p.mu.Unlock()
	pool, ok := p.pools[size]
	if !ok {
		pool = &sync.Pool{}
		p.pools[size] = pool
	}
	return pool
}

// normalizeInto converts src to RGBA at dst's size, scaling bilinearly when
// the dimensions differ.
func normalizeInto(dst *PixelBuffer, src image.Image) {
	out := dst.Image()
	sb := src.Bounds()
	if sb.Dx() == dst.Width && sb.Dy() == dst.Height {
		draw.Draw(out, out.Bounds(), src, sb.Min, draw.Src)
		return
	}
	draw.BiLinear.Scale(out, out.Bounds(), src, sb, draw.Src, nil)
}

// targetSize returns the working size for a source, falling back to the
// source's own dimensions when no working size is configured.
func targetSize(src image.Image, width, height int) (int, int) {
	if width > 0 && height > 0 {
		return width, height
	}
	b := src.Bounds()
	return b.Dx(), b.Dy()
}
