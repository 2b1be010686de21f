package testsupport

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"

	"storyboard/internal/resource"
)

// Red and Blue are the stock colors of synthetic scenes.
var (
	Red  = color.RGBA{R: 220, G: 20, B: 20, A: 255}
	Blue = color.RGBA{R: 20, G: 20, B: 220, A: 255}
)

// Scene is a run of identically colored frames.
type Scene struct {
	Frames int
	Color  color.RGBA
}

// SyntheticSource is a fake movie built from solid color scenes.
type SyntheticSource struct {
	Width  int
	Height int
	Scenes []Scene
	// SizeAt overrides the frame size from the given frame on (0 disables).
	SizeAt     int
	AltWidth   int
	AltHeight  int
	decodes    int
	decodeLock sync.Mutex
}

// FrameCount returns the number of frames across all scenes.
func (s *SyntheticSource) FrameCount() int {
	n := 0
	for _, sc := range s.Scenes {
		n += sc.Frames
	}
	return n
}

// Decodes returns how many frames were decoded so far.
func (s *SyntheticSource) Decodes() int {
	s.decodeLock.Lock()
	defer s.decodeLock.Unlock()
	return s.decodes
}

func (s *SyntheticSource) frame(n int) (image.Image, error) {
	s.decodeLock.Lock()
	s.decodes++
	s.decodeLock.Unlock()

	c, ok := s.colorAt(n)
	if !ok {
		return nil, errors.New("synthetic frame out of range")
	}
	w, h := s.Width, s.Height
	if s.SizeAt > 0 && n >= s.SizeAt {
		w, h = s.AltWidth, s.AltHeight
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
	}
	return img, nil
}

func (s *SyntheticSource) colorAt(n int) (color.RGBA, bool) {
	if n < 1 {
		return color.RGBA{}, false
	}
	for _, sc := range s.Scenes {
		if n <= sc.Frames {
			return sc.Color, true
		}
		n -= sc.Frames
	}
	return color.RGBA{}, false
}

// SyntheticDecoder serves SyntheticSources by path. It implements
// resource.Decoder.
type SyntheticDecoder struct {
	mu      sync.Mutex
	sources map[string]*SyntheticSource
}

// NewSyntheticDecoder returns an empty decoder.
func NewSyntheticDecoder() *SyntheticDecoder {
	return &SyntheticDecoder{sources: make(map[string]*SyntheticSource)}
}

// Add registers a source under path and returns it.
func (d *SyntheticDecoder) Add(path string, src *SyntheticSource) *SyntheticSource {
	d.mu.Lock()
	defer d.mu.Unlock()
	if src.Width == 0 {
		src.Width, src.Height = 16, 16
	}
	d.sources[path] = src
	return src
}

// TwoScenes registers a source of red frames followed by blue frames.
func (d *SyntheticDecoder) TwoScenes(path string, red, blue int) *SyntheticSource {
	return d.Add(path, &SyntheticSource{Scenes: []Scene{{Frames: red, Color: Red}, {Frames: blue, Color: Blue}}})
}

// Open implements resource.Decoder.
func (d *SyntheticDecoder) Open(_ context.Context, key resource.Key) (resource.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	src, ok := d.sources[key.Path]
	if !ok {
		return nil, errors.New("synthetic source not found: " + key.Path)
	}
	return syntheticHandle{src: src}, nil
}

type syntheticHandle struct {
	src *SyntheticSource
}

func (h syntheticHandle) FrameCount(context.Context) (int, error) { return h.src.FrameCount(), nil }

func (h syntheticHandle) Frame(_ context.Context, n int) (image.Image, error) { return h.src.frame(n) }

func (h syntheticHandle) Close() error { return nil }
