// Package still decodes frame sources that are plain image files: numbered
// image sequences, single images and animated GIFs.
package still

import (
	"errors"
	"fmt"
	"image"
	"image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	// ErrNotSequence reports a file name without a frame number.
	ErrNotSequence = errors.New("file name carries no frame number")
	// ErrFrameMissing reports a frame outside the source.
	ErrFrameMissing = errors.New("frame missing")
)

// DecodeFile decodes any registered image format.
func DecodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// Sequence is a run of numbered image files sharing a prefix and extension,
// for example shot_0001.png, shot_0002.png. Frames are numbered by position
// in the sorted run, starting at 1.
type Sequence struct {
	Files []string
}

// OpenSequence collects the sequence that path belongs to.
func OpenSequence(path string) (*Sequence, error) {
	dir := filepath.Dir(path)
	prefix, _, ext, ok := splitNumbered(filepath.Base(path))
	if !ok {
		return nil, fmt.Errorf("sequence %s: %w", path, ErrNotSequence)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("sequence %s: %w", path, err)
	}
	type numbered struct {
		n    int
		name string
	}
	var frames []numbered
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		p, digits, e, ok := splitNumbered(entry.Name())
		if !ok || p != prefix || !strings.EqualFold(e, ext) {
			continue
		}
		n, err := strconv.Atoi(digits)
		if err != nil {
			continue
		}
		frames = append(frames, numbered{n: n, name: entry.Name()})
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("sequence %s: %w", path, os.ErrNotExist)
	}
	sort.Slice(frames, func(i, j int) bool { return frames[i].n < frames[j].n })
	seq := &Sequence{Files: make([]string, len(frames))}
	for i, f := range frames {
		seq.Files[i] = filepath.Join(dir, f.name)
	}
	return seq, nil
}

// Len returns the number of frames.
func (s *Sequence) Len() int { return len(s.Files) }

// Frame decodes frame n (1-based).
func (s *Sequence) Frame(n int) (image.Image, error) {
	if n < 1 || n > len(s.Files) {
		return nil, fmt.Errorf("sequence frame %d of %d: %w", n, len(s.Files), ErrFrameMissing)
	}
	return DecodeFile(s.Files[n-1])
}

// splitNumbered splits "shot_0012.png" into "shot_", "0012" and ".png".
func splitNumbered(name string) (prefix, digits, ext string, ok bool) {
	ext = filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	end := len(stem)
	start := end
	for start > 0 && unicode.IsDigit(rune(stem[start-1])) {
		start--
	}
	if start == end {
		return "", "", "", false
	}
	return stem[:start], stem[start:end], ext, true
}

// Animation holds the fully composed frames of an animated GIF.
type Animation struct {
	Frames []*image.RGBA
}

// OpenAnimation decodes every frame of a GIF, composing each frame over its
// predecessor according to the frame disposal.
func OpenAnimation(path string) (*Animation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	g, err := gif.DecodeAll(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if len(g.Image) == 0 {
		return nil, fmt.Errorf("decode %s: %w", path, ErrFrameMissing)
	}
	bounds := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if bounds.Empty() {
		bounds = g.Image[0].Bounds()
	}
	canvas := image.NewRGBA(bounds)
	anim := &Animation{Frames: make([]*image.RGBA, 0, len(g.Image))}
	for i, frame := range g.Image {
		var restore *image.RGBA
		disposal := byte(gif.DisposalNone)
		if i < len(g.Disposal) {
			disposal = g.Disposal[i]
		}
		if disposal == gif.DisposalPrevious {
			restore = cloneRGBA(canvas)
		}
		draw.Draw(canvas, frame.Bounds(), frame, frame.Bounds().Min, draw.Over)
		anim.Frames = append(anim.Frames, cloneRGBA(canvas))
		switch disposal {
		case gif.DisposalBackground:
			draw.Draw(canvas, frame.Bounds(), image.Transparent, image.Point{}, draw.Src)
		case gif.DisposalPrevious:
			canvas = restore
		}
	}
	return anim, nil
}

// Len returns the number of frames.
func (a *Animation) Len() int { return len(a.Frames) }

// Frame returns frame n (1-based).
func (a *Animation) Frame(n int) (image.Image, error) {
	if n < 1 || n > len(a.Frames) {
		return nil, fmt.Errorf("animation frame %d of %d: %w", n, len(a.Frames), ErrFrameMissing)
	}
	return a.Frames[n-1], nil
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	copy(dst.Pix, src.Pix)
	return dst
}
