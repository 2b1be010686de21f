package session

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"

	"storyboard/internal/resource"
	"storyboard/internal/timeline"
)

// maxSectionDepth bounds section-in-section resolution; deeper chains are
// treated as a reference loop.
const maxSectionDepth = 16

type depthKey struct{}

// sectionSource lets section clips act as frame sources. A section frame is
// the frame of whichever clip covers that output position; nothing is
// composited.
type sectionSource struct {
	s *Session
}

func (src sectionSource) SectionFrameCount(name string) (int, error) {
	sec, ok := src.s.board.SectionByName(name)
	if !ok {
		return 0, fmt.Errorf("section %q: %w", name, timeline.ErrSectionNotFound)
	}
	return src.s.board.CountTotalFrames(sec.ID)
}

func (src sectionSource) SectionFrame(ctx context.Context, name string, frame int) (image.Image, error) {
	depth, _ := ctx.Value(depthKey{}).(int)
	if depth >= maxSectionDepth {
		return nil, fmt.Errorf("section %q nests deeper than %d levels: %w", name, maxSectionDepth, resource.ErrDecodeFailed)
	}
	ctx = context.WithValue(ctx, depthKey{}, depth+1)

	board := src.s.board
	sec, ok := board.SectionByName(name)
	if !ok {
		return nil, fmt.Errorf("section %q: %w", name, timeline.ErrSectionNotFound)
	}
	clip, offset, ok := clipAt(sec, frame)
	if !ok {
		return nil, fmt.Errorf("section %q frame %d: %w", name, frame, resource.ErrFrameOutOfRange)
	}
	switch clip.Kind {
	case timeline.KindColor:
		return solid(board, clip.Color), nil
	case timeline.KindSilence, timeline.KindComment:
		return solid(board, color.RGBA{A: 255}), nil
	}
	key, err := resource.ClipKey(clip)
	if err != nil {
		return nil, err
	}
	id, err := src.s.registry.GetOrCreate(ctx, key)
	if err != nil {
		return nil, err
	}
	return src.s.registry.Frame(ctx, id, SourceFrame(clip, offset))
}

// clipAt finds the clip covering the 1-based output frame and the 0-based
// offset of that frame within the clip.
func clipAt(sec *timeline.Section, frame int) (*timeline.Clip, int, bool) {
	if frame < 1 {
		return nil, 0, false
	}
	start := 1
	for _, clip := range sec.Clips {
		n := clip.TotalFrames()
		if frame < start+n {
			return clip, frame - start, true
		}
		start += n
	}
	return nil, 0, false
}

// SourceFrame maps the 0-based output offset within a clip to the source
// frame it shows, following direction, step density, loops and ping-pong.
func SourceFrame(clip *timeline.Clip, offset int) int {
	span := clip.FrameSpan()
	step := clip.StepDensity
	if step <= 0 {
		step = 1
	}
	pos := int(math.Floor(float64(offset) * step))
	if clip.PlayMode == timeline.PlayPingPong && span > 1 {
		period := 2 * (span - 1)
		pos %= period
		if pos >= span {
			pos = period - pos
		}
	} else {
		pos %= span
	}
	if clip.From > clip.To {
		return clip.From - pos
	}
	return clip.From + pos
}

func solid(board *timeline.Storyboard, c color.RGBA) image.Image {
	w, h := board.Width, board.Height
	if w <= 0 || h <= 0 {
		w, h = 1, 1
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}
