package scenecut

import (
	"errors"
	"math"
	"testing"

	"pgregory.net/rapid"

	"storyboard/internal/resource"
)

func solid(width, height int, r, g, b uint8) *resource.PixelBuffer {
	buf := resource.NewPixelBuffer(width, height)
	for i := 0; i < len(buf.Pix); i += 4 {
		buf.Pix[i], buf.Pix[i+1], buf.Pix[i+2], buf.Pix[i+3] = r, g, b, 255
	}
	return buf
}

func TestColorDiffIdenticalIsZero(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		w := rapid.IntRange(1, 40).Draw(t, "width")
		h := rapid.IntRange(1, 40).Draw(t, "height")
		buf := resource.NewPixelBuffer(w, h)
		pix := rapid.SliceOfN(rapid.Byte(), len(buf.Pix), len(buf.Pix)).Draw(t, "pix")
		copy(buf.Pix, pix)
		diff, err := OverallColorDiff(buf, buf.Clone(), DefaultOptions())
		if err != nil {
			t.Fatalf("OverallColorDiff: %v", err)
		}
		if diff != 0 {
			t.Fatalf("expected 0 for identical buffers, got %v", diff)
		}
	})
}

func TestColorDiffSolidColors(t *testing.T) {
	diff, err := OverallColorDiff(solid(32, 32, 200, 0, 0), solid(32, 32, 0, 0, 200), DefaultOptions())
	if err != nil {
		t.Fatalf("OverallColorDiff: %v", err)
	}
	if math.Abs(diff-80000) > 1e-6 {
		t.Fatalf("expected 80000, got %v", diff)
	}
}

func TestColorDiffIgnoresLocalChange(t *testing.T) {
	// 64x64 with 8px blocks samples a 4x4 grid; quota allows 2 outliers.
	prev := solid(64, 64, 100, 100, 100)
	curr := prev.Clone()
	// Paint the top-left sampled block white.
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			i := (y*64 + x) * 4
			curr.Pix[i], curr.Pix[i+1], curr.Pix[i+2] = 255, 255, 255
		}
	}
	diff, err := OverallColorDiff(prev, curr, DefaultOptions())
	if err != nil {
		t.Fatalf("OverallColorDiff: %v", err)
	}
	if diff != 0 {
		t.Fatalf("expected the outlying block to be ignored, got %v", diff)
	}

	strict := DefaultOptions()
	strict.IgnoreFraction = 0
	diff, err = OverallColorDiff(prev, curr, strict)
	if err != nil {
		t.Fatalf("OverallColorDiff: %v", err)
	}
	if want := 3 * 155.0 * 155.0 / 16; math.Abs(diff-want) > 1e-6 {
		t.Fatalf("expected %v without an ignore quota, got %v", want, diff)
	}
}

func TestColorDiffDimensionMismatch(t *testing.T) {
	_, err := OverallColorDiff(solid(8, 8, 0, 0, 0), solid(16, 8, 0, 0, 0), DefaultOptions())
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestOptionsFallBackToDefaults(t *testing.T) {
	opts := Options{DiffThreshold: 1234}.withDefaults()
	if opts.DiffThreshold != 1234 || opts.BlockSize != 8 || opts.PostCutBoost != 4 {
		t.Fatalf("unexpected options %+v", opts)
	}
}
