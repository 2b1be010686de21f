package testsupport

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// WritePNG writes a solid color PNG of the given size, creating parent
// directories as needed.
func WritePNG(t testing.TB, path string, c color.RGBA, width, height int) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}

// WriteSequence writes one numbered PNG per color (prefix_0001.png, ...) and
// returns the path of the first frame.
func WriteSequence(t testing.TB, dir, prefix string, colors ...color.RGBA) string {
	t.Helper()

	first := ""
	for i, c := range colors {
		path := filepath.Join(dir, fmt.Sprintf("%s_%04d.png", prefix, i+1))
		WritePNG(t, path, c, 4, 4)
		if first == "" {
			first = path
		}
	}
	return first
}
