package ffmpeg

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"
)

func TestArgsSeekByTimestamp(t *testing.T) {
	args := Args("/media/a.mov", 1, Info{Width: 4, Height: 2, FrameRate: 25}, 51)
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-ss 2.000000 -i /media/a.mov") {
		t.Fatalf("expected timestamp seek before input, got %q", joined)
	}
	if !strings.Contains(joined, "-map 0:v:1") {
		t.Fatalf("expected track mapping, got %q", joined)
	}
	if args[len(args)-1] != "pipe:1" || !slices.Contains(args, "rgba") {
		t.Fatalf("expected raw rgba to stdout, got %q", joined)
	}
}

func TestArgsSelectWithoutFrameRate(t *testing.T) {
	args := Args("/media/a.gif", 0, Info{Width: 4, Height: 2}, 3)
	if slices.Contains(args, "-ss") {
		t.Fatalf("unexpected seek without frame rate: %v", args)
	}
	if !slices.Contains(args, `select=eq(n\,2)`) {
		t.Fatalf("expected select filter for frame index 2, got %v", args)
	}
}

func TestFrameReadsRawOutput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stub")
	}
	dir := t.TempDir()
	stub := filepath.Join(dir, "ffmpeg")
	// 2x1 RGBA: red then green.
	script := "#!/bin/sh\nprintf '\\377\\000\\000\\377\\000\\377\\000\\377'\n"
	if err := os.WriteFile(stub, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	ex := Extractor{FFmpeg: stub}
	img, err := ex.Frame(context.Background(), "/media/a.mov", 0, Info{Width: 2, Height: 1, FrameRate: 25}, 1)
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if img.Pix[0] != 255 || img.Pix[5] != 255 || img.Pix[4] != 0 {
		t.Fatalf("unexpected pixels %v", img.Pix)
	}
}

func TestFrameShortRead(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stub")
	}
	dir := t.TempDir()
	stub := filepath.Join(dir, "ffmpeg")
	if err := os.WriteFile(stub, []byte("#!/bin/sh\nprintf 'ab'\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	ex := Extractor{FFmpeg: stub}
	if _, err := ex.Frame(context.Background(), "/media/a.mov", 0, Info{Width: 2, Height: 2}, 1); err == nil {
		t.Fatal("expected short read error")
	}
}
