package deps

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func writeStub(t *testing.T, path, script string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
}

func TestCheckBinaries(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs")
	}
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	writeStub(t, present, "#!/bin/sh\necho 'present version 7.1'\necho 'built with gcc'\n")
	reqs := []Requirement{
		{Name: "Present", Command: present, VersionArg: "-version"},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Unset", Command: "  "},
	}

	results := CheckBinaries(context.Background(), reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[0].Version != "present version 7.1" {
		t.Fatalf("expected first version line, got %q", results[0].Version)
	}
	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary with detail, got %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[2].Available || results[2].Detail != "command not configured" {
		t.Fatalf("expected unconfigured command, got %#v", results[2])
	}
}

func TestCheckDecodersPrefersSidecarProbe(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs")
	}
	dir := t.TempDir()
	ffmpeg := filepath.Join(dir, "ffmpeg")
	ffprobe := filepath.Join(dir, "ffprobe")
	writeStub(t, ffmpeg, "#!/bin/sh\nexit 0\n")
	writeStub(t, ffprobe, "#!/bin/sh\nexit 0\n")
	t.Setenv("PATH", "")

	results := CheckDecoders(context.Background(), ffmpeg, "ffprobe")
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[1].Command != ffprobe || !results[1].Available {
		t.Fatalf("expected sidecar ffprobe %q, got %#v", ffprobe, results[1])
	}
}

func TestCheckDecodersNotFound(t *testing.T) {
	t.Setenv("PATH", "")
	results := CheckDecoders(context.Background(), "ffmpeg", "ffprobe")
	for _, r := range results {
		if r.Available {
			t.Fatalf("expected %s to be unavailable", r.Name)
		}
		if r.Detail == "" {
			t.Fatalf("expected detail message for %s", r.Name)
		}
	}
}
