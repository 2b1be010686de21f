package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"storyboard/internal/config"
)

// ConfigOption adjusts a test configuration after the temp layout exists.
type ConfigOption func(t testing.TB, cfg *config.Config)

// NewConfig returns defaults rooted in a fresh temp directory: a 16x16
// working size, an enabled probe cache under the cache dir and millisecond
// busy backoff so retries never slow a test down.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.CacheDir = filepath.Join(root, "cache")
	cfg.Paths.LogDir = filepath.Join(root, "logs")
	cfg.ProbeCache.Path = filepath.Join(cfg.Paths.CacheDir, "probe_cache.db")
	cfg.Storyboard.Width, cfg.Storyboard.Height = 16, 16
	cfg.Decoder.BusyBackoffMillis, cfg.Decoder.BusyMaxBackoffMillis = 1, 4

	for _, opt := range opts {
		opt(t, &cfg)
	}
	return &cfg
}

// WithoutProbeCache disables the sqlite probe cache.
func WithoutProbeCache() ConfigOption {
	return func(_ testing.TB, cfg *config.Config) {
		cfg.ProbeCache.Enabled = false
	}
}

// WithStubbedBinaries puts no-op executables named after the decoder tools
// (or names, when given) first on PATH for the rest of the test.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(t testing.TB, cfg *config.Config) {
		t.Helper()
		if len(names) == 0 {
			names = []string{cfg.FFmpegBinary(), cfg.FFprobeBinary()}
		}
		binDir := filepath.Join(BaseDir(cfg), "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			t.Fatalf("create stub dir: %v", err)
		}
		for _, name := range names {
			stub := filepath.Join(binDir, filepath.Base(name))
			if err := os.WriteFile(stub, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
				t.Fatalf("write stub %s: %v", name, err)
			}
		}
		t.Setenv("PATH", strings.Join([]string{binDir, os.Getenv("PATH")}, string(os.PathListSeparator)))
	}
}

// BaseDir returns the temp root behind a config made by NewConfig.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.CacheDir)
}
