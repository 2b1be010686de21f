package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"storyboard/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("XDG_CACHE_HOME", "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantLog := filepath.Join(tempHome, ".local", "share", "storyboard", "logs")
	if cfg.Paths.LogDir != wantLog {
		t.Fatalf("unexpected log dir: got %q want %q", cfg.Paths.LogDir, wantLog)
	}
	wantCache := filepath.Join(tempHome, ".cache", "storyboard")
	if cfg.Paths.CacheDir != wantCache {
		t.Fatalf("unexpected cache dir: got %q want %q", cfg.Paths.CacheDir, wantCache)
	}
	if cfg.ProbeCache.Path != filepath.Join(wantCache, "probe_cache.db") {
		t.Fatalf("unexpected probe cache path: %q", cfg.ProbeCache.Path)
	}
	if cfg.SceneDetect.DiffThreshold != 3000 || cfg.SceneDetect.DiffDiffThreshold != 700 {
		t.Fatalf("unexpected scene thresholds: %+v", cfg.SceneDetect)
	}
	if cfg.SceneDetect.IgnoreFraction != 0.15 {
		t.Fatalf("unexpected ignore fraction: %v", cfg.SceneDetect.IgnoreFraction)
	}
	if cfg.FFmpegBinary() != "ffmpeg" || cfg.FFprobeBinary() != "ffprobe" {
		t.Fatalf("unexpected decoder binaries: %q %q", cfg.FFmpegBinary(), cfg.FFprobeBinary())
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.CacheDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "storyboard.toml")

	type payload struct {
		Storyboard struct {
			FrameRate float64 `toml:"frame_rate"`
			Width     int     `toml:"width"`
		} `toml:"storyboard"`
		SceneDetect struct {
			DiffThreshold float64 `toml:"diff_threshold"`
		} `toml:"scene_detect"`
		Undo struct {
			MaxDepth int `toml:"max_depth"`
		} `toml:"undo"`
		Logging struct {
			Format string `toml:"format"`
		} `toml:"logging"`
	}
	custom := payload{}
	custom.Storyboard.FrameRate = 30
	custom.Storyboard.Width = 640
	custom.SceneDetect.DiffThreshold = 1500
	custom.Undo.MaxDepth = 50
	custom.Logging.Format = "JSON"

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if cfg.Storyboard.FrameRate != 30 || cfg.Storyboard.Width != 640 {
		t.Fatalf("unexpected storyboard settings: %+v", cfg.Storyboard)
	}
	if cfg.Storyboard.Height != config.Default().Storyboard.Height {
		t.Fatalf("expected default height to survive partial config, got %d", cfg.Storyboard.Height)
	}
	if cfg.SceneDetect.DiffThreshold != 1500 {
		t.Fatalf("unexpected diff threshold: %v", cfg.SceneDetect.DiffThreshold)
	}
	if cfg.Undo.MaxDepth != 50 {
		t.Fatalf("unexpected undo depth: %d", cfg.Undo.MaxDepth)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected normalized log format, got %q", cfg.Logging.Format)
	}
}

func TestEnvOverridesDecoderBinaries(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("STORYBOARD_FFMPEG", "/opt/ffmpeg/bin/ffmpeg")
	t.Setenv("STORYBOARD_FFPROBE", " /opt/ffmpeg/bin/ffprobe ")

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.FFmpegBinary() != "/opt/ffmpeg/bin/ffmpeg" {
		t.Fatalf("unexpected ffmpeg binary: %q", cfg.FFmpegBinary())
	}
	if cfg.FFprobeBinary() != "/opt/ffmpeg/bin/ffprobe" {
		t.Fatalf("unexpected ffprobe binary: %q", cfg.FFprobeBinary())
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantKey string
	}{
		{"zero width", func(c *config.Config) { c.Storyboard.Width = 0 }, "storyboard"},
		{"unknown document format", func(c *config.Config) { c.Storyboard.Format = "xml" }, "storyboard"},
		{"ignore fraction too high", func(c *config.Config) { c.SceneDetect.IgnoreFraction = 0.95 }, "scene_detect"},
		{"zero block size", func(c *config.Config) { c.SceneDetect.BlockSize = 0 }, "scene_detect"},
		{"negative undo depth", func(c *config.Config) { c.Undo.MaxDepth = -1 }, "undo"},
		{"max backoff below initial", func(c *config.Config) { c.Decoder.BusyMaxBackoffMillis = 1; c.Decoder.BusyBackoffMillis = 5 }, "decoder"},
		{"unknown log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging"},
		{"probe cache without path", func(c *config.Config) { c.ProbeCache.Path = "" }, "probe_cache"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.ProbeCache.Path = "/tmp/probe.db"
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.HasPrefix(err.Error(), tt.wantKey+":") {
				t.Fatalf("expected error for %s, got %v", tt.wantKey, err)
			}
		})
	}
}

func TestCreateSampleLoads(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config does not load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample file to exist")
	}
	if cfg.Storyboard.Width != config.Default().Storyboard.Width {
		t.Fatalf("unexpected width from sample: %d", cfg.Storyboard.Width)
	}
}
