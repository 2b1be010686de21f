package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"storyboard/internal/fileutil"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	CacheDir string `toml:"cache_dir"`
	LogDir   string `toml:"log_dir"`
}

// Storyboard contains the master settings applied to new storyboards.
type Storyboard struct {
	FrameRate float64 `toml:"frame_rate"`
	Width     int     `toml:"width"`
	Height    int     `toml:"height"`
	// Format selects the document encoding written by `storyboard new`
	// ("yaml" or "json").
	Format string `toml:"format"`
}

// Decoder contains configuration for the external frame decoder.
type Decoder struct {
	FFmpegBinary        string `toml:"ffmpeg_binary"`
	FFprobeBinary       string `toml:"ffprobe_binary"`
	ProbeTimeoutSeconds int    `toml:"probe_timeout_seconds"`
	FrameTimeoutSeconds int    `toml:"frame_timeout_seconds"`
	// BusyBackoffMillis is the first wait after the decoder reported busy;
	// each retry doubles it up to BusyMaxBackoffMillis.
	BusyBackoffMillis    int `toml:"busy_backoff_ms"`
	BusyMaxBackoffMillis int `toml:"busy_max_backoff_ms"`
}

// SceneDetect contains the tuning of the scene cut detector.
type SceneDetect struct {
	DiffThreshold         float64 `toml:"diff_threshold"`
	DiffDiffThreshold     float64 `toml:"diff_diff_threshold"`
	IgnoreFraction        float64 `toml:"ignore_fraction"`
	BlockSize             int     `toml:"block_size"`
	BlockOutlierThreshold float64 `toml:"block_outlier_threshold"`
	MinSceneFrames        int     `toml:"min_scene_frames"`
	SpikeFactor           float64 `toml:"spike_factor"`
	PostCutBoost          float64 `toml:"post_cut_boost"`
}

// Undo contains configuration for the undo history.
type Undo struct {
	// MaxDepth caps the number of retained snapshots; 0 keeps everything.
	MaxDepth int `toml:"max_depth"`
}

// ProbeCache contains configuration for the persistent frame count cache.
type ProbeCache struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for storyboard.
//
// Configuration sections by subsystem:
//   - Paths: cache and log directories
//   - Storyboard: master frame rate and working size for new documents
//   - Decoder: ffmpeg/ffprobe binaries, timeouts, busy backoff
//   - SceneDetect: scene cut detector thresholds
//   - Undo: history depth
//   - ProbeCache: persistent frame count cache
//   - Logging: log format and level
type Config struct {
	Paths       Paths       `toml:"paths"`
	Storyboard  Storyboard  `toml:"storyboard"`
	Decoder     Decoder     `toml:"decoder"`
	SceneDetect SceneDetect `toml:"scene_detect"`
	Undo        Undo        `toml:"undo"`
	ProbeCache  ProbeCache  `toml:"probe_cache"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("storyboard.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the cache and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.CacheDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.ProbeCache.Enabled && c.ProbeCache.Path != "" {
		if err := os.MkdirAll(filepath.Dir(c.ProbeCache.Path), 0o755); err != nil {
			return fmt.Errorf("create probe cache directory: %w", err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable used for frame extraction.
func (c *Config) FFmpegBinary() string {
	if c == nil || strings.TrimSpace(c.Decoder.FFmpegBinary) == "" {
		return defaultFFmpegBinary
	}
	return c.Decoder.FFmpegBinary
}

// FFprobeBinary returns the ffprobe executable used for media probing.
func (c *Config) FFprobeBinary() string {
	if c == nil || strings.TrimSpace(c.Decoder.FFprobeBinary) == "" {
		return defaultFFprobeBinary
	}
	return c.Decoder.FFprobeBinary
}

// ProbeTimeout returns the per-probe timeout.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Decoder.ProbeTimeoutSeconds) * time.Second
}

// FrameTimeout returns the per-frame decode timeout.
func (c *Config) FrameTimeout() time.Duration {
	return time.Duration(c.Decoder.FrameTimeoutSeconds) * time.Second
}

// BusyBackoff returns the initial and maximum wait used when the decoder is busy.
func (c *Config) BusyBackoff() (time.Duration, time.Duration) {
	return time.Duration(c.Decoder.BusyBackoffMillis) * time.Millisecond,
		time.Duration(c.Decoder.BusyMaxBackoffMillis) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultCacheDir() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "storyboard")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "~/.cache/storyboard"
	}
	return filepath.Join(home, ".cache", "storyboard")
}

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if err := fileutil.WriteAtomic(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
