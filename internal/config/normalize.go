package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeStoryboard()
	c.normalizeDecoder()
	if err := c.normalizeProbeCache(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir()
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeStoryboard() {
	c.Storyboard.Format = strings.ToLower(strings.TrimSpace(c.Storyboard.Format))
	if c.Storyboard.Format == "" {
		c.Storyboard.Format = defaultDocumentFormat
	}
}

func (c *Config) normalizeDecoder() {
	c.Decoder.FFmpegBinary = strings.TrimSpace(c.Decoder.FFmpegBinary)
	if value, ok := os.LookupEnv("STORYBOARD_FFMPEG"); ok && strings.TrimSpace(value) != "" {
		c.Decoder.FFmpegBinary = strings.TrimSpace(value)
	}
	if c.Decoder.FFmpegBinary == "" {
		c.Decoder.FFmpegBinary = defaultFFmpegBinary
	}
	c.Decoder.FFprobeBinary = strings.TrimSpace(c.Decoder.FFprobeBinary)
	if value, ok := os.LookupEnv("STORYBOARD_FFPROBE"); ok && strings.TrimSpace(value) != "" {
		c.Decoder.FFprobeBinary = strings.TrimSpace(value)
	}
	if c.Decoder.FFprobeBinary == "" {
		c.Decoder.FFprobeBinary = defaultFFprobeBinary
	}
}

func (c *Config) normalizeProbeCache() error {
	var err error
	if strings.TrimSpace(c.ProbeCache.Path) == "" {
		c.ProbeCache.Path = filepath.Join(c.Paths.CacheDir, defaultProbeCacheFile)
	}
	if c.ProbeCache.Path, err = expandPath(c.ProbeCache.Path); err != nil {
		return fmt.Errorf("probe_cache.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch format {
	case "", "console", "pretty":
		c.Logging.Format = "console"
	default:
		c.Logging.Format = format
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
