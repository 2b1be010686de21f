package config

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	sections := []struct {
		name string
		v    validation.Validatable
	}{
		{"storyboard", &c.Storyboard},
		{"decoder", &c.Decoder},
		{"scene_detect", &c.SceneDetect},
		{"undo", &c.Undo},
		{"probe_cache", &c.ProbeCache},
		{"logging", &c.Logging},
	}
	for _, section := range sections {
		if err := section.v.Validate(); err != nil {
			return fmt.Errorf("%s: %w", section.name, err)
		}
	}
	return nil
}

// Validate validates the storyboard defaults.
func (s *Storyboard) Validate() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.FrameRate, validation.Required, validation.Min(0.001)),
		validation.Field(&s.Width, validation.Required, validation.Min(1)),
		validation.Field(&s.Height, validation.Required, validation.Min(1)),
		validation.Field(&s.Format, validation.In("yaml", "json")),
	)
}

// Validate validates the decoder configuration.
func (d *Decoder) Validate() error {
	return validation.ValidateStruct(d,
		validation.Field(&d.FFmpegBinary, validation.Required),
		validation.Field(&d.FFprobeBinary, validation.Required),
		validation.Field(&d.ProbeTimeoutSeconds, validation.Required, validation.Min(1)),
		validation.Field(&d.FrameTimeoutSeconds, validation.Required, validation.Min(1)),
		validation.Field(&d.BusyBackoffMillis, validation.Required, validation.Min(1)),
		validation.Field(&d.BusyMaxBackoffMillis, validation.Required, validation.Min(d.BusyBackoffMillis)),
	)
}

// Validate validates the scene detector tuning.
func (s *SceneDetect) Validate() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.DiffThreshold, validation.Required, validation.Min(1.0)),
		validation.Field(&s.DiffDiffThreshold, validation.Required, validation.Min(1.0)),
		validation.Field(&s.IgnoreFraction, validation.Min(0.0), validation.Max(0.9)),
		validation.Field(&s.BlockSize, validation.Required, validation.Min(1), validation.Max(64)),
		validation.Field(&s.BlockOutlierThreshold, validation.Required, validation.Min(1.0)),
		validation.Field(&s.MinSceneFrames, validation.Min(0)),
		validation.Field(&s.SpikeFactor, validation.Required, validation.Min(1.0)),
		validation.Field(&s.PostCutBoost, validation.Required, validation.Min(1.0)),
	)
}

// Validate validates the undo configuration.
func (u *Undo) Validate() error {
	return validation.ValidateStruct(u,
		validation.Field(&u.MaxDepth, validation.Min(0)),
	)
}

// Validate validates the probe cache configuration.
func (p *ProbeCache) Validate() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Path, validation.When(p.Enabled, validation.Required)),
	)
}

// Validate validates the logging configuration.
func (l *Logging) Validate() error {
	return validation.ValidateStruct(l,
		validation.Field(&l.Format, validation.Required, validation.In("console", "json")),
		validation.Field(&l.Level, validation.In("debug", "info", "warn", "error")),
	)
}
