// Package config loads, normalizes, and validates storyboard configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// STORYBOARD_FFMPEG. The Config type centralizes every knob the editing
// engine and CLI need: decoder binaries and backoff, scene detector tuning,
// undo depth, and cache locations.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
