// Package logging assembles structured slog loggers and formatting helpers used
// across the storyboard engine.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so editing code can tag log lines
// with the section and clip being worked on. An editing session wraps its
// logger with WithSessionID so every record carries the session identifier.
// The package also provides a no-op logger for tests and wiring code that
// cannot fail.
package logging
