// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual stream properties including frame counts and rates
//
// Primary entry point:
//   - Inspect: executes ffprobe and returns parsed Result
//
// Helper methods on Result select video tracks and derive the frame count of
// a track, falling back from the container's nb_frames to duration times the
// average frame rate.
package ffprobe
