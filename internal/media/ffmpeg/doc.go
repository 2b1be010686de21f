// Package ffmpeg extracts single video frames as raw RGBA through the ffmpeg
// binary. Stream geometry and frame counts come from the ffprobe package.
package ffmpeg
