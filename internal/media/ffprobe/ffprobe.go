package ffprobe

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// ErrNoVideoTrack reports a container without the requested video track.
var ErrNoVideoTrack = errors.New("no such video track")

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
	raw     []byte
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index        int    `json:"index"`
	CodecName    string `json:"codec_name"`
	CodecType    string `json:"codec_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Duration     string `json:"duration"`
	NBFrames     string `json:"nb_frames"`
	NBReadFrames string `json:"nb_read_frames"`
	AvgFrameRate string `json:"avg_frame_rate"`
	RFrameRate   string `json:"r_frame_rate"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	FormatName string `json:"format_name"`
}

// Options tunes an inspection.
type Options struct {
	// CountFrames makes ffprobe decode the stream to count frames exactly.
	// Slow, used only when the container carries no frame count.
	CountFrames bool
}

// Inspect executes ffprobe against the provided path and decodes the JSON response.
func Inspect(ctx context.Context, binary string, path string, opts Options) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	args := []string{"-v", "error", "-hide_banner", "-show_format", "-show_streams"}
	if opts.CountFrames {
		args = append(args, "-count_frames", "-select_streams", "v")
	}
	args = append(args, "-of", "json", "--", path)
	cmd := exec.CommandContext(ctx, binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return Result{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return Parse(output)
}

// Parse decodes raw ffprobe JSON.
func Parse(payload []byte) (Result, error) {
	var result Result
	if err := json.Unmarshal(payload, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	result.raw = append([]byte(nil), payload...)
	return result, nil
}

// RawJSON returns the raw ffprobe JSON payload.
func (r Result) RawJSON() []byte {
	return append([]byte(nil), r.raw...)
}

// VideoStreams returns the video streams in container order.
func (r Result) VideoStreams() []Stream {
	var out []Stream
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "video") {
			out = append(out, stream)
		}
	}
	return out
}

// VideoTrack returns the n-th video stream (0-based).
func (r Result) VideoTrack(n int) (Stream, error) {
	streams := r.VideoStreams()
	if n < 0 || n >= len(streams) {
		return Stream{}, fmt.Errorf("video track %d of %d: %w", n, len(streams), ErrNoVideoTrack)
	}
	return streams[n], nil
}

// DurationSeconds returns the container duration in seconds, or 0 when unavailable.
func (r Result) DurationSeconds() float64 {
	return parseFloat(r.Format.Duration)
}

// FrameCount returns the number of frames in the stream. It prefers an exact
// count and otherwise estimates from duration and frame rate. Zero means
// unknown.
func (s Stream) FrameCount(containerDuration float64) int {
	for _, candidate := range []string{s.NBReadFrames, s.NBFrames} {
		if n, err := strconv.Atoi(strings.TrimSpace(candidate)); err == nil && n > 0 {
			return n
		}
	}
	rate := s.FrameRate()
	duration := parseFloat(s.Duration)
	if duration <= 0 || math.IsNaN(duration) {
		duration = containerDuration
	}
	if rate <= 0 || duration <= 0 || math.IsNaN(duration) {
		return 0
	}
	return int(math.Round(duration * rate))
}

// FrameRate returns the average frame rate, falling back to the base rate.
func (s Stream) FrameRate() float64 {
	if rate := parseRational(s.AvgFrameRate); rate > 0 {
		return rate
	}
	return parseRational(s.RFrameRate)
}

func parseRational(value string) float64 {
	value = strings.TrimSpace(value)
	num, den, found := strings.Cut(value, "/")
	if !found {
		v := parseFloat(value)
		if math.IsNaN(v) {
			return 0
		}
		return v
	}
	n := parseFloat(num)
	d := parseFloat(den)
	if d == 0 || math.IsNaN(n) || math.IsNaN(d) {
		return 0
	}
	return n / d
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}
