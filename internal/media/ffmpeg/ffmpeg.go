package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"storyboard/internal/media/ffprobe"
)

// ErrUnknownFrameCount reports a stream whose length ffprobe cannot determine.
var ErrUnknownFrameCount = errors.New("frame count unknown")

// Info describes one video track.
type Info struct {
	Width     int
	Height    int
	Frames    int
	FrameRate float64
}

// Extractor runs ffprobe and ffmpeg for one media file.
type Extractor struct {
	FFmpeg       string
	FFprobe      string
	ProbeTimeout time.Duration
	FrameTimeout time.Duration
}

// Probe inspects the given video track (0-based). When the container carries
// no usable frame count the stream is decoded once to count frames.
func (e Extractor) Probe(ctx context.Context, path string, track int) (Info, error) {
	info, err := e.probe(ctx, path, track, ffprobe.Options{})
	if err != nil {
		return Info{}, err
	}
	if info.Frames > 0 {
		return info, nil
	}
	info, err = e.probe(ctx, path, track, ffprobe.Options{CountFrames: true})
	if err != nil {
		return Info{}, err
	}
	if info.Frames < 1 {
		return Info{}, fmt.Errorf("probe %s: %w", path, ErrUnknownFrameCount)
	}
	return info, nil
}

func (e Extractor) probe(ctx context.Context, path string, track int, opts ffprobe.Options) (Info, error) {
	probeCtx, cancel := withTimeout(ctx, e.ProbeTimeout)
	defer cancel()
	result, err := ffprobe.Inspect(probeCtx, e.FFprobe, path, opts)
	if err != nil {
		return Info{}, err
	}
	stream, err := result.VideoTrack(track)
	if err != nil {
		return Info{}, fmt.Errorf("probe %s: %w", path, err)
	}
	return Info{
		Width:     stream.Width,
		Height:    stream.Height,
		Frames:    stream.FrameCount(result.DurationSeconds()),
		FrameRate: stream.FrameRate(),
	}, nil
}

// Frame decodes frame (1-based) of the track described by info.
func (e Extractor) Frame(ctx context.Context, path string, track int, info Info, frame int) (*image.RGBA, error) {
	if info.Width <= 0 || info.Height <= 0 {
		return nil, fmt.Errorf("extract %s: unknown frame size %dx%d", path, info.Width, info.Height)
	}
	frameCtx, cancel := withTimeout(ctx, e.FrameTimeout)
	defer cancel()

	binary := strings.TrimSpace(e.FFmpeg)
	if binary == "" {
		binary = "ffmpeg"
	}
	cmd := exec.CommandContext(frameCtx, binary, Args(path, track, info, frame)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("extract frame %d of %s: %w: %s", frame, path, err, strings.TrimSpace(stderr.String()))
	}
	size := info.Width * info.Height * 4
	if stdout.Len() < size {
		return nil, fmt.Errorf("extract frame %d of %s: short read (%d of %d bytes)", frame, path, stdout.Len(), size)
	}
	img := image.NewRGBA(image.Rect(0, 0, info.Width, info.Height))
	copy(img.Pix, stdout.Bytes()[:size])
	return img, nil
}

// Args builds the ffmpeg command line extracting one frame as raw RGBA. With a
// known frame rate the input is seeked by timestamp; otherwise frames are
// selected by index.
func Args(path string, track int, info Info, frame int) []string {
	args := []string{"-v", "error", "-nostdin"}
	if info.FrameRate > 0 {
		ts := float64(frame-1) / info.FrameRate
		args = append(args, "-ss", strconv.FormatFloat(ts, 'f', 6, 64))
	}
	args = append(args, "-i", path, "-map", fmt.Sprintf("0:v:%d", track))
	if info.FrameRate <= 0 {
		args = append(args, "-vf", fmt.Sprintf(`select=eq(n\,%d)`, frame-1), "-vsync", "0")
	}
	args = append(args,
		"-frames:v", "1",
		"-s", fmt.Sprintf("%dx%d", info.Width, info.Height),
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"pipe:1",
	)
	return args
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
