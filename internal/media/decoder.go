// Package media dispatches resource keys to the decoder that understands
// their kind: ffmpeg for movies, the still package for image files.
package media

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"storyboard/internal/config"
	"storyboard/internal/logging"
	"storyboard/internal/media/ffmpeg"
	"storyboard/internal/media/still"
	"storyboard/internal/resource"
	"storyboard/internal/timeline"
)

// Decoder opens frame sources for the resource registry.
type Decoder struct {
	extractor ffmpeg.Extractor
	logger    *slog.Logger
}

// NewDecoder builds a decoder from the decoder section of the config.
func NewDecoder(cfg *config.Config, logger *slog.Logger) *Decoder {
	d := &Decoder{logger: logging.NewComponentLogger(logger, "media")}
	if cfg != nil {
		d.extractor = ffmpeg.Extractor{
			FFmpeg:       cfg.FFmpegBinary(),
			FFprobe:      cfg.FFprobeBinary(),
			ProbeTimeout: cfg.ProbeTimeout(),
			FrameTimeout: cfg.FrameTimeout(),
		}
	}
	return d
}

// Open implements resource.Decoder.
func (d *Decoder) Open(ctx context.Context, key resource.Key) (resource.Handle, error) {
	switch key.Kind {
	case timeline.KindMovie:
		return d.openMovie(ctx, key)
	case timeline.KindImageSequence:
		seq, err := still.OpenSequence(key.Path)
		if err != nil {
			return nil, err
		}
		d.logger.Debug("image sequence opened", logging.String("path", key.Path), logging.Int("frame_count", seq.Len()))
		return &stillHandle{count: seq.Len(), frame: seq.Frame}, nil
	case timeline.KindAnimatedImage:
		if strings.EqualFold(filepath.Ext(key.Path), ".gif") {
			anim, err := still.OpenAnimation(key.Path)
			if err != nil {
				return nil, err
			}
			return &stillHandle{count: anim.Len(), frame: anim.Frame}, nil
		}
		// Animated WebP and APNG go through ffmpeg.
		return d.openMovie(ctx, key)
	case timeline.KindSingleImage:
		return &singleImage{path: key.Path}, nil
	default:
		return nil, fmt.Errorf("open %s: %w", key, resource.ErrNoFrames)
	}
}

func (d *Decoder) openMovie(ctx context.Context, key resource.Key) (resource.Handle, error) {
	info, err := d.extractor.Probe(ctx, key.Path, key.Track)
	if err != nil {
		return nil, err
	}
	d.logger.Debug("movie probed",
		logging.String("path", key.Path),
		logging.Int("track", key.Track),
		logging.Int("frame_count", info.Frames),
		logging.Float64("frame_rate", info.FrameRate),
		logging.String("size", fmt.Sprintf("%dx%d", info.Width, info.Height)),
	)
	return &movieHandle{ex: d.extractor, path: key.Path, track: key.Track, info: info}, nil
}

type movieHandle struct {
	ex    ffmpeg.Extractor
	path  string
	track int
	info  ffmpeg.Info
}

func (h *movieHandle) FrameCount(context.Context) (int, error) { return h.info.Frames, nil }

func (h *movieHandle) Frame(ctx context.Context, frame int) (image.Image, error) {
	return h.ex.Frame(ctx, h.path, h.track, h.info, frame)
}

func (h *movieHandle) Close() error { return nil }

type stillHandle struct {
	count int
	frame func(int) (image.Image, error)
}

func (h *stillHandle) FrameCount(context.Context) (int, error) { return h.count, nil }

func (h *stillHandle) Frame(_ context.Context, frame int) (image.Image, error) {
	return h.frame(frame)
}

func (h *stillHandle) Close() error { return nil }

// singleImage serves the same picture for every frame number.
type singleImage struct {
	path string
	once sync.Once
	img  image.Image
	err  error
}

func (h *singleImage) load() (image.Image, error) {
	h.once.Do(func() { h.img, h.err = still.DecodeFile(h.path) })
	return h.img, h.err
}

func (h *singleImage) FrameCount(context.Context) (int, error) {
	if _, err := h.load(); err != nil {
		return 0, err
	}
	return 1, nil
}

func (h *singleImage) Frame(context.Context, int) (image.Image, error) {
	return h.load()
}

func (h *singleImage) Close() error { return nil }
