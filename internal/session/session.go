package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"

	"storyboard/internal/config"
	"storyboard/internal/logging"
	"storyboard/internal/media"
	"storyboard/internal/probecache"
	"storyboard/internal/resource"
	"storyboard/internal/scenecut"
	"storyboard/internal/storyfile"
	"storyboard/internal/timeline"
	"storyboard/internal/undo"
)

// Option customizes a session.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	decoder  resource.Decoder
	noLock   bool
	onChange resource.ChangeCallback
}

// WithLogger sets the base logger; the session stamps its ID on every record.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithDecoder replaces the ffmpeg/still decoder, mainly for tests.
func WithDecoder(dec resource.Decoder) Option {
	return func(o *options) { o.decoder = dec }
}

// WithoutLock opens the document without taking the document lock. Read-only
// commands use it.
func WithoutLock() Option {
	return func(o *options) { o.noLock = true }
}

// WithChangeCallback is notified when a watched media file changes on disk.
func WithChangeCallback(cb resource.ChangeCallback) Option {
	return func(o *options) { o.onChange = cb }
}

// Session is one open document.
type Session struct {
	ID string

	cfg    *config.Config
	logger *slog.Logger
	path   string
	lock   *storyfile.Lock

	board    *timeline.Storyboard
	history  *undo.Engine
	registry *resource.Registry
	cache    *resource.Cache
	detector *scenecut.Detector
	probes   *probecache.Store
	watcher  *resource.Watcher

	progress scenecut.Progress
	scanning timeline.ClipID

	watchCancel context.CancelFunc
	watchDone   chan struct{}
	closeOnce   sync.Once
	closeErr    error
}

// Create starts a new document at path using the storyboard defaults from
// cfg and writes it immediately.
func Create(cfg *config.Config, path string, opts ...Option) (*Session, error) {
	if cfg == nil {
		return nil, errors.New("create session: nil config")
	}
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("create %s: %w", path, fs.ErrExist)
	}
	board := timeline.New(cfg.Storyboard.FrameRate, cfg.Storyboard.Width, cfg.Storyboard.Height)
	s, err := newSession(cfg, path, board, opts)
	if err != nil {
		return nil, err
	}
	if err := s.Save(); err != nil {
		_ = s.Close()
		return nil, err
	}
	s.logger.Info("storyboard created",
		logging.String("path", path),
		logging.Float64("frame_rate", board.FrameRate),
		logging.Int("width", board.Width),
		logging.Int("height", board.Height),
	)
	return s, nil
}

// Open loads the document at path.
func Open(cfg *config.Config, path string, opts ...Option) (*Session, error) {
	if cfg == nil {
		return nil, errors.New("open session: nil config")
	}
	o := collect(opts)
	var lock *storyfile.Lock
	if !o.noLock {
		l, err := storyfile.Acquire(path)
		if err != nil {
			return nil, err
		}
		lock = l
	}
	board, err := storyfile.Load(path)
	if err != nil {
		_ = lock.Release()
		return nil, err
	}
	// Documents without a working size fall back to the configured one.
	if board.Width <= 0 || board.Height <= 0 {
		board.Width, board.Height = cfg.Storyboard.Width, cfg.Storyboard.Height
	}
	s, err := build(cfg, path, board, o, lock)
	if err != nil {
		_ = lock.Release()
		return nil, err
	}
	s.logger.Debug("storyboard opened",
		logging.String("path", path),
		logging.Int("section_count", len(board.Sections)),
		logging.Int("clip_count", board.ClipCount()),
	)
	return s, nil
}

func collect(opts []Option) options {
	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

func newSession(cfg *config.Config, path string, board *timeline.Storyboard, opts []Option) (*Session, error) {
	o := collect(opts)
	var lock *storyfile.Lock
	if !o.noLock {
		l, err := storyfile.Acquire(path)
		if err != nil {
			return nil, err
		}
		lock = l
	}
	s, err := build(cfg, path, board, o, lock)
	if err != nil {
		_ = lock.Release()
		return nil, err
	}
	return s, nil
}

func build(cfg *config.Config, path string, board *timeline.Storyboard, o options, lock *storyfile.Lock) (*Session, error) {
	id := uuid.NewString()
	base := o.logger
	if base == nil {
		base = logging.NewNop()
	}
	logger := logging.WithSessionID(base, id)

	probes, err := probecache.Open(cfg)
	if err != nil {
		// A broken probe cache only costs probing time.
		logging.WarnWithContext(logger, "probe cache unavailable", "probe_cache_unavailable",
			logging.Error(err),
			logging.String(logging.FieldImpact, "media frame counts are probed every session"),
			logging.String(logging.FieldErrorHint, "run 'storyboard cache clear' to rebuild the cache"),
		)
		probes = nil
	}

	dec := o.decoder
	if dec == nil {
		dec = media.NewDecoder(cfg, logger)
	}
	initial, maxWait := cfg.BusyBackoff()
	regOpts := []resource.Option{
		resource.WithLogger(logger),
		resource.WithBusyBackoff(initial, maxWait),
	}
	if probes != nil {
		regOpts = append(regOpts, resource.WithProbeStore(probes))
	}

	s := &Session{
		ID:      id,
		cfg:     cfg,
		logger:  logging.NewComponentLogger(logger, "session"),
		path:    path,
		lock:    lock,
		board:   board,
		history: undo.New(cfg.Undo.MaxDepth, logger),
		probes:  probes,
	}
	s.registry = resource.NewRegistry(dec, regOpts...)
	s.registry.SetSectionSource(sectionSource{s: s})
	s.cache = resource.NewCache(s.registry, board.Width, board.Height)
	s.detector = scenecut.New(s.cache, s.history, scenecut.OptionsFromConfig(cfg.SceneDetect), logger)
	s.watcher = resource.NewWatcher(s.cache, logger, o.onChange)
	s.detector.SetProgress(s.scanProgress)
	return s, nil
}

// Path returns the document path.
func (s *Session) Path() string { return s.path }

// Board returns the live storyboard. Callers must not mutate it; use Edit.
func (s *Session) Board() *timeline.Storyboard { return s.board }

// History returns the undo engine.
func (s *Session) History() *undo.Engine { return s.history }

// Cache returns the thumbnail cache.
func (s *Session) Cache() *resource.Cache { return s.cache }

// Registry returns the resource registry.
func (s *Session) Registry() *resource.Registry { return s.registry }

// SetProgress installs the scene-scan progress callback. Returning false
// from it cancels the scan.
func (s *Session) SetProgress(fn scenecut.Progress) { s.progress = fn }

// scanProgress adds the directory of each newly scanned clip to the watch
// list before forwarding to the caller's callback.
func (s *Session) scanProgress(p scenecut.ProgressInfo) bool {
	if p.Clip != s.scanning {
		s.scanning = p.Clip
		s.watcher.Sync()
	}
	if s.progress == nil {
		return true
	}
	return s.progress(p)
}

// Edit applies fn to a copy of the storyboard. On success the previous state
// is pushed to the undo history under feature and clip, and the copy becomes
// the live storyboard. On failure nothing changes.
func (s *Session) Edit(ctx context.Context, feature undo.Feature, clip timeline.ClipID, fn func(*timeline.Storyboard) error) error {
	next := s.board.Clone()
	if err := fn(next); err != nil {
		return err
	}
	s.history.Push(feature, clip, s.board)
	s.board = next
	s.afterChange(ctx)
	s.logger.Debug("edit applied",
		logging.String(logging.FieldFeature, feature.String()),
		logging.Clip(int(clip)),
	)
	return nil
}

// Undo restores the state before the most recent edit.
func (s *Session) Undo(ctx context.Context) bool {
	restored, ok := s.history.Undo(s.board)
	if !ok {
		return false
	}
	restored.Unsaved = true
	s.board = restored
	s.afterChange(ctx)
	return true
}

// Redo reapplies the most recently undone edit.
func (s *Session) Redo(ctx context.Context) bool {
	restored, ok := s.history.Redo()
	if !ok {
		return false
	}
	restored.Unsaved = true
	s.board = restored
	s.afterChange(ctx)
	return true
}

// DetectScenes scans one clip of the live storyboard. The edits it makes
// undo as one step.
func (s *Session) DetectScenes(ctx context.Context, clip timeline.ClipID, mode scenecut.Mode) (scenecut.Result, error) {
	s.scanning = timeline.NoClip
	res, err := s.detector.Run(ctx, s.board, clip, mode)
	s.afterChange(ctx)
	s.watcher.Sync()
	return res, err
}

// SplitSection scans every frame-bearing clip of the named section.
func (s *Session) SplitSection(ctx context.Context, name string, mode scenecut.Mode) ([]scenecut.Result, error) {
	sec, ok := s.board.SectionByName(name)
	if !ok {
		return nil, fmt.Errorf("split section %q: %w", name, timeline.ErrSectionNotFound)
	}
	s.scanning = timeline.NoClip
	results, err := s.detector.RunSection(ctx, s.board, sec.ID, mode)
	s.afterChange(ctx)
	s.watcher.Sync()
	return results, err
}

// FrameCount resolves the frame count of the clip's source, registering the
// source with the registry.
func (s *Session) FrameCount(ctx context.Context, clip *timeline.Clip) (int, error) {
	key, err := resource.ClipKey(clip)
	if err != nil {
		return 0, err
	}
	id, err := s.registry.GetOrCreate(ctx, key)
	if err != nil {
		return 0, err
	}
	res, _ := s.registry.Resource(id)
	s.watcher.Sync()
	return res.FrameCount, nil
}

// Watch starts the resource watcher in the background. It stops on Close or
// when ctx ends.
func (s *Session) Watch(ctx context.Context) {
	if s.watchCancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.watchCancel = cancel
	s.watchDone = make(chan struct{})
	go func() {
		defer close(s.watchDone)
		if err := s.watcher.Run(ctx); err != nil {
			logging.WarnWithContext(s.logger, "resource watcher failed", "watcher_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "media changes on disk are not picked up"),
			)
		}
	}()
}

// Save writes the live storyboard to the document path.
func (s *Session) Save() error {
	if err := storyfile.Save(s.path, s.board); err != nil {
		logging.ErrorWithContext(s.logger, "storyboard save failed", "document_save_failed",
			logging.String("path", s.path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that the document directory is writable"),
		)
		return err
	}
	s.logger.Debug("storyboard saved", logging.String("path", s.path))
	return nil
}

// Close stops the watcher and releases the decoder handles, the thumbnail
// cache, the history, the probe cache and the document lock. Unsaved edits
// are discarded.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.watchCancel != nil {
			s.watchCancel()
			<-s.watchDone
		}
		var errs []error
		if err := s.cache.Clear(); err != nil {
			errs = append(errs, fmt.Errorf("clear cache: %w", err))
		}
		if err := s.registry.CloseAll(); err != nil {
			errs = append(errs, fmt.Errorf("close resources: %w", err))
		}
		s.history.Reset()
		if err := s.probes.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close probe cache: %w", err))
		}
		if err := s.lock.Release(); err != nil {
			errs = append(errs, fmt.Errorf("release lock: %w", err))
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}

// afterChange drops cached frames of section resources and re-counts them,
// since any edit may change what a section renders.
func (s *Session) afterChange(ctx context.Context) {
	for _, res := range s.registry.Resources() {
		if res.Key.IsFile() {
			continue
		}
		s.cache.Invalidate(res.ID)
		if err := s.registry.Refresh(ctx, res.ID); err != nil {
			s.logger.Debug("section resource refresh failed",
				logging.Resource(int(res.ID)),
				logging.Section(res.Key.Path),
				logging.Error(err),
			)
		}
	}
}
