package resource

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"storyboard/internal/logging"
)

// ChangeCallback is called after a watched resource was refreshed. kind is
// "updated" or "removed".
type ChangeCallback func(kind string, id ID, key Key)

// Watcher refreshes resources whose files change on disk. Changed resources
// have their cached frames dropped and their frame count re-probed.
type Watcher struct {
	cache    *Cache
	logger   *slog.Logger
	debounce time.Duration
	cb       ChangeCallback

	mu      sync.Mutex
	watched map[string]int
	fsw     *fsnotify.Watcher
}

// NewWatcher creates a watcher over the cache's registry. cb may be nil.
func NewWatcher(cache *Cache, logger *slog.Logger, cb ChangeCallback) *Watcher {
	return &Watcher{
		cache:    cache,
		logger:   logging.NewComponentLogger(logger, "resource-watcher"),
		debounce: 250 * time.Millisecond,
		cb:       cb,
		watched:  make(map[string]int),
	}
}

// Run watches the directories of every registered file resource until ctx is
// cancelled. Resources registered later are picked up by Sync.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	w.mu.Lock()
	w.fsw = fsw
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.fsw = nil
		w.watched = make(map[string]int)
		w.mu.Unlock()
	}()

	w.Sync()
	w.logger.Debug("resource watcher started")

	pending := make(map[string]fsnotify.Op)
	var flushTimer *time.Timer
	var flushCh <-chan time.Time
	schedule := func() {
		if flushTimer == nil {
			flushTimer = time.NewTimer(w.debounce)
			flushCh = flushTimer.C
			return
		}
		flushTimer.Reset(w.debounce)
	}

	for {
		select {
		case <-ctx.Done():
			if flushTimer != nil {
				flushTimer.Stop()
			}
			w.logger.Debug("resource watcher stopped")
			return nil

		case <-flushCh:
			w.flush(ctx, pending)
			pending = make(map[string]fsnotify.Op)

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			pending[filepath.Clean(ev.Name)] |= ev.Op
			schedule()

		case watchErr, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logging.WarnWithContext(w.logger, "resource watcher error", "watcher_error",
				logging.Error(watchErr),
				logging.String(logging.FieldImpact, "file changes may go unnoticed"),
			)
		}
	}
}

// Sync adds the directory of every registered file resource to the watch
// list. It is a no-op while the watcher is not running.
func (w *Watcher) Sync() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fsw == nil {
		return
	}
	wanted := make(map[string]int)
	for _, res := range w.cache.Registry().Resources() {
		if !res.Key.IsFile() {
			continue
		}
		wanted[filepath.Dir(res.Key.Path)]++
	}
	// Only directories fsnotify accepted are recorded, so a failed one is
	// retried on the next Sync and never removed.
	watched := make(map[string]int, len(wanted))
	for dir, refs := range wanted {
		if _, ok := w.watched[dir]; !ok {
			if err := w.fsw.Add(dir); err != nil {
				w.logger.Debug("watch directory failed", logging.String("dir", dir), logging.Error(err))
				continue
			}
		}
		watched[dir] = refs
	}
	for dir := range w.watched {
		if _, ok := watched[dir]; !ok {
			_ = w.fsw.Remove(dir)
		}
	}
	w.watched = watched
}

func (w *Watcher) flush(ctx context.Context, pending map[string]fsnotify.Op) {
	if len(pending) == 0 {
		return
	}
	reg := w.cache.Registry()
	for _, res := range reg.Resources() {
		if !res.Key.IsFile() {
			continue
		}
		op, changed := pending[res.Key.Path]
		if !changed {
			// Image sequences change when any frame in their directory does.
			op, changed = pendingInDir(pending, filepath.Dir(res.Key.Path), res.Key)
		}
		if !changed {
			continue
		}
		dropped := w.cache.Invalidate(res.ID)
		kind := "updated"
		if err := reg.Refresh(ctx, res.ID); err != nil {
			kind = "removed"
			logging.WarnWithContext(w.logger, "resource refresh failed", "resource_refresh_failed",
				logging.Resource(int(res.ID)),
				logging.String("path", res.Key.Path),
				logging.String("op", op.String()),
				logging.Error(err),
				logging.String(logging.FieldImpact, "clips keep the previous frame count"),
			)
		} else {
			w.logger.Info("resource changed on disk",
				logging.Resource(int(res.ID)),
				logging.String("path", res.Key.Path),
				logging.Int("dropped_frames", dropped),
			)
		}
		if w.cb != nil {
			w.cb(kind, res.ID, res.Key)
		}
	}
}

func pendingInDir(pending map[string]fsnotify.Op, dir string, key Key) (fsnotify.Op, bool) {
	if !isSequence(key) {
		return 0, false
	}
	var op fsnotify.Op
	found := false
	for path, o := range pending {
		if filepath.Dir(path) == dir {
			op |= o
			found = true
		}
	}
	return op, found
}
