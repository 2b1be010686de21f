package resource

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"storyboard/internal/logging"
	"storyboard/internal/timeline"
)

// Decoder opens frame sources on disk.
type Decoder interface {
	Open(ctx context.Context, key Key) (Handle, error)
}

// Handle is an open frame source. Frame numbers are 1-based.
type Handle interface {
	FrameCount(ctx context.Context) (int, error)
	Frame(ctx context.Context, frame int) (image.Image, error)
	Close() error
}

// SectionSource renders the frames of a storyboard section so a section clip
// can be read like any other resource.
type SectionSource interface {
	SectionFrameCount(name string) (int, error)
	SectionFrame(ctx context.Context, name string, frame int) (image.Image, error)
}

// Stamp identifies one version of a file on disk.
type Stamp struct {
	Size    int64
	ModTime time.Time
}

// ProbeStore persists frame counts across sessions.
type ProbeStore interface {
	Lookup(ctx context.Context, key Key, stamp Stamp) (int, bool, error)
	Store(ctx context.Context, key Key, stamp Stamp, frames int) error
}

// Resource describes one registered frame source.
type Resource struct {
	ID         ID
	Key        Key
	FrameCount int
}

type entry struct {
	Resource
	handle Handle
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logging.NewComponentLogger(logger, "resource") }
}

// WithSectionSource wires section clips to the storyboard.
func WithSectionSource(src SectionSource) Option {
	return func(r *Registry) { r.sections = src }
}

// WithProbeStore enables the persistent frame count cache.
func WithProbeStore(store ProbeStore) Option {
	return func(r *Registry) { r.probes = store }
}

// WithBusyBackoff sets the initial and maximum wait between busy retries.
func WithBusyBackoff(initial, maxWait time.Duration) Option {
	return func(r *Registry) {
		if initial > 0 {
			r.backoff = initial
		}
		if maxWait >= r.backoff {
			r.maxBackoff = maxWait
		}
	}
}

// Registry maps resource identities to IDs and owns the decoder handles.
type Registry struct {
	mu       sync.Mutex
	byKey    map[Key]ID
	entries  map[ID]*entry
	nextID   ID
	decoder  Decoder
	sections SectionSource
	probes   ProbeStore
	logger   *slog.Logger

	// slot admits one decode at a time.
	slot       *semaphore.Weighted
	backoff    time.Duration
	maxBackoff time.Duration
}

// NewRegistry constructs a registry over decoder.
func NewRegistry(decoder Decoder, opts ...Option) *Registry {
	r := &Registry{
		byKey:      make(map[Key]ID),
		entries:    make(map[ID]*entry),
		nextID:     1,
		decoder:    decoder,
		logger:     logging.NewComponentLogger(nil, "resource"),
		slot:       semaphore.NewWeighted(1),
		backoff:    10 * time.Millisecond,
		maxBackoff: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetSectionSource replaces the section collaborator.
func (r *Registry) SetSectionSource(src SectionSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sections = src
}

// GetOrCreate returns the ID registered for key, probing the source's frame
// count on first use. A failed probe registers nothing.
func (r *Registry) GetOrCreate(ctx context.Context, key Key) (ID, error) {
	key = key.normalize()
	r.mu.Lock()
	if id, ok := r.byKey[key]; ok {
		r.mu.Unlock()
		return id, nil
	}
	r.mu.Unlock()

	count, handle, err := r.probe(ctx, key)
	if err != nil {
		return NoResource, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Another caller may have registered the key while we probed.
	if id, ok := r.byKey[key]; ok {
		if handle != nil {
			_ = handle.Close()
		}
		return id, nil
	}
	id := r.nextID
	r.nextID++
	r.byKey[key] = id
	r.entries[id] = &entry{Resource: Resource{ID: id, Key: key, FrameCount: count}, handle: handle}
	r.logger.Debug("resource registered",
		logging.Resource(int(id)),
		logging.String("path", key.Path),
		logging.String("kind", key.Kind.String()),
		logging.Int("frame_count", count),
	)
	return id, nil
}

// Lookup returns the ID of an already registered key.
func (r *Registry) Lookup(key Key) (ID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byKey[key.normalize()]
	return id, ok
}

// Resource returns a copy of the registered resource.
func (r *Registry) Resource(id ID) (Resource, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return Resource{}, false
	}
	return e.Resource, true
}

// Resources lists every registered resource ordered by ID.
func (r *Registry) Resources() []Resource {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Resource, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Resource)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Refresh re-probes the frame count of a registered resource. On failure the
// previous count is kept.
func (r *Registry) Refresh(ctx context.Context, id ID) error {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("refresh resource %d: %w", id, ErrUnknownResource)
	}
	key := e.Key
	r.mu.Unlock()

	// The old handle may be mid-decode; close it only while holding the slot.
	err := r.withDecoder(ctx, func() error {
		r.mu.Lock()
		var old Handle
		if e, ok := r.entries[id]; ok {
			old, e.handle = e.handle, nil
		}
		r.mu.Unlock()
		if old != nil {
			_ = old.Close()
		}
		return nil
	})
	if err != nil {
		return err
	}

	count, handle, err := r.probe(ctx, key)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok = r.entries[id]
	if !ok {
		if handle != nil {
			_ = handle.Close()
		}
		return fmt.Errorf("refresh resource %d: %w", id, ErrUnknownResource)
	}
	if e.FrameCount != count {
		r.logger.Info("resource frame count changed",
			logging.Resource(int(id)),
			logging.String("path", key.Path),
			logging.Int("previous", e.FrameCount),
			logging.Int("frame_count", count),
		)
	}
	e.FrameCount = count
	e.handle = handle
	return nil
}

// Close closes the decoder handle of a resource and forgets it. The ID is
// never reissued.
func (r *Registry) Close(id ID) error {
	r.mu.Lock()
	e, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
		delete(r.byKey, e.Key)
	}
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("close resource %d: %w", id, ErrUnknownResource)
	}
	if e.handle != nil {
		return e.handle.Close()
	}
	return nil
}

// CloseAll closes every handle and empties the registry.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[ID]*entry)
	r.byKey = make(map[Key]ID)
	r.mu.Unlock()
	var errs []error
	for _, e := range entries {
		if e.handle != nil {
			errs = append(errs, e.handle.Close())
		}
	}
	return errors.Join(errs...)
}

// Frame decodes one frame of a registered resource.
func (r *Registry) Frame(ctx context.Context, id ID, frame int) (image.Image, error) {
	r.mu.Lock()
	e, ok := r.entries[id]
	var res Resource
	var sections SectionSource
	if ok {
		res = e.Resource
		sections = r.sections
	}
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("frame %d of resource %d: %w", frame, id, ErrUnknownResource)
	}
	if frame < 1 || (frame > res.FrameCount && res.Key.Kind != timeline.KindSingleImage) {
		return nil, fmt.Errorf("frame %d of %s (1-%d): %w", frame, res.Key, res.FrameCount, ErrFrameOutOfRange)
	}

	// Section frames resolve to other resources, which take the decoder slot
	// themselves.
	if res.Key.Kind == timeline.KindSection {
		if sections == nil {
			return nil, fmt.Errorf("section %q: %w", res.Key.Path, ErrNoSectionSource)
		}
		img, err := sections.SectionFrame(ctx, res.Key.Path, frame)
		if err != nil {
			return nil, fmt.Errorf("section %q frame %d: %w", res.Key.Path, frame, err)
		}
		return img, nil
	}

	var img image.Image
	err := r.withDecoder(ctx, func() error {
		handle, err := r.handleFor(ctx, id)
		if err != nil {
			return err
		}
		img, err = handle.Frame(ctx, frame)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrDecodeFailed) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("frame %d of %s: %w: %w", frame, res.Key, ErrDecodeFailed, err)
	}
	return img, nil
}

// handleFor returns the open handle of a resource, reopening it lazily.
// Callers hold the decoder slot.
func (r *Registry) handleFor(ctx context.Context, id ID) (Handle, error) {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("resource %d: %w", id, ErrUnknownResource)
	}
	if e.handle != nil {
		h := e.handle
		r.mu.Unlock()
		return h, nil
	}
	key := e.Key
	r.mu.Unlock()

	handle, err := r.decoder.Open(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w: %w", key, ErrDecodeFailed, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok = r.entries[id]; !ok {
		_ = handle.Close()
		return nil, fmt.Errorf("resource %d: %w", id, ErrUnknownResource)
	}
	e.handle = handle
	return handle, nil
}

// probe determines the frame count of key, consulting the probe store for
// files whose stamp is unchanged. The returned handle may be nil.
func (r *Registry) probe(ctx context.Context, key Key) (int, Handle, error) {
	if key.Kind == timeline.KindSection {
		r.mu.Lock()
		sections := r.sections
		r.mu.Unlock()
		if sections == nil {
			return 0, nil, fmt.Errorf("section %q: %w", key.Path, ErrNoSectionSource)
		}
		count, err := sections.SectionFrameCount(key.Path)
		if err != nil || count < 1 {
			return 0, nil, fmt.Errorf("section %q: %w", key.Path, joinCause(ErrSizeUnavailable, err))
		}
		return count, nil, nil
	}

	stamp, stamped := fileStamp(key.Path)
	if stamped && r.probes != nil {
		count, ok, err := r.probes.Lookup(ctx, key, stamp)
		if err != nil {
			logging.WarnWithContext(r.logger, "probe cache lookup failed", "probe_cache_lookup_failed",
				logging.String("path", key.Path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "frame count is probed again"),
			)
		} else if ok && count > 0 {
			return count, nil, nil
		}
	}

	var (
		count  int
		handle Handle
	)
	err := r.withDecoder(ctx, func() error {
		h, err := r.decoder.Open(ctx, key)
		if err != nil {
			return fmt.Errorf("open %s: %w: %w", key, ErrSizeUnavailable, err)
		}
		n, err := h.FrameCount(ctx)
		if err != nil || n < 1 {
			_ = h.Close()
			return fmt.Errorf("probe %s: %w", key, joinCause(ErrSizeUnavailable, err))
		}
		count, handle = n, h
		return nil
	})
	if err != nil {
		return 0, nil, err
	}

	if stamped && r.probes != nil {
		if err := r.probes.Store(ctx, key, stamp, count); err != nil {
			logging.WarnWithContext(r.logger, "probe cache store failed", "probe_cache_store_failed",
				logging.String("path", key.Path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "frame count will be probed again next session"),
			)
		}
	}
	return count, handle, nil
}

// withDecoder runs fn while holding the decoder slot. A held slot or an
// ErrDecoderBusy result is retried with exponential backoff until ctx ends.
func (r *Registry) withDecoder(ctx context.Context, fn func() error) error {
	wait := r.backoff
	for {
		if r.slot.TryAcquire(1) {
			err := fn()
			r.slot.Release(1)
			if !errors.Is(err, ErrDecoderBusy) {
				return err
			}
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		wait *= 2
		if wait > r.maxBackoff {
			wait = r.maxBackoff
		}
	}
}

func fileStamp(path string) (Stamp, bool) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return Stamp{}, false
	}
	return Stamp{Size: info.Size(), ModTime: info.ModTime().UTC()}, true
}

func joinCause(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %w", sentinel, cause)
}
