package resource

import (
	"context"
	"errors"
	"image"
	"image/color"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"storyboard/internal/timeline"
)

type fakeSource struct {
	frames  int
	width   int
	height  int
	colorOf func(frame int) color.RGBA
}

type fakeDecoder struct {
	mu        sync.Mutex
	sources   map[string]*fakeSource
	opens     int
	decodes   int
	busyTimes int
	failOpen  error
	failFrame error

	// gate, when set, holds every Frame call until closed; entered receives
	// one value per call that reached the gate.
	gate          chan struct{}
	entered       chan struct{}
	inFrame       int
	closes        int
	closedInFrame bool
}

func newFakeDecoder() *fakeDecoder {
	return &fakeDecoder{sources: make(map[string]*fakeSource)}
}

func (d *fakeDecoder) add(path string, frames int) {
	d.sources[filepath.Clean(path)] = &fakeSource{frames: frames, width: 8, height: 6, colorOf: func(frame int) color.RGBA {
		return color.RGBA{R: uint8(frame), A: 255}
	}}
}

func (d *fakeDecoder) Open(_ context.Context, key Key) (Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failOpen != nil {
		return nil, d.failOpen
	}
	src, ok := d.sources[key.Path]
	if !ok {
		return nil, errors.New("no such file")
	}
	d.opens++
	return &fakeHandle{dec: d, src: src}, nil
}

type fakeHandle struct {
	dec *fakeDecoder
	src *fakeSource
}

func (h *fakeHandle) FrameCount(context.Context) (int, error) { return h.src.frames, nil }

func (h *fakeHandle) Frame(_ context.Context, frame int) (image.Image, error) {
	h.dec.mu.Lock()
	gate := h.dec.gate
	h.dec.inFrame++
	h.dec.mu.Unlock()
	defer func() {
		h.dec.mu.Lock()
		h.dec.inFrame--
		h.dec.mu.Unlock()
	}()
	if gate != nil {
		h.dec.entered <- struct{}{}
		<-gate
	}

	h.dec.mu.Lock()
	defer h.dec.mu.Unlock()
	if h.dec.busyTimes > 0 {
		h.dec.busyTimes--
		return nil, ErrDecoderBusy
	}
	if h.dec.failFrame != nil {
		return nil, h.dec.failFrame
	}
	h.dec.decodes++
	img := image.NewRGBA(image.Rect(0, 0, h.src.width, h.src.height))
	c := h.src.colorOf(frame)
	for y := 0; y < h.src.height; y++ {
		for x := 0; x < h.src.width; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img, nil
}

func (h *fakeHandle) Close() error {
	h.dec.mu.Lock()
	defer h.dec.mu.Unlock()
	h.dec.closes++
	if h.dec.inFrame > 0 {
		h.dec.closedInFrame = true
	}
	return nil
}

func newTestCache(t *testing.T, dec *fakeDecoder, opts ...Option) *Cache {
	t.Helper()
	opts = append([]Option{WithBusyBackoff(time.Millisecond, 4*time.Millisecond)}, opts...)
	return NewCache(NewRegistry(dec, opts...), 4, 3)
}

func TestGetOrCreateReturnsStableIDs(t *testing.T) {
	dec := newFakeDecoder()
	dec.add("/media/a.mov", 10)
	reg := NewRegistry(dec)
	ctx := context.Background()

	first, err := reg.GetOrCreate(ctx, Key{Kind: timeline.KindMovie, Path: "/media/a.mov"})
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	again, err := reg.GetOrCreate(ctx, Key{Kind: timeline.KindMovie, Path: "/media/./a.mov"})
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if first != again {
		t.Fatalf("expected same ID for same key, got %d and %d", first, again)
	}
	track, err := reg.GetOrCreate(ctx, Key{Kind: timeline.KindMovie, Path: "/media/a.mov", Track: 2})
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if track == first {
		t.Fatalf("expected a distinct ID for another track")
	}
	res, ok := reg.Resource(first)
	if !ok || res.FrameCount != 10 {
		t.Fatalf("unexpected resource %+v (ok=%v)", res, ok)
	}
	if dec.opens != 2 {
		t.Fatalf("expected 2 probes, got %d", dec.opens)
	}
}

func TestGetOrCreateFailureRegistersNothing(t *testing.T) {
	dec := newFakeDecoder()
	reg := NewRegistry(dec)
	_, err := reg.GetOrCreate(context.Background(), Key{Kind: timeline.KindMovie, Path: "/missing.mov"})
	if !errors.Is(err, ErrSizeUnavailable) {
		t.Fatalf("expected ErrSizeUnavailable, got %v", err)
	}
	if len(reg.Resources()) != 0 {
		t.Fatalf("expected empty registry, got %v", reg.Resources())
	}
}

func TestFetchStoresAndNoStoreDoesNot(t *testing.T) {
	dec := newFakeDecoder()
	dec.add("/media/a.mov", 10)
	cache := newTestCache(t, dec)
	ctx := context.Background()
	id, err := cache.Registry().GetOrCreate(ctx, Key{Kind: timeline.KindMovie, Path: "/media/a.mov"})
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	buf, fresh, err := cache.FetchNoStore(ctx, id, 3)
	if err != nil {
		t.Fatalf("FetchNoStore: %v", err)
	}
	if !fresh {
		t.Fatalf("expected a fresh buffer")
	}
	if buf.Width != 4 || buf.Height != 3 || buf.BPP != BytesPerPixel {
		t.Fatalf("unexpected buffer geometry %dx%d@%d", buf.Width, buf.Height, buf.BPP)
	}
	if buf.Pix[0] != 3 || buf.Pix[3] != 255 {
		t.Fatalf("unexpected pixel %v", buf.Pix[:4])
	}
	cache.Release(buf)
	if cache.Contains(id, 3) {
		t.Fatalf("no-store fetch must not populate the cache")
	}

	stored, err := cache.Fetch(ctx, id, 4)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !cache.Contains(id, 4) {
		t.Fatalf("expected frame 4 to be cached")
	}
	again, err := cache.Fetch(ctx, id, 4)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if again != stored {
		t.Fatalf("expected cached buffer to be reused")
	}
	if dec.decodes != 2 {
		t.Fatalf("expected 2 decodes, got %d", dec.decodes)
	}
	stats := cache.Stats()
	if stats.Entries != 1 || stats.Hits != 1 || stats.Bytes != int64(4*3*BytesPerPixel) {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestAddKeepsNoStoreBuffer(t *testing.T) {
	dec := newFakeDecoder()
	dec.add("/media/a.mov", 10)
	cache := newTestCache(t, dec)
	ctx := context.Background()
	id, _ := cache.Registry().GetOrCreate(ctx, Key{Kind: timeline.KindMovie, Path: "/media/a.mov"})

	buf, _, err := cache.FetchNoStore(ctx, id, 1)
	if err != nil {
		t.Fatalf("FetchNoStore: %v", err)
	}
	if err := cache.Add(id, 1, buf); err != nil {
		t.Fatalf("Add: %v", err)
	}
	got, fresh, err := cache.FetchNoStore(ctx, id, 1)
	if err != nil {
		t.Fatalf("FetchNoStore: %v", err)
	}
	if fresh || got != buf {
		t.Fatalf("expected the stored buffer back")
	}
	// Releasing a stored buffer must not recycle it.
	cache.Release(got)
	if len(buf.Pix) == 0 {
		t.Fatalf("stored buffer was recycled")
	}
}

func TestFrameErrorsLeaveCacheUntouched(t *testing.T) {
	dec := newFakeDecoder()
	dec.add("/media/a.mov", 5)
	cache := newTestCache(t, dec)
	ctx := context.Background()
	id, _ := cache.Registry().GetOrCreate(ctx, Key{Kind: timeline.KindMovie, Path: "/media/a.mov"})

	if _, err := cache.Fetch(ctx, id, 6); !errors.Is(err, ErrFrameOutOfRange) {
		t.Fatalf("expected ErrFrameOutOfRange, got %v", err)
	}
	dec.failFrame = errors.New("corrupt packet")
	if _, err := cache.Fetch(ctx, id, 2); !errors.Is(err, ErrDecodeFailed) {
		t.Fatalf("expected ErrDecodeFailed, got %v", err)
	}
	if _, err := cache.Fetch(ctx, ID(99), 1); !errors.Is(err, ErrUnknownResource) {
		t.Fatalf("expected ErrUnknownResource, got %v", err)
	}
	if cache.Stats().Entries != 0 {
		t.Fatalf("failed fetches must not store entries")
	}
	dec.failFrame = nil
	if _, err := cache.Fetch(ctx, id, 2); err != nil {
		t.Fatalf("Fetch after recovery: %v", err)
	}
}

func TestBusyDecoderIsRetried(t *testing.T) {
	dec := newFakeDecoder()
	dec.add("/media/a.mov", 5)
	dec.busyTimes = 3
	cache := newTestCache(t, dec)
	ctx := context.Background()
	id, _ := cache.Registry().GetOrCreate(ctx, Key{Kind: timeline.KindMovie, Path: "/media/a.mov"})

	if _, err := cache.Fetch(ctx, id, 1); err != nil {
		t.Fatalf("expected busy decoder to be retried, got %v", err)
	}
	if dec.busyTimes != 0 {
		t.Fatalf("expected all busy responses consumed, %d left", dec.busyTimes)
	}
}

func TestBusyDecoderHonoursCancellation(t *testing.T) {
	dec := newFakeDecoder()
	dec.add("/media/a.mov", 5)
	cache := newTestCache(t, dec)
	id, _ := cache.Registry().GetOrCreate(context.Background(), Key{Kind: timeline.KindMovie, Path: "/media/a.mov"})

	dec.busyTimes = 1 << 30
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := cache.Fetch(ctx, id, 1); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestSingleImageIgnoresRange(t *testing.T) {
	dec := newFakeDecoder()
	dec.add("/media/still.png", 1)
	cache := newTestCache(t, dec)
	ctx := context.Background()
	id, err := cache.Registry().GetOrCreate(ctx, Key{Kind: timeline.KindSingleImage, Path: "/media/still.png"})
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if _, err := cache.Fetch(ctx, id, 40); err != nil {
		t.Fatalf("single images serve any frame number, got %v", err)
	}
}

func TestCloseResourceEvicts(t *testing.T) {
	dec := newFakeDecoder()
	dec.add("/media/a.mov", 5)
	cache := newTestCache(t, dec)
	ctx := context.Background()
	id, _ := cache.Registry().GetOrCreate(ctx, Key{Kind: timeline.KindMovie, Path: "/media/a.mov"})
	if _, err := cache.Fetch(ctx, id, 1); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if err := cache.CloseResource(id); err != nil {
		t.Fatalf("CloseResource: %v", err)
	}
	if cache.Contains(id, 1) {
		t.Fatalf("expected eviction")
	}
	next, _ := cache.Registry().GetOrCreate(ctx, Key{Kind: timeline.KindMovie, Path: "/media/a.mov"})
	if next == id {
		t.Fatalf("closed IDs must not be reissued")
	}
}

type fakeSections struct {
	frames map[string]int
}

func (s fakeSections) SectionFrameCount(name string) (int, error) {
	n, ok := s.frames[name]
	if !ok {
		return 0, timeline.ErrSectionNotFound
	}
	return n, nil
}

func (s fakeSections) SectionFrame(_ context.Context, _ string, frame int) (image.Image, error) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.SetRGBA(0, 0, color.RGBA{G: uint8(frame), A: 255})
	return img, nil
}

func TestSectionResources(t *testing.T) {
	reg := NewRegistry(newFakeDecoder())
	ctx := context.Background()
	key := Key{Kind: timeline.KindSection, Path: "intro"}
	if _, err := reg.GetOrCreate(ctx, key); !errors.Is(err, ErrNoSectionSource) {
		t.Fatalf("expected ErrNoSectionSource, got %v", err)
	}
	reg.SetSectionSource(fakeSections{frames: map[string]int{"intro": 7}})
	id, err := reg.GetOrCreate(ctx, key)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	res, _ := reg.Resource(id)
	if res.FrameCount != 7 {
		t.Fatalf("expected 7 frames, got %d", res.FrameCount)
	}
	cache := NewCache(reg, 0, 0)
	buf, err := cache.Fetch(ctx, id, 5)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if buf.Width != 2 || buf.Pix[1] != 5 {
		t.Fatalf("unexpected section frame %dx%d %v", buf.Width, buf.Height, buf.Pix[:4])
	}
}

type memProbeStore struct {
	counts map[Key]int
}

func (m *memProbeStore) Lookup(_ context.Context, key Key, _ Stamp) (int, bool, error) {
	n, ok := m.counts[key]
	return n, ok, nil
}

func (m *memProbeStore) Store(_ context.Context, key Key, _ Stamp, frames int) error {
	m.counts[key] = frames
	return nil
}

func TestProbeStoreSkipsDecoder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mov")
	writeFile(t, path)
	key := Key{Kind: timeline.KindMovie, Path: path}
	store := &memProbeStore{counts: map[Key]int{key: 42}}
	dec := newFakeDecoder()
	reg := NewRegistry(dec, WithProbeStore(store))
	id, err := reg.GetOrCreate(context.Background(), key)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	res, _ := reg.Resource(id)
	if res.FrameCount != 42 || dec.opens != 0 {
		t.Fatalf("expected cached count without probing, got %d (opens=%d)", res.FrameCount, dec.opens)
	}
}

func TestClipKey(t *testing.T) {
	movie := timeline.NewClip(timeline.KindMovie, " /media/a.mov ", 1, 2)
	movie.Source.Track = 1
	key, err := ClipKey(&movie)
	if err != nil {
		t.Fatalf("ClipKey: %v", err)
	}
	if key.Path != "/media/a.mov" || key.Track != 1 || key.Kind != timeline.KindMovie {
		t.Fatalf("unexpected key %+v", key)
	}
	mask := timeline.NewClip(timeline.KindMask, "/media/matte.png", 1, 1)
	mask.MaskOf = timeline.KindSingleImage
	key, err = ClipKey(&mask)
	if err != nil || key.Kind != timeline.KindSingleImage {
		t.Fatalf("expected mask to read from its media kind, got %+v, %v", key, err)
	}
	comment := timeline.NewClip(timeline.KindComment, "", 0, 0)
	if _, err := ClipKey(&comment); !errors.Is(err, ErrNoFrames) {
		t.Fatalf("expected ErrNoFrames, got %v", err)
	}
}

func TestRefreshWaitsForInFlightDecode(t *testing.T) {
	dec := newFakeDecoder()
	dec.add("/media/a.mov", 10)
	reg := newTestCache(t, dec).Registry()
	ctx := context.Background()

	id, err := reg.GetOrCreate(ctx, Key{Kind: timeline.KindMovie, Path: "/media/a.mov"})
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	dec.gate = make(chan struct{})
	dec.entered = make(chan struct{}, 1)

	decoded := make(chan error, 1)
	go func() {
		_, err := reg.Frame(ctx, id, 1)
		decoded <- err
	}()
	select {
	case <-dec.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("decode never started")
	}

	refreshed := make(chan error, 1)
	go func() { refreshed <- reg.Refresh(ctx, id) }()
	time.Sleep(30 * time.Millisecond)
	dec.mu.Lock()
	closes := dec.closes
	dec.mu.Unlock()
	if closes != 0 {
		t.Fatalf("expected the handle to stay open during the decode, got %d closes", closes)
	}

	close(dec.gate)
	for _, ch := range []chan error{decoded, refreshed} {
		select {
		case err := <-ch:
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("decode or refresh did not finish")
		}
	}
	dec.mu.Lock()
	defer dec.mu.Unlock()
	if dec.closedInFrame {
		t.Fatal("handle was closed while a frame was decoding")
	}
	if dec.closes != 1 {
		t.Fatalf("expected the old handle closed once, got %d", dec.closes)
	}
}
