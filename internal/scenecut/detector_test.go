package scenecut

import (
	"context"
	"errors"
	"image/color"
	"testing"

	"storyboard/internal/resource"
	"storyboard/internal/testsupport"
	"storyboard/internal/timeline"
	"storyboard/internal/undo"
)

type fixture struct {
	dec      *testsupport.SyntheticDecoder
	cache    *resource.Cache
	history  *undo.Engine
	board    *timeline.Storyboard
	detector *Detector
}

func newFixture(t *testing.T, width, height int) *fixture {
	t.Helper()
	dec := testsupport.NewSyntheticDecoder()
	cache := resource.NewCache(resource.NewRegistry(dec), width, height)
	history := undo.New(0, nil)
	return &fixture{
		dec:      dec,
		cache:    cache,
		history:  history,
		board:    timeline.New(25, width, height),
		detector: New(cache, history, DefaultOptions(), nil),
	}
}

func (f *fixture) addClip(t *testing.T, path string, from, to int) timeline.ClipID {
	t.Helper()
	id, err := f.board.AppendClip(timeline.MainSectionID, timeline.NewClip(timeline.KindMovie, path, from, to))
	if err != nil {
		t.Fatalf("AppendClip: %v", err)
	}
	return id
}

func clipRange(t *testing.T, board *timeline.Storyboard, id timeline.ClipID) (int, int) {
	t.Helper()
	clip, _, ok := board.Clip(id)
	if !ok {
		t.Fatalf("clip %d not found", id)
	}
	return clip.From, clip.To
}

func TestSplitTwoSolidScenes(t *testing.T) {
	f := newFixture(t, 64, 48)
	f.dec.TwoScenes("/synthetic/a.mov", 10, 10)
	id := f.addClip(t, "/synthetic/a.mov", 1, 20)

	res, err := f.detector.Run(context.Background(), f.board, id, ModeSplit)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Clips) != 2 || len(res.Cuts) != 1 || res.Cuts[0] != 11 {
		t.Fatalf("expected one cut at 11, got cuts %v clips %v", res.Cuts, res.Clips)
	}
	if from, to := clipRange(t, f.board, res.Clips[0]); from != 1 || to != 10 {
		t.Fatalf("expected first clip 1-10, got %d-%d", from, to)
	}
	if from, to := clipRange(t, f.board, res.Clips[1]); from != 11 || to != 20 {
		t.Fatalf("expected second clip 11-20, got %d-%d", from, to)
	}
	if res.Stop != StopRangeEnd {
		t.Fatalf("expected range end, got %s", res.Stop)
	}
	if got := len(f.board.Main().Clips); got != 2 {
		t.Fatalf("expected 2 clips in MAIN, got %d", got)
	}
	if res.Scanned != 19 || res.Diffs.Max == 0 {
		t.Fatalf("unexpected summary %+v (scanned %d)", res.Diffs, res.Scanned)
	}

	rid, ok := f.cache.Registry().Lookup(resource.Key{Kind: timeline.KindMovie, Path: "/synthetic/a.mov"})
	if !ok {
		t.Fatal("resource not registered")
	}
	if !f.cache.Contains(rid, 1) || !f.cache.Contains(rid, 11) {
		t.Fatalf("expected scene starts to be cached")
	}
	if stats := f.cache.Stats(); stats.Entries != 2 {
		t.Fatalf("expected only scene starts cached, got %d entries", stats.Entries)
	}
}

func TestSplitIsOneUndoStep(t *testing.T) {
	f := newFixture(t, 64, 48)
	f.dec.Add("/synthetic/a.mov", &testsupport.SyntheticSource{Scenes: []testsupport.Scene{
		{Frames: 6, Color: testsupport.Red},
		{Frames: 6, Color: testsupport.Blue},
		{Frames: 6, Color: testsupport.Red},
	}})
	id := f.addClip(t, "/synthetic/a.mov", 1, 18)
	before := f.board.Clone()

	res, err := f.detector.Run(context.Background(), f.board, id, ModeSplit)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Clips) != 3 {
		t.Fatalf("expected 3 scenes, got %v", res.Cuts)
	}
	if f.history.GroupDepth() != 0 {
		t.Fatalf("expected group closed, depth %d", f.history.GroupDepth())
	}
	restored, ok := f.history.Undo(f.board)
	if !ok {
		t.Fatal("expected an undo step")
	}
	if got := len(restored.Main().Clips); got != 1 {
		t.Fatalf("expected undo to restore a single clip, got %d", got)
	}
	if from, to := clipRange(t, restored, id); from != 1 || to != 18 {
		t.Fatalf("expected 1-18 after undo, got %d-%d", from, to)
	}
	if _, ok := f.history.Undo(restored); ok {
		t.Fatal("expected exactly one undo step")
	}
	if len(before.Main().Clips) != 1 {
		t.Fatal("snapshot aliased the live board")
	}
}

func TestNextCutSetsLastFrame(t *testing.T) {
	f := newFixture(t, 64, 48)
	f.dec.TwoScenes("/synthetic/a.mov", 10, 10)
	id := f.addClip(t, "/synthetic/a.mov", 2, 3)

	res, err := f.detector.Run(context.Background(), f.board, id, ModeNextCut)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Stop != StopCutFound {
		t.Fatalf("expected cut found, got %s", res.Stop)
	}
	if from, to := clipRange(t, f.board, id); from != 2 || to != 10 {
		t.Fatalf("expected 2-10, got %d-%d", from, to)
	}
	if len(f.board.Main().Clips) != 1 {
		t.Fatal("next-cut mode must not insert clips")
	}
}

func TestNextCutRunsToSourceEnd(t *testing.T) {
	f := newFixture(t, 64, 48)
	f.dec.Add("/synthetic/a.mov", &testsupport.SyntheticSource{Scenes: []testsupport.Scene{{Frames: 15, Color: testsupport.Red}}})
	id := f.addClip(t, "/synthetic/a.mov", 1, 2)

	res, err := f.detector.Run(context.Background(), f.board, id, ModeNextCut)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Stop != StopRangeEnd {
		t.Fatalf("expected range end, got %s", res.Stop)
	}
	if _, to := clipRange(t, f.board, id); to != 15 {
		t.Fatalf("expected clip to run to 15, got %d", to)
	}
}

func TestBoostSuppressesShortScenes(t *testing.T) {
	f := newFixture(t, 64, 48)
	shade := color.RGBA{R: 20, G: 91, B: 220, A: 255}
	f.dec.Add("/synthetic/a.mov", &testsupport.SyntheticSource{Scenes: []testsupport.Scene{
		{Frames: 5, Color: testsupport.Red},
		{Frames: 1, Color: testsupport.Blue},
		{Frames: 2, Color: shade},
		{Frames: 4, Color: testsupport.Blue},
	}})
	id := f.addClip(t, "/synthetic/a.mov", 1, 12)

	res, err := f.detector.Run(context.Background(), f.board, id, ModeSplit)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// The shade change right after the cut at 6 is absorbed by the boosted
	// threshold; once decayed, the change back at 9 is a cut.
	if len(res.Cuts) != 2 || res.Cuts[0] != 6 || res.Cuts[1] != 9 {
		t.Fatalf("expected cuts [6 9], got %v", res.Cuts)
	}
}

func TestDimensionMismatchStopsScan(t *testing.T) {
	f := newFixture(t, 0, 0)
	f.dec.Add("/synthetic/a.mov", &testsupport.SyntheticSource{
		Width: 16, Height: 16,
		Scenes:   []testsupport.Scene{{Frames: 10, Color: testsupport.Red}},
		SizeAt:   6,
		AltWidth: 8, AltHeight: 8,
	})
	id := f.addClip(t, "/synthetic/a.mov", 1, 10)

	res, err := f.detector.Run(context.Background(), f.board, id, ModeSplit)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Stop != StopDimensionMismatch {
		t.Fatalf("expected dimension mismatch, got %s", res.Stop)
	}
	if from, to := clipRange(t, f.board, id); from != 1 || to != 5 {
		t.Fatalf("expected 1-5, got %d-%d", from, to)
	}
	if len(res.Clips) != 2 {
		t.Fatalf("expected the remainder as its own clip, got %v", res.Clips)
	}
	if from, to := clipRange(t, f.board, res.Clips[1]); from != 6 || to != 10 {
		t.Fatalf("expected remainder 6-10, got %d-%d", from, to)
	}
}

func TestCancellationKeepsBoardConsistent(t *testing.T) {
	f := newFixture(t, 64, 48)
	f.dec.TwoScenes("/synthetic/a.mov", 10, 10)
	id := f.addClip(t, "/synthetic/a.mov", 1, 20)
	f.detector.SetProgress(func(p ProgressInfo) bool { return p.Frame < 5 })

	res, err := f.detector.Run(context.Background(), f.board, id, ModeSplit)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Stop != StopCancelled {
		t.Fatalf("expected cancelled, got %s", res.Stop)
	}
	if from, to := clipRange(t, f.board, id); from != 1 || to != 20 {
		t.Fatalf("expected untouched clip, got %d-%d", from, to)
	}
	if f.history.CanUndo() {
		t.Fatal("a run without edits must not record an undo step")
	}
}

func TestContextCancellation(t *testing.T) {
	f := newFixture(t, 64, 48)
	f.dec.TwoScenes("/synthetic/a.mov", 10, 10)
	id := f.addClip(t, "/synthetic/a.mov", 1, 20)
	ctx, cancel := context.WithCancel(context.Background())
	f.detector.SetProgress(func(p ProgressInfo) bool {
		if p.Frame == 3 {
			cancel()
		}
		return true
	})
	res, err := f.detector.Run(ctx, f.board, id, ModeSplit)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Stop != StopCancelled {
		t.Fatalf("expected cancelled, got %s", res.Stop)
	}
}

func TestRunSectionJoinsFailures(t *testing.T) {
	f := newFixture(t, 64, 48)
	f.dec.TwoScenes("/synthetic/a.mov", 5, 5)
	f.dec.TwoScenes("/synthetic/b.mov", 3, 4)
	f.addClip(t, "/synthetic/a.mov", 1, 10)
	f.addClip(t, "/synthetic/missing.mov", 1, 10)
	f.addClip(t, "/synthetic/b.mov", 1, 7)
	if _, err := f.board.AppendClip(timeline.MainSectionID, timeline.Clip{Kind: timeline.KindColor, Loop: 1, StepDensity: 1}); err != nil {
		t.Fatalf("AppendClip color: %v", err)
	}

	results, err := f.detector.RunSection(context.Background(), f.board, timeline.MainSectionID, ModeSplit)
	if !errors.Is(err, resource.ErrSizeUnavailable) {
		t.Fatalf("expected the missing source to be reported, got %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[1].Stop != StopDecodeError {
		t.Fatalf("expected the unreadable clip to stop with decode-error, got %s", results[1].Stop)
	}
	if results[0].Stop != StopRangeEnd || results[2].Stop != StopRangeEnd {
		t.Fatalf("expected readable clips to reach their range end, got %s and %s", results[0].Stop, results[2].Stop)
	}
	if got := len(f.board.Main().Clips); got != 6 {
		t.Fatalf("expected 6 clips after splitting two, got %d", got)
	}
	restored, ok := f.history.Undo(f.board)
	if !ok || len(restored.Main().Clips) != 4 {
		t.Fatalf("expected one undo step restoring 4 clips")
	}
}

func TestRunRejectsFramelessClip(t *testing.T) {
	f := newFixture(t, 64, 48)
	id, err := f.board.AppendClip(timeline.MainSectionID, timeline.Clip{Kind: timeline.KindComment, Loop: 1, StepDensity: 1})
	if err != nil {
		t.Fatalf("AppendClip: %v", err)
	}
	res, err := f.detector.Run(context.Background(), f.board, id, ModeSplit)
	if !errors.Is(err, resource.ErrNoFrames) {
		t.Fatalf("expected ErrNoFrames, got %v", err)
	}
	if res.Stop != StopDecodeError {
		t.Fatalf("expected decode-error for an unscannable clip, got %s", res.Stop)
	}
}
