package scenecut

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"storyboard/internal/logging"
	"storyboard/internal/resource"
	"storyboard/internal/timeline"
	"storyboard/internal/undo"
)

// Mode selects what a run does with the cuts it finds.
type Mode int

const (
	// ModeSplit finds every cut within the clip's range and splits the clip
	// at each one.
	ModeSplit Mode = iota
	// ModeNextCut scans from the clip's first frame to the end of its source
	// and sets the clip's last frame right before the first cut.
	ModeNextCut
)

func (m Mode) String() string {
	if m == ModeNextCut {
		return "next-cut"
	}
	return "split"
}

// StopReason records why a run ended.
type StopReason int

const (
	StopRangeEnd StopReason = iota
	StopCutFound
	StopDimensionMismatch
	StopCancelled
	StopDecodeError
)

func (r StopReason) String() string {
	switch r {
	case StopCutFound:
		return "cut-found"
	case StopDimensionMismatch:
		return "dimension-mismatch"
	case StopCancelled:
		return "cancelled"
	case StopDecodeError:
		return "decode-error"
	default:
		return "range-end"
	}
}

// Summary describes the frame differences seen by one run.
type Summary struct {
	Compared int
	Mean     float64
	StdDev   float64
	Max      float64
}

// Result reports one run over one clip.
type Result struct {
	Clip timeline.ClipID
	Mode Mode
	// Cuts lists the first frame of every new scene.
	Cuts []int
	// Clips lists the clip that now covers each scene, starting with the
	// scanned clip.
	Clips    []timeline.ClipID
	Stop     StopReason
	Scanned  int
	Diffs    Summary
	Duration time.Duration
}

// ProgressInfo is passed to the progress callback once per scanned frame.
type ProgressInfo struct {
	Clip  timeline.ClipID
	Frame int
	First int
	Last  int
	Cuts  int
}

// Progress is called once per scanned frame. It is the run's only yield
// point; returning false cancels the run.
type Progress func(ProgressInfo) bool

// Detector finds scene cuts in clips and rewrites the storyboard accordingly.
type Detector struct {
	cache    *resource.Cache
	history  *undo.Engine
	opts     Options
	logger   *slog.Logger
	progress Progress
	sampler  *logging.ProgressSampler
}

// New constructs a detector. history may be nil when edits need no undo.
func New(cache *resource.Cache, history *undo.Engine, opts Options, logger *slog.Logger) *Detector {
	return &Detector{
		cache:   cache,
		history: history,
		opts:    opts.withDefaults(),
		logger:  logging.NewComponentLogger(logger, "scenecut"),
		sampler: logging.NewProgressSampler(10),
	}
}

// SetProgress installs the per-frame callback.
func (d *Detector) SetProgress(fn Progress) { d.progress = fn }

// Options returns the effective tuning.
func (d *Detector) Options() Options { return d.opts }

// Run scans one clip. The storyboard edits it makes undo as a single step.
// Edits made before a cancellation or decode failure are kept.
func (d *Detector) Run(ctx context.Context, board *timeline.Storyboard, clip timeline.ClipID, mode Mode) (Result, error) {
	if d.history != nil {
		d.history.GroupBegin()
		defer d.history.GroupEnd()
	}
	return d.run(ctx, board, clip, mode)
}

// RunSection scans every frame-bearing clip of a section inside one undo
// group. A failing clip does not stop the batch; failures are joined.
func (d *Detector) RunSection(ctx context.Context, board *timeline.Storyboard, section timeline.SectionID, mode Mode) ([]Result, error) {
	sec, ok := board.Section(section)
	if !ok {
		return nil, fmt.Errorf("scan section %d: %w", section, timeline.ErrSectionNotFound)
	}
	targets := make([]timeline.ClipID, 0, len(sec.Clips))
	for _, c := range sec.Clips {
		if c.Kind.HasFrames() && c.Kind != timeline.KindSingleImage {
			targets = append(targets, c.ID)
		}
	}

	if d.history != nil {
		d.history.GroupBegin()
		defer d.history.GroupEnd()
	}
	ctx = logging.WithSection(ctx, sec.Name)
	var (
		results []Result
		errs    []error
	)
	for _, id := range targets {
		if ctx.Err() != nil {
			break
		}
		res, err := d.run(ctx, board, id, mode)
		results = append(results, res)
		if err != nil {
			errs = append(errs, fmt.Errorf("clip %d: %w", id, err))
			logging.WarnWithContext(d.logger, "scene scan failed", "scene_scan_failed",
				logging.Clip(int(id)),
				logging.Error(err),
				logging.String(logging.FieldImpact, "clip left unsplit past the failure"),
				logging.String(logging.FieldErrorHint, "check that the clip's source is readable"),
			)
		}
		if res.Stop == StopCancelled {
			break
		}
	}
	return results, errors.Join(errs...)
}

// scan holds the state of one run.
type scan struct {
	d      *Detector
	board  *timeline.Storyboard
	mode   Mode
	res    *Result
	logger *slog.Logger

	resource resource.ID
	current  timeline.ClipID
	step     int
	origLast int

	diffThreshold     float64
	diffDiffThreshold float64
	sceneSum          float64
	sceneSeen         int
	diffs             []float64
}

func (d *Detector) run(ctx context.Context, board *timeline.Storyboard, id timeline.ClipID, mode Mode) (Result, error) {
	started := time.Now()
	res := Result{Clip: id, Mode: mode, Clips: []timeline.ClipID{id}}
	// Failures before the first comparison leave the clip unscanned.
	res.Stop = StopDecodeError
	clip, _, ok := board.Clip(id)
	if !ok {
		return res, fmt.Errorf("scan clip %d: %w", id, timeline.ErrClipNotFound)
	}
	key, err := resource.ClipKey(clip)
	if err != nil {
		return res, err
	}
	rid, err := d.cache.Registry().GetOrCreate(ctx, key)
	if err != nil {
		return res, err
	}
	res.Stop = StopRangeEnd
	meta, _ := d.cache.Registry().Resource(rid)

	first, last := clip.From, clip.To
	step := 1
	if first > last {
		step = -1
	}
	if mode == ModeNextCut {
		last = meta.FrameCount
		if step < 0 {
			last = 1
		}
	}
	logger := logging.WithContext(logging.WithClip(ctx, int(id)), d.logger)

	s := &scan{
		d:                 d,
		board:             board,
		mode:              mode,
		res:               &res,
		logger:            logger,
		resource:          rid,
		current:           id,
		step:              step,
		origLast:          clip.To,
		diffThreshold:     d.opts.DiffThreshold,
		diffDiffThreshold: d.opts.DiffDiffThreshold,
	}
	d.sampler.Reset()
	logger.Debug("scene scan started",
		logging.String("mode", mode.String()),
		logging.String("range", fmt.Sprintf("%d-%d", first, last)),
		logging.Resource(int(rid)),
	)

	err = s.loop(ctx, first, last)
	res.Duration = time.Since(started)
	res.Diffs = summarize(s.diffs)
	res.Scanned = len(s.diffs)
	logger.Info("scene scan finished",
		logging.String("mode", mode.String()),
		logging.String("stop", res.Stop.String()),
		logging.Int("scenes", len(res.Clips)),
		logging.Int("frames_scanned", res.Scanned),
		logging.Float64("diff_mean", res.Diffs.Mean),
		logging.Float64("diff_stddev", res.Diffs.StdDev),
		logging.Float64("diff_max", res.Diffs.Max),
		logging.Duration("duration", res.Duration),
	)
	return res, err
}

func (s *scan) loop(ctx context.Context, first, last int) error {
	d := s.d
	prev, err := d.cache.Fetch(ctx, s.resource, first)
	if err != nil {
		s.res.Stop = StopDecodeError
		return fmt.Errorf("first frame %d: %w: %w", first, ErrNoThumbnail, err)
	}
	reference := prev
	// prevOwned marks a no-store buffer that must be released.
	prevOwned := false
	release := func() {
		if prevOwned {
			d.cache.Release(prev)
		}
	}
	defer func() { release() }()

	for frame := first + s.step; s.step*(frame-last) <= 0; frame += s.step {
		if ctx.Err() != nil {
			s.res.Stop = StopCancelled
			return nil
		}
		if d.progress != nil && !d.progress(ProgressInfo{Clip: s.res.Clip, Frame: frame, First: first, Last: last, Cuts: len(s.res.Cuts)}) {
			s.res.Stop = StopCancelled
			return nil
		}
		done := s.step * (frame - first)
		if total := s.step * (last - first); d.sampler.ShouldLog(fmt.Sprint(s.res.Clip), done, total) {
			s.logger.Debug("scene scan progress",
				logging.Frame(frame),
				logging.Float64("progress_percent", 100*float64(done)/float64(max(total, 1))),
				logging.Int("scenes", len(s.res.Clips)),
			)
		}

		curr, fresh, err := d.cache.FetchNoStore(ctx, s.resource, frame)
		if err != nil {
			if ctx.Err() != nil {
				s.res.Stop = StopCancelled
				return nil
			}
			s.res.Stop = StopDecodeError
			return fmt.Errorf("frame %d: %w", frame, err)
		}
		if !curr.SameSize(reference) {
			if fresh {
				d.cache.Release(curr)
			}
			s.res.Stop = StopDimensionMismatch
			s.logger.Info("scene scan stopped at size change",
				logging.Frame(frame),
				logging.String("size", fmt.Sprintf("%dx%d", curr.Width, curr.Height)),
				logging.String(logging.FieldAlert, ErrDimensionMismatch.Error()),
			)
			return s.cutAt(frame, nil, false, true)
		}

		diff, err := OverallColorDiff(prev, curr, d.opts)
		if err != nil {
			if fresh {
				d.cache.Release(curr)
			}
			s.res.Stop = StopDecodeError
			return err
		}
		s.diffs = append(s.diffs, diff)

		if reason, cut := s.isCut(diff); cut {
			s.logger.Debug("scene cut",
				logging.Args(append(logging.DecisionAttrs("scene_cut", "cut", reason),
					logging.Frame(frame),
					logging.Float64("diff", diff),
				)...)...,
			)
			if err := s.cutAt(frame, curr, fresh, false); err != nil {
				if fresh {
					d.cache.Release(curr)
				}
				return err
			}
			// The new scene's first frame is now stored in the cache.
			release()
			prev, prevOwned = curr, false
			if s.mode == ModeNextCut {
				s.res.Stop = StopCutFound
				return nil
			}
			continue
		}

		s.sceneSum += diff
		s.sceneSeen++
		s.decay()
		release()
		prev, prevOwned = curr, fresh
	}

	s.res.Stop = StopRangeEnd
	if s.mode == ModeNextCut {
		return s.setLast(s.current, last)
	}
	return nil
}

// isCut applies the absolute and spike rules with the current thresholds.
func (s *scan) isCut(diff float64) (string, bool) {
	if diff > s.diffThreshold {
		return "diff_threshold", true
	}
	if s.sceneSeen > s.d.opts.MinSceneFrames {
		avg := s.sceneSum / float64(s.sceneSeen)
		if diff > s.d.opts.SpikeFactor*avg && diff > s.diffDiffThreshold {
			return "spike", true
		}
	}
	return "", false
}

func (s *scan) decay() {
	opts := s.d.opts
	s.diffThreshold = math.Max(opts.DiffThreshold, s.diffThreshold/opts.PostCutBoost)
	s.diffDiffThreshold = math.Max(opts.DiffDiffThreshold, s.diffDiffThreshold/opts.PostCutBoost)
}

// cutAt ends the current scene right before frame. In split mode, and when
// the size changes mid-clip, the rest of the range becomes a new clip.
func (s *scan) cutAt(frame int, buf *resource.PixelBuffer, fresh, sizeChange bool) error {
	end := frame - s.step
	split := s.mode == ModeSplit
	if split {
		newID, err := s.splitAt(frame, end)
		if err != nil {
			return err
		}
		s.current = newID
		s.res.Clips = append(s.res.Clips, newID)
	} else if err := s.setLast(s.current, end); err != nil {
		return err
	}
	s.res.Cuts = append(s.res.Cuts, frame)

	if buf != nil && fresh {
		if err := s.d.cache.Add(s.resource, frame, buf); err != nil {
			return err
		}
	}
	if sizeChange {
		return nil
	}
	s.sceneSum, s.sceneSeen = 0, 0
	s.diffThreshold *= s.d.opts.PostCutBoost
	s.diffDiffThreshold *= s.d.opts.PostCutBoost
	return nil
}

// splitAt shortens the current clip to end at end and inserts a copy
// covering frame through the original last frame right after it.
func (s *scan) splitAt(frame, end int) (timeline.ClipID, error) {
	s.push()
	clip, _, ok := s.board.Clip(s.current)
	if !ok {
		return timeline.NoClip, fmt.Errorf("split clip %d: %w", s.current, timeline.ErrClipNotFound)
	}
	from := clip.From
	if err := s.board.SetClipRange(s.current, from, end); err != nil {
		return timeline.NoClip, err
	}
	newID, err := s.board.DuplicateClip(s.current)
	if err != nil {
		return timeline.NoClip, err
	}
	if err := s.board.SetClipRange(newID, frame, s.origLast); err != nil {
		return timeline.NoClip, err
	}
	return newID, nil
}

func (s *scan) setLast(id timeline.ClipID, last int) error {
	clip, _, ok := s.board.Clip(id)
	if !ok {
		return fmt.Errorf("set last frame of clip %d: %w", id, timeline.ErrClipNotFound)
	}
	if clip.To == last {
		return nil
	}
	s.push()
	return s.board.SetClipRange(id, clip.From, last)
}

func (s *scan) push() {
	if s.d.history == nil {
		return
	}
	s.d.history.Push(undo.FeatureSceneSplit, s.res.Clip, s.board)
}

func summarize(diffs []float64) Summary {
	if len(diffs) == 0 {
		return Summary{}
	}
	mean, std := stat.MeanStdDev(diffs, nil)
	if math.IsNaN(std) {
		std = 0
	}
	peak := diffs[0]
	for _, v := range diffs[1:] {
		peak = math.Max(peak, v)
	}
	return Summary{Compared: len(diffs), Mean: mean, StdDev: std, Max: peak}
}
