package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"storyboard/internal/logging"
	"storyboard/internal/resource"
	"storyboard/internal/scenecut"
	"storyboard/internal/session"
	"storyboard/internal/timeline"
)

func newScenesCommand(ctx *commandContext) *cobra.Command {
	var (
		next        bool
		sectionName string
		asJSON      bool
		quiet       bool
	)
	cmd := &cobra.Command{
		Use:   "scenes [clip-id]",
		Short: "Detect scene cuts and split clips at them",
		Long: "Detect scene cuts in one clip, or in every clip of a section with --section.\n" +
			"With --next the clip is trimmed to end right before the first cut instead.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 0) == (sectionName == "") {
				return errors.New("pass either a clip id or --section")
			}
			mode := scenecut.ModeSplit
			if next {
				mode = scenecut.ModeNextCut
			}
			var clipID timeline.ClipID
			if len(args) == 1 {
				id, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid clip id %q", args[0])
				}
				clipID = timeline.ClipID(id)
			}
			stderr := &lockedWriter{w: cmd.ErrOrStderr()}
			colorize := shouldColorize(cmd.ErrOrStderr())
			return ctx.withSession(cmd, false, func(sess *session.Session) error {
				if !quiet {
					sess.SetProgress(scanProgress(stderr, colorize))
				}
				// Media rewritten while the scan runs is re-probed.
				sess.Watch(cmd.Context())
				var (
					results []scenecut.Result
					runErr  error
				)
				if sectionName != "" {
					results, runErr = sess.SplitSection(cmd.Context(), sectionName, mode)
				} else {
					var res scenecut.Result
					res, runErr = sess.DetectScenes(cmd.Context(), clipID, mode)
					if errors.Is(runErr, timeline.ErrClipNotFound) {
						return runErr
					}
					results = []scenecut.Result{res}
				}
				if asJSON {
					if err := writeJSON(cmd, sceneViews(results)); err != nil {
						return err
					}
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), renderScenes(sess.Board(), results))
				}
				return runErr
			}, session.WithChangeCallback(mediaChanged(stderr, colorize)))
		},
	}
	cmd.Flags().BoolVar(&next, "next", false, "Trim the clip at the next cut instead of splitting")
	cmd.Flags().StringVarP(&sectionName, "section", "s", "", "Scan every clip of this section")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not report scan progress on stderr")
	return cmd
}

// lockedWriter serializes writes from the scan and the media watcher.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// mediaChanged reports media files the watcher refreshed during a scan.
func mediaChanged(w io.Writer, colorize bool) resource.ChangeCallback {
	return func(kind string, _ resource.ID, key resource.Key) {
		fmt.Fprintln(w, renderStatusLine("Media", statusWarn, filepath.Base(key.Path)+" "+kind+" on disk", colorize))
	}
}

// progressBucket is the share of a clip's range, in percent, between two
// progress lines.
const progressBucket = 25

// scanProgress reports scan progress as status lines on w, one per clip
// start and one per progressBucket percent of its range.
func scanProgress(w io.Writer, colorize bool) scenecut.Progress {
	sampler := logging.NewProgressSampler(progressBucket)
	return func(p scenecut.ProgressInfo) bool {
		total := p.Last - p.First
		done := p.Frame - p.First
		if total < 0 {
			total, done = -total, -done
		}
		if !sampler.ShouldLog(strconv.Itoa(int(p.Clip)), done, total) {
			return true
		}
		percent := 100 * float64(done) / float64(max(total, 1))
		msg := fmt.Sprintf("frame %d of %s, %d cut(s) (%.0f%%)", p.Frame, rangeLabel(p.First, p.Last), p.Cuts, percent)
		fmt.Fprintln(w, renderStatusLine(fmt.Sprintf("Clip %d", p.Clip), statusInfo, msg, colorize))
		return true
	}
}

type sceneView struct {
	Clip     int     `json:"clip"`
	Mode     string  `json:"mode"`
	Cuts     []int   `json:"cuts"`
	Clips    []int   `json:"clips"`
	Stop     string  `json:"stop"`
	Scanned  int     `json:"scanned"`
	MeanDiff float64 `json:"mean_diff"`
	MaxDiff  float64 `json:"max_diff"`
	Millis   int64   `json:"duration_ms"`
}

func sceneViews(results []scenecut.Result) []sceneView {
	views := make([]sceneView, 0, len(results))
	for _, res := range results {
		clips := make([]int, len(res.Clips))
		for i, id := range res.Clips {
			clips[i] = int(id)
		}
		cuts := res.Cuts
		if cuts == nil {
			cuts = []int{}
		}
		views = append(views, sceneView{
			Clip:     int(res.Clip),
			Mode:     res.Mode.String(),
			Cuts:     cuts,
			Clips:    clips,
			Stop:     res.Stop.String(),
			Scanned:  res.Scanned,
			MeanDiff: res.Diffs.Mean,
			MaxDiff:  res.Diffs.Max,
			Millis:   res.Duration.Milliseconds(),
		})
	}
	return views
}

func renderScenes(board *timeline.Storyboard, results []scenecut.Result) string {
	rows := make([][]string, 0, len(results))
	for _, res := range results {
		ranges := make([]string, 0, len(res.Clips))
		for _, id := range res.Clips {
			if clip, _, ok := board.Clip(id); ok {
				ranges = append(ranges, fmt.Sprintf("%d:%s", id, rangeLabel(clip.From, clip.To)))
			}
		}
		cuts := make([]string, len(res.Cuts))
		for i, c := range res.Cuts {
			cuts[i] = strconv.Itoa(c)
		}
		rows = append(rows, []string{
			strconv.Itoa(int(res.Clip)),
			res.Mode.String(),
			strings.Join(cuts, ","),
			strings.Join(ranges, " "),
			res.Stop.String(),
			strconv.Itoa(res.Scanned),
			strconv.FormatFloat(res.Diffs.Max, 'f', 0, 64),
		})
	}
	return renderTable("Scenes", []column{
		{header: "Clip", align: alignRight},
		{header: "Mode"},
		{header: "Cuts"},
		{header: "Clips"},
		{header: "Stop"},
		{header: "Scanned", align: alignRight},
		{header: "Max diff", align: alignRight},
	}, rows)
}
