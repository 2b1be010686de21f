package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"storyboard/internal/session"
	"storyboard/internal/storyfile"
	"storyboard/internal/timeline"
	"storyboard/internal/undo"
)

type sectionView struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Clips  int    `json:"clips"`
	Frames int    `json:"frames"`
	Active bool   `json:"active"`
}

type clipView struct {
	ID      int     `json:"id"`
	Kind    string  `json:"kind"`
	Source  string  `json:"source,omitempty"`
	Track   int     `json:"track,omitempty"`
	From    int     `json:"from,omitempty"`
	To      int     `json:"to,omitempty"`
	Loop    int     `json:"loop"`
	Step    float64 `json:"step_density"`
	Frames  int     `json:"frames"`
	Mask    string  `json:"mask,omitempty"`
	Name    string  `json:"name,omitempty"`
	Comment string  `json:"comment,omitempty"`
}

func sectionKindLabel(kind timeline.SectionKind) string {
	switch kind {
	case timeline.SectionMain:
		return "main"
	case timeline.SectionMask:
		return "mask"
	default:
		return "sub"
	}
}

func newSectionsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "sections",
		Short: "List the sections of the storyboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, true, func(sess *session.Session) error {
				board := sess.Board()
				views := make([]sectionView, 0, len(board.Sections))
				for _, sec := range board.Sections {
					frames, _ := board.CountTotalFrames(sec.ID)
					views = append(views, sectionView{
						ID:     int(sec.ID),
						Name:   sec.Name,
						Kind:   sectionKindLabel(sec.Kind),
						Clips:  len(sec.Clips),
						Frames: frames,
						Active: sec.ID == board.Active,
					})
				}
				if asJSON {
					return writeJSON(cmd, views)
				}
				rows := make([][]string, 0, len(views))
				for _, v := range views {
					name := v.Name
					if v.Active {
						name += " *"
					}
					rows = append(rows, []string{strconv.Itoa(v.ID), name, v.Kind, strconv.Itoa(v.Clips), strconv.Itoa(v.Frames)})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable("", []column{
					{header: "ID", align: alignRight},
					{header: "Name"},
					{header: "Kind"},
					{header: "Clips", align: alignRight},
					{header: "Frames", align: alignRight},
				}, rows))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newClipsCommand(ctx *commandContext) *cobra.Command {
	var (
		sectionName string
		asJSON      bool
	)
	cmd := &cobra.Command{
		Use:   "clips",
		Short: "List the clips of a section",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, true, func(sess *session.Session) error {
				sec, err := lookupSection(sess.Board(), sectionName)
				if err != nil {
					return err
				}
				views := make([]clipView, 0, len(sec.Clips))
				for _, c := range sec.Clips {
					views = append(views, clipView{
						ID:      int(c.ID),
						Kind:    c.Kind.String(),
						Source:  c.Source.Path,
						Track:   c.Source.Track,
						From:    c.From,
						To:      c.To,
						Loop:    c.Loop,
						Step:    c.StepDensity,
						Frames:  c.TotalFrames(),
						Mask:    c.MaskName,
						Name:    c.Name,
						Comment: c.Comment,
					})
				}
				if asJSON {
					return writeJSON(cmd, views)
				}
				rows := make([][]string, 0, len(views))
				total := 0
				for _, v := range views {
					source := v.Source
					switch {
					case v.Name != "":
						source = v.Name + " <- " + source
					case v.Comment != "":
						source = strconv.Quote(v.Comment)
					}
					rows = append(rows, []string{
						strconv.Itoa(v.ID), v.Kind, source,
						rangeLabel(v.From, v.To), strconv.Itoa(v.Loop),
						strconv.FormatFloat(v.Step, 'g', -1, 64), strconv.Itoa(v.Frames), v.Mask,
					})
					total += v.Frames
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(sec.Name, []column{
					{header: "ID", align: alignRight},
					{header: "Kind"},
					{header: "Source"},
					{header: "Range"},
					{header: "Loop", align: alignRight},
					{header: "Step", align: alignRight},
					{header: "Frames", align: alignRight},
					{header: "Mask"},
				}, rows, "", "", "", "", "", "Total", strconv.Itoa(total)))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&sectionName, "section", "s", timeline.MainSectionName, "Section to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func rangeLabel(from, to int) string {
	if from == 0 && to == 0 {
		return "-"
	}
	return fmt.Sprintf("%d-%d", from, to)
}

func newFramesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "frames [section]",
		Short: "Count the output frames of a section",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := timeline.MainSectionName
			if len(args) == 1 {
				name = args[0]
			}
			return ctx.withSession(cmd, true, func(sess *session.Session) error {
				board := sess.Board()
				sec, err := lookupSection(board, name)
				if err != nil {
					return err
				}
				frames, err := board.CountTotalFrames(sec.ID)
				if err != nil {
					return err
				}
				seconds := 0.0
				if board.FrameRate > 0 {
					seconds = float64(frames) / board.FrameRate
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d frames (%.2fs at %.3g fps)\n", sec.Name, frames, seconds, board.FrameRate)
				return nil
			})
		},
	}
}

func lookupSection(board *timeline.Storyboard, name string) (*timeline.Section, error) {
	sec, ok := board.SectionByName(name)
	if !ok {
		return nil, fmt.Errorf("section %q: %w", name, timeline.ErrSectionNotFound)
	}
	return sec, nil
}

type addClipOptions struct {
	kind     string
	section  string
	index    int
	from     int
	to       int
	track    int
	loop     int
	step     float64
	pingpong bool
	mask     string
	name     string
	maskOf   string
	color    string
	comment  string
}

func newAddClipCommand(ctx *commandContext) *cobra.Command {
	var opts addClipOptions
	cmd := &cobra.Command{
		Use:   "add-clip [source]",
		Short: "Append a clip to a section",
		Long: "Append a clip to a section. The source is a media path, or a section name\n" +
			"for --kind section. Without --to the clip runs to the last source frame.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := ""
			if len(args) == 1 {
				source = args[0]
			}
			clip, err := buildClip(opts, source, cmd.Flags().Changed("kind"))
			if err != nil {
				return err
			}
			return ctx.withSession(cmd, false, func(sess *session.Session) error {
				sec, err := lookupSection(sess.Board(), opts.section)
				if err != nil {
					return err
				}
				if clip.Kind == timeline.KindMask {
					sec = sess.Board().Mask()
				}
				if clip.Kind.HasFrames() && opts.to == 0 {
					count, err := sess.FrameCount(cmd.Context(), &clip)
					if err != nil {
						return err
					}
					clip.To = count
				}
				feature := undo.FeatureCreateClip
				if clip.Kind == timeline.KindSection {
					feature = undo.FeatureCreateSectionClip
				}
				var id timeline.ClipID
				err = sess.Edit(cmd.Context(), feature, timeline.NoClip, func(sb *timeline.Storyboard) error {
					target, ok := sb.Section(sec.ID)
					if !ok {
						return timeline.ErrSectionNotFound
					}
					index := opts.index
					if index < 0 || index > len(target.Clips) {
						index = len(target.Clips)
					}
					var err error
					id, err = sb.InsertClip(sec.ID, index, clip)
					return err
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added clip %d (%s) to %s\n", id, clip.Kind, sec.Name)
				return nil
			})
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&opts.kind, "kind", "k", "", "Clip kind: movie, frames, anim-image, image, section, color, silence, comment, mask")
	flags.StringVarP(&opts.section, "section", "s", timeline.MainSectionName, "Target section")
	flags.IntVar(&opts.index, "at", -1, "Insert position (default: append)")
	flags.IntVar(&opts.from, "from", 1, "First source frame")
	flags.IntVar(&opts.to, "to", 0, "Last source frame (default: last frame of the source)")
	flags.IntVar(&opts.track, "track", 0, "Video track of the source")
	flags.IntVar(&opts.loop, "loop", 1, "Number of repetitions")
	flags.Float64Var(&opts.step, "step", 1, "Source frames advanced per output frame")
	flags.BoolVar(&opts.pingpong, "pingpong", false, "Play loops back and forth")
	flags.StringVar(&opts.mask, "mask", "", "Mask definition to apply")
	flags.StringVar(&opts.name, "name", "", "Name of a new mask definition")
	flags.StringVar(&opts.maskOf, "mask-of", "movie", "Media kind a mask definition reads")
	flags.StringVar(&opts.color, "color", "#000000", "Color of a color clip")
	flags.StringVar(&opts.comment, "comment", "", "Text of a comment clip")
	return cmd
}

func buildClip(opts addClipOptions, source string, kindSet bool) (timeline.Clip, error) {
	kindName := opts.kind
	if !kindSet {
		kindName = guessKind(source)
	}
	kind, err := timeline.ParseKind(kindName)
	if err != nil {
		return timeline.Clip{}, err
	}
	if kind.HasFrames() && strings.TrimSpace(source) == "" {
		return timeline.Clip{}, errors.New("a source is required for " + kind.String() + " clips")
	}
	clip := timeline.NewClip(kind, source, opts.from, opts.to)
	if !kind.HasFrames() {
		clip.Source.Path = ""
		clip.From, clip.To = 0, 0
	}
	if kind == timeline.KindSection {
		clip.From, clip.To = 1, opts.to
	}
	clip.Source.Track = opts.track
	clip.Loop = opts.loop
	clip.StepDensity = opts.step
	clip.MaskName = opts.mask
	if opts.pingpong {
		clip.PlayMode = timeline.PlayPingPong
	}
	switch kind {
	case timeline.KindColor:
		if clip.Color, err = storyfile.ParseColor(opts.color); err != nil {
			return timeline.Clip{}, err
		}
	case timeline.KindComment:
		clip.Comment = opts.comment
	case timeline.KindMask:
		clip.Name = opts.name
		if clip.MaskOf, err = timeline.ParseKind(opts.maskOf); err != nil {
			return timeline.Clip{}, err
		}
	}
	return clip, nil
}

func guessKind(source string) string {
	switch strings.ToLower(filepath.Ext(source)) {
	case "":
		return "color"
	case ".gif":
		return "anim-image"
	case ".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff", ".webp":
		return "image"
	default:
		return "movie"
	}
}
