package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"storyboard/internal/config"
	"storyboard/internal/logging"
	"storyboard/internal/media"
	"storyboard/internal/media/ffprobe"
	"storyboard/internal/probecache"
	"storyboard/internal/resource"
	"storyboard/internal/timeline"
)

func newProbeCommand(ctx *commandContext) *cobra.Command {
	var (
		kindName string
		track    int
		streams  bool
	)
	cmd := &cobra.Command{
		Use:   "probe <path>",
		Short: "Report the frame count of a media file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			if kindName == "" {
				kindName = guessKind(args[0])
			}
			kind, err := timeline.ParseKind(kindName)
			if err != nil {
				return err
			}
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}

			opts := []resource.Option{
				resource.WithLogger(logger),
				resource.WithBusyBackoff(cfg.BusyBackoff()),
			}
			store, err := probecache.Open(cfg)
			if err != nil {
				logging.WarnWithContext(logger, "probe cache unavailable", "probe_cache_unavailable",
					logging.Error(err),
					logging.String(logging.FieldImpact, "frame counts are probed from the source"),
				)
			}
			if store != nil {
				defer store.Close()
				opts = append(opts, resource.WithProbeStore(store))
			}
			registry := resource.NewRegistry(media.NewDecoder(cfg, logger), opts...)
			defer registry.CloseAll()

			key := resource.Key{Kind: kind, Path: path, Track: track}
			id, err := registry.GetOrCreate(cmd.Context(), key)
			if err != nil {
				return err
			}
			res, _ := registry.Resource(id)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d frames\n", res.Key, res.FrameCount)

			if !streams || kind != timeline.KindMovie {
				return nil
			}
			result, err := ffprobe.Inspect(cmd.Context(), cfg.FFprobeBinary(), path, ffprobe.Options{})
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(result.Streams))
			for _, s := range result.VideoStreams() {
				rows = append(rows, []string{
					strconv.Itoa(s.Index),
					s.CodecName,
					fmt.Sprintf("%dx%d", s.Width, s.Height),
					strconv.FormatFloat(s.FrameRate(), 'f', 3, 64),
					strconv.Itoa(s.FrameCount(result.DurationSeconds())),
				})
			}
			size, _ := strconv.ParseUint(result.Format.Size, 10, 64)
			fmt.Fprintln(out, renderTable(result.Format.FormatName, []column{
				{header: "Stream", align: alignRight},
				{header: "Codec"},
				{header: "Size"},
				{header: "FPS", align: alignRight},
				{header: "Frames", align: alignRight},
			}, rows, "", "", "", "Total", humanize.Bytes(size)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&kindName, "kind", "k", "", "Media kind (default: guessed from the extension)")
	cmd.Flags().IntVar(&track, "track", 0, "Video track")
	cmd.Flags().BoolVar(&streams, "streams", false, "List the video streams of a movie")
	return cmd
}
