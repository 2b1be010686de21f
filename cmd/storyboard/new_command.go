package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"storyboard/internal/config"
	"storyboard/internal/session"
	"storyboard/internal/storyfile"
)

func newNewCommand(ctx *commandContext) *cobra.Command {
	var (
		frameRate float64
		width     int
		height    int
	)

	cmd := &cobra.Command{
		Use:   "new [path]",
		Short: "Create an empty storyboard document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			path, err := ctx.documentPath()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				if path, err = config.ExpandPath(args[0]); err != nil {
					return err
				}
			}
			if filepath.Ext(path) == "" {
				path += "." + strings.ToLower(cfg.Storyboard.Format)
			}
			if _, err := storyfile.FormatForPath(path); err != nil {
				return err
			}

			// Flags override the configured master settings for this document.
			local := *cfg
			if cmd.Flags().Changed("frame-rate") {
				local.Storyboard.FrameRate = frameRate
			}
			if cmd.Flags().Changed("width") {
				local.Storyboard.Width = width
			}
			if cmd.Flags().Changed("height") {
				local.Storyboard.Height = height
			}
			if err := local.Storyboard.Validate(); err != nil {
				return err
			}

			sess, err := session.Create(&local, path, session.WithLogger(logger))
			if err != nil {
				return err
			}
			defer sess.Close()

			board := sess.Board()
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%.3g fps, %dx%d)\n", path, board.FrameRate, board.Width, board.Height)
			return nil
		},
	}

	cmd.Flags().Float64Var(&frameRate, "frame-rate", 0, "Master frame rate")
	cmd.Flags().IntVar(&width, "width", 0, "Working width thumbnails are scaled to")
	cmd.Flags().IntVar(&height, "height", 0, "Working height thumbnails are scaled to")
	return cmd
}
