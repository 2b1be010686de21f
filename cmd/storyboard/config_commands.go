package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"storyboard/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:         "config",
		Short:       "Configuration utilities",
		Annotations: map[string]string{"skipConfigLoad": "true"},
	}
	configCmd.AddCommand(newConfigInitCommand(ctx), newConfigValidateCommand(ctx))
	return configCmd
}

// configTarget picks the explicit path, then --config, then the default
// location.
func configTarget(ctx *commandContext, explicit string) (string, error) {
	target := strings.TrimSpace(explicit)
	if target == "" && ctx.configFlag != nil {
		target = strings.TrimSpace(*ctx.configFlag)
	}
	if target == "" {
		return config.DefaultConfigPath()
	}
	return config.ExpandPath(target)
}

func newConfigInitCommand(ctx *commandContext) *cobra.Command {
	var (
		targetPath string
		overwrite  bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the sample configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := configTarget(ctx, targetPath)
			if err != nil {
				return fmt.Errorf("resolve config path: %w", err)
			}
			if !overwrite {
				_, statErr := os.Stat(target)
				switch {
				case statErr == nil:
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				case !errors.Is(statErr, fs.ErrNotExist):
					return fmt.Errorf("check config path: %w", statErr)
				}
			}
			if err := config.CreateSample(target); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Adjust [storyboard] width and height to the thumbnail size scene detection should compare.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var flagPath string
			if ctx.configFlag != nil {
				flagPath = *ctx.configFlag
			}
			cfg, path, exists, err := config.Load(flagPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}
			source := path
			if !exists {
				source = "built-in defaults (no file at " + path + ")"
			}
			rows := [][]string{
				{"Source", source},
				{"Working size", fmt.Sprintf("%dx%d at %g fps", cfg.Storyboard.Width, cfg.Storyboard.Height, cfg.Storyboard.FrameRate)},
				{"Document format", cfg.Storyboard.Format},
				{"Decoders", cfg.FFmpegBinary() + ", " + cfg.FFprobeBinary()},
				{"Cache dir", cfg.Paths.CacheDir},
				{"Probe cache", yesNo(cfg.ProbeCache.Enabled)},
				{"Undo depth", undoDepthLabel(cfg.Undo.MaxDepth)},
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable("Configuration valid", []column{{header: "Setting"}, {header: "Value"}}, rows))
			return nil
		},
	}
}

func undoDepthLabel(depth int) string {
	if depth <= 0 {
		return "unlimited"
	}
	return fmt.Sprint(depth)
}
