package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"storyboard/internal/session"
	"storyboard/internal/timeline"
	"storyboard/internal/undo"
)

func newSectionCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "section",
		Short: "Create, rename, activate, or remove sections",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "create <name>",
			Short: "Create a new section",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return ctx.withSession(cmd, false, func(sess *session.Session) error {
					var id timeline.SectionID
					err := sess.Edit(cmd.Context(), undo.FeatureCreateSection, timeline.NoClip, func(sb *timeline.Storyboard) error {
						var err error
						id, err = sb.CreateSection(args[0])
						return err
					})
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Created section %s (id %d)\n", args[0], id)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "rename <name> <new-name>",
			Short: "Rename a section and the section clips that reference it",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return ctx.withSession(cmd, false, func(sess *session.Session) error {
					sec, err := lookupSection(sess.Board(), args[0])
					if err != nil {
						return err
					}
					err = sess.Edit(cmd.Context(), undo.FeaturePropertiesSection, timeline.NoClip, func(sb *timeline.Storyboard) error {
						return sb.RenameSection(sec.ID, args[1])
					})
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Renamed section %s to %s\n", args[0], args[1])
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "activate <name>",
			Short: "Select the section shown by default",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return ctx.withSession(cmd, false, func(sess *session.Session) error {
					sec, err := lookupSection(sess.Board(), args[0])
					if err != nil {
						return err
					}
					return sess.Edit(cmd.Context(), undo.FeaturePropertiesMaster, timeline.NoClip, func(sb *timeline.Storyboard) error {
						return sb.SetActive(sec.ID)
					})
				})
			},
		},
		&cobra.Command{
			Use:   "remove <name>",
			Short: "Remove a section no MAIN clip references",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return ctx.withSession(cmd, false, func(sess *session.Session) error {
					sec, err := lookupSection(sess.Board(), args[0])
					if err != nil {
						return err
					}
					err = sess.Edit(cmd.Context(), undo.FeatureDeleteSection, timeline.NoClip, func(sb *timeline.Storyboard) error {
						return sb.RemoveSection(sec.ID)
					})
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Removed section %s\n", args[0])
					return nil
				})
			},
		},
	)
	return cmd
}

func newMaskCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mask",
		Short: "Manage mask definitions",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "rename <name> <new-name>",
		Short: "Rename a mask definition and every clip that uses it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, false, func(sess *session.Session) error {
				def, ok := sess.Board().FindMaskDefinition(args[0])
				if !ok {
					return fmt.Errorf("mask %q: %w", args[0], timeline.ErrUnknownMask)
				}
				users := len(sess.Board().MaskUsers(def.Name))
				err := sess.Edit(cmd.Context(), undo.FeaturePropertiesClip, def.ID, func(sb *timeline.Storyboard) error {
					return sb.RenameMaskDefinition(def.ID, args[1])
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Renamed mask %s to %s (%d references updated)\n", args[0], args[1], users)
				return nil
			})
		},
	})
	return cmd
}
