package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newOverrideCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "override",
		Short: "Manage manual TMDB id overrides",
		Long: `An override pins a show to an explicit TMDB id when automatic
resolution matched the wrong show or found nothing. The next scan
re-audits the show against the overridden id.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <show> <tmdb-id>",
		Short: "Pin a show to a TMDB id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.openEngine()
			if err != nil {
				return err
			}
			tmdbID, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid TMDB id %q", args[1])
			}
			if err := eng.orchestrator.ApplyOverride(cmd.Context(), args[0], tmdbID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%q pinned to TMDB id %d; next scan will re-audit it.\n", args[0], tmdbID)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear <show>",
		Short: "Remove a manual override and re-resolve automatically",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.openEngine()
			if err != nil {
				return err
			}
			if err := eng.orchestrator.ClearOverride(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Override cleared for %q.\n", args[0])
			return nil
		},
	})

	return cmd
}
