package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Lunedor/plex-parity/internal/ledger"
)

func newIgnoreCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "ignore <show> [SxxEyy]",
		Short: "Exclude a show or one episode from missing reports",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setIgnored(ctx, cmd, args, true)
		},
	}
}

func newUnignoreCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "unignore <show> [SxxEyy]",
		Short: "Re-include a show or one episode in missing reports",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setIgnored(ctx, cmd, args, false)
		},
	}
}

func setIgnored(ctx *commandContext, cmd *cobra.Command, args []string, ignored bool) error {
	eng, err := ctx.openEngine()
	if err != nil {
		return err
	}

	verb := "unignored"
	if ignored {
		verb = "ignored"
	}

	if len(args) == 1 {
		if err := eng.orchestrator.SetShowIgnored(args[0], ignored); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "All episodes of %q %s.\n", args[0], verb)
		return nil
	}

	key, err := ledger.ParseCode(args[1])
	if err != nil {
		return err
	}
	if err := eng.orchestrator.SetEpisodeIgnored(args[0], key, ignored); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s of %q %s.\n", key.Code(), args[0], verb)
	return nil
}
