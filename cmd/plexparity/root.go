package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string

	ctx := newCommandContext(&configFlag)

	rootCmd := &cobra.Command{
		Use:           "plexparity",
		Short:         "Track episodes missing from your Plex TV library",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newScanCommand(ctx))
	rootCmd.AddCommand(newMissingCommand(ctx))
	rootCmd.AddCommand(newUpcomingCommand(ctx))
	rootCmd.AddCommand(newIgnoredCommand(ctx))
	rootCmd.AddCommand(newIgnoreCommand(ctx))
	rootCmd.AddCommand(newUnignoreCommand(ctx))
	rootCmd.AddCommand(newOverrideCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
