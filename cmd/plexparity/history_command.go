package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Lunedor/plex-parity/internal/scanlog"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limitFlag int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent scan runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			log, err := scanlog.Open(cfg.ScanLogPath())
			if err != nil {
				return err
			}
			defer log.Close()

			records, err := log.Recent(cmd.Context(), limitFlag)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No scans recorded yet.")
				return nil
			}

			rows := make([][]string, 0, len(records))
			for _, record := range records {
				rows = append(rows, []string{
					record.StartedAt.Local().Format("2006-01-02 15:04"),
					string(record.Mode),
					string(record.Scope),
					string(record.Outcome),
					strconv.Itoa(record.ShowsVisited),
					strconv.Itoa(record.ShowsFailed),
					strconv.Itoa(record.EpisodesAdded),
					record.Duration().Round(time.Second).String(),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Started", "Mode", "Scope", "Outcome", "Visited", "Failed", "Added", "Duration"},
				rows, 4, 5, 6, 7))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limitFlag, "limit", "n", 20, "Maximum number of runs to list")
	return cmd
}
