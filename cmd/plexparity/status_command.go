package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Lunedor/plex-parity/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check connectivity and summarize the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			results := preflight.RunAll(cmd.Context(), cfg)
			rows := make([][]string, 0, len(results))
			failed := 0
			for _, result := range results {
				status := "ok"
				if !result.Passed {
					status = "FAIL"
					failed++
				}
				rows = append(rows, []string{result.Name, status, result.Detail})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Check", "Status", "Detail"}, rows))

			led, err := openLedger(ctx)
			if err != nil {
				return err
			}
			missing, upcoming, ignored := 0, 0, 0
			for _, item := range led.Missing(true) {
				missing += len(item.Episodes)
			}
			for _, item := range led.Upcoming(true) {
				upcoming += len(item.Episodes)
			}
			for _, item := range led.Ignored() {
				ignored += len(item.Episodes)
			}
			summary := [][]string{
				{"Shows tracked", strconv.Itoa(led.Len())},
				{"Missing episodes", strconv.Itoa(missing)},
				{"Upcoming episodes", strconv.Itoa(upcoming)},
				{"Ignored episodes", strconv.Itoa(ignored)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Ledger", "Count"}, summary, 1))
			fmt.Fprintf(cmd.OutOrStdout(), "Checked at %s\n", time.Now().Format(time.RFC1123))

			if failed > 0 {
				return fmt.Errorf("%d preflight checks failed", failed)
			}
			return nil
		},
	}
}
