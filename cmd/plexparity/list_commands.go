package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Lunedor/plex-parity/internal/ledger"
	"github.com/Lunedor/plex-parity/internal/ledgerstore"
)

// openLedger loads the ledger for a read-only listing and re-derives
// states against the current clock so stale upcoming entries show as
// missing without a scan. Nothing is persisted.
func openLedger(ctx *commandContext) (*ledger.Ledger, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return nil, err
	}
	store, err := ledgerstore.Open(cfg.LedgerPath(), logger)
	if err != nil {
		return nil, err
	}
	led := store.Ledger()
	led.RefreshAll(time.Now())
	return led, nil
}

func newMissingCommand(ctx *commandContext) *cobra.Command {
	var allFlag bool

	cmd := &cobra.Command{
		Use:   "missing",
		Short: "List episodes that have aired but are not in the library",
		RunE: func(cmd *cobra.Command, args []string) error {
			led, err := openLedger(ctx)
			if err != nil {
				return err
			}
			shows := led.Missing(allFlag)
			if len(shows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No missing episodes.")
				return nil
			}

			var rows [][]string
			total := 0
			for _, item := range shows {
				for _, ep := range item.Episodes {
					rows = append(rows, []string{
						item.Entry.Title,
						ep.Key().Code(),
						formatAirDate(ep.AirDate),
					})
					total++
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Show", "Episode", "Aired"}, rows))
			fmt.Fprintf(cmd.OutOrStdout(), "%d missing episodes across %d shows\n", total, len(shows))
			return nil
		},
	}

	cmd.Flags().BoolVar(&allFlag, "all", false, "Include ended and canceled shows")
	return cmd
}

func newUpcomingCommand(ctx *commandContext) *cobra.Command {
	var allFlag bool

	cmd := &cobra.Command{
		Use:   "upcoming",
		Short: "List episodes that have not aired yet",
		RunE: func(cmd *cobra.Command, args []string) error {
			led, err := openLedger(ctx)
			if err != nil {
				return err
			}
			shows := led.Upcoming(allFlag)
			if len(shows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No upcoming episodes.")
				return nil
			}

			now := time.Now()
			var rows [][]string
			for _, item := range shows {
				for _, ep := range item.Episodes {
					rows = append(rows, []string{
						item.Entry.Title,
						ep.Key().Code(),
						formatAirDate(ep.AirDate),
						formatCountdown(ep.AirDate, now),
					})
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Show", "Episode", "Airs", "In"}, rows, 3))
			return nil
		},
	}

	cmd.Flags().BoolVar(&allFlag, "all", false, "Include ended and canceled shows")
	return cmd
}

func newIgnoredCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "ignored",
		Short: "List episodes excluded from missing reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			led, err := openLedger(ctx)
			if err != nil {
				return err
			}
			shows := led.Ignored()
			if len(shows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No ignored episodes.")
				return nil
			}

			var rows [][]string
			for _, item := range shows {
				for _, ep := range item.Episodes {
					scope := "episode"
					if item.Entry.IgnoreAll {
						scope = "show"
					}
					rows = append(rows, []string{
						item.Entry.Title,
						ep.Key().Code(),
						scope,
					})
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Show", "Episode", "Ignored Via"}, rows))
			return nil
		},
	}
}

func formatAirDate(airDate *time.Time) string {
	if airDate == nil {
		return "unknown"
	}
	return airDate.Format("2006-01-02")
}

func formatCountdown(airDate *time.Time, now time.Time) string {
	if airDate == nil {
		return "tba"
	}
	days := int(airDate.Sub(now).Hours() / 24)
	switch {
	case days <= 0:
		return "today"
	case days == 1:
		return "1 day"
	default:
		return fmt.Sprintf("%d days", days)
	}
}
