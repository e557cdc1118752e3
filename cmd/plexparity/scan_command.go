package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Lunedor/plex-parity/internal/scan"
	"github.com/Lunedor/plex-parity/internal/scanlog"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var modeFlag string
	var scopeFlag string
	var showFlag string
	var pruneFlag bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Reconcile the library against TMDB",
		Long: `Scan compares every show's local episodes with its TMDB episode list
and records missing, upcoming, and ignored episodes in the ledger.

Modes: incremental (default) visits only shows that need attention,
full re-audits everything with fresh metadata, refresh revisits shows
holding missing or upcoming episodes, targeted visits one show.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.openEngine()
			if err != nil {
				return err
			}

			if showFlag != "" && modeFlag == "" {
				modeFlag = string(scan.ModeTargeted)
			}
			if modeFlag == "" {
				modeFlag = string(scan.ModeIncremental)
			}
			mode, err := scan.ParseMode(modeFlag)
			if err != nil {
				return err
			}
			if scopeFlag == "" {
				scopeFlag = eng.cfg.Scan.Scope
			}
			scope, err := scan.ParseScope(scopeFlag)
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			record, runErr := eng.orchestrator.Run(runCtx, scan.Request{
				Mode:       mode,
				Scope:      scope,
				TargetShow: showFlag,
				Prune:      pruneFlag,
			})
			if record != nil {
				recordScan(ctx, eng.cfg.ScanLogPath(), record, cmd)
				printScanSummary(cmd, record)
			}
			if runErr != nil {
				if errors.Is(runErr, scan.ErrScanInProgress) {
					return errors.New("another scan is already running against this state directory")
				}
				return runErr
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&modeFlag, "mode", "", "Scan mode: incremental, full, refresh, or targeted")
	cmd.Flags().StringVar(&scopeFlag, "scope", "", "Show universe: library or watchlist")
	cmd.Flags().StringVar(&showFlag, "show", "", "Single show to scan (implies targeted mode)")
	cmd.Flags().BoolVar(&pruneFlag, "prune", false, "Drop episode records no longer reported by TMDB or Plex")

	return cmd
}

func recordScan(ctx *commandContext, path string, record *scan.Record, cmd *cobra.Command) {
	log, err := scanlog.Open(path)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: scan history not recorded: %v\n", err)
		return
	}
	defer log.Close()
	if err := log.Insert(context.Background(), record); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: scan history not recorded: %v\n", err)
	}
}

func printScanSummary(cmd *cobra.Command, record *scan.Record) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Scan %s (%s, %s scope): %s in %s\n",
		record.ID[:8], record.Mode, record.Scope, record.Outcome,
		record.Duration().Round(10*time.Millisecond))

	rows := [][]string{
		{"Shows selected", strconv.Itoa(record.ShowsSelected)},
		{"Shows visited", strconv.Itoa(record.ShowsVisited)},
		{"Shows skipped", strconv.Itoa(record.ShowsSkipped)},
		{"Shows failed", strconv.Itoa(record.ShowsFailed)},
		{"Seasons audited", strconv.Itoa(record.SeasonsAudited)},
		{"Episodes added", strconv.Itoa(record.EpisodesAdded)},
		{"Episodes now missing", strconv.Itoa(record.EpisodesPromoted)},
	}
	if record.ShowsPruned > 0 {
		rows = append(rows, []string{"Shows pruned", strconv.Itoa(record.ShowsPruned)})
	}
	fmt.Fprintln(out, renderTable([]string{"Metric", "Count"}, rows, 1))

	if len(record.Failures) > 0 {
		failureRows := make([][]string, 0, len(record.Failures))
		for _, failure := range record.Failures {
			failureRows = append(failureRows, []string{failure.Title, failure.Reason})
		}
		fmt.Fprintln(out, renderTable([]string{"Failed Show", "Reason"}, failureRows))
		fmt.Fprintln(out, strings.TrimSpace(`
Shows that need a manual override can be fixed with:
  plexparity override set <show> <tmdb-id>`))
	}
}
