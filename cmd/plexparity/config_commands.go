package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Lunedor/plex-parity/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand(ctx))
	configCmd.AddCommand(newConfigShowCommand(ctx))

	return configCmd
}

func newConfigInitCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a sample configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			target := ""
			if ctx.configFlag != nil {
				target = strings.TrimSpace(*ctx.configFlag)
			}
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			}

			if err := config.WriteSample(target); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Set plex token and tmdb api_key (or export PLEX_TOKEN / TMDB_API_KEY) before scanning.")
			return nil
		},
	}
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Load without validating so an unfinished config can still
			// be inspected.
			var path string
			if ctx.configFlag != nil {
				path = strings.TrimSpace(*ctx.configFlag)
			}
			cfg, resolvedPath, exists, err := config.Load(path)
			if err != nil {
				return err
			}
			source := resolvedPath
			if !exists {
				source = fmt.Sprintf("%s (not found, defaults shown)", resolvedPath)
			}

			rows := [][]string{
				{"config file", source},
				{"plex.url", cfg.Plex.URL},
				{"plex.token", redact(cfg.Plex.Token)},
				{"plex.library", cfg.Plex.Library},
				{"tmdb.api_key", redact(cfg.TMDB.APIKey)},
				{"tmdb.language", cfg.TMDB.Language},
				{"tmdb.cache_ttl_hours", strconv.Itoa(cfg.TMDB.CacheTTLHours)},
				{"scan.scope", cfg.Scan.Scope},
				{"scan.lookahead_days", strconv.Itoa(cfg.Scan.LookaheadDays)},
				{"paths.state_dir", cfg.Paths.StateDir},
				{"paths.log_dir", cfg.Paths.LogDir},
				{"logging.level", cfg.Logging.Level},
				{"logging.format", cfg.Logging.Format},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Setting", "Value"}, rows))
			return nil
		},
	}
}

func redact(secret string) string {
	if secret == "" {
		return "(unset)"
	}
	if len(secret) <= 4 {
		return "****"
	}
	return secret[:2] + strings.Repeat("*", len(secret)-4) + secret[len(secret)-2:]
}
