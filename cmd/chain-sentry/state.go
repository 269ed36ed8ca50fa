package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/devblac/chain-sentry/internal/config"
	"github.com/devblac/chain-sentry/internal/journal"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Summarize the dispatch journal",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		cfg, err := config.Parse(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if cfg.Global.JournalPath == "" {
			return fmt.Errorf("no journal_path configured")
		}

		jrnl, err := journal.Open(cfg.Global.JournalPath)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer jrnl.Close()

		s, err := jrnl.Summarize(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "dispatches:        %d\n", s.Dispatches)
		fmt.Fprintf(out, "failed dispatches: %d\n", s.FailedDispatches)
		fmt.Fprintf(out, "matches:           %d\n", s.Matches)
		fmt.Fprintf(out, "reorgs:            %d\n", s.Reorgs)
		fmt.Fprintf(out, "deepest reorg:     %d\n", s.DeepestReorg)
		return nil
	},
}
