package main

import (
	"fmt"

	"github.com/devblac/chain-sentry/internal/config"
	"github.com/devblac/chain-sentry/internal/predicate"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the config file and every predicate in it",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		cfg, err := config.Parse(cfgPath)
		if err != nil {
			return fmt.Errorf("config unreadable: %w", err)
		}

		failures := 0
		if cfg.Version == 0 {
			failures++
			fmt.Fprintln(out, "- config: ERROR version is required")
		}
		if len(cfg.Predicates) == 0 {
			failures++
			fmt.Fprintln(out, "- config: ERROR at least one predicate is required")
		}

		seen := map[string]struct{}{}
		for _, spec := range cfg.Predicates {
			if _, dup := seen[spec.ID]; dup && spec.ID != "" {
				failures++
				fmt.Fprintf(out, "- predicate %s: ERROR duplicate id\n", spec.ID)
			}
			seen[spec.ID] = struct{}{}
			pred, err := spec.Build()
			if err != nil {
				failures++
				fmt.Fprintf(out, "- predicate %s: ERROR %v\n", spec.ID, err)
				continue
			}
			res := predicate.Validate(pred)
			if !res.Valid {
				failures++
				for _, msg := range res.Errors {
					fmt.Fprintf(out, "- predicate %s: ERROR %s\n", spec.ID, msg)
				}
				continue
			}
			fmt.Fprintf(out, "- predicate %s: OK\n", spec.ID)
		}

		sinkSeen := map[string]struct{}{}
		for i := range cfg.Sinks {
			sink := &cfg.Sinks[i]
			if _, dup := sinkSeen[sink.ID]; dup {
				failures++
				fmt.Fprintf(out, "- sink %s: ERROR duplicate id\n", sink.ID)
			}
			sinkSeen[sink.ID] = struct{}{}
			if err := sink.Validate(); err != nil {
				failures++
				fmt.Fprintf(out, "- sink %s: ERROR %v\n", sink.ID, err)
				continue
			}
			fmt.Fprintf(out, "- sink %s: OK\n", sink.ID)
		}

		if failures > 0 {
			return fmt.Errorf("validate: %d check(s) failed", failures)
		}

		fmt.Fprintf(out, "validate: success (version %d, %d predicate(s))\n", cfg.Version, len(cfg.Predicates))
		return nil
	},
}
