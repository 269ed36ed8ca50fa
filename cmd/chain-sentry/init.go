package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const starterConfig = `version: 1

global:
  journal_path: chain-sentry.db
  log_level: info
  max_reorg_depth: 12

predicates:
  - id: large-transfers
    name: Large mainnet transfers
    network: mainnet
    event_type: transfer
    filters:
      min_amount: "1000000"
    actions: ["alerts"]

  - id: badge-claims
    name: Badge contract claims
    network: mainnet
    event_type: contract_call
    contract_address: "0x0000000000000000000000000000000000000000"
    filters:
      function_name: claimBadge
    actions: ["alerts"]

sinks:
  - id: alerts
    type: slack
    webhook_url: ${SLACK_HOOK}
    template: "MATCH {{.PredicateID}} {{.EventType}} {{short_addr .TxHash}}"
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Scaffold a starter config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(cfgPath); err == nil {
			return fmt.Errorf("refusing to overwrite existing %s", cfgPath)
		}
		if err := os.WriteFile(cfgPath, []byte(starterConfig), 0o644); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", cfgPath)
		return nil
	},
}
