package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	cfgPath string
	rootCmd = &cobra.Command{
		Use:   "chain-sentry",
		Short: "Chain-event predicate matching with reorg-aware dispatch",
	}
)

func init() {
	cobra.EnableCommandSorting = false

	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "Path to config file")

	rootCmd.AddCommand(
		versionCmd,
		initCmd,
		validateCmd,
		runCmd,
		stateCmd,
		exportCmd,
	)
}

// Execute runs the root command tree.
func Execute() error {
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}
