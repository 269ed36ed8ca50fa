package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/devblac/chain-sentry/internal/config"
	"github.com/devblac/chain-sentry/internal/journal"
)

var (
	flagExportFormat string
	flagExportLimit  int
)

func init() {
	exportCmd.Flags().StringVar(&flagExportFormat, "format", "json", "Output format: json or csv")
	exportCmd.Flags().IntVar(&flagExportLimit, "limit", 100, "Maximum dispatches to export, newest first")
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export journaled dispatches as JSON or CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
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

		records, err := jrnl.ListDispatches(cmd.Context(), flagExportLimit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		switch flagExportFormat {
		case "json":
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		case "csv":
			w := csv.NewWriter(out)
			header := []string{"id", "event_type", "event_hash", "success", "processing_ms", "actions", "created_at"}
			if err := w.Write(header); err != nil {
				return err
			}
			for _, rec := range records {
				row := []string{
					rec.ID,
					rec.EventType,
					rec.EventHash,
					strconv.FormatBool(rec.Success),
					strconv.FormatInt(rec.ProcessingMs, 10),
					strconv.Itoa(len(rec.Actions)),
					rec.CreatedAt.UTC().Format(time.RFC3339),
				}
				if err := w.Write(row); err != nil {
					return err
				}
			}
			w.Flush()
			return w.Error()
		default:
			return fmt.Errorf("unsupported format: %s", flagExportFormat)
		}
	},
}
