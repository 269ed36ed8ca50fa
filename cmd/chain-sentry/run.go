package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/devblac/chain-sentry/internal/config"
	"github.com/devblac/chain-sentry/internal/dispatch"
	"github.com/devblac/chain-sentry/internal/engine"
	"github.com/devblac/chain-sentry/internal/event"
	"github.com/devblac/chain-sentry/internal/health"
	"github.com/devblac/chain-sentry/internal/journal"
	"github.com/devblac/chain-sentry/internal/logging"
	"github.com/devblac/chain-sentry/internal/metrics"
	"github.com/devblac/chain-sentry/internal/predicate"
	"github.com/devblac/chain-sentry/internal/processor"
	"github.com/devblac/chain-sentry/internal/reorg"
	"github.com/devblac/chain-sentry/internal/sink"
)

var (
	flagEvents  string
	flagDryRun  bool
	flagHealth  string
	flagMetrics string
)

func init() {
	runCmd.Flags().StringVar(&flagEvents, "events", "-", "Event stream file, or - for stdin")
	runCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Evaluate predicates but do not execute actions")
	runCmd.Flags().StringVar(&flagHealth, "health", "", "Health check HTTP address (e.g., :8080)")
	runCmd.Flags().StringVar(&flagMetrics, "metrics", "", "Metrics HTTP address (e.g., :9090)")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Consume an event stream and dispatch matches",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logLevel := os.Getenv("LOG_LEVEL")
		if logLevel == "" {
			logLevel = cfg.Global.LogLevel
		}
		log := logging.NewWithLevel(logLevel)

		predicates, err := cfg.BuildPredicates()
		if err != nil {
			return err
		}

		var jrnl *journal.Journal
		if cfg.Global.JournalPath != "" {
			jrnl, err = journal.Open(cfg.Global.JournalPath)
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer jrnl.Close()
		}

		var mtr *metrics.Metrics
		if flagMetrics != "" {
			mtr = metrics.Init()
			go func() {
				mux := http.NewServeMux()
				mux.Handle("/metrics", metrics.Handler())
				srv := &http.Server{Addr: flagMetrics, Handler: mux}
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("metrics server error", "error", err)
				}
			}()
			log.Info("metrics enabled", "addr", flagMetrics)
		}

		if flagHealth != "" {
			checker := health.Checker{}
			if jrnl != nil {
				checker.JournalPing = jrnl.Ping
			}
			healthSrv := health.Serve(flagHealth, checker)
			log.Info("health check enabled", "addr", flagHealth)
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = health.Shutdown(shutdownCtx, healthSrv)
			}()
		}

		registry := dispatch.NewRegistry(log, mtr)
		registerBuiltins(registry, predicates, jrnl, log)
		if err := registerSinks(registry, cfg.Sinks); err != nil {
			return err
		}

		tracker := reorg.NewTracker(log, mtr)
		tracker.OnAffectedTransactions(func(txs []string) error {
			log.Info("transactions invalidated", "count", len(txs))
			return nil
		})

		proc := processor.New(tracker, log, mtr)
		runner := engine.NewRunner(registry, tracker, proc, jrnl, predicates,
			cfg.Global.MaxReorgDepth, flagDryRun, log, mtr)

		in, closeIn, err := openEvents(flagEvents)
		if err != nil {
			return err
		}
		defer closeIn()

		log.Info("ingest started",
			"events", flagEvents,
			"predicates", len(predicates),
			"dry_run", flagDryRun,
		)
		if err := runner.Run(ctx, in); err != nil {
			return err
		}
		log.Info("ingest finished")
		return nil
	},
}

func openEvents(path string) (io.Reader, func() error, error) {
	if path == "" || path == "-" {
		return os.Stdin, func() error { return nil }, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open events: %w", err)
	}
	return f, f.Close, nil
}

// registerBuiltins wires the structured-log handler for every event type the
// predicates reference plus the log and journal actions.
func registerBuiltins(registry *dispatch.Registry, predicates []predicate.Config, jrnl *journal.Journal, log *slog.Logger) {
	types := map[event.Type]struct{}{}
	for _, p := range predicates {
		types[p.EventType] = struct{}{}
	}
	for t := range types {
		registry.RegisterHandler(t, "log", func(ctx context.Context, ev event.Event, dc dispatch.Context) (any, error) {
			log.Info("event handled",
				"event_type", string(ev.Type()),
				"block_height", ev.Common().BlockHeight,
				"tx", ev.TxID(),
			)
			return nil, nil
		})
	}

	registry.RegisterAction("log", func(ctx context.Context, res predicate.Result, dc dispatch.Context) (any, error) {
		log.Info("match action",
			"predicate", res.PredicateID,
			"event_type", string(res.Event.Type()),
			"tx", res.Event.TxID(),
		)
		return nil, nil
	})
	if jrnl != nil {
		registry.RegisterAction("journal", func(ctx context.Context, res predicate.Result, dc dispatch.Context) (any, error) {
			hash := dispatch.EventHash(res.Event)
			if err := jrnl.RecordMatch(ctx, res.PredicateID, string(res.Event.Type()), hash, res.MatchedAt); err != nil {
				return nil, err
			}
			return hash, nil
		})
	}

	registry.RegisterErrorHandler(func(ctx context.Context, ev event.Event, handler string, err error) {
		log.Error("handler failure observed", "handler", handler, "event_type", string(ev.Type()), "err", err)
	})
}

// registerSinks turns each configured sink into a named action so predicates
// can reference sinks by id in their action lists.
func registerSinks(registry *dispatch.Registry, sinks []config.Sink) error {
	for _, s := range sinks {
		var sender sink.Sender
		var err error
		switch s.Type {
		case "slack":
			sender, err = sink.NewSlackSender(s.WebhookURL, s.Template)
		case "teams":
			sender, err = sink.NewTeamsSender(s.WebhookURL, s.Template)
		case "webhook":
			sender, err = sink.NewWebhookSender(s.URL, s.Method, s.Template, nil)
		default:
			continue
		}
		if err != nil {
			return fmt.Errorf("sink %s: %w", s.ID, err)
		}
		snd := sender
		registry.RegisterAction(s.ID, func(ctx context.Context, res predicate.Result, dc dispatch.Context) (any, error) {
			if err := snd.Send(ctx, sinkPayload(res)); err != nil {
				return nil, err
			}
			return "sent", nil
		})
	}
	return nil
}

func sinkPayload(res predicate.Result) sink.EventPayload {
	meta := res.Event.Common()
	payload := sink.EventPayload{
		PredicateID: res.PredicateID,
		EventType:   string(res.Event.Type()),
		BlockHeight: meta.BlockHeight,
		BlockHash:   meta.BlockHash,
		TxHash:      res.Event.TxID(),
		EventHash:   dispatch.EventHash(res.Event),
	}
	if tr, ok := res.Event.(*event.Transfer); ok && tr.Amount != nil {
		payload.Amount = tr.Amount.String()
	}
	return payload
}
