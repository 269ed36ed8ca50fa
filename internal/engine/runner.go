// Package engine wires the reorg tracker, reorg-aware processor, predicate
// evaluation, dispatch, and journal into one ingestion pipeline.
package engine

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/devblac/chain-sentry/internal/dispatch"
	"github.com/devblac/chain-sentry/internal/event"
	"github.com/devblac/chain-sentry/internal/journal"
	"github.com/devblac/chain-sentry/internal/metrics"
	"github.com/devblac/chain-sentry/internal/predicate"
	"github.com/devblac/chain-sentry/internal/processor"
	"github.com/devblac/chain-sentry/internal/reorg"
)

// Runner consumes typed events and drives them through the pipeline.
type Runner struct {
	registry   *dispatch.Registry
	tracker    *reorg.Tracker
	processor  *processor.Processor
	journal    *journal.Journal
	predicates []predicate.Config
	maxDepth   uint64
	dryRun     bool
	log        *slog.Logger
	metrics    *metrics.Metrics
}

// NewRunner builds a runner. journal may be nil to disable the audit
// record; log and m may be nil.
func NewRunner(
	registry *dispatch.Registry,
	tracker *reorg.Tracker,
	proc *processor.Processor,
	jrnl *journal.Journal,
	predicates []predicate.Config,
	maxDepth uint64,
	dryRun bool,
	log *slog.Logger,
	m *metrics.Metrics,
) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		registry:   registry,
		tracker:    tracker,
		processor:  proc,
		journal:    jrnl,
		predicates: predicates,
		maxDepth:   maxDepth,
		dryRun:     dryRun,
		log:        log,
		metrics:    m,
	}
}

// Run consumes newline-delimited events until EOF or context cancellation.
// A malformed line is logged and skipped; it never halts the stream.
func (r *Runner) Run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		ev, err := event.Decode(line)
		if err != nil {
			r.log.Error("skipping malformed event", "err", err)
			continue
		}
		r.HandleEvent(ctx, ev)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read events: %w", err)
	}
	return nil
}

// HandleEvent routes one event: reorgs feed the tracker, everything else
// goes through the reorg-aware processor into dispatch.
func (r *Runner) HandleEvent(ctx context.Context, ev event.Event) {
	r.metrics.EventsIngested()

	if re, ok := ev.(*event.Reorg); ok {
		r.handleReorg(ctx, re)
		return
	}

	outcome := r.processor.ProcessEvent(ctx, ev, r.process)
	if !outcome.Processed {
		r.log.Warn("event not processed", "event_type", string(ev.Type()), "reason", outcome.Reason)
	}
}

func (r *Runner) handleReorg(ctx context.Context, re *event.Reorg) {
	state := r.tracker.HandleReorg(re)
	if r.journal != nil {
		if err := r.journal.RecordReorg(ctx, state); err != nil {
			r.log.Error("journal reorg", "err", err)
		}
	}
	if !r.tracker.WithinDepth(r.maxDepth) {
		actions := r.tracker.RecoveryActions()
		r.log.Error("reorg exceeds configured depth",
			"depth", state.Depth(),
			"max_depth", r.maxDepth,
			"reprocess_blocks", len(actions.ReprocessBlocks),
			"reprocess_txs", len(actions.ReprocessTransactions),
		)
	}
}

func (r *Runner) process(ctx context.Context, ev event.Event) error {
	dc := dispatch.Context{"source": "ingest"}

	resp := r.registry.Dispatch(ctx, ev.Type(), ev, dc)
	if r.journal != nil {
		payload, err := event.Encode(ev)
		if err != nil {
			payload = nil
		}
		if err := r.journal.RecordDispatch(ctx, string(ev.Type()), string(payload), resp); err != nil {
			r.log.Error("journal dispatch", "err", err)
		}
	}

	for _, res := range predicate.EvaluateEvents([]event.Event{ev}, r.predicates) {
		r.log.Info("predicate matched",
			"predicate", res.PredicateID,
			"event_type", string(ev.Type()),
			"event_hash", resp.EventHash,
		)
		if r.dryRun {
			continue
		}
		r.registry.ExecuteActions(ctx, res, dc)
	}
	return nil
}
