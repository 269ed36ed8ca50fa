// Package processor guards event processing against chain reorganizations.
// Events are queued and processed at different times, so validity is
// re-checked against the reorg tracker at the moment of processing, not
// only at ingestion.
package processor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/devblac/chain-sentry/internal/event"
	"github.com/devblac/chain-sentry/internal/metrics"
	"github.com/devblac/chain-sentry/internal/reorg"
)

// Outcome is the structured per-event result. Rejection by reorg is an
// outcome, not an error.
type Outcome struct {
	Processed bool   `json:"processed"`
	Reason    string `json:"reason,omitempty"`
}

// Func is the caller-supplied processing function.
type Func func(ctx context.Context, ev event.Event) error

// Processor rejects reorg-invalidated events before handing them to the
// processing function.
type Processor struct {
	tracker *reorg.Tracker
	log     *slog.Logger
	metrics *metrics.Metrics
}

// New builds a processor around the given tracker. log and m may be nil.
func New(tracker *reorg.Tracker, log *slog.Logger, m *metrics.Metrics) *Processor {
	if log == nil {
		log = slog.Default()
	}
	return &Processor{tracker: tracker, log: log, metrics: m}
}

// ProcessEvent validates the event against recorded reorgs and, when still
// valid, invokes fn. It never panics and never returns an error: a failed
// fn becomes an Outcome with its message as the reason.
func (p *Processor) ProcessEvent(ctx context.Context, ev event.Event, fn Func) Outcome {
	if tx := ev.TxID(); tx != "" && p.tracker.IsTransactionAffected(tx) {
		p.metrics.EventsRejected()
		p.log.Info("event rejected", "tx", tx, "reason", "reorganization")
		return Outcome{Reason: fmt.Sprintf("transaction %s invalidated by chain reorganization", tx)}
	}
	if bh := ev.Common().BlockHash; bh != "" && p.tracker.IsBlockRemoved(bh) {
		p.metrics.EventsRejected()
		p.log.Info("event rejected", "block", bh, "reason", "reorganization")
		return Outcome{Reason: fmt.Sprintf("block %s removed by chain reorganization", bh)}
	}

	if err := safeProcess(ctx, ev, fn); err != nil {
		return Outcome{Reason: err.Error()}
	}
	return Outcome{Processed: true}
}

// ProcessEvents applies ProcessEvent independently to each event, in input
// order. Results are keyed by transaction hash, falling back to the block
// hash for variants without one.
func (p *Processor) ProcessEvents(ctx context.Context, events []event.Event, fn Func) map[string]Outcome {
	results := make(map[string]Outcome, len(events))
	for _, ev := range events {
		key := ev.TxID()
		if key == "" {
			key = ev.Common().BlockHash
		}
		results[key] = p.ProcessEvent(ctx, ev, fn)
	}
	return results
}

func safeProcess(ctx context.Context, ev event.Event, fn Func) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("processor panic: %v", rec)
		}
	}()
	return fn(ctx, ev)
}
