package processor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/devblac/chain-sentry/internal/event"
	"github.com/devblac/chain-sentry/internal/reorg"
)

func newFixture() (*Processor, *reorg.Tracker) {
	tracker := reorg.NewTracker(nil, nil)
	return New(tracker, nil, nil), tracker
}

func TestProcessEventRejectsAffectedTransaction(t *testing.T) {
	p, tracker := newFixture()
	tracker.HandleReorg(&event.Reorg{
		Meta:                 event.Meta{BlockHeight: 100},
		CommonAncestorHeight: 95,
		AffectedTransactions: []string{"0xbad"},
	})

	calls := 0
	out := p.ProcessEvent(context.Background(), &event.Transfer{TxHash: "0xbad"}, func(ctx context.Context, ev event.Event) error {
		calls++
		return nil
	})

	if out.Processed {
		t.Fatal("affected transaction must be rejected")
	}
	if !strings.Contains(out.Reason, "reorganization") {
		t.Fatalf("reason should mention reorganization: %q", out.Reason)
	}
	if calls != 0 {
		t.Fatalf("processor must not be invoked for rejected events, calls=%d", calls)
	}
}

func TestProcessEventRejectsRemovedBlock(t *testing.T) {
	p, tracker := newFixture()
	tracker.HandleReorg(&event.Reorg{
		Meta:               event.Meta{BlockHeight: 100},
		RemovedBlockHashes: []string{"0xgone"},
	})

	calls := 0
	ev := &event.Mint{Meta: event.Meta{BlockHash: "0xgone"}, TokenID: "1"}
	out := p.ProcessEvent(context.Background(), ev, func(ctx context.Context, ev event.Event) error {
		calls++
		return nil
	})
	if out.Processed || calls != 0 {
		t.Fatalf("event on a removed block must be rejected, out=%+v calls=%d", out, calls)
	}
	if !strings.Contains(out.Reason, "reorganization") {
		t.Fatalf("reason should mention reorganization: %q", out.Reason)
	}
}

func TestProcessEventCapturesProcessorError(t *testing.T) {
	p, _ := newFixture()
	out := p.ProcessEvent(context.Background(), &event.Transfer{TxHash: "0x1"}, func(ctx context.Context, ev event.Event) error {
		return errors.New("downstream unavailable")
	})
	if out.Processed {
		t.Fatal("failed processing must not report processed")
	}
	if out.Reason != "downstream unavailable" {
		t.Fatalf("reason = %q", out.Reason)
	}
}

func TestProcessEventRecoversPanic(t *testing.T) {
	p, _ := newFixture()
	out := p.ProcessEvent(context.Background(), &event.Transfer{TxHash: "0x1"}, func(ctx context.Context, ev event.Event) error {
		panic("kaput")
	})
	if out.Processed || out.Reason == "" {
		t.Fatalf("panic must become a structured outcome: %+v", out)
	}
}

func TestProcessEventValidPath(t *testing.T) {
	p, _ := newFixture()
	out := p.ProcessEvent(context.Background(), &event.Transfer{TxHash: "0xok"}, func(ctx context.Context, ev event.Event) error {
		return nil
	})
	if !out.Processed || out.Reason != "" {
		t.Fatalf("valid event should process cleanly: %+v", out)
	}
}

func TestProcessEventsIsolation(t *testing.T) {
	p, tracker := newFixture()
	tracker.HandleReorg(&event.Reorg{
		Meta:                 event.Meta{BlockHeight: 10},
		AffectedTransactions: []string{"0xbad"},
	})

	events := []event.Event{
		&event.Transfer{TxHash: "0xbad"},
		&event.Transfer{TxHash: "0xfail"},
		&event.Transfer{TxHash: "0xok"},
		&event.MetadataUpdate{Meta: event.Meta{BlockHash: "0xblock"}, EntityID: "e1"},
	}
	out := p.ProcessEvents(context.Background(), events, func(ctx context.Context, ev event.Event) error {
		if ev.TxID() == "0xfail" {
			return errors.New("boom")
		}
		return nil
	})

	if len(out) != 4 {
		t.Fatalf("expected 4 keyed outcomes, got %d", len(out))
	}
	if out["0xbad"].Processed {
		t.Fatal("rejected event leaked through")
	}
	if out["0xfail"].Processed || out["0xfail"].Reason != "boom" {
		t.Fatalf("unexpected outcome: %+v", out["0xfail"])
	}
	if !out["0xok"].Processed {
		t.Fatal("one event's failure must not affect another")
	}
	// Events without a tx hash key by block hash.
	if !out["0xblock"].Processed {
		t.Fatalf("metadata update should process: %+v", out["0xblock"])
	}
}
