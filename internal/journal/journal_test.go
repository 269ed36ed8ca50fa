package journal

import (
	"context"
	"testing"
	"time"

	"github.com/devblac/chain-sentry/internal/dispatch"
	"github.com/devblac/chain-sentry/internal/event"
	"github.com/devblac/chain-sentry/internal/reorg"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(t.TempDir() + "/journal.sqlite")
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestRecordAndListDispatches(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	resp := dispatch.Response{
		Success:      false,
		EventHash:    "abc123",
		HandledAt:    time.Now().UTC(),
		ProcessingMs: 4,
		Actions: []dispatch.ActionOutcome{
			{Name: "log", Status: dispatch.StatusSuccess},
			{Name: "notify", Status: dispatch.StatusFailed, Error: "boom"},
		},
	}
	if err := j.RecordDispatch(ctx, "transfer", `{"type":"transfer"}`, resp); err != nil {
		t.Fatalf("record dispatch: %v", err)
	}

	records, err := j.ListDispatches(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	rec := records[0]
	if rec.EventHash != "abc123" || rec.Success || rec.EventType != "transfer" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if len(rec.Actions) != 2 || rec.Actions[1].Error != "boom" {
		t.Fatalf("unexpected actions: %+v", rec.Actions)
	}
}

func TestRecordDispatchRequiresType(t *testing.T) {
	j := newTestJournal(t)
	if err := j.RecordDispatch(context.Background(), "", "", dispatch.Response{}); err == nil {
		t.Fatal("expected error for empty event type")
	}
}

func TestRecordReorgAndSummarize(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	tracker := reorg.NewTracker(nil, nil)
	st := tracker.HandleReorg(&event.Reorg{
		Meta:                 event.Meta{BlockHeight: 100010},
		CommonAncestorHeight: 100005,
		AffectedTransactions: []string{"tx-1"},
		RemovedBlockHashes:   []string{"block-1"},
	})
	if err := j.RecordReorg(ctx, st); err != nil {
		t.Fatalf("record reorg: %v", err)
	}
	if err := j.RecordDispatch(ctx, "transfer", "", dispatch.Response{Success: true, HandledAt: time.Now()}); err != nil {
		t.Fatalf("record dispatch: %v", err)
	}
	if err := j.RecordMatch(ctx, "large-transfers", "transfer", "abc123", time.Now()); err != nil {
		t.Fatalf("record match: %v", err)
	}
	if err := j.RecordMatch(ctx, "", "transfer", "", time.Now()); err == nil {
		t.Fatal("expected error for empty predicate id")
	}

	s, err := j.Summarize(ctx)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if s.Dispatches != 1 || s.FailedDispatches != 0 || s.Matches != 1 {
		t.Fatalf("unexpected summary: %+v", s)
	}
	if s.Reorgs != 1 || s.DeepestReorg != 5 {
		t.Fatalf("unexpected summary: %+v", s)
	}
}

func TestPing(t *testing.T) {
	j := newTestJournal(t)
	if err := j.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	var nilJournal *Journal
	if err := nilJournal.Ping(context.Background()); err == nil {
		t.Fatal("nil journal should fail ping")
	}
}
