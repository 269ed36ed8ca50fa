// Package reorg tracks chain reorganizations so that events tied to
// discarded blocks or transactions can be rejected at processing time.
//
// The tracker is a bounded FIFO ledger of reorg observations: each
// HandleReorg appends one immutable State and evicts the oldest beyond
// HistoryLimit entries, unconditionally. Queries answer against every
// retained entry; relevance is count-bounded, not height-bounded.
package reorg

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/devblac/chain-sentry/internal/event"
	"github.com/devblac/chain-sentry/internal/metrics"
)

// HistoryLimit caps the number of retained reorg observations.
const HistoryLimit = 10

// State is one recorded reorganization. Immutable after creation.
type State struct {
	ReorgHeight          uint64
	CommonAncestorHeight uint64
	AffectedTransactions map[string]struct{}
	RemovedBlocks        map[string]struct{}
	AddedBlocks          map[string]struct{}
	Timestamp            time.Time
}

// Depth is the number of blocks replaced by the reorg.
func (s *State) Depth() uint64 {
	if s.ReorgHeight < s.CommonAncestorHeight {
		return 0
	}
	return s.ReorgHeight - s.CommonAncestorHeight
}

// AffectedTxFunc is notified with the affected transactions of each newly
// recorded reorg. Errors are logged and isolated per callback.
type AffectedTxFunc func(txs []string) error

// RecoveryActions tells an external indexer what must be re-fetched or
// reconciled after the retained reorg history.
type RecoveryActions struct {
	ReprocessBlocks       []string `json:"reprocessBlocks"`
	ReprocessTransactions []string `json:"reprocessTransactions"`
	VerifyDataIntegrity   bool     `json:"verifyDataIntegrity"`
}

// Tracker owns the reorg history. Safe for concurrent use; callbacks run
// synchronously inside HandleReorg but outside the tracker lock.
type Tracker struct {
	mu        sync.Mutex
	history   []*State
	callbacks []AffectedTxFunc

	log     *slog.Logger
	metrics *metrics.Metrics
	nowFunc func() time.Time
}

// NewTracker builds an empty tracker. Both log and m may be nil.
func NewTracker(log *slog.Logger, m *metrics.Metrics) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{
		log:     log,
		metrics: m,
		nowFunc: time.Now,
	}
}

// OnAffectedTransactions registers a callback invoked for every recorded
// reorg with the full affected-transaction list.
func (t *Tracker) OnAffectedTransactions(fn AffectedTxFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.callbacks = append(t.callbacks, fn)
}

// HandleReorg records a reorg observation and notifies callbacks. The
// returned State must not be mutated by the caller.
func (t *Tracker) HandleReorg(ev *event.Reorg) *State {
	state := &State{
		ReorgHeight:          ev.BlockHeight,
		CommonAncestorHeight: ev.CommonAncestorHeight,
		AffectedTransactions: toSet(ev.AffectedTransactions),
		RemovedBlocks:        toSet(ev.RemovedBlockHashes),
		AddedBlocks:          toSet(ev.AddedBlockHashes),
		Timestamp:            t.nowFunc().UTC(),
	}

	t.mu.Lock()
	t.history = append(t.history, state)
	if len(t.history) > HistoryLimit {
		t.history = t.history[len(t.history)-HistoryLimit:]
	}
	callbacks := make([]AffectedTxFunc, len(t.callbacks))
	copy(callbacks, t.callbacks)
	t.mu.Unlock()

	t.metrics.ReorgsRecorded()
	t.log.Warn("reorg recorded",
		"height", state.ReorgHeight,
		"ancestor", state.CommonAncestorHeight,
		"depth", state.Depth(),
		"affected_txs", len(state.AffectedTransactions),
		"removed_blocks", len(state.RemovedBlocks),
	)

	affected := sortedKeys(state.AffectedTransactions)
	for i, fn := range callbacks {
		if err := safeNotify(fn, affected); err != nil {
			t.log.Error("reorg callback failed", "callback", i, "err", err)
		}
	}

	return state
}

// IsTransactionAffected reports whether any retained reorg invalidated the
// transaction.
func (t *Tracker) IsTransactionAffected(txHash string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range t.history {
		if _, ok := s.AffectedTransactions[txHash]; ok {
			return true
		}
	}
	return false
}

// IsBlockRemoved reports whether any retained reorg removed the block.
func (t *Tracker) IsBlockRemoved(blockHash string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range t.history {
		if _, ok := s.RemovedBlocks[blockHash]; ok {
			return true
		}
	}
	return false
}

// CurrentDepth returns the depth of the most recent reorg only, or 0 with
// an empty history. It is not cumulative across entries.
func (t *Tracker) CurrentDepth() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.history) == 0 {
		return 0
	}
	return t.history[len(t.history)-1].Depth()
}

// WithinDepth reports whether the most recent reorg is at most maxDepth
// blocks deep.
func (t *Tracker) WithinDepth(maxDepth uint64) bool {
	return t.CurrentDepth() <= maxDepth
}

// AffectedTransactionsSince returns the union of affected transactions
// across retained entries whose reorg height is at least height.
func (t *Tracker) AffectedTransactionsSince(height uint64) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	union := map[string]struct{}{}
	for _, s := range t.history {
		if s.ReorgHeight < height {
			continue
		}
		for tx := range s.AffectedTransactions {
			union[tx] = struct{}{}
		}
	}
	return sortedKeys(union)
}

// RecoveryActions summarizes the retained history into the hand-off
// contract for an external reindexing component.
func (t *Tracker) RecoveryActions() RecoveryActions {
	t.mu.Lock()
	defer t.mu.Unlock()
	blocks := map[string]struct{}{}
	txs := map[string]struct{}{}
	for _, s := range t.history {
		for b := range s.RemovedBlocks {
			blocks[b] = struct{}{}
		}
		for tx := range s.AffectedTransactions {
			txs[tx] = struct{}{}
		}
	}
	return RecoveryActions{
		ReprocessBlocks:       sortedKeys(blocks),
		ReprocessTransactions: sortedKeys(txs),
		VerifyDataIntegrity:   len(blocks) > 0 || len(txs) > 0,
	}
}

// HistoryLen returns the number of retained observations.
func (t *Tracker) HistoryLen() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.history)
}

// Reset clears the history entirely. Used after a full resynchronization.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.history = nil
}

func safeNotify(fn AffectedTxFunc, txs []string) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("callback panic: %v", rec)
		}
	}()
	return fn(txs)
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		set[v] = struct{}{}
	}
	return set
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
