// Package journal keeps a SQLite audit record of dispatch responses and
// observed reorgs. It is an operator-facing artifact for the export and
// state commands; the in-memory reorg tracker is intentionally not
// restored from it on restart.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/devblac/chain-sentry/internal/dispatch"
	"github.com/devblac/chain-sentry/internal/reorg"
)

// Journal wraps SQLite-backed persistence for dispatches and reorgs.
type Journal struct {
	db *sql.DB
}

// Open initializes a SQLite database and runs minimal schema setup.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := configure(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Journal{db: db}, nil
}

// Close releases the underlying database handle.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Ping checks database connectivity.
func (j *Journal) Ping(ctx context.Context) error {
	if j == nil || j.db == nil {
		return errors.New("journal not initialized")
	}
	return j.db.PingContext(ctx)
}

func configure(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	pragmas := []string{
		"PRAGMA foreign_keys = ON;",
		"PRAGMA journal_mode = WAL;",
		"PRAGMA busy_timeout = 5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("set pragma %q: %w", p, err)
		}
	}
	return nil
}

func migrate(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	schema := `
CREATE TABLE IF NOT EXISTS dispatches (
  id             TEXT PRIMARY KEY,
  event_hash     TEXT NOT NULL,
  event_type     TEXT NOT NULL,
  success        INTEGER NOT NULL,
  processing_ms  INTEGER NOT NULL,
  payload_json   TEXT,
  created_at     TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS dispatch_actions (
  dispatch_id  TEXT NOT NULL,
  seq          INTEGER NOT NULL,
  name         TEXT NOT NULL,
  status       TEXT NOT NULL,
  error        TEXT,
  PRIMARY KEY(dispatch_id, seq)
);

CREATE TABLE IF NOT EXISTS matches (
  id            TEXT PRIMARY KEY,
  predicate_id  TEXT NOT NULL,
  event_type    TEXT NOT NULL,
  event_hash    TEXT,
  matched_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS reorgs (
  id               TEXT PRIMARY KEY,
  reorg_height     INTEGER NOT NULL,
  ancestor_height  INTEGER NOT NULL,
  depth            INTEGER NOT NULL,
  removed_blocks   INTEGER NOT NULL,
  affected_txs     INTEGER NOT NULL,
  created_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// RecordDispatch stores one dispatch response and its action entries
// atomically.
func (j *Journal) RecordDispatch(ctx context.Context, eventType string, payloadJSON string, resp dispatch.Response) error {
	if eventType == "" {
		return errors.New("eventType required")
	}
	id := uuid.NewString()
	return j.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
INSERT INTO dispatches (id, event_hash, event_type, success, processing_ms, payload_json, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?);
`, id, resp.EventHash, eventType, boolToInt(resp.Success), resp.ProcessingMs, payloadJSON, resp.HandledAt.UTC())
		if err != nil {
			return fmt.Errorf("insert dispatch: %w", err)
		}
		for i, a := range resp.Actions {
			_, err := tx.ExecContext(ctx, `
INSERT INTO dispatch_actions (dispatch_id, seq, name, status, error)
VALUES (?, ?, ?, ?, ?);
`, id, i, a.Name, a.Status, a.Error)
			if err != nil {
				return fmt.Errorf("insert action: %w", err)
			}
		}
		return nil
	})
}

// RecordMatch stores one predicate match row. eventHash may be empty.
func (j *Journal) RecordMatch(ctx context.Context, predicateID, eventType, eventHash string, matchedAt time.Time) error {
	if predicateID == "" {
		return errors.New("predicateID required")
	}
	_, err := j.db.ExecContext(ctx, `
INSERT INTO matches (id, predicate_id, event_type, event_hash, matched_at)
VALUES (?, ?, ?, ?, ?);
`, uuid.NewString(), predicateID, eventType, eventHash, matchedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert match: %w", err)
	}
	return nil
}

// RecordReorg stores a summary row for one recorded reorg.
func (j *Journal) RecordReorg(ctx context.Context, st *reorg.State) error {
	if st == nil {
		return errors.New("state required")
	}
	_, err := j.db.ExecContext(ctx, `
INSERT INTO reorgs (id, reorg_height, ancestor_height, depth, removed_blocks, affected_txs, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?);
`, uuid.NewString(), st.ReorgHeight, st.CommonAncestorHeight, st.Depth(),
		len(st.RemovedBlocks), len(st.AffectedTransactions), st.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("insert reorg: %w", err)
	}
	return nil
}

// DispatchRecord is one journaled dispatch with its action entries.
type DispatchRecord struct {
	ID           string                   `json:"id"`
	EventHash    string                   `json:"eventHash"`
	EventType    string                   `json:"eventType"`
	Success      bool                     `json:"success"`
	ProcessingMs int64                    `json:"processingTimeMs"`
	PayloadJSON  string                   `json:"payload,omitempty"`
	CreatedAt    time.Time                `json:"createdAt"`
	Actions      []dispatch.ActionOutcome `json:"actions"`
}

// ListDispatches returns the most recent dispatches, newest first.
func (j *Journal) ListDispatches(ctx context.Context, limit int) ([]DispatchRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := j.db.QueryContext(ctx, `
SELECT id, event_hash, event_type, success, processing_ms, payload_json, created_at
FROM dispatches ORDER BY created_at DESC, id LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list dispatches: %w", err)
	}
	defer rows.Close()

	var records []DispatchRecord
	for rows.Next() {
		var rec DispatchRecord
		var success int
		var payload sql.NullString
		if err := rows.Scan(&rec.ID, &rec.EventHash, &rec.EventType, &success, &rec.ProcessingMs, &payload, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan dispatch: %w", err)
		}
		rec.Success = success != 0
		rec.PayloadJSON = payload.String
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list dispatches: %w", err)
	}

	for i := range records {
		actions, err := j.listActions(ctx, records[i].ID)
		if err != nil {
			return nil, err
		}
		records[i].Actions = actions
	}
	return records, nil
}

func (j *Journal) listActions(ctx context.Context, dispatchID string) ([]dispatch.ActionOutcome, error) {
	rows, err := j.db.QueryContext(ctx, `
SELECT name, status, error FROM dispatch_actions WHERE dispatch_id = ? ORDER BY seq;
`, dispatchID)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer rows.Close()

	var actions []dispatch.ActionOutcome
	for rows.Next() {
		var a dispatch.ActionOutcome
		var errMsg sql.NullString
		if err := rows.Scan(&a.Name, &a.Status, &errMsg); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		a.Error = errMsg.String
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// Summary aggregates journal contents for the state command.
type Summary struct {
	Dispatches       int64
	FailedDispatches int64
	Matches          int64
	Reorgs           int64
	DeepestReorg     int64
}

// Summarize computes journal-wide counts.
func (j *Journal) Summarize(ctx context.Context) (Summary, error) {
	var s Summary
	row := j.db.QueryRowContext(ctx, `
SELECT COUNT(*), COALESCE(SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END), 0) FROM dispatches;
`)
	if err := row.Scan(&s.Dispatches, &s.FailedDispatches); err != nil {
		return Summary{}, fmt.Errorf("summarize dispatches: %w", err)
	}
	row = j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM matches;`)
	if err := row.Scan(&s.Matches); err != nil {
		return Summary{}, fmt.Errorf("summarize matches: %w", err)
	}
	row = j.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(MAX(depth), 0) FROM reorgs;`)
	if err := row.Scan(&s.Reorgs, &s.DeepestReorg); err != nil {
		return Summary{}, fmt.Errorf("summarize reorgs: %w", err)
	}
	return s, nil
}

// WithTx executes a callback inside a transaction for callers needing atomicity.
func (j *Journal) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
