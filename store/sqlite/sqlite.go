/*
Package sqlite provides a SQLite-backed implementation of workforce.TxStateStore.

PURPOSE:
  Persists committed ticks: one full WorkforceState snapshot per tick, the
  outbound telemetry log and the finance ledger.

APPEND-ONLY ENFORCEMENT:
  - snapshots are keyed by tick; a tick is inserted once, never updated
  - events and ledger rows are only ever inserted
  - ledger idempotency keys are UNIQUE; a replayed entry fails with
    workforce.ErrDuplicateIdempotencyKey

KEY TABLES:
  snapshots: tick, schema version, digest, full state JSON
  events:    autoincrement seq, tick, topic, payload JSON
  ledger:    finance entries, amounts stored as decimal strings

INDEXES:
  - idx_events_tick: telemetry replay from a tick
  - idx_ledger_kind: totals by kind

CONCURRENCY:
  Uses sync.RWMutex for thread-safety and a single connection, so
  ":memory:" databases behave like files and a WithTx never waits on
  itself.

USAGE:
  st, err := sqlite.New("./data/workforce.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()

  err = workforce.Commit(ctx, st, prev, res)

MIGRATION:
  Schema is auto-migrated on New(). Snapshots record their schema version
  so a loader can refuse states it does not understand.

SEE ALSO:
  - workforce/store.go: Interface definitions
  - workforce/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/workforce-engine/workforce"
)

// Store implements workforce.TxStateStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- One row per committed tick
	CREATE TABLE IF NOT EXISTS snapshots (
		tick INTEGER PRIMARY KEY,
		schema_version INTEGER NOT NULL,
		seed TEXT NOT NULL,
		digest TEXT NOT NULL,
		state_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Outbound telemetry log (append-only)
	CREATE TABLE IF NOT EXISTS events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		tick INTEGER NOT NULL,
		topic TEXT NOT NULL,
		payload_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_tick
		ON events(tick);
	CREATE INDEX IF NOT EXISTS idx_events_topic
		ON events(topic, tick);

	-- Finance ledger (append-only)
	CREATE TABLE IF NOT EXISTS ledger (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		kind TEXT NOT NULL,
		amount TEXT NOT NULL,
		structure_id TEXT,
		employee_id TEXT,
		reason TEXT,
		idempotency_key TEXT NOT NULL UNIQUE
	);

	CREATE INDEX IF NOT EXISTS idx_ledger_kind
		ON ledger(kind);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SNAPSHOTS
// =============================================================================

// SaveSnapshot stores the state for its tick.
func (s *Store) SaveSnapshot(ctx context.Context, st workforce.WorkforceState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveSnapshot(ctx, s.db, st)
}

func saveSnapshot(ctx context.Context, q querier, st workforce.WorkforceState) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	digest, err := workforce.Digest(st)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO snapshots (tick, schema_version, seed, digest, state_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, st.Tick, st.SchemaVersion, st.Seed, digest, string(raw), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("snapshot for tick %d already stored", st.Tick)
		}
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the snapshot for tick.
func (s *Store) LoadSnapshot(ctx context.Context, tick int64) (workforce.WorkforceState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return loadSnapshot(ctx, s.db, "SELECT state_json FROM snapshots WHERE tick = ?", tick)
}

// Latest returns the highest-tick snapshot.
func (s *Store) Latest(ctx context.Context) (workforce.WorkforceState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return loadSnapshot(ctx, s.db, "SELECT state_json FROM snapshots ORDER BY tick DESC LIMIT 1")
}

func loadSnapshot(ctx context.Context, q querier, query string, args ...any) (workforce.WorkforceState, error) {
	var raw string
	err := q.QueryRowContext(ctx, query, args...).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return workforce.WorkforceState{}, workforce.ErrSnapshotNotFound
	}
	if err != nil {
		return workforce.WorkforceState{}, fmt.Errorf("failed to load snapshot: %w", err)
	}

	var st workforce.WorkforceState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return workforce.WorkforceState{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if st.SchemaVersion != workforce.SchemaVersion {
		return workforce.WorkforceState{}, fmt.Errorf("snapshot schema version %d, engine expects %d", st.SchemaVersion, workforce.SchemaVersion)
	}
	return st, nil
}

// Digest returns the stored digest for tick without decoding the state.
func (s *Store) Digest(ctx context.Context, tick int64) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var digest string
	err := s.db.QueryRowContext(ctx, "SELECT digest FROM snapshots WHERE tick = ?", tick).Scan(&digest)
	if errors.Is(err, sql.ErrNoRows) {
		return "", workforce.ErrSnapshotNotFound
	}
	return digest, err
}

// =============================================================================
// EVENTS
// =============================================================================

// AppendEvents stores events in order.
func (s *Store) AppendEvents(ctx context.Context, events []workforce.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := appendEvents(ctx, sqlTx, events); err != nil {
		return err
	}
	return sqlTx.Commit()
}

func appendEvents(ctx context.Context, q querier, events []workforce.Event) error {
	for _, ev := range events {
		raw, err := json.Marshal(ev.Payload)
		if err != nil {
			return fmt.Errorf("failed to encode %s payload: %w", ev.Topic, err)
		}
		if _, err := q.ExecContext(ctx,
			"INSERT INTO events (tick, topic, payload_json) VALUES (?, ?, ?)",
			ev.Tick, ev.Topic, string(raw),
		); err != nil {
			return fmt.Errorf("failed to append event: %w", err)
		}
	}
	return nil
}

// Events returns events with tick >= fromTick, payloads as json.RawMessage.
func (s *Store) Events(ctx context.Context, fromTick int64) ([]workforce.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryEvents(ctx, s.db,
		"SELECT tick, topic, payload_json FROM events WHERE tick >= ? ORDER BY seq ASC", fromTick)
}

// EventsByTopic returns one topic's events with tick >= fromTick.
func (s *Store) EventsByTopic(ctx context.Context, topic string, fromTick int64) ([]workforce.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryEvents(ctx, s.db,
		"SELECT tick, topic, payload_json FROM events WHERE topic = ? AND tick >= ? ORDER BY seq ASC", topic, fromTick)
}

func queryEvents(ctx context.Context, q querier, query string, args ...any) ([]workforce.Event, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []workforce.Event
	for rows.Next() {
		var (
			ev  workforce.Event
			raw string
		)
		if err := rows.Scan(&ev.Tick, &ev.Topic, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.Payload = json.RawMessage(raw)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// =============================================================================
// LEDGER
// =============================================================================

// AppendLedger adds entries atomically.
func (s *Store) AppendLedger(ctx context.Context, entries []workforce.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Check for duplicate idempotency keys within the batch first
	keys := make(map[string]bool, len(entries))
	for _, e := range entries {
		if keys[e.IdempotencyKey] {
			return workforce.ErrDuplicateIdempotencyKey
		}
		keys[e.IdempotencyKey] = true
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := appendLedger(ctx, sqlTx, entries); err != nil {
		return err
	}
	return sqlTx.Commit()
}

func appendLedger(ctx context.Context, q querier, entries []workforce.LedgerEntry) error {
	for _, e := range entries {
		_, err := q.ExecContext(ctx, `
			INSERT INTO ledger (id, tick, kind, amount, structure_id, employee_id, reason, idempotency_key)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			e.ID,
			e.Tick,
			e.Kind,
			e.Amount.String(),
			nullString(string(e.StructureID)),
			nullString(string(e.EmployeeID)),
			nullString(e.Reason),
			e.IdempotencyKey,
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("%w: %s", workforce.ErrDuplicateIdempotencyKey, e.IdempotencyKey)
			}
			return fmt.Errorf("failed to append ledger entry: %w", err)
		}
	}
	return nil
}

// Ledger returns every entry in insertion order.
func (s *Store) Ledger(ctx context.Context) ([]workforce.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryLedger(ctx, s.db)
}

func queryLedger(ctx context.Context, q querier) ([]workforce.LedgerEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, tick, kind, amount, structure_id, employee_id, reason, idempotency_key
		FROM ledger ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	defer rows.Close()

	var entries []workforce.LedgerEntry
	for rows.Next() {
		var (
			e                             workforce.LedgerEntry
			amount                        string
			structureID, employeeID, note sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Tick, &e.Kind, &amount, &structureID, &employeeID, &note, &e.IdempotencyKey); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		e.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("ledger entry %s: bad amount %q: %w", e.ID, amount, err)
		}
		e.StructureID = workforce.StructureID(structureID.String)
		e.EmployeeID = workforce.EmployeeID(employeeID.String)
		e.Reason = note.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// LedgerTotals sums amounts per kind.
func (s *Store) LedgerTotals(ctx context.Context) (map[workforce.LedgerKind]decimal.Decimal, error) {
	entries, err := s.Ledger(ctx)
	if err != nil {
		return nil, err
	}
	totals := make(map[workforce.LedgerKind]decimal.Decimal)
	for _, e := range entries {
		totals[e.Kind] = totals[e.Kind].Add(e.Amount)
	}
	return totals, nil
}

// =============================================================================
// TRANSACTIONAL STORE (workforce.TxStateStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store workforce.StateStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) SaveSnapshot(ctx context.Context, st workforce.WorkforceState) error {
	return saveSnapshot(ctx, ts.tx, st)
}

func (ts *txStore) LoadSnapshot(ctx context.Context, tick int64) (workforce.WorkforceState, error) {
	return loadSnapshot(ctx, ts.tx, "SELECT state_json FROM snapshots WHERE tick = ?", tick)
}

func (ts *txStore) Latest(ctx context.Context) (workforce.WorkforceState, error) {
	return loadSnapshot(ctx, ts.tx, "SELECT state_json FROM snapshots ORDER BY tick DESC LIMIT 1")
}

func (ts *txStore) AppendEvents(ctx context.Context, events []workforce.Event) error {
	return appendEvents(ctx, ts.tx, events)
}

func (ts *txStore) Events(ctx context.Context, fromTick int64) ([]workforce.Event, error) {
	return queryEvents(ctx, ts.tx,
		"SELECT tick, topic, payload_json FROM events WHERE tick >= ? ORDER BY seq ASC", fromTick)
}

func (ts *txStore) AppendLedger(ctx context.Context, entries []workforce.LedgerEntry) error {
	return appendLedger(ctx, ts.tx, entries)
}

func (ts *txStore) Ledger(ctx context.Context) ([]workforce.LedgerEntry, error) {
	return queryLedger(ctx, ts.tx)
}

// Reset deletes all data. Used by the dev server's scenario reload.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"snapshots", "events", "ledger"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

var (
	_ workforce.TxStateStore = (*Store)(nil)
	_ workforce.StateStore   = (*txStore)(nil)
)

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "PRIMARY KEY") ||
		strings.Contains(err.Error(), "duplicate key"))
}
