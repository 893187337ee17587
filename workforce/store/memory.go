// Package store provides StateStore implementations.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/workforce-engine/workforce"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	snapshots   map[int64]workforce.WorkforceState
	events      []workforce.Event
	ledger      []workforce.LedgerEntry
	idempotency map[string]bool
}

func NewMemory() *Memory {
	return &Memory{
		snapshots:   make(map[int64]workforce.WorkforceState),
		idempotency: make(map[string]bool),
	}
}

func (m *Memory) SaveSnapshot(_ context.Context, s workforce.WorkforceState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked(s)
}

func (m *Memory) saveLocked(s workforce.WorkforceState) error {
	if _, exists := m.snapshots[s.Tick]; exists {
		return fmt.Errorf("snapshot for tick %d already stored", s.Tick)
	}
	m.snapshots[s.Tick] = s.Clone()
	return nil
}

func (m *Memory) LoadSnapshot(_ context.Context, tick int64) (workforce.WorkforceState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loadLocked(tick)
}

func (m *Memory) loadLocked(tick int64) (workforce.WorkforceState, error) {
	s, ok := m.snapshots[tick]
	if !ok {
		return workforce.WorkforceState{}, fmt.Errorf("%w: tick %d", workforce.ErrSnapshotNotFound, tick)
	}
	return s.Clone(), nil
}

func (m *Memory) Latest(ctx context.Context) (workforce.WorkforceState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latestLocked()
}

func (m *Memory) latestLocked() (workforce.WorkforceState, error) {
	if len(m.snapshots) == 0 {
		return workforce.WorkforceState{}, workforce.ErrSnapshotNotFound
	}
	var latest int64 = -1
	for tick := range m.snapshots {
		if tick > latest {
			latest = tick
		}
	}
	return m.loadLocked(latest)
}

// AppendEvents stores events with their payload encoded, the same shape
// the SQLite store returns.
func (m *Memory) AppendEvents(_ context.Context, events []workforce.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendEventsLocked(events)
}

func (m *Memory) appendEventsLocked(events []workforce.Event) error {
	encoded := make([]workforce.Event, 0, len(events))
	for _, ev := range events {
		raw, err := json.Marshal(ev.Payload)
		if err != nil {
			return fmt.Errorf("encode %s payload: %w", ev.Topic, err)
		}
		encoded = append(encoded, workforce.Event{Topic: ev.Topic, Tick: ev.Tick, Payload: json.RawMessage(raw)})
	}
	m.events = append(m.events, encoded...)
	return nil
}

func (m *Memory) Events(_ context.Context, fromTick int64) ([]workforce.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.eventsLocked(fromTick), nil
}

func (m *Memory) eventsLocked(fromTick int64) []workforce.Event {
	var out []workforce.Event
	for _, ev := range m.events {
		if ev.Tick >= fromTick {
			out = append(out, ev)
		}
	}
	return out
}

// AppendLedger adds entries atomically. Append-only.
func (m *Memory) AppendLedger(_ context.Context, entries []workforce.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLedgerLocked(entries)
}

func (m *Memory) appendLedgerLocked(entries []workforce.LedgerEntry) error {
	// Check all idempotency keys first (atomic check)
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if m.idempotency[e.IdempotencyKey] || seen[e.IdempotencyKey] {
			return fmt.Errorf("%w: %s", workforce.ErrDuplicateIdempotencyKey, e.IdempotencyKey)
		}
		seen[e.IdempotencyKey] = true
	}
	for _, e := range entries {
		m.ledger = append(m.ledger, e)
		m.idempotency[e.IdempotencyKey] = true
	}
	return nil
}

func (m *Memory) Ledger(_ context.Context) ([]workforce.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]workforce.LedgerEntry(nil), m.ledger...), nil
}

// Reset drops everything. Used when a new scenario is loaded.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = make(map[int64]workforce.WorkforceState)
	m.events = nil
	m.ledger = nil
	m.idempotency = make(map[string]bool)
	return nil
}

// Ticks returns the stored ticks in ascending order.
func (m *Memory) Ticks() []int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ticks := make([]int64, 0, len(m.snapshots))
	for tick := range m.snapshots {
		ticks = append(ticks, tick)
	}
	sort.Slice(ticks, func(i, j int) bool { return ticks[i] < ticks[j] })
	return ticks
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(workforce.StateStore) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()
	if err := fn(&txMemoryView{parent: tm}); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	snapshots   map[int64]workforce.WorkforceState
	events      int
	ledger      int
	idempotency map[string]bool
}

func (tm *TxMemory) snapshot() memorySnapshot {
	snaps := make(map[int64]workforce.WorkforceState, len(tm.snapshots))
	for k, v := range tm.snapshots {
		snaps[k] = v
	}
	idem := make(map[string]bool, len(tm.idempotency))
	for k, v := range tm.idempotency {
		idem[k] = v
	}
	return memorySnapshot{snapshots: snaps, events: len(tm.events), ledger: len(tm.ledger), idempotency: idem}
}

// restore relies on events and ledger being append-only: truncating to the
// saved length undoes the transaction.
func (tm *TxMemory) restore(s memorySnapshot) {
	tm.snapshots = s.snapshots
	tm.events = tm.events[:s.events]
	tm.ledger = tm.ledger[:s.ledger]
	tm.idempotency = s.idempotency
}

// txMemoryView runs against the parent while its lock is held.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) SaveSnapshot(_ context.Context, s workforce.WorkforceState) error {
	return tv.parent.saveLocked(s)
}

func (tv *txMemoryView) LoadSnapshot(_ context.Context, tick int64) (workforce.WorkforceState, error) {
	return tv.parent.loadLocked(tick)
}

func (tv *txMemoryView) Latest(_ context.Context) (workforce.WorkforceState, error) {
	return tv.parent.latestLocked()
}

func (tv *txMemoryView) AppendEvents(_ context.Context, events []workforce.Event) error {
	return tv.parent.appendEventsLocked(events)
}

func (tv *txMemoryView) Events(_ context.Context, fromTick int64) ([]workforce.Event, error) {
	return tv.parent.eventsLocked(fromTick), nil
}

func (tv *txMemoryView) AppendLedger(_ context.Context, entries []workforce.LedgerEntry) error {
	return tv.parent.appendLedgerLocked(entries)
}

func (tv *txMemoryView) Ledger(_ context.Context) ([]workforce.LedgerEntry, error) {
	return append([]workforce.LedgerEntry(nil), tv.parent.ledger...), nil
}

var (
	_ workforce.TxStateStore = (*TxMemory)(nil)
	_ workforce.StateStore   = (*txMemoryView)(nil)
)
