/*
store.go - Persistence interface for snapshots, telemetry and the ledger

PURPOSE:
  Defines the boundary between the engine and whatever keeps its output.
  The engine itself never touches a store: the host steps a tick, then
  saves the resulting snapshot and events in one transaction.

APPEND-ONLY CONTRACT:
  - SaveSnapshot writes the state for its tick. A tick is written once.
  - AppendEvents and AppendLedger only add records.
  - There is no Update or Delete.

IDEMPOTENCY:
  Ledger entries carry an idempotency key. Storing the same key twice
  returns ErrDuplicateIdempotencyKey, so replaying a tick after a crash is
  safe.

IMPLEMENTATIONS:
  - workforce/store/memory.go: In-memory for tests and dev
  - store/sqlite/sqlite.go: SQLite

EXAMPLE:
  err := st.WithTx(ctx, func(tx workforce.StateStore) error {
      if err := tx.SaveSnapshot(ctx, res.State); err != nil {
          return err
      }
      return tx.AppendEvents(ctx, res.Events)
  })
*/
package workforce

import "context"

// StateStore persists committed ticks.
type StateStore interface {
	// SaveSnapshot persists s under s.Tick. Saving a tick twice is an error.
	SaveSnapshot(ctx context.Context, s WorkforceState) error

	// LoadSnapshot returns the snapshot for tick or ErrSnapshotNotFound.
	LoadSnapshot(ctx context.Context, tick int64) (WorkforceState, error)

	// Latest returns the highest-tick snapshot or ErrSnapshotNotFound.
	Latest(ctx context.Context) (WorkforceState, error)

	// AppendEvents persists telemetry records in order.
	AppendEvents(ctx context.Context, events []Event) error

	// Events returns records with Tick >= fromTick in insertion order.
	// Payloads come back as json.RawMessage.
	Events(ctx context.Context, fromTick int64) ([]Event, error)

	// AppendLedger persists finance entries atomically. A duplicate
	// idempotency key fails the whole batch.
	AppendLedger(ctx context.Context, entries []LedgerEntry) error

	// Ledger returns all entries in insertion order.
	Ledger(ctx context.Context) ([]LedgerEntry, error)
}

// TxStateStore adds transactions.
type TxStateStore interface {
	StateStore

	// WithTx executes fn within a transaction.
	// If fn returns error, every write in it is rolled back.
	WithTx(ctx context.Context, fn func(StateStore) error) error
}

// NewLedgerEntries returns the entries in next that prev does not have.
// Hosts use it to push only the current tick's ledger delta to a store.
func NewLedgerEntries(prev, next WorkforceState) []LedgerEntry {
	if len(next.Ledger) <= len(prev.Ledger) {
		return nil
	}
	return append([]LedgerEntry(nil), next.Ledger[len(prev.Ledger):]...)
}

// Commit saves a tick result atomically: snapshot, events and ledger delta.
func Commit(ctx context.Context, st TxStateStore, prev WorkforceState, res *TickResult) error {
	return st.WithTx(ctx, func(tx StateStore) error {
		if err := tx.SaveSnapshot(ctx, res.State); err != nil {
			return err
		}
		if err := tx.AppendEvents(ctx, res.Events); err != nil {
			return err
		}
		if entries := NewLedgerEntries(prev, res.State); len(entries) > 0 {
			return tx.AppendLedger(ctx, entries)
		}
		return nil
	})
}
