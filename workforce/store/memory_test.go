package store_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/workforce-engine/workforce"
	"github.com/warp/workforce-engine/workforce/store"
)

func state(tick int64) workforce.WorkforceState {
	s := workforce.NewState("seed", workforce.Catalog{})
	s.Tick = tick
	return s
}

func TestMemory_SnapshotsAndLatest(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	_, err := m.Latest(ctx)
	assert.ErrorIs(t, err, workforce.ErrSnapshotNotFound)

	require.NoError(t, m.SaveSnapshot(ctx, state(1)))
	require.NoError(t, m.SaveSnapshot(ctx, state(3)))
	require.NoError(t, m.SaveSnapshot(ctx, state(2)))
	assert.Error(t, m.SaveSnapshot(ctx, state(2)), "a tick is written once")

	latest, err := m.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), latest.Tick)

	_, err = m.LoadSnapshot(ctx, 9)
	assert.True(t, workforce.IsNotFound(err))
	assert.Equal(t, []int64{1, 2, 3}, m.Ticks())
}

func TestMemory_EventsComeBackEncoded(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	require.NoError(t, m.AppendEvents(ctx, []workforce.Event{
		{Topic: workforce.TopicKPI, Tick: 1, Payload: workforce.KPIPayload{Snapshot: workforce.KpiSnapshot{QueueDepth: 4}}},
		{Topic: workforce.TopicKPI, Tick: 2, Payload: workforce.KPIPayload{Snapshot: workforce.KpiSnapshot{QueueDepth: 5}}},
	}))

	events, err := m.Events(ctx, 2)
	require.NoError(t, err)
	require.Len(t, events, 1)

	raw, ok := events[0].Payload.(json.RawMessage)
	require.True(t, ok)
	var p workforce.KPIPayload
	require.NoError(t, json.Unmarshal(raw, &p))
	assert.Equal(t, 5, p.Snapshot.QueueDepth)
}

func TestMemory_LedgerRejectsDuplicateKeysAtomically(t *testing.T) {
	// GIVEN: A stored entry with key "a"
	// WHEN: A batch of "b" and "a" is appended
	// THEN: The batch fails and "b" is not stored

	ctx := context.Background()
	m := store.NewMemory()
	entry := func(key string) workforce.LedgerEntry {
		return workforce.LedgerEntry{ID: key, Kind: workforce.LedgerBonus, Amount: decimal.NewFromInt(1), IdempotencyKey: key}
	}
	require.NoError(t, m.AppendLedger(ctx, []workforce.LedgerEntry{entry("a")}))

	err := m.AppendLedger(ctx, []workforce.LedgerEntry{entry("b"), entry("a")})

	assert.ErrorIs(t, err, workforce.ErrDuplicateIdempotencyKey)
	all, _ := m.Ledger(ctx)
	assert.Len(t, all, 1)
}

func TestTxMemory_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	tm := store.NewTxMemory()
	require.NoError(t, tm.SaveSnapshot(ctx, state(1)))

	boom := errors.New("boom")
	err := tm.WithTx(ctx, func(tx workforce.StateStore) error {
		require.NoError(t, tx.SaveSnapshot(ctx, state(2)))
		require.NoError(t, tx.AppendEvents(ctx, []workforce.Event{{Topic: workforce.TopicKPI, Tick: 2}}))
		require.NoError(t, tx.AppendLedger(ctx, []workforce.LedgerEntry{{ID: "x", IdempotencyKey: "x"}}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	latest, err := tm.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), latest.Tick)
	events, _ := tm.Events(ctx, 0)
	assert.Empty(t, events)
	ledger, _ := tm.Ledger(ctx)
	assert.Empty(t, ledger)

	// the key is free again after rollback
	require.NoError(t, tm.AppendLedger(ctx, []workforce.LedgerEntry{{ID: "x", IdempotencyKey: "x"}}))
}

func TestCommit_PersistsTickAtomically(t *testing.T) {
	ctx := context.Background()
	tm := store.NewTxMemory()
	prev := state(0)
	next := state(1)
	next.Ledger = []workforce.LedgerEntry{{ID: "scan:s-1:1", Kind: workforce.LedgerScanCost, Amount: decimal.NewFromInt(1000), IdempotencyKey: "scan:s-1:1"}}
	res := &workforce.TickResult{State: next, Events: []workforce.Event{{Topic: workforce.TopicKPI, Tick: 1, Payload: workforce.KPIPayload{}}}}

	require.NoError(t, workforce.Commit(ctx, tm, prev, res))

	got, err := tm.LoadSnapshot(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, got.Ledger, 1)
	ledger, _ := tm.Ledger(ctx)
	assert.Len(t, ledger, 1)

	// replaying the same tick fails and leaves the store as it was
	assert.Error(t, workforce.Commit(ctx, tm, prev, res))
	events, _ := tm.Events(ctx, 0)
	assert.Len(t, events, 1)
}

func TestMemory_Reset(t *testing.T) {
	ctx := context.Background()
	m := store.NewTxMemory()
	require.NoError(t, m.SaveSnapshot(ctx, state(0)))
	require.NoError(t, m.AppendLedger(ctx, []workforce.LedgerEntry{
		{ID: "a", Kind: workforce.LedgerBonus, Amount: decimal.NewFromInt(5), IdempotencyKey: "a"},
	}))

	require.NoError(t, m.Reset(ctx))

	assert.Empty(t, m.Ticks())
	require.NoError(t, m.SaveSnapshot(ctx, state(0)), "tick 0 can be written again after a reset")
	require.NoError(t, m.AppendLedger(ctx, []workforce.LedgerEntry{
		{ID: "a", Kind: workforce.LedgerBonus, Amount: decimal.NewFromInt(5), IdempotencyKey: "a"},
	}))
}
