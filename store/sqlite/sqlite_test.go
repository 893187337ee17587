package sqlite_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/workforce-engine/store/sqlite"
	"github.com/warp/workforce-engine/workforce"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func state(tick int64) workforce.WorkforceState {
	s := workforce.NewState("seed", workforce.Catalog{})
	s.Tick = tick
	return s
}

func entry(key string, amount int64) workforce.LedgerEntry {
	return workforce.LedgerEntry{
		ID:             key,
		Tick:           1,
		Kind:           workforce.LedgerBonus,
		Amount:         decimal.NewFromInt(amount),
		EmployeeID:     "emp-1",
		IdempotencyKey: key,
	}
}

// =============================================================================
// SNAPSHOTS
// =============================================================================

func TestSQLite_SnapshotRoundTripKeepsDigest(t *testing.T) {
	// GIVEN: A state with an employee and a ledger entry
	// WHEN: It is saved and loaded back
	// THEN: The loaded state has the same digest

	ctx := context.Background()
	st := newStore(t)

	s := state(4)
	s.Employees = []workforce.Employee{{
		ID:                 "emp-1",
		StructureID:        "s-1",
		RoleID:             "role-gardener",
		Morale01:           0.7,
		Skills:             workforce.SkillLevels{"gardening": 0.6},
		Schedule:           workforce.Schedule{HoursPerDay: 8, OvertimeHoursPerDay: 2, DaysPerWeek: 5},
		BaseRateMultiplier: 1,
	}}
	s.Ledger = []workforce.LedgerEntry{entry("bonus:emp-1:1", 250)}
	require.NoError(t, st.SaveSnapshot(ctx, s))

	loaded, err := st.LoadSnapshot(ctx, 4)
	require.NoError(t, err)

	want, err := workforce.Digest(s)
	require.NoError(t, err)
	got, err := workforce.Digest(loaded)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	stored, err := st.Digest(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, want, stored)
}

func TestSQLite_LatestAndMissing(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)

	_, err := st.Latest(ctx)
	assert.ErrorIs(t, err, workforce.ErrSnapshotNotFound)

	require.NoError(t, st.SaveSnapshot(ctx, state(1)))
	require.NoError(t, st.SaveSnapshot(ctx, state(5)))
	require.NoError(t, st.SaveSnapshot(ctx, state(3)))
	assert.Error(t, st.SaveSnapshot(ctx, state(3)), "a tick is written once")

	latest, err := st.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), latest.Tick)

	_, err = st.LoadSnapshot(ctx, 2)
	assert.True(t, workforce.IsNotFound(err))
}

// =============================================================================
// EVENTS
// =============================================================================

func TestSQLite_EventsFiltered(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)

	require.NoError(t, st.AppendEvents(ctx, []workforce.Event{
		{Topic: workforce.TopicKPI, Tick: 1, Payload: workforce.KPIPayload{Snapshot: workforce.KpiSnapshot{QueueDepth: 2}}},
		{Topic: workforce.TopicWarning, Tick: 2, Payload: workforce.WarningPayload{}},
		{Topic: workforce.TopicKPI, Tick: 2, Payload: workforce.KPIPayload{Snapshot: workforce.KpiSnapshot{QueueDepth: 3}}},
	}))

	events, err := st.Events(ctx, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, workforce.TopicWarning, events[0].Topic)

	kpis, err := st.EventsByTopic(ctx, workforce.TopicKPI, 0)
	require.NoError(t, err)
	require.Len(t, kpis, 2)

	raw, ok := kpis[1].Payload.(json.RawMessage)
	require.True(t, ok)
	var p workforce.KPIPayload
	require.NoError(t, json.Unmarshal(raw, &p))
	assert.Equal(t, 3, p.Snapshot.QueueDepth)
}

// =============================================================================
// LEDGER
// =============================================================================

func TestSQLite_LedgerDecimalAndDuplicates(t *testing.T) {
	// GIVEN: A stored bonus entry
	// WHEN: A batch replays its key
	// THEN: The batch fails atomically and amounts keep exact decimal values

	ctx := context.Background()
	st := newStore(t)

	first := entry("a", 0)
	first.Amount = decimal.RequireFromString("1234.567891")
	require.NoError(t, st.AppendLedger(ctx, []workforce.LedgerEntry{first}))

	err := st.AppendLedger(ctx, []workforce.LedgerEntry{entry("b", 10), entry("a", 10)})
	assert.ErrorIs(t, err, workforce.ErrDuplicateIdempotencyKey)

	err = st.AppendLedger(ctx, []workforce.LedgerEntry{entry("c", 1), entry("c", 1)})
	assert.ErrorIs(t, err, workforce.ErrDuplicateIdempotencyKey)

	all, err := st.Ledger(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Amount.Equal(first.Amount))
	assert.Equal(t, workforce.EmployeeID("emp-1"), all[0].EmployeeID)
	assert.Empty(t, all[0].StructureID)

	totals, err := st.LedgerTotals(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1234.567891", totals[workforce.LedgerBonus].String())
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestSQLite_WithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	require.NoError(t, st.SaveSnapshot(ctx, state(1)))

	boom := errors.New("boom")
	err := st.WithTx(ctx, func(tx workforce.StateStore) error {
		require.NoError(t, tx.SaveSnapshot(ctx, state(2)))
		require.NoError(t, tx.AppendEvents(ctx, []workforce.Event{{Topic: workforce.TopicKPI, Tick: 2, Payload: workforce.KPIPayload{}}}))
		require.NoError(t, tx.AppendLedger(ctx, []workforce.LedgerEntry{entry("x", 5)}))

		// reads inside the transaction see its own writes
		latest, err := tx.Latest(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), latest.Tick)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	latest, err := st.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), latest.Tick)
	events, _ := st.Events(ctx, 0)
	assert.Empty(t, events)
	ledger, _ := st.Ledger(ctx)
	assert.Empty(t, ledger)
}

func TestSQLite_CommitTick(t *testing.T) {
	// GIVEN: A tick result that booked a scan fee
	// WHEN: It is committed twice
	// THEN: The first commit persists everything, the replay fails and
	//       leaves the store unchanged

	ctx := context.Background()
	st := newStore(t)
	prev := state(0)
	next := state(1)
	next.Ledger = []workforce.LedgerEntry{{
		ID:             "scan:s-1:1",
		Tick:           1,
		Kind:           workforce.LedgerScanCost,
		Amount:         decimal.NewFromInt(1000),
		StructureID:    "s-1",
		IdempotencyKey: "scan:s-1:1",
	}}
	res := &workforce.TickResult{
		State:  next,
		Events: []workforce.Event{{Topic: workforce.TopicKPI, Tick: 1, Payload: workforce.KPIPayload{}}},
	}

	require.NoError(t, workforce.Commit(ctx, st, prev, res))
	assert.Error(t, workforce.Commit(ctx, st, prev, res))

	ledger, err := st.Ledger(ctx)
	require.NoError(t, err)
	require.Len(t, ledger, 1)
	assert.Equal(t, workforce.StructureID("s-1"), ledger[0].StructureID)
	events, _ := st.Events(ctx, 0)
	assert.Len(t, events, 1)
}

func TestSQLite_Reset(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	require.NoError(t, st.SaveSnapshot(ctx, state(1)))
	require.NoError(t, st.AppendLedger(ctx, []workforce.LedgerEntry{entry("a", 1)}))

	require.NoError(t, st.Reset(ctx))

	_, err := st.Latest(ctx)
	assert.ErrorIs(t, err, workforce.ErrSnapshotNotFound)
	require.NoError(t, st.AppendLedger(ctx, []workforce.LedgerEntry{entry("a", 1)}))
}
