package api_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/workforce-engine/api"
	"github.com/warp/workforce-engine/factory"
	"github.com/warp/workforce-engine/workforce"
	"github.com/warp/workforce-engine/workforce/store"
)

func newEngine(t *testing.T) *workforce.Engine {
	t.Helper()
	e, err := workforce.NewEngine(factory.GreenhouseCatalog(), workforce.DefaultTuning(), workforce.WithLogger(quiet))
	require.NoError(t, err)
	return e
}

func scenario(t *testing.T, id string) factory.Scenario {
	t.Helper()
	sc, ok := factory.Lookup(id)
	require.True(t, ok, id)
	return sc
}

// failingStore commits nothing while fail is set.
type failingStore struct {
	*store.TxMemory
	fail bool
}

func (f *failingStore) WithTx(ctx context.Context, fn func(workforce.StateStore) error) error {
	if f.fail {
		return errors.New("disk full")
	}
	return f.TxMemory.WithTx(ctx, fn)
}

func TestSimulation_SeedOverride(t *testing.T) {
	ctx := context.Background()
	sim := api.NewSimulation(newEngine(t), store.NewTxMemory(), api.WithSimLogger(quiet))

	require.NoError(t, sim.Load(ctx, scenario(t, "greenhouse-basic"), "moon"))
	state, err := sim.State()
	require.NoError(t, err)

	assert.Equal(t, "moon", state.Seed)
	assert.Equal(t, int64(0), state.Tick)
	assert.Equal(t, "greenhouse-basic", sim.Scenario())
}

func TestSimulation_FailedCommitKeepsStateAndIntents(t *testing.T) {
	// GIVEN: A loaded scenario with opening intents queued
	// WHEN: The store refuses the commit
	// THEN: The tick is not applied and the intents are still pending;
	//       the next successful Advance applies them

	ctx := context.Background()
	st := &failingStore{TxMemory: store.NewTxMemory()}
	sim := api.NewSimulation(newEngine(t), st, api.WithSimLogger(quiet))
	require.NoError(t, sim.Load(ctx, scenario(t, "hiring-drive"), ""))
	opening := len(sim.Pending())

	st.fail = true
	_, err := sim.Advance(ctx, 1)
	require.Error(t, err)

	state, err := sim.State()
	require.NoError(t, err)
	assert.Equal(t, int64(0), state.Tick)
	assert.Len(t, sim.Pending(), opening)

	st.fail = false
	results, err := sim.Advance(ctx, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].State.Market.ScanCounters[factory.GreenhouseSouth])
	assert.Empty(t, sim.Pending())
}

func TestSimulation_ResumeFromStore(t *testing.T) {
	ctx := context.Background()
	st := store.NewTxMemory()
	engine := newEngine(t)

	first := api.NewSimulation(engine, st, api.WithSimLogger(quiet))
	require.ErrorIs(t, first.Resume(ctx), workforce.ErrSnapshotNotFound)

	require.NoError(t, first.Load(ctx, scenario(t, "greenhouse-basic"), ""))
	_, err := first.Advance(ctx, 5)
	require.NoError(t, err)
	want, err := first.State()
	require.NoError(t, err)

	second := api.NewSimulation(engine, st, api.WithSimLogger(quiet))
	require.NoError(t, second.Resume(ctx))
	got, err := second.State()
	require.NoError(t, err)

	assert.Equal(t, want.Tick, got.Tick)
	require.Len(t, got.Employees, len(want.Employees))
	for i := range want.Employees {
		assert.Equal(t, want.Employees[i].ID, got.Employees[i].ID)
		assert.InDelta(t, want.Employees[i].Fatigue01, got.Employees[i].Fatigue01, 1e-12)
	}
	assert.Empty(t, second.Scenario())

	results, err := second.Advance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(6), results[0].State.Tick)
}

func TestSimulation_LoadResetsStore(t *testing.T) {
	ctx := context.Background()
	st := store.NewTxMemory()
	sim := api.NewSimulation(newEngine(t), st, api.WithSimLogger(quiet))

	require.NoError(t, sim.Load(ctx, scenario(t, "hiring-drive"), ""))
	_, err := sim.Advance(ctx, 3)
	require.NoError(t, err)

	require.NoError(t, sim.Load(ctx, scenario(t, "overtime-crunch"), ""))

	assert.Equal(t, []int64{0}, st.Ticks())
	ledger, err := st.Ledger(ctx)
	require.NoError(t, err)
	assert.Empty(t, ledger)
}

func TestSimulation_SubmitValidatesBeforeQueueing(t *testing.T) {
	ctx := context.Background()
	sim := api.NewSimulation(newEngine(t), store.NewTxMemory(), api.WithSimLogger(quiet))

	_, err := sim.Submit([]workforce.Intent{{Type: workforce.IntentMarketScan, StructureID: factory.GreenhouseNorth}})
	assert.ErrorIs(t, err, api.ErrNoScenario)
	_, err = sim.Advance(ctx, 1)
	assert.ErrorIs(t, err, api.ErrNoScenario)

	require.NoError(t, sim.Load(ctx, scenario(t, "overtime-crunch"), ""))
	opening := len(sim.Pending())

	_, err = sim.Submit([]workforce.Intent{
		{Type: workforce.IntentMarketScan, StructureID: factory.GreenhouseNorth},
		{Type: workforce.IntentTaskCancel},
	})
	assert.True(t, workforce.IsValidation(err))
	assert.Len(t, sim.Pending(), opening)

	n, err := sim.Submit([]workforce.Intent{{Type: workforce.IntentMarketScan, StructureID: factory.GreenhouseNorth}})
	require.NoError(t, err)
	assert.Equal(t, opening+1, n)
}
