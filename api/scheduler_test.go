package api_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/workforce-engine/api"
	"github.com/warp/workforce-engine/workforce/store"
)

func TestTickScheduler_AdvancesUntilStopped(t *testing.T) {
	// GIVEN: A loaded scenario and a 5ms scheduler
	// WHEN: The scheduler runs for a few intervals and is stopped
	// THEN: Every committed tick is counted and nothing advances after Stop

	sim := api.NewSimulation(newEngine(t), store.NewTxMemory(), api.WithSimLogger(quiet))
	require.NoError(t, sim.Load(context.Background(), scenario(t, "greenhouse-basic"), ""))

	s := api.NewTickScheduler(sim, quiet)
	s.Interval = 5 * time.Millisecond
	s.Start()
	s.Start()

	require.Eventually(t, func() bool { return s.Runs() >= 3 }, 2*time.Second, 5*time.Millisecond)
	s.Stop()
	s.Stop()

	state, err := sim.State()
	require.NoError(t, err)
	assert.Equal(t, s.Runs(), state.Tick)

	time.Sleep(20 * time.Millisecond)
	after, err := sim.State()
	require.NoError(t, err)
	assert.Equal(t, state.Tick, after.Tick)
}

func TestTickScheduler_RunNow(t *testing.T) {
	sim := api.NewSimulation(newEngine(t), store.NewTxMemory(), api.WithSimLogger(quiet))
	s := api.NewTickScheduler(sim, quiet)

	assert.False(t, s.RunNow(context.Background()), "nothing loaded")

	require.NoError(t, sim.Load(context.Background(), scenario(t, "hiring-drive"), ""))
	assert.True(t, s.RunNow(context.Background()))
	assert.Equal(t, int64(1), s.Runs())
}

func TestTickScheduler_Disabled(t *testing.T) {
	sim := api.NewSimulation(newEngine(t), store.NewTxMemory(), api.WithSimLogger(quiet))
	require.NoError(t, sim.Load(context.Background(), scenario(t, "hiring-drive"), ""))

	s := api.NewTickScheduler(sim, quiet)
	s.Enabled = false
	s.Interval = time.Millisecond
	s.Start()
	time.Sleep(20 * time.Millisecond)
	s.Stop()

	assert.Zero(t, s.Runs())
}
