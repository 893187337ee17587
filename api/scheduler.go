/*
scheduler.go - Automatic tick scheduler

PURPOSE:
  Advances the simulation by one tick every Interval of wall time, so a
  served simulation runs without a client calling POST /api/ticks.

DESIGN:
  - Runs a background goroutine with a configurable interval
  - Each run is one Simulation.Advance(ctx, 1); queued intents go in
  - A failed tick is logged and retried on the next interval; the state
    is untouched by the failure
  - No scenario loaded is not an error, the run is skipped

CONFIGURATION:
  - Interval: Wall time between ticks (default: 1s)
  - Enabled:  Whether the scheduler runs at all (default: true)

USAGE:
  scheduler := NewTickScheduler(sim, logger)
  scheduler.Interval = cfg.Scheduler.Interval
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: StepTicks endpoint (manual ticks)
  - simulation.go: Advance
*/
package api

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// TickScheduler steps the simulation on a wall-clock interval.
type TickScheduler struct {
	Sim      *Simulation
	Interval time.Duration
	Enabled  bool

	log    *slog.Logger
	ticker *time.Ticker
	stop   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex

	runs   atomic.Int64
	failed atomic.Int64
}

// NewTickScheduler creates a new scheduler.
func NewTickScheduler(sim *Simulation, logger *slog.Logger) *TickScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TickScheduler{
		Sim:      sim,
		Interval: time.Second,
		Enabled:  true,
		log:      logger.With("component", "scheduler"),
	}
}

// Start begins the scheduler. Calling Start on a running scheduler is a
// no-op.
func (ts *TickScheduler) Start() {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if !ts.Enabled {
		ts.log.Info("disabled, not starting")
		return
	}
	if ts.ticker != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	ts.cancel = cancel
	ts.stop = make(chan struct{})
	ts.ticker = time.NewTicker(ts.Interval)
	ts.wg.Add(1)

	go ts.run(ctx, ts.ticker, ts.stop)

	ts.log.Info("started", "interval", ts.Interval)
}

// Stop stops the scheduler and waits for an in-flight tick to finish.
func (ts *TickScheduler) Stop() {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.ticker == nil {
		return
	}
	ts.ticker.Stop()
	close(ts.stop)
	ts.cancel()
	ts.wg.Wait()
	ts.ticker = nil
	ts.log.Info("stopped", "runs", ts.runs.Load(), "failed", ts.failed.Load())
}

func (ts *TickScheduler) run(ctx context.Context, ticker *time.Ticker, stop <-chan struct{}) {
	defer ts.wg.Done()

	for {
		select {
		case <-ticker.C:
			ts.RunNow(ctx)
		case <-stop:
			return
		}
	}
}

// RunNow advances one tick immediately. It reports whether a tick was
// committed.
func (ts *TickScheduler) RunNow(ctx context.Context) bool {
	results, err := ts.Sim.Advance(ctx, 1)
	switch {
	case errors.Is(err, ErrNoScenario):
		return false
	case errors.Is(err, context.Canceled):
		return false
	case err != nil:
		ts.failed.Add(1)
		ts.log.Error("tick failed", "err", err)
		return false
	}
	ts.runs.Add(1)
	if len(results) > 0 {
		ts.log.Debug("tick committed", "tick", results[0].State.Tick)
	}
	return true
}

// Runs returns how many ticks the scheduler has committed.
func (ts *TickScheduler) Runs() int64 { return ts.runs.Load() }
