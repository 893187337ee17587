/*
simulation.go - The live simulation behind the HTTP API

PURPOSE:
  Owns the current WorkforceState and the intents queued for the next
  tick. Every mutation goes through here so the HTTP handlers, the tick
  scheduler and the CLI all see the same sequence of committed ticks.

TICK FLOW (Advance):
  1. Take the pending intents (first tick of the batch only)
  2. engine.Step
  3. workforce.Commit: snapshot + events + ledger delta in one tx
  4. Swap in the new state
  5. Observe metrics, publish events to the sink (best effort)

  A failed Step or Commit leaves the state untouched and puts the
  intents back in the queue.

SEE ALSO:
  - scheduler.go: Calls Advance on an interval
  - workforce/store.go: Commit
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/workforce-engine/factory"
	"github.com/warp/workforce-engine/telemetry"
	"github.com/warp/workforce-engine/workforce"
)

// Store is what the simulation persists committed ticks to.
type Store interface {
	workforce.TxStateStore
	Reset(ctx context.Context) error
}

// ErrNoScenario is returned when ticks are requested before a scenario
// has been loaded or resumed.
var ErrNoScenario = errors.New("no scenario loaded")

type Simulation struct {
	engine  *workforce.Engine
	store   Store
	sink    telemetry.Sink
	metrics *telemetry.Collector
	log     *slog.Logger

	mu       sync.Mutex
	loaded   bool
	state    workforce.WorkforceState
	pending  []workforce.Intent
	scenario string
}

type SimOption func(*Simulation)

// WithSink publishes every committed tick's events to s.
func WithSink(s telemetry.Sink) SimOption {
	return func(sim *Simulation) { sim.sink = s }
}

// WithMetrics records every committed tick in c.
func WithMetrics(c *telemetry.Collector) SimOption {
	return func(sim *Simulation) { sim.metrics = c }
}

func WithSimLogger(l *slog.Logger) SimOption {
	return func(sim *Simulation) { sim.log = l }
}

func NewSimulation(engine *workforce.Engine, store Store, opts ...SimOption) *Simulation {
	sim := &Simulation{engine: engine, store: store, log: slog.Default()}
	for _, opt := range opts {
		opt(sim)
	}
	sim.log = sim.log.With("component", "simulation")
	return sim
}

func (s *Simulation) Engine() *workforce.Engine { return s.engine }
func (s *Simulation) Store() Store               { return s.store }

// Load replaces the store contents with sc's tick-0 state and queues its
// opening intents. A non-empty seed overrides the scenario's.
func (s *Simulation) Load(ctx context.Context, sc factory.Scenario, seed string) error {
	if seed != "" {
		sc.Seed = seed
	}
	state, intents, err := sc.Build(s.engine)
	if err != nil {
		return fmt.Errorf("build scenario %s: %w", sc.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Reset(ctx); err != nil {
		return fmt.Errorf("reset store: %w", err)
	}
	if err := s.store.SaveSnapshot(ctx, state); err != nil {
		return fmt.Errorf("save initial snapshot: %w", err)
	}

	s.state = state
	s.pending = intents
	s.scenario = sc.ID
	s.loaded = true
	s.log.Info("scenario loaded", "scenario", sc.ID, "seed", state.Seed,
		"employees", len(state.Employees), "opening_intents", len(intents))
	return nil
}

// Resume picks up from the latest committed snapshot. It returns
// workforce.ErrSnapshotNotFound when the store is empty.
func (s *Simulation) Resume(ctx context.Context) error {
	latest, err := s.store.Latest(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = latest
	s.pending = nil
	s.scenario = ""
	s.loaded = true
	s.log.Info("resumed from snapshot", "tick", latest.Tick, "seed", latest.Seed)
	return nil
}

// Submit validates and queues intents for the next tick. The batch is
// all-or-nothing: one malformed intent queues none of them.
func (s *Simulation) Submit(intents []workforce.Intent) (int, error) {
	t := s.engine.Tuning()
	for i, in := range intents {
		if err := in.Validate(t); err != nil {
			return 0, fmt.Errorf("intent %d: %w", i, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return 0, ErrNoScenario
	}
	s.pending = append(s.pending, intents...)
	return len(s.pending), nil
}

// Advance steps and commits n ticks. Queued intents go into the first one.
func (s *Simulation) Advance(ctx context.Context, n int) ([]*workforce.TickResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return nil, ErrNoScenario
	}

	results := make([]*workforce.TickResult, 0, n)
	for i := 0; i < n; i++ {
		intents := s.pending
		s.pending = nil

		start := time.Now()
		res, err := s.engine.Step(ctx, s.state, intents)
		if err != nil {
			s.pending = intents
			return results, err
		}
		if err := workforce.Commit(ctx, s.store, s.state, res); err != nil {
			s.pending = intents
			return results, fmt.Errorf("commit tick %d: %w", res.State.Tick, err)
		}
		s.state = res.State

		if s.metrics != nil {
			s.metrics.ObserveTick(res, time.Since(start))
		}
		if s.sink != nil {
			if err := s.sink.Publish(ctx, res.Events); err != nil {
				s.log.Warn("telemetry publish failed", "tick", res.State.Tick, "err", err)
			}
		}
		results = append(results, res)
	}
	return results, nil
}

// State returns a copy of the current state.
func (s *Simulation) State() (workforce.WorkforceState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return workforce.WorkforceState{}, ErrNoScenario
	}
	return s.state.Clone(), nil
}

// Pending returns a copy of the queued intents.
func (s *Simulation) Pending() []workforce.Intent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]workforce.Intent(nil), s.pending...)
}

// Scenario returns the id of the loaded scenario, empty after Resume.
func (s *Simulation) Scenario() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scenario
}
