/*
engine.go - Tick orchestration

PURPOSE:
  Engine.Step advances a WorkforceState by exactly one tick and returns the
  next state together with the telemetry it produced. The input state is
  never modified.

TICK PIPELINE:
  1. Clone the input and advance Tick.
  2. Day rollover: close the payroll day, reset time budgets, recover
     fatigue.
  3. Apply intents in submission order. Each one runs against its own
     copy and is committed only if it succeeds, so a rejected intent never
     leaves partial changes behind.
  4. Assignment Engine.
  5. Payroll accumulation and conservation check.
  6. KPI snapshot and warnings.

FAILURE MODES:
  - Validation failures and duplicate ledger keys reject the single intent
    and are reported in TickResult.Rejected.
  - Raise intents that are not yet eligible are dropped silently and listed
    in TickResult.Dropped.
  - Invariant violations abort the whole tick; Step returns the error and
    no result.

CONCURRENCY:
  An Engine holds only immutable configuration and may be shared. Step is
  pure computation; ctx is checked once before the tick starts. Ticks must
  be chained strictly: each result's State is the next call's input.

SEE ALSO:
  - assignment.go, raise.go, termination.go, market.go, queue.go
  - payroll.go, kpi.go
*/
package workforce

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warp/workforce-engine/rng"
)

type Engine struct {
	catalog *CatalogIndex
	tuning  Tuning
	logger  *slog.Logger
}

type Option func(*Engine)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine validates the catalog and tuning and returns an engine.
func NewEngine(cat Catalog, t Tuning, opts ...Option) (*Engine, error) {
	idx, err := NewCatalogIndex(cat)
	if err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("tuning: %w", err)
	}
	e := &Engine{catalog: idx, tuning: t, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "workforce")
	return e, nil
}

func (e *Engine) Catalog() *CatalogIndex { return e.catalog }
func (e *Engine) Tuning() Tuning         { return e.tuning }

// NewState returns an empty tick-0 state for this engine's catalog.
func (e *Engine) NewState(seed string) WorkforceState {
	return NewState(seed, e.catalog.Catalog())
}

// TickResult is everything one Step produced.
type TickResult struct {
	State       WorkforceState   `json:"state"`
	Events      []Event          `json:"events"`
	Rejected    []RejectedIntent `json:"rejected,omitempty"`
	Dropped     []Intent         `json:"dropped,omitempty"`
	Assignments AssignmentReport `json:"assignments"`
	KPI         KpiSnapshot      `json:"kpi"`
	Warnings    []Warning        `json:"warnings,omitempty"`
}

// Step runs one tick.
func (e *Engine) Step(ctx context.Context, state WorkforceState, intents []Intent) (*TickResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	next := state.Clone()
	next.Tick++
	t := e.tuning
	day := DayIndex(next.Tick, t.TickHours)
	log := e.logger.With("tick", next.Tick)

	if err := e.rollover(&next, day); err != nil {
		return nil, fmt.Errorf("tick %d: %w", next.Tick, err)
	}

	res := &TickResult{}
	streams := rng.NewProvider(next.Seed)

	for i, in := range intents {
		work := next.Clone()
		events, dropped, err := e.apply(&work, in, streams, day)
		switch {
		case err == nil && dropped:
			res.Dropped = append(res.Dropped, in)
			log.Debug("intent dropped", "type", in.Type, "employee", in.EmployeeID)
		case err == nil:
			next = work
			res.Events = append(res.Events, events...)
		case IsValidation(err) || errors.Is(err, ErrDuplicateIdempotencyKey):
			res.Rejected = append(res.Rejected, RejectedIntent{Index: i, Intent: in, Error: err.Error()})
			log.Warn("intent rejected", "type", in.Type, "index", i, "err", err)
		default:
			return nil, fmt.Errorf("tick %d: intent %d (%s): %w", next.Tick, i, in.Type, err)
		}
	}

	report := runAssignment(&next, e.catalog, t)
	for _, rec := range report.Records {
		log.Debug("task assigned", "task", rec.TaskID, "employee", rec.EmployeeID,
			"base_min", rec.BaseMinutes, "ot_min", rec.OvertimeMinutes)
	}

	accumulatePayroll(&next, e.catalog, t, report.Records)
	if err := next.Payroll.CheckInvariants(); err != nil {
		return nil, fmt.Errorf("tick %d: %w", next.Tick, err)
	}

	kpi := BuildKPI(next, e.catalog, t, report)
	warnings := BuildWarnings(next, kpi, t, report)
	next.KPIs = append(next.KPIs, kpi)
	next.Warnings = append(next.Warnings, warnings...)

	res.Events = append(res.Events, Event{Topic: TopicKPI, Tick: next.Tick, Payload: KPIPayload{Snapshot: kpi}})
	if len(warnings) > 0 {
		res.Events = append(res.Events, Event{Topic: TopicWarning, Tick: next.Tick, Payload: WarningPayload{Warnings: warnings}})
	}
	res.Events = append(res.Events, payrollEvent(next))

	res.State = next
	res.Assignments = report
	res.KPI = kpi
	res.Warnings = warnings

	log.Info("tick committed",
		"completed", kpi.TasksCompleted,
		"queued", kpi.QueueDepth,
		"utilization", kpi.Utilization,
		"rejected", len(res.Rejected),
		"warnings", len(warnings))
	return res, nil
}

// Run steps n ticks with no intents, calling fn after each one.
func (e *Engine) Run(ctx context.Context, state WorkforceState, n int, fn func(*TickResult) error) (WorkforceState, error) {
	for i := 0; i < n; i++ {
		res, err := e.Step(ctx, state, nil)
		if err != nil {
			return state, err
		}
		if fn != nil {
			if err := fn(res); err != nil {
				return res.State, err
			}
		}
		state = res.State
	}
	return state, nil
}

// rollover closes the payroll day and resets daily budgets when the tick
// starts a new day.
func (e *Engine) rollover(s *WorkforceState, day int) error {
	if s.Payroll.DayIndex == day {
		return nil
	}
	if err := closePayrollDay(s, day); err != nil {
		return err
	}
	for i := range s.Employees {
		emp := &s.Employees[i]
		emp.Usage = DayUsage{DayIndex: day}
		emp.Fatigue01 = Clamp01(emp.Fatigue01 - e.tuning.Fatigue.DailyRecovery)
	}
	e.logger.Debug("day rolled over", "tick", s.Tick, "day", day)
	return nil
}

// apply runs one intent against s. dropped is true for a gated raise.
func (e *Engine) apply(s *WorkforceState, in Intent, streams *rng.Provider, day int) (events []Event, dropped bool, err error) {
	if err := in.Validate(e.tuning); err != nil {
		return nil, false, err
	}

	switch in.Type {
	case IntentRaiseAccept, IntentRaiseIgnore, IntentRaiseBonus:
		return e.applyRaise(s, in, day)

	case IntentTerminate:
		out, err := terminateEmployee(s, in)
		if err != nil {
			return nil, false, err
		}
		return []Event{
			{Topic: TopicTerminated, Tick: s.Tick, Payload: TerminatedPayload{Event: *out}},
			payrollEvent(*s),
		}, false, nil

	case IntentMarketScan:
		scan, err := scanMarket(s, e.catalog, e.tuning, streams, in.StructureID)
		if err != nil {
			return nil, false, err
		}
		return []Event{{Topic: TopicMarketScan, Tick: s.Tick, Payload: MarketScanPayload{Scan: *scan}}}, false, nil

	case IntentMarketHire:
		emp, err := hireCandidate(s, e.catalog, e.tuning, in.CandidateID)
		if err != nil {
			return nil, false, err
		}
		return []Event{{Topic: TopicHired, Tick: s.Tick, Payload: HiredPayload{
			EmployeeID: emp.ID, CandidateID: in.CandidateID, StructureID: emp.StructureID, RoleID: emp.RoleID,
		}}}, false, nil

	case IntentTaskEnqueue:
		_, err := enqueueTask(s, e.catalog, in)
		return nil, false, err

	case IntentTaskCancel:
		_, err := cancelTask(s, in.TaskID)
		return nil, false, err
	}
	return nil, false, invalid(in.Type, "type", nil, "unhandled intent type")
}

func (e *Engine) applyRaise(s *WorkforceState, in Intent, day int) ([]Event, bool, error) {
	idx := s.employeeIndex(in.EmployeeID)
	if idx < 0 {
		return nil, false, invalid(in.Type, "employeeId", ErrEmployeeNotFound, "employee %q not found", in.EmployeeID)
	}
	before := s.Employees[idx]
	out, err := ApplyRaiseIntent(before, RaiseIntent{
		Kind:               RaiseKind(strings.TrimPrefix(in.Type, "workforce.raise.")),
		RateIncreaseFactor: in.RateIncreaseFactor,
		BonusAmount:        in.BonusAmount,
		MoraleBoost:        in.MoraleBoost,
	}, day, e.tuning)
	if err != nil {
		return nil, false, err
	}
	if out == nil {
		return nil, true, nil
	}
	if out.Employee.Raise.CadenceSequence <= before.Raise.CadenceSequence {
		return nil, false, &InvariantError{
			Check:  "raise.cadence",
			Detail: fmt.Sprintf("employee %s cadence %d -> %d", before.ID, before.Raise.CadenceSequence, out.Employee.Raise.CadenceSequence),
			Err:    ErrCadenceRegression,
		}
	}
	s.Employees[idx] = out.Employee

	if out.BonusAmount != nil && *out.BonusAmount > 0 {
		key := fmt.Sprintf("bonus:%s:%d", before.ID, out.Employee.Raise.CadenceSequence)
		if err := s.appendLedger(LedgerEntry{
			ID:             key,
			Tick:           s.Tick,
			Kind:           LedgerBonus,
			Amount:         decimal.NewFromFloat(*out.BonusAmount),
			StructureID:    before.StructureID,
			EmployeeID:     before.ID,
			Reason:         "raise bonus",
			IdempotencyKey: key,
		}); err != nil {
			return nil, false, err
		}
	}
	return []Event{{Topic: TopicRaise, Tick: s.Tick, Payload: RaisePayload{Outcome: *out}}}, false, nil
}

func payrollEvent(s WorkforceState) Event {
	return Event{
		Topic:   TopicPayrollSnapshot,
		Tick:    s.Tick,
		Payload: PayrollSnapshotPayload{Snapshot: s.Payroll.clone(), Headcount: len(s.Employees)},
	}
}
