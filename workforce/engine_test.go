package workforce_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/workforce-engine/workforce"
)

// =============================================================================
// DETERMINISM
// =============================================================================

// scriptedRun plays a fixed intent script over 60 ticks and returns the
// final state.
func scriptedRun(t *testing.T) workforce.WorkforceState {
	t.Helper()
	e := newTestEngine(t)
	s := e.NewState("replay-seed").WithEmployees(
		testEmployee("emp-a", "s-1", "role-gardener"),
		testEmployee("emp-b", "s-1", "role-technician"),
		testEmployee("emp-c", "s-2", "role-gardener"),
	)

	for tick := 0; tick < 60; tick++ {
		var intents []workforce.Intent
		switch {
		case tick%3 == 0:
			intents = append(intents, enqueue("veg_low_priority", "s-1"), enqueue("veg_high_priority", "s-2"))
		case tick%5 == 0:
			water := enqueue("water_plants", "s-1")
			water.Context.PlantCount = ptr(float64(tick))
			intents = append(intents, water, enqueue("repair_device", "s-1"))
		}
		if tick == 10 {
			intents = append(intents, workforce.Intent{Type: workforce.IntentMarketScan, StructureID: "s-1"})
		}
		if tick == 11 {
			require.NotEmpty(t, s.Market.Candidates)
			intents = append(intents, workforce.Intent{Type: workforce.IntentMarketHire, CandidateID: s.Market.Candidates[0].ID})
		}
		if tick == 40 {
			intents = append(intents, workforce.Intent{
				Type: workforce.IntentTerminate, EmployeeID: "emp-c", MoraleRipple: ptr(-0.05), SeveranceCc: ptr(100.0),
			})
		}
		res := step(t, e, s, intents...)
		s = res.State
	}
	return s
}

func TestDeterminism_IdenticalRunsProduceIdenticalSnapshots(t *testing.T) {
	// GIVEN: The same seed, starting state and intent script
	// WHEN: The simulation runs twice
	// THEN: The final snapshots are byte-identical

	first, err := workforce.Digest(scriptedRun(t))
	require.NoError(t, err)
	second, err := workforce.Digest(scriptedRun(t))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestDeterminism_DifferentSeedsDiverge(t *testing.T) {
	e := newTestEngine(t)
	scan := workforce.Intent{Type: workforce.IntentMarketScan, StructureID: "s-1"}

	a := step(t, e, e.NewState("seed-a"), scan)
	b := step(t, e, e.NewState("seed-b"), scan)

	assert.NotEqual(t, a.State.Market.Candidates[0].ID, b.State.Market.Candidates[0].ID)
}

// =============================================================================
// INTENT ATOMICITY
// =============================================================================

func TestStep_RejectedIntentLeavesOthersApplied(t *testing.T) {
	// GIVEN: A valid enqueue, an enqueue with an unknown task code and a
	//        second valid enqueue
	// WHEN: The tick runs
	// THEN: Only the bad intent is rejected

	e := newTestEngine(t)
	s := e.NewState("seed-1")

	res := step(t, e, s,
		enqueue("veg_low_priority", "s-1"),
		enqueue("no_such_task", "s-1"),
		enqueue("veg_high_priority", "s-1"),
	)

	require.Len(t, res.Rejected, 1)
	assert.Equal(t, 1, res.Rejected[0].Index)
	assert.Len(t, res.State.TaskQueue, 2)
	assert.Equal(t, int64(2), res.State.NextTaskSeq)
}

func TestStep_DoesNotMutateInput(t *testing.T) {
	e := newTestEngine(t)
	s := e.NewState("seed-1").WithEmployees(testEmployee("emp-a", "s-1", "role-gardener"))
	before, err := workforce.Digest(s)
	require.NoError(t, err)

	step(t, e, s, enqueue("veg_high_priority", "s-1"))

	after, err := workforce.Digest(s)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestStep_CancelledContextStopsBeforeTick(t *testing.T) {
	e := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Step(ctx, e.NewState("seed-1"), nil)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestStep_CancelTask(t *testing.T) {
	e := newTestEngine(t)
	s := step(t, e, e.NewState("seed-1"), enqueue("veg_high_priority", "s-1")).State
	id := s.TaskQueue[0].ID

	res := step(t, e, s, workforce.Intent{Type: workforce.IntentTaskCancel, TaskID: id})
	task, _ := res.State.Task(id)
	assert.Equal(t, workforce.TaskCancelled, task.Status)

	again := step(t, e, res.State, workforce.Intent{Type: workforce.IntentTaskCancel, TaskID: id})
	require.Len(t, again.Rejected, 1)
	assert.Contains(t, again.Rejected[0].Error, "is cancelled")
}

// =============================================================================
// PAYROLL
// =============================================================================

func TestPayroll_ConservationHoldsEveryTick(t *testing.T) {
	// GIVEN: Employees in two structures with mixed work
	// WHEN: 30 ticks run
	// THEN: Totals equal base + ot and the structure sum every tick

	e := newTestEngine(t)
	tech := testEmployee("emp-b", "s-1", "role-technician")
	tech.Schedule.OvertimeHoursPerDay = 3
	s := e.NewState("seed-1").WithEmployees(
		testEmployee("emp-a", "s-1", "role-gardener"),
		tech,
		testEmployee("emp-c", "s-2", "role-gardener"),
	)

	for i := 0; i < 30; i++ {
		res := step(t, e, s,
			enqueue("veg_low_priority", "s-1"),
			enqueue("repair_device", "s-1"),
			enqueue("veg_high_priority", "s-2"),
		)
		s = res.State
		p := s.Payroll

		require.NoError(t, p.CheckInvariants())
		assert.True(t, p.Totals.TotalLaborCost.Equal(p.Totals.BaseCost.Add(p.Totals.OtCost)))
		sum := decimal.Zero
		for _, id := range p.Structures() {
			sum = sum.Add(p.ByStructure[id].TotalLaborCost)
		}
		assert.True(t, sum.Sub(p.Totals.TotalLaborCost).Abs().LessThanOrEqual(decimal.NewFromFloat(workforce.PayrollEpsilon)))
	}
}

func TestPayroll_TechnicianRoleMultiplierApplies(t *testing.T) {
	e := newTestEngine(t)
	s := e.NewState("seed-1").WithEmployees(testEmployee("emp-t", "s-1", "role-technician"))

	res := step(t, e, s, enqueue("repair_device", "s-1"))

	// 15 x 1.2 = 18/h for 60 minutes
	got := res.State.Payroll.ByStructure["s-1"].BaseCost
	assert.True(t, got.Equal(decimal.NewFromInt(18)), got.String())
}

func TestPayroll_DayRolloverClosesDay(t *testing.T) {
	// GIVEN: One day of work
	// WHEN: The tick crosses into day 1
	// THEN: Day 0 is archived, a payroll ledger entry is booked, budgets
	//       reset and fatigue recovers

	e := newTestEngine(t)
	emp := testEmployee("emp-a", "s-1", "role-gardener")
	emp.Schedule = workforce.Schedule{HoursPerDay: 5, OvertimeHoursPerDay: 2, DaysPerWeek: 7}
	s := e.NewState("seed-1").WithEmployees(emp)

	s = step(t, e, s, enqueue("long_shift", "s-1")).State
	worked, _ := s.Employee("emp-a")
	require.InDelta(t, 0.24, worked.Fatigue01, 1e-9)
	dayCost := s.Payroll.Totals.TotalLaborCost

	s, err := e.Run(context.Background(), s, 23, nil)
	require.NoError(t, err)
	require.Equal(t, int64(24), s.Tick)

	assert.Equal(t, 1, s.Payroll.DayIndex)
	require.Len(t, s.PayrollHistory, 1)
	assert.Equal(t, 0, s.PayrollHistory[0].DayIndex)
	assert.True(t, s.PayrollHistory[0].Totals.TotalLaborCost.Equal(dayCost))

	payroll := workforce.LedgerTotal(s.Ledger, workforce.LedgerPayroll)
	assert.True(t, payroll.Equal(dayCost))

	rested, _ := s.Employee("emp-a")
	assert.Equal(t, 1, rested.Usage.DayIndex)
	assert.Zero(t, rested.Usage.BaseMinutes)
	assert.InDelta(t, 0.14, rested.Fatigue01, 1e-9)
}

func TestPayroll_ImbalanceIsInvariantViolation(t *testing.T) {
	p := workforce.NewPayrollState(0)
	p.Accumulate("s-1", 60, 0, decimal.NewFromInt(15), decimal.Zero)
	p.Totals.TotalLaborCost = decimal.NewFromInt(99)

	err := p.CheckInvariants()

	require.Error(t, err)
	assert.True(t, workforce.IsInvariant(err))
	assert.ErrorIs(t, err, workforce.ErrPayrollImbalance)
}
