package workforce_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/workforce-engine/workforce"
)

func terminationState(e *workforce.Engine) workforce.WorkforceState {
	s := e.NewState("seed-1").WithEmployees(
		testEmployee("emp-tech", "s-1", "role-technician"),
		testEmployee("emp-peer", "s-1", "role-gardener"),
		testEmployee("emp-far", "s-2", "role-gardener"),
	)
	s.TaskQueue = append(s.TaskQueue,
		workforce.TaskInstance{
			ID: "task-inflight", TaskCode: "repair_device", Status: workforce.TaskInProgress,
			AssignedEmployeeID: "emp-tech",
			Context:            workforce.TaskContext{Scope: workforce.ScopeDevice, StructureID: "s-1", DeviceID: "pump-1"},
		},
		workforce.TaskInstance{
			ID: "task-done", TaskCode: "repair_device", Status: workforce.TaskCompleted,
			AssignedEmployeeID: "emp-tech", CompletedAtTick: ptr(int64(0)),
			Context: workforce.TaskContext{Scope: workforce.ScopeStructure, StructureID: "s-1"},
		},
	)
	return s
}

func TestTermination_RequeuesRipplesAndEmits(t *testing.T) {
	// GIVEN: A technician holding an in-flight repair, a peer in the same
	//        structure and an employee elsewhere
	// WHEN: The technician is terminated with ripple -0.1 and severance 500
	// THEN: The repair is queued with no assignee, the peer loses 0.1 morale,
	//       the far employee is untouched, both events are emitted and the
	//       severance is in the ledger

	e := newTestEngine(t)
	s := terminationState(e)

	res := step(t, e, s, workforce.Intent{
		Type:         workforce.IntentTerminate,
		EmployeeID:   "emp-tech",
		MoraleRipple: ptr(-0.1),
		ReasonSlug:   "restructuring",
		SeveranceCc:  ptr(500.0),
	})
	require.Empty(t, res.Rejected)

	_, stillThere := res.State.Employee("emp-tech")
	assert.False(t, stillThere)

	inflight, _ := res.State.Task("task-inflight")
	assert.Equal(t, workforce.TaskQueued, inflight.Status)
	assert.Empty(t, inflight.AssignedEmployeeID)

	done, _ := res.State.Task("task-done")
	assert.Equal(t, workforce.TaskCompleted, done.Status)
	assert.Equal(t, workforce.EmployeeID("emp-tech"), done.AssignedEmployeeID)

	peer, _ := res.State.Employee("emp-peer")
	far, _ := res.State.Employee("emp-far")
	assert.InDelta(t, 0.8, peer.Morale01, 1e-9)
	assert.InDelta(t, 0.9, far.Morale01, 1e-9)

	assert.Contains(t, topics(res.Events), workforce.TopicTerminated)
	assert.Contains(t, topics(res.Events), workforce.TopicPayrollSnapshot)
	var outcome workforce.TerminationOutcome
	for _, ev := range res.Events {
		if p, ok := ev.Payload.(workforce.TerminatedPayload); ok {
			outcome = p.Event
		}
	}
	assert.Equal(t, []workforce.TaskID{"task-inflight"}, outcome.RequeuedTasks)
	assert.Equal(t, []workforce.EmployeeID{"emp-peer"}, outcome.AffectedPeers)
	assert.Equal(t, "restructuring", outcome.ReasonSlug)

	require.Len(t, res.State.Ledger, 1)
	assert.Equal(t, workforce.LedgerSeverance, res.State.Ledger[0].Kind)
	assert.Equal(t, "500", res.State.Ledger[0].Amount.String())
}

func TestTermination_UnknownEmployeeRejectedWithoutChanges(t *testing.T) {
	e := newTestEngine(t)
	s := terminationState(e)

	res := step(t, e, s, workforce.Intent{
		Type:         workforce.IntentTerminate,
		EmployeeID:   "emp-ghost",
		MoraleRipple: ptr(-0.5),
	})

	require.Len(t, res.Rejected, 1)
	assert.Contains(t, res.Rejected[0].Error, "not found")
	assert.Len(t, res.State.Employees, 3)
	peer, _ := res.State.Employee("emp-peer")
	assert.InDelta(t, 0.9, peer.Morale01, 1e-9)
	assert.Empty(t, res.State.Ledger)
}

func TestTermination_RippleOutOfRangeRejected(t *testing.T) {
	in := workforce.Intent{Type: workforce.IntentTerminate, EmployeeID: "emp-a", MoraleRipple: ptr(-2.0)}

	err := in.Validate(workforce.DefaultTuning())

	assert.True(t, workforce.IsValidation(err))
}
