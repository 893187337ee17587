package workforce

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TERMINATION HANDLER
// =============================================================================
//
// A workforce.employee.terminate intent:
//   - removes the employee from the roster
//   - puts every non-terminal task assigned to them back to queued with the
//     assignment cleared, so no work is lost
//   - applies moraleRipple to every remaining employee in the same structure
//   - books severance in the finance ledger when severanceCc > 0
//
// The engine applies it on a private copy of the state, so either all of the
// above happens or none of it does. Completed tasks keep their assignee for
// audit.

// TerminationOutcome is the payload of the termination telemetry record.
type TerminationOutcome struct {
	EmployeeID    EmployeeID      `json:"employeeId"`
	StructureID   StructureID     `json:"structureId"`
	RoleID        RoleID          `json:"roleId"`
	ReasonSlug    string          `json:"reasonSlug"`
	MoraleRipple  float64         `json:"moraleRipple"`
	SeveranceCc   decimal.Decimal `json:"severanceCc"`
	RequeuedTasks []TaskID        `json:"requeuedTasks,omitempty"`
	AffectedPeers []EmployeeID    `json:"affectedPeers,omitempty"`
}

func terminateEmployee(s *WorkforceState, in Intent) (*TerminationOutcome, error) {
	idx := s.employeeIndex(in.EmployeeID)
	if idx < 0 {
		return nil, invalid(IntentTerminate, "employeeId", ErrEmployeeNotFound, "employee %q not found", in.EmployeeID)
	}
	gone := s.Employees[idx]

	out := &TerminationOutcome{
		EmployeeID:   gone.ID,
		StructureID:  gone.StructureID,
		RoleID:       gone.RoleID,
		ReasonSlug:   in.ReasonSlug,
		MoraleRipple: floatOr(in.MoraleRipple, 0),
		SeveranceCc:  decimal.NewFromFloat(floatOr(in.SeveranceCc, 0)),
	}

	for i := range s.TaskQueue {
		t := &s.TaskQueue[i]
		if t.AssignedEmployeeID != gone.ID || t.Status.IsTerminal() {
			continue
		}
		t.Status = TaskQueued
		t.AssignedEmployeeID = ""
		out.RequeuedTasks = append(out.RequeuedTasks, t.ID)
	}

	s.Employees = append(s.Employees[:idx:idx], s.Employees[idx+1:]...)

	for i := range s.Employees {
		peer := &s.Employees[i]
		if peer.StructureID != gone.StructureID {
			continue
		}
		peer.Morale01 = Clamp01(peer.Morale01 + out.MoraleRipple)
		out.AffectedPeers = append(out.AffectedPeers, peer.ID)
	}

	if out.SeveranceCc.IsPositive() {
		key := fmt.Sprintf("severance:%s", gone.ID)
		if err := s.appendLedger(LedgerEntry{
			ID:             key,
			Tick:           s.Tick,
			Kind:           LedgerSeverance,
			Amount:         out.SeveranceCc,
			StructureID:    gone.StructureID,
			EmployeeID:     gone.ID,
			Reason:         in.ReasonSlug,
			IdempotencyKey: key,
		}); err != nil {
			return nil, err
		}
	}
	return out, nil
}
