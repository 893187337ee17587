/*
ledger.go - Append-only finance ledger

PURPOSE:
  Records every non-payroll cash effect the workforce produces (market scan
  fees, bonuses, severance) plus one closing entry per payroll day. The
  caller's accounting layer consumes these entries; the engine never edits
  or removes one.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: entries are never modified or deleted.
  2. IDEMPOTENT: an entry whose idempotency key already exists is rejected
     with ErrDuplicateIdempotencyKey.
  3. DETERMINISTIC IDS: ids derive from tick + kind + subject, never from
     clocks or random sources.

EXAMPLE:
  entry := LedgerEntry{
      Tick: 42, Kind: LedgerSeverance, Amount: decimal.NewFromInt(500),
      EmployeeID: "emp-1", IdempotencyKey: "severance:emp-1",
  }
  if err := state.appendLedger(entry); err != nil { ... }

SEE ALSO:
  - payroll.go: Closes payroll days into the ledger
  - market.go, raise.go, termination.go: Other writers
*/
package workforce

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type LedgerKind string

const (
	LedgerScanCost  LedgerKind = "scan_cost"
	LedgerBonus     LedgerKind = "bonus"
	LedgerSeverance LedgerKind = "severance"
	LedgerPayroll   LedgerKind = "payroll"
)

// LedgerEntry is an immutable cash effect. Amount is a cost in cc
// (positive = money out).
type LedgerEntry struct {
	ID             string          `json:"id"`
	Tick           int64           `json:"tick"`
	Kind           LedgerKind      `json:"kind"`
	Amount         decimal.Decimal `json:"amount"`
	StructureID    StructureID     `json:"structureId,omitempty"`
	EmployeeID     EmployeeID      `json:"employeeId,omitempty"`
	Reason         string          `json:"reason,omitempty"`
	IdempotencyKey string          `json:"idempotencyKey"`
}

// appendLedger appends e, rejecting duplicate idempotency keys.
func (s *WorkforceState) appendLedger(e LedgerEntry) error {
	if e.IdempotencyKey == "" {
		e.IdempotencyKey = e.ID
	}
	for _, existing := range s.Ledger {
		if existing.IdempotencyKey == e.IdempotencyKey {
			return fmt.Errorf("%w: %s", ErrDuplicateIdempotencyKey, e.IdempotencyKey)
		}
	}
	if e.ID == "" {
		e.ID = fmt.Sprintf("%s-%d-%d", e.Kind, e.Tick, len(s.Ledger))
	}
	s.Ledger = append(s.Ledger, e)
	return nil
}

// LedgerTotal sums entries of the given kinds (all kinds when none given).
func LedgerTotal(entries []LedgerEntry, kinds ...LedgerKind) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		if len(kinds) > 0 && !containsKind(kinds, e.Kind) {
			continue
		}
		total = total.Add(e.Amount)
	}
	return total
}

func containsKind(kinds []LedgerKind, k LedgerKind) bool {
	for _, c := range kinds {
		if c == k {
			return true
		}
	}
	return false
}
