/*
state.go - The WorkforceState snapshot

PURPOSE:
  WorkforceState is the core's sole input/output contract with persistence
  and UI layers. A tick reads one snapshot and produces the next; nothing
  else carries state between ticks.

COPY-ON-WRITE:
  Clone() deep-copies every slice, map and pointer so the engine can mutate
  its private copy freely. Either the whole new state is returned, or an
  error is returned and the input is untouched.

ORDERING:
  Employees are kept sorted by ID. The task queue keeps creation order.
  Maps are only ever iterated through sorted keys, and encoding/json sorts
  map keys, so the JSON encoding of a state is canonical and Digest() is
  stable across runs.

SEE ALSO:
  - engine.go: Produces successive states
  - store.go: Persists them
*/
package workforce

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math"
	"sort"
)

// SchemaVersion is bumped whenever the snapshot shape changes.
const SchemaVersion = 1

type WorkforceState struct {
	SchemaVersion int    `json:"schemaVersion"`
	Seed          string `json:"seed"`
	Tick          int64  `json:"tick"`

	Catalog Catalog `json:"catalog"`

	Employees []Employee     `json:"employees"`
	TaskQueue []TaskInstance `json:"taskQueue"`

	// NextTaskSeq numbers tasks created by EnqueueTask.
	NextTaskSeq int64 `json:"nextTaskSeq"`
	// RotationCursor is the round-robin tie-break position over the roster.
	RotationCursor int `json:"rotationCursor"`

	KPIs     []KpiSnapshot `json:"kpis"`
	Warnings []Warning     `json:"warnings"`

	Payroll        PayrollState   `json:"payroll"`
	PayrollHistory []PayrollState `json:"payrollHistory,omitempty"`

	Market MarketState   `json:"market"`
	Ledger []LedgerEntry `json:"ledger"`
}

// NewState returns an empty state at tick 0.
func NewState(seed string, cat Catalog) WorkforceState {
	return WorkforceState{
		SchemaVersion: SchemaVersion,
		Seed:          seed,
		Catalog:       cat,
		Payroll:       NewPayrollState(0),
		Market:        NewMarketState(),
	}
}

// Clone returns a deep copy.
func (s WorkforceState) Clone() WorkforceState {
	out := s
	out.Catalog = s.Catalog // immutable; shared

	out.Employees = make([]Employee, len(s.Employees))
	for i, e := range s.Employees {
		out.Employees[i] = e.clone()
	}
	out.TaskQueue = make([]TaskInstance, len(s.TaskQueue))
	for i, t := range s.TaskQueue {
		out.TaskQueue[i] = t.clone()
	}
	out.KPIs = append([]KpiSnapshot(nil), s.KPIs...)
	out.Warnings = make([]Warning, len(s.Warnings))
	for i, w := range s.Warnings {
		out.Warnings[i] = w
		if w.Metadata != nil {
			m := make(map[string]string, len(w.Metadata))
			for k, v := range w.Metadata {
				m[k] = v
			}
			out.Warnings[i].Metadata = m
		}
	}
	out.Payroll = s.Payroll.clone()
	if s.PayrollHistory != nil {
		out.PayrollHistory = make([]PayrollState, len(s.PayrollHistory))
		for i, p := range s.PayrollHistory {
			out.PayrollHistory[i] = p.clone()
		}
	}
	out.Market = s.Market.clone()
	out.Ledger = append([]LedgerEntry(nil), s.Ledger...)
	return out
}

// Employee returns a copy of the employee with the given id.
func (s WorkforceState) Employee(id EmployeeID) (Employee, bool) {
	if i := s.employeeIndex(id); i >= 0 {
		return s.Employees[i], true
	}
	return Employee{}, false
}

// Task returns a copy of the task with the given id.
func (s WorkforceState) Task(id TaskID) (TaskInstance, bool) {
	for _, t := range s.TaskQueue {
		if t.ID == id {
			return t, true
		}
	}
	return TaskInstance{}, false
}

func (s WorkforceState) employeeIndex(id EmployeeID) int {
	i := sort.Search(len(s.Employees), func(i int) bool { return s.Employees[i].ID >= id })
	if i < len(s.Employees) && s.Employees[i].ID == id {
		return i
	}
	return -1
}

// sortEmployees restores the roster ordering invariant.
func (s *WorkforceState) sortEmployees() {
	sort.SliceStable(s.Employees, func(i, j int) bool { return s.Employees[i].ID < s.Employees[j].ID })
}

// WithEmployees returns a copy of s with emps added to the roster.
// Used by seeders and tests.
func (s WorkforceState) WithEmployees(emps ...Employee) WorkforceState {
	out := s.Clone()
	for _, e := range emps {
		c := e.clone()
		c.normalize()
		out.Employees = append(out.Employees, c)
	}
	out.sortEmployees()
	return out
}

// Digest returns the sha256 of the canonical JSON encoding.
func Digest(s WorkforceState) (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// =============================================================================
// TIME HELPERS
// =============================================================================

// SimTimeHours converts a tick into simulated hours.
func SimTimeHours(tick int64, tickHours float64) float64 {
	return float64(tick) * tickHours
}

// DayIndex returns the simulation day a tick falls into.
func DayIndex(tick int64, tickHours float64) int {
	minutes := int64(math.Round(float64(tick) * tickHours * 60))
	return int(floorDiv(minutes, 24*60))
}
