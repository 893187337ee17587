/*
payroll.go - Per-day labor cost accumulation

PURPOSE:
  Accumulates baseMinutes/otMinutes/baseCost/otCost/totalLaborCost for the
  current simulation day from every assignment the engine makes, both in
  aggregate and per structure.

INVARIANTS (checked every tick, violation aborts the tick):
  1. totalLaborCost == baseCost + otCost, for the totals and every structure
  2. sum(byStructure[*].totalLaborCost) == totals.totalLaborCost
  Both within PayrollEpsilon. Costs are decimal so in practice they match
  exactly; the tolerance guards the float minute fields.

DAY CLOSE:
  When a tick crosses into a new day, the finished PayrollState moves to
  PayrollHistory and a LedgerPayroll entry records its total.

RATES:
  hourlyRate = BaseHourlyRateCc x role multiplier x employee multiplier
               x labor market factor x time premium
  overtime minutes cost hourlyRate x OvertimeMultiplier.

SEE ALSO:
  - assignment.go: Produces the AssignmentRecords accumulated here
  - ledger.go: Receives the closing entry
*/
package workforce

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// PayrollEpsilon is the shared tolerance for payroll conservation checks.
const PayrollEpsilon = 1e-6

var payrollEpsilon = decimal.NewFromFloat(PayrollEpsilon)

type PayrollTotals struct {
	BaseMinutes    float64         `json:"baseMinutes"`
	OtMinutes      float64         `json:"otMinutes"`
	BaseCost       decimal.Decimal `json:"baseCost"`
	OtCost         decimal.Decimal `json:"otCost"`
	TotalLaborCost decimal.Decimal `json:"totalLaborCost"`
}

func (t PayrollTotals) add(baseMinutes, otMinutes float64, baseCost, otCost decimal.Decimal) PayrollTotals {
	return PayrollTotals{
		BaseMinutes:    t.BaseMinutes + baseMinutes,
		OtMinutes:      t.OtMinutes + otMinutes,
		BaseCost:       t.BaseCost.Add(baseCost),
		OtCost:         t.OtCost.Add(otCost),
		TotalLaborCost: t.TotalLaborCost.Add(baseCost).Add(otCost),
	}
}

type PayrollState struct {
	DayIndex    int                           `json:"dayIndex"`
	Totals      PayrollTotals                 `json:"totals"`
	ByStructure map[StructureID]PayrollTotals `json:"byStructure"`
}

func NewPayrollState(dayIndex int) PayrollState {
	return PayrollState{DayIndex: dayIndex, ByStructure: make(map[StructureID]PayrollTotals)}
}

func (p PayrollState) clone() PayrollState {
	out := p
	out.ByStructure = make(map[StructureID]PayrollTotals, len(p.ByStructure))
	for k, v := range p.ByStructure {
		out.ByStructure[k] = v
	}
	return out
}

// Structures returns the structure ids with a breakdown, sorted.
func (p PayrollState) Structures() []StructureID {
	ids := make([]StructureID, 0, len(p.ByStructure))
	for id := range p.ByStructure {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Accumulate books minutes and costs against the totals and one structure.
func (p *PayrollState) Accumulate(structure StructureID, baseMinutes, otMinutes float64, baseCost, otCost decimal.Decimal) {
	if p.ByStructure == nil {
		p.ByStructure = make(map[StructureID]PayrollTotals)
	}
	p.Totals = p.Totals.add(baseMinutes, otMinutes, baseCost, otCost)
	p.ByStructure[structure] = p.ByStructure[structure].add(baseMinutes, otMinutes, baseCost, otCost)
}

// CheckInvariants verifies payroll conservation.
func (p PayrollState) CheckInvariants() error {
	if err := checkTotals("totals", p.Totals); err != nil {
		return err
	}
	sumCost := decimal.Zero
	sumBase, sumOt := 0.0, 0.0
	for _, id := range p.Structures() {
		t := p.ByStructure[id]
		if err := checkTotals("byStructure."+string(id), t); err != nil {
			return err
		}
		sumCost = sumCost.Add(t.TotalLaborCost)
		sumBase += t.BaseMinutes
		sumOt += t.OtMinutes
	}
	if sumCost.Sub(p.Totals.TotalLaborCost).Abs().GreaterThan(payrollEpsilon) {
		return &InvariantError{
			Check:  "payroll.structure_sum",
			Detail: fmt.Sprintf("sum(byStructure)=%s totals=%s", sumCost, p.Totals.TotalLaborCost),
			Err:    ErrPayrollImbalance,
		}
	}
	if abs(sumBase-p.Totals.BaseMinutes) > PayrollEpsilon || abs(sumOt-p.Totals.OtMinutes) > PayrollEpsilon {
		return &InvariantError{
			Check:  "payroll.minutes_sum",
			Detail: fmt.Sprintf("minutes base %v/%v ot %v/%v", sumBase, p.Totals.BaseMinutes, sumOt, p.Totals.OtMinutes),
			Err:    ErrPayrollImbalance,
		}
	}
	return nil
}

func checkTotals(where string, t PayrollTotals) error {
	if t.BaseCost.Add(t.OtCost).Sub(t.TotalLaborCost).Abs().GreaterThan(payrollEpsilon) {
		return &InvariantError{
			Check:  "payroll.total",
			Detail: fmt.Sprintf("%s: base %s + ot %s != total %s", where, t.BaseCost, t.OtCost, t.TotalLaborCost),
			Err:    ErrPayrollImbalance,
		}
	}
	return nil
}

// =============================================================================
// RATES
// =============================================================================

// HourlyRate returns the base hourly rate paid to e.
func HourlyRate(e Employee, role Role, t Tuning) decimal.Decimal {
	r := t.Pay.BaseHourlyRateCc * role.RateMultiplier() * e.BaseRateMultiplier *
		orOne(e.LaborMarketFactor) * orOne(e.TimePremiumMultiplier)
	return decimal.NewFromFloat(r)
}

// LaborCost prices a block of minutes for e.
func LaborCost(e Employee, role Role, t Tuning, baseMinutes, otMinutes float64) (baseCost, otCost decimal.Decimal) {
	rate := HourlyRate(e, role, t)
	sixty := decimal.NewFromInt(60)
	baseCost = rate.Mul(decimal.NewFromFloat(baseMinutes)).Div(sixty).Round(6)
	otCost = rate.Mul(decimal.NewFromFloat(t.Pay.OvertimeMultiplier)).
		Mul(decimal.NewFromFloat(otMinutes)).Div(sixty).Round(6)
	return baseCost, otCost
}

// accumulatePayroll books every assignment record of the tick.
func accumulatePayroll(s *WorkforceState, cat *CatalogIndex, t Tuning, records []AssignmentRecord) {
	for _, rec := range records {
		emp, ok := s.Employee(rec.EmployeeID)
		if !ok {
			continue
		}
		role, _ := cat.Role(emp.RoleID)
		baseCost, otCost := LaborCost(emp, role, t, rec.BaseMinutes, rec.OvertimeMinutes)
		s.Payroll.Accumulate(rec.StructureID, rec.BaseMinutes, rec.OvertimeMinutes, baseCost, otCost)
	}
}

// closePayrollDay archives the current day when day has moved on.
func closePayrollDay(s *WorkforceState, day int) error {
	if s.Payroll.DayIndex == day {
		return nil
	}
	closed := s.Payroll.clone()
	if err := closed.CheckInvariants(); err != nil {
		return err
	}
	s.PayrollHistory = append(s.PayrollHistory, closed)
	if !closed.Totals.TotalLaborCost.IsZero() {
		key := fmt.Sprintf("payroll:day:%d", closed.DayIndex)
		if err := s.appendLedger(LedgerEntry{
			ID:             key,
			Tick:           s.Tick,
			Kind:           LedgerPayroll,
			Amount:         closed.Totals.TotalLaborCost,
			Reason:         fmt.Sprintf("payroll day %d", closed.DayIndex),
			IdempotencyKey: key,
		}); err != nil {
			return err
		}
	}
	s.Payroll = NewPayrollState(day)
	return nil
}

func orOne(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
