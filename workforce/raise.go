/*
raise.go - Compensation and raise negotiation

PURPOSE:
  Applies workforce.raise.* intents to a single employee. The function is
  pure: it takes an employee value and returns a new one inside the
  outcome, so callers decide when to commit.

GATING:
  ApplyRaiseIntent returns (nil, nil), meaning the intent is dropped, when
    - the employee has worked fewer than Raise.MinEmploymentDays days, or
    - the employee's nextEligibleDay has not arrived yet.

OUTCOMES:
  accept: morale +0.06, rate x(1+0.05) on baseRateMultiplier and
          salary expectation
  ignore: morale -0.08, no rate change
  bonus:  caller supplies rateIncreaseFactor, bonusAmount and moraleBoost

  Every outcome advances cadenceSequence, sets lastDecisionDay and
  reschedules:
    nextEligibleDay = max(day + MinEmploymentDays,
                          day + CooldownDays + jitter)
    jitter = round((x*2 - 1) * JitterDays)
  where x is drawn from rng stream (rngSeedUuid, "workforce:raise:<next>").

DETERMINISM:
  The jitter stream depends only on the employee's seed UUID and the new
  cadence number, so the same pair always yields the same jitter.
*/
package workforce

import (
	"fmt"

	"github.com/warp/workforce-engine/rng"
)

type RaiseKind string

const (
	RaiseAccept RaiseKind = "accept"
	RaiseIgnore RaiseKind = "ignore"
	RaiseBonus  RaiseKind = "bonus"
)

// RaiseIntent is the decision submitted for one employee.
type RaiseIntent struct {
	Kind               RaiseKind
	RateIncreaseFactor *float64
	BonusAmount        *float64
	MoraleBoost        *float64
}

// RaiseOutcome carries the updated employee plus the applied deltas so the
// caller can book ledger side effects.
type RaiseOutcome struct {
	Employee           Employee  `json:"employee"`
	Kind               RaiseKind `json:"kind"`
	MoraleDelta01      float64   `json:"moraleDelta01"`
	RateIncreaseFactor float64   `json:"rateIncreaseFactor"`
	BonusAmount        *float64  `json:"bonusAmount,omitempty"`
	JitterDays         int       `json:"jitterDays"`
	NextEligibleDay    int       `json:"nextEligibleDay"`
}

// RaiseEligible reports whether e may receive a raise decision on day.
func RaiseEligible(e Employee, day int, t Tuning) bool {
	start := DayIndex(e.EmploymentStartTick, t.TickHours)
	if day-start < t.Raise.MinEmploymentDays {
		return false
	}
	if next := e.Raise.NextEligibleDay; next != nil && day < *next {
		return false
	}
	return true
}

// ApplyRaiseIntent applies in to e on currentSimDay.
func ApplyRaiseIntent(e Employee, in RaiseIntent, currentSimDay int, t Tuning) (*RaiseOutcome, error) {
	if !RaiseEligible(e, currentSimDay, t) {
		return nil, nil
	}
	if last := e.Raise.LastDecisionDay; last != nil && *last > currentSimDay {
		return nil, &InvariantError{
			Check:  "raise.cadence",
			Detail: fmt.Sprintf("employee %s decided on day %d, now day %d", e.ID, *last, currentSimDay),
			Err:    ErrCadenceRegression,
		}
	}

	out := RaiseOutcome{Kind: in.Kind}
	switch in.Kind {
	case RaiseAccept:
		out.MoraleDelta01 = t.Raise.AcceptMoraleDelta
		out.RateIncreaseFactor = floatOr(in.RateIncreaseFactor, t.Raise.AcceptRateIncrease)
	case RaiseIgnore:
		out.MoraleDelta01 = t.Raise.IgnoreMoraleDelta
	case RaiseBonus:
		out.MoraleDelta01 = floatOr(in.MoraleBoost, 0)
		out.RateIncreaseFactor = floatOr(in.RateIncreaseFactor, 0)
		bonus := floatOr(in.BonusAmount, 0)
		out.BonusAmount = &bonus
	default:
		return nil, invalid("workforce.raise", "kind", nil, "unknown raise kind %q", in.Kind)
	}
	if f := out.RateIncreaseFactor; !finite(f) || f < 0 || f > t.Raise.MaxRateIncrease {
		return nil, invalid("workforce.raise."+string(in.Kind), "rateIncreaseFactor", ErrInvalidRateFactor,
			"%v not in [0,%v]", f, t.Raise.MaxRateIncrease)
	}

	next := e.clone()
	next.Morale01 = Clamp01(next.Morale01 + out.MoraleDelta01)
	if out.RateIncreaseFactor != 0 {
		next.BaseRateMultiplier = clamp(next.BaseRateMultiplier*(1+out.RateIncreaseFactor), MinBaseRateMultiplier, MaxBaseRateMultiplier)
		next.SalaryExpectationPerH *= 1 + out.RateIncreaseFactor
	}

	seq := next.Raise.CadenceSequence + 1
	out.JitterDays = raiseJitter(next, seq, t)
	out.NextEligibleDay = maxInt(
		currentSimDay+t.Raise.MinEmploymentDays,
		currentSimDay+t.Raise.CooldownDays+out.JitterDays,
	)
	day := currentSimDay
	nextDay := out.NextEligibleDay
	next.Raise = RaiseState{CadenceSequence: seq, LastDecisionDay: &day, NextEligibleDay: &nextDay}

	out.Employee = next
	return &out, nil
}

func raiseJitter(e Employee, seq int, t Tuning) int {
	seed := e.RngSeedUUID
	if seed == "" {
		seed = "employee:" + string(e.ID)
	}
	return rng.New(seed, fmt.Sprintf("workforce:raise:%d", seq)).Jitter(t.Raise.JitterDays)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
