/*
intents.go - Inbound intents

PURPOSE:
  Intents are the only way callers change a WorkforceState. They are
  collected between ticks and applied, in order, at the start of the next
  tick before the Assignment Engine runs.

SHAPE:
  Intent is a flat record discriminated by Type. Only the fields the type
  needs are read; Validate rejects missing or impossible values before any
  state is touched.

  workforce.raise.accept     { employeeId, rateIncreaseFactor? }
  workforce.raise.ignore     { employeeId }
  workforce.raise.bonus      { employeeId, rateIncreaseFactor?, bonusAmount?, moraleBoost? }
  workforce.employee.terminate { employeeId, moraleRipple, reasonSlug, severanceCc }
  hiring.market.scan         { structureId }
  hiring.market.hire         { candidateId }
  workforce.task.enqueue     { taskCode, context, dueTick? }
  workforce.task.cancel      { taskId }

REJECTION:
  A rejected intent is reported in TickResult.Rejected and leaves the state
  exactly as it was. The remaining intents of the tick still apply.
*/
package workforce

import (
	"math"
)

const (
	IntentRaiseAccept = "workforce.raise.accept"
	IntentRaiseIgnore = "workforce.raise.ignore"
	IntentRaiseBonus  = "workforce.raise.bonus"
	IntentTerminate   = "workforce.employee.terminate"
	IntentMarketScan  = "hiring.market.scan"
	IntentMarketHire  = "hiring.market.hire"
	IntentTaskEnqueue = "workforce.task.enqueue"
	IntentTaskCancel  = "workforce.task.cancel"
)

// IntentTypes lists every accepted intent type.
var IntentTypes = []string{
	IntentRaiseAccept, IntentRaiseIgnore, IntentRaiseBonus,
	IntentTerminate,
	IntentMarketScan, IntentMarketHire,
	IntentTaskEnqueue, IntentTaskCancel,
}

type Intent struct {
	Type string `json:"type"`

	EmployeeID EmployeeID `json:"employeeId,omitempty"`

	// Raise
	RateIncreaseFactor *float64 `json:"rateIncreaseFactor,omitempty"`
	BonusAmount        *float64 `json:"bonusAmount,omitempty"`
	MoraleBoost        *float64 `json:"moraleBoost,omitempty"`

	// Termination
	MoraleRipple *float64 `json:"moraleRipple,omitempty"`
	ReasonSlug   string   `json:"reasonSlug,omitempty"`
	SeveranceCc  *float64 `json:"severanceCc,omitempty"`

	// Market
	StructureID StructureID `json:"structureId,omitempty"`
	CandidateID CandidateID `json:"candidateId,omitempty"`

	// Task queue
	TaskID   TaskID       `json:"taskId,omitempty"`
	TaskCode TaskCode     `json:"taskCode,omitempty"`
	DueTick  *int64       `json:"dueTick,omitempty"`
	Context  *TaskContext `json:"context,omitempty"`
}

// Validate checks the intent's shape. Lookups against the state (does the
// employee exist, is the candidate still valid) happen when it is applied.
func (in Intent) Validate(t Tuning) error {
	switch in.Type {
	case IntentRaiseAccept, IntentRaiseIgnore, IntentRaiseBonus:
		if in.EmployeeID == "" {
			return invalid(in.Type, "employeeId", nil, "is required")
		}
		if in.Type == IntentRaiseIgnore && (in.RateIncreaseFactor != nil || in.BonusAmount != nil || in.MoraleBoost != nil) {
			return invalid(in.Type, "", nil, "ignore takes no rate, bonus or morale fields")
		}
		if in.Type == IntentRaiseAccept && (in.BonusAmount != nil || in.MoraleBoost != nil) {
			return invalid(in.Type, "", nil, "accept takes no bonus or morale fields")
		}
		if f := in.RateIncreaseFactor; f != nil && (!finite(*f) || *f < 0 || *f > t.Raise.MaxRateIncrease) {
			return invalid(in.Type, "rateIncreaseFactor", ErrInvalidRateFactor,
				"must be in [0,%v]", t.Raise.MaxRateIncrease)
		}
		if b := in.BonusAmount; b != nil && (!finite(*b) || *b < 0) {
			return invalid(in.Type, "bonusAmount", nil, "must be a finite amount >= 0")
		}
		if m := in.MoraleBoost; m != nil && (!finite(*m) || *m < -1 || *m > 1) {
			return invalid(in.Type, "moraleBoost", nil, "must be in [-1,1]")
		}

	case IntentTerminate:
		if in.EmployeeID == "" {
			return invalid(in.Type, "employeeId", nil, "is required")
		}
		if r := in.MoraleRipple; r != nil && (!finite(*r) || *r < -1 || *r > 1) {
			return invalid(in.Type, "moraleRipple", nil, "must be in [-1,1]")
		}
		if s := in.SeveranceCc; s != nil && (!finite(*s) || *s < 0) {
			return invalid(in.Type, "severanceCc", nil, "must be a finite amount >= 0")
		}

	case IntentMarketScan:
		if in.StructureID == "" {
			return invalid(in.Type, "structureId", nil, "is required")
		}

	case IntentMarketHire:
		if in.CandidateID == "" {
			return invalid(in.Type, "candidateId", nil, "is required")
		}

	case IntentTaskEnqueue:
		if in.TaskCode == "" {
			return invalid(in.Type, "taskCode", nil, "is required")
		}
		if in.Context == nil {
			return invalid(in.Type, "context", ErrInvalidContext, "is required")
		}
		if err := in.Context.Validate(); err != nil {
			return invalid(in.Type, "context", ErrInvalidContext, "%v", err)
		}

	case IntentTaskCancel:
		if in.TaskID == "" {
			return invalid(in.Type, "taskId", nil, "is required")
		}

	default:
		return invalid(in.Type, "type", nil, "unknown intent type %q", in.Type)
	}
	return nil
}

// RejectedIntent records an intent that was refused during a tick.
type RejectedIntent struct {
	Index  int    `json:"index"`
	Intent Intent `json:"intent"`
	Error  string `json:"error"`
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

func floatOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}
