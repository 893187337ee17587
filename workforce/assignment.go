/*
assignment.go - Priority matching of employees to queued tasks

PURPOSE:
  The Assignment Engine runs once per tick after intents are applied. It
  walks the queued tasks in priority order and gives each to the best
  eligible employee that still has time budget today.

ALGORITHM:
  1. Select queued tasks; order by priority desc, createdAtTick asc, id asc.
  2. For each task compute the eligible set:
       - employee works in the task's structure
       - role slug matches requiredRoleSlug (when the task names one)
       - every required skill minimum is met (skipped for breakroom tasks)
  3. Among eligible employees with enough remaining budget for the task's
     labor minutes, pick by:
       a. fewest tasks already taken this tick
       b. most remaining regular minutes
       c. most remaining overtime minutes
       d. rotation rank: distance from RotationCursor in the sorted roster
  4. Nobody fits: the task stays queued. This is backpressure, not an error.
  5. Otherwise the task goes in-progress and completes within the tick.
     Minutes come out of the regular budget first, then overtime.

  Rule 3a means every eligible employee gets at most one task per tick
  before anyone gets a second. RotationCursor persists across ticks, so
  repeated identical ties keep rotating through the roster.

EFFECTS:
  - Work minutes beyond the regular shift add fatigue
    (Fatigue.PerOvertimeMinute per minute).
  - Breakroom tasks subtract Fatigue.BreakroomRecovery instead and accrue
    no experience.
  - An employee who worked any overtime this tick loses
    Morale.OvertimePenalty once, regardless of how many minutes.
  - Worked minutes accrue experience hours.

FAILURE SEMANTICS:
  Unknown task codes and malformed contexts make a task ineligible. It
  stays queued and the reporter raises a warning. Tasks whose dueTick has
  already passed also stay queued and are reported as overdue.
*/
package workforce

// AssignmentRecord is one task handed to one employee during a tick.
type AssignmentRecord struct {
	TaskID          TaskID      `json:"taskId"`
	TaskCode        TaskCode    `json:"taskCode"`
	EmployeeID      EmployeeID  `json:"employeeId"`
	StructureID     StructureID `json:"structureId"`
	BaseMinutes     float64     `json:"baseMinutes"`
	OvertimeMinutes float64     `json:"overtimeMinutes"`
	Breakroom       bool        `json:"breakroom,omitempty"`
}

// AssignmentReport summarizes one run of the Assignment Engine.
type AssignmentReport struct {
	DayIndex int                `json:"dayIndex"`
	Records  []AssignmentRecord `json:"records"`

	// Backlogged tasks had eligible employees but none with enough budget.
	Backlogged []TaskID `json:"backlogged,omitempty"`
	// Unstaffed tasks had no eligible employee at all.
	Unstaffed []TaskID `json:"unstaffed,omitempty"`
	Overdue   []TaskID `json:"overdue,omitempty"`
	// Ineligible tasks have an unknown code or a malformed context.
	Ineligible []TaskID `json:"ineligible,omitempty"`

	AvailableMinutes  float64      `json:"availableMinutes"`
	ConsumedMinutes   float64      `json:"consumedMinutes"`
	OvertimeMinutes   float64      `json:"overtimeMinutes"`
	OvertimeEmployees []EmployeeID `json:"overtimeEmployees,omitempty"`
}

// Completed returns the number of tasks completed in the run.
func (r AssignmentReport) Completed() int { return len(r.Records) }

// Assign runs the Assignment Engine on a copy of state.
func Assign(state WorkforceState, cat *CatalogIndex, t Tuning) (WorkforceState, AssignmentReport) {
	next := state.Clone()
	report := runAssignment(&next, cat, t)
	return next, report
}

type budgetSlot struct {
	regularLeft  float64
	overtimeLeft float64
	assigned     int
	overtime     float64
}

func runAssignment(s *WorkforceState, cat *CatalogIndex, t Tuning) AssignmentReport {
	day := DayIndex(s.Tick, t.TickHours)
	report := AssignmentReport{DayIndex: day}

	n := len(s.Employees)
	slots := make([]budgetSlot, n)
	for i := range s.Employees {
		e := &s.Employees[i]
		if e.Usage.DayIndex != day {
			e.Usage = DayUsage{DayIndex: day}
		}
		if !e.Schedule.WorksOn(day) {
			continue
		}
		slots[i].regularLeft = nonNegative(e.Schedule.HoursPerDay*60 - e.Usage.BaseMinutes)
		slots[i].overtimeLeft = nonNegative(e.Schedule.OvertimeHoursPerDay*60 - e.Usage.OvertimeMinutes)
		report.AvailableMinutes += slots[i].regularLeft + slots[i].overtimeLeft
	}

	queued := make([]*TaskInstance, 0, len(s.TaskQueue))
	for i := range s.TaskQueue {
		if s.TaskQueue[i].Status == TaskQueued {
			queued = append(queued, &s.TaskQueue[i])
		}
	}
	sortForAssignment(queued, cat)

	for _, task := range queued {
		def, ok := cat.TaskDefinition(task.TaskCode)
		if !ok || task.Context.Validate() != nil {
			report.Ineligible = append(report.Ineligible, task.ID)
			continue
		}
		minutes, err := task.Context.LaborMinutes(def.CostModel)
		if err != nil {
			report.Ineligible = append(report.Ineligible, task.ID)
			continue
		}
		if task.DueTick != nil && *task.DueTick < s.Tick {
			report.Overdue = append(report.Overdue, task.ID)
			continue
		}

		best, anyEligible := -1, false
		for i := range s.Employees {
			if !eligible(s.Employees[i], def, *task, cat) {
				continue
			}
			anyEligible = true
			if !s.Employees[i].Schedule.WorksOn(day) || slots[i].regularLeft+slots[i].overtimeLeft < minutes {
				continue
			}
			if best < 0 || preferred(slots, i, best, s.RotationCursor, n) {
				best = i
			}
		}
		if best < 0 {
			if anyEligible {
				report.Backlogged = append(report.Backlogged, task.ID)
			} else {
				report.Unstaffed = append(report.Unstaffed, task.ID)
			}
			continue
		}

		rec := commit(s, &slots[best], best, task, def, minutes, t)
		report.Records = append(report.Records, rec)
		report.ConsumedMinutes += minutes
		report.OvertimeMinutes += rec.OvertimeMinutes
		s.RotationCursor = (best + 1) % n
	}

	for i := range s.Employees {
		if slots[i].overtime > 0 {
			e := &s.Employees[i]
			e.Morale01 = Clamp01(e.Morale01 - t.Morale.OvertimePenalty)
			report.OvertimeEmployees = append(report.OvertimeEmployees, e.ID)
		}
	}
	return report
}

// commit hands task to employee idx and applies the time, fatigue and
// experience effects.
func commit(s *WorkforceState, slot *budgetSlot, idx int, task *TaskInstance, def TaskDefinition, minutes float64, t Tuning) AssignmentRecord {
	e := &s.Employees[idx]

	base := minutes
	if base > slot.regularLeft {
		base = slot.regularLeft
	}
	ot := minutes - base

	slot.regularLeft -= base
	slot.overtimeLeft -= ot
	slot.assigned++
	slot.overtime += ot
	e.Usage.BaseMinutes += base
	e.Usage.OvertimeMinutes += ot

	if def.IsBreakroom() {
		e.Fatigue01 = Clamp01(e.Fatigue01 - t.Fatigue.BreakroomRecovery)
	} else {
		e.Fatigue01 = Clamp01(e.Fatigue01 + ot*t.Fatigue.PerOvertimeMinute)
		e.Experience.HoursAccrued += minutes / 60
		e.Experience.Level01 = Clamp01(e.Experience.HoursAccrued / t.ExperienceHoursToMastery)
	}

	// in-progress and completed collapse into one tick
	task.AssignedEmployeeID = e.ID
	done := s.Tick
	task.Status = TaskCompleted
	task.CompletedAtTick = &done

	return AssignmentRecord{
		TaskID:          task.ID,
		TaskCode:        task.TaskCode,
		EmployeeID:      e.ID,
		StructureID:     e.StructureID,
		BaseMinutes:     base,
		OvertimeMinutes: ot,
		Breakroom:       def.IsBreakroom(),
	}
}

func eligible(e Employee, def TaskDefinition, task TaskInstance, cat *CatalogIndex) bool {
	if e.StructureID != task.Context.StructureID {
		return false
	}
	if def.RequiredRoleSlug != "" {
		role, ok := cat.Role(e.RoleID)
		if !ok || role.Slug != def.RequiredRoleSlug {
			return false
		}
	}
	if def.IsBreakroom() {
		return true
	}
	for _, req := range def.RequiredSkills {
		if e.SkillLevel(req.SkillKey) < req.MinSkill01 {
			return false
		}
	}
	return true
}

// preferred reports whether slot i beats slot j.
func preferred(slots []budgetSlot, i, j, cursor, n int) bool {
	a, b := slots[i], slots[j]
	if a.assigned != b.assigned {
		return a.assigned < b.assigned
	}
	if a.regularLeft != b.regularLeft {
		return a.regularLeft > b.regularLeft
	}
	if a.overtimeLeft != b.overtimeLeft {
		return a.overtimeLeft > b.overtimeLeft
	}
	return floorMod(i-cursor, n) < floorMod(j-cursor, n)
}

func nonNegative(x float64) float64 {
	if x < 0 {
		return 0
	}
	return x
}
