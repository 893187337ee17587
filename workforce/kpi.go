/*
kpi.go - KPI snapshot and warning reporter

PURPOSE:
  Derives one KpiSnapshot and a set of threshold warnings from the state a
  tick is about to commit. Warnings are advisory telemetry and never steer
  the engine.

METRICS:
  queueDepth          tasks still queued
  utilization         minutes consumed / minutes available this tick,
                      across employees scheduled today
  p95WaitTimeHours    nearest-rank 95th percentile of
                      (tick - createdAtTick) x tickHours over tasks still
                      queued or completed this tick
  overtimeMinutes     minutes worked beyond hoursPerDay this tick
  maintenanceBacklog  queued tasks in the maintenance category

WARNINGS:
  Each Thresholds ladder escalates info -> warning -> critical. Codes:
    workforce.queue.backlog, workforce.maintenance.backlog,
    workforce.wait.p95, workforce.morale.low, workforce.fatigue.high,
    workforce.task.overdue, workforce.task.invalid_context,
    workforce.task.unstaffed
*/
package workforce

import (
	"fmt"
	"math"
	"sort"
	"strconv"
)

const (
	WarnQueueBacklog       = "workforce.queue.backlog"
	WarnMaintenanceBacklog = "workforce.maintenance.backlog"
	WarnWaitP95            = "workforce.wait.p95"
	WarnLowMorale          = "workforce.morale.low"
	WarnHighFatigue        = "workforce.fatigue.high"
	WarnTaskOverdue        = "workforce.task.overdue"
	WarnInvalidContext     = "workforce.task.invalid_context"
	WarnTaskUnstaffed      = "workforce.task.unstaffed"
)

// BuildKPI derives the snapshot for the committed tick.
func BuildKPI(s WorkforceState, cat *CatalogIndex, t Tuning, report AssignmentReport) KpiSnapshot {
	k := KpiSnapshot{
		SimTimeHours:           SimTimeHours(s.Tick, t.TickHours),
		TasksCompleted:         report.Completed(),
		LaborHoursCommitted:    report.ConsumedMinutes / 60,
		OvertimeHoursCommitted: report.OvertimeMinutes / 60,
		OvertimeMinutes:        report.OvertimeMinutes,
	}
	if report.AvailableMinutes > 0 {
		k.Utilization = Clamp01(report.ConsumedMinutes / report.AvailableMinutes)
	}

	var waits []float64
	for _, task := range s.TaskQueue {
		justCompleted := task.Status == TaskCompleted && task.CompletedAtTick != nil && *task.CompletedAtTick == s.Tick
		if task.Status != TaskQueued && !justCompleted {
			continue
		}
		waits = append(waits, float64(s.Tick-task.CreatedAtTick)*t.TickHours)
		if task.Status != TaskQueued {
			continue
		}
		k.QueueDepth++
		if d, ok := cat.TaskDefinition(task.TaskCode); ok && d.Category == CategoryMaintenance {
			k.MaintenanceBacklog++
		}
	}
	k.P95WaitTimeHours = Percentile(waits, 0.95)

	if n := len(s.Employees); n > 0 {
		var morale, fatigue float64
		for _, e := range s.Employees {
			morale += e.Morale01
			fatigue += e.Fatigue01
		}
		k.AverageMorale = Clamp01(morale / float64(n))
		k.AverageFatigue = Clamp01(fatigue / float64(n))
	}
	return k
}

// Percentile returns the nearest-rank p-quantile of xs, 0 for no values.
func Percentile(xs []float64, p float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	rank := int(math.Ceil(p*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}

// BuildWarnings evaluates every threshold ladder against the snapshot and
// the roster. Output order is fixed: aggregate warnings first, then
// per-employee in roster order, then per-task in report order.
func BuildWarnings(s WorkforceState, k KpiSnapshot, t Tuning, report AssignmentReport) []Warning {
	w := t.Warnings
	var out []Warning
	add := func(code, msg string, sev Severity, meta map[string]string) Warning {
		return Warning{SimTimeHours: k.SimTimeHours, Code: code, Message: msg, Severity: sev, Metadata: meta}
	}

	if sev, ok := w.QueueBacklog.Classify(float64(k.QueueDepth)); ok {
		out = append(out, add(WarnQueueBacklog,
			fmt.Sprintf("%d tasks waiting for an employee", k.QueueDepth), sev,
			map[string]string{"queueDepth": strconv.Itoa(k.QueueDepth)}))
	}
	if sev, ok := w.MaintenanceBacklog.Classify(float64(k.MaintenanceBacklog)); ok {
		out = append(out, add(WarnMaintenanceBacklog,
			fmt.Sprintf("%d maintenance tasks queued", k.MaintenanceBacklog), sev,
			map[string]string{"maintenanceBacklog": strconv.Itoa(k.MaintenanceBacklog)}))
	}
	if sev, ok := w.P95WaitHours.Classify(k.P95WaitTimeHours); ok {
		out = append(out, add(WarnWaitP95,
			fmt.Sprintf("p95 task wait is %.1fh", k.P95WaitTimeHours), sev,
			map[string]string{"p95WaitTimeHours": formatFloat(k.P95WaitTimeHours)}))
	}

	for _, e := range s.Employees {
		if sev, ok := w.LowMorale.Classify(e.Morale01); ok {
			x := add(WarnLowMorale, fmt.Sprintf("%s morale at %.2f", e.Name, e.Morale01), sev,
				map[string]string{"morale01": formatFloat(e.Morale01)})
			x.EmployeeID, x.StructureID = e.ID, e.StructureID
			out = append(out, x)
		}
		if sev, ok := w.HighFatigue.Classify(e.Fatigue01); ok {
			x := add(WarnHighFatigue, fmt.Sprintf("%s fatigue at %.2f", e.Name, e.Fatigue01), sev,
				map[string]string{"fatigue01": formatFloat(e.Fatigue01)})
			x.EmployeeID, x.StructureID = e.ID, e.StructureID
			out = append(out, x)
		}
	}

	taskWarning := func(code string, id TaskID, sev Severity, msg string) {
		x := add(code, msg, sev, nil)
		x.TaskID = id
		if task, ok := s.Task(id); ok {
			x.StructureID = task.Context.StructureID
		}
		out = append(out, x)
	}
	for _, id := range report.Overdue {
		taskWarning(WarnTaskOverdue, id, SeverityWarning, fmt.Sprintf("task %s is past its due tick", id))
	}
	for _, id := range report.Ineligible {
		taskWarning(WarnInvalidContext, id, SeverityWarning, fmt.Sprintf("task %s cannot be assigned: invalid code or context", id))
	}
	for _, id := range report.Unstaffed {
		taskWarning(WarnTaskUnstaffed, id, SeverityInfo, fmt.Sprintf("no employee qualifies for task %s", id))
	}
	return out
}

func formatFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', 4, 64)
}
