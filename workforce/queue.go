package workforce

import (
	"fmt"
	"sort"
)

// =============================================================================
// TASK QUEUE MANAGER
// =============================================================================
//
// Task instances are created by workforce.task.enqueue, moved through
// queued -> in-progress -> completed by the Assignment Engine, put back to
// queued by terminations, and cancelled by workforce.task.cancel. They are
// never removed: terminal tasks stay in the queue for audit and KPI history.

// enqueueTask appends a new queued task. Ids are task-<tick>-<seq>.
func enqueueTask(s *WorkforceState, cat *CatalogIndex, in Intent) (TaskInstance, error) {
	const intent = IntentTaskEnqueue
	def, ok := cat.TaskDefinition(in.TaskCode)
	if !ok {
		return TaskInstance{}, invalid(intent, "taskCode", ErrUnknownTaskCode, "unknown task code %q", in.TaskCode)
	}
	if in.Context == nil {
		return TaskInstance{}, invalid(intent, "context", ErrInvalidContext, "is required")
	}
	ctx := *in.Context
	if err := ctx.Validate(); err != nil {
		return TaskInstance{}, invalid(intent, "context", ErrInvalidContext, "%v", err)
	}
	if _, ok := cat.Structure(ctx.StructureID); !ok {
		return TaskInstance{}, invalid(intent, "context.structureId", ErrUnknownStructure, "unknown structure %q", ctx.StructureID)
	}
	if _, err := ctx.LaborMinutes(def.CostModel); err != nil {
		return TaskInstance{}, invalid(intent, "context", ErrInvalidContext, "%v", err)
	}

	s.NextTaskSeq++
	task := TaskInstance{
		ID:            TaskID(fmt.Sprintf("task-%d-%d", s.Tick, s.NextTaskSeq)),
		TaskCode:      def.TaskCode,
		Status:        TaskQueued,
		CreatedAtTick: s.Tick,
		DueTick:       cloneInt64Ptr(in.DueTick),
		Context:       ctx,
	}
	task = task.clone()
	s.TaskQueue = append(s.TaskQueue, task)
	return task, nil
}

// cancelTask moves a queued or in-progress task to cancelled.
func cancelTask(s *WorkforceState, id TaskID) (TaskInstance, error) {
	const intent = IntentTaskCancel
	for i := range s.TaskQueue {
		t := &s.TaskQueue[i]
		if t.ID != id {
			continue
		}
		if t.Status.IsTerminal() {
			return TaskInstance{}, invalid(intent, "taskId", ErrTaskTerminal, "task %s is %s", id, t.Status)
		}
		t.Status = TaskCancelled
		t.AssignedEmployeeID = ""
		return t.clone(), nil
	}
	return TaskInstance{}, invalid(intent, "taskId", ErrTaskNotFound, "task %q not found", id)
}

// TasksByStatus returns copies of the tasks in the given status, in queue order.
func (s WorkforceState) TasksByStatus(status TaskStatus) []TaskInstance {
	var out []TaskInstance
	for _, t := range s.TaskQueue {
		if t.Status == status {
			out = append(out, t.clone())
		}
	}
	return out
}

// QueuedTasks returns the tasks waiting for an employee.
func (s WorkforceState) QueuedTasks() []TaskInstance {
	return s.TasksByStatus(TaskQueued)
}

// sortForAssignment orders tasks by priority desc, createdAtTick asc, id asc.
// Tasks without a catalog definition sort last.
func sortForAssignment(tasks []*TaskInstance, cat *CatalogIndex) {
	prio := func(t *TaskInstance) (int, bool) {
		d, ok := cat.TaskDefinition(t.TaskCode)
		return d.Priority, ok
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		pi, oki := prio(tasks[i])
		pj, okj := prio(tasks[j])
		if oki != okj {
			return oki
		}
		if pi != pj {
			return pi > pj
		}
		if tasks[i].CreatedAtTick != tasks[j].CreatedAtTick {
			return tasks[i].CreatedAtTick < tasks[j].CreatedAtTick
		}
		return tasks[i].ID < tasks[j].ID
	})
}
