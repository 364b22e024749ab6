package projectactor

import (
	"fmt"
	"time"

	"github.com/relaymesh/coordinator/internal/domain"
	"github.com/relaymesh/coordinator/internal/domain/event"
	"github.com/relaymesh/coordinator/internal/domain/task"
)

func nextTaskID(projectID string, n int) string {
	return fmt.Sprintf("%s-t%d", projectID, n)
}

func (a *Actor) handleTaskCreate(rc reqContext, raw []byte) handlerResult {
	var req task.CreateRequest
	if err := decodeParams(raw, &req); err != nil {
		return fail(err)
	}
	if req.Title == "" {
		return fail(domain.NewError(domain.ErrInvalidRequest, "title required"))
	}
	if req.Priority == "" {
		req.Priority = task.PriorityNormal
	}

	a.taskSeq++
	id := nextTaskID(a.id, a.taskSeq)

	deps := toSet(req.DependsOn)
	if err := task.ValidateDAG(a.tasks, id, deps); err != nil {
		return fail(domain.NewError(domain.ErrPrecondition, "%v", err))
	}

	t := &task.Task{
		ID:          id,
		Title:       req.Title,
		Description: req.Description,
		Status:      task.StatusOpen,
		Priority:    req.Priority,
		DependsOn:   deps,
		Files:       toSet(req.Files),
		ExternalRef: req.ExternalRef,
		CreatedAt:   rc.now,
	}
	a.tasks[id] = t

	return ok(t, pendingEvent{kind: event.KindTaskCreated, payload: t})
}

func (a *Actor) handleTaskList(rc reqContext, raw []byte) handlerResult {
	out := make([]*task.Task, 0, len(a.tasks))
	for _, t := range a.tasks {
		out = append(out, t)
	}
	return ok(out)
}

type taskUpdateParams struct {
	TaskID      string   `json:"task_id"`
	Status      string   `json:"status,omitempty"`
	Description string   `json:"description,omitempty"`
	Priority    string   `json:"priority,omitempty"`
	DependsOn   []string `json:"depends_on,omitempty"`
	Files       []string `json:"files,omitempty"`
	Caller      string   `json:"caller"`
	Epoch       int64    `json:"epoch,omitempty"`
}

func (a *Actor) handleTaskUpdate(rc reqContext, raw []byte) handlerResult {
	var p taskUpdateParams
	if err := decodeParams(raw, &p); err != nil {
		return fail(err)
	}
	t, found := a.tasks[p.TaskID]
	if !found {
		return fail(domain.NewError(domain.ErrNotFound, "task %s not found", p.TaskID))
	}

	newStatus := t.Status
	if p.Status != "" {
		newStatus = task.Status(p.Status)
	}

	if newStatus == task.StatusDone || newStatus == task.StatusCanceled {
		if t.Assignee != p.Caller && !a.isLiveOrchestrator(p.Caller, p.Epoch, rc.now) {
			return fail(domain.NewError(domain.ErrForbidden, "only the assignee or orchestrator may complete this task"))
		}
	}

	if len(p.DependsOn) > 0 {
		deps := toSet(p.DependsOn)
		if err := task.ValidateDAG(a.tasks, t.ID, deps); err != nil {
			return fail(domain.NewError(domain.ErrPrecondition, "%v", err))
		}
		t.DependsOn = deps
	}

	// Invariant: assignee set => status in {in_progress, needs_review}. A
	// status update that leaves that range (back to open, or terminal)
	// clears the assignee rather than leaving a stale claim on the task.
	if t.Assignee != "" && newStatus != task.StatusInProgress && newStatus != task.StatusNeedsReview {
		t.Assignee = ""
		t.ClaimedAt = nil
	}
	if len(p.Files) > 0 {
		t.Files = toSet(p.Files)
	}
	if p.Description != "" {
		t.Description = p.Description
	}
	if p.Priority != "" {
		t.Priority = task.Priority(p.Priority)
	}

	events := []pendingEvent{}
	wasTerminal := t.Status == task.StatusDone || t.Status == task.StatusCanceled
	t.Status = newStatus

	switch newStatus {
	case task.StatusDone:
		now := rc.now
		t.CompletedAt = &now
		events = append(events, pendingEvent{kind: event.KindTaskCompleted, payload: t})
		a.releaseLeasesForTask(t.ID)
	case task.StatusCanceled:
		if !wasTerminal {
			a.releaseLeasesForTask(t.ID)
		}
		events = append(events, pendingEvent{kind: event.KindTaskUpdated, payload: t})
	default:
		events = append(events, pendingEvent{kind: event.KindTaskUpdated, payload: t})
	}

	return handlerResult{result: t, events: events}
}

type taskAssignParams struct {
	TaskID string `json:"task_id"`
	Agent  string `json:"agent"`
	Epoch  int64  `json:"epoch,omitempty"`
	Caller string `json:"caller"`
}

func (a *Actor) handleTaskAssign(rc reqContext, raw []byte) handlerResult {
	var p taskAssignParams
	if err := decodeParams(raw, &p); err != nil {
		return fail(err)
	}
	t, found := a.tasks[p.TaskID]
	if !found {
		return fail(domain.NewError(domain.ErrNotFound, "task %s not found", p.TaskID))
	}

	selfAssign := p.Caller == p.Agent
	if selfAssign {
		if !t.Ready(a.tasks) {
			return fail(domain.NewError(domain.ErrPrecondition, "task %s is not ready", t.ID))
		}
	} else if !a.isLiveOrchestrator(p.Caller, p.Epoch, rc.now) {
		return fail(domain.NewError(domain.ErrStaleEpoch, "caller is not the live orchestrator at epoch %d", p.Epoch))
	}

	if t.Status != task.StatusOpen {
		return fail(domain.NewError(domain.ErrConflict, "task %s is not open", t.ID))
	}

	t.Assignee = p.Agent
	t.Status = task.StatusInProgress
	now := rc.now
	t.ClaimedAt = &now

	return ok(t, pendingEvent{kind: event.KindTaskAssigned, payload: t})
}

// isLiveOrchestrator reports whether caller is the current orchestrator and
// epoch matches the fencing token. Used by every orchestrator-only write.
func (a *Actor) isLiveOrchestrator(caller string, epoch int64, now time.Time) bool {
	if a.orch == nil {
		return false
	}
	if !a.orch.Live(now, a.cfg.OrchTimeout) {
		return false
	}
	return a.orch.AgentID == caller && a.orch.Epoch == epoch
}

func toSet(items []string) map[string]bool {
	if len(items) == 0 {
		return nil
	}
	out := make(map[string]bool, len(items))
	for _, it := range items {
		out[it] = true
	}
	return out
}
