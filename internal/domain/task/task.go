// Package task defines the Task domain entity and its board lifecycle.
package task

import "time"

// Status represents the current state of a task on the board.
type Status string

const (
	StatusOpen        Status = "open"
	StatusAuctioning  Status = "auctioning"
	StatusInProgress  Status = "in_progress"
	StatusNeedsReview Status = "needs_review"
	StatusDone        Status = "done"
	StatusCanceled    Status = "canceled"
)

// Priority ranks tasks for display and bidding context; the core does not
// enforce ordering by priority, only carries and exposes it.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Task is a unit of work tracked on a project's board.
type Task struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Description  string          `json:"description,omitempty"`
	Status       Status          `json:"status"`
	Assignee     string          `json:"assignee,omitempty"`
	Priority     Priority        `json:"priority"`
	DependsOn    map[string]bool `json:"depends_on,omitempty"`
	Files        map[string]bool `json:"files,omitempty"`
	ExternalRef  string          `json:"external_ref,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	ClaimedAt    *time.Time      `json:"claimed_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// DependsOnSlice returns the dependency set as a sorted-free slice for
// serialization or iteration where map order doesn't matter to the caller.
func (t *Task) DependsOnSlice() []string {
	out := make([]string, 0, len(t.DependsOn))
	for id := range t.DependsOn {
		out = append(out, id)
	}
	return out
}

// FilesSlice returns the declared file set as a slice.
func (t *Task) FilesSlice() []string {
	out := make([]string, 0, len(t.Files))
	for f := range t.Files {
		out = append(out, f)
	}
	return out
}

// Ready reports whether t can be announced for auction or directly
// assigned: it must be open and every dependency must be done.
func (t *Task) Ready(byID map[string]*Task) bool {
	if t.Status != StatusOpen {
		return false
	}
	for depID := range t.DependsOn {
		dep, ok := byID[depID]
		if !ok || dep.Status != StatusDone {
			return false
		}
	}
	return true
}

// CreateRequest holds the fields accepted from a task_create request.
type CreateRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Priority    Priority `json:"priority,omitempty"`
	DependsOn   []string `json:"depends_on,omitempty"`
	Files       []string `json:"files,omitempty"`
	ExternalRef string   `json:"external_ref,omitempty"`
}
