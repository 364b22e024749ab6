// Package agent defines the Agent domain entity: a connected client
// within a single project's coordination domain.
package agent

import "time"

// Role distinguishes coordination authority from plain execution.
type Role string

const (
	RoleOrchestrator Role = "orchestrator"
	RoleExecutor     Role = "executor"
	RoleObserver     Role = "observer"
)

// Status reflects liveness and activity, independent of Role.
type Status string

const (
	StatusActive  Status = "active"
	StatusIdle    Status = "idle"
	StatusPaused  Status = "paused"
	StatusOffline Status = "offline"
)

// Agent is a connected client performing work (executor) or coordinating
// (orchestrator) within one project. Names are unique within a project and
// stable across reconnects: the registry derives a name deterministically
// from the agent id when one isn't supplied.
type Agent struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Platform        string    `json:"platform,omitempty"`
	Role            Role      `json:"role"`
	Status          Status    `json:"status"`
	CurrentFile     string    `json:"current_file,omitempty"`
	CurrentTask     string    `json:"current_task,omitempty"`
	LastHeartbeatTS time.Time `json:"last_heartbeat_ts"`
	ConnectionID    string    `json:"connection_id,omitempty"`
	RegisteredAt    time.Time `json:"registered_at"`
}

// IsStale reports whether the agent's heartbeat is older than timeout as of now.
func (a *Agent) IsStale(now time.Time, timeout time.Duration) bool {
	return now.Sub(a.LastHeartbeatTS) > timeout
}

// Snapshot returns a shallow copy safe to hand to callers outside the
// owning Project actor; Agent has no internal pointers so a value copy
// already satisfies that, but the helper documents the ownership rule at
// every call site that crosses the actor boundary.
func (a Agent) Snapshot() Agent { return a }
