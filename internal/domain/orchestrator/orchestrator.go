// Package orchestrator defines the per-project orchestrator election
// record and its fencing-epoch discipline.
package orchestrator

import "time"

// Record is the single live orchestrator for a project, if any. Epoch is a
// monotonic fencing token: it increases on every (re)election, and any
// orchestrator-only write must carry the current epoch or is rejected.
type Record struct {
	AgentID         string    `json:"agent_id"`
	Epoch           int64     `json:"epoch"`
	ElectedAt       time.Time `json:"elected_at"`
	LastHeartbeatTS time.Time `json:"last_heartbeat_ts"`
}

// Live reports whether the record still holds authority: it exists and its
// heartbeat hasn't exceeded timeout.
func (r *Record) Live(now time.Time, timeout time.Duration) bool {
	return r != nil && now.Sub(r.LastHeartbeatTS) <= timeout
}
