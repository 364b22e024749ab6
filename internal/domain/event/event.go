// Package event defines the append-only per-project Event log entry and
// its closed set of kinds.
package event

import (
	"encoding/json"
	"time"
)

// Kind identifies the fact an Event records. The set is closed: the
// connection hub's default subscription is "all kinds", and clients narrow
// with subscribe(kinds).
type Kind string

const (
	KindAgentRegistered    Kind = "agent_registered"
	KindAgentOffline       Kind = "agent_offline"
	KindAgentResumed       Kind = "agent_resumed"
	KindAgentDeregistered  Kind = "agent_deregistered"
	KindOrchestratorChange Kind = "orchestrator_changed"
	KindTaskCreated        Kind = "task_created"
	KindTaskUpdated        Kind = "task_updated"
	KindTaskClaimed        Kind = "task_claimed"
	KindTaskCompleted      Kind = "task_completed"
	KindTaskAssigned       Kind = "task_assigned"
	KindAuctionOpened      Kind = "auction_opened"
	KindAuctionBid         Kind = "auction_bid"
	KindAuctionAwarded     Kind = "auction_awarded"
	KindFileLocked         Kind = "file_locked"
	KindFileUnlocked       Kind = "file_unlocked"
	KindMessage            Kind = "message"
	KindChat               Kind = "chat"
	KindVoteOpened         Kind = "vote_opened"
	KindVoteCast           Kind = "vote_cast"
	KindVoteClosed         Kind = "vote_closed"
	KindSwarmStopped       Kind = "swarm_stopped"
	KindSwarmResumed       Kind = "swarm_resumed"
	KindEventGap           Kind = "event_gap"
)

// Event is a single immutable fact in a project's append-only log.
type Event struct {
	Seq     int64           `json:"seq"`
	TS      time.Time       `json:"ts"`
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}
