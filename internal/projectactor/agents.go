package projectactor

import (
	"hash/fnv"
	"time"

	"github.com/relaymesh/coordinator/internal/domain"
	"github.com/relaymesh/coordinator/internal/domain/agent"
	"github.com/relaymesh/coordinator/internal/domain/event"
	"github.com/relaymesh/coordinator/internal/domain/message"
)

// nameDictionary is the fixed pool register draws from when a client omits
// a name, keyed deterministically by agent id so reconnects keep their name.
var nameDictionary = []string{
	"albatross", "badger", "cormorant", "dolphin", "egret", "falcon",
	"gecko", "heron", "ibis", "jackal", "kestrel", "lynx", "marten",
	"narwhal", "osprey", "pelican", "quokka", "raven", "serval", "tapir",
	"urchin", "vole", "wombat", "xerus", "yak", "zebu",
}

func nameForID(id string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return nameDictionary[int(h.Sum32())%len(nameDictionary)]
}

type registerParams struct {
	AgentID      string `json:"agent_id"`
	Name         string `json:"name,omitempty"`
	Platform     string `json:"platform,omitempty"`
	Role         string `json:"role,omitempty"`
	ConnectionID string `json:"-"`
}

func (a *Actor) handleRegister(rc reqContext, raw []byte) handlerResult {
	var p registerParams
	if err := decodeParams(raw, &p); err != nil {
		return fail(err)
	}
	if p.AgentID == "" {
		return fail(domain.NewError(domain.ErrInvalidRequest, "agent_id required"))
	}

	if existing, found := a.agents[p.AgentID]; found {
		existing.ConnectionID = rc.connID
		existing.Status = agent.StatusActive
		existing.LastHeartbeatTS = rc.now
		a.connToAgent[rc.connID] = existing.ID
		return ok(existing.Snapshot())
	}

	name := p.Name
	if name == "" {
		name = nameForID(p.AgentID)
	}
	role := agent.RoleExecutor
	if p.Role == string(agent.RoleOrchestrator) || p.Role == string(agent.RoleObserver) {
		role = agent.Role(p.Role)
	}

	ag := &agent.Agent{
		ID:              p.AgentID,
		Name:            name,
		Platform:        p.Platform,
		Role:            role,
		Status:          agent.StatusActive,
		LastHeartbeatTS: rc.now,
		ConnectionID:    rc.connID,
		RegisteredAt:    rc.now,
	}
	a.agents[ag.ID] = ag
	a.agentsByName[ag.Name] = ag.ID
	a.connToAgent[rc.connID] = ag.ID
	a.inboxes[ag.Name] = newInboxFor(a.cfg)

	return ok(ag.Snapshot(), pendingEvent{kind: event.KindAgentRegistered, payload: ag})
}

type heartbeatParams struct {
	AgentID     string `json:"agent_id"`
	CurrentFile string `json:"current_file,omitempty"`
	CurrentTask string `json:"current_task,omitempty"`
	Status      string `json:"status,omitempty"`
}

func (a *Actor) handleHeartbeat(rc reqContext, raw []byte) handlerResult {
	var p heartbeatParams
	if err := decodeParams(raw, &p); err != nil {
		return fail(err)
	}
	ag, found := a.agents[p.AgentID]
	if !found {
		return fail(domain.NewError(domain.ErrNotFound, "agent %s not registered", p.AgentID))
	}

	wasOffline := ag.Status == agent.StatusOffline
	ag.LastHeartbeatTS = rc.now
	ag.ConnectionID = rc.connID
	a.connToAgent[rc.connID] = ag.ID
	if p.CurrentFile != "" {
		ag.CurrentFile = p.CurrentFile
	}
	if p.CurrentTask != "" {
		ag.CurrentTask = p.CurrentTask
	}
	switch agent.Status(p.Status) {
	case agent.StatusActive, agent.StatusIdle, agent.StatusPaused:
		ag.Status = agent.Status(p.Status)
	default:
		if ag.Status == agent.StatusOffline {
			ag.Status = agent.StatusActive
		}
	}

	if wasOffline {
		return ok(ag.Snapshot(), pendingEvent{kind: event.KindAgentResumed, payload: ag})
	}
	return ok(ag.Snapshot())
}

// scanAgents demotes agents whose heartbeat has expired. Called from the
// tick handler at ScanInterval.
func (a *Actor) scanAgents(now time.Time) {
	for _, ag := range a.agents {
		if ag.Status == agent.StatusOffline {
			continue
		}
		if ag.IsStale(now, a.cfg.HeartbeatTimeout) {
			ag.Status = agent.StatusOffline
			a.emit(noopCtx(), event.KindAgentOffline, ag)
		}
	}
}

type deregisterParams struct {
	AgentID string `json:"agent_id"`
}

// handleDeregister destroys an agent's record outright: unlike going
// offline on a missed heartbeat, this is permanent and immediate. Per spec,
// an agent is destroyed by explicit deregistration or after AgentTTL spent
// offline (see reapAgents for the latter).
func (a *Actor) handleDeregister(rc reqContext, raw []byte) handlerResult {
	var p deregisterParams
	if err := decodeParams(raw, &p); err != nil {
		return fail(err)
	}
	ag, found := a.agents[p.AgentID]
	if !found {
		return fail(domain.NewError(domain.ErrNotFound, "agent %s not registered", p.AgentID))
	}
	a.destroyAgent(ag)
	return ok(map[string]string{"agent_id": p.AgentID}, pendingEvent{kind: event.KindAgentDeregistered, payload: ag})
}

// destroyAgent removes ag's record, its name index entry, and every
// connection mapping that points at it. Its inbox and any orchestrator
// record naming it are kept, and leases it holds are left alone: they
// already expire independently via reapLeases.
func (a *Actor) destroyAgent(ag *agent.Agent) {
	delete(a.agents, ag.ID)
	delete(a.agentsByName, ag.Name)
	for connID, agentID := range a.connToAgent {
		if agentID == ag.ID {
			delete(a.connToAgent, connID)
		}
	}
}

// reapAgents destroys every agent that has been offline for at least
// AgentTTL. Called from the tick handler alongside scanAgents.
func (a *Actor) reapAgents(now time.Time) {
	for _, ag := range a.agents {
		if ag.Status != agent.StatusOffline {
			continue
		}
		if ag.IsStale(now, a.cfg.AgentTTL) {
			a.destroyAgent(ag)
			a.emit(noopCtx(), event.KindAgentDeregistered, ag)
		}
	}
}

// onDisconnect drops the connID-to-agent mapping; it does not change the
// agent's status, force it offline, or release its leases, per the
// documented split between connection liveness and heartbeat-driven
// staleness.
func (a *Actor) onDisconnect(connID string) {
	delete(a.connToAgent, connID)
}

func newInboxFor(cfg Config) *message.Inbox {
	cap := cfg.InboxCap
	if cap <= 0 {
		cap = 1000
	}
	return message.NewInbox(cap)
}
