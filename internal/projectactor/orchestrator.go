package projectactor

import (
	"github.com/relaymesh/coordinator/internal/domain"
	"github.com/relaymesh/coordinator/internal/domain/event"
	"github.com/relaymesh/coordinator/internal/domain/orchestrator"
)

type electParams struct {
	AgentID string `json:"agent_id"`
}

func (a *Actor) handleElect(rc reqContext, raw []byte) handlerResult {
	var p electParams
	if err := decodeParams(raw, &p); err != nil {
		return fail(err)
	}
	if _, registered := a.agents[p.AgentID]; !registered {
		return fail(domain.NewError(domain.ErrForbidden, "agent %s is not registered", p.AgentID))
	}
	if a.orch.Live(rc.now, a.cfg.OrchTimeout) {
		return fail(domain.NewError(domain.ErrConflict, "orchestrator %s already live", a.orch.AgentID))
	}

	nextEpoch := int64(1)
	if a.orch != nil {
		nextEpoch = a.orch.Epoch + 1
	}
	a.orch = &orchestrator.Record{
		AgentID:         p.AgentID,
		Epoch:           nextEpoch,
		ElectedAt:       rc.now,
		LastHeartbeatTS: rc.now,
	}
	if ag, found := a.agents[p.AgentID]; found {
		ag.Role = "orchestrator"
	}

	return ok(a.orch, pendingEvent{kind: event.KindOrchestratorChange, payload: a.orch})
}

type orchHeartbeatParams struct {
	AgentID string `json:"agent_id"`
	Epoch   int64  `json:"epoch"`
}

func (a *Actor) handleOrchHeartbeat(rc reqContext, raw []byte) handlerResult {
	var p orchHeartbeatParams
	if err := decodeParams(raw, &p); err != nil {
		return fail(err)
	}
	if a.orch == nil || a.orch.AgentID != p.AgentID || a.orch.Epoch != p.Epoch {
		return fail(domain.NewError(domain.ErrStaleEpoch, "epoch %d is not current", p.Epoch))
	}
	a.orch.LastHeartbeatTS = rc.now
	return ok(a.orch)
}

type resignParams struct {
	AgentID string `json:"agent_id"`
	Epoch   int64  `json:"epoch"`
}

func (a *Actor) handleResign(rc reqContext, raw []byte) handlerResult {
	var p resignParams
	if err := decodeParams(raw, &p); err != nil {
		return fail(err)
	}
	if a.orch == nil || a.orch.AgentID != p.AgentID || a.orch.Epoch != p.Epoch {
		return fail(domain.NewError(domain.ErrStaleEpoch, "epoch %d is not current", p.Epoch))
	}
	old := a.orch
	a.orch = nil
	return ok(map[string]string{"resigned": old.AgentID}, pendingEvent{kind: event.KindOrchestratorChange, payload: map[string]any{"agent_id": nil, "epoch": old.Epoch}})
}
