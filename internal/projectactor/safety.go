package projectactor

import (
	"fmt"
	"time"

	"github.com/relaymesh/coordinator/internal/domain"
	"github.com/relaymesh/coordinator/internal/domain/event"
	"github.com/relaymesh/coordinator/internal/domain/stopflag"
	"github.com/relaymesh/coordinator/internal/domain/vote"
)

type stopParams struct {
	Reason string `json:"reason,omitempty"`
	By     string `json:"by,omitempty"`
}

func (a *Actor) handleStop(rc reqContext, raw []byte) handlerResult {
	var p stopParams
	if err := decodeParams(raw, &p); err != nil {
		return fail(err)
	}
	a.stop = stopflag.StopFlag{Stopped: true, Reason: p.Reason, By: p.By, TS: rc.now}
	return ok(a.stop, pendingEvent{kind: event.KindSwarmStopped, payload: a.stop})
}

func (a *Actor) handleResume(rc reqContext, raw []byte) handlerResult {
	a.stop = stopflag.StopFlag{}
	return ok(a.stop, pendingEvent{kind: event.KindSwarmResumed, payload: a.stop})
}

type statusResult struct {
	ProjectID      string `json:"project_id"`
	Stopped        bool   `json:"stopped"`
	Degraded       bool   `json:"degraded"`
	AgentCount     int    `json:"agent_count"`
	TaskCount      int    `json:"task_count"`
	LeaseCount     int    `json:"lease_count"`
	OpenAuctions   int    `json:"open_auctions"`
	OpenVotes      int    `json:"open_votes"`
	HasOrch        bool   `json:"has_orchestrator"`
	OrchAgentID    string `json:"orchestrator_agent_id,omitempty"`
	OrchEpoch      int64  `json:"orchestrator_epoch,omitempty"`
	LastSeq        int64  `json:"last_seq"`
}

func (a *Actor) handleStatus(rc reqContext, raw []byte) handlerResult {
	s := statusResult{
		ProjectID:    a.id,
		Stopped:      a.stop.Stopped,
		Degraded:     a.Degraded(),
		AgentCount:   len(a.agents),
		TaskCount:    len(a.tasks),
		LeaseCount:   len(a.leases),
		OpenAuctions: len(a.auctions),
		OpenVotes:    len(a.votes),
		LastSeq:      a.store.LastSeq(),
	}
	if a.orch != nil {
		s.HasOrch = true
		s.OrchAgentID = a.orch.AgentID
		s.OrchEpoch = a.orch.Epoch
	}
	return ok(s)
}

type voteStartParams struct {
	Subject    string  `json:"subject"`
	Kind       string  `json:"kind"`
	OpenedBy   string  `json:"opened_by"`
	Quorum     int     `json:"quorum,omitempty"`
	Threshold  float64 `json:"threshold,omitempty"`
	DurationMs int64   `json:"duration_ms,omitempty"`
}

func (a *Actor) handleVoteStart(rc reqContext, raw []byte) handlerResult {
	var p voteStartParams
	if err := decodeParams(raw, &p); err != nil {
		return fail(err)
	}
	if p.Subject == "" || p.Kind == "" {
		return fail(domain.NewError(domain.ErrInvalidRequest, "subject and kind are required"))
	}

	quorum := p.Quorum
	if quorum <= 0 {
		quorum = a.cfg.DefaultQuorum
	}
	threshold := p.Threshold
	if threshold <= 0 {
		threshold = a.cfg.DefaultThreshold
	}
	dur := time.Duration(p.DurationMs) * time.Millisecond
	if dur <= 0 {
		dur = a.cfg.AuctionDefault
	}

	a.voteSeq++
	v := &vote.Vote{
		ID:        fmt.Sprintf("%s-v%d", a.id, a.voteSeq),
		Subject:   p.Subject,
		Kind:      p.Kind,
		OpenedBy:  p.OpenedBy,
		OpenedAt:  rc.now,
		ClosesAt:  rc.now.Add(dur),
		Ballots:   make(map[string]vote.Ballot),
		Quorum:    quorum,
		Threshold: threshold,
	}
	a.votes[v.ID] = v

	return ok(v, pendingEvent{kind: event.KindVoteOpened, payload: v})
}

type voteCastParams struct {
	VoteID string `json:"vote_id"`
	Agent  string `json:"agent"`
	Choice string `json:"choice"`
}

func (a *Actor) handleVoteCast(rc reqContext, raw []byte) handlerResult {
	var p voteCastParams
	if err := decodeParams(raw, &p); err != nil {
		return fail(err)
	}
	v, found := a.votes[p.VoteID]
	if !found {
		return fail(domain.NewError(domain.ErrNotFound, "vote %s not found", p.VoteID))
	}
	if v.Closed(rc.now) {
		return fail(domain.NewError(domain.ErrPrecondition, "vote %s is closed", p.VoteID))
	}

	choice := vote.Choice(p.Choice)
	switch choice {
	case vote.ChoiceYes, vote.ChoiceNo, vote.ChoiceAbstain:
	default:
		return fail(domain.NewError(domain.ErrInvalidRequest, "invalid choice %q", p.Choice))
	}

	v.Ballots[p.Agent] = vote.Ballot{Choice: choice, TS: rc.now}
	return ok(v.Ballots[p.Agent], pendingEvent{kind: event.KindVoteCast, payload: map[string]any{"vote_id": v.ID, "agent": p.Agent, "choice": choice}})
}

// VotePassed reports whether a vote still held in the open set has reached
// quorum and cleared its threshold, for callers gating a dangerous action
// on it (e.g. force-release, force-stop). A vote already dropped by
// closeDueVotes, or an unknown id, reports false.
func (a *Actor) VotePassed(voteID string) bool {
	v, found := a.votes[voteID]
	return found && v.Passed()
}

// closeDueVotes emits vote_closed for every vote past its deadline and
// drops it from the open set.
func (a *Actor) closeDueVotes(now time.Time) {
	for id, v := range a.votes {
		if !v.Closed(now) {
			continue
		}
		delete(a.votes, id)
		yes, no := v.Tally()
		a.emit(noopCtx(), event.KindVoteClosed, map[string]any{
			"vote_id": id, "passed": v.Passed(), "yes": yes, "no": no,
		})
	}
}
