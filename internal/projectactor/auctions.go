package projectactor

import (
	"time"

	"github.com/relaymesh/coordinator/internal/domain"
	"github.com/relaymesh/coordinator/internal/domain/auction"
	"github.com/relaymesh/coordinator/internal/domain/event"
	"github.com/relaymesh/coordinator/internal/domain/task"
)

type auctionAnnounceParams struct {
	TaskID     string `json:"task_id"`
	DurationMs int64  `json:"duration_ms,omitempty"`
}

func (a *Actor) handleAuctionAnnounce(rc reqContext, raw []byte) handlerResult {
	var p auctionAnnounceParams
	if err := decodeParams(raw, &p); err != nil {
		return fail(err)
	}
	t, found := a.tasks[p.TaskID]
	if !found {
		return fail(domain.NewError(domain.ErrNotFound, "task %s not found", p.TaskID))
	}
	if _, open := a.auctions[p.TaskID]; open {
		return fail(domain.NewError(domain.ErrPrecondition, "task %s already has an open auction", p.TaskID))
	}
	if !t.Ready(a.tasks) {
		return fail(domain.NewError(domain.ErrPrecondition, "task %s is not ready", p.TaskID))
	}

	dur := time.Duration(p.DurationMs) * time.Millisecond
	if dur <= 0 {
		dur = a.cfg.AuctionDefault
	}

	au := &auction.Auction{
		TaskID:   p.TaskID,
		OpenedAt: rc.now,
		ClosesAt: rc.now.Add(dur),
		Bids:     make(map[string]auction.Bid),
	}
	a.auctions[p.TaskID] = au
	t.Status = task.StatusAuctioning

	return ok(au, pendingEvent{kind: event.KindAuctionOpened, payload: au})
}

type auctionBidParams struct {
	TaskID string  `json:"task_id"`
	Agent  string  `json:"agent"`
	Score  float64 `json:"score"`
}

func (a *Actor) handleAuctionBid(rc reqContext, raw []byte) handlerResult {
	var p auctionBidParams
	if err := decodeParams(raw, &p); err != nil {
		return fail(err)
	}
	au, found := a.auctions[p.TaskID]
	if !found {
		return fail(domain.NewError(domain.ErrNotFound, "no open auction for task %s", p.TaskID))
	}
	if au.Closed(rc.now) {
		return fail(domain.NewError(domain.ErrPrecondition, "auction for task %s is closed", p.TaskID))
	}
	if p.Score < 0 || p.Score > 1 {
		return fail(domain.NewError(domain.ErrInvalidRequest, "score must be in [0,1]"))
	}

	bid := auction.Bid{Agent: p.Agent, Score: p.Score, PostedAt: rc.now}
	au.Bids[p.Agent] = bid

	return ok(bid, pendingEvent{kind: event.KindAuctionBid, payload: bid})
}

// closeDueAuctions awards every auction past its closes_at. Called from the
// tick handler. Bids from offline agents still count, per spec: award
// considers all bids regardless of current agent status.
func (a *Actor) closeDueAuctions(now time.Time) {
	for taskID, au := range a.auctions {
		if !au.Closed(now) {
			continue
		}
		delete(a.auctions, taskID)

		t, found := a.tasks[taskID]
		if !found {
			continue
		}

		winner, hasWinner := au.Winner()
		if !hasWinner {
			t.Status = task.StatusOpen
			continue
		}

		if !t.Ready(a.tasks) {
			t.Status = task.StatusOpen
			continue
		}

		a.emit(noopCtx(), event.KindAuctionAwarded, map[string]any{"task_id": taskID, "agent": winner.Agent, "score": winner.Score})

		t.Assignee = winner.Agent
		t.Status = task.StatusInProgress
		claimedAt := now
		t.ClaimedAt = &claimedAt
		a.emit(noopCtx(), event.KindTaskAssigned, t)
	}
}
