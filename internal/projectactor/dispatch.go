package projectactor

import (
	"encoding/json"

	"github.com/relaymesh/coordinator/internal/domain"
	"github.com/relaymesh/coordinator/internal/domain/event"
)

// routeRequest decodes raw's params for the given request type and calls the
// matching handler. Handlers never append events or send the response
// themselves; they return a handlerResult that handleFrame turns into both.
func (a *Actor) routeRequest(rc reqContext, reqType string, raw []byte) handlerResult {
	if a.stop.Stopped && !mutationExempt(reqType) {
		return fail(domain.NewError(domain.ErrStopped, "project stopped: %s", a.stop.Reason))
	}

	switch reqType {
	case "register":
		return a.handleRegister(rc, raw)
	case "heartbeat":
		return a.handleHeartbeat(rc, raw)
	case "deregister":
		return a.handleDeregister(rc, raw)
	case "elect":
		return a.handleElect(rc, raw)
	case "orch_heartbeat":
		return a.handleOrchHeartbeat(rc, raw)
	case "resign":
		return a.handleResign(rc, raw)
	case "task_create":
		return a.handleTaskCreate(rc, raw)
	case "task_list":
		return a.handleTaskList(rc, raw)
	case "task_update":
		return a.handleTaskUpdate(rc, raw)
	case "task_assign":
		return a.handleTaskAssign(rc, raw)
	case "auction_announce":
		return a.handleAuctionAnnounce(rc, raw)
	case "auction_bid":
		return a.handleAuctionBid(rc, raw)
	case "file_reserve":
		return a.handleFileReserve(rc, raw)
	case "file_release":
		return a.handleFileRelease(rc, raw)
	case "file_renew":
		return a.handleFileRenew(rc, raw)
	case "file_list":
		return a.handleFileList(rc, raw)
	case "message_send":
		return a.handleMessageSend(rc, raw)
	case "message_inbox":
		return a.handleMessageInbox(rc, raw)
	case "broadcast":
		return a.handleBroadcast(rc, raw)
	case "vote_start":
		return a.handleVoteStart(rc, raw)
	case "vote_cast":
		return a.handleVoteCast(rc, raw)
	case "stop":
		return a.handleStop(rc, raw)
	case "resume":
		return a.handleResume(rc, raw)
	case "status":
		return a.handleStatus(rc, raw)
	case "subscribe":
		return ok(map[string]any{"acknowledged": true})
	case "replay":
		return a.handleReplay(rc, raw)
	default:
		return fail(domain.NewError(domain.ErrInvalidRequest, "unknown request type %q", reqType))
	}
}

// mutationExempt lists the request types allowed while the project is
// stopped: resume, observer reads, and heartbeats.
func mutationExempt(reqType string) bool {
	switch reqType {
	case "resume", "status", "task_list", "file_list", "message_inbox", "replay",
		"heartbeat", "subscribe":
		return true
	default:
		return false
	}
}

func decodeParams(raw []byte, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return domain.NewError(domain.ErrInvalidRequest, "malformed params: %v", err)
	}
	return nil
}

func (a *Actor) handleReplay(rc reqContext, raw []byte) handlerResult {
	var params struct {
		SinceSeq int64 `json:"since_seq"`
		Max      int   `json:"max"`
	}
	if err := decodeParams(raw, &params); err != nil {
		return fail(err)
	}
	if params.Max <= 0 {
		params.Max = 500
	}
	page, err := a.store.Replay(rc.ctx, event.ReplayRequest{SinceSeq: params.SinceSeq, Max: params.Max})
	if err != nil {
		return fail(domain.NewError(domain.ErrInternal, "replay: %v", err))
	}
	return ok(page)
}
