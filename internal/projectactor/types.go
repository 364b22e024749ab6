// Package projectactor implements the Project aggregate: the single-
// threaded cooperative actor that owns one project's agents, tasks, file
// leases, orchestrator record, auctions, votes, stop flag, and event log
// (C4-C9 dispatched through C1/C3).
package projectactor

import (
	"context"
	"time"

	"github.com/relaymesh/coordinator/internal/domain/event"
	"github.com/relaymesh/coordinator/internal/port/dispatch"
)

type workKind int

const (
	workFrame workKind = iota
	workDisconnect
	workTick
	workQuery
)

type workItem struct {
	kind   workKind
	frame  dispatch.Frame
	connID string
	query  func(*Actor) any
	reply  chan any
}

// handlerResult is what a request handler produces before the dispatch loop
// turns it into a response frame and, if non-empty, appends/broadcasts
// events.
type handlerResult struct {
	result any
	events []pendingEvent
	err    error
}

type pendingEvent struct {
	kind    event.Kind
	payload any
}

func ok(result any, events ...pendingEvent) handlerResult {
	return handlerResult{result: result, events: events}
}

func fail(err error) handlerResult {
	return handlerResult{err: err}
}

// reqContext carries everything a handler needs about the request beyond
// its decoded parameters.
type reqContext struct {
	ctx       context.Context
	connID    string
	agentName string
	now       time.Time
}
