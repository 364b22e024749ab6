package projectactor

import (
	"context"
	"sort"

	"github.com/relaymesh/coordinator/internal/domain/agent"
	"github.com/relaymesh/coordinator/internal/domain/event"
	"github.com/relaymesh/coordinator/internal/domain/task"
)

// Query runs fn inside the run loop and returns its result. It is the only
// way code outside the actor reads state directly (rather than through a
// request/response frame), used by the HTTP read surface. fn must not
// retain any pointer it receives beyond its own return value; return
// copies or JSON-ready projections instead.
func (a *Actor) Query(ctx context.Context, fn func(*Actor) any) (any, error) {
	reply := make(chan any, 1)
	select {
	case a.inbox <- workItem{kind: workQuery, query: fn, reply: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Status returns the same projection as the status request frame.
func (a *Actor) Status(ctx context.Context) (statusResult, error) {
	v, err := a.Query(ctx, func(a *Actor) any {
		res := a.handleStatus(reqContext{}, nil)
		return res.result
	})
	if err != nil {
		return statusResult{}, err
	}
	return v.(statusResult), nil
}

// ListAgents returns a snapshot of every registered agent, sorted by name
// for stable HTTP output.
func (a *Actor) ListAgents(ctx context.Context) ([]agent.Agent, error) {
	v, err := a.Query(ctx, func(a *Actor) any {
		out := make([]agent.Agent, 0, len(a.agents))
		for _, ag := range a.agents {
			out = append(out, ag.Snapshot())
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		return out
	})
	if err != nil {
		return nil, err
	}
	return v.([]agent.Agent), nil
}

// ListTasks returns a snapshot of every task on the board, sorted by id.
func (a *Actor) ListTasks(ctx context.Context) ([]*task.Task, error) {
	v, err := a.Query(ctx, func(a *Actor) any {
		out := make([]*task.Task, 0, len(a.tasks))
		for _, t := range a.tasks {
			cp := *t
			out = append(out, &cp)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return out
	})
	if err != nil {
		return nil, err
	}
	return v.([]*task.Task), nil
}

// Replay serves the /api/logs read surface: events with seq > sinceSeq, up
// to max, oldest first.
func (a *Actor) Replay(ctx context.Context, sinceSeq int64, max int) (event.Page, error) {
	if max <= 0 {
		max = 500
	}
	v, err := a.Query(ctx, func(a *Actor) any {
		page, err := a.store.Replay(ctx, event.ReplayRequest{SinceSeq: sinceSeq, Max: max})
		if err != nil {
			return err
		}
		return page
	})
	if err != nil {
		return event.Page{}, err
	}
	if pageErr, isErr := v.(error); isErr {
		return event.Page{}, pageErr
	}
	return v.(event.Page), nil
}
