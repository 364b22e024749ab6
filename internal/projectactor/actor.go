package projectactor

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/relaymesh/coordinator/internal/adapter/nats"
	"github.com/relaymesh/coordinator/internal/adapter/otel"
	"github.com/relaymesh/coordinator/internal/domain"
	"github.com/relaymesh/coordinator/internal/domain/agent"
	"github.com/relaymesh/coordinator/internal/domain/auction"
	"github.com/relaymesh/coordinator/internal/domain/event"
	"github.com/relaymesh/coordinator/internal/domain/lease"
	"github.com/relaymesh/coordinator/internal/domain/message"
	"github.com/relaymesh/coordinator/internal/domain/orchestrator"
	"github.com/relaymesh/coordinator/internal/domain/stopflag"
	"github.com/relaymesh/coordinator/internal/domain/task"
	"github.com/relaymesh/coordinator/internal/domain/vote"
	"github.com/relaymesh/coordinator/internal/port/broadcast"
	"github.com/relaymesh/coordinator/internal/port/dispatch"
	"github.com/relaymesh/coordinator/internal/port/eventlog"
	"github.com/relaymesh/coordinator/internal/port/responder"
)

// Config is the subset of the coordinator's configuration an Actor needs,
// copied out of internal/config.Config by the registry at construction time
// so this package never imports config directly.
type Config struct {
	HeartbeatTimeout time.Duration
	AgentTTL         time.Duration
	OrchTimeout      time.Duration
	AuctionDefault   time.Duration
	MinLeaseTTL      time.Duration
	MaxLeaseTTL      time.Duration
	InboxCap         int
	ScanInterval     time.Duration
	ReapInterval     time.Duration
	SnapshotEveryN   int
	SnapshotMaxAge   time.Duration
	DefaultQuorum    int
	DefaultThreshold float64
}

// Actor owns all mutable state for one project and processes requests from
// a single input queue. Every exported method is safe to call from any
// goroutine; all of them only ever enqueue work for the run loop.
type Actor struct {
	id  string
	cfg Config

	store eventlog.Store
	hub   broadcast.Broadcaster
	resp  responder.Responder
	met   *otel.Metrics
	nats  *nats.Publisher // optional: nil disables out-of-process fan-out
	log   *slog.Logger

	inbox chan workItem

	mu       sync.RWMutex // guards only the fields read from outside the run loop
	degraded bool

	// State below is owned exclusively by the run loop goroutine; no other
	// goroutine may read or write it.
	agents       map[string]*agent.Agent // by id
	agentsByName map[string]string       // name -> id
	connToAgent  map[string]string       // connID -> agent id
	tasks        map[string]*task.Task
	leases       map[string]*lease.Lease // normalized path -> lease
	orch         *orchestrator.Record
	auctions     map[string]*auction.Auction // task id -> auction
	votes        map[string]*vote.Vote
	inboxes      map[string]*message.Inbox // agent name -> inbox
	stop         stopflag.StopFlag

	taskSeq             int
	auctionSeq          int
	voteSeq             int
	msgSeq              int
	eventsSinceSnapshot int
	lastSnapshot        time.Time
	lastActivity        time.Time

	stopOnce sync.Once
	done     chan struct{}
}

// New creates an Actor. Run must be called to start processing. natsPub may
// be nil, in which case out-of-process event fan-out is disabled.
func New(id string, cfg Config, store eventlog.Store, hub broadcast.Broadcaster, resp responder.Responder, met *otel.Metrics, natsPub *nats.Publisher, log *slog.Logger) *Actor {
	if log == nil {
		log = slog.Default()
	}
	a := &Actor{
		id:           id,
		cfg:          cfg,
		store:        store,
		hub:          hub,
		resp:         resp,
		met:          met,
		nats:         natsPub,
		log:          log.With("project", id),
		inbox:        make(chan workItem, 1024),
		agents:       make(map[string]*agent.Agent),
		agentsByName: make(map[string]string),
		connToAgent:  make(map[string]string),
		tasks:        make(map[string]*task.Task),
		leases:       make(map[string]*lease.Lease),
		auctions:     make(map[string]*auction.Auction),
		votes:        make(map[string]*vote.Vote),
		inboxes:      make(map[string]*message.Inbox),
		lastActivity: time.Now(),
		done:         make(chan struct{}),
	}
	a.restore()
	return a
}

// ID returns the project id this actor owns.
func (a *Actor) ID() string { return a.id }

// LastSeq returns the event log's current watermark, used as the welcome
// frame's seq when a new connection is accepted.
func (a *Actor) LastSeq() int64 { return a.store.LastSeq() }

// Dispatch implements port/dispatch.Dispatcher.
func (a *Actor) Dispatch(ctx context.Context, f dispatch.Frame) {
	select {
	case a.inbox <- workItem{kind: workFrame, frame: f}:
	default:
		a.log.Warn("actor inbox full, dropping frame", "conn", f.ConnID)
		_ = a.resp.Respond(f.ConnID, errFrameFor(f, domain.NewError(domain.ErrInternal, "actor overloaded")))
	}
}

// Disconnected implements port/dispatch.Dispatcher.
func (a *Actor) Disconnected(connID string) {
	select {
	case a.inbox <- workItem{kind: workDisconnect, connID: connID}:
	default:
		a.log.Warn("actor inbox full, dropping disconnect", "conn", connID)
	}
}

// Run processes the actor's input queue until ctx is canceled. It also
// starts the reaper, scanner, and idle-snapshot background timers, which
// feed tick work items back into the same queue so all state mutation stays
// single-threaded.
func (a *Actor) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.tickLoop(ctx)
	}()

	defer func() {
		wg.Wait()
		close(a.done)
	}()

	for {
		select {
		case <-ctx.Done():
			a.snapshotNow()
			return
		case item := <-a.inbox:
			a.handle(ctx, item)
		}
	}
}

func (a *Actor) tickLoop(ctx context.Context) {
	reap := time.NewTicker(a.cfg.ReapInterval)
	scan := time.NewTicker(a.cfg.ScanInterval)
	defer reap.Stop()
	defer scan.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-reap.C:
			select {
			case a.inbox <- workItem{kind: workTick}:
			default:
			}
		case <-scan.C:
			select {
			case a.inbox <- workItem{kind: workTick}:
			default:
			}
		}
	}
}

func (a *Actor) handle(ctx context.Context, item workItem) {
	a.lastActivity = time.Now()

	switch item.kind {
	case workTick:
		a.reapLeases(time.Now())
		a.scanAgents(time.Now())
		a.reapAgents(time.Now())
		a.closeDueAuctions(time.Now())
		a.closeDueVotes(time.Now())
		a.maybeSnapshot(false)
	case workDisconnect:
		a.onDisconnect(item.connID)
	case workFrame:
		a.handleFrame(ctx, item.frame)
	case workQuery:
		item.reply <- item.query(a)
	}
}

func (a *Actor) handleFrame(ctx context.Context, f dispatch.Frame) {
	var head struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	}
	if err := json.Unmarshal(f.Raw, &head); err != nil {
		_ = a.resp.Respond(f.ConnID, errFrame("", domain.NewError(domain.ErrInvalidRequest, "malformed frame")))
		return
	}

	rc := reqContext{ctx: ctx, connID: f.ConnID, agentName: f.AgentName, now: time.Now()}
	res := a.routeRequest(rc, head.Type, f.Raw)

	if res.err != nil {
		_ = a.resp.Respond(f.ConnID, errFrame(head.ID, res.err))
		return
	}

	for _, pe := range res.events {
		a.emit(rc.ctx, pe.kind, pe.payload)
	}

	_ = a.resp.Respond(f.ConnID, okFrame(head.ID, res.result))
}

// noopCtx is used by background-tick handlers that mutate state outside any
// single request's context.
func noopCtx() context.Context { return context.Background() }

// emit appends an event to the log and fans it out to subscribers. It is
// always called from the run loop, after the mutation it describes has
// already been applied to in-memory state, so the log and the state it
// projects never disagree.
func (a *Actor) emit(ctx context.Context, kind event.Kind, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		a.log.Error("marshal event payload", "kind", kind, "error", err)
		return
	}

	seq, err := a.store.Append(ctx, kind, body)
	if err != nil {
		a.log.Error("append event", "kind", kind, "error", err)
		a.mu.Lock()
		a.degraded = true
		a.mu.Unlock()
		return
	}
	if a.met != nil {
		a.met.EventsAppended.Add(ctx, 1)
	}

	a.eventsSinceSnapshot++
	if a.eventsSinceSnapshot >= a.cfg.SnapshotEveryN {
		a.snapshotNow()
	}

	ev := event.Event{Seq: seq, TS: time.Now().UTC(), Kind: kind, Payload: body}
	a.hub.BroadcastEvent(ctx, a.id, ev)

	if a.nats != nil {
		if err := a.nats.Publish(ctx, a.id, ev); err != nil {
			a.log.Debug("nats fan-out publish failed", "kind", kind, "error", err)
		}
	}
}

// Degraded reports whether the actor has stopped trusting its own disk
// writes (spec's "degraded" project state).
func (a *Actor) Degraded() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.degraded || a.store.Degraded()
}

func okFrame(id string, result any) []byte {
	return buildResponse(id, true, result, nil)
}

func errFrame(id string, err error) []byte {
	return buildResponse(id, false, nil, err)
}

func errFrameFor(f dispatch.Frame, err error) []byte {
	var head struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(f.Raw, &head)
	return errFrame(head.ID, err)
}

func buildResponse(id string, success bool, result any, err error) []byte {
	if success {
		body := map[string]any{"type": "ok", "id": id}
		if result != nil {
			body["result"] = result
		}
		data, _ := json.Marshal(body)
		return data
	}
	code := domain.CodeOf(err)
	body := map[string]any{
		"type": "err",
		"id":   id,
		"error": map[string]string{
			"code":    string(code),
			"message": err.Error(),
		},
	}
	data, _ := json.Marshal(body)
	return data
}
