package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/relaymesh/coordinator/internal/domain/event"
	"github.com/relaymesh/coordinator/internal/port/dispatch"
)

// Conn wraps one accepted WebSocket connection and runs its reader, writer,
// and heartbeat loops. Exactly one goroutine ever calls ws.Write (the
// writer), and exactly one calls ws.Read (the reader), per coder/websocket's
// concurrency contract.
type Conn struct {
	id        string
	projectID string
	agentName string

	ws         *websocket.Conn
	dispatcher dispatch.Dispatcher

	outbound   chan []byte
	lastSeqMu  sync.Mutex
	lastSeq    int64 // last event seq actually delivered, for event_gap markers
	subs       subscriptionSet
	cancel     context.CancelFunc
	closedOnce sync.Once
}

// subscriptionSet tracks which event kinds a connection wants delivered.
// A nil/empty set means "all kinds" (the default on connect).
type subscriptionSet struct {
	mu   sync.RWMutex
	all  bool
	kind map[event.Kind]bool
}

func newSubscriptionSet() subscriptionSet {
	return subscriptionSet{all: true}
}

func (s *subscriptionSet) set(kinds []event.Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(kinds) == 0 {
		s.all = true
		s.kind = nil
		return
	}
	s.all = false
	s.kind = make(map[event.Kind]bool, len(kinds))
	for _, k := range kinds {
		s.kind[k] = true
	}
}

func (s *subscriptionSet) wants(k event.Kind) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.all || s.kind[k]
}

func newConn(id, projectID, agentName string, wsConn *websocket.Conn, d dispatch.Dispatcher, queueSize int) *Conn {
	return &Conn{
		id:         id,
		projectID:  projectID,
		agentName:  agentName,
		ws:         wsConn,
		dispatcher: d,
		outbound:   make(chan []byte, queueSize),
		subs:       newSubscriptionSet(),
	}
}

// ID returns the connection's identifier.
func (c *Conn) ID() string { return c.id }

// Subscribe narrows the connection's subscription set.
func (c *Conn) Subscribe(kinds []event.Kind) { c.subs.set(kinds) }

// Wants reports whether the connection's current subscription includes kind.
func (c *Conn) Wants(kind event.Kind) bool { return c.subs.wants(kind) }

// Send enqueues a pre-marshaled frame for delivery, applying backpressure:
// if the outbound queue is full, the frame is dropped and an event_gap
// marker is queued in its place (best effort; also dropped if the queue is
// still full).
func (c *Conn) Send(frame []byte) {
	select {
	case c.outbound <- frame:
	default:
		select {
		case c.outbound <- EventGapFrame(c.LastDeliveredSeq()):
		default:
		}
	}
}

// MarkDelivered records the seq of an event frame once it has been queued
// on the outbound channel, so a subsequent drop can report
// last_delivered_seq accurately.
func (c *Conn) MarkDelivered(seq int64) {
	c.lastSeqMu.Lock()
	c.lastSeq = seq
	c.lastSeqMu.Unlock()
}

// LastDeliveredSeq returns the most recently delivered event seq.
func (c *Conn) LastDeliveredSeq() int64 {
	c.lastSeqMu.Lock()
	defer c.lastSeqMu.Unlock()
	return c.lastSeq
}

// run starts the reader, writer, and heartbeat loops and blocks until the
// connection closes. unregister is called exactly once on exit.
func (c *Conn) run(ctx context.Context, idleTimeout, pongTimeout time.Duration, unregister func(*Conn)) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	defer func() {
		unregister(c)
		c.dispatcher.Disconnected(c.id)
		cancel()
		c.closedOnce.Do(func() {
			_ = c.ws.Close(websocket.StatusNormalClosure, "")
		})
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); c.writeLoop(ctx) }()
	go func() { defer wg.Done(); c.heartbeatLoop(ctx, pongTimeout) }()

	c.readLoop(ctx, idleTimeout)
	cancel()
	wg.Wait()
}

func (c *Conn) readLoop(ctx context.Context, idleTimeout time.Duration) {
	for {
		readCtx, cancel := context.WithTimeout(ctx, idleTimeout)
		_, data, err := c.ws.Read(readCtx)
		cancel()
		if err != nil {
			return
		}

		raw := make([]byte, len(data))
		copy(raw, data)

		var head struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &head); err != nil || head.Type == "" {
			continue
		}
		if head.Type == "subscribe" {
			c.handleSubscribe(raw)
		}

		c.dispatcher.Dispatch(ctx, dispatch.Frame{ConnID: c.id, AgentName: c.agentName, Raw: raw})
	}
}

func (c *Conn) handleSubscribe(raw []byte) {
	var req struct {
		Kinds []string `json:"kinds"`
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return
	}
	kinds := make([]event.Kind, 0, len(req.Kinds))
	for _, k := range req.Kinds {
		kinds = append(kinds, event.Kind(k))
	}
	c.Subscribe(kinds)
}

func (c *Conn) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-c.outbound:
			if !ok {
				return
			}
			if err := c.ws.Write(ctx, websocket.MessageText, frame); err != nil {
				return
			}
		}
	}
}

func (c *Conn) heartbeatLoop(ctx context.Context, pongTimeout time.Duration) {
	ticker := time.NewTicker(pongTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, pongTimeout)
			err := c.ws.Ping(pingCtx)
			cancel()
			if err != nil {
				slog.Debug("websocket heartbeat timed out", "conn", c.id)
				return
			}
		}
	}
}
