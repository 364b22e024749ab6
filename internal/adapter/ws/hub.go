// Package ws implements the connection hub (C3): WebSocket accept, per-
// connection reader/writer/heartbeat loops, and subscription-aware event
// fan-out.
package ws

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/relaymesh/coordinator/internal/domain/event"
	"github.com/relaymesh/coordinator/internal/port/dispatch"
)

// Hub manages all active WebSocket connections across all projects. It
// implements both port/broadcast.Broadcaster (event fan-out) and
// port/responder.Responder (per-connection request replies).
type Hub struct {
	mu       sync.RWMutex
	byID     map[string]*Conn
	byProj   map[string]map[string]*Conn
	origin   string
	queue    int
	idle     time.Duration
	pongWait time.Duration
	maxConn  int
	log      *slog.Logger
}

// Options configures Hub behavior, taken from the project's Timing/Limits
// configuration.
type Options struct {
	AllowOrigin              string
	OutboundQueueSize        int
	IdleTimeout              time.Duration
	PongTimeout              time.Duration
	MaxConnectionsPerProject int
	Log                      *slog.Logger
}

// NewHub creates a Hub.
func NewHub(opts Options) *Hub {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	if opts.OutboundQueueSize <= 0 {
		opts.OutboundQueueSize = 256
	}
	return &Hub{
		byID:     make(map[string]*Conn),
		byProj:   make(map[string]map[string]*Conn),
		origin:   opts.AllowOrigin,
		queue:    opts.OutboundQueueSize,
		idle:     opts.IdleTimeout,
		pongWait: opts.PongTimeout,
		maxConn:  opts.MaxConnectionsPerProject,
		log:      log,
	}
}

// AcceptParams carries the already-authenticated connection identity.
type AcceptParams struct {
	ProjectID string
	AgentName string
}

// ErrProjectFull is returned by Accept when a project is at its connection
// cap.
var ErrProjectFull = fmt.Errorf("project at max connections")

// Accept upgrades the HTTP request to a WebSocket, registers the
// connection against d, and blocks running its reader/writer/heartbeat
// loops until the connection closes. welcomeSeq is the current log seq,
// sent immediately as the welcome frame; any replayFrames (e.g. from a
// since_seq catch-up) are queued right after it, before any live event can
// be delivered.
func (h *Hub) Accept(w http.ResponseWriter, r *http.Request, p AcceptParams, d dispatch.Dispatcher, welcomeSeq int64, replayFrames ...[]byte) error {
	if h.maxConn > 0 && h.count(p.ProjectID) >= h.maxConn {
		return ErrProjectFull
	}

	opts := &websocket.AcceptOptions{}
	if h.origin != "" {
		opts.OriginPatterns = []string{h.origin}
	}

	wsConn, err := websocket.Accept(w, r, opts)
	if err != nil {
		return fmt.Errorf("websocket accept: %w", err)
	}

	c := newConn(uuid.NewString(), p.ProjectID, p.AgentName, wsConn, d, h.queue)
	h.register(c, append([][]byte{WelcomeFrame(welcomeSeq)}, replayFrames...)...)

	c.run(r.Context(), h.idle, h.pongWait, h.unregister)
	return nil
}

// register adds c to the hub and queues initial on it while holding the
// hub lock, so no BroadcastEvent can reach c before those frames.
func (h *Hub) register(c *Conn, initial ...[]byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.byID[c.id] = c
	if h.byProj[c.projectID] == nil {
		h.byProj[c.projectID] = make(map[string]*Conn)
	}
	h.byProj[c.projectID][c.id] = c
	for _, frame := range initial {
		c.Send(frame)
	}
}

func (h *Hub) unregister(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.byID, c.id)
	if m := h.byProj[c.projectID]; m != nil {
		delete(m, c.id)
		if len(m) == 0 {
			delete(h.byProj, c.projectID)
		}
	}
}

func (h *Hub) count(projectID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byProj[projectID])
}

// ConnectionCount returns the number of live connections for a project.
func (h *Hub) ConnectionCount(projectID string) int { return h.count(projectID) }

// BroadcastEvent implements port/broadcast.Broadcaster: it delivers ev to
// every connection of projectID whose subscription includes ev.Kind. A
// send failure (or full outbound queue, handled by Conn.Send) never
// affects other connections.
func (h *Hub) BroadcastEvent(_ context.Context, projectID string, ev event.Event) {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.byProj[projectID]))
	for _, c := range h.byProj[projectID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	frame := EventFrame(ev)
	for _, c := range conns {
		if !c.Wants(ev.Kind) {
			continue
		}
		select {
		case c.outbound <- frame:
			c.MarkDelivered(ev.Seq)
		default:
			select {
			case c.outbound <- EventGapFrame(c.LastDeliveredSeq()):
			default:
			}
		}
	}
}

// Respond implements port/responder.Responder: delivers a response frame
// to exactly the connection that issued the originating request.
func (h *Hub) Respond(connID string, frame []byte) error {
	h.mu.RLock()
	c, ok := h.byID[connID]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("connection %s not found", connID)
	}
	c.Send(frame)
	return nil
}
