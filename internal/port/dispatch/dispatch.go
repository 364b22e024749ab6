// Package dispatch defines the contract a connection's reader loop uses to
// hand an inbound frame to the Project actor that owns the connection's
// project, without the transport package depending on the actor package.
package dispatch

import "context"

// Frame is one inbound WebSocket request, already identified with the
// connection and agent it arrived from.
type Frame struct {
	ConnID    string
	AgentName string
	Raw       []byte
}

// Dispatcher accepts inbound frames for one project. Dispatch never blocks
// on anything other than enqueueing into the actor's single input queue.
type Dispatcher interface {
	Dispatch(ctx context.Context, f Frame)

	// Disconnected notifies the actor that a connection has gone away so it
	// can drop its connection-to-agent mapping. The agent's record and
	// status are left unchanged; staleness is decided by heartbeats.
	Disconnected(connID string)
}
