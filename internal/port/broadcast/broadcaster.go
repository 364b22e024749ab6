// Package broadcast defines the port for fanning out project events to
// connected clients and to optional out-of-process subscribers.
package broadcast

import (
	"context"

	"github.com/relaymesh/coordinator/internal/domain/event"
)

// Broadcaster delivers an appended event to every connection subscribed to
// its kind, and optionally mirrors it to an external subscriber (NATS).
// Implementations must isolate per-connection send failures: one slow or
// dead subscriber never blocks or drops delivery to others.
type Broadcaster interface {
	BroadcastEvent(ctx context.Context, projectID string, ev event.Event)
}
