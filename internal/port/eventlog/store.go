// Package eventlog defines the append/replay contract for a project's
// durable event log and snapshot store (C1).
package eventlog

import (
	"context"

	"github.com/relaymesh/coordinator/internal/domain/event"
)

// Store is the per-project durable log. Implementations must serialize
// Append calls with the Project actor that owns them; Store itself performs
// no internal locking beyond what is needed for Replay to be read-consistent
// with concurrent Append calls.
type Store interface {
	// Append assigns the next seq, appends kind/payload to the log, and
	// returns the assigned seq. The write to disk normally happens
	// asynchronously through a bounded in-memory queue; when that queue is
	// full, Append may perform the write synchronously instead.
	Append(ctx context.Context, kind event.Kind, payload []byte) (int64, error)

	// Replay returns events with seq > sinceSeq, oldest first, up to max.
	Replay(ctx context.Context, req event.ReplayRequest) (event.Page, error)

	// LastSeq returns the highest seq appended so far (0 if the log is empty).
	LastSeq() int64

	// Snapshot writes a full projection with the current seq watermark.
	// projection must already be JSON-marshalable.
	Snapshot(ctx context.Context, projection any) error

	// LoadSnapshot loads the latest snapshot (if any) into dst and returns
	// the seq watermark it was taken at, or 0 if no snapshot exists.
	LoadSnapshot(dst any) (int64, error)

	// Degraded reports whether the store has given up on disk writes after
	// exhausting its retry budget.
	Degraded() bool

	// Close flushes pending writes and releases the advisory lock file.
	Close() error
}
