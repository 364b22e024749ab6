package orchestrator

import (
	"testing"
	"time"
)

func TestRecord_Live(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	timeout := 30 * time.Second

	var nilRecord *Record
	if nilRecord.Live(now, timeout) {
		t.Fatal("nil record should never be live")
	}

	r := &Record{LastHeartbeatTS: now.Add(-timeout)}
	if !r.Live(now, timeout) {
		t.Fatal("record exactly at the timeout boundary should still be live")
	}

	r.LastHeartbeatTS = now.Add(-timeout - time.Millisecond)
	if r.Live(now, timeout) {
		t.Fatal("record past the timeout boundary should not be live")
	}
}
