package agent

import (
	"testing"
	"time"
)

func TestAgent_IsStale(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	timeout := time.Minute

	a := &Agent{LastHeartbeatTS: now.Add(-timeout)}
	if a.IsStale(now, timeout) {
		t.Fatal("heartbeat exactly at the timeout boundary should not be stale")
	}

	a.LastHeartbeatTS = now.Add(-timeout - time.Second)
	if !a.IsStale(now, timeout) {
		t.Fatal("heartbeat past the timeout boundary should be stale")
	}
}

func TestAgent_Snapshot(t *testing.T) {
	a := Agent{ID: "agent-1", Name: "swift-otter", Role: RoleExecutor}
	snap := a.Snapshot()
	snap.Name = "changed"
	if a.Name == "changed" {
		t.Fatal("Snapshot should return an independent copy")
	}
}
