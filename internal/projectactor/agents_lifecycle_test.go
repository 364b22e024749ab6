package projectactor_test

import (
	"context"
	"testing"
	"time"

	"github.com/relaymesh/coordinator/internal/projectactor"
)

func TestActor_DeregisterDestroysAgent(t *testing.T) {
	a, transport, _ := newTestActor(t)

	send(a, "conn-1", "", map[string]any{"type": "register", "id": "r1", "agent_id": "alice"})
	transport.waitForResponse(t, "conn-1")
	clearResponse(transport, "conn-1")

	send(a, "conn-1", "", map[string]any{"type": "deregister", "id": "d1", "agent_id": "alice"})
	resp := decodeResponse(t, transport.waitForResponse(t, "conn-1"))
	if resp.Type != "ok" {
		t.Fatalf("deregister = %+v, want ok", resp)
	}

	agents, err := a.ListAgents(context.Background())
	if err != nil {
		t.Fatalf("ListAgents: %v", err)
	}
	if len(agents) != 0 {
		t.Fatalf("agents after deregister = %+v, want none", agents)
	}

	clearResponse(transport, "conn-1")
	send(a, "conn-1", "", map[string]any{"type": "deregister", "id": "d2", "agent_id": "alice"})
	again := decodeResponse(t, transport.waitForResponse(t, "conn-1"))
	if again.Type != "err" || again.Error.Code != "not_found" {
		t.Fatalf("deregister of unknown agent = %+v, want not_found error", again)
	}
}

func TestActor_AgentTTLReapsOfflineAgent(t *testing.T) {
	cfg := projectactor.Config{
		HeartbeatTimeout: 20 * time.Millisecond,
		AgentTTL:         40 * time.Millisecond,
		OrchTimeout:      time.Minute,
		AuctionDefault:   10 * time.Second,
		MinLeaseTTL:      time.Second,
		MaxLeaseTTL:      time.Hour,
		InboxCap:         32,
		ScanInterval:     10 * time.Millisecond,
		ReapInterval:     10 * time.Millisecond,
		SnapshotEveryN:   1000,
		SnapshotMaxAge:   time.Hour,
		DefaultQuorum:    1,
		DefaultThreshold: 0.5,
	}
	a, transport := newTestActorWithConfig(t, cfg)

	send(a, "conn-1", "", map[string]any{"type": "register", "id": "r1", "agent_id": "alice"})
	transport.waitForResponse(t, "conn-1")

	deadline := time.After(2 * time.Second)
	for {
		agents, err := a.ListAgents(context.Background())
		if err != nil {
			t.Fatalf("ListAgents: %v", err)
		}
		if len(agents) == 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("agent was not reaped after AgentTTL, agents=%+v", agents)
		case <-time.After(10 * time.Millisecond):
		}
	}
}
