package projectactor_test

import (
	"context"
	"testing"
)

// Disconnected only drops connection-liveness bookkeeping; it must not
// disturb the registered agent or block the actor's inbox for later frames.
func TestActor_DisconnectedDoesNotAffectAgentOrSubsequentFrames(t *testing.T) {
	a, transport, _ := newTestActor(t)

	send(a, "conn-1", "", map[string]any{"type": "register", "id": "r1", "agent_id": "alice"})
	transport.waitForResponse(t, "conn-1")
	clearResponse(transport, "conn-1")

	a.Disconnected("conn-1")

	send(a, "conn-2", "", map[string]any{"type": "heartbeat", "id": "h1", "agent_id": "alice"})
	resp := decodeResponse(t, transport.waitForResponse(t, "conn-2"))
	if resp.Type != "ok" {
		t.Fatalf("heartbeat after disconnect of a different conn = %+v, want ok", resp)
	}

	agents, err := a.ListAgents(context.Background())
	if err != nil {
		t.Fatalf("ListAgents: %v", err)
	}
	if len(agents) != 1 || agents[0].ID != "alice" {
		t.Fatalf("agents after disconnect = %+v, want alice still registered", agents)
	}
}
