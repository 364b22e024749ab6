package projectactor_test

import (
	"encoding/json"
	"testing"
)

func TestActor_ForceReleaseRequiresLiveOrchestratorAndPassedVote(t *testing.T) {
	a, transport, _ := newTestActor(t)

	send(a, "conn-1", "", map[string]any{"type": "register", "id": "r1", "agent_id": "alice"})
	transport.waitForResponse(t, "conn-1")
	clearResponse(transport, "conn-1")

	send(a, "conn-2", "", map[string]any{"type": "register", "id": "r2", "agent_id": "bob"})
	transport.waitForResponse(t, "conn-2")
	clearResponse(transport, "conn-2")

	send(a, "conn-1", "", map[string]any{"type": "file_reserve", "id": "f1", "path": "src/a.go", "agent": "alice", "ttl_ms": 60000, "exclusive": true})
	transport.waitForResponse(t, "conn-1")
	clearResponse(transport, "conn-1")

	// bob is not the holder and is not the orchestrator: stale_epoch.
	send(a, "conn-2", "", map[string]any{"type": "file_release", "id": "fr1", "path": "src/a.go", "agent": "bob", "caller": "bob", "epoch": 1})
	notOrch := decodeResponse(t, transport.waitForResponse(t, "conn-2"))
	if notOrch.Type != "err" || notOrch.Error.Code != "stale_epoch" {
		t.Fatalf("non-orchestrator force-release = %+v, want stale_epoch error", notOrch)
	}
	clearResponse(transport, "conn-2")

	send(a, "conn-2", "", map[string]any{"type": "elect", "id": "e1", "agent_id": "bob"})
	elect := decodeResponse(t, transport.waitForResponse(t, "conn-2"))
	if elect.Type != "ok" {
		t.Fatalf("elect = %+v, want ok", elect)
	}
	clearResponse(transport, "conn-2")

	// Bob is now the live orchestrator at epoch 1, but there's no vote yet.
	send(a, "conn-2", "", map[string]any{"type": "file_release", "id": "fr2", "path": "src/a.go", "agent": "bob", "caller": "bob", "epoch": 1})
	noVote := decodeResponse(t, transport.waitForResponse(t, "conn-2"))
	if noVote.Type != "err" || noVote.Error.Code != "forbidden" {
		t.Fatalf("force-release without a vote = %+v, want forbidden error", noVote)
	}
	clearResponse(transport, "conn-2")

	send(a, "conn-2", "", map[string]any{"type": "vote_start", "id": "v1", "subject": "src/a.go", "kind": "force_release", "opened_by": "bob", "quorum": 1, "threshold": 0.5})
	voteResp := decodeResponse(t, transport.waitForResponse(t, "conn-2"))
	if voteResp.Type != "ok" {
		t.Fatalf("vote_start = %+v, want ok", voteResp)
	}
	var v struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(voteResp.Result, &v); err != nil {
		t.Fatalf("unmarshal vote: %v", err)
	}
	clearResponse(transport, "conn-2")

	send(a, "conn-2", "", map[string]any{"type": "vote_cast", "id": "vc1", "vote_id": v.ID, "agent": "bob", "choice": "yes"})
	cast := decodeResponse(t, transport.waitForResponse(t, "conn-2"))
	if cast.Type != "ok" {
		t.Fatalf("vote_cast = %+v, want ok", cast)
	}
	clearResponse(transport, "conn-2")

	// Now the vote has passed: force-release should succeed.
	send(a, "conn-2", "", map[string]any{"type": "file_release", "id": "fr3", "path": "src/a.go", "agent": "bob", "caller": "bob", "epoch": 1, "vote_id": v.ID})
	forced := decodeResponse(t, transport.waitForResponse(t, "conn-2"))
	if forced.Type != "ok" {
		t.Fatalf("force-release with passed vote = %+v, want ok", forced)
	}
}
