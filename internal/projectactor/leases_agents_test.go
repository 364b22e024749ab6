package projectactor_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/relaymesh/coordinator/internal/projectactor"
)

func clearResponse(transport *fakeTransport, connID string) {
	transport.mu.Lock()
	delete(transport.responses, connID)
	transport.mu.Unlock()
}

func TestActor_FileReserveRenewRelease(t *testing.T) {
	a, transport, _ := newTestActor(t)

	send(a, "conn-1", "", map[string]any{"type": "register", "id": "r1", "agent_id": "alice"})
	transport.waitForResponse(t, "conn-1")
	clearResponse(transport, "conn-1")

	send(a, "conn-1", "", map[string]any{"type": "file_reserve", "id": "f1", "path": "src/a.go", "agent": "alice", "ttl_ms": 60000, "exclusive": true})
	reserve := decodeResponse(t, transport.waitForResponse(t, "conn-1"))
	if reserve.Type != "ok" {
		t.Fatalf("file_reserve = %+v, want ok", reserve)
	}
	clearResponse(transport, "conn-1")

	send(a, "conn-1", "", map[string]any{"type": "file_renew", "id": "f2", "path": "src/a.go", "agent": "alice", "ttl_ms": 120000})
	renew := decodeResponse(t, transport.waitForResponse(t, "conn-1"))
	if renew.Type != "ok" {
		t.Fatalf("file_renew = %+v, want ok", renew)
	}
	clearResponse(transport, "conn-1")

	// bob cannot renew or release alice's lease.
	send(a, "conn-1", "", map[string]any{"type": "file_renew", "id": "f3", "path": "src/a.go", "agent": "bob", "ttl_ms": 60000})
	bobRenew := decodeResponse(t, transport.waitForResponse(t, "conn-1"))
	if bobRenew.Type != "err" || bobRenew.Error.Code != "forbidden" {
		t.Fatalf("bob renewing alice's lease = %+v, want forbidden error", bobRenew)
	}
	clearResponse(transport, "conn-1")

	send(a, "conn-1", "", map[string]any{"type": "file_release", "id": "f4", "path": "src/a.go", "agent": "alice"})
	release := decodeResponse(t, transport.waitForResponse(t, "conn-1"))
	if release.Type != "ok" {
		t.Fatalf("file_release = %+v, want ok", release)
	}
	clearResponse(transport, "conn-1")

	// Releasing again fails: the lease is gone.
	send(a, "conn-1", "", map[string]any{"type": "file_release", "id": "f5", "path": "src/a.go", "agent": "alice"})
	doubleRelease := decodeResponse(t, transport.waitForResponse(t, "conn-1"))
	if doubleRelease.Type != "err" || doubleRelease.Error.Code != "not_found" {
		t.Fatalf("double release = %+v, want not_found error", doubleRelease)
	}
}

func TestActor_FileListReportsHolderAndETA(t *testing.T) {
	a, transport, _ := newTestActor(t)

	send(a, "conn-1", "", map[string]any{"type": "register", "id": "r1", "agent_id": "alice"})
	transport.waitForResponse(t, "conn-1")
	clearResponse(transport, "conn-1")

	send(a, "conn-1", "", map[string]any{"type": "file_reserve", "id": "f1", "path": "src/a.go", "agent": "alice", "ttl_ms": 60000, "exclusive": true})
	transport.waitForResponse(t, "conn-1")
	clearResponse(transport, "conn-1")

	send(a, "conn-1", "", map[string]any{"type": "file_list", "id": "l1"})
	resp := decodeResponse(t, transport.waitForResponse(t, "conn-1"))
	if resp.Type != "ok" {
		t.Fatalf("file_list = %+v, want ok", resp)
	}
	var leases []struct {
		Path   string `json:"path"`
		Holder string `json:"holder"`
		ETAMs  int64  `json:"eta_ms"`
	}
	if err := json.Unmarshal(resp.Result, &leases); err != nil {
		t.Fatalf("unmarshal file_list result: %v", err)
	}
	if len(leases) != 1 || leases[0].Path != "src/a.go" || leases[0].Holder != "alice" {
		t.Fatalf("file_list result = %+v, want one lease held by alice on src/a.go", leases)
	}
	if leases[0].ETAMs <= 0 {
		t.Fatalf("ETAMs = %d, want > 0", leases[0].ETAMs)
	}
}

func TestActor_LeaseExpiresViaReaper(t *testing.T) {
	a, transport, _ := newTestActor(t)

	send(a, "conn-1", "", map[string]any{"type": "register", "id": "r1", "agent_id": "alice"})
	transport.waitForResponse(t, "conn-1")
	clearResponse(transport, "conn-1")

	// MinLeaseTTL is 1s in newTestActor's config, so even a 1ms request
	// clamps up to one second — short enough for the 50ms reaper tick to
	// observe expiry well within the test deadline.
	send(a, "conn-1", "", map[string]any{"type": "file_reserve", "id": "f1", "path": "src/a.go", "agent": "alice", "ttl_ms": 1, "exclusive": true})
	transport.waitForResponse(t, "conn-1")
	clearResponse(transport, "conn-1")

	deadline := time.After(3 * time.Second)
	for {
		send(a, "conn-1", "", map[string]any{"type": "file_list", "id": "l1"})
		resp := decodeResponse(t, transport.waitForResponse(t, "conn-1"))
		clearResponse(transport, "conn-1")
		var leases []struct {
			Path string `json:"path"`
		}
		_ = json.Unmarshal(resp.Result, &leases)
		if len(leases) == 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("lease did not expire within deadline")
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func TestActor_HeartbeatRevivesOfflineAgent(t *testing.T) {
	cfg := projectactor.Config{
		HeartbeatTimeout: 80 * time.Millisecond,
		AgentTTL:         time.Hour,
		OrchTimeout:      time.Minute,
		AuctionDefault:   10 * time.Second,
		MinLeaseTTL:      time.Second,
		MaxLeaseTTL:      time.Hour,
		InboxCap:         32,
		ScanInterval:     20 * time.Millisecond,
		ReapInterval:     20 * time.Millisecond,
		SnapshotEveryN:   1000,
		SnapshotMaxAge:   time.Hour,
		DefaultQuorum:    1,
		DefaultThreshold: 0.5,
	}
	a, transport := newTestActorWithConfig(t, cfg)

	send(a, "conn-1", "", map[string]any{"type": "register", "id": "r1", "agent_id": "alice"})
	transport.waitForResponse(t, "conn-1")
	clearResponse(transport, "conn-1")

	deadline := time.After(2 * time.Second)
	for {
		agents, err := a.ListAgents(context.Background())
		if err != nil {
			t.Fatalf("ListAgents: %v", err)
		}
		if len(agents) == 1 && string(agents[0].Status) == "offline" {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("agent did not go offline within deadline, agents=%+v", agents)
		case <-time.After(10 * time.Millisecond):
		}
	}

	send(a, "conn-1", "", map[string]any{"type": "heartbeat", "id": "h1", "agent_id": "alice"})
	hb := decodeResponse(t, transport.waitForResponse(t, "conn-1"))
	if hb.Type != "ok" {
		t.Fatalf("heartbeat = %+v, want ok", hb)
	}

	agents, err := a.ListAgents(context.Background())
	if err != nil {
		t.Fatalf("ListAgents: %v", err)
	}
	if len(agents) != 1 || string(agents[0].Status) == "offline" {
		t.Fatalf("agent after heartbeat = %+v, want not offline", agents)
	}
}
