package projectactor_test

import (
	"context"
	"testing"
	"time"

	"github.com/relaymesh/coordinator/internal/adapter/eventlog/file"
	"github.com/relaymesh/coordinator/internal/projectactor"
)

func TestActor_RestoreFromSnapshotAfterRestart(t *testing.T) {
	dir := t.TempDir()
	cfg := projectactor.Config{
		HeartbeatTimeout: time.Minute,
		AgentTTL:         time.Hour,
		OrchTimeout:      time.Minute,
		AuctionDefault:   10 * time.Second,
		MinLeaseTTL:      time.Second,
		MaxLeaseTTL:      time.Hour,
		InboxCap:         32,
		ScanInterval:     time.Hour,
		ReapInterval:     time.Hour,
		SnapshotEveryN:   1000,
		SnapshotMaxAge:   time.Hour,
		DefaultQuorum:    1,
		DefaultThreshold: 0.5,
	}

	store, err := file.Open(dir, 3, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	transport := newFakeTransport()
	a := projectactor.New("proj-test", cfg, store, transport, transport, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		a.Run(ctx)
		close(runDone)
	}()

	send(a, "conn-1", "", map[string]any{"type": "register", "id": "r1", "agent_id": "alice"})
	transport.waitForResponse(t, "conn-1")

	// Cancelling Run triggers a synchronous snapshot before it returns
	// (actor.go: select on ctx.Done snapshots then returns), mirroring how
	// the registry shuts a project actor down.
	cancel()
	<-runDone
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	store2, err := file.Open(dir, 3, nil)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	t.Cleanup(func() { _ = store2.Close() })

	transport2 := newFakeTransport()
	a2 := projectactor.New("proj-test", cfg, store2, transport2, transport2, nil, nil, nil)
	ctx2, cancel2 := context.WithCancel(context.Background())
	go a2.Run(ctx2)
	t.Cleanup(cancel2)

	agents, err := a2.ListAgents(context.Background())
	if err != nil {
		t.Fatalf("ListAgents after restart: %v", err)
	}
	if len(agents) != 1 || agents[0].ID != "alice" {
		t.Fatalf("agents after restore = %+v, want one agent alice", agents)
	}
	if a2.LastSeq() != a.LastSeq() {
		t.Fatalf("LastSeq after restore = %d, want %d", a2.LastSeq(), a.LastSeq())
	}
}
