package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	cfhttp "github.com/relaymesh/coordinator/internal/adapter/http"
	"github.com/relaymesh/coordinator/internal/adapter/ws"
	"github.com/relaymesh/coordinator/internal/port/dispatch"
	"github.com/relaymesh/coordinator/internal/projectactor"
	"github.com/relaymesh/coordinator/internal/projectregistry"
)

// fakeCache is a minimal in-memory port/cache.Cache for exercising the
// handlers' cache-aside path without a real ristretto/NATS backend.
type fakeCache struct {
	sets int
	data map[string][]byte
}

func newFakeCache() *fakeCache { return &fakeCache{data: make(map[string][]byte)} }

func (c *fakeCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *fakeCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.sets++
	c.data[key] = value
	return nil
}

func (c *fakeCache) Delete(_ context.Context, key string) error {
	delete(c.data, key)
	return nil
}

func newTestRegistry(t *testing.T) *projectregistry.Registry {
	t.Helper()
	hub := ws.NewHub(ws.Options{})
	return projectregistry.New(projectregistry.Options{
		DataDir: t.TempDir(),
		Hub:     hub,
		Responder: hub,
		ActorConfig: projectactor.Config{
			HeartbeatTimeout: time.Minute,
			AgentTTL:         30 * time.Minute,
			OrchTimeout:      2 * time.Minute,
			AuctionDefault:   10 * time.Second,
			MinLeaseTTL:      30 * time.Second,
			MaxLeaseTTL:      30 * time.Minute,
			InboxCap:         64,
			ScanInterval:     10 * time.Second,
			ReapInterval:     5 * time.Second,
			SnapshotEveryN:   500,
			SnapshotMaxAge:   time.Minute,
			DefaultQuorum:    1,
			DefaultThreshold: 0.5,
		},
	})
}

func newTestServer(t *testing.T) (*httptest.Server, *projectregistry.Registry) {
	t.Helper()
	reg := newTestRegistry(t)
	t.Cleanup(reg.Shutdown)

	r := chi.NewRouter()
	cfhttp.MountRoutes(r, cfhttp.NewHandlers(reg, nil, nil, 0))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, reg
}

func TestHandlers_Health(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestHandlers_StatusRequiresProject(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET /api/status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHandlers_StatusStartsProject(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/status?project=demo")
	if err != nil {
		t.Fatalf("GET /api/status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["project_id"] != "demo" {
		t.Errorf("project_id = %v, want demo", body["project_id"])
	}
}

func TestHandlers_AgentsAndTasksEmpty(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, path := range []string{"/api/agents?project=demo", "/api/tasks?project=demo"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s status = %d, want 200", path, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestHandlers_LogsRejectsBadParams(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/logs?project=demo&since_seq=-1")
	if err != nil {
		t.Fatalf("GET /api/logs: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHandlers_StatusCachesUntilNewEvent(t *testing.T) {
	reg := newTestRegistry(t)
	t.Cleanup(reg.Shutdown)
	fc := newFakeCache()

	r := chi.NewRouter()
	cfhttp.MountRoutes(r, cfhttp.NewHandlers(reg, nil, fc, time.Minute))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	get := func() *http.Response {
		resp, err := http.Get(srv.URL + "/api/status?project=demo")
		if err != nil {
			t.Fatalf("GET /api/status: %v", err)
		}
		return resp
	}

	first := get()
	defer first.Body.Close()
	if got := first.Header.Get("X-Cache"); got != "miss" {
		t.Fatalf("first request X-Cache = %q, want miss", got)
	}
	if fc.sets != 1 {
		t.Fatalf("cache sets after first request = %d, want 1", fc.sets)
	}

	second := get()
	defer second.Body.Close()
	if got := second.Header.Get("X-Cache"); got != "hit" {
		t.Fatalf("second request X-Cache = %q, want hit", got)
	}
	if fc.sets != 1 {
		t.Fatalf("cache sets after second request = %d, want still 1", fc.sets)
	}

	a, err := reg.Get(context.Background(), "demo")
	if err != nil {
		t.Fatalf("Get project actor: %v", err)
	}
	send := map[string]any{"type": "register", "id": "r1", "agent_id": "alice"}
	frame, _ := json.Marshal(send)
	a.Dispatch(context.Background(), dispatch.Frame{ConnID: "conn-1", Raw: frame})

	deadline := time.After(2 * time.Second)
	for a.LastSeq() == 0 {
		select {
		case <-deadline:
			t.Fatal("event never landed")
		case <-time.After(5 * time.Millisecond):
		}
	}

	third := get()
	defer third.Body.Close()
	if got := third.Header.Get("X-Cache"); got != "miss" {
		t.Fatalf("request after new event X-Cache = %q, want miss (seq-keyed cache should invalidate)", got)
	}
}

func TestHandlers_LogsEmptyProject(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/logs?project=demo")
	if err != nil {
		t.Fatalf("GET /api/logs: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var page struct {
		Events  []any `json:"events"`
		HasMore bool  `json:"has_more"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(page.Events) != 0 {
		t.Errorf("events = %d, want 0", len(page.Events))
	}
}
