// Package http implements the read-only HTTP surface (no mutations, per
// the spec): health, project status, agent and task listings, and
// cursor-paginated log replay. All writes happen over the WebSocket
// endpoint; this package only ever reads projections out of a running
// Project actor.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/relaymesh/coordinator/internal/port/cache"
	"github.com/relaymesh/coordinator/internal/projectactor"
	"github.com/relaymesh/coordinator/internal/projectregistry"
)

// Handlers holds the dependencies the read surface needs.
type Handlers struct {
	Registry *projectregistry.Registry
	Log      *slog.Logger

	// Cache, if set, fronts Status and Tasks with a cache-aside layer
	// keyed by project id and event sequence, so a poller hammering a
	// busy project doesn't force a fresh query (and re-marshal of the
	// full projection) on every request. Nil disables caching.
	Cache    cache.Cache
	CacheTTL time.Duration
}

// NewHandlers constructs Handlers. cache and ttl are optional; pass a nil
// cache to serve every request straight from the project actor.
func NewHandlers(registry *projectregistry.Registry, log *slog.Logger, projCache cache.Cache, ttl time.Duration) *Handlers {
	if log == nil {
		log = slog.Default()
	}
	return &Handlers{Registry: registry, Log: log, Cache: projCache, CacheTTL: ttl}
}

// cachedJSON serves a GET handler's result through h.Cache, keyed on the
// project's current sequence number so a new event transparently
// invalidates the entry — no explicit cache invalidation is needed.
func (h *Handlers) cachedJSON(w http.ResponseWriter, r *http.Request, kind string, a *projectactor.Actor, compute func() (any, error)) {
	if h.Cache == nil {
		res, err := compute()
		if err != nil {
			writeQueryError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
		return
	}

	key := fmt.Sprintf("%s:%s:%d", kind, a.ID(), a.LastSeq())
	if cached, ok, err := h.Cache.Get(r.Context(), key); err == nil && ok {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Cache", "hit")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(cached)
		return
	} else if err != nil {
		h.Log.Warn("projection cache get failed", "key", key, "error", err)
	}

	res, err := compute()
	if err != nil {
		writeQueryError(w, err)
		return
	}
	body, err := json.Marshal(res)
	if err != nil {
		h.Log.Error("marshal cached projection", "key", key, "error", err)
		writeJSON(w, http.StatusOK, res)
		return
	}
	if err := h.Cache.Set(r.Context(), key, body, h.CacheTTL); err != nil {
		h.Log.Warn("projection cache set failed", "key", key, "error", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cache", "miss")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// requireProject extracts and validates the project query parameter,
// starting (or reusing) its actor. Every read handler but Health needs one.
func (h *Handlers) requireProject(w http.ResponseWriter, r *http.Request) (*projectactor.Actor, bool) {
	projectID := r.URL.Query().Get("project")
	if projectID == "" {
		writeError(w, http.StatusBadRequest, "project is required")
		return nil, false
	}
	a, err := h.Registry.Get(r.Context(), projectID)
	if err != nil {
		h.Log.Error("start project actor", "project", projectID, "error", err)
		writeError(w, http.StatusInternalServerError, "project unavailable")
		return nil, false
	}
	return a, true
}

// Health reports basic process liveness. It never touches a Project actor,
// so it stays reachable even if every project is degraded.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Status serves GET /api/status?project=<id>.
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	a, ok := h.requireProject(w, r)
	if !ok {
		return
	}
	h.cachedJSON(w, r, "status", a, func() (any, error) { return a.Status(r.Context()) })
}

// Agents serves GET /api/agents?project=<id>.
func (h *Handlers) Agents(w http.ResponseWriter, r *http.Request) {
	a, ok := h.requireProject(w, r)
	if !ok {
		return
	}
	agents, err := a.ListAgents(r.Context())
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"agents": agents})
}

// Tasks serves GET /api/tasks?project=<id>.
func (h *Handlers) Tasks(w http.ResponseWriter, r *http.Request) {
	a, ok := h.requireProject(w, r)
	if !ok {
		return
	}
	h.cachedJSON(w, r, "tasks", a, func() (any, error) {
		tasks, err := a.ListTasks(r.Context())
		if err != nil {
			return nil, err
		}
		return map[string]any{"tasks": tasks}, nil
	})
}

// Logs serves GET /api/logs?project=<id>&limit=<n>&since_seq=<n>.
func (h *Handlers) Logs(w http.ResponseWriter, r *http.Request) {
	a, ok := h.requireProject(w, r)
	if !ok {
		return
	}

	sinceSeq := int64(0)
	if v := r.URL.Query().Get("since_seq"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "since_seq must be a non-negative integer")
			return
		}
		sinceSeq = parsed
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	page, err := a.Replay(r.Context(), sinceSeq, limit)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func writeQueryError(w http.ResponseWriter, err error) {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		writeError(w, http.StatusGatewayTimeout, "project actor did not respond in time")
		return
	}
	writeError(w, http.StatusInternalServerError, "query failed: "+err.Error())
}
