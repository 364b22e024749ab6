package http

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers the read-only HTTP surface on r. The WebSocket
// endpoint and auth middleware are wired by the caller; this only owns the
// /health and /api/* GETs.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", h.Status)
		r.Get("/agents", h.Agents)
		r.Get("/tasks", h.Tasks)
		r.Get("/logs", h.Logs)
	})
}
