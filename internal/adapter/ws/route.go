package ws

import (
	"context"
	"net/http"
	"strconv"

	"github.com/relaymesh/coordinator/internal/domain/event"
	"github.com/relaymesh/coordinator/internal/port/dispatch"
)

// ProjectResolver starts (or reuses) the Project actor for a project id.
// Callers typically wrap internal/projectregistry.Registry.Get in a
// closure, since that method returns the concrete *projectactor.Actor
// rather than this interface.
type ProjectResolver func(ctx context.Context, projectID string) (ProjectActor, error)

// ProjectActor is the subset of projectactor.Actor the WebSocket route
// handler needs: enough to dispatch frames, pick a welcome seq, and serve
// a since_seq catch-up replay before the connection starts receiving live
// events.
type ProjectActor interface {
	dispatch.Dispatcher
	ID() string
	LastSeq() int64
	Replay(ctx context.Context, sinceSeq int64, max int) (event.Page, error)
}

// Route builds the GET /ws handler described in spec §6:
// /ws?project=<id>&agent=<name>&since_seq=<int>. Auth is handled by
// middleware upstream; this resolves the project and agent identity,
// computes the since_seq catch-up (if requested), and hands the
// connection to Hub.Accept.
func Route(h *Hub, resolver ProjectResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID := r.URL.Query().Get("project")
		agentName := r.URL.Query().Get("agent")
		if projectID == "" {
			http.Error(w, "project is required", http.StatusBadRequest)
			return
		}

		a, err := resolver(r.Context(), projectID)
		if err != nil {
			http.Error(w, "project unavailable", http.StatusInternalServerError)
			return
		}

		welcomeSeq := a.LastSeq()

		var replayFrames [][]byte
		if sinceSeq := r.URL.Query().Get("since_seq"); sinceSeq != "" {
			since, convErr := strconv.ParseInt(sinceSeq, 10, 64)
			if convErr != nil || since < 0 {
				http.Error(w, "since_seq must be a non-negative integer", http.StatusBadRequest)
				return
			}
			page, err := a.Replay(r.Context(), since, 0)
			if err != nil {
				http.Error(w, "replay failed", http.StatusInternalServerError)
				return
			}
			replayFrames = make([][]byte, 0, len(page.Events))
			for _, ev := range page.Events {
				replayFrames = append(replayFrames, EventFrame(ev))
			}
		}

		if err := h.Accept(w, r, AcceptParams{ProjectID: projectID, AgentName: agentName}, a, welcomeSeq, replayFrames...); err != nil {
			if err == ErrProjectFull {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
			http.Error(w, "websocket accept failed", http.StatusBadGateway)
			return
		}
	}
}
