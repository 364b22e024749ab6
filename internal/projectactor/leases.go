package projectactor

import (
	"time"

	"github.com/relaymesh/coordinator/internal/domain"
	"github.com/relaymesh/coordinator/internal/domain/event"
	"github.com/relaymesh/coordinator/internal/domain/lease"
	"github.com/relaymesh/coordinator/internal/domain/task"
)

type fileReserveParams struct {
	Path      string `json:"path"`
	Agent     string `json:"agent"`
	TTLMs     int64  `json:"ttl_ms"`
	Exclusive *bool  `json:"exclusive,omitempty"`
	TaskID    string `json:"task_id,omitempty"`
}

func (a *Actor) handleFileReserve(rc reqContext, raw []byte) handlerResult {
	var p fileReserveParams
	if err := decodeParams(raw, &p); err != nil {
		return fail(err)
	}
	path, okPath := lease.Normalize(p.Path)
	if !okPath {
		return fail(domain.NewError(domain.ErrInvalidPath, "path %q escapes project root", p.Path))
	}
	if _, registered := a.agents[p.Agent]; !registered && !a.agentKnownByName(p.Agent) {
		return fail(domain.NewError(domain.ErrForbidden, "agent %s is not registered", p.Agent))
	}

	if existing, found := a.leases[path]; found && existing.Exclusive && !existing.Expired(rc.now) {
		return fail(domain.NewError(domain.ErrConflict, "path %s held by %s", path, existing.Holder))
	}

	ttl := clampDuration(time.Duration(p.TTLMs)*time.Millisecond, a.cfg.MinLeaseTTL, a.cfg.MaxLeaseTTL)
	exclusive := true
	if p.Exclusive != nil {
		exclusive = *p.Exclusive
	}

	l := &lease.Lease{
		Path:       path,
		Holder:     p.Agent,
		Exclusive:  exclusive,
		AcquiredAt: rc.now,
		ExpiresAt:  rc.now.Add(ttl),
		TaskID:     p.TaskID,
	}
	a.leases[path] = l

	return ok(l, pendingEvent{kind: event.KindFileLocked, payload: l})
}

type fileReleaseParams struct {
	Path   string `json:"path"`
	Agent  string `json:"agent"`
	Caller string `json:"caller,omitempty"`
	Epoch  int64  `json:"epoch,omitempty"`
	VoteID string `json:"vote_id,omitempty"`
}

// handleFileRelease releases a lease. A holder releases its own lease
// unconditionally; force-releasing a lease held by someone else is an
// orchestrator-only write fenced by the same epoch check as
// handleTaskAssign's non-self-assign branch, and additionally requires a
// vote_id naming an already-passed vote (spec's dangerous-action gate).
func (a *Actor) handleFileRelease(rc reqContext, raw []byte) handlerResult {
	var p fileReleaseParams
	if err := decodeParams(raw, &p); err != nil {
		return fail(err)
	}
	path, okPath := lease.Normalize(p.Path)
	if !okPath {
		return fail(domain.NewError(domain.ErrInvalidPath, "path %q escapes project root", p.Path))
	}
	l, found := a.leases[path]
	if !found {
		return fail(domain.NewError(domain.ErrNotFound, "no lease on %s", path))
	}
	if l.Holder != p.Agent {
		if !a.isLiveOrchestrator(p.Caller, p.Epoch, rc.now) {
			return fail(domain.NewError(domain.ErrStaleEpoch, "caller is not the live orchestrator at epoch %d", p.Epoch))
		}
		if p.VoteID == "" || !a.VotePassed(p.VoteID) {
			return fail(domain.NewError(domain.ErrForbidden, "force-release of %s requires a passed vote", path))
		}
	}
	delete(a.leases, path)
	return ok(map[string]string{"path": path}, pendingEvent{kind: event.KindFileUnlocked, payload: l})
}

type fileRenewParams struct {
	Path  string `json:"path"`
	Agent string `json:"agent"`
	TTLMs int64  `json:"ttl_ms"`
}

func (a *Actor) handleFileRenew(rc reqContext, raw []byte) handlerResult {
	var p fileRenewParams
	if err := decodeParams(raw, &p); err != nil {
		return fail(err)
	}
	path, okPath := lease.Normalize(p.Path)
	if !okPath {
		return fail(domain.NewError(domain.ErrInvalidPath, "path %q escapes project root", p.Path))
	}
	l, found := a.leases[path]
	if !found {
		return fail(domain.NewError(domain.ErrNotFound, "no lease on %s", path))
	}
	if l.Holder != p.Agent {
		return fail(domain.NewError(domain.ErrForbidden, "%s does not hold %s", p.Agent, path))
	}
	ttl := clampDuration(time.Duration(p.TTLMs)*time.Millisecond, a.cfg.MinLeaseTTL, a.cfg.MaxLeaseTTL)
	l.ExpiresAt = rc.now.Add(ttl)
	return ok(l)
}

type fileListParams struct {
	Paths []string `json:"paths,omitempty"`
}

type leaseForecast struct {
	Path       string  `json:"path"`
	Holder     string  `json:"holder,omitempty"`
	ETAMs      int64   `json:"eta_ms,omitempty"`
	InProgress bool    `json:"in_progress_conflict"`
}

func (a *Actor) handleFileList(rc reqContext, raw []byte) handlerResult {
	var p fileListParams
	if err := decodeParams(raw, &p); err != nil {
		return fail(err)
	}

	paths := p.Paths
	if len(paths) == 0 {
		paths = make([]string, 0, len(a.leases))
		for path := range a.leases {
			paths = append(paths, path)
		}
	}

	out := make([]leaseForecast, 0, len(paths))
	for _, rawPath := range paths {
		path, okPath := lease.Normalize(rawPath)
		if !okPath {
			continue
		}
		f := leaseForecast{Path: path}
		if l, found := a.leases[path]; found {
			f.Holder = l.Holder
			if eta := l.ExpiresAt.Sub(rc.now); eta > 0 {
				f.ETAMs = eta.Milliseconds()
			}
		}
		for _, t := range a.tasks {
			if t.Status == task.StatusInProgress && t.Files[path] {
				f.InProgress = true
				break
			}
		}
		out = append(out, f)
	}
	return ok(out)
}

// reapLeases expires leases past their TTL. Called from the tick handler at
// ReapInterval.
func (a *Actor) reapLeases(now time.Time) {
	for path, l := range a.leases {
		if l.Expired(now) {
			delete(a.leases, path)
			a.emit(noopCtx(), event.KindFileUnlocked, l)
		}
	}
}

// releaseLeasesForTask drops every lease tagged with taskID, used on task
// completion/cancellation.
func (a *Actor) releaseLeasesForTask(taskID string) {
	for path, l := range a.leases {
		if l.TaskID == taskID {
			delete(a.leases, path)
			a.emit(noopCtx(), event.KindFileUnlocked, l)
		}
	}
}

func (a *Actor) agentKnownByName(name string) bool {
	_, found := a.agentsByName[name]
	return found
}

func clampDuration(d, min, max time.Duration) time.Duration {
	if d < min {
		return min
	}
	if d > max {
		return max
	}
	return d
}
