// Package projectregistry implements the Project registry (C2): the
// process-global map from project id to its running actor, with
// single-flight-guarded creation and idle eviction.
package projectregistry

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/relaymesh/coordinator/internal/adapter/eventlog/file"
	"github.com/relaymesh/coordinator/internal/adapter/nats"
	"github.com/relaymesh/coordinator/internal/adapter/otel"
	"github.com/relaymesh/coordinator/internal/port/broadcast"
	"github.com/relaymesh/coordinator/internal/port/responder"
	"github.com/relaymesh/coordinator/internal/projectactor"
)

// Handle is everything the registry needs to track about a running project
// actor: the actor itself, its cancel function, and idle-eviction
// bookkeeping.
type Handle struct {
	Actor  *projectactor.Actor
	cancel context.CancelFunc
	done   chan struct{}
}

// Registry maps project_id to its running actor, spinning one up lazily on
// first use and evicting actors idle for longer than IdleTimeout.
type Registry struct {
	mu       sync.RWMutex
	handles  map[string]*Handle
	group    singleflight.Group
	startSem *semaphore.Weighted
	dataDir  string
	idleEvery time.Duration
	idleTimeout time.Duration

	actorCfg  projectactor.Config
	hub       broadcast.Broadcaster
	resp      responder.Responder
	metrics   *otel.Metrics
	natsPub   *nats.Publisher
	log       *slog.Logger
	retryWrite int
}

// Options configures a Registry.
type Options struct {
	DataDir     string
	IdleTimeout time.Duration
	ScanEvery   time.Duration
	RetryWrite  int
	ActorConfig projectactor.Config
	Hub         broadcast.Broadcaster
	Responder   responder.Responder
	Metrics     *otel.Metrics
	NATS        *nats.Publisher
	Log         *slog.Logger

	// MaxConcurrentStarts bounds how many projects may have their event
	// log opened and actor goroutine launched at the same time, so a
	// burst of first-touch requests across many distinct projects can't
	// exhaust file descriptors or spawn an unbounded number of actor
	// goroutines at once. Defaults to 16.
	MaxConcurrentStarts int
}

// New creates a Registry. It does not start any actors; they are created
// lazily by Get.
func New(opts Options) *Registry {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	if opts.ScanEvery <= 0 {
		opts.ScanEvery = time.Minute
	}
	if opts.MaxConcurrentStarts <= 0 {
		opts.MaxConcurrentStarts = 16
	}
	return &Registry{
		handles:     make(map[string]*Handle),
		startSem:    semaphore.NewWeighted(int64(opts.MaxConcurrentStarts)),
		dataDir:     opts.DataDir,
		idleEvery:   opts.ScanEvery,
		idleTimeout: opts.IdleTimeout,
		actorCfg:    opts.ActorConfig,
		hub:         opts.Hub,
		resp:        opts.Responder,
		metrics:     opts.Metrics,
		natsPub:     opts.NATS,
		log:         log,
		retryWrite:  opts.RetryWrite,
	}
}

// Get returns the running actor for projectID, starting it if this is the
// first request for it. Concurrent Get calls for the same project id are
// deduplicated through a single-flight gate so only one actor is ever
// constructed per project.
func (r *Registry) Get(ctx context.Context, projectID string) (*projectactor.Actor, error) {
	r.mu.RLock()
	h, found := r.handles[projectID]
	r.mu.RUnlock()
	if found {
		return h.Actor, nil
	}

	v, err, _ := r.group.Do(projectID, func() (any, error) {
		r.mu.RLock()
		if h, found := r.handles[projectID]; found {
			r.mu.RUnlock()
			return h, nil
		}
		r.mu.RUnlock()

		h, err := r.start(ctx, projectID)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.handles[projectID] = h
		r.mu.Unlock()
		return h, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Handle).Actor, nil
}

func (r *Registry) start(ctx context.Context, projectID string) (*Handle, error) {
	if err := r.startSem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("wait for project start slot: %w", err)
	}
	defer r.startSem.Release(1)

	dir := filepath.Join(r.dataDir, projectID)
	store, err := file.Open(dir, r.retryWrite, r.log)
	if err != nil {
		return nil, fmt.Errorf("open event log for project %s: %w", projectID, err)
	}

	a := projectactor.New(projectID, r.actorCfg, store, r.hub, r.resp, r.metrics, r.natsPub, r.log)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.Run(ctx)
		_ = store.Close()
	}()

	return &Handle{Actor: a, cancel: cancel, done: done}, nil
}

// ConnectionCounter reports live connections for a project, used to decide
// eviction eligibility. The WebSocket hub implements this.
type ConnectionCounter interface {
	ConnectionCount(projectID string) int
}

// RunIdleEviction runs until ctx is canceled, periodically checkpointing and
// evicting actors with zero live connections for longer than IdleTimeout.
func (r *Registry) RunIdleEviction(ctx context.Context, counter ConnectionCounter) {
	if r.idleTimeout <= 0 {
		return
	}
	ticker := time.NewTicker(r.idleEvery)
	defer ticker.Stop()

	idleSince := make(map[string]time.Time)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.mu.RLock()
			ids := make([]string, 0, len(r.handles))
			for id := range r.handles {
				ids = append(ids, id)
			}
			r.mu.RUnlock()

			for _, id := range ids {
				if counter.ConnectionCount(id) > 0 {
					delete(idleSince, id)
					continue
				}
				since, tracked := idleSince[id]
				if !tracked {
					idleSince[id] = time.Now()
					continue
				}
				if time.Since(since) >= r.idleTimeout {
					r.evict(id)
					delete(idleSince, id)
				}
			}
		}
	}
}

func (r *Registry) evict(projectID string) {
	r.mu.Lock()
	h, found := r.handles[projectID]
	if found {
		delete(r.handles, projectID)
	}
	r.mu.Unlock()
	if !found {
		return
	}

	r.log.Info("evicting idle project", "project", projectID)
	h.cancel()
	<-h.done
}

// Shutdown stops every running actor, snapshotting each on the way out
// (Actor.Run already snapshots on context cancellation).
// Shutdown cancels every running project actor and waits for each to flush
// its on-cancel snapshot and exit. Actors shut down concurrently, bounded by
// an errgroup limit so a registry holding thousands of idle projects doesn't
// spawn thousands of goroutines at once.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	handles := r.handles
	r.handles = make(map[string]*Handle)
	r.mu.Unlock()

	var g errgroup.Group
	g.SetLimit(16)
	for id, h := range handles {
		id, h := id, h
		g.Go(func() error {
			r.log.Info("shutting down project", "project", id)
			h.cancel()
			<-h.done
			return nil
		})
	}
	_ = g.Wait()
}

// Snapshot returns the set of currently loaded project ids.
func (r *Registry) Snapshot() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handles))
	for id := range r.handles {
		out = append(out, id)
	}
	return out
}
