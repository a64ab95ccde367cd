package handler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dharmasatrya/flightpoll/internal/controller"
	"github.com/dharmasatrya/flightpoll/internal/models"
)

// Factory builds a fresh, unstarted controller for one search.
type Factory func() *controller.Controller

type RegistryOption func(*Registry)

// WithIdleTTL evicts searches nobody has read for ttl. Zero keeps them until
// they are removed.
func WithIdleTTL(ttl time.Duration) RegistryOption {
	return func(r *Registry) { r.idleTTL = ttl }
}

func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

type entry struct {
	ctrl     *controller.Controller
	lastSeen time.Time
}

// Registry owns the live controllers behind the facade, one per handle.
// Controllers outlive the HTTP request that created them, so they run on the
// registry's context. A client that goes away without DELETE is caught by the
// idle sweep.
type Registry struct {
	ctx     context.Context
	factory Factory
	logger  *slog.Logger
	idleTTL time.Duration
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]*entry

	stop      chan struct{}
	stopOnce  sync.Once
	sweeperWG sync.WaitGroup
}

func NewRegistry(ctx context.Context, factory Factory, logger *slog.Logger, opts ...RegistryOption) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		ctx:     ctx,
		factory: factory,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]*entry),
		stop:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.idleTTL > 0 {
		r.sweeperWG.Add(1)
		go r.sweepLoop(r.idleTTL / 2)
	}
	return r
}

// Create starts a search. An initial filter, when given, shapes the first
// epoch instead of restarting it.
func (r *Registry) Create(req models.SearchRequest, initial *models.PollFilter) (string, *controller.Controller, error) {
	ctrl := r.factory()
	if initial != nil {
		if err := ctrl.Submit(*initial); err != nil {
			return "", nil, err
		}
	}
	if err := ctrl.Start(r.ctx, req); err != nil {
		return "", nil, err
	}

	handle := uuid.NewString()
	r.mu.Lock()
	r.entries[handle] = &entry{ctrl: ctrl, lastSeen: r.now()}
	r.mu.Unlock()

	r.logger.Info("search registered", "handle", handle)
	return handle, ctrl, nil
}

// Get returns the controller behind handle and marks it as in use.
func (r *Registry) Get(handle string) (*controller.Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[handle]
	if !ok {
		return nil, false
	}
	e.lastSeen = r.now()
	return e.ctrl, true
}

// Remove cancels the controller and forgets the handle.
func (r *Registry) Remove(handle string) bool {
	r.mu.Lock()
	e, ok := r.entries[handle]
	delete(r.entries, handle)
	r.mu.Unlock()

	if ok {
		e.ctrl.Cancel()
		r.logger.Info("search removed", "handle", handle)
	}
	return ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Close stops the sweep and cancels every controller.
func (r *Registry) Close() {
	r.stopOnce.Do(func() { close(r.stop) })
	r.sweeperWG.Wait()

	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*entry)
	r.mu.Unlock()

	cancelAll(entries)
}

func (r *Registry) sweepLoop(interval time.Duration) {
	defer r.sweeperWG.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sweep()
		case <-r.stop:
			return
		case <-r.ctx.Done():
			return
		}
	}
}

// sweep cancels the searches idle for longer than idleTTL and returns how
// many it evicted.
func (r *Registry) sweep() int {
	now := r.now()

	r.mu.Lock()
	idle := make(map[string]*entry)
	for handle, e := range r.entries {
		if now.Sub(e.lastSeen) > r.idleTTL {
			idle[handle] = e
			delete(r.entries, handle)
		}
	}
	r.mu.Unlock()

	for handle, e := range idle {
		r.logger.Info("search evicted", "handle", handle, "idle", now.Sub(e.lastSeen))
	}
	cancelAll(idle)
	return len(idle)
}

func cancelAll(entries map[string]*entry) {
	var wg sync.WaitGroup
	for _, e := range entries {
		wg.Add(1)
		go func(c *controller.Controller) {
			defer wg.Done()
			c.Cancel()
		}(e.ctrl)
	}
	wg.Wait()
}
