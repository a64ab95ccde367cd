package controller

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/dharmasatrya/flightpoll/internal/aggregator"
	"github.com/dharmasatrya/flightpoll/internal/cache"
	"github.com/dharmasatrya/flightpoll/internal/filter"
	"github.com/dharmasatrya/flightpoll/internal/models"
	"github.com/dharmasatrya/flightpoll/internal/observability"
	"github.com/dharmasatrya/flightpoll/internal/poller"
	"github.com/dharmasatrya/flightpoll/internal/prefs"
	"github.com/dharmasatrya/flightpoll/internal/session"
	"github.com/dharmasatrya/flightpoll/internal/transport"
)

var (
	ErrClosed         = errors.New("controller closed")
	ErrNotFailed      = errors.New("controller is not in the failed state")
	ErrAlreadyStarted = errors.New("controller already started")
)

type SessionCreator interface {
	CreateSession(ctx context.Context, req models.SearchRequest) (*models.SearchSession, error)
}

type PageFetcher interface {
	FetchPage(ctx context.Context, searchID string, payload models.Payload, cursor *string) (*models.PollPage, error)
}

type Deps struct {
	Sessions SessionCreator
	Pages    PageFetcher
	Cache    cache.Cache
	Reporter observability.Reporter
	Logger   *slog.Logger
}

type Option func(*Deps)

func WithCache(c cache.Cache) Option {
	return func(d *Deps) { d.Cache = c }
}

func WithReporter(r observability.Reporter) Option {
	return func(d *Deps) { d.Reporter = r }
}

type Config struct {
	BaseURL string
	Poller  poller.Config
	// ConvergenceDelay is the pause before re-polling a page that had no next
	// cursor and was not yet final.
	ConvergenceDelay time.Duration
	// MaxConvergencePolls bounds consecutive re-polls of the same cursor.
	// Zero means unbounded.
	MaxConvergencePolls int
	Logger              *slog.Logger
}

func DefaultConfig() Config {
	return Config{
		Poller:              poller.DefaultConfig(),
		ConvergenceDelay:    2 * time.Second,
		MaxConvergencePolls: 30,
	}
}

// Controller drives one search screen: it creates the session, polls pages
// for the current filter epoch and restarts the epoch on every filter change.
type Controller struct {
	deps    Deps
	config  Config
	logger  *slog.Logger
	filters *filter.Store
	agg     *aggregator.Aggregator

	mu        sync.Mutex
	state     State
	started   bool
	closed    bool
	request   models.SearchRequest
	session   *models.SearchSession
	epoch     uint64
	payload   models.Payload
	cursor    *string
	repolls   int
	waiting   bool
	looked    bool
	cached    bool
	converged bool
	err       error

	runCtx      context.Context
	runCancel   context.CancelFunc
	epochCtx    context.Context
	epochCancel context.CancelFunc

	wake chan struct{}
	done chan struct{}

	watchMu  sync.Mutex
	watchers map[int]chan struct{}
	nextID   int
}

func New(deps Deps, config Config) *Controller {
	if deps.Cache == nil {
		deps.Cache = cache.NewNoOpCache()
	}
	if deps.Reporter == nil {
		deps.Reporter = observability.NopReporter{}
	}
	if deps.Logger == nil {
		deps.Logger = config.Logger
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if config.ConvergenceDelay < 0 {
		config.ConvergenceDelay = 0
	}
	if config.MaxConvergencePolls < 0 {
		config.MaxConvergencePolls = 0
	}

	return &Controller{
		deps:     deps,
		config:   config,
		logger:   deps.Logger,
		filters:  filter.NewStore(),
		agg:      aggregator.NewAggregator(),
		state:    StateIdle,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		watchers: make(map[int]chan struct{}),
	}
}

// NewFromTransport builds the session client and poller on top of t.
func NewFromTransport(t transport.Transport, p prefs.Store, config Config, opts ...Option) *Controller {
	pollCfg := config.Poller
	pollCfg.BaseURL = config.BaseURL
	if pollCfg.Logger == nil {
		pollCfg.Logger = config.Logger
	}

	sessionOpts := []session.Option{}
	if config.Logger != nil {
		sessionOpts = append(sessionOpts, session.WithLogger(config.Logger))
	}

	deps := Deps{
		Sessions: session.NewClient(t, p, config.BaseURL, sessionOpts...),
		Pages:    poller.NewPoller(t, pollCfg),
		Logger:   config.Logger,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	return New(deps, config)
}

// Start moves Idle to CreatingSession and launches the poll loop. The loop
// lives until Cancel or until ctx is done, so ctx should outlive the caller's
// request.
func (c *Controller) Start(ctx context.Context, req models.SearchRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.started {
		return ErrAlreadyStarted
	}
	c.started = true
	c.request = req
	c.runCtx, c.runCancel = context.WithCancel(ctx)
	c.setStateLocked(StateCreatingSession)

	go c.run()
	return nil
}

// Submit replaces the active filter. Once a session exists a new epoch begins
// immediately: results are cleared, the cursor is dropped and any in-flight
// request is cancelled. Before that the filter is picked up by the first epoch.
func (c *Controller) Submit(f models.PollFilter) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	c.filters.Apply(f)
	if c.session == nil {
		return nil
	}

	c.beginEpochLocked()
	c.setStateLocked(StatePolling)
	c.wakeLocked()
	return nil
}

// Retry resumes after a failure. Without a session the session is created
// again; otherwise polling continues at the cursor that failed, keeping the
// results gathered so far.
func (c *Controller) Retry() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.state != StateFailed {
		return ErrNotFailed
	}

	c.err = nil
	c.waiting = false
	if c.session == nil {
		c.setStateLocked(StateCreatingSession)
	} else {
		c.setStateLocked(StatePolling)
	}
	c.wakeLocked()
	return nil
}

// Cancel stops the poll loop and waits for it to exit.
func (c *Controller) Cancel() {
	c.mu.Lock()
	started := c.started
	if !c.closed {
		c.closed = true
		if c.epochCancel != nil {
			c.epochCancel()
		}
		if c.runCancel != nil {
			c.runCancel()
		}
		if !started {
			close(c.done)
		}
	}
	c.mu.Unlock()

	<-c.done
	c.notify()
}

// Done is closed once the poll loop has exited.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

func (c *Controller) CurrentResults() models.ResultSet {
	return c.agg.Snapshot()
}

func (c *Controller) Sorted(sortBy models.SortKey, order models.SortOrder) []models.FlightResult {
	return c.agg.Sorted(sortBy, order)
}

func (c *Controller) Filter() models.PollFilter {
	return c.filters.Current()
}

// IsConverged reports whether the current epoch reached the server's final
// page.
func (c *Controller) IsConverged() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.converged
}

func (c *Controller) CurrentError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

// View returns the status, the results and the filter as of the same instant.
// The aggregator only changes under c.mu, so no Submit can land in between.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return View{
		Status:  c.statusLocked(),
		Results: c.agg.Snapshot(),
		Filter:  c.filters.Current(),
	}
}

func (c *Controller) statusLocked() Status {
	st := Status{
		State:     c.state,
		Epoch:     c.epoch,
		Converged: c.converged,
		FromCache: c.cached,
		Closed:    c.closed,
		Err:       c.err,
		Count:     c.agg.Count(),
		Total:     c.agg.Total(),
	}
	if c.session != nil {
		st.SearchID = c.session.SearchID
		st.Currency = c.session.Currency
	}
	return st
}

// Subscribe signals after any change of state or results. Signals coalesce.
func (c *Controller) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	c.watchMu.Lock()
	id := c.nextID
	c.nextID++
	c.watchers[id] = ch
	c.watchMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.watchMu.Lock()
			delete(c.watchers, id)
			c.watchMu.Unlock()
		})
	}
}

func (c *Controller) run() {
	defer func() {
		c.mu.Lock()
		c.closed = true
		if c.epochCancel != nil {
			c.epochCancel()
		}
		c.runCancel()
		c.mu.Unlock()
		close(c.done)
	}()

	for {
		c.mu.Lock()
		if c.closed || c.runCtx.Err() != nil {
			c.mu.Unlock()
			return
		}
		state := c.state
		c.mu.Unlock()

		switch state {
		case StateCreatingSession:
			c.createSession()
		case StatePolling:
			c.pollOnce()
		default:
			select {
			case <-c.wake:
			case <-c.runCtx.Done():
				return
			}
		}
	}
}

func (c *Controller) createSession() {
	c.mu.Lock()
	ctx := c.runCtx
	req := c.request
	c.mu.Unlock()

	sess, err := c.deps.Sessions.CreateSession(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || ctx.Err() != nil || c.state != StateCreatingSession {
		return
	}
	if err != nil {
		c.failLocked(err)
		return
	}

	c.session = sess
	c.beginEpochLocked()
	c.setStateLocked(StatePolling)
}

// pollOnce performs a single step of the current epoch: a convergence pause,
// a cache lookup or one page fetch. Every result is checked against the epoch
// it was issued for before it touches any state.
func (c *Controller) pollOnce() {
	c.mu.Lock()
	if c.state != StatePolling {
		c.mu.Unlock()
		return
	}
	tag := c.epoch
	ctx := c.epochCtx
	searchID := c.session.SearchID
	payload := c.payload
	cursor := c.cursor
	waiting := c.waiting
	lookup := !c.looked
	c.mu.Unlock()

	if waiting {
		c.pause(ctx, tag)
		return
	}

	if lookup {
		if c.lookupCache(ctx, tag, searchID, payload) {
			return
		}
	}

	page, err := c.deps.Pages.FetchPage(ctx, searchID, payload, cursor)

	c.mu.Lock()
	if stale := c.checkEpochLocked(tag); stale != nil {
		c.mu.Unlock()
		c.logger.Debug("dropping response", "search_id", searchID, "epoch", tag, "reason", stale)
		return
	}
	if err != nil {
		if ctx.Err() == nil {
			c.failLocked(err)
		}
		c.mu.Unlock()
		return
	}

	final := c.handlePageLocked(page)
	c.mu.Unlock()

	if final != nil {
		c.store(searchID, payload, *final)
	}
}

func (c *Controller) pause(ctx context.Context, tag uint64) {
	timer := time.NewTimer(c.config.ConvergenceDelay)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
		return
	}

	c.mu.Lock()
	if c.epoch == tag {
		c.waiting = false
	}
	c.mu.Unlock()
}

func (c *Controller) lookupCache(ctx context.Context, tag uint64, searchID string, payload models.Payload) bool {
	set, ok := c.deps.Cache.Get(ctx, cache.Key(searchID, payload))

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.checkEpochLocked(tag) != nil {
		return true
	}
	c.looked = true
	if !ok {
		return false
	}

	c.agg.Restore(*set)
	c.cached = true
	c.converged = true
	c.setStateLocked(StateExhausted)
	c.logger.Info("epoch restored from cache",
		"search_id", searchID,
		"epoch", tag,
		"results", len(set.Results),
	)
	return true
}

// handlePageLocked merges page and advances the epoch. It returns the final
// result set when the epoch converged.
func (c *Controller) handlePageLocked(page *models.PollPage) *models.ResultSet {
	added := c.agg.Merge(page)
	c.logger.Debug("page merged",
		"search_id", c.session.SearchID,
		"epoch", c.epoch,
		"added", added,
		"total", page.Count,
		"cache", page.Cache,
	)

	switch {
	case page.Next != nil:
		next := *page.Next
		c.cursor = &next
		c.repolls = 0
		c.notify()
		return nil

	case page.Cache:
		c.converged = true
		c.setStateLocked(StateExhausted)
		c.logger.Info("epoch converged",
			"search_id", c.session.SearchID,
			"epoch", c.epoch,
			"results", c.agg.Count(),
		)
		set := c.agg.Snapshot()
		return &set

	default:
		c.repolls++
		if limit := c.config.MaxConvergencePolls; limit > 0 && c.repolls > limit {
			c.setStateLocked(StateExhausted)
			c.logger.Warn("giving up on convergence",
				"search_id", c.session.SearchID,
				"epoch", c.epoch,
				"polls", c.repolls,
			)
			return nil
		}
		c.waiting = true
		c.notify()
		return nil
	}
}

func (c *Controller) store(searchID string, payload models.Payload, set models.ResultSet) {
	c.mu.Lock()
	ctx := c.runCtx
	c.mu.Unlock()

	if err := c.deps.Cache.Set(ctx, cache.Key(searchID, payload), set); err != nil {
		c.logger.Warn("failed to cache converged results", "search_id", searchID, "error", err)
	}
}

func (c *Controller) beginEpochLocked() {
	f, _ := c.filters.ConsumeDirty()

	// The first epoch of a session is 0; every filter restart advances it.
	if c.epochCancel != nil {
		c.epochCancel()
		c.epoch++
	}
	c.epochCtx, c.epochCancel = context.WithCancel(c.runCtx)

	c.payload = filter.Serialize(f)
	c.cursor = nil
	c.repolls = 0
	c.waiting = false
	c.looked = false
	c.cached = false
	c.converged = false
	c.err = nil
	c.agg.Reset()

	c.logger.Info("epoch started",
		"search_id", c.session.SearchID,
		"epoch", c.epoch,
		"filter", c.payload,
	)
}

func (c *Controller) checkEpochLocked(tag uint64) error {
	if c.closed || tag != c.epoch || c.state != StatePolling {
		return models.ErrEpochStale
	}
	return nil
}

func (c *Controller) failLocked(err error) {
	from := c.state
	c.err = err
	c.waiting = false
	c.setStateLocked(StateFailed)

	tags := map[string]string{
		"state": from.String(),
		"epoch": strconv.FormatUint(c.epoch, 10),
	}
	if c.session != nil {
		tags["search_id"] = c.session.SearchID
	}
	c.logger.Error("search failed", "epoch", c.epoch, "search_id", tags["search_id"], "error", err)

	var srvErr *models.ServerError
	var decErr *models.DecodeError
	if errors.As(err, &srvErr) || errors.As(err, &decErr) {
		c.deps.Reporter.Report(c.runCtx, err, tags)
	}
}

func (c *Controller) setStateLocked(s State) {
	if c.state != s {
		c.logger.Debug("state change", "from", c.state.String(), "to", s.String())
	}
	c.state = s
	c.notify()
}

func (c *Controller) wakeLocked() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Controller) notify() {
	c.watchMu.Lock()
	defer c.watchMu.Unlock()
	for _, ch := range c.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
