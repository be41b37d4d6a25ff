package query

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Loader fetches the data for one key.
type Loader func(ctx context.Context) (any, error)

type Client struct {
	opts   Options
	logger *zap.Logger

	mu      sync.Mutex
	entries map[string]*entry
	nextID  uint64
	nextGen uint64
	closed  bool

	flights singleflight.Group
	ctx     context.Context
	cancel  context.CancelFunc
	gc      *collector
}

type entry struct {
	key    Key
	hash   string
	state  State
	loader Loader

	// gen names the running flight in the singleflight group.
	gen          uint64
	refetchAfter bool

	observers     []*observer
	inactiveSince time.Time
}

func New(opts Options) *Client {
	opts = opts.normalize()
	ctx, cancel := context.WithCancel(context.Background())

	c := &Client{
		opts:    opts,
		logger:  opts.Logger,
		entries: make(map[string]*entry),
		ctx:     ctx,
		cancel:  cancel,
	}
	if opts.GCTime > 0 {
		c.gc = newCollector(c, opts.GCInterval)
		c.gc.Start(ctx)
	}
	return c
}

func (c *Client) Options() Options {
	return c.opts
}

// Close stops the collector, pollers and running fetches. Fetches in flight
// settle with context.Canceled.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	var stops []context.CancelFunc
	for _, e := range c.entries {
		for _, o := range e.observers {
			if o.stop != nil {
				stops = append(stops, o.stop)
			}
		}
	}
	c.mu.Unlock()

	for _, stop := range stops {
		stop()
	}
	c.cancel()
	if c.gc != nil {
		c.gc.Stop()
	}
}

// Ensure returns the current state for key and starts a background fetch
// when the data is stale and nothing is in flight.
func (c *Client) Ensure(key Key, loader Loader) State {
	c.mu.Lock()
	e := c.entryLocked(key, loader)
	var notices []notice
	if c.staleLocked(e) && !e.state.IsFetching() {
		if _, n, ok := c.startLocked(e); ok {
			notices = append(notices, n)
		}
	}
	st := e.state
	c.mu.Unlock()

	deliver(notices...)
	return st
}

// Fetch returns fresh data for key, waiting for a fetch when the cached data
// is stale. Concurrent callers share one fetch. Hydrated entries may hold
// json.RawMessage until their first refetch.
func (c *Client) Fetch(ctx context.Context, key Key, loader Loader) (any, error) {
	c.mu.Lock()
	e := c.entryLocked(key, loader)
	if !c.staleLocked(e) && !e.state.IsFetching() {
		data := e.state.Data
		c.mu.Unlock()
		return data, nil
	}

	var (
		ch      <-chan singleflight.Result
		notices []notice
	)
	if e.state.IsFetching() {
		ch = c.joinLocked(e)
	} else {
		var n notice
		var ok bool
		if ch, n, ok = c.startLocked(e); ok {
			notices = append(notices, n)
		}
	}
	c.mu.Unlock()
	deliver(notices...)

	if ch == nil {
		if c.isClosed() {
			return nil, ErrClosed
		}
		return nil, fmt.Errorf("query %s: %w", key, ErrNotFetchable)
	}
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Prefetch warms the cache for key. Fresh data is left alone.
func (c *Client) Prefetch(ctx context.Context, key Key, loader Loader) error {
	_, err := c.Fetch(ctx, key, loader)
	return err
}

// Refetch starts a fetch for key with its registered loader unless one is
// already running.
func (c *Client) Refetch(key Key) {
	c.mu.Lock()
	e, ok := c.entries[key.Hash()]
	if !ok || e.state.IsFetching() {
		c.mu.Unlock()
		return
	}
	var notices []notice
	if _, n, ok := c.startLocked(e); ok {
		notices = append(notices, n)
	}
	c.mu.Unlock()

	deliver(notices...)
}

// Subscribe attaches fn to key. fn gets the current state right away and
// every change after it. An enabled observer fetches stale data on
// attach. The returned func detaches the observer; it is safe to call twice.
func (c *Client) Subscribe(key Key, loader Loader, opts QueryOptions, fn func(State)) func() {
	c.mu.Lock()
	e := c.entryLocked(key, loader)
	c.nextID++
	o := &observer{
		listener: listener[State]{id: c.nextID, fn: fn},
		enabled:  !opts.Disabled,
	}
	e.observers = append(e.observers, o)
	e.inactiveSince = time.Time{}

	var notices []notice
	if o.enabled && c.staleLocked(e) && !e.state.IsFetching() {
		if _, n, ok := c.startLocked(e); ok {
			notices = append(notices, n)
		}
	}
	if o.enabled && opts.RefetchInterval > 0 && !c.closed {
		pctx, cancel := context.WithCancel(c.ctx)
		o.stop = cancel
		go c.poll(pctx, key, opts.RefetchInterval)
	}
	current := e.state
	c.mu.Unlock()

	deliver(notices...)
	o.notify(current.version, current)

	var once sync.Once
	return func() {
		once.Do(func() { c.unsubscribe(e, o) })
	}
}

func (c *Client) unsubscribe(e *entry, o *observer) {
	c.mu.Lock()
	for i, other := range e.observers {
		if other == o {
			e.observers = append(e.observers[:i], e.observers[i+1:]...)
			break
		}
	}
	if len(e.observers) == 0 {
		e.inactiveSince = time.Now()
	}
	c.mu.Unlock()

	if o.stop != nil {
		o.stop()
	}
}

func (c *Client) poll(ctx context.Context, key Key, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Refetch(key)
		}
	}
}

// Invalidate marks key stale. Observed entries refetch at once; an entry
// with a fetch in flight refetches once more after it lands, however many
// invalidations arrive meanwhile. Unobserved entries are only marked, so
// repeated calls cost nothing until the next Fetch or Ensure.
func (c *Client) Invalidate(key Key) {
	hash := key.Hash()
	c.invalidate(func(e *entry) bool { return e.hash == hash })
}

// InvalidateMatching invalidates every key starting with prefix.
func (c *Client) InvalidateMatching(prefix Key) {
	c.invalidate(func(e *entry) bool { return e.key.HasPrefix(prefix) })
}

func (c *Client) invalidate(match func(*entry) bool) {
	c.mu.Lock()
	var notices []notice
	for _, e := range c.entries {
		if !match(e) {
			continue
		}
		e.state.IsInvalidated = true

		if e.state.IsFetching() {
			e.refetchAfter = true
		} else if c.activeLocked(e) {
			if _, n, ok := c.startLocked(e); ok {
				notices = append(notices, n)
				continue
			}
		}
		notices = append(notices, c.changedLocked(e))
	}
	c.mu.Unlock()

	deliver(notices...)
	c.logger.Debug("invalidated queries", zap.Int("count", len(notices)))
}

// State returns a copy of the entry for key.
func (c *Client) State(key Key) (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.Hash()]
	if !ok {
		return State{}, false
	}
	return e.state, true
}

// Remove drops the entry for key. Its observers stop receiving updates.
func (c *Client) Remove(key Key) {
	c.mu.Lock()
	var stops []context.CancelFunc
	if e, ok := c.entries[key.Hash()]; ok {
		delete(c.entries, e.hash)
		for _, o := range e.observers {
			if o.stop != nil {
				stops = append(stops, o.stop)
			}
		}
	}
	c.mu.Unlock()

	for _, stop := range stops {
		stop()
	}
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Len returns the number of cached entries.
func (c *Client) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Client) entryLocked(key Key, loader Loader) *entry {
	hash := key.Hash()
	e, ok := c.entries[hash]
	if !ok {
		e = &entry{
			key:           key,
			hash:          hash,
			state:         State{Key: key, version: 1},
			inactiveSince: time.Now(),
		}
		c.entries[hash] = e
	}
	if loader != nil {
		e.loader = loader
	}
	return e
}

func (c *Client) staleLocked(e *entry) bool {
	return e.state.IsStale(time.Now(), c.opts.StaleTime)
}

func (c *Client) activeLocked(e *entry) bool {
	for _, o := range e.observers {
		if o.enabled {
			return true
		}
	}
	return false
}

// changedLocked bumps the entry version and captures who must hear about it.
func (c *Client) changedLocked(e *entry) notice {
	e.state.version++
	targets := make([]*observer, len(e.observers))
	copy(targets, e.observers)
	return notice{targets: targets, state: e.state}
}

func flightKey(hash string, gen uint64) string {
	return fmt.Sprintf("%s#%d", hash, gen)
}

// startLocked begins a new fetch for e. The caller must have checked that no
// fetch is running.
func (c *Client) startLocked(e *entry) (<-chan singleflight.Result, notice, bool) {
	if c.closed || e.loader == nil {
		return nil, notice{}, false
	}

	c.nextGen++
	e.gen = c.nextGen
	e.state.FetchStatus = FetchFetching
	if !e.state.HasData() {
		e.state.Status = StatusPending
		e.state.Err = nil
	}
	n := c.changedLocked(e)

	gen, loader := e.gen, e.loader
	ch := c.flights.DoChan(flightKey(e.hash, gen), func() (any, error) {
		return c.run(e, loader)
	})
	c.logger.Debug("query fetch started", zap.String("key", e.hash), zap.Uint64("gen", gen))
	return ch, n, true
}

// joinLocked waits on the running fetch. The flight cannot finish before the
// lock is released, so DoChan always joins and never calls run.
func (c *Client) joinLocked(e *entry) <-chan singleflight.Result {
	loader := e.loader
	return c.flights.DoChan(flightKey(e.hash, e.gen), func() (any, error) {
		return c.run(e, loader)
	})
}

func (c *Client) run(e *entry, loader Loader) (any, error) {
	started := time.Now()
	data, failures, err := c.retry(c.ctx, e.hash, c.opts.Retry, func(ctx context.Context) (any, error) {
		return loader(ctx)
	})
	now := time.Now()

	c.mu.Lock()
	st := &e.state
	st.FetchStatus = FetchIdle
	if err != nil {
		st.Status = StatusError
		st.Err = err
		st.ErrorUpdatedAt = now
		st.FailureCount = failures
	} else {
		st.Status = StatusSuccess
		st.Data = data
		st.Err = nil
		st.UpdatedAt = now
		st.FailureCount = 0
		st.IsInvalidated = false
	}

	var notices []notice
	if e.refetchAfter {
		// Данные получены до инвалидации.
		e.refetchAfter = false
		st.IsInvalidated = true
		if c.activeLocked(e) {
			if _, n, ok := c.startLocked(e); ok {
				notices = append(notices, n)
			}
		}
	}
	if len(notices) == 0 {
		notices = append(notices, c.changedLocked(e))
	}
	c.mu.Unlock()

	deliver(notices...)

	if err != nil {
		c.logger.Warn("query fetch failed",
			zap.String("key", e.hash),
			zap.Int("failures", failures),
			zap.Error(err),
		)
	} else {
		c.logger.Debug("query fetch finished",
			zap.String("key", e.hash),
			zap.Duration("took", now.Sub(started)),
		)
	}
	return data, err
}
