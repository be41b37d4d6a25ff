package query

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

type MutationStatus int

const (
	MutationIdle MutationStatus = iota
	MutationPending
	MutationSuccess
	MutationError
)

func (s MutationStatus) String() string {
	switch s {
	case MutationIdle:
		return "idle"
	case MutationPending:
		return "pending"
	case MutationSuccess:
		return "success"
	case MutationError:
		return "error"
	}
	return "unknown"
}

type MutationState[R any] struct {
	Status       MutationStatus
	Data         R
	Err          error
	FailureCount int
}

func (s MutationState[R]) IsPending() bool {
	return s.Status == MutationPending
}

type MutationOptions[V, R any] struct {
	// Retry overrides the client's MutationRetry. Negative disables retries.
	Retry int
	// OnSuccess runs before the mutation reports success, so invalidations
	// it triggers are already visible to observers of the success state.
	OnSuccess func(ctx context.Context, data R, vars V)
	OnError   func(ctx context.Context, err error, vars V)
}

// Mutation tracks a write. The latest invocation owns the reported state.
type Mutation[V, R any] struct {
	client *Client
	fn     func(ctx context.Context, vars V) (R, error)
	opts   MutationOptions[V, R]

	mu        sync.Mutex
	state     MutationState[R]
	seq       uint64
	version   uint64
	nextID    uint64
	listeners []*listener[MutationState[R]]

	// running counts Mutate calls that have not settled; settled is
	// broadcast when it drops to zero.
	running int
	settled *sync.Cond
}

func NewMutation[V, R any](c *Client, fn func(ctx context.Context, vars V) (R, error), opts MutationOptions[V, R]) *Mutation[V, R] {
	m := &Mutation[V, R]{client: c, fn: fn, opts: opts, version: 1}
	m.settled = sync.NewCond(&m.mu)
	return m
}

// Mutate runs the mutation in the background on the client's context.
func (m *Mutation[V, R]) Mutate(vars V) {
	m.mu.Lock()
	m.running++
	m.mu.Unlock()

	go func() {
		defer m.done()
		_, _ = m.Do(m.client.ctx, vars)
	}()
}

func (m *Mutation[V, R]) done() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running--
	if m.running == 0 {
		m.settled.Broadcast()
	}
}

// Do runs the mutation and waits for it.
func (m *Mutation[V, R]) Do(ctx context.Context, vars V) (R, error) {
	m.mu.Lock()
	m.seq++
	seq := m.seq
	m.mu.Unlock()
	m.set(seq, MutationState[R]{Status: MutationPending})

	retries := m.opts.Retry
	switch {
	case retries == 0:
		retries = m.client.opts.MutationRetry
	case retries < 0:
		retries = 0
	}

	v, failures, err := m.client.retry(ctx, "mutation", retries, func(ctx context.Context) (any, error) {
		return m.fn(ctx, vars)
	})

	var data R
	if err != nil {
		m.client.logger.Warn("mutation failed", zap.Int("failures", failures), zap.Error(err))
		if m.opts.OnError != nil {
			m.opts.OnError(ctx, err, vars)
		}
		m.set(seq, MutationState[R]{Status: MutationError, Err: err, FailureCount: failures})
		return data, err
	}

	data, _ = v.(R)
	if m.opts.OnSuccess != nil {
		m.opts.OnSuccess(ctx, data, vars)
	}
	m.set(seq, MutationState[R]{Status: MutationSuccess, Data: data, FailureCount: failures})
	return data, nil
}

func (m *Mutation[V, R]) set(seq uint64, st MutationState[R]) {
	m.mu.Lock()
	if seq != m.seq {
		m.mu.Unlock()
		return
	}
	m.state = st
	m.version++
	version := m.version
	targets := make([]*listener[MutationState[R]], len(m.listeners))
	copy(targets, m.listeners)
	m.mu.Unlock()

	for _, l := range targets {
		l.notify(version, st)
	}
}

func (m *Mutation[V, R]) State() MutationState[R] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Reset returns the mutation to idle. Running invocations no longer report.
func (m *Mutation[V, R]) Reset() {
	m.mu.Lock()
	m.seq++
	seq := m.seq
	m.mu.Unlock()
	m.set(seq, MutationState[R]{})
}

// Subscribe calls fn with the current state and on every change.
func (m *Mutation[V, R]) Subscribe(fn func(MutationState[R])) func() {
	m.mu.Lock()
	m.nextID++
	l := &listener[MutationState[R]]{id: m.nextID, fn: fn}
	m.listeners = append(m.listeners, l)
	version, st := m.version, m.state
	m.mu.Unlock()

	l.notify(version, st)

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			for i, other := range m.listeners {
				if other == l {
					m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Wait blocks until every Mutate call has settled, including calls made
// while it waits.
func (m *Mutation[V, R]) Wait() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for m.running > 0 {
		m.settled.Wait()
	}
}
