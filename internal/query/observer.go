package query

import (
	"context"
	"sync"
)

// listener delivers versioned states to one callback. Deliveries to the
// same listener never overlap: a state arriving mid-delivery is parked and
// the delivering goroutine hands over the newest one when fn returns.
// Versions at or below the last delivered or parked one are dropped.
type listener[S any] struct {
	id uint64
	fn func(S)

	mu         sync.Mutex
	seen       uint64
	delivering bool
	parked     *S
	parkedAt   uint64
}

func (l *listener[S]) notify(version uint64, s S) {
	l.mu.Lock()
	if version <= l.seen || version <= l.parkedAt {
		l.mu.Unlock()
		return
	}
	if l.delivering {
		l.parked, l.parkedAt = &s, version
		l.mu.Unlock()
		return
	}
	l.delivering = true
	l.seen = version
	l.mu.Unlock()

	for {
		l.fn(s)

		l.mu.Lock()
		if l.parked == nil {
			l.delivering = false
			l.mu.Unlock()
			return
		}
		s, l.seen = *l.parked, l.parkedAt
		l.parked = nil
		l.mu.Unlock()
	}
}

type observer struct {
	listener[State]
	enabled bool
	stop    context.CancelFunc
}

// notice is a state change captured under the client lock and delivered
// after it is released.
type notice struct {
	targets []*observer
	state   State
}

func deliver(notices ...notice) {
	for _, n := range notices {
		for _, o := range n.targets {
			o.notify(n.state.version, n.state)
		}
	}
}
