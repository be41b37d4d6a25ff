package query

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

type DehydratedQuery struct {
	Key       Key             `json:"key"`
	Data      json.RawMessage `json:"data"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// DehydratedState is a JSON snapshot of the successful entries of a Client.
type DehydratedState struct {
	Queries []DehydratedQuery `json:"queries"`
}

// Persister stores snapshots between process runs.
type Persister interface {
	Persist(ctx context.Context, state DehydratedState) error
	Restore(ctx context.Context) (DehydratedState, error)
}

// Dehydrate snapshots every entry that holds data, ordered by key.
func (c *Client) Dehydrate() (DehydratedState, error) {
	type item struct {
		key     Key
		hash    string
		data    any
		updated time.Time
	}

	c.mu.Lock()
	items := make([]item, 0, len(c.entries))
	for _, e := range c.entries {
		if !e.state.HasData() {
			continue
		}
		items = append(items, item{key: e.key, hash: e.hash, data: e.state.Data, updated: e.state.UpdatedAt})
	}
	c.mu.Unlock()

	sort.Slice(items, func(i, j int) bool { return items[i].hash < items[j].hash })

	out := DehydratedState{Queries: make([]DehydratedQuery, 0, len(items))}
	for _, it := range items {
		raw, err := json.Marshal(it.data)
		if err != nil {
			return DehydratedState{}, fmt.Errorf("dehydrate %s: %w", it.hash, err)
		}
		out.Queries = append(out.Queries, DehydratedQuery{Key: it.key, Data: raw, UpdatedAt: it.updated})
	}
	return out, nil
}

// Hydrate seeds entries from a snapshot. Entries that already hold newer data
// or are fetching are left alone.
func (c *Client) Hydrate(s DehydratedState) {
	c.mu.Lock()
	var notices []notice
	for _, q := range s.Queries {
		if e, ok := c.entries[q.Key.Hash()]; ok {
			if e.state.IsFetching() || (e.state.HasData() && !e.state.UpdatedAt.Before(q.UpdatedAt)) {
				continue
			}
		}
		e := c.entryLocked(q.Key, nil)
		e.state.Status = StatusSuccess
		e.state.Data = append(json.RawMessage(nil), q.Data...)
		e.state.Err = nil
		e.state.FailureCount = 0
		e.state.UpdatedAt = q.UpdatedAt
		e.state.IsInvalidated = false
		notices = append(notices, c.changedLocked(e))
	}
	c.mu.Unlock()

	deliver(notices...)
}

// PersistTo writes a snapshot of the client to p.
func (c *Client) PersistTo(ctx context.Context, p Persister) error {
	state, err := c.Dehydrate()
	if err != nil {
		return err
	}
	if err := p.Persist(ctx, state); err != nil {
		return fmt.Errorf("persist query cache: %w", err)
	}
	c.logger.Debug("query cache persisted", zap.Int("queries", len(state.Queries)))
	return nil
}

// RestoreFrom hydrates the client from p, skipping snapshots older than
// PersistMaxAge.
func (c *Client) RestoreFrom(ctx context.Context, p Persister) error {
	state, err := p.Restore(ctx)
	if err != nil {
		return fmt.Errorf("restore query cache: %w", err)
	}

	if c.opts.PersistMaxAge > 0 {
		cutoff := time.Now().Add(-c.opts.PersistMaxAge)
		kept := state.Queries[:0]
		for _, q := range state.Queries {
			if q.UpdatedAt.After(cutoff) {
				kept = append(kept, q)
			}
		}
		state.Queries = kept
	}

	c.Hydrate(state)
	c.logger.Debug("query cache restored", zap.Int("queries", len(state.Queries)))
	return nil
}
