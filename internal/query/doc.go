// Package query is an in-process cache for async resources.
//
// A Client holds one entry per query key. Keys are ordered tuples compared
// structurally: two keys with equal components address the same entry no
// matter how they were built. Each entry moves through
//
//	idle -> fetching -> success | error
//
// and goes back to fetching when it is invalidated or its data outlives the
// stale window. Fetches for one key never overlap: callers that arrive while
// a fetch is running join it through a singleflight group.
//
// Failed fetches are retried with exponential backoff before the entry is
// marked failed. Entries nobody observes are evicted after the GC window.
//
// Mutation wraps a write operation with its own pending/error state; its
// OnSuccess hook is where callers invalidate the queries the write affects.
//
// Dehydrate and Hydrate move successful entries between clients (or through
// a Persister) as JSON.
package query
