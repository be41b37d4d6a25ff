package query

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Result is the typed view of a State.
type Result[T any] struct {
	Status        Status
	FetchStatus   FetchStatus
	Data          T
	Err           error
	FailureCount  int
	UpdatedAt     time.Time
	IsInvalidated bool
}

func (r Result[T]) HasData() bool {
	return !r.UpdatedAt.IsZero()
}

func (r Result[T]) IsLoading() bool {
	return r.FetchStatus == FetchFetching && !r.HasData()
}

func (r Result[T]) IsFetching() bool {
	return r.FetchStatus == FetchFetching
}

// Query binds a key to a typed fetch function.
type Query[T any] struct {
	client *Client
	key    Key
	fn     func(ctx context.Context) (T, error)
	opts   QueryOptions
}

func NewQuery[T any](c *Client, key Key, fn func(ctx context.Context) (T, error), opts QueryOptions) *Query[T] {
	return &Query[T]{client: c, key: key, fn: fn, opts: opts}
}

func (q *Query[T]) Key() Key {
	return q.key
}

func (q *Query[T]) loader() Loader {
	return func(ctx context.Context) (any, error) {
		return q.fn(ctx)
	}
}

func (q *Query[T]) Fetch(ctx context.Context) (T, error) {
	v, err := q.client.Fetch(ctx, q.key, q.loader())
	if err != nil {
		var zero T
		return zero, err
	}
	return decode[T](v)
}

func (q *Query[T]) Prefetch(ctx context.Context) error {
	_, err := q.client.Fetch(ctx, q.key, q.loader())
	return err
}

// Ensure starts a background fetch when needed unless the query is disabled.
func (q *Query[T]) Ensure() Result[T] {
	if q.opts.Disabled {
		return q.Result()
	}
	return toResult[T](q.client.Ensure(q.key, q.loader()))
}

func (q *Query[T]) Result() Result[T] {
	st, ok := q.client.State(q.key)
	if !ok {
		return Result[T]{}
	}
	return toResult[T](st)
}

func (q *Query[T]) Subscribe(fn func(Result[T])) func() {
	return q.client.Subscribe(q.key, q.loader(), q.opts, func(st State) {
		fn(toResult[T](st))
	})
}

func (q *Query[T]) Invalidate() {
	q.client.Invalidate(q.key)
}

func (q *Query[T]) Refetch() {
	q.client.Refetch(q.key)
}

func toResult[T any](st State) Result[T] {
	r := Result[T]{
		Status:        st.Status,
		FetchStatus:   st.FetchStatus,
		Err:           st.Err,
		FailureCount:  st.FailureCount,
		UpdatedAt:     st.UpdatedAt,
		IsInvalidated: st.IsInvalidated,
	}
	data, err := decode[T](st.Data)
	if err != nil && r.Err == nil {
		r.Err = err
	}
	r.Data = data
	return r
}

func decode[T any](v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	if d, ok := v.(T); ok {
		return d, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		var out T
		if err := json.Unmarshal(raw, &out); err != nil {
			return zero, fmt.Errorf("decode cached data: %w", err)
		}
		return out, nil
	}
	return zero, fmt.Errorf("cached data has type %T, want %T", v, zero)
}
