package query

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMutation_SuccessRunsHookBeforeSettling(t *testing.T) {
	c := newTestClient(t, nil)

	var statusInHook MutationStatus
	var m *Mutation[string, int]
	m = NewMutation(c, func(ctx context.Context, s string) (int, error) {
		return len(s), nil
	}, MutationOptions[string, int]{
		OnSuccess: func(ctx context.Context, n int, s string) {
			statusInHook = m.State().Status
		},
	})

	n, err := m.Do(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, MutationPending, statusInHook)
	assert.Equal(t, MutationSuccess, m.State().Status)
	assert.Equal(t, 5, m.State().Data)
}

func TestMutation_Retry(t *testing.T) {
	errBoom := errors.New("boom")

	tests := []struct {
		name      string
		retry     int
		failFirst int32
		wantCalls int32
		wantErr   bool
	}{
		{"client default retries once", 0, 1, 2, false},
		{"default exhausted", 0, 5, 2, true},
		{"explicit retries", 3, 3, 4, false},
		{"disabled", -1, 1, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, nil)
			var calls atomic.Int32
			var hookErr error
			m := NewMutation(c, func(ctx context.Context, v int) (int, error) {
				if calls.Add(1) <= tt.failFirst {
					return 0, errBoom
				}
				return v * 2, nil
			}, MutationOptions[int, int]{
				Retry:   tt.retry,
				OnError: func(ctx context.Context, err error, v int) { hookErr = err },
			})

			_, err := m.Do(context.Background(), 21)
			assert.Equal(t, tt.wantCalls, calls.Load())
			if tt.wantErr {
				assert.ErrorIs(t, err, errBoom)
				assert.ErrorIs(t, hookErr, errBoom)
				assert.Equal(t, MutationError, m.State().Status)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, 42, m.State().Data)
		})
	}
}

func TestMutation_LatestInvocationOwnsState(t *testing.T) {
	c := newTestClient(t, nil)
	slow := make(chan struct{})
	m := NewMutation(c, func(ctx context.Context, v string) (string, error) {
		if v == "slow" {
			<-slow
		}
		return v, nil
	}, MutationOptions[string, string]{})

	m.Mutate("slow")
	require.Eventually(t, func() bool { return m.State().IsPending() }, waitFor, time.Millisecond)
	m.Mutate("fast")
	require.Eventually(t, func() bool { return m.State().Status == MutationSuccess }, waitFor, time.Millisecond)
	close(slow)
	m.Wait()

	assert.Equal(t, "fast", m.State().Data)
}

func TestMutation_WaitCoversCallsMadeWhileWaiting(t *testing.T) {
	c := newTestClient(t, nil)
	gates := map[string]chan struct{}{"a": make(chan struct{}), "b": make(chan struct{})}
	var finished atomic.Int32
	m := NewMutation(c, func(ctx context.Context, v string) (string, error) {
		<-gates[v]
		finished.Add(1)
		return v, nil
	}, MutationOptions[string, string]{})

	m.Mutate("a")
	waited := make(chan struct{})
	go func() {
		m.Wait()
		close(waited)
	}()

	m.Mutate("b")
	close(gates["a"])

	select {
	case <-waited:
		t.Fatal("Wait returned with a mutation still running")
	case <-time.After(30 * time.Millisecond):
	}

	close(gates["b"])
	select {
	case <-waited:
	case <-time.After(waitFor):
		t.Fatal("Wait did not return")
	}
	assert.Equal(t, int32(2), finished.Load())
}

func TestMutation_SubscribeAndReset(t *testing.T) {
	c := newTestClient(t, nil)
	m := NewMutation(c, func(ctx context.Context, v int) (int, error) { return v, nil }, MutationOptions[int, int]{})

	var mu sync.Mutex
	var seen []MutationStatus
	unsubscribe := m.Subscribe(func(s MutationState[int]) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, s.Status)
	})
	defer unsubscribe()

	_, err := m.Do(context.Background(), 1)
	require.NoError(t, err)
	m.Reset()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []MutationStatus{MutationIdle, MutationPending, MutationSuccess, MutationIdle}, seen)
	assert.Equal(t, MutationIdle, m.State().Status)
}

func TestMutation_InvalidatesQueriesOnSuccess(t *testing.T) {
	c := newTestClient(t, nil)
	var fetches atomic.Int32
	unsubscribe := c.Subscribe(Key{"todos"}, func(ctx context.Context) (any, error) {
		return fetches.Add(1), nil
	}, QueryOptions{}, func(State) {})
	defer unsubscribe()
	require.Eventually(t, func() bool { return fetches.Load() == 1 }, waitFor, time.Millisecond)

	m := NewMutation(c, func(ctx context.Context, text string) (string, error) { return text, nil }, MutationOptions[string, string]{
		OnSuccess: func(ctx context.Context, _ string, _ string) { c.InvalidateMatching(Key{"todos"}) },
	})
	_, err := m.Do(context.Background(), "new todo")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return fetches.Load() == 2 }, waitFor, time.Millisecond)
}
