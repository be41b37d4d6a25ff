package persist

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/todo-query/internal/config"
	"github.com/BuzzLyutic/todo-query/internal/query"
)

func snapshot() query.DehydratedState {
	return query.DehydratedState{Queries: []query.DehydratedQuery{{
		Key:       query.Key{"todos", "all"},
		Data:      []byte(`[{"id":1,"text":"Learn SvelteKit","completed":true}]`),
		UpdatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}}}
}

func TestFilePersister(t *testing.T) {
	ctx := context.Background()

	t.Run("missing file restores empty state", func(t *testing.T) {
		p := NewFilePersister(filepath.Join(t.TempDir(), "none.json"), zap.NewNop())
		state, err := p.Restore(ctx)
		require.NoError(t, err)
		assert.Empty(t, state.Queries)
	})

	t.Run("round trip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "cache.json")
		p := NewFilePersister(path, zap.NewNop())

		require.NoError(t, p.Persist(ctx, snapshot()))
		state, err := p.Restore(ctx)
		require.NoError(t, err)

		require.Len(t, state.Queries, 1)
		got := state.Queries[0]
		assert.Equal(t, query.Key{"todos", "all"}.Hash(), got.Key.Hash())
		assert.JSONEq(t, string(snapshot().Queries[0].Data), string(got.Data))
		assert.True(t, got.UpdatedAt.Equal(snapshot().Queries[0].UpdatedAt))
	})

	t.Run("corrupt file is discarded", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cache.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

		state, err := NewFilePersister(path, nil).Restore(ctx)
		require.NoError(t, err)
		assert.Empty(t, state.Queries)
	})
}

func TestFilePersister_WithClient(t *testing.T) {
	ctx := context.Background()
	p := NewFilePersister(filepath.Join(t.TempDir(), "cache.json"), zap.NewNop())

	first := query.New(query.DefaultOptions())
	defer first.Close()
	_, err := first.Fetch(ctx, query.Key{"time"}, func(context.Context) (any, error) {
		return map[string]string{"time": "2024-05-01T12:00:00Z"}, nil
	})
	require.NoError(t, err)
	require.NoError(t, first.PersistTo(ctx, p))

	second := query.New(query.DefaultOptions())
	defer second.Close()
	require.NoError(t, second.RestoreFrom(ctx, p))

	q := query.NewQuery(second, query.Key{"time"}, func(context.Context) (map[string]string, error) {
		return nil, nil
	}, query.QueryOptions{Disabled: true})
	assert.Equal(t, "2024-05-01T12:00:00Z", q.Result().Data["time"])
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	p, closeFn, err := Open(ctx, config.PersistConfig{}, nil)
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.NoError(t, closeFn())

	p, _, err = Open(ctx, config.PersistConfig{Kind: "file", Path: filepath.Join(t.TempDir(), "c.json")}, nil)
	require.NoError(t, err)
	assert.IsType(t, &FilePersister{}, p)

	_, _, err = Open(ctx, config.PersistConfig{Kind: "s3"}, nil)
	assert.Error(t, err)
}
