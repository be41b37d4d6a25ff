package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/todo-query/internal/config"
	"github.com/BuzzLyutic/todo-query/internal/model"
	"github.com/BuzzLyutic/todo-query/internal/repo"
	"github.com/BuzzLyutic/todo-query/internal/sdk"
	"github.com/BuzzLyutic/todo-query/internal/server"
)

func setup(t *testing.T) config.ClientConfig {
	t.Helper()

	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(server.NewRouter(server.Deps{
		Repo:   repo.NewMemoryTodoRepo(model.SeedTodos()),
		Now:    func() time.Time { return fixed },
		Logger: zap.NewNop(),
	}))
	t.Cleanup(srv.Close)

	cfg := config.DefaultClient()
	cfg.APIBase = srv.URL
	cfg.Persist.Kind = "file"
	cfg.Persist.Path = filepath.Join(t.TempDir(), "cache.json")
	return cfg
}

func run(t *testing.T, cfg config.ClientConfig, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := Run(ctx, Options{
		Config:   cfg,
		Args:     args,
		Out:      &out,
		Interval: 20 * time.Millisecond,
		Ticks:    2,
	})
	return out.String(), err
}

func TestRun_List(t *testing.T) {
	cfg := setup(t)

	out, err := run(t, cfg, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Todos")
	assert.Contains(t, out, "#1 [x] Learn SvelteKit")
	assert.Contains(t, out, "#2 [ ] Learn TanStack Query")

	out, err = run(t, cfg, "list", "completed")
	require.NoError(t, err)
	assert.Contains(t, out, "Completed todos")
	assert.NotContains(t, out, "TanStack")
}

func TestRun_MutationsAndPersistedCache(t *testing.T) {
	cfg := setup(t)

	out, err := run(t, cfg, "add", "Buy", "milk")
	require.NoError(t, err)
	assert.Contains(t, out, "#3 [ ] Buy milk")

	out, err = run(t, cfg, "done", "#2")
	require.NoError(t, err)
	assert.Contains(t, out, "#2 [x] Learn TanStack Query")

	out, err = run(t, cfg, "rename", "3", "Buy", "oat", "milk")
	require.NoError(t, err)
	assert.Contains(t, out, "#3 [ ] Buy oat milk")

	out, err = run(t, cfg, "rm", "1")
	require.NoError(t, err)
	assert.NotContains(t, out, "Learn SvelteKit")

	// list is served from the persisted snapshot written by rm.
	out, err = run(t, cfg, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Buy oat milk")
	assert.NotContains(t, out, "Learn SvelteKit")
}

func TestRun_NotFound(t *testing.T) {
	cfg := setup(t)

	out, err := run(t, cfg, "rm", "999")
	require.Error(t, err)
	assert.ErrorIs(t, err, sdk.ErrNotFound)
	assert.Contains(t, out, "delete failed")
}

func TestRun_Usage(t *testing.T) {
	cfg := setup(t)

	tests := []struct {
		name string
		args []string
	}{
		{"no command", nil},
		{"unknown command", []string{"frobnicate"}},
		{"bad id", []string{"done", "abc"}},
		{"missing text", []string{"add", "  "}},
		{"bad status", []string{"list", "someday"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, cfg, tt.args...)
			assert.ErrorIs(t, err, ErrUsage)
		})
	}
}

func TestRun_Clock(t *testing.T) {
	cfg := setup(t)

	out, err := run(t, cfg, "clock")
	require.NoError(t, err)
	assert.Contains(t, out, "Server time 2024-05-01T12:00:00Z")
}

func TestRun_Watch(t *testing.T) {
	cfg := setup(t)

	out, err := run(t, cfg, "watch")
	require.NoError(t, err)
	assert.Contains(t, out, "Loading...")
	assert.Contains(t, out, "Learn TanStack Query")
}

func TestRun_Unreachable(t *testing.T) {
	cfg := setup(t)
	cfg.APIBase = "http://127.0.0.1:1"
	cfg.Retry = 0
	cfg.Persist.Kind = ""

	out, err := run(t, cfg, "list")
	require.Error(t, err)
	assert.ErrorIs(t, err, sdk.ErrTransport)
	assert.Contains(t, out, "error:")
}
