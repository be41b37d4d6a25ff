package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/todo-query/internal/model"
	"github.com/BuzzLyutic/todo-query/internal/repo"
	"github.com/BuzzLyutic/todo-query/internal/service"
	"github.com/BuzzLyutic/todo-query/pkg/respond"
)

func setupHandler(t *testing.T) *TodoHandler {
	t.Helper()

	todoRepo := repo.NewMemoryTodoRepo(model.SeedTodos())
	todoService := service.NewTodoService(todoRepo, 0)
	return NewTodoHandler(todoService, zap.NewNop())
}

func doJSON(t *testing.T, fn http.HandlerFunc, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	fn(w, req)
	return w
}

func decodeTodos(t *testing.T, w *httptest.ResponseRecorder) []model.Todo {
	t.Helper()
	var todos []model.Todo
	require.NoError(t, json.NewDecoder(w.Body).Decode(&todos))
	return todos
}

func TestTodoHandler_List(t *testing.T) {
	handler := setupHandler(t)

	tests := []struct {
		name      string
		target    string
		wantTexts []string
	}{
		{
			name:      "no params returns seeds",
			target:    "/api/todos",
			wantTexts: []string{"Learn SvelteKit", "Learn TanStack Query"},
		},
		{
			name:      "status=all",
			target:    "/api/todos?status=all",
			wantTexts: []string{"Learn SvelteKit", "Learn TanStack Query"},
		},
		{
			name:      "status=completed",
			target:    "/api/todos?status=completed",
			wantTexts: []string{"Learn SvelteKit"},
		},
		{
			name:      "unknown status means incomplete",
			target:    "/api/todos?status=pending",
			wantTexts: []string{"Learn TanStack Query"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, handler.List, http.MethodGet, tt.target, nil)
			assert.Equal(t, http.StatusOK, w.Code)

			var texts []string
			for _, todo := range decodeTodos(t, w) {
				texts = append(texts, todo.Text)
			}
			assert.Equal(t, tt.wantTexts, texts)
		})
	}
}

func TestTodoHandler_Create(t *testing.T) {
	handler := setupHandler(t)

	tests := []struct {
		name          string
		body          interface{}
		idempKey      string
		wantCode      int
		checkResponse func(*testing.T, *httptest.ResponseRecorder)
	}{
		{
			name:     "successful creation",
			body:     model.CreateTodo{Text: "X"},
			wantCode: http.StatusCreated,
			checkResponse: func(t *testing.T, w *httptest.ResponseRecorder) {
				var todo model.Todo
				require.NoError(t, json.NewDecoder(w.Body).Decode(&todo))
				assert.Greater(t, todo.ID, int64(2))
				assert.Equal(t, "X", todo.Text)
				assert.False(t, todo.Completed)
			},
		},
		{
			name:     "empty body",
			body:     nil,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "validation error",
			body:     model.CreateTodo{Text: ""},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "with idempotency key",
			body:     model.CreateTodo{Text: "Idempotent"},
			idempKey: "test-key-123",
			wantCode: http.StatusCreated,
			checkResponse: func(t *testing.T, w *httptest.ResponseRecorder) {
				// Send again with same key
				body, _ := json.Marshal(model.CreateTodo{Text: "Idempotent"})
				req := httptest.NewRequest(http.MethodPost, "/api/todos", bytes.NewReader(body))
				req.Header.Set("Idempotency-Key", "test-key-123")

				w2 := httptest.NewRecorder()
				handler.Create(w2, req)

				var todo1, todo2 model.Todo
				json.NewDecoder(w.Body).Decode(&todo1)
				json.NewDecoder(w2.Body).Decode(&todo2)

				assert.Equal(t, todo1.ID, todo2.ID, "should return same todo")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body []byte
			if tt.body != nil {
				body, _ = json.Marshal(tt.body)
			}

			req := httptest.NewRequest(http.MethodPost, "/api/todos", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			if tt.idempKey != "" {
				req.Header.Set("Idempotency-Key", tt.idempKey)
			}

			w := httptest.NewRecorder()
			handler.Create(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.checkResponse != nil {
				tt.checkResponse(t, w)
			}
		})
	}
}

func TestTodoHandler_CreateThenList(t *testing.T) {
	handler := setupHandler(t)

	before := decodeTodos(t, doJSON(t, handler.List, http.MethodGet, "/api/todos", nil))

	w := doJSON(t, handler.Create, http.MethodPost, "/api/todos", model.CreateTodo{Text: "X"})
	require.Equal(t, http.StatusCreated, w.Code)

	after := decodeTodos(t, doJSON(t, handler.List, http.MethodGet, "/api/todos", nil))
	require.Len(t, after, len(before)+1)

	created := after[len(after)-1]
	assert.Equal(t, "X", created.Text)
	assert.False(t, created.Completed)
	for _, prior := range before {
		assert.NotEqual(t, prior.ID, created.ID)
	}
}

func TestTodoHandler_Update(t *testing.T) {
	handler := setupHandler(t)

	t.Run("successful update", func(t *testing.T) {
		w := doJSON(t, handler.Update, http.MethodPut, "/api/todos",
			map[string]interface{}{"id": 2, "completed": true})
		assert.Equal(t, http.StatusOK, w.Code)

		var updated model.Todo
		require.NoError(t, json.NewDecoder(w.Body).Decode(&updated))
		assert.Equal(t, model.Todo{ID: 2, Text: "Learn TanStack Query", Completed: true}, updated)
	})

	t.Run("unknown id", func(t *testing.T) {
		w := doJSON(t, handler.Update, http.MethodPut, "/api/todos",
			map[string]interface{}{"id": 999, "completed": true})
		assert.Equal(t, http.StatusNotFound, w.Code)

		var body respond.ErrorBody
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "Todo not found", body.Error)
	})

	t.Run("invalid json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/api/todos", bytes.NewReader([]byte("{")))
		w := httptest.NewRecorder()
		handler.Update(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestTodoHandler_Delete(t *testing.T) {
	handler := setupHandler(t)

	t.Run("successful delete", func(t *testing.T) {
		w := doJSON(t, handler.Delete, http.MethodDelete, "/api/todos", model.DeleteTodo{ID: 1})
		assert.Equal(t, http.StatusOK, w.Code)

		var deleted model.Todo
		require.NoError(t, json.NewDecoder(w.Body).Decode(&deleted))
		assert.Equal(t, "Learn SvelteKit", deleted.Text)

		todos := decodeTodos(t, doJSON(t, handler.List, http.MethodGet, "/api/todos", nil))
		assert.Len(t, todos, 1)
	})

	t.Run("delete non-existing", func(t *testing.T) {
		w := doJSON(t, handler.Delete, http.MethodDelete, "/api/todos", model.DeleteTodo{ID: 99999})
		assert.Equal(t, http.StatusNotFound, w.Code)

		todos := decodeTodos(t, doJSON(t, handler.List, http.MethodGet, "/api/todos", nil))
		assert.Len(t, todos, 1, "list must stay unchanged")
	})
}

func TestTimeHandler_Now(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	handler := NewTimeHandler(func() time.Time { return fixed })

	w := doJSON(t, handler.Now, http.MethodGet, "/api/time", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var body model.ServerTime
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.True(t, fixed.Equal(body.Time))
}
