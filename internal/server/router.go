// Package server собирает HTTP-роутер mock API.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/todo-query/internal/handler"
	"github.com/BuzzLyutic/todo-query/internal/repo"
	"github.com/BuzzLyutic/todo-query/internal/service"
	"github.com/BuzzLyutic/todo-query/pkg/respond"
)

type Deps struct {
	Repo    repo.TodoRepository
	Latency time.Duration
	Now     func() time.Time
	Logger  *zap.Logger
}

func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}

	todos := handler.NewTodoHandler(service.NewTodoService(d.Repo, d.Latency), d.Logger)
	clock := handler.NewTimeHandler(d.Now)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(AccessLog(d.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respond.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/todos", func(r chi.Router) {
			r.Get("/", todos.List)
			r.Post("/", todos.Create)
			r.Put("/", todos.Update)
			r.Delete("/", todos.Delete)
		})
		r.Get("/time", clock.Now)
	})

	return r
}
