package repo

import (
	"context"
	"errors"

	"github.com/BuzzLyutic/todo-query/internal/model"
)

var (
	ErrorNotFound = errors.New("not found")
)

// TodoRepository определяет интерфейс для работы с todo.
// Реализации: MemoryTodoRepo (по умолчанию) и PostgresTodoRepo.
type TodoRepository interface {
	List(ctx context.Context, filter model.TodoFilter) ([]model.Todo, error)
	Get(ctx context.Context, id int64) (model.Todo, error)
	Create(ctx context.Context, t model.Todo) (model.Todo, error)
	Update(ctx context.Context, p model.TodoPatch) (model.Todo, error)
	Delete(ctx context.Context, id int64) (model.Todo, error)
	SaveIdempotencyKey(ctx context.Context, key string, resourceID int64) error
	GetIdempotencyKey(ctx context.Context, key string) (int64, error)
}
