package repo

import (
	"context"
	"sync"

	"github.com/BuzzLyutic/todo-query/internal/model"
)

// MemoryTodoRepo хранит todo в памяти процесса. Состояние сбрасывается при
// перезапуске. Каждая запись выполняется под одним мьютексом.
type MemoryTodoRepo struct {
	mu     sync.RWMutex
	todos  []model.Todo
	nextID int64
	keys   map[string]int64
}

// NewMemoryTodoRepo создает репозиторий, заполненный seed-записями.
func NewMemoryTodoRepo(seed []model.Todo) *MemoryTodoRepo {
	r := &MemoryTodoRepo{
		todos:  make([]model.Todo, 0, len(seed)),
		nextID: 1,
		keys:   make(map[string]int64),
	}
	for _, t := range seed {
		r.todos = append(r.todos, t)
		if t.ID >= r.nextID {
			r.nextID = t.ID + 1
		}
	}
	return r
}

func (r *MemoryTodoRepo) List(_ context.Context, filter model.TodoFilter) ([]model.Todo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	todos := make([]model.Todo, 0, len(r.todos))
	for _, t := range r.todos {
		if filter.Matches(t) {
			todos = append(todos, t)
		}
	}
	return todos, nil
}

func (r *MemoryTodoRepo) Get(_ context.Context, id int64) (model.Todo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i := r.indexOf(id)
	if i < 0 {
		return model.Todo{}, ErrorNotFound
	}
	return r.todos[i], nil
}

func (r *MemoryTodoRepo) Create(_ context.Context, t model.Todo) (model.Todo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t.ID = r.nextID
	r.nextID++
	r.todos = append(r.todos, t)
	return t, nil
}

func (r *MemoryTodoRepo) Update(_ context.Context, p model.TodoPatch) (model.Todo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(p.ID)
	if i < 0 {
		return model.Todo{}, ErrorNotFound
	}
	r.todos[i] = p.Apply(r.todos[i])
	return r.todos[i], nil
}

func (r *MemoryTodoRepo) Delete(_ context.Context, id int64) (model.Todo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return model.Todo{}, ErrorNotFound
	}
	deleted := r.todos[i]
	r.todos = append(r.todos[:i], r.todos[i+1:]...)
	return deleted, nil
}

func (r *MemoryTodoRepo) SaveIdempotencyKey(_ context.Context, key string, resourceID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.keys[key]; !ok { // как ON CONFLICT DO NOTHING
		r.keys[key] = resourceID
	}
	return nil
}

func (r *MemoryTodoRepo) GetIdempotencyKey(_ context.Context, key string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.keys[key]
	if !ok {
		return 0, ErrorNotFound
	}
	return id, nil
}

// indexOf вызывается под мьютексом.
func (r *MemoryTodoRepo) indexOf(id int64) int {
	for i, t := range r.todos {
		if t.ID == id {
			return i
		}
	}
	return -1
}
