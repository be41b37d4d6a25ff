package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/BuzzLyutic/todo-query/internal/model"
	"github.com/BuzzLyutic/todo-query/internal/repo"
)

var (
	ErrValidation = errors.New("validation error")
)

type TodoService struct {
	repo    repo.TodoRepository
	latency time.Duration
}

// NewTodoService создает сервис. latency добавляется к каждой операции,
// чтобы клиент видел состояния загрузки как при реальной сети.
func NewTodoService(repo repo.TodoRepository, latency time.Duration) *TodoService {
	return &TodoService{repo: repo, latency: latency}
}

func (s *TodoService) List(ctx context.Context, filter model.TodoFilter) ([]model.Todo, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, filter)
}

func (s *TodoService) Create(ctx context.Context, in model.CreateTodo, idempKey string) (model.Todo, error) {
	if err := validateText(in.Text); err != nil { // Валидация введенных данных
		return model.Todo{}, err
	}
	if err := s.wait(ctx); err != nil {
		return model.Todo{}, err
	}

	if idempKey != "" { // Если ключ уже использован, возвращаем ранее созданный todo
		if existingID, err := s.repo.GetIdempotencyKey(ctx, idempKey); err == nil {
			return s.repo.Get(ctx, existingID)
		}
	}

	todo, err := s.repo.Create(ctx, model.Todo{Text: in.Text})
	if err != nil {
		return todo, err
	}

	if idempKey != "" {
		if err := s.repo.SaveIdempotencyKey(ctx, idempKey, todo.ID); err != nil {
			return todo, err
		}
	}
	return todo, nil
}

func (s *TodoService) Update(ctx context.Context, p model.TodoPatch) (model.Todo, error) {
	if p.Text != nil {
		if err := validateText(*p.Text); err != nil {
			return model.Todo{}, err
		}
	}
	if err := s.wait(ctx); err != nil {
		return model.Todo{}, err
	}
	return s.repo.Update(ctx, p)
}

func (s *TodoService) Delete(ctx context.Context, id int64) (model.Todo, error) {
	if err := s.wait(ctx); err != nil {
		return model.Todo{}, err
	}
	return s.repo.Delete(ctx, id)
}

// wait эмулирует сетевую задержку. Отмена контекста прерывает ожидание.
func (s *TodoService) wait(ctx context.Context) error {
	if s.latency <= 0 {
		return nil
	}
	timer := time.NewTimer(s.latency)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func validateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrValidation
	}
	return nil
}
