// Package store проецирует кэш запросов в состояние списка задач.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/todo-query/internal/model"
	"github.com/BuzzLyutic/todo-query/internal/query"
)

// TodoAPI is the subset of the resource client the store needs.
type TodoAPI interface {
	List(ctx context.Context, filter model.TodoFilter) ([]model.Todo, error)
	Create(ctx context.Context, in model.CreateTodo, idempotencyKey string) (model.Todo, error)
	Update(ctx context.Context, patch model.TodoPatch) (model.Todo, error)
	Delete(ctx context.Context, id int64) (model.Todo, error)
}

type Options struct {
	Filter          model.TodoFilter
	Environment     Environment
	RefetchInterval time.Duration
	Logger          *zap.Logger
}

// Snapshot is what a view renders.
type Snapshot struct {
	Todos      []model.Todo
	IsLoading  bool
	IsFetching bool
	Err        error

	IsAdding   bool
	IsUpdating bool
	IsDeleting bool
	AddErr     error
	UpdateErr  error
	DeleteErr  error
}

type addVars struct {
	Text string
	// Ключ создается один раз на вызов и переживает повторы.
	IdempotencyKey string
}

type TodoStore struct {
	qc     *query.Client
	api    TodoAPI
	env    Environment
	logger *zap.Logger

	todos  *query.Query[[]model.Todo]
	add    *query.Mutation[addVars, model.Todo]
	update *query.Mutation[model.TodoPatch, model.Todo]
	remove *query.Mutation[int64, model.Todo]

	mu        sync.Mutex
	listeners []*listener
	nextID    uint64
	emitting  bool
	dirty     bool

	attachMu    sync.Mutex
	detachQuery func()
	detachMuts  []func()
}

type listener struct {
	id uint64
	fn func(Snapshot)
}

// TodosKey returns the cache key of the list for filter.
func TodosKey(filter model.TodoFilter) query.Key {
	switch filter.Status {
	case "", model.StatusAll:
		return query.Key{"todos"}
	}
	return query.Key{"todos", filter.Status}
}

func New(qc *query.Client, api TodoAPI, opts Options) *TodoStore {
	env := opts.Environment
	if env == EnvAuto {
		env = DetectEnvironment()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &TodoStore{qc: qc, api: api, env: env, logger: logger}

	filter := opts.Filter
	s.todos = query.NewQuery(qc, TodosKey(filter), func(ctx context.Context) ([]model.Todo, error) {
		return api.List(ctx, filter)
	}, query.QueryOptions{
		// На сервере данные приходят только через prefetch и гидратацию.
		Disabled:        env == EnvServer,
		RefetchInterval: opts.RefetchInterval,
	})

	s.add = query.NewMutation(qc, func(ctx context.Context, v addVars) (model.Todo, error) {
		return api.Create(ctx, model.CreateTodo{Text: v.Text}, v.IdempotencyKey)
	}, query.MutationOptions[addVars, model.Todo]{
		OnSuccess: func(ctx context.Context, t model.Todo, _ addVars) {
			s.logger.Info("Todo created", zap.Int64("id", t.ID))
			s.invalidate()
		},
	})
	s.update = query.NewMutation(qc, func(ctx context.Context, p model.TodoPatch) (model.Todo, error) {
		return api.Update(ctx, p)
	}, query.MutationOptions[model.TodoPatch, model.Todo]{
		OnSuccess: func(ctx context.Context, t model.Todo, _ model.TodoPatch) {
			s.logger.Info("Todo updated", zap.Int64("id", t.ID))
			s.invalidate()
		},
	})
	s.remove = query.NewMutation(qc, func(ctx context.Context, id int64) (model.Todo, error) {
		return api.Delete(ctx, id)
	}, query.MutationOptions[int64, model.Todo]{
		OnSuccess: func(ctx context.Context, t model.Todo, _ int64) {
			s.logger.Info("Todo deleted", zap.Int64("id", t.ID))
			s.invalidate()
		},
	})

	s.detachMuts = []func(){
		s.add.Subscribe(func(query.MutationState[model.Todo]) { s.emit() }),
		s.update.Subscribe(func(query.MutationState[model.Todo]) { s.emit() }),
		s.remove.Subscribe(func(query.MutationState[model.Todo]) { s.emit() }),
	}
	return s
}

func (s *TodoStore) Environment() Environment {
	return s.env
}

func (s *TodoStore) Key() query.Key {
	return s.todos.Key()
}

func (s *TodoStore) invalidate() {
	s.qc.InvalidateMatching(query.Key{"todos"})
}

// Add creates a todo in the background.
func (s *TodoStore) Add(text string) {
	s.add.Mutate(addVars{Text: text, IdempotencyKey: uuid.NewString()})
}

func (s *TodoStore) Update(patch model.TodoPatch) {
	s.update.Mutate(patch)
}

func (s *TodoStore) Remove(id int64) {
	s.remove.Mutate(id)
}

// Prefetch loads the list and waits for it. Works in both environments.
func (s *TodoStore) Prefetch(ctx context.Context) error {
	return s.todos.Prefetch(ctx)
}

// Refetch marks the list stale; subscribed stores reload it right away.
func (s *TodoStore) Refetch() {
	if s.env == EnvServer {
		return
	}
	s.todos.Invalidate()
}

func (s *TodoStore) Todos() []model.Todo {
	return s.Snapshot().Todos
}

func (s *TodoStore) IsLoading() bool {
	return s.todos.Result().IsLoading()
}

func (s *TodoStore) IsFetching() bool {
	return s.todos.Result().IsFetching()
}

func (s *TodoStore) Err() error {
	return s.todos.Result().Err
}

func (s *TodoStore) IsAdding() bool {
	return s.add.State().IsPending()
}

func (s *TodoStore) IsUpdating() bool {
	return s.update.State().IsPending()
}

func (s *TodoStore) IsDeleting() bool {
	return s.remove.State().IsPending()
}

func (s *TodoStore) Snapshot() Snapshot {
	r := s.todos.Result()
	todos := r.Data
	if todos == nil {
		todos = []model.Todo{}
	}
	add, update, remove := s.add.State(), s.update.State(), s.remove.State()

	return Snapshot{
		Todos:      todos,
		IsLoading:  r.IsLoading(),
		IsFetching: r.IsFetching(),
		Err:        r.Err,
		IsAdding:   add.IsPending(),
		IsUpdating: update.IsPending(),
		IsDeleting: remove.IsPending(),
		AddErr:     add.Err,
		UpdateErr:  update.Err,
		DeleteErr:  remove.Err,
	}
}

// Subscribe calls fn with the current snapshot and after every change. The
// first subscriber attaches the list query, which fetches unless disabled.
func (s *TodoStore) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	s.nextID++
	l := &listener{id: s.nextID, fn: fn}
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()

	s.attachMu.Lock()
	if s.detachQuery == nil {
		s.detachQuery = s.todos.Subscribe(func(query.Result[[]model.Todo]) { s.emit() })
	}
	s.attachMu.Unlock()

	s.emit()

	var once sync.Once
	return func() {
		once.Do(func() { s.unsubscribe(l) })
	}
}

func (s *TodoStore) unsubscribe(l *listener) {
	s.mu.Lock()
	for i, other := range s.listeners {
		if other == l {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			break
		}
	}
	empty := len(s.listeners) == 0
	s.mu.Unlock()

	if empty {
		s.attachMu.Lock()
		if s.detachQuery != nil {
			s.detachQuery()
			s.detachQuery = nil
		}
		s.attachMu.Unlock()
	}
}

// emit delivers the latest snapshot to every listener. Nested or concurrent
// calls fold into the running loop, so listeners see snapshots in order and
// always end on the newest one.
func (s *TodoStore) emit() {
	s.mu.Lock()
	s.dirty = true
	if s.emitting {
		s.mu.Unlock()
		return
	}
	s.emitting = true
	for s.dirty {
		s.dirty = false
		targets := make([]*listener, len(s.listeners))
		copy(targets, s.listeners)
		s.mu.Unlock()

		snap := s.Snapshot()
		for _, l := range targets {
			l.fn(snap)
		}

		s.mu.Lock()
	}
	s.emitting = false
	s.mu.Unlock()
}

// Wait blocks until pending mutations settle and the list is no longer
// fetching.
func (s *TodoStore) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.add.Wait()
		s.update.Wait()
		s.remove.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	idle := make(chan struct{}, 1)
	stop := s.qc.Subscribe(s.todos.Key(), nil, query.QueryOptions{Disabled: true}, func(st query.State) {
		if !st.IsFetching() {
			select {
			case idle <- struct{}{}:
			default:
			}
		}
	})
	defer stop()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close detaches the store from the cache. The query client stays open.
func (s *TodoStore) Close() {
	s.attachMu.Lock()
	if s.detachQuery != nil {
		s.detachQuery()
		s.detachQuery = nil
	}
	for _, detach := range s.detachMuts {
		detach()
	}
	s.detachMuts = nil
	s.attachMu.Unlock()

	s.mu.Lock()
	s.listeners = nil
	s.mu.Unlock()
}
