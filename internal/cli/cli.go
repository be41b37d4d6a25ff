// Package cli implements todoctl, a terminal consumer of the todo store.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/todo-query/internal/config"
	"github.com/BuzzLyutic/todo-query/internal/model"
	"github.com/BuzzLyutic/todo-query/internal/persist"
	"github.com/BuzzLyutic/todo-query/internal/query"
	"github.com/BuzzLyutic/todo-query/internal/sdk"
	"github.com/BuzzLyutic/todo-query/internal/store"
)

const Usage = `usage: todoctl [flags] <command> [args]

commands:
  list [all|completed|active]   print todos
  add <text>                    create a todo
  done <id> | undo <id>         toggle completion
  rename <id> <text>            change the text
  rm <id>                       delete a todo
  watch [status]                print the list on every change
  clock                         poll the server time
`

var ErrUsage = errors.New("invalid usage")

type Options struct {
	Config config.ClientConfig
	Args   []string
	Out    io.Writer
	Logger *zap.Logger
	// Interval drives watch and clock polling.
	Interval time.Duration
	// Ticks stops watch and clock after that many renders; 0 runs until ctx ends.
	Ticks int
}

type app struct {
	opts   Options
	out    io.Writer
	logger *zap.Logger
	styles styles
	api    *sdk.Client
	qc     *query.Client
}

// Run executes one todoctl command. The query cache is restored before and
// persisted after the command when persistence is configured.
func Run(ctx context.Context, opts Options) error {
	if len(opts.Args) == 0 {
		return fmt.Errorf("%w: missing command", ErrUsage)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}

	api, err := sdk.NewClient(opts.Config.APIBase)
	if err != nil {
		return err
	}

	qopts := store.DefaultClientOptions()
	qopts.StaleTime = opts.Config.StaleTime
	qopts.GCTime = opts.Config.GCTime
	qopts.Retry = opts.Config.Retry
	qopts.MutationRetry = opts.Config.MutationRetry
	qopts.PersistMaxAge = opts.Config.Persist.MaxAge
	qopts.Logger = opts.Logger
	qc := query.New(qopts)
	defer qc.Close()

	persister, closePersister, err := persist.Open(ctx, opts.Config.Persist, opts.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = closePersister() }()

	if persister != nil {
		if err := qc.RestoreFrom(ctx, persister); err != nil {
			opts.Logger.Warn("Cache restore failed", zap.Error(err))
		}
	}

	a := &app{
		opts:   opts,
		out:    opts.Out,
		logger: opts.Logger,
		styles: newStyles(opts.Out),
		api:    api,
		qc:     qc,
	}
	runErr := a.dispatch(ctx, opts.Args[0], opts.Args[1:])

	if persister != nil {
		persistCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := qc.PersistTo(persistCtx, persister); err != nil {
			opts.Logger.Warn("Cache persist failed", zap.Error(err))
		}
	}
	return runErr
}

func (a *app) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "list", "ls":
		return a.list(ctx, args)
	case "add":
		return a.add(ctx, args)
	case "done", "undo":
		return a.toggle(ctx, args, cmd == "done")
	case "rename":
		return a.rename(ctx, args)
	case "rm", "delete":
		return a.remove(ctx, args)
	case "watch":
		return a.watch(ctx, args)
	case "clock":
		return a.clock(ctx)
	}
	return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd)
}

func (a *app) newStore(status string, refetchEvery time.Duration) *store.TodoStore {
	return store.New(a.qc, a.api, store.Options{
		Filter:          model.TodoFilter{Status: status},
		Environment:     store.ParseEnvironment(a.opts.Config.Environment),
		RefetchInterval: refetchEvery,
		Logger:          a.logger,
	})
}

func statusArg(args []string) (string, error) {
	if len(args) == 0 {
		return model.StatusAll, nil
	}
	switch args[0] {
	case model.StatusAll, model.StatusCompleted, model.StatusActive:
		return args[0], nil
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrUsage, args[0])
}

func (a *app) list(ctx context.Context, args []string) error {
	status, err := statusArg(args)
	if err != nil {
		return err
	}
	s := a.newStore(status, 0)
	defer s.Close()

	if err := s.Prefetch(ctx); err != nil {
		a.print(s.Snapshot(), status)
		return err
	}
	a.print(s.Snapshot(), status)
	return nil
}

// mutate keeps the list observed while fn runs so the invalidation it
// triggers refetches before the cache is persisted.
func (a *app) mutate(ctx context.Context, fn func(s *store.TodoStore)) error {
	s := a.newStore(model.StatusAll, 0)
	defer s.Close()

	unsubscribe := s.Subscribe(func(store.Snapshot) {})
	defer unsubscribe()

	fn(s)
	if err := s.Wait(ctx); err != nil {
		return err
	}

	snap := s.Snapshot()
	a.print(snap, model.StatusAll)
	for _, err := range []error{snap.AddErr, snap.UpdateErr, snap.DeleteErr} {
		if err != nil {
			return err
		}
	}
	return nil
}

func (a *app) add(ctx context.Context, args []string) error {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return fmt.Errorf("%w: add needs text", ErrUsage)
	}
	return a.mutate(ctx, func(s *store.TodoStore) { s.Add(text) })
}

func parseID(args []string) (int64, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("%w: missing id", ErrUsage)
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad id %q", ErrUsage, args[0])
	}
	return id, nil
}

func (a *app) toggle(ctx context.Context, args []string, completed bool) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}
	return a.mutate(ctx, func(s *store.TodoStore) {
		s.Update(model.TodoPatch{ID: id, Completed: &completed})
	})
}

func (a *app) rename(ctx context.Context, args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}
	text := strings.TrimSpace(strings.Join(args[1:], " "))
	if text == "" {
		return fmt.Errorf("%w: rename needs text", ErrUsage)
	}
	return a.mutate(ctx, func(s *store.TodoStore) {
		s.Update(model.TodoPatch{ID: id, Text: &text})
	})
}

func (a *app) remove(ctx context.Context, args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}
	return a.mutate(ctx, func(s *store.TodoStore) { s.Remove(id) })
}

func (a *app) watch(ctx context.Context, args []string) error {
	status, err := statusArg(args)
	if err != nil {
		return err
	}
	s := a.newStore(status, a.opts.Interval)
	defer s.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		rendered int
		last     string
	)
	unsubscribe := s.Subscribe(func(snap store.Snapshot) {
		out := a.styles.renderSnapshot(title(status), snap)
		mu.Lock()
		defer mu.Unlock()
		if out == last {
			return
		}
		last = out
		fmt.Fprint(a.out, out+"\n")
		rendered++
		if a.opts.Ticks > 0 && rendered >= a.opts.Ticks {
			cancel()
		}
	})
	defer unsubscribe()

	<-ctx.Done()
	return nil
}

func (a *app) clock(ctx context.Context) error {
	q := query.NewQuery(a.qc, query.Key{"time"}, a.api.Time, query.QueryOptions{
		RefetchInterval: a.opts.Interval,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		rendered int
		lastErr  error
	)
	unsubscribe := q.Subscribe(func(r query.Result[time.Time]) {
		if r.IsFetching() {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		switch {
		case r.Status == query.StatusError:
			lastErr = r.Err
			fmt.Fprintln(a.out, a.styles.Error.Render(fmt.Sprintf("error: %v", r.Err)))
			cancel()
			return
		case !r.HasData():
			return
		}
		lastErr = nil
		fmt.Fprintln(a.out, a.styles.renderTime(r.Data))
		rendered++
		if a.opts.Ticks > 0 && rendered >= a.opts.Ticks {
			cancel()
		}
	})
	defer unsubscribe()

	<-ctx.Done()
	mu.Lock()
	defer mu.Unlock()
	return lastErr
}

func (a *app) print(snap store.Snapshot, status string) {
	fmt.Fprint(a.out, a.styles.renderSnapshot(title(status), snap))
}

func title(status string) string {
	switch status {
	case model.StatusCompleted:
		return "Completed todos"
	case model.StatusActive:
		return "Active todos"
	}
	return "Todos"
}
