package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BuzzLyutic/todo-query/internal/model"
)

type PostgresTodoRepo struct { // Репозиторий для работы непосредственно с БД
	pool *pgxpool.Pool
}

func NewPostgresTodoRepo(pool *pgxpool.Pool) *PostgresTodoRepo {
	return &PostgresTodoRepo{
		pool: pool,
	}
}

func (r *PostgresTodoRepo) List(ctx context.Context, filter model.TodoFilter) ([]model.Todo, error) {
	// NULL означает "без фильтра"
	var completed *bool
	switch filter.Status {
	case "", model.StatusAll:
	case model.StatusCompleted:
		v := true
		completed = &v
	default:
		v := false
		completed = &v
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, text, completed
		FROM todos
		WHERE ($1::boolean IS NULL OR completed = $1)
		ORDER BY id
	`, completed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	todos := make([]model.Todo, 0)
	for rows.Next() {
		var t model.Todo
		if err := rows.Scan(&t.ID, &t.Text, &t.Completed); err != nil {
			return nil, err
		}
		todos = append(todos, t)
	}
	return todos, rows.Err()
}

func (r *PostgresTodoRepo) Get(ctx context.Context, id int64) (model.Todo, error) {
	var t model.Todo
	err := r.pool.QueryRow(ctx, `
		SELECT id, text, completed
		FROM todos
		WHERE id = $1
	`, id).Scan(&t.ID, &t.Text, &t.Completed)
	return t, r.mapError(err)
}

func (r *PostgresTodoRepo) Create(ctx context.Context, t model.Todo) (model.Todo, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO todos (text, completed)
		VALUES ($1, $2)
		RETURNING id, text, completed
	`, t.Text, t.Completed).Scan(&t.ID, &t.Text, &t.Completed)
	return t, r.mapError(err)
}

func (r *PostgresTodoRepo) Update(ctx context.Context, p model.TodoPatch) (model.Todo, error) {
	var t model.Todo
	err := r.pool.QueryRow(ctx, `
		UPDATE todos
		SET text = COALESCE($2, text), completed = COALESCE($3, completed), updated_at = now()
		WHERE id = $1
		RETURNING id, text, completed
	`, p.ID, p.Text, p.Completed).Scan(&t.ID, &t.Text, &t.Completed)
	return t, r.mapError(err)
}

func (r *PostgresTodoRepo) Delete(ctx context.Context, id int64) (model.Todo, error) {
	var t model.Todo
	err := r.pool.QueryRow(ctx, `
		DELETE FROM todos
		WHERE id = $1
		RETURNING id, text, completed
	`, id).Scan(&t.ID, &t.Text, &t.Completed)
	return t, r.mapError(err)
}

func (r *PostgresTodoRepo) SaveIdempotencyKey(ctx context.Context, key string, resourceID int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO idempotency_keys (key, resource_id) VALUES ($1, $2)
		ON CONFLICT (key) DO NOTHING
	`, key, resourceID)
	return err
}

func (r *PostgresTodoRepo) GetIdempotencyKey(ctx context.Context, key string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		SELECT resource_id FROM idempotency_keys WHERE key = $1
	`, key).Scan(&id)
	return id, r.mapError(err)
}

func (r *PostgresTodoRepo) mapError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrorNotFound
	}
	return err
}
