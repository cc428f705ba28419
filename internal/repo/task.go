package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ropl-btc/project-tasks/internal/model"
)

var (
	ErrorNotFound = errors.New("not found")
	ErrorConflict = errors.New("conflict")
)

const taskColumns = `id, user_id, text, status, priority, "order", created_at, updated_at`

type TaskRepo struct { // Репозиторий для работы непосредственно с БД
	pool *pgxpool.Pool
}

func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{
		pool: pool,
	}
}

func scanTask(row pgx.Row) (model.Task, error) {
	var t model.Task
	err := row.Scan(&t.ID, &t.Owner, &t.Text, &t.Status, &t.Priority, &t.Order, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (r *TaskRepo) ListByOwner(ctx context.Context, owner string) ([]model.Task, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE user_id = $1
		ORDER BY "order" ASC, created_at ASC
	`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]model.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (r *TaskRepo) Insert(ctx context.Context, t model.Task) (model.Task, error) {
	created, err := scanTask(r.pool.QueryRow(ctx, `
		INSERT INTO tasks (user_id, text, status, priority, "order")
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+taskColumns,
		t.Owner, t.Text, t.Status, t.Priority, t.Order,
	))
	return created, r.mapError(err)
}

func (r *TaskRepo) Patch(ctx context.Context, owner, id string, p model.TaskPatch) error {
	if p.Empty() {
		return nil
	}

	args := []any{id, owner}
	sets := make([]string, 0, 5)
	set := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if p.Text != nil {
		set("text", *p.Text)
	}
	if p.Status != nil {
		set("status", *p.Status)
	}
	if p.Priority != nil {
		set("priority", *p.Priority)
	}
	if p.Order != nil {
		set(`"order"`, *p.Order)
	}
	sets = append(sets, "updated_at = now()")

	cmd, err := r.pool.Exec(ctx,
		"UPDATE tasks SET "+strings.Join(sets, ", ")+" WHERE id = $1 AND user_id = $2",
		args...,
	)
	if err != nil {
		return r.mapError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrorNotFound
	}
	return nil
}

func (r *TaskRepo) Remove(ctx context.Context, owner, id string) error {
	cmd, err := r.pool.Exec(ctx, "DELETE FROM tasks WHERE id = $1 AND user_id = $2", id, owner)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrorNotFound
	}
	return nil
}

// SetOrders writes all changes in one transaction, so either every row moves or none does.
func (r *TaskRepo) SetOrders(ctx context.Context, owner string, changes []model.OrderChange) error {
	if len(changes) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, c := range changes {
		batch.Queue(`
			UPDATE tasks SET "order" = $3, updated_at = now()
			WHERE id = $1 AND user_id = $2
		`, c.ID, owner, c.Order)
	}

	results := tx.SendBatch(ctx, batch)
	for range changes {
		cmd, err := results.Exec()
		if err != nil {
			results.Close()
			return r.mapError(err)
		}
		if cmd.RowsAffected() == 0 {
			results.Close()
			return ErrorNotFound
		}
	}
	if err := results.Close(); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *TaskRepo) mapError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return ErrorConflict
	}
	return err
}
