package repo

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ropl-btc/project-tasks/internal/model"
)

type NoteRepo struct {
	pool *pgxpool.Pool
}

func NewNoteRepo(pool *pgxpool.Pool) *NoteRepo {
	return &NoteRepo{pool: pool}
}

func scanNote(row pgx.Row) (model.Note, error) {
	var n model.Note
	err := row.Scan(&n.ID, &n.Owner, &n.Content, &n.CreatedAt, &n.UpdatedAt)
	return n, err
}

func (r *NoteRepo) ListByOwner(ctx context.Context, owner string) ([]model.Note, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, content, created_at, updated_at
		FROM notes
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notes := make([]model.Note, 0)
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func (r *NoteRepo) Insert(ctx context.Context, n model.Note) (model.Note, error) {
	return scanNote(r.pool.QueryRow(ctx, `
		INSERT INTO notes (user_id, content)
		VALUES ($1, $2)
		RETURNING id, user_id, content, created_at, updated_at
	`, n.Owner, n.Content))
}

func (r *NoteRepo) Patch(ctx context.Context, owner, id, content string) error {
	cmd, err := r.pool.Exec(ctx, `
		UPDATE notes SET content = $3, updated_at = now()
		WHERE id = $1 AND user_id = $2
	`, id, owner, content)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrorNotFound
	}
	return nil
}

func (r *NoteRepo) Remove(ctx context.Context, owner, id string) error {
	cmd, err := r.pool.Exec(ctx, "DELETE FROM notes WHERE id = $1 AND user_id = $2", id, owner)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrorNotFound
	}
	return nil
}
