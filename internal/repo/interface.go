package repo

import (
	"context"

	"github.com/ropl-btc/project-tasks/internal/model"
)

// TaskRepository is the remote side of task synchronization. Every call is scoped to one owner.
type TaskRepository interface {
	// ListByOwner returns the owner's tasks by ascending order.
	ListByOwner(ctx context.Context, owner string) ([]model.Task, error)
	// Insert assigns id and timestamps.
	Insert(ctx context.Context, t model.Task) (model.Task, error)
	Patch(ctx context.Context, owner, id string, p model.TaskPatch) error
	Remove(ctx context.Context, owner, id string) error
}

// OrderBatcher is implemented by backends that can write many orders in one atomic request.
type OrderBatcher interface {
	SetOrders(ctx context.Context, owner string, changes []model.OrderChange) error
}

// NoteRepository определяет интерфейс для работы с заметками
type NoteRepository interface {
	// ListByOwner returns the owner's notes, newest first.
	ListByOwner(ctx context.Context, owner string) ([]model.Note, error)
	Insert(ctx context.Context, n model.Note) (model.Note, error)
	Patch(ctx context.Context, owner, id, content string) error
	Remove(ctx context.Context, owner, id string) error
}
