package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ropl-btc/project-tasks/internal/model"
)

// MemoryTaskRepo keeps tasks in process memory. Used with BACKEND=memory and in tests.
type MemoryTaskRepo struct {
	mu    sync.RWMutex
	tasks map[string]model.Task
	seq   int64
	seqOf map[string]int64
	now   func() time.Time
}

func NewMemoryTaskRepo() *MemoryTaskRepo {
	return &MemoryTaskRepo{
		tasks: make(map[string]model.Task),
		seqOf: make(map[string]int64),
		now:   time.Now,
	}
}

func (r *MemoryTaskRepo) ListByOwner(ctx context.Context, owner string) ([]model.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Task, 0)
	for _, t := range r.tasks {
		if t.Owner == owner {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return r.seqOf[out[i].ID] < r.seqOf[out[j].ID]
	})
	return out, nil
}

func (r *MemoryTaskRepo) Insert(ctx context.Context, t model.Task) (model.Task, error) {
	if err := ctx.Err(); err != nil {
		return model.Task{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	t.ID = uuid.NewString()
	t.CreatedAt = now
	t.UpdatedAt = now
	r.seq++
	r.seqOf[t.ID] = r.seq
	r.tasks[t.ID] = t
	return t, nil
}

func (r *MemoryTaskRepo) Patch(ctx context.Context, owner, id string, p model.TaskPatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok || t.Owner != owner {
		return ErrorNotFound
	}
	t = p.Apply(t)
	t.UpdatedAt = r.now()
	r.tasks[id] = t
	return nil
}

func (r *MemoryTaskRepo) Remove(ctx context.Context, owner, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok || t.Owner != owner {
		return ErrorNotFound
	}
	delete(r.tasks, id)
	delete(r.seqOf, id)
	return nil
}

type MemoryNoteRepo struct {
	mu    sync.RWMutex
	notes map[string]model.Note
	now   func() time.Time
}

func NewMemoryNoteRepo() *MemoryNoteRepo {
	return &MemoryNoteRepo{
		notes: make(map[string]model.Note),
		now:   time.Now,
	}
}

func (r *MemoryNoteRepo) ListByOwner(ctx context.Context, owner string) ([]model.Note, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Note, 0)
	for _, n := range r.notes {
		if n.Owner == owner {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *MemoryNoteRepo) Insert(ctx context.Context, n model.Note) (model.Note, error) {
	if err := ctx.Err(); err != nil {
		return model.Note{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	n.ID = uuid.NewString()
	n.CreatedAt = now
	n.UpdatedAt = now
	r.notes[n.ID] = n
	return n, nil
}

func (r *MemoryNoteRepo) Patch(ctx context.Context, owner, id, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.notes[id]
	if !ok || n.Owner != owner {
		return ErrorNotFound
	}
	n.Content = content
	n.UpdatedAt = r.now()
	r.notes[id] = n
	return nil
}

func (r *MemoryNoteRepo) Remove(ctx context.Context, owner, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.notes[id]
	if !ok || n.Owner != owner {
		return ErrorNotFound
	}
	delete(r.notes, id)
	return nil
}
