package store

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ropl-btc/project-tasks/internal/model"
	"github.com/ropl-btc/project-tasks/internal/repo"
)

// orderWriters bounds the fan-out of per-row order writes.
const orderWriters = 8

// TaskStore is the ordered task list of one owner.
type TaskStore struct {
	syncState

	repo    repo.TaskRepository
	session Session

	tasks    []model.Task
	dragBase []model.Task // list as it was before the first uncommitted reorder
}

func NewTaskStore(r repo.TaskRepository, d Dispatcher, session Session, logger *zap.Logger) *TaskStore {
	s := &TaskStore{
		repo:    r,
		session: session,
		tasks:   make([]model.Task, 0),
	}
	s.init(d, logger, s.reconcile)
	return s
}

// Tasks returns a copy of the list in display order.
func (s *TaskStore) Tasks() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capture()
}

// Load replaces local state with the owner's persisted tasks. On error the list is left untouched.
// The listing is dropped when a local edit happened while it ran, when remote jobs are still in
// flight or while a drag is uncommitted: those edits are newer than what was read.
func (s *TaskStore) Load(ctx context.Context, owner string) error {
	gen := s.snapshotGeneration()
	tasks, err := s.repo.ListByOwner(ctx, owner)
	if err != nil {
		s.logger.Error("failed to load tasks", zap.String("owner", owner), zap.Error(err))
		return fmt.Errorf("load tasks: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.settled(gen) || s.dragBase != nil {
		s.logger.Debug("skipping task load, local edits are newer", zap.String("owner", owner))
		return nil
	}
	s.restore(tasks)
	s.stale = false
	return nil
}

// Dragging reports whether local reorders are waiting for a drag-end commit.
func (s *TaskStore) Dragging() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dragBase != nil
}

func (s *TaskStore) reconcile(ctx context.Context) {
	owner, ok := s.session.Owner()
	if !ok {
		return
	}
	for attempt := 0; attempt < reconcileAttempts; attempt++ {
		if s.reloadOnce(ctx, owner) {
			return
		}
	}
	s.markStale()
}

// reloadOnce reports false when a write finished while the list was being read and nothing else
// will trigger another reload.
func (s *TaskStore) reloadOnce(ctx context.Context, owner string) bool {
	gen := s.snapshotGeneration()
	tasks, err := s.repo.ListByOwner(ctx, owner)
	if err != nil {
		s.logger.Error("failed to reload tasks", zap.String("owner", owner), zap.Error(err))
		s.markStale()
		return true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending > 0 || s.dragBase != nil {
		// The next job to finish, or the drag-end commit, reloads instead.
		s.stale = true
		return true
	}
	if !s.settled(gen) {
		return false
	}
	s.restore(tasks)
	s.logger.Info("reloaded tasks after failed sync", zap.String("owner", owner), zap.Int("count", len(tasks)))
	return true
}

// Add appends a new not-started task once the remote insert succeeds. The insert runs as a
// remote job, so it is ordered with the owner's other pending writes.
func (s *TaskStore) Add(ctx context.Context, text string, priority model.Priority) (model.Task, error) {
	if priority == "" {
		priority = model.PriorityNone
	}
	if !priority.Valid() {
		return model.Task{}, fmt.Errorf("%w: unknown priority %q", ErrValidation, priority)
	}
	owner, ok := s.session.Owner()
	if !ok {
		return model.Task{}, ErrUnauthenticated
	}

	type result struct {
		task model.Task
		err  error
	}
	done := make(chan result, 1)

	err := s.dispatch(owner, func(ctx context.Context) {
		s.mu.Lock()
		draft := model.Task{
			Owner:    owner,
			Text:     text,
			Status:   model.StatusNotStarted,
			Priority: priority,
			Order:    len(s.tasks),
		}
		s.mu.Unlock()

		created, err := s.repo.Insert(ctx, draft)
		if err != nil {
			done <- result{err: err}
			return
		}

		// The list may have changed while the insert was in flight; the new task always goes last.
		s.mu.Lock()
		moved := false
		if s.indexOf(created.ID) < 0 {
			moved = created.Order != len(s.tasks)
			created.Order = len(s.tasks)
			s.tasks = append(s.tasks, created)
			s.touch()
		}
		s.mu.Unlock()
		done <- result{task: created}

		if moved {
			order := created.Order
			if err := s.repo.Patch(ctx, owner, created.ID, model.TaskPatch{Order: &order}); err != nil {
				s.logger.Error("failed to move added task to the end",
					zap.String("owner", owner), zap.String("task_id", created.ID), zap.Error(err))
				s.markStale()
			}
		}
	})
	if err != nil {
		return model.Task{}, fmt.Errorf("add task: %w", err)
	}

	select {
	case res := <-done:
		if res.err != nil {
			s.logger.Error("failed to add task", zap.String("owner", owner), zap.Error(res.err))
			return model.Task{}, fmt.Errorf("add task: %w", res.err)
		}
		return res.task, nil
	case <-ctx.Done():
		return model.Task{}, ctx.Err()
	}
}

// Update applies patch locally and returns the optimistic task. A failed remote patch reloads the list.
func (s *TaskStore) Update(ctx context.Context, id string, patch model.TaskPatch) (model.Task, error) {
	if err := patch.Validate(); err != nil {
		return model.Task{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if patch.Order != nil {
		return model.Task{}, fmt.Errorf("%w: order changes go through Reorder", ErrValidation)
	}
	owner, ok := s.session.Owner()
	if !ok {
		return model.Task{}, ErrUnauthenticated
	}

	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return model.Task{}, ErrNotFound
	}
	if patch.Empty() {
		t := s.tasks[i]
		s.mu.Unlock()
		return t, nil
	}
	s.tasks[i] = patch.Apply(s.tasks[i])
	s.touch()
	updated := s.tasks[i]
	s.mu.Unlock()

	err := s.dispatch(owner, func(ctx context.Context) {
		if err := s.repo.Patch(ctx, owner, id, patch); err != nil {
			s.logger.Error("failed to update task",
				zap.String("owner", owner), zap.String("task_id", id), zap.Error(err))
			s.markStale()
		}
	})
	if err != nil {
		return model.Task{}, fmt.Errorf("update task: %w", err)
	}
	return updated, nil
}

// CycleStatus moves a task to its next status, or its previous one when forward is false.
func (s *TaskStore) CycleStatus(ctx context.Context, id string, forward bool) (model.Task, error) {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return model.Task{}, ErrNotFound
	}
	status := model.PreviousStatus(s.tasks[i].Status)
	if forward {
		status = model.NextStatus(s.tasks[i].Status)
	}
	s.mu.Unlock()

	return s.Update(ctx, id, model.TaskPatch{Status: &status})
}

// Delete removes a task and closes the gap it leaves in the order sequence.
func (s *TaskStore) Delete(ctx context.Context, id string) error {
	owner, ok := s.session.Owner()
	if !ok {
		return ErrUnauthenticated
	}

	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return ErrNotFound
	}
	deleted := s.tasks[i]

	// Orders are compared against what was last persisted, which is the drag base while a
	// drag is still uncommitted.
	persisted := s.dragBase
	if persisted == nil {
		persisted = s.capture()
	}

	remaining := make([]model.Task, 0, len(s.tasks)-1)
	for _, t := range s.tasks {
		if t.ID == id {
			continue
		}
		if t.Order > deleted.Order {
			t.Order--
		}
		remaining = append(remaining, t)
	}
	s.tasks = remaining
	s.dragBase = nil
	s.touch()
	changes := orderChanges(persisted, remaining)
	s.mu.Unlock()

	err := s.dispatch(owner, func(ctx context.Context) {
		if err := s.repo.Remove(ctx, owner, id); err != nil {
			s.logger.Error("failed to delete task",
				zap.String("owner", owner), zap.String("task_id", id), zap.Error(err))
			s.markStale()
			return
		}
		if err := s.writeOrders(ctx, owner, changes); err != nil {
			s.logger.Error("failed to renumber tasks after delete",
				zap.String("owner", owner), zap.Int("changes", len(changes)), zap.Error(err))
			s.markStale()
		}
	})
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// Reorder moves the task at from to position to and renumbers the list. Without commit only the
// local list changes; with commit every order that differs from the last persisted list is written.
// from == to commits a pending drag, and is a no-op when there is none.
func (s *TaskStore) Reorder(ctx context.Context, from, to int, commit bool) error {
	owner, ok := s.session.Owner()
	if !ok {
		return ErrUnauthenticated
	}

	s.mu.Lock()
	n := len(s.tasks)
	if from < 0 || from >= n || to < 0 || to >= n {
		s.mu.Unlock()
		return fmt.Errorf("%w: move %d -> %d in %d tasks", ErrInvalidIndex, from, to, n)
	}
	if from == to && (!commit || s.dragBase == nil) {
		s.mu.Unlock()
		return nil
	}

	base := s.dragBase
	if base == nil {
		base = s.capture()
	}

	if from != to {
		moved := s.tasks[from]
		next := slices.Delete(s.capture(), from, from+1)
		next = slices.Insert(next, to, moved)
		for i := range next {
			next[i].Order = i
		}
		s.tasks = next
		s.touch()
	}

	if !commit {
		s.dragBase = base
		s.mu.Unlock()
		return nil
	}
	s.dragBase = nil
	changes := orderChanges(base, s.tasks)
	s.mu.Unlock()

	if len(changes) == 0 {
		return nil
	}

	err := s.dispatch(owner, func(ctx context.Context) {
		if err := s.writeOrders(ctx, owner, changes); err != nil {
			s.logger.Error("failed to persist task order",
				zap.String("owner", owner), zap.Int("changes", len(changes)), zap.Error(err))
			s.mu.Lock()
			s.restore(base)
			s.touch()
			s.stale = true
			s.mu.Unlock()
		}
	})
	if err != nil {
		return fmt.Errorf("reorder tasks: %w", err)
	}
	return nil
}

// writeOrders uses one atomic request when the repository supports it, otherwise one patch per row.
func (s *TaskStore) writeOrders(ctx context.Context, owner string, changes []model.OrderChange) error {
	if len(changes) == 0 {
		return nil
	}
	if b, ok := s.repo.(repo.OrderBatcher); ok {
		return b.SetOrders(ctx, owner, changes)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(orderWriters)
	for _, c := range changes {
		c := c
		g.Go(func() error {
			order := c.Order
			return s.repo.Patch(gctx, owner, c.ID, model.TaskPatch{Order: &order})
		})
	}
	return g.Wait()
}

// capture and restore must be called with s.mu held.
func (s *TaskStore) capture() []model.Task {
	return slices.Clone(s.tasks)
}

func (s *TaskStore) restore(snapshot []model.Task) {
	s.tasks = slices.Clone(snapshot)
	if s.tasks == nil {
		s.tasks = make([]model.Task, 0)
	}
}

func (s *TaskStore) indexOf(id string) int {
	return slices.IndexFunc(s.tasks, func(t model.Task) bool { return t.ID == id })
}

// orderChanges lists the tasks in current whose order differs from the one recorded in base.
func orderChanges(base, current []model.Task) []model.OrderChange {
	was := make(map[string]int, len(base))
	for _, t := range base {
		was[t.ID] = t.Order
	}
	var changes []model.OrderChange
	for _, t := range current {
		if order, ok := was[t.ID]; !ok || order != t.Order {
			changes = append(changes, model.OrderChange{ID: t.ID, Order: t.Order})
		}
	}
	return changes
}
