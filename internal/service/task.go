package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ropl-btc/project-tasks/internal/auth"
	"github.com/ropl-btc/project-tasks/internal/export"
	"github.com/ropl-btc/project-tasks/internal/model"
	"github.com/ropl-btc/project-tasks/internal/repo"
	"github.com/ropl-btc/project-tasks/internal/store"
	"github.com/ropl-btc/project-tasks/internal/vision"
)

var ErrCaptureUnavailable = errors.New("image capture is not configured")

// workspace holds the stores of one owner. It is loaded on first access and retried until a
// load succeeds.
type workspace struct {
	tasks *store.TaskStore
	notes *store.NoteStore

	mu     sync.Mutex
	loaded bool
}

func (ws *workspace) ensureLoaded(ctx context.Context, owner string) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.loaded {
		return nil
	}
	if err := ws.tasks.Load(ctx, owner); err != nil {
		return err
	}
	if err := ws.notes.Load(ctx, owner); err != nil {
		return err
	}
	ws.loaded = true
	return nil
}

func (ws *workspace) isLoaded() bool {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.loaded
}

// TaskService keeps one workspace per owner and routes requests to it.
type TaskService struct {
	tasks      repo.TaskRepository
	notes      repo.NoteRepository
	dispatcher store.Dispatcher
	extractor  vision.Extractor
	logger     *zap.Logger

	mu         sync.Mutex
	workspaces map[string]*workspace
}

// NewTaskService builds the registry. extractor may be nil, in which case Capture is unavailable.
func NewTaskService(tasks repo.TaskRepository, notes repo.NoteRepository, d store.Dispatcher, extractor vision.Extractor, logger *zap.Logger) *TaskService {
	return &TaskService{
		tasks:      tasks,
		notes:      notes,
		dispatcher: d,
		extractor:  extractor,
		logger:     logger,
		workspaces: make(map[string]*workspace),
	}
}

func (s *TaskService) lookup(owner string) (*workspace, error) {
	if owner == "" {
		return nil, store.ErrUnauthenticated
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ws, ok := s.workspaces[owner]
	if !ok {
		session := auth.NewSession(owner)
		ws = &workspace{
			tasks: store.NewTaskStore(s.tasks, s.dispatcher, session, s.logger),
			notes: store.NewNoteStore(s.notes, s.dispatcher, session, s.logger),
		}
		s.workspaces[owner] = ws
	}
	return ws, nil
}

// workspace returns the owner's loaded stores. Writes go through here: they must not run on top
// of a list that was never read.
func (s *TaskService) workspace(ctx context.Context, owner string) (*workspace, error) {
	ws, err := s.lookup(owner)
	if err != nil {
		return nil, err
	}
	if err := ws.ensureLoaded(ctx, owner); err != nil {
		return nil, err
	}
	return ws, nil
}

// view is workspace for reads. A failed first load is logged and the current, possibly empty,
// lists are served; Run keeps retrying the load.
func (s *TaskService) view(ctx context.Context, owner string) (*workspace, error) {
	ws, err := s.lookup(owner)
	if err != nil {
		return nil, err
	}
	if err := ws.ensureLoaded(ctx, owner); err != nil {
		s.logger.Warn("serving unloaded workspace", zap.String("owner", owner), zap.Error(err))
	}
	return ws, nil
}

// List returns the owner's tasks sorted by sortBy, hiding completed ones unless showCompleted is set.
func (s *TaskService) List(ctx context.Context, owner string, sortBy model.SortType, showCompleted bool) ([]model.Task, error) {
	ws, err := s.view(ctx, owner)
	if err != nil {
		return nil, err
	}
	return model.VisibleTasks(model.SortTasks(ws.tasks.Tasks(), sortBy), showCompleted), nil
}

// AddTask appends a task. Empty text is allowed: new tasks are usually created blank and typed into afterwards.
func (s *TaskService) AddTask(ctx context.Context, owner, text string, priority model.Priority) (model.Task, error) {
	ws, err := s.workspace(ctx, owner)
	if err != nil {
		return model.Task{}, err
	}
	return ws.tasks.Add(ctx, text, priority)
}

func (s *TaskService) UpdateTask(ctx context.Context, owner, id string, patch model.TaskPatch) (model.Task, error) {
	ws, err := s.workspace(ctx, owner)
	if err != nil {
		return model.Task{}, err
	}
	return ws.tasks.Update(ctx, id, patch)
}

func (s *TaskService) CycleStatus(ctx context.Context, owner, id string, forward bool) (model.Task, error) {
	ws, err := s.workspace(ctx, owner)
	if err != nil {
		return model.Task{}, err
	}
	return ws.tasks.CycleStatus(ctx, id, forward)
}

func (s *TaskService) DeleteTask(ctx context.Context, owner, id string) error {
	ws, err := s.workspace(ctx, owner)
	if err != nil {
		return err
	}
	return ws.tasks.Delete(ctx, id)
}

// Reorder works on positions in the manual order, the one List returns for SortManual.
func (s *TaskService) Reorder(ctx context.Context, owner string, from, to int, commit bool) ([]model.Task, error) {
	ws, err := s.workspace(ctx, owner)
	if err != nil {
		return nil, err
	}
	if err := ws.tasks.Reorder(ctx, from, to, commit); err != nil {
		return nil, err
	}
	return ws.tasks.Tasks(), nil
}

// Refresh reloads the owner's tasks from the repository, replacing local state.
func (s *TaskService) Refresh(ctx context.Context, owner string) ([]model.Task, error) {
	ws, err := s.workspace(ctx, owner)
	if err != nil {
		return nil, err
	}
	if err := ws.tasks.Load(ctx, owner); err != nil {
		return nil, err
	}
	return ws.tasks.Tasks(), nil
}

// Capture adds the tasks read off a photo, in the order the extractor returned them. A failed
// extraction adds nothing; a failed add is logged and skipped.
func (s *TaskService) Capture(ctx context.Context, owner, imageBase64 string) ([]model.Task, error) {
	if s.extractor == nil {
		return nil, ErrCaptureUnavailable
	}
	if strings.TrimSpace(imageBase64) == "" {
		return nil, fmt.Errorf("%w: image is required", store.ErrValidation)
	}
	ws, err := s.workspace(ctx, owner)
	if err != nil {
		return nil, err
	}

	extracted, err := s.extractor.Extract(ctx, imageBase64)
	if err != nil {
		s.logger.Error("failed to extract tasks from image", zap.String("owner", owner), zap.Error(err))
		return nil, err
	}

	added := make([]model.Task, 0, len(extracted))
	for _, item := range extracted {
		task, err := ws.tasks.Add(ctx, item.Title, item.Priority)
		if err != nil {
			s.logger.Warn("skipping captured task",
				zap.String("owner", owner), zap.String("title", item.Title), zap.Error(err))
			continue
		}
		added = append(added, task)
	}
	return added, nil
}

// Export writes the owner's tasks (manual order) and notes as an XLSX workbook.
func (s *TaskService) Export(ctx context.Context, owner string, w io.Writer) error {
	ws, err := s.workspace(ctx, owner)
	if err != nil {
		return err
	}
	return export.Write(w, ws.tasks.Tasks(), ws.notes.Notes())
}

func (s *TaskService) Notes(ctx context.Context, owner string) ([]model.Note, error) {
	ws, err := s.view(ctx, owner)
	if err != nil {
		return nil, err
	}
	return ws.notes.Notes(), nil
}

func (s *TaskService) AddNote(ctx context.Context, owner, content string) (model.Note, error) {
	ws, err := s.workspace(ctx, owner)
	if err != nil {
		return model.Note{}, err
	}
	return ws.notes.Add(ctx, content)
}

func (s *TaskService) UpdateNote(ctx context.Context, owner, id, content string) (model.Note, error) {
	ws, err := s.workspace(ctx, owner)
	if err != nil {
		return model.Note{}, err
	}
	return ws.notes.Update(ctx, id, content)
}

func (s *TaskService) DeleteNote(ctx context.Context, owner, id string) error {
	ws, err := s.workspace(ctx, owner)
	if err != nil {
		return err
	}
	return ws.notes.Delete(ctx, id)
}

func (s *TaskService) RefreshNotes(ctx context.Context, owner string) ([]model.Note, error) {
	ws, err := s.workspace(ctx, owner)
	if err != nil {
		return nil, err
	}
	if err := ws.notes.Load(ctx, owner); err != nil {
		return nil, err
	}
	return ws.notes.Notes(), nil
}

// Flush waits until every remote job queued for owner has finished.
func (s *TaskService) Flush(ctx context.Context, owner string) error {
	ws, err := s.workspace(ctx, owner)
	if err != nil {
		return err
	}
	if err := ws.tasks.Wait(ctx); err != nil {
		return err
	}
	return ws.notes.Wait(ctx)
}

// Run reloads every idle workspace each interval, picking up changes made by other clients.
// Stores with remote jobs in flight or an uncommitted drag are skipped until the next tick, and
// workspaces whose first load failed are retried.
func (s *TaskService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refreshAll(ctx)
		}
	}
}

func (s *TaskService) refreshAll(ctx context.Context) {
	s.mu.Lock()
	owners := make(map[string]*workspace, len(s.workspaces))
	for owner, ws := range s.workspaces {
		owners[owner] = ws
	}
	s.mu.Unlock()

	for owner, ws := range owners {
		if !ws.isLoaded() {
			if err := ws.ensureLoaded(ctx, owner); err != nil {
				s.logger.Warn("workspace still not loaded", zap.String("owner", owner), zap.Error(err))
			}
			continue
		}
		if ws.tasks.Pending() == 0 && !ws.tasks.Dragging() {
			if err := ws.tasks.Load(ctx, owner); err != nil {
				continue
			}
		}
		if ws.notes.Pending() == 0 {
			_ = ws.notes.Load(ctx, owner)
		}
	}
}
