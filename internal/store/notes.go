package store

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/ropl-btc/project-tasks/internal/model"
	"github.com/ropl-btc/project-tasks/internal/repo"
)

// NoteStore is the note list of one owner, newest first.
type NoteStore struct {
	syncState

	repo    repo.NoteRepository
	session Session
	notes   []model.Note
	now     func() time.Time
}

func NewNoteStore(r repo.NoteRepository, d Dispatcher, session Session, logger *zap.Logger) *NoteStore {
	s := &NoteStore{
		repo:    r,
		session: session,
		notes:   make([]model.Note, 0),
		now:     time.Now,
	}
	s.init(d, logger, s.reconcile)
	return s
}

func (s *NoteStore) Notes() []model.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.notes)
}

// Load replaces local notes with the persisted ones, unless local edits happened meanwhile.
func (s *NoteStore) Load(ctx context.Context, owner string) error {
	gen := s.snapshotGeneration()
	notes, err := s.repo.ListByOwner(ctx, owner)
	if err != nil {
		s.logger.Error("failed to load notes", zap.String("owner", owner), zap.Error(err))
		return fmt.Errorf("load notes: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.settled(gen) {
		s.logger.Debug("skipping note load, local edits are newer", zap.String("owner", owner))
		return nil
	}
	s.replace(notes)
	s.stale = false
	return nil
}

func (s *NoteStore) reconcile(ctx context.Context) {
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

func (s *NoteStore) reloadOnce(ctx context.Context, owner string) bool {
	gen := s.snapshotGeneration()
	notes, err := s.repo.ListByOwner(ctx, owner)
	if err != nil {
		s.logger.Error("failed to reload notes", zap.String("owner", owner), zap.Error(err))
		s.markStale()
		return true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending > 0 {
		s.stale = true
		return true
	}
	if !s.settled(gen) {
		return false
	}
	s.replace(notes)
	s.logger.Info("reloaded notes after failed sync", zap.String("owner", owner), zap.Int("count", len(notes)))
	return true
}

// Add prepends the note once the remote insert has assigned its id.
func (s *NoteStore) Add(ctx context.Context, content string) (model.Note, error) {
	owner, ok := s.session.Owner()
	if !ok {
		return model.Note{}, ErrUnauthenticated
	}

	type result struct {
		note model.Note
		err  error
	}
	done := make(chan result, 1)

	err := s.dispatch(owner, func(ctx context.Context) {
		created, err := s.repo.Insert(ctx, model.Note{Owner: owner, Content: content})
		if err == nil {
			s.mu.Lock()
			if s.indexOf(created.ID) < 0 {
				s.notes = slices.Insert(s.notes, 0, created)
				s.touch()
			}
			s.mu.Unlock()
		}
		done <- result{note: created, err: err}
	})
	if err != nil {
		return model.Note{}, fmt.Errorf("add note: %w", err)
	}

	select {
	case res := <-done:
		if res.err != nil {
			s.logger.Error("failed to add note", zap.String("owner", owner), zap.Error(res.err))
			return model.Note{}, fmt.Errorf("add note: %w", res.err)
		}
		return res.note, nil
	case <-ctx.Done():
		return model.Note{}, ctx.Err()
	}
}

// Update replaces the note content locally and queues the remote write.
func (s *NoteStore) Update(ctx context.Context, id, content string) (model.Note, error) {
	owner, ok := s.session.Owner()
	if !ok {
		return model.Note{}, ErrUnauthenticated
	}

	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return model.Note{}, ErrNotFound
	}
	s.notes[i].Content = content
	s.notes[i].UpdatedAt = s.now()
	s.touch()
	updated := s.notes[i]
	s.mu.Unlock()

	err := s.dispatch(owner, func(ctx context.Context) {
		if err := s.repo.Patch(ctx, owner, id, content); err != nil {
			s.logger.Error("failed to update note",
				zap.String("owner", owner), zap.String("note_id", id), zap.Error(err))
			s.markStale()
		}
	})
	if err != nil {
		return model.Note{}, fmt.Errorf("update note: %w", err)
	}
	return updated, nil
}

func (s *NoteStore) Delete(ctx context.Context, id string) error {
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
	s.notes = slices.Delete(s.notes, i, i+1)
	s.touch()
	s.mu.Unlock()

	err := s.dispatch(owner, func(ctx context.Context) {
		if err := s.repo.Remove(ctx, owner, id); err != nil {
			s.logger.Error("failed to delete note",
				zap.String("owner", owner), zap.String("note_id", id), zap.Error(err))
			s.markStale()
		}
	})
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	return nil
}

func (s *NoteStore) replace(notes []model.Note) {
	s.notes = slices.Clone(notes)
	if s.notes == nil {
		s.notes = make([]model.Note, 0)
	}
}

func (s *NoteStore) indexOf(id string) int {
	return slices.IndexFunc(s.notes, func(n model.Note) bool { return n.ID == id })
}
