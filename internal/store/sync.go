// Package store keeps each owner's tasks and notes in memory and reconciles them with the
// remote repositories.
//
// Every mutation is applied to local state first and then handed to a Dispatcher as a remote
// job. All jobs of one owner share a dispatcher key, so they run one after another. A failed job
// flags the store as stale; once no job is in flight the store reloads itself from the
// repository, discarding whatever optimistic state the failure left behind.
package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ropl-btc/project-tasks/internal/worker"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation error")
	ErrInvalidIndex    = errors.New("index out of range")
)

const (
	reloadTimeout = 10 * time.Second
	// reconcileAttempts bounds re-reads when writes keep landing during a reload.
	reconcileAttempts = 3
)

// Session supplies the signed-in owner.
type Session interface {
	Owner() (string, bool)
}

// Dispatcher runs remote jobs. Jobs submitted with the same key must run in submission order.
type Dispatcher interface {
	Submit(key string, job worker.Job) error
}

// Inline runs every job synchronously on the caller's goroutine.
type Inline struct {
	Timeout time.Duration
}

func (d Inline) Submit(_ string, job worker.Job) error {
	ctx := context.Background()
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}
	job(ctx)
	return nil
}

// syncState tracks in-flight remote jobs and the stale flag shared by both stores.
type syncState struct {
	mu         sync.Mutex
	idle       *sync.Cond
	pending    int
	stale      bool
	reloading  int
	generation uint64 // bumped by every local mutation

	dispatcher Dispatcher
	logger     *zap.Logger
	reconcile  func(ctx context.Context)
}

func (s *syncState) init(d Dispatcher, logger *zap.Logger, reconcile func(ctx context.Context)) {
	s.idle = sync.NewCond(&s.mu)
	s.dispatcher = d
	s.logger = logger
	s.reconcile = reconcile
}

// dispatch must be called without s.mu held.
func (s *syncState) dispatch(key string, job worker.Job) error {
	s.mu.Lock()
	s.pending++
	s.mu.Unlock()

	err := s.dispatcher.Submit(key, func(ctx context.Context) {
		defer s.finish(ctx)
		job(ctx)
	})
	if err != nil {
		s.logger.Error("remote job rejected", zap.String("owner", key), zap.Error(err))
		s.markStale()
		s.finish(context.Background())
	}
	return err
}

// touch records a local mutation. Must be called with s.mu held.
func (s *syncState) touch() {
	s.generation++
}

// snapshotGeneration is taken before a listing starts; see settled.
func (s *syncState) snapshotGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// settled reports whether a listing started at generation gen may replace local state: nothing was
// mutated locally since, and no remote job is still in flight. Must be called with s.mu held.
func (s *syncState) settled(gen uint64) bool {
	return s.generation == gen && s.pending == 0
}

func (s *syncState) markStale() {
	s.mu.Lock()
	s.stale = true
	s.mu.Unlock()
}

func (s *syncState) finish(ctx context.Context) {
	s.mu.Lock()
	s.pending--
	// A finished write makes any listing that overlapped it suspect.
	s.generation++
	reload := s.pending == 0 && s.stale
	if reload {
		s.stale = false
		s.reloading++
	}
	s.mu.Unlock()

	if !reload {
		s.mu.Lock()
		if s.pending == 0 && s.reloading == 0 {
			s.idle.Broadcast()
		}
		s.mu.Unlock()
		return
	}

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reloadTimeout)
	s.reconcile(rctx)
	cancel()

	s.mu.Lock()
	s.reloading--
	if s.pending == 0 && s.reloading == 0 {
		s.idle.Broadcast()
	}
	s.mu.Unlock()
}

// Pending reports the number of remote jobs not yet finished.
func (s *syncState) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Wait blocks until no remote job is in flight and any pending reconciliation is done.
func (s *syncState) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.mu.Lock()
		for s.pending > 0 || s.reloading > 0 {
			s.idle.Wait()
		}
		s.mu.Unlock()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
