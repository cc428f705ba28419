package worker

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrPoolStopped = errors.New("worker pool stopped")

// Job is one remote call. ctx carries the per-job timeout.
type Job func(ctx context.Context)

type queued struct {
	key string
	job Job
}

// Pool runs jobs on a fixed set of workers. Jobs submitted with the same key always land on the
// same worker and run in submission order.
type Pool struct {
	logger  *zap.Logger
	count   int
	timeout time.Duration
	queues  []chan queued

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

func NewPool(logger *zap.Logger, count int, timeout time.Duration) *Pool {
	if count < 1 {
		count = 1
	}
	queues := make([]chan queued, count)
	for i := range queues {
		queues[i] = make(chan queued, 256)
	}
	return &Pool{
		logger:  logger,
		count:   count,
		timeout: timeout,
		queues:  queues,
	}
}

func (p *Pool) Start(ctx context.Context) {
	p.logger.Info("Starting worker pool", zap.Int("workers", p.count))

	for i := 0; i < p.count; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop rejects new jobs and waits until every queued job has run.
func (p *Pool) Stop() {
	p.logger.Info("Stopping worker pool...")
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	for _, q := range p.queues {
		close(q)
	}
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("Worker pool stopped")
}

func (p *Pool) Submit(key string, job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrPoolStopped
	}
	p.queues[p.shard(key)] <- queued{key: key, job: job}
	return nil
}

func (p *Pool) shard(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(p.count))
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for q := range p.queues[id] {
		p.run(ctx, id, q)
	}
}

func (p *Pool) run(ctx context.Context, workerID int, q queued) {
	// Jobs outlive a cancelled parent so Stop can drain them.
	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("job panicked",
				zap.Int("worker", workerID),
				zap.String("key", q.key),
				zap.Any("panic", r),
			)
		}
	}()

	q.job(jobCtx)
}
