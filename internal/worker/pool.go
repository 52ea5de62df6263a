// Package worker provides a bounded fire-and-forget pool for store writes.
//
// MQTT message handlers run on the client library's router goroutines and
// must not block on SQLite. Handlers decode and validate inline, then hand
// the database insert to this pool. A full queue drops the task and logs,
// trading durability of individual writes for a responsive session.
package worker

import (
	"context"
	"sync"

	"github.com/PhucHuwu/iot-core/internal/metrics"
)

// Logger is the minimal logging interface the pool needs.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Task is a unit of background work, typically a repository insert.
// The context is the pool's run context, cancelled on Close.
type Task func(ctx context.Context)

// Pool runs tasks on a fixed set of goroutines fed by a bounded queue.
//
// Thread Safety:
//   - Submit is safe for concurrent use from multiple goroutines.
type Pool struct {
	queue  chan Task
	logger Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeOnce sync.Once
	closed    bool
	closedMu  sync.RWMutex
}

// New creates and starts a pool with the given worker count and queue depth.
func New(workers, queueSize int, logger Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		queue:  make(chan Task, queueSize),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.run()
	}

	return p
}

// run drains the queue until it is closed.
func (p *Pool) run() {
	defer p.wg.Done()
	for task := range p.queue {
		p.execute(task)
		metrics.SetWorkerDepth(len(p.queue))
	}
}

// execute runs one task with panic recovery. A panicking insert must not
// kill a worker goroutine.
func (p *Pool) execute(task Task) {
	defer func() {
		if r := recover(); r != nil && p.logger != nil {
			p.logger.Error("worker task panic recovered", "panic", r)
		}
	}()
	task(p.ctx)
}

// Submit enqueues a task without blocking.
//
// Returns:
//   - bool: false if the queue was full and the task was dropped
func (p *Pool) Submit(task Task) bool {
	if task == nil {
		return false
	}

	// Reject work once Close has begun; sending on a closed channel panics.
	p.closedMu.RLock()
	defer p.closedMu.RUnlock()
	if p.closed {
		return false
	}

	select {
	case p.queue <- task:
		metrics.SetWorkerDepth(len(p.queue))
		return true
	default:
		metrics.IncWorkerDropped()
		if p.logger != nil {
			p.logger.Warn("worker queue full, dropping task", "queue_size", cap(p.queue))
		}
		return false
	}
}

// Close stops accepting work, drains queued tasks, and waits for the
// workers to finish. Tasks already queued still run to completion; their
// context is cancelled only after the drain.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.closedMu.Lock()
		p.closed = true
		p.closedMu.Unlock()

		close(p.queue)
		p.wg.Wait()
		p.cancel()
	})
}
