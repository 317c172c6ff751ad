package worker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/baharkarakas/bookswap-backend/internal/metrics"
)

// Job is a background side effect. Its context is detached from the request that queued it.
type Job func(ctx context.Context) error

type task struct {
	name string
	run  Job
}

type Pool struct {
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
	jobs   chan task
	log    *slog.Logger
}

func NewPool(n int, log *slog.Logger) *Pool {
	if n <= 0 {
		n = 1
	}
	if log == nil {
		log = slog.Default()
	}
	p := &Pool{jobs: make(chan task, 1024), log: log}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for t := range p.jobs {
				metrics.WorkerQueueDepth.Dec()
				if err := t.run(context.Background()); err != nil {
					metrics.WorkerJobFailures.Inc()
					p.log.Error("background job failed", "job", t.name, "err", err)
				}
			}
		}()
	}
	return p
}

// Submit queues job. It reports false if the pool is already stopped.
func (p *Pool) Submit(name string, job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	metrics.WorkerQueueDepth.Inc()
	p.jobs <- task{name: name, run: job}
	return true
}

// Stop rejects new jobs, drains the queue and waits for workers to finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}
