package worker

import (
	"context"
	"log"
	"runtime"
	"sync"
)

// Job is work run on a pool goroutine. It should post its outcome back to
// the event loop rather than touch loop state directly.
type Job func(ctx context.Context)

// Pool is a fixed-size worker pool with a bounded input queue (strict
// back-pressure: Submit never blocks).
type Pool struct {
	jobs chan job

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

type job struct {
	ctx  context.Context
	name string
	run  Job
}

// New creates a worker pool. Size defaults to NumCPU when size<=0 and the
// queue holds at least one job.
func New(size, queue int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	if queue <= 0 {
		queue = 1
	}
	p := &Pool{jobs: make(chan job, queue)}
	p.start(size)
	return p
}

func (p *Pool) start(n int) {
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for j := range p.jobs {
				p.exec(j)
			}
		}()
	}
}

func (p *Pool) exec(j job) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("worker: job %s panicked: %v", j.name, r)
		}
	}()
	if err := j.ctx.Err(); err != nil {
		log.Printf("worker: skipping job %s: %v", j.name, err)
		return
	}
	j.run(j.ctx)
}

// Submit enqueues a job if the queue has room. Returns false if dropped.
func (p *Pool) Submit(ctx context.Context, name string, run Job) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	select {
	case p.jobs <- job{ctx: ctx, name: name, run: run}:
		return true
	default:
		log.Printf("worker: queue full, dropping job %s", name)
		return false
	}
}

// Close stops the pool after draining queued work.
func (p *Pool) Close() {
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
