package worker

import (
	"context"
	"sync"
)

// Task is a unit of work producing a value
type Task[T any] func(ctx context.Context) (T, error)

// Result is the outcome of one task. Index is the submission order.
type Result[T any] struct {
	Index int
	Value T
	Err   error
}

type job[T any] struct {
	index int
	task  Task[T]
}

// Pool runs tasks on a fixed number of goroutines
type Pool[T any] struct {
	workers    int
	jobQueue   chan job[T]
	results    chan Result[T]
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	closeOnce  sync.Once
	submitted  int
}

// NewPool creates a pool whose tasks are cancelled when ctx is
func NewPool[T any](ctx context.Context, workers int) *Pool[T] {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Pool[T]{
		workers:    workers,
		jobQueue:   make(chan job[T], workers*2),
		results:    make(chan Result[T], workers*2),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start launches the workers
func (p *Pool[T]) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool[T]) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case j, ok := <-p.jobQueue:
			if !ok {
				return
			}
			value, err := j.task(p.ctx)
			select {
			case p.results <- Result[T]{Index: j.index, Value: value, Err: err}:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// Submit queues a task. Returns false if the pool was shut down.
// Submit must not be called after Wait, and not concurrently with it.
func (p *Pool[T]) Submit(task Task[T]) bool {
	select {
	case <-p.ctx.Done():
		return false
	case p.jobQueue <- job[T]{index: p.submitted, task: task}:
		p.submitted++
		return true
	}
}

// Wait closes the queue and returns results in completion order
func (p *Pool[T]) Wait() []Result[T] {
	close(p.jobQueue)

	go func() {
		p.wg.Wait()
		p.closeResults()
	}()

	var results []Result[T]
	for result := range p.results {
		results = append(results, result)
	}
	p.cancelFunc()

	return results
}

// Shutdown cancels in-flight tasks and stops the workers
func (p *Pool[T]) Shutdown() {
	p.cancelFunc()
	p.wg.Wait()
	p.closeResults()
}

func (p *Pool[T]) closeResults() {
	p.closeOnce.Do(func() {
		close(p.results)
	})
}

// Run executes tasks with the given concurrency and returns results
// ordered by task index. Tasks that never ran carry ctx's error.
func Run[T any](ctx context.Context, workers int, tasks []Task[T]) []Result[T] {
	out := make([]Result[T], len(tasks))
	if len(tasks) == 0 {
		return out
	}

	pool := NewPool[T](ctx, workers)
	pool.Start()

	// Feed from a goroutine so a full results buffer never blocks submission
	go func() {
		for _, task := range tasks {
			if !pool.Submit(task) {
				break
			}
		}
		close(pool.jobQueue)
	}()

	go func() {
		pool.wg.Wait()
		pool.closeResults()
	}()

	done := make([]bool, len(tasks))
	for result := range pool.results {
		out[result.Index] = result
		done[result.Index] = true
	}
	pool.cancelFunc()

	for i := range out {
		if !done[i] {
			out[i] = Result[T]{Index: i, Err: context.Cause(ctx)}
			if out[i].Err == nil {
				out[i].Err = context.Canceled
			}
		}
	}
	return out
}
