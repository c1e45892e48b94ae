package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func sleepTask(d time.Duration, fail bool, executed *int32) Task[int] {
	return func(ctx context.Context) (int, error) {
		if executed != nil {
			atomic.AddInt32(executed, 1)
		}
		if d > 0 {
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return 0, ctx.Err()
			}
		}
		if fail {
			return 0, errors.New("task error")
		}
		return 1, nil
	}
}

func TestNewPool(t *testing.T) {
	p1 := NewPool[int](context.Background(), 5)
	if p1.workers != 5 {
		t.Errorf("expected 5 workers, got %d", p1.workers)
	}

	p2 := NewPool[int](context.Background(), 0)
	if p2.workers != 1 {
		t.Errorf("expected default 1 worker for 0 input, got %d", p2.workers)
	}

	p3 := NewPool[int](context.Background(), -1)
	if p3.workers != 1 {
		t.Errorf("expected default 1 worker for negative input, got %d", p3.workers)
	}
}

func TestPool_Execution(t *testing.T) {
	pool := NewPool[int](context.Background(), 2)
	pool.Start()

	var executed int32
	count := 3

	for i := 0; i < count; i++ {
		pool.Submit(sleepTask(0, false, &executed))
	}

	results := pool.Wait()

	if len(results) != count {
		t.Errorf("expected %d results, got %d", count, len(results))
	}
	if atomic.LoadInt32(&executed) != int32(count) {
		t.Errorf("expected %d executed tasks, got %d", count, executed)
	}
}

func TestRun_Concurrency(t *testing.T) {
	workers := 10
	var current, maxConcurrent int32
	var mu sync.Mutex

	tasks := make([]Task[int], 50)
	for i := range tasks {
		idx := i
		tasks[i] = func(ctx context.Context) (int, error) {
			curr := atomic.AddInt32(&current, 1)
			mu.Lock()
			if curr > maxConcurrent {
				maxConcurrent = curr
			}
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&current, -1)
			return idx, nil
		}
	}

	results := Run(context.Background(), workers, tasks)

	if len(results) != len(tasks) {
		t.Fatalf("expected %d results, got %d", len(tasks), len(results))
	}
	for i, r := range results {
		if r.Err != nil || r.Value != i {
			t.Errorf("result %d = %+v, want value %d", i, r, i)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if maxConcurrent > int32(workers) {
		t.Errorf("max concurrency %d exceeded workers %d", maxConcurrent, workers)
	}
}

func TestRun_ErrorHandling(t *testing.T) {
	results := Run(context.Background(), 2, []Task[int]{
		sleepTask(0, true, nil),
		sleepTask(0, false, nil),
	})

	if results[0].Err == nil {
		t.Error("expected first task to fail")
	}
	if results[1].Err != nil || results[1].Value != 1 {
		t.Errorf("expected second task to succeed, got %+v", results[1])
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := Run(ctx, 2, []Task[int]{
		sleepTask(time.Second, false, nil),
		sleepTask(time.Second, false, nil),
	})

	for i, r := range results {
		if r.Err == nil {
			t.Errorf("expected task %d to report cancellation", i)
		}
	}
}

func TestRun_Empty(t *testing.T) {
	if got := Run[int](context.Background(), 4, nil); len(got) != 0 {
		t.Errorf("expected no results, got %d", len(got))
	}
}

func TestPool_SubmitAfterShutdown(t *testing.T) {
	pool := NewPool[int](context.Background(), 2)
	pool.Start()
	pool.Shutdown()

	done := make(chan bool)
	go func() {
		done <- pool.Submit(sleepTask(0, false, nil))
	}()

	select {
	case accepted := <-done:
		if accepted {
			t.Error("expected submit after shutdown to be rejected")
		}
	case <-time.After(time.Second):
		t.Fatal("Submit after shutdown blocked")
	}
}

func TestPool_Shutdown(t *testing.T) {
	pool := NewPool[int](context.Background(), 2)
	pool.Start()

	started := make(chan struct{})
	pool.Submit(func(ctx context.Context) (int, error) {
		close(started)
		<-ctx.Done()
		return 0, ctx.Err()
	})

	<-started
	pool.Shutdown()

	done := make(chan struct{})
	go func() {
		for range pool.results {
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Shutdown timed out")
	}
}
