package server

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
)

// ErrWorkerStopped is returned by Do after Stop.
var ErrWorkerStopped = errors.New("server: worker stopped")

// job is a unit of machine work executed on a worker goroutine.
type job struct {
	fn   func() (any, error)
	done chan jobResult
}

// jobResult holds the return value from a job.
type jobResult struct {
	value any
	err   error
}

// Worker runs machine work on a fixed pool of goroutines so that the number
// of programs executing at once stays bounded no matter how many requests
// arrive. Each machine is only touched by one job at a time; callers hold
// the session lock around Do.
type Worker struct {
	jobs chan job
	quit chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewWorker starts a Worker with n goroutines. n <= 0 means GOMAXPROCS.
func NewWorker(n int) *Worker {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	w := &Worker{
		jobs: make(chan job),
		quit: make(chan struct{}),
	}
	w.wg.Add(n)
	for range n {
		go w.loop()
	}
	return w
}

// loop processes jobs until Stop.
func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case j := <-w.jobs:
			j.done <- w.execute(j.fn)
		case <-w.quit:
			return
		}
	}
}

// execute runs a job, recovering from panics.
func (w *Worker) execute(fn func() (any, error)) jobResult {
	var result jobResult
	func() {
		defer func() {
			if r := recover(); r != nil {
				result.err = fmt.Errorf("panic: %v", r)
			}
		}()
		result.value, result.err = fn()
	}()
	return result
}

// Do submits fn and blocks until it completes. If ctx ends while fn is
// queued, fn never runs; once fn has started Do waits for it to finish, as
// the machine it touches is not safe to hand back early.
func (w *Worker) Do(ctx context.Context, fn func() (any, error)) (any, error) {
	j := job{
		fn:   fn,
		done: make(chan jobResult, 1),
	}
	select {
	case w.jobs <- j:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-w.quit:
		return nil, ErrWorkerStopped
	}
	result := <-j.done
	return result.value, result.err
}

// Stop shuts down the worker goroutines after their current jobs.
func (w *Worker) Stop() {
	w.once.Do(func() { close(w.quit) })
	w.wg.Wait()
}
