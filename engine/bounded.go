package engine

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Result carries one task's outcome from RunBounded.
type Result[T any] struct {
	Value T
	Err   error
}

// Task is one unit of work for RunBounded.
type Task[T any] func(ctx context.Context) (T, error)

// RunBounded runs tasks with at most limit in flight at once and returns one
// Result per task, in the original task order. A failing or panicking task
// never aborts its peers. On context cancellation no new tasks are launched;
// tasks already running observe cancellation through ctx, and unlaunched
// tasks report ctx.Err().
func RunBounded[T any](ctx context.Context, tasks []Task[T], limit int) []Result[T] {
	if limit < 1 {
		panic(fmt.Sprintf("concurrency limit must be >= 1, got %d", limit))
	}

	results := make([]Result[T], len(tasks))
	sem := semaphore.NewWeighted(int64(limit))

	var wg sync.WaitGroup
	for i, task := range tasks {
		// Acquire blocks until a permit frees up or ctx is done, so launch
		// order is task order and cancellation stops the pump here.
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = Result[T]{Err: err}
			continue
		}

		wg.Add(1)
		go func(i int, task Task[T]) {
			defer wg.Done()
			defer sem.Release(1)
			defer func() {
				if r := recover(); r != nil {
					results[i] = Result[T]{Err: fmt.Errorf("task panicked: %v", r)}
				}
			}()

			value, err := task(ctx)
			results[i] = Result[T]{Value: value, Err: err}
		}(i, task)
	}

	wg.Wait()
	return results
}
