package concurrency

import (
	"context"
	"fmt"
	"sync"
)

type Work[T any] func(ctx context.Context) (T, error)

type Result[T any] struct {
	Value T
	Error error
}

// WorkPool runs queued work on a fixed number of goroutines. Results keep the order the work
// was added in.
type WorkPool[T any] struct {
	workerCount int
	works       []Work[T]
}

func NewWorkPool[T any](workerCount int) *WorkPool[T] {
	if workerCount < 1 {
		workerCount = 1
	}

	return &WorkPool[T]{
		workerCount: workerCount,
	}
}

func (w *WorkPool[T]) AddJob(job Work[T]) {
	w.works = append(w.works, job)
}

func (w *WorkPool[T]) Len() int {
	return len(w.works)
}

// Run executes every queued work item and clears the queue. Work that has not started when
// ctx is done reports ctx.Err().
func (w *WorkPool[T]) Run(ctx context.Context) []Result[T] {
	works := w.works
	w.works = nil

	results := make([]Result[T], len(works))
	indexes := make(chan int)

	var wg sync.WaitGroup
	for i := 0; i < w.workerCount && i < len(works); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range indexes {
				results[idx] = run(ctx, works[idx])
			}
		}()
	}

	for idx := range works {
		indexes <- idx
	}
	close(indexes)
	wg.Wait()

	return results
}

func run[T any](ctx context.Context, work Work[T]) (result Result[T]) {
	if err := ctx.Err(); err != nil {
		result.Error = err
		return result
	}

	defer func() {
		if r := recover(); r != nil {
			result = Result[T]{Error: fmt.Errorf("paniced with %v", r)}
		}
	}()

	v, err := work(ctx)
	return Result[T]{Value: v, Error: err}
}
