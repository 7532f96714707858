// Package parallel provides the worker pool used by the enrichment stage for
// chunked numeric work. Aggregator fan-out in the pipeline uses conc pools;
// this pool exists for order-preserving map operations over row chunks.
package parallel

import (
	"context"
	"runtime"
	"sync"
)

// Pool is a fixed-size goroutine pool. The zero value is not usable; create
// one with NewPool.
type Pool struct {
	workers int
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewPool creates a pool with the given worker count, defaulting to
// runtime.NumCPU() when workers is not positive.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{workers: workers, ctx: ctx, cancel: cancel}
}

// Close stops the pool. In-flight work finishes; queued work is dropped.
func (p *Pool) Close() { p.cancel() }

// Map applies fn to every item in parallel and returns the results in input
// order.
func Map[T, R any](p *Pool, items []T, fn func(int, T) R) []R {
	if len(items) == 0 {
		return nil
	}

	type job struct {
		index int
		value T
	}
	jobs := make(chan job, len(items))
	results := make([]R, len(items))

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				select {
				case <-p.ctx.Done():
					return
				default:
					results[j.index] = fn(j.index, j.value)
				}
			}
		}()
	}

	for i, item := range items {
		jobs <- job{index: i, value: item}
	}
	close(jobs)
	wg.Wait()

	return results
}

// Chunks splits n rows into roughly equal index ranges, one per worker.
// Each range is [start, end). Fewer chunks are returned when n is small.
func Chunks(n, workers int) [][2]int {
	if n <= 0 {
		return nil
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > n {
		workers = n
	}
	size := (n + workers - 1) / workers
	out := make([][2]int, 0, workers)
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		out = append(out, [2]int{start, end})
	}
	return out
}
