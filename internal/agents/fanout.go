package agents

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// parallelForEach runs fn for every item in items with at most limit
// concurrent invocations, waiting for all to finish. It is built on a plain
// counting semaphore rather than errgroup.WithContext: errgroup cancels every
// sibling on the first error, which contradicts spec.md §4.7's "the workflow
// is not aborted; partialSuccess becomes true" — a failing item must not
// prevent its siblings from completing.
func parallelForEach[T any](ctx context.Context, limit int, items []T, fn func(ctx context.Context, idx int, item T)) {
	if len(items) == 0 {
		return
	}
	if limit <= 0 || limit > len(items) {
		limit = len(items)
	}
	sem := semaphore.NewWeighted(int64(limit))
	var wg sync.WaitGroup
	wg.Add(len(items))
	for i, item := range items {
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Done()
			continue
		}
		go func(idx int, it T) {
			defer wg.Done()
			defer sem.Release(1)
			defer func() {
				// a panicking unit must not take down the whole fan-out; its
				// clone simply stays whatever fn had produced before the panic.
				_ = recover()
			}()
			fn(ctx, idx, it)
		}(i, item)
	}
	wg.Wait()
}
