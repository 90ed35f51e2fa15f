package evaluate

import (
	"context"
	"sync"
)

// runPool calls job(i) for i in [0, n) with at most workers running at
// once and returns every error. Jobs not yet started are skipped once ctx
// is done.
func runPool(ctx context.Context, workers, n int, job func(context.Context, int) error, progress func(done, total int)) []error {
	if workers < 1 {
		workers = 1
	}

	var (
		mu   sync.Mutex
		errs []error
		done int
		wg   sync.WaitGroup
	)
	sem := make(chan struct{}, workers)

	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			mu.Lock()
			errs = append(errs, ctx.Err())
			mu.Unlock()
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			err := job(ctx, i)
			mu.Lock()
			if err != nil {
				errs = append(errs, err)
			}
			done++
			if progress != nil {
				progress(done, n)
			}
			mu.Unlock()
		}(i)
	}
	wg.Wait()
	return errs
}
