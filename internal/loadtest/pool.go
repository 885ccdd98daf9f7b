package loadtest

import (
	"context"
	"sync"
)

// forEach runs fn for every index in [0, n) on workers goroutines and stops
// handing out work once ctx is done.
func forEach(ctx context.Context, n, workers int, fn func(ctx context.Context, i int)) {
	jobs := make(chan int, workers*2)
	var wg sync.WaitGroup
	for range max(min(workers, n), 1) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if ctx.Err() != nil {
					continue
				}
				fn(ctx, i)
			}
		}()
	}
	go func() {
		defer close(jobs)
		for i := range n {
			select {
			case <-ctx.Done():
				return
			case jobs <- i:
			}
		}
	}()
	wg.Wait()
}
