package engine

import (
	"log/slog"
	"sync"
)

// runBounded executes n index-addressed tasks over a fixed pool of workers.
// The pool size bounds socket and automation-session pressure regardless of n.
// A panicking task is recovered and logged; its siblings run to completion and
// its slot simply stays unfilled. Every submitted task runs to completion;
// there is no cross-task cancellation.
func runBounded(workers, n int, task func(i int)) {
	if workers < 1 {
		workers = 1
	}

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					slog.Default().Error("extraction task panicked", "task", i, "panic", r)
				}
			}()
			task(i)
		}(i)
	}

	wg.Wait()
}
