package clv

import (
	"runtime"
	"sync"
)

// minParallelChunk is the smallest number of elements worth handing to a
// worker; below this the goroutine overhead outweighs the elementwise
// transcendental work.
const minParallelChunk = 256

// parallelFor runs fn over [0, n) split into contiguous chunks across
// workers. Each worker processes a dense range to keep writes to the output
// cube cache-friendly. The formulas calling this are pure elementwise maps,
// so there is no ordering requirement and no shared mutable state beyond
// disjoint output slices.
func parallelFor(n int, fn func(start, end int)) {
	if n <= 0 {
		return
	}

	numWorkers := runtime.NumCPU()
	if max := (n + minParallelChunk - 1) / minParallelChunk; numWorkers > max {
		numWorkers = max
	}
	if numWorkers <= 1 {
		fn(0, n)
		return
	}

	chunk := (n + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		start := w * chunk
		end := start + chunk
		if end > n {
			end = n
		}
		go func(start, end int) {
			defer wg.Done()
			if start < end {
				fn(start, end)
			}
		}(start, end)
	}
	wg.Wait()
}
