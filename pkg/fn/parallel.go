package fn

import "sync"

// ParMap applies f to each item with bounded concurrency, preserving order.
func ParMap[T, U any](items []T, workers int, f func(T) U) []U {
	out := make([]U, len(items))
	run(items, workers, func(i int, v T) { out[i] = f(v) })
	return out
}

// ParMapResult applies f with bounded concurrency, returning Results in order.
func ParMapResult[T, U any](items []T, workers int, f func(T) Result[U]) []Result[U] {
	out := make([]Result[U], len(items))
	run(items, workers, func(i int, v T) { out[i] = f(v) })
	return out
}

func run[T any](items []T, workers int, f func(int, T)) {
	if len(items) == 0 {
		return
	}
	if workers <= 0 {
		workers = len(items)
	}
	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)
	for i, v := range items {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, v T) {
			defer func() { <-sem; wg.Done() }()
			f(i, v)
		}(i, v)
	}
	wg.Wait()
}
