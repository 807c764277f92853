package utils

import "sync"

// MapParallel runs fn for every item concurrently and returns results and
// errors aligned with the input order. Every item runs to completion; one
// failure never aborts its siblings.
func MapParallel[T, R any](items []T, fn func(T) (R, error)) ([]R, []error) {
	results := make([]R, len(items))
	errs := make([]error, len(items))

	var wg sync.WaitGroup
	wg.Add(len(items))
	for i, item := range items {
		go func(index int, it T) {
			defer wg.Done()
			results[index], errs[index] = fn(it)
		}(i, item)
	}
	wg.Wait()

	return results, errs
}
