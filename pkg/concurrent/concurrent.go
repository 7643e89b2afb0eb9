// Package concurrent runs actions over slices in parallel.
package concurrent

import (
	stderrors "errors"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Each runs action for every item, at most limit at a time (limit <= 0 means
// unbounded), and joins every error. One failure does not stop the rest.
func Each[T any](items []T, limit int, action func(T) error) error {
	var group errgroup.Group
	if limit > 0 {
		group.SetLimit(limit)
	}
	var (
		mu   sync.Mutex
		errs []error
	)
	for _, item := range items {
		group.Go(func() error {
			if err := action(item); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = group.Wait()
	return stderrors.Join(errs...)
}
