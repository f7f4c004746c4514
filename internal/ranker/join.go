package ranker

import (
	"context"
	"fmt"
	"sync"
)

// Branch is one unit of work in a Join.
type Branch[T any] struct {
	Name string
	Run  func(ctx context.Context) (T, error)
}

// Outcome is the result of one branch.
type Outcome[T any] struct {
	Name  string
	Value T
	Err   error
}

// Join runs every branch in its own goroutine and waits for all of them.
// Outcomes are returned in branch order regardless of completion order.
// A failing branch does not cancel the others; a panicking branch is
// reported as an error.
func Join[T any](ctx context.Context, branches []Branch[T]) []Outcome[T] {
	outcomes := make([]Outcome[T], len(branches))
	var wg sync.WaitGroup

	for i, b := range branches {
		wg.Add(1)
		go func(idx int, br Branch[T]) {
			defer wg.Done()
			defer func() {
				if p := recover(); p != nil {
					outcomes[idx] = Outcome[T]{Name: br.Name, Err: fmt.Errorf("panic in %s: %v", br.Name, p)}
				}
			}()
			// Each goroutine writes only its own slot.
			v, err := br.Run(ctx)
			outcomes[idx] = Outcome[T]{Name: br.Name, Value: v, Err: err}
		}(i, b)
	}

	wg.Wait()
	return outcomes
}
