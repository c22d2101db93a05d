package services

import (
	"context"
	"sync"
)

// DefaultBatchSize bounds concurrent item operations inside a sync so one
// connector cannot flood its vendor API.
const DefaultBatchSize = 10

// RunBatches processes items in fixed-width batches: within a batch the
// operations run concurrently and are joined before the next batch starts.
// The returned slice aligns with items; nil entries succeeded. A context
// cancellation stops scheduling further batches and marks the remaining
// items with ctx.Err().
func RunBatches[T any](ctx context.Context, items []T, width int, fn func(ctx context.Context, item T) error) []error {
	if width <= 0 {
		width = DefaultBatchSize
	}
	errs := make([]error, len(items))

	for start := 0; start < len(items); start += width {
		if ctx.Err() != nil {
			for i := start; i < len(items); i++ {
				errs[i] = ctx.Err()
			}
			return errs
		}

		end := start + width
		if end > len(items) {
			end = len(items)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = fn(ctx, items[i])
			}(i)
		}
		wg.Wait()
	}
	return errs
}
