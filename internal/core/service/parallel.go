package service

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/hive-corporation/phishwatch/internal/core/domain"
)

// DefaultWorkers is used when a caller asks for zero or fewer workers.
func DefaultWorkers() int {
	return runtime.GOMAXPROCS(0)
}

// forEach runs fn for indexes [0,n) on at most workers goroutines and stops
// scheduling new work once ctx is done.
func forEach(parent context.Context, n, workers int, fn func(ctx context.Context, i int)) error {
	if workers <= 0 {
		workers = DefaultWorkers()
	}

	g, ctx := errgroup.WithContext(parent)
	g.SetLimit(workers)

	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fn(ctx, i)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	// ctx is always done once Wait returns
	return parent.Err()
}

// AssessAll assesses every request concurrently. results[i] always belongs to
// reqs[i]. On cancellation the error is returned together with whatever was
// finished; unfinished slots hold zero Assessments.
func AssessAll(ctx context.Context, a *Assessor, reqs []Request, workers int) ([]domain.Assessment, error) {
	results := make([]domain.Assessment, len(reqs))
	err := forEach(ctx, len(reqs), workers, func(_ context.Context, i int) {
		results[i] = a.Assess(reqs[i])
	})
	return results, err
}
