package runner

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

type Job func(ctx context.Context) error

// RunPool executes jobs with at most maxWorkers concurrently. A failing job
// does not cancel the others; all errors are returned in completion order.
// Jobs not yet started when ctx is cancelled are skipped, including jobs
// already queued behind the limit, and ctx.Err() is reported once.
func RunPool(ctx context.Context, maxWorkers int, jobs []Job) []error {
	if maxWorkers < 1 {
		maxWorkers = 1
	}

	var (
		mu        sync.Mutex
		errs      []error
		cancelled sync.Once
	)
	record := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}
	skip := func() bool {
		if ctx.Err() == nil {
			return false
		}
		cancelled.Do(func() { record(ctx.Err()) })
		return true
	}

	var g errgroup.Group
	g.SetLimit(maxWorkers)
	for _, job := range jobs {
		if skip() {
			break
		}
		g.Go(func() error {
			if skip() {
				return nil
			}
			if err := job(ctx); err != nil {
				record(err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

// Map applies fn to every item with bounded concurrency and returns the
// outputs in input order.
func Map[T, R any](ctx context.Context, maxWorkers int, items []T, fn func(ctx context.Context, item T) R) []R {
	out := make([]R, len(items))
	jobs := make([]Job, len(items))
	for i, item := range items {
		jobs[i] = func(ctx context.Context) error {
			out[i] = fn(ctx, item)
			return nil
		}
	}
	RunPool(ctx, maxWorkers, jobs)
	return out
}
