package parallel

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Result holds the outcome of a parallel task.
type Result struct {
	Name    string
	OK      bool
	Err     error
	Elapsed time.Duration
}

// Task is a function that runs in parallel.
type Task struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Run executes tasks in parallel with the given concurrency limit.
// Returns results in the order tasks were submitted. A failing task does
// not cancel the others.
func Run(ctx context.Context, tasks []Task, concurrency int) []Result {
	if concurrency < 1 {
		concurrency = 4
	}

	results := make([]Result, len(tasks))

	var g errgroup.Group
	g.SetLimit(concurrency)

	for i, task := range tasks {
		g.Go(func() error {
			start := time.Now()
			var err error
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = ctxErr
			} else {
				err = task.Fn(ctx)
			}
			results[i] = Result{Name: task.Name, OK: err == nil, Err: err, Elapsed: time.Since(start)}
			return nil // collect results; never fail the group
		})
	}

	_ = g.Wait()
	return results
}

// Failures returns the results that did not succeed.
func Failures(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.OK {
			out = append(out, r)
		}
	}
	return out
}
