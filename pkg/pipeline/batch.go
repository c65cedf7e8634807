package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/peergraph/pkg/io"
)

// Job is one input of a batch build.
type Job struct {
	Name  string // label used in logs and reports, usually the file path
	Input *io.Input
}

// JobResult is the outcome of one Job. Exactly one of Result and Err is set.
type JobResult struct {
	Name   string
	Result *Result
	Err    error
}

// BuildAll builds every job with at most limit builds in flight and returns
// results in job order. A failing job does not stop the others; only
// context cancellation does, in which case the context error is returned.
func (r *Runner) BuildAll(ctx context.Context, jobs []Job, opts Options, limit int) ([]JobResult, error) {
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	out := make([]JobResult, len(jobs))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(limit)
	for i, job := range jobs {
		eg.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			res, err := r.Build(ctx, job.Input, opts)
			if err != nil {
				r.logger(opts).Error("build failed", "input", job.Name, "err", err)
			}
			out[i] = JobResult{Name: job.Name, Result: res, Err: err}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
