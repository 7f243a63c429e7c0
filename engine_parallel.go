package provgraph

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/jward/provgraph/internal/frontend"
)

// parseParallel parses jobs with a bounded worker pool. Parsing touches no
// shared state; the results keep the order of jobs so linking stays
// deterministic. Per-file failures are returned in errs; only cancellation
// fails the whole pool.
func (e *Engine) parseParallel(ctx context.Context, jobs []parseJob) ([]*frontend.File, []error, error) {
	if len(jobs) == 0 {
		return nil, nil, nil
	}

	numWorkers := e.workers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	numWorkers = max(1, min(numWorkers, len(jobs)))

	parsed := make([]*frontend.File, len(jobs))
	failed := make([]error, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(numWorkers)
	for i, job := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			f, err := e.parseFile(gctx, job)
			if err != nil {
				failed[i] = fmt.Errorf("parse %s: %w", job.rel, err)
				return nil
			}
			parsed[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var files []*frontend.File
	var errs []error
	for i := range jobs {
		if failed[i] != nil {
			errs = append(errs, failed[i])
			continue
		}
		files = append(files, parsed[i])
	}
	return files, errs, nil
}
