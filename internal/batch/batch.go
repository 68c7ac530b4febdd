// Package batch runs many morph jobs from a manifest or from job directories
// on a bounded worker pool.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/morpho/internal/pipeline"
	"github.com/MeKo-Tech/morpho/internal/progress"
)

// ErrNoJobs is returned when there is nothing to process.
var ErrNoJobs = errors.New("no jobs found")

// ProcessBatch runs every job and returns their results in input order.
// Without ContinueOnError the first failing job aborts the batch and its
// error is returned alongside the partial result.
func ProcessBatch(ctx context.Context, jobs []Job, config *Config) (*Result, error) {
	if len(jobs) == 0 {
		return nil, ErrNoJobs
	}
	if config == nil {
		config = DefaultConfig()
	}

	var cb progress.Callback = progress.NoOp{}
	if config.ShowProgress && !config.Quiet {
		cb = progress.NewConsole(config.out(), "Morphing: ", "job").
			WithUpdateInterval(config.ProgressInterval)
	}

	pl, err := pipeline.NewBuilder().
		WithConfig(config.Pipeline).
		WithLogger(slog.Default()).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build morph pipeline: %w", err)
	}

	workers := config.workers(len(jobs))
	start := time.Now()
	results := runJobs(ctx, pl, jobs, config, cb)
	res := &Result{
		Results:     results,
		Duration:    time.Since(start),
		WorkerCount: workers,
	}

	slog.Info("batch finished",
		"jobs", len(jobs),
		"failed", res.Failed(),
		"workers", workers,
		"duration", res.Duration,
	)

	if err := ctx.Err(); err != nil {
		return res, err
	}
	if !config.ContinueOnError {
		if err := res.FirstError(); err != nil {
			return res, err
		}
	}
	return res, nil
}

// Result holds the result of batch processing.
type Result struct {
	Results     []*JobResult
	Duration    time.Duration
	WorkerCount int
}

// Failed counts the jobs that did not succeed.
func (r *Result) Failed() int {
	n := 0
	for _, jr := range r.Results {
		if !jr.OK() {
			n++
		}
	}
	return n
}

// FirstError returns the error of the first failed job in input order.
// Jobs skipped because of an earlier failure are only reported when no job
// failed on its own.
func (r *Result) FirstError() error {
	var skipped error
	for _, jr := range r.Results {
		if jr.OK() {
			continue
		}
		err := fmt.Errorf("job %q: %w", jr.Job.Name, jr.Err)
		if errors.Is(jr.Err, context.Canceled) {
			if skipped == nil {
				skipped = err
			}
			continue
		}
		return err
	}
	return skipped
}
