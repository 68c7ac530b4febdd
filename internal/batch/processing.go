package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MeKo-Tech/morpho/internal/export"
	"github.com/MeKo-Tech/morpho/internal/pipeline"
	"github.com/MeKo-Tech/morpho/internal/progress"
)

// JobResult is the outcome of one job.
type JobResult struct {
	Job      Job
	Summary  *pipeline.Summary
	Files    []string
	Duration time.Duration
	Err      error
}

// OK reports whether the job succeeded.
func (r *JobResult) OK() bool {
	return r.Err == nil
}

type indexedJob struct {
	index int
	job   Job
}

type indexedResult struct {
	index  int
	result *JobResult
}

// processJob runs one job and writes its frames.
func processJob(ctx context.Context, pl *pipeline.Pipeline, job Job, cfg *Config) *JobResult {
	start := time.Now()
	res := &JobResult{Job: job}
	defer func() { res.Duration = time.Since(start) }()

	frames := cfg.Frames
	if job.Frames != nil {
		frames = *job.Frames
	}
	parallel := cfg.Parallel
	if job.Parallel != nil {
		parallel = *job.Parallel
	}
	format := cfg.Format
	if job.Format != "" {
		f, err := export.ParseFormat(job.Format)
		if err != nil {
			res.Err = err
			return res
		}
		format = f
	}

	out, err := pl.RunFiles(ctx, pipeline.FileJob{
		SourcePath:      job.Source,
		DestinationPath: job.Destination,
		PairsPath:       job.Pairs,
		Frames:          frames,
		Parallel:        parallel,
	})
	if err != nil {
		res.Err = err
		return res
	}

	files, err := export.Write(out.Frames, export.Options{
		Dir:      job.Output,
		Prefix:   cfg.Prefix,
		Format:   format,
		GIFDelay: cfg.GIFDelay,
	})
	if err != nil {
		res.Err = fmt.Errorf("export: %w", err)
		return res
	}

	res.Files = files
	res.Summary, res.Err = pipeline.Summarize(out)
	if res.Summary != nil {
		res.Summary.Files = files
	}
	return res
}

// runJobs processes jobs on a worker pool and returns results in input
// order. Unless ContinueOnError is set the first failure cancels the jobs
// that have not started yet.
func runJobs(ctx context.Context, pl *pipeline.Pipeline, jobs []Job, cfg *Config, cb progress.Callback) []*JobResult {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cb.OnStart(len(jobs))
	defer cb.OnComplete()

	queue := make(chan indexedJob, len(jobs))
	results := make(chan indexedResult, len(jobs))

	var wg sync.WaitGroup
	for range cfg.workers(len(jobs)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ij := range queue {
				var r *JobResult
				if err := ctx.Err(); err != nil {
					r = &JobResult{Job: ij.job, Err: err}
				} else {
					r = processJob(ctx, pl, ij.job, cfg)
				}
				results <- indexedResult{index: ij.index, result: r}
			}
		}()
	}

	for i, j := range jobs {
		queue <- indexedJob{index: i, job: j}
	}
	close(queue)

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([]*JobResult, len(jobs))
	done := 0
	for ir := range results {
		r := ir.result
		ordered[ir.index] = r
		done++
		if r.Err != nil {
			cb.OnError(done, fmt.Errorf("job %q: %w", r.Job.Name, r.Err))
			if !cfg.ContinueOnError {
				cancel()
			}
		}
		cb.OnProgress(done, len(jobs))
	}
	return ordered
}
