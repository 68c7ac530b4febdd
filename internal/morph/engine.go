package morph

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/MeKo-Tech/morpho/internal/common"
	"github.com/MeKo-Tech/morpho/internal/geometry"
	"github.com/MeKo-Tech/morpho/internal/progress"
	"github.com/MeKo-Tech/morpho/internal/raster"
	"github.com/sourcegraph/conc/pool"
)

// Request describes one morph.
type Request struct {
	// Frames is the number of intermediate frames between source and
	// destination.
	Frames      int
	Source      *raster.Buffer
	Destination *raster.Buffer
	Pairs       []geometry.Pair
	Parallel    bool
}

// Validate checks the caller preconditions Morph itself does not enforce:
// at least one pair and no zero-length line, on top of the checks Morph
// performs.
func (r Request) Validate() error {
	if err := r.check(); err != nil {
		return err
	}
	if len(r.Pairs) == 0 {
		return ErrNoPairs
	}
	for i, p := range r.Pairs {
		if p.Source.IsDegenerate() {
			return &DegenerateLineError{Pair: i, Side: "source"}
		}
		if p.Destination.IsDegenerate() {
			return &DegenerateLineError{Pair: i, Side: "destination"}
		}
	}
	return nil
}

func (r Request) check() error {
	if r.Source == nil || r.Destination == nil {
		return ErrMissingImage
	}
	if !r.Source.SameSize(r.Destination) {
		return fmt.Errorf("%w: %dx%d vs %dx%d", ErrDimensionMismatch,
			r.Source.Width, r.Source.Height, r.Destination.Width, r.Destination.Height)
	}
	if r.Frames < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidFrameCount, r.Frames)
	}
	return nil
}

// Timings records how long each stage of a morph took.
type Timings struct {
	Interpolate time.Duration `json:"interpolate_ns"`
	Warp        time.Duration `json:"warp_ns"`
	Composite   time.Duration `json:"composite_ns"`
	Total       time.Duration `json:"total_ns"`
}

// Result is the output of a morph. Frames has Request.Frames+2 entries and
// belongs to the caller.
type Result struct {
	Frames  []*raster.Buffer
	Lines   LineTable
	Timings Timings
}

type regionWarper func(dst, src *raster.Buffer, sampled []sampledLine, targets []targetLine, region image.Rectangle, w WeightParams)

// Engine runs morphs with a fixed configuration. It is safe for concurrent
// use.
type Engine struct {
	cfg      Config
	logger   *slog.Logger
	progress progress.Callback
	warp     regionWarper
}

// Option customises an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for stage timings.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithProgress reports one unit per warped or blended frame.
func WithProgress(cb progress.Callback) Option {
	return func(e *Engine) {
		e.progress = progress.OrNoOp(cb)
	}
}

// NewEngine creates an engine. Zero tile dimensions fall back to 3x3 and
// zero frame workers to runtime.NumCPU().
func NewEngine(cfg Config, opts ...Option) *Engine {
	if cfg.TileRows < 1 {
		cfg.TileRows = 3
	}
	if cfg.TileCols < 1 {
		cfg.TileCols = 3
	}
	if cfg.FrameWorkers < 1 {
		cfg.FrameWorkers = runtime.NumCPU()
	}
	e := &Engine{
		cfg:      cfg,
		logger:   slog.Default(),
		progress: progress.NoOp{},
		warp:     warpRegion,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the engine configuration after defaults were applied.
func (e *Engine) Config() Config {
	return e.cfg
}

type frameJob struct {
	pass  Pass
	frame int
}

// Morph produces Frames+2 images going from req.Source to req.Destination.
//
// Feature lines are interpolated first, then the source is warped toward
// frames 1..n+1 and the destination toward frames n..0, and finally both
// sequences are cross-dissolved. Parallel and sequential runs produce
// identical pixels. The context is checked between frames; on cancellation
// or any frame failure no result is returned.
func (e *Engine) Morph(ctx context.Context, req Request) (*Result, error) {
	if err := req.check(); err != nil {
		return nil, err
	}

	total := common.NewNamedTimer("morph")
	n := req.Frames
	frameCount := n + 2

	timer := common.NewNamedTimer("interpolate")
	lines := InterpolateLines(req.Pairs, n, e.cfg.Easing)
	timings := Timings{Interpolate: timer.Stop()}

	units := 2*(n+1) + frameCount
	var done atomic.Int64
	e.progress.OnStart(units)
	tick := func() {
		e.progress.OnProgress(int(done.Add(1)), units)
	}

	forward := make(ForwardPass, frameCount)
	reverse := make(ReversePass, frameCount)
	forward[0] = req.Source.Clone()
	reverse[n+1] = req.Destination.Clone()
	defer releasePasses(forward, reverse)

	sampledSrc := prepareSampled(lines.Frame(0))
	sampledDst := prepareSampled(lines.Frame(n + 1))

	jobs := make([]frameJob, 0, 2*(n+1))
	for i := 1; i <= n+1; i++ {
		jobs = append(jobs, frameJob{pass: PassForward, frame: i})
	}
	for i := n; i >= 0; i-- {
		jobs = append(jobs, frameJob{pass: PassReverse, frame: i})
	}

	timer = common.NewNamedTimer("warp")
	err := e.run(ctx, req.Parallel, len(jobs), func(k int) error {
		job := jobs[k]
		targets := prepareTarget(lines.Frame(job.frame), e.cfg.Weights)
		out := raster.NewPooled(req.Source.Width, req.Source.Height)

		src, sampled := req.Source, sampledSrc
		if job.pass == PassReverse {
			src, sampled = req.Destination, sampledDst
		}

		sched := TileScheduler{Rows: e.cfg.TileRows, Cols: e.cfg.TileCols, Parallel: req.Parallel}
		err := sched.Run(out.Bounds(), func(region image.Rectangle) {
			e.warp(out, src, sampled, targets, region, e.cfg.Weights)
		})
		if err != nil {
			out.Release()
			e.progress.OnError(job.frame, err)
			return &WorkerError{Pass: job.pass, Frame: job.frame, Err: err}
		}

		if job.pass == PassForward {
			forward[job.frame] = out
		} else {
			reverse[job.frame] = out
		}
		tick()
		return nil
	})
	timings.Warp = timer.Stop()
	if err != nil {
		return nil, err
	}

	timer = common.NewNamedTimer("composite")
	frames, err := e.composite(ctx, req.Parallel, forward, reverse, tick)
	timings.Composite = timer.Stop()
	if err != nil {
		return nil, err
	}

	timings.Total = total.Stop()
	e.progress.OnComplete()
	e.logger.Debug("morph completed",
		"frames", frameCount,
		"pairs", len(req.Pairs),
		"width", req.Source.Width,
		"height", req.Source.Height,
		"parallel", req.Parallel,
		"interpolate", timings.Interpolate,
		"warp", timings.Warp,
		"composite", timings.Composite,
		"total", timings.Total,
	)

	return &Result{Frames: frames, Lines: lines, Timings: timings}, nil
}

// composite cross-dissolves both passes. Parallel runs blend frames on the
// worker pool; sequential runs hand the passes to CrossDissolve.
func (e *Engine) composite(ctx context.Context, parallel bool, forward ForwardPass, reverse ReversePass, tick func()) ([]*raster.Buffer, error) {
	if !parallel {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		frames, err := CrossDissolve(forward, reverse)
		if err != nil {
			return nil, fmt.Errorf("%s pass: %w", PassComposite, err)
		}
		for range frames {
			tick()
		}
		return frames, nil
	}

	frames := make([]*raster.Buffer, len(forward))
	err := e.run(ctx, true, len(frames), func(i int) error {
		f, err := BlendFrame(forward, reverse, i)
		if err != nil {
			return &WorkerError{Pass: PassComposite, Frame: i, Err: err}
		}
		frames[i] = f
		tick()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return frames, nil
}

// releasePasses recycles the warped intermediates once every frame has been
// blended.
func releasePasses(forward ForwardPass, reverse ReversePass) {
	for _, b := range forward {
		b.Release()
	}
	for _, b := range reverse {
		b.Release()
	}
}

// run executes fn for 0..count-1. In parallel mode up to FrameWorkers calls
// run at once and the first failure cancels the rest; otherwise calls run in
// order. The context is consulted before every call.
func (e *Engine) run(ctx context.Context, parallel bool, count int, fn func(int) error) error {
	if !parallel {
		for i := range count {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(i); err != nil {
				return err
			}
		}
		return nil
	}

	p := pool.New().
		WithMaxGoroutines(e.cfg.FrameWorkers).
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()
	for i := range count {
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(i)
		})
	}
	if err := p.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
