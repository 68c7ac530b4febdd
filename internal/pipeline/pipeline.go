// Package pipeline turns decoded images and a correspondence set into morph
// frames: it aligns coordinate spaces, resizes inputs, runs the engine and
// renders the optional line overlay.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"

	"github.com/MeKo-Tech/morpho/internal/common"
	"github.com/MeKo-Tech/morpho/internal/morph"
	"github.com/MeKo-Tech/morpho/internal/pairs"
	"github.com/MeKo-Tech/morpho/internal/progress"
	"github.com/MeKo-Tech/morpho/internal/raster"
	"github.com/MeKo-Tech/morpho/internal/utils"
	"github.com/disintegration/imaging"
)

// Config holds everything the pipeline needs besides the per-job inputs.
type Config struct {
	Engine morph.Config

	// MaxImageSize caps the longer image side; larger inputs are downscaled
	// before morphing. Zero disables the cap.
	MaxImageSize int

	// OverlayLines draws each frame's interpolated feature lines on top of it.
	OverlayLines bool
	OverlayColor color.NRGBA
}

// DefaultConfig returns the engine defaults with a 300 pixel cap.
func DefaultConfig() Config {
	return Config{
		Engine:       morph.DefaultConfig(),
		MaxImageSize: 300,
		OverlayColor: color.NRGBA{R: 255, A: 255},
	}
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg      Config
	logger   *slog.Logger
	progress progress.Callback
}

// NewBuilder starts from DefaultConfig.
func NewBuilder() *Builder {
	return &Builder{cfg: DefaultConfig()}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// WithEngineConfig sets the morph engine configuration.
func (b *Builder) WithEngineConfig(cfg morph.Config) *Builder {
	b.cfg.Engine = cfg
	return b
}

// WithMaxImageSize sets the downscale cap; 0 disables it.
func (b *Builder) WithMaxImageSize(n int) *Builder {
	b.cfg.MaxImageSize = n
	return b
}

// WithOverlay enables line overlays in the given color.
func (b *Builder) WithOverlay(enabled bool, c color.NRGBA) *Builder {
	b.cfg.OverlayLines = enabled
	b.cfg.OverlayColor = c
	return b
}

// WithLogger sets the logger passed to the engine.
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithProgress sets the default progress callback for runs.
func (b *Builder) WithProgress(cb progress.Callback) *Builder {
	b.progress = cb
	return b
}

// Build validates the configuration and returns the pipeline.
func (b *Builder) Build() (*Pipeline, error) {
	if err := b.cfg.Engine.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	if b.cfg.MaxImageSize < 0 {
		return nil, fmt.Errorf("invalid max image size %d", b.cfg.MaxImageSize)
	}
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{cfg: b.cfg, logger: logger, progress: progress.OrNoOp(b.progress)}, nil
}

// Pipeline runs morph jobs. It holds no per-job state and is safe for
// concurrent use.
type Pipeline struct {
	cfg      Config
	logger   *slog.Logger
	progress progress.Callback
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Job is one morph to perform.
type Job struct {
	Source      image.Image
	Destination image.Image
	Pairs       *pairs.Set
	Frames      int
	Parallel    bool

	// Progress overrides the pipeline's default callback when set.
	Progress progress.Callback
}

// Output is the result of a job.
type Output struct {
	Frames []image.Image
	Width  int
	Height int
	Pairs  *pairs.Set
	Result *morph.Result
	Stages *common.Laps
	Scaled bool
}

// Prepare aligns a job's inputs: the correspondence set is mapped into image
// space, the destination is resized to the source size and both are
// downscaled to MaxImageSize, with the lines following every resize.
func (p *Pipeline) Prepare(job Job) (morph.Request, *pairs.Set, bool, error) {
	if job.Source == nil || job.Destination == nil {
		return morph.Request{}, nil, false, morph.ErrMissingImage
	}
	if job.Pairs == nil {
		return morph.Request{}, nil, false, morph.ErrNoPairs
	}

	srcSize := job.Source.Bounds().Size()
	dstSize := job.Destination.Bounds().Size()
	set := job.Pairs.ToImageSpace(srcSize, dstSize)

	dst, sx, sy := utils.MatchSize(job.Destination, srcSize.X, srcSize.Y)
	set = set.ScaleDestination(sx, sy)

	src, scale := utils.FitWithin(job.Source, p.cfg.MaxImageSize)
	scaled := scale != 1
	if scaled {
		size := src.Bounds().Size()
		dst = imaging.Resize(dst, size.X, size.Y, imaging.Lanczos)
		set = set.Scale(float64(size.X)/float64(srcSize.X), float64(size.Y)/float64(srcSize.Y))
	}

	req := morph.Request{
		Frames:      job.Frames,
		Source:      raster.FromImage(src),
		Destination: raster.FromImage(dst),
		Pairs:       set.Pairs,
		Parallel:    job.Parallel,
	}
	if err := req.Validate(); err != nil {
		return morph.Request{}, nil, false, err
	}
	return req, set, scaled, nil
}

// Run prepares and morphs a job.
func (p *Pipeline) Run(ctx context.Context, job Job) (*Output, error) {
	var (
		laps   common.Laps
		req    morph.Request
		set    *pairs.Set
		scaled bool
		res    *morph.Result
	)

	err := laps.Measure("prepare", func() error {
		var err error
		req, set, scaled, err = p.Prepare(job)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("prepare: %w", err)
	}

	cb := p.progress
	if job.Progress != nil {
		cb = job.Progress
	}
	engine := morph.NewEngine(p.cfg.Engine, morph.WithLogger(p.logger), morph.WithProgress(cb))

	err = laps.Measure("morph", func() error {
		var err error
		res, err = engine.Morph(ctx, req)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("morph: %w", err)
	}

	frames := make([]image.Image, len(res.Frames))
	_ = laps.Measure("render", func() error {
		for i, f := range res.Frames {
			img := f.ToNRGBA()
			if p.cfg.OverlayLines {
				utils.DrawLines(img, res.Lines.Frame(i), p.cfg.OverlayColor, 1)
			}
			frames[i] = img
		}
		return nil
	})

	p.logger.Info("morph job finished",
		"frames", len(frames),
		"width", req.Source.Width,
		"height", req.Source.Height,
		"pairs", len(set.Pairs),
		"downscaled", scaled,
		"stages", laps.String(),
	)

	return &Output{
		Frames: frames,
		Width:  req.Source.Width,
		Height: req.Source.Height,
		Pairs:  set,
		Result: res,
		Stages: &laps,
		Scaled: scaled,
	}, nil
}

// FileJob names the files of a job on disk.
type FileJob struct {
	SourcePath      string
	DestinationPath string
	PairsPath       string
	Frames          int
	Parallel        bool
	Progress        progress.Callback

	// Reverse morphs from the destination image back to the source.
	Reverse bool
}

// LoadJob reads the images and the correspondence file named by fj.
func LoadJob(fj FileJob) (Job, error) {
	src, _, err := utils.LoadImage(fj.SourcePath)
	if err != nil {
		return Job{}, fmt.Errorf("source: %w", err)
	}
	dst, _, err := utils.LoadImage(fj.DestinationPath)
	if err != nil {
		return Job{}, fmt.Errorf("destination: %w", err)
	}
	if fj.PairsPath == "" {
		return Job{}, errors.New("pairs file is required")
	}
	set, err := pairs.Load(fj.PairsPath)
	if err != nil {
		return Job{}, err
	}
	if fj.Reverse {
		src, dst = dst, src
		set = set.Reversed()
	}
	return Job{
		Source:      src,
		Destination: dst,
		Pairs:       set,
		Frames:      fj.Frames,
		Parallel:    fj.Parallel,
		Progress:    fj.Progress,
	}, nil
}

// RunFiles loads the job's files and runs it.
func (p *Pipeline) RunFiles(ctx context.Context, fj FileJob) (*Output, error) {
	job, err := LoadJob(fj)
	if err != nil {
		return nil, err
	}
	return p.Run(ctx, job)
}
