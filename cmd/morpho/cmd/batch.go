package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MeKo-Tech/morpho/internal/batch"
	"github.com/MeKo-Tech/morpho/internal/export"
	"github.com/spf13/cobra"
)

func newBatchCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch MANIFEST|DIR...",
		Short: "Run many morph jobs from manifests or job directories",
		Long: `Run a set of morph jobs on a worker pool.

Each argument is either a manifest file (YAML or JSON) listing jobs, or a
directory holding source.*, destination.* and pairs.yaml. Directory jobs write
their frames to a subdirectory of --out named after the job directory.

Examples:
  morpho batch jobs.yaml
  morpho batch shots/ --recursive --workers 4 --format gif
  morpho batch jobs.yaml --results-format json --results-file report.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runBatch(cmd, args)
		},
	}

	f := cmd.Flags()
	f.Int("workers", 2, "number of jobs processed concurrently")
	f.Bool("continue-on-error", false, "keep going when a job fails")
	f.IntP("frames", "n", 8, "intermediate frames for jobs that do not set them")
	f.StringP("out", "o", "frames", "output root for directory jobs")
	f.StringP("format", "f", "png", "output format for jobs that do not set one (png, jpg, gif, pdf)")
	f.Int("max-size", 300, "downscale inputs larger than this many pixels on either side (0 disables)")
	bindFlag(f, "workers", "batch.workers")
	bindFlag(f, "continue-on-error", "batch.continue_on_error")
	bindFlag(f, "frames", "morph.frames")
	bindFlag(f, "out", "output.dir")
	bindFlag(f, "format", "output.format")
	bindFlag(f, "max-size", "morph.max_image_size")

	f.BoolP("recursive", "r", false, "search job directories recursively")
	f.String("results-format", "text", "report format (text, json, csv)")
	f.String("results-file", "", "write the report to this file instead of stdout")
	f.BoolP("quiet", "q", false, "suppress the progress bar and report")
	f.Bool("stats", false, "print batch statistics")

	return cmd
}

func (c *cli) runBatch(cmd *cobra.Command, args []string) error {
	cfg := c.config()
	recursive, _ := cmd.Flags().GetBool("recursive")
	resultsFormat, _ := cmd.Flags().GetString("results-format")
	resultsFile, _ := cmd.Flags().GetString("results-file")
	quiet, _ := cmd.Flags().GetBool("quiet")
	stats, _ := cmd.Flags().GetBool("stats")

	switch resultsFormat {
	case "text", "json", "csv":
	default:
		return fmt.Errorf("invalid results format %q (must be text, json or csv)", resultsFormat)
	}

	format, err := export.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}
	pc, err := cfg.ToPipelineConfig()
	if err != nil {
		return err
	}

	jobs, err := batch.DiscoverJobs(args, recursive, cfg.Output.Dir)
	if err != nil {
		return err
	}

	bc := batch.DefaultConfig()
	bc.Pipeline = pc
	bc.Frames = cfg.Morph.Frames
	bc.Parallel = cfg.Morph.Parallel
	bc.Format = format
	bc.Prefix = cfg.Output.Prefix
	bc.GIFDelay = cfg.GIFDelay()
	bc.Workers = cfg.Batch.Workers
	bc.ContinueOnError = cfg.Batch.ContinueOnError
	bc.Quiet = quiet
	bc.Output = cmd.ErrOrStderr()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, runErr := batch.ProcessBatch(ctx, jobs, bc)
	if res == nil {
		return runErr
	}

	if resultsFile != "" || !quiet {
		if err := c.writeBatchReport(cmd, res, resultsFormat, resultsFile); err != nil {
			return errors.Join(runErr, err)
		}
	}
	if stats && !quiet {
		res.PrintStats(cmd.OutOrStdout())
	}

	if runErr != nil {
		return fmt.Errorf("batch failed: %w", runErr)
	}
	if failed := res.Failed(); failed > 0 {
		return fmt.Errorf("%d of %d jobs failed", failed, len(res.Results))
	}
	return nil
}

func (c *cli) writeBatchReport(cmd *cobra.Command, res *batch.Result, format, file string) error {
	if file != "" {
		return res.SaveResults(format, file, true)
	}
	out, err := res.FormatResults(format)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), out)
	return err
}
