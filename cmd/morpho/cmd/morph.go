package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/MeKo-Tech/morpho/internal/export"
	"github.com/MeKo-Tech/morpho/internal/pipeline"
	"github.com/MeKo-Tech/morpho/internal/progress"
	"github.com/spf13/cobra"
)

func newMorphCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "morph SOURCE DESTINATION",
		Short: "Morph one image into another",
		Long: `Morph SOURCE into DESTINATION along the feature line pairs in the
pairs file and write the resulting frames.

The sequence holds the source, the requested number of intermediate frames
and the destination. Frames are written as numbered PNG or JPEG files, or as
a single animated GIF or PDF.

Examples:
  morpho morph a.png b.png --pairs lines.yaml
  morpho morph a.png b.png -p lines.yaml -n 20 --format gif --out anim
  morpho morph a.png b.png -p lines.yaml --overlay-lines --json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runMorph(cmd, args[0], args[1])
		},
	}

	f := cmd.Flags()
	f.StringP("pairs", "p", "", "feature line pairs file (YAML or JSON)")
	_ = cmd.MarkFlagRequired("pairs")

	f.IntP("frames", "n", 8, "number of intermediate frames")
	f.Bool("parallel", true, "warp each frame in tiles on several goroutines")
	f.String("easing", "linear", "interpolation curve (linear, in-quad, out-quad, in-out-quad, in-out-cubic, in-out-sine)")
	f.Int("max-size", 300, "downscale inputs larger than this many pixels on either side (0 disables)")
	f.Int("tile-rows", 3, "tile grid rows for parallel warping")
	f.Int("tile-cols", 3, "tile grid columns for parallel warping")
	f.Int("frame-workers", 0, "frames morphed concurrently (0 uses all CPUs)")
	bindFlag(f, "frames", "morph.frames")
	bindFlag(f, "parallel", "morph.parallel")
	bindFlag(f, "easing", "morph.easing")
	bindFlag(f, "max-size", "morph.max_image_size")
	bindFlag(f, "tile-rows", "morph.tile_rows")
	bindFlag(f, "tile-cols", "morph.tile_cols")
	bindFlag(f, "frame-workers", "morph.frame_workers")

	f.StringP("out", "o", "frames", "output directory")
	f.StringP("format", "f", "png", "output format (png, jpg, gif, pdf)")
	f.String("prefix", "frame", "output file name prefix")
	f.Int("gif-delay", 100, "delay between GIF frames in milliseconds")
	f.Bool("overlay-lines", false, "draw the interpolated feature lines on every frame")
	f.String("overlay-color", "#ff0000", "feature line overlay color (#rrggbb)")
	bindFlag(f, "out", "output.dir")
	bindFlag(f, "format", "output.format")
	bindFlag(f, "prefix", "output.prefix")
	bindFlag(f, "gif-delay", "output.gif_delay_ms")
	bindFlag(f, "overlay-lines", "output.overlay_lines")
	bindFlag(f, "overlay-color", "output.overlay_color")

	f.Bool("reverse", false, "morph from DESTINATION back to SOURCE with the same pairs file")
	f.Bool("json", false, "print the run summary as JSON")
	f.String("lines-csv", "", "also write the interpolated feature lines to this CSV file")
	f.Bool("progress", false, "show a progress bar on stderr")

	return cmd
}

func (c *cli) runMorph(cmd *cobra.Command, source, destination string) error {
	cfg := c.config()
	pairsPath, _ := cmd.Flags().GetString("pairs")
	jsonOut, _ := cmd.Flags().GetBool("json")
	linesCSV, _ := cmd.Flags().GetString("lines-csv")
	showProgress, _ := cmd.Flags().GetBool("progress")
	reverse, _ := cmd.Flags().GetBool("reverse")

	format, err := export.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}
	pc, err := cfg.ToPipelineConfig()
	if err != nil {
		return err
	}

	var cb progress.Callback
	if showProgress {
		cb = progress.NewConsole(cmd.ErrOrStderr(), "Morphing: ", "step").WithETA(true)
	}

	pl, err := pipeline.NewBuilder().
		WithConfig(pc).
		WithLogger(slog.Default()).
		WithProgress(cb).
		Build()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Debug("starting morph",
		"source", source,
		"destination", destination,
		"pairs", pairsPath,
		"frames", cfg.Morph.Frames,
		"reverse", reverse,
	)

	out, err := pl.RunFiles(ctx, pipeline.FileJob{
		SourcePath:      source,
		DestinationPath: destination,
		PairsPath:       pairsPath,
		Frames:          cfg.Morph.Frames,
		Parallel:        cfg.Morph.Parallel,
		Reverse:         reverse,
	})
	if err != nil {
		return fmt.Errorf("morph failed: %w", err)
	}

	files, err := export.Write(out.Frames, export.Options{
		Dir:      cfg.Output.Dir,
		Prefix:   cfg.Output.Prefix,
		Format:   format,
		GIFDelay: cfg.GIFDelay(),
	})
	if err != nil {
		return fmt.Errorf("failed to write frames: %w", err)
	}

	if linesCSV != "" {
		csv, err := pipeline.LinesCSV(out)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(linesCSV), 0o750); err != nil {
			return err
		}
		if err := os.WriteFile(linesCSV, []byte(csv), 0o600); err != nil {
			return fmt.Errorf("failed to write lines CSV: %w", err)
		}
	}

	summary, err := pipeline.Summarize(out)
	if err != nil {
		return err
	}
	summary.Files = files

	w := cmd.OutOrStdout()
	if jsonOut {
		s, err := pipeline.ToJSON(summary)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(w, s)
		return nil
	}

	_, _ = fmt.Fprintf(w, "Morphed %d frames (%dx%d, %d line pairs) in %.1f ms\n",
		summary.Frames, summary.Width, summary.Height, summary.Pairs, summary.Timings.Total)
	if summary.Downscaled {
		_, _ = fmt.Fprintln(w, "Inputs were downscaled to fit the size limit")
	}
	_, _ = fmt.Fprintf(w, "Stages: %s\n", out.Stages)
	if len(files) == 1 {
		_, _ = fmt.Fprintf(w, "Wrote %s\n", files[0])
	} else {
		_, _ = fmt.Fprintf(w, "Wrote %d files to %s\n", len(files), cfg.Output.Dir)
	}
	return nil
}
