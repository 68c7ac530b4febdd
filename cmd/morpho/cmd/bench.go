package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MeKo-Tech/morpho/internal/benchmark"
	"github.com/MeKo-Tech/morpho/internal/pipeline"
	"github.com/spf13/cobra"
)

func newBenchCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench SOURCE DESTINATION",
		Short: "Compare sequential and parallel warping on one job",
		Long: `Morph SOURCE into DESTINATION repeatedly, once with sequential warping
and once with tiled parallel warping, and report the timings.

No frames are written. Logging below warn level is silenced while measuring.

Examples:
  morpho bench a.png b.png --pairs lines.yaml
  morpho bench a.png b.png -p lines.yaml --iterations 10 -n 20 --json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runBench(cmd, args[0], args[1])
		},
	}

	f := cmd.Flags()
	f.StringP("pairs", "p", "", "feature line pairs file (YAML or JSON)")
	_ = cmd.MarkFlagRequired("pairs")
	f.Int("iterations", 3, "timed runs per mode")
	f.IntP("frames", "n", 8, "number of intermediate frames")
	f.Int("max-size", 300, "downscale inputs larger than this many pixels on either side (0 disables)")
	f.Int("tile-rows", 3, "tile grid rows for parallel warping")
	f.Int("tile-cols", 3, "tile grid columns for parallel warping")
	bindFlag(f, "frames", "morph.frames")
	bindFlag(f, "max-size", "morph.max_image_size")
	bindFlag(f, "tile-rows", "morph.tile_rows")
	bindFlag(f, "tile-cols", "morph.tile_cols")
	f.Bool("json", false, "print the comparison as JSON")

	return cmd
}

type benchModeJSON struct {
	Iterations int     `json:"iterations"`
	MeanMS     float64 `json:"mean_ms"`
	StdDevMS   float64 `json:"stddev_ms"`
	TotalMS    float64 `json:"total_ms"`
	AllocKB    int64   `json:"alloc_kb"`
}

type benchJSON struct {
	Width      int           `json:"width"`
	Height     int           `json:"height"`
	Frames     int           `json:"frames"`
	Pairs      int           `json:"pairs"`
	Sequential benchModeJSON `json:"sequential"`
	Parallel   benchModeJSON `json:"parallel"`
	Speedup    float64       `json:"speedup"`
}

func toBenchMode(r benchmark.Result) benchModeJSON {
	ms := func(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }
	return benchModeJSON{
		Iterations: r.Iterations,
		MeanMS:     ms(r.Mean()),
		StdDevMS:   ms(r.StdDev()),
		TotalMS:    ms(r.Duration),
		AllocKB:    r.TotalAllocKB(),
	}
}

func (c *cli) runBench(cmd *cobra.Command, source, destination string) error {
	cfg := c.config()
	pairsPath, _ := cmd.Flags().GetString("pairs")
	iterations, _ := cmd.Flags().GetInt("iterations")
	jsonOut, _ := cmd.Flags().GetBool("json")

	pc, err := cfg.ToPipelineConfig()
	if err != nil {
		return err
	}
	pc.OverlayLines = false

	job, err := pipeline.LoadJob(pipeline.FileJob{
		SourcePath:      source,
		DestinationPath: destination,
		PairsPath:       pairsPath,
		Frames:          cfg.Morph.Frames,
	})
	if err != nil {
		return err
	}

	quiet := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
	pl, err := pipeline.NewBuilder().WithConfig(pc).WithLogger(quiet).Build()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmp, err := benchmark.Compare(ctx, pl, job, iterations)
	if err != nil {
		return fmt.Errorf("benchmark failed: %w", err)
	}

	w := cmd.OutOrStdout()
	if !jsonOut {
		cmp.WriteReport(w)
		return nil
	}
	data, err := json.MarshalIndent(benchJSON{
		Width:      cmp.Width,
		Height:     cmp.Height,
		Frames:     cmp.Frames,
		Pairs:      cmp.Pairs,
		Sequential: toBenchMode(cmp.Sequential),
		Parallel:   toBenchMode(cmp.Parallel),
		Speedup:    cmp.Speedup,
	}, "", "  ")
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(w, string(data))
	return nil
}
