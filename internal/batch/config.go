package batch

import (
	"io"
	"os"
	"runtime"
	"time"

	"github.com/MeKo-Tech/morpho/internal/export"
	"github.com/MeKo-Tech/morpho/internal/pipeline"
)

// Config holds all configuration for batch processing.
type Config struct {
	// Pipeline settings shared by every job.
	Pipeline pipeline.Config

	// Job defaults for manifest entries that leave them unset.
	Frames   int
	Parallel bool
	Format   export.Format
	Prefix   string
	GIFDelay int

	// Worker settings
	Workers         int
	ContinueOnError bool

	// Progress settings
	ShowProgress     bool
	Quiet            bool
	ProgressInterval time.Duration
	Output           io.Writer
}

// DefaultConfig returns two workers writing PNG sequences with eight
// intermediate frames.
func DefaultConfig() *Config {
	return &Config{
		Pipeline:         pipeline.DefaultConfig(),
		Frames:           8,
		Parallel:         true,
		Format:           export.FormatPNG,
		Prefix:           "frame",
		GIFDelay:         10,
		Workers:          2,
		ShowProgress:     true,
		ProgressInterval: 100 * time.Millisecond,
		Output:           os.Stdout,
	}
}

func (c *Config) workers(jobs int) int {
	w := c.Workers
	if w <= 0 {
		w = runtime.NumCPU()
	}
	return max(1, min(w, jobs))
}

func (c *Config) out() io.Writer {
	if c.Output == nil || c.Quiet {
		return io.Discard
	}
	return c.Output
}
