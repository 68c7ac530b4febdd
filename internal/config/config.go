package config

import (
	"fmt"
	"regexp"
	"runtime"
	"slices"
	"strings"

	"github.com/MeKo-Tech/morpho/internal/morph"
	"github.com/MeKo-Tech/morpho/internal/pipeline"
	"github.com/MeKo-Tech/morpho/internal/utils"
)

var (
	validLogLevels     = []string{"debug", "info", "warn", "error"}
	validOutputFormats = []string{"png", "jpg", "gif", "pdf"}
	hexColor           = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
)

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	weights := morph.DefaultWeights()
	return Config{
		LogLevel: "info",
		Log: LogConfig{
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Morph: MorphConfig{
			Frames:       8,
			Parallel:     true,
			TileRows:     3,
			TileCols:     3,
			FrameWorkers: runtime.NumCPU(),
			Easing:       string(morph.EasingLinear),
			MaxImageSize: 300,
			Weights:      WeightsConfig{P: weights.P, A: weights.A, B: weights.B},
		},
		Output: OutputConfig{
			Dir:          "frames",
			Format:       "png",
			Prefix:       "frame",
			GIFDelayMS:   100,
			OverlayColor: "#ff0000",
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     20,
			TimeoutSec:      60,
			ShutdownTimeout: 10,
			MaxFrames:       60,
		},
		Batch: BatchConfig{
			Workers:         2,
			ContinueOnError: false,
		},
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if !contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if c.Morph.Frames < 0 {
		return fmt.Errorf("invalid frame count: %d (must not be negative)", c.Morph.Frames)
	}
	if c.Morph.TileRows < 1 || c.Morph.TileCols < 1 {
		return fmt.Errorf("invalid tile grid: %dx%d (must be at least 1x1)", c.Morph.TileRows, c.Morph.TileCols)
	}
	if c.Morph.FrameWorkers < 0 {
		return fmt.Errorf("invalid frame workers: %d (must not be negative)", c.Morph.FrameWorkers)
	}
	if c.Morph.MaxImageSize < 0 {
		return fmt.Errorf("invalid max image size: %d (0 disables downscaling)", c.Morph.MaxImageSize)
	}
	if _, err := morph.ParseEasing(c.Morph.Easing); err != nil {
		return err
	}
	if err := c.weights().Validate(); err != nil {
		return err
	}

	if !contains(validOutputFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validOutputFormats, ", "))
	}
	if c.Output.GIFDelayMS < 0 {
		return fmt.Errorf("invalid gif delay: %d", c.Output.GIFDelayMS)
	}
	if !hexColor.MatchString(c.Output.OverlayColor) {
		return fmt.Errorf("invalid overlay color: %q (expected #rrggbb)", c.Output.OverlayColor)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.MaxFrames < 0 {
		return fmt.Errorf("invalid max frames: %d (must not be negative)", c.Server.MaxFrames)
	}

	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}
	return nil
}

// ToEngineConfig converts the morph section into an engine configuration.
func (c *Config) ToEngineConfig() morph.Config {
	easing, err := morph.ParseEasing(c.Morph.Easing)
	if err != nil {
		easing = morph.EasingLinear
	}
	return morph.Config{
		Weights:      c.weights(),
		TileRows:     c.Morph.TileRows,
		TileCols:     c.Morph.TileCols,
		FrameWorkers: c.Morph.FrameWorkers,
		Easing:       easing,
	}
}

// ToPipelineConfig converts the morph and output sections into a pipeline
// configuration.
func (c *Config) ToPipelineConfig() (pipeline.Config, error) {
	overlay, err := utils.ParseHexColor(c.Output.OverlayColor)
	if err != nil {
		return pipeline.Config{}, fmt.Errorf("overlay color: %w", err)
	}
	return pipeline.Config{
		Engine:       c.ToEngineConfig(),
		MaxImageSize: c.Morph.MaxImageSize,
		OverlayLines: c.Output.OverlayLines,
		OverlayColor: overlay,
	}, nil
}

// GIFDelay returns the GIF frame delay in hundredths of a second.
func (c *Config) GIFDelay() int {
	return max(1, c.Output.GIFDelayMS/10)
}

func (c *Config) weights() morph.WeightParams {
	return morph.WeightParams{P: c.Morph.Weights.P, A: c.Morph.Weights.A, B: c.Morph.Weights.B}
}

func contains(slice []string, item string) bool {
	return slices.Contains(slice, item)
}
