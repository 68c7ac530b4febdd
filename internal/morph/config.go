// Package morph implements feature-line driven image morphing: line
// interpolation, the multi-line reverse warp, tiled execution and the final
// cross-dissolve.
package morph

import (
	"errors"
	"fmt"
	"runtime"
)

// WeightParams tunes how strongly each feature line pulls on a pixel:
// weight = (length^P / (A + d))^B.
type WeightParams struct {
	P float64 `json:"p" yaml:"p" mapstructure:"p"`
	A float64 `json:"a" yaml:"a" mapstructure:"a"`
	B float64 `json:"b" yaml:"b" mapstructure:"b"`
}

// DefaultWeights returns P=0, A=0.001, B=2.
func DefaultWeights() WeightParams {
	return WeightParams{P: 0, A: 0.001, B: 2}
}

// Validate rejects parameters that make every weight non-finite.
func (w WeightParams) Validate() error {
	if w.A <= 0 {
		return fmt.Errorf("weight parameter a must be positive, got %g", w.A)
	}
	if w.B < 0 {
		return fmt.Errorf("weight parameter b must not be negative, got %g", w.B)
	}
	return nil
}

// Config controls the engine. The zero value is not usable; start from
// DefaultConfig.
type Config struct {
	Weights WeightParams

	// TileRows and TileCols define the grid each frame is split into when
	// running in parallel.
	TileRows int
	TileCols int

	// FrameWorkers bounds how many frames are warped at once in parallel
	// mode. Zero means runtime.NumCPU().
	FrameWorkers int

	Easing Easing
}

// DefaultConfig returns the standard 3x3 tiled configuration.
func DefaultConfig() Config {
	return Config{
		Weights:      DefaultWeights(),
		TileRows:     3,
		TileCols:     3,
		FrameWorkers: runtime.NumCPU(),
		Easing:       EasingLinear,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := c.Weights.Validate(); err != nil {
		return err
	}
	if c.TileRows < 1 || c.TileCols < 1 {
		return fmt.Errorf("tile grid must be at least 1x1, got %dx%d", c.TileRows, c.TileCols)
	}
	if c.FrameWorkers < 0 {
		return errors.New("frame workers must not be negative")
	}
	if _, err := ParseEasing(string(c.Easing)); err != nil {
		return err
	}
	return nil
}
