package morph

import (
	"errors"
	"fmt"
)

var (
	// ErrDimensionMismatch is returned when source and destination differ in size.
	ErrDimensionMismatch = errors.New("source and destination dimensions differ")
	// ErrInvalidFrameCount is returned for a negative intermediate frame count.
	ErrInvalidFrameCount = errors.New("frame count must not be negative")
	// ErrMissingImage is returned when an input buffer is nil.
	ErrMissingImage = errors.New("source and destination images are required")
	// ErrNoPairs is returned by Request.Validate when no correspondences are given.
	ErrNoPairs = errors.New("at least one feature line pair is required")
)

// Pass names which warp sequence a frame belongs to.
type Pass string

const (
	PassForward   Pass = "forward"
	PassReverse   Pass = "reverse"
	PassComposite Pass = "composite"
)

// WorkerError reports the frame whose computation failed.
type WorkerError struct {
	Pass  Pass
	Frame int
	Err   error
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("%s pass frame %d: %v", e.Pass, e.Frame, e.Err)
}

func (e *WorkerError) Unwrap() error {
	return e.Err
}

// DegenerateLineError reports a zero-length feature line.
type DegenerateLineError struct {
	Pair int
	Side string
}

func (e *DegenerateLineError) Error() string {
	return fmt.Sprintf("pair %d: %s line has zero length", e.Pair, e.Side)
}
