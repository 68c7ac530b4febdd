package morph

import (
	"fmt"
	"math"

	"github.com/MeKo-Tech/morpho/internal/raster"
)

// ForwardPass holds the source image warped toward every frame's lines.
// Index 0 is the unwarped source.
type ForwardPass []*raster.Buffer

// ReversePass holds the destination image warped toward every frame's
// lines. The last index is the unwarped destination.
type ReversePass []*raster.Buffer

// CrossDissolve blends both passes into the output sequence.
func CrossDissolve(forward ForwardPass, reverse ReversePass) ([]*raster.Buffer, error) {
	if len(forward) != len(reverse) {
		return nil, fmt.Errorf("pass length mismatch: forward %d, reverse %d", len(forward), len(reverse))
	}
	frames := make([]*raster.Buffer, len(forward))
	for i := range frames {
		f, err := BlendFrame(forward, reverse, i)
		if err != nil {
			return nil, err
		}
		frames[i] = f
	}
	return frames, nil
}

// BlendFrame produces output frame i. With T frames in total the forward
// image contributes (T-i)/T and the reverse image i/T of every channel.
func BlendFrame(forward ForwardPass, reverse ReversePass, i int) (*raster.Buffer, error) {
	fwd, rev := forward[i], reverse[i]
	if fwd == nil || rev == nil {
		return nil, fmt.Errorf("frame %d: pass not computed", i)
	}
	if !fwd.SameSize(rev) {
		return nil, fmt.Errorf("frame %d: %w", i, ErrDimensionMismatch)
	}

	total := float64(len(forward))
	fr := (total - float64(i)) / total
	rr := float64(i) / total

	out := raster.New(fwd.Width, fwd.Height)
	for k := range out.Pix {
		out.Pix[k] = channel(float64(fwd.Pix[k])*fr + float64(rev.Pix[k])*rr)
	}
	return out, nil
}

func channel(v float64) uint8 {
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
