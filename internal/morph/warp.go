package morph

import (
	"image"
	"math"

	"github.com/MeKo-Tech/morpho/internal/geometry"
	"github.com/MeKo-Tech/morpho/internal/raster"
	"gonum.org/v1/gonum/spatial/r2"
)

// targetLine caches the per-line values the kernel needs for the frame being
// produced.
type targetLine struct {
	start, end r2.Vec
	vec        r2.Vec
	unitNormal r2.Vec
	length     float64
	strength   float64 // length^P
}

// sampledLine caches the per-line values of the image being sampled.
type sampledLine struct {
	start      r2.Vec
	vec        r2.Vec
	unitNormal r2.Vec
}

func prepareTarget(lines []geometry.Line, w WeightParams) []targetLine {
	out := make([]targetLine, len(lines))
	for i, l := range lines {
		out[i] = targetLine{
			start:      l.Start,
			end:        l.End,
			vec:        l.Vector(),
			unitNormal: l.UnitNormal(),
			length:     l.Length(),
			strength:   math.Pow(l.Length(), w.P),
		}
	}
	return out
}

func prepareSampled(lines []geometry.Line) []sampledLine {
	out := make([]sampledLine, len(lines))
	for i, l := range lines {
		out[i] = sampledLine{start: l.Start, vec: l.Vector(), unitNormal: l.UnitNormal()}
	}
	return out
}

// WarpRegion fills region of dst by reverse mapping every pixel into src.
// srcLines are the feature lines as they lie in src, dstLines as they lie in
// the frame being produced; both slices are indexed by pair.
//
// For each pair the pixel is expressed relative to the target line (fraction
// f along it, distance d from it), the same relative position is located
// against the sampled line, and the per-pair displacements are averaged with
// weight (length^P / (A + d))^B. Coordinates are truncated and clamped to the
// image, and the pixel is copied with nearest-neighbour lookup.
func WarpRegion(dst, src *raster.Buffer, srcLines, dstLines []geometry.Line, region image.Rectangle, w WeightParams) {
	warpRegion(dst, src, prepareSampled(srcLines), prepareTarget(dstLines, w), region, w)
}

func warpRegion(dst, src *raster.Buffer, sampled []sampledLine, targets []targetLine, region image.Rectangle, w WeightParams) {
	region = region.Intersect(dst.Bounds())
	width, height := src.Width, src.Height

	for y := region.Min.Y; y < region.Max.Y; y++ {
		for x := region.Min.X; x < region.Max.X; x++ {
			fx, fy := float64(x), float64(y)

			var sumX, sumY, sumW float64
			for i := range targets {
				t := &targets[i]
				s := &sampled[i]

				px, py := fx-t.start.X, fy-t.start.Y
				f := (px*t.vec.X + py*t.vec.Y) / t.length / t.length

				var d float64
				switch {
				case f < 0:
					d = math.Hypot(px, py)
				case f > 1:
					d = math.Hypot(fx-t.end.X, fy-t.end.Y)
				default:
					d = math.Abs(px*t.unitNormal.X + py*t.unitNormal.Y)
				}

				sx := clamp(int(s.start.X+f*s.vec.X-d*s.unitNormal.X), width)
				sy := clamp(int(s.start.Y+f*s.vec.Y-d*s.unitNormal.Y), height)

				weight := math.Pow(t.strength/(w.A+d), w.B)
				sumX += weight * float64(sx-x)
				sumY += weight * float64(sy-y)
				sumW += weight
			}

			nx, ny := x, y
			if dx, dy := sumX/sumW, sumY/sumW; isFinite(dx) && isFinite(dy) {
				nx = clamp(int(fx+dx), width)
				ny = clamp(int(fy+dy), height)
			}
			dst.Set(x, y, src.At(nx, ny))
		}
	}
}

func clamp(v, size int) int {
	if v < 0 {
		return 0
	}
	if v > size-1 {
		return size - 1
	}
	return v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
