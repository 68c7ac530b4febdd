// Package geometry provides the directed feature line segments that drive a morph.
package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Line is a directed segment from Start to End in image pixel coordinates.
//
// A Line of zero length has an undefined unit normal; callers must not pass
// such lines to the warp.
type Line struct {
	Start r2.Vec
	End   r2.Vec
}

// NewLine builds a line from raw coordinates.
func NewLine(x1, y1, x2, y2 float64) Line {
	return Line{Start: r2.Vec{X: x1, Y: y1}, End: r2.Vec{X: x2, Y: y2}}
}

// Vector returns End - Start.
func (l Line) Vector() r2.Vec {
	return r2.Sub(l.End, l.Start)
}

// Normal returns the vector rotated by 90 degrees, (-v.Y, v.X).
func (l Line) Normal() r2.Vec {
	v := l.Vector()
	return r2.Vec{X: -v.Y, Y: v.X}
}

// Length returns the Euclidean length of the segment.
func (l Line) Length() float64 {
	return r2.Norm(l.Vector())
}

// UnitNormal returns Normal()/Length(). The result is non-finite for a
// zero-length line.
func (l Line) UnitNormal() r2.Vec {
	return r2.Scale(1/l.Length(), l.Normal())
}

// DistanceTo returns the unsigned perpendicular distance from (x, y) to the
// infinite line through the segment.
func (l Line) DistanceTo(x, y float64) float64 {
	p := r2.Sub(r2.Vec{X: x, Y: y}, l.Start)
	return math.Abs(r2.Dot(l.UnitNormal(), p))
}

// ProjectionLengthOn returns the position of the projection of (x, y) along
// the segment as a fraction of its length: 0 at Start, 1 at End, unbounded
// outside.
func (l Line) ProjectionLengthOn(x, y float64) float64 {
	p := r2.Sub(r2.Vec{X: x, Y: y}, l.Start)
	length := l.Length()
	return r2.Dot(p, l.Vector()) / length / length
}

// Scale maps the line through an axis-aligned scale, used to move lines
// between view and image coordinate spaces.
func (l Line) Scale(sx, sy float64) Line {
	return Line{
		Start: r2.Vec{X: l.Start.X * sx, Y: l.Start.Y * sy},
		End:   r2.Vec{X: l.End.X * sx, Y: l.End.Y * sy},
	}
}

// IsDegenerate reports whether the line has (near) zero length.
func (l Line) IsDegenerate() bool {
	return l.Length() < 1e-9
}

// Pair binds a feature line on the source image to its counterpart on the
// destination image.
type Pair struct {
	Source      Line
	Destination Line
}

// Swap returns the pair with source and destination exchanged.
func (p Pair) Swap() Pair {
	return Pair{Source: p.Destination, Destination: p.Source}
}
