package morph

import (
	"fmt"
	"strings"

	"github.com/MeKo-Tech/morpho/internal/geometry"
	"github.com/tanema/gween/ease"
	"gonum.org/v1/gonum/spatial/r2"
)

// Easing selects how intermediate feature lines are spaced between the
// source and destination lines.
type Easing string

const (
	EasingLinear     Easing = "linear"
	EasingInQuad     Easing = "in-quad"
	EasingOutQuad    Easing = "out-quad"
	EasingInOutQuad  Easing = "in-out-quad"
	EasingInOutCubic Easing = "in-out-cubic"
	EasingInOutSine  Easing = "in-out-sine"
)

var easingFuncs = map[Easing]ease.TweenFunc{
	EasingInQuad:     ease.InQuad,
	EasingOutQuad:    ease.OutQuad,
	EasingInOutQuad:  ease.InOutQuad,
	EasingInOutCubic: ease.InOutCubic,
	EasingInOutSine:  ease.InOutSine,
}

// Easings lists every accepted easing name.
func Easings() []Easing {
	return []Easing{EasingLinear, EasingInQuad, EasingOutQuad, EasingInOutQuad, EasingInOutCubic, EasingInOutSine}
}

// ParseEasing resolves a name; the empty string means linear.
func ParseEasing(name string) (Easing, error) {
	e := Easing(strings.ToLower(strings.TrimSpace(name)))
	if e == "" || e == EasingLinear {
		return EasingLinear, nil
	}
	if _, ok := easingFuncs[e]; ok {
		return e, nil
	}
	return "", fmt.Errorf("unknown easing %q (supported: %v)", name, Easings())
}

// LineTable holds the feature lines of every frame: row i is frame i and
// column j is pair j. It is read-only once built.
type LineTable [][]geometry.Line

// Frame returns the lines of frame i.
func (t LineTable) Frame(i int) []geometry.Line {
	return t[i]
}

// Len returns the number of frames in the table.
func (t LineTable) Len() int {
	return len(t)
}

// InterpolateLines builds the table for frames intermediate frames. Start and
// end points of each pair move independently; row 0 is the source line and
// row frames+1 the destination line, both copied verbatim.
func InterpolateLines(pairs []geometry.Pair, frames int, easing Easing) LineTable {
	steps := frames + 1
	table := make(LineTable, frames+2)
	for i := range table {
		table[i] = make([]geometry.Line, len(pairs))
	}

	tween := easingFuncs[easing]
	for j, p := range pairs {
		startStep := r2.Scale(1/float64(steps), r2.Sub(p.Destination.Start, p.Source.Start))
		endStep := r2.Scale(1/float64(steps), r2.Sub(p.Destination.End, p.Source.End))

		table[0][j] = p.Source
		for i := 1; i < steps; i++ {
			k := float64(i)
			if tween != nil {
				// gween evaluates in float32: the eased fraction keeps about
				// seven significant digits, so intermediate rows may be off by
				// up to ~1e-7 of the distance travelled. Rows 0 and steps
				// are copied, never eased.
				k = float64(tween(float32(i), 0, 1, float32(steps))) * float64(steps)
			}
			table[i][j] = geometry.Line{
				Start: r2.Add(p.Source.Start, r2.Scale(k, startStep)),
				End:   r2.Add(p.Source.End, r2.Scale(k, endStep)),
			}
		}
		table[steps][j] = p.Destination
	}
	return table
}
