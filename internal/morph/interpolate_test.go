package morph

import (
	"testing"

	"github.com/MeKo-Tech/morpho/internal/geometry"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterpolateLines_Linear(t *testing.T) {
	pairs := []geometry.Pair{{
		Source:      geometry.NewLine(0, 0, 10, 0),
		Destination: geometry.NewLine(4, 8, 10, 12),
	}}

	table := InterpolateLines(pairs, 3, EasingLinear)
	require.Equal(t, 5, table.Len())

	assert.Equal(t, pairs[0].Source, table.Frame(0)[0])
	assert.Equal(t, pairs[0].Destination, table.Frame(4)[0])

	mid := table.Frame(2)[0]
	assert.InDelta(t, 2.0, mid.Start.X, 1e-12)
	assert.InDelta(t, 4.0, mid.Start.Y, 1e-12)
	assert.InDelta(t, 10.0, mid.End.X, 1e-12)
	assert.InDelta(t, 6.0, mid.End.Y, 1e-12)

	first := table.Frame(1)[0]
	assert.InDelta(t, 1.0, first.Start.X, 1e-12)
	assert.InDelta(t, 3.0, first.End.Y, 1e-12)
}

func TestInterpolateLines_ZeroFrames(t *testing.T) {
	pairs := []geometry.Pair{
		{Source: geometry.NewLine(0, 0, 1, 1), Destination: geometry.NewLine(2, 2, 3, 3)},
		{Source: geometry.NewLine(5, 0, 5, 9), Destination: geometry.NewLine(6, 0, 6, 9)},
	}

	table := InterpolateLines(pairs, 0, EasingLinear)
	require.Equal(t, 2, table.Len())
	for j, p := range pairs {
		assert.Equal(t, p.Source, table.Frame(0)[j])
		assert.Equal(t, p.Destination, table.Frame(1)[j])
	}
}

func TestInterpolateLines_EasingKeepsEndpoints(t *testing.T) {
	pairs := []geometry.Pair{{
		Source:      geometry.NewLine(0, 0, 10, 0),
		Destination: geometry.NewLine(100, 0, 110, 0),
	}}

	for _, e := range Easings() {
		t.Run(string(e), func(t *testing.T) {
			table := InterpolateLines(pairs, 5, e)
			assert.Equal(t, pairs[0].Source, table.Frame(0)[0])
			assert.Equal(t, pairs[0].Destination, table.Frame(6)[0])
			for i := 1; i < 6; i++ {
				x := table.Frame(i)[0].Start.X
				assert.GreaterOrEqual(t, x, 0.0)
				assert.LessOrEqual(t, x, 100.0)
			}
		})
	}

	in := InterpolateLines(pairs, 3, EasingInQuad).Frame(1)[0].Start.X
	linear := InterpolateLines(pairs, 3, EasingLinear).Frame(1)[0].Start.X
	assert.Less(t, in, linear)
}

func TestInterpolateLines_EasingPrecisionOnLargeSpans(t *testing.T) {
	const span = 1e5
	pairs := []geometry.Pair{{
		Source:      geometry.NewLine(0, 0, 0, 10),
		Destination: geometry.NewLine(span, 0, span, 10),
	}}

	table := InterpolateLines(pairs, 9, EasingInQuad)
	for i := 1; i < 10; i++ {
		frac := float64(i) / 10
		want := span * frac * frac
		assert.InDelta(t, want, table[i][0].Start.X, span*1e-6, "row %d", i)
		assert.InDelta(t, want, table[i][0].End.X, span*1e-6, "row %d", i)
	}
	assert.Equal(t, pairs[0].Destination, table[10][0])
}

func TestParseEasing(t *testing.T) {
	e, err := ParseEasing("")
	require.NoError(t, err)
	assert.Equal(t, EasingLinear, e)

	e, err = ParseEasing(" In-Out-Sine ")
	require.NoError(t, err)
	assert.Equal(t, EasingInOutSine, e)

	_, err = ParseEasing("bounce")
	assert.ErrorContains(t, err, "unknown easing")
}

func TestInterpolateLines_EndpointProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)
	coord := gen.Float64Range(-1000, 1000)

	properties.Property("first and last rows equal the input lines exactly", prop.ForAll(
		func(frames int, a, b, c, d float64) bool {
			p := geometry.Pair{
				Source:      geometry.NewLine(a, b, c, d),
				Destination: geometry.NewLine(d, a, b, c),
			}
			table := InterpolateLines([]geometry.Pair{p}, frames, EasingLinear)
			return table.Len() == frames+2 &&
				table.Frame(0)[0] == p.Source &&
				table.Frame(frames + 1)[0] == p.Destination
		},
		gen.IntRange(0, 30), coord, coord, coord, coord,
	))

	properties.TestingRun(t)
}
