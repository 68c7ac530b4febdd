package morph

import (
	"bytes"
	"context"
	"errors"
	"image"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/MeKo-Tech/morpho/internal/geometry"
	"github.com/MeKo-Tech/morpho/internal/progress"
	"github.com/MeKo-Tech/morpho/internal/raster"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func diagonalPair(w, h int) []geometry.Pair {
	d := geometry.NewLine(0, 0, float64(w-1), float64(h-1))
	return []geometry.Pair{{Source: d, Destination: d}}
}

func TestEngine_RedToBlue(t *testing.T) {
	red := raster.Filled(4, 4, raster.RGB{R: 255})
	blue := raster.Filled(4, 4, raster.RGB{B: 255})

	res, err := NewEngine(DefaultConfig()).Morph(context.Background(), Request{
		Frames:      1,
		Source:      red,
		Destination: blue,
		Pairs:       diagonalPair(4, 4),
		Parallel:    true,
	})
	require.NoError(t, err)
	require.Len(t, res.Frames, 3)

	assert.True(t, res.Frames[0].Equal(red))
	mid := res.Frames[1]
	for y := range 4 {
		for x := range 4 {
			c := mid.At(x, y)
			assert.Greater(t, c.R, uint8(0))
			assert.Less(t, c.R, uint8(255))
			assert.Greater(t, c.B, uint8(0))
			assert.Less(t, c.B, uint8(255))
			assert.Equal(t, raster.RGB{R: 170, B: 85}, c)
		}
	}
	assert.Equal(t, raster.RGB{R: 85, B: 170}, res.Frames[2].At(3, 3))
	assert.Equal(t, 3, res.Lines.Len())
}

func TestEngine_ZeroFrames(t *testing.T) {
	src := gradient(6, 5)
	dst := raster.Filled(6, 5, raster.RGB{R: 40, G: 50, B: 60})

	res, err := NewEngine(DefaultConfig()).Morph(context.Background(), Request{
		Frames:      0,
		Source:      src,
		Destination: dst,
		Pairs:       diagonalPair(6, 5),
	})
	require.NoError(t, err)
	require.Len(t, res.Frames, 2)
	assert.True(t, res.Frames[0].Equal(src))

	for _, c := range res.Frames[1].Pix {
		assert.LessOrEqual(t, c, uint8(255))
	}
	// Input buffers are never written.
	assert.True(t, src.Equal(gradient(6, 5)))
}

func TestEngine_OnePixel(t *testing.T) {
	src := raster.Filled(1, 1, raster.RGB{R: 200, G: 10, B: 10})
	dst := raster.Filled(1, 1, raster.RGB{R: 10, G: 10, B: 200})

	for _, parallel := range []bool{false, true} {
		res, err := NewEngine(DefaultConfig()).Morph(context.Background(), Request{
			Frames:      2,
			Source:      src,
			Destination: dst,
			Pairs: []geometry.Pair{{
				Source:      geometry.NewLine(0, 0, 1, 0),
				Destination: geometry.NewLine(0, 0, 0, 1),
			}},
			Parallel: parallel,
		})
		require.NoError(t, err)
		require.Len(t, res.Frames, 4)
		for _, f := range res.Frames {
			assert.Equal(t, 1, f.Width)
			assert.Equal(t, 1, f.Height)
		}
		assert.Equal(t, raster.RGB{R: 200, G: 10, B: 10}, res.Frames[0].At(0, 0))
	}
}

func TestEngine_ParallelMatchesSequential(t *testing.T) {
	properties := gopter.NewProperties(nil)
	coord := gen.Float64Range(-4, 14)

	properties.Property("scheduling does not change pixels", prop.ForAll(
		func(frames int, a, b, c, d, e, f, g, h float64) bool {
			pair := geometry.Pair{
				Source:      geometry.NewLine(a, b, c, d),
				Destination: geometry.NewLine(e, f, g, h),
			}
			if pair.Source.Length() < 0.5 || pair.Destination.Length() < 0.5 {
				return true
			}
			cross := geometry.Pair{
				Source:      geometry.NewLine(0, 9, 10, 0),
				Destination: geometry.NewLine(1, 8, 9, 1),
			}
			req := Request{
				Frames:      frames,
				Source:      gradient(11, 10),
				Destination: gradient(11, 10),
				Pairs:       []geometry.Pair{pair, cross},
			}
			for i := range req.Destination.Pix {
				req.Destination.Pix[i] = 255 - req.Destination.Pix[i]
			}

			eng := NewEngine(DefaultConfig())
			seq, err := eng.Morph(context.Background(), req)
			if err != nil {
				return false
			}
			req.Parallel = true
			par, err := eng.Morph(context.Background(), req)
			if err != nil || len(par.Frames) != len(seq.Frames) {
				return false
			}
			for i := range seq.Frames {
				if !seq.Frames[i].Equal(par.Frames[i]) {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 3), coord, coord, coord, coord, coord, coord, coord, coord,
	))

	properties.TestingRun(t)
}

func TestEngine_FrameCount(t *testing.T) {
	for _, n := range []int{0, 1, 4, 9} {
		res, err := NewEngine(DefaultConfig()).Morph(context.Background(), Request{
			Frames:      n,
			Source:      gradient(5, 5),
			Destination: gradient(5, 5),
			Pairs:       diagonalPair(5, 5),
			Parallel:    n%2 == 0,
		})
		require.NoError(t, err)
		assert.Len(t, res.Frames, n+2)
	}
}

func TestEngine_SwapIsApproximatelyReversed(t *testing.T) {
	red := raster.Filled(5, 5, raster.RGB{R: 255})
	blue := raster.Filled(5, 5, raster.RGB{B: 255})
	pairs := []geometry.Pair{{
		Source:      geometry.NewLine(0, 0, 4, 4),
		Destination: geometry.NewLine(0, 4, 4, 0),
	}}
	const n = 8

	eng := NewEngine(DefaultConfig())
	orig, err := eng.Morph(context.Background(), Request{Frames: n, Source: red, Destination: blue, Pairs: pairs})
	require.NoError(t, err)

	swapped := []geometry.Pair{pairs[0].Swap()}
	rev, err := eng.Morph(context.Background(), Request{Frames: n, Source: blue, Destination: red, Pairs: swapped})
	require.NoError(t, err)

	// The dissolve weights of mirrored frames differ by one step of 255/(n+2).
	tolerance := 255/(n+2) + 1
	for i := range orig.Frames {
		a := orig.Frames[i]
		b := rev.Frames[n+1-i]
		for k := range a.Pix {
			diff := int(a.Pix[k]) - int(b.Pix[k])
			assert.LessOrEqual(t, max(diff, -diff), tolerance, "frame %d byte %d", i, k)
		}
	}
}

func TestEngine_InputErrors(t *testing.T) {
	eng := NewEngine(DefaultConfig())
	ctx := context.Background()

	_, err := eng.Morph(ctx, Request{Source: raster.New(2, 2), Destination: raster.New(3, 2)})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = eng.Morph(ctx, Request{Frames: -1, Source: raster.New(2, 2), Destination: raster.New(2, 2)})
	assert.ErrorIs(t, err, ErrInvalidFrameCount)

	_, err = eng.Morph(ctx, Request{Source: raster.New(2, 2)})
	assert.ErrorIs(t, err, ErrMissingImage)
}

func TestRequest_Validate(t *testing.T) {
	base := Request{Frames: 1, Source: raster.New(4, 4), Destination: raster.New(4, 4)}

	assert.ErrorIs(t, base.Validate(), ErrNoPairs)

	degenerate := base
	degenerate.Pairs = []geometry.Pair{
		{Source: geometry.NewLine(0, 0, 1, 1), Destination: geometry.NewLine(0, 0, 1, 1)},
		{Source: geometry.NewLine(0, 0, 1, 1), Destination: geometry.NewLine(2, 2, 2, 2)},
	}
	var dle *DegenerateLineError
	require.ErrorAs(t, degenerate.Validate(), &dle)
	assert.Equal(t, 1, dle.Pair)
	assert.Equal(t, "destination", dle.Side)

	ok := base
	ok.Pairs = diagonalPair(4, 4)
	assert.NoError(t, ok.Validate())
}

func TestEngine_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, parallel := range []bool{false, true} {
		res, err := NewEngine(DefaultConfig()).Morph(ctx, Request{
			Frames:      3,
			Source:      gradient(4, 4),
			Destination: gradient(4, 4),
			Pairs:       diagonalPair(4, 4),
			Parallel:    parallel,
		})
		assert.Nil(t, res)
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestEngine_WorkerFailureFailsMorph(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		eng := NewEngine(DefaultConfig())
		var calls atomic.Int32
		eng.warp = func(dst, src *raster.Buffer, sampled []sampledLine, targets []targetLine, region image.Rectangle, w WeightParams) {
			if calls.Add(1) == 3 {
				panic("worker interrupted")
			}
			warpRegion(dst, src, sampled, targets, region, w)
		}

		res, err := eng.Morph(context.Background(), Request{
			Frames:      2,
			Source:      gradient(6, 6),
			Destination: gradient(6, 6),
			Pairs:       diagonalPair(6, 6),
			Parallel:    parallel,
		})
		assert.Nil(t, res)
		var we *WorkerError
		require.ErrorAs(t, err, &we)
		assert.Contains(t, err.Error(), "worker interrupted")
	}
}

func TestEngine_ReportsProgressAndLogs(t *testing.T) {
	var (
		started  int
		last     atomic.Int64
		complete bool
	)
	cb := progress.Funcs{
		Start:    func(total int) { started = total },
		Progress: func(current, _ int) { last.Store(int64(max(int(last.Load()), current))) },
		Complete: func() { complete = true },
	}
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	_, err := NewEngine(DefaultConfig(), WithProgress(cb), WithLogger(logger)).Morph(context.Background(), Request{
		Frames:      2,
		Source:      gradient(4, 4),
		Destination: gradient(4, 4),
		Pairs:       diagonalPair(4, 4),
	})
	require.NoError(t, err)

	// 3 forward + 3 reverse warps, 4 blends
	assert.Equal(t, 10, started)
	assert.Equal(t, int64(10), last.Load())
	assert.True(t, complete)
	assert.Contains(t, logs.String(), `"msg":"morph completed"`)
}

func TestNewEngine_Defaults(t *testing.T) {
	eng := NewEngine(Config{Weights: DefaultWeights()})
	cfg := eng.Config()
	assert.Equal(t, 3, cfg.TileRows)
	assert.Equal(t, 3, cfg.TileCols)
	assert.Positive(t, cfg.FrameWorkers)
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.Weights.A = 0
	assert.ErrorContains(t, bad.Validate(), "weight parameter a")

	bad = DefaultConfig()
	bad.TileCols = 0
	assert.ErrorContains(t, bad.Validate(), "tile grid")

	bad = DefaultConfig()
	bad.Easing = "wobble"
	assert.Error(t, bad.Validate())

	assert.True(t, errors.Is(&WorkerError{Err: ErrNoPairs}, ErrNoPairs))
}

func TestEngine_SequentialCompositeIsCrossDissolve(t *testing.T) {
	src := gradient(5, 4)
	dst := raster.Filled(5, 4, raster.RGB{R: 200, G: 40, B: 90})

	// Lines that never move warp both images onto themselves, so the passes
	// are plain copies of the inputs.
	pairs := []geometry.Pair{{Source: aboveLine, Destination: aboveLine}}
	res, err := NewEngine(DefaultConfig()).Morph(context.Background(), Request{
		Frames:      2,
		Source:      src,
		Destination: dst,
		Pairs:       pairs,
	})
	require.NoError(t, err)

	want, err := CrossDissolve(ForwardPass{src, src, src, src}, ReversePass{dst, dst, dst, dst})
	require.NoError(t, err)
	require.Len(t, res.Frames, len(want))
	for i := range want {
		assert.True(t, want[i].Equal(res.Frames[i]), "frame %d", i)
	}
}
