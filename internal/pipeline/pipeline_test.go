package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"log/slog"
	"testing"

	"github.com/MeKo-Tech/morpho/internal/geometry"
	"github.com/MeKo-Tech/morpho/internal/morph"
	"github.com/MeKo-Tech/morpho/internal/pairs"
	"github.com/MeKo-Tech/morpho/internal/progress"
	"github.com/MeKo-Tech/morpho/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureJob(t *testing.T) Job {
	t.Helper()

	set, err := pairs.Parse([]byte(testutil.FixturePairs))
	require.NoError(t, err)
	return Job{
		Source:      testutil.Checkerboard(48, 48, 8, color.NRGBA{R: 220, A: 255}, color.NRGBA{R: 90, G: 20, A: 255}),
		Destination: testutil.Solid(64, 64, color.NRGBA{B: 200, A: 255}),
		Pairs:       set,
		Frames:      3,
		Parallel:    true,
	}
}

func newPipeline(t *testing.T, b *Builder) *Pipeline {
	t.Helper()

	p, err := b.WithLogger(slog.New(slog.DiscardHandler)).Build()
	require.NoError(t, err)
	return p
}

func TestBuilder(t *testing.T) {
	p := newPipeline(t, NewBuilder())
	assert.Equal(t, 300, p.Config().MaxImageSize)
	assert.False(t, p.Config().OverlayLines)

	p = newPipeline(t, NewBuilder().
		WithMaxImageSize(0).
		WithOverlay(true, color.NRGBA{G: 255, A: 255}))
	assert.Equal(t, 0, p.Config().MaxImageSize)
	assert.True(t, p.Config().OverlayLines)
	assert.Equal(t, color.NRGBA{G: 255, A: 255}, p.Config().OverlayColor)

	bad := morph.DefaultConfig()
	bad.TileRows = 0
	_, err := NewBuilder().WithEngineConfig(bad).Build()
	require.ErrorContains(t, err, "invalid engine config")

	_, err = NewBuilder().WithMaxImageSize(-1).Build()
	require.Error(t, err)
}

func TestPrepare_AlignsCoordinateSpaces(t *testing.T) {
	p := newPipeline(t, NewBuilder())

	req, set, scaled, err := p.Prepare(fixtureJob(t))
	require.NoError(t, err)
	assert.False(t, scaled)
	assert.Nil(t, set.View)

	// Destination is resized to the source size.
	assert.Equal(t, 48, req.Destination.Width)
	assert.Equal(t, 48, req.Destination.Height)
	assert.True(t, req.Source.SameSize(req.Destination))

	src := req.Pairs[0].Source
	assert.InDelta(t, 9.6, src.Start.X, 1e-9)
	assert.InDelta(t, 38.4, src.End.X, 1e-9)

	// 100 -> 64 for the view, then 64 -> 48 for the resize.
	dst := req.Pairs[0].Destination
	assert.InDelta(t, 12, dst.Start.X, 1e-9)
	assert.InDelta(t, 14.4, dst.Start.Y, 1e-9)
	assert.InDelta(t, 36, dst.End.X, 1e-9)
}

func TestPrepare_Downscales(t *testing.T) {
	p := newPipeline(t, NewBuilder().WithMaxImageSize(24))

	req, set, scaled, err := p.Prepare(fixtureJob(t))
	require.NoError(t, err)
	assert.True(t, scaled)
	assert.Equal(t, 24, req.Source.Width)
	assert.Equal(t, 24, req.Destination.Width)
	assert.InDelta(t, 4.8, set.Pairs[0].Source.Start.X, 1e-9)
	assert.InDelta(t, 6, set.Pairs[0].Destination.Start.X, 1e-9)
}

func TestPrepare_Errors(t *testing.T) {
	p := newPipeline(t, NewBuilder())

	job := fixtureJob(t)
	job.Source = nil
	_, _, _, err := p.Prepare(job)
	require.ErrorIs(t, err, morph.ErrMissingImage)

	job = fixtureJob(t)
	job.Pairs = nil
	_, _, _, err = p.Prepare(job)
	require.ErrorIs(t, err, morph.ErrNoPairs)

	job = fixtureJob(t)
	job.Pairs = pairs.New(geometry.Pair{
		Source:      geometry.NewLine(5, 5, 5, 5),
		Destination: geometry.NewLine(1, 1, 9, 9),
	})
	_, _, _, err = p.Prepare(job)
	var degenerate *morph.DegenerateLineError
	require.ErrorAs(t, err, &degenerate)
	assert.Equal(t, "source", degenerate.Side)

	job = fixtureJob(t)
	job.Frames = -1
	_, _, _, err = p.Prepare(job)
	require.ErrorIs(t, err, morph.ErrInvalidFrameCount)
}

func TestRun(t *testing.T) {
	var buf bytes.Buffer
	p, err := NewBuilder().WithLogger(slog.New(slog.NewJSONHandler(&buf, nil))).Build()
	require.NoError(t, err)

	job := fixtureJob(t)
	out, err := p.Run(context.Background(), job)
	require.NoError(t, err)

	require.Len(t, out.Frames, 5)
	assert.Equal(t, 48, out.Width)
	assert.Equal(t, 48, out.Height)
	assert.Zero(t, testutil.MeanAbsDiff(out.Frames[0], job.Source))
	for _, f := range out.Frames {
		assert.Equal(t, image.Rect(0, 0, 48, 48), f.Bounds())
	}
	// The last frame leans towards the blue destination.
	_, _, b, _ := out.Frames[4].At(24, 24).RGBA()
	assert.Greater(t, b>>8, uint32(100))

	assert.Contains(t, out.Stages.String(), "prepare=")
	assert.Contains(t, out.Stages.String(), "morph=")
	assert.Contains(t, buf.String(), "morph job finished")
}

func TestRun_Overlay(t *testing.T) {
	red := color.NRGBA{R: 255, G: 255, A: 255}
	p := newPipeline(t, NewBuilder().WithOverlay(true, red))

	out, err := p.Run(context.Background(), fixtureJob(t))
	require.NoError(t, err)

	first, ok := out.Frames[0].(*image.NRGBA)
	require.True(t, ok)
	// Source line 0 runs along y=9.6 from x=9.6 to x=38.4.
	assert.Equal(t, red, first.NRGBAAt(20, 10))
	assert.Equal(t, red, first.NRGBAAt(10, 10))
}

func TestRun_ProgressOverride(t *testing.T) {
	var fallback, own int
	p := newPipeline(t, NewBuilder().WithProgress(progress.Funcs{
		Progress: func(int, int) { fallback++ },
	}))

	job := fixtureJob(t)
	job.Frames = 1
	job.Parallel = false
	job.Progress = progress.Funcs{Progress: func(int, int) { own++ }}
	_, err := p.Run(context.Background(), job)
	require.NoError(t, err)

	assert.Zero(t, fallback)
	assert.Equal(t, 2*2+3, own)
}

func TestRun_Cancelled(t *testing.T) {
	p := newPipeline(t, NewBuilder())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := p.Run(ctx, fixtureJob(t))
	require.Error(t, err)
	assert.Nil(t, out)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRunFiles(t *testing.T) {
	fx := testutil.WriteMorphFixture(t)
	p := newPipeline(t, NewBuilder())

	out, err := p.RunFiles(context.Background(), FileJob{
		SourcePath:      fx.Source,
		DestinationPath: fx.Destination,
		PairsPath:       fx.Pairs,
		Frames:          2,
	})
	require.NoError(t, err)
	assert.Len(t, out.Frames, 4)
	assert.Equal(t, 2, out.Pairs.Len())

	_, err = p.RunFiles(context.Background(), FileJob{
		SourcePath:      fx.Dir + "/missing.png",
		DestinationPath: fx.Destination,
		PairsPath:       fx.Pairs,
	})
	require.ErrorContains(t, err, "source")

	_, err = p.RunFiles(context.Background(), FileJob{
		SourcePath:      fx.Source,
		DestinationPath: fx.Destination,
	})
	require.ErrorContains(t, err, "pairs file is required")
}

func TestRunFiles_Reverse(t *testing.T) {
	fx := testutil.WriteMorphFixture(t)
	p := newPipeline(t, NewBuilder())

	out, err := p.RunFiles(context.Background(), FileJob{
		SourcePath:      fx.Source,
		DestinationPath: fx.Destination,
		PairsPath:       fx.Pairs,
		Frames:          1,
		Reverse:         true,
	})
	require.NoError(t, err)

	// The destination image leads, so its size wins and frame 0 is that image.
	assert.Equal(t, 64, out.Width)
	assert.Equal(t, 64, out.Height)
	require.Len(t, out.Frames, 3)
	assert.Zero(t, testutil.MeanAbsDiff(testutil.LoadImage(t, fx.Destination), out.Frames[0]))

	forward, err := pairs.Load(fx.Pairs)
	require.NoError(t, err)
	assert.Equal(t, forward.Pairs[0].Destination.Scale(64.0/100, 64.0/100), out.Pairs.Pairs[0].Source)
}
