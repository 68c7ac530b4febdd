package testutil

import (
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetProjectRoot(t *testing.T) {
	root, err := GetProjectRoot()
	require.NoError(t, err)
	assert.True(t, FileExists(filepath.Join(root, "go.mod")))
	assert.True(t, DirExists(filepath.Join(root, "internal")))
}

func TestFileAndDirExists(t *testing.T) {
	dir := t.TempDir()
	assert.True(t, DirExists(dir))
	assert.False(t, FileExists(filepath.Join(dir, "missing")))
	assert.False(t, DirExists(filepath.Join(dir, "missing")))

	nested := filepath.Join(dir, "a", "b")
	require.NoError(t, EnsureDir(nested))
	assert.True(t, DirExists(nested))
}

func TestImageGenerators(t *testing.T) {
	red := color.NRGBA{R: 255, A: 255}
	s := Solid(4, 3, red)
	assert.Equal(t, 4, s.Bounds().Dx())
	assert.Equal(t, red, s.NRGBAAt(3, 2))

	g := Gradient(11, 11)
	assert.Equal(t, uint8(0), g.NRGBAAt(0, 0).R)
	assert.Equal(t, uint8(255), g.NRGBAAt(10, 0).R)
	assert.Equal(t, uint8(255), g.NRGBAAt(0, 10).G)

	blue := color.NRGBA{B: 255, A: 255}
	c := Checkerboard(4, 4, 2, red, blue)
	assert.Equal(t, red, c.NRGBAAt(0, 0))
	assert.Equal(t, blue, c.NRGBAAt(2, 0))
	assert.Equal(t, red, c.NRGBAAt(2, 2))

	l := Labeled("Hi", 40, 20)
	assert.Less(t, MeanAbsDiff(l, Solid(40, 20, color.White)), 255.0)
	assert.Positive(t, MeanAbsDiff(l, Solid(40, 20, color.White)))
}

func TestCompareImages(t *testing.T) {
	a := Solid(8, 8, color.NRGBA{R: 100, A: 255})
	b := Solid(8, 8, color.NRGBA{R: 110, A: 255})

	assert.InDelta(t, 10.0/3, MeanAbsDiff(a, b), 1e-9)
	assert.True(t, CompareImages(a, b, 0.02))
	assert.False(t, CompareImages(a, b, 0.01))
	assert.False(t, CompareImages(a, Solid(4, 4, color.White), 1))
}

func TestWriteMorphFixture(t *testing.T) {
	fx := WriteMorphFixture(t)

	assert.True(t, FileExists(fx.Source))
	assert.True(t, FileExists(fx.Destination))
	assert.True(t, FileExists(fx.Pairs))
	assert.Equal(t, 48, LoadImage(t, fx.Source).Bounds().Dx())
	assert.Equal(t, 2, CountFiles(t, fx.Dir, "*.png"))
}
