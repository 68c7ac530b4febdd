package testutil

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// MorphFixture is a source/destination/pairs trio on disk.
type MorphFixture struct {
	Dir         string
	Source      string
	Destination string
	Pairs       string
}

// FixturePairs is a two-pair correspondence file in a 100x100 view.
const FixturePairs = `view: {width: 100, height: 100}
pairs:
  - source:      {start: [20, 20], end: [80, 20]}
    destination: {start: [25, 30], end: [75, 30]}
  - source:      {start: [20, 80], end: [80, 80]}
    destination: {start: [20, 70], end: [80, 75]}
`

// WriteMorphFixture writes a red-ish source, a blue-ish destination of a
// different size and FixturePairs into a fresh temporary directory.
func WriteMorphFixture(t *testing.T) MorphFixture {
	t.Helper()

	dir := t.TempDir()
	fx := MorphFixture{
		Dir:         dir,
		Source:      filepath.Join(dir, "source.png"),
		Destination: filepath.Join(dir, "destination.png"),
		Pairs:       filepath.Join(dir, "pairs.yaml"),
	}
	SaveImage(t, Checkerboard(48, 48, 8, color.NRGBA{R: 220, A: 255}, color.NRGBA{R: 90, G: 20, A: 255}), fx.Source)
	SaveImage(t, Checkerboard(64, 64, 16, color.NRGBA{B: 220, A: 255}, color.NRGBA{G: 30, B: 90, A: 255}), fx.Destination)
	require.NoError(t, os.WriteFile(fx.Pairs, []byte(FixturePairs), 0o600))
	return fx
}
