package morph

import (
	"image"

	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
)

// Tiles splits bounds into a rows x cols grid. Columns break at multiples of
// width/cols and rows at multiples of height/rows; the last column and row
// absorb the remainder. Empty tiles are omitted, so small images yield fewer
// tiles than rows*cols.
func Tiles(bounds image.Rectangle, rows, cols int) []image.Rectangle {
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = 1
	}
	tileW := bounds.Dx() / cols
	tileH := bounds.Dy() / rows

	tiles := make([]image.Rectangle, 0, rows*cols)
	for r := range rows {
		y0 := bounds.Min.Y + r*tileH
		y1 := y0 + tileH
		if r == rows-1 {
			y1 = bounds.Max.Y
		}
		for c := range cols {
			x0 := bounds.Min.X + c*tileW
			x1 := x0 + tileW
			if c == cols-1 {
				x1 = bounds.Max.X
			}
			tile := image.Rect(x0, y0, x1, y1)
			if !tile.Empty() {
				tiles = append(tiles, tile)
			}
		}
	}
	return tiles
}

// TileScheduler runs a region function over one frame.
type TileScheduler struct {
	Rows     int
	Cols     int
	Parallel bool
}

// Run calls fn for every tile of bounds and returns once all calls have
// finished. In parallel mode every tile gets its own goroutine and a panic in
// any of them is returned as an error; sequential mode makes one call
// covering the whole of bounds.
func (s TileScheduler) Run(bounds image.Rectangle, fn func(region image.Rectangle)) error {
	if !s.Parallel {
		return panics.Try(func() { fn(bounds) }).AsError()
	}

	p := pool.New().WithErrors()
	for _, tile := range Tiles(bounds, s.Rows, s.Cols) {
		p.Go(func() error {
			return panics.Try(func() { fn(tile) }).AsError()
		})
	}
	return p.Wait()
}
