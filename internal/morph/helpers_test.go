package morph

import (
	"github.com/MeKo-Tech/morpho/internal/raster"
)

// gradient returns a buffer whose pixel (x, y) encodes its own coordinates.
func gradient(w, h int) *raster.Buffer {
	b := raster.New(w, h)
	for y := range h {
		for x := range w {
			b.Set(x, y, raster.RGB{R: uint8(x * 10), G: uint8(y * 10), B: uint8((x + y) % 256)})
		}
	}
	return b
}
