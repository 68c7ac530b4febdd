package export

import (
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"io"
	"os"
)

// EncodeGIF writes frames as a looping animated GIF. Frames are quantised to
// the Plan 9 palette with Floyd-Steinberg dithering.
func EncodeGIF(w io.Writer, frames []image.Image, delay int) error {
	anim := &gif.GIF{
		Image:     make([]*image.Paletted, len(frames)),
		Delay:     make([]int, len(frames)),
		LoopCount: 0,
	}
	for i, f := range frames {
		p := image.NewPaletted(f.Bounds(), palette.Plan9)
		draw.FloydSteinberg.Draw(p, f.Bounds(), f, f.Bounds().Min)
		anim.Image[i] = p
		anim.Delay[i] = delay
	}
	if err := gif.EncodeAll(w, anim); err != nil {
		return fmt.Errorf("encode gif: %w", err)
	}
	return nil
}

// WriteGIF encodes frames into the file at path.
func WriteGIF(path string, frames []image.Image, delay int) (err error) {
	f, err := os.Create(path) //nolint:gosec // G304: output path chosen by the user
	if err != nil {
		return fmt.Errorf("create gif: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return EncodeGIF(f, frames, delay)
}
