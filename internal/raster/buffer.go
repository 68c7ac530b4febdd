// Package raster holds the flat RGB pixel buffer the morph kernel reads and writes.
package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/MeKo-Tech/morpho/internal/mempool"
	"github.com/disintegration/imaging"
)

// RGB is a single 8-bit-per-channel pixel.
type RGB struct {
	R, G, B uint8
}

// Buffer is a width x height RGB image stored row-major, three bytes per
// pixel. Pixel (x, y) starts at offset (y*Width+x)*3.
type Buffer struct {
	Width  int
	Height int
	Pix    []uint8
}

// New allocates a black buffer of the given size.
func New(width, height int) *Buffer {
	if width < 0 || height < 0 {
		panic(fmt.Sprintf("raster: negative size %dx%d", width, height))
	}
	return &Buffer{Width: width, Height: height, Pix: make([]uint8, width*height*3)}
}

// NewPooled is New backed by a recycled pixel slice. The contents are
// undefined; callers must write every pixel. Release hands the slice back.
func NewPooled(width, height int) *Buffer {
	if width < 0 || height < 0 {
		panic(fmt.Sprintf("raster: negative size %dx%d", width, height))
	}
	return &Buffer{Width: width, Height: height, Pix: mempool.GetBytes(width * height * 3)}
}

// Release returns the pixel slice to the pool and empties the buffer. The
// buffer must not be used afterwards.
func (b *Buffer) Release() {
	if b == nil {
		return
	}
	mempool.PutBytes(b.Pix)
	b.Pix, b.Width, b.Height = nil, 0, 0
}

// Filled allocates a buffer with every pixel set to c.
func Filled(width, height int, c RGB) *Buffer {
	b := New(width, height)
	for i := 0; i < len(b.Pix); i += 3 {
		b.Pix[i], b.Pix[i+1], b.Pix[i+2] = c.R, c.G, c.B
	}
	return b
}

// FromImage converts any image.Image into a Buffer. Alpha is dropped after
// conversion to non-premultiplied RGBA.
func FromImage(img image.Image) *Buffer {
	nrgba := imaging.Clone(img)
	w, h := nrgba.Rect.Dx(), nrgba.Rect.Dy()
	b := New(w, h)
	for y := range h {
		row := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+w*4]
		out := b.Pix[y*w*3 : (y+1)*w*3]
		for x := range w {
			out[x*3] = row[x*4]
			out[x*3+1] = row[x*4+1]
			out[x*3+2] = row[x*4+2]
		}
	}
	return b
}

// Bounds returns the buffer rectangle anchored at the origin.
func (b *Buffer) Bounds() image.Rectangle {
	return image.Rect(0, 0, b.Width, b.Height)
}

// SameSize reports whether both buffers have identical dimensions.
func (b *Buffer) SameSize(o *Buffer) bool {
	return b.Width == o.Width && b.Height == o.Height
}

func (b *Buffer) offset(x, y int) int {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		panic(fmt.Sprintf("raster: pixel (%d,%d) outside %dx%d", x, y, b.Width, b.Height))
	}
	return (y*b.Width + x) * 3
}

// At returns the pixel at (x, y). It panics when the coordinate is outside
// the buffer.
func (b *Buffer) At(x, y int) RGB {
	o := b.offset(x, y)
	return RGB{R: b.Pix[o], G: b.Pix[o+1], B: b.Pix[o+2]}
}

// Set writes the pixel at (x, y). It panics when the coordinate is outside
// the buffer.
func (b *Buffer) Set(x, y int, c RGB) {
	o := b.offset(x, y)
	b.Pix[o], b.Pix[o+1], b.Pix[o+2] = c.R, c.G, c.B
}

// Clone returns a deep copy.
func (b *Buffer) Clone() *Buffer {
	c := &Buffer{Width: b.Width, Height: b.Height, Pix: make([]uint8, len(b.Pix))}
	copy(c.Pix, b.Pix)
	return c
}

// Equal reports whether both buffers have the same size and pixels.
func (b *Buffer) Equal(o *Buffer) bool {
	return b.SameSize(o) && bytes.Equal(b.Pix, o.Pix)
}

// ToNRGBA converts the buffer to an opaque *image.NRGBA.
func (b *Buffer) ToNRGBA() *image.NRGBA {
	img := image.NewNRGBA(b.Bounds())
	for y := range b.Height {
		src := b.Pix[y*b.Width*3 : (y+1)*b.Width*3]
		dst := img.Pix[y*img.Stride : y*img.Stride+b.Width*4]
		for x := range b.Width {
			dst[x*4] = src[x*3]
			dst[x*4+1] = src[x*3+1]
			dst[x*4+2] = src[x*3+2]
			dst[x*4+3] = 0xff
		}
	}
	return img
}

// Color converts the pixel to a color.Color.
func (c RGB) Color() color.Color {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: 0xff}
}
