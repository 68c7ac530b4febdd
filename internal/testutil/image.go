package testutil

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Solid returns a width x height image filled with c.
func Solid(width, height int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{c}, image.Point{}, draw.Src)
	return img
}

// Gradient returns an image whose red channel grows left to right and whose
// green channel grows top to bottom.
func Gradient(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / max(1, width-1)),
				G: uint8(y * 255 / max(1, height-1)),
				B: 128,
				A: 255,
			})
		}
	}
	return img
}

// Checkerboard returns alternating cells of a and b, cell pixels wide.
func Checkerboard(width, height, cell int, a, b color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			if (x/cell+y/cell)%2 == 0 {
				img.Set(x, y, a)
			} else {
				img.Set(x, y, b)
			}
		}
	}
	return img
}

// Labeled draws text centered on a white image, which gives warps a visible
// structure to move around.
func Labeled(text string, width, height int) *image.NRGBA {
	img := Solid(width, height, color.White)
	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: img, Src: image.NewUniform(color.Black), Face: face}
	w := font.MeasureString(face, text).Ceil()
	h := face.Metrics().Height.Ceil()
	drawer.Dot = fixed.P((width-w)/2, (height+h)/2)
	drawer.DrawString(text)
	return img
}

// SaveImage writes img to path, creating parent directories. The format
// follows the extension.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()

	require.NoError(t, EnsureDir(filepath.Dir(path)))
	require.NoError(t, imaging.Save(img, path), "Failed to save image %s", path)
}

// LoadImage opens an image for assertions.
func LoadImage(t *testing.T, path string) image.Image {
	t.Helper()

	img, err := imaging.Open(path)
	require.NoError(t, err, "Failed to open image file %s", path)
	return img
}

// MeanAbsDiff returns the mean absolute per-channel difference of two
// equally sized images on the 0..255 scale, or +Inf if the sizes differ.
func MeanAbsDiff(a, b image.Image) float64 {
	ba, bb := a.Bounds(), b.Bounds()
	if ba.Size() != bb.Size() {
		return math.Inf(1)
	}
	var total float64
	for y := range ba.Dy() {
		for x := range ba.Dx() {
			r1, g1, b1, _ := a.At(ba.Min.X+x, ba.Min.Y+y).RGBA()
			r2, g2, b2, _ := b.At(bb.Min.X+x, bb.Min.Y+y).RGBA()
			total += math.Abs(float64(r1>>8)-float64(r2>>8)) +
				math.Abs(float64(g1>>8)-float64(g2>>8)) +
				math.Abs(float64(b1>>8)-float64(b2>>8))
		}
	}
	return total / float64(3*ba.Dx()*ba.Dy())
}

// CompareImages reports whether two images differ by at most tolerance on
// average, where tolerance is a fraction of the full channel range.
func CompareImages(a, b image.Image, tolerance float64) bool {
	return MeanAbsDiff(a, b)/255 <= tolerance
}
