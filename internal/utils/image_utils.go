package utils

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"

	"github.com/MeKo-Tech/morpho/internal/geometry"
	"github.com/disintegration/imaging"
)

// FitWithin downscales img so neither side exceeds maxSize, keeping the
// aspect ratio. Images already small enough, or maxSize <= 0, are returned
// unchanged. The second return value is the applied scale factor.
func FitWithin(img image.Image, maxSize int) (image.Image, float64) {
	b := img.Bounds()
	if maxSize <= 0 || (b.Dx() <= maxSize && b.Dy() <= maxSize) {
		return img, 1
	}
	w, h := fittedSize(b.Dx(), b.Dy(), maxSize)
	return imaging.Resize(img, w, h, imaging.Lanczos), float64(w) / float64(b.Dx())
}

// fittedSize scales the longer side to maxSize with integer arithmetic.
func fittedSize(w, h, maxSize int) (int, int) {
	if w >= h {
		return maxSize, max(1, h*maxSize/w)
	}
	return max(1, w*maxSize/h), maxSize
}

// MatchSize resizes img to exactly width x height unless it already has that
// size. It returns the per-axis scale factors that were applied.
func MatchSize(img image.Image, width, height int) (image.Image, float64, float64) {
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return img, 1, 1
	}
	sx := float64(width) / float64(b.Dx())
	sy := float64(height) / float64(b.Dy())
	return imaging.Resize(img, width, height, imaging.Lanczos), sx, sy
}

// ParseHexColor parses "#rrggbb" into an opaque color.
func ParseHexColor(s string) (color.NRGBA, error) {
	if len(s) != 7 || s[0] != '#' {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: expected #rrggbb", s)
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// DrawLines draws every feature line onto dst. The start point of each line
// is marked with a thicker dot so the direction stays visible.
func DrawLines(dst *image.NRGBA, lines []geometry.Line, col color.Color, thickness int) {
	for _, l := range lines {
		a := image.Pt(int(math.Round(l.Start.X)), int(math.Round(l.Start.Y)))
		b := image.Pt(int(math.Round(l.End.X)), int(math.Round(l.End.Y)))
		DrawLine(dst, a, b, col, thickness)
		drawThickPoint(dst, a.X, a.Y, col, thickness+2)
	}
}

// DrawLine draws a segment with Bresenham's algorithm. Points outside dst
// are skipped.
func DrawLine(dst *image.NRGBA, a, b image.Point, col color.Color, thickness int) {
	x0, y0 := a.X, a.Y
	dx := abs(b.X - x0)
	dy := -abs(b.Y - y0)
	sx, sy := 1, 1
	if x0 > b.X {
		sx = -1
	}
	if y0 > b.Y {
		sy = -1
	}
	e := dx + dy
	for {
		drawThickPoint(dst, x0, y0, col, thickness)
		if x0 == b.X && y0 == b.Y {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func drawThickPoint(dst *image.NRGBA, x, y int, col color.Color, thickness int) {
	r := (max(thickness, 1) - 1) / 2
	bounds := dst.Bounds()
	for yy := y - r; yy <= y+r; yy++ {
		for xx := x - r; xx <= x+r; xx++ {
			if image.Pt(xx, yy).In(bounds) {
				dst.Set(xx, yy, col)
			}
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
