// Package export writes morph frames as image sequences, animated GIFs or
// PDF flipbooks.
package export

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// Format names an output container.
type Format string

const (
	FormatPNG Format = "png"
	FormatJPG Format = "jpg"
	FormatGIF Format = "gif"
	FormatPDF Format = "pdf"
)

// Formats lists every supported format.
func Formats() []Format {
	return []Format{FormatPNG, FormatJPG, FormatGIF, FormatPDF}
}

// ParseFormat accepts a format name, case-insensitively; "jpeg" is an alias
// for jpg.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "jpeg" {
		f = FormatJPG
	}
	for _, known := range Formats() {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported output format %q", s)
}

// Options controls Write.
type Options struct {
	Dir    string
	Prefix string
	Format Format
	// Delay between GIF frames, in hundredths of a second.
	GIFDelay int
}

// Write stores frames under opts.Dir and returns the paths written: one file
// per frame for image formats, a single file for gif and pdf.
func Write(frames []image.Image, opts Options) ([]string, error) {
	if len(frames) == 0 {
		return nil, errors.New("no frames to write")
	}
	if opts.Prefix == "" {
		opts.Prefix = "frame"
	}
	if err := os.MkdirAll(opts.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	switch opts.Format {
	case FormatPNG, FormatJPG:
		return WriteFrames(frames, opts.Dir, opts.Prefix, opts.Format)
	case FormatGIF:
		path := filepath.Join(opts.Dir, opts.Prefix+".gif")
		return []string{path}, WriteGIF(path, frames, opts.GIFDelay)
	case FormatPDF:
		path := filepath.Join(opts.Dir, opts.Prefix+".pdf")
		return []string{path}, WritePDF(path, frames)
	default:
		return nil, fmt.Errorf("unsupported output format %q", opts.Format)
	}
}

// WriteFrames saves each frame as <prefix>_<index>.<ext>, the index
// zero-padded so the files sort in playback order.
func WriteFrames(frames []image.Image, dir, prefix string, format Format) ([]string, error) {
	width := len(fmt.Sprint(len(frames) - 1))
	paths := make([]string, len(frames))
	for i, f := range frames {
		paths[i] = filepath.Join(dir, fmt.Sprintf("%s_%0*d.%s", prefix, width, i, format))
		if err := imaging.Save(f, paths[i], imaging.JPEGQuality(95)); err != nil {
			return nil, fmt.Errorf("save frame %d: %w", i, err)
		}
	}
	return paths, nil
}
