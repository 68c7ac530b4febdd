package export

import (
	"fmt"
	"image"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// WritePDF builds a flipbook with one page per frame. The frames are staged
// as PNG files in a temporary directory and imported by pdfcpu.
func WritePDF(path string, frames []image.Image) error {
	tmp, err := os.MkdirTemp("", "morpho-pdf-*")
	if err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tmp) }()

	staged, err := WriteFrames(frames, tmp, "page", FormatPNG)
	if err != nil {
		return err
	}

	_ = os.Remove(path)
	if err := api.ImportImagesFile(staged, path, nil, nil); err != nil {
		return fmt.Errorf("build pdf: %w", err)
	}
	return nil
}

// PageCount returns the number of pages of a PDF file.
func PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("count pdf pages: %w", err)
	}
	return n, nil
}
