package utils

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// SupportedImageExtensions lists the file extensions LoadImage accepts.
var SupportedImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".gif", ".tif", ".tiff", ".webp"}

// ImageProcessingError wraps failures of a named image operation.
type ImageProcessingError struct {
	Operation string
	Path      string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("image %s failed for %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("image %s failed: %v", e.Operation, e.Err)
}

func (e *ImageProcessingError) Unwrap() error {
	return e.Err
}

// IsSupportedImage reports whether the path has a supported image extension.
func IsSupportedImage(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedImageExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// ImageMetadata captures lightweight file and pixel information.
type ImageMetadata struct {
	Path      string
	Format    string
	SizeBytes int64
	Width     int
	Height    int
}

// LoadImage opens and decodes an image file.
func LoadImage(path string) (image.Image, ImageMetadata, error) {
	if path == "" {
		return nil, ImageMetadata{}, &ImageProcessingError{Operation: "load", Err: errors.New("empty path")}
	}
	if !IsSupportedImage(path) {
		return nil, ImageMetadata{}, &ImageProcessingError{
			Operation: "load",
			Path:      path,
			Err:       fmt.Errorf("unsupported format: %s", filepath.Ext(path)),
		}
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: reading a user-provided image path is expected
	if err != nil {
		return nil, ImageMetadata{}, &ImageProcessingError{Operation: "load", Path: path, Err: err}
	}

	img, meta, err := DecodeImage(bytes.NewReader(data))
	if err != nil {
		var ipe *ImageProcessingError
		if errors.As(err, &ipe) {
			ipe.Path = path
		}
		return nil, ImageMetadata{}, err
	}
	meta.Path = path
	meta.SizeBytes = int64(len(data))
	return img, meta, nil
}

// DecodeImage decodes an image from r, for uploads that never touch disk.
func DecodeImage(r io.Reader) (image.Image, ImageMetadata, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, ImageMetadata{}, &ImageProcessingError{Operation: "decode", Err: err}
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, ImageMetadata{}, &ImageProcessingError{Operation: "decode", Err: errors.New("image has no pixels")}
	}
	return img, ImageMetadata{Format: format, Width: b.Dx(), Height: b.Dy()}, nil
}
