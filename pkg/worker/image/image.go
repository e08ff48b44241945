// Package image implements the image fleet handlers: THUMBNAIL,
// IMAGE_CONVERT, IMAGE_COMPRESS and METADATA. All decode through
// disintegration/imaging; JPEG outputs flatten transparency onto white
// because the format carries no alpha channel.
package image

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"

	// Decoder registrations for formats imaging does not pull in itself.
	_ "golang.org/x/image/webp"

	"github.com/filemill/filemill/pkg/worker"
)

// MetadataStore is the slice of the state store the METADATA handler needs.
type MetadataStore interface {
	UpsertExifData(ctx context.Context, fileID string, data map[string]any) error
}

// Handlers returns the image fleet's action implementations.
func Handlers(meta MetadataStore) []worker.Handler {
	return []worker.Handler{
		ThumbnailHandler{},
		ConvertHandler{},
		CompressHandler{},
		NewMetadataHandler(meta),
	}
}

// stem returns name without its extension.
func stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// parseSize parses a "WxH" bounding box such as "256x256".
func parseSize(s string) (int, int, error) {
	parts := strings.Split(s, "x")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid size %q (want WxH)", s)
	}
	width, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	height, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	if width <= 0 || height <= 0 {
		return 0, 0, fmt.Errorf("invalid size %q: dimensions must be positive", s)
	}
	return width, height, nil
}

// flattenOpaque composites img onto a white background. Transparent
// regions become white in formats without an alpha channel.
func flattenOpaque(img image.Image) image.Image {
	if isOpaque(img) {
		return img
	}
	bounds := img.Bounds()
	bg := imaging.New(bounds.Dx(), bounds.Dy(), color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	return imaging.Overlay(bg, img, image.Point{}, 1.0)
}

func isOpaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return false
}
