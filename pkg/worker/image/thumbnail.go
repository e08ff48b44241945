package image

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/disintegration/imaging"

	"github.com/filemill/filemill/pkg/models"
	"github.com/filemill/filemill/pkg/objectstore"
	"github.com/filemill/filemill/pkg/worker"
)

const (
	defaultThumbSize = "256x256"
	thumbnailQuality = 85
)

// ThumbnailHandler downsizes an image to fit the requested bounding box.
// params.size is "WxH" (default 256x256); images already inside the box
// are never upscaled.
type ThumbnailHandler struct{}

func (ThumbnailHandler) Kind() models.ActionKind { return models.ActionThumbnail }

func (ThumbnailHandler) Execute(ctx context.Context, req *worker.Request) (*worker.Result, error) {
	size := req.StringParam("size", defaultThumbSize)
	width, height, err := parseSize(size)
	if err != nil {
		return nil, err
	}

	img, err := imaging.Open(req.InputPath)
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	thumb := flattenOpaque(imaging.Fit(img, width, height, imaging.Lanczos))

	out := filepath.Join(req.WorkDir, "thumbnail.jpg")
	if err := imaging.Save(thumb, out, imaging.JPEGQuality(thumbnailQuality)); err != nil {
		return nil, fmt.Errorf("encoding thumbnail: %w", err)
	}

	key := fmt.Sprintf("%s_thumb_%s.jpg", stem(req.File.OriginalName), size)
	return &worker.Result{Artifact: &worker.Artifact{
		LocalPath: out,
		Bucket:    objectstore.BucketThumbnails,
		Key:       key,
		Name:      key,
		MimeType:  "image/jpeg",
	}}, nil
}
