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

const defaultCompressQuality = 60

// CompressHandler re-encodes an image as JPEG at params.quality
// (default 60) to shrink it.
type CompressHandler struct{}

func (CompressHandler) Kind() models.ActionKind { return models.ActionImageCompress }

func (CompressHandler) Execute(ctx context.Context, req *worker.Request) (*worker.Result, error) {
	quality := req.IntParam("quality", defaultCompressQuality)

	img, err := imaging.Open(req.InputPath)
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	out := filepath.Join(req.WorkDir, "compressed.jpg")
	if err := imaging.Save(flattenOpaque(img), out, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("encoding jpeg: %w", err)
	}

	key := fmt.Sprintf("%s_compressed.jpg", stem(req.File.OriginalName))
	return &worker.Result{Artifact: &worker.Artifact{
		LocalPath: out,
		Bucket:    objectstore.BucketProcessed,
		Key:       key,
		Name:      key,
		MimeType:  "image/jpeg",
	}}, nil
}
