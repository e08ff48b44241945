package image

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"github.com/disintegration/imaging"

	"github.com/filemill/filemill/pkg/models"
	"github.com/filemill/filemill/pkg/objectstore"
	"github.com/filemill/filemill/pkg/worker"
)

const defaultConvertQuality = 85

// ConvertHandler transcodes an image to params.target_format (WEBP, PNG
// or JPEG; JPG is accepted as a JPEG alias; default WEBP). params.quality
// applies to JPEG output; WEBP is written losslessly.
type ConvertHandler struct{}

func (ConvertHandler) Kind() models.ActionKind { return models.ActionImageConvert }

func (ConvertHandler) Execute(ctx context.Context, req *worker.Request) (*worker.Result, error) {
	raw := strings.ToUpper(req.StringParam("target_format", "WEBP"))
	format := raw
	if format == "JPG" {
		format = "JPEG"
	}
	quality := req.IntParam("quality", defaultConvertQuality)

	var ext, mime string
	switch format {
	case "WEBP":
		ext, mime = "webp", "image/webp"
	case "PNG":
		ext, mime = "png", "image/png"
	case "JPEG":
		ext, mime = "jpeg", "image/jpeg"
	default:
		return nil, fmt.Errorf("unsupported target format: %s", raw)
	}

	img, err := imaging.Open(req.InputPath)
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	out := filepath.Join(req.WorkDir, "converted."+ext)
	switch format {
	case "WEBP":
		f, err := os.Create(out)
		if err != nil {
			return nil, fmt.Errorf("creating output: %w", err)
		}
		if err := nativewebp.Encode(f, imaging.Clone(img), nil); err != nil {
			f.Close()
			return nil, fmt.Errorf("encoding webp: %w", err)
		}
		if err := f.Close(); err != nil {
			return nil, fmt.Errorf("writing output: %w", err)
		}
	case "PNG":
		if err := imaging.Save(img, out); err != nil {
			return nil, fmt.Errorf("encoding png: %w", err)
		}
	case "JPEG":
		if err := imaging.Save(flattenOpaque(img), out, imaging.JPEGQuality(quality)); err != nil {
			return nil, fmt.Errorf("encoding jpeg: %w", err)
		}
	}

	key := fmt.Sprintf("%s_converted.%s", stem(req.File.OriginalName), ext)
	return &worker.Result{Artifact: &worker.Artifact{
		LocalPath: out,
		Bucket:    objectstore.BucketProcessed,
		Key:       key,
		Name:      key,
		MimeType:  mime,
	}}, nil
}
