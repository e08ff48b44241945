package video

import (
	"context"
	"path/filepath"

	"github.com/filemill/filemill/pkg/models"
	"github.com/filemill/filemill/pkg/objectstore"
	"github.com/filemill/filemill/pkg/worker"
)

// defaultThumbTime is the seek offset for the extracted frame.
const defaultThumbTime = "00:00:01"

// ThumbnailHandler grabs a single frame as a JPEG, scaled to 640px wide.
type ThumbnailHandler struct {
	bin string
	run ffmpegRunner
}

func (ThumbnailHandler) Kind() models.ActionKind { return models.ActionVideoThumbnail }

func (h ThumbnailHandler) Execute(ctx context.Context, req *worker.Request) (*worker.Result, error) {
	timestamp := req.StringParam("time", defaultThumbTime)
	out := filepath.Join(req.WorkDir, "thumbnail.jpg")
	if err := h.run(ctx, h.bin, thumbnailArgs(req.InputPath, out, timestamp)...); err != nil {
		return nil, err
	}
	return &worker.Result{Artifact: &worker.Artifact{
		LocalPath: out,
		Bucket:    objectstore.BucketThumbnails,
		Key:       req.File.ID + "_video_thumb.jpg",
		Name:      stem(req.File.OriginalName) + "_thumb.jpg",
		MimeType:  "image/jpeg",
	}}, nil
}

func thumbnailArgs(input, output, timestamp string) []string {
	return []string{
		"-i", input,
		"-ss", timestamp,
		"-vframes", "1",
		"-vf", "scale=640:-1",
		"-y", output,
	}
}
