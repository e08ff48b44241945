package video

import (
	"context"
	"path/filepath"
	"strconv"

	"github.com/filemill/filemill/pkg/models"
	"github.com/filemill/filemill/pkg/objectstore"
	"github.com/filemill/filemill/pkg/worker"
)

// defaultPreviewSeconds bounds the clip when the job carries no duration.
const defaultPreviewSeconds = 10

// PreviewHandler transcodes the opening seconds into a small H.264 clip.
type PreviewHandler struct {
	bin string
	run ffmpegRunner
}

func (PreviewHandler) Kind() models.ActionKind { return models.ActionVideoPreview }

func (h PreviewHandler) Execute(ctx context.Context, req *worker.Request) (*worker.Result, error) {
	duration := req.IntParam("duration", defaultPreviewSeconds)
	out := filepath.Join(req.WorkDir, "preview.mp4")
	if err := h.run(ctx, h.bin, previewArgs(req.InputPath, out, duration)...); err != nil {
		return nil, err
	}
	return &worker.Result{Artifact: &worker.Artifact{
		LocalPath: out,
		Bucket:    objectstore.BucketProcessed,
		Key:       req.File.ID + "_preview.mp4",
		Name:      stem(req.File.OriginalName) + "_preview.mp4",
		MimeType:  "video/mp4",
	}}, nil
}

func previewArgs(input, output string, duration int) []string {
	return []string{
		"-i", input,
		"-t", strconv.Itoa(duration),
		"-c:v", "libx264",
		"-c:a", "aac",
		"-b:v", "1M",
		"-b:a", "128k",
		"-y", output,
	}
}
