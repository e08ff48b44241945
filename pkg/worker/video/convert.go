package video

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/filemill/filemill/pkg/models"
	"github.com/filemill/filemill/pkg/objectstore"
	"github.com/filemill/filemill/pkg/worker"
)

const (
	defaultResolution = "720p"
	defaultContainer  = "mp4"
)

// heightByResolution maps the resolution labels clients submit to the
// scale filter's target height. Unknown labels fall back to 720.
var heightByResolution = map[string]string{
	"480p":  "480",
	"720p":  "720",
	"1080p": "1080",
}

// ConvertHandler re-encodes to H.264/AAC at a requested resolution and
// container. The width follows from the height with scale=-2 so the
// encoder keeps an even dimension.
type ConvertHandler struct {
	bin string
	run ffmpegRunner
}

func (ConvertHandler) Kind() models.ActionKind { return models.ActionVideoConvert }

func (h ConvertHandler) Execute(ctx context.Context, req *worker.Request) (*worker.Result, error) {
	resolution := req.StringParam("resolution", defaultResolution)
	container := req.StringParam("format", defaultContainer)
	if strings.ContainsAny(container, `/\`) {
		return nil, fmt.Errorf("invalid container format %q", container)
	}

	out := filepath.Join(req.WorkDir, "converted."+container)
	if err := h.run(ctx, h.bin, convertArgs(req.InputPath, out, heightFor(resolution))...); err != nil {
		return nil, err
	}

	suffix := fmt.Sprintf("_converted_%s.%s", resolution, container)
	return &worker.Result{Artifact: &worker.Artifact{
		LocalPath: out,
		Bucket:    objectstore.BucketProcessed,
		Key:       req.File.ID + suffix,
		Name:      stem(req.File.OriginalName) + suffix,
		MimeType:  "video/mp4",
	}}, nil
}

func heightFor(resolution string) string {
	if h, ok := heightByResolution[resolution]; ok {
		return h
	}
	return "720"
}

func convertArgs(input, output, height string) []string {
	return []string{
		"-i", input,
		"-vf", "scale=-2:" + height,
		"-c:v", "libx264",
		"-c:a", "aac",
		"-b:v", "2M",
		"-b:a", "192k",
		"-y", output,
	}
}
