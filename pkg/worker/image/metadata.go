package image

import (
	"context"
	"fmt"
	"image"
	"os"
	"strings"

	"github.com/filemill/filemill/pkg/models"
	"github.com/filemill/filemill/pkg/worker"
)

// MetadataHandler reads the image header and upserts dimensions and
// format into the file's metadata row. Side-effect-only: no artifact.
type MetadataHandler struct {
	store MetadataStore
}

func NewMetadataHandler(store MetadataStore) *MetadataHandler {
	return &MetadataHandler{store: store}
}

func (h *MetadataHandler) Kind() models.ActionKind { return models.ActionMetadata }

func (h *MetadataHandler) Execute(ctx context.Context, req *worker.Request) (*worker.Result, error) {
	f, err := os.Open(req.InputPath)
	if err != nil {
		return nil, fmt.Errorf("opening input: %w", err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("decoding image header: %w", err)
	}

	data := map[string]any{
		"width":  cfg.Width,
		"height": cfg.Height,
		"format": strings.ToUpper(format),
	}
	if err := h.store.UpsertExifData(ctx, req.File.ID, data); err != nil {
		return nil, fmt.Errorf("storing metadata: %w", err)
	}
	return &worker.Result{}, nil
}
