package ai

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/filemill/filemill/internal/logger"
	"github.com/filemill/filemill/pkg/config"
	"github.com/filemill/filemill/pkg/models"
	"github.com/filemill/filemill/pkg/worker"
)

// Deterministic tag sets recorded when the model cannot be consulted.
// Neither outcome fails the job.
var (
	fallbackNoKey = []string{"sample", "image", "auto-tagged"}
	fallbackError = []string{"error", "auto-tag-failed"}
)

const maxTags = 10

// TagHandler implements AI_TAG: describe the image with Gemini and record
// the normalized tag list on the file's metadata row.
type TagHandler struct {
	gemini *geminiClient
	store  TagStore
}

func NewTagHandler(cfg config.GeminiConfig, store TagStore) TagHandler {
	return TagHandler{gemini: newGeminiClient(cfg), store: store}
}

func (TagHandler) Kind() models.ActionKind { return models.ActionAITag }

func (h TagHandler) Execute(ctx context.Context, req *worker.Request) (*worker.Result, error) {
	tags := h.tagsFor(ctx, req)
	if err := h.store.UpsertAITags(ctx, req.File.ID, tags); err != nil {
		return nil, fmt.Errorf("recording tags: %w", err)
	}
	logger.InfoCtx(ctx, "File tagged", "tags", strings.Join(tags, ","))
	return &worker.Result{}, nil
}

func (h TagHandler) tagsFor(ctx context.Context, req *worker.Request) []string {
	if h.gemini.apiKey == "" {
		logger.WarnCtx(ctx, "Gemini API key not configured, using fallback tags")
		return fallbackNoKey
	}

	image, err := os.ReadFile(req.InputPath)
	if err != nil {
		logger.ErrorCtx(ctx, "Reading input for tagging failed", logger.Err(err))
		return fallbackError
	}
	mimeType := req.File.MimeType
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	reply, err := h.gemini.describe(ctx, image, mimeType)
	if err != nil {
		logger.ErrorCtx(ctx, "Gemini call failed, using fallback tags", logger.Err(err))
		return fallbackError
	}
	tags := normalizeTags(reply)
	if len(tags) == 0 {
		return fallbackError
	}
	return tags
}

// normalizeTags splits the model reply on commas, trims and lowercases
// each tag, drops empties, and caps the list at maxTags.
func normalizeTags(reply string) []string {
	parts := strings.Split(reply, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		tag := strings.ToLower(strings.TrimSpace(p))
		if tag == "" {
			continue
		}
		tags = append(tags, tag)
		if len(tags) == maxTags {
			break
		}
	}
	return tags
}
