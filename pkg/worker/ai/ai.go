// Package ai implements the AI fleet's AI_TAG handler. Tagging is best
// effort: a missing API key or a failed model call records fallback tags
// and still completes the job.
package ai

import (
	"context"

	"github.com/filemill/filemill/pkg/config"
	"github.com/filemill/filemill/pkg/worker"
)

// TagStore persists tag lists for a file.
type TagStore interface {
	UpsertAITags(ctx context.Context, fileID string, tags []string) error
}

// Handlers returns the AI fleet's action implementations.
func Handlers(cfg config.WorkerConfig, store TagStore) []worker.Handler {
	return []worker.Handler{NewTagHandler(cfg.Gemini, store)}
}
