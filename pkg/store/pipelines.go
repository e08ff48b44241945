package store

import (
	"context"

	"github.com/filemill/filemill/pkg/models"
)

// ============================================
// PIPELINE OPERATIONS
// ============================================

func (s *GORMStore) CreatePipeline(ctx context.Context, pipeline *models.Pipeline) (string, error) {
	return createWithID(s.db, ctx, pipeline, func(p *models.Pipeline, id string) { p.ID = id }, pipeline.ID, models.ErrPipelineNotFound)
}

func (s *GORMStore) GetPipeline(ctx context.Context, id string) (*models.Pipeline, error) {
	return getByField[models.Pipeline](s.db, ctx, "id", id, models.ErrPipelineNotFound)
}

func (s *GORMStore) ListPipelinesByFile(ctx context.Context, fileID string) ([]*models.Pipeline, error) {
	return listByField[models.Pipeline](s.db, ctx, "file_id", fileID, "created_at ASC")
}
