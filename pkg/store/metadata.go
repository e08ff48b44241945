package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/filemill/filemill/pkg/models"
)

// ============================================
// FILE METADATA OPERATIONS
// ============================================

func (s *GORMStore) GetMetadataByFileID(ctx context.Context, fileID string) (*models.FileMetadata, error) {
	return getByField[models.FileMetadata](s.db, ctx, "file_id", fileID, models.ErrMetadataNotFound)
}

// UpsertAITags writes the AI tag list for a file, creating the metadata row
// on first write. At most one row exists per file.
func (s *GORMStore) UpsertAITags(ctx context.Context, fileID string, tags []string) error {
	return s.upsertMetadata(ctx, fileID, func(m *models.FileMetadata) {
		m.SetAITags(tags)
	})
}

// UpsertExifData writes probed image properties for a file.
func (s *GORMStore) UpsertExifData(ctx context.Context, fileID string, data map[string]any) error {
	return s.upsertMetadata(ctx, fileID, func(m *models.FileMetadata) {
		m.SetExifData(data)
	})
}

// upsertMetadata loads or creates the file's metadata row and applies the
// mutation inside one transaction.
func (s *GORMStore) upsertMetadata(ctx context.Context, fileID string, mutate func(*models.FileMetadata)) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var meta models.FileMetadata
		err := tx.Where("file_id = ?", fileID).First(&meta).Error
		switch {
		case err == nil:
			mutate(&meta)
			meta.UpdatedAt = time.Now()
			return tx.Save(&meta).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			meta = models.FileMetadata{
				ID:     uuid.New().String(),
				FileID: fileID,
			}
			mutate(&meta)
			return tx.Create(&meta).Error
		default:
			return err
		}
	})
}
