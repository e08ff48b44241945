package store

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/filemill/filemill/internal/telemetry"
	"github.com/filemill/filemill/pkg/models"
)

// ============================================
// FILE OPERATIONS
// ============================================

func (s *GORMStore) CreateFile(ctx context.Context, file *models.File) (string, error) {
	return createWithID(s.db, ctx, file, func(f *models.File, id string) { f.ID = id }, file.ID, models.ErrFileNotFound)
}

func (s *GORMStore) GetFile(ctx context.Context, id string) (*models.File, error) {
	return getByField[models.File](s.db, ctx, "id", id, models.ErrFileNotFound)
}

// CreateFileWithJobs inserts a file together with its pipeline and job
// rows in one transaction, so an envelope can never reference a job the
// database does not have. pipeline may be nil for uploads with no
// processing requested; jobs are linked to the pipeline and the file.
// Missing IDs are assigned on the passed structs.
func (s *GORMStore) CreateFileWithJobs(ctx context.Context, file *models.File, pipeline *models.Pipeline, jobs []*models.Job) error {
	ctx, span := telemetry.StartStoreSpan(ctx, "create_file_with_jobs")
	defer span.End()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if file.ID == "" {
			file.ID = uuid.New().String()
		}
		if err := tx.Create(file).Error; err != nil {
			return err
		}

		if pipeline == nil {
			return nil
		}

		if pipeline.ID == "" {
			pipeline.ID = uuid.New().String()
		}
		pipeline.FileID = file.ID
		if err := tx.Create(pipeline).Error; err != nil {
			return err
		}

		for _, job := range jobs {
			if job.ID == "" {
				job.ID = uuid.New().String()
			}
			job.FileID = file.ID
			job.PipelineID = &pipeline.ID
			if job.Status == "" {
				job.Status = models.JobQueued
			}
			if err := tx.Create(job).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// GetOwnedFile fetches a file scoped to its owner. A file that exists but
// belongs to someone else surfaces the same ErrFileNotFound as a missing
// one, so the API never reveals foreign file ids.
func (s *GORMStore) GetOwnedFile(ctx context.Context, id, ownerID string) (*models.File, error) {
	var file models.File
	err := s.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(&file).Error
	if err != nil {
		return nil, mapNotFound(err, models.ErrFileNotFound)
	}
	return &file, nil
}

// ListFilesByOwner returns the owner's uploads, newest first. Derived
// artifacts are excluded; they surface nested under their parent.
func (s *GORMStore) ListFilesByOwner(ctx context.Context, ownerID string) ([]*models.File, error) {
	var files []*models.File
	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND is_processed_output = ?", ownerID, false).
		Order("created_at DESC").
		Find(&files).Error
	if err != nil {
		return nil, err
	}
	return files, nil
}

// ListDerivedFiles returns the processing outputs of one parent file.
func (s *GORMStore) ListDerivedFiles(ctx context.Context, parentID string) ([]*models.File, error) {
	var files []*models.File
	err := s.db.WithContext(ctx).
		Where("parent_file_id = ? AND is_processed_output = ?", parentID, true).
		Order("created_at ASC").
		Find(&files).Error
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (s *GORMStore) UpdateFileStatus(ctx context.Context, id string, status models.FileStatus) error {
	result := s.db.WithContext(ctx).
		Model(&models.File{}).
		Where("id = ?", id).
		Update("status", status)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrFileNotFound
	}
	return nil
}

// PromoteFileReady moves a file from PROCESSING to READY. The guard keeps a
// completing job from resurrecting a file another job already FAILED: the
// update only fires when the current status is PROCESSING.
func (s *GORMStore) PromoteFileReady(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).
		Model(&models.File{}).
		Where("id = ? AND status = ?", id, models.FileProcessing).
		Update("status", models.FileReady).Error
}

// ObjectRef locates one blob in the object store. Returned by the delete
// cascade so the caller can remove blobs after the rows are gone.
type ObjectRef struct {
	Bucket string
	Key    string
}

// DeleteFileCascade removes a file, every derived descendant, all jobs
// referencing any of them as subject or result, and the file's metadata
// row. Row deletes run in one transaction; the returned ObjectRefs are the
// blobs the caller should delete afterwards (blob deletes are best-effort
// and must not abort the cascade).
func (s *GORMStore) DeleteFileCascade(ctx context.Context, id string) ([]ObjectRef, error) {
	ctx, span := telemetry.StartStoreSpan(ctx, "delete_file_cascade")
	defer span.End()

	var refs []ObjectRef

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var root models.File
		if err := tx.Where("id = ?", id).First(&root).Error; err != nil {
			return mapNotFound(err, models.ErrFileNotFound)
		}

		// Collect the root and every derived descendant, breadth-first.
		// Derived files can themselves have derived files (a thumbnail of
		// a converted image), so one level is not enough.
		all := []*models.File{&root}
		frontier := []string{root.ID}
		for len(frontier) > 0 {
			var children []*models.File
			if err := tx.Where("parent_file_id IN ?", frontier).Find(&children).Error; err != nil {
				return err
			}
			frontier = frontier[:0]
			for _, c := range children {
				all = append(all, c)
				frontier = append(frontier, c.ID)
			}
		}

		ids := make([]string, 0, len(all))
		for _, f := range all {
			ids = append(ids, f.ID)
			refs = append(refs, ObjectRef{Bucket: f.Bucket, Key: f.Key})
		}

		// Jobs first (they reference files as subject and result).
		if err := tx.Where("file_id IN ? OR result_file_id IN ?", ids, ids).
			Delete(&models.Job{}).Error; err != nil {
			return err
		}

		// Pipelines and metadata attached to any of the files.
		if err := tx.Where("file_id IN ?", ids).Delete(&models.Pipeline{}).Error; err != nil {
			return err
		}
		if err := tx.Where("file_id IN ?", ids).Delete(&models.FileMetadata{}).Error; err != nil {
			return err
		}

		// Finally the file rows themselves.
		if err := tx.Where("id IN ?", ids).Delete(&models.File{}).Error; err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return refs, nil
}
