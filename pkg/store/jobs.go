package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/filemill/filemill/internal/telemetry"
	"github.com/filemill/filemill/pkg/models"
)

// ============================================
// JOB OPERATIONS
// ============================================

func (s *GORMStore) CreateJob(ctx context.Context, job *models.Job) (string, error) {
	return createWithID(s.db, ctx, job, func(j *models.Job, id string) { j.ID = id }, job.ID, models.ErrJobNotFound)
}

func (s *GORMStore) GetJob(ctx context.Context, id string) (*models.Job, error) {
	return getByField[models.Job](s.db, ctx, "id", id, models.ErrJobNotFound)
}

// ListJobsByFile returns a file's jobs in submission order.
func (s *GORMStore) ListJobsByFile(ctx context.Context, fileID string) ([]*models.Job, error) {
	return listByField[models.Job](s.db, ctx, "file_id", fileID, "created_at ASC")
}

// ListJobsByOwner returns every job whose subject file belongs to the
// owner, newest first.
func (s *GORMStore) ListJobsByOwner(ctx context.Context, ownerID string) ([]*models.Job, error) {
	var jobs []*models.Job
	err := s.db.WithContext(ctx).
		Joins("JOIN files ON files.id = jobs.file_id").
		Where("files.owner_id = ?", ownerID).
		Order("jobs.created_at DESC").
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// MarkJobRunning transitions a job to RUNNING. Terminal jobs are left
// untouched and reported via ErrJobTerminal so redeliveries of finished
// work can be acknowledged without re-executing. A job already RUNNING is
// re-marked (crash redelivery re-executes it).
func (s *GORMStore) MarkJobRunning(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("id = ? AND status IN ?", id, []models.JobStatus{models.JobQueued, models.JobRunning}).
		Updates(map[string]any{
			"status":     models.JobRunning,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Either missing or terminal; distinguish for the caller.
		job, err := s.GetJob(ctx, id)
		if err != nil {
			return err
		}
		if job.Status.IsTerminal() {
			return models.ErrJobTerminal
		}
		return models.ErrJobNotFound
	}
	return nil
}

// CompleteJob marks a job COMPLETED. resultFileID is nil for actions that
// produce no artifact; message carries human-readable results (the virus
// scanner stores its verdict here even on success).
func (s *GORMStore) CompleteJob(ctx context.Context, id string, resultFileID *string, message string) error {
	updates := map[string]any{
		"status":     models.JobCompleted,
		"updated_at": time.Now(),
	}
	if resultFileID != nil {
		updates["result_file_id"] = *resultFileID
	}
	if message != "" {
		updates["error_message"] = message
	}

	result := s.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("id = ?", id).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrJobNotFound
	}
	return nil
}

// CompleteJobWithArtifact inserts the derived file row and marks the job
// COMPLETED with its result in one transaction. Either both land or the
// job stays RUNNING and the redelivery re-executes it; a completed job
// without its artifact row can never be observed.
func (s *GORMStore) CompleteJobWithArtifact(ctx context.Context, jobID string, artifact *models.File, message string) error {
	ctx, span := telemetry.StartStoreSpan(ctx, "complete_job_with_artifact")
	defer span.End()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if artifact.ID == "" {
			artifact.ID = uuid.New().String()
		}
		if err := tx.Create(artifact).Error; err != nil {
			return err
		}

		updates := map[string]any{
			"status":         models.JobCompleted,
			"result_file_id": artifact.ID,
			"updated_at":     time.Now(),
		}
		if message != "" {
			updates["error_message"] = message
		}

		result := tx.Model(&models.Job{}).Where("id = ?", jobID).Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return models.ErrJobNotFound
		}
		return nil
	})
}

// FailJob marks a job FAILED with the stringified cause.
func (s *GORMStore) FailJob(ctx context.Context, id string, message string) error {
	result := s.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        models.JobFailed,
			"error_message": message,
			"updated_at":    time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrJobNotFound
	}
	return nil
}

// HasActiveJobs reports whether the file still has jobs in QUEUED or
// RUNNING. Used to decide whether a completing job may promote its parent.
func (s *GORMStore) HasActiveJobs(ctx context.Context, fileID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("file_id = ? AND status IN ?", fileID, []models.JobStatus{models.JobQueued, models.JobRunning}).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// TouchJobs bumps updated_at on the given jobs. The reaper calls this
// after republishing so a job is not republished again on the very next
// sweep.
func (s *GORMStore) TouchJobs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("id IN ?", ids).
		Update("updated_at", time.Now()).Error
}

// ListStaleQueuedJobs returns jobs still QUEUED whose last update is older
// than the threshold. The reaper republishes their envelopes; publishes
// lost between commit and broker confirm are recovered this way.
func (s *GORMStore) ListStaleQueuedJobs(ctx context.Context, olderThan time.Time, limit int) ([]*models.Job, error) {
	var jobs []*models.Job
	q := s.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", models.JobQueued, olderThan).
		Order("updated_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}
