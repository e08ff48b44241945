// Package dispatch turns accepted uploads into stored files, pipeline and
// job rows, and queue envelopes for the worker fleets.
//
// Ordering is the whole point of this package. The blob goes to object
// storage first, then every row lands in one transaction, and only after
// commit are envelopes published. A worker can therefore never receive a
// job its database cannot see. The inverse gap, a committed job whose
// publish was lost, is closed by the Reaper.
package dispatch

import (
	"context"
	"fmt"
	"os"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/filemill/filemill/internal/logger"
	"github.com/filemill/filemill/pkg/broker"
	"github.com/filemill/filemill/pkg/models"
	"github.com/filemill/filemill/pkg/objectstore"
	"github.com/filemill/filemill/pkg/store"
)

// autoPipelineName labels pipelines synthesized from the upload form's
// action list, as opposed to pipelines a client would define explicitly.
const autoPipelineName = "Auto Pipeline"

// Metrics records dispatcher events. Implementations must be safe for
// concurrent use. A nil Metrics disables collection.
type Metrics interface {
	// IncUpload counts one accepted upload of the given size.
	IncUpload(sizeBytes int64)
}

// Publisher sends envelopes to work queues. *broker.Broker implements it.
type Publisher interface {
	Publish(ctx context.Context, queue string, env *broker.Envelope) error
}

// ObjectStore is the slice of the blob store the dispatcher needs.
// *objectstore.Client implements it.
type ObjectStore interface {
	Put(ctx context.Context, bucket, key, localPath, contentType string) error
}

// Submitter runs the upload-side half of the pipeline: store the blob,
// record the rows, publish the envelopes.
type Submitter struct {
	store   *store.GORMStore
	objects ObjectStore
	broker  Publisher
	metrics Metrics
}

// NewSubmitter wires a Submitter. Metrics may be nil.
func NewSubmitter(st *store.GORMStore, objects ObjectStore, bk Publisher, m Metrics) *Submitter {
	return &Submitter{
		store:   st,
		objects: objects,
		broker:  bk,
		metrics: m,
	}
}

// Upload describes one accepted upload, already spooled to a local file
// by the HTTP layer. Actions must be validated before submission; the
// submitter trusts them.
type Upload struct {
	OwnerID   string
	Filename  string
	MimeType  string // as declared by the client; sniffed when empty
	LocalPath string
	Actions   []models.ActionKind
}

// Result reports what a submission created.
type Result struct {
	File *models.File
	Jobs []*models.Job
}

// Submit stores the upload and queues its processing.
//
// The blob is written before any row: an orphan blob from a failed insert
// is harmless, while a row pointing at a missing blob would poison every
// job on it. Publish failures after commit do not fail the upload; those
// jobs sit in QUEUED until the Reaper republishes them.
func (s *Submitter) Submit(ctx context.Context, up Upload) (*Result, error) {
	info, err := os.Stat(up.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat spooled upload: %w", err)
	}

	mime := up.MimeType
	if mime == "" {
		if mt, detectErr := mimetype.DetectFile(up.LocalPath); detectErr == nil {
			mime = mt.String()
		} else {
			mime = "application/octet-stream"
		}
	}

	fileID := uuid.New().String()
	key := fmt.Sprintf("%s/%s_%s", up.OwnerID, fileID, up.Filename)

	if err := s.objects.Put(ctx, objectstore.BucketRaw, key, up.LocalPath, mime); err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	file := &models.File{
		ID:           fileID,
		OwnerID:      up.OwnerID,
		OriginalName: up.Filename,
		Bucket:       objectstore.BucketRaw,
		Key:          key,
		SizeBytes:    info.Size(),
		MimeType:     mime,
		Status:       models.FileUploaded,
	}

	var pipeline *models.Pipeline
	var jobs []*models.Job
	if len(up.Actions) > 0 {
		file.Status = models.FileProcessing

		steps := make([]models.PipelineStep, 0, len(up.Actions))
		for _, kind := range up.Actions {
			steps = append(steps, models.PipelineStep{Type: kind})
			jobs = append(jobs, &models.Job{Type: kind, Status: models.JobQueued})
		}
		pipeline = &models.Pipeline{Name: autoPipelineName}
		pipeline.SetSteps(steps)
	}

	if err := s.store.CreateFileWithJobs(ctx, file, pipeline, jobs); err != nil {
		return nil, fmt.Errorf("failed to record upload: %w", err)
	}

	if s.metrics != nil {
		s.metrics.IncUpload(info.Size())
	}
	logger.InfoCtx(ctx, "File uploaded",
		logger.FileID(file.ID),
		logger.OwnerID(file.OwnerID),
		logger.Filename(file.OriginalName),
		logger.MimeType(file.MimeType),
		logger.Size(file.SizeBytes),
		"actions", len(jobs),
	)

	for _, job := range jobs {
		s.publishJob(ctx, job, file)
	}

	return &Result{File: file, Jobs: jobs}, nil
}

// publishJob sends one job envelope to its fleet queue. Failures are
// logged, not returned: the rows are committed, so the reaper can finish
// the delivery later.
func (s *Submitter) publishJob(ctx context.Context, job *models.Job, file *models.File) {
	env := &broker.Envelope{
		JobID:  job.ID,
		FileID: file.ID,
		Bucket: file.Bucket,
		Key:    file.Key,
		Type:   string(job.Type),
		Params: job.GetParams(),
	}

	if err := s.broker.Publish(ctx, QueueFor(job.Type), env); err != nil {
		logger.ErrorCtx(ctx, "Failed to publish job, leaving it for the reaper",
			logger.JobID(job.ID),
			logger.Action(string(job.Type)),
			logger.Err(err),
		)
	}
}
