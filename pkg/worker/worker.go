// Package worker implements the fleet consumer runtime: one process, one
// queue, one envelope in flight. The runtime owns the job lifecycle
// (RUNNING, COMPLETED/FAILED, parent promotion) and the scratch directory;
// handlers own the rendering.
//
// Delivery settlement follows at-least-once semantics. Redeliveries of
// terminal jobs are acked away; redeliveries of RUNNING jobs re-execute,
// accepting a possibly leaked derived row from the crashed attempt.
package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel/codes"

	"github.com/filemill/filemill/internal/logger"
	"github.com/filemill/filemill/internal/telemetry"
	"github.com/filemill/filemill/pkg/broker"
	"github.com/filemill/filemill/pkg/config"
	"github.com/filemill/filemill/pkg/models"
	"github.com/filemill/filemill/pkg/store"
)

// consumeRetryDelay paces redials after the delivery stream closes.
const consumeRetryDelay = 5 * time.Second

// Job outcomes reported to metrics.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
)

// Consumer delivers queued envelopes. *broker.Broker implements it.
type Consumer interface {
	Consume(ctx context.Context, queue, consumerTag string) (<-chan amqp.Delivery, error)
}

// ObjectStore is the slice of the object store the runtime needs.
type ObjectStore interface {
	Get(ctx context.Context, bucket, key, localPath string) error
	Put(ctx context.Context, bucket, key, localPath, contentType string) error
}

// Metrics records job outcomes. Implementations must be safe for
// concurrent use; a nil Metrics disables recording.
type Metrics interface {
	ObserveJob(fleet, action, outcome string, seconds float64)
}

// Worker consumes one fleet's queue and executes its handlers.
type Worker struct {
	fleet    string
	queue    string
	cfg      config.WorkerConfig
	store    *store.GORMStore
	objects  ObjectStore
	consumer Consumer
	handlers map[models.ActionKind]Handler
	metrics  Metrics
}

// New builds a Worker for cfg.Fleet. handlers are the fleet's action
// implementations; registering two handlers for one kind is a bug.
func New(cfg config.WorkerConfig, st *store.GORMStore, objects ObjectStore, consumer Consumer, handlers []Handler, metrics Metrics) (*Worker, error) {
	queue, err := QueueForFleet(cfg.Fleet)
	if err != nil {
		return nil, err
	}

	byKind := make(map[models.ActionKind]Handler, len(handlers))
	for _, h := range handlers {
		if _, dup := byKind[h.Kind()]; dup {
			return nil, fmt.Errorf("duplicate handler for action %s", h.Kind())
		}
		byKind[h.Kind()] = h
	}

	return &Worker{
		fleet:    cfg.Fleet,
		queue:    queue,
		cfg:      cfg,
		store:    st,
		objects:  objects,
		consumer: consumer,
		handlers: byKind,
		metrics:  metrics,
	}, nil
}

// Queue returns the queue this worker consumes.
func (w *Worker) Queue() string {
	return w.queue
}

// Run consumes deliveries until ctx is canceled. The delivery stream
// closes when the broker connection drops; Run redials and resumes.
func (w *Worker) Run(ctx context.Context) error {
	tag := fmt.Sprintf("filemill-%s-%d", w.fleet, os.Getpid())

	logger.Info("Worker started",
		logger.Fleet(w.fleet),
		logger.Queue(w.queue),
	)

	for {
		deliveries, err := w.consumer.Consume(ctx, w.queue, tag)
		if err != nil {
			logger.Warn("Failed to open delivery stream, retrying",
				logger.Queue(w.queue),
				logger.Err(err),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(consumeRetryDelay):
				continue
			}
		}

		if err := w.drain(ctx, deliveries); err != nil {
			return err
		}

		logger.Warn("Delivery stream closed, reconnecting",
			logger.Queue(w.queue),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(consumeRetryDelay):
		}
	}
}

// drain processes deliveries until the stream closes (nil return) or ctx
// is canceled.
func (w *Worker) drain(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			w.handleDelivery(ctx, d)
		}
	}
}

// disposition is how a delivery is settled after processing.
type disposition int

const (
	// ackMessage removes the message; the job reached a terminal state
	// or its rows vanished.
	ackMessage disposition = iota

	// rejectMessage drops the message without requeue; it drains to the
	// dead-letter queue when the DLX is configured.
	rejectMessage

	// requeueMessage returns the message for redelivery; used when the
	// state store is unreachable and no outcome could be recorded.
	requeueMessage
)

func (w *Worker) handleDelivery(ctx context.Context, d amqp.Delivery) {
	env, err := broker.DecodeEnvelope(d.Body)
	if err != nil {
		logger.Warn("Dropping undecodable message",
			logger.Queue(w.queue),
			logger.DeliveryTag(d.DeliveryTag),
			logger.Err(err),
		)
		w.settle(d, rejectMessage)
		return
	}

	w.settle(d, w.process(ctx, env, d.Redelivered))
}

func (w *Worker) settle(d amqp.Delivery, disp disposition) {
	var err error
	switch disp {
	case ackMessage:
		err = d.Ack(false)
	case rejectMessage:
		err = d.Nack(false, false)
	case requeueMessage:
		err = d.Nack(false, true)
	}
	if err != nil {
		// Connection already gone; the broker requeues the unacked
		// message on its own.
		logger.Warn("Failed to settle delivery",
			logger.Queue(w.queue),
			logger.DeliveryTag(d.DeliveryTag),
			logger.Err(err),
		)
	}
}

// process executes one envelope end to end and reports how to settle it.
// The job identifiers ride the context, so every line logged below (and in
// the handlers) carries them without repeating the fields.
func (w *Worker) process(ctx context.Context, env *broker.Envelope, redelivered bool) disposition {
	start := time.Now()

	ctx, span := telemetry.StartJobSpan(ctx, env.JobID, env.Type, w.fleet,
		telemetry.FileID(env.FileID),
		telemetry.Redelivered(redelivered),
	)
	defer span.End()

	lc := logger.NewJobContext(env.JobID, env.FileID, env.Type).WithQueue(w.queue, w.fleet)
	if id := telemetry.TraceID(ctx); id != "" {
		lc = lc.WithTrace(id, telemetry.SpanID(ctx))
	}
	ctx = logger.WithContext(ctx, lc)

	logger.InfoCtx(ctx, "Job received", logger.Redelivered(redelivered))

	job, err := w.store.GetJob(ctx, env.JobID)
	if errors.Is(err, models.ErrJobNotFound) {
		logger.InfoCtx(ctx, "Job row is gone, dropping message")
		return ackMessage
	}
	if err != nil {
		logger.ErrorCtx(ctx, "Failed to load job, leaving message for redelivery", logger.Err(err))
		return requeueMessage
	}
	if job.PipelineID != nil {
		telemetry.SetAttributes(ctx, telemetry.PipelineID(*job.PipelineID))
	}

	if job.Status.IsTerminal() {
		telemetry.AddEvent(ctx, "job.skipped", telemetry.JobStatus(string(job.Status)))
		logger.InfoCtx(ctx, "Job already terminal, dropping redelivery",
			logger.Status(string(job.Status)),
		)
		return ackMessage
	}

	if job.Status == models.JobRunning {
		logger.WarnCtx(ctx, "Re-executing job left RUNNING by a crashed worker")
	} else if err := w.store.MarkJobRunning(ctx, job.ID); err != nil {
		if errors.Is(err, models.ErrJobTerminal) || errors.Is(err, models.ErrJobNotFound) {
			return ackMessage
		}
		logger.ErrorCtx(ctx, "Failed to mark job running, leaving message for redelivery", logger.Err(err))
		return requeueMessage
	}

	disp, outcome := w.execute(ctx, env, job)

	elapsed := time.Since(start)
	if w.metrics != nil {
		w.metrics.ObserveJob(w.fleet, env.Type, outcome, elapsed.Seconds())
	}
	telemetry.SetAttributes(ctx, telemetry.JobOutcome(outcome))
	logger.InfoCtx(ctx, "Job finished",
		logger.Outcome(outcome),
		logger.DurationMs(float64(elapsed.Milliseconds())),
	)

	return disp
}

// execute runs the handler and records the job outcome. The returned
// outcome feeds metrics; the disposition settles the delivery.
func (w *Worker) execute(ctx context.Context, env *broker.Envelope, job *models.Job) (disposition, string) {
	file, err := w.store.GetFile(ctx, env.FileID)
	if errors.Is(err, models.ErrFileNotFound) {
		// Deleted mid-flight; the cascade took the job row with it.
		logger.InfoCtx(ctx, "Subject file is gone, dropping job")
		return ackMessage, OutcomeFailed
	}
	if err != nil {
		return w.failJob(ctx, job.ID, fmt.Sprintf("loading file: %v", err)), OutcomeFailed
	}

	kind, err := models.ParseActionKind(env.Type)
	if err != nil {
		return w.failJob(ctx, job.ID, fmt.Sprintf("unknown action type: %s", env.Type)), OutcomeFailed
	}
	handler, ok := w.handlers[kind]
	if !ok {
		return w.failJob(ctx, job.ID, fmt.Sprintf("no handler for action %s in fleet %s", kind, w.fleet)), OutcomeFailed
	}

	workDir, err := os.MkdirTemp(w.cfg.TempDir, "filemill-job-")
	if err != nil {
		return w.failJob(ctx, job.ID, fmt.Sprintf("creating work dir: %v", err)), OutcomeFailed
	}
	defer os.RemoveAll(workDir)

	inputPath := filepath.Join(workDir, "input"+filepath.Ext(env.Key))
	if err := w.objects.Get(ctx, env.Bucket, env.Key, inputPath); err != nil {
		return w.failJob(ctx, job.ID, fmt.Sprintf("downloading input: %v", err)), OutcomeFailed
	}

	req := &Request{
		Job:       job,
		File:      file,
		Params:    env.Params,
		InputPath: inputPath,
		WorkDir:   workDir,
	}

	hctx := ctx
	if deadline := w.cfg.Timeouts.ByFleet(w.fleet); deadline > 0 {
		var cancel context.CancelFunc
		hctx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	hctx, hspan := telemetry.StartSpan(hctx, telemetry.SpanJobHandle)
	result, err := handler.Execute(hctx, req)
	hspan.End()
	if err != nil {
		message := err.Error()
		if hctx.Err() == context.DeadlineExceeded {
			message = "timeout"
		}
		telemetry.RecordError(ctx, err)
		telemetry.SetStatus(ctx, codes.Error, message)

		var ff *FileFailure
		if errors.As(err, &ff) {
			// Security verdicts condemn the subject file, not just the job.
			if err := w.store.UpdateFileStatus(ctx, file.ID, models.FileFailed); err != nil && !errors.Is(err, models.ErrFileNotFound) {
				logger.ErrorCtx(ctx, "Failed to mark file failed", logger.Err(err))
			}
		}
		return w.failJob(ctx, job.ID, message), OutcomeFailed
	}

	if result.Artifact != nil {
		if disp, ok := w.storeArtifact(ctx, job, file, result); !ok {
			return disp, OutcomeFailed
		}
	} else {
		err := w.store.CompleteJob(ctx, job.ID, nil, result.Message)
		if errors.Is(err, models.ErrJobNotFound) {
			return ackMessage, OutcomeFailed
		}
		if err != nil {
			return w.failJob(ctx, job.ID, fmt.Sprintf("completing job: %v", err)), OutcomeFailed
		}
	}

	w.promoteParent(ctx, file.ID)
	telemetry.SetStatus(ctx, codes.Ok, "")
	return ackMessage, OutcomeCompleted
}

// storeArtifact uploads the rendered output and lands the derived row and
// job completion in one transaction.
func (w *Worker) storeArtifact(ctx context.Context, job *models.Job, file *models.File, result *Result) (disposition, bool) {
	art := result.Artifact

	info, err := os.Stat(art.LocalPath)
	if err != nil {
		return w.failJob(ctx, job.ID, fmt.Sprintf("reading artifact: %v", err)), false
	}

	if err := w.objects.Put(ctx, art.Bucket, art.Key, art.LocalPath, art.MimeType); err != nil {
		return w.failJob(ctx, job.ID, fmt.Sprintf("uploading artifact: %v", err)), false
	}

	derived := &models.File{
		OwnerID:           file.OwnerID,
		OriginalName:      art.Name,
		Bucket:            art.Bucket,
		Key:               art.Key,
		SizeBytes:         info.Size(),
		MimeType:          art.MimeType,
		Status:            models.FileReady,
		IsProcessedOutput: true,
		ParentFileID:      &file.ID,
	}

	err = w.store.CompleteJobWithArtifact(ctx, job.ID, derived, result.Message)
	if errors.Is(err, models.ErrJobNotFound) {
		// Deleted mid-flight; the uploaded object is orphaned and gets
		// garbage-collected with the bucket lifecycle.
		return ackMessage, false
	}
	if err != nil {
		return w.failJob(ctx, job.ID, fmt.Sprintf("recording artifact: %v", err)), false
	}

	telemetry.SetAttributes(ctx, telemetry.ResultFileID(derived.ID))
	logger.InfoCtx(ctx, "Artifact stored",
		logger.ResultFileID(derived.ID),
		logger.Bucket(art.Bucket),
		logger.Key(art.Key),
		logger.Size(info.Size()),
	)
	return ackMessage, true
}

// promoteParent flips the subject file to READY once no QUEUED or RUNNING
// jobs remain. The guarded update never resurrects a FAILED file.
func (w *Worker) promoteParent(ctx context.Context, fileID string) {
	active, err := w.store.HasActiveJobs(ctx, fileID)
	if err != nil {
		logger.WarnCtx(ctx, "Failed to check remaining jobs", logger.Err(err))
		return
	}
	if active {
		return
	}
	if err := w.store.PromoteFileReady(ctx, fileID); err != nil && !errors.Is(err, models.ErrFileNotFound) {
		logger.WarnCtx(ctx, "Failed to promote file", logger.Err(err))
	}
}

// failJob records a FAILED outcome and settles the message. Vanished or
// already-terminal rows mean a user delete or a concurrent settle; those
// ack without writing.
func (w *Worker) failJob(ctx context.Context, jobID, message string) disposition {
	logger.WarnCtx(ctx, "Job failed", logger.Err(errors.New(message)))
	err := w.store.FailJob(ctx, jobID, message)
	switch {
	case err == nil:
		return rejectMessage
	case errors.Is(err, models.ErrJobNotFound), errors.Is(err, models.ErrJobTerminal):
		return ackMessage
	default:
		logger.ErrorCtx(ctx, "Failed to record job failure, leaving message for redelivery", logger.Err(err))
		return requeueMessage
	}
}
