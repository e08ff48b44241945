package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys for pipeline operations.
// These follow OpenTelemetry semantic conventions where applicable.
// Domain keys use "job." and "file." prefixes; messaging and storage
// keys use their semconv-style prefixes.
const (
	// ========================================================================
	// Job attributes
	// ========================================================================
	AttrJobID      = "job.id"
	AttrJobAction  = "job.action"  // THUMBNAIL, VIDEO_CONVERT, ...
	AttrJobStatus  = "job.status"  // QUEUED, RUNNING, COMPLETED, FAILED
	AttrJobOutcome = "job.outcome" // completed, failed
	AttrFleet      = "worker.fleet"

	// ========================================================================
	// File attributes
	// ========================================================================
	AttrFileID       = "file.id"
	AttrFilename     = "file.name"
	AttrMimeType     = "file.mime_type"
	AttrFileSize     = "file.size"
	AttrResultFileID = "file.result_id"
	AttrPipelineID   = "pipeline.id"

	// ========================================================================
	// User attributes
	// ========================================================================
	AttrUserID = "user.id"

	// ========================================================================
	// Messaging attributes (broker)
	// ========================================================================
	AttrQueue       = "messaging.queue"
	AttrMessageID   = "messaging.message_id"
	AttrRedelivered = "messaging.redelivered"

	// ========================================================================
	// Storage backend attributes
	// ========================================================================
	AttrBucket = "storage.bucket"
	AttrKey    = "storage.key"

	// ========================================================================
	// HTTP API attributes
	// ========================================================================
	AttrClientIP = "client.ip"
)

// Span names for operations.
// Format: <component>.<operation>. Object store and database spans
// compose their names in StartObjectSpan and StartStoreSpan.
const (
	// ========================================================================
	// Worker job lifecycle
	// ========================================================================

	// Root span for processing one queued job
	SpanJobExecute = "job.execute"

	// Handler phase inside job.execute
	SpanJobHandle = "job.handle"

	// ========================================================================
	// Broker operations
	// ========================================================================
	SpanPublish = "broker.publish"

	// ========================================================================
	// API operations
	// ========================================================================
	SpanUpload   = "api.upload"
	SpanDownload = "api.download"
	SpanDelete   = "api.delete"
)

// JobID returns an attribute for job ID
func JobID(id string) attribute.KeyValue {
	return attribute.String(AttrJobID, id)
}

// JobAction returns an attribute for the job's action kind
func JobAction(action string) attribute.KeyValue {
	return attribute.String(AttrJobAction, action)
}

// JobStatus returns an attribute for job status
func JobStatus(status string) attribute.KeyValue {
	return attribute.String(AttrJobStatus, status)
}

// JobOutcome returns an attribute for the terminal outcome of a job
func JobOutcome(outcome string) attribute.KeyValue {
	return attribute.String(AttrJobOutcome, outcome)
}

// Fleet returns an attribute for the worker fleet name
func Fleet(fleet string) attribute.KeyValue {
	return attribute.String(AttrFleet, fleet)
}

// FileID returns an attribute for file ID
func FileID(id string) attribute.KeyValue {
	return attribute.String(AttrFileID, id)
}

// Filename returns an attribute for filename
func Filename(name string) attribute.KeyValue {
	return attribute.String(AttrFilename, name)
}

// MimeType returns an attribute for MIME type
func MimeType(mime string) attribute.KeyValue {
	return attribute.String(AttrMimeType, mime)
}

// FileSize returns an attribute for file size in bytes
func FileSize(size int64) attribute.KeyValue {
	return attribute.Int64(AttrFileSize, size)
}

// ResultFileID returns an attribute for the derived file a job produced
func ResultFileID(id string) attribute.KeyValue {
	return attribute.String(AttrResultFileID, id)
}

// PipelineID returns an attribute for pipeline ID
func PipelineID(id string) attribute.KeyValue {
	return attribute.String(AttrPipelineID, id)
}

// UserID returns an attribute for user ID
func UserID(id string) attribute.KeyValue {
	return attribute.String(AttrUserID, id)
}

// Queue returns an attribute for broker queue name
func Queue(queue string) attribute.KeyValue {
	return attribute.String(AttrQueue, queue)
}

// MessageID returns an attribute for broker message ID
func MessageID(id string) attribute.KeyValue {
	return attribute.String(AttrMessageID, id)
}

// Redelivered returns an attribute for the broker redelivery flag
func Redelivered(redelivered bool) attribute.KeyValue {
	return attribute.Bool(AttrRedelivered, redelivered)
}

// Bucket returns an attribute for object store bucket name
func Bucket(name string) attribute.KeyValue {
	return attribute.String(AttrBucket, name)
}

// StorageKey returns an attribute for object store key
func StorageKey(key string) attribute.KeyValue {
	return attribute.String(AttrKey, key)
}

// ClientIP returns an attribute for client IP address
func ClientIP(ip string) attribute.KeyValue {
	return attribute.String(AttrClientIP, ip)
}

// StartJobSpan starts the root span for processing one queued job.
// The job identity rides the span so every nested span and event
// lands under one trace per delivery.
func StartJobSpan(ctx context.Context, jobID, action, fleet string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		JobID(jobID),
		JobAction(action),
		Fleet(fleet),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, SpanJobExecute, trace.WithAttributes(allAttrs...))
}

// StartObjectSpan starts a span for an object store operation.
func StartObjectSpan(ctx context.Context, operation, bucket, key string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		Bucket(bucket),
		StorageKey(key),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, "object."+operation, trace.WithAttributes(allAttrs...))
}

// StartPublishSpan starts a span for publishing a job envelope.
func StartPublishSpan(ctx context.Context, queue, jobID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		Queue(queue),
		MessageID(jobID),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, SpanPublish, trace.WithAttributes(allAttrs...))
}

// StartStoreSpan starts a span for a database store operation.
func StartStoreSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, "store."+operation, trace.WithAttributes(attrs...))
}
