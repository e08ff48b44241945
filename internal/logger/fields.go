package logger

import "log/slog"

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so that log
// aggregation can correlate API requests, queue deliveries, and worker
// executions for the same job.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Job Lifecycle
	// ========================================================================
	KeyJobID        = "job_id"         // Job identifier (UUID)
	KeyFileID       = "file_id"        // Subject file identifier (UUID)
	KeyResultFileID = "result_file_id" // Derived artifact file identifier
	KeyPipelineID   = "pipeline_id"    // Pipeline identifier
	KeyAction       = "action"         // Action kind: THUMBNAIL, ENCRYPT, etc.
	KeyStatus       = "status"         // Job or file status
	KeyOutcome      = "outcome"        // Terminal outcome: completed, failed

	// ========================================================================
	// Messaging
	// ========================================================================
	KeyQueue       = "queue"        // Queue name: image_queue, video_queue, etc.
	KeyFleet       = "fleet"        // Worker fleet name: image, video, security, ai
	KeyDeliveryTag = "delivery_tag" // Broker delivery tag
	KeyRedelivered = "redelivered"  // Broker redelivery indicator
	KeyExchange    = "exchange"     // Exchange the message was published to

	// ========================================================================
	// Object Storage
	// ========================================================================
	KeyBucket = "bucket" // Object store bucket name
	KeyKey    = "key"    // Object key within the bucket
	KeySize   = "size"   // Object size in bytes

	// ========================================================================
	// Files
	// ========================================================================
	KeyFilename = "filename"  // Original file name as uploaded
	KeyMimeType = "mime_type" // Detected MIME type
	KeyOwnerID  = "owner_id"  // Owning user identifier

	// ========================================================================
	// Client Identification
	// ========================================================================
	KeyClientIP  = "client_ip"  // Client IP address
	KeyUserID    = "user_id"    // Authenticated user identifier
	KeyEmail     = "email"      // User email
	KeyRequestID = "request_id" // HTTP request ID

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyAttempt    = "attempt"     // Retry attempt number
	KeyMaxRetries = "max_retries" // Maximum retry attempts
	KeyComponent  = "component"   // Subsystem: api, broker, store, worker
)

// ============================================================================
// Field constructors for type safety
// ============================================================================

// TraceID returns a slog.Attr for OpenTelemetry trace ID
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for OpenTelemetry span ID
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// JobID returns a slog.Attr for a job identifier
func JobID(id string) slog.Attr {
	return slog.String(KeyJobID, id)
}

// FileID returns a slog.Attr for a file identifier
func FileID(id string) slog.Attr {
	return slog.String(KeyFileID, id)
}

// ResultFileID returns a slog.Attr for a derived artifact identifier
func ResultFileID(id string) slog.Attr {
	return slog.String(KeyResultFileID, id)
}

// PipelineID returns a slog.Attr for a pipeline identifier
func PipelineID(id string) slog.Attr {
	return slog.String(KeyPipelineID, id)
}

// Action returns a slog.Attr for an action kind
func Action(kind string) slog.Attr {
	return slog.String(KeyAction, kind)
}

// Status returns a slog.Attr for a job or file status
func Status(s string) slog.Attr {
	return slog.String(KeyStatus, s)
}

// Outcome returns a slog.Attr for a terminal job outcome
func Outcome(o string) slog.Attr {
	return slog.String(KeyOutcome, o)
}

// Queue returns a slog.Attr for a queue name
func Queue(name string) slog.Attr {
	return slog.String(KeyQueue, name)
}

// Fleet returns a slog.Attr for a worker fleet name
func Fleet(name string) slog.Attr {
	return slog.String(KeyFleet, name)
}

// DeliveryTag returns a slog.Attr for a broker delivery tag
func DeliveryTag(tag uint64) slog.Attr {
	return slog.Uint64(KeyDeliveryTag, tag)
}

// Redelivered returns a slog.Attr for the broker redelivery indicator
func Redelivered(r bool) slog.Attr {
	return slog.Bool(KeyRedelivered, r)
}

// Bucket returns a slog.Attr for an object store bucket name
func Bucket(name string) slog.Attr {
	return slog.String(KeyBucket, name)
}

// Key returns a slog.Attr for an object key
func Key(k string) slog.Attr {
	return slog.String(KeyKey, k)
}

// Size returns a slog.Attr for a size in bytes
func Size(n int64) slog.Attr {
	return slog.Int64(KeySize, n)
}

// Filename returns a slog.Attr for an original file name
func Filename(name string) slog.Attr {
	return slog.String(KeyFilename, name)
}

// MimeType returns a slog.Attr for a MIME type
func MimeType(mt string) slog.Attr {
	return slog.String(KeyMimeType, mt)
}

// OwnerID returns a slog.Attr for an owning user identifier
func OwnerID(id string) slog.Attr {
	return slog.String(KeyOwnerID, id)
}

// ClientIP returns a slog.Attr for client IP address
func ClientIP(addr string) slog.Attr {
	return slog.String(KeyClientIP, addr)
}

// UserID returns a slog.Attr for an authenticated user identifier
func UserID(id string) slog.Attr {
	return slog.String(KeyUserID, id)
}

// Email returns a slog.Attr for a user email
func Email(e string) slog.Attr {
	return slog.String(KeyEmail, e)
}

// RequestID returns a slog.Attr for an HTTP request ID
func RequestID(id string) slog.Attr {
	return slog.String(KeyRequestID, id)
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Attempt returns a slog.Attr for retry attempt number
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

// MaxRetries returns a slog.Attr for maximum retry attempts
func MaxRetries(n int) slog.Attr {
	return slog.Int(KeyMaxRetries, n)
}

// Component returns a slog.Attr for a subsystem name
func Component(name string) slog.Attr {
	return slog.String(KeyComponent, name)
}
