package logger

import (
	"context"
	"time"
)

// contextKey is unexported so no other package can collide with it.
type contextKey struct{}

var logContextKey = contextKey{}

// LogContext holds job-scoped logging context. It travels from queue
// delivery through handler execution so every log line emitted while a job
// runs carries the same identifiers.
type LogContext struct {
	TraceID   string    // OpenTelemetry trace ID
	SpanID    string    // OpenTelemetry span ID
	JobID     string    // Job identifier
	FileID    string    // Subject file identifier
	Action    string    // Action kind (THUMBNAIL, ENCRYPT, ...)
	Queue     string    // Queue the envelope arrived on
	Fleet     string    // Worker fleet executing the job
	RequestID string    // HTTP request ID for API-scoped contexts
	ClientIP  string    // Client IP for API-scoped contexts
	UserID    string    // Authenticated user for API-scoped contexts
	StartTime time.Time // For duration calculation
}

// WithContext attaches lc to the context.
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext returns the attached LogContext, or nil when the context
// carries none.
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewJobContext starts a LogContext for one job execution.
func NewJobContext(jobID, fileID, action string) *LogContext {
	return &LogContext{
		JobID:     jobID,
		FileID:    fileID,
		Action:    action,
		StartTime: time.Now(),
	}
}

// NewRequestContext starts a LogContext for one API request.
func NewRequestContext(requestID, clientIP string) *LogContext {
	return &LogContext{
		RequestID: requestID,
		ClientIP:  clientIP,
		StartTime: time.Now(),
	}
}

// Clone copies the LogContext. The With helpers derive through it so a
// narrower scope never mutates its parent's fields.
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	return &LogContext{
		TraceID:   lc.TraceID,
		SpanID:    lc.SpanID,
		JobID:     lc.JobID,
		FileID:    lc.FileID,
		Action:    lc.Action,
		Queue:     lc.Queue,
		Fleet:     lc.Fleet,
		RequestID: lc.RequestID,
		ClientIP:  lc.ClientIP,
		UserID:    lc.UserID,
		StartTime: lc.StartTime,
	}
}

// WithQueue returns a copy naming the queue the delivery arrived on and
// the fleet consuming it.
func (lc *LogContext) WithQueue(queue, fleet string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Queue = queue
		clone.Fleet = fleet
	}
	return clone
}

// WithUser returns a copy naming the authenticated user.
func (lc *LogContext) WithUser(userID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.UserID = userID
	}
	return clone
}

// WithTrace returns a copy carrying the active trace and span IDs.
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs reports the time since StartTime in milliseconds.
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
