// Package logger is a thin slog front-end shared by the API server, the
// workers, and the CLI. It adds leveled package-global functions, a
// colored text handler for terminals, and context-scoped fields so every
// line logged while a job runs carries the job's identifiers.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// Level is the minimum severity a record needs to be written.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	}
	return "UNKNOWN"
}

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

func parseLevel(s string) (Level, bool) {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	}
	return LevelInfo, false
}

// Config selects level, format, and destination. It mirrors the logging
// section of the configuration file.
type Config struct {
	Level  string // DEBUG, INFO, WARN, ERROR
	Format string // text, json
	Output string // stdout, stderr, or a file path
}

var (
	currentLevel  atomic.Int32
	currentFormat atomic.Value // "text" or "json"

	mu       sync.RWMutex
	slogger  *slog.Logger
	output   io.Writer = os.Stdout
	useColor           = true
)

func init() {
	currentLevel.Store(int32(LevelInfo))
	currentFormat.Store("text")
	if f, ok := output.(*os.File); ok {
		useColor = isTerminal(f.Fd())
	}
	rebuild()
}

// rebuild swaps in a handler reflecting the current level, format, and
// destination.
func rebuild() {
	mu.Lock()
	defer mu.Unlock()

	levelVar := new(slog.LevelVar)
	levelVar.Set(Level(currentLevel.Load()).slogLevel())
	opts := &slog.HandlerOptions{Level: levelVar}

	var h slog.Handler
	if format, _ := currentFormat.Load().(string); format == "json" {
		h = slog.NewJSONHandler(output, opts)
	} else {
		h = newTextHandler(output, opts, useColor)
	}
	slogger = slog.New(h)
}

// Init applies the configuration. Output may be "stdout", "stderr", or a
// file path; log files are opened in append mode and written without
// color. Unknown level or format strings leave the previous value in
// place.
func Init(cfg Config) error {
	if cfg.Output != "" {
		w, color, err := openOutput(cfg.Output)
		if err != nil {
			return err
		}
		mu.Lock()
		output = w
		useColor = color
		mu.Unlock()
	}

	if cfg.Level != "" {
		SetLevel(cfg.Level)
	}
	if cfg.Format != "" {
		SetFormat(cfg.Format)
	}
	rebuild()
	return nil
}

func openOutput(dest string) (io.Writer, bool, error) {
	switch strings.ToLower(dest) {
	case "stdout":
		return os.Stdout, isTerminal(os.Stdout.Fd()), nil
	case "stderr":
		return os.Stderr, isTerminal(os.Stderr.Fd()), nil
	}
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, false, fmt.Errorf("failed to open log file %q: %w", dest, err)
	}
	return f, false, nil
}

// InitWithWriter redirects logging to an arbitrary writer. Tests use it
// to capture output.
func InitWithWriter(w io.Writer, level, format string, color bool) {
	mu.Lock()
	output = w
	useColor = color
	mu.Unlock()

	if level != "" {
		SetLevel(level)
	}
	if format != "" {
		SetFormat(format)
	}
	rebuild()
}

// SetLevel changes the minimum level. Invalid names are ignored.
func SetLevel(level string) {
	l, ok := parseLevel(level)
	if !ok {
		return
	}
	currentLevel.Store(int32(l))
	rebuild()
}

// SetFormat switches between "text" and "json" output. Invalid names are
// ignored.
func SetFormat(format string) {
	format = strings.ToLower(format)
	if format != "text" && format != "json" {
		return
	}
	currentFormat.Store(format)
	rebuild()
}

func active() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return slogger
}

// Debug logs at debug level with alternating key/value fields.
func Debug(msg string, args ...any) {
	if LevelDebug < Level(currentLevel.Load()) {
		return
	}
	active().Debug(msg, args...)
}

// Info logs at info level with alternating key/value fields.
func Info(msg string, args ...any) {
	if LevelInfo < Level(currentLevel.Load()) {
		return
	}
	active().Info(msg, args...)
}

// Warn logs at warn level with alternating key/value fields.
func Warn(msg string, args ...any) {
	if LevelWarn < Level(currentLevel.Load()) {
		return
	}
	active().Warn(msg, args...)
}

// Error logs at error level with alternating key/value fields.
func Error(msg string, args ...any) {
	active().Error(msg, args...)
}

// DebugCtx logs at debug level, prefixing the fields carried by the
// context's LogContext.
func DebugCtx(ctx context.Context, msg string, args ...any) {
	if LevelDebug < Level(currentLevel.Load()) {
		return
	}
	active().Debug(msg, contextFields(ctx, args)...)
}

// InfoCtx logs at info level with the context's LogContext fields.
func InfoCtx(ctx context.Context, msg string, args ...any) {
	if LevelInfo < Level(currentLevel.Load()) {
		return
	}
	active().Info(msg, contextFields(ctx, args)...)
}

// WarnCtx logs at warn level with the context's LogContext fields.
func WarnCtx(ctx context.Context, msg string, args ...any) {
	if LevelWarn < Level(currentLevel.Load()) {
		return
	}
	active().Warn(msg, contextFields(ctx, args)...)
}

// ErrorCtx logs at error level with the context's LogContext fields.
func ErrorCtx(ctx context.Context, msg string, args ...any) {
	active().Error(msg, contextFields(ctx, args)...)
}

// contextFields prepends the LogContext identifiers so they come first on
// every line for the same job or request.
func contextFields(ctx context.Context, args []any) []any {
	lc := FromContext(ctx)
	if lc == nil {
		return args
	}

	fields := make([]any, 0, 20+len(args))
	for _, f := range []struct{ key, value string }{
		{KeyTraceID, lc.TraceID},
		{KeySpanID, lc.SpanID},
		{KeyJobID, lc.JobID},
		{KeyFileID, lc.FileID},
		{KeyAction, lc.Action},
		{KeyQueue, lc.Queue},
		{KeyFleet, lc.Fleet},
		{KeyRequestID, lc.RequestID},
		{KeyClientIP, lc.ClientIP},
		{KeyUserID, lc.UserID},
	} {
		if f.value != "" {
			fields = append(fields, f.key, f.value)
		}
	}
	return append(fields, args...)
}

// With returns a slog.Logger carrying pre-bound fields, for components
// that emit many lines with the same identifiers.
func With(args ...any) *slog.Logger {
	return active().With(args...)
}
