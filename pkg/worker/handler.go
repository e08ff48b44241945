package worker

import (
	"context"
	"strconv"

	"github.com/filemill/filemill/pkg/models"
)

// Handler executes one action kind against a downloaded input.
// Implementations live in the fleet subpackages (image, video, security, ai).
type Handler interface {
	// Kind reports the action this handler serves.
	Kind() models.ActionKind

	// Execute runs the action. ctx carries the per-fleet deadline; blocking
	// work (subprocesses, external APIs) must honor it. A nil-artifact
	// result marks a side-effect-only action.
	Execute(ctx context.Context, req *Request) (*Result, error)
}

// Request carries one job's inputs into a handler.
type Request struct {
	// Job is the row being executed.
	Job *models.Job

	// File is the subject file the job operates on.
	File *models.File

	// Params are the action parameters from the envelope. Values follow
	// JSON decoding conventions (numbers arrive as float64).
	Params map[string]any

	// InputPath is the downloaded input object on local disk.
	InputPath string

	// WorkDir is a scratch directory exclusive to this job. The runtime
	// removes it after the job, so handlers write outputs here.
	WorkDir string
}

// StringParam returns the named parameter as a string, or def when the
// parameter is absent, empty, or not a string.
func (r *Request) StringParam(name, def string) string {
	if v, ok := r.Params[name]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return def
}

// IntParam returns the named parameter as an int, or def when absent or
// unparseable. JSON numbers and numeric strings are both accepted.
func (r *Request) IntParam(name string, def int) int {
	v, ok := r.Params[name]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i
		}
	}
	return def
}

// Artifact describes a rendered output awaiting upload.
type Artifact struct {
	// LocalPath is the rendered file inside the job's WorkDir.
	LocalPath string

	// Bucket and Key address the destination object.
	Bucket string
	Key    string

	// Name becomes the derived File's original_name.
	Name string

	// MimeType of the rendered output.
	MimeType string
}

// Result is what a handler produced.
type Result struct {
	// Artifact is the rendered output, nil for side-effect-only actions
	// (METADATA, VIRUS_SCAN, AI_TAG).
	Artifact *Artifact

	// Message is recorded on the completed job. Scan verdicts land here.
	Message string
}

// FileFailure is a handler error that must also fail the subject File,
// not just the job. A positive virus finding is the one producer.
type FileFailure struct {
	Message string
}

func (e *FileFailure) Error() string {
	return e.Message
}
