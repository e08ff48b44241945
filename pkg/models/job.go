package models

import (
	"encoding/json"
	"time"
)

// JobStatus tracks one unit of work through its state machine. Transitions
// strictly follow QUEUED -> RUNNING -> {COMPLETED, FAILED}; backward
// transitions are forbidden.
type JobStatus string

const (
	JobQueued    JobStatus = "QUEUED"
	JobRunning   JobStatus = "RUNNING"
	JobCompleted JobStatus = "COMPLETED"
	JobFailed    JobStatus = "FAILED"
)

// IsValid checks if the status is a known JobStatus.
func (s JobStatus) IsValid() bool {
	switch s {
	case JobQueued, JobRunning, JobCompleted, JobFailed:
		return true
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Job is one unit of work: a single action applied to a subject File.
// Created by the submitter, mutated exclusively by the worker executing it
// (the broker delivers at most one unacknowledged envelope per job).
type Job struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	FileID       string     `gorm:"index;not null;size:36" json:"file_id"`
	PipelineID   *string    `gorm:"size:36" json:"pipeline_id,omitempty"`
	Type         ActionKind `gorm:"not null;size:32" json:"type"`
	Status       JobStatus  `gorm:"not null;size:20;default:QUEUED" json:"status"`
	ResultFileID *string    `gorm:"size:36" json:"result_file_id,omitempty"`
	ErrorMessage string     `gorm:"type:text" json:"error_message,omitempty"`

	// Params holds the handler parameters as a JSON object stored as text.
	Params string `gorm:"type:text" json:"-"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for Job.
func (Job) TableName() string {
	return "jobs"
}

// GetParams deserializes the handler parameters. Returns an empty map for
// absent or invalid JSON.
func (j *Job) GetParams() map[string]any {
	if j.Params == "" || j.Params == "null" {
		return map[string]any{}
	}
	var params map[string]any
	if err := json.Unmarshal([]byte(j.Params), &params); err != nil {
		return map[string]any{}
	}
	return params
}

// SetParams serializes the handler parameters for storage. A nil or empty
// map stores as the empty string.
func (j *Job) SetParams(params map[string]any) {
	if len(params) == 0 {
		j.Params = ""
		return
	}
	data, err := json.Marshal(params)
	if err != nil {
		j.Params = ""
		return
	}
	j.Params = string(data)
}
