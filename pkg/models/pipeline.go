package models

import (
	"encoding/json"
	"time"
)

// PipelineStep is one action descriptor inside a pipeline.
type PipelineStep struct {
	Type   ActionKind     `json:"type"`
	Params map[string]any `json:"params,omitempty"`
}

// Pipeline is the ordered list of actions attached to a File at upload
// time. Steps translate 1:1 into Job rows at submission.
type Pipeline struct {
	ID     string `gorm:"primaryKey;size:36" json:"id"`
	FileID string `gorm:"index;not null;size:36" json:"file_id"`
	Name   string `gorm:"not null;size:255" json:"name"`

	// Steps holds the ordered action descriptors as a JSON array stored as text.
	Steps string `gorm:"type:text" json:"-"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for Pipeline.
func (Pipeline) TableName() string {
	return "pipelines"
}

// GetSteps deserializes the ordered step descriptors. Returns nil for
// absent or invalid JSON.
func (p *Pipeline) GetSteps() []PipelineStep {
	if p.Steps == "" || p.Steps == "null" {
		return nil
	}
	var steps []PipelineStep
	if err := json.Unmarshal([]byte(p.Steps), &steps); err != nil {
		return nil
	}
	return steps
}

// SetSteps serializes the ordered step descriptors for storage.
func (p *Pipeline) SetSteps(steps []PipelineStep) {
	if len(steps) == 0 {
		p.Steps = ""
		return
	}
	data, err := json.Marshal(steps)
	if err != nil {
		p.Steps = ""
		return
	}
	p.Steps = string(data)
}
