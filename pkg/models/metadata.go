package models

import (
	"encoding/json"
	"time"
)

// FileMetadata holds auxiliary per-file data written by workers: probed
// image properties, video info, AI tags. At most one row exists per File;
// writers upsert.
type FileMetadata struct {
	ID     string `gorm:"primaryKey;size:36" json:"id"`
	FileID string `gorm:"uniqueIndex;not null;size:36" json:"file_id"`

	// JSON documents stored as text.
	ExifData       string `gorm:"type:text" json:"-"`
	VideoInfo      string `gorm:"type:text" json:"-"`
	AITags         string `gorm:"type:text" json:"-"`
	CustomMetadata string `gorm:"type:text" json:"-"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for FileMetadata.
func (FileMetadata) TableName() string {
	return "file_metadata"
}

// GetAITags deserializes the AI tag list. Returns nil for absent or
// invalid JSON.
func (m *FileMetadata) GetAITags() []string {
	if m.AITags == "" || m.AITags == "null" {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(m.AITags), &tags); err != nil {
		return nil
	}
	return tags
}

// SetAITags serializes the AI tag list for storage.
func (m *FileMetadata) SetAITags(tags []string) {
	if len(tags) == 0 {
		m.AITags = ""
		return
	}
	data, err := json.Marshal(tags)
	if err != nil {
		m.AITags = ""
		return
	}
	m.AITags = string(data)
}

// GetExifData deserializes the probed image properties. Returns an empty
// map for absent or invalid JSON.
func (m *FileMetadata) GetExifData() map[string]any {
	if m.ExifData == "" || m.ExifData == "null" {
		return map[string]any{}
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(m.ExifData), &data); err != nil {
		return map[string]any{}
	}
	return data
}

// SetExifData serializes the probed image properties for storage.
func (m *FileMetadata) SetExifData(data map[string]any) {
	if len(data) == 0 {
		m.ExifData = ""
		return
	}
	raw, err := json.Marshal(data)
	if err != nil {
		m.ExifData = ""
		return
	}
	m.ExifData = string(raw)
}
