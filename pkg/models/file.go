package models

import (
	"path/filepath"
	"strings"
	"time"
)

// FileStatus tracks a stored binary through its processing lifecycle.
type FileStatus string

const (
	// FileUploaded means the binary landed in the object store and no
	// processing has been dispatched.
	FileUploaded FileStatus = "UPLOADED"
	// FileProcessing means at least one job on the file has been dispatched.
	FileProcessing FileStatus = "PROCESSING"
	// FileReady means the pipeline completed. Derived files are born READY.
	FileReady FileStatus = "READY"
	// FileFailed is set on virus detection.
	FileFailed FileStatus = "FAILED"
)

// IsValid checks if the status is a known FileStatus.
func (s FileStatus) IsValid() bool {
	switch s {
	case FileUploaded, FileProcessing, FileReady, FileFailed:
		return true
	}
	return false
}

// File is a stored binary: either a raw upload or a derived artifact
// produced by a worker. (Bucket, Key) uniquely locates the object.
type File struct {
	ID                string     `gorm:"primaryKey;size:36" json:"id"`
	OwnerID           string     `gorm:"index;not null;size:36" json:"owner_id"`
	OriginalName      string     `gorm:"not null;size:512" json:"original_name"`
	Bucket            string     `gorm:"not null;size:64" json:"bucket"`
	Key               string     `gorm:"not null;size:1024" json:"key"`
	SizeBytes         int64      `gorm:"not null" json:"size_bytes"`
	MimeType          string     `gorm:"size:255" json:"mime_type,omitempty"`
	Status            FileStatus `gorm:"not null;size:20;default:UPLOADED" json:"status"`
	IsProcessedOutput bool       `gorm:"not null;default:false" json:"is_processed_output"`
	ParentFileID      *string    `gorm:"index;size:36" json:"parent_file_id,omitempty"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for File.
func (File) TableName() string {
	return "files"
}

// IsDerived reports whether the file is a processing output. A derived file
// always carries a non-nil ParentFileID.
func (f *File) IsDerived() bool {
	return f.IsProcessedOutput
}

// Stem returns the original name without its extension, used to build
// derived object keys ("report.pdf" -> "report").
func (f *File) Stem() string {
	return strings.TrimSuffix(f.OriginalName, filepath.Ext(f.OriginalName))
}

// Ext returns the original name's extension including the leading dot, or
// the empty string when there is none.
func (f *File) Ext() string {
	return filepath.Ext(f.OriginalName)
}
