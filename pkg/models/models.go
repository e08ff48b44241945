// Package models defines the authoritative entity schema shared by the API
// server and every worker fleet: files, jobs, pipelines, per-file metadata,
// and users, plus the closed action enumeration that drives queue routing.
package models

// AllModels returns all GORM models for auto-migration.
func AllModels() []any {
	return []any{
		&User{},
		&File{},
		&FileMetadata{},
		&Pipeline{},
		&Job{},
	}
}
