// Package migrations embeds the versioned SQL schema for the PostgreSQL
// backend. SQLite deployments rely on GORM AutoMigrate instead.
package migrations

import "embed"

// FS holds the embedded migration files.
//
//go:embed *.sql
var FS embed.FS
