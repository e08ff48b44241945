package models

import "errors"

// Common errors for entity lookups and mutations.
var (
	// User errors
	ErrUserNotFound       = errors.New("user not found")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// File errors
	ErrFileNotFound = errors.New("file not found")

	// Job errors
	ErrJobNotFound = errors.New("job not found")
	// ErrJobTerminal is returned when a mutation targets a job already in
	// COMPLETED or FAILED. Status transitions form a DAG; terminal states
	// admit no exit.
	ErrJobTerminal = errors.New("job already in terminal state")

	// Pipeline errors
	ErrPipelineNotFound = errors.New("pipeline not found")

	// Metadata errors
	ErrMetadataNotFound = errors.New("file metadata not found")
)
