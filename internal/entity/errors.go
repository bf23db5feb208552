package entity

import "errors"

// Pipeline error taxonomy. Packages wrap these with %w so callers can match with errors.Is.
var (
	// Staging / upload errors
	ErrChunkWriteFailure = errors.New("failed to write chunk")
	ErrInvalidIdentifier = errors.New("invalid identifier")
	ErrMergeFailure      = errors.New("failed to merge")

	// Ingestion errors
	ErrUnsupportedFormat = errors.New("unsupported file type")
	ErrParseFailure      = errors.New("failed to parse document")
	ErrIndexWriteFailure = errors.New("failed to write index")

	// Deletion errors (logged per key, never fatal to the caller)
	ErrConsistencyDeleteFailure = errors.New("failed to delete parent record")

	// Request errors
	ErrNoFiles            = errors.New("must upload at least one file")
	ErrTooManyFiles       = errors.New("too many files")
	ErrFileTooLarge       = errors.New("file too large")
	ErrCollectionRequired = errors.New("collection is required")
	ErrEmptyQuery         = errors.New("query is required")
	ErrFilenameRequired   = errors.New("filename is required")
	ErrCollectionNotFound = errors.New("collection not found")
)
