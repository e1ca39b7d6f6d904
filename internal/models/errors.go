package models

import "errors"

var (
	// ErrInvalidArgument is returned for out-of-range parameters (k < 1, alpha outside [0,1], ...).
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrExtraction is returned when a source file cannot be turned into text.
	ErrExtraction = errors.New("text extraction failed")
	// ErrCollectionNotFound is returned when searching before anything was ingested.
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrNoContent is returned when a document yields no chunks after cleaning.
	ErrNoContent = errors.New("no content after cleaning")
	// ErrNotFound is returned for unknown document IDs.
	ErrNotFound = errors.New("not found")
)
