package domain

import "errors"

// Input errors are reported to the caller and never retried.
var (
	// ErrInvalidSource indicates an unreachable or unreadable source document.
	ErrInvalidSource = errors.New("invalid source")

	// ErrUnsupportedSource indicates a source format that needs OCR or another
	// extractor this system does not ship (PDF, scanned images).
	ErrUnsupportedSource = errors.New("unsupported source format")

	// ErrEmptyDocument indicates no text remained after normalization.
	ErrEmptyDocument = errors.New("empty document after normalization")
)

// Adapter errors are distinct from "no results" and are never swallowed.
var (
	ErrEmbedding         = errors.New("embedding failed")
	ErrVectorStore       = errors.New("vector store failed")
	ErrSynthesis         = errors.New("answer synthesis failed")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Configuration errors.
var (
	ErrUnknownPolicy = errors.New("unknown chunking policy")
	ErrInvalidConfig = errors.New("invalid configuration")
)
