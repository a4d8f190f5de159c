package lexgraph

import "errors"

var (
	// ErrDocumentNotFound is returned when a document ID does not exist.
	ErrDocumentNotFound = errors.New("lexgraph: document not found")

	// ErrUnsupportedFormat is returned for unrecognized file formats.
	ErrUnsupportedFormat = errors.New("lexgraph: unsupported document format")

	// ErrParsingFailed is returned when document parsing fails.
	ErrParsingFailed = errors.New("lexgraph: parsing failed")

	// ErrEmbeddingFailed is returned when the embedding provider fails.
	ErrEmbeddingFailed = errors.New("lexgraph: embedding generation failed")

	// ErrCompletionFailed is returned when the chat provider fails.
	ErrCompletionFailed = errors.New("lexgraph: completion failed")

	// ErrNoSegments is returned when ingestion finds no text to segment,
	// typically a scanned PDF without a text layer.
	ErrNoSegments = errors.New("lexgraph: no segments")

	// ErrTimeout is returned when a request exceeds Config.RequestTimeout.
	// The request can be retried.
	ErrTimeout = errors.New("lexgraph: request timed out")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("lexgraph: invalid configuration")

	// ErrEmptyQuestion is returned by Ask for a blank question.
	ErrEmptyQuestion = errors.New("lexgraph: empty question")

	// ErrInvalidInput is returned for a blank alias or reference.
	ErrInvalidInput = errors.New("lexgraph: invalid input")
)
