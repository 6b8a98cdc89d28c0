package pipeline

import "errors"

// Sentinel errors returned by Answer and Stream. Match with errors.Is; the
// wrapped cause is preserved for logging.
var (
	// ErrEmptyQuestion means the question was empty after trimming whitespace.
	ErrEmptyQuestion = errors.New("pipeline: question must not be empty")

	// ErrQuestionTooLong means the question exceeded the configured token limit.
	ErrQuestionTooLong = errors.New("pipeline: question too long")

	// ErrRetrievalUnavailable means the passage index could not be searched.
	ErrRetrievalUnavailable = errors.New("pipeline: retrieval unavailable")

	// ErrGenerationUnavailable means the language model call failed.
	ErrGenerationUnavailable = errors.New("pipeline: generation unavailable")

	// ErrGenerationTimeout means the language model did not answer within the
	// generation time budget.
	ErrGenerationTimeout = errors.New("pipeline: generation timed out")
)
