package types

import (
	"errors"
	"fmt"
)

// Error taxonomy. Callers match with errors.Is.
var (
	// ErrNotFound reports an unknown session or user.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput reports missing or malformed request content.
	ErrInvalidInput = errors.New("invalid input")
	// ErrGenerationFailed reports a transient failure of the text generation collaborator.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrMalformedJudgment is internal to the evaluation pipeline and always recovered.
	ErrMalformedJudgment = errors.New("malformed judgment")
)

// SessionNotFoundError indicates an unknown interview session.
type SessionNotFoundError struct {
	ID string
}

func (e *SessionNotFoundError) Error() string {
	return fmt.Sprintf("session not found: %s", e.ID)
}

func (e *SessionNotFoundError) Unwrap() error {
	return ErrNotFound
}

// InvalidInputError indicates a request field that cannot be used.
type InvalidInputError struct {
	Field   string
	Message string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s - %s", e.Field, e.Message)
}

func (e *InvalidInputError) Unwrap() error {
	return ErrInvalidInput
}

// GenerationError wraps a collaborator failure during op.
type GenerationError struct {
	Op  string
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s: generation failed: %v", e.Op, e.Err)
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *GenerationError) Unwrap() []error {
	return []error{ErrGenerationFailed, e.Err}
}

// IsRetryable reports whether the caller may retry the same request.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrGenerationFailed)
}
