package chat

import (
	"errors"
	"fmt"
)

// ErrValidation is matched by every *ValidationError.
var ErrValidation = errors.New("validation failed")

// Collaborators whose failures abort a turn.
const (
	CollaboratorIndex      = "index"
	CollaboratorCompletion = "completion"
)

// ValidationError reports a missing or empty argument. It is returned before
// any memory mutation.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s must not be empty", ErrValidation, e.Field)
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// UpstreamError wraps a failure of the index or the completion service
// together with the turn stage it happened in.
type UpstreamError struct {
	Collaborator string
	Stage        State
	Err          error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s failed while %s: %v", e.Collaborator, e.Stage, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
