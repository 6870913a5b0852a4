package domain

import (
	"errors"
	"fmt"
)

// Domain-rule violations. Surfaced to the caller as rejected operations;
// none of them is fatal to the process.
var (
	// ErrSelfReference is returned when a user likes or declines themselves.
	ErrSelfReference = errors.New("cannot target yourself")

	// ErrDuplicateRequest is returned when a non-terminal mirror request
	// already exists for the same direction.
	ErrDuplicateRequest = errors.New("mirror request already pending")

	// ErrPairMatched is returned when declining a user the caller is
	// matched with; dissolving a match is what unmatch is for.
	ErrPairMatched = errors.New("pair is already matched")

	// ErrNotParticipant is returned when the acting user is not part of
	// the match they are operating on.
	ErrNotParticipant = errors.New("user is not a participant of this match")

	// ErrInactiveMatch is returned when sending into an unmatched pair.
	ErrInactiveMatch = errors.New("match is no longer active")

	// ErrMatchNotFound is returned when the referenced match does not exist.
	ErrMatchNotFound = errors.New("match not found")
)

// ValidationError reports a malformed or out-of-range input value,
// identifying the offending field. Recoverable by caller correction.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Invalid builds a ValidationError for the given field.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is a field validation error.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
