package assessment

import "errors"

// Session errors are wrapped with call-specific detail; match them with
// errors.Is. None of them are transient.
var (
	// ErrInvalidResponse: an answer or ancillary value outside the declared domain.
	ErrInvalidResponse = errors.New("invalid response")
	// ErrIncompleteAnswer: advancing past a question (or completing) before it is answered.
	ErrIncompleteAnswer = errors.New("incomplete answer")
	// ErrIncompleteSession: finalizing a session that has not completed.
	ErrIncompleteSession = errors.New("incomplete session")
	// ErrBoundary: navigating before the first question.
	ErrBoundary = errors.New("navigation boundary")
	// ErrSessionCompleted: changing a session that has already completed.
	ErrSessionCompleted = errors.New("session already completed")
)
