package services

import (
	"errors"
	"fmt"
)

// ErrSubmissionInFlight is returned when a submit request arrives while a
// previous submission for the same session has not finished.
var ErrSubmissionInFlight = errors.New("submission already in progress")

// ErrSessionClosed is returned for operations on a torn-down session.
var ErrSessionClosed = errors.New("session closed")

// ValidationError blocks submission; only the first failing rule is carried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// RemoteError wraps a report repository failure during the submission flow.
type RemoteError struct {
	Op  string // "save" or "submit"
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s failed: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}
