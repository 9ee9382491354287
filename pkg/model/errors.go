package model

import (
	"github.com/m-mizutani/goerr/v2"
)

// Error taxonomy of the memory engine. Callers match with errors.Is.
//
// ErrRecordNotFound covers both true absence and scope isolation failures
// so that existence of a record never leaks across scope boundaries.
var (
	// ErrInvalidInput indicates malformed input. Terminal for the call.
	ErrInvalidInput = goerr.New("invalid input")

	// ErrRecordNotFound indicates the record is absent or not visible to
	// the caller's scope. Terminal for the call.
	ErrRecordNotFound = goerr.New("record not found")

	// ErrVersionConflict indicates a concurrent writer raced past the
	// expected version. The caller should re-read and retry.
	ErrVersionConflict = goerr.New("version conflict")

	// ErrDeadlineExceeded indicates the caller-supplied deadline expired.
	// No partial write remains.
	ErrDeadlineExceeded = goerr.New("operation deadline exceeded")

	// ErrIndexUnavailable indicates the similarity backend could not be
	// queried. Distinguishes "could not search" from "no matches".
	ErrIndexUnavailable = goerr.New("similarity index unavailable")
)
