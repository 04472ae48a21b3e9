package orphans

import (
	"errors"
	"fmt"
)

// ErrorClass represents the classification of a scan error.
type ErrorClass string

const (
	// ErrorClassTransient indicates a failure that may succeed on retry,
	// such as the database snapshot being temporarily unavailable.
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassPermanent indicates a non-recoverable failure, such as a
	// corrupted package record. Retrying without external repair of the
	// database cannot succeed.
	ErrorClassPermanent ErrorClass = "permanent"
)

// Scan error codes.
const (
	// ErrCodeSnapshotUnavailable means the database snapshot could not be
	// acquired.
	ErrCodeSnapshotUnavailable = "SNAPSHOT_UNAVAILABLE"

	// ErrCodeMalformedRecord means a required_by field was present but not
	// an array of tokens. This is database corruption and is fatal to the
	// whole scan: a classification built on corrupted input could report
	// non-orphans as orphans.
	ErrCodeMalformedRecord = "MALFORMED_RECORD"

	// ErrCodeMalformedToken means a dependent token could not be parsed to
	// a package name.
	ErrCodeMalformedToken = "MALFORMED_TOKEN"

	// ErrCodeIterationFailed means the snapshot iteration primitive failed.
	ErrCodeIterationFailed = "ITERATION_FAILED"

	// ErrCodeScanCancelled means the scan context was cancelled between
	// records.
	ErrCodeScanCancelled = "SCAN_CANCELLED"
)

// ScanError represents a classified orphan-scan error with context.
type ScanError struct {
	// Class is the error classification for retry logic.
	Class ErrorClass `json:"class"`

	// Code identifies the failure for programmatic handling.
	Code string `json:"code"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Package is the package record being classified when the error
	// occurred, if applicable.
	Package string `json:"package,omitempty"`

	// Err is the underlying error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *ScanError) Error() string {
	if e.Package != "" {
		return fmt.Sprintf("[%s] %s (package=%s): %s", e.Class, e.Message, e.Package, e.unwrapMessage())
	}
	return fmt.Sprintf("[%s] %s: %s", e.Class, e.Message, e.unwrapMessage())
}

// Unwrap returns the underlying error for error chain inspection.
func (e *ScanError) Unwrap() error {
	return e.Err
}

func (e *ScanError) unwrapMessage() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

// Is implements error equality checking for errors.Is.
func (e *ScanError) Is(target error) bool {
	t, ok := target.(*ScanError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewTransientError creates a new transient scan error.
func NewTransientError(code, message string, err error) *ScanError {
	return &ScanError{
		Class:   ErrorClassTransient,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewPermanentError creates a new permanent scan error.
func NewPermanentError(code, message string, err error) *ScanError {
	return &ScanError{
		Class:   ErrorClassPermanent,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithPackage adds package context to an error.
func (e *ScanError) WithPackage(name string) *ScanError {
	e.Package = name
	return e
}

// Code extracts the scan error code from an error chain, or "" if the
// error is not a ScanError.
func Code(err error) string {
	var e *ScanError
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsTransient returns true if the error is classified as transient.
func IsTransient(err error) bool {
	var e *ScanError
	if errors.As(err, &e) {
		return e.Class == ErrorClassTransient
	}
	return false
}

// IsPermanent returns true if the error is classified as permanent.
func IsPermanent(err error) bool {
	var e *ScanError
	if errors.As(err, &e) {
		return e.Class == ErrorClassPermanent
	}
	return false
}
