package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// PreconditionViolation indicates a caller broke an input contract (e.g. a relative path)
	PreconditionViolation ErrorCode = "PRECONDITION_VIOLATION"
	// MalformedKey indicates location text lacks a valid "path,offset" form
	MalformedKey ErrorCode = "MALFORMED_KEY"
	// CorruptHeader indicates a store blob failed structural validation
	CorruptHeader ErrorCode = "CORRUPT_HEADER"
	// VersionMismatch indicates a store blob was written by another format version
	VersionMismatch ErrorCode = "VERSION_MISMATCH"
	// OutOfRange indicates a node index beyond the node table
	OutOfRange ErrorCode = "OUT_OF_RANGE"
	// IndexMissing indicates no store blob exists yet
	IndexMissing ErrorCode = "INDEX_MISSING"
	// IndexStale indicates indexed files changed since the last build
	IndexStale ErrorCode = "INDEX_STALE"
	// NotFound indicates a lookup matched nothing
	NotFound ErrorCode = "NOT_FOUND"
	// Locked indicates another build holds the index lock
	Locked ErrorCode = "LOCKED"
	// Unavailable indicates a front-end is not compiled into this binary
	Unavailable ErrorCode = "UNAVAILABLE"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// Sentinels for errors.Is matching; a *CxrefError matches the sentinel with the same code.
var (
	ErrPreconditionViolation = &CxrefError{Code: PreconditionViolation}
	ErrMalformedKey          = &CxrefError{Code: MalformedKey}
	ErrCorruptHeader         = &CxrefError{Code: CorruptHeader}
	ErrVersionMismatch       = &CxrefError{Code: VersionMismatch}
	ErrOutOfRange            = &CxrefError{Code: OutOfRange}
	ErrIndexMissing          = &CxrefError{Code: IndexMissing}
	ErrNotFound              = &CxrefError{Code: NotFound}
	ErrLocked                = &CxrefError{Code: Locked}
	ErrUnavailable           = &CxrefError{Code: Unavailable}
)

// FixActionType represents the type of fix action
type FixActionType string

const (
	// RunCommand suggests running a command
	RunCommand FixActionType = "run-command"
	// OpenDocs suggests opening documentation
	OpenDocs FixActionType = "open-docs"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType `json:"type"`
	Command     string        `json:"command,omitempty"`
	Safe        bool          `json:"safe,omitempty"`
	Description string        `json:"description,omitempty"`
	URL         string        `json:"url,omitempty"`
}

// CxrefError represents an error with code, message, and suggestions
type CxrefError struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error       // Underlying error (not exported to JSON)
}

// New creates a CxrefError with the default suggested fixes for its code.
func New(code ErrorCode, message string, cause error) *CxrefError {
	return &CxrefError{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: GetSuggestedFixes(code),
	}
}

// Newf is New with a formatted message and no cause.
func Newf(code ErrorCode, format string, args ...interface{}) *CxrefError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Error implements the error interface
func (e *CxrefError) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *CxrefError) Unwrap() error {
	return e.cause
}

// Is reports whether target is a CxrefError carrying the same code.
func (e *CxrefError) Is(target error) bool {
	t, ok := target.(*CxrefError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithDetails adds details to the error
func (e *CxrefError) WithDetails(details interface{}) *CxrefError {
	e.Details = details
	return e
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	IndexMissing: {
		{
			Type:        RunCommand,
			Command:     "cxref index",
			Safe:        true,
			Description: "Build the cross-reference store",
		},
	},
	IndexStale: {
		{
			Type:        RunCommand,
			Command:     "cxref index",
			Safe:        true,
			Description: "Rebuild the cross-reference store",
		},
	},
	CorruptHeader: {
		{
			Type:        RunCommand,
			Command:     "cxref index --force",
			Safe:        true,
			Description: "Store blob is unreadable; rebuild it from sources",
		},
	},
	VersionMismatch: {
		{
			Type:        RunCommand,
			Command:     "cxref index --force",
			Safe:        true,
			Description: "Store blob was written by another format version; rebuild it",
		},
	},
	Locked: {
		{
			Type:        RunCommand,
			Command:     "cxref status",
			Safe:        true,
			Description: "Check whether another build is still running",
		},
	},
}

// GetSuggestedFixes returns suggested fixes for an error code
func GetSuggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := ErrorActions[code]; ok {
		return fixes
	}
	return nil
}

// CodeOf extracts the ErrorCode from err, or InternalError when err carries none.
func CodeOf(err error) ErrorCode {
	var ce *CxrefError
	if stderrors.As(err, &ce) {
		return ce.Code
	}
	return InternalError
}

// RequiresRebuild reports whether err means the store must be rebuilt before reading.
// Such errors are never to be read as "empty store".
func RequiresRebuild(err error) bool {
	if err == nil {
		return false
	}
	switch CodeOf(err) {
	case CorruptHeader, VersionMismatch, IndexMissing, IndexStale:
		return true
	}
	return false
}
