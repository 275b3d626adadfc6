package engine

import (
	"errors"
	"fmt"
)

// ErrorClass classifies a problem found while reconciling an entity.
type ErrorClass string

const (
	// ErrorClassUnresolvedReference indicates a key or alias could not be
	// resolved. The entry is dropped and the operation continues.
	ErrorClassUnresolvedReference ErrorClass = "unresolved_reference"

	// ErrorClassMalformedDocument indicates a required section is missing.
	// The affected sub-step is skipped.
	ErrorClassMalformedDocument ErrorClass = "malformed_document"

	// ErrorClassParseFailure indicates a numeric or boolean token could not be
	// parsed. The target keeps its prior value.
	ErrorClassParseFailure ErrorClass = "parse_failure"

	// ErrorClassIdentityConflict indicates two descriptors matched the same
	// field or grouping. The first match wins.
	ErrorClassIdentityConflict ErrorClass = "identity_conflict"

	// ErrorClassPermanent indicates the entity itself could not be processed.
	ErrorClassPermanent ErrorClass = "permanent"
)

// SyncError represents a classified error with context.
type SyncError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Entity is the alias of the entity being processed, if known.
	Entity string `json:"entity,omitempty"`

	// Operation is the step being performed when the error occurred.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *SyncError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	if e.Entity != "" && e.Operation != "" {
		msg = fmt.Sprintf("%s (entity=%s, operation=%s)", msg, e.Entity, e.Operation)
	} else if e.Entity != "" {
		msg = fmt.Sprintf("%s (entity=%s)", msg, e.Entity)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *SyncError) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *SyncError) Is(target error) bool {
	t, ok := target.(*SyncError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

func newError(class ErrorClass, message string, err error) *SyncError {
	return &SyncError{
		Class:   class,
		Message: message,
		Err:     err,
	}
}

// NewUnresolvedReferenceError creates a new unresolved reference error.
func NewUnresolvedReferenceError(message string, err error) *SyncError {
	return newError(ErrorClassUnresolvedReference, message, err)
}

// NewMalformedDocumentError creates a new malformed document error.
func NewMalformedDocumentError(message string, err error) *SyncError {
	return newError(ErrorClassMalformedDocument, message, err)
}

// NewParseFailureError creates a new parse failure error.
func NewParseFailureError(message string, err error) *SyncError {
	return newError(ErrorClassParseFailure, message, err)
}

// NewIdentityConflictError creates a new identity conflict error.
func NewIdentityConflictError(message string, err error) *SyncError {
	return newError(ErrorClassIdentityConflict, message, err)
}

// NewPermanentError creates a new permanent error.
func NewPermanentError(message string, err error) *SyncError {
	return newError(ErrorClassPermanent, message, err)
}

// WithEntity adds entity context to an error.
func (e *SyncError) WithEntity(alias string) *SyncError {
	e.Entity = alias
	return e
}

// WithOperation adds operation context to an error.
func (e *SyncError) WithOperation(operation string) *SyncError {
	e.Operation = operation
	return e
}

// WithCode adds an error code to an error.
func (e *SyncError) WithCode(code string) *SyncError {
	e.Code = code
	return e
}

// WithDetail adds a detail field to the error context.
func (e *SyncError) WithDetail(key string, value interface{}) *SyncError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func hasClass(err error, class ErrorClass) bool {
	var e *SyncError
	if errors.As(err, &e) {
		return e.Class == class
	}
	return false
}

// IsUnresolvedReference returns true if the error is an unresolved reference.
func IsUnresolvedReference(err error) bool {
	return hasClass(err, ErrorClassUnresolvedReference)
}

// IsMalformedDocument returns true if the error is a malformed document error.
func IsMalformedDocument(err error) bool {
	return hasClass(err, ErrorClassMalformedDocument)
}

// IsParseFailure returns true if the error is a parse failure.
func IsParseFailure(err error) bool {
	return hasClass(err, ErrorClassParseFailure)
}

// IsIdentityConflict returns true if the error is an identity conflict.
func IsIdentityConflict(err error) bool {
	return hasClass(err, ErrorClassIdentityConflict)
}

// IsPermanent returns true if the error is classified as permanent.
func IsPermanent(err error) bool {
	return hasClass(err, ErrorClassPermanent)
}

// ClassOf returns the class of err, or ErrorClassPermanent for unclassified errors.
func ClassOf(err error) ErrorClass {
	var e *SyncError
	if errors.As(err, &e) {
		return e.Class
	}
	return ErrorClassPermanent
}

// Common error codes.
const (
	ErrCodeMissingInfo      = "MISSING_INFO"
	ErrCodeMissingAlias     = "MISSING_ALIAS"
	ErrCodeKindMismatch     = "KIND_MISMATCH"
	ErrCodeMissingSection   = "MISSING_SECTION"
	ErrCodeInvalidInt       = "INVALID_INT"
	ErrCodeInvalidBool      = "INVALID_BOOL"
	ErrCodeInvalidKey       = "INVALID_KEY"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeDuplicateMatch   = "DUPLICATE_MATCH"
	ErrCodeCycle            = "CYCLE"
	ErrCodeInvalidStructure = "INVALID_STRUCTURE"
	ErrCodeUnknownTab       = "UNKNOWN_TAB"
)
