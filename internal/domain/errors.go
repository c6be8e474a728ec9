package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeAlreadyExists = "ALREADY_EXISTS"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// Pipeline and orchestration error codes
const (
	ErrCodeInvalidTransition        = "INVALID_TRANSITION"
	ErrCodeAlreadyTerminal          = "ALREADY_TERMINAL"
	ErrCodePreconditionFailed       = "PRECONDITION_FAILED"
	ErrCodeDuplicateRun             = "DUPLICATE_RUN"
	ErrCodeOrchestrationUnavailable = "ORCHESTRATION_UNAVAILABLE"
	ErrCodeIndexNotFound            = "INDEX_NOT_FOUND"
	ErrCodeIndexNameConflict        = "INDEX_NAME_CONFLICT"
	ErrCodeUnsupportedFormat        = "UNSUPPORTED_FORMAT"
	ErrCodeCorruptInput             = "CORRUPT_INPUT"
	ErrCodeRateLimited              = "RATE_LIMITED"
	ErrCodeInvalidInput             = "INVALID_INPUT"
)

// Status model errors
var (
	ErrInvalidTransition = NewDomainError(ErrCodeInvalidTransition, "status transition is not legal from the current state")
	ErrAlreadyTerminal   = NewDomainError(ErrCodeAlreadyTerminal, "status is terminal and can only be reset explicitly")
)

// Orchestration errors
var (
	ErrDuplicateRun             = NewDomainError(ErrCodeDuplicateRun, "a run is already in flight for this document and stage")
	ErrOrchestrationUnavailable = NewDomainError(ErrCodeOrchestrationUnavailable, "orchestration engine is unreachable")
	ErrUnknownWorkflow          = NewDomainError(ErrCodeValidation, "workflow name is not in the catalogue")
	ErrWorkflowRunNotFound      = NewDomainError(ErrCodeNotFound, "workflow run not found")
)

// Pipeline errors
var (
	ErrPreconditionFailed = NewDomainError(ErrCodePreconditionFailed, "document is not in the required status for this operation")
	ErrDocumentNotFound   = NewDomainError(ErrCodeNotFound, "document not found")
	ErrChunkNotFound      = NewDomainError(ErrCodeNotFound, "chunk not found")
	ErrEmptyDocument      = NewDomainError(ErrCodeValidation, "document has no raw content")
)

// Index lifecycle errors
var (
	ErrIndexNotFound     = NewDomainError(ErrCodeIndexNotFound, "index not found")
	ErrIndexNameConflict = NewDomainError(ErrCodeIndexNameConflict, "an index with this name already exists on the table")
)

// Provider errors
var (
	ErrUnsupportedFormat = NewDomainError(ErrCodeUnsupportedFormat, "no parser supports this content type")
	ErrCorruptInput      = NewDomainError(ErrCodeCorruptInput, "raw content could not be decoded")
	ErrRateLimited       = NewDomainError(ErrCodeRateLimited, "provider rate limit exceeded")
	ErrInvalidInput      = NewDomainError(ErrCodeInvalidInput, "provider rejected the input")
)

// Graph errors
var (
	ErrEntityNotFound     = NewDomainError(ErrCodeNotFound, "entity not found")
	ErrCollectionNotFound = NewDomainError(ErrCodeNotFound, "collection not found")
)
