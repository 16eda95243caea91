// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	ErrCodeProfileNotFound ErrorCode = "PROFILE_NOT_FOUND"
	ErrCodeMatchNotFound   ErrorCode = "MATCH_NOT_FOUND"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeQueryTimeout             ErrorCode = "QUERY_TIMEOUT"
	ErrCodeDatabaseInsertFailed     ErrorCode = "DATABASE_INSERT_FAILED"

	ErrCodeDirectorySearchFailed ErrorCode = "DIRECTORY_SEARCH_FAILED"
	ErrCodeDirectoryTimeout      ErrorCode = "DIRECTORY_TIMEOUT"

	ErrCodeCacheUnavailable ErrorCode = "CACHE_UNAVAILABLE"

	ErrCodeProviderNotConfigured ErrorCode = "PROVIDER_NOT_CONFIGURED"
	ErrCodeEmbeddingFailed       ErrorCode = "EMBEDDING_FAILED"
	ErrCodeEmbeddingTimeout      ErrorCode = "EMBEDDING_TIMEOUT"

	ErrCodeMatchGenerationFailed ErrorCode = "MATCH_GENERATION_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata attaches a metadata entry and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewInvalidInputError is raised for malformed job variables and for
// mismatched vector lengths. It is never retried.
func NewInvalidInputError(details string, cause error) *StandardError {
	return newError(ErrCodeInvalidInput, "Invalid input", details, false, cause)
}

func NewProfileNotFoundError(userID string) *StandardError {
	return newError(ErrCodeProfileNotFound, "Questionnaire profile not found",
		fmt.Sprintf("userId: %s", userID), false, nil)
}

func NewMatchNotFoundError(matchID string) *StandardError {
	return newError(ErrCodeMatchNotFound, "Match not found",
		fmt.Sprintf("matchId: %s", matchID), false, nil)
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", err.Error(), true, err)
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(operation string, err error) *StandardError {
	return newError(ErrCodeQueryExecutionFailed, "Database query execution error",
		fmt.Sprintf("operation: %s, error: %s", operation, err.Error()), true, err)
}

// NewQueryTimeoutError creates a retryable query timeout error.
func NewQueryTimeoutError(operation string) *StandardError {
	return newError(ErrCodeQueryTimeout, "Database query timeout",
		fmt.Sprintf("operation: %s", operation), true, nil)
}

// NewQueryError classifies a storage failure by whether the deadline ran out.
func NewQueryError(operation string, err error) *StandardError {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return NewQueryTimeoutError(operation)
	}
	return NewQueryExecutionFailedError(operation, err)
}

func NewDatabaseInsertFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseInsertFailed, "Failed to persist records", err.Error(), true, err)
}

func NewDirectorySearchFailedError(err error) *StandardError {
	return newError(ErrCodeDirectorySearchFailed, "Candidate directory search failed", err.Error(), true, err)
}

func NewDirectoryTimeoutError() *StandardError {
	return newError(ErrCodeDirectoryTimeout, "Candidate directory search timeout", "", true, nil)
}

func NewCacheUnavailableError(err error) *StandardError {
	return newError(ErrCodeCacheUnavailable, "Result cache unavailable", err.Error(), true, err)
}

// NewProviderNotConfiguredError is returned when the embedding path is invoked
// explicitly without a configured provider.
func NewProviderNotConfiguredError(provider string) *StandardError {
	return newError(ErrCodeProviderNotConfigured, "Embedding provider not configured",
		fmt.Sprintf("provider: %s", provider), false, nil)
}

func NewEmbeddingFailedError(provider string, err error) *StandardError {
	return newError(ErrCodeEmbeddingFailed, fmt.Sprintf("Embedding provider '%s' failed", provider),
		err.Error(), true, err)
}

func NewEmbeddingTimeoutError(provider string) *StandardError {
	return newError(ErrCodeEmbeddingTimeout, fmt.Sprintf("Embedding provider '%s' timeout", provider),
		"", true, nil)
}

func NewMatchGenerationFailedError(err error) *StandardError {
	return newError(ErrCodeMatchGenerationFailed, "Match generation failed", err.Error(), false, err)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false, err)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes. Codes that
// are absent map to themselves.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInvalidInput:             "INVALID_INPUT",
	ErrCodeProfileNotFound:          "PROFILE_NOT_FOUND",
	ErrCodeMatchNotFound:            "MATCH_NOT_FOUND",
	ErrCodeDatabaseConnectionFailed: "DATABASE_CONNECTION_FAILED",
	ErrCodeQueryExecutionFailed:     "QUERY_EXECUTION_FAILED",
	ErrCodeQueryTimeout:             "QUERY_TIMEOUT",
	ErrCodeDatabaseInsertFailed:     "DATABASE_INSERT_FAILED",
	ErrCodeDirectorySearchFailed:    "DIRECTORY_SEARCH_FAILED",
	ErrCodeDirectoryTimeout:         "DIRECTORY_TIMEOUT",
	ErrCodeCacheUnavailable:         "CACHE_UNAVAILABLE",
	ErrCodeProviderNotConfigured:    "PROVIDER_NOT_CONFIGURED",
	ErrCodeEmbeddingFailed:          "EMBEDDING_FAILED",
	ErrCodeEmbeddingTimeout:         "EMBEDDING_TIMEOUT",
	ErrCodeMatchGenerationFailed:    "MATCH_GENERATION_FAILED",
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodeDirectorySearchFailed,
		ErrCodeCacheUnavailable:
		return 3

	case ErrCodeQueryTimeout,
		ErrCodeDirectoryTimeout,
		ErrCodeEmbeddingFailed:
		return 2

	case ErrCodeEmbeddingTimeout:
		return 1

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// AsStandardError finds the first StandardError in err's chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// CodeOf returns the code carried by err, or INTERNAL_ERROR.
func CodeOf(err error) ErrorCode {
	if stdErr, ok := AsStandardError(err); ok {
		return stdErr.Code
	}
	return ErrCodeInternal
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "DIRECTORY"):
		return "SEARCH"
	case strings.Contains(codeStr, "CACHE"):
		return "CACHE"
	case strings.Contains(codeStr, "EMBEDDING") || strings.Contains(codeStr, "PROVIDER"):
		return "EMBEDDING"
	case strings.Contains(codeStr, "NOT_FOUND"):
		return "NOT_FOUND"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	case strings.Contains(codeStr, "MATCH"):
		return "MATCHING"
	default:
		return "OTHER"
	}
}
