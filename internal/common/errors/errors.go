// Package errors provides the structured error model shared by the job workers
// and its conversion into BPMN errors for the workflow engine.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode is a stable, machine-readable error identifier.
type ErrorCode string

const (
	ErrCodeRequestValidationFailed ErrorCode = "REQUEST_VALIDATION_FAILED"
	ErrCodeResolutionFailed        ErrorCode = "RESOLUTION_FAILED"
	ErrCodeClarificationRequired   ErrorCode = "CLARIFICATION_REQUIRED"
	ErrCodeHistoryUnavailable      ErrorCode = "HISTORY_UNAVAILABLE"

	ErrCodeTemplateNotFound      ErrorCode = "TEMPLATE_NOT_FOUND"
	ErrCodeQueryValidationFailed ErrorCode = "QUERY_VALIDATION_FAILED"
	ErrCodeCompilationFailed     ErrorCode = "COMPILATION_FAILED"

	ErrCodeGenerationFailed  ErrorCode = "GENERATION_FAILED"
	ErrCodeGenerationTimeout ErrorCode = "GENERATION_TIMEOUT"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeQueryTimeout             ErrorCode = "QUERY_TIMEOUT"

	ErrCodeSearchQueryFailed ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeSearchTimeout     ErrorCode = "SEARCH_TIMEOUT"
	ErrCodeIndexNotFound     ErrorCode = "INDEX_NOT_FOUND"

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
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// WithMetadata returns e with key set in its metadata.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError is an error thrown to the workflow engine.
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

// ToErrorVariables returns the process variables attached to a failed or thrown job.
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

func NewRequestValidationError(details string) *StandardError {
	return newError(ErrCodeRequestValidationFailed, "Inbound request failed schema validation", details, false)
}

func NewResolutionFailedError(details string) *StandardError {
	return newError(ErrCodeResolutionFailed, "Reference resolution failed", details, false)
}

func NewClarificationRequiredError(prompt string) *StandardError {
	return newError(ErrCodeClarificationRequired, "User clarification required", prompt, false)
}

func NewHistoryUnavailableError(err error) *StandardError {
	return newError(ErrCodeHistoryUnavailable, "Conversation history unavailable", err.Error(), true)
}

func NewTemplateNotFoundError(templateName string) *StandardError {
	return newError(ErrCodeTemplateNotFound, "Template not found in catalog", fmt.Sprintf("template: %s", templateName), false)
}

func NewQueryValidationFailedError(reason string) *StandardError {
	return newError(ErrCodeQueryValidationFailed, "Query rejected by validator", reason, false)
}

func NewCompilationFailedError(reason string) *StandardError {
	return newError(ErrCodeCompilationFailed, "No usable query could be compiled", reason, false)
}

func NewGenerationFailedError(err error) *StandardError {
	return newError(ErrCodeGenerationFailed, "Query generation service error", err.Error(), true)
}

func NewGenerationTimeoutError() *StandardError {
	return newError(ErrCodeGenerationTimeout, "Query generation service timeout", "generation call exceeded its deadline", true)
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", err.Error(), true)
}

func NewQueryExecutionFailedError(templateName string, err error) *StandardError {
	return newError(ErrCodeQueryExecutionFailed, "Database query execution error",
		fmt.Sprintf("template: %s, error: %s", templateName, err.Error()), true)
}

func NewQueryTimeoutError(templateName string) *StandardError {
	return newError(ErrCodeQueryTimeout, "Database query timeout", fmt.Sprintf("template: %s", templateName), true)
}

func NewSearchQueryFailedError(err error) *StandardError {
	return newError(ErrCodeSearchQueryFailed, "Elasticsearch query error", err.Error(), true)
}

func NewSearchTimeoutError() *StandardError {
	return newError(ErrCodeSearchTimeout, "Elasticsearch query timeout", "", true)
}

func NewIndexNotFoundError(indexName string) *StandardError {
	return newError(ErrCodeIndexNotFound, "Elasticsearch index not found", fmt.Sprintf("index: %s", indexName), false)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns how many times the workflow engine should retry a job
// that failed with code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeSearchQueryFailed,
		ErrCodeGenerationFailed,
		ErrCodeHistoryUnavailable:
		return 3
	case ErrCodeQueryTimeout,
		ErrCodeSearchTimeout:
		return 2
	case ErrCodeGenerationTimeout:
		return 1
	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError for the workflow engine. BPMN codes
// are the internal codes verbatim.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
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
		Code:           string(stdErr.Code),
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

// GetErrorCategory groups codes for dashboards and logs.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "REQUEST_"):
		return "VALIDATION"
	case strings.Contains(codeStr, "RESOLUTION") || strings.Contains(codeStr, "CLARIFICATION") || strings.Contains(codeStr, "HISTORY"):
		return "RESOLUTION"
	case strings.Contains(codeStr, "TEMPLATE") || strings.Contains(codeStr, "COMPILATION") || strings.Contains(codeStr, "QUERY_VALIDATION"):
		return "COMPILATION"
	case strings.Contains(codeStr, "GENERATION"):
		return "AI"
	case strings.Contains(codeStr, "SEARCH") || strings.Contains(codeStr, "INDEX"):
		return "SEARCH"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	default:
		return "OTHER"
	}
}
