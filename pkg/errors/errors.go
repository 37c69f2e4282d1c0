// Package errors defines the structured error taxonomy used across the
// statement processing pipeline. Every error carries a category, a code,
// an operator-facing suggestion and arbitrary context, so that handlers
// can log full detail internally while returning concise messages to
// callers.
package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryExtraction    ErrorCategory = "extraction"
	CategoryParse         ErrorCategory = "parse"
	CategoryValidation    ErrorCategory = "validation"
	CategoryLifecycle     ErrorCategory = "lifecycle"
	CategoryStorage       ErrorCategory = "storage"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryInternal      ErrorCategory = "internal"
)

// ErrorCode represents specific error codes within categories
type ErrorCode string

const (
	// Extraction errors
	CodeRasterizeFailed ErrorCode = "rasterize_failed"
	CodeOCRFailed       ErrorCode = "ocr_failed"
	CodeNoPages         ErrorCode = "no_pages"
	CodeUnreadableText  ErrorCode = "unreadable_text"

	// Parse errors
	CodeInvalidDate    ErrorCode = "invalid_date"
	CodeInvalidAmount  ErrorCode = "invalid_amount"
	CodeInvalidPattern ErrorCode = "invalid_pattern"

	// Validation errors
	CodeMissingField    ErrorCode = "missing_field"
	CodeEmptyFile       ErrorCode = "empty_file"
	CodeInvalidFileType ErrorCode = "invalid_file_type"
	CodeOutOfRange      ErrorCode = "out_of_range"

	// Lifecycle errors
	CodeInvalidTransition ErrorCode = "invalid_transition"
	CodeProcessingFailed  ErrorCode = "processing_failed"
	CodeCancelled         ErrorCode = "cancelled"

	// Storage errors
	CodeNotFound        ErrorCode = "not_found"
	CodeConflict        ErrorCode = "conflict"
	CodeQueryFailed     ErrorCode = "query_failed"
	CodeMigrationFailed ErrorCode = "migration_failed"

	// Configuration errors
	CodeInvalidConfig ErrorCode = "invalid_config"
	CodeMissingConfig ErrorCode = "missing_config"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
)

// ProcessorError is the base error type for all application errors
type ProcessorError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error
type Context map[string]interface{}

// Error implements the error interface
func (e *ProcessorError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *ProcessorError) Unwrap() error {
	return e.Cause
}

// UserMessage returns the message without suggestion or context, suitable
// for echoing to API callers without leaking internals.
func (e *ProcessorError) UserMessage() string {
	return e.Message
}

// WithContext adds context information to the error
func (e *ProcessorError) WithContext(key string, value interface{}) *ProcessorError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error
func (e *ProcessorError) WithSuggestion(suggestion string) *ProcessorError {
	e.Suggestion = suggestion
	return e
}

// New creates a new ProcessorError
func New(category ErrorCategory, code ErrorCode, message string) *ProcessorError {
	return &ProcessorError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Newf creates a new ProcessorError with a formatted message
func Newf(category ErrorCategory, code ErrorCode, format string, args ...interface{}) *ProcessorError {
	return New(category, code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with ProcessorError context
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *ProcessorError {
	if err == nil {
		return nil
	}

	return &ProcessorError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

// stackTracer interface for extracting stack traces
type stackTracer interface {
	StackTrace() errors.StackTrace
}

// Specific error constructors

// ExtractionError creates an error for OCR or rasterization failures.
// These are fatal for the current processing attempt.
func ExtractionError(code ErrorCode, detail string, err error) *ProcessorError {
	var message string
	var suggestion string

	switch code {
	case CodeRasterizeFailed:
		message = fmt.Sprintf("could not rasterize document: %s", detail)
		suggestion = "verify the file is a valid PDF or image and not password protected"
	case CodeOCRFailed:
		message = fmt.Sprintf("text extraction failed: %s", detail)
		suggestion = "check that the OCR engine is installed and the document is legible"
	case CodeNoPages:
		message = fmt.Sprintf("document yielded no pages: %s", detail)
		suggestion = "verify the document is not empty or corrupted"
	case CodeUnreadableText:
		message = fmt.Sprintf("extracted text is not readable: %s", detail)
		suggestion = "the document may be scanned at too low a resolution"
	default:
		message = fmt.Sprintf("extraction error: %s", detail)
		suggestion = "check the document and try again"
	}

	var result *ProcessorError
	if err != nil {
		result = Wrap(err, CategoryExtraction, code, message)
	} else {
		result = New(CategoryExtraction, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("detail", detail)
}

// ValidationError creates an error for rejected submissions and bad input
func ValidationError(code ErrorCode, field string, value interface{}) *ProcessorError {
	var message string
	var suggestion string

	switch code {
	case CodeMissingField:
		message = fmt.Sprintf("required field '%s' is missing or empty", field)
		suggestion = "provide a value for this required field"
	case CodeEmptyFile:
		message = "uploaded file is empty"
		suggestion = "upload a non-empty statement document"
	case CodeInvalidFileType:
		message = fmt.Sprintf("file type not allowed: %v", value)
		suggestion = "allowed types are pdf, png, jpg, jpeg"
	case CodeOutOfRange:
		message = fmt.Sprintf("value out of range in field '%s': %v", field, value)
		suggestion = "ensure the value is within the acceptable range"
	default:
		message = fmt.Sprintf("validation error in field '%s': %v", field, value)
		suggestion = "check the field value and format"
	}

	return New(CategoryValidation, code, message).
		WithSuggestion(suggestion).
		WithContext("field", field).
		WithContext("value", value)
}

// LifecycleError creates an error for statement state machine violations
func LifecycleError(code ErrorCode, statementID string, detail string) *ProcessorError {
	var message string
	var suggestion string

	switch code {
	case CodeInvalidTransition:
		message = fmt.Sprintf("invalid status transition for statement %s: %s", statementID, detail)
		suggestion = "reset the statement to pending before reprocessing"
	case CodeProcessingFailed:
		message = fmt.Sprintf("processing failed for statement %s: %s", statementID, detail)
		suggestion = "inspect the processing log for the failing stage"
	case CodeCancelled:
		message = fmt.Sprintf("processing cancelled for statement %s", statementID)
		suggestion = "reset the statement to pending to retry"
	default:
		message = fmt.Sprintf("lifecycle error for statement %s: %s", statementID, detail)
		suggestion = "check the statement status and processing log"
	}

	return New(CategoryLifecycle, code, message).
		WithSuggestion(suggestion).
		WithContext("statement_id", statementID)
}

// StorageError creates an error for repository failures
func StorageError(code ErrorCode, entity string, err error) *ProcessorError {
	var message string
	var suggestion string

	switch code {
	case CodeNotFound:
		message = fmt.Sprintf("%s not found", entity)
		suggestion = "verify the identifier and that the record exists"
	case CodeConflict:
		message = fmt.Sprintf("conflicting update on %s", entity)
		suggestion = "retry the operation against the current state"
	case CodeQueryFailed:
		message = fmt.Sprintf("query failed for %s", entity)
		suggestion = "check database availability and schema version"
	case CodeMigrationFailed:
		message = fmt.Sprintf("migration failed for %s", entity)
		suggestion = "check the migrations directory and database permissions"
	default:
		message = fmt.Sprintf("storage error for %s", entity)
		suggestion = "check database availability"
	}

	var result *ProcessorError
	if err != nil {
		result = Wrap(err, CategoryStorage, code, message)
	} else {
		result = New(CategoryStorage, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("entity", entity)
}

// ConfigurationError creates a configuration-related error
func ConfigurationError(code ErrorCode, setting string, value interface{}) *ProcessorError {
	var message string
	var suggestion string

	switch code {
	case CodeInvalidConfig:
		message = fmt.Sprintf("invalid configuration for '%s': %v", setting, value)
		suggestion = "check the configuration documentation for valid values"
	case CodeMissingConfig:
		message = fmt.Sprintf("missing required configuration: %s", setting)
		suggestion = "provide this configuration setting or use a config file"
	default:
		message = fmt.Sprintf("configuration error: %s", setting)
		suggestion = "check your configuration and try again"
	}

	return New(CategoryConfiguration, code, message).
		WithSuggestion(suggestion).
		WithContext("setting", setting).
		WithContext("value", value)
}

// InternalError creates an internal error
func InternalError(operation string, err error) *ProcessorError {
	message := fmt.Sprintf("unexpected error during %s", operation)

	var result *ProcessorError
	if err != nil {
		result = Wrap(err, CategoryInternal, CodeUnexpectedError, message)
	} else {
		result = New(CategoryInternal, CodeUnexpectedError, message)
	}

	return result.
		WithSuggestion("this is likely a bug - please report it with the error details").
		WithContext("operation", operation)
}

// GetExitCode maps the error category to a CLI process exit code
func (e *ProcessorError) GetExitCode() int {
	switch e.Category {
	case CategoryValidation, CategoryConfiguration:
		return 2
	case CategoryExtraction, CategoryParse:
		return 3
	case CategoryStorage:
		return 4
	case CategoryLifecycle:
		return 5
	default:
		return 1
	}
}

// Utility functions

// IsProcessorError checks if an error is a ProcessorError
func IsProcessorError(err error) bool {
	_, ok := err.(*ProcessorError)
	return ok
}

// AsProcessorError extracts a ProcessorError from an error chain
func AsProcessorError(err error) (*ProcessorError, bool) {
	var procErr *ProcessorError
	if errors.As(err, &procErr) {
		return procErr, true
	}
	return nil, false
}

// HasCategory reports whether err belongs to the given category
func HasCategory(err error, category ErrorCategory) bool {
	if procErr, ok := AsProcessorError(err); ok {
		return procErr.Category == category
	}
	return false
}

// WrapIfNeeded wraps an error if it's not already a ProcessorError
func WrapIfNeeded(err error, category ErrorCategory, code ErrorCode, message string) *ProcessorError {
	if err == nil {
		return nil
	}

	if procErr, ok := AsProcessorError(err); ok {
		return procErr
	}

	return Wrap(err, category, code, message)
}
