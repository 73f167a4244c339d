// Package errors defines the categorized error type used at the import
// and CLI boundary. The parsing pipeline itself never returns errors; it
// signals "no result" through its return values. Everything that touches
// files, configuration or storage wraps failures in a LedgerError so the
// CLI can print a suggestion and pick a meaningful exit code.
package errors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCategory groups errors by the subsystem that raised them.
type ErrorCategory string

const (
	CategoryFile          ErrorCategory = "file"
	CategoryParse         ErrorCategory = "parse"
	CategoryValidation    ErrorCategory = "validation"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryImport        ErrorCategory = "import"
	CategoryStorage       ErrorCategory = "storage"
	CategoryInternal      ErrorCategory = "internal"
)

// ErrorCode identifies a specific failure within a category.
type ErrorCode string

const (
	// File errors
	CodeFileNotFound   ErrorCode = "file_not_found"
	CodeFilePermission ErrorCode = "file_permission"
	CodeFileCorrupted  ErrorCode = "file_corrupted"

	// Parse errors (batch loading, not SMS text)
	CodeInvalidFormat ErrorCode = "invalid_format"
	CodeMissingColumn ErrorCode = "missing_column"
	CodeInvalidData   ErrorCode = "invalid_data"
	CodeEmptyBatch    ErrorCode = "empty_batch"

	// Validation errors
	CodeInvalidAmount ErrorCode = "invalid_amount"
	CodeMissingField  ErrorCode = "missing_field"
	CodeOutOfRange    ErrorCode = "out_of_range"

	// Configuration errors
	CodeInvalidConfig ErrorCode = "invalid_config"
	CodeMissingConfig ErrorCode = "missing_config"

	// Import errors
	CodeDuplicateCheckFailed ErrorCode = "duplicate_check_failed"
	CodeSinkFailed           ErrorCode = "sink_failed"
	CodeProcessingError      ErrorCode = "processing_error"

	// Storage errors
	CodeStorageUnavailable ErrorCode = "storage_unavailable"
	CodeStorageCorrupted   ErrorCode = "storage_corrupted"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
)

// LedgerError is the base error type for all application errors.
type LedgerError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error.
type Context map[string]interface{}

// Error implements the error interface.
func (e *LedgerError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause error.
func (e *LedgerError) Unwrap() error {
	return e.Cause
}

// GetExitCode returns the process exit code for the error.
func (e *LedgerError) GetExitCode() int {
	switch e.Category {
	case CategoryFile:
		return 2
	case CategoryParse, CategoryValidation:
		return 3
	case CategoryConfiguration:
		return 4
	case CategoryImport, CategoryInternal:
		return 5
	case CategoryStorage:
		return 6
	default:
		return 1
	}
}

// WithContext adds context information to the error.
func (e *LedgerError) WithContext(key string, value interface{}) *LedgerError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error.
func (e *LedgerError) WithSuggestion(suggestion string) *LedgerError {
	e.Suggestion = suggestion
	return e
}

// New creates a new LedgerError.
func New(category ErrorCategory, code ErrorCode, message string) *LedgerError {
	return &LedgerError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with LedgerError context.
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *LedgerError {
	if err == nil {
		return nil
	}
	return &LedgerError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// FileError creates a file-related error.
func FileError(code ErrorCode, path string, err error) *LedgerError {
	var message, suggestion string

	switch code {
	case CodeFileNotFound:
		message = fmt.Sprintf("file not found: %s", path)
		suggestion = "check if the file path is correct and the file exists"
	case CodeFilePermission:
		message = fmt.Sprintf("permission denied accessing file: %s", path)
		suggestion = "check file permissions and ensure you have read access"
	case CodeFileCorrupted:
		message = fmt.Sprintf("file appears to be corrupted: %s", path)
		suggestion = "verify the file integrity and try using a backup copy"
	default:
		message = fmt.Sprintf("file error: %s", path)
		suggestion = "check the file and try again"
	}

	var result *LedgerError
	if err != nil {
		result = Wrap(err, CategoryFile, code, message)
	} else {
		result = New(CategoryFile, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("file_path", path)
}

// LoadError creates an error for a malformed SMS batch file.
func LoadError(code ErrorCode, file string, line int, value string, err error) *LedgerError {
	var message, suggestion string

	switch code {
	case CodeInvalidFormat:
		message = fmt.Sprintf("invalid format in file %s at line %d: '%s'", file, line, value)
		suggestion = "check the batch format: one message per line, or a CSV with a message column"
	case CodeMissingColumn:
		message = fmt.Sprintf("missing message column in file %s", file)
		suggestion = "name the SMS column 'message', 'sms', 'text' or 'body', or use a single-column CSV"
	case CodeInvalidData:
		message = fmt.Sprintf("invalid data in file %s at line %d: '%s'", file, line, value)
		suggestion = "correct or remove the invalid entry"
	case CodeEmptyBatch:
		message = fmt.Sprintf("no messages found in file %s", file)
		suggestion = "check that the file contains at least one SMS"
	default:
		message = fmt.Sprintf("load error in file %s at line %d", file, line)
		suggestion = "check the file format"
	}

	var result *LedgerError
	if err != nil {
		result = Wrap(err, CategoryParse, code, message)
	} else {
		result = New(CategoryParse, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("file", file).
		WithContext("line", line).
		WithContext("value", value)
}

// ValidationError creates a validation-related error.
func ValidationError(code ErrorCode, field string, value interface{}, err error) *LedgerError {
	var message, suggestion string

	switch code {
	case CodeInvalidAmount:
		message = fmt.Sprintf("invalid amount in field '%s': %v", field, value)
		suggestion = "ensure amounts are valid decimal numbers (e.g., '12.34')"
	case CodeMissingField:
		message = fmt.Sprintf("required field '%s' is missing or empty", field)
		suggestion = "provide a value for this required field"
	case CodeOutOfRange:
		message = fmt.Sprintf("value out of range in field '%s': %v", field, value)
		suggestion = "ensure the value is within the acceptable range"
	default:
		message = fmt.Sprintf("validation error in field '%s': %v", field, value)
		suggestion = "check the field value and format"
	}

	var result *LedgerError
	if err != nil {
		result = Wrap(err, CategoryValidation, code, message)
	} else {
		result = New(CategoryValidation, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("field", field).
		WithContext("value", value)
}

// ConfigurationError creates a configuration-related error.
func ConfigurationError(code ErrorCode, setting string, value interface{}, err error) *LedgerError {
	var message, suggestion string

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

	var result *LedgerError
	if err != nil {
		result = Wrap(err, CategoryConfiguration, code, message)
	} else {
		result = New(CategoryConfiguration, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("setting", setting).
		WithContext("value", value)
}

// ImportError creates an import-pipeline error.
func ImportError(code ErrorCode, operation string, err error) *LedgerError {
	var message, suggestion string

	switch code {
	case CodeDuplicateCheckFailed:
		message = fmt.Sprintf("duplicate check failed during %s", operation)
		suggestion = "verify the ledger store is reachable and consistent"
	case CodeSinkFailed:
		message = fmt.Sprintf("failed to persist movements during %s", operation)
		suggestion = "check the ledger store for errors and re-run the import"
	case CodeProcessingError:
		message = fmt.Sprintf("processing error during %s", operation)
		suggestion = "check the input data and try again"
	default:
		message = fmt.Sprintf("import error during %s", operation)
		suggestion = "check the import parameters"
	}

	var result *LedgerError
	if err != nil {
		result = Wrap(err, CategoryImport, code, message)
	} else {
		result = New(CategoryImport, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("operation", operation)
}

// StorageError creates a storage-related error.
func StorageError(code ErrorCode, target string, err error) *LedgerError {
	var message, suggestion string

	switch code {
	case CodeStorageUnavailable:
		message = fmt.Sprintf("storage unavailable: %s", target)
		suggestion = "check that the ledger file or database is accessible"
	case CodeStorageCorrupted:
		message = fmt.Sprintf("storage corrupted: %s", target)
		suggestion = "restore the ledger from a backup"
	default:
		message = fmt.Sprintf("storage error: %s", target)
		suggestion = "check the storage backend"
	}

	var result *LedgerError
	if err != nil {
		result = Wrap(err, CategoryStorage, code, message)
	} else {
		result = New(CategoryStorage, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("target", target)
}

// InternalError creates an internal error.
func InternalError(code ErrorCode, operation string, err error) *LedgerError {
	message := fmt.Sprintf("internal error during %s", operation)

	var result *LedgerError
	if err != nil {
		result = Wrap(err, CategoryInternal, code, message)
	} else {
		result = New(CategoryInternal, code, message)
	}

	return result.
		WithSuggestion("this is likely a bug; please report it with the error details").
		WithContext("operation", operation)
}

// ErrorSummary aggregates multiple errors from a batch operation.
type ErrorSummary struct {
	Errors     []*LedgerError        `json:"errors"`
	Categories map[ErrorCategory]int `json:"categories"`
	Codes      map[ErrorCode]int     `json:"codes"`
	Total      int                   `json:"total"`
}

// NewErrorSummary creates a summary over the given errors.
func NewErrorSummary(errs []*LedgerError) *ErrorSummary {
	summary := &ErrorSummary{
		Errors:     errs,
		Categories: make(map[ErrorCategory]int),
		Codes:      make(map[ErrorCode]int),
		Total:      len(errs),
	}
	for _, e := range errs {
		summary.Categories[e.Category]++
		summary.Codes[e.Code]++
	}
	return summary
}

// Error returns a formatted message for the summary.
func (es *ErrorSummary) Error() string {
	if es.Total == 0 {
		return "no errors"
	}
	if es.Total == 1 {
		return es.Errors[0].Error()
	}

	var parts []string
	for category, count := range es.Categories {
		parts = append(parts, fmt.Sprintf("%d %s", count, category))
	}
	return fmt.Sprintf("%d errors (%s)", es.Total, strings.Join(parts, ", "))
}

// HasCategory checks if the summary contains errors of the given category.
func (es *ErrorSummary) HasCategory(category ErrorCategory) bool {
	return es.Categories[category] > 0
}

// HasCode checks if the summary contains errors with the given code.
func (es *ErrorSummary) HasCode(code ErrorCode) bool {
	return es.Codes[code] > 0
}

// GetExitCode returns the highest priority exit code from all errors.
func (es *ErrorSummary) GetExitCode() int {
	highest := 0
	for _, e := range es.Errors {
		if code := e.GetExitCode(); code > highest {
			highest = code
		}
	}
	if highest == 0 {
		highest = 1
	}
	return highest
}

// IsLedgerError checks if an error is a LedgerError.
func IsLedgerError(err error) bool {
	_, ok := err.(*LedgerError)
	return ok
}

// AsLedgerError extracts a LedgerError from an error chain.
func AsLedgerError(err error) (*LedgerError, bool) {
	for err != nil {
		if ledgerErr, ok := err.(*LedgerError); ok {
			return ledgerErr, true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = unwrapper.Unwrap()
	}
	return nil, false
}

// WrapIfNeeded wraps an error if it is not already a LedgerError.
func WrapIfNeeded(err error, category ErrorCategory, code ErrorCode, message string) *LedgerError {
	if err == nil {
		return nil
	}
	if ledgerErr, ok := AsLedgerError(err); ok {
		return ledgerErr
	}
	return Wrap(err, category, code, message)
}
