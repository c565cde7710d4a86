package errors

import (
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
)

// Common error types that can be used across the application
var (
	ErrNotFound             = new(ErrCodeNotFound, "resource not found")
	ErrAlreadyExists        = new(ErrCodeAlreadyExists, "resource already exists")
	ErrValidation           = new(ErrCodeValidation, "validation error")
	ErrInvalidOperation     = new(ErrCodeInvalidOperation, "invalid operation")
	ErrUnknownQuotationType = new(ErrCodeUnknownQuotationType, "unknown quotation type")
	ErrNoUpcomingInvoice    = new(ErrCodeNoUpcomingInvoice, "no upcoming invoice")
	ErrProvider             = new(ErrCodeProvider, "billing provider error")
	ErrProviderTransient    = new(ErrCodeProviderTransient, "billing provider temporarily unavailable")
	ErrDatabase             = new(ErrCodeDatabase, "database error")
	ErrLockNotAcquired      = new(ErrCodeLockNotAcquired, "resource is busy")
	ErrSystem               = new(ErrCodeSystemError, "system error")
	// maps errors to http status codes
	statusCodeMap = map[error]int{
		ErrNotFound:             http.StatusNotFound,
		ErrAlreadyExists:        http.StatusConflict,
		ErrValidation:           http.StatusBadRequest,
		ErrInvalidOperation:     http.StatusBadRequest,
		ErrUnknownQuotationType: http.StatusUnprocessableEntity,
		ErrNoUpcomingInvoice:    http.StatusConflict,
		ErrProvider:             http.StatusBadGateway,
		ErrProviderTransient:    http.StatusServiceUnavailable,
		ErrDatabase:             http.StatusInternalServerError,
		ErrLockNotAcquired:      http.StatusConflict,
		ErrSystem:               http.StatusInternalServerError,
	}
)

const (
	ErrCodeSystemError          = "system_error"
	ErrCodeNotFound             = "not_found"
	ErrCodeAlreadyExists        = "already_exists"
	ErrCodeValidation           = "validation_error"
	ErrCodeInvalidOperation     = "invalid_operation"
	ErrCodeUnknownQuotationType = "unknown_quotation_type"
	ErrCodeNoUpcomingInvoice    = "no_upcoming_invoice"
	ErrCodeProvider             = "provider_error"
	ErrCodeProviderTransient    = "provider_transient_error"
	ErrCodeDatabase             = "database_error"
	ErrCodeLockNotAcquired      = "lock_not_acquired"
)

// InternalError represents a domain error
type InternalError struct {
	Code    string // Machine-readable error code
	Message string // Human-readable error message
	Op      string // Logical operation name
	Err     error  // Underlying error
}

func (e *InternalError) Error() string {
	if e.Err == nil {
		return e.DisplayError()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Err.Error())
}

func (e *InternalError) DisplayError() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// Is implements error matching for wrapped errors
func (e *InternalError) Is(target error) bool {
	if target == nil {
		return false
	}

	t, ok := target.(*InternalError)
	if !ok {
		return errors.Is(e.Err, target)
	}

	return e.Code == t.Code
}

// New creates a new InternalError
func new(code string, message string) *InternalError {
	return &InternalError{
		Code:    code,
		Message: message,
	}
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

// Is reports whether err carries the target mark anywhere in its chain
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsUnknownQuotationType checks if an error is an unknown quotation type error
func IsUnknownQuotationType(err error) bool {
	return errors.Is(err, ErrUnknownQuotationType)
}

// IsNoUpcomingInvoice checks if an error is a no upcoming invoice error
func IsNoUpcomingInvoice(err error) bool {
	return errors.Is(err, ErrNoUpcomingInvoice)
}

// IsProvider checks if an error came from the billing provider, transient or not
func IsProvider(err error) bool {
	return errors.Is(err, ErrProvider) || errors.Is(err, ErrProviderTransient)
}

// IsTransient reports whether the caller may retry the operation
func IsTransient(err error) bool {
	return errors.Is(err, ErrProviderTransient) || errors.Is(err, ErrLockNotAcquired)
}

// IsDatabase checks if an error is a persistence error
func IsDatabase(err error) bool {
	return errors.Is(err, ErrDatabase)
}

// HTTPStatusFromErr maps an error to the first matching status code.
// Sentinels are checked in a fixed order so that an error marked with
// several of them maps deterministically.
func HTTPStatusFromErr(err error) int {
	for _, e := range statusPrecedence {
		if errors.Is(err, e) {
			return statusCodeMap[e]
		}
	}
	return http.StatusInternalServerError
}

var statusPrecedence = []error{
	ErrValidation,
	ErrNotFound,
	ErrUnknownQuotationType,
	ErrNoUpcomingInvoice,
	ErrLockNotAcquired,
	ErrAlreadyExists,
	ErrInvalidOperation,
	ErrProviderTransient,
	ErrProvider,
	ErrDatabase,
	ErrSystem,
}
